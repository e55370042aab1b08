// Package entry defines the compact record a message buffer keeps in
// memory for each pending command. Keys and values live in a companion
// append-only byte buffer; the entry only records where they are and how
// long they are, plus the command's MSN, type, and xidpair.
//
// Grounded on the entry layout of the teacher's internal/node/entry
// package: a small prefix kept inline to shortcut comparisons, and
// key/value lengths bit-packed into a single uint32. We widen the header
// with the fields a buffered-tree message additionally needs (MSN, type,
// xidpair) since, unlike the teacher's single-version skip list, our
// buffers hold a log of pending, not-yet-merged commands rather than a
// single current value per key.
package entry

import "buftree/internal/ids"

const (
	keyShift = 0
	keyBits  = 14
	keyMask  = 1<<keyBits - 1

	valueShift = keyShift + keyBits
	valueBits  = 15
	valueMask  = 1<<valueBits - 1

	// typeBits must cover every ids.MsgType value (Insert..Abort is 5
	// values, so 2 bits truncates MsgAbort back onto MsgInsert); 3 bits
	// leaves room to grow to 8 message types without repacking.
	typeShift = valueShift + valueBits
	typeBits  = 3
	typeMask  = 1<<typeBits - 1
)

// entryOverhead is the fixed, non-payload cost of one entry, used for
// buffer memsize accounting.
const entryOverhead = 4 + 4 + 4 + 8 + 16

// T is a single message, kept sorted inside a node's buffer.
type T struct {
	Prefix [4]byte // first four bytes of the key, for fast rejects

	kvt    uint32 // bitpacked key length / value length / msg type
	offset uint32 // offset of key+value inside the owning buffer

	MSN  ids.MSN
	XIDs ids.XIDPair
}

// New builds an entry for a key/value pair stored at offset in some buffer.
func New(key, value []byte, typ ids.MsgType, offset uint32, msn ids.MSN, xids ids.XIDPair) T {
	var prefix [4]byte
	copy(prefix[:], key)

	kvt := uint32(len(key)&keyMask)<<keyShift |
		uint32(len(value)&valueMask)<<valueShift |
		uint32(uint8(typ)&typeMask)<<typeShift

	return T{
		Prefix: prefix,
		kvt:    kvt,
		offset: offset,
		MSN:    msn,
		XIDs:   xids,
	}
}

// KeyLen returns how many bytes of key there are.
func (e T) KeyLen() uint32 { return (e.kvt >> keyShift) & keyMask }

// ValueLen returns how many bytes of value there are.
func (e T) ValueLen() uint32 { return (e.kvt >> valueShift) & valueMask }

// Type returns the message type of the entry.
func (e T) Type() ids.MsgType { return ids.MsgType((e.kvt >> typeShift) & typeMask) }

// Tombstone reports whether applying the entry deletes its key.
func (e T) Tombstone() bool { return e.Type() == ids.MsgDelete }

// Offset returns the offset of the entry's key+value in its buffer.
func (e T) Offset() uint32 { return e.offset }

// ReadKey returns the slice of buf holding the entry's key.
func (e T) ReadKey(buf []byte) []byte {
	return buf[e.offset : e.offset+e.KeyLen()]
}

// ReadValue returns the slice of buf holding the entry's value.
func (e T) ReadValue(buf []byte) []byte {
	start := e.offset + e.KeyLen()
	return buf[start : start+e.ValueLen()]
}

// Size estimates the in-memory footprint of the entry, including its key
// and value bytes, for a buffer's memsize accounting.
func (e T) Size() uint32 {
	return entryOverhead + e.KeyLen() + e.ValueLen()
}
