package codec

import (
	"encoding/binary"

	"buftree/internal/ids"
	"buftree/internal/node/msgbuf"
)

func appendUint32(buf []byte, v uint32) []byte {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)
	return append(buf, b[:]...)
}

func appendUint64(buf []byte, v uint64) []byte {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], v)
	return append(buf, b[:]...)
}

func appendBool(buf []byte, v bool) []byte {
	if v {
		return append(buf, 1)
	}
	return append(buf, 0)
}

func appendBytes(buf, v []byte) []byte {
	buf = appendUint32(buf, uint32(len(v)))
	return append(buf, v...)
}

func appendBuffer(buf []byte, mb *msgbuf.T) []byte {
	buf = appendUint32(buf, uint32(mb.Count()))
	it := mb.Iterator()
	for it.Next() {
		ent := it.Entry()
		buf = appendBytes(buf, it.Key())
		buf = appendBytes(buf, it.Value())
		buf = append(buf, byte(ent.Type()))
		buf = appendUint64(buf, uint64(ent.MSN))
		buf = appendUint64(buf, uint64(ent.XIDs.Child))
		buf = appendUint64(buf, uint64(ent.XIDs.Parent))
	}
	return buf
}

// reader walks a byte slice left to right, recording the first error
// encountered so call sites don't need to check after every field.
type reader struct {
	buf []byte
	err error
}

func (r *reader) take(n int) []byte {
	if r.err != nil || len(r.buf) < n {
		if r.err == nil {
			r.err = Error.New("unexpected end of buffer")
		}
		return nil
	}
	out := r.buf[:n]
	r.buf = r.buf[n:]
	return out
}

func (r *reader) uint32() uint32 {
	b := r.take(4)
	if b == nil {
		return 0
	}
	return binary.BigEndian.Uint32(b)
}

func (r *reader) uint64() uint64 {
	b := r.take(8)
	if b == nil {
		return 0
	}
	return binary.BigEndian.Uint64(b)
}

func (r *reader) bool() bool {
	b := r.take(1)
	return len(b) == 1 && b[0] == 1
}

func (r *reader) bytes() []byte {
	n := r.uint32()
	return append([]byte(nil), r.take(int(n))...)
}

func readBuffer(r *reader, mb *msgbuf.T) {
	count := int(r.uint32())
	for i := 0; i < count; i++ {
		key := r.bytes()
		value := r.bytes()
		typByte := r.take(1)
		msn := ids.MSN(r.uint64())
		xids := ids.XIDPair{Child: ids.TxnID(r.uint64()), Parent: ids.TxnID(r.uint64())}
		if r.err != nil {
			return
		}
		mb.Append(key, value, ids.MsgType(typByte[0]), msn, xids)
	}
}
