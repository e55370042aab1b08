package buftree

import "buftree/internal/ids"

// Cmd is a single versioned write entering the tree: a key/value pair
// stamped with a message sequence number, a message type, and the
// transaction ids (if any) that produced it. A Cmd is formed once, at
// the root, and travels unmodified down to whichever node eventually
// absorbs it.
type Cmd struct {
	MSN   ids.MSN
	Type  ids.MsgType
	Key   []byte
	Value []byte
	XIDs  ids.XIDPair
}

// newCmd builds a command for key/value with the next MSN allocated
// from hdr, stamped with xids (ids.XIDPair{} if there is no transaction).
func newCmd(hdr *Hdr, typ ids.MsgType, key, value []byte, xids ids.XIDPair) Cmd {
	return Cmd{
		MSN:   hdr.NextMSN(),
		Type:  typ,
		Key:   key,
		Value: value,
		XIDs:  xids,
	}
}
