package buftree

import (
	"buftree/internal/ids"
	"buftree/lease"
)

// Get is a best-effort point lookup, supplemented beyond the write path
// this package is otherwise scoped to (reads are explicitly deferred by
// the design this implements). It walks from the root toward the
// owning leaf, and at every interior node along the way considers that
// node's own partition buffer for key in addition to descending further:
// a message for key may still be sitting in an ancestor's buffer,
// not yet flushed down, and whichever candidate carries the highest MSN
// wins regardless of which level it was found at.
//
// Get takes only read latches; it never splits or flushes, so it never
// observes a torn structural change, but it also does no MVCC-style
// snapshotting -- a concurrent put may or may not be visible depending
// on exactly when Get's walk reaches the level that put touched.
func (t *T) Get(key []byte) (value []byte, ok bool, err error) {
	var (
		bestMSN   ids.MSN
		bestValue []byte
		bestType  ids.MsgType
		found     bool
	)

	nid := t.hdr.RootNID()
	for {
		n, err := t.cache.GetAndPin(nid, lease.LockRead)
		if err != nil {
			return nil, false, Error.Wrap(err)
		}
		node := n.Node()

		if node.IsLeaf() {
			if ent, v, ok := node.Buffer.Lookup(key); ok && (!found || ent.MSN > bestMSN) {
				bestMSN, bestValue, bestType, found = ent.MSN, v, ent.Type(), true
			}
			if err := n.Close(); err != nil {
				return nil, false, Error.Wrap(err)
			}
			break
		}

		pidx := node.PartitionIndex(key)
		part := &node.Parts[pidx]
		if ent, v, ok := part.Buffer.Lookup(key); ok && (!found || ent.MSN > bestMSN) {
			bestMSN, bestValue, bestType, found = ent.MSN, v, ent.Type(), true
		}
		childNID := part.ChildNID

		if err := n.Close(); err != nil {
			return nil, false, Error.Wrap(err)
		}
		nid = childNID
	}

	if !found || bestType == ids.MsgDelete {
		return nil, false, nil
	}
	return bestValue, true, nil
}
