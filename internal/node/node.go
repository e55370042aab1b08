// Package node implements the buffered tree's node model: leaves holding a
// single message buffer, and interior nodes holding n_children partitions
// each with its own child pointer and incoming message buffer, separated
// by n_children-1 pivot keys.
//
// Grounded on the teacher's internal/node.T: a single struct carrying a
// dirty flag, a byte buffer, and an in-memory index into it. We split that
// single shape into the leaf/interior dichotomy this spec calls for,
// dispatching on height == 0 per the design note in the original
// specification, and keep the teacher's buffer-plus-index idea (now
// msgbuf.T) for both the leaf's buffer and every interior partition's
// buffer.
package node

import (
	"bytes"
	"sort"
	"sync"

	"buftree/internal/debug"
	"buftree/internal/ids"
	"buftree/internal/node/msgbuf"
)

// Partition is one (child_nid, buffer) slot of an interior node. Lock
// guards only Buffer: appending a command to an interior node requires
// the node's latch in read mode plus this lock in write mode, which is
// what lets N writers append to N distinct partitions of one node
// concurrently (see T.Latch).
type Partition struct {
	ChildNID ids.NID
	Buffer   *msgbuf.T
	Lock     *sync.RWMutex
}

// NewPartition returns a fresh partition pointing at child with an empty
// buffer and an unlocked lock.
func NewPartition(child ids.NID) Partition {
	return Partition{ChildNID: child, Buffer: msgbuf.New(), Lock: new(sync.RWMutex)}
}

// T is a node in the buffered tree. Leaves have Height == 0 and use only
// Buffer; interior nodes have Height > 0 and use only Pivots/Parts.
//
// Nodes never reference their parent: flushing passes the parent down the
// call stack instead of following a back-edge, which fits the cache's
// arena-plus-index (NID) model and is why T has no Parent field.
type T struct {
	NID     ids.NID
	Height  uint32
	IsRoot  bool
	MSNHigh ids.MSN

	// Latch is the node's reader/writer latch. The cache acquires it in
	// the requested mode at pin time and releases it at unpin; it is
	// never held across a pin boundary.
	Latch sync.RWMutex

	dirty bool

	Buffer *msgbuf.T // leaf only

	Pivots [][]byte    // interior only, len == len(Parts)-1
	Parts  []Partition // interior only, len >= 2
}

// NewLeaf returns a freshly created, empty leaf node.
func NewLeaf(nid ids.NID) *T {
	return &T{NID: nid, Height: 0, Buffer: msgbuf.New()}
}

// NewInterior returns a freshly created interior node with the given
// height and children. len(pivots) must equal len(parts)-1.
func NewInterior(nid ids.NID, height uint32, pivots [][]byte, parts []Partition) *T {
	debug.Assert("interior node has height > 0", func() bool { return height > 0 })
	debug.Assert("n_children = n_pivots+1", func() bool { return len(parts) == len(pivots)+1 })
	debug.Assert("interior node has >= 2 children", func() bool { return len(parts) >= 2 })
	return &T{NID: nid, Height: height, Pivots: pivots, Parts: parts}
}

// IsLeaf reports whether the node is a leaf. Dispatch throughout the
// package is by height, per the node model's design note.
func (t *T) IsLeaf() bool { return t.Height == 0 }

// Dirty reports whether the node's in-memory state differs from the last
// persisted image.
func (t *T) Dirty() bool { return t.dirty }

// SetDirty marks the node as needing a writeback.
func (t *T) SetDirty() { t.dirty = true }

// ClearDirty marks the node as matching its last persisted image.
func (t *T) ClearDirty() { t.dirty = false }

// NChildren returns the number of children of an interior node.
func (t *T) NChildren() int { return len(t.Parts) }

// BumpMSNHigh advances MSNHigh to the max of its current value and msn,
// maintaining invariant (4): MSNHigh is monotonic non-decreasing.
func (t *T) BumpMSNHigh(msn ids.MSN) {
	if msn > t.MSNHigh {
		t.MSNHigh = msn
	}
}

// PartitionIndex returns the index of the partition whose keyspace
// contains key: the smallest i such that key < Pivots[i], or the last
// partition if key is >= every pivot. Binary search over pivots, which
// invariant (1) guarantees are strictly increasing.
func (t *T) PartitionIndex(key []byte) int {
	debug.Assert("PartitionIndex requires an interior node", func() bool { return !t.IsLeaf() })
	i := sort.Search(len(t.Pivots), func(i int) bool {
		return bytes.Compare(key, t.Pivots[i]) < 0
	})
	return i
}

// HeaviestPartition returns the index of the partition with the largest
// buffered byte size, used by the flush engine to pick a drain target.
func (t *T) HeaviestPartition() int {
	debug.Assert("HeaviestPartition requires an interior node", func() bool { return !t.IsLeaf() })
	best, bestSize := 0, uint32(0)
	for i, p := range t.Parts {
		if sz := p.Buffer.MemSize(); sz > bestSize {
			best, bestSize = i, sz
		}
	}
	return best
}

// HasEmptyChildBuffer reports whether any partition's buffer is empty,
// used by the reactivity classifier's flush-avoidance guard.
func (t *T) HasEmptyChildBuffer() bool {
	for _, p := range t.Parts {
		if p.Buffer.Empty() {
			return true
		}
	}
	return false
}

// BufferCount returns the total number of messages buffered at the node:
// the leaf's single buffer, or the sum across all interior partitions.
func (t *T) BufferCount() int {
	if t.IsLeaf() {
		return t.Buffer.Count()
	}
	n := 0
	for _, p := range t.Parts {
		n += p.Buffer.Count()
	}
	return n
}

// BufferBytes returns the total estimated byte size buffered at the node.
func (t *T) BufferBytes() uint32 {
	if t.IsLeaf() {
		return t.Buffer.MemSize()
	}
	var n uint32
	for _, p := range t.Parts {
		n += p.Buffer.MemSize()
	}
	return n
}

// ApplyLeaf appends a message directly to a leaf's buffer and advances
// MSNHigh. Requires the node's latch held in write mode.
func (t *T) ApplyLeaf(key, value []byte, typ ids.MsgType, msn ids.MSN, xids ids.XIDPair) {
	debug.Assert("ApplyLeaf requires a leaf node", func() bool { return t.IsLeaf() })
	t.Buffer.Append(key, value, typ, msn, xids)
	t.BumpMSNHigh(msn)
	t.SetDirty()
}

// ApplyInterior appends a message to the partition that owns key. Callers
// must hold the node's latch in at least read mode and must acquire
// Parts[pidx].Lock in write mode around the call (nodePutCmd in the root
// package does so, once per command); ApplyInterior itself does not
// touch the lock.
func (t *T) ApplyInterior(pidx int, key, value []byte, typ ids.MsgType, msn ids.MSN, xids ids.XIDPair) {
	debug.Assert("ApplyInterior requires an interior node", func() bool { return !t.IsLeaf() })
	t.Parts[pidx].Buffer.Append(key, value, typ, msn, xids)
	t.BumpMSNHigh(msn)
	t.SetDirty()
}
