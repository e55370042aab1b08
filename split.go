package buftree

import (
	"sync/atomic"

	"github.com/zeebo/mon"

	"buftree/internal/cache"
	"buftree/internal/debug"
	"buftree/internal/ids"
	"buftree/internal/node"
	"buftree/internal/node/msgbuf"
	"buftree/lease"
)

// splitChildThunk and rootSplitThunk time the two split entry points at
// a finer grain than Stats.PutLatency: useful when a profile needs to
// distinguish "a put was slow because it split" from "a put was slow
// for some other reason."
var splitChildThunk, rootSplitThunk mon.Thunk

// splitLeaf partitions a's sole buffer by iteration-order median into a
// (kept in place) and b (a fresh leaf, already pinned by the caller),
// per §4.2: mid = count/2, and the mid-th key becomes the split key --
// the first key routed to b.
//
// Open question #1 from the source flagged the original's leaf-split
// loop as double-advancing two nested iterators; the single pass below
// is the corrected semantics. |A|+|B| always equals the original count,
// and splitKey is exactly the first key appended to b.
func splitLeaf(a, b *node.T) []byte {
	debug.Assert("splitLeaf requires two leaves", func() bool { return a.IsLeaf() && b.IsLeaf() })

	mid := a.Buffer.Count() / 2
	newA, newB := msgbuf.New(), msgbuf.New()
	var splitKey []byte

	it := a.Buffer.Iterator()
	for i := 0; it.Next(); i++ {
		ent := it.Entry()
		if i < mid {
			newA.Append(it.Key(), it.Value(), ent.Type(), ent.MSN, ent.XIDs)
			continue
		}
		if splitKey == nil {
			splitKey = append([]byte(nil), it.Key()...)
		}
		newB.Append(it.Key(), it.Value(), ent.Type(), ent.MSN, ent.XIDs)
	}

	a.Buffer = newA
	b.Buffer = newB
	a.SetDirty()
	b.SetDirty()
	return splitKey
}

// splitInterior divides a's own pivots/parts between a (kept in place)
// and b (a fresh interior node of the same height, already pinned by
// the caller), per §4.2.
//
// in_a + in_b == pivots_old, so a ends with in_a+1 children and b with
// in_b+1: one more combined child than a had before the split. That
// extra slot is intentional, not a leak: the boundary child at the old
// index in_a is kept in both halves. b adopts it with its real,
// possibly nonempty buffer; a's copy of the same child gets a fresh
// empty buffer. Once splitKey is installed as the pivot separating a
// and b in their parent (addPivotToParent), every key that would route
// to a's duplicate slot is >= splitKey and so is routed to b before
// ever reaching a -- a's copy stays reachable in principle but is never
// touched again.
func splitInterior(a, b *node.T) []byte {
	debug.Assert("splitInterior requires two interior nodes", func() bool { return !a.IsLeaf() && !b.IsLeaf() })

	pivotsOld := len(a.Pivots)
	debug.Assert("interior split requires pivots_old > 2", func() bool { return pivotsOld > 2 })

	inA := pivotsOld / 2

	b.Height = a.Height
	b.Pivots = append([][]byte(nil), a.Pivots[inA:]...)
	b.Parts = append([]node.Partition(nil), a.Parts[inA:]...)

	splitKey := append([]byte(nil), a.Pivots[inA-1]...)
	boundary := a.Parts[inA].ChildNID

	a.Pivots = a.Pivots[:inA]
	a.Parts = a.Parts[:inA+1]
	a.Parts[inA] = node.NewPartition(boundary)

	a.SetDirty()
	b.SetDirty()
	return splitKey
}

// addPivotToParent installs the result of splitting parent's child at
// index childNum -- the split produced aNID/bNID and splitKey -- into
// parent's own pivots/parts (§4.2, "Add pivot to parent"): grown by one
// slot, shifted right from childNum. The new slot at childNum keeps
// aNID with a fresh empty buffer; the slot at childNum+1 takes bNID and
// inherits the buffer that used to live at parent.Parts[childNum].
// Messages already addressed to the child before it split remain
// correctly targeted regardless of which side of the split they key to:
// the flush's MSN filter re-checks against the child's own msn_high
// once the buffer is actually drained.
func addPivotToParent(parent *node.T, childNum int, aNID, bNID ids.NID, splitKey []byte) {
	debug.Assert("addPivotToParent requires an interior parent", func() bool { return !parent.IsLeaf() })

	oldBuf := parent.Parts[childNum].Buffer

	parent.Pivots = append(parent.Pivots, nil)
	copy(parent.Pivots[childNum+1:], parent.Pivots[childNum:])
	parent.Pivots[childNum] = splitKey

	parent.Parts = append(parent.Parts, node.Partition{})
	copy(parent.Parts[childNum+2:], parent.Parts[childNum+1:])

	parent.Parts[childNum] = node.NewPartition(aNID)

	bPart := node.NewPartition(bNID)
	bPart.Buffer = oldBuf
	parent.Parts[childNum+1] = bPart

	parent.SetDirty()
}

// createSibling pins a fresh, empty node shaped like a split's B side:
// a proper empty leaf for height zero, otherwise a bare interior shell
// for splitInterior to populate directly.
func createSibling(c *cache.T, height uint32) (lease.T, error) {
	if height == 0 {
		return c.CreateAndPin(0, nil, nil)
	}
	return c.CreateShellAndPin(height)
}

// splitChild splits the fissible child at index childNum of parent
// (already pinned write by the caller, who keeps its own pin on child)
// and installs the resulting pivot into parent.
func splitChild(c *cache.T, stats *Stats, parent *node.T, childNum int, child *node.T) error {
	timer := splitChildThunk.Start()
	defer timer.Stop()

	sib, err := createSibling(c, child.Height)
	if err != nil {
		return err
	}
	defer sib.Close()

	var splitKey []byte
	if child.IsLeaf() {
		splitKey = splitLeaf(child, sib.Node())
	} else {
		splitKey = splitInterior(child, sib.Node())
	}

	addPivotToParent(parent, childNum, child.NID, sib.Node().NID, splitKey)
	atomic.AddUint64(&stats.splits, 1)
	return nil
}

// rootSplit splits the current root (already pinned write as oldRoot)
// into two children of a freshly created interior node, then swaps the
// new node's identity with the old root's so hdr.RootNID never changes
// (§4.2 root split, §8 property 3). It unpins oldRoot and the new root
// on every path, matching the driver's "unpin old (now non-root) and
// unpin new_root" step.
func rootSplit(c *cache.T, hdr *Hdr, stats *Stats, oldRoot lease.T) error {
	timer := rootSplitThunk.Start()
	defer timer.Stop()

	old := oldRoot.Node()

	sib, err := createSibling(c, old.Height)
	if err != nil {
		oldRoot.Close()
		return err
	}

	var splitKey []byte
	if old.IsLeaf() {
		splitKey = splitLeaf(old, sib.Node())
	} else {
		splitKey = splitInterior(old, sib.Node())
	}

	newRoot, err := c.CreateAndPin(old.Height+1, [][]byte{splitKey}, []node.Partition{
		node.NewPartition(old.NID),
		node.NewPartition(sib.Node().NID),
	})
	if err != nil {
		sib.Close()
		oldRoot.Close()
		return err
	}

	if err := c.SwapIdentities(&oldRoot, &newRoot); err != nil {
		newRoot.Close()
		sib.Close()
		oldRoot.Close()
		return err
	}

	// the swap moved old onto the freshly allocated nid; partition 0 was
	// built with old's pre-swap nid, which now names the new root itself.
	newRoot.Node().Parts[0].ChildNID = old.NID

	old.IsRoot = false
	newRoot.Node().IsRoot = true
	hdr.SetHeight(old.Height + 1)
	atomic.AddUint64(&stats.splits, 1)

	if err := sib.Close(); err != nil {
		newRoot.Close()
		oldRoot.Close()
		return err
	}
	if err := newRoot.Close(); err != nil {
		oldRoot.Close()
		return err
	}
	return oldRoot.Close()
}
