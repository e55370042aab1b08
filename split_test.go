package buftree

import (
	"testing"

	"github.com/zeebo/assert"

	"buftree/internal/ids"
	"buftree/internal/node"
)

func TestSplitLeafMedianAndSplitKey(t *testing.T) {
	a := node.NewLeaf(ids.NIDStart)
	b := node.NewLeaf(ids.NIDStart + 1)

	keys := []string{"a", "b", "c", "d", "e"}
	for i, k := range keys {
		a.ApplyLeaf([]byte(k), []byte(k), ids.MsgInsert, ids.MSN(i+1), ids.XIDPair{})
	}

	splitKey := splitLeaf(a, b)

	// |A| + |B| = |original| (property from open question #1).
	assert.Equal(t, a.Buffer.Count()+b.Buffer.Count(), len(keys))
	assert.Equal(t, a.Buffer.Count(), len(keys)/2)

	// splitKey is exactly the first key routed to b.
	it := b.Buffer.Iterator()
	assert.That(t, it.Next())
	assert.Equal(t, string(it.Key()), string(splitKey))

	assert.That(t, a.Dirty())
	assert.That(t, b.Dirty())
}

func TestSplitInteriorDuplicatesBoundaryChild(t *testing.T) {
	parts := []node.Partition{
		node.NewPartition(10), node.NewPartition(11),
		node.NewPartition(12), node.NewPartition(13),
	}
	parts[1].Buffer.Append([]byte("c"), []byte("1"), ids.MsgInsert, 1, ids.XIDPair{})
	pivots := [][]byte{[]byte("b"), []byte("m"), []byte("t")}
	a := node.NewInterior(ids.NIDStart, 1, pivots, parts)
	b := &node.T{NID: ids.NIDStart + 1, Height: 1}

	splitKey := splitInterior(a, b)

	// in_a = pivots_old/2 = 3/2 = 1: a keeps 2 children, b keeps 3,
	// one more combined child than the original 4 -- the boundary
	// child at the old index in_a is duplicated across both halves.
	assert.Equal(t, a.NChildren(), 2)
	assert.Equal(t, b.NChildren(), 3)
	assert.Equal(t, string(splitKey), "b")

	// a's copy of the boundary child got a fresh empty buffer; b's
	// copy kept the real one.
	assert.That(t, a.Parts[1].Buffer.Empty())
	assert.That(t, !b.Parts[0].Buffer.Empty())
	assert.Equal(t, a.Parts[1].ChildNID, ids.NID(11))
	assert.Equal(t, b.Parts[0].ChildNID, ids.NID(11))
}

func TestAddPivotToParentFreshBuffer(t *testing.T) {
	parts := []node.Partition{node.NewPartition(1), node.NewPartition(2)}
	parts[0].Buffer.Append([]byte("k"), []byte("v"), ids.MsgInsert, 1, ids.XIDPair{})
	parent := node.NewInterior(ids.NIDStart, 1, [][]byte{[]byte("m")}, parts)

	addPivotToParent(parent, 0, 100, 101, []byte("f"))

	assert.Equal(t, len(parent.Pivots), 2)
	assert.Equal(t, string(parent.Pivots[0]), "f")
	assert.Equal(t, string(parent.Pivots[1]), "m")
	assert.Equal(t, parent.NChildren(), 3)

	// property 7: the newly installed pivot's A-side partition starts
	// empty; the old buffer travels with the B-side partition.
	assert.That(t, parent.Parts[0].Buffer.Empty())
	assert.That(t, !parent.Parts[1].Buffer.Empty())
	assert.Equal(t, parent.Parts[0].ChildNID, ids.NID(100))
	assert.Equal(t, parent.Parts[1].ChildNID, ids.NID(101))
	assert.Equal(t, parent.Parts[2].ChildNID, ids.NID(2))
}
