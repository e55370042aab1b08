package codec

import (
	"testing"

	"github.com/zeebo/assert"

	"buftree/internal/ids"
	"buftree/internal/node"
)

func TestHdrRoundTrip(t *testing.T) {
	buf := EncodeHdr(42, 3, 99, 123, 7)
	rootNID, height, lastNID, lastMSN, method, err := DecodeHdr(buf)
	assert.NoError(t, err)
	assert.Equal(t, rootNID, ids.NID(42))
	assert.Equal(t, height, uint32(3))
	assert.Equal(t, lastNID, ids.NID(99))
	assert.Equal(t, lastMSN, ids.MSN(123))
	assert.Equal(t, method, uint8(7))
}

func TestHdrCorruptionDetected(t *testing.T) {
	buf := EncodeHdr(1, 0, 1, 0, 0)
	buf[0] ^= 0xFF
	_, _, _, _, _, err := DecodeHdr(buf)
	assert.Error(t, err)
}

func TestLeafNodeRoundTrip(t *testing.T) {
	n := node.NewLeaf(5)
	n.ApplyLeaf([]byte("a"), []byte("1"), ids.MsgInsert, 1, ids.XIDPair{Child: 9})
	n.ApplyLeaf([]byte("b"), []byte("2"), ids.MsgDelete, 2, ids.XIDPair{})

	buf := EncodeNode(n)
	got, err := DecodeNode(buf)
	assert.NoError(t, err)

	assert.Equal(t, got.NID, n.NID)
	assert.Equal(t, got.Height, n.Height)
	assert.Equal(t, got.MSNHigh, n.MSNHigh)
	assert.Equal(t, got.BufferCount(), 2)

	it := got.Buffer.Iterator()
	assert.That(t, it.Next())
	assert.Equal(t, string(it.Key()), "a")
	assert.Equal(t, string(it.Value()), "1")
	assert.Equal(t, it.Entry().XIDs.Child, ids.TxnID(9))
}

func TestInteriorNodeRoundTrip(t *testing.T) {
	parts := []node.Partition{node.NewPartition(10), node.NewPartition(11)}
	n := node.NewInterior(2, 1, [][]byte{[]byte("m")}, parts)
	n.ApplyInterior(0, []byte("a"), []byte("1"), ids.MsgInsert, 1, ids.XIDPair{})

	buf := EncodeNode(n)
	got, err := DecodeNode(buf)
	assert.NoError(t, err)

	assert.Equal(t, len(got.Pivots), 1)
	assert.Equal(t, string(got.Pivots[0]), "m")
	assert.Equal(t, len(got.Parts), 2)
	assert.Equal(t, got.Parts[0].ChildNID, ids.NID(10))
	assert.Equal(t, got.Parts[0].Buffer.Count(), 1)
}
