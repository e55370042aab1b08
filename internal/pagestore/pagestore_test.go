package pagestore

import (
	"testing"

	"github.com/zeebo/assert"

	"buftree/internal/ids"
	"buftree/internal/memdisk"
	"buftree/internal/node"
)

func TestHdrRoundTripsThroughDisk(t *testing.T) {
	ps := New(memdisk.New(4096, 1<<20))

	rootNID, height, lastNID, lastMSN, method, err := ps.FetchHdr()
	assert.NoError(t, err)
	assert.Equal(t, rootNID, ids.NIDNone)

	assert.NoError(t, ps.FlushHdr(7, 2, 99, 123, 5))

	rootNID, height, lastNID, lastMSN, method, err = ps.FetchHdr()
	assert.NoError(t, err)
	assert.Equal(t, rootNID, ids.NID(7))
	assert.Equal(t, height, uint32(2))
	assert.Equal(t, lastNID, ids.NID(99))
	assert.Equal(t, lastMSN, ids.MSN(123))
	assert.Equal(t, method, uint8(5))
}

func TestNodeRoundTripsThroughDisk(t *testing.T) {
	ps := New(memdisk.New(4096, 1<<20))

	n := node.NewLeaf(ids.NIDStart)
	n.ApplyLeaf([]byte("a"), []byte("1"), ids.MsgInsert, 1, ids.XIDPair{})
	assert.NoError(t, ps.FlushNode(n))

	got, err := ps.FetchNode(ids.NIDStart)
	assert.NoError(t, err)
	assert.Equal(t, got.NID, n.NID)
	assert.Equal(t, got.BufferCount(), 1)

	_, err = ps.FetchNode(ids.NIDStart + 1)
	assert.Error(t, err)
}
