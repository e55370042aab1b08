// Package pagestore is a reference Callbacks implementation wiring
// internal/codec's node/header framing onto an io.Disk, so the two
// collaborators the rest of this tree only unit-tests in isolation have
// somewhere real to be exercised end to end: a tree opened against a
// pagestore round-trips through actual encode/decode and actual block
// reads/writes on every eviction, Open, and Close.
//
// The NID-to-block mapping is the simplest one that satisfies §6's
// "NIDs are stable across sessions" requirement: block 0 is reserved for
// the header, and node NID n lives at block n (ids.NIDStart is 1, so the
// two never collide). A production block allocator would reclaim blocks
// left behind by evicted/rewritten nodes; that allocator is explicitly
// out of this core's scope (§1), so pagestore never frees a block.
package pagestore

import (
	"github.com/zeebo/errs"

	"buftree/internal/codec"
	"buftree/internal/ids"
	"buftree/internal/node"
	"buftree/io"
)

// Error is the class that contains all errors from this package.
var Error = errs.Class("pagestore")

const hdrBlock = 0

// T adapts an io.Disk into the tree's Callbacks interface via
// internal/codec.
type T struct {
	disk io.Disk
}

// New returns a pagestore backed by disk.
func New(disk io.Disk) *T { return &T{disk: disk} }

// FetchNode implements cache.Callbacks.
func (t *T) FetchNode(nid ids.NID) (*node.T, error) {
	buf, err := t.disk.Read(int64(nid))
	if err != nil {
		return nil, Error.Wrap(err)
	}
	if buf == nil {
		return nil, Error.New("no node for nid %d", nid)
	}
	n, err := codec.DecodeNode(buf)
	if err != nil {
		return nil, Error.Wrap(err)
	}
	return n, nil
}

// FlushNode implements cache.Callbacks.
func (t *T) FlushNode(n *node.T) error {
	return Error.Wrap(t.disk.Write(int64(n.NID), codec.EncodeNode(n)))
}

// FetchHdr implements buftree.Callbacks. A nil block (never written)
// reports ids.NIDNone as the root, which tells Tree.Open to create a
// fresh tree instead of reopening one.
func (t *T) FetchHdr() (rootNID ids.NID, height uint32, lastNID ids.NID, lastMSN ids.MSN, compressMethod uint8, err error) {
	buf, err := t.disk.Read(hdrBlock)
	if err != nil {
		return 0, 0, 0, 0, 0, Error.Wrap(err)
	}
	if buf == nil {
		return ids.NIDNone, 0, ids.NIDNone, ids.MSNNone, 0, nil
	}
	rootNID, height, lastNID, lastMSN, compressMethod, err = codec.DecodeHdr(buf)
	if err != nil {
		return 0, 0, 0, 0, 0, Error.Wrap(err)
	}
	return rootNID, height, lastNID, lastMSN, compressMethod, nil
}

// FlushHdr implements buftree.Callbacks.
func (t *T) FlushHdr(rootNID ids.NID, height uint32, lastNID ids.NID, lastMSN ids.MSN, compressMethod uint8) error {
	buf := codec.EncodeHdr(rootNID, height, lastNID, lastMSN, compressMethod)
	return Error.Wrap(t.disk.Write(hdrBlock, buf))
}
