// Package striped picks a shard index for a NID. It backs the reference
// cache's sharded pin table: splitting one global map+lock into several
// independent ones cuts contention between unrelated Get/Unpin calls,
// the same way the tree itself only ever serializes access through the
// node whose NID is in play.
//
// Grounded on the teacher's go.mod, which lists cespare/xxhash but never
// imports it anywhere in the copied tree; this gives that dependency a
// concrete home instead of dropping it.
package striped

import (
	"encoding/binary"

	"github.com/cespare/xxhash"

	"buftree/internal/ids"
)

// Count is the number of shards a striped table is split into.
const Count = 16

// Index returns the shard index for nid, in [0, Count).
func Index(nid ids.NID) int {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], uint64(nid))
	return int(xxhash.Sum64(b[:]) % Count)
}
