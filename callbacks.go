package buftree

import (
	"buftree/internal/cache"
	"buftree/internal/ids"
)

// Callbacks is the tree's serialization collaborator (§6): node
// fetch/flush, consumed directly by the cache on miss and eviction, plus
// header fetch/flush, consumed by Open and Close. The on-disk layout
// itself -- the node/header codec, the block allocator, file I/O -- is
// out of this core's scope; Callbacks is only the seam it calls through.
type Callbacks interface {
	cache.Callbacks

	// FetchHdr loads the persisted header. A rootNID of ids.NIDNone
	// tells Open there is no existing tree and a fresh one should be
	// created.
	FetchHdr() (rootNID ids.NID, height uint32, lastNID ids.NID, lastMSN ids.MSN, compressMethod uint8, err error)

	// FlushHdr persists the header. It is not required to happen on
	// every operation; Open and Close call it at points where the
	// header must be durable before proceeding.
	FlushHdr(rootNID ids.NID, height uint32, lastNID ids.NID, lastMSN ids.MSN, compressMethod uint8) error
}
