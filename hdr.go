package buftree

import "buftree/internal/ids"

// Hdr is the tree's persisted header: the root's stable identity, the
// tree's height, and the two monotonic counters every NID and MSN are
// allocated from. Per the design note on global counters, NextNID and
// NextMSN are atomic fetch-adds rather than anything requiring a lock,
// since they're on the hot path of every put.
type Hdr struct {
	rootNID atomicU64
	height  atomicU32
	lastNID atomicU64
	lastMSN atomicU64

	// CompressMethod is persisted verbatim; the compression scheme
	// itself is an external collaborator out of this core's scope.
	CompressMethod uint8
}

// NewHdr builds a header from its persisted fields, as returned by a
// Callbacks.FetchHdr on reopen or synthesized fresh by Open.
func NewHdr(rootNID ids.NID, height uint32, lastNID ids.NID, lastMSN ids.MSN, compressMethod uint8) *Hdr {
	h := &Hdr{CompressMethod: compressMethod}
	h.rootNID.store(uint64(rootNID))
	h.height.store(height)
	h.lastNID.store(uint64(lastNID))
	h.lastMSN.store(uint64(lastMSN))
	return h
}

// RootNID returns the tree's root nid. It is invariant from open to
// free except for the one-time initial assignment at tree creation;
// root splits swap node identities instead of changing this value (see
// split.go).
func (h *Hdr) RootNID() ids.NID { return ids.NID(h.rootNID.load()) }

// Height returns the tree's current height.
func (h *Hdr) Height() uint32 { return h.height.load() }

// SetHeight updates the tree's height. Callers must hold the root's
// write latch, per the concurrency model's rule that height is updated
// either atomically (here) or under that latch, never both at once
// without one covering the other.
func (h *Hdr) SetHeight(height uint32) { h.height.store(height) }

// bindRoot assigns the tree's root nid. It is unexported and called
// exactly once, by Open's fresh-tree path, right after the initial root
// leaf is created: from then on hdr.RootNID is otherwise invariant for
// the tree's lifetime (invariant 3), so nothing else in the package
// gets to move it.
func (h *Hdr) bindRoot(nid ids.NID) { h.rootNID.store(uint64(nid)) }

// LastNID returns the most recently allocated nid.
func (h *Hdr) LastNID() ids.NID { return ids.NID(h.lastNID.load()) }

// LastMSN returns the most recently allocated msn.
func (h *Hdr) LastMSN() ids.MSN { return ids.MSN(h.lastMSN.load()) }

// NextNID allocates and returns a fresh, monotonically increasing nid.
func (h *Hdr) NextNID() ids.NID { return ids.NID(h.lastNID.add(1)) }

// NextMSN allocates and returns a fresh, monotonically increasing msn.
// Every applied write has a unique MSN because this is the only path
// that produces one.
func (h *Hdr) NextMSN() ids.MSN { return ids.MSN(h.lastMSN.add(1)) }

// Snapshot returns the fields needed to persist the header, for a
// Callbacks.FlushHdr implementation.
func (h *Hdr) Snapshot() (rootNID ids.NID, height uint32, lastNID ids.NID, lastMSN ids.MSN, compressMethod uint8) {
	return h.RootNID(), h.Height(), h.LastNID(), h.LastMSN(), h.CompressMethod
}
