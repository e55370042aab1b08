// Package lease implements the pin: a reference on a cache-resident node
// that keeps it from being evicted and records the latch mode it was
// fetched under, until Close releases both.
//
// Grounded directly on the teacher's lease.T, generalized from the
// teacher's single block/node pair to also remember the latch mode it
// was acquired with, since the write-path driver's lock-upgrade retry
// loop (see the root package's write path) needs to know whether it is
// holding a node for read or for write.
package lease

import (
	"buftree/internal/ids"
	"buftree/internal/node"
)

// LockType is the latch mode a lease was acquired with.
type LockType uint8

const (
	LockRead LockType = iota
	LockWrite
)

// String renders the lock type for logs and panics.
func (l LockType) String() string {
	if l == LockWrite {
		return "write"
	}
	return "read"
}

// T is a pin on a node, acquired from some nid under some lock mode. It is
// used to track how long a node is in use and under which latch mode.
type T struct {
	n    *node.T
	nid  ids.NID
	lock LockType
	cb   func(*node.T, ids.NID, LockType) error
}

// New constructs a lease for a node/nid that will have the callback
// called with the node/nid/locktype when Close is called.
func New(n *node.T, nid ids.NID, lock LockType, cb func(*node.T, ids.NID, LockType) error) T {
	return T{n: n, nid: nid, lock: lock, cb: cb}
}

// Zero reports whether the lease is the zero value.
func (t T) Zero() bool { return t.cb == nil }

// Node returns the node associated with the lease.
func (t T) Node() *node.T { return t.n }

// NID returns the node id the lease was acquired with.
//
// N.B. this may not be the node's current NID in the case of the root,
// whose identity can swap during a split (see the split engine); it is
// the id this particular pin was taken under.
func (t T) NID() ids.NID { return t.nid }

// Lock returns the latch mode the lease was acquired with.
func (t T) Lock() LockType { return t.lock }

// Close releases the resources associated with the lease, clearing it
// back to the zero value regardless of whether the callback errors.
func (t *T) Close() (err error) {
	if t.cb != nil {
		err = t.cb(t.n, t.nid, t.lock)
	}
	*t = T{}
	return err
}
