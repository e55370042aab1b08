// Package cache is a reference implementation of the page cache the tree
// treats as an external collaborator (§1, §6): pin/unpin with latch
// acquisition, LRU eviction of unpinned nodes, dirty writeback through a
// pluggable Callbacks, and on-miss fetch. It exists so the write path can
// be exercised end to end in tests; the spec only requires the core to
// consume the Cache interface, not to own this implementation.
//
// Grounded on the teacher's caches/lru package (left as a one-line TODO
// stub in the copied tree) and on its cache.go/lease.go pinning pattern,
// completed here with real LRU bookkeeping over container/list.
package cache

import (
	"container/list"
	"sync"

	"github.com/rs/zerolog"
	"github.com/zeebo/errs"

	"buftree/internal/ids"
	"buftree/internal/node"
	"buftree/internal/striped"
	"buftree/io"
	"buftree/lease"
)

// Error is the class that contains all errors from this package.
var Error = errs.Class("cache")

// Callbacks is the tree's serialization collaborator: fetching a node by
// id on a cache miss, and flushing a dirty node back to disk on eviction
// or explicit Flush.
type Callbacks interface {
	FetchNode(nid ids.NID) (*node.T, error)
	FlushNode(n *node.T) error
}

type entry struct {
	nid  ids.NID
	n    *node.T
	pins int
	elem *list.Element
}

// shard is one of striped.Count independent pin tables. Splitting the
// cache this way means an operation on one NID never blocks behind an
// unrelated one hashing to a different shard.
type shard struct {
	mu       sync.Mutex
	capacity int
	entries  map[ids.NID]*entry
	order    *list.List // front = most recently used
}

// T is an in-memory pinning cache over a disk and its serialization
// callbacks. It is safe for concurrent use.
type T struct {
	disk    io.Disk
	cb      Callbacks
	nextNID func() ids.NID
	log     zerolog.Logger

	shards [striped.Count]*shard
}

// New returns a cache of the given capacity (in nodes, not bytes) backed
// by disk. The capacity is divided evenly across striped.Count shards,
// each holding at least one node, and eviction happens per shard.
// nextNID allocates fresh node ids on node creation; it is normally the
// tree's header NID counter.
func New(capacity int, disk io.Disk, cb Callbacks, nextNID func() ids.NID) *T {
	return NewWithLogger(capacity, disk, cb, nextNID, zerolog.Nop())
}

// NewWithLogger is New with an explicit logger for eviction diagnostics.
func NewWithLogger(capacity int, disk io.Disk, cb Callbacks, nextNID func() ids.NID, log zerolog.Logger) *T {
	t := &T{disk: disk, cb: cb, nextNID: nextNID, log: log}
	perShard := capacity / striped.Count
	if perShard < 1 {
		perShard = 1
	}
	for i := range t.shards {
		t.shards[i] = &shard{
			capacity: perShard,
			entries:  make(map[ids.NID]*entry),
			order:    list.New(),
		}
	}
	return t
}

func (t *T) shardFor(nid ids.NID) *shard {
	return t.shards[striped.Index(nid)]
}

// Disk returns the backing disk of the cache.
func (t *T) Disk() io.Disk { return t.disk }

func (s *shard) touch(e *entry) {
	s.order.MoveToFront(e.elem)
}

// CreateAndPin allocates a fresh NID, constructs an in-memory node of the
// given shape, and pins it in write mode. A height of zero creates a
// leaf; otherwise an interior node with the given pivots/parts.
func (t *T) CreateAndPin(height uint32, pivots [][]byte, parts []node.Partition) (lease.T, error) {
	nid := t.nextNID()

	var n *node.T
	if height == 0 {
		n = node.NewLeaf(nid)
	} else {
		n = node.NewInterior(nid, height, pivots, parts)
	}
	n.SetDirty()
	n.Latch.Lock()

	s := t.shardFor(nid)
	s.mu.Lock()
	e := &entry{nid: nid, n: n, pins: 1}
	e.elem = s.order.PushFront(e)
	s.entries[nid] = e
	s.mu.Unlock()

	return lease.New(n, nid, lease.LockWrite, t.release), nil
}

// CreateShellAndPin allocates a fresh NID and pins a bare node shell of
// the given height in write mode: a proper empty leaf if height is
// zero, or an interior node with no pivots/parts yet otherwise. It
// exists for the split engine, which needs an empty sibling to populate
// in place (splitInterior assigns Pivots/Parts directly) before
// CreateAndPin's shape invariants could be satisfied.
func (t *T) CreateShellAndPin(height uint32) (lease.T, error) {
	nid := t.nextNID()

	var n *node.T
	if height == 0 {
		n = node.NewLeaf(nid)
	} else {
		n = &node.T{NID: nid, Height: height}
	}
	n.SetDirty()
	n.Latch.Lock()

	s := t.shardFor(nid)
	s.mu.Lock()
	e := &entry{nid: nid, n: n, pins: 1}
	e.elem = s.order.PushFront(e)
	s.entries[nid] = e
	s.mu.Unlock()

	return lease.New(n, nid, lease.LockWrite, t.release), nil
}

// GetAndPin fetches (if absent) the node for nid and pins it under lock.
func (t *T) GetAndPin(nid ids.NID, lock lease.LockType) (lease.T, error) {
	s := t.shardFor(nid)

	s.mu.Lock()
	if e, ok := s.entries[nid]; ok {
		e.pins++
		s.touch(e)
		s.mu.Unlock()

		t.latchFor(e.n, lock)
		return lease.New(e.n, nid, lock, t.release), nil
	}
	s.mu.Unlock()

	n, err := t.cb.FetchNode(nid)
	if err != nil {
		return lease.T{}, Error.Wrap(err)
	}
	if n == nil {
		return lease.T{}, Error.New("no node for nid %d", nid)
	}

	s.mu.Lock()
	// another goroutine may have fetched the same node concurrently.
	if e, ok := s.entries[nid]; ok {
		e.pins++
		s.touch(e)
		s.mu.Unlock()

		t.latchFor(e.n, lock)
		return lease.New(e.n, nid, lock, t.release), nil
	}
	e := &entry{nid: nid, n: n, pins: 1}
	e.elem = s.order.PushFront(e)
	s.entries[nid] = e
	s.mu.Unlock()

	t.latchFor(n, lock)
	return lease.New(n, nid, lock, t.release), nil
}

func (t *T) latchFor(n *node.T, lock lease.LockType) {
	if lock == lease.LockWrite {
		n.Latch.Lock()
	} else {
		n.Latch.RLock()
	}
}

func (t *T) unlatchFor(n *node.T, lock lease.LockType) {
	if lock == lease.LockWrite {
		n.Latch.Unlock()
	} else {
		n.Latch.RUnlock()
	}
}

// release is the lease callback invoked by lease.T.Close: it releases the
// node's latch and decrements the pin count, evicting opportunistically
// if the cache is over capacity.
func (t *T) release(n *node.T, nid ids.NID, lock lease.LockType) error {
	t.unlatchFor(n, lock)

	s := t.shardFor(nid)
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[nid]
	if !ok {
		return Error.New("unpin of untracked nid %d", nid)
	}
	e.pins--
	t.evictLocked(s)
	return nil
}

// evictLocked drops unpinned nodes from the back of s's LRU list until
// the shard is back at capacity, flushing dirty nodes first. Eviction is
// opportunistic: a flush failure just skips that candidate this round
// rather than failing the unpin that triggered it.
func (t *T) evictLocked(s *shard) {
	from := s.order.Back()
	for s.order.Len() > s.capacity {
		victim := findEvictableLocked(from)
		if victim == nil {
			return
		}
		from = victim.elem.Prev()
		if victim.n.Dirty() {
			if err := t.cb.FlushNode(victim.n); err != nil {
				t.log.Warn().Uint64("nid", uint64(victim.nid)).Err(err).Msg("eviction flush failed, node stays resident")
				continue
			}
			victim.n.ClearDirty()
		}
		s.order.Remove(victim.elem)
		delete(s.entries, victim.nid)
	}
}

func findEvictableLocked(from *list.Element) *entry {
	for e := from; e != nil; e = e.Prev() {
		cand := e.Value.(*entry)
		if cand.pins == 0 {
			return cand
		}
	}
	return nil
}

// SwapIdentities exchanges the NIDs of the nodes held by a and b and
// their cache-entry bindings, so that each of a.NID()/b.NID() continues
// to resolve (via GetAndPin) to the node that logically lives there, even
// though the physical *node.T values traded places. Used by the root
// split to keep the root's NID stable across a split.
func (t *T) SwapIdentities(a, b *lease.T) error {
	sa, sb := t.shardFor(a.NID()), t.shardFor(b.NID())

	// lock shards in a fixed order to avoid deadlocking against a
	// concurrent swap of the same pair in the opposite direction.
	if sa == sb {
		sa.mu.Lock()
		defer sa.mu.Unlock()
	} else if striped.Index(a.NID()) < striped.Index(b.NID()) {
		sa.mu.Lock()
		defer sa.mu.Unlock()
		sb.mu.Lock()
		defer sb.mu.Unlock()
	} else {
		sb.mu.Lock()
		defer sb.mu.Unlock()
		sa.mu.Lock()
		defer sa.mu.Unlock()
	}

	ea, ok := sa.entries[a.NID()]
	if !ok {
		return Error.New("swap: nid %d not pinned", a.NID())
	}
	eb, ok := sb.entries[b.NID()]
	if !ok {
		return Error.New("swap: nid %d not pinned", b.NID())
	}

	ea.n.NID, eb.n.NID = eb.n.NID, ea.n.NID
	sa.entries[a.NID()], sb.entries[b.NID()] = eb, ea
	ea.nid, eb.nid = b.NID(), a.NID()

	// ea now lives logically in sb (keyed at b.NID()) and eb in sa
	// (keyed at a.NID()); their list.Elements belong to whichever order
	// list they were originally pushed onto, which is the wrong one
	// whenever the nids hash to different shards. Relocate both so
	// shard.touch and findEvictableLocked keep walking a list that
	// actually matches that shard's entries map.
	if sa != sb {
		sa.order.Remove(ea.elem)
		sb.order.Remove(eb.elem)
		ea.elem = sb.order.PushFront(ea)
		eb.elem = sa.order.PushFront(eb)
	}
	return nil
}

// Flush writes back every dirty node remaining in the cache, pinned or
// not.
func (t *T) Flush() error {
	for _, s := range t.shards {
		s.mu.Lock()
		for _, e := range s.entries {
			if e.n.Dirty() {
				if err := t.cb.FlushNode(e.n); err != nil {
					s.mu.Unlock()
					return Error.Wrap(err)
				}
				e.n.ClearDirty()
			}
		}
		s.mu.Unlock()
	}
	return nil
}
