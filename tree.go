// Package buftree implements the core of a write-optimized, on-disk,
// ordered key-value storage engine based on a buffered tree: a B-tree
// variant that buffers pending messages at interior nodes and flushes
// them lazily toward leaves. Every write enters at the root as a
// versioned command and is carried toward a leaf by the flush engine as
// interior nodes fill past their configured thresholds.
//
// The page cache, on-disk block allocator, node serialization codec,
// and transaction manager are external collaborators; this package
// consumes their interfaces (Callbacks, TxnManager) and otherwise only
// ships reference implementations of them (internal/cache, internal/codec,
// internal/memdisk, internal/filedisk) for tests and examples to exercise
// the write path end to end.
package buftree

import (
	"reflect"
	"sync/atomic"

	"github.com/rs/zerolog"
	"github.com/zeebo/errs"

	"buftree/internal/cache"
	"buftree/internal/ids"
	"buftree/internal/mon"
	"buftree/io"
	"buftree/lease"
)

// Error is the class that contains all errors from this package.
var Error = errs.Class("buftree")

// Stats holds the tree's status counters (§2, §6): per-operation
// latency histograms plus simple structural tallies. Every field is
// safe to read concurrently with writers.
type Stats struct {
	// PutLatency records the wall-clock duration of every Put call.
	PutLatency mon.Histogram
	// FlushLatency records the duration of every flush-some-child drain.
	FlushLatency mon.Histogram

	splits  uint64
	flushes uint64
}

// Splits returns how many node splits (leaf, interior, or root) have
// been performed.
func (s *Stats) Splits() uint64 { return atomic.LoadUint64(&s.splits) }

// Flushes returns how many flush-some-child drains have been performed.
func (s *Stats) Flushes() uint64 { return atomic.LoadUint64(&s.flushes) }

// T is a buffered tree.
type T struct {
	disk io.Disk
	cb   Callbacks
	opts Options

	hdr   *Hdr
	cache *cache.T
	txns  TxnManager

	fileNum uint64

	Stats Stats
}

// Open opens an existing tree backed by disk, or creates a fresh one if
// cb.FetchHdr reports none exists yet (a root nid of ids.NIDNone).
// fileNum identifies this tree to txns' rollback log; txns may be nil
// if Put is never called with a non-nil Txn.
func Open(disk io.Disk, cb Callbacks, opts Options, fileNum uint64, txns TxnManager) (*T, error) {
	rootNID, height, lastNID, lastMSN, compressMethod, err := cb.FetchHdr()
	if err != nil {
		return nil, Error.Wrap(err)
	}

	if reflect.DeepEqual(opts.Log, zerolog.Logger{}) {
		opts.Log = zerolog.Nop()
	}
	t := &T{disk: disk, cb: cb, opts: opts, txns: txns, fileNum: fileNum}

	if rootNID == ids.NIDNone {
		if err := t.openFresh(cb, compressMethod); err != nil {
			return nil, Error.Wrap(err)
		}
		return t, nil
	}

	t.hdr = NewHdr(rootNID, height, lastNID, lastMSN, compressMethod)
	t.cache = cache.NewWithLogger(opts.CacheCapacity, disk, cb, t.hdr.NextNID, opts.Log)

	root, err := t.cache.GetAndPin(rootNID, lease.LockWrite)
	if err != nil {
		return nil, Error.Wrap(err)
	}
	root.Node().IsRoot = true
	if err := root.Close(); err != nil {
		return nil, Error.Wrap(err)
	}
	opts.Log.Info().Uint64("root_nid", uint64(rootNID)).Uint32("height", height).Msg("opened existing tree")
	return t, nil
}

// openFresh initializes a brand-new tree: a header with height zero and
// counters at their starting values, and a single freshly pinned leaf
// that becomes the root (§4.5).
func (t *T) openFresh(cb Callbacks, compressMethod uint8) error {
	if compressMethod == 0 {
		compressMethod = t.opts.CompressMethod
	}
	t.hdr = NewHdr(ids.NIDNone, 0, ids.NIDNone, ids.MSNNone, compressMethod)
	t.cache = cache.NewWithLogger(t.opts.CacheCapacity, t.disk, cb, t.hdr.NextNID, t.opts.Log)

	root, err := t.cache.CreateAndPin(0, nil, nil)
	if err != nil {
		return err
	}
	root.Node().IsRoot = true
	t.hdr.bindRoot(root.NID())
	if err := root.Close(); err != nil {
		return err
	}

	t.opts.Log.Info().Uint64("root_nid", uint64(root.NID())).Msg("created fresh tree")
	return t.flushHdr()
}

// Put associates value with key via a command of the given type. If txn
// is non-nil, the transaction manager's rollback record is persisted
// before the MSN is allocated (§7), so a rollback-log failure leaves
// the tree's observable state and MSN counter untouched.
func (t *T) Put(key, value []byte, typ ids.MsgType, txn Txn) error {
	timer := t.Stats.PutLatency.Start()
	defer timer.Stop()

	xids := ids.XIDPair{}
	if txn != nil {
		xids = ids.XIDPair{Child: txn.TxnID(), Parent: txn.RootParentTxnID()}
		if err := t.saveRollback(txn, typ, key); err != nil {
			return Error.Wrap(err)
		}
	}

	cmd := newCmd(t.hdr, typ, key, value, xids)
	return Error.Wrap(rootPutCmd(t.cache, t.hdr, t.opts.Node, &t.Stats, cmd))
}

func (t *T) saveRollback(txn Txn, typ ids.MsgType, key []byte) error {
	if t.txns == nil {
		return nil
	}
	switch typ {
	case ids.MsgInsert:
		return t.txns.SaveCmdInsert(txn, t.fileNum, key)
	case ids.MsgDelete:
		return t.txns.SaveCmdDelete(txn, t.fileNum, key)
	case ids.MsgUpdate:
		return t.txns.SaveCmdUpdate(txn, t.fileNum, key)
	default:
		return nil
	}
}

// NextNID allocates and returns a fresh node id.
func (t *T) NextNID() ids.NID { return t.hdr.NextNID() }

// NextMSN allocates and returns a fresh message sequence number.
func (t *T) NextMSN() ids.MSN { return t.hdr.NextMSN() }

// RootNID returns the tree's root node id, invariant for the tree's
// lifetime.
func (t *T) RootNID() ids.NID { return t.hdr.RootNID() }

// Height returns the tree's current height.
func (t *T) Height() uint32 { return t.hdr.Height() }

// LastNID returns the most recently allocated node id.
func (t *T) LastNID() ids.NID { return t.hdr.LastNID() }

// LastMSN returns the most recently allocated message sequence number.
func (t *T) LastMSN() ids.MSN { return t.hdr.LastMSN() }

func (t *T) flushHdr() error {
	rootNID, height, lastNID, lastMSN, compressMethod := t.hdr.Snapshot()
	return t.cb.FlushHdr(rootNID, height, lastNID, lastMSN, compressMethod)
}

// Close flushes the header and every dirty cached node, then releases
// the tree. Draining dirty state to disk beyond that point is the
// cache's own responsibility; Close just guarantees it has already
// happened once it returns.
func (t *T) Close() error {
	if err := t.cache.Flush(); err != nil {
		return Error.Wrap(err)
	}
	return Error.Wrap(t.flushHdr())
}
