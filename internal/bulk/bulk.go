// Package bulk fans a batch of independent puts out across a bounded
// worker pool. It sits outside the core write path (root_put_cmd
// already serializes correctly under concurrent callers; this package
// is just a convenience for driving many of them at once) and is
// grounded on the teacher's own bulk-loading idiom in
// internal/node/bulk.go, adapted from "batch many entries into one
// node rebuild" to "batch many independent tree puts," which is why
// the concurrency primitive here is an errgroup fan-out instead of a
// single buffer builder.
package bulk

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/zeebo/errs"
	"github.com/zeebo/mon"

	"buftree/internal/ids"
)

// Error is the class that contains all errors from this package.
var Error = errs.Class("bulk")

// KV is one key/value/type triple to load.
type KV struct {
	Key   []byte
	Value []byte
	Type  ids.MsgType
}

// PutFunc adapts a tree's Put method (closed over a fixed txn, if any)
// to the shape LoadAll drives.
type PutFunc func(key, value []byte, typ ids.MsgType) error

var loadAllThunk mon.Thunk

// LoadAll drives put for every entry in kvs across at most concurrency
// goroutines at once (concurrency <= 0 means unbounded), returning the
// first error encountered. errgroup cancels ctx on the first error, but
// nothing here reads ctx back out of put -- cancellation only stops new
// entries from starting, since root_put_cmd itself has no cancellation
// point (§5: "Cancellation is not defined").
func LoadAll(ctx context.Context, put PutFunc, kvs []KV, concurrency int) error {
	timer := loadAllThunk.Start()
	defer timer.Stop()

	g, ctx := errgroup.WithContext(ctx)

	var sem chan struct{}
	if concurrency > 0 {
		sem = make(chan struct{}, concurrency)
	}

	for _, kv := range kvs {
		kv := kv
		g.Go(func() error {
			if sem != nil {
				select {
				case sem <- struct{}{}:
					defer func() { <-sem }()
				case <-ctx.Done():
					return ctx.Err()
				}
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if err := put(kv.Key, kv.Value, kv.Type); err != nil {
				return Error.Wrap(err)
			}
			return nil
		})
	}

	return g.Wait()
}
