// Package memdisk is an in-memory io.Disk used by tests and by the
// reference cache implementation's examples. It is backed by
// VictoriaMetrics/fastcache, a real ecosystem byte cache, rather than a
// bare map, so the disk layer exercises a production-grade cache rather
// than hand-rolled bookkeeping for something the standard library doesn't
// provide a fast fit for.
package memdisk

import (
	"encoding/binary"
	"sync/atomic"

	"github.com/VictoriaMetrics/fastcache"
)

// T is an in-memory Disk. It is safe for concurrent use.
type T struct {
	blockSize int64
	maxBlock  int64
	cache     *fastcache.Cache
}

// New returns an in-memory disk with the given block size and an initial
// capacity hint in bytes for the backing fastcache instance.
func New(blockSize int64, capacityHint int) *T {
	return &T{
		blockSize: blockSize,
		maxBlock:  -1,
		cache:     fastcache.New(capacityHint),
	}
}

func keyOf(block int64) []byte {
	var k [8]byte
	binary.BigEndian.PutUint64(k[:], uint64(block))
	return k[:]
}

// BlockSize implements io.Disk.
func (t *T) BlockSize() int64 { return t.blockSize }

// Read implements io.Disk.
func (t *T) Read(block int64) ([]byte, error) {
	v, ok := t.cache.HasGet(nil, keyOf(block))
	if !ok {
		return nil, nil
	}
	return v, nil
}

// Write implements io.Disk.
func (t *T) Write(block int64, data []byte) error {
	t.cache.Set(keyOf(block), data)
	for {
		cur := atomic.LoadInt64(&t.maxBlock)
		if block <= cur || atomic.CompareAndSwapInt64(&t.maxBlock, cur, block) {
			return nil
		}
	}
}

// Delete implements io.Disk.
func (t *T) Delete(block int64) error {
	t.cache.Del(keyOf(block))
	return nil
}

// MaxBlock implements io.Disk. It returns zero if nothing has been
// written, matching the interface contract even though this
// implementation otherwise tracks -1 internally to distinguish "never
// written" from "wrote block zero".
func (t *T) MaxBlock() (int64, error) {
	if m := atomic.LoadInt64(&t.maxBlock); m >= 0 {
		return m, nil
	}
	return 0, nil
}

// Reset clears the disk back to empty.
func (t *T) Reset() {
	t.cache.Reset()
	atomic.StoreInt64(&t.maxBlock, -1)
}
