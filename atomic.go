package buftree

import "sync/atomic"

// atomicU64 and atomicU32 are thin wrappers giving Hdr's counters named
// load/store/add methods instead of sprinkling sync/atomic calls with
// raw field addresses throughout hdr.go.
type atomicU64 struct{ v uint64 }

func (a *atomicU64) load() uint64         { return atomic.LoadUint64(&a.v) }
func (a *atomicU64) store(v uint64)       { atomic.StoreUint64(&a.v, v) }
func (a *atomicU64) add(delta uint64) uint64 { return atomic.AddUint64(&a.v, delta) }

type atomicU32 struct{ v uint32 }

func (a *atomicU32) load() uint32   { return atomic.LoadUint32(&a.v) }
func (a *atomicU32) store(v uint32) { atomic.StoreUint32(&a.v, v) }
