package bulk_test

import (
	"context"
	"sync"
	"testing"

	"github.com/zeebo/assert"

	"buftree/internal/bulk"
	"buftree/internal/ids"
	"buftree/internal/pcg"
)

// fakePutter records every put it receives; the test cares only that
// LoadAll drives exactly one call per kv pair, not that they land in
// any particular order.
type fakePutter struct {
	mu   sync.Mutex
	seen map[string][]byte
}

func (f *fakePutter) put(key, value []byte, typ ids.MsgType) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.seen == nil {
		f.seen = make(map[string][]byte)
	}
	f.seen[string(key)] = append([]byte(nil), value...)
	return nil
}

func TestLoadAllAppliesEveryEntry(t *testing.T) {
	gen := pcg.New(1, 2)

	const n = 200
	kvs := make([]bulk.KV, n)
	for i := range kvs {
		key, value := make([]byte, 8), make([]byte, 16)
		gen.Bytes(key)
		gen.Bytes(value)
		kvs[i] = bulk.KV{Key: key, Value: value, Type: ids.MsgInsert}
	}

	fp := &fakePutter{}
	assert.NoError(t, bulk.LoadAll(context.Background(), fp.put, kvs, 8))

	fp.mu.Lock()
	defer fp.mu.Unlock()
	assert.Equal(t, len(fp.seen), n)
	for _, kv := range kvs {
		got, ok := fp.seen[string(kv.Key)]
		assert.That(t, ok)
		assert.Equal(t, string(got), string(kv.Value))
	}
}
