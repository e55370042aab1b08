package node

// Options carries the thresholds the reactivity classifier and split
// engine use. Field names mirror the external option names from the
// spec's interface section so callers configuring a tree recognize them.
type Options struct {
	LeafPageSize  uint32 // leaf_node_page_size
	LeafPageCount uint32 // leaf_node_page_count

	InnerPageSize  uint32 // inner_node_page_size
	InnerPageCount uint32 // inner_node_page_count
	InnerFanout    int    // inner_node_fanout
}

// DefaultOptions returns thresholds reasonable for small, exercised
// trees (tests, examples); production callers should size these to
// their page/block size.
func DefaultOptions() Options {
	return Options{
		LeafPageSize:   4 << 10,
		LeafPageCount:  1 << 12,
		InnerPageSize:  4 << 10,
		InnerPageCount: 1 << 12,
		InnerFanout:    16,
	}
}

// Reactivity classifies a node's pressure: Stable needs no reorganization,
// Fissible needs a split, Flushable needs its heaviest child drained.
type Reactivity uint8

const (
	Stable Reactivity = iota
	Fissible
	Flushable
)

// String renders the classification for logs and panics.
func (r Reactivity) String() string {
	switch r {
	case Stable:
		return "stable"
	case Fissible:
		return "fissible"
	case Flushable:
		return "flushable"
	default:
		return "unknown"
	}
}

// Classify implements the reactivity function from the spec: a pure
// decision over a pinned node and the tree's configured thresholds.
func Classify(t *T, opts Options) Reactivity {
	if t.IsLeaf() {
		bytes, count := t.BufferBytes(), t.BufferCount()
		if (bytes >= opts.LeafPageSize && count > 1) || uint32(count) >= opts.LeafPageCount {
			return Fissible
		}
		return Stable
	}

	c := t.NChildren()
	if c >= opts.InnerFanout {
		return Fissible
	}

	bytes, count := t.BufferBytes(), t.BufferCount()
	haszero := t.HasEmptyChildBuffer()
	if (bytes > opts.InnerPageSize && !haszero) || uint32(count) >= opts.InnerPageCount {
		return Flushable
	}
	return Stable
}
