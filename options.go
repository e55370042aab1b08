package buftree

import (
	"github.com/rs/zerolog"

	"buftree/internal/node"
)

// Options configures a tree. Field names mirror the spec's external
// option names (leaf_node_page_size, inner_node_fanout, ...) so a caller
// reading this struct recognizes the knobs directly.
type Options struct {
	// Node carries the reactivity classifier's thresholds: leaf/inner
	// page size and count, and the inner fanout ceiling.
	Node node.Options

	// CompressMethod is persisted in the header and otherwise opaque
	// to this core; the actual compression codec is an external
	// collaborator.
	CompressMethod uint8

	// UseDirectIO records whether the backing file should use O_DIRECT.
	// Open does not read it: Open receives an already opened io.Disk, and
	// direct I/O is chosen by the directio argument of filedisk.Open.
	UseDirectIO bool

	// CacheCapacity bounds how many nodes the reference page cache
	// keeps resident before evicting, in nodes rather than bytes.
	CacheCapacity int

	// Log receives structured diagnostics from the reference cache
	// (eviction flush failures) and the tree itself. The zero value is
	// zerolog.Nop(), which discards everything.
	Log zerolog.Logger
}

// DefaultOptions returns options with thresholds sized for tests and
// small exercised trees; production callers should size Node to their
// on-disk page size.
func DefaultOptions() Options {
	return Options{
		Node:          node.DefaultOptions(),
		CacheCapacity: 1 << 10,
		Log:           zerolog.Nop(),
	}
}
