package buftree

import (
	"sync/atomic"

	"buftree/internal/cache"
	"buftree/internal/debug"
	"buftree/internal/node"
	"buftree/internal/node/msgbuf"
	"buftree/lease"
)

// flushSomeChild drains the heaviest partition of parent (pinned write
// by the caller, who hands ownership of that pin to this call) into its
// child, per §4.3: pick the heaviest partition, pin its child write,
// apply every entry whose MSN is still ahead of the child's msn_high,
// replace the drained buffer with a fresh empty one, then reclassify
// the child and either stop, split it, or recurse.
//
// Open question #2 from the source flagged the original flush loop's
// "if msn >= iter.msn then continue" as able to infinite-loop by
// skipping the iterator advance; the corrected semantics -- skip
// entries with msn <= child.msn_high, unconditionally advancing the
// iterator either way -- is what the range loop below does.
//
// Every return path closes parentLease exactly once. The Flushable
// recursion closes it before descending, so no more than two node
// latches (parent, child) are ever held at once, per the concurrency
// model.
func flushSomeChild(c *cache.T, opts node.Options, stats *Stats, parentLease lease.T) error {
	atomic.AddUint64(&stats.flushes, 1)
	parent := parentLease.Node()
	childIdx := parent.HeaviestPartition()
	childNID := parent.Parts[childIdx].ChildNID

	childLease, err := c.GetAndPin(childNID, lease.LockWrite)
	if err != nil {
		parentLease.Close()
		return err
	}
	child := childLease.Node()
	childMSN := child.MSNHigh
	timer := stats.FlushLatency.Start()
	defer timer.Stop()

	it := parent.Parts[childIdx].Buffer.Iterator()
	for it.Next() {
		ent := it.Entry()
		if ent.MSN <= childMSN {
			continue
		}
		nodePutCmd(child, Cmd{
			MSN:   ent.MSN,
			Type:  ent.Type(),
			Key:   it.Key(),
			Value: it.Value(),
			XIDs:  ent.XIDs,
		})
	}

	parent.Parts[childIdx].Buffer = msgbuf.New()
	parent.SetDirty()
	child.SetDirty()

	switch node.Classify(child, opts) {
	case node.Stable:
		childLease.Close()
		return parentLease.Close()

	case node.Fissible:
		err := splitChild(c, stats, parent, childIdx, child)
		childLease.Close()
		if cerr := parentLease.Close(); err == nil {
			err = cerr
		}
		return err

	case node.Flushable:
		debug.Assert("flushable child must be interior", func() bool { return !child.IsLeaf() })
		if err := parentLease.Close(); err != nil {
			childLease.Close()
			return err
		}
		return flushSomeChild(c, opts, stats, childLease)

	default:
		debug.Fault("unknown reactivity classification during flush")
		return nil
	}
}
