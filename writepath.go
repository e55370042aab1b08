package buftree

import (
	"buftree/internal/cache"
	"buftree/internal/debug"
	"buftree/internal/node"
	"buftree/lease"
)

// rootPutCmd is the lock-escalating write-path driver from §4.4: pin
// the root, react to its current classification, escalating from a
// read to a write latch only when structural work (a split or a flush)
// is actually required, then apply cmd once the root is observed
// stable. The loop re-pins from scratch after every split or flush
// since either one may have changed what "the root" even refers to.
func rootPutCmd(c *cache.T, hdr *Hdr, opts node.Options, stats *Stats, cmd Cmd) error {
	lock := lease.LockRead

	for {
		root, err := c.GetAndPin(hdr.RootNID(), lock)
		if err != nil {
			return err
		}

		// Per open question #3, a leaf root's apply always requires
		// the write latch -- unlike an interior root, which only
		// needs a read latch plus its target partition's own lock --
		// so a leaf root pinned for read is escalated unconditionally,
		// before it is even classified.
		if root.Node().IsLeaf() && lock == lease.LockRead {
			if err := root.Close(); err != nil {
				return err
			}
			lock = lease.LockWrite
			continue
		}

		switch node.Classify(root.Node(), opts) {
		case node.Stable:
			nodePutCmd(root.Node(), cmd)
			return root.Close()

		case node.Fissible:
			if lock == lease.LockRead {
				if err := root.Close(); err != nil {
					return err
				}
				lock = lease.LockWrite
				continue
			}
			if err := rootSplit(c, hdr, stats, root); err != nil {
				return err
			}
			lock = lease.LockRead
			continue

		case node.Flushable:
			if lock == lease.LockRead {
				if err := root.Close(); err != nil {
					return err
				}
				lock = lease.LockWrite
				continue
			}
			if err := flushSomeChild(c, opts, stats, root); err != nil {
				return err
			}
			lock = lease.LockRead
			continue

		default:
			debug.Fault("unknown reactivity classification at root")
			return nil
		}
	}
}
