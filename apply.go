package buftree

import "buftree/internal/node"

// nodePutCmd applies cmd to n, per §4.3. A leaf appends directly into
// its single buffer and requires the node's latch held in write mode
// (the caller arranges that; this function doesn't touch latches at
// all). An interior node appends into the partition owning cmd.Key,
// guarded by that partition's own lock -- this is what lets N concurrent
// writers append to N distinct partitions of the same node while each
// only holds the node's latch in read mode.
func nodePutCmd(n *node.T, cmd Cmd) {
	if n.IsLeaf() {
		n.ApplyLeaf(cmd.Key, cmd.Value, cmd.Type, cmd.MSN, cmd.XIDs)
		return
	}

	pidx := n.PartitionIndex(cmd.Key)
	part := &n.Parts[pidx]
	part.Lock.Lock()
	n.ApplyInterior(pidx, cmd.Key, cmd.Value, cmd.Type, cmd.MSN, cmd.XIDs)
	part.Lock.Unlock()
}
