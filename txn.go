package buftree

import "buftree/internal/ids"

// Txn is the caller-supplied transaction context passed to Put. The
// tree reads only the two ids a command's xidpair needs; everything
// else about a transaction's lifecycle belongs to the transaction
// manager.
type Txn interface {
	TxnID() ids.TxnID
	RootParentTxnID() ids.TxnID
}

// TxnManager is the transaction manager's rollback-log surface (§6).
// Put invokes the matching SaveCmd* method, keyed by the tree's file
// number, before it allocates an MSN or touches the tree: per §7, the
// rollback record must be durable before next_msn runs, so a failure
// here leaves the MSN counter and the tree's observable state
// untouched.
type TxnManager interface {
	SaveCmdInsert(txn Txn, fileNum uint64, key []byte) error
	SaveCmdDelete(txn Txn, fileNum uint64, key []byte) error
	SaveCmdUpdate(txn Txn, fileNum uint64, key []byte) error
}
