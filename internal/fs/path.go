package fs

import (
	"fmt"
	"path/filepath"
)

// Fixed relative layout under a repository root. Grounded on path_rev,
// path_txn_dir, path_txn_proto_rev and friends in
// original_source/subversion/libsvn_fs_fs/fs_fs.c; named the way the
// teacher names its own path constants in lib/constants.go.
const (
	dirRevs         = "revs"
	dirRevProps     = "revprops"
	dirTransactions = "transactions"

	fileCurrent  = "current"
	fileUUID     = "uuid"
	fileWriteLock = "write-lock"

	txnSuffix      = ".txn"
	txnRev         = "rev"
	txnChanges     = "changes"
	txnProps       = "props"
	txnNextIDs     = "next-ids"
	nodeChildrenExt = ".children"
	nodePropsExt    = ".props"
)

// Layout resolves the on-disk paths for a repository rooted at Root.
type Layout struct {
	Root string
}

func NewLayout(root string) Layout {
	return Layout{Root: root}
}

func (l Layout) Current() string   { return filepath.Join(l.Root, fileCurrent) }
func (l Layout) UUID() string      { return filepath.Join(l.Root, fileUUID) }
func (l Layout) WriteLock() string { return filepath.Join(l.Root, fileWriteLock) }

func (l Layout) Rev(rev int) string {
	return filepath.Join(l.Root, dirRevs, fmt.Sprintf("%d", rev))
}

func (l Layout) RevProps(rev int) string {
	return filepath.Join(l.Root, dirRevProps, fmt.Sprintf("%d", rev))
}

func (l Layout) RevsDir() string     { return filepath.Join(l.Root, dirRevs) }
func (l Layout) RevPropsDir() string { return filepath.Join(l.Root, dirRevProps) }
func (l Layout) TxnsDir() string     { return filepath.Join(l.Root, dirTransactions) }

func (l Layout) TxnDir(txnID string) string {
	return filepath.Join(l.Root, dirTransactions, txnID+txnSuffix)
}

func (l Layout) TxnProtoRev(txnID string) string {
	return filepath.Join(l.TxnDir(txnID), txnRev)
}

func (l Layout) TxnChanges(txnID string) string {
	return filepath.Join(l.TxnDir(txnID), txnChanges)
}

func (l Layout) TxnProps(txnID string) string {
	return filepath.Join(l.TxnDir(txnID), txnProps)
}

func (l Layout) TxnNextIDs(txnID string) string {
	return filepath.Join(l.TxnDir(txnID), txnNextIDs)
}

// TxnNodeRev resolves node.<nodeID>.<copyID> inside the transaction's
// staging directory for a mutable node-revision's header block.
func (l Layout) TxnNodeRev(txnID string, nodeID, copyID string) string {
	return filepath.Join(l.TxnDir(txnID), fmt.Sprintf("node.%s.%s", nodeID, copyID))
}

func (l Layout) TxnNodeChildren(txnID string, nodeID, copyID string) string {
	return l.TxnNodeRev(txnID, nodeID, copyID) + nodeChildrenExt
}

func (l Layout) TxnNodeProps(txnID string, nodeID, copyID string) string {
	return l.TxnNodeRev(txnID, nodeID, copyID) + nodePropsExt
}
