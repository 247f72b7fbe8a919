package fs

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRepo(t *testing.T) *Store {
	t.Helper()
	dir, err := os.MkdirTemp("", "svnfs-test-")
	require.NoError(t, err)
	t.Cleanup(func() { os.RemoveAll(dir) })

	s, err := Create(dir, DefaultConfig())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestCreateSeedsRevisionZero(t *testing.T) {
	s := newTestRepo(t)

	rev, nextNode, nextCopy, err := s.Youngest()
	require.NoError(t, err)
	assert.Equal(t, 0, rev)
	assert.Equal(t, "1", nextNode)
	assert.Equal(t, "1", nextCopy)

	root, err := s.GetRoot(0)
	require.NoError(t, err)
	assert.Equal(t, KindDir, root.Kind)

	entries, err := s.GetDirEntries(root)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestEmptyCommitAdvancesCurrent(t *testing.T) {
	s := newTestRepo(t)

	txn, err := Begin(s)
	require.NoError(t, err)

	rev, err := s.Commit(txn)
	require.NoError(t, err)
	assert.Equal(t, 1, rev)

	data, err := os.ReadFile(s.Layout.Current())
	require.NoError(t, err)
	assert.Equal(t, "1 1 1\n", string(data))
}

func TestAddFileCommitAndCat(t *testing.T) {
	s := newTestRepo(t)

	txn, err := Begin(s)
	require.NoError(t, err)

	_, err = txn.PutFile("/hello.txt", []byte("hello world\n"))
	require.NoError(t, err)

	rev, err := s.Commit(txn)
	require.NoError(t, err)
	assert.Equal(t, 1, rev)

	nr, err := s.Lookup(rev, "/hello.txt")
	require.NoError(t, err)
	assert.Equal(t, KindFile, nr.Kind)

	content, err := ReadRepresentation(s, nr.DataRep)
	require.NoError(t, err)
	assert.Equal(t, "hello world\n", string(content))

	changes, err := s.GetChangedPaths(rev)
	require.NoError(t, err)
	require.Len(t, changes, 1)
	assert.Equal(t, ActionAdd, changes[0].Action)
	assert.Equal(t, "/hello.txt", changes[0].Path)
}

func TestModifyFileProducesDeltaRepresentation(t *testing.T) {
	s := newTestRepo(t)

	txn, err := Begin(s)
	require.NoError(t, err)
	_, err = txn.PutFile("/hello.txt", []byte("hello world!"))
	require.NoError(t, err)
	rev1, err := s.Commit(txn)
	require.NoError(t, err)

	txn2, err := Begin(s)
	require.NoError(t, err)
	_, err = txn2.PutFile("/hello.txt", []byte("hello WORLD!"))
	require.NoError(t, err)
	rev2, err := s.Commit(txn2)
	require.NoError(t, err)

	nr, err := s.Lookup(rev2, "/hello.txt")
	require.NoError(t, err)
	require.True(t, nr.DataRep.IsDelta, "second write of an existing file should delta against its predecessor")
	assert.Equal(t, int64(12), nr.DataRep.ExpandedSize)

	content, err := ReadRepresentation(s, nr.DataRep)
	require.NoError(t, err)
	assert.Equal(t, "hello WORLD!", string(content))

	oldNR, err := s.Lookup(rev1, "/hello.txt")
	require.NoError(t, err)
	oldContent, err := ReadRepresentation(s, oldNR.DataRep)
	require.NoError(t, err)
	assert.Equal(t, "hello world!", string(oldContent))
}

func TestDeleteEntryRecordsChange(t *testing.T) {
	s := newTestRepo(t)

	txn, err := Begin(s)
	require.NoError(t, err)
	_, err = txn.PutFile("/a.txt", []byte("a"))
	require.NoError(t, err)
	_, err = s.Commit(txn)
	require.NoError(t, err)

	txn2, err := Begin(s)
	require.NoError(t, err)
	require.NoError(t, txn2.DeleteEntry("/a.txt"))
	rev2, err := s.Commit(txn2)
	require.NoError(t, err)

	changes, err := s.GetChangedPaths(rev2)
	require.NoError(t, err)
	require.Len(t, changes, 1)
	assert.Equal(t, ActionDelete, changes[0].Action)

	_, err = s.Lookup(rev2, "/a.txt")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRevisionPropsRoundTrip(t *testing.T) {
	s := newTestRepo(t)

	txn, err := Begin(s)
	require.NoError(t, err)
	require.NoError(t, txn.SetRevisionProp("svn:log", "initial commit"))
	require.NoError(t, txn.SetRevisionProp("svn:author", "alice"))

	rev, err := s.Commit(txn)
	require.NoError(t, err)

	props, err := s.GetRevisionProps(rev)
	require.NoError(t, err)
	assert.Equal(t, "initial commit", string(props["svn:log"]))
	assert.Equal(t, "alice", string(props["svn:author"]))
}

func TestCopyPathRecordsCopyFromAndSharesRepresentation(t *testing.T) {
	s := newTestRepo(t)

	txn, err := Begin(s)
	require.NoError(t, err)
	_, err = txn.PutFile("/trunk/a.txt", []byte("trunk content"))
	require.NoError(t, err)
	rev1, err := s.Commit(txn)
	require.NoError(t, err)

	txn2, err := Begin(s)
	require.NoError(t, err)
	_, err = txn2.CopyPath(rev1, "/trunk", "/branches/b1")
	require.NoError(t, err)
	rev2, err := s.Commit(txn2)
	require.NoError(t, err)

	changes, err := s.GetChangedPaths(rev2)
	require.NoError(t, err)
	require.Len(t, changes, 1)
	assert.Equal(t, ActionAdd, changes[0].Action)
	assert.Equal(t, rev1, changes[0].CopyFromRev)
	assert.Equal(t, "/trunk", changes[0].CopyFromPath)

	copied, err := s.Lookup(rev2, "/branches/b1")
	require.NoError(t, err)
	assert.Equal(t, KindDir, copied.Kind)
	assert.True(t, copied.HasCopyFrom)
	assert.Equal(t, rev1, copied.CopyFromRev)
	assert.Equal(t, "/trunk", copied.CopyFromPath)
	assert.Equal(t, rev2, copied.CopyRootRev, "a fresh copy is the origin of its own copy history")
	assert.Equal(t, "/branches/b1", copied.CopyRootPath)

	copiedFile, err := s.Lookup(rev2, "/branches/b1/a.txt")
	require.NoError(t, err)
	content, err := ReadRepresentation(s, copiedFile.DataRep)
	require.NoError(t, err)
	assert.Equal(t, "trunk content", string(content))
}

func TestCommitOutOfDateTransactionFails(t *testing.T) {
	s := newTestRepo(t)

	txn, err := Begin(s)
	require.NoError(t, err)

	other, err := Begin(s)
	require.NoError(t, err)
	_, err = s.Commit(other)
	require.NoError(t, err)

	_, err = txn.PutFile("/stale.txt", []byte("x"))
	require.NoError(t, err)
	_, err = s.Commit(txn)
	assert.ErrorIs(t, err, ErrTxnOutOfDate)
}
