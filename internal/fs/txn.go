package fs

import (
	"bufio"
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"go.uber.org/zap"
)

const maxTxnNameAttempts = 99999

// Transaction is a writable staging area, identified by "<base_rev>-<seq>"
// (spec.md §3 "Transaction"). It owns the per-transaction temp node/copy
// id counters; everything else (node-revs, directory overlays, the change
// log) is staged directly on disk under transactions/<id>.txn via Store.
type Transaction struct {
	store   *Store
	ID      string
	BaseRev int

	mu         sync.Mutex
	nextNodeID string
	nextCopyID string
}

// Begin starts a new transaction rooted at the repository's current
// youngest revision, the common case for a caller about to make changes.
func Begin(s *Store) (*Transaction, error) {
	youngest, _, _, err := s.Youngest()
	if err != nil {
		return nil, err
	}
	return CreateTxn(s, youngest)
}

// CreateTxn allocates a fresh transaction rooted at baseRev, trying
// successive "<baseRev>-<seq>" names until an unused directory is found
// (spec.md §7 "unique-names-exhausted" after 99 999 attempts, grounded on
// create_txn_dir in fs_fs.c).
func CreateTxn(s *Store, baseRev int) (*Transaction, error) {
	for seq := 0; seq < maxTxnNameAttempts; seq++ {
		id := fmt.Sprintf("%d-%d", baseRev, seq)
		dir := s.Layout.TxnDir(id)
		if err := os.Mkdir(dir, 0777); err != nil {
			if os.IsExist(err) {
				continue
			}
			return nil, err
		}

		t := &Transaction{store: s, ID: id, BaseRev: baseRev, nextNodeID: "0", nextCopyID: "0"}
		if err := t.persistNextIDs(); err != nil {
			return nil, err
		}
		if err := os.WriteFile(s.Layout.TxnProps(id), []byte("END\n"), 0666); err != nil {
			return nil, err
		}
		if _, err := os.Create(s.Layout.TxnProtoRev(id)); err != nil {
			return nil, err
		}
		s.Log.Debug("txn: began", zap.String("txn", id), zap.Int("base_rev", baseRev))
		return t, nil
	}
	return nil, fmt.Errorf("%w: could not allocate a transaction name at base %d", ErrUniqueNamesExhausted, baseRev)
}

// OpenTxn reattaches to an existing transaction directory by id.
func OpenTxn(s *Store, id string) (*Transaction, error) {
	dash := strings.IndexByte(id, '-')
	if dash < 0 {
		return nil, fmt.Errorf("%w: malformed transaction id %q", ErrCorruption, id)
	}
	baseRev, err := strconv.Atoi(id[:dash])
	if err != nil {
		return nil, fmt.Errorf("%w: malformed transaction id %q", ErrCorruption, id)
	}

	data, err := os.ReadFile(s.Layout.TxnNextIDs(id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: transaction %s", ErrNotFound, id)
		}
		return nil, err
	}
	fields := strings.Fields(string(data))
	if len(fields) != 2 {
		return nil, fmt.Errorf("%w: malformed next-ids for transaction %s", ErrCorruption, id)
	}
	return &Transaction{store: s, ID: id, BaseRev: baseRev, nextNodeID: fields[0], nextCopyID: fields[1]}, nil
}

func (t *Transaction) persistNextIDs() error {
	data := fmt.Sprintf("%s %s\n", t.nextNodeID, t.nextCopyID)
	return os.WriteFile(t.store.Layout.TxnNextIDs(t.ID), []byte(data), 0666)
}

// AllocateNodeID returns a fresh "_"-prefixed temporary node id, unique
// within this transaction (spec.md §9 "Temporary vs permanent ids").
func (t *Transaction) AllocateNodeID() (string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	id := "_" + t.nextNodeID
	t.nextNodeID = nextKey(t.nextNodeID)
	return id, t.persistNextIDs()
}

// AllocateCopyID returns a fresh "_"-prefixed temporary copy id.
func (t *Transaction) AllocateCopyID() (string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	id := "_" + t.nextCopyID
	t.nextCopyID = nextKey(t.nextCopyID)
	return id, t.persistNextIDs()
}

// ReserveCopyID allocates a fresh temporary copy id for a copy operation
// that introduces new copy history, distinct from a plain add or modify
// (recovered from svn_fs_fs__reserve_copy_id per SPEC_FULL §5). It is the
// same underlying counter as AllocateCopyID; the distinct name documents
// intent at call sites.
func (t *Transaction) ReserveCopyID() (string, error) {
	return t.AllocateCopyID()
}

// NextIDs returns the transaction's current (node, copy) temp-id counters,
// the values folded into the global next-ids at commit step 3.
func (t *Transaction) NextIDs() (nodeID, copyID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.nextNodeID, t.nextCopyID
}

// Root returns the id of the transaction's root directory node-revision,
// cloning it from the base revision's root as a mutable noderev on first
// access.
func (t *Transaction) Root() (ID, error) {
	baseRootID, err := t.store.RootID(t.BaseRev)
	if err != nil {
		return ID{}, err
	}
	return t.cloneMutable(baseRootID)
}

// cloneMutable returns id unchanged if it already belongs to this
// transaction, or clones it into one otherwise (the copy-on-first-write
// behaviour needed at every directory along a mutated path, and at the
// transaction root).
func (t *Transaction) cloneMutable(id ID) (ID, error) {
	if id.Mutable && id.TxnID == t.ID {
		return id, nil
	}
	s := t.store
	mutableID := TxnNodeID(id.NodeID, id.CopyID, t.ID)

	if _, err := os.Stat(s.Layout.TxnNodeRev(t.ID, mutableID.NodeID, mutableID.CopyID)); err == nil {
		return mutableID, nil
	} else if !os.IsNotExist(err) {
		return ID{}, err
	}

	base, err := s.GetNodeRevision(id)
	if err != nil {
		return ID{}, err
	}
	mutable := cloneAsMutable(base, mutableID)
	if err := s.PutNodeRevision(mutable); err != nil {
		return ID{}, err
	}
	return mutableID, nil
}

// cloneAsMutable starts the in-transaction lineage of an existing
// noderev: same node/copy id, new location, predecessor chained to the
// prior immutable noderev. Representation pointers carry over unchanged
// until the caller rewrites them.
func cloneAsMutable(base *NodeRevision, id ID) *NodeRevision {
	pred := base.ID
	clone := *base
	clone.ID = id
	clone.PredecessorID = &pred
	clone.PredecessorCount = base.PredecessorCount + 1
	return &clone
}

// Purge discards a transaction's staging directory, used both on commit
// success and on explicit abort (spec.md §5 "Abort during a transaction
// simply purges the transaction directory"). Every directory this
// transaction mutated is evicted from the hot cache first: Commit calls
// Purge once the new revision is published, and a cached entry keyed on
// this transaction's (now-deleted) staging files must not survive to be
// handed back by a later GetDirEntries.
func (t *Transaction) Purge() error {
	t.store.Log.Debug("txn: purged", zap.String("txn", t.ID))
	t.evictCachedDirs()
	return os.RemoveAll(t.store.Layout.TxnDir(t.ID))
}

// evictCachedDirs drops the hot-cache entry for every directory this
// transaction materialised a children overlay for, identified by
// scanning its node.<id>.<copy>.children staging files.
func (t *Transaction) evictCachedDirs() {
	pattern := filepath.Join(t.store.Layout.TxnDir(t.ID), "node.*"+nodeChildrenExt)
	matches, err := filepath.Glob(pattern)
	if err != nil {
		return
	}
	for _, m := range matches {
		base := strings.TrimSuffix(filepath.Base(m), nodeChildrenExt)
		parts := strings.SplitN(base, ".", 3)
		if len(parts) != 3 {
			continue
		}
		id := TxnNodeID(parts[1], parts[2], t.ID)
		t.store.dirCache.evict(dirCacheID(id))
	}
}

// SetRevisionProp sets one revision property (e.g. "svn:log", "svn:author")
// on this transaction, staged in its props file and renamed straight to
// revprops/N at commit, after revs/N and before current is rewritten.
func (t *Transaction) SetRevisionProp(key, value string) error {
	path := t.store.Layout.TxnProps(t.ID)
	props := map[string][]byte{}
	if data, err := os.ReadFile(path); err == nil {
		if decoded, derr := decodeHash(bufio.NewReader(bytes.NewReader(data))); derr == nil {
			props = decoded
		}
	}
	props[key] = []byte(value)

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return encodeHash(f, props)
}
