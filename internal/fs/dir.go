package fs

import (
	"bufio"
	"bytes"
	"fmt"
	"os"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
)

// DirEntry is one (name, kind, noderev-id) triplet of a directory's
// contents (spec.md §3 "Directory entry").
type DirEntry struct {
	Name string
	Kind NodeKind
	ID   ID
}

func encodeDirEntry(e DirEntry) []byte {
	return []byte(fmt.Sprintf("%s %s", e.Kind.String(), e.ID.String()))
}

func decodeDirEntry(name string, value []byte) (DirEntry, error) {
	s := string(value)
	sp := strings.IndexByte(s, ' ')
	if sp < 0 {
		return DirEntry{}, fmt.Errorf("%w: malformed directory entry %q", ErrCorruption, s)
	}
	kindStr, idStr := s[:sp], s[sp+1:]
	var kind NodeKind
	switch kindStr {
	case "file":
		kind = KindFile
	case "dir":
		kind = KindDir
	default:
		return DirEntry{}, fmt.Errorf("%w: unknown directory entry kind %q", ErrCorruption, kindStr)
	}
	id, err := ParseID(idStr)
	if err != nil {
		return DirEntry{}, err
	}
	return DirEntry{Name: name, Kind: kind, ID: id}, nil
}

func entriesFromHash(raw map[string][]byte) (map[string]DirEntry, error) {
	out := make(map[string]DirEntry, len(raw))
	for name, value := range raw {
		e, err := decodeDirEntry(name, value)
		if err != nil {
			return nil, err
		}
		out[name] = e
	}
	return out, nil
}

func hashFromEntries(entries map[string]DirEntry) map[string][]byte {
	out := make(map[string][]byte, len(entries))
	for name, e := range entries {
		out[name] = encodeDirEntry(e)
	}
	return out
}

// dirCacheID identifies a directory's identity for the hot cache: the
// full (node, copy, location) triplet. Keying on node/copy id alone would
// alias a transaction's mutable state with the published revision that
// later supersedes it (same node and copy id, different location), so the
// location (txn id, or rev/offset once published) is part of the key.
// Within one transaction the location stays fixed across incremental
// edits to the same directory, so the single-slot hot cache (spec.md
// §4.5) still stays "coherent across incremental writes by applying the
// same edit to the cached map" rather than evicted on every mutation.
func dirCacheID(id ID) string {
	return id.String()
}

// dirCache is the per-filesystem-handle single-slot hot cache from
// spec.md §4.5, backed by a hashicorp/golang-lru cache sized to
// Config.DirCacheSize (1 by default, matching "single-slot" literally).
type dirCache struct {
	lru *lru.Cache[string, map[string]DirEntry]
}

func newDirCache(size int) *dirCache {
	if size < 1 {
		size = 1
	}
	c, _ := lru.New[string, map[string]DirEntry](size)
	return &dirCache{lru: c}
}

func (c *dirCache) get(key string) (map[string]DirEntry, bool) {
	return c.lru.Get(key)
}

func (c *dirCache) put(key string, entries map[string]DirEntry) {
	c.lru.Add(key, entries)
}

// evict drops key from the cache if present; a no-op otherwise. Used to
// retire a transaction's mutable directory entries once its staging files
// are gone (commit and purge).
func (c *dirCache) evict(key string) {
	c.lru.Remove(key)
}

// applyEdit mutates the cached map in place if key is the currently cached
// directory, keeping the cache coherent without a read-through; if key is
// not cached, this is a no-op (the next full read will populate it).
func (c *dirCache) applyEdit(key string, edit hashEdit) {
	entries, ok := c.lru.Peek(key)
	if !ok {
		return
	}
	if edit.kind == 'D' {
		delete(entries, edit.key)
		return
	}
	e, err := decodeDirEntry(edit.key, edit.value)
	if err != nil {
		return
	}
	entries[edit.key] = e
}

// GetDirEntries resolves a directory node-revision's contents: published
// directories decode their single PLAIN hash rep directly; transaction
// directories replay the base hash plus its incremental overlay from the
// node.<id>.<copy>.children staging file (spec.md §4.5).
func (s *Store) GetDirEntries(nr *NodeRevision) (map[string]DirEntry, error) {
	if nr.Kind != KindDir {
		return nil, fmt.Errorf("node %s is not a directory", nr.ID)
	}

	key := dirCacheID(nr.ID)
	if entries, ok := s.dirCache.get(key); ok {
		return entries, nil
	}

	var entries map[string]DirEntry
	var err error

	if nr.ID.Mutable {
		entries, err = s.readTxnDirEntries(nr.ID)
	} else if nr.DataRep == nil {
		entries = map[string]DirEntry{}
	} else {
		raw, rerr := ReadRepresentation(s, nr.DataRep)
		if rerr != nil {
			return nil, rerr
		}
		hashed, derr := decodeHash(bufio.NewReader(bytes.NewReader(raw)))
		if derr != nil {
			return nil, derr
		}
		entries, err = entriesFromHash(hashed)
	}
	if err != nil {
		return nil, err
	}

	s.dirCache.put(key, entries)
	return entries, nil
}

func (s *Store) readTxnDirEntries(id ID) (map[string]DirEntry, error) {
	path := s.Layout.TxnNodeChildren(id.TxnID, id.NodeID, id.CopyID)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			nr, nerr := s.GetNodeRevision(id)
			if nerr != nil {
				return nil, nerr
			}
			return s.baseDirEntries(nr)
		}
		return nil, err
	}
	hashed, err := decodeHashWithOverlay(bufio.NewReader(bytes.NewReader(data)))
	if err != nil {
		return nil, err
	}
	return entriesFromHash(hashed)
}

// materializeTxnDir writes the current (committed-ancestor) entries of a
// directory into its node.<id>.<copy>.children staging file the first time
// it is mutated in a transaction, per spec.md §4.5.
func (s *Store) materializeTxnDir(id ID, entries map[string]DirEntry) error {
	path := s.Layout.TxnNodeChildren(id.TxnID, id.NodeID, id.CopyID)
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return encodeHash(f, hashFromEntries(entries))
}

// appendTxnDirEdit appends one incremental set/delete to a directory's
// staging file and keeps the hot cache coherent (spec.md §4.5).
func (s *Store) appendTxnDirEdit(id ID, edit hashEdit) error {
	path := s.Layout.TxnNodeChildren(id.TxnID, id.NodeID, id.CopyID)
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0666)
	if err != nil {
		return err
	}
	defer f.Close()
	if err := encodeHashEdit(f, edit); err != nil {
		return err
	}
	s.dirCache.applyEdit(dirCacheID(id), edit)
	return nil
}

// SetDirEntry sets (adds or replaces) one entry of a mutable directory,
// materialising the base hash on first mutation.
func (s *Store) SetDirEntry(dirID ID, entry DirEntry) error {
	path := s.Layout.TxnNodeChildren(dirID.TxnID, dirID.NodeID, dirID.CopyID)
	if _, err := os.Stat(path); os.IsNotExist(err) {
		nr, err := s.GetNodeRevision(dirID)
		if err != nil {
			return err
		}
		base, err := s.baseDirEntries(nr)
		if err != nil {
			return err
		}
		if err := s.materializeTxnDir(dirID, base); err != nil {
			return err
		}
	}
	return s.appendTxnDirEdit(dirID, hashEdit{kind: 'K', key: entry.Name, value: encodeDirEntry(entry)})
}

// DeleteDirEntry removes an entry from a mutable directory.
func (s *Store) DeleteDirEntry(dirID ID, name string) error {
	path := s.Layout.TxnNodeChildren(dirID.TxnID, dirID.NodeID, dirID.CopyID)
	if _, err := os.Stat(path); os.IsNotExist(err) {
		nr, err := s.GetNodeRevision(dirID)
		if err != nil {
			return err
		}
		base, err := s.baseDirEntries(nr)
		if err != nil {
			return err
		}
		if err := s.materializeTxnDir(dirID, base); err != nil {
			return err
		}
	}
	return s.appendTxnDirEdit(dirID, hashEdit{kind: 'D', key: name})
}

// baseDirEntries resolves a directory's entries before any in-transaction
// overlay, used to seed node.<id>.<copy>.children on first mutation.
func (s *Store) baseDirEntries(nr *NodeRevision) (map[string]DirEntry, error) {
	if nr.DataRep == nil || nr.DataRep.Mutable {
		return map[string]DirEntry{}, nil
	}
	raw, err := ReadRepresentation(s, nr.DataRep)
	if err != nil {
		return nil, err
	}
	hashed, err := decodeHash(bufio.NewReader(bytes.NewReader(raw)))
	if err != nil {
		return nil, err
	}
	return entriesFromHash(hashed)
}
