package fs

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"go.uber.org/zap"
)

// protoWriter is a plain io.Writer over the transaction's prototype rev
// file that tracks the absolute write offset, needed because both
// representation bodies and node-revision header blocks record their own
// starting offset (spec.md §4.4/§4.2).
type protoWriter struct {
	f      *os.File
	offset int64
}

func (w *protoWriter) Write(p []byte) (int, error) {
	n, err := w.f.Write(p)
	w.offset += int64(n)
	return n, err
}

// Commit runs the strict-order commit sequence of spec.md §4.7/§4.8:
// lock, staleness check, id renumbering, depth-first noderev rewrite,
// changed-paths fold, trailer, fsync, atomic renames, and purge. On
// success it returns the new revision number. A failure before revs/N is
// renamed into place leaves the repository as it was. A failure after that
// rename but before current is rewritten leaves revs/N (and possibly
// revprops/N) in place while current still names the previous revision.
// A failure of the final purge returns an error although the revision is
// already published.
func (s *Store) Commit(txn *Transaction) (int, error) {
	s.Log.Debug("commit: starting", zap.String("txn", txn.ID), zap.Int("base_rev", txn.BaseRev))

	lock, err := acquireWriteLock(s.Layout.WriteLock())
	if err != nil {
		return 0, err
	}
	defer lock.release()

	youngest, curNextNodeID, curNextCopyID, err := s.Youngest()
	if err != nil {
		return 0, err
	}
	if youngest != txn.BaseRev {
		s.Log.Warn("commit: transaction out of date",
			zap.String("txn", txn.ID), zap.Int("base_rev", txn.BaseRev), zap.Int("youngest", youngest))
		return 0, fmt.Errorf("%w: txn base %d, youngest %d", ErrTxnOutOfDate, txn.BaseRev, youngest)
	}

	txnNextNodeID, txnNextCopyID := txn.NextIDs()
	startNodeID, startCopyID := curNextNodeID, curNextCopyID
	newNextNodeID := addKeys(startNodeID, txnNextNodeID)
	newNextCopyID := addKeys(startCopyID, txnNextCopyID)
	newRev := youngest + 1

	protoPath := s.Layout.TxnProtoRev(txn.ID)
	f, err := os.OpenFile(protoPath, os.O_RDWR, 0666)
	if err != nil {
		return 0, err
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		return 0, err
	}
	if _, err := f.Seek(0, io.SeekEnd); err != nil {
		return 0, err
	}
	pw := &protoWriter{f: f, offset: info.Size()}

	renumbered := make(map[string]ID)

	var rewrite func(id ID) (ID, error)
	rewrite = func(id ID) (ID, error) {
		if !id.Mutable {
			return id, nil
		}
		if cached, ok := renumbered[id.String()]; ok {
			return cached, nil
		}

		nr, err := s.GetNodeRevision(id)
		if err != nil {
			return ID{}, err
		}

		if nr.Kind == KindDir {
			entries, err := s.GetDirEntries(nr)
			if err != nil {
				return ID{}, err
			}
			newEntries := make(map[string]DirEntry, len(entries))
			for name, e := range entries {
				newChildID, err := rewrite(e.ID)
				if err != nil {
					return ID{}, err
				}
				newEntries[name] = DirEntry{Name: name, Kind: e.Kind, ID: newChildID}
			}
			var hashBuf bytes.Buffer
			if err := encodeHash(&hashBuf, hashFromEntries(newEntries)); err != nil {
				return ID{}, err
			}
			offset := pw.offset
			rep, _, err := WriteRepresentation(pw, hashBuf.Bytes(), nil, true, nil, 0, false)
			if err != nil {
				return ID{}, err
			}
			rep.Mutable, rep.Revision, rep.Offset = false, newRev, offset
			nr.DataRep = rep
		} else if nr.DataRep != nil && nr.DataRep.Mutable {
			// File content reps were already appended to this same file
			// during the transaction's lifetime; only their location's
			// meaning changes, from "offset in this txn" to "offset in
			// revs/<newRev>".
			nr.DataRep.Mutable = false
			nr.DataRep.Revision = newRev
		}

		if nr.PropRep != nil && nr.PropRep.Mutable {
			propBytes, err := s.GetNodeProps(nr)
			if err != nil {
				return ID{}, err
			}
			var propBuf bytes.Buffer
			if err := encodeHash(&propBuf, propBytes); err != nil {
				return ID{}, err
			}
			offset := pw.offset
			rep, _, err := WriteRepresentation(pw, propBuf.Bytes(), nil, true, nil, 0, false)
			if err != nil {
				return ID{}, err
			}
			rep.Mutable, rep.Revision, rep.Offset = false, newRev, offset
			nr.PropRep = rep
		}

		nodeID, copyID := nr.ID.NodeID, nr.ID.CopyID
		if suffix, ok := temporaryID(nodeID); ok {
			nodeID = addKeys(startNodeID, suffix)
		}
		if suffix, ok := temporaryID(copyID); ok {
			copyID = addKeys(startCopyID, suffix)
		}

		newID := RevNodeID(nodeID, copyID, newRev, pw.offset)
		// CopyPath stamps a fresh copy-origin's own copyroot with the -1
		// "resolve to whichever revision publishes me" sentinel, since the
		// real revision number doesn't exist yet at edit time.
		if nr.CopyRootRev == -1 {
			nr.CopyRootRev = newRev
		}
		nr.ID = newID
		if err := encodeNodeRevision(pw, nr); err != nil {
			return ID{}, err
		}
		renumbered[id.String()] = newID
		return newID, nil
	}

	txnRootID, err := txn.Root()
	if err != nil {
		return 0, err
	}
	newRootID, err := rewrite(txnRootID)
	if err != nil {
		return 0, err
	}
	rootOffset := newRootID.Offset

	changes, err := s.ReadChanges(txn.ID)
	if err != nil {
		return 0, err
	}
	folded, err := FoldChanges(changes, false)
	if err != nil {
		return 0, err
	}
	changesOffset := pw.offset
	for _, c := range folded {
		if id, perr := ParseID(c.NodeRevID); perr == nil && id.Mutable {
			if newID, ok := renumbered[c.NodeRevID]; ok {
				c.NodeRevID = newID.String()
			}
		}
		if err := encodeChange(pw, c); err != nil {
			return 0, err
		}
	}

	if _, err := fmt.Fprintf(pw, "\n%d %d\n", rootOffset, changesOffset); err != nil {
		return 0, err
	}
	if err := f.Sync(); err != nil {
		return 0, err
	}
	if err := f.Close(); err != nil {
		return 0, err
	}

	if err := moveIntoPlace(protoPath, s.Layout.Rev(newRev), s.Layout.Rev(newRev-1)); err != nil {
		return 0, err
	}
	fsyncDir(s.Layout.RevsDir())

	if err := moveIntoPlace(s.Layout.TxnProps(txn.ID), s.Layout.RevProps(newRev), ""); err != nil {
		return 0, err
	}
	fsyncDir(s.Layout.RevPropsDir())

	if err := writeCurrentAtomically(s.Layout, newRev, newNextNodeID, newNextCopyID); err != nil {
		return 0, err
	}
	fsyncDir(s.Layout.Root)

	if err := txn.Purge(); err != nil {
		return 0, err
	}

	s.Log.Info("commit: published revision", zap.Int("rev", newRev), zap.String("txn", txn.ID))
	return newRev, nil
}

// moveIntoPlace renames src to dst, matching dst's permissions to
// prevPath's file (when prevPath is non-empty) before the rename, and
// falling back to copy+fsync+unlink on cross-device rename failure
// (SPEC_FULL §5, recovered from move_into_place in fs_fs.c).
func moveIntoPlace(src, dst, prevPath string) error {
	if prevPath != "" {
		if info, err := os.Stat(prevPath); err == nil {
			os.Chmod(src, info.Mode())
		}
	}

	if err := os.Rename(src, dst); err == nil {
		return nil
	}

	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	if err := out.Sync(); err != nil {
		out.Close()
		return err
	}
	if err := out.Close(); err != nil {
		return err
	}
	return os.Remove(src)
}

// fsyncDir fsyncs a directory after a rename into it, required on some
// filesystems for the directory entry to be durable; best-effort, errors
// are ignored since not every platform supports directory fsync.
func fsyncDir(path string) {
	d, err := os.Open(path)
	if err != nil {
		return
	}
	d.Sync()
	d.Close()
}

// writeCurrentAtomically publishes the new youngest revision and next-ids
// via temp-file + rename (spec.md §4.7 step 10).
func writeCurrentAtomically(layout Layout, rev int, nextNodeID, nextCopyID string) error {
	tmp := filepath.Join(layout.Root, "current.tmp")
	data := fmt.Sprintf("%d %s %s\n", rev, nextNodeID, nextCopyID)
	if err := os.WriteFile(tmp, []byte(data), 0666); err != nil {
		return err
	}
	if f, err := os.Open(tmp); err == nil {
		f.Sync()
		f.Close()
	}
	return os.Rename(tmp, layout.Current())
}
