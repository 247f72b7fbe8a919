package fs

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
)

// splitParent splits "/a/b/c" into parent "/a/b" and base "c"; the root
// "/" has no parent and is rejected by callers that require a base name.
func splitParent(path string) (parent, base string) {
	trimmed := strings.Trim(path, "/")
	idx := strings.LastIndexByte(trimmed, '/')
	if idx < 0 {
		return "/", trimmed
	}
	return "/" + trimmed[:idx], trimmed[idx+1:]
}

// ensureMutableDir walks from the transaction root through path's
// components, cloning each directory to a mutable noderev as it descends
// and, when create is true, materialising any missing component as a
// fresh empty directory inheriting its parent's copy id and copy root
// (spec.md §3 "copyroot ... defaults to self" for the transaction root,
// inherited otherwise). Returns the id of the mutable directory named by
// path.
func (t *Transaction) ensureMutableDir(path string, create bool) (ID, error) {
	dirID, err := t.Root()
	if err != nil {
		return ID{}, err
	}
	trimmed := strings.Trim(path, "/")
	if trimmed == "" {
		return dirID, nil
	}

	built := ""
	for _, seg := range strings.Split(trimmed, "/") {
		built += "/" + seg

		dirNR, err := t.store.GetNodeRevision(dirID)
		if err != nil {
			return ID{}, err
		}
		entries, err := t.store.GetDirEntries(dirNR)
		if err != nil {
			return ID{}, err
		}

		entry, exists := entries[seg]
		var childID ID
		if exists {
			if entry.Kind != KindDir {
				return ID{}, fmt.Errorf("%w: %s is not a directory", ErrCorruption, built)
			}
			childID, err = t.cloneMutable(entry.ID)
			if err != nil {
				return ID{}, err
			}
		} else if create {
			nodeID, err := t.AllocateNodeID()
			if err != nil {
				return ID{}, err
			}
			childID = TxnNodeID(nodeID, dirID.CopyID, t.ID)
			childNR := &NodeRevision{
				ID:           childID,
				Kind:         KindDir,
				CreatedPath:  built,
				CopyRootRev:  dirNR.CopyRootRev,
				CopyRootPath: dirNR.CopyRootPath,
			}
			if err := t.store.PutNodeRevision(childNR); err != nil {
				return ID{}, err
			}
		} else {
			return ID{}, fmt.Errorf("%w: %s", ErrNotFound, built)
		}

		if err := t.store.SetDirEntry(dirID, DirEntry{Name: seg, Kind: KindDir, ID: childID}); err != nil {
			return ID{}, err
		}
		dirID = childID
	}
	return dirID, nil
}

// PutFile creates or updates the file at path with the given bytes,
// recording the matching add/modify change entry. Intermediate
// directories are created as needed.
func (t *Transaction) PutFile(path string, data []byte) (ID, error) {
	parentPath, base := splitParent(path)
	if base == "" {
		return ID{}, fmt.Errorf("%w: %s is not a file path", ErrCorruption, path)
	}

	parentID, err := t.ensureMutableDir(parentPath, true)
	if err != nil {
		return ID{}, err
	}
	parentNR, err := t.store.GetNodeRevision(parentID)
	if err != nil {
		return ID{}, err
	}
	entries, err := t.store.GetDirEntries(parentNR)
	if err != nil {
		return ID{}, err
	}

	existing, exists := entries[base]
	action := ActionAdd
	var fileID ID
	if exists {
		if existing.Kind != KindFile {
			return ID{}, fmt.Errorf("%w: %s is not a file", ErrCorruption, path)
		}
		fileID, err = t.cloneMutable(existing.ID)
		if err != nil {
			return ID{}, err
		}
		action = ActionModify
	} else {
		nodeID, err := t.AllocateNodeID()
		if err != nil {
			return ID{}, err
		}
		fileID = TxnNodeID(nodeID, parentID.CopyID, t.ID)
		if err := t.store.PutNodeRevision(&NodeRevision{
			ID:           fileID,
			Kind:         KindFile,
			CreatedPath:  path,
			CopyRootRev:  parentNR.CopyRootRev,
			CopyRootPath: parentNR.CopyRootPath,
		}); err != nil {
			return ID{}, err
		}
	}

	fileNR, err := t.store.GetNodeRevision(fileID)
	if err != nil {
		return ID{}, err
	}
	if err := t.store.PutFileContent(fileNR, data); err != nil {
		return ID{}, err
	}
	if err := t.store.PutNodeRevision(fileNR); err != nil {
		return ID{}, err
	}

	if err := t.store.SetDirEntry(parentID, DirEntry{Name: base, Kind: KindFile, ID: fileID}); err != nil {
		return ID{}, err
	}

	t.store.Log.Debug("txn: put file", zap.String("txn", t.ID), zap.String("path", path), zap.Int("bytes", len(data)))
	return fileID, t.store.AppendChange(t.ID, Change{
		NodeRevID: fileID.String(),
		Action:    action,
		TextMod:   true,
		Path:      path,
	})
}

// MakeDir creates an empty directory at path, recording an add entry.
func (t *Transaction) MakeDir(path string) (ID, error) {
	_, base := splitParent(path)
	if base == "" {
		return ID{}, fmt.Errorf("%w: %s is not a directory path", ErrCorruption, path)
	}
	dirID, err := t.ensureMutableDir(path, true)
	if err != nil {
		return ID{}, err
	}
	t.store.Log.Debug("txn: mkdir", zap.String("txn", t.ID), zap.String("path", path))
	return dirID, t.store.AppendChange(t.ID, Change{
		NodeRevID: dirID.String(),
		Action:    ActionAdd,
		Path:      path,
	})
}

// CopyPath records a cross-history copy of the node at (fromRev, fromPath)
// into toPath, allocating a fresh copy id so the new node becomes the
// origin of its own copy history (spec.md §3 "copyfrom", §9 "Copyroot").
// Grounded on the copyfrom/copyroot header semantics recovered from
// fs_fs.c's noderev read/write path (SPEC_FULL §5): an absent copyroot
// means "same as self", so the copy's own noderev is stamped with the -1
// sentinel (resolved to the publishing revision at commit, see commit.go)
// rather than inheriting the source's copyroot.
func (t *Transaction) CopyPath(fromRev int, fromPath, toPath string) (ID, error) {
	srcNR, err := t.store.Lookup(fromRev, fromPath)
	if err != nil {
		return ID{}, fmt.Errorf("copy source %s@%d: %w", fromPath, fromRev, err)
	}

	parentPath, base := splitParent(toPath)
	if base == "" {
		return ID{}, fmt.Errorf("%w: %s is not a valid copy destination", ErrCorruption, toPath)
	}
	parentID, err := t.ensureMutableDir(parentPath, true)
	if err != nil {
		return ID{}, err
	}
	parentNR, err := t.store.GetNodeRevision(parentID)
	if err != nil {
		return ID{}, err
	}
	entries, err := t.store.GetDirEntries(parentNR)
	if err != nil {
		return ID{}, err
	}
	existing, replacing := entries[base]
	if replacing && existing.Kind != srcNR.Kind {
		return ID{}, fmt.Errorf("%w: %s already exists with a different kind", ErrCorruption, toPath)
	}

	copyID, err := t.ReserveCopyID()
	if err != nil {
		return ID{}, err
	}
	nodeID, err := t.AllocateNodeID()
	if err != nil {
		return ID{}, err
	}
	copyNR := &NodeRevision{
		ID:           TxnNodeID(nodeID, copyID, t.ID),
		Kind:         srcNR.Kind,
		CreatedPath:  toPath,
		DataRep:      srcNR.DataRep,
		PropRep:      srcNR.PropRep,
		HasCopyFrom:  true,
		CopyFromRev:  fromRev,
		CopyFromPath: fromPath,
		CopyRootRev:  -1,
		CopyRootPath: toPath,
	}
	if err := t.store.PutNodeRevision(copyNR); err != nil {
		return ID{}, err
	}

	if err := t.store.SetDirEntry(parentID, DirEntry{Name: base, Kind: srcNR.Kind, ID: copyNR.ID}); err != nil {
		return ID{}, err
	}

	action := ActionAdd
	if replacing {
		action = ActionReplace
	}
	t.store.Log.Debug("txn: copy path", zap.String("txn", t.ID),
		zap.String("path", toPath), zap.String("from_path", fromPath), zap.Int("from_rev", fromRev))
	return copyNR.ID, t.store.AppendChange(t.ID, Change{
		NodeRevID:    copyNR.ID.String(),
		Action:       action,
		Path:         toPath,
		CopyFromRev:  fromRev,
		CopyFromPath: fromPath,
	})
}

// DeleteEntry removes the entry at path from its parent directory and
// records a delete change.
func (t *Transaction) DeleteEntry(path string) error {
	parentPath, base := splitParent(path)
	if base == "" {
		return fmt.Errorf("%w: cannot delete the root", ErrCorruption)
	}
	parentID, err := t.ensureMutableDir(parentPath, false)
	if err != nil {
		return err
	}
	parentNR, err := t.store.GetNodeRevision(parentID)
	if err != nil {
		return err
	}
	entries, err := t.store.GetDirEntries(parentNR)
	if err != nil {
		return err
	}
	entry, exists := entries[base]
	if !exists {
		return fmt.Errorf("%w: %s", ErrNotFound, path)
	}

	if err := t.store.DeleteDirEntry(parentID, base); err != nil {
		return err
	}
	t.store.Log.Debug("txn: delete entry", zap.String("txn", t.ID), zap.String("path", path))
	return t.store.AppendChange(t.ID, Change{
		NodeRevID: entry.ID.String(),
		Action:    ActionDelete,
		Path:      path,
	})
}
