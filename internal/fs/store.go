package fs

import (
	"bufio"
	"bytes"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"

	mmap "github.com/edsrzf/mmap-go"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Store is the top-level handle on a repository root: path layout, the
// mmap cache over published revision files (spec.md §5 "revision files
// ... may be concurrently memory-mapped"), and the ambient logger/config.
// One Store must not be shared across goroutines without external
// synchronisation (spec.md §5 "callers must not share a handle across
// threads without external synchronisation"), matching the directory hot
// cache's per-handle contract in §4.5.
type Store struct {
	Layout Layout
	Config Config
	Log    *zap.Logger

	mu       sync.Mutex
	revFiles map[int]*mappedRev

	dirCache *dirCache
}

type mappedRev struct {
	file *os.File
	data mmap.MMap
}

// Open attaches to an existing repository root.
func Open(root string, cfg Config) (*Store, error) {
	s := &Store{
		Layout:   NewLayout(root),
		Config:   cfg,
		Log:      newLogger(cfg),
		revFiles: make(map[int]*mappedRev),
	}
	s.dirCache = newDirCache(cfg.DirCacheSize)
	if _, err := os.Stat(s.Layout.Current()); err != nil {
		return nil, fmt.Errorf("%w: not a repository: %s", ErrNotFound, root)
	}
	return s, nil
}

// Create initializes a brand-new repository at root: directory skeleton,
// uuid, write-lock placeholder, revision 0 (an empty PLAIN directory, per
// SPEC_FULL §5 "Revision 0"), and current = "0 1 1\n".
func Create(root string, cfg Config) (*Store, error) {
	for _, dir := range []string{root, "revs", "revprops", "transactions"} {
		target := dir
		if dir != root {
			target = root + string(os.PathSeparator) + dir
		}
		if err := os.MkdirAll(target, 0777); err != nil {
			return nil, err
		}
	}

	layout := NewLayout(root)

	if err := os.WriteFile(layout.UUID(), []byte(uuid.NewString()+"\n"), 0666); err != nil {
		return nil, err
	}
	if err := os.WriteFile(layout.WriteLock(), nil, 0666); err != nil {
		return nil, err
	}

	// Revision 0: an empty PLAIN directory, root noderev at offset 0.
	rev0ID := RevNodeID("0", "0", 0, 0)
	rev0 := &NodeRevision{
		ID:          rev0ID,
		Kind:        KindDir,
		CreatedPath: "/",
		CopyRootRev: 0,
		CopyRootPath: "/",
	}

	var emptyDir bytes.Buffer
	if err := encodeHash(&emptyDir, map[string][]byte{}); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	dirRep, _, err := WriteRepresentation(&buf, emptyDir.Bytes(), nil, true, nil, 0, false)
	if err != nil {
		return nil, err
	}
	rev0.DataRep = dirRep
	rev0.DataRep.Revision = 0
	rev0.DataRep.Offset = 0

	rootOffset := int64(buf.Len())
	rev0.ID.Offset = rootOffset
	if err := encodeNodeRevision(&buf, rev0); err != nil {
		return nil, err
	}
	changesOffset := int64(buf.Len())
	fmt.Fprintf(&buf, "\n%d %d\n", rootOffset, changesOffset)

	if err := os.WriteFile(layout.Rev(0), buf.Bytes(), 0666); err != nil {
		return nil, err
	}
	if err := os.WriteFile(layout.RevProps(0), []byte("END\n"), 0666); err != nil {
		return nil, err
	}
	if err := os.WriteFile(layout.Current(), []byte("0 1 1\n"), 0666); err != nil {
		return nil, err
	}

	return Open(root, cfg)
}

// Youngest parses the current file (spec.md §4.1/§6): "<rev> <next_node_id>
// <next_copy_id>\n".
func (s *Store) Youngest() (rev int, nextNodeID, nextCopyID string, err error) {
	data, err := os.ReadFile(s.Layout.Current())
	if err != nil {
		return 0, "", "", err
	}
	fields := strings.Fields(string(data))
	if len(fields) != 3 {
		return 0, "", "", fmt.Errorf("%w: malformed current file", ErrCorruption)
	}
	rev, err = strconv.Atoi(fields[0])
	if err != nil {
		return 0, "", "", fmt.Errorf("%w: current rev: %v", ErrCorruption, err)
	}
	return rev, fields[1], fields[2], nil
}

func (s *Store) mappedRevFile(rev int) (*mappedRev, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if mr, ok := s.revFiles[rev]; ok {
		return mr, nil
	}

	f, err := os.Open(s.Layout.Rev(rev))
	if err != nil {
		return nil, fmt.Errorf("%w: rev %d: %v", ErrNotFound, rev, err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}
	if info.Size() == 0 {
		// mmap-go refuses to map a zero-length file; treat as an empty
		// in-memory view rather than special-casing every call site.
		mr := &mappedRev{file: f, data: mmap.MMap{}}
		s.revFiles[rev] = mr
		return mr, nil
	}
	m, err := mmap.Map(f, mmap.RDONLY, 0)
	if err != nil {
		f.Close()
		return nil, err
	}
	mr := &mappedRev{file: f, data: m}
	s.revFiles[rev] = mr
	return mr, nil
}

// ReadRevAt implements RepSource over the mmap'd revision files.
func (s *Store) ReadRevAt(rev int, offset int64, length int64) ([]byte, error) {
	mr, err := s.mappedRevFile(rev)
	if err != nil {
		return nil, err
	}
	if offset < 0 || offset > int64(len(mr.data)) {
		return nil, fmt.Errorf("%w: offset %d out of range for rev %d", ErrCorruption, offset, rev)
	}
	end := offset + length
	if end > int64(len(mr.data)) {
		end = int64(len(mr.data))
	}
	out := make([]byte, end-offset)
	copy(out, mr.data[offset:end])
	return out, nil
}

// ReadTxnAt implements RepSource over a transaction's mutable prototype
// rev file.
func (s *Store) ReadTxnAt(txnID string, offset int64, length int64) ([]byte, error) {
	f, err := os.Open(s.Layout.TxnProtoRev(txnID))
	if err != nil {
		return nil, err
	}
	defer f.Close()

	if _, err := f.Seek(offset, 0); err != nil {
		return nil, err
	}
	buf := make([]byte, length)
	n, err := f.Read(buf)
	if err != nil && n == 0 {
		return nil, err
	}
	return buf[:n], nil
}

// Close releases mmap handles held by the store.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, mr := range s.revFiles {
		if len(mr.data) > 0 {
			mr.data.Unmap()
		}
		mr.file.Close()
	}
	s.revFiles = nil
	return nil
}

// GetNodeRevision loads a node-revision by id, reading from the
// transaction's per-node staging file when id is mutable, or from the
// owning revision's header block otherwise (spec.md §4.2).
func (s *Store) GetNodeRevision(id ID) (*NodeRevision, error) {
	if id.Mutable {
		data, err := os.ReadFile(s.Layout.TxnNodeRev(id.TxnID, id.NodeID, id.CopyID))
		if err != nil {
			if os.IsNotExist(err) {
				return nil, fmt.Errorf("%w: node %s", ErrNotFound, id)
			}
			return nil, err
		}
		return decodeNodeRevision(bufio.NewReader(bytes.NewReader(data)), id.TxnID)
	}

	mr, err := s.mappedRevFile(id.Rev)
	if err != nil {
		return nil, err
	}
	if id.Offset < 0 || id.Offset > int64(len(mr.data)) {
		return nil, fmt.Errorf("%w: node %s", ErrCorruption, id)
	}
	return decodeNodeRevision(bufio.NewReader(bytes.NewReader(mr.data[id.Offset:])), "")
}

// PutNodeRevision writes a mutable node-revision's header block to its
// transaction-local staging file (spec.md §4.2, write_noderev_txn).
func (s *Store) PutNodeRevision(nr *NodeRevision) error {
	if !nr.ID.Mutable {
		return fmt.Errorf("attempted to write non-transaction node-revision %s", nr.ID)
	}
	f, err := os.Create(s.Layout.TxnNodeRev(nr.ID.TxnID, nr.ID.NodeID, nr.ID.CopyID))
	if err != nil {
		return err
	}
	defer f.Close()
	return encodeNodeRevision(f, nr)
}

// trailerOffsets scans the last ≤64 bytes of a published revision file for
// the "\n<root_offset> <changes_offset>\n" trailer (spec.md §6), using the
// original's two-pass backward scan (SPEC_FULL §5). trailerStart is the
// absolute offset of the blank line that separates the changed-paths
// section from the trailer line itself, so callers that need the exact
// extent of the changed-paths section can bound their read by it.
func (s *Store) trailerOffsets(rev int) (rootOffset, changesOffset, trailerStart int64, err error) {
	mr, err := s.mappedRevFile(rev)
	if err != nil {
		return 0, 0, 0, err
	}
	data := mr.data
	if len(data) == 0 {
		return 0, 0, 0, fmt.Errorf("%w: empty revision file %d", ErrCorruption, rev)
	}

	window := int64(64)
	if window > int64(len(data)) {
		window = int64(len(data))
	}
	tail := data[int64(len(data))-window:]

	if len(tail) == 0 || tail[len(tail)-1] != '\n' {
		return 0, 0, 0, fmt.Errorf("%w: revision file %d lacks trailing newline", ErrCorruption, rev)
	}

	i := len(tail) - 2
	for i >= 0 && tail[i] != '\n' {
		i--
	}
	if i < 0 {
		return 0, 0, 0, fmt.Errorf("%w: final line in revision %d longer than 64 bytes", ErrCorruption, rev)
	}
	trailerLineStart := int64(len(data)) - window + int64(i) + 1
	line := string(tail[i+1 : len(tail)-1])
	sp := strings.IndexByte(line, ' ')
	if sp < 0 {
		return 0, 0, 0, fmt.Errorf("%w: revision %d trailer missing space", ErrCorruption, rev)
	}
	rootOffset, err = strconv.ParseInt(line[:sp], 10, 64)
	if err != nil {
		return 0, 0, 0, fmt.Errorf("%w: revision %d root offset: %v", ErrCorruption, rev, err)
	}
	changesOffset, err = strconv.ParseInt(line[sp+1:], 10, 64)
	if err != nil {
		return 0, 0, 0, fmt.Errorf("%w: revision %d changes offset: %v", ErrCorruption, rev, err)
	}
	return rootOffset, changesOffset, trailerLineStart - 1, nil
}

// RootID returns the id of the root directory node-revision of rev.
func (s *Store) RootID(rev int) (ID, error) {
	rootOffset, _, _, err := s.trailerOffsets(rev)
	if err != nil {
		return ID{}, err
	}
	mr, err := s.mappedRevFile(rev)
	if err != nil {
		return ID{}, err
	}
	r := bufio.NewReader(bytes.NewReader(mr.data[rootOffset:]))
	nr, err := decodeNodeRevision(r, "")
	if err != nil {
		return ID{}, err
	}
	return nr.ID, nil
}

// GetRoot returns the root directory node-revision of rev.
func (s *Store) GetRoot(rev int) (*NodeRevision, error) {
	id, err := s.RootID(rev)
	if err != nil {
		return nil, err
	}
	return s.GetNodeRevision(id)
}

// GetChangedPaths reads rev's published changed-paths section (the same
// record format the commit coordinator writes, spec.md §4.7 step 7), run
// through the same fold used at commit time so a caller sees exactly one
// entry per path.
func (s *Store) GetChangedPaths(rev int) ([]Change, error) {
	_, changesOffset, trailerStart, err := s.trailerOffsets(rev)
	if err != nil {
		return nil, err
	}
	mr, err := s.mappedRevFile(rev)
	if err != nil {
		return nil, err
	}
	if changesOffset == trailerStart {
		return nil, nil
	}
	r := bufio.NewReader(bytes.NewReader(mr.data[changesOffset:trailerStart]))
	changes, err := decodeChanges(r)
	if err != nil {
		return nil, err
	}
	return FoldChanges(changes, true)
}

// GetRevisionProps reads rev's revprops file (spec.md §6 "Revprops file
// format").
func (s *Store) GetRevisionProps(rev int) (map[string][]byte, error) {
	data, err := os.ReadFile(s.Layout.RevProps(rev))
	if err != nil {
		return nil, err
	}
	return decodeHash(bufio.NewReader(bytes.NewReader(data)))
}

// Lookup resolves a "/"-separated path against rev's tree, returning the
// node-revision at that path. "/" resolves to the root directory.
func (s *Store) Lookup(rev int, path string) (*NodeRevision, error) {
	nr, err := s.GetRoot(rev)
	if err != nil {
		return nil, err
	}
	trimmed := strings.Trim(path, "/")
	if trimmed == "" {
		return nr, nil
	}
	for _, seg := range strings.Split(trimmed, "/") {
		entries, err := s.GetDirEntries(nr)
		if err != nil {
			return nil, err
		}
		entry, ok := entries[seg]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		nr, err = s.GetNodeRevision(entry.ID)
		if err != nil {
			return nil, err
		}
	}
	return nr, nil
}
