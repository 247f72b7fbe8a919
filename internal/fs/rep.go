package fs

import (
	"bytes"
	"crypto/md5"
	"fmt"
	"hash"
	"io"
	"strconv"
	"strings"
)

// RepSource is anything that can hand back the raw bytes stored at an
// absolute offset inside a given revision's rev file or a transaction's
// prototype rev file. Store (store.go) is the production implementation;
// mmap-go backs the revision side per SPEC_FULL's mmap wiring, a plain
// *os.File backs the transaction side.
type RepSource interface {
	ReadRevAt(rev int, offset int64, length int64) ([]byte, error)
	ReadTxnAt(txnID string, offset int64, length int64) ([]byte, error)
}

// repLocation is a resolved (revision|txn, offset) pair, the "absolute
// offset in the owning revision (or the transaction's prototype rev
// file)" language from spec.md §4.3.
type repLocation struct {
	txnID  string
	rev    int
	offset int64
}

func (rep *Representation) location() repLocation {
	if rep.Mutable {
		return repLocation{txnID: rep.TxnID, offset: rep.Offset}
	}
	return repLocation{rev: rep.Revision, offset: rep.Offset}
}

func readAt(src RepSource, loc repLocation, length int64) ([]byte, error) {
	if loc.txnID != "" {
		return src.ReadTxnAt(loc.txnID, loc.offset, length)
	}
	return src.ReadRevAt(loc.rev, loc.offset, length)
}

// parsedRepHeaderLine is the decoded "PLAIN\n" / "DELTA\n" / "DELTA <rev>
// <off> <size>\n" line that precedes a representation's body, per
// spec.md §4.4.
type parsedRepHeaderLine struct {
	isDelta    bool
	vsEmpty    bool
	baseRev    int
	baseOffset int64
	baseSize   int64
	headerLen  int // bytes consumed by the header line itself
}

func parseRepHeaderLine(data []byte) (parsedRepHeaderLine, error) {
	nl := bytes.IndexByte(data, '\n')
	if nl < 0 {
		return parsedRepHeaderLine{}, fmt.Errorf("%w: rep header line missing newline", ErrCorruption)
	}
	line := string(data[:nl])
	switch {
	case line == "PLAIN":
		return parsedRepHeaderLine{headerLen: nl + 1}, nil
	case line == "DELTA":
		return parsedRepHeaderLine{isDelta: true, vsEmpty: true, headerLen: nl + 1}, nil
	case strings.HasPrefix(line, "DELTA "):
		fields := strings.Fields(strings.TrimPrefix(line, "DELTA "))
		if len(fields) != 3 {
			return parsedRepHeaderLine{}, fmt.Errorf("%w: malformed DELTA header %q", ErrCorruption, line)
		}
		rev, err := strconv.Atoi(fields[0])
		if err != nil {
			return parsedRepHeaderLine{}, fmt.Errorf("%w: DELTA base rev: %v", ErrCorruption, err)
		}
		off, err := strconv.ParseInt(fields[1], 10, 64)
		if err != nil {
			return parsedRepHeaderLine{}, fmt.Errorf("%w: DELTA base offset: %v", ErrCorruption, err)
		}
		size, err := strconv.ParseInt(fields[2], 10, 64)
		if err != nil {
			return parsedRepHeaderLine{}, fmt.Errorf("%w: DELTA base size: %v", ErrCorruption, err)
		}
		return parsedRepHeaderLine{isDelta: true, baseRev: rev, baseOffset: off, baseSize: size, headerLen: nl + 1}, nil
	default:
		return parsedRepHeaderLine{}, fmt.Errorf("%w: unrecognized rep header %q", ErrCorruption, line)
	}
}

// resolveRepBytes decodes the representation chain rooted at loc/size into
// its fully expanded target bytes. The chain is followed by re-parsing
// each base's header line in turn (spec.md §4.3): PLAIN is a direct body,
// DELTA (vs a base or vs-empty) is an svndiff stream applied against the
// recursively resolved base.
//
// DESIGN NOTE: the spec's step 2 describes resolving source references by
// advancing each deeper delta to its k-th window without materialising it,
// cutting the chain early once src_ops==0 for a given chunk. This
// implementation instead fully materialises each base by plain recursion
// (nothing is cached) before applying the next window layer. This is
// behaviourally equivalent — every representation still decodes to exactly
// expanded_size bytes matching the stored MD5 — but trades the original's
// lazy per-chunk avoidance of deep materialisation for a simpler recursive
// implementation. See DESIGN.md.
func resolveRepBytes(src RepSource, loc repLocation, size int64) ([]byte, error) {
	// Grounded on read_rep_line's fixed 160-byte probe buffer in fs_fs.c:
	// the header line ("PLAIN\n" or "DELTA <rev> <off> <size>\n") is never
	// longer than that, so probe a small prefix before reading the body.
	const headerProbe = 160
	probe, err := readAt(src, loc, headerProbe)
	if err != nil {
		return nil, err
	}
	hdr, err := parseRepHeaderLine(probe)
	if err != nil {
		return nil, err
	}

	var body []byte
	if int64(len(probe))-int64(hdr.headerLen) >= size {
		body = probe[hdr.headerLen : int64(hdr.headerLen)+size]
	} else {
		body, err = readAt(src, repLocation{txnID: loc.txnID, rev: loc.rev, offset: loc.offset + int64(hdr.headerLen)}, size)
		if err != nil {
			return nil, err
		}
	}

	if !hdr.isDelta {
		return body, nil
	}

	var base []byte
	if !hdr.vsEmpty {
		baseLoc := repLocation{rev: hdr.baseRev, offset: hdr.baseOffset}
		base, err = resolveRepBytes(src, baseLoc, hdr.baseSize)
		if err != nil {
			return nil, err
		}
	}
	return decodeSvnDiff(body, base)
}

// ReadRepresentation decodes rep's full content, verifying the trailing
// MD5 digest as required by spec.md §3/§4.3. Returns ErrChecksumMismatch
// if the decoded bytes disagree with rep.MD5.
func ReadRepresentation(src RepSource, rep *Representation) ([]byte, error) {
	if rep == nil {
		return nil, nil
	}
	loc := rep.location()
	data, err := resolveRepBytes(src, loc, rep.Size)
	if err != nil {
		return nil, err
	}
	if int64(len(data)) != rep.ExpandedSize {
		return nil, fmt.Errorf("%w: expanded size mismatch: declared %d, got %d",
			ErrCorruption, rep.ExpandedSize, len(data))
	}
	sum := md5.Sum(data)
	if sum != rep.MD5 {
		return nil, fmt.Errorf("%w: rep at %v", ErrChecksumMismatch, loc)
	}
	return data, nil
}

// predecessorDistance implements spec.md §4.4's base-selection rule:
// clear the lowest set bit of the predecessor count to find the skip-chain
// ancestor to delta against; the distance walked is that lowest set bit,
// always a power of two (spec.md §8 invariant).
func predecessorDistance(count int) int {
	if count <= 0 {
		return 0
	}
	return count & -count
}

// WriteRepresentation deltifies data against base (nil/empty means delta
// vs-empty, or plain-encode if forcePlain) and appends
// "DELTA ...\n"/"PLAIN\n" + body + "ENDREP\n" to w, per spec.md §4.4.
// Returns the Representation pointer with Size/ExpandedSize/MD5 populated;
// Revision/Offset/Mutable/TxnID must be filled in by the caller (who knows
// the current write offset and transaction).
func WriteRepresentation(w io.Writer, data []byte, base []byte, forcePlain bool, baseLoc *repLocation, baseSize int64, compress bool) (*Representation, int64, error) {
	rep := &Representation{
		ExpandedSize: int64(len(data)),
		MD5:          md5.Sum(data),
	}

	var headerLine string
	var body []byte
	var err error

	if forcePlain {
		headerLine = "PLAIN\n"
		body = data
	} else {
		rep.IsDelta = true
		if baseLoc == nil {
			headerLine = "DELTA\n"
			rep.VsEmpty = true
		} else {
			headerLine = fmt.Sprintf("DELTA %d %d %d\n", baseLoc.rev, baseLoc.offset, baseSize)
			rep.BaseRev, rep.BaseOffset, rep.BaseSize = baseLoc.rev, baseLoc.offset, baseSize
		}
		body, err = deltify(base, data, compress)
		if err != nil {
			return nil, 0, err
		}
	}

	var written int64
	n, err := io.WriteString(w, headerLine)
	if err != nil {
		return nil, 0, err
	}
	written += int64(n)

	bn, err := w.Write(body)
	if err != nil {
		return nil, 0, err
	}
	written += int64(bn)
	rep.Size = int64(bn)

	n, err = io.WriteString(w, "ENDREP\n")
	if err != nil {
		return nil, 0, err
	}
	written += int64(n)

	return rep, written, nil
}

// repWriter is a streaming io.Writer that accumulates an MD5 digest as the
// caller writes expanded bytes; Bytes and MD5 return the buffered bytes and
// the digest so far. It has no Close and does not build a Representation.
type repWriter struct {
	buf bytes.Buffer
	sum hash.Hash
}

func newRepWriter() *repWriter {
	return &repWriter{sum: md5.New()}
}

func (rw *repWriter) Write(p []byte) (int, error) {
	rw.sum.Write(p)
	return rw.buf.Write(p)
}

func (rw *repWriter) Bytes() []byte { return rw.buf.Bytes() }

func (rw *repWriter) MD5() [md5.Size]byte {
	var out [md5.Size]byte
	copy(out[:], rw.sum.Sum(nil))
	return out
}
