// Package difflib implements the line-oriented file diff and three-way
// merge engine (spec.md §4.6/§6 "Diff engine"), modeled on Subversion's
// libsvn_diff/diff_file.c: chunked paging over each input, prefix/suffix
// elision before running the comparison, and unified/three-way output.
package difflib

import (
	"bufio"
	"fmt"
	"hash/adler32"
	"io"
	"os"
)

// SpaceMode controls whitespace handling during tokenisation (spec.md
// §4.6 "ignore_space ∈ {none, change, all}").
type SpaceMode int

const (
	SpaceNone   SpaceMode = iota // compare raw bytes
	SpaceChange                  // runs of whitespace compare equal regardless of length
	SpaceAll                    // whitespace is elided entirely before comparing
)

// Options bundles the tokeniser/comparison knobs a diff or merge call
// takes (spec.md §4.6).
type Options struct {
	IgnoreSpace    SpaceMode
	IgnoreEOLStyle bool
	ChunkSize      int // bytes per page; 0 means DefaultChunkSize
}

// DefaultChunkSize is the paging granularity spec.md §4.6 mandates: "Each
// file is read in chunks of 128 KiB."
const DefaultChunkSize = 128 * 1024

// Token is one line: its raw extent in the source plus a normalised
// length and checksum used for cheap inequality short-circuiting before
// falling back to a byte comparison (spec.md §4.6 "Tokenisation").
type Token struct {
	Offset           int64
	RawLength        int64
	NormalizedLength int64
	Adler32          uint32
}

// Source is one file loaded for diffing: the full token stream plus the
// raw bytes, read once via chunked paging (DESIGN.md records this as a
// simplification of the original's on-demand repaged cursor — see the
// doc comment on resolveRepBytes in internal/fs for the same tradeoff
// applied here: behaviourally identical tokens and comparisons, without
// keeping a live paging window per source during the LCS pass).
type Source struct {
	Path   string
	data   []byte
	tokens []Token
	// PrefixLines/SuffixLines record the elided region, so callers that
	// want line numbers in the original file can reconstruct them.
	PrefixLines int
	SuffixLines int
}

// Load reads path in ChunkSize pages through bufio and tokenises it into
// lines. The pages are appended into one buffer, so the whole file is held
// in memory at once.
func Load(path string, opts Options) (*Source, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	chunkSize := opts.ChunkSize
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}

	var data []byte
	buf := make([]byte, chunkSize)
	r := bufio.NewReaderSize(f, chunkSize)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			data = append(data, buf[:n]...)
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
	}

	src := &Source{Path: path, data: data}
	src.tokens = tokenize(data, opts)
	return src, nil
}

// LoadBytes tokenises an in-memory buffer the same way Load does, for
// callers (and tests) that already hold the file content.
func LoadBytes(data []byte, opts Options) *Source {
	return &Source{data: data, tokens: tokenize(data, opts)}
}

func (s *Source) NumLines() int { return len(s.tokens) }

// Line returns the raw bytes of line i (0-based), including its EOL.
func (s *Source) Line(i int) []byte {
	t := s.tokens[i]
	return s.data[t.Offset : t.Offset+t.RawLength]
}

// HasTrailingEOL reports whether the source's last line ends in a
// newline, needed for unified diff's "\ No newline at end of file".
func (s *Source) HasTrailingEOL() bool {
	if len(s.data) == 0 {
		return true
	}
	return s.data[len(s.data)-1] == '\n'
}

// eolLength returns the width of the end-of-line sequence starting at i
// (0 if none), handling \r, \n, and \r\n, including the mixed case where
// two sources disagree on EOL style at the same logical boundary (spec.md
// §4.6 "Prefix/suffix elision").
func eolLength(data []byte, i int) int {
	if i >= len(data) {
		return 0
	}
	if data[i] == '\n' {
		return 1
	}
	if data[i] == '\r' {
		if i+1 < len(data) && data[i+1] == '\n' {
			return 2
		}
		return 1
	}
	return 0
}

// tokenize splits data into lines. next_token's contract from spec.md
// §4.6: emit zero-length normalised tokens for pure-whitespace lines
// under SpaceAll (so line numbering survives), but suppress a truly empty
// final raw line exactly at EOF.
func tokenize(data []byte, opts Options) []Token {
	var tokens []Token
	offset := int64(0)
	n := int64(len(data))

	for offset < n {
		start := offset
		lineEnd := start
		for lineEnd < n && eolLength(data, int(lineEnd)) == 0 {
			lineEnd++
		}
		eol := int64(eolLength(data, int(lineEnd)))
		rawLen := lineEnd - start + eol

		raw := data[start:lineEnd]
		normLen, sum := normalize(raw, opts)

		tokens = append(tokens, Token{
			Offset:           start,
			RawLength:        rawLen,
			NormalizedLength: normLen,
			Adler32:          sum,
		})
		offset = start + rawLen
	}
	return tokens
}

// normalize computes the comparison key for one raw line: its
// normalised length and an adler32 over the normalised bytes, per
// spec.md §4.6 "Normalisation collapses/ignores whitespace per options
// and canonicalises EOLs when ignore_eol_style is set."
func normalize(raw []byte, opts Options) (int64, uint32) {
	out := stripped(raw, opts)
	return int64(len(out)), adler32.Checksum(out)
}

// stripped applies EOL canonicalisation and whitespace normalisation to
// one raw line, per spec.md §4.6 "Normalisation".
func stripped(raw []byte, opts Options) []byte {
	body := raw
	if opts.IgnoreEOLStyle {
		for len(body) > 0 && (body[len(body)-1] == '\n' || body[len(body)-1] == '\r') {
			body = body[:len(body)-1]
		}
	}
	switch opts.IgnoreSpace {
	case SpaceAll:
		out := make([]byte, 0, len(body))
		for _, b := range body {
			if b != ' ' && b != '\t' {
				out = append(out, b)
			}
		}
		return out
	case SpaceChange:
		out := make([]byte, 0, len(body))
		inSpace := false
		for _, b := range body {
			if b == ' ' || b == '\t' {
				if !inSpace {
					out = append(out, ' ')
					inSpace = true
				}
				continue
			}
			inSpace = false
			out = append(out, b)
		}
		return out
	default:
		return body
	}
}

// tokenEqual compares two tokens from two sources. Short-circuits on
// differing normalised length or checksum; otherwise falls back to a
// direct comparison of the normalised bytes, since this implementation
// keeps each source fully resident rather than re-streaming from disk
// (see the simplification note on Source).
func tokenEqual(a *Source, ai int, b *Source, bi int, opts Options) bool {
	ta, tb := a.tokens[ai], b.tokens[bi]
	if ta.NormalizedLength != tb.NormalizedLength || ta.Adler32 != tb.Adler32 {
		return false
	}
	return string(stripped(a.Line(ai), opts)) == string(stripped(b.Line(bi), opts))
}

// ErrDatasourceModified is the error value for a token whose cached extent
// no longer matches the backing source (spec.md §4.6 "Comparison", §7
// "datasource-modified"). No function in this package returns it: sources
// are held fully in memory, so a token's extent cannot go stale.
var ErrDatasourceModified = fmt.Errorf("datasource modified during diff")
