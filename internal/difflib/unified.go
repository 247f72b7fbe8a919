package difflib

import (
	"fmt"
	"strings"
)

// ContextLines is the fixed unified-diff context window (spec.md §6
// "Context size is 3 lines").
const ContextLines = 3

// FormatUnified renders the two-way unified diff of a against b, per
// spec.md §6: a "--- orig\tmtime" / "+++ mod\tmtime" header, then one
// "@@ -a,b +c,d @@" hunk per grouped change with up to ContextLines lines
// of leading/trailing context. Returns ok=false when the two sources are
// identical (no hunks), satisfying the "diffing a file against itself
// produces an empty diff" law.
func FormatUnified(a, b *Source, origLabel, origMtime, modLabel, modMtime string, opts Options) (string, bool) {
	ops := Compare(a, b, opts)
	groups := groupOpcodes(ops, ContextLines)
	if len(groups) == 0 {
		return "", false
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "--- %s\t%s\n", origLabel, origMtime)
	fmt.Fprintf(&sb, "+++ %s\t%s\n", modLabel, modMtime)

	for _, group := range groups {
		writeHunk(&sb, a, b, group)
	}
	return sb.String(), true
}

func writeHunk(sb *strings.Builder, a, b *Source, group []OpCode) {
	first, last := group[0], group[len(group)-1]
	aStart, aCount := hunkRange(first.AStart, last.AEnd)
	bStart, bCount := hunkRange(first.BStart, last.BEnd)

	sb.WriteString("@@ -")
	sb.WriteString(formatRange(aStart, aCount))
	sb.WriteString(" +")
	sb.WriteString(formatRange(bStart, bCount))
	sb.WriteString(" @@\n")

	for _, op := range group {
		switch op.Tag {
		case 'e':
			for i := op.AStart; i < op.AEnd; i++ {
				writeLine(sb, ' ', a, i)
			}
		case 'd':
			for i := op.AStart; i < op.AEnd; i++ {
				writeLine(sb, '-', a, i)
			}
		case 'i':
			for j := op.BStart; j < op.BEnd; j++ {
				writeLine(sb, '+', b, j)
			}
		case 'r':
			for i := op.AStart; i < op.AEnd; i++ {
				writeLine(sb, '-', a, i)
			}
			for j := op.BStart; j < op.BEnd; j++ {
				writeLine(sb, '+', b, j)
			}
		}
	}
}

func writeLine(sb *strings.Builder, prefix byte, s *Source, i int) {
	sb.WriteByte(prefix)
	line := s.Line(i)
	sb.Write(line)
	if len(line) == 0 || line[len(line)-1] != '\n' {
		sb.WriteByte('\n')
		if i == s.NumLines()-1 && !s.HasTrailingEOL() {
			sb.WriteString("\\ No newline at end of file\n")
		}
	}
}

// hunkRange converts a half-open [start,end) line range to the 1-based
// (line, count) pair unified diff headers use; an empty range reports
// the insertion point rather than a 1-based line number.
func hunkRange(start, end int) (int, int) {
	count := end - start
	if count == 0 {
		return start, 0
	}
	return start + 1, count
}

// formatRange omits ",n" when n == 1, per spec.md §6.
func formatRange(start, count int) string {
	if count == 1 {
		return fmt.Sprintf("%d", start)
	}
	return fmt.Sprintf("%d,%d", start, count)
}

// groupOpcodes merges the raw edit script into unified-diff hunks,
// trimming equal runs to n lines of context and splitting the script
// wherever an equal run exceeds 2n lines (ported from the well known
// get_grouped_opcodes shape shared by most line-diff implementations).
func groupOpcodes(ops []OpCode, n int) [][]OpCode {
	if len(ops) == 0 {
		return nil
	}
	codes := append([]OpCode{}, ops...)

	if codes[0].Tag == 'e' {
		op := &codes[0]
		op.AStart = max(op.AStart, op.AEnd-n)
		op.BStart = max(op.BStart, op.BEnd-n)
	}
	last := len(codes) - 1
	if codes[last].Tag == 'e' {
		op := &codes[last]
		op.AEnd = min(op.AEnd, op.AStart+n)
		op.BEnd = min(op.BEnd, op.BStart+n)
	}

	var groups [][]OpCode
	var group []OpCode
	for _, op := range codes {
		if op.Tag == 'e' && op.AEnd-op.AStart > 2*n {
			group = append(group, OpCode{Tag: 'e', AStart: op.AStart, AEnd: min(op.AEnd, op.AStart+n), BStart: op.BStart, BEnd: min(op.BEnd, op.BStart+n)})
			groups = append(groups, group)
			group = nil
			op.AStart = max(op.AStart, op.AEnd-n)
			op.BStart = max(op.BStart, op.BEnd-n)
		}
		group = append(group, op)
	}
	if len(group) > 0 && !(len(group) == 1 && group[0].Tag == 'e') {
		groups = append(groups, group)
	}
	return groups
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
