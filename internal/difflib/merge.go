package difflib

import (
	"strings"
)

// MergeStyle selects how a three-way merge renders a conflicting region
// (spec.md §6 "Diff output — three-way"), mirroring the conflict display
// styles of libsvn_diff's merge output.
type MergeStyle int

const (
	StyleModifiedLatest         MergeStyle = iota // <<<<<<< mod / ======= / >>>>>>> latest
	StyleModifiedOriginalLatest                   // adds a ||||||| orig section
	StyleModified                                  // resolve every conflict in favour of modified
	StyleLatest                                    // resolve every conflict in favour of latest
	StyleResolvedModifiedLatest                     // use a supplied resolution, else fall back to StyleModifiedLatest
	StyleOnlyConflicts                              // emit only conflicting hunks, with context and "@@" gap separators
)

// mergeHunk is one classified region of the three-way alignment, anchored
// on original line numbers.
type mergeHunk struct {
	OStart, OEnd int
	conflict     bool
	oText        []byte
	mText        []byte
	lText        []byte
	resolved     []byte // non-conflict output: original text, or whichever side changed
}

// FormatThreeWay renders the three-way merge of modified and latest against
// their common original, per spec.md §6/§8 scenario 6. resolution may be
// nil; it is only consulted under StyleResolvedModifiedLatest.
func FormatThreeWay(original, modified, latest, resolution *Source, modLabel, origLabel, latestLabel string, style MergeStyle, opts Options) (string, bool) {
	hunks := computeMergeHunks(original, modified, latest, opts)
	hasConflict := false
	for _, h := range hunks {
		if h.conflict {
			hasConflict = true
			break
		}
	}

	eol := detectEOL(modified)

	if style == StyleOnlyConflicts {
		return formatOnlyConflicts(original, hunks, modLabel, origLabel, latestLabel, eol), hasConflict
	}

	var sb strings.Builder
	for _, h := range hunks {
		writeMergedHunk(&sb, h, resolution, modLabel, origLabel, latestLabel, style, eol)
	}
	return sb.String(), hasConflict
}

func writeMergedHunk(sb *strings.Builder, h mergeHunk, resolution *Source, modLabel, origLabel, latestLabel string, style MergeStyle, eol string) {
	if !h.conflict {
		sb.Write(h.resolved)
		return
	}
	switch style {
	case StyleModified:
		sb.Write(h.mText)
	case StyleLatest:
		sb.Write(h.lText)
	case StyleResolvedModifiedLatest:
		if resolution != nil {
			sb.Write(resolutionSlice(resolution, h))
			return
		}
		writeConflictMarkers(sb, h, modLabel, origLabel, latestLabel, false, eol)
	case StyleModifiedOriginalLatest:
		writeConflictMarkers(sb, h, modLabel, origLabel, latestLabel, true, eol)
	default: // StyleModifiedLatest
		writeConflictMarkers(sb, h, modLabel, origLabel, latestLabel, false, eol)
	}
}

// resolutionSlice is a placeholder mapping for a caller-supplied resolved
// text: since a resolution file carries no explicit alignment to the
// original, the whole resolution source is used verbatim for every
// conflicting hunk that is rendered, on the assumption (documented as an
// open question in DESIGN.md) that callers supply a resolution covering
// exactly the conflicting region they are resolving. With more than one
// conflict, the whole resolution is written once per conflict.
func resolutionSlice(resolution *Source, h mergeHunk) []byte {
	var buf []byte
	for i := 0; i < resolution.NumLines(); i++ {
		buf = append(buf, resolution.Line(i)...)
	}
	return buf
}

func writeConflictMarkers(sb *strings.Builder, h mergeHunk, modLabel, origLabel, latestLabel string, withOriginal bool, eol string) {
	sb.WriteString("<<<<<<< ")
	sb.WriteString(modLabel)
	sb.WriteString(eol)
	sb.Write(h.mText)
	if withOriginal {
		sb.WriteString("||||||| ")
		sb.WriteString(origLabel)
		sb.WriteString(eol)
		sb.Write(h.oText)
	}
	sb.WriteString("=======")
	sb.WriteString(eol)
	sb.Write(h.lText)
	sb.WriteString(">>>>>>> ")
	sb.WriteString(latestLabel)
	sb.WriteString(eol)
}

// formatOnlyConflicts emits just the conflicting hunks, each with up to
// ContextLines of leading/trailing original context, separating
// non-adjacent conflicts with a bare "@@\n" line (spec.md §6).
func formatOnlyConflicts(original *Source, hunks []mergeHunk, modLabel, origLabel, latestLabel, eol string) string {
	var sb strings.Builder
	first := true
	for i, h := range hunks {
		if !h.conflict {
			continue
		}
		if !first {
			sb.WriteString("@@")
			sb.WriteString(eol)
		}
		first = false

		leadStart := max(h.OStart-ContextLines, leadingContextStart(hunks, i))
		if leadStart < 0 {
			leadStart = 0
		}
		for l := leadStart; l < h.OStart; l++ {
			sb.Write(original.Line(l))
		}

		writeConflictMarkers(&sb, h, modLabel, origLabel, latestLabel, true, eol)

		trailEnd := h.OEnd + ContextLines
		if trailTo := trailingContextEnd(hunks, i); trailTo < trailEnd {
			trailEnd = trailTo
		}
		if trailEnd > original.NumLines() {
			trailEnd = original.NumLines()
		}
		for l := h.OEnd; l < trailEnd; l++ {
			sb.Write(original.Line(l))
		}
	}
	return sb.String()
}

func leadingContextStart(hunks []mergeHunk, i int) int {
	if i == 0 {
		return 0
	}
	return hunks[i-1].OEnd
}

func trailingContextEnd(hunks []mergeHunk, i int) int {
	if i == len(hunks)-1 {
		return hunks[i].OEnd + ContextLines
	}
	return hunks[i+1].OStart
}

// detectEOL reports the EOL sequence ("\n" or "\r\n") of the first line of
// the source that ends in "\n", falling back to "\n" (this codebase's
// platform default) when no line does, per spec.md §6 "EOL of markers matches the modified
// file's detected EOL, falling back to platform EOL."
func detectEOL(s *Source) string {
	for i := 0; i < s.NumLines(); i++ {
		line := s.Line(i)
		if n := len(line); n > 0 {
			if n >= 2 && line[n-2] == '\r' && line[n-1] == '\n' {
				return "\r\n"
			}
			if line[n-1] == '\n' {
				return "\n"
			}
		}
	}
	return "\n"
}

// computeMergeHunks aligns modified and latest against their shared
// original by diffing each against the original independently and
// coalescing the two change lists into original-anchored regions (the
// classic diff3 alignment). Overlapping changes from the two sides are
// merged into a single hunk and classified as a conflict unless the two
// sides produced byte-identical replacement text, in which case the
// edit is accepted silently. This two-diff alignment is a simplification
// of a true three-way LCS: it can occasionally over-merge two
// coincidentally-adjacent independent edits into one hunk, the same
// tradeoff GNU diff3's line-based alignment makes.
func computeMergeHunks(original, modified, latest *Source, opts Options) []mergeHunk {
	omChanges := nonEqual(Compare(original, modified, opts))
	olChanges := nonEqual(Compare(original, latest, opts))

	n := original.NumLines()
	var hunks []mergeHunk
	o := 0
	i, j := 0, 0

	for o < n || i < len(omChanges) || j < len(olChanges) {
		// Find the next change boundary from either side.
		nextOM := n
		if i < len(omChanges) {
			nextOM = omChanges[i].AStart
		}
		nextOL := n
		if j < len(olChanges) {
			nextOL = olChanges[j].AStart
		}
		next := min(nextOM, nextOL)
		if next > o {
			hunks = append(hunks, equalHunk(original, o, next))
			o = next
		}
		if i >= len(omChanges) && j >= len(olChanges) {
			break
		}

		// Grow the cluster while any remaining interval overlaps it.
		clusterEnd := o
		var clusterOM, clusterOL []OpCode
		for {
			grown := false
			for i < len(omChanges) && omChanges[i].AStart <= clusterEnd {
				clusterOM = append(clusterOM, omChanges[i])
				if omChanges[i].AEnd > clusterEnd {
					clusterEnd = omChanges[i].AEnd
				}
				i++
				grown = true
			}
			for j < len(olChanges) && olChanges[j].AStart <= clusterEnd {
				clusterOL = append(clusterOL, olChanges[j])
				if olChanges[j].AEnd > clusterEnd {
					clusterEnd = olChanges[j].AEnd
				}
				j++
				grown = true
			}
			if !grown {
				break
			}
		}
		if clusterEnd == o {
			clusterEnd = o + 1
		}

		h := mergeHunk{OStart: o, OEnd: clusterEnd}
		h.oText = linesText(original, o, clusterEnd)
		h.mText = sideText(original, modified, o, clusterEnd, clusterOM)
		h.lText = sideText(original, latest, o, clusterEnd, clusterOL)

		switch {
		case len(clusterOM) == 0:
			h.conflict = false
			h.resolved = h.lText // latest-only change, take it
		case len(clusterOL) == 0:
			h.conflict = false
			h.resolved = h.mText // modified-only change, take it
		case string(h.mText) == string(h.lText):
			h.conflict = false
			h.resolved = h.mText // both sides made the same edit
		default:
			h.conflict = true
		}
		hunks = append(hunks, h)
		o = clusterEnd
	}
	return hunks
}

func nonEqual(ops []OpCode) []OpCode {
	var out []OpCode
	for _, op := range ops {
		if op.Tag != 'e' {
			out = append(out, op)
		}
	}
	return out
}

func equalHunk(original *Source, start, end int) mergeHunk {
	text := linesText(original, start, end)
	return mergeHunk{OStart: start, OEnd: end, oText: text, resolved: text}
}

func linesText(s *Source, start, end int) []byte {
	var buf []byte
	for i := start; i < end; i++ {
		buf = append(buf, s.Line(i)...)
	}
	return buf
}

// sideText reconstructs one side's text over original[start:end): original
// text for the gaps the side's own diff left unchanged, and that diff's
// replacement text for the subranges it actually edited.
func sideText(original, side *Source, start, end int, changes []OpCode) []byte {
	var buf []byte
	cursor := start
	for _, op := range changes {
		if op.AStart > cursor {
			buf = append(buf, linesText(original, cursor, op.AStart)...)
		}
		buf = append(buf, linesText(side, op.BStart, op.BEnd)...)
		cursor = op.AEnd
	}
	if cursor < end {
		buf = append(buf, linesText(original, cursor, end)...)
	}
	return buf
}
