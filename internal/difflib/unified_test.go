package difflib

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatUnifiedIdenticalSourcesIsEmpty(t *testing.T) {
	a := LoadBytes([]byte("one\ntwo\nthree\n"), Options{})
	b := LoadBytes([]byte("one\ntwo\nthree\n"), Options{})

	out, changed := FormatUnified(a, b, "a", "t1", "b", "t2", Options{})
	assert.False(t, changed)
	assert.Empty(t, out)
}

func TestFormatUnifiedSingleLineHunkHeader(t *testing.T) {
	a := LoadBytes([]byte("one\ntwo\nthree\n"), Options{})
	b := LoadBytes([]byte("one\nTWO\nthree\n"), Options{})

	out, changed := FormatUnified(a, b, "orig", "t1", "mod", "t2", Options{})
	require.True(t, changed)
	require.True(t, strings.HasPrefix(out, "--- orig\tt1\n+++ mod\tt2\n"))
	assert.Contains(t, out, "@@ -1,3 +1,3 @@\n")
	assert.Contains(t, out, "-two\n")
	assert.Contains(t, out, "+TWO\n")
}

func TestFormatUnifiedNoTrailingNewlineMarker(t *testing.T) {
	a := LoadBytes([]byte("one\ntwo"), Options{})
	b := LoadBytes([]byte("one\nTWO"), Options{})

	out, changed := FormatUnified(a, b, "orig", "", "mod", "", Options{})
	require.True(t, changed)
	assert.Contains(t, out, "\\ No newline at end of file\n")
}

func TestGroupOpcodesSplitsFarApartChanges(t *testing.T) {
	var lines []string
	for i := 0; i < 30; i++ {
		lines = append(lines, "same")
	}
	a := append([]string{}, lines...)
	b := append([]string{}, lines...)
	a[2] = "A-only"
	b[27] = "B-only"

	aSrc := LoadBytes([]byte(strings.Join(a, "\n")+"\n"), Options{})
	bSrc := LoadBytes([]byte(strings.Join(b, "\n")+"\n"), Options{})

	ops := Compare(aSrc, bSrc, Options{})
	groups := groupOpcodes(ops, ContextLines)
	assert.Len(t, groups, 2, "two far-apart changes should produce two separate hunks")
}
