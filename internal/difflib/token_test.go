package difflib

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadBytesTokenizesLines(t *testing.T) {
	s := LoadBytes([]byte("one\ntwo\nthree\n"), Options{})
	require.Equal(t, 3, s.NumLines())
	assert.Equal(t, []byte("one\n"), s.Line(0))
	assert.Equal(t, []byte("two\n"), s.Line(1))
	assert.Equal(t, []byte("three\n"), s.Line(2))
}

func TestLoadBytesHandlesMixedEOLStyles(t *testing.T) {
	s := LoadBytes([]byte("one\r\ntwo\rthree\n"), Options{})
	require.Equal(t, 3, s.NumLines())
	assert.Equal(t, []byte("one\r\n"), s.Line(0))
	assert.Equal(t, []byte("two\r"), s.Line(1))
	assert.Equal(t, []byte("three\n"), s.Line(2))
}

func TestLoadBytesNoTrailingEOLOnLastLine(t *testing.T) {
	s := LoadBytes([]byte("one\ntwo"), Options{})
	require.Equal(t, 2, s.NumLines())
	assert.False(t, s.HasTrailingEOL())
	assert.Equal(t, []byte("two"), s.Line(1))
}

func TestTokenizeSuppressesEmptyFinalLineAtEOF(t *testing.T) {
	s := LoadBytes([]byte("one\ntwo\n"), Options{})
	assert.Equal(t, 2, s.NumLines(), "a trailing newline must not produce a phantom empty third line")
}

func TestStrippedSpaceAllElidesAllWhitespace(t *testing.T) {
	opts := Options{IgnoreSpace: SpaceAll}
	out := stripped([]byte("a b\tc\n"), opts)
	assert.Equal(t, []byte("abc\n"), out)
}

func TestStrippedSpaceChangeCollapsesRuns(t *testing.T) {
	opts := Options{IgnoreSpace: SpaceChange}
	out := stripped([]byte("a   b\n"), opts)
	assert.Equal(t, []byte("a b\n"), out)
}

func TestStrippedIgnoreEOLStyleTrimsEOL(t *testing.T) {
	opts := Options{IgnoreEOLStyle: true}
	assert.Equal(t, []byte("a"), stripped([]byte("a\r\n"), opts))
	assert.Equal(t, []byte("a"), stripped([]byte("a\n"), opts))
}
