package difflib

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompareIdenticalSourcesHasOnlyEqualOpcodes(t *testing.T) {
	a := LoadBytes([]byte("one\ntwo\nthree\n"), Options{})
	b := LoadBytes([]byte("one\ntwo\nthree\n"), Options{})

	ops := Compare(a, b, Options{})
	for _, op := range ops {
		assert.Equal(t, byte('e'), op.Tag)
	}
}

func TestCompareSingleLineReplace(t *testing.T) {
	a := LoadBytes([]byte("one\ntwo\nthree\n"), Options{})
	b := LoadBytes([]byte("one\nTWO\nthree\n"), Options{})

	ops := Compare(a, b, Options{})
	require.NotEmpty(t, ops)

	var replaced bool
	for _, op := range ops {
		if op.Tag == 'r' && op.AStart == 1 && op.AEnd == 2 && op.BStart == 1 && op.BEnd == 2 {
			replaced = true
		}
	}
	assert.True(t, replaced, "expected a single-line replace opcode at line 1, got %+v", ops)
}

func TestCompareIgnoreSpaceChange(t *testing.T) {
	opts := Options{IgnoreSpace: SpaceChange}
	a := LoadBytes([]byte("a  b\n"), opts)
	b := LoadBytes([]byte("a b\n"), opts)

	ops := Compare(a, b, opts)
	for _, op := range ops {
		assert.Equal(t, byte('e'), op.Tag)
	}
}

func TestCompareIgnoreEOLStyle(t *testing.T) {
	opts := Options{IgnoreEOLStyle: true}
	a := LoadBytes([]byte("one\r\ntwo\r\n"), opts)
	b := LoadBytes([]byte("one\ntwo\n"), opts)

	ops := Compare(a, b, opts)
	for _, op := range ops {
		assert.Equal(t, byte('e'), op.Tag)
	}
}

func TestSourceTrailingEOL(t *testing.T) {
	withEOL := LoadBytes([]byte("a\nb\n"), Options{})
	withoutEOL := LoadBytes([]byte("a\nb"), Options{})

	assert.True(t, withEOL.HasTrailingEOL())
	assert.False(t, withoutEOL.HasTrailingEOL())
	assert.Equal(t, 2, withoutEOL.NumLines())
}
