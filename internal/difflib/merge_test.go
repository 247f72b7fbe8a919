package difflib

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatThreeWayConflictingEditMatchingEOLs(t *testing.T) {
	original := LoadBytes([]byte("x\n"), Options{})
	modified := LoadBytes([]byte("y\n"), Options{})
	latest := LoadBytes([]byte("z\n"), Options{})

	out, hasConflict := FormatThreeWay(original, modified, latest, nil, "mod", "orig", "latest", StyleModifiedLatest, Options{})
	require.True(t, hasConflict)
	assert.Equal(t, "<<<<<<< mod\ny\n=======\nz\n>>>>>>> latest\n", out)
}

func TestFormatThreeWayModifiedOriginalLatestAddsOriginalSection(t *testing.T) {
	original := LoadBytes([]byte("x\n"), Options{})
	modified := LoadBytes([]byte("y\n"), Options{})
	latest := LoadBytes([]byte("z\n"), Options{})

	out, hasConflict := FormatThreeWay(original, modified, latest, nil, "mod", "orig", "latest", StyleModifiedOriginalLatest, Options{})
	require.True(t, hasConflict)
	assert.Equal(t, "<<<<<<< mod\ny\n||||||| orig\nx\n=======\nz\n>>>>>>> latest\n", out)
}

func TestFormatThreeWayOnlyOneSideChangedIsNotAConflict(t *testing.T) {
	original := LoadBytes([]byte("a\nb\nc\n"), Options{})
	modified := LoadBytes([]byte("a\nB\nc\n"), Options{})
	latest := LoadBytes([]byte("a\nb\nc\n"), Options{})

	out, hasConflict := FormatThreeWay(original, modified, latest, nil, "mod", "orig", "latest", StyleModifiedLatest, Options{})
	assert.False(t, hasConflict)
	assert.Equal(t, "a\nB\nc\n", out)
}

func TestFormatThreeWayIdenticalEditsOnBothSidesIsNotAConflict(t *testing.T) {
	original := LoadBytes([]byte("a\nb\nc\n"), Options{})
	modified := LoadBytes([]byte("a\nB\nc\n"), Options{})
	latest := LoadBytes([]byte("a\nB\nc\n"), Options{})

	_, hasConflict := FormatThreeWay(original, modified, latest, nil, "mod", "orig", "latest", StyleModifiedLatest, Options{})
	assert.False(t, hasConflict)
}

func TestFormatThreeWayStyleModifiedResolvesInFavourOfModified(t *testing.T) {
	original := LoadBytes([]byte("x\n"), Options{})
	modified := LoadBytes([]byte("y\n"), Options{})
	latest := LoadBytes([]byte("z\n"), Options{})

	out, hasConflict := FormatThreeWay(original, modified, latest, nil, "mod", "orig", "latest", StyleModified, Options{})
	require.True(t, hasConflict)
	assert.Equal(t, "y\n", out)
}

func TestFormatThreeWayOnlyConflictsSkipsNonConflictingHunks(t *testing.T) {
	original := LoadBytes([]byte("a\nb\nc\nd\ne\n"), Options{})
	modified := LoadBytes([]byte("a\nB\nc\nd\ne\n"), Options{})
	latest := LoadBytes([]byte("a\nb\nc\nd\nE\n"), Options{})

	out, hasConflict := FormatThreeWay(original, modified, latest, nil, "mod", "orig", "latest", StyleOnlyConflicts, Options{})
	assert.False(t, hasConflict)
	assert.Empty(t, out, "no side disagrees on the same region, so nothing should be classified as a conflict")
}
