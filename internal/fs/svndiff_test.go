package fs

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeltifyDecodeRoundTripVsNonEmptyBase(t *testing.T) {
	base := []byte("the quick brown fox jumps over the lazy dog")
	target := []byte("the quick brown fox leaps over the lazy dog and runs away")

	body, err := deltify(base, target, false)
	require.NoError(t, err)

	out, err := decodeSvnDiff(body, base)
	require.NoError(t, err)
	assert.Equal(t, target, out)
}

func TestDeltifyDecodeRoundTripVsEmptyBase(t *testing.T) {
	target := []byte("brand new file content")

	body, err := deltify(nil, target, false)
	require.NoError(t, err)

	out, err := decodeSvnDiff(body, nil)
	require.NoError(t, err)
	assert.Equal(t, target, out)
}

func TestDeltifyDecodeRoundTripCompressed(t *testing.T) {
	base := []byte("aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa")
	target := append(append([]byte{}, base...), []byte("bbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb")...)

	body, err := deltify(base, target, true)
	require.NoError(t, err)

	out, err := decodeSvnDiff(body, base)
	require.NoError(t, err)
	assert.Equal(t, target, out)
}

func TestNewSvnDiffWindowReaderRejectsBadMagic(t *testing.T) {
	_, err := newSvnDiffWindowReader([]byte("not-svndiff"))
	assert.ErrorIs(t, err, ErrCorruption)
}
