package fs

import (
	"bufio"
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeHashRoundTrip(t *testing.T) {
	entries := map[string][]byte{
		"svn:log":    []byte("a commit message"),
		"svn:author": []byte("alice"),
	}

	var buf bytes.Buffer
	require.NoError(t, encodeHash(&buf, entries))

	decoded, err := decodeHash(bufio.NewReader(bytes.NewReader(buf.Bytes())))
	require.NoError(t, err)
	assert.Equal(t, entries, decoded)
}

func TestDecodeHashEmpty(t *testing.T) {
	decoded, err := decodeHash(bufio.NewReader(bytes.NewReader([]byte("END\n"))))
	require.NoError(t, err)
	assert.Empty(t, decoded)
}

func TestDecodeHashWithOverlayAppliesSetsAndDeletes(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, encodeHash(&buf, map[string][]byte{
		"a.txt": []byte("file 1.0.0/0"),
		"b.txt": []byte("file 1.1.0/10"),
	}))
	require.NoError(t, encodeHashEdit(&buf, hashEdit{kind: 'D', key: "a.txt"}))
	require.NoError(t, encodeHashEdit(&buf, hashEdit{kind: 'K', key: "c.txt", value: []byte("file 1.2.0/20")}))

	decoded, err := decodeHashWithOverlay(bufio.NewReader(bytes.NewReader(buf.Bytes())))
	require.NoError(t, err)

	_, hasA := decoded["a.txt"]
	assert.False(t, hasA, "overlay delete should remove a.txt")
	assert.Equal(t, "file 1.1.0/10", string(decoded["b.txt"]))
	assert.Equal(t, "file 1.2.0/20", string(decoded["c.txt"]))
}

func TestDecodeHashRejectsMissingEnd(t *testing.T) {
	_, err := decodeHash(bufio.NewReader(bytes.NewReader([]byte{})))
	assert.ErrorIs(t, err, ErrCorruption)
}
