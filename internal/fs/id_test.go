package fs

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIDStringAndParseRoundTripMutable(t *testing.T) {
	id := TxnNodeID("1", "0", "5-0")
	parsed, err := ParseID(id.String())
	require.NoError(t, err)
	assert.Equal(t, id, parsed)
}

func TestIDStringAndParseRoundTripImmutable(t *testing.T) {
	id := RevNodeID("3", "1", 7, 128)
	parsed, err := ParseID(id.String())
	require.NoError(t, err)
	assert.Equal(t, id, parsed)
}

func TestNextKeyIncrementsWithCarry(t *testing.T) {
	assert.Equal(t, "1", nextKey("0"))
	assert.Equal(t, "a", nextKey("9"))
	assert.Equal(t, "10", nextKey("z"))
	assert.Equal(t, "1a0", nextKey("19z"))
}

func TestAddKeysBase36Addition(t *testing.T) {
	assert.Equal(t, "1", addKeys("0", "1"))
	assert.Equal(t, "a", addKeys("5", "5"))
	assert.Equal(t, "10", addKeys("z", "1"))
	assert.Equal(t, "100", addKeys("zz", "1"))
}

func TestTemporaryIDDetectsUnderscorePrefix(t *testing.T) {
	suffix, isTemp := temporaryID("_3f")
	assert.True(t, isTemp)
	assert.Equal(t, "3f", suffix)

	_, isTemp = temporaryID("3f")
	assert.False(t, isTemp)
}
