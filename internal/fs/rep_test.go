package fs

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPredecessorDistanceIsLowestSetBit(t *testing.T) {
	assert.Equal(t, 0, predecessorDistance(0))
	assert.Equal(t, 1, predecessorDistance(1))
	assert.Equal(t, 2, predecessorDistance(2))
	assert.Equal(t, 1, predecessorDistance(3))
	assert.Equal(t, 4, predecessorDistance(4))
	assert.Equal(t, 1, predecessorDistance(5))
	assert.Equal(t, 2, predecessorDistance(6))
	assert.Equal(t, 8, predecessorDistance(8))
}
