package fs

import (
	"bufio"
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFoldChangesCollapsesAddDeleteAdd(t *testing.T) {
	changes := []Change{
		{NodeRevID: "1.1._0", Action: ActionAdd, TextMod: true, Path: "/a.txt"},
		{NodeRevID: "1.1._0", Action: ActionDelete, Path: "/a.txt"},
		{NodeRevID: "1.1._1", Action: ActionAdd, TextMod: true, Path: "/a.txt"},
	}

	folded, err := FoldChanges(changes, false)
	require.NoError(t, err)
	require.Len(t, folded, 1)
	assert.Equal(t, ActionAdd, folded[0].Action)
	assert.Equal(t, "1.1._1", folded[0].NodeRevID)
}

func TestFoldChangesResetDropsEntry(t *testing.T) {
	changes := []Change{
		{NodeRevID: "1.1._0", Action: ActionAdd, Path: "/a.txt"},
		{NodeRevID: "-", Action: ActionReset, Path: "/a.txt"},
	}

	folded, err := FoldChanges(changes, false)
	require.NoError(t, err)
	assert.Empty(t, folded)
}

func TestFoldChangesMergesRepeatedModify(t *testing.T) {
	changes := []Change{
		{NodeRevID: "1.1._0", Action: ActionModify, TextMod: true, Path: "/a.txt"},
		{NodeRevID: "1.1._0", Action: ActionModify, PropMod: true, Path: "/a.txt"},
	}

	folded, err := FoldChanges(changes, false)
	require.NoError(t, err)
	require.Len(t, folded, 1)
	assert.True(t, folded[0].TextMod)
	assert.True(t, folded[0].PropMod)
}

func TestFoldChangesDeletePrunesDescendants(t *testing.T) {
	changes := []Change{
		{NodeRevID: "1.1._0", Action: ActionModify, Path: "/dir"},
		{NodeRevID: "1.1._1", Action: ActionAdd, Path: "/dir/child.txt"},
		{NodeRevID: "1.1._0", Action: ActionDelete, Path: "/dir"},
	}

	folded, err := FoldChanges(changes, false)
	require.NoError(t, err)
	require.Len(t, folded, 1)
	assert.Equal(t, "/dir", folded[0].Path)
	assert.Equal(t, ActionDelete, folded[0].Action)
}

func TestEncodeDecodeChangeRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	c := Change{NodeRevID: "1.1.0/0", Action: ActionAdd, TextMod: true, Path: "/a.txt", CopyFromRev: 3, CopyFromPath: "/orig.txt"}
	require.NoError(t, encodeChange(&buf, c))

	decoded, err := decodeChanges(bufio.NewReader(bytes.NewReader(buf.Bytes())))
	require.NoError(t, err)
	require.Len(t, decoded, 1)
	assert.Equal(t, c, decoded[0])
}
