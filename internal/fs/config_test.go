package fs

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigNoFilenameReturnsDefaults(t *testing.T) {
	cfg, err := LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig().ChunkSize, cfg.ChunkSize)
	assert.Equal(t, 1, cfg.DirCacheSize)
}

func TestLoadConfigMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "does-not-exist.yml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), Config{
		ChunkSize:      cfg.ChunkSize,
		CompressDeltas: cfg.CompressDeltas,
		DirCacheSize:   cfg.DirCacheSize,
	})
}

func TestLoadConfigOverridesFromYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "repo.yml")
	require.NoError(t, os.WriteFile(path, []byte("chunk-size: 4096\ncompress-deltas: false\nverbose: true\n"), 0666))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 4096, cfg.ChunkSize)
	assert.False(t, cfg.CompressDeltas)
	assert.True(t, cfg.Verbose)
	assert.Equal(t, 1, cfg.DirCacheSize, "omitted dir-cache-size falls back to the single-slot default")
}
