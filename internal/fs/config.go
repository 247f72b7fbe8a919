package fs

import (
	"os"

	yml "gopkg.in/yaml.v3"
)

// Config captures the repository-level tunables the distilled spec leaves
// as implementation defaults. Loaded the way the teacher loads rules.yml
// (lib/../rules.go in the root package) — optional file, yaml.v3, sane
// zero-value defaults when absent.
type Config struct {
	Filename string `yaml:"-"`

	// ChunkSize is the chunk-size setting for file-diff paging (spec.md
	// §4.6 "Paging"). Nothing in this module passes it on to the diff
	// engine, which takes its paging chunk from difflib.Options.
	ChunkSize int `yaml:"chunk-size,omitempty"`

	// CompressDeltas toggles flate compression of svndiff window newdata
	// (SPEC_FULL §4 klauspost/compress wiring).
	CompressDeltas bool `yaml:"compress-deltas,omitempty"`

	// DirCacheSize sizes the single-slot directory hot cache described in
	// spec.md §4.5. The spec mandates "single-slot"; values other than 1
	// are accepted for experimentation but 1 is the spec-compliant default.
	DirCacheSize int `yaml:"dir-cache-size,omitempty"`

	// Verbose/Quiet mirror the teacher's -verbose/-quiet flags, mapped to
	// the zap logger's level in logging.go.
	Verbose bool `yaml:"verbose,omitempty"`
	Quiet   bool `yaml:"quiet,omitempty"`
}

// DefaultConfig returns the zero-configuration defaults used when no
// config file is present.
func DefaultConfig() Config {
	return Config{
		ChunkSize:      128 * 1024,
		CompressDeltas: true,
		DirCacheSize:   1,
	}
}

// LoadConfig reads a yaml config file, falling back to DefaultConfig when
// filename is empty or does not exist.
func LoadConfig(filename string) (Config, error) {
	cfg := DefaultConfig()
	cfg.Filename = filename

	if filename == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(filename)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, err
	}

	if err := yml.Unmarshal(data, &cfg); err != nil {
		return cfg, err
	}
	if cfg.ChunkSize == 0 {
		cfg.ChunkSize = DefaultConfig().ChunkSize
	}
	if cfg.DirCacheSize == 0 {
		cfg.DirCacheSize = 1
	}
	return cfg, nil
}
