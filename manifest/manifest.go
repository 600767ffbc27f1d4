// Package manifest handles mdvm.toml runtime configuration.
package manifest

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Manifest represents an mdvm.toml configuration file.
type Manifest struct {
	VM      VMConfig      `toml:"vm"`
	Profile ProfileConfig `toml:"profile"`

	// Dir is the directory containing the mdvm.toml file (set at load time).
	Dir string `toml:"-"`
}

// VMConfig configures the execution engine.
type VMConfig struct {
	Debug        bool `toml:"debug"`
	MaxCallDepth int  `toml:"max-call-depth"`
}

// ProfileConfig configures run-history recording.
type ProfileConfig struct {
	Database string `toml:"database"`
}

// Default returns the configuration used when no manifest file exists.
func Default() *Manifest {
	return &Manifest{
		VM: VMConfig{MaxCallDepth: 1024},
	}
}

// Load parses an mdvm.toml file from the given directory.
func Load(dir string) (*Manifest, error) {
	path := filepath.Join(dir, "mdvm.toml")
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}

	m := Default()
	if err := toml.Unmarshal(data, m); err != nil {
		return nil, fmt.Errorf("parse error in %s: %w", path, err)
	}

	m.Dir, err = filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("cannot resolve path %s: %w", dir, err)
	}

	if m.VM.MaxCallDepth <= 0 {
		m.VM.MaxCallDepth = 1024
	}

	return m, nil
}

// FindAndLoad walks up from startDir to find an mdvm.toml file, then loads
// and returns the manifest. Returns the defaults if no manifest is found.
func FindAndLoad(startDir string) (*Manifest, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return nil, err
	}

	for {
		path := filepath.Join(dir, "mdvm.toml")
		if _, err := os.Stat(path); err == nil {
			return Load(dir)
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return Default(), nil
		}
		dir = parent
	}
}
