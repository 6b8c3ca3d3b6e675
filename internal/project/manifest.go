// Package project locates and reads the ferro.toml manifest.
package project

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
)

// ManifestName is the file the project root is identified by.
const ManifestName = "ferro.toml"

// Manifest is a loaded ferro.toml plus where it was found.
type Manifest struct {
	Path   string
	Root   string
	Config Config
}

// Config mirrors the manifest layout.
type Config struct {
	Package PackageConfig `toml:"package"`
	Input   InputConfig   `toml:"input"`
	Check   CheckConfig   `toml:"check"`
}

type PackageConfig struct {
	Name string `toml:"name"`
}

// InputConfig names the typed module the verifier consumes.
type InputConfig struct {
	Module string `toml:"module"`
}

// CheckConfig carries the optional checker knobs; zero values mean "use the
// CLI default".
type CheckConfig struct {
	MaxDiagnostics int    `toml:"max_diagnostics"`
	Jobs           int    `toml:"jobs"`
	Format         string `toml:"format"`
}

// FindManifest walks up from startDir to locate ferro.toml.
func FindManifest(startDir string) (path string, ok bool, err error) {
	if startDir == "" {
		startDir = "."
	}
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return "", false, fmt.Errorf("failed to resolve start directory: %w", err)
	}
	for {
		candidate := filepath.Join(dir, ManifestName)
		if _, err := os.Stat(candidate); err == nil {
			return candidate, true, nil
		} else if !errors.Is(err, os.ErrNotExist) {
			return "", false, fmt.Errorf("failed to stat %q: %w", candidate, err)
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return "", false, nil
}

// Load reads and validates a manifest file.
func Load(path string) (*Manifest, error) {
	var cfg Config
	meta, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to parse TOML: %w", path, err)
	}
	if !meta.IsDefined("package", "name") || strings.TrimSpace(cfg.Package.Name) == "" {
		return nil, fmt.Errorf("%s: missing [package].name", path)
	}
	if !meta.IsDefined("input", "module") || strings.TrimSpace(cfg.Input.Module) == "" {
		return nil, fmt.Errorf("%s: missing [input].module", path)
	}
	return &Manifest{
		Path:   path,
		Root:   filepath.Dir(path),
		Config: cfg,
	}, nil
}

// Discover finds and loads the manifest governing startDir, if any.
func Discover(startDir string) (*Manifest, bool, error) {
	path, ok, err := FindManifest(startDir)
	if err != nil || !ok {
		return nil, ok, err
	}
	m, err := Load(path)
	if err != nil {
		return nil, true, err
	}
	return m, true, nil
}

// ModulePath resolves the input module relative to the manifest root.
func (m *Manifest) ModulePath() string {
	rel := strings.TrimSpace(m.Config.Input.Module)
	if filepath.IsAbs(rel) {
		return rel
	}
	return filepath.Join(m.Root, filepath.FromSlash(rel))
}
