package tir

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/vmihailenco/msgpack/v5"
)

// Load reads a serialized typed module (the type checker's output) from disk.
func Load(path string) (*Module, error) {
	// #nosec G304 -- path is provided by the caller
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	var m Module
	dec := msgpack.NewDecoder(f)
	if err := dec.Decode(&m); err != nil {
		return nil, fmt.Errorf("decode typed module %s: %w", path, err)
	}
	if m.Schema != SchemaVersion {
		return nil, fmt.Errorf("typed module %s: schema %d, expected %d", path, m.Schema, SchemaVersion)
	}
	return &m, nil
}

// Save serializes a module. Used by the type checker side of the contract
// and by tooling that round-trips modules for tests.
func Save(path string, m *Module) error {
	f, err := os.CreateTemp(filepath.Dir(path), "tmp-*")
	if err != nil {
		return err
	}
	defer func() { _ = os.Remove(f.Name()) }()

	m.Schema = SchemaVersion
	enc := msgpack.NewEncoder(f)
	if err := enc.Encode(m); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	return os.Rename(f.Name(), path)
}
