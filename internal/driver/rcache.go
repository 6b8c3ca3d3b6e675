package driver

import (
	"encoding/hex"
	"errors"
	"os"
	"path/filepath"
	"sync"

	"github.com/vmihailenco/msgpack/v5"

	"ferro/internal/borrow"
	"ferro/internal/diag"
	"ferro/internal/project"
	"ferro/internal/tir"
)

// Bump when the payload layout changes; stale entries fall back to a fresh
// check.
const cacheSchemaVersion uint16 = 1

// ResultCache persists per-function verification results keyed by a digest
// of the function body and the module's type table. Thread-safe.
type ResultCache struct {
	mu  sync.RWMutex
	dir string
}

// OpenResultCache initializes the cache at the standard user location.
func OpenResultCache(app string) (*ResultCache, error) {
	base := os.Getenv("XDG_CACHE_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, err
		}
		base = filepath.Join(home, ".cache")
	}
	dir := filepath.Join(base, app)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &ResultCache{dir: dir}, nil
}

// OpenResultCacheAt uses an explicit directory; tests and --cache-dir use
// this entry point.
func OpenResultCacheAt(dir string) (*ResultCache, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &ResultCache{dir: dir}, nil
}

// Dir returns the cache root on disk.
func (c *ResultCache) Dir() string { return c.dir }

// resultPayload is the serialized cache entry. The bag is flattened into the
// diagnostics slice because Result carries it as a live collection.
type resultPayload struct {
	Schema uint16            `msgpack:"schema"`
	Result borrow.Result     `msgpack:"result"`
	Diags  []diag.Diagnostic `msgpack:"diags"`
}

func (c *ResultCache) pathFor(key project.Digest) string {
	return filepath.Join(c.dir, "results", hex.EncodeToString(key[:])+".mp")
}

// Put serializes the result atomically: write to a temp file in the target
// directory, then rename over the final path.
func (c *ResultCache) Put(key project.Digest, res *borrow.Result) error {
	if c == nil || res == nil {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	payload := resultPayload{
		Schema: cacheSchemaVersion,
		Result: *res,
	}
	if res.Bag != nil {
		payload.Diags = res.Bag.Items()
	}

	p := c.pathFor(key)
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return err
	}
	f, err := os.CreateTemp(filepath.Dir(p), "tmp-*")
	if err != nil {
		return err
	}
	defer func() { _ = os.Remove(f.Name()) }()

	if err := msgpack.NewEncoder(f).Encode(&payload); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	return os.Rename(f.Name(), p)
}

// Get loads a cached result. A missing entry or schema mismatch is a miss,
// not an error.
func (c *ResultCache) Get(key project.Digest) (*borrow.Result, bool) {
	if c == nil {
		return nil, false
	}
	c.mu.RLock()
	defer c.mu.RUnlock()

	f, err := os.Open(c.pathFor(key))
	if err != nil {
		return nil, false
	}
	defer func() { _ = f.Close() }()

	var payload resultPayload
	if err := msgpack.NewDecoder(f).Decode(&payload); err != nil {
		return nil, false
	}
	if payload.Schema != cacheSchemaVersion {
		return nil, false
	}

	res := payload.Result
	res.Bag = diag.NewBag(max(len(payload.Diags), 1))
	for _, d := range payload.Diags {
		res.Bag.Add(d)
	}
	return &res, true
}

// DropAll wipes the cache, useful after format changes.
func (c *ResultCache) DropAll() error {
	if c == nil {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	err := os.RemoveAll(filepath.Join(c.dir, "results"))
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}

// FuncDigest fingerprints a function for cache lookup: the function arenas
// combined with the module's type table, since type facts (Copy, Interior,
// lifetimes) feed the verdict.
func FuncDigest(mod *tir.Module, fn *tir.Func) (project.Digest, error) {
	fb, err := msgpack.Marshal(fn)
	if err != nil {
		return project.Digest{}, err
	}
	tb, err := msgpack.Marshal(mod.Types)
	if err != nil {
		return project.Digest{}, err
	}
	return project.Combine(project.HashBytes(fb), project.HashBytes(tb)), nil
}
