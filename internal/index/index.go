// Package index implements the staging snapshot: a mutable mapping from
// working-tree path to blob OID representing the tree that the next commit
// will contain.
package index

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"

	"github.com/go-git/go-billy/v5"
)

// Path is the file, relative to the repository control directory, that
// persists the index.
const Path = "index"

// Index is the flat path -> blob OID staging map.
type Index struct {
	entries map[string]string
}

// New returns an empty index.
func New() *Index {
	return &Index{entries: make(map[string]string)}
}

// Get returns the staged OID at path and whether an entry exists.
func (ix *Index) Get(path string) (string, bool) {
	oid, ok := ix.entries[path]
	return oid, ok
}

// Set upserts path -> oid.
func (ix *Index) Set(path, oid string) {
	ix.entries[path] = oid
}

// Delete removes path from the index, if present.
func (ix *Index) Delete(path string) {
	delete(ix.entries, path)
}

// Paths returns every staged path in sorted order.
func (ix *Index) Paths() []string {
	out := make([]string, 0, len(ix.entries))
	for p := range ix.entries {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// Map returns a copy of the underlying path -> oid mapping.
func (ix *Index) Map() map[string]string {
	out := make(map[string]string, len(ix.entries))
	for k, v := range ix.entries {
		out[k] = v
	}
	return out
}

// Replace discards the current contents and installs m wholesale.
func (ix *Index) Replace(m map[string]string) {
	cp := make(map[string]string, len(m))
	for k, v := range m {
		cp[k] = v
	}
	ix.entries = cp
}

// Load reads the on-disk index from fs. A missing file yields an empty
// index, matching scoped-acquisition semantics: callers always get a usable
// Index back.
func Load(fs billy.Filesystem) (*Index, error) {
	f, err := fs.Open(Path)
	if err != nil {
		return New(), nil
	}
	defer f.Close()

	raw, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("index: read: %w", err)
	}
	if len(raw) == 0 {
		return New(), nil
	}

	var m map[string]string
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("index: decode: %w", err)
	}
	ix := New()
	ix.Replace(m)
	return ix, nil
}

// Save rewrites the on-disk index atomically (write-temp-then-rename
// within the same directory).
func (ix *Index) Save(fs billy.Filesystem) error {
	raw, err := json.MarshalIndent(ix.Map(), "", "  ")
	if err != nil {
		return fmt.Errorf("index: encode: %w", err)
	}

	tmp, err := fs.TempFile("", "index-")
	if err != nil {
		return fmt.Errorf("index: create temp: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		fs.Remove(tmpName)
		return fmt.Errorf("index: write: %w", err)
	}
	if err := tmp.Close(); err != nil {
		fs.Remove(tmpName)
		return fmt.Errorf("index: close: %w", err)
	}
	if err := fs.Rename(tmpName, Path); err != nil {
		fs.Remove(tmpName)
		return fmt.Errorf("index: rename: %w", err)
	}
	return nil
}

// WithIndex implements the scoped-acquisition pattern from the concurrency
// model: load the index, let fn mutate it, and save on successful return.
func WithIndex(fs billy.Filesystem, fn func(*Index) error) error {
	ix, err := Load(fs)
	if err != nil {
		return err
	}
	if err := fn(ix); err != nil {
		return err
	}
	return ix.Save(fs)
}
