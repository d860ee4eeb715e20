// Package refstore manages the reference namespace: named pointers into the
// object store, with symbolic (pointer-to-pointer) indirection.
package refstore

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/go-git/go-billy/v5"
)

// maxDerefDepth bounds symbolic-chain resolution; on-disk chains are
// expected to be short, and this also catches cycles.
const maxDerefDepth = 8

// ErrEmptyValue is returned when update is asked to write an empty value.
var ErrEmptyValue = errors.New("refstore: cannot write empty ref value")

// ErrChainTooDeep is returned when symbolic resolution exceeds maxDerefDepth.
var ErrChainTooDeep = errors.New("refstore: symbolic reference chain too deep (cycle?)")

const symbolicPrefix = "ref: "

// Value is a tagged union: either a concrete OID or a symbolic pointer to
// another reference name.
type Value struct {
	Symbolic bool
	// Target holds the referenced ref name when Symbolic; OID holds the
	// concrete OID otherwise. Symbolic==false with OID=="" means the ref
	// does not exist.
	OID    string
	Target string
}

// IsZero reports whether this Value represents a non-existent reference.
func (v Value) IsZero() bool { return !v.Symbolic && v.OID == "" }

// Store is the reference namespace rooted at a billy filesystem (the
// repository control directory).
type Store struct {
	fs billy.Filesystem
}

// New returns a Store rooted at fs.
func New(fs billy.Filesystem) *Store {
	return &Store{fs: fs}
}

// Get returns the value named by name. When deref is true, symbolic chains
// are followed to their concrete tail; otherwise the immediate on-disk
// value is returned unresolved.
func (s *Store) Get(name string, deref bool) (Value, error) {
	if !deref {
		return s.readOne(name)
	}
	_, v, err := s.resolveChain(name)
	return v, err
}

// Update writes value at name. When deref is true, the symbolic chain
// starting at name is followed and the write lands on the tail reference
// instead of name itself. A symbolic value is serialized as "ref: <target>";
// a concrete one as the raw 40-hex OID.
func (s *Store) Update(name string, value Value, deref bool) error {
	if value.Symbolic && value.Target == "" {
		return ErrEmptyValue
	}
	if !value.Symbolic && value.OID == "" {
		return ErrEmptyValue
	}

	target := name
	if deref {
		tail, _, err := s.resolveChain(name)
		if err != nil {
			return err
		}
		target = tail
	}

	var contents string
	if value.Symbolic {
		contents = symbolicPrefix + value.Target + "\n"
	} else {
		contents = value.OID + "\n"
	}
	return s.writeAtomic(target, contents)
}

// Delete removes the reference at name (or, when deref is true, the tail of
// its symbolic chain) from disk. Deleting a reference that does not exist
// is a no-op.
func (s *Store) Delete(name string, deref bool) error {
	target := name
	if deref {
		tail, _, err := s.resolveChain(name)
		if err != nil {
			return err
		}
		target = tail
	}
	err := s.fs.Remove(target)
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("refstore: delete %s: %w", target, err)
	}
	return nil
}

// Entry is one reference yielded by Iter.
type Entry struct {
	Name  string
	Value Value
}

// Iter yields every reference whose name starts with prefix, in sorted
// order. The iteration set is {HEAD, MERGE_HEAD} union every file under
// refs/**. Entries whose resolved value is empty (dangling or absent) are
// skipped.
func (s *Store) Iter(prefix string, deref bool) ([]Entry, error) {
	var names []string
	for _, candidate := range []string{"HEAD", "MERGE_HEAD"} {
		if ok, _ := fileExists(s.fs, candidate); ok {
			names = append(names, candidate)
		}
	}
	walked, err := s.walkRefs("refs")
	if err != nil {
		return nil, err
	}
	names = append(names, walked...)

	sort.Strings(names)

	var out []Entry
	for _, n := range names {
		if !strings.HasPrefix(n, prefix) {
			continue
		}
		v, err := s.Get(n, deref)
		if err != nil {
			return nil, err
		}
		if v.IsZero() {
			continue
		}
		out = append(out, Entry{Name: n, Value: v})
	}
	return out, nil
}

func (s *Store) walkRefs(dir string) ([]string, error) {
	infos, err := s.fs.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("refstore: walk %s: %w", dir, err)
	}
	var out []string
	for _, info := range infos {
		full := s.fs.Join(dir, info.Name())
		if info.IsDir() {
			sub, err := s.walkRefs(full)
			if err != nil {
				return nil, err
			}
			out = append(out, sub...)
			continue
		}
		out = append(out, full)
	}
	return out, nil
}

// resolveChain follows symbolic indirection from name until it reaches a
// concrete OID (or a non-existent target), returning the tail reference
// name and its resolved value.
func (s *Store) resolveChain(name string) (tail string, value Value, err error) {
	cur := name
	for depth := 0; depth < maxDerefDepth; depth++ {
		v, err := s.readOne(cur)
		if err != nil {
			return "", Value{}, err
		}
		if v.IsZero() {
			return cur, v, nil
		}
		if !v.Symbolic {
			return cur, v, nil
		}
		cur = v.Target
	}
	return "", Value{}, fmt.Errorf("refstore: resolving %s: %w", name, ErrChainTooDeep)
}

func (s *Store) readOne(name string) (Value, error) {
	f, err := s.fs.Open(name)
	if err != nil {
		if os.IsNotExist(err) {
			return Value{}, nil
		}
		return Value{}, fmt.Errorf("refstore: read %s: %w", name, err)
	}
	defer f.Close()
	raw, err := io.ReadAll(f)
	if err != nil {
		return Value{}, fmt.Errorf("refstore: read %s: %w", name, err)
	}
	text := strings.TrimRight(string(raw), "\n")
	if text == "" {
		return Value{}, nil
	}
	if strings.HasPrefix(text, symbolicPrefix) {
		return Value{Symbolic: true, Target: strings.TrimPrefix(text, symbolicPrefix)}, nil
	}
	return Value{OID: text}, nil
}

func (s *Store) writeAtomic(name, contents string) error {
	dir := parentDir(name)
	if dir != "" {
		if err := s.fs.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("refstore: mkdir %s: %w", dir, err)
		}
	}
	tmp, err := s.fs.TempFile(dir, "ref-")
	if err != nil {
		return fmt.Errorf("refstore: create temp ref: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write([]byte(contents)); err != nil {
		tmp.Close()
		s.fs.Remove(tmpName)
		return fmt.Errorf("refstore: write %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		s.fs.Remove(tmpName)
		return fmt.Errorf("refstore: close %s: %w", name, err)
	}
	if err := s.fs.Rename(tmpName, name); err != nil {
		s.fs.Remove(tmpName)
		return fmt.Errorf("refstore: rename into %s: %w", name, err)
	}
	return nil
}

func parentDir(name string) string {
	i := strings.LastIndexByte(name, '/')
	if i < 0 {
		return ""
	}
	return name[:i]
}

func fileExists(fs billy.Filesystem, name string) (bool, error) {
	_, err := fs.Stat(name)
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, err
}
