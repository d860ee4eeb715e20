// Package worktree scans, empties, and materializes the working directory
// against an index.
package worktree

import (
	"fmt"
	"io"
	"path/filepath"
	"sort"
	"strings"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/util"

	"github.com/xsgit/xsgit/internal/objstore"
)

// ControlDir is the name of the repository-control subtree, skipped at any
// depth during a scan and at the top level during an empty.
const ControlDir = ".xsgit"

// Scan walks the working filesystem rooted at fs, skipping ControlDir at
// any depth, hashes each regular file into the object store as a blob, and
// returns the forward-slash-normalized path -> blob OID map.
func Scan(fs billy.Filesystem, store *objstore.Store) (map[string]string, error) {
	out := make(map[string]string)
	err := walk(fs, "", func(path string, isDir bool) error {
		if isDir {
			return nil
		}
		f, err := fs.Open(path)
		if err != nil {
			return fmt.Errorf("worktree: open %s: %w", path, err)
		}
		content, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			return fmt.Errorf("worktree: read %s: %w", path, err)
		}
		oid, err := store.Put(content, objstore.KindBlob)
		if err != nil {
			return err
		}
		out[filepath.ToSlash(path)] = oid
		return nil
	})
	return out, err
}

func walk(fs billy.Filesystem, dir string, fn func(path string, isDir bool) error) error {
	infos, err := fs.ReadDir(dir)
	if err != nil {
		return nil
	}
	for _, info := range infos {
		name := info.Name()
		if name == ControlDir {
			continue
		}
		path := name
		if dir != "" {
			path = dir + "/" + name
		}
		if info.IsDir() {
			if err := fn(path, true); err != nil {
				return err
			}
			if err := walk(fs, path, fn); err != nil {
				return err
			}
			continue
		}
		if err := fn(path, false); err != nil {
			return err
		}
	}
	return nil
}

// Empty removes every file and empty directory below fs's root except
// anything within ControlDir.
func Empty(fs billy.Filesystem) error {
	infos, err := fs.ReadDir("")
	if err != nil {
		return nil
	}
	for _, info := range infos {
		if info.Name() == ControlDir {
			continue
		}
		if err := util.RemoveAll(fs, info.Name()); err != nil {
			return fmt.Errorf("worktree: remove %s: %w", info.Name(), err)
		}
	}
	return nil
}

// Materialize empties the working tree and then writes every (path, oid)
// pair from idx to disk, creating intermediate directories as needed.
func Materialize(fs billy.Filesystem, store *objstore.Store, idx map[string]string) error {
	if err := Empty(fs); err != nil {
		return err
	}

	paths := make([]string, 0, len(idx))
	for p := range idx {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	for _, path := range paths {
		oid := idx[path]
		content, err := store.Get(oid, objstore.KindBlob)
		if err != nil {
			return err
		}
		if dir := parentDir(path); dir != "" {
			if err := fs.MkdirAll(dir, 0o755); err != nil {
				return fmt.Errorf("worktree: mkdir %s: %w", dir, err)
			}
		}
		f, err := fs.Create(path)
		if err != nil {
			return fmt.Errorf("worktree: create %s: %w", path, err)
		}
		if _, err := f.Write(content); err != nil {
			f.Close()
			return fmt.Errorf("worktree: write %s: %w", path, err)
		}
		if err := f.Close(); err != nil {
			return fmt.Errorf("worktree: close %s: %w", path, err)
		}
	}
	return nil
}

func parentDir(path string) string {
	i := strings.LastIndexByte(path, '/')
	if i < 0 {
		return ""
	}
	return path[:i]
}
