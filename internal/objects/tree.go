// Package objects implements the tree and commit codecs and the commit DAG
// walk built on top of the object store.
package objects

import (
	"fmt"
	"sort"
	"strings"

	"github.com/emirpasic/gods/maps/treemap"

	"github.com/xsgit/xsgit/internal/objstore"
)

// EmptyTreeOID is the well-known OID of the tree with no entries:
// hex(SHA1("tree\x00")).
const EmptyTreeOID = "4b825dc642cb6eb9a060e54bf8d69288fbee4904"

// EntryKind is the kind tag of a tree entry, restricted to the two kinds a
// tree may reference.
type EntryKind string

const (
	EntryBlob EntryKind = "blob"
	EntryTree EntryKind = "tree"
)

// Entry is one parsed line of a tree object.
type Entry struct {
	Kind EntryKind
	OID  string
	Name string
}

// errForbiddenName is wrapped in the error returned when a tree entry name
// is empty, ".", "..", or contains a "/".
var errForbiddenName = fmt.Errorf("objects: forbidden tree entry name")

func validateName(name string) error {
	if name == "." || name == ".." || strings.Contains(name, "/") || name == "" {
		return fmt.Errorf("%q: %w", name, errForbiddenName)
	}
	return nil
}

// EncodeTree serializes entries sorted by name into tree-object bytes.
// Sorting and framing happen here so re-serializing a decoded tree is
// byte-identical, per the sorted-order invariant.
func EncodeTree(entries []Entry) ([]byte, error) {
	sorted := append([]Entry(nil), entries...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Name < sorted[j].Name })

	// Concatenate every line before returning: building the payload via
	// repeated reassignment instead of accumulation was the source of a
	// since-fixed bug where only the last entry survived.
	var sb strings.Builder
	for _, e := range sorted {
		if err := validateName(e.Name); err != nil {
			return nil, err
		}
		sb.WriteString(string(e.Kind))
		sb.WriteByte(' ')
		sb.WriteString(e.OID)
		sb.WriteByte(' ')
		sb.WriteString(e.Name)
		sb.WriteByte('\n')
	}
	return []byte(sb.String()), nil
}

// DecodeTree parses tree-object payload bytes into entries.
func DecodeTree(payload []byte) ([]Entry, error) {
	text := string(payload)
	if text == "" {
		return nil, nil
	}
	lines := strings.Split(strings.TrimSuffix(text, "\n"), "\n")
	entries := make([]Entry, 0, len(lines))
	for _, line := range lines {
		parts := strings.SplitN(line, " ", 3)
		if len(parts) != 3 {
			return nil, fmt.Errorf("objects: malformed tree line %q", line)
		}
		kind := EntryKind(parts[0])
		if kind != EntryBlob && kind != EntryTree {
			return nil, fmt.Errorf("objects: unknown tree entry kind %q", parts[0])
		}
		if err := validateName(parts[2]); err != nil {
			return nil, err
		}
		entries = append(entries, Entry{Kind: kind, OID: parts[1], Name: parts[2]})
	}
	return entries, nil
}

// node is a transient in-memory representation of one directory level while
// building a nested tree from a flat index; it exists only to drive the
// bottom-up emit in BuildTree and is never itself serialized.
type node struct {
	blobs *treemap.Map // name -> oid (string)
	dirs  *treemap.Map // name -> *node
}

func newNode() *node {
	return &node{blobs: treemap.NewWithStringComparator(), dirs: treemap.NewWithStringComparator()}
}

// BuildTree constructs nested tree objects from a flat path -> blob OID
// index and returns the OID of the root tree. Directories are emitted
// bottom-up: children are hashed first, and their OIDs are used when
// emitting the parent.
func BuildTree(store *objstore.Store, flat map[string]string) (string, error) {
	root := newNode()
	for path, oid := range flat {
		segs := strings.Split(path, "/")
		cur := root
		for i, seg := range segs {
			if err := validateName(seg); err != nil {
				return "", err
			}
			if i == len(segs)-1 {
				cur.blobs.Put(seg, oid)
				continue
			}
			existing, ok := cur.dirs.Get(seg)
			var child *node
			if ok {
				child = existing.(*node)
			} else {
				child = newNode()
				cur.dirs.Put(seg, child)
			}
			cur = child
		}
	}
	return emitNode(store, root)
}

func emitNode(store *objstore.Store, n *node) (string, error) {
	var entries []Entry

	it := n.blobs.Iterator()
	for it.Next() {
		entries = append(entries, Entry{Kind: EntryBlob, OID: it.Value().(string), Name: it.Key().(string)})
	}

	dit := n.dirs.Iterator()
	for dit.Next() {
		child := dit.Value().(*node)
		oid, err := emitNode(store, child)
		if err != nil {
			return "", err
		}
		entries = append(entries, Entry{Kind: EntryTree, OID: oid, Name: dit.Key().(string)})
	}

	payload, err := EncodeTree(entries)
	if err != nil {
		return "", err
	}
	return store.Put(payload, objstore.KindTree)
}

// ExpandTree recursively descends from rootOID and returns the flat
// path -> blob OID map it denotes, concatenating path segments with "/".
func ExpandTree(store *objstore.Store, rootOID string) (map[string]string, error) {
	out := make(map[string]string)
	if err := expandInto(store, rootOID, "", out); err != nil {
		return nil, err
	}
	return out, nil
}

func expandInto(store *objstore.Store, oid, prefix string, out map[string]string) error {
	payload, err := store.Get(oid, objstore.KindTree)
	if err != nil {
		return err
	}
	entries, err := DecodeTree(payload)
	if err != nil {
		return err
	}
	for _, e := range entries {
		full := e.Name
		if prefix != "" {
			full = prefix + "/" + e.Name
		}
		switch e.Kind {
		case EntryBlob:
			out[full] = e.OID
		case EntryTree:
			if err := expandInto(store, e.OID, full, out); err != nil {
				return err
			}
		}
	}
	return nil
}
