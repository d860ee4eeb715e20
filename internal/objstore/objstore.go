// Package objstore is the content-addressed object database: a local
// directory of immutable, typed records keyed by the SHA-1 of their framed
// bytes.
package objstore

import (
	"bytes"
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"fmt"
	"io"

	"github.com/go-git/go-billy/v5"
	"github.com/sirupsen/logrus"
)

// Kind identifies the type tag stored in an object's framing.
type Kind string

const (
	KindBlob   Kind = "blob"
	KindTree   Kind = "tree"
	KindCommit Kind = "commit"
)

// ObjectsDir is the subdirectory, relative to the repository root, that
// holds one file per object.
const ObjectsDir = "objects"

// ErrNotFound is returned when an OID has no corresponding object on disk.
var ErrNotFound = errors.New("objstore: object not found")

// ErrKindMismatch is returned when get is called with an expected kind that
// does not match the stored record's type tag.
var ErrKindMismatch = errors.New("objstore: kind mismatch")

// ErrMalformed is returned when a stored record has no NUL separator.
var ErrMalformed = errors.New("objstore: malformed record (missing NUL separator)")

// Store is a content-addressed object database rooted at a billy
// filesystem. The zero value is not usable; construct with New.
type Store struct {
	fs  billy.Filesystem
	log *logrus.Logger
}

// New returns a Store that persists objects under fs's ObjectsDir.
func New(fs billy.Filesystem, log *logrus.Logger) *Store {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Store{fs: fs, log: log}
}

// Put frames payload with kind, hashes the framed record, writes it to
// objects/<oid> if not already present, and returns the OID. Writing an
// existing OID is a no-op: objects are immutable.
func (s *Store) Put(payload []byte, kind Kind) (string, error) {
	framed := frame(kind, payload)
	oid := oidOf(framed)

	if s.Exists(oid) {
		return oid, nil
	}

	if err := s.fs.MkdirAll(ObjectsDir, 0o755); err != nil {
		return "", fmt.Errorf("objstore: mkdir objects: %w", err)
	}

	path := s.fs.Join(ObjectsDir, oid)
	tmp, err := s.fs.TempFile(ObjectsDir, "obj-")
	if err != nil {
		return "", fmt.Errorf("objstore: create temp object: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(framed); err != nil {
		tmp.Close()
		s.fs.Remove(tmpName)
		return "", fmt.Errorf("objstore: write object %s: %w", oid, err)
	}
	if err := tmp.Close(); err != nil {
		s.fs.Remove(tmpName)
		return "", fmt.Errorf("objstore: close object %s: %w", oid, err)
	}
	if err := s.fs.Rename(tmpName, path); err != nil {
		s.fs.Remove(tmpName)
		return "", fmt.Errorf("objstore: rename object %s: %w", oid, err)
	}

	s.log.WithFields(logrus.Fields{"oid": oid, "kind": string(kind)}).Debug("object written")
	return oid, nil
}

// Get reads the object named oid, verifying its kind tag against
// expectedKind when non-empty, and returns its payload.
func (s *Store) Get(oid string, expectedKind Kind) ([]byte, error) {
	f, err := s.fs.Open(s.fs.Join(ObjectsDir, oid))
	if err != nil {
		return nil, fmt.Errorf("objstore: get %s: %w", oid, ErrNotFound)
	}
	defer f.Close()

	framed, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("objstore: read %s: %w", oid, err)
	}

	kind, payload, err := unframe(framed)
	if err != nil {
		return nil, fmt.Errorf("objstore: %s: %w", oid, err)
	}
	if expectedKind != "" && kind != expectedKind {
		return nil, fmt.Errorf("objstore: %s: expected %s, got %s: %w", oid, expectedKind, kind, ErrKindMismatch)
	}
	return payload, nil
}

// Exists reports whether oid names a stored object.
func (s *Store) Exists(oid string) bool {
	_, err := s.fs.Stat(s.fs.Join(ObjectsDir, oid))
	return err == nil
}

// Kind returns the type tag of a stored object without validating it
// against an expectation.
func (s *Store) Kind(oid string) (Kind, error) {
	f, err := s.fs.Open(s.fs.Join(ObjectsDir, oid))
	if err != nil {
		return "", fmt.Errorf("objstore: kind %s: %w", oid, ErrNotFound)
	}
	defer f.Close()
	framed, err := io.ReadAll(f)
	if err != nil {
		return "", err
	}
	kind, _, err := unframe(framed)
	return kind, err
}

func frame(kind Kind, payload []byte) []byte {
	buf := make([]byte, 0, len(kind)+1+len(payload))
	buf = append(buf, kind...)
	buf = append(buf, 0)
	buf = append(buf, payload...)
	return buf
}

func unframe(framed []byte) (Kind, []byte, error) {
	i := bytes.IndexByte(framed, 0)
	if i < 0 {
		return "", nil, ErrMalformed
	}
	return Kind(framed[:i]), framed[i+1:], nil
}

func oidOf(framed []byte) string {
	sum := sha1.Sum(framed)
	return hex.EncodeToString(sum[:])
}

// HashOnly computes the OID that Put would assign, without writing anything.
func HashOnly(payload []byte, kind Kind) string {
	return oidOf(frame(kind, payload))
}
