package refstore

import (
	"testing"

	"github.com/go-git/go-billy/v5/memfs"
	"github.com/stretchr/testify/require"
)

func TestUpdateAndGetConcrete(t *testing.T) {
	s := New(memfs.New())
	err := s.Update("HEAD", Value{OID: "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"}, false)
	require.NoError(t, err)

	v, err := s.Get("HEAD", true)
	require.NoError(t, err)
	require.False(t, v.Symbolic)
	require.Equal(t, "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa", v.OID)
}

func TestSymbolicDereferencing(t *testing.T) {
	s := New(memfs.New())
	require.NoError(t, s.Update("refs/heads/main", Value{OID: "bbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb"}, false))
	require.NoError(t, s.Update("HEAD", Value{Symbolic: true, Target: "refs/heads/main"}, false))

	v, err := s.Get("HEAD", true)
	require.NoError(t, err)
	require.False(t, v.Symbolic)
	require.Equal(t, "bbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb", v.OID)

	raw, err := s.Get("HEAD", false)
	require.NoError(t, err)
	require.True(t, raw.Symbolic)
	require.Equal(t, "refs/heads/main", raw.Target)
}

func TestUpdateDereferencingWritesTail(t *testing.T) {
	s := New(memfs.New())
	require.NoError(t, s.Update("refs/heads/main", Value{OID: "cccccccccccccccccccccccccccccccccccccccc"}, false))
	require.NoError(t, s.Update("HEAD", Value{Symbolic: true, Target: "refs/heads/main"}, false))

	require.NoError(t, s.Update("HEAD", Value{OID: "dddddddddddddddddddddddddddddddddddddddd"}, true))

	headRaw, err := s.Get("HEAD", false)
	require.NoError(t, err)
	require.True(t, headRaw.Symbolic, "dereferencing update must move the branch tip, not HEAD itself")

	branch, err := s.Get("refs/heads/main", false)
	require.NoError(t, err)
	require.Equal(t, "dddddddddddddddddddddddddddddddddddddddd", branch.OID)
}

func TestGetMissingIsZero(t *testing.T) {
	s := New(memfs.New())
	v, err := s.Get("refs/heads/nope", true)
	require.NoError(t, err)
	require.True(t, v.IsZero())
}

func TestEmptyValueRejected(t *testing.T) {
	s := New(memfs.New())
	err := s.Update("HEAD", Value{}, false)
	require.ErrorIs(t, err, ErrEmptyValue)
}

func TestDeleteRemovesRef(t *testing.T) {
	s := New(memfs.New())
	require.NoError(t, s.Update("refs/tags/v1", Value{OID: "eeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeee"}, false))
	require.NoError(t, s.Delete("refs/tags/v1", false))
	v, err := s.Get("refs/tags/v1", false)
	require.NoError(t, err)
	require.True(t, v.IsZero())
}

func TestIterListsUnderPrefix(t *testing.T) {
	s := New(memfs.New())
	require.NoError(t, s.Update("refs/heads/main", Value{OID: "1111111111111111111111111111111111111111"}, false))
	require.NoError(t, s.Update("refs/heads/feature", Value{OID: "2222222222222222222222222222222222222222"}, false))
	require.NoError(t, s.Update("refs/tags/v1", Value{OID: "3333333333333333333333333333333333333333"}, false))

	entries, err := s.Iter("refs/heads/", true)
	require.NoError(t, err)
	require.Len(t, entries, 2)
}
