package objstore

import (
	"crypto/sha1"
	"encoding/hex"
	"testing"

	"github.com/go-git/go-billy/v5/memfs"
	"github.com/stretchr/testify/require"
)

func TestPutGetRoundTrip(t *testing.T) {
	store := New(memfs.New(), nil)

	payload := []byte("hello\n")
	oid, err := store.Put(payload, KindBlob)
	require.NoError(t, err)

	sum := sha1.Sum(append([]byte("blob\x00"), payload...))
	require.Equal(t, hex.EncodeToString(sum[:]), oid)

	got, err := store.Get(oid, KindBlob)
	require.NoError(t, err)
	require.Equal(t, payload, got)
}

func TestPutIsIdempotent(t *testing.T) {
	store := New(memfs.New(), nil)
	oid1, err := store.Put([]byte("same"), KindBlob)
	require.NoError(t, err)
	oid2, err := store.Put([]byte("same"), KindBlob)
	require.NoError(t, err)
	require.Equal(t, oid1, oid2)
}

func TestGetMissingIsNotFound(t *testing.T) {
	store := New(memfs.New(), nil)
	_, err := store.Get("0000000000000000000000000000000000000", KindBlob)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestGetKindMismatch(t *testing.T) {
	store := New(memfs.New(), nil)
	oid, err := store.Put([]byte("x"), KindBlob)
	require.NoError(t, err)
	_, err = store.Get(oid, KindTree)
	require.ErrorIs(t, err, ErrKindMismatch)
}

func TestExists(t *testing.T) {
	store := New(memfs.New(), nil)
	require.False(t, store.Exists("deadbeef"))
	oid, err := store.Put([]byte("x"), KindCommit)
	require.NoError(t, err)
	require.True(t, store.Exists(oid))
}
