package objects

import (
	"testing"

	"github.com/go-git/go-billy/v5/memfs"
	"github.com/stretchr/testify/require"

	"github.com/xsgit/xsgit/internal/objstore"
)

func TestEmptyTreeOIDIsStable(t *testing.T) {
	store := objstore.New(memfs.New(), nil)
	oid, err := BuildTree(store, map[string]string{})
	require.NoError(t, err)
	require.Equal(t, EmptyTreeOID, oid)
}

func TestTreeEncodeSortsByName(t *testing.T) {
	payload, err := EncodeTree([]Entry{
		{Kind: EntryBlob, OID: "2222222222222222222222222222222222222222", Name: "b.txt"},
		{Kind: EntryBlob, OID: "1111111111111111111111111111111111111111", Name: "a.txt"},
	})
	require.NoError(t, err)
	require.Equal(t,
		"blob 1111111111111111111111111111111111111111 a.txt\n"+
			"blob 2222222222222222222222222222222222222222 b.txt\n",
		string(payload))
}

func TestTreeDecodeEncodeRoundTrip(t *testing.T) {
	entries := []Entry{
		{Kind: EntryBlob, OID: "1111111111111111111111111111111111111111", Name: "a.txt"},
		{Kind: EntryTree, OID: "2222222222222222222222222222222222222222", Name: "sub"},
	}
	payload, err := EncodeTree(entries)
	require.NoError(t, err)

	decoded, err := DecodeTree(payload)
	require.NoError(t, err)

	reencoded, err := EncodeTree(decoded)
	require.NoError(t, err)
	require.Equal(t, payload, reencoded)
}

func TestForbiddenEntryNames(t *testing.T) {
	for _, name := range []string{".", "..", "a/b", ""} {
		_, err := EncodeTree([]Entry{{Kind: EntryBlob, OID: "1111111111111111111111111111111111111111", Name: name}})
		require.Error(t, err, "name %q should be rejected", name)
	}
}

func TestBuildThenExpandIsIdentity(t *testing.T) {
	store := objstore.New(memfs.New(), nil)

	flat := map[string]string{
		"a.txt":        mustBlob(t, store, "hello"),
		"dir/b.txt":    mustBlob(t, store, "world"),
		"dir/sub/c.go": mustBlob(t, store, "package main"),
	}

	root, err := BuildTree(store, flat)
	require.NoError(t, err)

	expanded, err := ExpandTree(store, root)
	require.NoError(t, err)
	require.Equal(t, flat, expanded)
}

func mustBlob(t *testing.T, store *objstore.Store, content string) string {
	t.Helper()
	oid, err := store.Put([]byte(content), objstore.KindBlob)
	require.NoError(t, err)
	return oid
}
