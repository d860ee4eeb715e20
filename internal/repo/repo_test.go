package repo

import (
	"crypto/sha1"
	"encoding/hex"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/xsgit/xsgit/internal/objects"
)

func writeFile(t *testing.T, dir, name string, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

// S1: empty tree OID is stable.
func TestInitEmptyTreeOID(t *testing.T) {
	dir := t.TempDir()
	r, err := Init(dir)
	require.NoError(t, err)

	oid, err := objects.BuildTree(r.Store, map[string]string{})
	require.NoError(t, err)
	require.Equal(t, objects.EmptyTreeOID, oid)
}

// S2: single blob round-trip through checkout.
func TestAddCommitCheckoutRoundTrip(t *testing.T) {
	dir := t.TempDir()
	r, err := Init(dir)
	require.NoError(t, err)

	writeFile(t, dir, "a.txt", "hello\n")
	require.NoError(t, r.Add([]string{"a.txt"}))
	c1, err := r.Commit("c1")
	require.NoError(t, err)

	sum := sha1.Sum([]byte("blob\x00hello\n"))
	wantBlobOID := hex.EncodeToString(sum[:])

	ix, err := r.ResolveName("@")
	require.NoError(t, err)
	require.Equal(t, c1, ix)

	require.NoError(t, r.CreateBranch("other", "@"))
	require.NoError(t, r.Checkout("other"))
	require.NoError(t, r.Checkout("main"))

	content, err := os.ReadFile(filepath.Join(dir, "a.txt"))
	require.NoError(t, err)
	require.Equal(t, "hello\n", string(content))

	commit, err := objects.GetCommit(r.Store, c1)
	require.NoError(t, err)
	flat, err := objects.ExpandTree(r.Store, commit.Tree)
	require.NoError(t, err)
	require.Equal(t, wantBlobOID, flat["a.txt"])
}

// S3: three-commit log order.
func TestLogOrdersNewestFirst(t *testing.T) {
	dir := t.TempDir()
	r, err := Init(dir)
	require.NoError(t, err)

	writeFile(t, dir, "f", "1")
	require.NoError(t, r.Add([]string{"f"}))
	c1, err := r.Commit("c1")
	require.NoError(t, err)

	writeFile(t, dir, "f", "2")
	require.NoError(t, r.Add([]string{"f"}))
	c2, err := r.Commit("c2")
	require.NoError(t, err)

	writeFile(t, dir, "f", "3")
	require.NoError(t, r.Add([]string{"f"}))
	c3, err := r.Commit("c3")
	require.NoError(t, err)

	head, err := r.ResolveName("@")
	require.NoError(t, err)
	entries, err := r.Log(head)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	require.Equal(t, []string{c3, c2, c1}, []string{entries[0].OID, entries[1].OID, entries[2].OID})
}

// S4: fast-forward merge.
func TestFastForwardMerge(t *testing.T) {
	dir := t.TempDir()
	r, err := Init(dir)
	require.NoError(t, err)

	writeFile(t, dir, "f", "1")
	require.NoError(t, r.Add([]string{"f"}))
	_, err = r.Commit("c1")
	require.NoError(t, err)

	require.NoError(t, r.CreateBranch("feature", "@"))
	require.NoError(t, r.Checkout("feature"))

	writeFile(t, dir, "f", "2")
	require.NoError(t, r.Add([]string{"f"}))
	c2, err := r.Commit("c2")
	require.NoError(t, err)

	require.NoError(t, r.Checkout("main"))
	result, err := r.Merge("feature")
	require.NoError(t, err)
	require.True(t, result.FastForward)
	require.Equal(t, c2, result.NewHead)

	mainOID, err := r.ResolveName("main")
	require.NoError(t, err)
	require.Equal(t, c2, mainOID)
}

// S5: three-way merge with conflict.
func TestThreeWayMergeConflict(t *testing.T) {
	dir := t.TempDir()
	r, err := Init(dir)
	require.NoError(t, err)

	writeFile(t, dir, "x", "A\nB\nC\n")
	require.NoError(t, r.Add([]string{"x"}))
	base, err := r.Commit("base")
	require.NoError(t, err)

	require.NoError(t, r.CreateBranch("theirs", "@"))

	writeFile(t, dir, "x", "A1\nB\nC\n")
	require.NoError(t, r.Add([]string{"x"}))
	_, err = r.Commit("ours edits line 1")
	require.NoError(t, err)

	require.NoError(t, r.Checkout("theirs"))
	writeFile(t, dir, "x", "A2\nB\nC\n")
	require.NoError(t, r.Add([]string{"x"}))
	theirsCommit, err := r.Commit("theirs edits line 1")
	require.NoError(t, err)

	require.NoError(t, r.Checkout("main"))
	result, err := r.Merge("theirs")
	require.NoError(t, err)
	require.False(t, result.FastForward)
	require.False(t, result.Clean)

	mergeHead, err := r.Refs.Get("MERGE_HEAD", false)
	require.NoError(t, err)
	require.Equal(t, theirsCommit, mergeHead.OID)

	content, err := os.ReadFile(filepath.Join(dir, "x"))
	require.NoError(t, err)
	require.Contains(t, string(content), "<<<<<<< ours")

	mergeCommit, err := r.Commit("resolve conflict")
	require.NoError(t, err)

	c, err := objects.GetCommit(r.Store, mergeCommit)
	require.NoError(t, err)
	require.Len(t, c.Parents, 2)

	afterMerge, err := r.Refs.Get("MERGE_HEAD", false)
	require.NoError(t, err)
	require.True(t, afterMerge.IsZero())

	_ = base
}

func TestCommitStampsConfiguredAuthor(t *testing.T) {
	dir := t.TempDir()
	r, err := Init(dir)
	require.NoError(t, err)

	r.Config.User.Name = "Ada Lovelace"
	r.Config.User.Email = "ada@example.com"

	writeFile(t, dir, "f", "1")
	require.NoError(t, r.Add([]string{"f"}))
	oid, err := r.Commit("first commit")
	require.NoError(t, err)

	c, err := objects.GetCommit(r.Store, oid)
	require.NoError(t, err)
	require.Contains(t, c.Message, "first commit")
	require.Contains(t, c.Message, "Author: Ada Lovelace <ada@example.com>")
}

func TestResolveNameHandlesAt(t *testing.T) {
	dir := t.TempDir()
	r, err := Init(dir)
	require.NoError(t, err)

	writeFile(t, dir, "f", "1")
	require.NoError(t, r.Add([]string{"f"}))
	c1, err := r.Commit("c1")
	require.NoError(t, err)

	oid, err := r.ResolveName("@")
	require.NoError(t, err)
	require.Equal(t, c1, oid)

	oidByHex, err := r.ResolveName(c1)
	require.NoError(t, err)
	require.Equal(t, c1, oidByHex)
}

func TestStatusReportsStagedAndUnstaged(t *testing.T) {
	dir := t.TempDir()
	r, err := Init(dir)
	require.NoError(t, err)

	writeFile(t, dir, "f", "1")
	require.NoError(t, r.Add([]string{"f"}))
	_, err = r.Commit("c1")
	require.NoError(t, err)

	writeFile(t, dir, "f", "2")
	report, err := r.Status()
	require.NoError(t, err)
	require.Empty(t, report.ToCommit)
	require.Len(t, report.NotStaged, 1)
}

func TestDiffUnstagedAndCached(t *testing.T) {
	dir := t.TempDir()
	r, err := Init(dir)
	require.NoError(t, err)

	writeFile(t, dir, "f", "one\n")
	require.NoError(t, r.Add([]string{"f"}))
	_, err = r.Commit("c1")
	require.NoError(t, err)

	writeFile(t, dir, "f", "two\n")
	unstaged, err := r.Diff(false)
	require.NoError(t, err)
	require.Contains(t, string(unstaged), "-one")
	require.Contains(t, string(unstaged), "+two")

	require.NoError(t, r.Add([]string{"f"}))
	cached, err := r.Diff(true)
	require.NoError(t, err)
	require.Contains(t, string(cached), "-one")
	require.Contains(t, string(cached), "+two")

	clean, err := r.Diff(false)
	require.NoError(t, err)
	require.Empty(t, clean)
}
