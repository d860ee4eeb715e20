package difftool

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCompareTreesClassifiesChanges(t *testing.T) {
	old := map[string]string{"a": "1", "b": "2"}
	new := map[string]string{"a": "1", "b": "3", "c": "4"}

	rows := CompareTrees(old, new)
	byPath := map[string]PathRow{}
	for _, r := range rows {
		byPath[r.Path] = r
	}

	require.Equal(t, Unchanged, Classify(byPath["a"]))
	require.Equal(t, Modified, Classify(byPath["b"]))
	require.Equal(t, Added, Classify(byPath["c"]))
}

func TestCompareTreesDeletion(t *testing.T) {
	old := map[string]string{"a": "1"}
	new := map[string]string{}
	rows := CompareTrees(old, new)
	require.Len(t, rows, 1)
	require.Equal(t, Deleted, Classify(rows[0]))
}

func TestTextMerge3CleanNonOverlapping(t *testing.T) {
	base := []byte("A\nB\nC\n")
	ours := []byte("A1\nB\nC\n")
	theirs := []byte("A\nB\nC1\n")

	merged, clean := TextMerge3(base, ours, theirs)
	require.True(t, clean)
	require.Equal(t, "A1\nB\nC1\n", string(merged))
}

func TestTextMerge3ConflictingEdits(t *testing.T) {
	base := []byte("A\nB\nC\n")
	ours := []byte("A1\nB\nC\n")
	theirs := []byte("A2\nB\nC\n")

	merged, clean := TextMerge3(base, ours, theirs)
	require.False(t, clean)
	require.Contains(t, string(merged), "<<<<<<< ours")
	require.Contains(t, string(merged), "A1\n")
	require.Contains(t, string(merged), "=======")
	require.Contains(t, string(merged), "A2\n")
	require.Contains(t, string(merged), ">>>>>>> theirs")
}
