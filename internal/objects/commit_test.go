package objects

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeCommitRoundTrip(t *testing.T) {
	c := Commit{
		Tree:    "1111111111111111111111111111111111111111",
		Parents: []string{"2222222222222222222222222222222222222222", "3333333333333333333333333333333333333333"},
		Message: "merge feature into main\n",
	}
	encoded := EncodeCommit(c)

	decoded, err := DecodeCommit(encoded)
	require.NoError(t, err)
	require.Equal(t, c, decoded)

	require.Equal(t, encoded, EncodeCommit(decoded), "re-encoding a decoded commit must be byte-identical")
}

func TestDecodeCommitNoParents(t *testing.T) {
	encoded := []byte("tree 1111111111111111111111111111111111111111\n\ninitial commit\n")
	c, err := DecodeCommit(encoded)
	require.NoError(t, err)
	require.Equal(t, "1111111111111111111111111111111111111111", c.Tree)
	require.Empty(t, c.Parents)
	require.Equal(t, "initial commit\n", c.Message)
}

func TestDecodeCommitRejectsUnknownHeaderKey(t *testing.T) {
	encoded := []byte("tree 1111111111111111111111111111111111111111\nauthor someone\n\nmsg\n")
	_, err := DecodeCommit(encoded)
	require.Error(t, err)
}

func TestDecodeCommitRejectsMissingTree(t *testing.T) {
	encoded := []byte("parent 1111111111111111111111111111111111111111\n\nmsg\n")
	_, err := DecodeCommit(encoded)
	require.Error(t, err)
}
