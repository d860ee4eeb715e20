package objects

import (
	"fmt"
	"strings"

	"github.com/xsgit/xsgit/internal/objstore"
)

// Commit is a parsed commit object: a tree reference, ordered parents
// (first parent is the previous tip, second is the merged-in tip), and a
// free-form message.
type Commit struct {
	Tree    string
	Parents []string
	Message string
}

// EncodeCommit serializes c into commit-object payload bytes: a "tree"
// line, zero or more ordered "parent" lines, a blank line, then the message
// verbatim.
func EncodeCommit(c Commit) []byte {
	var sb strings.Builder
	sb.WriteString("tree ")
	sb.WriteString(c.Tree)
	sb.WriteByte('\n')
	for _, p := range c.Parents {
		sb.WriteString("parent ")
		sb.WriteString(p)
		sb.WriteByte('\n')
	}
	sb.WriteByte('\n')
	sb.WriteString(c.Message)
	return []byte(sb.String())
}

// DecodeCommit parses commit-object payload bytes. Header lines run up to
// the first blank line; each is "<key> <value>" split on the first space.
// Only "tree" (exactly one) and "parent" (zero or more, order preserved)
// are recognized; any other key is corruption.
func DecodeCommit(payload []byte) (Commit, error) {
	text := string(payload)
	sep := strings.Index(text, "\n\n")
	if sep < 0 {
		return Commit{}, fmt.Errorf("objects: malformed commit: no header/message separator")
	}
	header, message := text[:sep], text[sep+2:]

	var c Commit
	treeSeen := false
	for _, line := range strings.Split(header, "\n") {
		if line == "" {
			continue
		}
		parts := strings.SplitN(line, " ", 2)
		if len(parts) != 2 {
			return Commit{}, fmt.Errorf("objects: malformed commit header line %q", line)
		}
		switch parts[0] {
		case "tree":
			if treeSeen {
				return Commit{}, fmt.Errorf("objects: malformed commit: duplicate tree line")
			}
			c.Tree = parts[1]
			treeSeen = true
		case "parent":
			c.Parents = append(c.Parents, parts[1])
		default:
			return Commit{}, fmt.Errorf("objects: malformed commit: unknown header key %q", parts[0])
		}
	}
	if !treeSeen {
		return Commit{}, fmt.Errorf("objects: malformed commit: missing tree line")
	}
	c.Message = message
	return c, nil
}

// PutCommit encodes and stores c, returning its OID.
func PutCommit(store *objstore.Store, c Commit) (string, error) {
	return store.Put(EncodeCommit(c), objstore.KindCommit)
}

// GetCommit fetches and decodes the commit named oid.
func GetCommit(store *objstore.Store, oid string) (Commit, error) {
	payload, err := store.Get(oid, objstore.KindCommit)
	if err != nil {
		return Commit{}, err
	}
	return DecodeCommit(payload)
}
