// Package difftool implements the diff/merge engine: three-way tree
// compare, text diff of blobs (via diffmatchpatch), and three-way text
// merge (a hand-rolled diff3).
package difftool

import (
	"fmt"
	"sort"
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"
)

// CompareTrees produces, for every path appearing in any of trees, the
// tuple of OIDs (one per input, "" where absent), sorted by path.
func CompareTrees(trees ...map[string]string) []PathRow {
	seen := make(map[string]bool)
	for _, t := range trees {
		for p := range t {
			seen[p] = true
		}
	}
	paths := make([]string, 0, len(seen))
	for p := range seen {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	rows := make([]PathRow, 0, len(paths))
	for _, p := range paths {
		oids := make([]string, len(trees))
		for i, t := range trees {
			oids[i] = t[p]
		}
		rows = append(rows, PathRow{Path: p, OIDs: oids})
	}
	return rows
}

// PathRow is one row of a tree comparison: a path and its OID (or "") in
// each compared tree, in input order.
type PathRow struct {
	Path string
	OIDs []string
}

// ChangeKind classifies a two-tree comparison row.
type ChangeKind int

const (
	Unchanged ChangeKind = iota
	Added
	Deleted
	Modified
)

// Classify classifies a PathRow from a two-tree CompareTrees(old, new).
func Classify(row PathRow) ChangeKind {
	old, new := row.OIDs[0], row.OIDs[1]
	switch {
	case old == new:
		return Unchanged
	case old == "":
		return Added
	case new == "":
		return Deleted
	default:
		return Modified
	}
}

// TextDiff produces a unified diff between a and b, labeled "a/<path>" and
// "b/<path>". Either side may be nil, standing in for empty content (a new
// or deleted file).
func TextDiff(path string, a, b []byte) []byte {
	dmp := diffmatchpatch.New()
	aText, bText := string(a), string(b)

	aRunes, bRunes, lines := dmp.DiffLinesToRunes(aText, bText)
	diffs := dmp.DiffMainRunes(aRunes, bRunes, false)
	diffs = dmp.DiffCharsToLines(diffs, lines)

	var sb strings.Builder
	fmt.Fprintf(&sb, "--- a/%s\n", path)
	fmt.Fprintf(&sb, "+++ b/%s\n", path)

	aLine, bLine := 1, 1
	for _, d := range diffs {
		lineCount := strings.Count(d.Text, "\n")
		if strings.HasSuffix(d.Text, "\n") == false && d.Text != "" {
			lineCount++
		}
		switch d.Type {
		case diffmatchpatch.DiffEqual:
			aLine += lineCount
			bLine += lineCount
		case diffmatchpatch.DiffDelete:
			fmt.Fprintf(&sb, "@@ -%d,%d +%d,0 @@\n", aLine, lineCount, bLine)
			writePrefixed(&sb, d.Text, "-")
			aLine += lineCount
		case diffmatchpatch.DiffInsert:
			fmt.Fprintf(&sb, "@@ -%d,0 +%d,%d @@\n", aLine, bLine, lineCount)
			writePrefixed(&sb, d.Text, "+")
			bLine += lineCount
		}
	}
	return []byte(sb.String())
}

func writePrefixed(sb *strings.Builder, text, prefix string) {
	lines := strings.Split(strings.TrimSuffix(text, "\n"), "\n")
	for _, l := range lines {
		sb.WriteString(prefix)
		sb.WriteString(l)
		sb.WriteByte('\n')
	}
}

// TreeDiff concatenates blob diffs for every path whose OID differs between
// two path->oid maps, given a byLoad function to fetch blob content.
func TreeDiff(old, new map[string]string, byLoad func(oid string) ([]byte, error)) ([]byte, error) {
	rows := CompareTrees(old, new)
	var out strings.Builder
	for _, row := range rows {
		if Classify(row) == Unchanged {
			continue
		}
		var a, b []byte
		var err error
		if row.OIDs[0] != "" {
			a, err = byLoad(row.OIDs[0])
			if err != nil {
				return nil, err
			}
		}
		if row.OIDs[1] != "" {
			b, err = byLoad(row.OIDs[1])
			if err != nil {
				return nil, err
			}
		}
		out.Write(TextDiff(row.Path, a, b))
	}
	return []byte(out.String()), nil
}
