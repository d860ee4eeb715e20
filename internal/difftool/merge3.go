package difftool

import (
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"
)

// TextMerge3 performs a three-way line merge of base/ours/theirs, following
// the classic diff3 shape: both sides are diffed independently against
// base, and runs are classified as stable, ours-only, theirs-only, or
// conflicting. Conflicting runs are embedded as
// "<<<<<<< ours\n...\n=======\n...\n>>>>>>> theirs\n" markers. clean is
// false whenever at least one conflict marker was emitted.
func TextMerge3(base, ours, theirs []byte) (merged []byte, clean bool) {
	baseLines := splitLines(string(base))
	ourLines := splitLines(string(ours))
	theirLines := splitLines(string(theirs))

	ourOps := diffOpsAgainstBase(baseLines, ourLines)
	theirOps := diffOpsAgainstBase(baseLines, theirLines)

	var sb strings.Builder
	clean = true
	i := 0
	for i < len(baseLines) {
		oChange, oLen, oInserted := lookupChange(ourOps, i)
		tChange, tLen, tInserted := lookupChange(theirOps, i)

		switch {
		case !oChange && !tChange:
			sb.WriteString(baseLines[i])
			i++
		case oChange && !tChange:
			sb.WriteString(strings.Join(oInserted, ""))
			i += max(oLen, 1)
		case !oChange && tChange:
			sb.WriteString(strings.Join(tInserted, ""))
			i += max(tLen, 1)
		default:
			if equalRuns(oInserted, tInserted) {
				sb.WriteString(strings.Join(oInserted, ""))
			} else {
				clean = false
				sb.WriteString("<<<<<<< ours\n")
				sb.WriteString(strings.Join(oInserted, ""))
				sb.WriteString("=======\n")
				sb.WriteString(strings.Join(tInserted, ""))
				sb.WriteString(">>>>>>> theirs\n")
			}
			i += max(oLen, tLen, 1)
		}
	}
	return []byte(sb.String()), clean
}

// change describes a single base-line-indexed edit: baseStart/baseLen is
// the affected base range, and inserted is the replacement lines.
type change struct {
	baseStart int
	baseLen   int
	inserted  []string
}

// diffOpsAgainstBase runs a line-mode diff of other against base and
// returns the edits, indexed by the base line they replace.
func diffOpsAgainstBase(base, other []string) []change {
	dmp := diffmatchpatch.New()
	baseText := strings.Join(base, "")
	otherText := strings.Join(other, "")
	aRunes, bRunes, lines := dmp.DiffLinesToRunes(baseText, otherText)
	diffs := dmp.DiffMainRunes(aRunes, bRunes, false)
	diffs = dmp.DiffCharsToLines(diffs, lines)

	var changes []change
	baseIdx := 0
	var pendingInsert []string
	pendingStart := -1
	pendingDelLen := 0

	flush := func() {
		if pendingStart < 0 {
			return
		}
		changes = append(changes, change{baseStart: pendingStart, baseLen: pendingDelLen, inserted: pendingInsert})
		pendingStart = -1
		pendingInsert = nil
		pendingDelLen = 0
	}

	for _, d := range diffs {
		ls := splitLines(d.Text)
		switch d.Type {
		case diffmatchpatch.DiffEqual:
			flush()
			baseIdx += len(ls)
		case diffmatchpatch.DiffDelete:
			if pendingStart < 0 {
				pendingStart = baseIdx
			}
			pendingDelLen += len(ls)
			baseIdx += len(ls)
		case diffmatchpatch.DiffInsert:
			if pendingStart < 0 {
				pendingStart = baseIdx
			}
			pendingInsert = append(pendingInsert, ls...)
		}
	}
	flush()
	return changes
}

func lookupChange(changes []change, baseIdx int) (changed bool, baseLen int, inserted []string) {
	for _, c := range changes {
		if c.baseStart == baseIdx {
			return true, c.baseLen, c.inserted
		}
	}
	return false, 0, nil
}

func equalRuns(a, b []string) bool {
	return strings.Join(a, "") == strings.Join(b, "")
}

func splitLines(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	for {
		i := strings.IndexByte(s, '\n')
		if i < 0 {
			out = append(out, s)
			break
		}
		out = append(out, s[:i+1])
		s = s[i+1:]
	}
	return out
}

func max(vals ...int) int {
	m := vals[0]
	for _, v := range vals[1:] {
		if v > m {
			m = v
		}
	}
	return m
}
