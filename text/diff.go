package text

import (
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"
)

// splitLines splits text by newline and removes trailing empty element if present
func splitLines(text string) []string {
	lines := strings.Split(text, "\n")
	if len(lines) > 0 && lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	return lines
}

// Change describes an edit between two snapshots of the same buffer.
type Change struct {
	Line         int  // first touched line, 0-indexed in the newer snapshot
	LineBoundary bool // a line break was inserted or deleted
	Inserted     int  // lines only present in the newer snapshot
	Deleted      int  // lines only present in the older snapshot
}

// ClassifyChange diffs two snapshots line by line. It reports false when the
// snapshots are identical.
func ClassifyChange(before, after []string) (Change, bool) {
	dmp := diffmatchpatch.New()
	chars1, chars2, lineArray := dmp.DiffLinesToChars(joinLines(before), joinLines(after))
	diffs := dmp.DiffMain(chars1, chars2, false)
	lineDiffs := dmp.DiffCharsToLines(diffs, lineArray)

	change := Change{Line: -1}
	newLine := 0
	for _, diff := range lineDiffs {
		n := len(splitLines(diff.Text))
		switch diff.Type {
		case diffmatchpatch.DiffEqual:
			newLine += n
		case diffmatchpatch.DiffInsert:
			if change.Line < 0 {
				change.Line = newLine
			}
			change.Inserted += n
			newLine += n
		case diffmatchpatch.DiffDelete:
			if change.Line < 0 {
				change.Line = newLine
			}
			change.Deleted += n
		}
	}

	if change.Line < 0 {
		return Change{}, false
	}
	change.Line = clamp(change.Line, 0, max(len(after)-1, 0))
	change.LineBoundary = len(before) != len(after)
	return change, true
}

func joinLines(lines []string) string {
	if len(lines) == 0 {
		return ""
	}
	return strings.Join(lines, "\n") + "\n"
}
