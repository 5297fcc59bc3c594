package text

import (
	"sort"
	"strings"
)

// Document is an immutable snapshot of a buffer, addressable by line index
// and by byte offset. Lines are stored without their "\n" separator, and the
// offset of line i+1 is the end offset of line i plus one.
//
// Every accessor clamps out-of-range arguments instead of failing.
type Document struct {
	lines  []string
	starts []int
}

// NewDocument copies lines into a new snapshot. An empty slice yields a
// document with a single empty line, matching an empty editor buffer.
func NewDocument(lines []string) *Document {
	if len(lines) == 0 {
		lines = []string{""}
	}
	owned := make([]string, len(lines))
	copy(owned, lines)

	starts := make([]int, len(owned))
	offset := 0
	for i, line := range owned {
		starts[i] = offset
		offset += len(line) + 1
	}
	return &Document{lines: owned, starts: starts}
}

// NewDocumentFromText splits s on "\n".
func NewDocumentFromText(s string) *Document {
	return NewDocument(strings.Split(s, "\n"))
}

// Lines returns a copy of the document lines.
func (d *Document) Lines() []string {
	out := make([]string, len(d.lines))
	copy(out, d.lines)
	return out
}

func (d *Document) LineCount() int { return len(d.lines) }

// Line returns the text of line i without its terminator.
func (d *Document) Line(i int) string { return d.lines[d.clampLine(i)] }

func (d *Document) Text() string { return strings.Join(d.lines, "\n") }

// Len is the byte length of Text().
func (d *Document) Len() int {
	last := len(d.lines) - 1
	return d.starts[last] + len(d.lines[last])
}

func (d *Document) LineStartOffset(i int) int { return d.starts[d.clampLine(i)] }

func (d *Document) LineEndOffset(i int) int {
	i = d.clampLine(i)
	return d.starts[i] + len(d.lines[i])
}

// LineOfOffset returns the index of the line containing offset. An offset
// that falls on a line terminator belongs to the line it terminates.
func (d *Document) LineOfOffset(offset int) int {
	offset = d.clampOffset(offset)
	// First line whose start is beyond offset, minus one.
	i := sort.Search(len(d.starts), func(i int) bool { return d.starts[i] > offset })
	return max(i-1, 0)
}

// Position converts an offset into a line index and a byte column.
func (d *Document) Position(offset int) (line, col int) {
	offset = d.clampOffset(offset)
	line = d.LineOfOffset(offset)
	return line, offset - d.starts[line]
}

// Offset converts a line index and byte column into an offset. The column is
// clamped to the line length.
func (d *Document) Offset(line, col int) int {
	line = d.clampLine(line)
	return d.starts[line] + clamp(col, 0, len(d.lines[line]))
}

// TextRange returns the text between two offsets. Reversed bounds are
// swapped.
func (d *Document) TextRange(start, end int) string {
	start, end = d.clampOffset(start), d.clampOffset(end)
	if start > end {
		start, end = end, start
	}
	return d.Text()[start:end]
}

// Insert returns a new document with s inserted at offset.
func (d *Document) Insert(offset int, s string) *Document {
	offset = d.clampOffset(offset)
	full := d.Text()
	return NewDocumentFromText(full[:offset] + s + full[offset:])
}

func (d *Document) clampLine(i int) int { return clamp(i, 0, len(d.lines)-1) }

func (d *Document) clampOffset(offset int) int { return clamp(offset, 0, d.Len()) }

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
