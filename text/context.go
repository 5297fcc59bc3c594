package text

import (
	"fmt"
	"strings"

	"predictivecoder/utils"
)

// ContextOptions bounds the window BuildContext produces.
type ContextOptions struct {
	FileType  string
	MaxBefore int // lines above the cursor line
	MaxAfter  int // lines below the cursor line
	MaxChars  int // budget for the window lines, 0 = unlimited
}

// OptionsFor returns the window bounds used for a trigger kind.
func OptionsFor(fileType string, isNewLine bool, maxChars int) ContextOptions {
	if isNewLine {
		return ContextOptions{FileType: fileType, MaxBefore: NewLineMaxBefore, MaxAfter: NewLineMaxAfter, MaxChars: maxChars}
	}
	return ContextOptions{FileType: fileType, MaxBefore: InlineMaxBefore, MaxAfter: InlineMaxAfter, MaxChars: maxChars}
}

// BuildContext renders the text sent to the model for a cursor at (line, col):
// a short header, the package clause and import lines that sit above the
// window, the lines above the cursor, the current line up to the cursor and
// the lines below it. MaxChars bounds the window only. The window follows the enclosing
// indentation block and is marked where the block starts and ends.
//
// BuildContext is pure: the same document and arguments always yield the
// same string. Out-of-range positions are clamped.
func BuildContext(doc *Document, line, col int, opts ContextOptions) string {
	total := doc.LineCount()
	line = clamp(line, 0, total-1)
	current := doc.Line(line)
	col = clamp(col, 0, len(current))

	block := AnalyzeBlock(doc, line)

	start := max(0, line-max(opts.MaxBefore, 0))
	end := min(total-1, line+max(opts.MaxAfter, 0))
	if block.Kind != BlockTopLevel {
		start = max(start, block.Start-LinesBeforeBlock)
		end = min(end, block.End+LinesAfterBlock)
	}

	if opts.MaxChars > 0 {
		window := doc.Lines()[start : end+1]
		window[line-start] = current[:col]
		if ws, we, trimmed := utils.TrimAroundCursor(window, line-start, opts.MaxChars); trimmed {
			start, end = start+ws, start+we-1
		}
	}

	marker := CommentPrefix(opts.FileType)
	var sb strings.Builder
	if opts.FileType != "" {
		fmt.Fprintf(&sb, "%s FileType: %s\n", marker, opts.FileType)
	}
	fmt.Fprintf(&sb, "%s Current line number: %d\n", marker, line+1)
	fmt.Fprintf(&sb, "%s Total lines: %d\n", marker, total)

	pkg, imports := preamble(doc, start)
	if len(pkg) > 0 {
		sb.WriteString(strings.Join(pkg, "\n"))
		sb.WriteString("\n\n")
	}
	if len(imports) > 0 {
		sb.WriteString(strings.Join(imports, "\n"))
		sb.WriteString("\n\n")
	}

	markStart := block.Kind != BlockTopLevel && block.Start >= start && block.Start < line
	markEnd := block.Kind != BlockTopLevel && block.End > line && block.End <= end

	for i := start; i < line; i++ {
		if markStart && i == block.Start {
			fmt.Fprintf(&sb, "%s Start of current block\n", marker)
		}
		sb.WriteString(doc.Line(i))
		sb.WriteByte('\n')
	}

	sb.WriteString(current[:col])

	for i := line + 1; i <= end; i++ {
		sb.WriteByte('\n')
		sb.WriteString(doc.Line(i))
		if markEnd && i == block.End {
			fmt.Fprintf(&sb, "\n%s End of current block", marker)
		}
	}

	return sb.String()
}

// preamble collects the package clause (the lines before the first blank
// line, when the file opens with one) and the import lines, including
// parenthesized import groups, found above line before.
func preamble(doc *Document, before int) (pkg, imports []string) {
	i := 0
	if strings.HasPrefix(doc.Line(0), "package ") {
		end := 0
		for end < doc.LineCount() && !isBlank(doc.Line(end)) {
			end++
		}
		if end <= before {
			pkg = doc.Lines()[:end]
			i = end
		}
	}

	for ; i < before; i++ {
		trimmed := strings.TrimSpace(doc.Line(i))
		if !strings.HasPrefix(trimmed, "import ") {
			continue
		}
		imports = append(imports, doc.Line(i))
		if !strings.HasSuffix(trimmed, "(") {
			continue
		}
		for i+1 < before {
			i++
			imports = append(imports, doc.Line(i))
			if strings.TrimSpace(doc.Line(i)) == ")" {
				break
			}
		}
	}
	return pkg, imports
}

// CurrentLinePrefix returns the text of line up to col.
func CurrentLinePrefix(doc *Document, line, col int) string {
	current := doc.Line(line)
	return current[:clamp(col, 0, len(current))]
}
