package text

import "strings"

// BlockKind classifies the line that opens an indentation block.
type BlockKind int

const (
	BlockTopLevel BlockKind = iota
	BlockFunction
	BlockType
	BlockControl
	BlockGeneric
	BlockStatement
)

func (k BlockKind) String() string {
	switch k {
	case BlockTopLevel:
		return "TopLevel"
	case BlockFunction:
		return "Function"
	case BlockType:
		return "Type"
	case BlockControl:
		return "Control"
	case BlockGeneric:
		return "Block"
	case BlockStatement:
		return "Statement"
	default:
		return "Unknown"
	}
}

// Block is the indentation block enclosing a line. Start is the line that
// opens the block and End the first line after it that is indented less than
// the block body (usually the closing brace), both 0-indexed and inclusive.
type Block struct {
	Start  int
	End    int
	Indent int
	Kind   BlockKind
}

var (
	functionPrefixes = []string{"func ", "fun ", "def ", "function ", "fn ", "async def ", "async function "}
	typePrefixes     = []string{"class ", "struct ", "interface ", "type ", "enum ", "object ", "trait ", "impl "}
	controlPrefixes  = []string{"if ", "if(", "else", "for ", "for(", "while ", "while(", "switch ", "switch(", "select ", "select {", "case ", "default:", "when ", "when(", "try", "catch", "except", "finally", "with ", "do ", "do{", "do {"}
	blockOpeners     = []string{"{", "(", "[", ":"}
)

// AnalyzeBlock finds the block enclosing line by scanning outward for the
// nearest lines with smaller indentation. A blank line takes the indentation
// of the closest non-blank line above it, one level deeper when that line
// opens a block.
func AnalyzeBlock(doc *Document, line int) Block {
	total := doc.LineCount()
	line = clamp(line, 0, total-1)

	indent := effectiveIndent(doc, line)
	if indent == 0 {
		return Block{Start: 0, End: total - 1, Indent: 0, Kind: BlockTopLevel}
	}

	start := -1
	for i := line - 1; i >= 0; i-- {
		l := doc.Line(i)
		if isBlank(l) {
			continue
		}
		if IndentWidth(l) < indent {
			start = i
			break
		}
	}
	if start < 0 {
		return Block{Start: 0, End: total - 1, Indent: indent, Kind: BlockTopLevel}
	}

	end := total - 1
	for i := line + 1; i < total; i++ {
		l := doc.Line(i)
		if isBlank(l) {
			continue
		}
		if IndentWidth(l) < indent {
			end = i
			break
		}
	}

	return Block{Start: start, End: end, Indent: indent, Kind: ClassifyBlockLine(doc.Line(start))}
}

// ClassifyBlockLine reports what kind of block a header line opens.
func ClassifyBlockLine(line string) BlockKind {
	trimmed := strings.TrimSpace(line)
	for _, p := range []string{"public ", "private ", "protected ", "export ", "static ", "pub ", "override ", "abstract ", "internal "} {
		trimmed = strings.TrimPrefix(trimmed, p)
	}
	switch {
	case hasAnyPrefix(trimmed, functionPrefixes):
		return BlockFunction
	case hasAnyPrefix(trimmed, typePrefixes):
		return BlockType
	case hasAnyPrefix(trimmed, controlPrefixes), strings.HasPrefix(trimmed, "} else"), strings.HasPrefix(trimmed, "} catch"):
		return BlockControl
	case opensBlock(trimmed):
		return BlockGeneric
	default:
		return BlockStatement
	}
}

// IndentWidth measures leading whitespace in columns.
func IndentWidth(line string) int {
	width := 0
	for _, r := range line {
		switch r {
		case ' ':
			width++
		case '\t':
			width += TabWidth
		default:
			return width
		}
	}
	return width
}

// IsInString reports whether col sits inside a string literal on line.
// Only quotes on the same line are considered. In Rust a quote that does not
// form a char literal is a lifetime and opens nothing.
func IsInString(line string, col int, fileType string) bool {
	col = clamp(col, 0, len(line))
	var open byte
	for i := 0; i < col; i++ {
		c := line[i]
		switch {
		case open != 0 && c == '\\' && open != '`':
			i++
		case open != 0 && c == open:
			open = 0
		case open == 0:
			open = quoteAt(line, i, fileType)
		}
	}
	return open != 0
}

// IsInComment reports whether col sits inside a line comment or an unclosed
// block comment on the same line. Block comments closed before col are
// skipped, so a later line comment still counts.
func IsInComment(line string, col int, fileType string) bool {
	col = clamp(col, 0, len(line))
	prefix := line[:col]
	marker := CommentPrefix(fileType)
	blocks := marker == "//"

	var quote byte
	inBlock := false
	for i := 0; i < len(prefix); i++ {
		rest := prefix[i:]
		switch {
		case inBlock:
			if strings.HasPrefix(rest, "*/") {
				inBlock = false
				i++
			}
		case quote != 0:
			if prefix[i] == '\\' && quote != '`' {
				i++
			} else if prefix[i] == quote {
				quote = 0
			}
		case strings.HasPrefix(rest, marker):
			return true
		case blocks && strings.HasPrefix(rest, "/*"):
			inBlock = true
			i++
		default:
			quote = quoteAt(line, i, fileType)
		}
	}
	return inBlock
}

func quoteAt(line string, i int, fileType string) byte {
	switch c := line[i]; c {
	case '"', '`':
		return c
	case '\'':
		if isRust(fileType) && !isCharLiteral(line, i) {
			return 0
		}
		return c
	default:
		return 0
	}
}

// isCharLiteral reports whether the quote at i starts 'x' or an escape.
func isCharLiteral(line string, i int) bool {
	if i+1 < len(line) && line[i+1] == '\\' {
		return true
	}
	return i+2 < len(line) && line[i+2] == '\''
}

func isRust(fileType string) bool {
	ft := strings.ToLower(fileType)
	return ft == "rust" || ft == "rs"
}

// CommentPrefix returns the line comment marker for a file type.
func CommentPrefix(fileType string) string {
	switch strings.ToLower(fileType) {
	case "python", "py", "sh", "bash", "zsh", "fish", "ruby", "rb", "yaml", "yml", "toml", "perl", "r", "make", "dockerfile", "conf", "elixir", "nim":
		return "#"
	case "lua", "sql", "haskell", "hs", "ada":
		return "--"
	case "vim":
		return "\""
	case "lisp", "clojure", "scheme", "el":
		return ";"
	default:
		return "//"
	}
}

func effectiveIndent(doc *Document, line int) int {
	if l := doc.Line(line); !isBlank(l) {
		return IndentWidth(l)
	}
	for i := line - 1; i >= 0; i-- {
		l := doc.Line(i)
		if isBlank(l) {
			continue
		}
		if opensBlock(strings.TrimSpace(l)) {
			return IndentWidth(l) + 1
		}
		return IndentWidth(l)
	}
	return 0
}

func opensBlock(trimmed string) bool {
	for _, opener := range blockOpeners {
		if strings.HasSuffix(trimmed, opener) {
			return true
		}
	}
	return false
}

func hasAnyPrefix(s string, prefixes []string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(s, p) {
			return true
		}
	}
	return false
}

func isBlank(s string) bool { return strings.TrimSpace(s) == "" }
