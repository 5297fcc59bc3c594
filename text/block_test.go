package text

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAnalyzeBlock(t *testing.T) {
	doc := NewDocument(goSample)

	block := AnalyzeBlock(doc, 5)
	assert.Equal(t, 4, block.Start, "if block start")
	assert.Equal(t, 6, block.End, "if block end")
	assert.Equal(t, 8, block.Indent, "two tabs")
	assert.Equal(t, BlockControl, block.Kind, "if is a control block")

	block = AnalyzeBlock(doc, 3)
	assert.Equal(t, 2, block.Start, "function block start")
	assert.Equal(t, 7, block.End, "function block end")
	assert.Equal(t, BlockFunction, block.Kind, "func is a function block")

	block = AnalyzeBlock(doc, 0)
	assert.Equal(t, BlockTopLevel, block.Kind, "package clause is top level")
}

func TestAnalyzeBlock_BlankLineInsideOpener(t *testing.T) {
	doc := NewDocument([]string{"func f() {", "", "}"})

	block := AnalyzeBlock(doc, 1)

	assert.Equal(t, 0, block.Start, "opener line")
	assert.Equal(t, 2, block.End, "closing brace")
	assert.Equal(t, BlockFunction, block.Kind, "function block")
}

func TestClassifyBlockLine(t *testing.T) {
	tests := []struct {
		line string
		want BlockKind
	}{
		{"func (s *Server) Run() error {", BlockFunction},
		{"public fun compute(): Int {", BlockFunction},
		{"def handler(event):", BlockFunction},
		{"type Foo struct {", BlockType},
		{"class Widget:", BlockType},
		{"for i := range xs {", BlockControl},
		{"} else {", BlockControl},
		{"switch v := x.(type) {", BlockControl},
		{"x := []int{", BlockGeneric},
		{"return x", BlockStatement},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ClassifyBlockLine(tt.line), "ClassifyBlockLine(%q)", tt.line)
	}
}

func TestBlockKindString(t *testing.T) {
	assert.Equal(t, "Control", BlockControl.String())
	assert.Equal(t, "Unknown", BlockKind(42).String())
}

func TestIndentWidth(t *testing.T) {
	assert.Equal(t, 0, IndentWidth("x"), "no indent")
	assert.Equal(t, 2, IndentWidth("  x"), "spaces")
	assert.Equal(t, 8, IndentWidth("\t\tx"), "tabs")
	assert.Equal(t, 6, IndentWidth("  \tx"), "mixed")
	assert.Equal(t, 3, IndentWidth("   "), "blank line")
}

func TestIsInString(t *testing.T) {
	line := `x := "hello`
	assert.True(t, IsInString(line, len(line), "go"), "unterminated string")

	line = `x := "a" + b`
	assert.False(t, IsInString(line, len(line), "go"), "closed string")

	line = `s := "say \"hi`
	assert.True(t, IsInString(line, len(line), "go"), "escaped quote does not close")

	line = "r := `raw\\"
	assert.True(t, IsInString(line, len(line), "go"), "raw string ignores escapes")

	line = "x = 'hel"
	assert.True(t, IsInString(line, len(line), "python"), "single-quoted string")
}

func TestIsInString_RustLifetimes(t *testing.T) {
	line := "fn first<'a>(xs: &'a"
	assert.False(t, IsInString(line, len(line), "rust"), "lifetimes open nothing")

	line = "let c = 'x'; let s = &'a"
	assert.False(t, IsInString(line, len(line), "rust"), "char literal then lifetime")

	line = "let c = '\\n"
	assert.True(t, IsInString(line, len(line), "rust"), "escaped char literal is open")
}

func TestIsInComment(t *testing.T) {
	line := "x := 1 // note"
	assert.True(t, IsInComment(line, len(line), "go"), "line comment")

	line = `url := "http://example.com"`
	assert.False(t, IsInComment(line, len(line), "go"), "slashes inside a string")

	line = "y := 2 /* open"
	assert.True(t, IsInComment(line, len(line), "go"), "unclosed block comment")

	line = "y := 2 /* closed */ + 1"
	assert.False(t, IsInComment(line, len(line), "go"), "closed block comment")

	line = "\tx := a /* b */ + c // note"
	assert.True(t, IsInComment(line, len(line), "go"), "line comment after a closed block comment")

	line = "\t*p = val"
	assert.False(t, IsInComment(line, len(line), "go"), "pointer dereference is code")

	line = "value = 1  # note"
	assert.True(t, IsInComment(line, len(line), "python"), "hash comment")
	assert.False(t, IsInComment("value = 1", 9, "python"), "plain code")

	line = "fn f<'a>(x: &'a str) // borrowed"
	assert.True(t, IsInComment(line, len(line), "rust"), "lifetime quotes do not hide the comment")
}

func TestCommentPrefix(t *testing.T) {
	assert.Equal(t, "//", CommentPrefix("go"))
	assert.Equal(t, "#", CommentPrefix("Python"))
	assert.Equal(t, "--", CommentPrefix("lua"))
	assert.Equal(t, "//", CommentPrefix(""))
}
