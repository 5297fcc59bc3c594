package text

const (
	// LinesBeforeBlock is how far above the start of the enclosing block the
	// context window may reach.
	LinesBeforeBlock = 10

	// LinesAfterBlock is how far below the end of the enclosing block the
	// context window may reach.
	LinesAfterBlock = 5

	// Window bounds for line-boundary triggers (newline inserted or deleted,
	// caret moved to another line).
	NewLineMaxBefore = 15
	NewLineMaxAfter  = 5

	// Window bounds for in-line edits.
	InlineMaxBefore = 8
	InlineMaxAfter  = 1

	// TabWidth is the column width used when measuring indentation.
	TabWidth = 4
)
