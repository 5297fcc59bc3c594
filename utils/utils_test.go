package utils

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTrimAroundCursor_EmptyFile(t *testing.T) {
	start, end, trimmed := TrimAroundCursor(nil, 0, 100)

	assert.Equal(t, 0, start, "start")
	assert.Equal(t, 0, end, "end")
	assert.False(t, trimmed, "trimmed should be false")
}

func TestTrimAroundCursor_SmallFile(t *testing.T) {
	lines := []string{"line 1", "line 2", "line 3"}
	start, end, trimmed := TrimAroundCursor(lines, 1, 1000)

	assert.Equal(t, 0, start, "start")
	assert.Equal(t, 3, end, "end")
	assert.False(t, trimmed, "small file should not be trimmed")
}

func TestTrimAroundCursor_LargeFileTrims(t *testing.T) {
	lines := make([]string, 100)
	for i := range lines {
		lines[i] = "this is line content that takes up space"
	}

	start, end, trimmed := TrimAroundCursor(lines, 50, 200)

	assert.True(t, trimmed, "trimmed should be true")
	assert.Less(t, end-start, 100, "window should be smaller than the file")
	assert.True(t, start <= 50 && 50 < end, "cursor row should stay inside the window")
}

func TestTrimAroundCursor_CursorClamping(t *testing.T) {
	lines := make([]string, 20)
	for i := range lines {
		lines[i] = "0123456789"
	}

	start, end, _ := TrimAroundCursor(lines, 100, 30)
	assert.Equal(t, 20, end, "cursor beyond the file clamps to the last line")
	assert.Less(t, start, end, "window is not empty")

	start, _, _ = TrimAroundCursor(lines, -5, 30)
	assert.Equal(t, 0, start, "negative cursor clamps to the first line")
}

func TestTrimAroundCursor_ZeroBudget(t *testing.T) {
	lines := []string{"line 1", "line 2", "line 3"}
	start, end, trimmed := TrimAroundCursor(lines, 1, 0)

	assert.Equal(t, 0, start, "start")
	assert.Equal(t, 3, end, "end")
	assert.False(t, trimmed, "maxChars <= 0 keeps everything")
}

func TestTrimAroundCursor_Balanced(t *testing.T) {
	lines := make([]string, 50)
	for i := range lines {
		lines[i] = "x" // 2 chars with newline
	}

	start, end, trimmed := TrimAroundCursor(lines, 25, 20)

	assert.True(t, trimmed, "trimmed should be true")
	assert.Equal(t, 21, start, "four lines kept above the cursor")
	assert.Equal(t, 31, end, "five lines kept below the cursor")
}

func TestExpandHome(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	assert.Equal(t, filepath.Join(home, ".predictivecoder"), ExpandHome("~/.predictivecoder"))
	assert.Equal(t, home, ExpandHome("~"))
	assert.Equal(t, "/etc/hosts", ExpandHome("/etc/hosts"))
	assert.Equal(t, "~user/x", ExpandHome("~user/x"))
}
