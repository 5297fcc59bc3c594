package utils

import (
	"os"
	"path/filepath"
	"strings"
)

// TrimAroundCursor picks the window of lines that fits within maxChars while
// keeping the cursor row and as much context around it as possible. Half of
// the budget goes above the cursor and half below; budget one side leaves
// unused is handed to the other. Returns the window as [start, end) and
// whether anything was cut.
func TrimAroundCursor(lines []string, cursorRow, maxChars int) (start, end int, trimmed bool) {
	if len(lines) == 0 {
		return 0, 0, false
	}

	cursorRow = max(0, min(cursorRow, len(lines)-1))

	if maxChars <= 0 {
		return 0, len(lines), false
	}

	totalChars := 0
	for _, line := range lines {
		totalChars += len(line) + 1 // +1 for newline
	}
	if totalChars <= maxChars {
		return 0, len(lines), false
	}

	cursorLineChars := len(lines[cursorRow]) + 1
	halfBudget := max(maxChars-cursorLineChars, 0) / 2

	// Expand BEFORE cursor (up to half budget)
	startLine := cursorRow
	charsBefore := 0
	for startLine > 0 {
		newChars := len(lines[startLine-1]) + 1
		if charsBefore+newChars > halfBudget {
			break
		}
		startLine--
		charsBefore += newChars
	}

	// Expand AFTER cursor (half budget plus whatever the top did not use)
	budgetAfter := halfBudget + (halfBudget - charsBefore)
	endLine := cursorRow
	charsAfter := 0
	for endLine < len(lines)-1 {
		newChars := len(lines[endLine+1]) + 1
		if charsAfter+newChars > budgetAfter {
			break
		}
		endLine++
		charsAfter += newChars
	}

	// Give budget left below back to the top
	if unusedAfter := budgetAfter - charsAfter; unusedAfter > 0 {
		for startLine > 0 {
			newChars := len(lines[startLine-1]) + 1
			if charsBefore+newChars > halfBudget+unusedAfter {
				break
			}
			startLine--
			charsBefore += newChars
		}
	}

	return startLine, endLine + 1, true
}

// ExpandHome replaces a leading "~" with the user's home directory.
func ExpandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}
