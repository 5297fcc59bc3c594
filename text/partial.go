package text

import "strings"

// StripEchoedPrefix drops prefix from the start of suggestion. Models often
// repeat the text already typed on the current line.
func StripEchoedPrefix(suggestion, prefix string) string {
	if prefix == "" {
		return suggestion
	}
	return strings.TrimPrefix(suggestion, prefix)
}

// SplitUnits splits a suggestion into line units, dropping blank ones.
// Leading indentation is preserved.
func SplitUnits(suggestion string) []string {
	var units []string
	for _, unit := range strings.Split(suggestion, "\n") {
		unit = strings.TrimRight(unit, "\r")
		if strings.TrimSpace(unit) == "" {
			continue
		}
		units = append(units, unit)
	}
	return units
}
