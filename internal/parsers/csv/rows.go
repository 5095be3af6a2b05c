package csv

import (
	"strings"
)

// SplitRows splits CSV text into rows of trimmed fields.
//
// Fields are separated by ',' or ';' outside double quotes. A quote toggles the
// quoted state and is dropped from the output; embedded quotes cannot be escaped.
// Blank lines are skipped.
func SplitRows(text string) [][]string {
	text = strings.TrimPrefix(text, "\ufeff")
	lines := strings.Split(text, "\n")

	rows := make([][]string, 0, len(lines))
	for _, line := range lines {
		line = strings.TrimRight(line, "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		rows = append(rows, splitFields(line))
	}
	return rows
}

// splitFields splits one line on unquoted delimiters
func splitFields(line string) []string {
	var (
		fields   []string
		field    strings.Builder
		inQuotes bool
	)

	for _, r := range line {
		switch {
		case r == '"':
			inQuotes = !inQuotes
		case (r == ',' || r == ';') && !inQuotes:
			fields = append(fields, strings.TrimSpace(field.String()))
			field.Reset()
		default:
			field.WriteRune(r)
		}
	}
	return append(fields, strings.TrimSpace(field.String()))
}
