package pipeline

import (
	"errors"
	"regexp"
	"strings"
)

// ErrNoStatement is returned when model output holds no SELECT ... ; span.
var ErrNoStatement = errors.New("no SELECT statement found in model output")

// reStatement matches from the first SELECT keyword to the first semicolon after it,
// case-insensitive and across lines. This is a text-span scan, not a SQL parser.
var reStatement = regexp.MustCompile(`(?is)\bSELECT\s.*?;`)

// ExtractSQL returns the first SELECT ... ; span of raw, trimmed. Additional
// spans are ignored; use CountStatements to detect them.
func ExtractSQL(raw string) (string, error) {
	m := reStatement.FindString(raw)
	if m == "" {
		return "", ErrNoStatement
	}
	return strings.TrimSpace(m), nil
}

// CountStatements reports how many non-overlapping SELECT ... ; spans raw holds.
func CountStatements(raw string) int {
	return len(reStatement.FindAllStringIndex(raw, -1))
}
