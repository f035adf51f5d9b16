package security

import (
	"regexp"
	"strings"
)

// sqlStringLiteral matches a single-quoted literal including '' escapes.
var sqlStringLiteral = regexp.MustCompile(`'(?:[^']|'')*'`)

// sqlForbiddenPatterns catch statements that write, change schema, or touch
// the filesystem. They run with string literals blanked out, so a filter such
// as ILIKE '%delete from%' is data, not a statement.
var sqlForbiddenPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\bINSERT\s+(OVERWRITE\s+)?INTO\b`),
	regexp.MustCompile(`(?i)\bUPDATE\s+[\w."]+\s+SET\b`),
	regexp.MustCompile(`(?i)\bDELETE\s+FROM\b`),
	regexp.MustCompile(`(?i)\bMERGE\s+INTO\b`),
	regexp.MustCompile(`(?i)\bDROP\s+(TABLE|VIEW|SCHEMA|DATABASE|STAGE|INDEX)\b`),
	regexp.MustCompile(`(?i)\bALTER\s+(TABLE|VIEW|SCHEMA|DATABASE|WAREHOUSE|USER|SESSION)\b`),
	regexp.MustCompile(`(?i)\bCREATE\s+(OR\s+REPLACE\s+)?(TEMP(ORARY)?\s+)?(TABLE|VIEW|SCHEMA|DATABASE|STAGE|FUNCTION|PROCEDURE)\b`),
	regexp.MustCompile(`(?i)\bTRUNCATE\s+(TABLE\s+)?[\w."]+`),
	regexp.MustCompile(`(?i)(^|;)\s*(GRANT|REVOKE)\b`),
	regexp.MustCompile(`(?i)\bCOPY\s+INTO\b`),
	regexp.MustCompile(`(?i)\bCALL\s+[\w.]+\s*\(`),
	regexp.MustCompile(`(?i)\bEXEC(UTE)?\s+(IMMEDIATE|\w+\s*\()`),
	regexp.MustCompile(`(?i)\bINTO\s+(OUTFILE|DUMPFILE)\b`),
	regexp.MustCompile(`(?i)\bLOAD\s+DATA\b`),
	regexp.MustCompile(`(?i)\bLOAD_FILE\s*\(`),
	regexp.MustCompile(`(?i)\b(SLEEP|BENCHMARK|SYSTEM\$WAIT)\s*\(`),
	regexp.MustCompile(`(?i)\bWAITFOR\s+DELAY\b`),
	regexp.MustCompile(`(?i)\bor\s+1\s*=\s*1\b`),
}

// sqlLiteralTautology needs the literals themselves, so it runs on the raw text.
var sqlLiteralTautology = regexp.MustCompile(`(?i)\bor\s+'1'\s*=\s*'1'`)

// SQLValidator checks extracted statements before they reach the warehouse.
type SQLValidator struct{}

func NewSQLValidator() *SQLValidator {
	return &SQLValidator{}
}

// Validate returns a reason if sql is not a single read-only statement, or an
// empty string if it is acceptable.
func (v *SQLValidator) Validate(sql string) string {
	trimmed := strings.TrimSpace(sql)
	if trimmed == "" {
		return "SQL cannot be empty"
	}

	upperSQL := strings.ToUpper(trimmed)
	if !strings.HasPrefix(upperSQL, "SELECT") && !strings.HasPrefix(upperSQL, "WITH") {
		return "only SELECT queries are allowed"
	}

	code := sqlStringLiteral.ReplaceAllString(trimmed, "''")

	// ExtractSQL already stops at the first terminator; this covers statements
	// that reach the validator some other way. A single trailing ";" is fine.
	if strings.Contains(strings.TrimSuffix(code, ";"), ";") {
		return "multiple statements are not allowed"
	}

	for _, pattern := range sqlForbiddenPatterns {
		if pattern.MatchString(code) {
			return "forbidden SQL pattern detected: " + pattern.String()
		}
	}
	if sqlLiteralTautology.MatchString(trimmed) {
		return "forbidden SQL pattern detected: " + sqlLiteralTautology.String()
	}
	return ""
}
