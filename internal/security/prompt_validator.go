package security

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

const MaxPromptLength = 2000

// promptInjectionPatterns match attempts to steer the model away from the
// query-generation instructions or to smuggle shell code through it. SQL
// keywords are not screened here; generated statements go through SQLValidator.
var promptInjectionPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)ignore\s+(all\s+)?(the\s+)?(previous|above|prior)\s+(instructions|rules|constraints)`),
	regexp.MustCompile(`(?i)disregard\s+(all\s+)?(the\s+)?(previous|above|prior)\s+(instructions|rules|constraints)`),
	regexp.MustCompile(`(?i)forget\s+(all\s+)?(the\s+)?(previous|above|prior)\s+(instructions|rules|constraints)`),
	regexp.MustCompile(`(?i)override\s+(all\s+)?(the\s+)?(previous|above|prior)\s+(instructions|rules|constraints)`),
	regexp.MustCompile(`(?i)new\s+(context|instructions)\s*:`),
	regexp.MustCompile(`(?i)change\s+context\s*:`),
	regexp.MustCompile(`(?i)instead\s+of\s+the\s+above`),
	regexp.MustCompile(`(?i)you\s+are\s+now\s+(a|an|in)\b`),
	regexp.MustCompile(`(?i)(reveal|print|repeat)\s+(your|the)\s+(system\s+)?(prompt|instructions)`),

	// Code execution
	regexp.MustCompile(`(?i)\beval\s*\(`),
	regexp.MustCompile(`(?i)\bexec\s*\(`),
	regexp.MustCompile(`(?i)__import__\s*\(`),
	regexp.MustCompile(`(?i)\bimport\s+(os|sys|subprocess)\b`),
	regexp.MustCompile(`(?i)os\.system`),
	regexp.MustCompile(`(?i)\brm\s+-rf?\b`),
	regexp.MustCompile(`/etc/(passwd|shadow)`),
}

// PromptValidator screens user search text before any prompt is assembled.
type PromptValidator struct {
	maxLength int
}

func NewPromptValidator() *PromptValidator {
	return &PromptValidator{maxLength: MaxPromptLength}
}

// ValidationResult contains validation outcome
type ValidationResult struct {
	Valid   bool
	Message string
}

// Validate checks a query for excessive length and injection phrases.
func (v *PromptValidator) Validate(query string) ValidationResult {
	if n := utf8.RuneCountInString(query); n > v.maxLength {
		return ValidationResult{
			Valid:   false,
			Message: fmt.Sprintf("search text too long: %d chars (max %d)", n, v.maxLength),
		}
	}

	if strings.TrimSpace(query) == "" {
		return ValidationResult{Valid: false, Message: "search text cannot be empty"}
	}

	for _, pattern := range promptInjectionPatterns {
		if pattern.MatchString(query) {
			return ValidationResult{
				Valid:   false,
				Message: "search text contains disallowed instructions",
			}
		}
	}

	return ValidationResult{Valid: true, Message: "ok"}
}
