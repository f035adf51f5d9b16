// Package llm sends assembled prompts to a text-completion service and returns
// the raw completion text.
package llm

import (
	"context"
	"fmt"
)

// SystemInstruction is the fixed system turn of every completion request.
const SystemInstruction = "You are an AI assistant that parses, preprocesses natural language query and then generates valid SQL queries based on a given schema and functional constraints."

// Sampling is the decoding configuration sent with each request.
type Sampling struct {
	Temperature      float64
	TopP             float64
	FrequencyPenalty float64
	PresencePenalty  float64
	MaxTokens        int
}

// DefaultSampling is greedy decoding capped at 150 output tokens.
func DefaultSampling() Sampling {
	return Sampling{
		Temperature: 0,
		TopP:        1,
		MaxTokens:   150,
	}
}

// Generator produces raw completion text for a prompt. Implementations make a
// single request and never retry.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
	Provider() string
	Model() string
}

// APIError is a non-2xx answer from the completion service.
type APIError struct {
	Provider   string
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s completion failed status=%d body=%s", e.Provider, e.StatusCode, e.Body)
}
