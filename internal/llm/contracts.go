// Package llm wraps the structured-output completion capability used by the order
// structurer and the email parser.
package llm

import (
	"context"
	"errors"
)

// CompletionRequest asks a model for one JSON value conforming to Schema.
type CompletionRequest struct {
	SchemaName string
	Schema     map[string]any
	System     string
	User       string
}

// Completer is the LLM capability. Implementations return the raw JSON text the model
// produced; validation happens in Extractor.
type Completer interface {
	Complete(ctx context.Context, req CompletionRequest) ([]byte, error)
	Name() string
}

var (
	// ErrMalformed is returned when a response is not a JSON object.
	ErrMalformed = errors.New("malformed llm payload")
	// ErrEmpty is returned when the model produced no output.
	ErrEmpty = errors.New("empty llm response")
)
