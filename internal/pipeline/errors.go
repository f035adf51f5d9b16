package pipeline

import (
	"fmt"
	"net/http"
)

// Kind is the machine-readable failure category of a request.
type Kind string

const (
	KindValidation            Kind = "ValidationError"
	KindAuth                  Kind = "AuthError"
	KindRateLimit             Kind = "RateLimitError"
	KindSchemaFetch           Kind = "SchemaFetchError"
	KindGenerationService     Kind = "GenerationServiceError"
	KindInvalidGeneratedQuery Kind = "InvalidGeneratedQueryError"
	KindSQLExecution          Kind = "SqlExecutionError"
	KindInternal              Kind = "InternalError"
)

// HTTPStatus maps a failure kind to the status code the client sees.
func (k Kind) HTTPStatus() int {
	switch k {
	case KindValidation, KindInvalidGeneratedQuery, KindSQLExecution:
		return http.StatusBadRequest
	case KindAuth:
		return http.StatusUnauthorized
	case KindRateLimit:
		return http.StatusTooManyRequests
	case KindGenerationService:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// Error is the terminal Failed(kind) state of a pipeline run. Stage is the
// state the run was trying to reach; Detail is safe to show to the client.
type Error struct {
	Kind   Kind
	Stage  Stage
	Detail string
	Err    error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Detail, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Detail)
}

func (e *Error) Unwrap() error { return e.Err }

func newError(kind Kind, stage Stage, detail string, err error) *Error {
	return &Error{Kind: kind, Stage: stage, Detail: detail, Err: err}
}
