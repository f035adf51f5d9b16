package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/arquery/arquery/internal/middleware"
	"github.com/arquery/arquery/internal/models"
	"github.com/arquery/arquery/internal/pipeline"
)

const maxBodyBytes = 64 << 10

// Runner executes one question end to end.
type Runner interface {
	Run(ctx context.Context, req pipeline.Request) (*pipeline.Outcome, error)
}

// GenerateHandler handles POST /v1/generate_sql
type GenerateHandler struct {
	runner      Runner
	timeout     time.Duration
	tokenHeader string
}

func NewGenerateHandler(runner Runner, timeout time.Duration, tokenHeader string) *GenerateHandler {
	if tokenHeader == "" {
		tokenHeader = middleware.TokenHeader
	}
	return &GenerateHandler{runner: runner, timeout: timeout, tokenHeader: tokenHeader}
}

// GenerateSQL handles POST /v1/generate_sql
func (h *GenerateHandler) GenerateSQL(w http.ResponseWriter, r *http.Request) {
	var req models.GenerateSQLRequest
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		models.WriteError(w, http.StatusBadRequest, "Invalid Input : request body must be a JSON object with a query field")
		return
	}

	ctx := r.Context()
	if h.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.timeout)
		defer cancel()
	}

	out, err := h.runner.Run(ctx, pipeline.Request{
		ID:    middleware.RequestIDFromContext(r.Context()),
		Query: req.Query,
		Token: r.Header.Get(h.tokenHeader),
	})
	if err != nil {
		var perr *pipeline.Error
		if errors.As(err, &perr) {
			models.WriteError(w, perr.Kind.HTTPStatus(), perr.Detail)
			return
		}
		models.WriteError(w, http.StatusInternalServerError, "Internal server error: "+err.Error())
		return
	}

	rows := out.Result.Rows
	if rows == nil {
		rows = [][]any{}
	}
	models.WriteJSON(w, http.StatusOK, models.GenerateSQLResponse{
		Results: rows,
		Status:  http.StatusOK,
	})
}
