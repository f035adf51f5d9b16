package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/arquery/arquery/internal/models"
	"github.com/arquery/arquery/internal/pipeline"
	"github.com/rs/zerolog/log"
)

// Invalidator drops a shared cache tier. The Redis schema source implements it.
type Invalidator interface {
	Invalidate(ctx context.Context) error
}

// SchemaHandler exposes the cached table description.
type SchemaHandler struct {
	cache   *pipeline.SchemaCache
	shared  Invalidator
	table   string
	dialect string
	now     func() time.Time
}

// NewSchemaHandler accepts a nil shared tier when Redis is not configured.
func NewSchemaHandler(cache *pipeline.SchemaCache, shared Invalidator, table, dialect string) *SchemaHandler {
	return &SchemaHandler{cache: cache, shared: shared, table: table, dialect: dialect, now: time.Now}
}

// Get handles GET /v1/schema. It reports what is cached without fetching.
func (h *SchemaHandler) Get(w http.ResponseWriter, r *http.Request) {
	models.WriteJSON(w, http.StatusOK, h.snapshot())
}

// Refresh handles POST /v1/schema/refresh
func (h *SchemaHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	if h.shared != nil {
		if err := h.shared.Invalidate(r.Context()); err != nil {
			log.Warn().Err(err).Msg("invalidate shared schema cache")
		}
	}
	h.cache.Invalidate()

	if _, err := h.cache.Get(r.Context()); err != nil {
		models.WriteError(w, http.StatusInternalServerError, "Schema fetch error: "+err.Error())
		return
	}
	models.WriteJSON(w, http.StatusOK, h.snapshot())
}

func (h *SchemaHandler) snapshot() models.SchemaResponse {
	resp := models.SchemaResponse{
		Table:      h.table,
		Dialect:    h.dialect,
		TTLSeconds: int64(h.cache.TTL().Seconds()),
	}
	desc, fetchedAt, ok := h.cache.Snapshot()
	if !ok {
		return resp
	}
	resp.Cached = true
	resp.Description = desc
	resp.FetchedAt = &fetchedAt
	resp.AgeSeconds = int64(h.now().Sub(fetchedAt).Seconds())
	return resp
}
