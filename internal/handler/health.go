package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/arquery/arquery/internal/models"
	"github.com/arquery/arquery/internal/pipeline"
)

// Version is stamped at build time through -ldflags.
var Version = "dev"

// Pinger is implemented by dependencies that can report connectivity
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler handles GET /health with dependency checks
type HealthHandler struct {
	warehouse Pinger
	history   Pinger
	cache     *pipeline.SchemaCache
	now       func() time.Time
}

// NewHealthHandler accepts a nil history pinger when history is disabled.
func NewHealthHandler(warehouse, history Pinger, cache *pipeline.SchemaCache) *HealthHandler {
	return &HealthHandler{warehouse: warehouse, history: history, cache: cache, now: time.Now}
}

// Health handles GET /health. Only the warehouse decides the status code;
// history is best effort.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	checks := map[string]string{"server": "ok"}
	overallStatus := "healthy"

	// Use a short timeout for health checks so they don't block
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	if err := h.warehouse.Ping(ctx); err != nil {
		checks["warehouse"] = "unavailable: " + err.Error()
		overallStatus = "degraded"
	} else {
		checks["warehouse"] = "ok"
	}

	if h.history != nil {
		if err := h.history.Ping(ctx); err != nil {
			checks["history"] = "unavailable: " + err.Error()
		} else {
			checks["history"] = "ok"
		}
	} else {
		checks["history"] = "disabled"
	}

	if _, fetchedAt, ok := h.cache.Snapshot(); ok {
		checks["schema_cache"] = "age " + h.now().Sub(fetchedAt).Truncate(time.Second).String()
	} else {
		checks["schema_cache"] = "empty"
	}

	statusCode := http.StatusOK
	if overallStatus == "degraded" {
		statusCode = http.StatusServiceUnavailable
	}

	models.WriteJSON(w, statusCode, models.HealthResponse{
		Status:  overallStatus,
		Version: Version,
		Checks:  checks,
	})
}
