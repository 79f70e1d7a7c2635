package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/Changyu123Chen/notion-ledger/internal/api/middleware"
	"github.com/Changyu123Chen/notion-ledger/internal/logger"
	"github.com/Changyu123Chen/notion-ledger/internal/objstore"
	"github.com/Changyu123Chen/notion-ledger/internal/weights"
)

// Recalculator runs one full daily reconciliation pass.
type Recalculator interface {
	RunDailyRecalc(ctx context.Context) error
}

// WeightSnapshots refreshes and serves the cached weight snapshot.
type WeightSnapshots interface {
	Refresh(ctx context.Context) (int, error)
	Latest(ctx context.Context) (*weights.Snapshot, error)
}

// RecalcHandler exposes the daily reconciliation run as a webhook.
type RecalcHandler struct {
	engine Recalculator
	secret string
	log    zerolog.Logger
}

func NewRecalcHandler(engine Recalculator, secret string, log zerolog.Logger) *RecalcHandler {
	return &RecalcHandler{engine: engine, secret: secret, log: log}
}

// Run handles POST /api/run-daily.
func (h *RecalcHandler) Run(w http.ResponseWriter, r *http.Request) {
	if r.Header.Get("X-Webhook-Secret") != h.secret {
		middleware.WriteError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	ctx := logger.WithContext(r.Context(), h.log)
	if err := h.engine.RunDailyRecalc(ctx); err != nil {
		log := logger.FromContext(ctx)
		log.Error().Err(err).Msg("Daily recalculation failed")
		middleware.WriteError(w, http.StatusInternalServerError, "recalculation failed")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{"ok": true})
}

// WeightsHandler serves the weight snapshot endpoints.
type WeightsHandler struct {
	cache  WeightSnapshots
	secret string
	log    zerolog.Logger
}

func NewWeightsHandler(cache WeightSnapshots, secret string, log zerolog.Logger) *WeightsHandler {
	return &WeightsHandler{cache: cache, secret: secret, log: log}
}

// Refresh handles POST /api/refresh-weights.
func (h *WeightsHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	if r.Header.Get("X-Webhook-Secret") != h.secret {
		middleware.WriteError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	count, err := h.cache.Refresh(r.Context())
	if err != nil {
		h.log.Error().Err(err).Msg("Weight snapshot refresh failed")
		middleware.WriteError(w, http.StatusInternalServerError, "refresh failed")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{"ok": true, "count": count})
}

// Latest handles GET /api/weights. With ?rows=1 only the row slice is
// returned, matching what the chart widget consumes.
func (h *WeightsHandler) Latest(w http.ResponseWriter, r *http.Request) {
	snap, err := h.cache.Latest(r.Context())
	if err != nil {
		if errors.Is(err, objstore.ErrNotFound) {
			middleware.WriteError(w, http.StatusNotFound, "no snapshot available")
			return
		}
		h.log.Error().Err(err).Msg("Weight snapshot read failed")
		middleware.WriteError(w, http.StatusInternalServerError, "snapshot read failed")
		return
	}

	w.Header().Set("Cache-Control", "s-maxage=300, stale-while-revalidate")
	if r.URL.Query().Get("rows") == "1" {
		middleware.WriteJSON(w, http.StatusOK, snap.Rows)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, snap)
}
