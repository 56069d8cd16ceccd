// Package metricsread implements the HTTP handler returning the
// caller's performance metrics.
package metricsread

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/traderoom/trading-academy/internal/http/middlewarectx"
	"github.com/traderoom/trading-academy/internal/http/response"
	"github.com/traderoom/trading-academy/internal/lib/sl"
	"github.com/traderoom/trading-academy/internal/models"
	journalservice "github.com/traderoom/trading-academy/internal/services/journal"
)

// Handler handles performance metrics requests.
type Handler struct {
	log     *slog.Logger
	service Service
}

// Service is the journal business logic the handler calls.
type Service interface {
	Metrics(ctx context.Context, userUID, period string) (*models.PerformanceMetrics, error)
}

// New creates a new Handler.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{
		log:     log,
		service: service,
	}
}

// ServeHTTP godoc
// @Summary Read performance metrics
// @Description Computes win rate, profit factor and max drawdown over closed trades for a period.
// @Tags Journal
// @Produce json
// @Param period query string false "Period, 'all' or YYYY-MM" default(all)
// @Success 200 {object} response.Response "Metrics"
// @Failure 400 {object} response.ErrorResponse "Invalid period"
// @Failure 401 {object} response.ErrorResponse "Unauthorized"
// @Failure 500 {object} response.ErrorResponse "Server error"
// @Security BearerAuth
// @Router /journal/metrics [get]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.journal.metricsread"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	userUID, ok := r.Context().Value(middlewarectx.UserUID).(string)
	if !ok || userUID == "" {
		log.Error("user uid not found in context")
		w.WriteHeader(http.StatusUnauthorized)
		render.JSON(w, r, response.Error("unauthorized"))
		return
	}

	period := r.URL.Query().Get("period")
	if period == "" {
		period = "all"
	}

	metrics, err := h.service.Metrics(r.Context(), userUID, period)
	if err != nil {
		if errors.Is(err, journalservice.ErrInvalidPeriod) {
			w.WriteHeader(http.StatusBadRequest)
			render.JSON(w, r, response.Error("invalid period, use 'all' or YYYY-MM"))
			return
		}
		log.Error("failed to compute metrics", sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("could not compute metrics"))
		return
	}

	render.JSON(w, r, response.OKWithData(metrics))
}
