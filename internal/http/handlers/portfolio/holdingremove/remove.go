// Package holdingremove implements the HTTP handler deleting a
// portfolio holding.
package holdingremove

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/traderoom/trading-academy/internal/http/middlewarectx"
	"github.com/traderoom/trading-academy/internal/http/response"
	"github.com/traderoom/trading-academy/internal/lib/sl"
)

// Handler handles holding removal requests.
type Handler struct {
	log     *slog.Logger
	service Service
}

// Service is the portfolio business logic the handler calls.
type Service interface {
	RemoveHolding(ctx context.Context, userUID, asset string) (int, error)
}

// New creates a new Handler.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{
		log:     log,
		service: service,
	}
}

// ServeHTTP godoc
// @Summary Remove a portfolio holding
// @Tags Portfolio
// @Produce json
// @Param asset path string true "Asset symbol"
// @Success 200 {object} response.Response "Removed"
// @Failure 400 {object} response.ErrorResponse "Missing asset"
// @Failure 401 {object} response.ErrorResponse "Unauthorized"
// @Failure 404 {object} response.ErrorResponse "Holding not found"
// @Failure 500 {object} response.ErrorResponse "Server error"
// @Security BearerAuth
// @Router /portfolio/holdings/{asset} [delete]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.portfolio.holdingremove"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	asset := strings.ToUpper(chi.URLParam(r, "asset"))
	if asset == "" {
		w.WriteHeader(http.StatusBadRequest)
		render.JSON(w, r, response.Error("missing asset"))
		return
	}

	userUID, ok := r.Context().Value(middlewarectx.UserUID).(string)
	if !ok || userUID == "" {
		log.Error("user uid not found in context")
		w.WriteHeader(http.StatusUnauthorized)
		render.JSON(w, r, response.Error("unauthorized"))
		return
	}

	count, err := h.service.RemoveHolding(r.Context(), userUID, asset)
	if err != nil {
		log.Error("failed to remove holding", sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("could not remove holding"))
		return
	}
	if count == 0 {
		w.WriteHeader(http.StatusNotFound)
		render.JSON(w, r, response.Error("holding not found"))
		return
	}

	log.Info("holding removed", slog.String("asset", asset))
	render.JSON(w, r, response.OK())
}
