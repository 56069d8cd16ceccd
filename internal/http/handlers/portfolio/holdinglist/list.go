// Package holdinglist implements the HTTP handler listing portfolio
// holdings without pricing them.
package holdinglist

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/traderoom/trading-academy/internal/http/middlewarectx"
	"github.com/traderoom/trading-academy/internal/http/response"
	"github.com/traderoom/trading-academy/internal/lib/sl"
	"github.com/traderoom/trading-academy/internal/models"
)

// Handler handles holding list requests.
type Handler struct {
	log     *slog.Logger
	service Service
}

// Service is the portfolio business logic the handler calls.
type Service interface {
	ListHoldings(ctx context.Context, userUID string) ([]*models.Holding, error)
}

// New creates a new Handler.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{
		log:     log,
		service: service,
	}
}

// ServeHTTP godoc
// @Summary List portfolio holdings
// @Tags Portfolio
// @Produce json
// @Success 200 {object} response.Response "Holdings"
// @Failure 401 {object} response.ErrorResponse "Unauthorized"
// @Failure 500 {object} response.ErrorResponse "Server error"
// @Security BearerAuth
// @Router /portfolio/holdings [get]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.portfolio.holdinglist"
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

	holdings, err := h.service.ListHoldings(r.Context(), userUID)
	if err != nil {
		log.Error("failed to list holdings", sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("could not list holdings"))
		return
	}

	render.JSON(w, r, response.OKWithData(holdings))
}
