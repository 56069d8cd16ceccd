// Package portfoliovalue implements the HTTP handler pricing the
// caller's portfolio with the market-data feed.
package portfoliovalue

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/traderoom/trading-academy/internal/http/middlewarectx"
	"github.com/traderoom/trading-academy/internal/http/response"
	"github.com/traderoom/trading-academy/internal/lib/sl"
	portfolioservice "github.com/traderoom/trading-academy/internal/services/portfolio"
)

// Handler handles portfolio valuation requests.
type Handler struct {
	log     *slog.Logger
	service Service
}

// Service is the portfolio business logic the handler calls.
type Service interface {
	Value(ctx context.Context, userUID string) (*portfolioservice.Valuation, error)
}

// New creates a new Handler.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{
		log:     log,
		service: service,
	}
}

// ServeHTTP godoc
// @Summary Value the portfolio
// @Description Prices every holding with current market data and returns the total.
// @Tags Portfolio
// @Produce json
// @Success 200 {object} response.Response "Valuation"
// @Failure 401 {object} response.ErrorResponse "Unauthorized"
// @Failure 500 {object} response.ErrorResponse "Server error"
// @Security BearerAuth
// @Router /portfolio/value [get]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.portfolio.value"
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

	valuation, err := h.service.Value(r.Context(), userUID)
	if err != nil {
		log.Error("failed to value portfolio", sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("could not value portfolio"))
		return
	}

	render.JSON(w, r, response.OKWithData(valuation))
}
