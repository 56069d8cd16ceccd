// Package planlist implements the HTTP handler returning the plan
// catalog.
package planlist

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/traderoom/trading-academy/internal/http/response"
	"github.com/traderoom/trading-academy/internal/lib/sl"
	"github.com/traderoom/trading-academy/internal/models"
)

// Handler handles plan catalog requests.
type Handler struct {
	log     *slog.Logger
	service Service
}

// Service is the subscription business logic the handler calls.
type Service interface {
	ListPlans(ctx context.Context) ([]*models.Plan, error)
}

// New creates a new Handler.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{
		log:     log,
		service: service,
	}
}

// ServeHTTP godoc
// @Summary List subscription plans
// @Description Returns the plan catalog ordered by price.
// @Tags Plans
// @Produce json
// @Success 200 {object} response.Response "Plan catalog"
// @Failure 500 {object} response.ErrorResponse "Server error"
// @Router /plans [get]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.plan.list"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	plans, err := h.service.ListPlans(r.Context())
	if err != nil {
		log.Error("failed to list plans", sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("could not list plans"))
		return
	}

	render.JSON(w, r, response.OKWithData(plans))
}
