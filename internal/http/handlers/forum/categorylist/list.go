// Package categorylist implements the HTTP handler listing forum
// categories.
package categorylist

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

// Handler handles category list requests.
type Handler struct {
	log     *slog.Logger
	service Service
}

// Service is the forum business logic the handler calls.
type Service interface {
	ListCategories(ctx context.Context) ([]*models.ForumCategory, error)
}

// New creates a new Handler.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{
		log:     log,
		service: service,
	}
}

// ServeHTTP godoc
// @Summary List forum categories
// @Tags Forum
// @Produce json
// @Success 200 {object} response.Response "Categories"
// @Failure 500 {object} response.ErrorResponse "Server error"
// @Security BearerAuth
// @Router /forum/categories [get]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.forum.categorylist"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	categories, err := h.service.ListCategories(r.Context())
	if err != nil {
		log.Error("failed to list categories", sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("could not list categories"))
		return
	}

	render.JSON(w, r, response.OKWithData(categories))
}
