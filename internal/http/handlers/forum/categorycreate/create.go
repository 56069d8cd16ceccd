// Package categorycreate implements the HTTP handler adding a forum
// category.
package categorycreate

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"github.com/traderoom/trading-academy/internal/http/response"
	"github.com/traderoom/trading-academy/internal/lib/sl"
	"github.com/traderoom/trading-academy/internal/models"
	"github.com/traderoom/trading-academy/internal/storage/repository"
)

// Handler handles category creation requests.
type Handler struct {
	log      *slog.Logger
	service  Service
	validate *validator.Validate
}

// Service is the forum business logic the handler calls.
type Service interface {
	CreateCategory(ctx context.Context, req models.DummyCategory) (int, error)
}

// New creates a new Handler.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{
		log:      log,
		service:  service,
		validate: validator.New(),
	}
}

// ServeHTTP godoc
// @Summary Create a forum category
// @Description Adds a category; the URL slug is derived from the name and must be unique.
// @Tags Forum
// @Accept json
// @Produce json
// @Param request body models.DummyCategory true "Category name and description"
// @Success 200 {object} response.Response "Category ID"
// @Failure 400 {object} response.ErrorResponse "Invalid JSON or duplicate slug"
// @Failure 422 {object} response.ErrorResponse "Validation error"
// @Failure 500 {object} response.ErrorResponse "Server error"
// @Security BearerAuth
// @Router /forum/categories [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.forum.categorycreate"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	var req models.DummyCategory
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Error("failed to decode request", sl.Err(err))
		w.WriteHeader(http.StatusBadRequest)
		render.JSON(w, r, response.Error("invalid request body"))
		return
	}

	if err := h.validate.Struct(req); err != nil {
		log.Error("validation failed", sl.Err(err))
		w.WriteHeader(http.StatusUnprocessableEntity)
		render.JSON(w, r, response.ValidationError(err.(validator.ValidationErrors)))
		return
	}

	id, err := h.service.CreateCategory(r.Context(), req)
	if err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			log.Warn("duplicate category slug", slog.String("name", req.Name))
			w.WriteHeader(http.StatusBadRequest)
			render.JSON(w, r, response.Error("category already exists"))
			return
		}
		log.Error("failed to create category", sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("could not create category"))
		return
	}

	log.Info("category created", slog.Int("category_id", id))
	render.JSON(w, r, response.OKWithData(map[string]int{"id": id}))
}
