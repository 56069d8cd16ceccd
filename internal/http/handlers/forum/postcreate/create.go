// Package postcreate implements the HTTP handler adding a thread root
// or a reply.
package postcreate

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"github.com/traderoom/trading-academy/internal/http/middlewarectx"
	"github.com/traderoom/trading-academy/internal/http/response"
	"github.com/traderoom/trading-academy/internal/lib/sl"
	"github.com/traderoom/trading-academy/internal/models"
	forumservice "github.com/traderoom/trading-academy/internal/services/forum"
	"github.com/traderoom/trading-academy/internal/storage/repository"
)

// Handler handles post creation requests.
type Handler struct {
	log      *slog.Logger
	service  Service
	validate *validator.Validate
}

// Service is the forum business logic the handler calls.
type Service interface {
	CreatePost(ctx context.Context, userUID string, req models.DummyPost) (int, error)
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
// @Summary Create a forum post
// @Description Adds a thread root (title required) or a reply (parent must be in the same category).
// @Tags Forum
// @Accept json
// @Produce json
// @Param request body models.DummyPost true "Post content"
// @Success 200 {object} response.Response "Post ID"
// @Failure 400 {object} response.ErrorResponse "Invalid JSON, missing title or parent mismatch"
// @Failure 401 {object} response.ErrorResponse "Unauthorized"
// @Failure 404 {object} response.ErrorResponse "Category or parent not found"
// @Failure 422 {object} response.ErrorResponse "Validation error"
// @Failure 500 {object} response.ErrorResponse "Server error"
// @Security BearerAuth
// @Router /forum/posts [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.forum.postcreate"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	var req models.DummyPost
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

	userUID, ok := r.Context().Value(middlewarectx.UserUID).(string)
	if !ok || userUID == "" {
		log.Error("user uid not found in context")
		w.WriteHeader(http.StatusUnauthorized)
		render.JSON(w, r, response.Error("unauthorized"))
		return
	}

	id, err := h.service.CreatePost(r.Context(), userUID, req)
	if err != nil {
		switch {
		case errors.Is(err, forumservice.ErrMissingTitle), errors.Is(err, forumservice.ErrParentMismatch):
			log.Warn("post rejected", sl.Err(err))
			w.WriteHeader(http.StatusBadRequest)
			render.JSON(w, r, response.Error(err.Error()))
		case errors.Is(err, repository.ErrNotFound):
			w.WriteHeader(http.StatusNotFound)
			render.JSON(w, r, response.Error("category or parent not found"))
		default:
			log.Error("failed to create post", sl.Err(err))
			w.WriteHeader(http.StatusInternalServerError)
			render.JSON(w, r, response.Error("could not create post"))
		}
		return
	}

	log.Info("post created", slog.Int("post_id", id))
	render.JSON(w, r, response.OKWithData(map[string]int{"id": id}))
}
