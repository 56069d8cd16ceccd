// Package replylist implements the HTTP handler listing the replies of
// a thread.
package replylist

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/traderoom/trading-academy/internal/http/response"
	"github.com/traderoom/trading-academy/internal/lib/sl"
	"github.com/traderoom/trading-academy/internal/models"
	"github.com/traderoom/trading-academy/internal/storage/repository"
)

// Handler handles reply list requests.
type Handler struct {
	log     *slog.Logger
	service Service
}

// Service is the forum business logic the handler calls.
type Service interface {
	ListReplies(ctx context.Context, postID int) ([]*models.ForumPost, error)
}

// New creates a new Handler.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{
		log:     log,
		service: service,
	}
}

// ServeHTTP godoc
// @Summary List replies of a thread
// @Description Returns the replies of a post in chronological order.
// @Tags Forum
// @Produce json
// @Param id path int true "Post ID"
// @Success 200 {object} response.Response "Replies"
// @Failure 400 {object} response.ErrorResponse "Invalid post ID"
// @Failure 404 {object} response.ErrorResponse "Post not found"
// @Failure 500 {object} response.ErrorResponse "Server error"
// @Security BearerAuth
// @Router /forum/posts/{id}/replies [get]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.forum.replylist"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	postID, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil || postID <= 0 {
		log.Error("invalid post id", sl.Err(err))
		w.WriteHeader(http.StatusBadRequest)
		render.JSON(w, r, response.Error("invalid post id"))
		return
	}

	replies, err := h.service.ListReplies(r.Context(), postID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			w.WriteHeader(http.StatusNotFound)
			render.JSON(w, r, response.Error("post not found"))
			return
		}
		log.Error("failed to list replies", sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("could not list replies"))
		return
	}

	render.JSON(w, r, response.OKWithData(replies))
}
