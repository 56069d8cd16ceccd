// Package statusoverride implements the admin handler forcing a
// subscription into a given status, still guarded by the transition
// table.
package statusoverride

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"github.com/traderoom/trading-academy/internal/http/response"
	"github.com/traderoom/trading-academy/internal/lib/sl"
	"github.com/traderoom/trading-academy/internal/models"
	"github.com/traderoom/trading-academy/internal/storage/repository"
	"github.com/traderoom/trading-academy/internal/subscription"
)

// Handler handles admin status overrides.
type Handler struct {
	log      *slog.Logger
	service  Service
	validate *validator.Validate
}

// Service is the subscription business logic the handler calls.
type Service interface {
	AdminSetStatus(ctx context.Context, subID int, to subscription.Status) error
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
// @Summary Override a subscription status
// @Description Moves a subscription to the given status when the transition table allows it.
// @Tags Admin
// @Accept json
// @Produce json
// @Param id path int true "Subscription ID"
// @Param request body models.DummyStatusOverride true "Target status"
// @Success 200 {object} response.Response "Updated"
// @Failure 400 {object} response.ErrorResponse "Invalid JSON or ID"
// @Failure 404 {object} response.ErrorResponse "Subscription not found"
// @Failure 409 {object} response.ErrorResponse "Transition not allowed"
// @Failure 422 {object} response.ErrorResponse "Validation error"
// @Failure 500 {object} response.ErrorResponse "Server error"
// @Security BearerAuth
// @Router /admin/subscriptions/{id}/status [patch]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.admin.statusoverride"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	subID, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil || subID <= 0 {
		log.Error("invalid subscription id", sl.Err(err))
		w.WriteHeader(http.StatusBadRequest)
		render.JSON(w, r, response.Error("invalid subscription id"))
		return
	}

	var req models.DummyStatusOverride
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

	err = h.service.AdminSetStatus(r.Context(), subID, subscription.Status(req.Status))
	if err != nil {
		switch {
		case errors.Is(err, subscription.ErrInvalidTransition):
			log.Warn("transition rejected", slog.Int("subscription_id", subID), slog.String("to", req.Status))
			w.WriteHeader(http.StatusConflict)
			render.JSON(w, r, response.Error("transition not allowed"))
		case errors.Is(err, repository.ErrNotFound):
			w.WriteHeader(http.StatusNotFound)
			render.JSON(w, r, response.Error("subscription not found"))
		default:
			log.Error("failed to override status", sl.Err(err))
			w.WriteHeader(http.StatusInternalServerError)
			render.JSON(w, r, response.Error("could not update status"))
		}
		return
	}

	log.Info("status overridden", slog.Int("subscription_id", subID), slog.String("to", req.Status))
	render.JSON(w, r, response.OK())
}
