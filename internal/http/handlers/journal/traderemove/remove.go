// Package traderemove implements the HTTP handler deleting a journal
// trade.
package traderemove

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/traderoom/trading-academy/internal/http/middlewarectx"
	"github.com/traderoom/trading-academy/internal/http/response"
	"github.com/traderoom/trading-academy/internal/lib/sl"
)

// Handler handles trade removal requests.
type Handler struct {
	log     *slog.Logger
	service Service
}

// Service is the journal business logic the handler calls.
type Service interface {
	RemoveTrade(ctx context.Context, userUID string, id int) (int, error)
}

// New creates a new Handler.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{
		log:     log,
		service: service,
	}
}

// ServeHTTP godoc
// @Summary Delete a journal trade
// @Description Deletes one of the caller's trades by ID.
// @Tags Journal
// @Produce json
// @Param id path int true "Trade ID"
// @Success 200 {object} response.Response "Deleted"
// @Failure 400 {object} response.ErrorResponse "Invalid trade ID"
// @Failure 401 {object} response.ErrorResponse "Unauthorized"
// @Failure 404 {object} response.ErrorResponse "Trade not found"
// @Failure 500 {object} response.ErrorResponse "Server error"
// @Security BearerAuth
// @Router /journal/trades/{id} [delete]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.journal.traderemove"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	tradeID, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil || tradeID <= 0 {
		log.Error("invalid trade id", sl.Err(err))
		w.WriteHeader(http.StatusBadRequest)
		render.JSON(w, r, response.Error("invalid trade id"))
		return
	}

	userUID, ok := r.Context().Value(middlewarectx.UserUID).(string)
	if !ok || userUID == "" {
		log.Error("user uid not found in context")
		w.WriteHeader(http.StatusUnauthorized)
		render.JSON(w, r, response.Error("unauthorized"))
		return
	}

	count, err := h.service.RemoveTrade(r.Context(), userUID, tradeID)
	if err != nil {
		log.Error("failed to delete trade", sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("could not delete trade"))
		return
	}
	if count == 0 {
		w.WriteHeader(http.StatusNotFound)
		render.JSON(w, r, response.Error("trade not found"))
		return
	}

	log.Info("trade deleted", slog.Int("trade_id", tradeID))
	render.JSON(w, r, response.OK())
}
