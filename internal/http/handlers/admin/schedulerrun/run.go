// Package schedulerrun implements the admin handler triggering one
// reminder scan and one downgrade scan on demand, outside the timers.
package schedulerrun

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/streadway/amqp"

	"github.com/traderoom/trading-academy/internal/http/response"
)

// Handler handles manual scheduler runs.
type Handler struct {
	log     *slog.Logger
	service Service
	channel *amqp.Channel
}

// Service is the scheduler business logic the handler calls.
type Service interface {
	RunReminderScan(ctx context.Context, channel *amqp.Channel)
	RunDowngradeScan(ctx context.Context)
}

// New creates a new Handler. The channel is used for reminder publishing.
func New(log *slog.Logger, service Service, channel *amqp.Channel) *Handler {
	return &Handler{
		log:     log,
		service: service,
		channel: channel,
	}
}

// ServeHTTP godoc
// @Summary Run the scheduler scans once
// @Description Runs the expiration reminder scan and the downgrade scan immediately.
// @Tags Admin
// @Produce json
// @Success 200 {object} response.Response "Scans completed"
// @Security BearerAuth
// @Router /admin/scheduler/run [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.admin.schedulerrun"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	log.Info("manual scheduler run requested")

	h.service.RunReminderScan(r.Context(), h.channel)
	h.service.RunDowngradeScan(r.Context())

	render.JSON(w, r, response.OK())
}
