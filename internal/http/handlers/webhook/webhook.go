// Package webhook implements the HTTP handler receiving payment gateway
// callbacks. One handler instance is mounted per provider; the provider
// adapter owns signature verification and payload parsing, the payment
// service owns deduplication and the state change.
package webhook

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/traderoom/trading-academy/internal/http/response"
	"github.com/traderoom/trading-academy/internal/lib/sl"
	"github.com/traderoom/trading-academy/internal/paymentprovider"
)

// maxBodySize caps webhook payloads; gateway events are small JSON.
const maxBodySize = 1 << 20

// Handler handles webhook callbacks for one payment provider.
type Handler struct {
	log      *slog.Logger
	provider paymentprovider.Provider
	service  Service
}

// Service is the payment business logic the handler calls.
type Service interface {
	ProcessEvent(ctx context.Context, provider string, event *paymentprovider.Event, payload []byte) error
}

// New creates a new Handler for the given provider.
func New(log *slog.Logger, provider paymentprovider.Provider, service Service) *Handler {
	return &Handler{
		log:      log,
		provider: provider,
		service:  service,
	}
}

// ServeHTTP godoc
// @Summary Receive a payment gateway webhook
// @Description Verifies the gateway signature, parses the event and applies the subscription state change. Replayed events are acknowledged without effect.
// @Tags Webhooks
// @Accept json
// @Produce json
// @Param provider path string true "Payment provider" Enums(stripe, flutterwave, nowpayments)
// @Success 200 {object} response.Response "Acknowledged"
// @Failure 400 {object} response.ErrorResponse "Unreadable or malformed payload"
// @Failure 401 {object} response.ErrorResponse "Invalid signature"
// @Failure 500 {object} response.ErrorResponse "Server error"
// @Router /webhooks/{provider} [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.webhook"
	log := h.log.With(
		slog.String("op", op),
		slog.String("provider", h.provider.Name()),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize))
	if err != nil {
		log.Error("failed to read body", sl.Err(err))
		w.WriteHeader(http.StatusBadRequest)
		render.JSON(w, r, response.Error("unreadable body"))
		return
	}

	if err := h.provider.VerifySignature(body, r.Header); err != nil {
		if errors.Is(err, paymentprovider.ErrInvalidSignature) {
			log.Warn("rejected webhook with bad signature")
			w.WriteHeader(http.StatusUnauthorized)
			render.JSON(w, r, response.Error("invalid signature"))
			return
		}
		log.Error("signature verification failed", sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("could not verify signature"))
		return
	}

	event, err := h.provider.ParseEvent(body)
	if err != nil {
		log.Error("failed to parse event", sl.Err(err))
		w.WriteHeader(http.StatusBadRequest)
		render.JSON(w, r, response.Error("malformed event"))
		return
	}

	if err := h.service.ProcessEvent(r.Context(), h.provider.Name(), event, body); err != nil {
		log.Error("failed to process event", sl.Err(err), slog.String("event_id", event.ID))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("could not process event"))
		return
	}

	log.Info("webhook processed", slog.String("event_id", event.ID), slog.String("status", string(event.Status)))
	render.JSON(w, r, response.OK())
}
