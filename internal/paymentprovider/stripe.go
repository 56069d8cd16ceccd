package paymentprovider

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// signatureTolerance bounds the age of a signed webhook timestamp.
const signatureTolerance = 5 * time.Minute

// Stripe is the card processor adapter, built on Checkout Sessions.
type Stripe struct {
	secretKey     string
	webhookSecret string
	apiURL        string
	httpClient    *http.Client
	now           func() time.Time
}

// NewStripe creates the card processor client.
func NewStripe(secretKey, webhookSecret string) *Stripe {
	return &Stripe{
		secretKey:     secretKey,
		webhookSecret: webhookSecret,
		apiURL:        "https://api.stripe.com",
		httpClient:    newHTTPClient(),
		now:           time.Now,
	}
}

// Name implements Provider.
func (s *Stripe) Name() string { return "stripe" }

type stripeSession struct {
	ID            string `json:"id"`
	URL           string `json:"url"`
	PaymentStatus string `json:"payment_status"`
	AmountTotal   int64  `json:"amount_total"`
	Currency      string `json:"currency"`
}

// Initiate creates a Checkout Session. The Idempotency-Key header makes
// a retried call return the original session instead of charging twice.
func (s *Stripe) Initiate(ctx context.Context, req ChargeRequest) (*ChargeResult, error) {
	const op = "paymentprovider.stripe.Initiate"

	form := url.Values{}
	form.Set("mode", "payment")
	form.Set("client_reference_id", req.Reference)
	form.Set("customer_email", req.CustomerEmail)
	form.Set("success_url", req.SuccessURL)
	form.Set("cancel_url", req.CancelURL)
	form.Set("line_items[0][quantity]", "1")
	form.Set("line_items[0][price_data][currency]", strings.ToLower(req.Currency))
	form.Set("line_items[0][price_data][product_data][name]", req.PlanName)
	form.Set("line_items[0][price_data][unit_amount]", strconv.FormatInt(int64(req.Amount*100), 10))

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		s.apiURL+"/v1/checkout/sessions", strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+s.secretKey)
	httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	httpReq.Header.Set("Idempotency-Key", uuid.NewSHA1(uuid.NameSpaceURL, []byte(req.Reference)).String())

	resp, err := s.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%s: unexpected status %s", op, resp.Status)
	}

	var session stripeSession
	if err := json.NewDecoder(resp.Body).Decode(&session); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &ChargeResult{
		Reference:   session.ID,
		CheckoutURL: session.URL,
		Status:      StatusPending,
	}, nil
}

// Verify fetches the session and maps its payment status.
func (s *Stripe) Verify(ctx context.Context, reference string) (Status, error) {
	const op = "paymentprovider.stripe.Verify"

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet,
		s.apiURL+"/v1/checkout/sessions/"+url.PathEscape(reference), nil)
	if err != nil {
		return StatusPending, fmt.Errorf("%s: %w", op, err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+s.secretKey)

	resp, err := s.httpClient.Do(httpReq)
	if err != nil {
		return StatusPending, fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if resp.StatusCode != http.StatusOK {
		return StatusPending, fmt.Errorf("%s: unexpected status %s", op, resp.Status)
	}

	var session stripeSession
	if err := json.NewDecoder(resp.Body).Decode(&session); err != nil {
		return StatusPending, fmt.Errorf("%s: %w", op, err)
	}
	if session.PaymentStatus == "paid" {
		return StatusSucceeded, nil
	}
	return StatusPending, nil
}

// VerifySignature checks the Stripe-Signature header: HMAC-SHA256 of
// "<timestamp>.<body>" with the webhook secret, timestamp within the
// tolerance window.
func (s *Stripe) VerifySignature(body []byte, header http.Header) error {
	sigHeader := header.Get("Stripe-Signature")
	if sigHeader == "" {
		return ErrInvalidSignature
	}

	var timestamp string
	var signatures []string
	for _, part := range strings.Split(sigHeader, ",") {
		key, value, found := strings.Cut(strings.TrimSpace(part), "=")
		if !found {
			continue
		}
		switch key {
		case "t":
			timestamp = value
		case "v1":
			signatures = append(signatures, value)
		}
	}
	if timestamp == "" || len(signatures) == 0 {
		return ErrInvalidSignature
	}

	ts, err := strconv.ParseInt(timestamp, 10, 64)
	if err != nil {
		return ErrInvalidSignature
	}
	age := s.now().Sub(time.Unix(ts, 0))
	if age > signatureTolerance || age < -signatureTolerance {
		return ErrInvalidSignature
	}

	mac := hmac.New(sha256.New, []byte(s.webhookSecret))
	mac.Write([]byte(timestamp))
	mac.Write([]byte("."))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))

	for _, sig := range signatures {
		if hmac.Equal([]byte(expected), []byte(sig)) {
			return nil
		}
	}
	return ErrInvalidSignature
}

type stripeWebhookPayload struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Data struct {
		Object struct {
			ID                string `json:"id"`
			ClientReferenceID string `json:"client_reference_id"`
			PaymentStatus     string `json:"payment_status"`
			AmountTotal       int64  `json:"amount_total"`
			Currency          string `json:"currency"`
		} `json:"object"`
	} `json:"data"`
}

// ParseEvent translates a webhook payload into the common Event.
func (s *Stripe) ParseEvent(body []byte) (*Event, error) {
	const op = "paymentprovider.stripe.ParseEvent"
	var payload stripeWebhookPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	event := &Event{
		ID:        payload.ID,
		Reference: payload.Data.Object.ID,
		Amount:    float64(payload.Data.Object.AmountTotal) / 100,
		Currency:  strings.ToUpper(payload.Data.Object.Currency),
	}
	switch payload.Type {
	case "checkout.session.completed":
		if payload.Data.Object.PaymentStatus == "paid" {
			event.Status = StatusSucceeded
		} else {
			event.Status = StatusPending
		}
	case "checkout.session.expired":
		event.Status = StatusCancelled
	case "checkout.session.async_payment_failed":
		event.Status = StatusFailed
	default:
		event.Status = StatusPending
	}
	return event, nil
}
