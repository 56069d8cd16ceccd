package paymentprovider

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
)

// NOWPayments is the cryptocurrency processor adapter. It has no usable
// synchronous verify: confirmation arrives only through IPN webhooks.
type NOWPayments struct {
	apiKey     string
	ipnSecret  string
	apiURL     string
	httpClient *http.Client
}

// NewNOWPayments creates the crypto processor client.
func NewNOWPayments(apiKey, ipnSecret string) *NOWPayments {
	return &NOWPayments{
		apiKey:     apiKey,
		ipnSecret:  ipnSecret,
		apiURL:     "https://api.nowpayments.io",
		httpClient: newHTTPClient(),
	}
}

// Name implements Provider.
func (n *NOWPayments) Name() string { return "nowpayments" }

type nowInvoiceRequest struct {
	PriceAmount      float64 `json:"price_amount"`
	PriceCurrency    string  `json:"price_currency"`
	OrderID          string  `json:"order_id"`
	OrderDescription string  `json:"order_description"`
	SuccessURL       string  `json:"success_url"`
	CancelURL        string  `json:"cancel_url"`
}

type nowInvoiceResponse struct {
	ID         string `json:"id"`
	InvoiceURL string `json:"invoice_url"`
}

// Initiate creates a crypto invoice keyed by our order reference.
func (n *NOWPayments) Initiate(ctx context.Context, req ChargeRequest) (*ChargeResult, error) {
	const op = "paymentprovider.nowpayments.Initiate"

	payload := nowInvoiceRequest{
		PriceAmount:      req.Amount,
		PriceCurrency:    strings.ToLower(req.Currency),
		OrderID:          req.Reference,
		OrderDescription: req.PlanName,
		SuccessURL:       req.SuccessURL,
		CancelURL:        req.CancelURL,
	}
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(payload); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, n.apiURL+"/v1/invoice", &buf)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	httpReq.Header.Set("x-api-key", n.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := n.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return nil, fmt.Errorf("%s: unexpected status %s", op, resp.Status)
	}

	var result nowInvoiceResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &ChargeResult{
		Reference:   req.Reference,
		CheckoutURL: result.InvoiceURL,
		Status:      StatusPending,
	}, nil
}

// Verify always reports pending: the gateway confirms asynchronously
// via IPN, so callers must wait for the webhook.
func (n *NOWPayments) Verify(_ context.Context, _ string) (Status, error) {
	return StatusPending, nil
}

// VerifySignature checks the x-nowpayments-sig header: HMAC-SHA512 over
// the raw body with the IPN secret.
func (n *NOWPayments) VerifySignature(body []byte, header http.Header) error {
	got := header.Get("x-nowpayments-sig")
	if got == "" {
		return ErrInvalidSignature
	}
	mac := hmac.New(sha512.New, []byte(n.ipnSecret))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))
	if !hmac.Equal([]byte(expected), []byte(got)) {
		return ErrInvalidSignature
	}
	return nil
}

type nowWebhookPayload struct {
	PaymentID     int64   `json:"payment_id"`
	PaymentStatus string  `json:"payment_status"`
	OrderID       string  `json:"order_id"`
	PriceAmount   float64 `json:"price_amount"`
	PriceCurrency string  `json:"price_currency"`
}

// ParseEvent translates an IPN payload into the common Event.
func (n *NOWPayments) ParseEvent(body []byte) (*Event, error) {
	const op = "paymentprovider.nowpayments.ParseEvent"
	var payload nowWebhookPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	var status Status
	switch strings.ToLower(payload.PaymentStatus) {
	case "finished", "confirmed":
		status = StatusSucceeded
	case "failed", "refunded":
		status = StatusFailed
	case "expired":
		status = StatusCancelled
	default:
		// waiting, confirming, sending, partially_paid
		status = StatusPending
	}

	return &Event{
		ID:        strconv.FormatInt(payload.PaymentID, 10),
		Reference: payload.OrderID,
		Status:    status,
		Amount:    payload.PriceAmount,
		Currency:  strings.ToUpper(payload.PriceCurrency),
	}, nil
}
