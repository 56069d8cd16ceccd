package paymentprovider

import (
	"bytes"
	"context"
	"crypto/subtle"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
)

// Flutterwave is the mobile-money / bank-transfer processor adapter.
type Flutterwave struct {
	secretKey  string
	secretHash string
	apiURL     string
	httpClient *http.Client
}

// NewFlutterwave creates the mobile-money processor client.
func NewFlutterwave(secretKey, secretHash string) *Flutterwave {
	return &Flutterwave{
		secretKey:  secretKey,
		secretHash: secretHash,
		apiURL:     "https://api.flutterwave.com",
		httpClient: newHTTPClient(),
	}
}

// Name implements Provider.
func (f *Flutterwave) Name() string { return "flutterwave" }

type flwPaymentRequest struct {
	TxRef       string       `json:"tx_ref"`
	Amount      string       `json:"amount"`
	Currency    string       `json:"currency"`
	RedirectURL string       `json:"redirect_url"`
	Customer    flwCustomer  `json:"customer"`
	Meta        *flwMetaPlan `json:"meta,omitempty"`
}

type flwCustomer struct {
	Email string `json:"email"`
}

type flwMetaPlan struct {
	PlanName string `json:"plan_name"`
}

type flwResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Data    struct {
		Link   string `json:"link"`
		TxRef  string `json:"tx_ref"`
		Status string `json:"status"`
	} `json:"data"`
}

// Initiate creates a payment link. The tx_ref is our own reference, so
// retrying with the same reference cannot open a second charge.
func (f *Flutterwave) Initiate(ctx context.Context, req ChargeRequest) (*ChargeResult, error) {
	const op = "paymentprovider.flutterwave.Initiate"

	payload := flwPaymentRequest{
		TxRef:       req.Reference,
		Amount:      strconv.FormatFloat(req.Amount, 'f', 2, 64),
		Currency:    strings.ToUpper(req.Currency),
		RedirectURL: req.SuccessURL,
		Customer:    flwCustomer{Email: req.CustomerEmail},
		Meta:        &flwMetaPlan{PlanName: req.PlanName},
	}
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(payload); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, f.apiURL+"/v3/payments", &buf)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+f.secretKey)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := f.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%s: unexpected status %s", op, resp.Status)
	}

	var result flwResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if result.Status != "success" {
		return nil, fmt.Errorf("%s: provider rejected payment: %s", op, result.Message)
	}
	return &ChargeResult{
		Reference:   req.Reference,
		CheckoutURL: result.Data.Link,
		Status:      StatusPending,
	}, nil
}

// Verify resolves the transaction by our reference.
func (f *Flutterwave) Verify(ctx context.Context, reference string) (Status, error) {
	const op = "paymentprovider.flutterwave.Verify"

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet,
		f.apiURL+"/v3/transactions/verify_by_reference?tx_ref="+url.QueryEscape(reference), nil)
	if err != nil {
		return StatusPending, fmt.Errorf("%s: %w", op, err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+f.secretKey)

	resp, err := f.httpClient.Do(httpReq)
	if err != nil {
		return StatusPending, fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if resp.StatusCode != http.StatusOK {
		return StatusPending, fmt.Errorf("%s: unexpected status %s", op, resp.Status)
	}

	var result flwResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return StatusPending, fmt.Errorf("%s: %w", op, err)
	}
	return flwStatus(result.Data.Status), nil
}

// VerifySignature checks the verif-hash header against the configured
// secret hash. Flutterwave sends the plain secret, not an HMAC.
func (f *Flutterwave) VerifySignature(body []byte, header http.Header) error {
	_ = body
	got := header.Get("verif-hash")
	if got == "" || subtle.ConstantTimeCompare([]byte(got), []byte(f.secretHash)) != 1 {
		return ErrInvalidSignature
	}
	return nil
}

type flwWebhookPayload struct {
	Event string `json:"event"`
	Data  struct {
		ID       int64   `json:"id"`
		TxRef    string  `json:"tx_ref"`
		Status   string  `json:"status"`
		Amount   float64 `json:"amount"`
		Currency string  `json:"currency"`
	} `json:"data"`
}

// ParseEvent translates a webhook payload into the common Event.
func (f *Flutterwave) ParseEvent(body []byte) (*Event, error) {
	const op = "paymentprovider.flutterwave.ParseEvent"
	var payload flwWebhookPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &Event{
		ID:        strconv.FormatInt(payload.Data.ID, 10),
		Reference: payload.Data.TxRef,
		Status:    flwStatus(payload.Data.Status),
		Amount:    payload.Data.Amount,
		Currency:  strings.ToUpper(payload.Data.Currency),
	}, nil
}

func flwStatus(s string) Status {
	switch strings.ToLower(s) {
	case "successful":
		return StatusSucceeded
	case "failed":
		return StatusFailed
	case "cancelled":
		return StatusCancelled
	default:
		return StatusPending
	}
}
