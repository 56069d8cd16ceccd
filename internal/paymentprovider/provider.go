// Package paymentprovider contains the HTTP clients for the three
// payment gateways behind one Provider interface, so call sites speak a
// single charge/verify/webhook contract instead of branching on the
// payment method string.
package paymentprovider

import (
	"context"
	"errors"
	"net/http"
	"time"
)

// Status is the provider-independent payment status every adapter
// translates its gateway statuses into.
type Status string

const (
	// StatusPending means the payment is initiated but not confirmed.
	StatusPending Status = "pending"
	// StatusSucceeded means the payment is confirmed.
	StatusSucceeded Status = "succeeded"
	// StatusFailed means the payment was declined or errored.
	StatusFailed Status = "failed"
	// StatusCancelled means the payment was abandoned or refunded.
	StatusCancelled Status = "cancelled"
)

// ErrInvalidSignature is returned when a webhook signature check fails.
var ErrInvalidSignature = errors.New("invalid webhook signature")

// ChargeRequest carries everything an adapter needs to start a checkout.
type ChargeRequest struct {
	Reference     string  // our order reference, also the idempotency key seed
	PlanName      string
	Amount        float64
	Currency      string
	CustomerEmail string
	SuccessURL    string
	CancelURL     string
}

// ChargeResult is what an initiated checkout returns to the caller.
type ChargeResult struct {
	Reference   string // provider-side reference used by Verify and webhooks
	CheckoutURL string // where the customer completes the payment
	Status      Status
}

// Event is a provider webhook translated into the common contract.
type Event struct {
	ID        string // provider event ID, used for the idempotency ledger
	Reference string // matches ChargeResult.Reference
	Status    Status
	Amount    float64
	Currency  string
}

// Provider is the contract all three gateways implement. Verify is
// synchronous where the gateway supports it; the crypto processor
// confirms via webhook only and reports pending.
type Provider interface {
	Name() string
	Initiate(ctx context.Context, req ChargeRequest) (*ChargeResult, error)
	Verify(ctx context.Context, reference string) (Status, error)
	VerifySignature(body []byte, header http.Header) error
	ParseEvent(body []byte) (*Event, error)
}

func newHTTPClient() *http.Client {
	return &http.Client{Timeout: 10 * time.Second}
}
