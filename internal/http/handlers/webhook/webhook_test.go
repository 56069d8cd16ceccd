package webhook

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/traderoom/trading-academy/internal/paymentprovider"
)

// MockProvider implements the paymentprovider.Provider interface.
type MockProvider struct {
	mock.Mock
}

func (m *MockProvider) Name() string {
	return "stripe"
}

func (m *MockProvider) Initiate(ctx context.Context, req paymentprovider.ChargeRequest) (*paymentprovider.ChargeResult, error) {
	args := m.Called(ctx, req)
	if res := args.Get(0); res != nil {
		return res.(*paymentprovider.ChargeResult), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockProvider) Verify(ctx context.Context, reference string) (paymentprovider.Status, error) {
	args := m.Called(ctx, reference)
	return args.Get(0).(paymentprovider.Status), args.Error(1)
}

func (m *MockProvider) VerifySignature(body []byte, header http.Header) error {
	args := m.Called(body, header)
	return args.Error(0)
}

func (m *MockProvider) ParseEvent(body []byte) (*paymentprovider.Event, error) {
	args := m.Called(body)
	if res := args.Get(0); res != nil {
		return res.(*paymentprovider.Event), args.Error(1)
	}
	return nil, args.Error(1)
}

// MockService implements the webhook.Service interface.
type MockService struct {
	mock.Mock
}

func (m *MockService) ProcessEvent(ctx context.Context, provider string, event *paymentprovider.Event, payload []byte) error {
	args := m.Called(ctx, provider, event, payload)
	return args.Error(0)
}

func TestWebhookHandler(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))

	event := &paymentprovider.Event{
		ID:        "evt_1",
		Reference: "sub-abc",
		Status:    paymentprovider.StatusSucceeded,
		Amount:    49.99,
		Currency:  "USD",
	}

	tests := []struct {
		name           string
		body           string
		setupMocks     func(*MockProvider, *MockService)
		expectedStatus int
		expectedBody   string
	}{
		{
			name: "valid event is processed",
			body: `{"id":"evt_1"}`,
			setupMocks: func(p *MockProvider, s *MockService) {
				p.On("VerifySignature", mock.Anything, mock.Anything).Return(nil)
				p.On("ParseEvent", mock.Anything).Return(event, nil)
				s.On("ProcessEvent", mock.Anything, "stripe", event, mock.Anything).Return(nil)
			},
			expectedStatus: http.StatusOK,
			expectedBody:   `"status":"OK"`,
		},
		{
			name: "invalid signature is rejected without processing",
			body: `{"id":"evt_1"}`,
			setupMocks: func(p *MockProvider, _ *MockService) {
				p.On("VerifySignature", mock.Anything, mock.Anything).Return(paymentprovider.ErrInvalidSignature)
			},
			expectedStatus: http.StatusUnauthorized,
			expectedBody:   `"error":"invalid signature"`,
		},
		{
			name: "malformed payload",
			body: `not-json`,
			setupMocks: func(p *MockProvider, _ *MockService) {
				p.On("VerifySignature", mock.Anything, mock.Anything).Return(nil)
				p.On("ParseEvent", mock.Anything).Return(nil, errors.New("invalid character"))
			},
			expectedStatus: http.StatusBadRequest,
			expectedBody:   `"error":"malformed event"`,
		},
		{
			name: "processing failure",
			body: `{"id":"evt_1"}`,
			setupMocks: func(p *MockProvider, s *MockService) {
				p.On("VerifySignature", mock.Anything, mock.Anything).Return(nil)
				p.On("ParseEvent", mock.Anything).Return(event, nil)
				s.On("ProcessEvent", mock.Anything, "stripe", event, mock.Anything).Return(errors.New("db error"))
			},
			expectedStatus: http.StatusInternalServerError,
			expectedBody:   `"error":"could not process event"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockProvider := new(MockProvider)
			mockService := new(MockService)
			tt.setupMocks(mockProvider, mockService)

			handler := New(logger, mockProvider, mockService)

			req := httptest.NewRequest(http.MethodPost, "/webhooks/stripe", strings.NewReader(tt.body))
			w := httptest.NewRecorder()

			handler.ServeHTTP(w, req)

			assert.Equal(t, tt.expectedStatus, w.Code)
			assert.True(t, strings.Contains(w.Body.String(), tt.expectedBody),
				"response body should contain %s, got %s", tt.expectedBody, w.Body.String())

			mockProvider.AssertExpectations(t)
			mockService.AssertExpectations(t)
		})
	}
}

func TestWebhookHandlerBadSignatureDoesNotMutate(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))

	mockProvider := new(MockProvider)
	mockService := new(MockService)
	mockProvider.On("VerifySignature", mock.Anything, mock.Anything).Return(paymentprovider.ErrInvalidSignature)

	handler := New(logger, mockProvider, mockService)

	req := httptest.NewRequest(http.MethodPost, "/webhooks/stripe", strings.NewReader(`{"id":"evt_1"}`))
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	mockService.AssertNotCalled(t, "ProcessEvent", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}
