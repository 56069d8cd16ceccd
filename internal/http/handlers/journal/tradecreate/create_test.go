package tradecreate

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/traderoom/trading-academy/internal/http/middlewarectx"
	"github.com/traderoom/trading-academy/internal/models"
	journalservice "github.com/traderoom/trading-academy/internal/services/journal"
)

// MockService implements the tradecreate.Service interface.
type MockService struct {
	mock.Mock
}

func (m *MockService) AddTrade(ctx context.Context, userUID string, req models.DummyTrade) (int, error) {
	args := m.Called(ctx, userUID, req)
	return args.Int(0), args.Error(1)
}

func TestTradeCreateHandler(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))

	tests := []struct {
		name           string
		requestBody    string
		userUID        string
		setupMock      func(*MockService)
		expectedStatus int
		expectedBody   string
	}{
		{
			name: "valid closed trade is recorded",
			requestBody: `{"symbol":"BTCUSDT","direction":"long","entry_price":100,` +
				`"exit_price":110,"size":2,"opened_at":"01-06-2026","closed_at":"10-06-2026"}`,
			userUID: "user-1",
			setupMock: func(m *MockService) {
				m.On("AddTrade", mock.Anything, "user-1", mock.AnythingOfType("models.DummyTrade")).
					Return(7, nil)
			},
			expectedStatus: http.StatusOK,
			expectedBody:   `"id":7`,
		},
		{
			name: "open trade without closed_at is recorded",
			requestBody: `{"symbol":"ETHUSDT","direction":"short","entry_price":2000,` +
				`"size":1,"opened_at":"15-06-2026"}`,
			userUID: "user-1",
			setupMock: func(m *MockService) {
				m.On("AddTrade", mock.Anything, "user-1", mock.AnythingOfType("models.DummyTrade")).
					Return(8, nil)
			},
			expectedStatus: http.StatusOK,
			expectedBody:   `"id":8`,
		},
		{
			name:           "invalid json",
			requestBody:    `{"symbol":`,
			userUID:        "user-1",
			setupMock:      func(_ *MockService) {},
			expectedStatus: http.StatusBadRequest,
			expectedBody:   `"error":"invalid request body"`,
		},
		{
			name: "unknown direction fails validation",
			requestBody: `{"symbol":"BTCUSDT","direction":"sideways","entry_price":100,` +
				`"size":1,"opened_at":"01-06-2026"}`,
			userUID:        "user-1",
			setupMock:      func(_ *MockService) {},
			expectedStatus: http.StatusUnprocessableEntity,
			expectedBody:   `"status":"Error"`,
		},
		{
			name: "malformed date is a bad request",
			requestBody: `{"symbol":"BTCUSDT","direction":"long","entry_price":100,` +
				`"size":1,"opened_at":"2026-06-01"}`,
			userUID: "user-1",
			setupMock: func(m *MockService) {
				m.On("AddTrade", mock.Anything, "user-1", mock.AnythingOfType("models.DummyTrade")).
					Return(0, journalservice.ErrInvalidDateFormat)
			},
			expectedStatus: http.StatusBadRequest,
			expectedBody:   `dd-mm-yyyy`,
		},
		{
			name: "closed before opened is a bad request",
			requestBody: `{"symbol":"BTCUSDT","direction":"long","entry_price":100,` +
				`"size":1,"opened_at":"10-06-2026","closed_at":"01-06-2026"}`,
			userUID: "user-1",
			setupMock: func(m *MockService) {
				m.On("AddTrade", mock.Anything, "user-1", mock.AnythingOfType("models.DummyTrade")).
					Return(0, journalservice.ErrInvalidTradeDates)
			},
			expectedStatus: http.StatusBadRequest,
			expectedBody:   `"error":"closed_at must not be earlier than opened_at"`,
		},
		{
			name: "missing user in context",
			requestBody: `{"symbol":"BTCUSDT","direction":"long","entry_price":100,` +
				`"size":1,"opened_at":"01-06-2026"}`,
			userUID:        "",
			setupMock:      func(_ *MockService) {},
			expectedStatus: http.StatusUnauthorized,
			expectedBody:   `"error":"unauthorized"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockService := new(MockService)
			tt.setupMock(mockService)

			handler := New(logger, mockService)

			req := httptest.NewRequest(http.MethodPost, "/journal/trades", strings.NewReader(tt.requestBody))
			if tt.userUID != "" {
				req = req.WithContext(context.WithValue(req.Context(), middlewarectx.UserUID, tt.userUID))
			}
			w := httptest.NewRecorder()

			handler.ServeHTTP(w, req)

			assert.Equal(t, tt.expectedStatus, w.Code)
			assert.True(t, strings.Contains(w.Body.String(), tt.expectedBody),
				"response body should contain %s, got %s", tt.expectedBody, w.Body.String())

			mockService.AssertExpectations(t)
		})
	}
}
