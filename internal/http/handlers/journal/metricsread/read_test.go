package metricsread

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/traderoom/trading-academy/internal/http/middlewarectx"
	"github.com/traderoom/trading-academy/internal/models"
	journalservice "github.com/traderoom/trading-academy/internal/services/journal"
)

// MockService implements the metricsread.Service interface.
type MockService struct {
	mock.Mock
}

func (m *MockService) Metrics(ctx context.Context, userUID, period string) (*models.PerformanceMetrics, error) {
	args := m.Called(ctx, userUID, period)
	if res := args.Get(0); res != nil {
		return res.(*models.PerformanceMetrics), args.Error(1)
	}
	return nil, args.Error(1)
}

func TestMetricsReadHandler(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))

	metrics := &models.PerformanceMetrics{
		UserUID:      "user-1",
		Period:       "all",
		TotalTrades:  10,
		WinRate:      0.6,
		ProfitFactor: 2.5,
		MaxDrawdown:  120,
		ComputedAt:   time.Now(),
	}

	tests := []struct {
		name           string
		url            string
		userUID        string
		setupMock      func(*MockService)
		expectedStatus int
		expectedBody   string
	}{
		{
			name:    "default period is all",
			url:     "/journal/metrics",
			userUID: "user-1",
			setupMock: func(m *MockService) {
				m.On("Metrics", mock.Anything, "user-1", "all").Return(metrics, nil)
			},
			expectedStatus: http.StatusOK,
			expectedBody:   `"profit_factor":2.5`,
		},
		{
			name:    "month period is passed through",
			url:     "/journal/metrics?period=2026-08",
			userUID: "user-1",
			setupMock: func(m *MockService) {
				month := *metrics
				month.Period = "2026-08"
				m.On("Metrics", mock.Anything, "user-1", "2026-08").Return(&month, nil)
			},
			expectedStatus: http.StatusOK,
			expectedBody:   `"period":"2026-08"`,
		},
		{
			name:    "invalid period",
			url:     "/journal/metrics?period=yesterday",
			userUID: "user-1",
			setupMock: func(m *MockService) {
				m.On("Metrics", mock.Anything, "user-1", "yesterday").
					Return(nil, journalservice.ErrInvalidPeriod)
			},
			expectedStatus: http.StatusBadRequest,
			expectedBody:   `"error":"invalid period, use 'all' or YYYY-MM"`,
		},
		{
			name:           "missing user in context",
			url:            "/journal/metrics",
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

			req := httptest.NewRequest(http.MethodGet, tt.url, nil)
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
