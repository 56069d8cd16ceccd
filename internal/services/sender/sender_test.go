package services

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	smtplib "github.com/traderoom/trading-academy/internal/lib/smtp"
	"github.com/traderoom/trading-academy/internal/models"
)

type MockClient struct {
	mock.Mock
	body bytes.Buffer
}

type nopWriteCloser struct {
	io.Writer
}

func (nopWriteCloser) Close() error { return nil }

func (m *MockClient) Mail(from string) error {
	args := m.Called(from)
	return args.Error(0)
}

func (m *MockClient) Rcpt(to string) error {
	args := m.Called(to)
	return args.Error(0)
}

func (m *MockClient) Data() (io.WriteCloser, error) {
	args := m.Called()
	return nopWriteCloser{&m.body}, args.Error(0)
}

func (m *MockClient) Quit() error {
	args := m.Called()
	return args.Error(0)
}

func (m *MockClient) Close() error {
	args := m.Called()
	return args.Error(0)
}

type MockTransport struct {
	mock.Mock
	client *MockClient
}

func (m *MockTransport) Connect() (smtplib.Client, error) {
	args := m.Called()
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return m.client, args.Error(1)
}

func (m *MockTransport) GetSMTPUser() string {
	args := m.Called()
	return args.String(0)
}

func newNoopLogger() *slog.Logger {
	h := slog.NewTextHandler(io.Discard, &slog.HandlerOptions{})
	return slog.New(h)
}

func TestSenderService_SendExpirationReminder(t *testing.T) {
	message := models.ExpiringSubscription{
		SubscriptionID:  7,
		Email:           "trader@example.com",
		Username:        "trader",
		PlanDisplayName: "Premium",
		PeriodEnd:       time.Date(2026, 9, 4, 0, 0, 0, 0, time.UTC),
	}
	body, err := json.Marshal(message)
	require.NoError(t, err)

	t.Run("sends the reminder email", func(t *testing.T) {
		client := new(MockClient)
		transport := &MockTransport{client: client}
		service := NewSenderService(transport, newNoopLogger())

		transport.On("Connect").Return(client, nil).Once()
		transport.On("GetSMTPUser").Return("noreply@example.com")
		client.On("Mail", "noreply@example.com").Return(nil).Once()
		client.On("Rcpt", "trader@example.com").Return(nil).Once()
		client.On("Data").Return(nil).Once()
		client.On("Quit").Return(nil).Once()
		client.On("Close").Return(nil).Once()

		err := service.SendExpirationReminder(body)

		require.NoError(t, err)
		sent := client.body.String()
		assert.Contains(t, sent, "trader@example.com")
		assert.Contains(t, sent, "Premium")
		assert.Contains(t, sent, "04 Sep 2026")
		transport.AssertExpectations(t)
		client.AssertExpectations(t)
	})

	t.Run("garbage message body is rejected", func(t *testing.T) {
		transport := &MockTransport{client: new(MockClient)}
		service := NewSenderService(transport, newNoopLogger())

		err := service.SendExpirationReminder([]byte(`{broken`))

		assert.Error(t, err)
		transport.AssertNotCalled(t, "Connect")
	})
}
