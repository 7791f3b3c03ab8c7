package sms

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fixwork/missedcall/internal/domain"
)

func TestNewSender_RequiresConfigWhenEnabled(t *testing.T) {
	_, err := NewSender(Config{Enabled: true})
	assert.Error(t, err)

	_, err = NewSender(Config{Enabled: true, GatewayURL: "http://gw"})
	assert.Error(t, err, "from number is required")

	sender, err := NewSender(Config{Enabled: true, GatewayURL: "http://gw", From: "+15550009"})
	require.NoError(t, err)
	assert.True(t, sender.IsEnabled())
	assert.Equal(t, domain.PlatformSMS, sender.Platform())
}

func TestSender_Send_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer api-key", r.Header.Get("Authorization"))

		var payload gatewayRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		assert.Equal(t, "+15550001", payload.To)
		assert.Equal(t, "+15550009", payload.From)
		assert.Equal(t, "We missed your call!", payload.Text)

		w.WriteHeader(http.StatusAccepted)
		_, _ = w.Write([]byte(`{"status": "queued"}`))
	}))
	defer server.Close()

	sender, err := NewSender(Config{
		Enabled:    true,
		GatewayURL: server.URL,
		APIKey:     "api-key",
		From:       "+15550009",
		Timeout:    time.Second,
	})
	require.NoError(t, err)

	resp, err := sender.Send(context.Background(), &domain.MessageRequest{
		ID:        "msg-1",
		Recipient: "+15550001",
		Content:   "We missed your call!",
	})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusSent, resp.Status)
}

func TestSender_Send_GatewayRejection(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error": "unknown destination"}`))
	}))
	defer server.Close()

	sender, err := NewSender(Config{
		Enabled:    true,
		GatewayURL: server.URL,
		From:       "+15550009",
	})
	require.NoError(t, err)

	resp, err := sender.Send(context.Background(), &domain.MessageRequest{
		ID:        "msg-1",
		Recipient: "bad",
		Content:   "hello",
	})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusFailed, resp.Status)
	assert.Contains(t, resp.Error, "400")
}
