package whatsapp

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
	tests := []struct {
		name    string
		config  Config
		wantErr bool
	}{
		{"disabled needs nothing", Config{}, false},
		{"enabled without url", Config{Enabled: true, AccessToken: "t"}, true},
		{"enabled without token", Config{Enabled: true, GatewayURL: "http://gw"}, true},
		{"enabled with both", Config{Enabled: true, GatewayURL: "http://gw", AccessToken: "t"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewSender(tt.config)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestSender_Platform(t *testing.T) {
	sender, err := NewSender(Config{})
	require.NoError(t, err)
	assert.Equal(t, domain.PlatformWhatsApp, sender.Platform())
}

func TestSender_Send_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))

		var payload gatewayRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		assert.Equal(t, "+15550001", payload.To)
		assert.Equal(t, "text", payload.Type)
		assert.Equal(t, "We missed your call!", payload.Text.Body)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status": "sent"}`))
	}))
	defer server.Close()

	sender, err := NewSender(Config{
		Enabled:     true,
		GatewayURL:  server.URL,
		AccessToken: "secret",
		Timeout:     time.Second,
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

func TestSender_Send_DeliveredStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status": "delivered"}`))
	}))
	defer server.Close()

	sender, err := NewSender(Config{
		Enabled:     true,
		GatewayURL:  server.URL,
		AccessToken: "secret",
	})
	require.NoError(t, err)

	resp, err := sender.Send(context.Background(), &domain.MessageRequest{
		ID:        "msg-1",
		Recipient: "+15550001",
		Content:   "hello",
	})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusDelivered, resp.Status)
}

func TestSender_Send_GatewayRejection(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`{"error": "invalid recipient"}`))
	}))
	defer server.Close()

	sender, err := NewSender(Config{
		Enabled:     true,
		GatewayURL:  server.URL,
		AccessToken: "secret",
	})
	require.NoError(t, err)

	resp, err := sender.Send(context.Background(), &domain.MessageRequest{
		ID:        "msg-1",
		Recipient: "not-a-number",
		Content:   "hello",
	})
	require.NoError(t, err, "a gateway rejection is an outcome, not a transport error")

	assert.Equal(t, domain.StatusFailed, resp.Status)
	assert.Contains(t, resp.Error, "422")
}
