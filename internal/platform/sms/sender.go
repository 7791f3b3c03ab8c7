// Package sms delivers messages through an HTTP SMS gateway.
package sms

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/fixwork/missedcall/internal/domain"
)

const defaultTimeout = 10 * time.Second

// Config holds sms sender configuration.
type Config struct {
	Enabled    bool
	GatewayURL string
	APIKey     string
	From       string // sender number or alphanumeric id
	Timeout    time.Duration
}

// Sender sends messages through the configured gateway.
type Sender struct {
	config     Config
	httpClient *http.Client
}

// NewSender creates a new sms sender.
// Returns error if enabled but required config is missing.
func NewSender(config Config) (*Sender, error) {
	if config.Enabled {
		if config.GatewayURL == "" {
			return nil, errors.New("sms sender: gateway url is required when enabled")
		}
		if config.From == "" {
			return nil, errors.New("sms sender: from number is required when enabled")
		}
	}
	if config.Timeout == 0 {
		config.Timeout = defaultTimeout
	}

	slog.Info("sms sender configured", "enabled", config.Enabled)

	return &Sender{
		config: config,
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
	}, nil
}

// Platform returns the platform this sender serves.
func (s *Sender) Platform() domain.Platform {
	return domain.PlatformSMS
}

// IsEnabled reports whether the sender is configured and available.
func (s *Sender) IsEnabled() bool {
	return s.config.Enabled
}

type gatewayRequest struct {
	To   string `json:"to"`
	From string `json:"from"`
	Text string `json:"text"`
}

type gatewayResponse struct {
	Status string `json:"status"`
	Error  string `json:"error"`
}

// Send posts the message to the gateway.
func (s *Sender) Send(ctx context.Context, req *domain.MessageRequest) (*domain.MessageResponse, error) {
	body, err := json.Marshal(gatewayRequest{
		To:   req.Recipient,
		From: s.config.From,
		Text: req.Content,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, s.config.GatewayURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if s.config.APIKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+s.config.APIKey)
	}

	resp, err := s.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusAccepted {
		slog.Warn("sms send rejected",
			"message_id", req.ID,
			"status", resp.StatusCode,
		)
		return &domain.MessageResponse{
			ID:       req.ID,
			Platform: domain.PlatformSMS,
			Status:   domain.StatusFailed,
			Error:    fmt.Sprintf("gateway returned %d: %s", resp.StatusCode, string(respBody)),
		}, nil
	}

	var gwResp gatewayResponse
	if err := json.Unmarshal(respBody, &gwResp); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	status := domain.StatusSent
	if gwResp.Status == "delivered" {
		status = domain.StatusDelivered
	}

	slog.Debug("sms message sent", "message_id", req.ID)
	return &domain.MessageResponse{
		ID:       req.ID,
		Platform: domain.PlatformSMS,
		Status:   status,
	}, nil
}
