// Package telegram delivers messages through the Telegram Bot API.
package telegram

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

const (
	defaultTimeout = 10 * time.Second
	defaultAPIBase = "https://api.telegram.org"
)

// Config holds telegram sender configuration.
type Config struct {
	Enabled  bool
	BotToken string
	APIBase  string        // overridden in tests
	Timeout  time.Duration // request timeout
}

// Sender sends messages via the Telegram Bot API. The recipient is the
// chat id the caller registered with the bot.
type Sender struct {
	config     Config
	httpClient *http.Client
}

// NewSender creates a new telegram sender.
// Returns error if enabled but required config is missing.
func NewSender(config Config) (*Sender, error) {
	if config.Enabled && config.BotToken == "" {
		return nil, errors.New("telegram sender: bot token is required when enabled")
	}
	if config.APIBase == "" {
		config.APIBase = defaultAPIBase
	}
	if config.Timeout == 0 {
		config.Timeout = defaultTimeout
	}

	slog.Info("telegram sender configured", "enabled", config.Enabled)

	return &Sender{
		config: config,
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
	}, nil
}

// Platform returns the platform this sender serves.
func (s *Sender) Platform() domain.Platform {
	return domain.PlatformTelegram
}

// IsEnabled reports whether the sender is configured and available.
func (s *Sender) IsEnabled() bool {
	return s.config.Enabled
}

type sendMessageRequest struct {
	ChatID string `json:"chat_id"`
	Text   string `json:"text"`
}

type sendMessageResponse struct {
	OK          bool   `json:"ok"`
	Description string `json:"description"`
}

// Send delivers the message via the sendMessage endpoint.
func (s *Sender) Send(ctx context.Context, req *domain.MessageRequest) (*domain.MessageResponse, error) {
	payload, err := json.Marshal(sendMessageRequest{
		ChatID: req.Recipient,
		Text:   req.Content,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", s.config.APIBase, s.config.BotToken)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	var apiResp sendMessageResponse
	if err := json.Unmarshal(body, &apiResp); err != nil {
		return nil, fmt.Errorf("decode response (status %d): %w", resp.StatusCode, err)
	}

	if !apiResp.OK {
		slog.Warn("telegram send rejected",
			"message_id", req.ID,
			"status", resp.StatusCode,
			"description", apiResp.Description,
		)
		return &domain.MessageResponse{
			ID:       req.ID,
			Platform: domain.PlatformTelegram,
			Status:   domain.StatusFailed,
			Error:    apiResp.Description,
		}, nil
	}

	slog.Debug("telegram message sent", "message_id", req.ID)
	return &domain.MessageResponse{
		ID:       req.ID,
		Platform: domain.PlatformTelegram,
		Status:   domain.StatusSent,
	}, nil
}
