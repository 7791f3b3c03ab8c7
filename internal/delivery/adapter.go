// Package delivery owns the priority retry queue that dispatches messages
// to platform adapters.
package delivery

import (
	"context"

	"github.com/fixwork/missedcall/internal/domain"
)

// Adapter is the contract every platform implementation satisfies. The
// queue manager depends only on this interface.
//
// Send must enforce its own timeout and surface it as a failed status or an
// error; the manager specifies none, and a hung adapter blocks the current
// dispatch tick.
type Adapter interface {
	// Platform identifies the chat platform this adapter serves.
	Platform() domain.Platform

	// IsEnabled reports whether the platform is currently configured and
	// available. The manager skips dispatch entirely when false.
	IsEnabled() bool

	// Send transmits the message and reports the outcome.
	Send(ctx context.Context, req *domain.MessageRequest) (*domain.MessageResponse, error)
}
