// Package rules decides whether a missed call should get an automatic
// response at all.
package rules

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/fixwork/missedcall/internal/domain"
)

// LastResponseStore records when a recipient last received an automatic
// response. Last-write-wins semantics are acceptable here: the window gates
// a courtesy de-duplication, not a correctness invariant.
type LastResponseStore interface {
	// LastResponseAt returns the last recorded send time for the recipient.
	// ok is false when no record exists.
	LastResponseAt(ctx context.Context, recipient string) (t time.Time, ok bool, err error)

	// RecordResponse stores the send time for the recipient.
	RecordResponse(ctx context.Context, recipient string, at time.Time) error
}

// SuppressionReason explains why an event produced no response.
type SuppressionReason string

// Suppression reasons.
const (
	SuppressNone          SuppressionReason = ""
	SuppressBlacklisted   SuppressionReason = "blacklisted"
	SuppressRateLimited   SuppressionReason = "rate_limited"
	SuppressEmergencyOnly SuppressionReason = "emergency_only"
)

// Evaluator applies the response gates in order: blacklist, per-recipient
// rate limit, emergency-only mode. First match suppresses.
type Evaluator struct {
	store  LastResponseStore
	window time.Duration
	now    func() time.Time
}

// NewEvaluator creates an evaluator with the given rate-limit window.
func NewEvaluator(store LastResponseStore, window time.Duration) *Evaluator {
	return &Evaluator{
		store:  store,
		window: window,
		now:    time.Now,
	}
}

// ShouldRespond reports whether a response may be attempted for the event.
// It reads the last-response store but never writes it; recording the send
// happens after a successful enqueue, by the responder.
//
// The rate limit is checked here, at enqueue time, not again at dispatch:
// two near-simultaneous calls from one caller can both pass before either
// timestamp is written. Accepted — the worst case is one extra courtesy
// reply.
func (e *Evaluator) ShouldRespond(ctx context.Context, event *domain.CallEvent, rctx domain.ResponseContext) (bool, SuppressionReason) {
	if rctx.Contact != nil && rctx.Contact.Category == domain.ContactBlacklisted {
		return false, SuppressBlacklisted
	}

	last, ok, err := e.store.LastResponseAt(ctx, event.CallerNumber)
	if err != nil {
		// A broken store must not silence the responder entirely.
		slog.Warn("last-response lookup failed, allowing response",
			"recipient", event.CallerNumber,
			"error", err,
		)
	} else if ok && e.now().Sub(last) < e.window {
		return false, SuppressRateLimited
	}

	if rctx.AppMode == domain.ModeEmergencyOnly && !isEmergency(event, rctx) {
		return false, SuppressEmergencyOnly
	}

	return true, SuppressNone
}

// NormalizeRecipient canonicalizes a recipient identifier for rate-limit
// bookkeeping: phone numbers arrive with spaces, dashes and parentheses
// depending on the call-event source, and every LastResponseStore must key
// the same number the same way.
func NormalizeRecipient(recipient string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case ' ', '-', '(', ')':
			return -1
		}
		return r
	}, recipient)
}

func isEmergency(event *domain.CallEvent, rctx domain.ResponseContext) bool {
	if rctx.HasEmergencyKeywords {
		return true
	}
	return event.Contact != nil && event.Contact.Category == domain.ContactEmergency
}
