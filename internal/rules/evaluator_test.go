package rules

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fixwork/missedcall/internal/domain"
)

type failingStore struct{}

func (failingStore) LastResponseAt(context.Context, string) (time.Time, bool, error) {
	return time.Time{}, false, errors.New("store unavailable")
}

func (failingStore) RecordResponse(context.Context, string, time.Time) error {
	return errors.New("store unavailable")
}

func newTestEvaluator(store LastResponseStore) (*Evaluator, time.Time) {
	now := time.Date(2025, 6, 2, 10, 0, 0, 0, time.UTC)
	e := NewEvaluator(store, time.Hour)
	e.now = func() time.Time { return now }
	return e, now
}

func event(number string, contact *domain.Contact) *domain.CallEvent {
	return &domain.CallEvent{
		ID:           "call-1",
		CallerNumber: number,
		ReceivedAt:   time.Date(2025, 6, 2, 9, 59, 0, 0, time.UTC),
		Contact:      contact,
	}
}

func TestEvaluator_Blacklist(t *testing.T) {
	e, _ := newTestEvaluator(NewMemoryStore())

	blacklisted := &domain.Contact{Category: domain.ContactBlacklisted}
	ev := event("+15550001", blacklisted)

	ok, reason := e.ShouldRespond(context.Background(), ev, domain.ResponseContext{Contact: blacklisted})
	assert.False(t, ok)
	assert.Equal(t, SuppressBlacklisted, reason)
}

func TestEvaluator_RateLimit(t *testing.T) {
	store := NewMemoryStore()
	e, now := newTestEvaluator(store)
	ctx := context.Background()

	tests := []struct {
		name       string
		lastSentAt time.Time
		wantOK     bool
	}{
		{"no previous response", time.Time{}, true},
		{"responded 30 minutes ago", now.Add(-30 * time.Minute), false},
		{"responded just inside the window", now.Add(-59 * time.Minute), false},
		{"responded exactly one window ago", now.Add(-time.Hour), true},
		{"responded two hours ago", now.Add(-2 * time.Hour), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			number := "+1555" + tt.name
			if !tt.lastSentAt.IsZero() {
				require.NoError(t, store.RecordResponse(ctx, number, tt.lastSentAt))
			}

			ok, reason := e.ShouldRespond(ctx, event(number, nil), domain.ResponseContext{})
			assert.Equal(t, tt.wantOK, ok)
			if !tt.wantOK {
				assert.Equal(t, SuppressRateLimited, reason)
			}
		})
	}
}

func TestEvaluator_RateLimitNormalizesRecipient(t *testing.T) {
	store := NewMemoryStore()
	e, now := newTestEvaluator(store)
	ctx := context.Background()

	// Recorded with call-display formatting, checked with the bare number.
	require.NoError(t, store.RecordResponse(ctx, "+1 (555) 000-0001", now.Add(-time.Minute)))

	ok, reason := e.ShouldRespond(ctx, event("+15550000001", nil), domain.ResponseContext{})
	assert.False(t, ok, "formatting differences must not bypass the window")
	assert.Equal(t, SuppressRateLimited, reason)
}

func TestEvaluator_EmergencyOnlyMode(t *testing.T) {
	e, _ := newTestEvaluator(NewMemoryStore())
	ctx := context.Background()

	tests := []struct {
		name    string
		contact *domain.Contact
		rctx    domain.ResponseContext
		wantOK  bool
	}{
		{
			name:   "plain call suppressed",
			rctx:   domain.ResponseContext{AppMode: domain.ModeEmergencyOnly},
			wantOK: false,
		},
		{
			name:   "emergency keywords pass",
			rctx:   domain.ResponseContext{AppMode: domain.ModeEmergencyOnly, HasEmergencyKeywords: true},
			wantOK: true,
		},
		{
			name:    "emergency contact passes",
			contact: &domain.Contact{Category: domain.ContactEmergency},
			rctx:    domain.ResponseContext{AppMode: domain.ModeEmergencyOnly},
			wantOK:  true,
		},
		{
			name:   "normal mode unaffected",
			rctx:   domain.ResponseContext{AppMode: domain.ModeNormal},
			wantOK: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ok, reason := e.ShouldRespond(ctx, event("+15550001", tt.contact), tt.rctx)
			assert.Equal(t, tt.wantOK, ok)
			if !tt.wantOK {
				assert.Equal(t, SuppressEmergencyOnly, reason)
			}
		})
	}
}

func TestEvaluator_BrokenStoreAllowsResponse(t *testing.T) {
	e, _ := newTestEvaluator(failingStore{})

	ok, reason := e.ShouldRespond(context.Background(), event("+15550001", nil), domain.ResponseContext{})
	assert.True(t, ok, "a broken store must not silence the responder")
	assert.Equal(t, SuppressNone, reason)
}

func TestEvaluator_BlacklistBeatsRateLimit(t *testing.T) {
	store := NewMemoryStore()
	e, now := newTestEvaluator(store)
	ctx := context.Background()

	require.NoError(t, store.RecordResponse(ctx, "+15550001", now.Add(-time.Minute)))

	blacklisted := &domain.Contact{Category: domain.ContactBlacklisted}
	_, reason := e.ShouldRespond(ctx, event("+15550001", blacklisted), domain.ResponseContext{Contact: blacklisted})
	assert.Equal(t, SuppressBlacklisted, reason)
}

func TestMemoryStore(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	_, ok, err := store.LastResponseAt(ctx, "+15550001")
	require.NoError(t, err)
	assert.False(t, ok)

	at := time.Date(2025, 6, 2, 10, 0, 0, 0, time.UTC)
	require.NoError(t, store.RecordResponse(ctx, "+15550001", at))

	got, ok, err := store.LastResponseAt(ctx, "+15550001")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, at, got)
}

func TestNormalizeRecipient(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"+15550001", "+15550001"},
		{"+1 (555) 000-0001", "+15550000001"},
		{"555 000 0001", "5550000001"},
		{"user@telegram", "user@telegram"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, NormalizeRecipient(tt.in), "input %q", tt.in)
	}
}
