package delivery

import (
	"context"

	"github.com/fixwork/missedcall/internal/domain"
)

// Repository persists queue state so it survives process restarts. The
// in-memory manager is the source of truth; writes are best-effort and a
// failed write is logged, never propagated.
type Repository interface {
	SaveMessage(ctx context.Context, msg *StoredMessage) error
	DeleteMessage(ctx context.Context, id string) error
	LoadMessages(ctx context.Context) ([]StoredMessage, error)
	DeleteAllMessages(ctx context.Context) error

	SaveCounters(ctx context.Context, counters map[domain.Platform]PlatformStats, totalProcessed int64) error
	LoadCounters(ctx context.Context) (map[domain.Platform]PlatformStats, int64, error)
}

// NopRepository discards all writes and loads nothing. Used in tests and
// when the service runs without a database.
type NopRepository struct{}

// SaveMessage implements Repository.
func (NopRepository) SaveMessage(context.Context, *StoredMessage) error { return nil }

// DeleteMessage implements Repository.
func (NopRepository) DeleteMessage(context.Context, string) error { return nil }

// LoadMessages implements Repository.
func (NopRepository) LoadMessages(context.Context) ([]StoredMessage, error) { return nil, nil }

// DeleteAllMessages implements Repository.
func (NopRepository) DeleteAllMessages(context.Context) error { return nil }

// SaveCounters implements Repository.
func (NopRepository) SaveCounters(context.Context, map[domain.Platform]PlatformStats, int64) error {
	return nil
}

// LoadCounters implements Repository.
func (NopRepository) LoadCounters(context.Context) (map[domain.Platform]PlatformStats, int64, error) {
	return nil, 0, nil
}
