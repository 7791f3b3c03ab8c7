// Package redis provides a Redis-backed last-response store.
package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/fixwork/missedcall/internal/rules"
)

const keyPrefix = "missedcall:lastresponse:"

// Store keeps per-recipient last-response timestamps in Redis. Keys expire
// with the rate-limit window, so the store cleans up after itself.
type Store struct {
	client *redis.Client
	ttl    time.Duration
}

// NewStore creates a store writing keys with the given TTL.
func NewStore(client *redis.Client, ttl time.Duration) *Store {
	return &Store{client: client, ttl: ttl}
}

// LastResponseAt implements rules.LastResponseStore.
func (s *Store) LastResponseAt(ctx context.Context, recipient string) (time.Time, bool, error) {
	val, err := s.client.Get(ctx, key(recipient)).Result()
	if errors.Is(err, redis.Nil) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, fmt.Errorf("get last response: %w", err)
	}

	t, err := time.Parse(time.RFC3339Nano, val)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("parse last response time: %w", err)
	}
	return t, true, nil
}

// RecordResponse implements rules.LastResponseStore.
func (s *Store) RecordResponse(ctx context.Context, recipient string, at time.Time) error {
	if err := s.client.Set(ctx, key(recipient), at.Format(time.RFC3339Nano), s.ttl).Err(); err != nil {
		return fmt.Errorf("record response: %w", err)
	}
	return nil
}

func key(recipient string) string {
	return keyPrefix + rules.NormalizeRecipient(recipient)
}
