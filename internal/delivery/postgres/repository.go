// Package postgres provides the PostgreSQL implementation of the delivery
// repository.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fixwork/missedcall/internal/delivery"
	"github.com/fixwork/missedcall/internal/domain"
)

// Repository implements delivery.Repository using PostgreSQL.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository creates a new PostgreSQL repository.
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// SaveMessage upserts a message with its current queue state.
func (r *Repository) SaveMessage(ctx context.Context, msg *delivery.StoredMessage) error {
	variables, err := json.Marshal(msg.Variables)
	if err != nil {
		return fmt.Errorf("marshal variables: %w", err)
	}

	query := `
		INSERT INTO queue_messages
			(id, platform, recipient, content, template_id, variables, priority,
			 retry_count, max_retries, state, last_error, created_at, scheduled_at, finished_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		ON CONFLICT (id) DO UPDATE SET
			retry_count = EXCLUDED.retry_count,
			state = EXCLUDED.state,
			last_error = EXCLUDED.last_error,
			scheduled_at = EXCLUDED.scheduled_at,
			finished_at = EXCLUDED.finished_at
	`
	_, err = r.db.Exec(ctx, query,
		msg.ID,
		msg.Platform,
		msg.Recipient,
		msg.Content,
		msg.TemplateID,
		variables,
		msg.Priority,
		msg.RetryCount,
		msg.MaxRetries,
		msg.State,
		msg.LastError,
		msg.CreatedAt,
		msg.ScheduledAt,
		msg.FinishedAt,
	)
	if err != nil {
		return fmt.Errorf("save message: %w", err)
	}
	return nil
}

// DeleteMessage removes a persisted message.
func (r *Repository) DeleteMessage(ctx context.Context, id string) error {
	if _, err := r.db.Exec(ctx, `DELETE FROM queue_messages WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete message: %w", err)
	}
	return nil
}

// LoadMessages returns all persisted messages, oldest first.
func (r *Repository) LoadMessages(ctx context.Context) ([]delivery.StoredMessage, error) {
	query := `
		SELECT id, platform, recipient, content, template_id, variables, priority,
		       retry_count, max_retries, state, last_error, created_at, scheduled_at, finished_at
		FROM queue_messages
		ORDER BY created_at
	`
	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("load messages: %w", err)
	}
	defer rows.Close()

	msgs := make([]delivery.StoredMessage, 0)
	for rows.Next() {
		var msg delivery.StoredMessage
		var variables []byte
		err := rows.Scan(
			&msg.ID,
			&msg.Platform,
			&msg.Recipient,
			&msg.Content,
			&msg.TemplateID,
			&variables,
			&msg.Priority,
			&msg.RetryCount,
			&msg.MaxRetries,
			&msg.State,
			&msg.LastError,
			&msg.CreatedAt,
			&msg.ScheduledAt,
			&msg.FinishedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		if len(variables) > 0 {
			if err := json.Unmarshal(variables, &msg.Variables); err != nil {
				return nil, fmt.Errorf("unmarshal variables: %w", err)
			}
		}
		msgs = append(msgs, msg)
	}

	return msgs, nil
}

// DeleteAllMessages purges the persisted queue.
func (r *Repository) DeleteAllMessages(ctx context.Context) error {
	if _, err := r.db.Exec(ctx, `DELETE FROM queue_messages`); err != nil {
		return fmt.Errorf("delete all messages: %w", err)
	}
	return nil
}

// SaveCounters replaces the persisted per-platform counters.
func (r *Repository) SaveCounters(ctx context.Context, counters map[domain.Platform]delivery.PlatformStats, totalProcessed int64) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	if _, err := tx.Exec(ctx, `DELETE FROM platform_counters`); err != nil {
		return fmt.Errorf("clear counters: %w", err)
	}

	for platform, stats := range counters {
		_, err := tx.Exec(ctx,
			`INSERT INTO platform_counters (platform, sent, failed) VALUES ($1, $2, $3)`,
			platform, stats.Sent, stats.Failed,
		)
		if err != nil {
			return fmt.Errorf("insert counter for %s: %w", platform, err)
		}
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO delivery_totals (id, total_processed) VALUES (TRUE, $1)
		ON CONFLICT (id) DO UPDATE SET total_processed = EXCLUDED.total_processed
	`, totalProcessed)
	if err != nil {
		return fmt.Errorf("save total processed: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// LoadCounters returns the persisted per-platform counters.
func (r *Repository) LoadCounters(ctx context.Context) (map[domain.Platform]delivery.PlatformStats, int64, error) {
	rows, err := r.db.Query(ctx, `SELECT platform, sent, failed FROM platform_counters`)
	if err != nil {
		return nil, 0, fmt.Errorf("load counters: %w", err)
	}
	defer rows.Close()

	counters := make(map[domain.Platform]delivery.PlatformStats)
	for rows.Next() {
		var platform domain.Platform
		var stats delivery.PlatformStats
		if err := rows.Scan(&platform, &stats.Sent, &stats.Failed); err != nil {
			return nil, 0, fmt.Errorf("scan counter: %w", err)
		}
		counters[platform] = stats
	}

	var total int64
	err = r.db.QueryRow(ctx, `SELECT total_processed FROM delivery_totals WHERE id`).Scan(&total)
	if errors.Is(err, pgx.ErrNoRows) {
		// No totals row yet on a fresh database.
		return counters, 0, nil
	}
	if err != nil {
		return nil, 0, fmt.Errorf("load total processed: %w", err)
	}

	return counters, total, nil
}
