package delivery

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"sort"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/fixwork/missedcall/internal/domain"
)

// Config contains queue manager configuration.
type Config struct {
	BatchSize      int
	MaxRetries     int
	MessageDelay   time.Duration
	BaseBackoff    time.Duration
	MaxBackoff     time.Duration
	JitterFraction float64
	CompletedLimit int
	Retention      time.Duration
}

// DefaultConfig returns default queue manager configuration.
func DefaultConfig() Config {
	return Config{
		BatchSize:      5,
		MaxRetries:     3,
		MessageDelay:   1 * time.Second,
		BaseBackoff:    60 * time.Second,
		MaxBackoff:     15 * time.Minute,
		JitterFraction: 0.3,
		CompletedLimit: 100,
		Retention:      7 * 24 * time.Hour,
	}
}

// Manager owns the four message queues and all per-platform counters.
// No other component mutates them.
//
// Dispatch within a batch is strictly sequential to respect external API
// rate ceilings; the pacer spaces consecutive sends by MessageDelay.
type Manager struct {
	config   Config
	repo     Repository
	adapters map[domain.Platform]Adapter
	validate *validator.Validate
	pacer    *rate.Limiter

	now    func() time.Time
	jitter func() float64

	mu             sync.Mutex
	inFlight       bool
	pending        []*StoredMessage
	processing     map[string]*StoredMessage
	completed      []*StoredMessage
	failed         []*StoredMessage
	counters       map[domain.Platform]*PlatformStats
	totalProcessed int64
}

// NewManager creates a queue manager over the given adapters.
func NewManager(config Config, repo Repository, adapters ...Adapter) *Manager {
	adapterMap := make(map[domain.Platform]Adapter, len(adapters))
	for _, a := range adapters {
		adapterMap[a.Platform()] = a
	}

	return &Manager{
		config:     config,
		repo:       repo,
		adapters:   adapterMap,
		validate:   validator.New(),
		pacer:      rate.NewLimiter(rate.Every(config.MessageDelay), 1),
		now:        time.Now,
		jitter:     rand.Float64,
		processing: make(map[string]*StoredMessage),
		counters:   make(map[domain.Platform]*PlatformStats),
	}
}

// Enqueue validates the request and appends it to the pending queue,
// re-sorting by priority. It returns the message id, generated when the
// request carries none, so callers can address the message afterwards
// (cancel, retry). It never blocks on delivery; the only possible error is
// a *ValidationError for a malformed request.
func (m *Manager) Enqueue(ctx context.Context, req domain.MessageRequest) (string, error) {
	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	if req.Priority == "" {
		req.Priority = domain.PriorityNormal
	}
	if req.MaxRetries == 0 {
		req.MaxRetries = m.config.MaxRetries
	}
	if req.CreatedAt.IsZero() {
		req.CreatedAt = m.now()
	}

	if err := m.validate.Struct(req); err != nil {
		return "", &ValidationError{Err: err}
	}

	msg := &StoredMessage{MessageRequest: req, State: StatePending}

	m.mu.Lock()
	m.pending = append(m.pending, msg)
	m.sortPendingLocked()
	m.mu.Unlock()

	m.persist(ctx, msg)

	slog.Debug("message enqueued",
		"message_id", req.ID,
		"platform", req.Platform,
		"priority", req.Priority,
	)
	return req.ID, nil
}

// ProcessBatch pops up to BatchSize dispatch-ready messages from the head
// of the pending queue and delivers them sequentially, then runs a retry
// scan. If a previous batch is still running the call is a no-op: the
// overrunning tick is skipped, not queued.
func (m *Manager) ProcessBatch(ctx context.Context) {
	m.mu.Lock()
	if m.inFlight {
		m.mu.Unlock()
		slog.Debug("dispatch already in flight, skipping tick")
		return
	}
	m.inFlight = true
	batch := m.takeReadyLocked(m.config.BatchSize)
	m.mu.Unlock()

	defer func() {
		m.mu.Lock()
		m.inFlight = false
		m.mu.Unlock()
	}()

	if len(batch) > 0 {
		recordQueueFetched(len(batch))
	}

	for _, msg := range batch {
		m.persist(ctx, msg)
		m.deliver(ctx, msg)
	}

	m.retryScan(ctx)
}

// takeReadyLocked removes up to limit dispatch-ready messages from the head
// of pending and marks them processing. A message is ready when it has no
// pending backoff or its backoff has elapsed.
func (m *Manager) takeReadyLocked(limit int) []*StoredMessage {
	now := m.now()
	var batch []*StoredMessage
	remaining := m.pending[:0]

	for _, msg := range m.pending {
		if len(batch) < limit && (msg.ScheduledAt == nil || !msg.ScheduledAt.After(now)) {
			msg.ScheduledAt = nil
			msg.State = StateProcessing
			m.processing[msg.ID] = msg
			batch = append(batch, msg)
			continue
		}
		remaining = append(remaining, msg)
	}
	m.pending = remaining

	return batch
}

// retryScan dispatches pending retries whose backoff has elapsed without
// waiting for the next tick.
func (m *Manager) retryScan(ctx context.Context) {
	now := m.now()

	m.mu.Lock()
	var due []*StoredMessage
	remaining := m.pending[:0]
	for _, msg := range m.pending {
		if msg.RetryCount > 0 && msg.ScheduledAt != nil && !msg.ScheduledAt.After(now) {
			msg.ScheduledAt = nil
			msg.State = StateProcessing
			m.processing[msg.ID] = msg
			due = append(due, msg)
			continue
		}
		remaining = append(remaining, msg)
	}
	m.pending = remaining
	m.mu.Unlock()

	for _, msg := range due {
		m.persist(ctx, msg)
		m.deliver(ctx, msg)
	}
}

// deliver runs one send attempt and resolves the outcome. The message is
// removed from processing regardless of outcome.
func (m *Manager) deliver(ctx context.Context, msg *StoredMessage) {
	start := m.now()

	adapter, ok := m.adapters[msg.Platform]
	if !ok || !adapter.IsEnabled() {
		m.resolveFailure(ctx, msg, ErrAdapterUnavailable)
		return
	}

	if err := m.pacer.Wait(ctx); err != nil {
		m.resolveFailure(ctx, msg, err)
		return
	}

	resp, err := adapter.Send(ctx, &msg.MessageRequest)
	duration := m.now().Sub(start)

	if err == nil && resp != nil && (resp.Status == domain.StatusSent || resp.Status == domain.StatusDelivered) {
		m.resolveSuccess(ctx, msg)
		recordSendDuration(string(msg.Platform), duration)
		return
	}

	if err == nil {
		detail := "adapter reported failure"
		if resp != nil && resp.Error != "" {
			detail = resp.Error
		}
		err = fmt.Errorf("%s", detail)
	}
	m.resolveFailure(ctx, msg, &DeliveryError{Platform: string(msg.Platform), Err: err})
}

func (m *Manager) resolveSuccess(ctx context.Context, msg *StoredMessage) {
	now := m.now()

	m.mu.Lock()
	if _, ok := m.processing[msg.ID]; !ok {
		// ClearAllQueues ran while the send was in flight; the outcome has
		// nowhere to land.
		m.mu.Unlock()
		slog.Warn("dropping outcome for message cleared mid-delivery", "message_id", msg.ID)
		return
	}
	delete(m.processing, msg.ID)
	msg.State = StateCompleted
	msg.FinishedAt = &now
	msg.LastError = ""
	m.completed = append(m.completed, msg)

	var evicted []*StoredMessage
	if over := len(m.completed) - m.config.CompletedLimit; over > 0 {
		evicted = m.completed[:over]
		m.completed = m.completed[over:]
	}

	m.counterLocked(msg.Platform).Sent++
	m.totalProcessed++
	m.mu.Unlock()

	m.persist(ctx, msg)
	for _, old := range evicted {
		m.unpersist(ctx, old.ID)
	}
	m.persistCounters(ctx)

	recordMessageSent(string(msg.Platform), "success")
	slog.Debug("message delivered", "message_id", msg.ID, "platform", msg.Platform)
}

func (m *Manager) resolveFailure(ctx context.Context, msg *StoredMessage, cause error) {
	m.mu.Lock()
	if _, ok := m.processing[msg.ID]; !ok {
		m.mu.Unlock()
		slog.Warn("dropping outcome for message cleared mid-delivery", "message_id", msg.ID)
		return
	}
	delete(m.processing, msg.ID)

	msg.RetryCount++
	msg.LastError = cause.Error()

	if msg.RetryCount < msg.MaxRetries {
		at := m.now().Add(m.backoffDelay(msg.RetryCount))
		msg.ScheduledAt = &at
		msg.State = StatePending
		m.pending = append(m.pending, msg)
		m.sortPendingLocked()
		m.mu.Unlock()

		m.persist(ctx, msg)
		recordMessageSent(string(msg.Platform), "retry")

		slog.Warn("send failed, retry scheduled",
			"message_id", msg.ID,
			"platform", msg.Platform,
			"attempt", msg.RetryCount,
			"max_retries", msg.MaxRetries,
			"next_attempt", at,
			"error", cause,
		)
		return
	}

	now := m.now()
	msg.ScheduledAt = nil
	msg.State = StateFailed
	msg.FinishedAt = &now
	m.failed = append(m.failed, msg)
	m.counterLocked(msg.Platform).Failed++
	m.totalProcessed++
	m.mu.Unlock()

	m.persist(ctx, msg)
	m.persistCounters(ctx)

	recordMessageSent(string(msg.Platform), "failed")
	slog.Error("message permanently failed",
		"message_id", msg.ID,
		"platform", msg.Platform,
		"error", &PermanentError{MessageID: msg.ID, Attempts: msg.RetryCount, Err: cause},
	)
}

// Cleanup drops completed and failed entries older than the retention
// period.
func (m *Manager) Cleanup(ctx context.Context) {
	cutoff := m.now().Add(-m.config.Retention)

	m.mu.Lock()
	var expired []*StoredMessage
	m.completed, expired = splitExpired(m.completed, cutoff, expired)
	m.failed, expired = splitExpired(m.failed, cutoff, expired)
	m.mu.Unlock()

	for _, msg := range expired {
		m.unpersist(ctx, msg.ID)
	}

	if len(expired) > 0 {
		slog.Info("queue cleanup removed expired messages", "count", len(expired))
	}
}

func splitExpired(msgs []*StoredMessage, cutoff time.Time, expired []*StoredMessage) ([]*StoredMessage, []*StoredMessage) {
	kept := msgs[:0]
	for _, msg := range msgs {
		if msg.FinishedAt != nil && msg.FinishedAt.Before(cutoff) {
			expired = append(expired, msg)
			continue
		}
		kept = append(kept, msg)
	}
	return kept, expired
}

// CancelMessage removes a message from the pending queue. It reports
// whether a removal occurred: messages already processing, completed or
// failed cannot be cancelled.
func (m *Manager) CancelMessage(ctx context.Context, id string) bool {
	m.mu.Lock()
	found := false
	remaining := m.pending[:0]
	for _, msg := range m.pending {
		if msg.ID == id {
			found = true
			continue
		}
		remaining = append(remaining, msg)
	}
	m.pending = remaining
	m.mu.Unlock()

	if found {
		m.unpersist(ctx, id)
		slog.Info("message cancelled", "message_id", id)
	}
	return found
}

// RetryMessage moves a permanently failed message back to pending with its
// retry budget reset. Manual recovery only, never automatic.
func (m *Manager) RetryMessage(ctx context.Context, id string) bool {
	m.mu.Lock()
	var target *StoredMessage
	remaining := m.failed[:0]
	for _, msg := range m.failed {
		if msg.ID == id {
			target = msg
			continue
		}
		remaining = append(remaining, msg)
	}
	m.failed = remaining

	if target != nil {
		target.State = StatePending
		target.RetryCount = 0
		target.ScheduledAt = nil
		target.FinishedAt = nil
		target.LastError = ""
		m.pending = append(m.pending, target)
		m.sortPendingLocked()
	}
	m.mu.Unlock()

	if target == nil {
		return false
	}

	m.persist(ctx, target)
	slog.Info("failed message requeued", "message_id", id)
	return true
}

// ClearAllQueues resets every queue and counter. A send in flight when the
// clear runs finishes against the adapter, but its outcome is discarded.
// Operational recovery only.
func (m *Manager) ClearAllQueues(ctx context.Context) {
	m.mu.Lock()
	m.pending = nil
	m.processing = make(map[string]*StoredMessage)
	m.completed = nil
	m.failed = nil
	m.counters = make(map[domain.Platform]*PlatformStats)
	m.totalProcessed = 0
	m.mu.Unlock()

	if err := m.repo.DeleteAllMessages(ctx); err != nil {
		slog.Error("failed to purge persisted messages", "error", err)
	}
	m.persistCounters(ctx)

	slog.Warn("all queues cleared")
}

// QueueStats returns a snapshot of queue sizes.
func (m *Manager) QueueStats() QueueStats {
	m.mu.Lock()
	defer m.mu.Unlock()

	return QueueStats{
		Pending:        len(m.pending),
		Processing:     len(m.processing),
		Completed:      len(m.completed),
		Failed:         len(m.failed),
		TotalProcessed: m.totalProcessed,
	}
}

// MessageStats returns a snapshot of per-platform outcome counters.
func (m *Manager) MessageStats() map[domain.Platform]PlatformStats {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make(map[domain.Platform]PlatformStats, len(m.counters))
	for platform, c := range m.counters {
		out[platform] = *c
	}
	return out
}

// Restore loads persisted queue state. Messages caught mid-processing by a
// restart return to pending so the interrupted attempt is re-run.
func (m *Manager) Restore(ctx context.Context) error {
	msgs, err := m.repo.LoadMessages(ctx)
	if err != nil {
		return fmt.Errorf("load messages: %w", err)
	}

	counters, total, err := m.repo.LoadCounters(ctx)
	if err != nil {
		return fmt.Errorf("load counters: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	for i := range msgs {
		msg := msgs[i]
		switch msg.State {
		case StateProcessing:
			msg.State = StatePending
			msg.ScheduledAt = nil
			m.pending = append(m.pending, &msg)
		case StatePending:
			m.pending = append(m.pending, &msg)
		case StateCompleted:
			m.completed = append(m.completed, &msg)
		case StateFailed:
			m.failed = append(m.failed, &msg)
		}
	}
	m.sortPendingLocked()

	for platform, stats := range counters {
		s := stats
		m.counters[platform] = &s
	}
	m.totalProcessed = total

	slog.Info("queue state restored",
		"pending", len(m.pending),
		"completed", len(m.completed),
		"failed", len(m.failed),
	)
	return nil
}

func (m *Manager) sortPendingLocked() {
	sort.SliceStable(m.pending, func(i, j int) bool {
		return m.pending[i].Priority.Rank() < m.pending[j].Priority.Rank()
	})
}

func (m *Manager) counterLocked(platform domain.Platform) *PlatformStats {
	c, ok := m.counters[platform]
	if !ok {
		c = &PlatformStats{}
		m.counters[platform] = c
	}
	return c
}

func (m *Manager) persist(ctx context.Context, msg *StoredMessage) {
	if err := m.repo.SaveMessage(ctx, msg); err != nil {
		slog.Error("failed to persist message", "message_id", msg.ID, "error", err)
	}
}

func (m *Manager) unpersist(ctx context.Context, id string) {
	if err := m.repo.DeleteMessage(ctx, id); err != nil {
		slog.Error("failed to delete persisted message", "message_id", id, "error", err)
	}
}

func (m *Manager) persistCounters(ctx context.Context) {
	if err := m.repo.SaveCounters(ctx, m.MessageStats(), m.QueueStats().TotalProcessed); err != nil {
		slog.Error("failed to persist counters", "error", err)
	}
}
