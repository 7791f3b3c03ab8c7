package delivery

import (
	"time"

	"github.com/fixwork/missedcall/internal/domain"
)

// QueueState is the tagged lifecycle state of a message. A message is in
// exactly one state at any instant.
type QueueState string

// Queue states.
const (
	StatePending    QueueState = "pending"
	StateProcessing QueueState = "processing"
	StateCompleted  QueueState = "completed"
	StateFailed     QueueState = "failed"
)

// StoredMessage is a message request together with its queue state, the
// shape persisted by the Repository and restored on startup.
type StoredMessage struct {
	domain.MessageRequest

	State      QueueState
	LastError  string
	FinishedAt *time.Time
}

// QueueStats is a read-only snapshot of queue sizes.
type QueueStats struct {
	Pending        int   `json:"pending"`
	Processing     int   `json:"processing"`
	Completed      int   `json:"completed"`
	Failed         int   `json:"failed"`
	TotalProcessed int64 `json:"totalProcessed"`
}

// PlatformStats holds per-platform outcome counters. Failed counts
// permanently failed messages, not individual attempts.
type PlatformStats struct {
	Sent   int64 `json:"sent"`
	Failed int64 `json:"failed"`
}
