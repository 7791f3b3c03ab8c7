package domain

import "time"

// Platform identifies a chat platform a message can be delivered on.
type Platform string

// Platforms.
const (
	PlatformTelegram Platform = "telegram"
	PlatformWhatsApp Platform = "whatsapp"
	PlatformSMS      Platform = "sms"
)

// MessagePriority orders messages in the pending queue.
type MessagePriority string

// Message priorities, urgent first.
const (
	PriorityUrgent MessagePriority = "urgent"
	PriorityHigh   MessagePriority = "high"
	PriorityNormal MessagePriority = "normal"
	PriorityLow    MessagePriority = "low"
)

// Rank returns the sort rank of the priority, lower dispatches first.
// Unknown priorities sort after low.
func (p MessagePriority) Rank() int {
	switch p {
	case PriorityUrgent:
		return 0
	case PriorityHigh:
		return 1
	case PriorityNormal:
		return 2
	case PriorityLow:
		return 3
	}
	return 4
}

// MessageStatus is the delivery outcome reported by a platform adapter.
type MessageStatus string

// Adapter outcome statuses.
const (
	StatusSent      MessageStatus = "sent"
	StatusDelivered MessageStatus = "delivered"
	StatusFailed    MessageStatus = "failed"
)

// MessageRequest is the unit of work in the delivery queue. Content holds
// the fully substituted text; ScheduledAt is set only while a retry is
// waiting for its backoff to elapse.
type MessageRequest struct {
	ID         string            `validate:"required"`
	Platform   Platform          `validate:"required"`
	Recipient  string            `validate:"required"`
	Content    string            `validate:"required"`
	TemplateID string            `validate:"required"`
	Variables  map[string]string `validate:"-"`
	Priority   MessagePriority   `validate:"required,oneof=urgent high normal low"`
	RetryCount int               `validate:"gte=0"`
	MaxRetries int               `validate:"gte=1"`

	CreatedAt   time.Time
	ScheduledAt *time.Time
}

// MessageResponse is the adapter's report for one send attempt.
type MessageResponse struct {
	ID       string
	Platform Platform
	Status   MessageStatus
	Error    string
}
