package delivery

import (
	"errors"
	"fmt"
)

// ErrAdapterUnavailable is reported when the platform adapter is missing or
// disabled at dispatch time. Treated as transient: the message goes through
// the normal retry path.
var ErrAdapterUnavailable = errors.New("platform adapter unavailable")

// ValidationError marks a malformed request rejected at enqueue.
// Never enqueued, never retried.
type ValidationError struct {
	Err error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid message request: %v", e.Err)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// DeliveryError wraps a failure reported by a platform adapter. Retryable.
type DeliveryError struct {
	Platform string
	Err      error
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("delivery via %s failed: %v", e.Platform, e.Err)
}

func (e *DeliveryError) Unwrap() error {
	return e.Err
}

// PermanentError marks a message whose retries are exhausted. This is the
// only error class surfaced as an operator-visible alert.
type PermanentError struct {
	MessageID string
	Attempts  int
	Err       error
}

func (e *PermanentError) Error() string {
	return fmt.Sprintf("message %s permanently failed after %d attempts: %v", e.MessageID, e.Attempts, e.Err)
}

func (e *PermanentError) Unwrap() error {
	return e.Err
}
