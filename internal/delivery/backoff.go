package delivery

import "time"

// backoffDelay returns the wait before the given retry attempt:
// BaseBackoff doubled per attempt, plus up to JitterFraction of uniform
// jitter so retries across many recipients do not fire in lockstep. The
// result never exceeds MaxBackoff.
func (m *Manager) backoffDelay(retryCount int) time.Duration {
	delay := float64(m.config.BaseBackoff)
	for i := 1; i < retryCount; i++ {
		delay *= 2
	}
	if delay > float64(m.config.MaxBackoff) {
		delay = float64(m.config.MaxBackoff)
	}

	delay *= 1 + m.config.JitterFraction*m.jitter()
	if delay > float64(m.config.MaxBackoff) {
		delay = float64(m.config.MaxBackoff)
	}

	return time.Duration(delay)
}
