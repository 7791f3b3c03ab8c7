package domain

import "time"

// AppMode is the operating mode the tradesperson has put the app into.
type AppMode string

// App modes.
const (
	ModeNormal        AppMode = "normal"
	ModeJobSite       AppMode = "job_site"
	ModeVacation      AppMode = "vacation"
	ModeEmergencyOnly AppMode = "emergency_only"
)

// Valid reports whether the mode is one of the known modes.
func (m AppMode) Valid() bool {
	switch m {
	case ModeNormal, ModeJobSite, ModeVacation, ModeEmergencyOnly:
		return true
	}
	return false
}

// CallEvent is a missed-call notification delivered by the call-event source.
// Contact is nil for unknown callers.
type CallEvent struct {
	ID           string
	CallerNumber string
	CallerName   string
	ReceivedAt   time.Time
	Note         string
	Contact      *Contact
}

// ResponseContext is the ephemeral context a single call event is evaluated
// against. It is built by the responder and discarded after selection.
type ResponseContext struct {
	Contact              *Contact
	BusinessHours        BusinessHours
	CurrentTime          time.Time
	HasEmergencyKeywords bool
	AppMode              AppMode
}
