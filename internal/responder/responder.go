// Package responder is the entry point of the pipeline: it turns a missed
// call into a queued message, or into a recorded reason why not.
package responder

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/fixwork/missedcall/internal/delivery"
	"github.com/fixwork/missedcall/internal/domain"
	"github.com/fixwork/missedcall/internal/rules"
	"github.com/fixwork/missedcall/internal/templates"
)

// Config contains responder configuration.
type Config struct {
	BusinessName      string
	CallbackWindow    string // e.g. "within the hour", substituted into templates
	EmergencyPhone    string
	DefaultPlatform   domain.Platform
	EmergencyKeywords []string
	BusinessHours     domain.BusinessHours
	InitialMode       domain.AppMode
}

// Result describes what one call event produced. HandleCallEvent never
// returns an error: a dropped notification must not crash the caller, so
// every failure is absorbed into queue state or a recorded reason.
type Result struct {
	Queued     bool                    `json:"queued"`
	MessageID  string                  `json:"messageId,omitempty"`
	TemplateID string                  `json:"templateId,omitempty"`
	Suppressed rules.SuppressionReason `json:"suppressed,omitempty"`
	Reason     string                  `json:"reason,omitempty"`
}

// Non-suppression reasons a call produced no message.
const (
	ReasonInvalidEvent = "invalid_event"
	ReasonNoTemplate   = "no_template"
	ReasonRejected     = "rejected"
)

// Responder wires rule evaluation, template selection and the delivery
// queue together.
type Responder struct {
	config    Config
	evaluator *rules.Evaluator
	selector  *templates.Selector
	queue     *delivery.Manager
	responses rules.LastResponseStore
	now       func() time.Time

	modeMu sync.RWMutex
	mode   domain.AppMode

	keywords []string
	titles   cases.Caser
}

// New creates a responder.
func New(config Config, evaluator *rules.Evaluator, selector *templates.Selector, queue *delivery.Manager, responses rules.LastResponseStore) *Responder {
	mode := config.InitialMode
	if !mode.Valid() {
		mode = domain.ModeNormal
	}

	keywords := make([]string, 0, len(config.EmergencyKeywords))
	for _, kw := range config.EmergencyKeywords {
		keywords = append(keywords, strings.ToLower(kw))
	}

	return &Responder{
		config:    config,
		evaluator: evaluator,
		selector:  selector,
		queue:     queue,
		responses: responses,
		now:       time.Now,
		mode:      mode,
		keywords:  keywords,
		titles:    cases.Title(language.English),
	}
}

// Mode returns the current app mode.
func (r *Responder) Mode() domain.AppMode {
	r.modeMu.RLock()
	defer r.modeMu.RUnlock()
	return r.mode
}

// SetMode switches the app mode. Returns false for an unknown mode.
func (r *Responder) SetMode(mode domain.AppMode) bool {
	if !mode.Valid() {
		return false
	}

	r.modeMu.Lock()
	r.mode = mode
	r.modeMu.Unlock()

	slog.Info("app mode changed", "mode", mode)
	return true
}

// HandleCallEvent runs the full pipeline for one missed call: rule gates,
// template selection, variable substitution, enqueue, and the
// last-response write. Synchronous up through enqueue; delivery happens on
// the worker ticks.
func (r *Responder) HandleCallEvent(ctx context.Context, event *domain.CallEvent) Result {
	if event == nil || event.CallerNumber == "" {
		return Result{Reason: ReasonInvalidEvent}
	}

	rctx := r.buildContext(event)

	if ok, reason := r.evaluator.ShouldRespond(ctx, event, rctx); !ok {
		slog.Info("response suppressed",
			"call_id", event.ID,
			"caller", event.CallerNumber,
			"reason", reason,
		)
		return Result{Suppressed: reason}
	}

	platform := r.resolvePlatform(event)

	tmpl := r.selector.Select(rctx, platform)
	if tmpl == nil {
		slog.Warn("no template available, not sending",
			"call_id", event.ID,
			"platform", platform,
		)
		return Result{Reason: ReasonNoTemplate}
	}

	resolved := templates.Resolve(tmpl, r.variables(event))
	req := domain.MessageRequest{
		Platform:   platform,
		Recipient:  event.CallerNumber,
		Content:    templates.Fill(tmpl.Content, resolved),
		TemplateID: tmpl.ID,
		Variables:  resolved,
		Priority:   r.priority(event, rctx),
	}

	messageID, err := r.queue.Enqueue(ctx, req)
	if err != nil {
		slog.Error("enqueue rejected", "call_id", event.ID, "error", err)
		return Result{Reason: ReasonRejected}
	}

	// Recorded only after a successful enqueue, so a rejected request does
	// not consume the caller's rate-limit window.
	if err := r.responses.RecordResponse(ctx, event.CallerNumber, r.now()); err != nil {
		slog.Error("failed to record last response time",
			"recipient", event.CallerNumber,
			"error", err,
		)
	}

	slog.Info("response queued",
		"call_id", event.ID,
		"message_id", messageID,
		"template_id", tmpl.ID,
		"platform", platform,
	)
	return Result{Queued: true, MessageID: messageID, TemplateID: tmpl.ID}
}

func (r *Responder) buildContext(event *domain.CallEvent) domain.ResponseContext {
	return domain.ResponseContext{
		Contact:              event.Contact,
		BusinessHours:        r.config.BusinessHours,
		CurrentTime:          r.now(),
		HasEmergencyKeywords: r.hasEmergencyKeywords(event.Note),
		AppMode:              r.Mode(),
	}
}

func (r *Responder) hasEmergencyKeywords(note string) bool {
	if note == "" {
		return false
	}
	lower := strings.ToLower(note)
	for _, kw := range r.keywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

func (r *Responder) resolvePlatform(event *domain.CallEvent) domain.Platform {
	if event.Contact != nil && event.Contact.PreferredPlatform != "" {
		return event.Contact.PreferredPlatform
	}
	return r.config.DefaultPlatform
}

func (r *Responder) priority(event *domain.CallEvent, rctx domain.ResponseContext) domain.MessagePriority {
	if rctx.HasEmergencyKeywords {
		return domain.PriorityUrgent
	}
	if event.Contact == nil {
		return domain.PriorityNormal
	}
	switch {
	case event.Contact.Category == domain.ContactEmergency:
		return domain.PriorityUrgent
	case event.Contact.Priority == domain.ContactPriorityVIP,
		event.Contact.Priority == domain.ContactPriorityHigh:
		return domain.PriorityHigh
	case event.Contact.Priority == domain.ContactPriorityLow:
		return domain.PriorityLow
	}
	return domain.PriorityNormal
}

// variables builds the substitution values for one call. Caller id names
// often arrive all-caps from the phone network, so the name is re-cased.
func (r *Responder) variables(event *domain.CallEvent) map[string]string {
	callerName := event.CallerName
	if event.Contact != nil && event.Contact.Name != "" {
		callerName = event.Contact.Name
	}
	if callerName != "" {
		callerName = r.titles.String(strings.ToLower(callerName))
	}

	return map[string]string{
		"callerName":     callerName,
		"businessName":   r.config.BusinessName,
		"callbackWindow": r.config.CallbackWindow,
		"emergencyPhone": r.config.EmergencyPhone,
	}
}
