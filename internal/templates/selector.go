package templates

import (
	"log/slog"

	"github.com/fixwork/missedcall/internal/domain"
)

// Selector picks exactly one template for a response context.
//
// Selection is a hard-ordered tier walk, not a weighted match: the first
// tier whose condition holds and whose template set is non-empty wins.
// A tier with a true condition but no active template falls through to the
// next tier, so the result is a single deterministic winner or nil.
type Selector struct {
	store *Store
}

// NewSelector creates a selector over the given store.
func NewSelector(store *Store) *Selector {
	return &Selector{store: store}
}

type tier struct {
	category domain.TemplateCategory
	matches  func(domain.ResponseContext) bool
}

var tiers = []tier{
	{domain.CategoryEmergency, func(c domain.ResponseContext) bool {
		return c.HasEmergencyKeywords
	}},
	{domain.CategoryVacation, func(c domain.ResponseContext) bool {
		return c.AppMode == domain.ModeVacation
	}},
	{domain.CategoryJobSite, func(c domain.ResponseContext) bool {
		return c.AppMode == domain.ModeJobSite
	}},
	{domain.CategoryAfterHours, func(c domain.ResponseContext) bool {
		return !c.BusinessHours.Within(c.CurrentTime)
	}},
	{domain.CategoryExistingCustomer, func(c domain.ResponseContext) bool {
		return c.Contact != nil && c.Contact.Category == domain.ContactExistingCustomer
	}},
	// Default tier for any remaining case.
	{domain.CategoryNewCustomer, func(domain.ResponseContext) bool {
		return true
	}},
	// Final fallback when no other category has an active template.
	{domain.CategoryBusinessHours, func(domain.ResponseContext) bool {
		return true
	}},
}

// Select returns the template to use for the context on the given platform,
// or nil when no active template exists at all. A nil result means the
// caller must not send anything.
func (s *Selector) Select(ctx domain.ResponseContext, platform domain.Platform) *domain.MessageTemplate {
	for _, tier := range tiers {
		if !tier.matches(ctx) {
			continue
		}
		if t := s.store.FirstActive(tier.category, platform); t != nil {
			return t
		}
	}

	slog.Debug("no active template for context", "platform", platform, "mode", ctx.AppMode)
	return nil
}
