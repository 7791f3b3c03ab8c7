package templates

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fixwork/missedcall/internal/domain"
)

func activeTemplate(id string, category domain.TemplateCategory) domain.MessageTemplate {
	return domain.MessageTemplate{
		ID:       id,
		Category: category,
		Content:  "content of " + id,
		IsActive: true,
	}
}

func weekdayHours() domain.BusinessHours {
	return domain.BusinessHours{
		Enabled: true,
		Days: map[time.Weekday]domain.DaySchedule{
			time.Monday:    {Open: "08:00", Close: "17:00"},
			time.Tuesday:   {Open: "08:00", Close: "17:00"},
			time.Wednesday: {Open: "08:00", Close: "17:00"},
			time.Thursday:  {Open: "08:00", Close: "17:00"},
			time.Friday:    {Open: "08:00", Close: "17:00"},
		},
	}
}

// A Monday inside business hours.
var monday10am = time.Date(2025, 6, 2, 10, 0, 0, 0, time.UTC)

func fullCatalog() *Store {
	return NewStore(
		activeTemplate("emergency-1", domain.CategoryEmergency),
		activeTemplate("vacation-1", domain.CategoryVacation),
		activeTemplate("jobsite-1", domain.CategoryJobSite),
		activeTemplate("afterhours-1", domain.CategoryAfterHours),
		activeTemplate("existing-1", domain.CategoryExistingCustomer),
		activeTemplate("new-1", domain.CategoryNewCustomer),
		activeTemplate("hours-1", domain.CategoryBusinessHours),
	)
}

func TestSelector_TierOrder(t *testing.T) {
	selector := NewSelector(fullCatalog())

	existing := &domain.Contact{Category: domain.ContactExistingCustomer}

	tests := []struct {
		name     string
		ctx      domain.ResponseContext
		expected string
	}{
		{
			name: "emergency wins over everything",
			ctx: domain.ResponseContext{
				Contact:              existing,
				BusinessHours:        weekdayHours(),
				CurrentTime:          monday10am.Add(14 * time.Hour), // after hours too
				HasEmergencyKeywords: true,
				AppMode:              domain.ModeVacation,
			},
			expected: "emergency-1",
		},
		{
			name: "vacation wins over job site state",
			ctx: domain.ResponseContext{
				BusinessHours: weekdayHours(),
				CurrentTime:   monday10am,
				AppMode:       domain.ModeVacation,
			},
			expected: "vacation-1",
		},
		{
			name: "job site mode",
			ctx: domain.ResponseContext{
				BusinessHours: weekdayHours(),
				CurrentTime:   monday10am,
				AppMode:       domain.ModeJobSite,
			},
			expected: "jobsite-1",
		},
		{
			name: "after hours beats existing customer",
			ctx: domain.ResponseContext{
				Contact:       existing,
				BusinessHours: weekdayHours(),
				CurrentTime:   monday10am.Add(14 * time.Hour),
				AppMode:       domain.ModeNormal,
			},
			expected: "afterhours-1",
		},
		{
			name: "weekend counts as after hours",
			ctx: domain.ResponseContext{
				BusinessHours: weekdayHours(),
				CurrentTime:   time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC), // Sunday
				AppMode:       domain.ModeNormal,
			},
			expected: "afterhours-1",
		},
		{
			name: "existing customer during business hours",
			ctx: domain.ResponseContext{
				Contact:       existing,
				BusinessHours: weekdayHours(),
				CurrentTime:   monday10am,
				AppMode:       domain.ModeNormal,
			},
			expected: "existing-1",
		},
		{
			name: "unknown caller during business hours",
			ctx: domain.ResponseContext{
				BusinessHours: weekdayHours(),
				CurrentTime:   monday10am,
				AppMode:       domain.ModeNormal,
			},
			expected: "new-1",
		},
		{
			name: "schedule disabled means never after hours",
			ctx: domain.ResponseContext{
				BusinessHours: domain.BusinessHours{Enabled: false},
				CurrentTime:   monday10am.Add(14 * time.Hour),
				AppMode:       domain.ModeNormal,
			},
			expected: "new-1",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tmpl := selector.Select(tt.ctx, domain.PlatformWhatsApp)
			require.NotNil(t, tmpl)
			assert.Equal(t, tt.expected, tmpl.ID)
		})
	}
}

func TestSelector_EmptyTierFallsThrough(t *testing.T) {
	// No after-hours template: an after-hours call falls through to the
	// next matching tier instead of going silent.
	store := NewStore(
		activeTemplate("existing-1", domain.CategoryExistingCustomer),
		activeTemplate("new-1", domain.CategoryNewCustomer),
	)
	selector := NewSelector(store)

	ctx := domain.ResponseContext{
		Contact:       &domain.Contact{Category: domain.ContactExistingCustomer},
		BusinessHours: weekdayHours(),
		CurrentTime:   monday10am.Add(14 * time.Hour),
		AppMode:       domain.ModeNormal,
	}

	tmpl := selector.Select(ctx, domain.PlatformWhatsApp)
	require.NotNil(t, tmpl)
	assert.Equal(t, "existing-1", tmpl.ID)
}

func TestSelector_InactiveTemplateSkipped(t *testing.T) {
	inactive := activeTemplate("emergency-1", domain.CategoryEmergency)
	inactive.IsActive = false

	store := NewStore(
		inactive,
		activeTemplate("new-1", domain.CategoryNewCustomer),
	)
	selector := NewSelector(store)

	ctx := domain.ResponseContext{
		BusinessHours:        domain.BusinessHours{Enabled: false},
		CurrentTime:          monday10am,
		HasEmergencyKeywords: true,
		AppMode:              domain.ModeNormal,
	}

	tmpl := selector.Select(ctx, domain.PlatformWhatsApp)
	require.NotNil(t, tmpl)
	assert.Equal(t, "new-1", tmpl.ID)
}

func TestSelector_PlatformRestriction(t *testing.T) {
	restricted := activeTemplate("new-telegram", domain.CategoryNewCustomer)
	restricted.Platforms = []domain.Platform{domain.PlatformTelegram}

	store := NewStore(
		restricted,
		activeTemplate("hours-1", domain.CategoryBusinessHours),
	)
	selector := NewSelector(store)

	ctx := domain.ResponseContext{
		BusinessHours: domain.BusinessHours{Enabled: false},
		CurrentTime:   monday10am,
		AppMode:       domain.ModeNormal,
	}

	onTelegram := selector.Select(ctx, domain.PlatformTelegram)
	require.NotNil(t, onTelegram)
	assert.Equal(t, "new-telegram", onTelegram.ID)

	onWhatsApp := selector.Select(ctx, domain.PlatformWhatsApp)
	require.NotNil(t, onWhatsApp)
	assert.Equal(t, "hours-1", onWhatsApp.ID, "platform-restricted template must be skipped")
}

func TestSelector_NoTemplateAtAll(t *testing.T) {
	selector := NewSelector(NewStore())

	ctx := domain.ResponseContext{
		BusinessHours: weekdayHours(),
		CurrentTime:   monday10am,
		AppMode:       domain.ModeNormal,
	}

	assert.Nil(t, selector.Select(ctx, domain.PlatformWhatsApp))
}

func TestSelector_Deterministic(t *testing.T) {
	// Two templates in the same category: insertion order decides, every
	// time.
	store := NewStore(
		activeTemplate("new-a", domain.CategoryNewCustomer),
		activeTemplate("new-b", domain.CategoryNewCustomer),
	)
	selector := NewSelector(store)

	ctx := domain.ResponseContext{
		BusinessHours: domain.BusinessHours{Enabled: false},
		CurrentTime:   monday10am,
		AppMode:       domain.ModeNormal,
	}

	for i := 0; i < 10; i++ {
		tmpl := selector.Select(ctx, domain.PlatformWhatsApp)
		require.NotNil(t, tmpl)
		assert.Equal(t, "new-a", tmpl.ID)
	}
}
