package domain

// TemplateCategory identifies the situation a template is written for.
type TemplateCategory string

// Template categories.
const (
	CategoryBusinessHours    TemplateCategory = "business_hours"
	CategoryAfterHours       TemplateCategory = "after_hours"
	CategoryEmergency        TemplateCategory = "emergency"
	CategoryNewCustomer      TemplateCategory = "new_customer"
	CategoryExistingCustomer TemplateCategory = "existing_customer"
	CategoryJobSite          TemplateCategory = "job_site"
	CategoryVacation         TemplateCategory = "vacation"
	CategoryFollowUp         TemplateCategory = "follow_up"
)

// TemplateVariable declares one substitution slot in a template body.
type TemplateVariable struct {
	Key          string
	Required     bool
	DefaultValue string
}

// TemplateTrigger is a declarative selection hint recorded with a template.
// Selection precedence is hard-ordered by category; triggers are kept for
// operator tooling and are not consulted by the selector.
type TemplateTrigger struct {
	Condition string
	Value     string
}

// MessageTemplate is an operator-authored reply body with {key} slots.
// Templates are read-only to the pipeline.
type MessageTemplate struct {
	ID        string
	Category  TemplateCategory
	Content   string
	Variables []TemplateVariable
	Triggers  []TemplateTrigger
	Platforms []Platform
	IsActive  bool
}

// SupportsPlatform reports whether the template may be sent on p.
// An empty platform list means the template is usable everywhere.
func (t *MessageTemplate) SupportsPlatform(p Platform) bool {
	if len(t.Platforms) == 0 {
		return true
	}
	for _, allowed := range t.Platforms {
		if allowed == p {
			return true
		}
	}
	return false
}
