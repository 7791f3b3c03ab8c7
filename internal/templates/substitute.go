package templates

import (
	"strings"

	"github.com/fixwork/missedcall/internal/domain"
)

// Resolve builds the final variable map for a template: caller-provided
// values win, declared defaults fill the gaps. Keys with neither stay
// absent so their placeholders survive substitution.
func Resolve(t *domain.MessageTemplate, values map[string]string) map[string]string {
	resolved := make(map[string]string, len(t.Variables))
	for _, v := range t.Variables {
		if v.DefaultValue != "" {
			resolved[v.Key] = v.DefaultValue
		}
	}
	for k, v := range values {
		if v != "" {
			resolved[k] = v
		}
	}
	return resolved
}

// Fill substitutes {key} placeholders in content with resolved values.
// Placeholders with no value and no default are left literally in the text;
// a visible {key} in an outgoing message points at missing data instead of
// silently sending blanks.
func Fill(content string, resolved map[string]string) string {
	out := content
	for k, v := range resolved {
		out = strings.ReplaceAll(out, "{"+k+"}", v)
	}
	return out
}
