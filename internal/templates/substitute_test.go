package templates

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/fixwork/missedcall/internal/domain"
)

func TestResolve(t *testing.T) {
	tmpl := &domain.MessageTemplate{
		ID: "greeting",
		Variables: []domain.TemplateVariable{
			{Key: "callerName", DefaultValue: "there"},
			{Key: "businessName", Required: true},
		},
	}

	tests := []struct {
		name     string
		values   map[string]string
		expected map[string]string
	}{
		{
			name:     "value overrides default",
			values:   map[string]string{"callerName": "Dana", "businessName": "Fixwork"},
			expected: map[string]string{"callerName": "Dana", "businessName": "Fixwork"},
		},
		{
			name:     "default fills missing value",
			values:   map[string]string{"businessName": "Fixwork"},
			expected: map[string]string{"callerName": "there", "businessName": "Fixwork"},
		},
		{
			name:     "empty value falls back to default",
			values:   map[string]string{"callerName": "", "businessName": "Fixwork"},
			expected: map[string]string{"callerName": "there", "businessName": "Fixwork"},
		},
		{
			name:     "missing value with no default stays absent",
			values:   map[string]string{"callerName": "Dana"},
			expected: map[string]string{"callerName": "Dana"},
		},
		{
			name:     "extra values pass through",
			values:   map[string]string{"businessName": "Fixwork", "custom": "x"},
			expected: map[string]string{"callerName": "there", "businessName": "Fixwork", "custom": "x"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Resolve(tmpl, tt.values))
		})
	}
}

func TestFill(t *testing.T) {
	tests := []struct {
		name     string
		content  string
		resolved map[string]string
		expected string
	}{
		{
			name:     "all placeholders substituted",
			content:  "Hi {callerName}, thanks for calling {businessName}!",
			resolved: map[string]string{"callerName": "Dana", "businessName": "Fixwork"},
			expected: "Hi Dana, thanks for calling Fixwork!",
		},
		{
			name:     "unresolved placeholder survives literally",
			content:  "Hi {callerName}, call us at {phone}",
			resolved: map[string]string{"callerName": "Dana"},
			expected: "Hi Dana, call us at {phone}",
		},
		{
			name:     "repeated placeholder",
			content:  "{name} {name}",
			resolved: map[string]string{"name": "x"},
			expected: "x x",
		},
		{
			name:     "no placeholders",
			content:  "We will call you back.",
			resolved: map[string]string{"callerName": "Dana"},
			expected: "We will call you back.",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Fill(tt.content, tt.resolved))
		})
	}
}
