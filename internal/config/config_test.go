package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fixwork/missedcall/internal/domain"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, 5, cfg.Queue.BatchSize)
	assert.Equal(t, 3, cfg.Queue.MaxRetries)
	assert.Equal(t, time.Second, cfg.Queue.MessageDelay)
	assert.Equal(t, time.Minute, cfg.Queue.BaseBackoff)
	assert.Equal(t, 15*time.Minute, cfg.Queue.MaxBackoff)
	assert.Equal(t, 100, cfg.Queue.CompletedLimit)
	assert.Equal(t, 7*24*time.Hour, cfg.Queue.Retention)
	assert.Equal(t, time.Hour, cfg.Responder.RateLimitWindow)
	assert.Equal(t, "normal", cfg.Responder.InitialMode)
	assert.True(t, cfg.Responder.BusinessHours.Enabled)
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
server:
  port: "9999"
queue:
  batch_size: 10
  max_retries: 5
responder:
  business_name: Fixwork Plumbing
  initial_mode: vacation
templates:
  - id: greeting
    category: new_customer
    content: "Hi {callerName}!"
    active: true
    variables:
      - key: callerName
        default: there
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "9999", cfg.Server.Port)
	assert.Equal(t, 10, cfg.Queue.BatchSize)
	assert.Equal(t, 5, cfg.Queue.MaxRetries)
	assert.Equal(t, "Fixwork Plumbing", cfg.Responder.BusinessName)
	assert.Equal(t, "vacation", cfg.Responder.InitialMode)

	// Untouched keys keep their defaults.
	assert.Equal(t, time.Second, cfg.Queue.MessageDelay)

	require.Len(t, cfg.Templates, 1)
	tmpl := cfg.Templates[0].ToDomain()
	assert.Equal(t, "greeting", tmpl.ID)
	assert.Equal(t, domain.CategoryNewCustomer, tmpl.Category)
	assert.True(t, tmpl.IsActive)
	require.Len(t, tmpl.Variables, 1)
	assert.Equal(t, "there", tmpl.Variables[0].DefaultValue)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := writeConfig(t, `
server:
  port: "9999"
`)

	t.Setenv("MISSEDCALL_SERVER__PORT", "7777")
	t.Setenv("MISSEDCALL_DATABASE__URL", "postgres://localhost/test")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "7777", cfg.Server.Port)
	assert.Equal(t, "postgres://localhost/test", cfg.Database.URL)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("/does/not/exist.yaml")
	assert.Error(t, err)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{
			name: "unknown initial mode",
			content: `
responder:
  initial_mode: weekend
`,
		},
		{
			name: "jitter out of range",
			content: `
queue:
  jitter_fraction: 1.5
`,
		},
		{
			name: "template without id",
			content: `
templates:
  - category: new_customer
    content: hello
`,
		},
		{
			name: "template without content",
			content: `
templates:
  - id: empty-one
    category: new_customer
`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.content))
			assert.Error(t, err)
		})
	}
}

func TestBusinessHoursConfig_ToDomain(t *testing.T) {
	b := BusinessHoursConfig{
		Enabled: true,
		Days: map[string]DayConfig{
			"Monday":  {Open: "08:00", Close: "17:00"},
			"friday":  {Open: "08:00", Close: "12:00"},
			"someday": {Open: "00:00", Close: "23:59"}, // unknown, dropped
		},
	}

	hours := b.ToDomain()
	assert.True(t, hours.Enabled)
	assert.Len(t, hours.Days, 2)
	assert.Equal(t, domain.DaySchedule{Open: "08:00", Close: "17:00"}, hours.Days[time.Monday])
	assert.Equal(t, domain.DaySchedule{Open: "08:00", Close: "12:00"}, hours.Days[time.Friday])
}
