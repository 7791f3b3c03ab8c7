// Package config loads service configuration from a YAML file with
// environment variable overrides.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/fixwork/missedcall/internal/domain"
)

const envPrefix = "MISSEDCALL_"

// Config is the root configuration.
type Config struct {
	Server    ServerConfig    `koanf:"server"`
	Log       LogConfig       `koanf:"log"`
	Database  DatabaseConfig  `koanf:"database"`
	Redis     RedisConfig     `koanf:"redis"`
	Responder ResponderConfig `koanf:"responder"`
	Queue     QueueConfig     `koanf:"queue"`
	Platforms PlatformsConfig `koanf:"platforms"`
	Templates []Template      `koanf:"templates"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Host              string        `koanf:"host"`
	Port              string        `koanf:"port"`
	MetricsPort       string        `koanf:"metrics_port"`
	ReadTimeout       time.Duration `koanf:"read_timeout"`
	ReadHeaderTimeout time.Duration `koanf:"read_header_timeout"`
	WriteTimeout      time.Duration `koanf:"write_timeout"`
	IdleTimeout       time.Duration `koanf:"idle_timeout"`
}

// LogConfig contains logging settings.
type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// DatabaseConfig contains PostgreSQL settings. An empty URL runs the
// service without durable queue state.
type DatabaseConfig struct {
	URL             string        `koanf:"url"`
	MaxOpenConns    int           `koanf:"max_open_conns"`
	MaxIdleConns    int           `koanf:"max_idle_conns"`
	ConnMaxLifetime time.Duration `koanf:"conn_max_lifetime"`
	ConnectAttempts int           `koanf:"connect_attempts"`
	ConnectTimeout  time.Duration `koanf:"connect_timeout"`
}

// RedisConfig contains the last-response store settings. An empty address
// falls back to the in-memory store.
type RedisConfig struct {
	Addr     string `koanf:"addr"`
	Password string `koanf:"password"`
	DB       int    `koanf:"db"`
}

// ResponderConfig contains pipeline settings.
type ResponderConfig struct {
	BusinessName      string              `koanf:"business_name"`
	CallbackWindow    string              `koanf:"callback_window"`
	EmergencyPhone    string              `koanf:"emergency_phone"`
	DefaultPlatform   string              `koanf:"default_platform"`
	EmergencyKeywords []string            `koanf:"emergency_keywords"`
	RateLimitWindow   time.Duration       `koanf:"rate_limit_window"`
	InitialMode       string              `koanf:"initial_mode"`
	BusinessHours     BusinessHoursConfig `koanf:"business_hours"`
}

// BusinessHoursConfig is the weekly schedule keyed by lowercase weekday
// name. Days without an entry are entirely after-hours.
type BusinessHoursConfig struct {
	Enabled bool                 `koanf:"enabled"`
	Days    map[string]DayConfig `koanf:"days"`
}

// DayConfig is one weekday's open interval in "15:04" form.
type DayConfig struct {
	Open  string `koanf:"open"`
	Close string `koanf:"close"`
}

// QueueConfig contains delivery queue settings.
type QueueConfig struct {
	BatchSize        int           `koanf:"batch_size"`
	MaxRetries       int           `koanf:"max_retries"`
	MessageDelay     time.Duration `koanf:"message_delay"`
	BaseBackoff      time.Duration `koanf:"base_backoff"`
	MaxBackoff       time.Duration `koanf:"max_backoff"`
	JitterFraction   float64       `koanf:"jitter_fraction"`
	CompletedLimit   int           `koanf:"completed_limit"`
	Retention        time.Duration `koanf:"retention"`
	DispatchInterval time.Duration `koanf:"dispatch_interval"`
	CleanupInterval  time.Duration `koanf:"cleanup_interval"`
}

// PlatformsConfig contains per-platform adapter settings.
type PlatformsConfig struct {
	Telegram TelegramConfig `koanf:"telegram"`
	WhatsApp WhatsAppConfig `koanf:"whatsapp"`
	SMS      SMSConfig      `koanf:"sms"`
}

// TelegramConfig configures the telegram adapter.
type TelegramConfig struct {
	Enabled  bool   `koanf:"enabled"`
	BotToken string `koanf:"bot_token"`
}

// WhatsAppConfig configures the whatsapp adapter.
type WhatsAppConfig struct {
	Enabled     bool   `koanf:"enabled"`
	GatewayURL  string `koanf:"gateway_url"`
	AccessToken string `koanf:"access_token"`
}

// SMSConfig configures the sms adapter.
type SMSConfig struct {
	Enabled    bool   `koanf:"enabled"`
	GatewayURL string `koanf:"gateway_url"`
	APIKey     string `koanf:"api_key"`
	From       string `koanf:"from"`
}

// Template is one catalog entry. Templates are operator data, edited in
// the config file without a rebuild.
type Template struct {
	ID        string     `koanf:"id"`
	Category  string     `koanf:"category"`
	Content   string     `koanf:"content"`
	Variables []Variable `koanf:"variables"`
	Triggers  []Trigger  `koanf:"triggers"`
	Platforms []string   `koanf:"platforms"`
	Active    bool       `koanf:"active"`
}

// Variable declares one substitution slot.
type Variable struct {
	Key      string `koanf:"key"`
	Required bool   `koanf:"required"`
	Default  string `koanf:"default"`
}

// Trigger is a declarative selection hint.
type Trigger struct {
	Condition string `koanf:"condition"`
	Value     string `koanf:"value"`
}

// Default returns the built-in defaults.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Host:              "0.0.0.0",
			Port:              "8080",
			MetricsPort:       "9090",
			ReadTimeout:       10 * time.Second,
			ReadHeaderTimeout: 5 * time.Second,
			WriteTimeout:      30 * time.Second,
			IdleTimeout:       60 * time.Second,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
		Database: DatabaseConfig{
			MaxOpenConns:    10,
			MaxIdleConns:    2,
			ConnMaxLifetime: 30 * time.Minute,
			ConnectAttempts: 5,
			ConnectTimeout:  30 * time.Second,
		},
		Responder: ResponderConfig{
			CallbackWindow:    "as soon as possible",
			DefaultPlatform:   string(domain.PlatformWhatsApp),
			EmergencyKeywords: []string{"emergency", "urgent", "flooding", "burst pipe", "no heat", "gas leak"},
			RateLimitWindow:   60 * time.Minute,
			InitialMode:       string(domain.ModeNormal),
			BusinessHours: BusinessHoursConfig{
				Enabled: true,
				Days: map[string]DayConfig{
					"monday":    {Open: "08:00", Close: "17:00"},
					"tuesday":   {Open: "08:00", Close: "17:00"},
					"wednesday": {Open: "08:00", Close: "17:00"},
					"thursday":  {Open: "08:00", Close: "17:00"},
					"friday":    {Open: "08:00", Close: "17:00"},
				},
			},
		},
		Queue: QueueConfig{
			BatchSize:        5,
			MaxRetries:       3,
			MessageDelay:     1 * time.Second,
			BaseBackoff:      60 * time.Second,
			MaxBackoff:       15 * time.Minute,
			JitterFraction:   0.3,
			CompletedLimit:   100,
			Retention:        7 * 24 * time.Hour,
			DispatchInterval: 30 * time.Second,
			CleanupInterval:  1 * time.Hour,
		},
	}
}

// Load reads configuration from the given file (optional, "" skips it)
// and MISSEDCALL_* environment variables, on top of defaults.
// Nested keys use double underscores: MISSEDCALL_DATABASE__URL.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config file %s: %w", path, err)
		}
	}

	err := k.Load(env.Provider(envPrefix, ".", func(s string) string {
		return strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, envPrefix)), "__", ".")
	}), nil)
	if err != nil {
		return nil, fmt.Errorf("load environment: %w", err)
	}

	cfg := Default()
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks cross-field constraints that koanf cannot express.
func (c *Config) Validate() error {
	if !domain.AppMode(c.Responder.InitialMode).Valid() {
		return fmt.Errorf("invalid initial mode %q", c.Responder.InitialMode)
	}
	if c.Queue.JitterFraction < 0 || c.Queue.JitterFraction > 1 {
		return fmt.Errorf("jitter fraction must be in [0, 1], got %v", c.Queue.JitterFraction)
	}
	for i, t := range c.Templates {
		if t.ID == "" {
			return fmt.Errorf("template %d: id is required", i)
		}
		if t.Content == "" {
			return fmt.Errorf("template %s: content is required", t.ID)
		}
	}
	return nil
}

// ToDomain converts one catalog entry to its domain form.
func (t Template) ToDomain() domain.MessageTemplate {
	tmpl := domain.MessageTemplate{
		ID:       t.ID,
		Category: domain.TemplateCategory(t.Category),
		Content:  t.Content,
		IsActive: t.Active,
	}
	for _, v := range t.Variables {
		tmpl.Variables = append(tmpl.Variables, domain.TemplateVariable{
			Key:          v.Key,
			Required:     v.Required,
			DefaultValue: v.Default,
		})
	}
	for _, tr := range t.Triggers {
		tmpl.Triggers = append(tmpl.Triggers, domain.TemplateTrigger{
			Condition: tr.Condition,
			Value:     tr.Value,
		})
	}
	for _, p := range t.Platforms {
		tmpl.Platforms = append(tmpl.Platforms, domain.Platform(p))
	}
	return tmpl
}

var weekdays = map[string]time.Weekday{
	"sunday":    time.Sunday,
	"monday":    time.Monday,
	"tuesday":   time.Tuesday,
	"wednesday": time.Wednesday,
	"thursday":  time.Thursday,
	"friday":    time.Friday,
	"saturday":  time.Saturday,
}

// ToDomain converts the schedule config to its domain form. Unknown
// weekday names are skipped.
func (b BusinessHoursConfig) ToDomain() domain.BusinessHours {
	hours := domain.BusinessHours{
		Enabled: b.Enabled,
		Days:    make(map[time.Weekday]domain.DaySchedule),
	}
	for name, day := range b.Days {
		wd, ok := weekdays[strings.ToLower(name)]
		if !ok {
			continue
		}
		hours.Days[wd] = domain.DaySchedule{Open: day.Open, Close: day.Close}
	}
	return hours
}
