// Package config loads and validates the YAML configuration. Values of
// the form ${VAR} are expanded from the environment at load time, so
// credentials stay out of the file itself.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"go.yaml.in/yaml/v3"
)

// Duration is a time.Duration that unmarshals from YAML strings like
// "30s" or "15m".
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

// Std returns the value as a time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// Rate is one token bucket's settings. Zero PerSecond disables limiting.
type Rate struct {
	PerSecond float64  `yaml:"per_second"`
	Burst     int      `yaml:"burst"`
	MaxWait   Duration `yaml:"max_wait"`
}

// Portal configures the upstream client.
type Portal struct {
	BaseURL    string   `yaml:"base_url"`
	Username   string   `yaml:"username"`
	Password   string   `yaml:"password"`
	Timeout    Duration `yaml:"timeout"`
	MaxRetries uint64   `yaml:"max_retries"`
	Rate       Rate     `yaml:"rate"`
}

// Store configures the persistent event store.
type Store struct {
	Path string `yaml:"path"`
}

// Dispatch configures retry behaviour and the update policy.
type Dispatch struct {
	MaxAttempts    int      `yaml:"max_attempts"`
	BaseDelay      Duration `yaml:"base_delay"`
	MaxDelay       Duration `yaml:"max_delay"`
	SendTimeout    Duration `yaml:"send_timeout"`
	NotifyOnUpdate string   `yaml:"notify_on_update"` // all | none
}

// Email configures the SMTP channel.
type Email struct {
	Enabled  bool     `yaml:"enabled"`
	Host     string   `yaml:"host"`
	Port     int      `yaml:"port"`
	Username string   `yaml:"username"`
	Password string   `yaml:"password"`
	From     string   `yaml:"from"`
	To       []string `yaml:"to"`
	Timeout  Duration `yaml:"timeout"`
	Rate     Rate     `yaml:"rate"`
}

// PDF configures the document export channel.
type PDF struct {
	Enabled bool   `yaml:"enabled"`
	OutDir  string `yaml:"out_dir"`
	Rate    Rate   `yaml:"rate"`
}

// Webhook configures the messaging webhook channel.
type Webhook struct {
	Enabled bool     `yaml:"enabled"`
	URL     string   `yaml:"url"`
	Token   string   `yaml:"token"`
	Timeout Duration `yaml:"timeout"`
	Rate    Rate     `yaml:"rate"`
}

// Channels groups the notification adapters.
type Channels struct {
	Email   Email   `yaml:"email"`
	PDF     PDF     `yaml:"pdf"`
	Webhook Webhook `yaml:"webhook"`
}

// Log configures structured logging.
type Log struct {
	Level string `yaml:"level"` // trace|debug|info|warn|error
	File  string `yaml:"file"`  // optional log file alongside console
}

// Config is the full configuration tree.
type Config struct {
	Timezone    string   `yaml:"timezone"`
	Schedule    string   `yaml:"schedule"`
	Categories  []string `yaml:"categories"`
	MetricsAddr string   `yaml:"metrics_addr"`
	Log         Log      `yaml:"log"`
	Portal      Portal   `yaml:"portal"`
	Store       Store    `yaml:"store"`
	Dispatch    Dispatch `yaml:"dispatch"`
	Channels    Channels `yaml:"channels"`
}

// Load reads, expands, decodes, defaults and validates the file at path.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	cfg := &Config{}
	expanded := os.ExpandEnv(string(b))
	dec := yaml.NewDecoder(strings.NewReader(expanded))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Timezone == "" {
		c.Timezone = "UTC"
	}
	if c.Schedule == "" {
		c.Schedule = "15m"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Store.Path == "" {
		c.Store.Path = "data/portalwatch.db"
	}
	if c.Portal.Timeout == 0 {
		c.Portal.Timeout = Duration(30 * time.Second)
	}
	if c.Portal.MaxRetries == 0 {
		c.Portal.MaxRetries = 3
	}
	if c.Dispatch.MaxAttempts == 0 {
		c.Dispatch.MaxAttempts = 3
	}
	if c.Dispatch.BaseDelay == 0 {
		c.Dispatch.BaseDelay = Duration(2 * time.Second)
	}
	if c.Dispatch.MaxDelay == 0 {
		c.Dispatch.MaxDelay = Duration(time.Minute)
	}
	if c.Dispatch.SendTimeout == 0 {
		c.Dispatch.SendTimeout = Duration(30 * time.Second)
	}
	if c.Dispatch.NotifyOnUpdate == "" {
		c.Dispatch.NotifyOnUpdate = "all"
	}
}

// Validate rejects configurations that cannot possibly run.
func (c *Config) Validate() error {
	if c.Portal.BaseURL == "" {
		return fmt.Errorf("portal.base_url is required")
	}
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		return fmt.Errorf("invalid timezone %q: %w", c.Timezone, err)
	}
	switch c.Dispatch.NotifyOnUpdate {
	case "all", "none":
	default:
		return fmt.Errorf("dispatch.notify_on_update must be all or none, got %q", c.Dispatch.NotifyOnUpdate)
	}
	if !c.Channels.Email.Enabled && !c.Channels.PDF.Enabled && !c.Channels.Webhook.Enabled {
		return fmt.Errorf("at least one channel must be enabled")
	}
	if c.Channels.Email.Enabled && c.Channels.Email.Host == "" {
		return fmt.Errorf("channels.email.host is required when email is enabled")
	}
	if c.Channels.PDF.Enabled && c.Channels.PDF.OutDir == "" {
		return fmt.Errorf("channels.pdf.out_dir is required when pdf export is enabled")
	}
	if c.Channels.Webhook.Enabled && c.Channels.Webhook.URL == "" {
		return fmt.Errorf("channels.webhook.url is required when the webhook is enabled")
	}
	return nil
}

// EnabledChannels lists the names of the channels that are switched on,
// in a stable order.
func (c *Config) EnabledChannels() []string {
	var names []string
	if c.Channels.Email.Enabled {
		names = append(names, "email")
	}
	if c.Channels.PDF.Enabled {
		names = append(names, "pdf")
	}
	if c.Channels.Webhook.Enabled {
		names = append(names, "webhook")
	}
	return names
}
