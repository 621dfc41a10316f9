// Package config provides YAML-based configuration loading for Isoko.
package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config is the top-level Isoko configuration, loaded from isoko.yaml.
type Config struct {
	Database    DatabaseConfig    `yaml:"database"`
	Negotiation NegotiationConfig `yaml:"negotiation"`
	Sweeps      SweepsConfig      `yaml:"sweeps"`
	API         APIConfig         `yaml:"api"`
	Notifiers   NotifiersConfig   `yaml:"notifiers"`
	Vendors     []VendorConfig    `yaml:"vendors"`
}

// DatabaseConfig holds connection settings for the relational store.
// Driver "mysql" uses host/port/name/user/password; driver "sqlite" uses path.
type DatabaseConfig struct {
	Driver   string `yaml:"driver"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Path     string `yaml:"path"`
}

// NegotiationConfig holds the session and quote lifecycle defaults.
type NegotiationConfig struct {
	WindowMinutes      int `yaml:"window_minutes"`
	QuoteExpiryMinutes int `yaml:"quote_expiry_minutes"`
	BestLimit          int `yaml:"best_limit"`
}

// SweepsConfig controls the background sweep cadence.
type SweepsConfig struct {
	Schedule            string `yaml:"schedule"`
	ExpiringSoonMinutes int    `yaml:"expiring_soon_minutes"`
}

// APIConfig holds the HTTP surface settings.
type APIConfig struct {
	Port int `yaml:"port"`
}

// NotifiersConfig configures the optional ops-channel notifiers. A notifier
// is enabled when its token fields are set.
type NotifiersConfig struct {
	Slack   SlackConfig   `yaml:"slack"`
	Discord DiscordConfig `yaml:"discord"`
}

// SlackConfig holds Slack bot credentials and the target channel.
type SlackConfig struct {
	BotToken  string `yaml:"bot_token"`
	ChannelID string `yaml:"channel_id"`
}

// DiscordConfig holds the Discord bot token and target channel.
type DiscordConfig struct {
	Token     string `yaml:"token"`
	ChannelID string `yaml:"channel_id"`
}

// VendorConfig seeds a directory vendor at migrate time.
type VendorConfig struct {
	Name       string                 `yaml:"name"`
	Phone      string                 `yaml:"phone"`
	VendorType string                 `yaml:"vendor_type"`
	FlowType   string                 `yaml:"flow_type"`
	Metadata   map[string]interface{} `yaml:"metadata"`
}

// Load reads a YAML config file from path and returns a validated Config.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	return Parse(data)
}

// Parse unmarshals YAML bytes into a validated Config.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns a Config with all defaults applied and no external
// dependencies configured. Used when no config file is present.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

// applyDefaults fills in derived and default values.
func (c *Config) applyDefaults() {
	if c.Database.Driver == "" {
		c.Database.Driver = "sqlite"
	}
	if c.Database.Host == "" {
		c.Database.Host = "127.0.0.1"
	}
	if c.Database.Port == 0 {
		c.Database.Port = 3306
	}
	if c.Database.Name == "" {
		c.Database.Name = "isoko"
	}
	if c.Database.User == "" {
		c.Database.User = "root"
	}
	if c.Database.Path == "" {
		c.Database.Path = "isoko.db"
	}
	if c.Negotiation.WindowMinutes == 0 {
		c.Negotiation.WindowMinutes = 5
	}
	if c.Negotiation.QuoteExpiryMinutes == 0 {
		c.Negotiation.QuoteExpiryMinutes = 10
	}
	if c.Negotiation.BestLimit == 0 {
		c.Negotiation.BestLimit = 3
	}
	if c.Sweeps.Schedule == "" {
		c.Sweeps.Schedule = "@every 1m"
	}
	if c.Sweeps.ExpiringSoonMinutes == 0 {
		c.Sweeps.ExpiringSoonMinutes = 1
	}
	if c.API.Port == 0 {
		c.API.Port = 8080
	}
}

// validate checks that all required fields are present and consistent.
func (c *Config) validate() error {
	var errs []string
	switch c.Database.Driver {
	case "mysql", "sqlite":
	default:
		errs = append(errs, fmt.Sprintf("database.driver must be mysql or sqlite, got %q", c.Database.Driver))
	}
	if c.Negotiation.WindowMinutes < 0 {
		errs = append(errs, "negotiation.window_minutes must not be negative")
	}
	if c.Negotiation.QuoteExpiryMinutes < 0 {
		errs = append(errs, "negotiation.quote_expiry_minutes must not be negative")
	}
	if c.Sweeps.ExpiringSoonMinutes <= 0 {
		errs = append(errs, "sweeps.expiring_soon_minutes must be positive")
	}
	if c.Notifiers.Slack.BotToken != "" && c.Notifiers.Slack.ChannelID == "" {
		errs = append(errs, "notifiers.slack.channel_id is required when a bot token is set")
	}
	if c.Notifiers.Discord.Token != "" && c.Notifiers.Discord.ChannelID == "" {
		errs = append(errs, "notifiers.discord.channel_id is required when a token is set")
	}
	for i, v := range c.Vendors {
		if v.Name == "" || v.Phone == "" || v.FlowType == "" {
			errs = append(errs, fmt.Sprintf("vendors[%d]: name, phone, and flow_type are required", i))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("config: invalid: %s", strings.Join(errs, "; "))
	}
	return nil
}
