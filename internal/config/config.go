// Package config loads the serve command's YAML configuration.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration wraps time.Duration so YAML can carry values like "30s".
type Duration struct {
	time.Duration
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", raw, err)
	}
	d.Duration = parsed
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (any, error) {
	return d.Duration.String(), nil
}

// Config is the full serve configuration.
type Config struct {
	// Listen is the address the journey API binds to.
	Listen string `yaml:"listen"`

	Gateway GatewayConfig `yaml:"gateway"`
	OTP     OTPConfig     `yaml:"otp"`
	Session SessionConfig `yaml:"session"`
	Redis   RedisConfig   `yaml:"redis"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level"`
}

// GatewayConfig points at the AA gateway.
type GatewayConfig struct {
	BaseURL string   `yaml:"base_url"`
	Timeout Duration `yaml:"timeout"`
}

// OTPConfig tunes the resend policy.
type OTPConfig struct {
	ResendCooldown Duration `yaml:"resend_cooldown"`
	// MaxAttempts is advisory; the gateway enforces its own lockout.
	MaxAttempts int `yaml:"max_attempts"`
}

// SessionConfig tunes session storage.
type SessionConfig struct {
	// TTL bounds how long an abandoned journey survives in Redis.
	TTL Duration `yaml:"ttl"`
}

// RedisConfig enables the Redis session store when Addr is set.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`

	// EncryptionKey is a hex-encoded 32-byte key. When set, session
	// payloads are encrypted at rest.
	EncryptionKey string `yaml:"encryption_key"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		Listen: ":8080",
		Gateway: GatewayConfig{
			Timeout: Duration{15 * time.Second},
		},
		OTP: OTPConfig{
			ResendCooldown: Duration{30 * time.Second},
			MaxAttempts:    3,
		},
		Session: SessionConfig{
			TTL: Duration{15 * time.Minute},
		},
		LogLevel: "info",
	}
}

// Load reads a YAML file over the defaults. Missing keys keep their
// default values.
func Load(path string) (Config, error) {
	cfg := Default()

	raw, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("failed to read config: %w", err)
	}
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	if c.Listen == "" {
		return fmt.Errorf("listen address is required")
	}
	if c.OTP.ResendCooldown.Duration <= 0 {
		return fmt.Errorf("otp resend_cooldown must be positive")
	}
	if c.Session.TTL.Duration <= 0 {
		return fmt.Errorf("session ttl must be positive")
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unknown log_level %q", c.LogLevel)
	}
	return nil
}
