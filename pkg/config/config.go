// Package config defines the bayeuxd server configuration and its layering:
// defaults, then an optional YAML/JSON file, then BAYEUXD_* environment
// variables, then command-line flags.
package config

import (
	"errors"
	"fmt"

	"github.com/joeshaw/envdecode"
)

// Validation errors.
var (
	// ErrBothReconnectAxes: --reconnection-interval and
	// --reconnection-interval-seconds configure the same concept on two
	// axes; configuring both is rejected rather than silently picking one.
	ErrBothReconnectAxes = errors.New("reconnection-interval and reconnection-interval-seconds are mutually exclusive")
	// ErrBothExpireAxes: same rule for the clientId expiry thresholds.
	ErrBothExpireAxes = errors.New("expire-client-ids-after and expire-client-ids-after-seconds are mutually exclusive")
)

// Config is the full server configuration. Interval and timeout values are
// milliseconds unless the field name says seconds.
type Config struct {
	// Host is the listen address.
	Host string `yaml:"host" json:"host" env:"BAYEUXD_HOST"`
	// Port is the listen port.
	Port int `yaml:"port" json:"port" env:"BAYEUXD_PORT"`

	// ConnectInterval is the advisory wait, in milliseconds, a client must
	// observe before its next connect. Communicated via advice.interval,
	// never enforced server-side.
	ConnectInterval int `yaml:"connectInterval" json:"connectInterval" env:"BAYEUXD_CONNECT_INTERVAL"`
	// ConnectTimeout is how long, in milliseconds, a connect is held open
	// before it is released empty.
	ConnectTimeout int `yaml:"connectTimeout" json:"connectTimeout" env:"BAYEUXD_CONNECT_TIMEOUT"`

	// ReconnectionInterval forces an immediate retry-advice response once a
	// session accumulates this many connects. Zero disables it.
	ReconnectionInterval int `yaml:"reconnectionInterval" json:"reconnectionInterval" env:"BAYEUXD_RECONNECTION_INTERVAL"`
	// ReconnectionIntervalSeconds is the time form of the same axis.
	ReconnectionIntervalSeconds int `yaml:"reconnectionIntervalSeconds" json:"reconnectionIntervalSeconds" env:"BAYEUXD_RECONNECTION_INTERVAL_SECONDS"`

	// ExpireClientIDsAfter expires a clientId once its connection count
	// exceeds this threshold. Zero disables the count axis.
	ExpireClientIDsAfter int `yaml:"expireClientIdsAfter" json:"expireClientIdsAfter" env:"BAYEUXD_EXPIRE_CLIENT_IDS_AFTER"`
	// ExpireClientIDsAfterSeconds expires a clientId this many seconds
	// after handshake. Zero disables the time axis.
	ExpireClientIDsAfterSeconds int `yaml:"expireClientIdsAfterSeconds" json:"expireClientIdsAfterSeconds" env:"BAYEUXD_EXPIRE_CLIENT_IDS_AFTER_SECONDS"`

	// NoValidation disables request validation.
	NoValidation bool `yaml:"noValidation" json:"noValidation" env:"BAYEUXD_NO_VALIDATION"`

	// ChaosProbability is the per-request probability of a chaos fault on
	// non-handshake traffic. Zero disables chaos.
	ChaosProbability float64 `yaml:"chaosProbability" json:"chaosProbability" env:"BAYEUXD_CHAOS_PROBABILITY"`

	// MaxLogEntries bounds the request history kept for the control API.
	MaxLogEntries int `yaml:"maxLogEntries" json:"maxLogEntries" env:"BAYEUXD_MAX_LOG_ENTRIES"`

	// LogLevel is the minimum operational log level.
	LogLevel string `yaml:"logLevel" json:"logLevel" env:"BAYEUXD_LOG_LEVEL"`
	// LogFormat is text or json.
	LogFormat string `yaml:"logFormat" json:"logFormat" env:"BAYEUXD_LOG_FORMAT"`
}

// Default returns the configuration the server starts with when nothing else
// is specified. The interval and timeout defaults match the values CometD
// clients are commonly tested against.
func Default() *Config {
	return &Config{
		Host:            "localhost",
		Port:            8080,
		ConnectInterval: 0,
		ConnectTimeout:  45000,
		MaxLogEntries:   1000,
		LogLevel:        "info",
		LogFormat:       "text",
	}
}

// ApplyEnv overlays BAYEUXD_* environment variables onto c. Unset variables
// leave the current values untouched.
func (c *Config) ApplyEnv() error {
	err := envdecode.Decode(c)
	if err != nil && !errors.Is(err, envdecode.ErrNoTargetFieldsAreSet) {
		return fmt.Errorf("environment configuration: %w", err)
	}
	return nil
}

// Validate rejects contradictory or out-of-range settings.
func (c *Config) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("port out of range: %d", c.Port)
	}
	if c.ConnectTimeout <= 0 {
		return fmt.Errorf("connect-timeout must be positive, got %d", c.ConnectTimeout)
	}
	if c.ConnectInterval < 0 {
		return fmt.Errorf("connect-interval must not be negative, got %d", c.ConnectInterval)
	}
	if c.ReconnectionInterval > 0 && c.ReconnectionIntervalSeconds > 0 {
		return ErrBothReconnectAxes
	}
	if c.ExpireClientIDsAfter > 0 && c.ExpireClientIDsAfterSeconds > 0 {
		return ErrBothExpireAxes
	}
	if c.ChaosProbability < 0 || c.ChaosProbability > 1 {
		return fmt.Errorf("chaos-probability must be within [0, 1], got %g", c.ChaosProbability)
	}
	return nil
}
