// Package config resolves client settings from defaults, an optional TOML
// file, and environment variables, in increasing order of precedence.
// Command-line flags, applied by the caller, override all three.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// Ack policies for inbound messages.
const (
	// AckOnReceipt emits message_read immediately when a non-system message
	// arrives, before the user ever sees it.
	AckOnReceipt = "receipt"
	// AckManual leaves acknowledgement to the consumer via Session.MarkRead.
	AckManual = "manual"
)

// Config holds all client settings.
type Config struct {
	// ServerURL is the chat server endpoint. HTTP schemes are rewritten to
	// WebSocket schemes at dial time.
	ServerURL string

	// ReconnectAttempts bounds automatic reconnection after an unexpected
	// drop. Once exhausted the session stays disconnected until Connect is
	// called again.
	ReconnectAttempts int

	// ReconnectDelay is the fixed wait between reconnect attempts. There is
	// no backoff or jitter.
	ReconnectDelay time.Duration

	// AckPolicy selects when inbound messages are acknowledged: AckOnReceipt
	// or AckManual.
	AckPolicy string

	// MetricsAddr, when non-empty, is the listen address for the Prometheus
	// /metrics endpoint served by the CLI.
	MetricsAddr string

	// Username is the display name announced on connect.
	Username string

	// Room, when non-empty, is joined automatically after connecting.
	Room string
}

// Default returns the built-in settings: localhost server, five reconnect
// attempts one second apart, eager acks.
func Default() Config {
	return Config{
		ServerURL:         "http://localhost:5000",
		ReconnectAttempts: 5,
		ReconnectDelay:    time.Second,
		AckPolicy:         AckOnReceipt,
	}
}

// FromEnv layers CHAT_* environment variables over the given config and
// returns the result. Unset variables leave the existing value untouched;
// unparsable values are reported as errors rather than silently ignored.
func FromEnv(cfg Config) (Config, error) {
	if v := os.Getenv("CHAT_SERVER_URL"); v != "" {
		cfg.ServerURL = v
	}
	if v := os.Getenv("CHAT_RECONNECT_ATTEMPTS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return cfg, fmt.Errorf("config: invalid CHAT_RECONNECT_ATTEMPTS %q", v)
		}
		cfg.ReconnectAttempts = n
	}
	if v := os.Getenv("CHAT_RECONNECT_DELAY"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return cfg, fmt.Errorf("config: invalid CHAT_RECONNECT_DELAY %q: %w", v, err)
		}
		cfg.ReconnectDelay = d
	}
	if v := os.Getenv("CHAT_ACK_POLICY"); v != "" {
		cfg.AckPolicy = v
	}
	if v := os.Getenv("CHAT_METRICS_ADDR"); v != "" {
		cfg.MetricsAddr = v
	}
	if v := os.Getenv("CHAT_USERNAME"); v != "" {
		cfg.Username = v
	}
	if v := os.Getenv("CHAT_ROOM"); v != "" {
		cfg.Room = v
	}
	return cfg, cfg.Validate()
}

// fileConfig mirrors Config for TOML decoding. Durations are written as Go
// duration strings ("1s", "500ms"); pointer fields distinguish absent keys
// from zero values so the file only overrides what it sets.
type fileConfig struct {
	ServerURL         *string `toml:"server_url"`
	ReconnectAttempts *int    `toml:"reconnect_attempts"`
	ReconnectDelay    *string `toml:"reconnect_delay"`
	AckPolicy         *string `toml:"ack_policy"`
	MetricsAddr       *string `toml:"metrics_addr"`
	Username          *string `toml:"username"`
	Room              *string `toml:"room"`
}

// LoadFile layers settings from a TOML file over the given config. Keys
// absent from the file keep their existing values.
func LoadFile(cfg Config, path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("config: read %s: %w", path, err)
	}
	var fc fileConfig
	if err := toml.Unmarshal(data, &fc); err != nil {
		return cfg, fmt.Errorf("config: parse %s: %w", path, err)
	}

	if fc.ServerURL != nil {
		cfg.ServerURL = *fc.ServerURL
	}
	if fc.ReconnectAttempts != nil {
		cfg.ReconnectAttempts = *fc.ReconnectAttempts
	}
	if fc.ReconnectDelay != nil {
		d, err := time.ParseDuration(*fc.ReconnectDelay)
		if err != nil {
			return cfg, fmt.Errorf("config: invalid reconnect_delay in %s: %w", path, err)
		}
		cfg.ReconnectDelay = d
	}
	if fc.AckPolicy != nil {
		cfg.AckPolicy = *fc.AckPolicy
	}
	if fc.MetricsAddr != nil {
		cfg.MetricsAddr = *fc.MetricsAddr
	}
	if fc.Username != nil {
		cfg.Username = *fc.Username
	}
	if fc.Room != nil {
		cfg.Room = *fc.Room
	}
	return cfg, cfg.Validate()
}

// Validate checks cross-field consistency.
func (c Config) Validate() error {
	if c.ServerURL == "" {
		return fmt.Errorf("config: server URL must not be empty")
	}
	if c.AckPolicy != AckOnReceipt && c.AckPolicy != AckManual {
		return fmt.Errorf("config: unknown ack policy %q", c.AckPolicy)
	}
	if c.ReconnectDelay < 0 {
		return fmt.Errorf("config: reconnect delay must not be negative")
	}
	return nil
}
