package realtime

import (
	"fmt"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/vinayprograms/synckit/backoff"
	"github.com/vinayprograms/synckit/heartbeat"
)

// Config configures a Manager. Durations decode from TOML strings such as
// "1500ms" or "30s".
type Config struct {
	// URL is the ws:// or wss:// endpoint.
	URL string `toml:"url"`

	// ReconnectInterval is the delay before the first retry.
	ReconnectInterval time.Duration `toml:"reconnect_interval"`

	// MaxReconnectInterval caps every retry delay.
	MaxReconnectInterval time.Duration `toml:"max_reconnect_interval"`

	// ReconnectDecay is the growth factor between retries.
	ReconnectDecay float64 `toml:"reconnect_decay"`

	// MaxReconnectAttempts bounds the retries after a failure. -1 retries
	// forever, 0 never retries.
	MaxReconnectAttempts int `toml:"max_reconnect_attempts"`

	// TimeoutInterval bounds a single connection attempt.
	TimeoutInterval time.Duration `toml:"timeout_interval"`

	// HeartbeatInterval is the time between pings. Zero disables heartbeats.
	HeartbeatInterval time.Duration `toml:"heartbeat_interval"`

	// PongTimeout is how long a ping may stay unanswered.
	PongTimeout time.Duration `toml:"pong_timeout"`

	// MaxMessageSize is the largest encoded outbound frame, in bytes.
	MaxMessageSize int `toml:"max_message_size"`

	// QueueSize bounds the outbound queue.
	QueueSize int `toml:"queue_size"`

	// AuthToken is sent in the auth frame when no token provider is set.
	AuthToken string `toml:"auth_token"`

	// EnableAuth sends an auth frame after every successful connect.
	EnableAuth bool `toml:"enable_auth"`

	// EnableLogging turns diagnostic logging on.
	EnableLogging bool `toml:"enable_logging"`

	// EnableMetrics turns the metrics collector on.
	EnableMetrics bool `toml:"enable_metrics"`

	// ResetMetricsOnConnect clears metrics when Connect is called from the
	// closed state.
	ResetMetricsOnConnect bool `toml:"reset_metrics_on_connect"`

	// SendRateLimit is the number of application frames allowed per
	// SendRateWindow. Zero disables the throttle.
	SendRateLimit int `toml:"send_rate_limit"`

	// SendRateWindow is the throttle window.
	SendRateWindow time.Duration `toml:"send_rate_window"`
}

// DefaultConfig returns configuration with sensible defaults. URL is left
// empty and must be set by the caller.
func DefaultConfig() Config {
	return Config{
		ReconnectInterval:    time.Second,
		MaxReconnectInterval: 30 * time.Second,
		ReconnectDecay:       1.5,
		MaxReconnectAttempts: 10,
		TimeoutInterval:      2 * time.Second,
		HeartbeatInterval:    30 * time.Second,
		PongTimeout:          10 * time.Second,
		MaxMessageSize:       1 << 20,
		QueueSize:            100,
		EnableLogging:        true,
		EnableMetrics:        true,
		SendRateWindow:       time.Second,
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	var problems []string

	if c.URL == "" {
		problems = append(problems, "url is required")
	} else if u, err := url.Parse(c.URL); err != nil {
		problems = append(problems, fmt.Sprintf("url: %v", err))
	} else if u.Scheme != "ws" && u.Scheme != "wss" {
		problems = append(problems, fmt.Sprintf("url scheme %q is not ws or wss", u.Scheme))
	}
	if err := c.Policy().Validate(); err != nil {
		problems = append(problems, err.Error())
	}
	if c.MaxReconnectAttempts < -1 {
		problems = append(problems, "max_reconnect_attempts must be -1 or more")
	}
	if c.TimeoutInterval <= 0 {
		problems = append(problems, "timeout_interval must be positive")
	}
	hb := c.HeartbeatConfig()
	if err := hb.Validate(); err != nil {
		problems = append(problems, "heartbeat_interval and pong_timeout must be positive")
	}
	if c.MaxMessageSize <= 0 {
		problems = append(problems, "max_message_size must be positive")
	}
	if c.QueueSize <= 0 {
		problems = append(problems, "queue_size must be positive")
	}
	if c.SendRateLimit < 0 {
		problems = append(problems, "send_rate_limit must not be negative")
	}
	if c.SendRateLimit > 0 && c.SendRateWindow <= 0 {
		problems = append(problems, "send_rate_window must be positive")
	}

	if len(problems) > 0 {
		return fmt.Errorf("invalid config: %s", strings.Join(problems, "; "))
	}
	return nil
}

// Policy returns the backoff policy described by the reconnect settings.
func (c Config) Policy() backoff.Policy {
	return backoff.Policy{
		Base:  c.ReconnectInterval,
		Max:   c.MaxReconnectInterval,
		Decay: c.ReconnectDecay,
	}
}

// HeartbeatConfig returns the heartbeat settings.
func (c Config) HeartbeatConfig() heartbeat.Config {
	return heartbeat.Config{
		Interval:    c.HeartbeatInterval,
		PongTimeout: c.PongTimeout,
	}
}

// Unlimited reports whether reconnects are retried forever.
func (c Config) Unlimited() bool {
	return c.MaxReconnectAttempts < 0
}

// LoadConfig reads a TOML file on top of DefaultConfig. Unknown keys are
// rejected.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	md, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		sort.Strings(keys)
		return Config{}, fmt.Errorf("unknown config keys: %s", strings.Join(keys, ", "))
	}
	return cfg, nil
}
