package realtime

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "synckit.toml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	return path
}

// --- Unit Tests ---

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.ReconnectInterval != time.Second || cfg.MaxReconnectInterval != 30*time.Second {
		t.Errorf("reconnect intervals = %v, %v", cfg.ReconnectInterval, cfg.MaxReconnectInterval)
	}
	if cfg.ReconnectDecay != 1.5 || cfg.MaxReconnectAttempts != 10 {
		t.Errorf("decay=%v attempts=%d, want 1.5, 10", cfg.ReconnectDecay, cfg.MaxReconnectAttempts)
	}
	if cfg.HeartbeatInterval != 30*time.Second || cfg.PongTimeout != 10*time.Second {
		t.Errorf("heartbeat = %v/%v, want 30s/10s", cfg.HeartbeatInterval, cfg.PongTimeout)
	}
	if cfg.QueueSize != 100 || cfg.MaxMessageSize != 1<<20 {
		t.Errorf("QueueSize=%d MaxMessageSize=%d", cfg.QueueSize, cfg.MaxMessageSize)
	}
	if cfg.EnableAuth || !cfg.EnableLogging || !cfg.EnableMetrics {
		t.Errorf("flags = auth:%v logging:%v metrics:%v", cfg.EnableAuth, cfg.EnableLogging, cfg.EnableMetrics)
	}
	if cfg.Validate() == nil {
		t.Error("DefaultConfig() without url should not validate")
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr string
	}{
		{"valid", func(c *Config) {}, ""},
		{"wss", func(c *Config) { c.URL = "wss://sync.example.com/ws" }, ""},
		{"http scheme", func(c *Config) { c.URL = "http://sync.test" }, "not ws or wss"},
		{"decay below one", func(c *Config) { c.ReconnectDecay = 0.5 }, "decay"},
		{"attempts below -1", func(c *Config) { c.MaxReconnectAttempts = -2 }, "max_reconnect_attempts"},
		{"unlimited attempts", func(c *Config) { c.MaxReconnectAttempts = -1 }, ""},
		{"zero timeout", func(c *Config) { c.TimeoutInterval = 0 }, "timeout_interval"},
		{"heartbeat without pong timeout", func(c *Config) {
			c.HeartbeatInterval = time.Second
			c.PongTimeout = 0
		}, "pong_timeout"},
		{"zero queue", func(c *Config) { c.QueueSize = 0 }, "queue_size"},
		{"zero message size", func(c *Config) { c.MaxMessageSize = 0 }, "max_message_size"},
		{"negative rate", func(c *Config) { c.SendRateLimit = -1 }, "send_rate_limit"},
		{"rate without window", func(c *Config) {
			c.SendRateLimit = 5
			c.SendRateWindow = 0
		}, "send_rate_window"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig()
			tt.modify(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() error = %v, want nil", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %v, want mention of %q", err, tt.wantErr)
			}
		})
	}
}

func TestConfig_Policy(t *testing.T) {
	cfg := testConfig()
	p := cfg.Policy()
	if p.NextDelay(0) != time.Second || p.NextDelay(1) != 1500*time.Millisecond {
		t.Errorf("NextDelay(0,1) = %v, %v", p.NextDelay(0), p.NextDelay(1))
	}
	if p.NextDelay(100) != 30*time.Second {
		t.Errorf("NextDelay(100) = %v, want cap 30s", p.NextDelay(100))
	}
}

// --- Integration Tests ---

func TestLoadConfig(t *testing.T) {
	path := writeConfig(t, `
url = "wss://sync.example.com/ws"
reconnect_interval = "1500ms"
max_reconnect_attempts = -1
heartbeat_interval = "15s"
queue_size = 250
enable_auth = true
`)
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}
	if cfg.URL != "wss://sync.example.com/ws" {
		t.Errorf("URL = %q", cfg.URL)
	}
	if cfg.ReconnectInterval != 1500*time.Millisecond {
		t.Errorf("ReconnectInterval = %v, want 1.5s", cfg.ReconnectInterval)
	}
	if !cfg.Unlimited() {
		t.Error("Unlimited() = false, want true")
	}
	if cfg.HeartbeatInterval != 15*time.Second || cfg.QueueSize != 250 || !cfg.EnableAuth {
		t.Errorf("cfg = %+v", cfg)
	}
	if cfg.PongTimeout != 10*time.Second || cfg.ReconnectDecay != 1.5 {
		t.Errorf("unset keys should keep defaults: %+v", cfg)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() error = %v", err)
	}
}

func TestLoadConfig_UnknownKey(t *testing.T) {
	path := writeConfig(t, `
url = "ws://localhost/ws"
reconect_interval = "1s"
`)
	_, err := LoadConfig(path)
	if err == nil || !strings.Contains(err.Error(), "reconect_interval") {
		t.Errorf("LoadConfig() error = %v, want unknown key reported", err)
	}
}

func TestLoadConfig_Errors(t *testing.T) {
	if _, err := LoadConfig(filepath.Join(t.TempDir(), "missing.toml")); err == nil {
		t.Error("LoadConfig(missing) should fail")
	}
	if _, err := LoadConfig(writeConfig(t, "url = ")); err == nil {
		t.Error("LoadConfig(bad toml) should fail")
	}
}
