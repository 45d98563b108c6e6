package cli

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/vinayprograms/synckit/auth"
	"github.com/vinayprograms/synckit/credentials"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := NewRootCommand()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func writeFile(t *testing.T, name, content string, mode os.FileMode) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), mode); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	return path
}

// --- Unit Tests ---

func TestVersionCommand(t *testing.T) {
	out, err := run(t, "version")
	if err != nil {
		t.Fatalf("version error = %v", err)
	}
	if !strings.Contains(out, "synckit "+Version) {
		t.Errorf("output = %q", out)
	}
}

func TestConfigCommand_Overrides(t *testing.T) {
	path := writeFile(t, "synckit.toml", `
url = "ws://from-file/ws"
max_reconnect_attempts = 3
auth_token = "secret"
`, 0644)

	out, err := run(t, "config", "-c", path, "--url", "wss://override/ws", "--max-attempts", "0", "--send-rate", "20")
	if err != nil {
		t.Fatalf("config error = %v", err)
	}
	for _, want := range []string{
		`url = "wss://override/ws"`,
		"max_reconnect_attempts = 0",
		"send_rate_limit = 20",
		`auth_token = "********"`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "secret") {
		t.Error("auth token should be masked")
	}
}

func TestConfigCommand_KeepsFileAttemptsWithoutFlag(t *testing.T) {
	path := writeFile(t, "synckit.toml", "url = \"ws://h/ws\"\nmax_reconnect_attempts = 3\n", 0644)
	out, err := run(t, "config", "-c", path)
	if err != nil {
		t.Fatalf("config error = %v", err)
	}
	if !strings.Contains(out, "max_reconnect_attempts = 3") {
		t.Errorf("output = %s", out)
	}
}

func TestConfigCommand_Invalid(t *testing.T) {
	if _, err := run(t, "config"); err == nil {
		t.Error("config without url should fail validation")
	}
	if _, err := run(t, "config", "--url", "http://nope"); err == nil {
		t.Error("config with http url should fail validation")
	}
}

func TestBuildConfig_NoHeartbeat(t *testing.T) {
	g := &globalFlags{url: "ws://h/ws", noHeartbeat: true, enableAuth: true}
	cfg, err := buildConfig(g, nil)
	if err != nil {
		t.Fatalf("buildConfig() error = %v", err)
	}
	if cfg.HeartbeatInterval != 0 || !cfg.EnableAuth {
		t.Errorf("cfg = %+v", cfg)
	}
}

func TestTokenProvider(t *testing.T) {
	ctx := context.Background()

	g := &globalFlags{tokenEnv: "SYNCKIT_TEST_TOKEN"}
	cfg, _ := buildConfig(&globalFlags{url: "ws://h/ws"}, nil)

	t.Setenv("SYNCKIT_TEST_TOKEN", "from-env")
	p, err := tokenProvider(g, cfg)
	if err != nil {
		t.Fatalf("tokenProvider() error = %v", err)
	}
	if tok, _ := p.Token(ctx); tok != "from-env" {
		t.Errorf("env token = %q, want from-env", tok)
	}

	cfg.AuthToken = "explicit"
	p, _ = tokenProvider(g, cfg)
	if _, ok := p.(credentials.StaticToken); !ok {
		t.Errorf("provider = %T, want StaticToken", p)
	}
}

func TestTokenProvider_CredentialsFile(t *testing.T) {
	cfg, _ := buildConfig(&globalFlags{url: "ws://h/ws"}, nil)

	plain := writeFile(t, "plain.toml", "[realtime]\ntoken = \"file-token\"\n", 0400)
	p, err := tokenProvider(&globalFlags{credentials: plain}, cfg)
	if err != nil {
		t.Fatalf("tokenProvider() error = %v", err)
	}
	if tok, err := p.Token(context.Background()); err != nil || tok != "file-token" {
		t.Errorf("Token() = %q, %v; want file-token", tok, err)
	}

	refreshing := writeFile(t, "oauth.toml", `
[realtime]
token = "access"
refresh_token = "refresh"
token_url = "https://auth.example.com/token"
client_id = "synckit"
`, 0400)
	p, err = tokenProvider(&globalFlags{credentials: refreshing}, cfg)
	if err != nil {
		t.Fatalf("tokenProvider() error = %v", err)
	}
	if _, ok := p.(*auth.RefreshingProvider); !ok {
		t.Errorf("provider = %T, want *auth.RefreshingProvider", p)
	}

	loose := writeFile(t, "loose.toml", "[realtime]\ntoken = \"x\"\n", 0644)
	if _, err := tokenProvider(&globalFlags{credentials: loose}, cfg); err == nil {
		t.Error("world-readable credentials file should be rejected")
	}
}

func TestEventExporter(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.jsonl")
	tests := []struct {
		target  string
		wantErr bool
	}{
		{"", false},
		{"http://collector:8080/events", false},
		{path, false},
		{filepath.Join(t.TempDir(), "missing", "dir", "events.jsonl"), true},
	}
	for _, tt := range tests {
		exp, err := eventExporter(tt.target)
		if (err != nil) != tt.wantErr {
			t.Errorf("eventExporter(%q) error = %v, wantErr %v", tt.target, err, tt.wantErr)
		}
		if exp != nil {
			exp.Close()
		}
	}
}

func TestReadPayload(t *testing.T) {
	if p, err := readPayload([]string{"ping"}, nil); err != nil || p != nil {
		t.Errorf("readPayload(no payload) = %s, %v", p, err)
	}
	if p, err := readPayload([]string{"t", `{"a":1}`}, nil); err != nil || string(p) != `{"a":1}` {
		t.Errorf("readPayload(arg) = %s, %v", p, err)
	}
	if p, err := readPayload([]string{"t", "-"}, strings.NewReader(`[1,2]`)); err != nil || string(p) != `[1,2]` {
		t.Errorf("readPayload(stdin) = %s, %v", p, err)
	}
	if _, err := readPayload([]string{"t", "{oops"}, nil); err == nil {
		t.Error("readPayload(invalid) should fail")
	}
}

func TestNewPacer(t *testing.T) {
	if newPacer(0) != nil {
		t.Error("newPacer(0) should be nil")
	}
	p := newPacer(50 * time.Millisecond)
	defer p.Close()
	if !p.TryAcquire(paceResource) {
		t.Error("first token should be available")
	}
	if p.TryAcquire(paceResource) {
		t.Error("second token should wait for the interval")
	}
}

func TestSendCommand_Validation(t *testing.T) {
	if _, err := run(t, "send"); err == nil {
		t.Error("send without a type should fail")
	}
	if _, err := run(t, "send", "--url", "ws://h/ws", "--count", "0", "data_update"); err == nil {
		t.Error("send --count 0 should fail")
	}
}
