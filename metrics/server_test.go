package metrics

import (
	"context"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"
)

// --- Integration Tests ---

func TestServer_ServesMetrics(t *testing.T) {
	c := NewCollector(nil)
	c.IncSent()
	source := SourceFuncs{
		SnapshotFunc: c.Snapshot,
		StateFunc:    func() string { return "connected" },
	}

	srv, err := NewServer("127.0.0.1:0", NewPrometheusCollector(source, "synckit", "closed", "connected"))
	if err != nil {
		t.Fatalf("NewServer() error = %v", err)
	}
	if err := srv.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer srv.Shutdown(context.Background())

	resp, err := http.Get("http://" + srv.Addr() + "/metrics")
	if err != nil {
		t.Fatalf("GET /metrics error = %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()

	for _, want := range []string{
		"synckit_messages_sent_total 1",
		`synckit_state{state="connected"} 1`,
		"go_goroutines",
	} {
		if !strings.Contains(string(body), want) {
			t.Errorf("/metrics missing %q", want)
		}
	}

	resp, err = http.Get("http://" + srv.Addr() + "/health")
	if err != nil || resp.StatusCode != http.StatusOK {
		t.Errorf("GET /health = %v, %v", resp, err)
	}
	if resp != nil {
		resp.Body.Close()
	}
}

func TestServer_DuplicateCollector(t *testing.T) {
	source := SourceFuncs{
		SnapshotFunc: func() Snapshot { return Snapshot{} },
		StateFunc:    func() string { return "" },
	}
	a := NewPrometheusCollector(source, "synckit")
	b := NewPrometheusCollector(source, "synckit")
	if _, err := NewServer(":0", a, b); err == nil {
		t.Error("NewServer() with duplicate collectors should fail")
	}
}

func TestServer_Shutdown(t *testing.T) {
	srv, err := NewServer("127.0.0.1:0")
	if err != nil {
		t.Fatalf("NewServer() error = %v", err)
	}
	if err := srv.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	addr := srv.Addr()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown() error = %v", err)
	}
	client := http.Client{Timeout: 200 * time.Millisecond}
	if _, err := client.Get("http://" + addr + "/health"); err == nil {
		t.Error("server still answering after Shutdown()")
	}
}
