// Package telemetry exports connection lifecycle events and traces.
package telemetry

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"sync"
	"time"
)

// Event names emitted by the connection manager.
const (
	EventStateChange        = "state_change"
	EventReconnectScheduled = "reconnect_scheduled"
	EventError              = "error"
)

// HTTP exporter batching.
const (
	batchSize     = 100
	maxPending    = 1000
	flushInterval = 5 * time.Second
	postTimeout   = 10 * time.Second
)

// Exporter receives lifecycle events. The manager calls LogEvent while it
// holds its lock, so LogEvent must not block on I/O.
type Exporter interface {
	LogEvent(name string, data map[string]interface{})
	Flush() error
	Close() error
}

// Event is one exported lifecycle event.
type Event struct {
	Name      string                 `json:"name"`
	Timestamp time.Time              `json:"timestamp"`
	Data      map[string]interface{} `json:"data"`
}

// NewExporter picks an exporter by protocol: "http" posts to endpoint,
// "file" appends to the file at endpoint, "noop" or "" discards.
func NewExporter(protocol, endpoint string) (Exporter, error) {
	switch protocol {
	case "http":
		return NewHTTPExporter(endpoint), nil
	case "file":
		e, err := NewFileExporter(endpoint)
		if err != nil {
			return nil, err
		}
		return e, nil
	case "noop", "":
		return NewNoopExporter(), nil
	default:
		return nil, fmt.Errorf("unknown telemetry protocol: %s", protocol)
	}
}

// --- HTTP Exporter ---

// HTTPExporter posts events as JSON arrays from a background goroutine,
// every flushInterval or once batchSize events are pending. A failed
// batch is kept for the next post. At most maxPending events are held;
// the oldest are dropped beyond that.
type HTTPExporter struct {
	endpoint string
	client   *http.Client

	mu      sync.Mutex
	pending []Event
	dropped int

	post      sync.Mutex
	kick      chan struct{}
	done      chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
}

// NewHTTPExporter starts an exporter posting to endpoint.
func NewHTTPExporter(endpoint string) *HTTPExporter {
	e := &HTTPExporter{
		endpoint: endpoint,
		client:   &http.Client{Timeout: postTimeout},
		kick:     make(chan struct{}, 1),
		done:     make(chan struct{}),
	}
	e.wg.Add(1)
	go e.loop()
	return e
}

func (e *HTTPExporter) loop() {
	defer e.wg.Done()
	ticker := time.NewTicker(flushInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
		case <-e.kick:
		case <-e.done:
			return
		}
		e.Flush()
	}
}

func (e *HTTPExporter) LogEvent(name string, data map[string]interface{}) {
	e.mu.Lock()
	e.pending = append(e.pending, Event{Name: name, Timestamp: time.Now(), Data: data})
	e.trimLocked()
	full := len(e.pending) >= batchSize
	e.mu.Unlock()

	if full {
		select {
		case e.kick <- struct{}{}:
		default:
		}
	}
}

// Dropped reports how many events were discarded because the endpoint
// fell too far behind.
func (e *HTTPExporter) Dropped() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.dropped
}

// Flush posts everything pending. It blocks for up to postTimeout.
func (e *HTTPExporter) Flush() error {
	e.post.Lock()
	defer e.post.Unlock()

	e.mu.Lock()
	batch := e.pending
	e.pending = nil
	e.mu.Unlock()
	if len(batch) == 0 {
		return nil
	}

	if err := e.send(batch); err != nil {
		e.mu.Lock()
		e.pending = append(batch, e.pending...)
		e.trimLocked()
		e.mu.Unlock()
		return err
	}
	return nil
}

func (e *HTTPExporter) trimLocked() {
	if over := len(e.pending) - maxPending; over > 0 {
		e.dropped += over
		e.pending = append(e.pending[:0:0], e.pending[over:]...)
	}
}

func (e *HTTPExporter) send(batch []Event) error {
	body, err := json.Marshal(batch)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), postTimeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return fmt.Errorf("event endpoint returned %d", resp.StatusCode)
	}
	return nil
}

// Close stops the background goroutine and posts what is left.
func (e *HTTPExporter) Close() error {
	e.closeOnce.Do(func() {
		close(e.done)
		e.wg.Wait()
	})
	return e.Flush()
}

// --- File Exporter ---

// FileExporter appends events to a file as JSON lines. Writes are
// buffered; Flush syncs them to disk.
type FileExporter struct {
	mu   sync.Mutex
	file *os.File
	w    *bufio.Writer
}

// NewFileExporter opens path for appending, creating it if needed.
func NewFileExporter(path string) (*FileExporter, error) {
	file, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("open event file: %w", err)
	}
	return &FileExporter{file: file, w: bufio.NewWriter(file)}, nil
}

func (e *FileExporter) LogEvent(name string, data map[string]interface{}) {
	line, err := json.Marshal(Event{Name: name, Timestamp: time.Now(), Data: data})
	if err != nil {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.w.Write(line)
	e.w.WriteByte('\n')
}

func (e *FileExporter) Flush() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.w.Flush(); err != nil {
		return err
	}
	return e.file.Sync()
}

func (e *FileExporter) Close() error {
	flushErr := e.Flush()
	if err := e.file.Close(); err != nil {
		return err
	}
	return flushErr
}

// --- Noop Exporter ---

// NoopExporter discards all telemetry.
type NoopExporter struct{}

// NewNoopExporter creates a new noop exporter.
func NewNoopExporter() *NoopExporter {
	return &NoopExporter{}
}

func (e *NoopExporter) LogEvent(name string, data map[string]interface{}) {}
func (e *NoopExporter) Flush() error                                      { return nil }
func (e *NoopExporter) Close() error                                      { return nil }
