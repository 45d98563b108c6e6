package shutdown

import (
	"context"
	"errors"
	"io"
	"time"
)

// Common errors.
var (
	// ErrAlreadyShutdown indicates shutdown was already initiated.
	ErrAlreadyShutdown = errors.New("shutdown already initiated")

	// ErrTimeout indicates shutdown did not complete within the timeout.
	ErrTimeout = errors.New("shutdown timeout exceeded")

	// ErrHandlerFailed indicates one or more steps failed during shutdown.
	ErrHandlerFailed = errors.New("one or more shutdown steps failed")

	// ErrInvalidConfig indicates invalid configuration.
	ErrInvalidConfig = errors.New("invalid configuration")
)

// Phases used by the client process. Lower phases run first.
const (
	// PhaseChannel closes the realtime channel so nothing new is sent.
	PhaseChannel = 10

	// PhaseServers stops local listeners such as the metrics endpoint.
	PhaseServers = 20

	// PhaseSinks flushes and closes buses, event exporters and tracers.
	PhaseSinks = 30
)

// Handler is implemented by components that release resources on exit.
// The context is cancelled when the shutdown timeout is reached.
type Handler interface {
	OnShutdown(ctx context.Context) error
}

// Func adapts a function to Handler.
type Func func(ctx context.Context) error

// OnShutdown implements Handler.
func (f Func) OnShutdown(ctx context.Context) error {
	return f(ctx)
}

// Closer adapts an io.Closer, such as a message bus or event exporter.
func Closer(c io.Closer) Handler {
	return Func(func(context.Context) error { return c.Close() })
}

// Action adapts a function that cannot fail, such as a channel disconnect.
func Action(fn func()) Handler {
	return Func(func(context.Context) error {
		fn()
		return nil
	})
}

// StepResult is the outcome of one registered step.
type StepResult struct {
	Name     string
	Phase    int
	Duration time.Duration
	Err      error
}

// Result is the outcome of a complete shutdown.
type Result struct {
	TotalDuration time.Duration
	Steps         []StepResult

	// Err is nil when every step succeeded.
	Err error
}

// Failed reports whether any step failed.
func (r *Result) Failed() bool {
	return r.Err != nil
}

// FailedSteps returns the names of the steps that failed.
func (r *Result) FailedSteps() []string {
	var failed []string
	for _, s := range r.Steps {
		if s.Err != nil {
			failed = append(failed, s.Name)
		}
	}
	return failed
}

// Config configures the coordinator.
type Config struct {
	// Timeout bounds a signal-triggered shutdown and ShutdownWithTimeout(0).
	// Default: 10 seconds
	Timeout time.Duration

	// DefaultPhase is assigned by Register.
	// Default: PhaseSinks
	DefaultPhase int

	// ContinueOnError runs later phases after a failed step.
	// Default: true
	ContinueOnError bool

	// OnProgress is called as each step completes.
	OnProgress func(StepResult)
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if c.Timeout < 0 {
		return ErrInvalidConfig
	}
	return nil
}

// DefaultConfig returns configuration with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Timeout:         10 * time.Second,
		DefaultPhase:    PhaseSinks,
		ContinueOnError: true,
	}
}

type registration struct {
	name    string
	handler Handler
	phase   int
}
