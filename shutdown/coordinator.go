package shutdown

import (
	"context"
	"os"
	"os/signal"
	"sort"
	"sync"
	"syscall"
	"time"
)

// Coordinator runs registered shutdown steps phase by phase. Steps in the
// same phase run concurrently.
type Coordinator struct {
	config Config

	mu       sync.Mutex
	steps    []registration
	once     sync.Once
	err      error
	done     chan struct{}
	result   *Result
	signals  chan os.Signal
	received os.Signal
}

// NewCoordinator creates a coordinator. Zero fields take their defaults.
func NewCoordinator(config Config) (*Coordinator, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if config.Timeout == 0 {
		config.Timeout = DefaultConfig().Timeout
	}
	if config.DefaultPhase == 0 {
		config.DefaultPhase = DefaultConfig().DefaultPhase
	}
	return &Coordinator{
		config:  config,
		done:    make(chan struct{}),
		signals: make(chan os.Signal, 1),
	}, nil
}

// Register adds a step in the default phase.
func (c *Coordinator) Register(name string, h Handler) {
	c.RegisterWithPhase(name, h, c.config.DefaultPhase)
}

// RegisterWithPhase adds a step in phase.
func (c *Coordinator) RegisterWithPhase(name string, h Handler, phase int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.steps = append(c.steps, registration{name: name, handler: h, phase: phase})
}

// RegisterFunc adds a function step in phase.
func (c *Coordinator) RegisterFunc(name string, phase int, fn func(ctx context.Context) error) {
	c.RegisterWithPhase(name, Func(fn), phase)
}

// Shutdown runs every step once. Later calls wait for the first to finish
// and return ErrAlreadyShutdown.
func (c *Coordinator) Shutdown(ctx context.Context) error {
	first := false
	c.once.Do(func() {
		first = true
		c.err = c.run(ctx)
		close(c.done)
	})
	if !first {
		<-c.done
		return ErrAlreadyShutdown
	}
	return c.err
}

// ShutdownWithTimeout runs Shutdown bounded by timeout, or by the
// configured timeout when zero.
func (c *Coordinator) ShutdownWithTimeout(timeout time.Duration) error {
	if timeout <= 0 {
		timeout = c.config.Timeout
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return c.Shutdown(ctx)
}

// HandleSignals shuts down on SIGINT or SIGTERM, or when ctx is done.
func (c *Coordinator) HandleSignals(ctx context.Context) {
	signal.Notify(c.signals, syscall.SIGTERM, syscall.SIGINT)
	go func() {
		defer signal.Stop(c.signals)
		select {
		case sig := <-c.signals:
			c.mu.Lock()
			c.received = sig
			c.mu.Unlock()
		case <-ctx.Done():
		case <-c.done:
			return
		}
		_ = c.ShutdownWithTimeout(c.config.Timeout)
	}()
}

// Signal returns the signal that triggered shutdown, if any.
func (c *Coordinator) Signal() os.Signal {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.received
}

// Trigger simulates SIGTERM.
func (c *Coordinator) Trigger() {
	select {
	case c.signals <- syscall.SIGTERM:
	default:
	}
}

// Done is closed when shutdown has finished.
func (c *Coordinator) Done() <-chan struct{} {
	return c.done
}

// Err returns the shutdown error once Done is closed.
func (c *Coordinator) Err() error {
	select {
	case <-c.done:
		return c.err
	default:
		return nil
	}
}

// Result returns the detailed outcome once Done is closed.
func (c *Coordinator) Result() *Result {
	select {
	case <-c.done:
		return c.result
	default:
		return nil
	}
}

func (c *Coordinator) run(ctx context.Context) error {
	start := time.Now()
	c.mu.Lock()
	steps := make([]registration, len(c.steps))
	copy(steps, c.steps)
	c.mu.Unlock()

	sort.SliceStable(steps, func(i, j int) bool { return steps[i].phase < steps[j].phase })

	result := &Result{Steps: make([]StepResult, 0, len(steps))}
	finish := func(err error) error {
		result.Err = err
		result.TotalDuration = time.Since(start)
		c.result = result
		return err
	}

	var overall error
	for _, group := range groupByPhase(steps) {
		if ctx.Err() != nil {
			return finish(ErrTimeout)
		}
		results := c.runPhase(ctx, group)
		result.Steps = append(result.Steps, results...)

		for _, r := range results {
			if r.Err == nil {
				continue
			}
			overall = ErrHandlerFailed
			if !c.config.ContinueOnError {
				return finish(overall)
			}
		}
	}
	return finish(overall)
}

func (c *Coordinator) runPhase(ctx context.Context, steps []registration) []StepResult {
	results := make([]StepResult, len(steps))
	var wg sync.WaitGroup
	for i, reg := range steps {
		wg.Add(1)
		go func(idx int, r registration) {
			defer wg.Done()
			begin := time.Now()
			err := r.handler.OnShutdown(ctx)
			results[idx] = StepResult{
				Name:     r.name,
				Phase:    r.phase,
				Duration: time.Since(begin),
				Err:      err,
			}
			if c.config.OnProgress != nil {
				c.config.OnProgress(results[idx])
			}
		}(i, reg)
	}
	wg.Wait()
	return results
}

// groupByPhase splits steps, already sorted by phase, into one group per
// phase.
func groupByPhase(steps []registration) [][]registration {
	var groups [][]registration
	for i := 0; i < len(steps); {
		j := i
		for j < len(steps) && steps[j].phase == steps[i].phase {
			j++
		}
		groups = append(groups, steps[i:j])
		i = j
	}
	return groups
}
