package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"github.com/vinayprograms/synckit/transport"
)

func newConnectCommand(g *globalFlags) *cobra.Command {
	var (
		opts     sessionOptions
		duration time.Duration
		types    []string
	)
	cmd := &cobra.Command{
		Use:   "connect [topic...]",
		Short: "Open the channel and print frames for the given topics",
		Long: `Open the sync channel, subscribe to every topic given and print
inbound frames until interrupted. Subscriptions are replayed after every
reconnect.

Example:
  synckit connect --url ws://localhost:8080/ws shop:42 shop:43`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConnect(cmd, g, opts, duration, types, args)
		},
	}
	f := cmd.Flags()
	f.StringVar(&opts.metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address")
	f.StringVar(&opts.natsURL, "nats-url", "", "Forward frames and errors to this NATS server")
	f.StringVar(&opts.natsPrefix, "nats-prefix", "sync", "Subject prefix for forwarded frames")
	f.DurationVar(&duration, "duration", 0, "Disconnect after this long (0 runs until interrupted)")
	f.StringSliceVar(&types, "type", nil, "Also print every frame of these types")
	return cmd
}

// printer serialises frame output from handler callbacks.
type printer struct {
	mu  sync.Mutex
	out io.Writer
}

func (p *printer) line(kind, name string, payload json.RawMessage) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(payload) == 0 {
		payload = json.RawMessage("null")
	}
	fmt.Fprintf(p.out, "%s %s %s\n", kind, name, payload)
}

func runConnect(cmd *cobra.Command, g *globalFlags, opts sessionOptions, duration time.Duration, types, topics []string) error {
	ctx := cmd.Context()
	if duration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, duration)
		defer cancel()
	}

	s, err := newSession(ctx, g, cmd.Flags(), opts)
	if err != nil {
		return err
	}

	p := &printer{out: cmd.OutOrStdout()}
	for _, topic := range topics {
		if err := s.mgr.Subscribe(topic, func(topic string, payload json.RawMessage) {
			p.line("topic", topic, payload)
		}); err != nil {
			s.abort()
			return err
		}
	}
	for _, t := range types {
		s.mgr.On(t, func(env transport.Envelope) { p.line("type", env.Type, env.Payload) })
	}

	s.coord.HandleSignals(ctx)
	s.mgr.Connect()
	<-s.coord.Done()

	if sig := s.coord.Signal(); sig != nil {
		s.log.Info("stopped", map[string]interface{}{"signal": sig.String()})
	}
	return s.coord.Err()
}
