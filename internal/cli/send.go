package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/vinayprograms/synckit/clock"
	"github.com/vinayprograms/synckit/ratelimit"
)

// paceResource is the limiter bucket used by --every.
const paceResource = "cli-send"

type sendFlags struct {
	count   int
	every   time.Duration
	timeout time.Duration
}

func newSendCommand(g *globalFlags) *cobra.Command {
	var f sendFlags
	cmd := &cobra.Command{
		Use:   "send <type> [payload|-]",
		Short: "Send one or more frames and wait until they are written",
		Long: `Connect, send a frame of the given type and wait until the outbound
queue has drained. The payload is a JSON value; "-" reads it from stdin.

Examples:
  synckit send --url ws://localhost:8080/ws data_update '{"topic":"shop:42","qty":3}'
  synckit send --url ws://localhost:8080/ws --count 10 --every 200ms user_typing '{}'`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSend(cmd, g, f, args)
		},
	}
	cmd.Flags().IntVar(&f.count, "count", 1, "Number of frames to send")
	cmd.Flags().DurationVar(&f.every, "every", 0, "Pause between frames")
	cmd.Flags().DurationVar(&f.timeout, "timeout", 30*time.Second, "Give up if not connected and drained within this time")
	return cmd
}

// readPayload returns the payload argument, reading stdin for "-".
func readPayload(args []string, stdin io.Reader) (json.RawMessage, error) {
	if len(args) < 2 {
		return nil, nil
	}
	raw := []byte(args[1])
	if args[1] == "-" {
		data, err := io.ReadAll(stdin)
		if err != nil {
			return nil, fmt.Errorf("read stdin: %w", err)
		}
		raw = data
	}
	if !json.Valid(raw) {
		return nil, fmt.Errorf("payload is not valid JSON")
	}
	return json.RawMessage(raw), nil
}

// newPacer returns a limiter releasing one token per interval, or nil
// when no pacing was asked for.
func newPacer(every time.Duration) *ratelimit.MemoryLimiter {
	if every <= 0 {
		return nil
	}
	l := ratelimit.NewMemoryLimiter(clock.Real())
	l.SetCapacity(paceResource, 1, every)
	return l
}

func runSend(cmd *cobra.Command, g *globalFlags, f sendFlags, args []string) error {
	if f.count < 1 {
		return fmt.Errorf("--count must be at least 1")
	}
	payload, err := readPayload(args, cmd.InOrStdin())
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), f.timeout)
	defer cancel()

	s, err := newSession(ctx, g, cmd.Flags(), sessionOptions{})
	if err != nil {
		return err
	}
	defer s.coord.ShutdownWithTimeout(5 * time.Second)

	if err := s.waitConnected(ctx); err != nil {
		return fmt.Errorf("connect: %w", err)
	}

	pacer := newPacer(f.every)
	if pacer != nil {
		defer pacer.Close()
	}
	for i := 0; i < f.count; i++ {
		if pacer != nil {
			if err := pacer.Acquire(ctx, paceResource); err != nil {
				return err
			}
		}
		var p interface{}
		if payload != nil {
			p = payload
		}
		if err := s.mgr.Send(args[0], p); err != nil {
			return err
		}
	}

	ticker := time.NewTicker(20 * time.Millisecond)
	defer ticker.Stop()
	for s.mgr.Queued() > 0 {
		select {
		case <-ticker.C:
		case <-ctx.Done():
			return fmt.Errorf("%d frames still queued: %w", s.mgr.Queued(), ctx.Err())
		}
	}
	snap := s.mgr.Metrics()
	fmt.Fprintf(cmd.OutOrStdout(), "sent %d frames\n", snap.MessagesSent)
	return nil
}
