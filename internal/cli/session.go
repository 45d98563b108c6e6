package cli

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"

	"github.com/vinayprograms/synckit/auth"
	"github.com/vinayprograms/synckit/bus"
	"github.com/vinayprograms/synckit/credentials"
	"github.com/vinayprograms/synckit/logging"
	"github.com/vinayprograms/synckit/metrics"
	"github.com/vinayprograms/synckit/realtime"
	"github.com/vinayprograms/synckit/shutdown"
	"github.com/vinayprograms/synckit/telemetry"
)

// sessionOptions are the per-command extras on top of the global flags.
type sessionOptions struct {
	metricsAddr string
	natsURL     string
	natsPrefix  string
}

// session is a configured manager plus everything it exports to, with
// their teardown registered on one coordinator.
type session struct {
	cfg     realtime.Config
	log     *logging.Logger
	mgr     *realtime.Manager
	coord   *shutdown.Coordinator
	metrics *metrics.Server
}

// buildConfig loads the config file, if any, and applies flag overrides.
// max-attempts is applied only when given, since 0 is a meaningful value.
func buildConfig(g *globalFlags, flags *pflag.FlagSet) (realtime.Config, error) {
	cfg := realtime.DefaultConfig()
	if g.configFile != "" {
		loaded, err := realtime.LoadConfig(g.configFile)
		if err != nil {
			return realtime.Config{}, err
		}
		cfg = loaded
	}

	if g.url != "" {
		cfg.URL = g.url
	}
	if g.token != "" {
		cfg.AuthToken = g.token
	}
	if g.enableAuth {
		cfg.EnableAuth = true
	}
	if g.noHeartbeat {
		cfg.HeartbeatInterval = 0
	}
	if flags != nil && flags.Changed("max-attempts") {
		cfg.MaxReconnectAttempts = g.maxAttempts
	}
	if g.sendRate > 0 {
		cfg.SendRateLimit = g.sendRate
		cfg.SendRateWindow = time.Second
	}
	if err := cfg.Validate(); err != nil {
		return realtime.Config{}, err
	}
	return cfg, nil
}

// tokenProvider picks the auth token source: an explicit token first, then
// a credentials file, then an environment variable. A credentials section
// carrying refresh material refreshes through its token endpoint.
func tokenProvider(g *globalFlags, cfg realtime.Config) (credentials.TokenProvider, error) {
	if cfg.AuthToken != "" {
		return credentials.StaticToken(cfg.AuthToken), nil
	}
	if g.credentials == "" && g.credSection == "" {
		return credentials.EnvToken(g.tokenEnv), nil
	}

	var (
		creds *credentials.Credentials
		err   error
	)
	if g.credentials != "" {
		creds, err = credentials.LoadFile(g.credentials)
	} else {
		creds, _, err = credentials.Load()
	}
	if err != nil {
		return nil, fmt.Errorf("load credentials: %w", err)
	}
	if s := creds.Section(g.credSection); s != nil && s.RefreshToken != "" && s.TokenURL != "" {
		return auth.NewRefreshingProvider(s.TokenURL, s.ClientID, s.OAuthToken()), nil
	}
	return credentials.FileTokenProvider{Path: g.credentials, Name: g.credSection}, nil
}

// eventExporter maps the --events value to an exporter.
func eventExporter(target string) (telemetry.Exporter, error) {
	switch {
	case target == "":
		return telemetry.NewNoopExporter(), nil
	case strings.HasPrefix(target, "http://"), strings.HasPrefix(target, "https://"):
		return telemetry.NewExporter("http", target)
	default:
		return telemetry.NewExporter("file", target)
	}
}

func newSession(ctx context.Context, g *globalFlags, flags *pflag.FlagSet, opts sessionOptions) (*session, error) {
	cfg, err := buildConfig(g, flags)
	if err != nil {
		return nil, err
	}
	log, err := newLogger(g, "synckit")
	if err != nil {
		return nil, err
	}
	coord, err := shutdown.NewCoordinator(shutdown.Config{
		OnProgress: func(r shutdown.StepResult) {
			fields := map[string]interface{}{"step": r.Name, "phase": r.Phase, "duration": r.Duration.String()}
			if r.Err != nil {
				fields["error"] = r.Err.Error()
				log.Warn("shutdown_step_failed", fields)
				return
			}
			log.Debug("shutdown_step", fields)
		},
	})
	if err != nil {
		return nil, err
	}
	s := &session{cfg: cfg, log: log, coord: coord}

	mgrOpts := []realtime.Option{realtime.WithLogger(log.WithComponent("realtime"))}

	if g.otlpEndpoint != "" {
		provider, err := telemetry.InitProvider(ctx, telemetry.ProviderConfig{
			ServiceName:    "synckit",
			ServiceVersion: Version,
			Endpoint:       g.otlpEndpoint,
			Protocol:       g.otlpProtocol,
			Insecure:       g.otlpInsecure,
			SampleRatio:    g.otlpSample,
		})
		if err != nil {
			return nil, fmt.Errorf("init tracing: %w", err)
		}
		provider.SetDebug(g.logLevel == "debug")
		coord.RegisterFunc("tracer", shutdown.PhaseSinks, provider.Shutdown)
		mgrOpts = append(mgrOpts, realtime.WithTracer(provider.Tracer()))
	}

	events, err := eventExporter(g.events)
	if err != nil {
		s.abort()
		return nil, fmt.Errorf("event exporter: %w", err)
	}
	coord.RegisterWithPhase("events", shutdown.Closer(events), shutdown.PhaseSinks)
	mgrOpts = append(mgrOpts, realtime.WithEventExporter(events))

	if opts.natsURL != "" {
		natsCfg := bus.DefaultNATSConfig()
		natsCfg.URL = opts.natsURL
		natsCfg.Name = "synckit"
		natsCfg.Logger = log.WithComponent("nats")
		b, err := bus.NewNATSBus(natsCfg)
		if err != nil {
			s.abort()
			return nil, fmt.Errorf("connect nats: %w", err)
		}
		coord.RegisterWithPhase("nats", shutdown.Closer(b), shutdown.PhaseSinks)
		sink, err := realtime.NewBusSink(b, opts.natsPrefix)
		if err != nil {
			s.abort()
			return nil, err
		}
		mgrOpts = append(mgrOpts, realtime.WithSink(sink))
	}

	if cfg.EnableAuth {
		tokens, err := tokenProvider(g, cfg)
		if err != nil {
			s.abort()
			return nil, err
		}
		mgrOpts = append(mgrOpts, realtime.WithTokenProvider(tokens))
	}

	mgr, err := realtime.New(cfg, mgrOpts...)
	if err != nil {
		s.abort()
		return nil, err
	}
	s.mgr = mgr
	coord.RegisterWithPhase("channel", shutdown.Action(mgr.Disconnect), shutdown.PhaseChannel)

	if opts.metricsAddr != "" {
		srv, err := metrics.NewServer(opts.metricsAddr, mgr.PrometheusCollector("synckit"))
		if err != nil {
			s.abort()
			return nil, err
		}
		if err := srv.Start(); err != nil {
			s.abort()
			return nil, err
		}
		s.metrics = srv
		coord.RegisterWithPhase("metrics", shutdown.Func(srv.Shutdown), shutdown.PhaseServers)
		log.Info("metrics_listening", map[string]interface{}{"addr": srv.Addr()})
	}
	return s, nil
}

// abort releases whatever was set up before a construction error.
func (s *session) abort() {
	_ = s.coord.ShutdownWithTimeout(5 * time.Second)
}

// waitConnected blocks until the channel reaches connected, ends in the
// error state, or ctx is done.
func (s *session) waitConnected(ctx context.Context) error {
	states := make(chan realtime.State, 8)
	s.mgr.OnStateChange(func(from, to realtime.State) {
		select {
		case states <- to:
		default:
		}
	})
	s.mgr.Connect()

	for {
		switch s.mgr.State() {
		case realtime.StateConnected:
			return nil
		case realtime.StateError:
			return fmt.Errorf("channel entered error state")
		}
		select {
		case <-states:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
