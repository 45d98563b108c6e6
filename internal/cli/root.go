// Package cli implements the synckit command line.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/vinayprograms/synckit/logging"
)

// Version is set at build time with -ldflags "-X ...cli.Version=v1.2.3".
var Version = "dev"

// globalFlags are shared by every subcommand.
type globalFlags struct {
	configFile   string
	url          string
	logLevel     string
	token        string
	tokenEnv     string
	credentials  string
	credSection  string
	enableAuth   bool
	noHeartbeat  bool
	maxAttempts  int
	sendRate     int
	otlpEndpoint string
	otlpProtocol string
	otlpInsecure bool
	otlpSample   float64
	events       string
}

// NewRootCommand builds the command tree.
func NewRootCommand() *cobra.Command {
	g := &globalFlags{}
	root := &cobra.Command{
		Use:   "synckit",
		Short: "Realtime sync channel client",
		Long: `synckit keeps a WebSocket sync channel open, reconnecting with
backoff, queueing outbound frames while offline and replaying topic
subscriptions after every reconnect.

Examples:
  synckit connect --url ws://localhost:8080/ws shop:42
  synckit send --url ws://localhost:8080/ws data_update '{"topic":"shop:42","qty":3}'
  synckit connect -c synckit.toml --metrics-addr :9100 --nats-url nats://localhost:4222`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := root.PersistentFlags()
	pf.StringVarP(&g.configFile, "config", "c", "", "TOML config file")
	pf.StringVar(&g.url, "url", "", "Server URL (ws:// or wss://), overrides the config file")
	pf.StringVar(&g.logLevel, "log-level", "info", "Log level: debug, info, warn, error")
	pf.StringVar(&g.token, "token", "", "Auth token")
	pf.StringVar(&g.tokenEnv, "token-env", "SYNCKIT_TOKEN", "Environment variable holding the auth token")
	pf.StringVar(&g.credentials, "credentials", "", "Credentials file (default: standard locations)")
	pf.StringVar(&g.credSection, "credentials-section", "", "Section of the credentials file")
	pf.BoolVar(&g.enableAuth, "auth", false, "Send an auth frame after every connect")
	pf.BoolVar(&g.noHeartbeat, "no-heartbeat", false, "Disable the ping/pong heartbeat")
	pf.IntVar(&g.maxAttempts, "max-attempts", 0, "Reconnect attempts before giving up, -1 for unlimited")
	pf.IntVar(&g.sendRate, "send-rate", 0, "Outbound frames per second (0 keeps the config value)")
	pf.StringVar(&g.otlpEndpoint, "otlp-endpoint", "", "Export connect spans to this OTLP endpoint")
	pf.StringVar(&g.otlpProtocol, "otlp-protocol", "grpc", "OTLP protocol: grpc or http")
	pf.BoolVar(&g.otlpInsecure, "otlp-insecure", false, "Disable TLS for the OTLP exporter")
	pf.Float64Var(&g.otlpSample, "otlp-sample-ratio", 1, "Fraction of connect traces to export")
	pf.StringVar(&g.events, "events", "", "Export lifecycle events to a JSON lines file or an http(s) URL")

	root.AddCommand(newConnectCommand(g))
	root.AddCommand(newSendCommand(g))
	root.AddCommand(newConfigCommand(g))
	root.AddCommand(newVersionCommand())
	return root
}

// Execute runs the command line and exits non-zero on failure.
func Execute() {
	if err := NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func newLogger(g *globalFlags, component string) (*logging.Logger, error) {
	level, err := logging.ParseLevel(g.logLevel)
	if err != nil {
		return nil, err
	}
	log := logging.New().WithComponent(component)
	log.SetLevel(level)
	return log, nil
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "synckit %s\n", Version)
		},
	}
}
