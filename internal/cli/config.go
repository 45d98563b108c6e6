package cli

import (
	"github.com/BurntSushi/toml"
	"github.com/spf13/cobra"
)

func newConfigCommand(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration as TOML",
		Long: `Load the config file, apply command line overrides, validate the
result and print it. The auth token is masked.

Example:
  synckit config -c synckit.toml --max-attempts -1`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := buildConfig(g, cmd.Flags())
			if err != nil {
				return err
			}
			if cfg.AuthToken != "" {
				cfg.AuthToken = "********"
			}
			return toml.NewEncoder(cmd.OutOrStdout()).Encode(cfg)
		},
	}
}
