package main

import (
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	goSession "github.com/MrEthical07/goSession"
	"github.com/MrEthical07/goSession/internal/logging"
)

// globalFlags are shared by every subcommand.
type globalFlags struct {
	configFile string
	logFormat  string
	logLevel   string
}

// NewRootCmd creates the root command for the gosession CLI.
func NewRootCmd() *cobra.Command {
	g := &globalFlags{}

	cmd := &cobra.Command{
		Use:   "gosession",
		Short: "gosession - client-side auth session engine",
		Long: `gosession drives the session engine: sign-up, sign-in, one-time codes,
profile sync, scheduled refresh and role/tier access gating.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&g.configFile, "config", "", "YAML config file (defaults apply when empty)")
	cmd.PersistentFlags().StringVar(&g.logFormat, "log-format", "text", "log format: json or text")
	cmd.PersistentFlags().StringVar(&g.logLevel, "log-level", "info", "log level: debug, info, warn or error")

	cmd.AddCommand(newSimulateCmd(g))
	cmd.AddCommand(newServeCmd(g))
	cmd.AddCommand(newConfigCmd(g))

	return cmd
}

func (g *globalFlags) config() (goSession.Config, error) {
	if g.configFile == "" {
		return goSession.DefaultConfig(), nil
	}
	return goSession.LoadConfigFile(g.configFile)
}

func (g *globalFlags) logger(w io.Writer) *slog.Logger {
	return logging.Setup("gosession", version, logging.Options{Format: g.logFormat, Level: g.logLevel}, w)
}
