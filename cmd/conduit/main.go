// Command conduit is the tool-orchestration runtime CLI: interactive
// chat, one-shot questions and the HTTP bridge.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"conduit/internal/config"
	"conduit/internal/logging"
)

var (
	flagConfig   string
	flagLogLevel string
)

func main() {
	root := &cobra.Command{
		Use:           "conduit",
		Short:         "Tool-orchestration runtime for language-model agents",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&flagConfig, "config", "", "path to a JSON config file")
	root.PersistentFlags().StringVar(&flagLogLevel, "log-level", "", "log level (debug, info, warn, error)")

	root.AddCommand(newChatCmd(), newAskCmd(), newServeCmd(), newToolsCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(flagConfig)
	if err != nil {
		return nil, err
	}
	if flagLogLevel != "" {
		cfg.LogLevel = flagLogLevel
	}
	logging.SetLevel(logging.ParseLevel(cfg.LogLevel))
	return cfg, nil
}
