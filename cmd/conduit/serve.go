package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"conduit/internal/bridge"
	"conduit/internal/logging"
	"conduit/internal/plugins"
)

func newServeCmd() *cobra.Command {
	var watch bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP bridge",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			e, err := buildEngine(ctx, cfg)
			if err != nil {
				return err
			}
			defer e.shutdown(context.Background())
			if e.pool != nil {
				e.pool.Start(ctx)
			}

			if watch {
				watcher, err := plugins.NewWatcher(e.loader, cfg.PluginDiscoveryPaths,
					logging.NewComponentLogger("plugin-watcher"))
				if err != nil {
					e.log.Warn("plugin watcher unavailable: %v", err)
				} else {
					go watcher.Run(ctx)
				}
			}

			b := bridge.New(bridge.Options{
				Registry:   e.registry,
				Dispatcher: e.dispatcher,
				Metrics:    e.metrics,
				Logger:     logging.NewComponentLogger("bridge"),
			})
			addr := fmt.Sprintf("%s:%d", cfg.BridgeHost, cfg.BridgePort)
			if err := b.Run(ctx, addr); err != nil && err != http.ErrServerClosed {
				return err
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&watch, "watch-plugins", true, "hot-reload plugins on file changes")
	return cmd
}
