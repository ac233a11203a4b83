package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sessiond-dev/sessiond/internal/analytics"
	"github.com/sessiond-dev/sessiond/internal/config"
	"github.com/sessiond-dev/sessiond/internal/load"
	"github.com/sessiond-dev/sessiond/internal/logging"
	"github.com/sessiond-dev/sessiond/internal/provider"
	"github.com/sessiond-dev/sessiond/internal/scan"
	"github.com/sessiond-dev/sessiond/internal/search"
	"github.com/sessiond-dev/sessiond/internal/server"
	"github.com/sessiond-dev/sessiond/internal/store"
	"github.com/sessiond-dev/sessiond/internal/watch"
)

func serveCmd() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the catalog server with live change notification",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.ListenAddr = addr
			}

			log, err := logging.New(debugFlag)
			if err != nil {
				return err
			}
			defer log.Sync()

			reg := provider.NewRegistry()
			scanner := scan.New(reg, log, cfg.MaxScanDepth, cfg.MaxDirEntries)
			st := store.New(scanner, cfg.Roots(), log)

			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()

			if err := st.Refresh(ctx); err != nil {
				// partial results are still served; say what is missing
				log.Warn("initial index build incomplete", zap.Error(err))
			}

			hub := watch.NewHub(log)
			go hub.RunKeepAlive(ctx, cfg.KeepAlive())

			watcher, err := watch.New(cfg.Roots(), st, hub, reg,
				cfg.Debounce(), cfg.ActiveWindow(), log)
			if err != nil {
				return fmt.Errorf("start watcher: %w", err)
			}
			watcher.Start(ctx)
			defer watcher.Stop()

			loader := load.NewLoader(st, reg, cfg.TruncateBytes, log)
			se := search.New(st, cfg.SearchMinRunes, cfg.SearchLimit, log)
			an := analytics.New(scanner, reg, cfg.Roots(), log)

			srv := server.New(st, loader, se, an, hub, watcher, log)
			fmt.Fprintf(os.Stderr, "sessiond listening on http://%s\n", cfg.ListenAddr)
			return srv.Start(cfg.ListenAddr)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (overrides config)")
	return cmd
}
