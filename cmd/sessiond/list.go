package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/sessiond-dev/sessiond/internal/config"
	"github.com/sessiond-dev/sessiond/internal/logging"
	"github.com/sessiond-dev/sessiond/internal/provider"
	"github.com/sessiond-dev/sessiond/internal/scan"
	"github.com/sessiond-dev/sessiond/internal/store"
)

const (
	colorReset = "\033[0m"
	colorBlue  = "\033[1;34m"
	colorGreen = "\033[1;32m"
	colorCyan  = "\033[1;36m"
	colorDim   = "\033[2m"
)

func colorizeProvider(p string) string {
	switch p {
	case "claude":
		return colorBlue + p + colorReset
	case "codex":
		return colorGreen + p + colorReset
	case "gemini":
		return colorCyan + p + colorReset
	default:
		return p
	}
}

func listCmd() *cobra.Command {
	var providerName, since string
	var limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List sessions across all providers sorted by update time",
		Long: `Scans every configured provider root and prints sessions newest first.
Output is TSV when piped: key, provider, updatedAt, messages, preview.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			log, err := logging.New(debugFlag)
			if err != nil {
				return err
			}
			defer log.Sync()

			reg := provider.NewRegistry()
			scanner := scan.New(reg, log, cfg.MaxScanDepth, cfg.MaxDirEntries)
			st := store.New(scanner, cfg.Roots(), log)
			if err := st.Refresh(context.Background()); err != nil {
				fmt.Fprintf(os.Stderr, "warning: %v\n", err)
			}

			opts := store.ListOptions{Provider: providerName, Limit: limit}
			if since != "" {
				t, err := time.Parse("2006-01-02", since)
				if err != nil {
					return fmt.Errorf("parse --since: %w", err)
				}
				opts.Since = t
			}

			colored := term.IsTerminal(int(os.Stdout.Fd()))
			for _, r := range st.List(opts) {
				prov := r.Provider
				updated := r.LastUpdated.Format("2006-01-02 15:04")
				if colored {
					prov = colorizeProvider(prov)
					updated = colorDim + updated + colorReset
				}
				preview := strings.ReplaceAll(r.Preview, "\t", " ")
				fmt.Printf("%s\t%s\t%s\t%d\t%s\n", r.Key, prov, updated, r.MessageCount, preview)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&providerName, "provider", "", "Filter by provider (claude/codex/gemini)")
	cmd.Flags().StringVar(&since, "since", "", "Sessions updated since date (YYYY-MM-DD)")
	cmd.Flags().IntVar(&limit, "limit", 0, "Max results (0 = no limit)")

	return cmd
}
