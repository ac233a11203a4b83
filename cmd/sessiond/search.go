package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/sessiond-dev/sessiond/internal/config"
	"github.com/sessiond-dev/sessiond/internal/logging"
	"github.com/sessiond-dev/sessiond/internal/provider"
	"github.com/sessiond-dev/sessiond/internal/scan"
	"github.com/sessiond-dev/sessiond/internal/search"
	"github.com/sessiond-dev/sessiond/internal/store"
)

const colorBoldRed = "\033[1;31m"

func colorizeSnippet(snippet string) string {
	snippet = strings.ReplaceAll(snippet, ">>>", colorBoldRed)
	snippet = strings.ReplaceAll(snippet, "<<<", colorReset)
	return snippet
}

func searchCmd() *cobra.Command {
	var providerName string
	var limit int

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Full-text search across all session bodies",
		Long: `Scans session files for a case-insensitive substring or regex match.
Output is TSV for fzf integration: key, provider, updatedAt, snippet.`,
		Args: cobra.ExactArgs(1),
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

			se := search.New(st, cfg.SearchMinRunes, cfg.SearchLimit, log)
			hits := se.Search(search.Options{
				Query:    args[0],
				Provider: providerName,
				Limit:    limit,
			})

			if len(hits) == 0 {
				fmt.Fprintln(os.Stderr, "No results found.")
				return nil
			}

			colored := term.IsTerminal(int(os.Stdout.Fd()))
			for _, h := range hits {
				snippet := strings.ReplaceAll(h.Snippet, "\t", " ")
				snippet = strings.ReplaceAll(snippet, "\n", " ")
				prov := h.Session.Provider
				updated := h.Session.LastUpdated.Format("2006-01-02 15:04")
				if colored {
					snippet = colorizeSnippet(snippet)
					prov = colorizeProvider(prov)
					updated = colorDim + updated + colorReset
				}
				fmt.Printf("%s\t%s\t%s\t%s\n", h.Session.Key, prov, updated, snippet)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&providerName, "provider", "", "Filter by provider (claude/codex/gemini)")
	cmd.Flags().IntVar(&limit, "limit", 0, "Max results (0 = config default)")

	return cmd
}
