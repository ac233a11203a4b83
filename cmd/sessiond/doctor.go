package main

import (
	"context"
	"fmt"
	"os"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/sessiond-dev/sessiond/internal/config"
	"github.com/sessiond-dev/sessiond/internal/logging"
	"github.com/sessiond-dev/sessiond/internal/provider"
	"github.com/sessiond-dev/sessiond/internal/scan"
	"github.com/sessiond-dev/sessiond/internal/store"
)

func doctorCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Self-check: verify roots, scanning, and watch support",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("config: %w", err)
			}

			fmt.Println("=== Roots ===")
			for prov, roots := range cfg.Roots() {
				for _, root := range roots {
					checkDir(prov, root)
				}
			}

			fmt.Println("\n=== Scan ===")
			log := logging.Nop()
			if debugFlag {
				if l, err := logging.New(true); err == nil {
					log = l
				}
			}
			reg := provider.NewRegistry()
			scanner := scan.New(reg, log, cfg.MaxScanDepth, cfg.MaxDirEntries)
			st := store.New(scanner, cfg.Roots(), log)
			scanErr := st.Refresh(context.Background())

			counts := map[string]int{}
			deleted := 0
			for _, r := range st.List(store.ListOptions{IncludeDeleted: true}) {
				if r.IsDeleted {
					deleted++
					continue
				}
				counts[r.Provider]++
			}
			for _, prov := range []string{"claude", "codex", "gemini", "generic"} {
				fmt.Printf("  %-8s sessions: %d\n", prov, counts[prov])
			}
			fmt.Printf("  trashed/suppressed: %d\n", deleted)
			if scanErr != nil {
				fmt.Printf("  partial failure: %v\n", scanErr)
			}

			fmt.Println("\n=== Watch ===")
			if w, err := fsnotify.NewWatcher(); err != nil {
				fmt.Printf("  fsnotify UNAVAILABLE: %v\n", err)
			} else {
				w.Close()
				fmt.Println("  fsnotify: OK")
			}

			return nil
		},
	}
}

func checkDir(name, path string) {
	if info, err := os.Stat(path); err != nil {
		fmt.Printf("  %s: %s (NOT FOUND)\n", name, path)
	} else if !info.IsDir() {
		fmt.Printf("  %s: %s (NOT A DIRECTORY)\n", name, path)
	} else {
		fmt.Printf("  %s: %s (OK)\n", name, path)
	}
}
