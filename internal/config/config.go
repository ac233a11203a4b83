package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
)

type Config struct {
	ClaudeRoots []string `toml:"claude_roots"`
	CodexRoots  []string `toml:"codex_roots"`
	GeminiRoots []string `toml:"gemini_roots"`
	ExtraRoots  []string `toml:"extra_roots"` // generic JSONL roots

	ListenAddr string `toml:"listen_addr"`

	TruncateBytes  int `toml:"truncate_bytes"`   // redaction cap per string value
	SearchMinRunes int `toml:"search_min_runes"` // queries below this return empty
	SearchLimit    int `toml:"search_limit"`

	DebounceMs      int `toml:"debounce_ms"`
	KeepAliveSec    int `toml:"keepalive_sec"`
	ActiveWindowSec int `toml:"active_window_sec"`

	MaxScanDepth  int `toml:"max_scan_depth"`
	MaxDirEntries int `toml:"max_dir_entries"`
}

func Load() (*Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, err
	}

	cfg := Default(home)

	cfgPath := filepath.Join(home, ".config", "sessiond", "config.toml")
	if _, err := os.Stat(cfgPath); err == nil {
		if _, err := toml.DecodeFile(cfgPath, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", cfgPath, err)
		}
	}

	// expand ~ in paths
	for _, roots := range [][]string{cfg.ClaudeRoots, cfg.CodexRoots, cfg.GeminiRoots, cfg.ExtraRoots} {
		for i, p := range roots {
			roots[i] = expandHome(p, home)
		}
	}

	return cfg, nil
}

// Default returns the built-in configuration rooted at home.
func Default(home string) *Config {
	return &Config{
		ClaudeRoots: []string{filepath.Join(home, ".claude", "projects")},
		CodexRoots:  []string{filepath.Join(home, ".codex", "sessions")},
		GeminiRoots: []string{filepath.Join(home, ".gemini", "tmp")},

		ListenAddr: "127.0.0.1:8320",

		TruncateBytes:  4096,
		SearchMinRunes: 2,
		SearchLimit:    50,

		DebounceMs:      250,
		KeepAliveSec:    30,
		ActiveWindowSec: 120,

		MaxScanDepth:  8,
		MaxDirEntries: 10000,
	}
}

func (c *Config) Debounce() time.Duration {
	return time.Duration(c.DebounceMs) * time.Millisecond
}

func (c *Config) KeepAlive() time.Duration {
	return time.Duration(c.KeepAliveSec) * time.Second
}

func (c *Config) ActiveWindow() time.Duration {
	return time.Duration(c.ActiveWindowSec) * time.Second
}

// Roots returns provider name -> configured roots for every provider.
func (c *Config) Roots() map[string][]string {
	return map[string][]string{
		"claude":  c.ClaudeRoots,
		"codex":   c.CodexRoots,
		"gemini":  c.GeminiRoots,
		"generic": c.ExtraRoots,
	}
}

func expandHome(path, home string) string {
	if len(path) > 1 && path[0] == '~' && path[1] == '/' {
		return filepath.Join(home, path[2:])
	}
	return path
}
