package config

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default("/home/u")

	assert.Equal(t, []string{filepath.Join("/home/u", ".claude", "projects")}, cfg.ClaudeRoots)
	assert.Equal(t, []string{filepath.Join("/home/u", ".codex", "sessions")}, cfg.CodexRoots)
	assert.Equal(t, []string{filepath.Join("/home/u", ".gemini", "tmp")}, cfg.GeminiRoots)
	assert.Empty(t, cfg.ExtraRoots)

	assert.Equal(t, "127.0.0.1:8320", cfg.ListenAddr)
	assert.Equal(t, 4096, cfg.TruncateBytes)
	assert.Equal(t, 2, cfg.SearchMinRunes)
	assert.Equal(t, 50, cfg.SearchLimit)

	assert.Equal(t, 250*time.Millisecond, cfg.Debounce())
	assert.Equal(t, 30*time.Second, cfg.KeepAlive())
	assert.Equal(t, 2*time.Minute, cfg.ActiveWindow())
}

func TestRoots(t *testing.T) {
	cfg := &Config{
		ClaudeRoots: []string{"/a"},
		CodexRoots:  []string{"/b"},
		GeminiRoots: []string{"/c"},
		ExtraRoots:  []string{"/d", "/e"},
	}

	roots := cfg.Roots()
	require.Len(t, roots, 4)
	assert.Equal(t, []string{"/a"}, roots["claude"])
	assert.Equal(t, []string{"/b"}, roots["codex"])
	assert.Equal(t, []string{"/c"}, roots["gemini"])
	assert.Equal(t, []string{"/d", "/e"}, roots["generic"])
}

func TestExpandHome(t *testing.T) {
	assert.Equal(t, filepath.Join("/home/u", "x", "y"), expandHome("~/x/y", "/home/u"))
	assert.Equal(t, "/abs/path", expandHome("/abs/path", "/home/u"))
	assert.Equal(t, "~", expandHome("~", "/home/u"))
	assert.Equal(t, "rel", expandHome("rel", "/home/u"))
}
