// Package provider holds one format adapter per producing CLI tool. Each
// adapter detects its own files by path pattern and normalizes raw log
// lines into the shared envelope. Parse failures are skips, never errors:
// one corrupt line must not invalidate a session.
package provider

import (
	"time"

	"github.com/sessiond-dev/sessiond/internal/session"
)

// MaxLineSize bounds a single raw record. Lines beyond it are skipped.
const MaxLineSize = 10 * 1024 * 1024 // 10MB

type Adapter interface {
	// Name is the provider namespace ("claude", "codex", ...).
	Name() string

	// Detect reports whether path belongs to this provider. Filename and
	// path-segment based only; no content sniffing.
	Detect(path string) bool

	// ParseLine normalizes one raw line. ok=false means skip the line.
	ParseLine(line []byte) (msg *session.NormalizedMessage, ok bool)

	// SessionMeta derives the path-only parts of a catalog record:
	// session id, provider, and label. Everything else is the scanner's.
	SessionMeta(path string) session.Record
}

// Registry resolves the adapter for a path. Order matters: the generic
// fallback must come last.
type Registry struct {
	adapters []Adapter
}

func NewRegistry() *Registry {
	return &Registry{adapters: []Adapter{
		&ClaudeAdapter{},
		&CodexAdapter{},
		&GeminiAdapter{},
		&GenericAdapter{},
	}}
}

func (r *Registry) ForPath(path string) (Adapter, bool) {
	for _, a := range r.adapters {
		if a.Detect(path) {
			return a, true
		}
	}
	return nil, false
}

func (r *Registry) ByName(name string) (Adapter, bool) {
	for _, a := range r.adapters {
		if a.Name() == name {
			return a, true
		}
	}
	return nil, false
}

func (r *Registry) All() []Adapter {
	return r.adapters
}

func parseTimestamp(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t
	}
	if t, err := time.Parse("2006-01-02T15:04:05", s); err == nil {
		return t
	}
	return time.Time{}
}
