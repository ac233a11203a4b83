// Package load parses one session's full message sequence on demand. No
// parsed messages are cached across calls: every load re-reads the file,
// trading CPU for bounded memory.
package load

import (
	"bufio"
	"context"
	"os"

	"go.uber.org/zap"

	"github.com/sessiond-dev/sessiond/internal/provider"
	"github.com/sessiond-dev/sessiond/internal/session"
	"github.com/sessiond-dev/sessiond/internal/store"
)

type Loader struct {
	store         *store.Store
	reg           *provider.Registry
	log           *zap.Logger
	truncateBytes int
}

func NewLoader(st *store.Store, reg *provider.Registry, truncateBytes int, log *zap.Logger) *Loader {
	if truncateBytes <= 0 {
		truncateBytes = 4096
	}
	return &Loader{store: st, reg: reg, log: log, truncateBytes: truncateBytes}
}

// Load returns the full ordered message sequence for a session. Unless
// full is set, every string value is bounded by the configured truncation
// length. Results stay correct mid-rescan because the raw file, not the
// index, is the source of truth.
func (l *Loader) Load(ctx context.Context, providerName, sessionID string, full bool) ([]session.NormalizedMessage, error) {
	rec, ok := l.store.Resolve(providerName, sessionID)
	if !ok {
		// the index may simply not have caught up; rescan once
		if err := l.store.Refresh(ctx); err != nil {
			l.log.Debug("refresh during resolve", zap.Error(err))
		}
		rec, ok = l.store.Resolve(providerName, sessionID)
		if !ok {
			return nil, session.ErrNotFound
		}
	}

	adapter, ok := l.reg.ByName(rec.Provider)
	if !ok {
		adapter, ok = l.reg.ForPath(rec.FilePath)
		if !ok {
			return nil, session.ErrNotFound
		}
	}

	msgs, err := parseFile(rec.FilePath, adapter)
	if err != nil {
		return nil, err
	}

	if !full {
		for i := range msgs {
			redactMessage(&msgs[i], l.truncateBytes)
		}
	}
	return msgs, nil
}

// parseFile runs every line of path through the adapter. Malformed lines
// are skipped, never fatal.
func parseFile(path string, adapter provider.Adapter) ([]session.NormalizedMessage, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, session.ErrNotFound
		}
		return nil, &session.IOError{Op: "open", Path: path, Err: err}
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), provider.MaxLineSize)

	var msgs []session.NormalizedMessage
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		msg, ok := adapter.ParseLine(line)
		if !ok {
			continue
		}
		msgs = append(msgs, *msg)
	}
	if err := scanner.Err(); err != nil {
		return nil, &session.IOError{Op: "read", Path: path, Err: err}
	}
	return msgs, nil
}
