// Package store is the versioned in-memory catalog of session records.
// Readers always see an atomically swapped, internally consistent
// snapshot; a rebuild publishes nothing until it has fully completed.
package store

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sessiond-dev/sessiond/internal/scan"
	"github.com/sessiond-dev/sessiond/internal/session"
)

// Snapshot is one immutable generation of the catalog, ordered by recency.
type Snapshot struct {
	Generation uint64
	BuiltAt    time.Time
	Sessions   []session.Record

	byKey map[string]int
}

// Find returns the live record for a provider-namespaced key. Trashed and
// superseded records are not found.
func (s *Snapshot) Find(provider, sessionID string) (session.Record, bool) {
	i, ok := s.byKey[session.Key(provider, sessionID)]
	if !ok {
		return session.Record{}, false
	}
	return s.Sessions[i], true
}

// ChildrenOf returns the session ids recorded as children of parentID.
func (s *Snapshot) ChildrenOf(parentID string) []session.Record {
	var kids []session.Record
	for _, r := range s.Sessions {
		if r.ParentSessionID == parentID {
			kids = append(kids, r)
		}
	}
	return kids
}

type Store struct {
	scanner *scan.Scanner
	roots   map[string][]string // provider -> roots
	log     *zap.Logger

	mu   sync.Mutex // serializes rebuilds
	gen  uint64
	snap atomic.Pointer[Snapshot]
}

func New(scanner *scan.Scanner, roots map[string][]string, log *zap.Logger) *Store {
	st := &Store{scanner: scanner, roots: roots, log: log}
	st.snap.Store(&Snapshot{byKey: map[string]int{}})
	return st
}

// Refresh rebuilds the catalog from disk and publishes a new snapshot.
// A failing provider root degrades to its previous absence rather than
// blocking the others; the partial failure is reported after publication.
func (st *Store) Refresh(ctx context.Context) error {
	st.mu.Lock()
	defer st.mu.Unlock()

	type rootResult struct {
		provider string
		recs     []session.Record
		err      error
	}

	var (
		resMu   sync.Mutex
		results []rootResult
	)

	g, ctx := errgroup.WithContext(ctx)
	for prov, roots := range st.roots {
		for _, root := range roots {
			prov, root := prov, root
			if root == "" {
				continue
			}
			g.Go(func() error {
				if err := ctx.Err(); err != nil {
					return err
				}
				recs, err := st.scanner.ScanRoot(prov, root)
				resMu.Lock()
				results = append(results, rootResult{prov, recs, err})
				resMu.Unlock()
				// scan errors are collected, not propagated: one bad
				// root must not cancel its siblings
				return nil
			})
		}
	}
	if err := g.Wait(); err != nil {
		return err
	}

	var all []session.Record
	failed := map[string]error{}
	for _, res := range results {
		if res.err != nil {
			if _, dup := failed[res.provider]; !dup {
				failed[res.provider] = res.err
			}
			st.log.Warn("provider root scan failed",
				zap.String("provider", res.provider), zap.Error(res.err))
			continue
		}
		all = append(all, res.recs...)
	}

	// per-root duplicate resolution cannot see across roots: when one
	// provider has several configured roots, the same session id may
	// survive in each, so the newest-wins pass runs again on the merge
	all = scan.ResolveDuplicates(all)

	sort.Slice(all, func(i, j int) bool {
		return all[i].LastUpdated.After(all[j].LastUpdated)
	})

	st.gen++
	next := &Snapshot{
		Generation: st.gen,
		BuiltAt:    time.Now(),
		Sessions:   all,
		byKey:      make(map[string]int, len(all)),
	}
	for i, r := range all {
		// the key index serves live records only; trashed and superseded
		// copies stay reachable through List with IncludeDeleted
		if r.IsDeleted {
			continue
		}
		if _, seen := next.byKey[r.Key]; !seen {
			next.byKey[r.Key] = i
		}
	}
	st.snap.Store(next)

	st.log.Info("index refreshed",
		zap.Uint64("generation", next.Generation),
		zap.Int("sessions", len(all)),
		zap.Int("failedRoots", len(failed)))

	if len(failed) > 0 {
		return &session.PartialScanError{Failed: failed}
	}
	return nil
}

// Snapshot returns the latest published generation. Never nil.
func (st *Store) Snapshot() *Snapshot {
	return st.snap.Load()
}

// ListOptions filter the session listing. Zero values mean no filter.
type ListOptions struct {
	Provider       string
	Since          time.Time
	Limit          int
	IncludeDeleted bool
}

// List serves the ordered-by-recency view from the current snapshot.
func (st *Store) List(opts ListOptions) []session.Record {
	snap := st.Snapshot()
	out := make([]session.Record, 0, len(snap.Sessions))
	for _, r := range snap.Sessions {
		if !opts.IncludeDeleted && r.IsDeleted {
			continue
		}
		if opts.Provider != "" && r.Provider != opts.Provider {
			continue
		}
		if !opts.Since.IsZero() && r.LastUpdated.Before(opts.Since) {
			continue
		}
		out = append(out, r)
		if opts.Limit > 0 && len(out) >= opts.Limit {
			break
		}
	}
	return out
}

// Resolve finds a session by id, trying the given provider first and then
// every provider namespace.
func (st *Store) Resolve(provider, sessionID string) (session.Record, bool) {
	snap := st.Snapshot()
	if provider != "" {
		return snap.Find(provider, sessionID)
	}
	for _, r := range snap.Sessions {
		if r.SessionID == sessionID && !r.IsDeleted {
			return r, true
		}
	}
	return session.Record{}, false
}
