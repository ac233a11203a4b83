// Package scan enumerates provider roots and derives per-session catalog
// records without fully parsing any file.
package scan

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/sessiond-dev/sessiond/internal/provider"
	"github.com/sessiond-dev/sessiond/internal/session"
)

// TrashDir is the sibling directory reversible deletes move files into.
const TrashDir = ".trash"

const (
	headSampleBytes = 64 * 1024
	tailSampleBytes = 64 * 1024
)

var excludeSuffixes = []string{".lock", ".bak", ".tmp"}

type Scanner struct {
	reg        *provider.Registry
	log        *zap.Logger
	maxDepth   int
	maxEntries int
}

func New(reg *provider.Registry, log *zap.Logger, maxDepth, maxEntries int) *Scanner {
	if maxDepth <= 0 {
		maxDepth = 8
	}
	if maxEntries <= 0 {
		maxEntries = 10000
	}
	return &Scanner{reg: reg, log: log, maxDepth: maxDepth, maxEntries: maxEntries}
}

// ScanRoot walks one provider root and returns its records ordered by
// recency. Unreadable files degrade to skips; only a missing or unreadable
// root itself is an error.
func (s *Scanner) ScanRoot(providerName, root string) ([]session.Record, error) {
	adapter, ok := s.reg.ByName(providerName)
	if !ok {
		return nil, session.ErrInvalidInput
	}

	var recs []session.Record
	if err := s.walk(root, 0, false, adapter, &recs); err != nil {
		return nil, err
	}

	recs = ResolveDuplicates(recs)
	linkChildren(recs)

	sort.Slice(recs, func(i, j int) bool {
		return recs[i].LastUpdated.After(recs[j].LastUpdated)
	})
	return recs, nil
}

func (s *Scanner) walk(dir string, depth int, inTrash bool, adapter provider.Adapter, out *[]session.Record) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if depth == 0 {
			return err
		}
		s.log.Debug("skip unreadable dir", zap.String("dir", dir), zap.Error(err))
		return nil
	}
	if len(entries) > s.maxEntries {
		entries = entries[:s.maxEntries]
	}

	for _, e := range entries {
		name := e.Name()
		path := filepath.Join(dir, name)

		if e.IsDir() {
			if depth+1 > s.maxDepth {
				continue
			}
			if name == TrashDir {
				// trashed sessions stay in the catalog, flagged deleted
				if err := s.walk(path, depth+1, true, adapter, out); err != nil {
					return err
				}
				continue
			}
			if strings.HasPrefix(name, ".") {
				continue
			}
			if err := s.walk(path, depth+1, inTrash, adapter, out); err != nil {
				return err
			}
			continue
		}

		if excluded(name) {
			continue
		}
		if filepath.Ext(name) != ".jsonl" {
			continue
		}

		rec, ok := s.describe(path, adapter)
		if !ok {
			continue
		}
		rec.IsDeleted = rec.IsDeleted || inTrash
		*out = append(*out, rec)
	}
	return nil
}

func excluded(name string) bool {
	if strings.HasPrefix(name, ".") {
		return true
	}
	if strings.Contains(name, "sessions-index") {
		return true
	}
	for _, suf := range excludeSuffixes {
		if strings.HasSuffix(name, suf) {
			return true
		}
	}
	return false
}

// describe builds a record from path metadata plus bounded head and tail
// samples. No full parse happens here.
func (s *Scanner) describe(path string, adapter provider.Adapter) (session.Record, bool) {
	rec := adapter.SessionMeta(path)

	info, err := os.Stat(path)
	if err != nil {
		s.log.Debug("skip unreadable file", zap.String("path", path), zap.Error(err))
		return rec, false
	}
	rec.LastUpdated = info.ModTime()
	rec.SizeBytes = info.Size()

	// head sample: explicit parent/team/sidechain markers live in the
	// first records a producer writes
	if lines, err := headSample(path, headSampleBytes); err == nil {
		for _, line := range lines {
			msg, ok := adapter.ParseLine(line)
			if !ok {
				continue
			}
			if msg.ParentSessionID != "" && rec.ParentSessionID == "" {
				rec.ParentSessionID = msg.ParentSessionID
			}
			if msg.TeamName != "" && rec.TeamName == "" {
				rec.TeamName = msg.TeamName
			}
			if msg.IsSidechain {
				rec.IsSidechain = true
			}
			if msg.Type == "summary" && msg.CustomEvent != "" {
				rec.Label = msg.CustomEvent
			}
		}
	}

	// tail sample: preview, compaction markers, approximate message count
	lines, size, err := tailSample(path, tailSampleBytes)
	if err != nil {
		s.log.Debug("tail read failed", zap.String("path", path), zap.Error(err))
		return rec, true
	}

	var sampledBytes int64
	parsed := 0
	for _, line := range lines {
		sampledBytes += int64(len(line)) + 1
		msg, ok := adapter.ParseLine(line)
		if !ok {
			continue
		}
		parsed++
		if msg.Compaction {
			rec.CompactionCount++
		}
		if msg.TeamName != "" && rec.TeamName == "" {
			rec.TeamName = msg.TeamName
		}
		if p := previewText(msg); p != "" {
			rec.Preview = p
		}
	}

	if size <= tailSampleBytes {
		// sample covered the whole file: count is exact, and a trailing
		// partial line was already excluded
		rec.MessageCount = parsed
	} else {
		rec.MessageCount = approximateCount(parsed, sampledBytes, size)
	}
	if rec.Preview == "" {
		rec.Preview = rec.Label
	}
	return rec, true
}

// approximateCount extrapolates the sampled message density across the
// whole file. Exact when the sample covered the entire file.
func approximateCount(parsed int, sampledBytes, totalBytes int64) int {
	if parsed == 0 || sampledBytes == 0 {
		return 0
	}
	if sampledBytes >= totalBytes {
		return parsed
	}
	return int(float64(parsed) * float64(totalBytes) / float64(sampledBytes))
}

func previewText(msg *session.NormalizedMessage) string {
	if msg.Message == nil {
		return ""
	}
	for _, b := range msg.Message.Content {
		if b.Type == session.BlockText && b.Text != "" {
			t := strings.ReplaceAll(b.Text, "\n", " ")
			if len(t) > 200 {
				t = t[:200]
			}
			return strings.TrimSpace(t)
		}
	}
	return ""
}

// ResolveDuplicates keeps the most recently modified file per session key
// and flags the losers deleted so they are suppressed, not dropped. The
// same pass runs per root and again across roots after a merge.
func ResolveDuplicates(recs []session.Record) []session.Record {
	newest := make(map[string]int, len(recs))
	for i, r := range recs {
		j, seen := newest[r.Key]
		if !seen {
			newest[r.Key] = i
			continue
		}
		if r.LastUpdated.After(recs[j].LastUpdated) {
			recs[j].IsDeleted = true
			newest[r.Key] = i
		} else {
			recs[i].IsDeleted = true
		}
	}
	return recs
}

// linkChildren marks parents whose id some other record points at.
func linkChildren(recs []session.Record) {
	byID := make(map[string]int, len(recs))
	for i, r := range recs {
		byID[r.SessionID] = i
	}
	for _, r := range recs {
		if r.ParentSessionID == "" {
			continue
		}
		if j, ok := byID[r.ParentSessionID]; ok {
			recs[j].HasSubagents = true
		}
	}
}
