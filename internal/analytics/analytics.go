// Package analytics aggregates usage statistics by scanning the corpus
// directly. It shares adapters with the rest of the system but reads on
// its own path, independent of the index cache.
package analytics

import (
	"bufio"
	"context"
	"os"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/sessiond-dev/sessiond/internal/provider"
	"github.com/sessiond-dev/sessiond/internal/scan"
	"github.com/sessiond-dev/sessiond/internal/session"
)

type ToolCount struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

type TokenTotals struct {
	Input  int64 `json:"input"`
	Output int64 `json:"output"`
}

// Report is the aggregate view over every session in the filtered period.
type Report struct {
	TotalSessions      int            `json:"totalSessions"`
	TotalMessages      int            `json:"totalMessages"`
	SessionsPerDay     map[string]int `json:"sessionsPerDay"` // yyyy-mm-dd
	MessagesPerDay     map[string]int `json:"messagesPerDay"`
	ProviderBreakdown  map[string]int `json:"providerBreakdown"`
	TopTools           []ToolCount    `json:"topTools"`
	Tokens             TokenTotals    `json:"tokens"`
	LengthDistribution map[string]int `json:"lengthDistribution"`
	HourHeatmap        [24]int        `json:"hourHeatmap"`
}

type Options struct {
	Since    time.Time // zero = all time
	Provider string    // "" = all
}

type Engine struct {
	scanner *scan.Scanner
	reg     *provider.Registry
	roots   map[string][]string
	log     *zap.Logger
}

func New(scanner *scan.Scanner, reg *provider.Registry, roots map[string][]string, log *zap.Logger) *Engine {
	return &Engine{scanner: scanner, reg: reg, roots: roots, log: log}
}

// Report scans the corpus and aggregates. Per-root failures degrade that
// provider's contribution; the report is built from whatever scanned.
func (e *Engine) Report(ctx context.Context, opts Options) (*Report, error) {
	rep := &Report{
		SessionsPerDay:     map[string]int{},
		MessagesPerDay:     map[string]int{},
		ProviderBreakdown:  map[string]int{},
		LengthDistribution: map[string]int{},
	}
	tools := map[string]int{}

	for prov, roots := range e.roots {
		if opts.Provider != "" && prov != opts.Provider {
			continue
		}
		adapter, ok := e.reg.ByName(prov)
		if !ok {
			continue
		}
		for _, root := range roots {
			if root == "" {
				continue
			}
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			recs, err := e.scanner.ScanRoot(prov, root)
			if err != nil {
				e.log.Warn("analytics scan failed",
					zap.String("provider", prov), zap.String("root", root), zap.Error(err))
				continue
			}
			for _, rec := range recs {
				if rec.IsDeleted {
					continue
				}
				if !opts.Since.IsZero() && rec.LastUpdated.Before(opts.Since) {
					continue
				}
				e.aggregateSession(rep, tools, rec, adapter, opts)
			}
		}
	}

	for name, n := range tools {
		rep.TopTools = append(rep.TopTools, ToolCount{Name: name, Count: n})
	}
	sort.Slice(rep.TopTools, func(i, j int) bool {
		if rep.TopTools[i].Count != rep.TopTools[j].Count {
			return rep.TopTools[i].Count > rep.TopTools[j].Count
		}
		return rep.TopTools[i].Name < rep.TopTools[j].Name
	})
	if len(rep.TopTools) > 10 {
		rep.TopTools = rep.TopTools[:10]
	}

	return rep, nil
}

func (e *Engine) aggregateSession(rep *Report, tools map[string]int, rec session.Record, adapter provider.Adapter, opts Options) {
	f, err := os.Open(rec.FilePath)
	if err != nil {
		e.log.Debug("analytics open failed", zap.String("path", rec.FilePath), zap.Error(err))
		return
	}
	defer f.Close()

	rep.TotalSessions++
	rep.ProviderBreakdown[rec.Provider]++
	rep.SessionsPerDay[rec.LastUpdated.Format("2006-01-02")]++

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), provider.MaxLineSize)

	msgCount := 0
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		msg, ok := adapter.ParseLine(line)
		if !ok || msg.Message == nil {
			continue
		}
		if !opts.Since.IsZero() && !msg.Timestamp.IsZero() && msg.Timestamp.Before(opts.Since) {
			continue
		}
		msgCount++
		rep.TotalMessages++
		if !msg.Timestamp.IsZero() {
			rep.MessagesPerDay[msg.Timestamp.Format("2006-01-02")]++
			rep.HourHeatmap[msg.Timestamp.Hour()]++
		}
		for _, b := range msg.Message.Content {
			if b.Type == session.BlockToolUse && b.ToolName != "" {
				tools[b.ToolName]++
			}
		}
		addTokens(&rep.Tokens, msg.Message.Usage)
	}

	rep.LengthDistribution[lengthBucket(msgCount)]++
}

func addTokens(t *TokenTotals, usage map[string]any) {
	if usage == nil {
		return
	}
	if v, ok := usage["input_tokens"].(float64); ok {
		t.Input += int64(v)
	}
	if v, ok := usage["output_tokens"].(float64); ok {
		t.Output += int64(v)
	}
}

func lengthBucket(n int) string {
	switch {
	case n <= 10:
		return "1-10"
	case n <= 50:
		return "11-50"
	case n <= 200:
		return "51-200"
	default:
		return "200+"
	}
}
