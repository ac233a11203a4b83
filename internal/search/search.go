// Package search scans session bodies on demand. There is no inverted
// index to go stale: the corpus is bounded by local disk and every query
// reads current bytes.
package search

import (
	"bufio"
	"os"
	"regexp"
	"sort"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/sessiond-dev/sessiond/internal/provider"
	"github.com/sessiond-dev/sessiond/internal/session"
	"github.com/sessiond-dev/sessiond/internal/store"
)

const snippetContext = 30 // runes either side of the match

type Options struct {
	Query    string
	Provider string
	Limit    int
}

type Engine struct {
	store    *store.Store
	log      *zap.Logger
	minRunes int
	maxHits  int
}

func New(st *store.Store, minRunes, maxHits int, log *zap.Logger) *Engine {
	if minRunes <= 0 {
		minRunes = 2
	}
	if maxHits <= 0 {
		maxHits = 50
	}
	return &Engine{store: st, log: log, minRunes: minRunes, maxHits: maxHits}
}

// Search returns hits ordered by session recency, then match density.
// Queries below the minimum length return empty without touching a file.
func (e *Engine) Search(opts Options) []session.SearchHit {
	if utf8.RuneCountInString(strings.TrimSpace(opts.Query)) < e.minRunes {
		return nil
	}

	m := newMatcher(opts.Query)
	limit := opts.Limit
	if limit <= 0 || limit > e.maxHits {
		limit = e.maxHits
	}

	type scored struct {
		hit     session.SearchHit
		density int
	}
	var hits []scored

	// snapshot order is already most-recent-first, so the scan can stop
	// once enough recent sessions have matched
	for _, rec := range e.store.Snapshot().Sessions {
		if rec.IsDeleted {
			continue
		}
		if opts.Provider != "" && rec.Provider != opts.Provider {
			continue
		}

		snippet, density := e.matchSession(rec, m)
		if density == 0 {
			continue
		}
		hits = append(hits, scored{
			hit:     session.SearchHit{Session: rec, Snippet: snippet},
			density: density,
		})
		if len(hits) >= limit {
			break
		}
	}

	sort.SliceStable(hits, func(i, j int) bool {
		a, b := hits[i], hits[j]
		if !a.hit.Session.LastUpdated.Equal(b.hit.Session.LastUpdated) {
			return a.hit.Session.LastUpdated.After(b.hit.Session.LastUpdated)
		}
		return a.density > b.density
	})

	out := make([]session.SearchHit, len(hits))
	for i, h := range hits {
		out[i] = h.hit
	}
	return out
}

// matchSession checks the label first, then streams the file body. The
// snippet window always comes from the first match.
func (e *Engine) matchSession(rec session.Record, m *matcher) (snippet string, density int) {
	if n := m.count(rec.Label); n > 0 {
		return makeSnippet(rec.Label, m, snippetContext), n
	}

	f, err := os.Open(rec.FilePath)
	if err != nil {
		e.log.Debug("search open failed", zap.String("path", rec.FilePath), zap.Error(err))
		return "", 0
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), provider.MaxLineSize)

	for scanner.Scan() {
		line := scanner.Text()
		n := m.count(line)
		if n == 0 {
			continue
		}
		density += n
		if snippet == "" {
			snippet = makeSnippet(line, m, snippetContext)
		}
	}
	return snippet, density
}

// matcher is case-insensitive. The query compiles to a regexp when it
// contains metacharacters and is valid; anything else is a literal
// substring.
type matcher struct {
	literal string // lowercased, "" when regex
	re      *regexp.Regexp
}

func newMatcher(query string) *matcher {
	if query != regexp.QuoteMeta(query) {
		if re, err := regexp.Compile("(?i)" + query); err == nil {
			return &matcher{re: re}
		}
	}
	return &matcher{literal: strings.ToLower(query)}
}

// find returns the byte range of the first match.
func (m *matcher) find(text string) (start, end int, ok bool) {
	if m.re != nil {
		loc := m.re.FindStringIndex(text)
		if loc == nil {
			return 0, 0, false
		}
		return loc[0], loc[1], true
	}
	i := strings.Index(strings.ToLower(text), m.literal)
	if i < 0 {
		return 0, 0, false
	}
	return i, i + len(m.literal), true
}

func (m *matcher) count(text string) int {
	if m.re != nil {
		return len(m.re.FindAllStringIndex(text, -1))
	}
	if m.literal == "" {
		return 0
	}
	return strings.Count(strings.ToLower(text), m.literal)
}

// makeSnippet extracts a bounded window around the first match, wrapping
// the matched span with >>> and <<< markers.
func makeSnippet(text string, m *matcher, contextChars int) string {
	start, end, ok := m.find(text)
	if !ok {
		if len([]rune(text)) > contextChars*2 {
			return string([]rune(text)[:contextChars*2]) + "..."
		}
		return text
	}

	runes := []rune(text)
	runeStart := utf8.RuneCountInString(text[:start])
	runeEnd := utf8.RuneCountInString(text[:end])

	lo := runeStart - contextChars
	if lo < 0 {
		lo = 0
	}
	hi := runeEnd + contextChars
	if hi > len(runes) {
		hi = len(runes)
	}

	prefix, suffix := "", ""
	if lo > 0 {
		prefix = "..."
	}
	if hi < len(runes) {
		suffix = "..."
	}

	return prefix +
		string(runes[lo:runeStart]) +
		">>>" + string(runes[runeStart:runeEnd]) + "<<<" +
		string(runes[runeEnd:hi]) +
		suffix
}
