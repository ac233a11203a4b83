package scan

import (
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sessiond-dev/sessiond/internal/provider"
	"github.com/sessiond-dev/sessiond/internal/session"
)

func newTestScanner() *Scanner {
	return New(provider.NewRegistry(), zap.NewNop(), 0, 0)
}

func userLine(text string) string {
	return `{"type":"user","timestamp":"2025-03-01T10:00:00Z","message":{"role":"user","content":` + strconv.Quote(text) + `}}` + "\n"
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func findRecord(recs []session.Record, id string) (session.Record, bool) {
	for _, r := range recs {
		if r.SessionID == id {
			return r, true
		}
	}
	return session.Record{}, false
}

func TestScanRootExcludesNonSessionFiles(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "proj", "foo.jsonl"), userLine("hello"))
	writeFile(t, filepath.Join(root, "proj", "foo.jsonl.lock"), "")
	writeFile(t, filepath.Join(root, "proj", "foo.jsonl.bak"), userLine("stale"))
	writeFile(t, filepath.Join(root, "proj", "foo.jsonl.tmp"), userLine("stale"))
	writeFile(t, filepath.Join(root, "proj", ".hidden.jsonl"), userLine("stale"))
	writeFile(t, filepath.Join(root, "proj", "sessions-index.jsonl"), "{}\n")
	writeFile(t, filepath.Join(root, "proj", "notes.txt"), "not a session")

	recs, err := newTestScanner().ScanRoot("claude", root)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "foo", recs[0].SessionID)
	assert.Equal(t, "claude:foo", recs[0].Key)
	assert.Equal(t, 1, recs[0].MessageCount)
	assert.Equal(t, "hello", recs[0].Preview)
}

func TestScanRootIgnoresTrailingPartialLine(t *testing.T) {
	root := t.TempDir()
	content := userLine("first question") +
		userLine("second question") +
		`{"type":"user","message":{"role":"user","content":"still being writ`
	writeFile(t, filepath.Join(root, "proj", "s1.jsonl"), content)

	recs, err := newTestScanner().ScanRoot("claude", root)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, 2, recs[0].MessageCount)
	assert.Equal(t, "second question", recs[0].Preview)
}

func TestScanRootLabelFromSummary(t *testing.T) {
	root := t.TempDir()
	content := `{"type":"summary","summary":"Fix the flaky test"}` + "\n" + userLine("hi")
	writeFile(t, filepath.Join(root, "proj", "s1.jsonl"), content)

	recs, err := newTestScanner().ScanRoot("claude", root)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "Fix the flaky test", recs[0].Label)
}

func TestScanRootDuplicateKeepsNewest(t *testing.T) {
	root := t.TempDir()
	older := filepath.Join(root, "proj1", "s1.jsonl")
	newer := filepath.Join(root, "proj2", "s1.jsonl")
	writeFile(t, older, userLine("old copy"))
	writeFile(t, newer, userLine("new copy"))

	past := time.Now().Add(-time.Hour)
	require.NoError(t, os.Chtimes(older, past, past))

	recs, err := newTestScanner().ScanRoot("claude", root)
	require.NoError(t, err)
	require.Len(t, recs, 2)

	winner := recs[0] // ordered by recency
	assert.Equal(t, newer, winner.FilePath)
	assert.False(t, winner.IsDeleted)
	assert.True(t, recs[1].IsDeleted)
}

func TestScanRootTrashIsFlaggedDeleted(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "proj", "live.jsonl"), userLine("live"))
	writeFile(t, filepath.Join(root, "proj", TrashDir, "gone.jsonl"), userLine("gone"))

	recs, err := newTestScanner().ScanRoot("claude", root)
	require.NoError(t, err)
	require.Len(t, recs, 2)

	live, ok := findRecord(recs, "live")
	require.True(t, ok)
	assert.False(t, live.IsDeleted)

	gone, ok := findRecord(recs, "gone")
	require.True(t, ok)
	assert.True(t, gone.IsDeleted)
}

func TestScanRootLinksSubagents(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "proj", "parent-1.jsonl"), userLine("main thread"))
	writeFile(t, filepath.Join(root, "proj", "parent-1", "subagents", "child-1.jsonl"), userLine("spawned work"))

	recs, err := newTestScanner().ScanRoot("claude", root)
	require.NoError(t, err)
	require.Len(t, recs, 2)

	parent, ok := findRecord(recs, "parent-1")
	require.True(t, ok)
	assert.True(t, parent.HasSubagents)

	child, ok := findRecord(recs, "child-1")
	require.True(t, ok)
	assert.Equal(t, "parent-1", child.ParentSessionID)
	assert.True(t, child.IsSidechain)
}

func TestScanRootMissingRoot(t *testing.T) {
	_, err := newTestScanner().ScanRoot("claude", filepath.Join(t.TempDir(), "nope"))
	assert.Error(t, err)
}

func TestScanRootUnknownProvider(t *testing.T) {
	_, err := newTestScanner().ScanRoot("mystery", t.TempDir())
	assert.ErrorIs(t, err, session.ErrInvalidInput)
}

func TestApproximateCount(t *testing.T) {
	assert.Equal(t, 0, approximateCount(0, 0, 100))
	assert.Equal(t, 5, approximateCount(5, 100, 100))
	assert.Equal(t, 5, approximateCount(5, 200, 100))
	assert.Equal(t, 10, approximateCount(5, 50, 100))
}
