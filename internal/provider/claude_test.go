package provider

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sessiond-dev/sessiond/internal/session"
)

func TestClaudeDetect(t *testing.T) {
	a := &ClaudeAdapter{}

	tests := []struct {
		path string
		want bool
	}{
		{"/home/u/.claude/projects/-home-u-repo/abc.jsonl", true},
		{"/var/data/projects/p1/session.jsonl", true},
		{"/home/u/.claude/projects/p1/sessions-index.jsonl", false},
		{"/home/u/.claude/projects/p1/notes.txt", false},
		{"/home/u/.codex/sessions/rollout-x.jsonl", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, a.Detect(tt.path), tt.path)
	}
}

func TestClaudeSessionMeta(t *testing.T) {
	a := &ClaudeAdapter{}

	rec := a.SessionMeta("/root/.claude/projects/-root-repo/abc-def.jsonl")
	assert.Equal(t, "abc-def", rec.SessionID)
	assert.Equal(t, "claude:abc-def", rec.Key)
	assert.Equal(t, "claude", rec.Provider)
	assert.Equal(t, "-root-repo", rec.Label)
	assert.Empty(t, rec.ParentSessionID)

	child := a.SessionMeta("/root/.claude/projects/-root-repo/parent-1/subagents/child-1.jsonl")
	assert.Equal(t, "child-1", child.SessionID)
	assert.Equal(t, "parent-1", child.ParentSessionID)
	assert.True(t, child.IsSidechain)
}

func TestClaudeParseLine(t *testing.T) {
	a := &ClaudeAdapter{}

	t.Run("user string content", func(t *testing.T) {
		line := `{"type":"user","timestamp":"2025-03-01T10:00:00Z","message":{"role":"user","content":"How do I sort a slice?"}}`
		msg, ok := a.ParseLine([]byte(line))
		require.True(t, ok)
		assert.Equal(t, "user", msg.Type)
		assert.Equal(t, time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC), msg.Timestamp)
		require.NotNil(t, msg.Message)
		assert.Equal(t, "user", msg.Message.Role)
		require.Len(t, msg.Message.Content, 1)
		assert.Equal(t, session.BlockText, msg.Message.Content[0].Type)
		assert.Equal(t, "How do I sort a slice?", msg.Message.Content[0].Text)
	})

	t.Run("assistant block array", func(t *testing.T) {
		line := `{"type":"assistant","message":{"role":"assistant","model":"m-large","usage":{"input_tokens":12,"output_tokens":7},"content":[{"type":"thinking","thinking":"consider sort.Slice"},{"type":"text","text":"Use sort.Slice."},{"type":"tool_use","id":"toolu_01","name":"Bash","input":{"command":"go doc sort.Slice"}}]}}`
		msg, ok := a.ParseLine([]byte(line))
		require.True(t, ok)
		require.NotNil(t, msg.Message)
		require.Len(t, msg.Message.Content, 3)
		assert.Equal(t, session.BlockThinking, msg.Message.Content[0].Type)
		assert.Equal(t, "consider sort.Slice", msg.Message.Content[0].Text)
		assert.Equal(t, session.BlockText, msg.Message.Content[1].Type)

		tool := msg.Message.Content[2]
		assert.Equal(t, session.BlockToolUse, tool.Type)
		assert.Equal(t, "toolu_01", tool.ToolID)
		assert.Equal(t, "Bash", tool.ToolName)
		input, ok := tool.Input.(map[string]any)
		require.True(t, ok)
		assert.Equal(t, "go doc sort.Slice", input["command"])

		assert.Equal(t, "m-large", msg.Message.Model)
		assert.Equal(t, "m-large", msg.ModelChange)
		assert.Equal(t, float64(12), msg.Message.Usage["input_tokens"])
	})

	t.Run("tool result", func(t *testing.T) {
		line := `{"type":"user","message":{"role":"user","content":[{"type":"tool_result","tool_use_id":"toolu_01","content":"exit 0","is_error":false}]}}`
		msg, ok := a.ParseLine([]byte(line))
		require.True(t, ok)
		require.Len(t, msg.Message.Content, 1)
		b := msg.Message.Content[0]
		assert.Equal(t, session.BlockToolResult, b.Type)
		assert.Equal(t, "toolu_01", b.ToolID)
		assert.Equal(t, "exit 0", b.Result)
		assert.False(t, b.IsError)
	})

	t.Run("summary", func(t *testing.T) {
		msg, ok := a.ParseLine([]byte(`{"type":"summary","summary":"Fix the build"}`))
		require.True(t, ok)
		assert.Equal(t, "summary", msg.Type)
		assert.Equal(t, "Fix the build", msg.CustomEvent)
		assert.Nil(t, msg.Message)
	})

	t.Run("compact boundary", func(t *testing.T) {
		msg, ok := a.ParseLine([]byte(`{"type":"system","subtype":"compact_boundary"}`))
		require.True(t, ok)
		assert.Equal(t, "system", msg.Type)
		assert.True(t, msg.Compaction)
	})

	t.Run("sidechain markers", func(t *testing.T) {
		line := `{"type":"user","isSidechain":true,"parentSessionId":"parent-1","teamName":"builders","message":{"role":"user","content":"go"}}`
		msg, ok := a.ParseLine([]byte(line))
		require.True(t, ok)
		assert.True(t, msg.IsSidechain)
		assert.Equal(t, "parent-1", msg.ParentSessionID)
		assert.Equal(t, "builders", msg.TeamName)
	})

	t.Run("skipped lines", func(t *testing.T) {
		skipped := []string{
			``,
			`not json at all`,
			`{"type":"user","isMeta":true,"message":{"role":"user","content":"caveat"}}`,
			`{"type":"user","message":{"role":"user","content":""}}`,
			`{"type":"summary","summary":""}`,
			`{"type":"unknown_kind"}`,
			`{"type":"user","message":"broken`,
		}
		for _, line := range skipped {
			_, ok := a.ParseLine([]byte(line))
			assert.False(t, ok, "line should be skipped: %s", line)
		}
	})
}
