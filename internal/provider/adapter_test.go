package provider

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sessiond-dev/sessiond/internal/session"
)

func TestRegistryForPath(t *testing.T) {
	reg := NewRegistry()

	tests := []struct {
		path string
		want string
	}{
		{"/home/u/.claude/projects/-home-u-repo/abc.jsonl", "claude"},
		{"/home/u/.codex/sessions/2025/03/01/rollout-2025-03-01T10-00-00-abc.jsonl", "codex"},
		{"/home/u/.gemini/tmp/hash/chats/session-123.jsonl", "gemini"},
		{"/data/exports/transcript.jsonl", "generic"},
	}
	for _, tt := range tests {
		a, ok := reg.ForPath(tt.path)
		require.True(t, ok, tt.path)
		assert.Equal(t, tt.want, a.Name(), tt.path)
	}

	_, ok := reg.ForPath("/data/exports/readme.md")
	assert.False(t, ok)
}

func TestRegistryByName(t *testing.T) {
	reg := NewRegistry()
	for _, name := range []string{"claude", "codex", "gemini", "generic"} {
		a, ok := reg.ByName(name)
		require.True(t, ok, name)
		assert.Equal(t, name, a.Name())
	}
	_, ok := reg.ByName("unknown")
	assert.False(t, ok)
}

func TestParseTimestamp(t *testing.T) {
	tests := []struct {
		in   string
		want time.Time
	}{
		{"2025-03-01T10:00:00Z", time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)},
		{"2025-03-01T10:00:00.123456789Z", time.Date(2025, 3, 1, 10, 0, 0, 123456789, time.UTC)},
		{"2025-03-01T10:00:00", time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)},
		{"not a time", time.Time{}},
		{"", time.Time{}},
	}
	for _, tt := range tests {
		assert.True(t, parseTimestamp(tt.in).Equal(tt.want), tt.in)
	}
}

func TestGeminiParseLine(t *testing.T) {
	a := &GeminiAdapter{}

	msg, ok := a.ParseLine([]byte(`{"sessionId":"g1","messageId":0,"type":"user","message":"hello","timestamp":"2025-03-01T10:00:00Z"}`))
	require.True(t, ok)
	assert.Equal(t, "user", msg.Type)
	assert.Equal(t, "hello", msg.Message.Content[0].Text)

	msg, ok = a.ParseLine([]byte(`{"sessionId":"g1","messageId":1,"type":"gemini","message":"hi there"}`))
	require.True(t, ok)
	assert.Equal(t, "assistant", msg.Type)
	assert.Equal(t, "assistant", msg.Message.Role)

	_, ok = a.ParseLine([]byte(`{"sessionId":"g1","type":"user","message":"  "}`))
	assert.False(t, ok)
}

func TestGeminiSessionMeta(t *testing.T) {
	a := &GeminiAdapter{}
	rec := a.SessionMeta("/home/u/.gemini/tmp/hash/chats/session-abc123.jsonl")
	assert.Equal(t, "abc123", rec.SessionID)
	assert.Equal(t, "gemini:abc123", rec.Key)
}

func TestGenericParseLine(t *testing.T) {
	a := &GenericAdapter{}

	tests := []struct {
		name string
		line string
		role string
		text string
	}{
		{"role and text", `{"role":"user","text":"hello"}`, "user", "hello"},
		{"type and content", `{"type":"assistant","content":"hi"}`, "assistant", "hi"},
		{"string message", `{"role":"user","message":"yo"}`, "user", "yo"},
		{"nested message content", `{"role":"assistant","message":{"content":"deep"}}`, "assistant", "deep"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg, ok := a.ParseLine([]byte(tt.line))
			require.True(t, ok)
			assert.Equal(t, tt.role, msg.Message.Role)
			require.Len(t, msg.Message.Content, 1)
			assert.Equal(t, session.BlockText, msg.Message.Content[0].Type)
			assert.Equal(t, tt.text, msg.Message.Content[0].Text)
		})
	}

	for _, line := range []string{
		`{"role":"tool","text":"x"}`,
		`{"role":"user"}`,
		`nope`,
	} {
		_, ok := a.ParseLine([]byte(line))
		assert.False(t, ok, line)
	}
}
