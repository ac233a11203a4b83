package provider

import (
	"encoding/json"
	"path/filepath"
	"strings"

	"github.com/sessiond-dev/sessiond/internal/session"
)

// Gemini CLI log entry, one per line.
type geminiLogEntry struct {
	SessionID string `json:"sessionId"`
	MessageID int    `json:"messageId"`
	Type      string `json:"type"` // "user" or "gemini"
	Message   string `json:"message"`
	Timestamp string `json:"timestamp"`
}

// GeminiAdapter reads Gemini CLI logs under <root>/<project-hash>/logs.jsonl
// and chat files under chats/.
type GeminiAdapter struct{}

func (a *GeminiAdapter) Name() string { return "gemini" }

func (a *GeminiAdapter) Detect(path string) bool {
	if filepath.Ext(path) != ".jsonl" {
		return false
	}
	slash := filepath.ToSlash(path)
	for _, seg := range strings.Split(slash, "/") {
		if seg == ".gemini" || seg == "chats" {
			return true
		}
	}
	return strings.HasPrefix(filepath.Base(path), "session-")
}

func (a *GeminiAdapter) SessionMeta(path string) session.Record {
	id := strings.TrimSuffix(filepath.Base(path), ".jsonl")
	id = strings.TrimPrefix(id, "session-")
	return session.Record{
		SessionID: id,
		Key:       session.Key(a.Name(), id),
		Provider:  a.Name(),
		Label:     filepath.Base(filepath.Dir(path)),
		FilePath:  path,
	}
}

func (a *GeminiAdapter) ParseLine(line []byte) (*session.NormalizedMessage, bool) {
	var rec geminiLogEntry
	if err := json.Unmarshal(line, &rec); err != nil {
		return nil, false
	}

	text := strings.TrimSpace(rec.Message)
	if text == "" {
		return nil, false
	}

	role := "assistant"
	if rec.Type == "user" {
		role = "user"
	}

	return &session.NormalizedMessage{
		Type:      role,
		Timestamp: parseTimestamp(rec.Timestamp),
		Message: &session.MessageBody{
			Role:    role,
			Content: []session.ContentBlock{{Type: session.BlockText, Text: text}},
		},
	}, true
}
