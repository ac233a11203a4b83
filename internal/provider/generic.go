package provider

import (
	"encoding/json"
	"path/filepath"
	"strings"

	"github.com/sessiond-dev/sessiond/internal/session"
)

// Loosest shape we accept from an unknown producer. Either role or type
// must look conversational, and one of the text-ish fields must be set.
type genericRecord struct {
	Type      string `json:"type"`
	Role      string `json:"role"`
	Timestamp string `json:"timestamp"`
	Content   any    `json:"content"`
	Text      string `json:"text"`
	Message   any    `json:"message"`
}

// GenericAdapter is the fallback for JSONL files no other adapter claims.
type GenericAdapter struct{}

func (a *GenericAdapter) Name() string { return "generic" }

func (a *GenericAdapter) Detect(path string) bool {
	return filepath.Ext(path) == ".jsonl"
}

func (a *GenericAdapter) SessionMeta(path string) session.Record {
	id := strings.TrimSuffix(filepath.Base(path), ".jsonl")
	return session.Record{
		SessionID: id,
		Key:       session.Key(a.Name(), id),
		Provider:  a.Name(),
		Label:     filepath.Base(filepath.Dir(path)),
		FilePath:  path,
	}
}

func (a *GenericAdapter) ParseLine(line []byte) (*session.NormalizedMessage, bool) {
	var rec genericRecord
	if err := json.Unmarshal(line, &rec); err != nil {
		return nil, false
	}

	role := rec.Role
	if role == "" {
		role = rec.Type
	}
	switch role {
	case "user", "assistant", "system":
	default:
		return nil, false
	}

	text := genericText(rec)
	if text == "" {
		return nil, false
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

func genericText(rec genericRecord) string {
	if rec.Text != "" {
		return strings.TrimSpace(rec.Text)
	}
	if s, ok := rec.Content.(string); ok {
		return strings.TrimSpace(s)
	}
	if s, ok := rec.Message.(string); ok {
		return strings.TrimSpace(s)
	}
	if m, ok := rec.Message.(map[string]any); ok {
		if s, ok := m["content"].(string); ok {
			return strings.TrimSpace(s)
		}
	}
	return ""
}
