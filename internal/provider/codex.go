package provider

import (
	"encoding/json"
	"path/filepath"
	"strings"

	"github.com/sessiond-dev/sessiond/internal/session"
)

// Top-level record in Codex rollout JSONL.
type codexRecord struct {
	Timestamp string          `json:"timestamp"`
	Type      string          `json:"type"`
	Payload   json.RawMessage `json:"payload"`
}

type codexSessionMeta struct {
	ID  string `json:"id"`
	Cwd string `json:"cwd"`
}

// event_msg payload (flat, not nested)
type codexEventPayload struct {
	Type    string `json:"type"`
	Message string `json:"message"` // user_message
	Text    string `json:"text"`    // agent_reasoning / agent_message
}

// response_item payload
type codexResponsePayload struct {
	Type    string `json:"type"`
	Role    string `json:"role"`
	Name    string `json:"name"`    // function_call
	CallID  string `json:"call_id"` // function_call / function_call_output
	Args    string `json:"arguments"`
	Output  string `json:"output"`
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
}

// CodexAdapter reads Codex rollout files:
// <root>/<yyyy>/<mm>/<dd>/rollout-<timestamp>-<session-id>.jsonl.
type CodexAdapter struct{}

func (a *CodexAdapter) Name() string { return "codex" }

func (a *CodexAdapter) Detect(path string) bool {
	base := filepath.Base(path)
	return filepath.Ext(base) == ".jsonl" && strings.HasPrefix(base, "rollout-")
}

func (a *CodexAdapter) SessionMeta(path string) session.Record {
	id := codexSessionID(path)
	return session.Record{
		SessionID: id,
		Key:       session.Key(a.Name(), id),
		Provider:  a.Name(),
		Label:     strings.TrimSuffix(filepath.Base(path), ".jsonl"),
		FilePath:  path,
	}
}

// codexSessionID strips the rollout- prefix and the leading timestamp,
// leaving the uuid tail. Falls back to the whole stem when the name does
// not follow the convention.
func codexSessionID(path string) string {
	stem := strings.TrimSuffix(filepath.Base(path), ".jsonl")
	stem = strings.TrimPrefix(stem, "rollout-")
	// timestamp segment: 2025-01-02T03-04-05 (19 chars, then "-")
	if len(stem) > 20 && stem[19] == '-' {
		return stem[20:]
	}
	return stem
}

func (a *CodexAdapter) ParseLine(line []byte) (*session.NormalizedMessage, bool) {
	var rec codexRecord
	if err := json.Unmarshal(line, &rec); err != nil {
		return nil, false
	}

	msg := &session.NormalizedMessage{Timestamp: parseTimestamp(rec.Timestamp)}

	switch rec.Type {
	case "session_meta":
		var meta codexSessionMeta
		if err := json.Unmarshal(rec.Payload, &meta); err != nil {
			return nil, false
		}
		msg.Type = "system"
		msg.CustomEvent = meta.Cwd
		return msg, true

	case "compacted", "turn_context_compacted":
		msg.Type = "system"
		msg.Compaction = true
		return msg, true

	case "event_msg":
		var evt codexEventPayload
		if err := json.Unmarshal(rec.Payload, &evt); err != nil {
			return nil, false
		}
		switch evt.Type {
		case "user_message":
			text := strings.TrimSpace(evt.Message)
			if text == "" {
				return nil, false
			}
			msg.Type = "user"
			msg.Message = &session.MessageBody{
				Role:    "user",
				Content: []session.ContentBlock{{Type: session.BlockText, Text: text}},
			}
			return msg, true
		case "agent_reasoning":
			text := strings.TrimSpace(evt.Text)
			if text == "" {
				return nil, false
			}
			msg.Type = "assistant"
			msg.Message = &session.MessageBody{
				Role:    "assistant",
				Content: []session.ContentBlock{{Type: session.BlockThinking, Text: text}},
			}
			return msg, true
		case "agent_message":
			text := strings.TrimSpace(evt.Text)
			if text == "" {
				return nil, false
			}
			msg.Type = "assistant"
			msg.Message = &session.MessageBody{
				Role:    "assistant",
				Content: []session.ContentBlock{{Type: session.BlockText, Text: text}},
			}
			return msg, true
		}
		return nil, false

	case "response_item":
		return parseCodexResponseItem(msg, rec.Payload)
	}

	return nil, false
}

func parseCodexResponseItem(msg *session.NormalizedMessage, payload json.RawMessage) (*session.NormalizedMessage, bool) {
	var item codexResponsePayload
	if err := json.Unmarshal(payload, &item); err != nil {
		return nil, false
	}

	switch item.Type {
	case "message":
		role := item.Role
		if role == "" {
			role = "assistant"
		}
		var parts []string
		for _, c := range item.Content {
			if (c.Type == "input_text" || c.Type == "output_text" || c.Type == "text") && c.Text != "" {
				parts = append(parts, c.Text)
			}
		}
		text := strings.TrimSpace(strings.Join(parts, "\n"))
		if text == "" {
			return nil, false
		}
		msg.Type = role
		msg.Message = &session.MessageBody{
			Role:    role,
			Content: []session.ContentBlock{{Type: session.BlockText, Text: text}},
		}
		return msg, true

	case "function_call":
		var input any
		if item.Args != "" {
			_ = json.Unmarshal([]byte(item.Args), &input)
		}
		msg.Type = "assistant"
		msg.Message = &session.MessageBody{
			Role: "assistant",
			Content: []session.ContentBlock{{
				Type:     session.BlockToolUse,
				ToolID:   item.CallID,
				ToolName: item.Name,
				Input:    input,
			}},
		}
		return msg, true

	case "function_call_output":
		msg.Type = "user"
		msg.Message = &session.MessageBody{
			Role: "user",
			Content: []session.ContentBlock{{
				Type:   session.BlockToolResult,
				ToolID: item.CallID,
				Result: item.Output,
			}},
		}
		return msg, true
	}

	return nil, false
}
