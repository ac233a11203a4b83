package provider

import (
	"encoding/json"
	"path/filepath"
	"strings"

	"github.com/sessiond-dev/sessiond/internal/session"
)

type claudeRecord struct {
	Type            string          `json:"type"`
	Subtype         string          `json:"subtype"`
	IsMeta          bool            `json:"isMeta"`
	IsSidechain     bool            `json:"isSidechain"`
	Timestamp       string          `json:"timestamp"`
	Cwd             string          `json:"cwd"`
	SessionID       string          `json:"sessionId"`
	ParentSessionID string          `json:"parentSessionId"`
	TeamName        string          `json:"teamName"`
	Message         json.RawMessage `json:"message"`
	Summary         string          `json:"summary"` // type="summary" records
}

type claudeMessage struct {
	Role    string          `json:"role"`
	Model   string          `json:"model"`
	Usage   map[string]any  `json:"usage"`
	Content json.RawMessage `json:"content"`
}

type claudeContentBlock struct {
	Type      string          `json:"type"`
	Text      string          `json:"text"`
	Thinking  string          `json:"thinking"`
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Input     json.RawMessage `json:"input"`
	ToolUseID string          `json:"tool_use_id"`
	Content   json.RawMessage `json:"content"`
	IsError   bool            `json:"is_error"`
	Source    json.RawMessage `json:"source"`
}

// ClaudeAdapter reads Claude Code project logs: one JSONL file per session
// under <root>/<encoded-project-dir>/<session-id>.jsonl.
type ClaudeAdapter struct{}

func (a *ClaudeAdapter) Name() string { return "claude" }

func (a *ClaudeAdapter) Detect(path string) bool {
	if filepath.Ext(path) != ".jsonl" {
		return false
	}
	if strings.Contains(filepath.Base(path), "sessions-index") {
		return false
	}
	for _, seg := range strings.Split(filepath.ToSlash(path), "/") {
		if seg == ".claude" || seg == "projects" {
			return true
		}
	}
	return false
}

func (a *ClaudeAdapter) SessionMeta(path string) session.Record {
	id := strings.TrimSuffix(filepath.Base(path), ".jsonl")
	rec := session.Record{
		SessionID: id,
		Key:       session.Key(a.Name(), id),
		Provider:  a.Name(),
		Label:     filepath.Base(filepath.Dir(path)),
		FilePath:  path,
	}
	// a file inside a subagents/ directory is a child of the session the
	// directory is named for: <parent-id>/subagents/<child-id>.jsonl
	dir := filepath.Dir(path)
	if filepath.Base(dir) == "subagents" {
		rec.ParentSessionID = filepath.Base(filepath.Dir(dir))
		rec.IsSidechain = true
	}
	return rec
}

func (a *ClaudeAdapter) ParseLine(line []byte) (*session.NormalizedMessage, bool) {
	var rec claudeRecord
	if err := json.Unmarshal(line, &rec); err != nil {
		return nil, false
	}

	msg := &session.NormalizedMessage{
		Timestamp:       parseTimestamp(rec.Timestamp),
		ParentSessionID: rec.ParentSessionID,
		IsSidechain:     rec.IsSidechain,
		TeamName:        rec.TeamName,
	}

	switch rec.Type {
	case "summary":
		if rec.Summary == "" {
			return nil, false
		}
		msg.Type = "summary"
		msg.CustomEvent = rec.Summary
		return msg, true

	case "system":
		msg.Type = "system"
		if rec.Subtype == "compact_boundary" {
			msg.Compaction = true
		}
		return msg, true

	case "user", "assistant":
		if rec.IsMeta {
			return nil, false
		}
		var cm claudeMessage
		if err := json.Unmarshal(rec.Message, &cm); err != nil {
			return nil, false
		}
		role := cm.Role
		if role == "" {
			role = rec.Type
		}
		blocks := parseClaudeContent(cm.Content)
		if len(blocks) == 0 {
			return nil, false
		}
		msg.Type = rec.Type
		msg.Message = &session.MessageBody{
			Role:    role,
			Content: blocks,
			Model:   cm.Model,
			Usage:   cm.Usage,
		}
		if cm.Model != "" {
			msg.ModelChange = cm.Model
		}
		return msg, true
	}

	return nil, false
}

func parseClaudeContent(raw json.RawMessage) []session.ContentBlock {
	// plain string content first
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		s = strings.TrimSpace(s)
		if s == "" {
			return nil
		}
		return []session.ContentBlock{{Type: session.BlockText, Text: s}}
	}

	var rawBlocks []claudeContentBlock
	if err := json.Unmarshal(raw, &rawBlocks); err != nil {
		return nil
	}

	var blocks []session.ContentBlock
	for _, b := range rawBlocks {
		switch b.Type {
		case "text":
			if b.Text != "" {
				blocks = append(blocks, session.ContentBlock{Type: session.BlockText, Text: b.Text})
			}
		case "thinking":
			text := b.Thinking
			if text == "" {
				text = b.Text
			}
			if text != "" {
				blocks = append(blocks, session.ContentBlock{Type: session.BlockThinking, Text: text})
			}
		case "tool_use":
			var input any
			if len(b.Input) > 0 {
				_ = json.Unmarshal(b.Input, &input)
			}
			blocks = append(blocks, session.ContentBlock{
				Type:     session.BlockToolUse,
				ToolID:   b.ID,
				ToolName: b.Name,
				Input:    input,
			})
		case "tool_result":
			var result any
			if len(b.Content) > 0 {
				_ = json.Unmarshal(b.Content, &result)
			}
			blocks = append(blocks, session.ContentBlock{
				Type:    session.BlockToolResult,
				ToolID:  b.ToolUseID,
				Result:  result,
				IsError: b.IsError,
			})
		case "image":
			blocks = append(blocks, session.ContentBlock{Type: session.BlockImage, MediaRef: string(b.Source)})
		}
	}
	return blocks
}
