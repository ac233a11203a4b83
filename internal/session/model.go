package session

import "time"

// Record is the catalog entry for one conversation log file. Records are
// owned by the scanner; every other component treats them as read-only.
type Record struct {
	SessionID       string    `json:"sessionId"`
	Key             string    `json:"key"` // "<provider>:<sessionId>", unique across the catalog
	Provider        string    `json:"provider"`
	Label           string    `json:"label"`
	Preview         string    `json:"preview"`
	LastUpdated     time.Time `json:"lastUpdated"`
	MessageCount    int       `json:"messageCount"`
	CompactionCount int       `json:"compactionCount"`
	ParentSessionID string    `json:"parentSessionId,omitempty"`
	TeamName        string    `json:"teamName,omitempty"`
	IsSidechain     bool      `json:"isSidechain,omitempty"`
	HasSubagents    bool      `json:"hasSubagents,omitempty"`
	IsActive        bool      `json:"isActive"`
	IsDeleted       bool      `json:"isDeleted"`
	FilePath        string    `json:"filePath"`
	SizeBytes       int64     `json:"sizeBytes"`
}

// NormalizedMessage is the provider-agnostic envelope one raw log line
// normalizes into. Produced fresh on every load, never cached.
type NormalizedMessage struct {
	Type      string       `json:"type"`
	Timestamp time.Time    `json:"timestamp,omitempty"`
	Message   *MessageBody `json:"message,omitempty"`

	// Provider side channels.
	Compaction  bool   `json:"compaction,omitempty"`
	ModelChange string `json:"modelChange,omitempty"`
	CustomEvent string `json:"customEvent,omitempty"`

	ParentSessionID string `json:"parentSessionId,omitempty"`
	IsSidechain     bool   `json:"isSidechain,omitempty"`
	TeamName        string `json:"teamName,omitempty"`
}

// MessageBody carries the conversational payload of a NormalizedMessage.
type MessageBody struct {
	Role    string         `json:"role"`
	Content []ContentBlock `json:"content"`
	Model   string         `json:"model,omitempty"`
	Usage   map[string]any `json:"usage,omitempty"`
}

// Content block tags. Exactly one payload field is meaningful per tag.
const (
	BlockText       = "text"
	BlockThinking   = "thinking"
	BlockToolUse    = "tool_use"
	BlockToolResult = "tool_result"
	BlockImage      = "image"
)

// ContentBlock is a tagged union over text, thinking, tool invocation,
// tool result, and image payloads.
type ContentBlock struct {
	Type string `json:"type"`

	Text     string `json:"text,omitempty"`     // BlockText, BlockThinking
	ToolID   string `json:"toolId,omitempty"`   // BlockToolUse, BlockToolResult
	ToolName string `json:"toolName,omitempty"` // BlockToolUse
	Input    any    `json:"input,omitempty"`    // BlockToolUse
	Result   any    `json:"result,omitempty"`   // BlockToolResult
	IsError  bool   `json:"isError,omitempty"`  // BlockToolResult
	MediaRef string `json:"mediaRef,omitempty"` // BlockImage
}

// ChangeEvent kinds broadcast on the notification stream.
const (
	EventConnected  = "connected"
	EventSessionUpd = "session_updated"
	EventIndexUpd   = "sessions_index_updated"
	EventPing       = "ping"
)

// ChangeEvent is an ephemeral broadcast frame.
type ChangeEvent struct {
	Kind      string `json:"kind"`
	SessionID string `json:"sessionId,omitempty"`
}

// SearchHit pairs a matching session with a snippet around its first match.
type SearchHit struct {
	Session Record `json:"session"`
	Snippet string `json:"snippet"`
}

// TurnNode is one user-anchored window of a session's conversation, with
// the subagent spawns observed inside it. turnIndex starts at 1 and
// strictly increases.
type TurnNode struct {
	TurnIndex    int            `json:"turnIndex"`
	MessageIndex int            `json:"messageIndex"`
	Preview      string         `json:"preview"`
	Subagents    []SubagentEdge `json:"subagents"`
}

// SubagentEdge links a turn to a spawned child session. ChildSessionID is
// empty when no resolver strategy produced an id.
type SubagentEdge struct {
	Label          string `json:"label"`
	FullLabel      string `json:"fullLabel"`
	ChildSessionID string `json:"childSessionId,omitempty"`
}

// Key builds the catalog key for a provider-namespaced session id.
func Key(provider, sessionID string) string {
	return provider + ":" + sessionID
}
