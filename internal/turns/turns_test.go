package turns

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sessiond-dev/sessiond/internal/session"
	"github.com/sessiond-dev/sessiond/internal/store"
)

func userMsg(text string) session.NormalizedMessage {
	return session.NormalizedMessage{
		Type: "user",
		Message: &session.MessageBody{
			Role:    "user",
			Content: []session.ContentBlock{{Type: session.BlockText, Text: text}},
		},
	}
}

func assistantText(text string) session.NormalizedMessage {
	return session.NormalizedMessage{
		Type: "assistant",
		Message: &session.MessageBody{
			Role:    "assistant",
			Content: []session.ContentBlock{{Type: session.BlockText, Text: text}},
		},
	}
}

func assistantSpawn(toolID string, input map[string]any) session.NormalizedMessage {
	return session.NormalizedMessage{
		Type: "assistant",
		Message: &session.MessageBody{
			Role: "assistant",
			Content: []session.ContentBlock{{
				Type:     session.BlockToolUse,
				ToolID:   toolID,
				ToolName: "Task",
				Input:    input,
			}},
		},
	}
}

func toolResult(toolID string, result any) session.NormalizedMessage {
	return session.NormalizedMessage{
		Type: "user",
		Message: &session.MessageBody{
			Role: "user",
			Content: []session.ContentBlock{{
				Type:   session.BlockToolResult,
				ToolID: toolID,
				Result: result,
			}},
		},
	}
}

func TestBuildSingleTurnWithTwoSpawns(t *testing.T) {
	msgs := []session.NormalizedMessage{
		userMsg("research both options"),
		assistantSpawn("tu1", map[string]any{"description": "Research A", "prompt": "look into A"}),
		assistantSpawn("tu2", map[string]any{"description": "Research B"}),
		toolResult("tu1", "agentId: child-aaaa1111"),
		toolResult("tu2", `{"childSessionId":"abc123"}`),
		assistantText("both done"),
	}

	nodes := Build("parent", msgs, nil)
	require.Len(t, nodes, 1)

	n := nodes[0]
	assert.Equal(t, 1, n.TurnIndex)
	assert.Equal(t, 0, n.MessageIndex)
	assert.Equal(t, "research both options", n.Preview)
	require.Len(t, n.Subagents, 2)

	assert.Equal(t, "Research A", n.Subagents[0].Label)
	assert.Equal(t, "Research A: look into A", n.Subagents[0].FullLabel)
	assert.Equal(t, "child-aaaa1111", n.Subagents[0].ChildSessionID)

	// no agentId marker in the result, so the JSON field wins
	assert.Equal(t, "abc123", n.Subagents[1].ChildSessionID)
}

func TestBuildMultipleTurns(t *testing.T) {
	msgs := []session.NormalizedMessage{
		userMsg("first"),
		assistantText("ok"),
		toolResult("x", "ignored"), // result-only messages never open a turn
		userMsg("second"),
		assistantSpawn("tu1", map[string]any{"description": "Follow up"}),
		toolResult("tu1", "agentId: child-bbbb2222"),
	}

	nodes := Build("parent", msgs, nil)
	require.Len(t, nodes, 2)

	assert.Equal(t, 1, nodes[0].TurnIndex)
	assert.Equal(t, 0, nodes[0].MessageIndex)
	assert.Empty(t, nodes[0].Subagents)

	assert.Equal(t, 2, nodes[1].TurnIndex)
	assert.Equal(t, 3, nodes[1].MessageIndex)
	require.Len(t, nodes[1].Subagents, 1)
	assert.Equal(t, "child-bbbb2222", nodes[1].Subagents[0].ChildSessionID)
}

func TestResolverChain(t *testing.T) {
	tests := []struct {
		name   string
		input  map[string]any
		result any
		want   string
	}{
		{
			name:   "pattern beats json",
			result: `before agentId: marker-1234 and {"sessionId":"other"}`,
			want:   "marker-1234",
		},
		{
			name:   "json field",
			result: `{"sessionId":"json-5678"}`,
			want:   "json-5678",
		},
		{
			name:  "input field when result is useless",
			input: map[string]any{"agentId": "input-9999"},
			want:  "input-9999",
		},
		{
			name: "tool id fallback",
			want: "tu1",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msgs := []session.NormalizedMessage{
				userMsg("go"),
				assistantSpawn("tu1", tt.input),
			}
			if tt.result != nil {
				msgs = append(msgs, toolResult("tu1", tt.result))
			}
			nodes := Build("parent", msgs, nil)
			require.Len(t, nodes, 1)
			require.Len(t, nodes[0].Subagents, 1)
			assert.Equal(t, tt.want, nodes[0].Subagents[0].ChildSessionID)
		})
	}
}

func TestCrossLinkByIDFragment(t *testing.T) {
	snap := &store.Snapshot{Sessions: []session.Record{
		{SessionID: "deadbeef12345678", ParentSessionID: "parent", Provider: "claude"},
	}}
	msgs := []session.NormalizedMessage{
		userMsg("go"),
		assistantSpawn("tu1", map[string]any{"description": "Dig"}),
		toolResult("tu1", "agentId: deadbeef"),
	}

	nodes := Build("parent", msgs, snap)
	require.Len(t, nodes, 1)
	assert.Equal(t, "deadbeef12345678", nodes[0].Subagents[0].ChildSessionID)
}

func TestCrossLinkByTeamName(t *testing.T) {
	snap := &store.Snapshot{Sessions: []session.Record{
		{SessionID: "1111-2222-3333", ParentSessionID: "parent", TeamName: "builder"},
	}}
	msgs := []session.NormalizedMessage{
		userMsg("go"),
		assistantSpawn("tu9", map[string]any{"description": "builder"}),
	}

	nodes := Build("parent", msgs, snap)
	require.Len(t, nodes, 1)
	assert.Equal(t, "1111-2222-3333", nodes[0].Subagents[0].ChildSessionID)
}

func TestCrossLinkShortFragmentIgnored(t *testing.T) {
	snap := &store.Snapshot{Sessions: []session.Record{
		{SessionID: "abcdef1234567890", ParentSessionID: "parent"},
	}}
	msgs := []session.NormalizedMessage{
		userMsg("go"),
		assistantSpawn("tu1", nil),
		toolResult("tu1", "agentId: abcdef1"), // 7 chars, below the fragment floor
	}

	nodes := Build("parent", msgs, snap)
	require.Len(t, nodes, 1)
	assert.Equal(t, "abcdef1", nodes[0].Subagents[0].ChildSessionID)
}

func TestNonSpawnToolsIgnored(t *testing.T) {
	msgs := []session.NormalizedMessage{
		userMsg("run it"),
		{
			Type: "assistant",
			Message: &session.MessageBody{
				Role: "assistant",
				Content: []session.ContentBlock{{
					Type: session.BlockToolUse, ToolID: "b1", ToolName: "Bash",
					Input: map[string]any{"command": "ls"},
				}},
			},
		},
	}

	nodes := Build("parent", msgs, nil)
	require.Len(t, nodes, 1)
	assert.Empty(t, nodes[0].Subagents)
	assert.NotNil(t, nodes[0].Subagents)
}
