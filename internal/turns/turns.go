// Package turns derives a session's conversational turn sequence and its
// subagent-spawn edges from the normalized message stream. The structure
// is forward-only: turns are strictly sequential and edges branch outward,
// never back.
package turns

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/sessiond-dev/sessiond/internal/session"
	"github.com/sessiond-dev/sessiond/internal/store"
)

// Tool names that spawn a child session.
var spawnTools = map[string]bool{
	"Task":           true,
	"dispatch_agent": true,
	"spawn_agent":    true,
}

// spawn is one subagent invocation paired with its tool result.
type spawn struct {
	toolID     string
	input      any
	resultText string
}

// Build partitions msgs into turns anchored at each user-authored message
// that is not itself a tool result, collecting the subagent spawns issued
// inside each turn's window.
func Build(sessionID string, msgs []session.NormalizedMessage, snap *store.Snapshot) []session.TurnNode {
	var nodes []session.TurnNode
	results := collectResults(msgs)

	for i, msg := range msgs {
		if !isTurnAnchor(msg) {
			continue
		}
		node := session.TurnNode{
			TurnIndex:    len(nodes) + 1,
			MessageIndex: i,
			Preview:      anchorPreview(msg),
			Subagents:    []session.SubagentEdge{},
		}

		// the turn window runs up to the next anchor
		for j := i; j < len(msgs); j++ {
			if j > i && isTurnAnchor(msgs[j]) {
				break
			}
			node.Subagents = append(node.Subagents, spawnEdges(msgs[j], results)...)
		}

		nodes = append(nodes, node)
	}

	crossLink(sessionID, nodes, snap)
	return nodes
}

// isTurnAnchor reports whether msg opens a new turn: user-authored and
// carrying something other than tool results.
func isTurnAnchor(msg session.NormalizedMessage) bool {
	if msg.Type != "user" || msg.Message == nil || msg.Message.Role != "user" {
		return false
	}
	for _, b := range msg.Message.Content {
		if b.Type != session.BlockToolResult {
			return true
		}
	}
	return false
}

func anchorPreview(msg session.NormalizedMessage) string {
	for _, b := range msg.Message.Content {
		if b.Type == session.BlockText && b.Text != "" {
			t := strings.TrimSpace(strings.ReplaceAll(b.Text, "\n", " "))
			if len(t) > 100 {
				t = t[:100]
			}
			return t
		}
	}
	return ""
}

// collectResults maps tool ids to the text of their tool results.
func collectResults(msgs []session.NormalizedMessage) map[string]string {
	out := map[string]string{}
	for _, msg := range msgs {
		if msg.Message == nil {
			continue
		}
		for _, b := range msg.Message.Content {
			if b.Type != session.BlockToolResult || b.ToolID == "" {
				continue
			}
			out[b.ToolID] = resultText(b.Result)
		}
	}
	return out
}

func resultText(result any) string {
	switch t := result.(type) {
	case string:
		return t
	case nil:
		return ""
	default:
		raw, err := json.Marshal(t)
		if err != nil {
			return ""
		}
		return string(raw)
	}
}

// spawnEdges extracts one edge per assistant subagent-spawn invocation in
// msg, resolving each child id through the ordered resolver chain.
func spawnEdges(msg session.NormalizedMessage, results map[string]string) []session.SubagentEdge {
	if msg.Message == nil || msg.Message.Role != "assistant" {
		return nil
	}
	var edges []session.SubagentEdge
	for _, b := range msg.Message.Content {
		if b.Type != session.BlockToolUse || !spawnTools[b.ToolName] {
			continue
		}
		sp := spawn{toolID: b.ToolID, input: b.Input, resultText: results[b.ToolID]}
		label, full := spawnLabels(b.Input, b.ToolName)
		edges = append(edges, session.SubagentEdge{
			Label:          label,
			FullLabel:      full,
			ChildSessionID: resolveChildID(sp),
		})
	}
	return edges
}

func spawnLabels(input any, toolName string) (label, full string) {
	m, _ := input.(map[string]any)
	desc, _ := m["description"].(string)
	prompt, _ := m["prompt"].(string)
	agentType, _ := m["subagent_type"].(string)

	label = desc
	if label == "" {
		label = toolName
	}
	if len(label) > 60 {
		label = label[:60]
	}

	full = strings.TrimSpace(strings.Join(nonEmpty(agentType, desc, prompt), ": "))
	if full == "" {
		full = label
	}
	return label, full
}

func nonEmpty(parts ...string) []string {
	var out []string
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// The resolution chain, tried in order, first success wins. Each strategy
// is a pure function over the spawn pair.
var resolvers = []func(spawn) string{
	resolveResultPattern,
	resolveResultJSON,
	resolveInputID,
	resolveToolID,
}

func resolveChildID(sp spawn) string {
	for _, r := range resolvers {
		if id := r(sp); id != "" {
			return id
		}
	}
	return ""
}

var agentIDPattern = regexp.MustCompile(`agentId:\s*([A-Za-z0-9][A-Za-z0-9_-]+)`)

// resolveResultPattern matches an explicit agentId: marker in the result
// text.
func resolveResultPattern(sp spawn) string {
	m := agentIDPattern.FindStringSubmatch(sp.resultText)
	if m == nil {
		return ""
	}
	return m[1]
}

var idFields = []string{"childSessionId", "sessionId", "agentId", "session_id", "agent_id"}

// resolveResultJSON parses the result body as JSON and reads a known id
// field.
func resolveResultJSON(sp spawn) string {
	var obj map[string]any
	if err := json.Unmarshal([]byte(sp.resultText), &obj); err != nil {
		return ""
	}
	return firstIDField(obj)
}

// resolveInputID reads an id-like field from the invocation's own input.
func resolveInputID(sp spawn) string {
	obj, ok := sp.input.(map[string]any)
	if !ok {
		return ""
	}
	return firstIDField(obj)
}

// resolveToolID falls back to the invocation's own identifier.
func resolveToolID(sp spawn) string {
	return sp.toolID
}

func firstIDField(obj map[string]any) string {
	for _, k := range idFields {
		if s, ok := obj[k].(string); ok && s != "" {
			return s
		}
	}
	return ""
}

// minFragment bounds the fuzzy id cross-link: shorter shared fragments
// produce false positives between unrelated sessions.
const minFragment = 8

// crossLink rechecks edges whose resolved id does not name a known child
// against the index's parent/child records, catching spawns that carried
// no explicit tool marker (team spawns in particular).
func crossLink(sessionID string, nodes []session.TurnNode, snap *store.Snapshot) {
	if snap == nil {
		return
	}
	children := snap.ChildrenOf(sessionID)
	if len(children) == 0 {
		return
	}

	known := make(map[string]bool, len(children))
	for _, c := range children {
		known[c.SessionID] = true
	}

	claimed := map[string]bool{}
	for _, n := range nodes {
		for _, e := range n.Subagents {
			if known[e.ChildSessionID] {
				claimed[e.ChildSessionID] = true
			}
		}
	}

	for ni := range nodes {
		for ei := range nodes[ni].Subagents {
			e := &nodes[ni].Subagents[ei]
			if known[e.ChildSessionID] {
				continue
			}
			for _, c := range children {
				if claimed[c.SessionID] {
					continue
				}
				if matchesChild(e, c) {
					e.ChildSessionID = c.SessionID
					claimed[c.SessionID] = true
					break
				}
			}
		}
	}
}

func matchesChild(e *session.SubagentEdge, c session.Record) bool {
	id := e.ChildSessionID
	if len(id) >= minFragment &&
		(strings.HasPrefix(c.SessionID, id) || strings.HasSuffix(c.SessionID, id)) {
		return true
	}
	return c.TeamName != "" && c.TeamName == e.Label
}
