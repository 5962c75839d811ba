package schema

import "encoding/json"

// AgentEventType is the top-level type emitted on the agent's JSONL stream.
type AgentEventType string

const (
	// AgentEventInit indicates the agent started and may carry its
	// session identifier.
	AgentEventInit AgentEventType = "init"
	// AgentEventOutput carries assistant output text.
	AgentEventOutput AgentEventType = "output"
	// AgentEventResult indicates the turn finished and may carry usage.
	AgentEventResult AgentEventType = "result"
	// AgentEventError indicates a stream-level error line.
	AgentEventError AgentEventType = "error"
)

// AgentEvent is the normalized event shape for batch-mode agent streams.
type AgentEvent struct {
	Type         AgentEventType  `json:"type"`
	AgentSession AgentSessionID  `json:"session_id,omitempty"`
	Text         string          `json:"text,omitempty"`
	Usage        *TurnUsage      `json:"usage,omitempty"`
	Message      string          `json:"message,omitempty"`
	Raw          json.RawMessage `json:"-"`
}
