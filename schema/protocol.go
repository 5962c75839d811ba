package schema

import (
	"encoding/json"
	"time"
)

// Remote protocol message types. Inbound messages are dispatched on Type;
// outbound messages always carry a timestamp.

const (
	// MsgPing requests a liveness probe.
	MsgPing = "ping"
	// MsgPong answers a ping.
	MsgPong = "pong"
	// MsgSubscribe sets the client's session subscription.
	MsgSubscribe = "subscribe"
	// MsgSubscribed echoes an applied subscription.
	MsgSubscribed = "subscribed"
	// MsgSendCommand submits a command into the dispatcher.
	MsgSendCommand = "send_command"
	// MsgCommandResult reports send_command outcome.
	MsgCommandResult = "command_result"
	// MsgSwitchMode requests an input-mode switch.
	MsgSwitchMode = "switch_mode"
	// MsgModeSwitchResult reports switch_mode outcome.
	MsgModeSwitchResult = "mode_switch_result"
	// MsgSelectSession requests a session (and optional tab) selection.
	MsgSelectSession = "select_session"
	// MsgSelectSessionResult reports select_session outcome.
	MsgSelectSessionResult = "select_session_result"
	// MsgSelectTab requests a tab selection.
	MsgSelectTab = "select_tab"
	// MsgSelectTabResult reports select_tab outcome.
	MsgSelectTabResult = "select_tab_result"
	// MsgNewTab requests tab creation.
	MsgNewTab = "new_tab"
	// MsgNewTabResult reports new_tab outcome.
	MsgNewTabResult = "new_tab_result"
	// MsgCloseTab requests tab closure.
	MsgCloseTab = "close_tab"
	// MsgCloseTabResult reports close_tab outcome.
	MsgCloseTabResult = "close_tab_result"
	// MsgRenameTab requests a tab rename.
	MsgRenameTab = "rename_tab"
	// MsgRenameTabResult reports rename_tab outcome.
	MsgRenameTabResult = "rename_tab_result"
	// MsgGetSessions requests the enriched session list.
	MsgGetSessions = "get_sessions"
	// MsgSessionsList reports the session list.
	MsgSessionsList = "sessions_list"
	// MsgError reports a failure back to the requesting peer.
	MsgError = "error"
	// MsgEcho is the diagnostic reply for unknown message types.
	MsgEcho = "echo"
)

// Broadcast message types (desktop to peers).
const (
	// MsgTheme broadcasts a theme change to all clients.
	MsgTheme = "theme"
	// MsgSessionStateChange broadcasts a busy/idle transition to all clients.
	MsgSessionStateChange = "session_state_change"
	// MsgTabsChanged broadcasts a tab-list change to all clients.
	MsgTabsChanged = "tabs_changed"
	// MsgAutorunState broadcasts automated-task-runner progress to all clients.
	MsgAutorunState = "autorun_state"
	// MsgUserInput echoes local input to clients subscribed to the session.
	MsgUserInput = "user_input"
	// MsgEntries carries appended entry-log lines to subscribed clients.
	MsgEntries = "entries"
)

// ClientMessage is the inbound envelope from a remote peer.
type ClientMessage struct {
	Type      string          `json:"type"`
	SessionID SessionID       `json:"sessionId,omitempty"`
	TabID     TabID           `json:"tabId,omitempty"`
	Command   string          `json:"command,omitempty"`
	Mode      InputMode       `json:"mode,omitempty"`
	NewName   *string         `json:"newName,omitempty"`
	Data      json.RawMessage `json:"data,omitempty"`
}

// ServerMessage is the outbound envelope to a remote peer. Fields are
// populated per message type; Timestamp is always set.
type ServerMessage struct {
	Type      string    `json:"type"`
	Timestamp time.Time `json:"timestamp"`

	SessionID SessionID `json:"sessionId,omitempty"`
	TabID     TabID     `json:"tabId,omitempty"`
	Success   *bool     `json:"success,omitempty"`
	Message   string    `json:"message,omitempty"`

	Sessions []SessionSnapshot `json:"sessions,omitempty"`

	Theme    ThemeName         `json:"theme,omitempty"`
	State    SessionState      `json:"state,omitempty"`
	Metadata map[string]string `json:"metadata,omitempty"`

	AITabs      []TabSnapshot `json:"aiTabs,omitempty"`
	ActiveTabID TabID         `json:"activeTabId,omitempty"`

	Command   string    `json:"command,omitempty"`
	InputMode InputMode `json:"inputMode,omitempty"`
	NewName   string    `json:"newName,omitempty"`
	Entries   []Entry   `json:"entries,omitempty"`

	OriginalType string          `json:"originalType,omitempty"`
	Data         json.RawMessage `json:"data,omitempty"`
}

// AutorunMessage is the dedicated wire shape for autorun_state broadcasts.
// State is serialized explicitly so a cleared runner arrives as null.
type AutorunMessage struct {
	Type      string        `json:"type"`
	Timestamp time.Time     `json:"timestamp"`
	SessionID SessionID     `json:"sessionId"`
	State     *AutorunState `json:"state"`
}

// BoolPtr returns a pointer to b for Success fields.
func BoolPtr(b bool) *bool {
	return &b
}
