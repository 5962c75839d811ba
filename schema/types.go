package schema

import "time"

// SessionID identifies one logical workspace session.
type SessionID string

// TabID identifies one agent conversation thread within a session.
type TabID string

// TabName is the user-facing name of a tab.
type TabName string

// AgentSessionID is the identifier assigned by the external agent process.
// It is empty until the agent reports one.
type AgentSessionID string

// ClientID identifies one connected remote peer.
type ClientID string

// ThemeName identifies a UI theme.
type ThemeName string

// InputMode selects which process a submission is routed to.
type InputMode string

const (
	// InputModeAI routes submissions to the agent process.
	InputModeAI InputMode = "ai"
	// InputModeTerminal routes submissions to the persistent shell.
	InputModeTerminal InputMode = "terminal"
)

// SessionState is the busy/idle state of a session.
type SessionState string

const (
	// SessionIdle indicates no work is running in the session.
	SessionIdle SessionState = "idle"
	// SessionBusy indicates at least one unit of work is running.
	SessionBusy SessionState = "busy"
)

// BusySource records which kind of work made the session busy.
type BusySource string

const (
	// BusySourceNone indicates the session is idle.
	BusySourceNone BusySource = ""
	// BusySourceAI indicates an agent turn is running.
	BusySourceAI BusySource = "ai"
	// BusySourceTerminal indicates shell work is in flight.
	BusySourceTerminal BusySource = "terminal"
)

// TabStatus is the busy/idle state of a tab.
type TabStatus string

const (
	// TabIdle indicates the tab has no running work.
	TabIdle TabStatus = "idle"
	// TabBusy indicates the tab has a running unit of work.
	TabBusy TabStatus = "busy"
)

// ItemKind distinguishes deferred payload kinds.
type ItemKind string

const (
	// ItemMessage is a plain prompt submission.
	ItemMessage ItemKind = "message"
	// ItemCommand is a resolved slash command submission.
	ItemCommand ItemKind = "command"
)

// EntrySource attributes an entry-log line.
type EntrySource string

const (
	// EntryUser marks input echoed from the user.
	EntryUser EntrySource = "user"
	// EntryAgent marks agent output.
	EntryAgent EntrySource = "agent"
	// EntrySystem marks engine-generated lines, including errors.
	EntrySystem EntrySource = "system"
)

// Entry is one line in a tab's exchange log.
type Entry struct {
	Source    EntrySource `json:"source"`
	Text      string      `json:"text"`
	Timestamp time.Time   `json:"timestamp"`
}

// ImageAttachment references an image attached to a submission.
type ImageAttachment struct {
	Path      string `json:"path"`
	MediaType string `json:"media_type,omitempty"`
}

// AgentOverrides are optional per-session spawn overrides.
type AgentOverrides struct {
	BinaryPath    string   `json:"binary_path,omitempty"`
	ExtraArgs     []string `json:"extra_args,omitempty"`
	Env           []string `json:"env,omitempty"`
	Model         string   `json:"model,omitempty"`
	ContextWindow int      `json:"context_window,omitempty"`
}

// TurnUsage captures token usage reported by the agent for one turn.
type TurnUsage struct {
	InputTokens  int `json:"input_tokens,omitempty"`
	OutputTokens int `json:"output_tokens,omitempty"`
}

// AutorunState reports progress of the automated task runner for a session.
// It is an orthogonal busy indicator: it defers new write submissions but
// does not set the session's own busy flag.
type AutorunState struct {
	TaskID     string `json:"task_id"`
	Step       int    `json:"step"`
	TotalSteps int    `json:"total_steps"`
	Label      string `json:"label,omitempty"`
}

// TabSnapshot is a transport-friendly view of a tab.
type TabSnapshot struct {
	ID           TabID          `json:"id"`
	Name         TabName        `json:"name"`
	Status       TabStatus      `json:"status"`
	ReadOnly     bool           `json:"read_only"`
	AgentSession AgentSessionID `json:"agent_session,omitempty"`
	Active       bool           `json:"active"`
	Usage        *TurnUsage     `json:"usage,omitempty"`
}

// QueuedItemSnapshot is a transport-friendly view of a deferred unit of work.
type QueuedItemSnapshot struct {
	ID        string    `json:"id"`
	TabID     TabID     `json:"tab_id"`
	Kind      ItemKind  `json:"kind"`
	Label     string    `json:"label"`
	ReadOnly  bool      `json:"read_only"`
	CreatedAt time.Time `json:"created_at"`
}

// SessionSnapshot is a transport-friendly view of a session.
type SessionSnapshot struct {
	ID         SessionID            `json:"id"`
	WorkDir    string               `json:"work_dir"`
	State      SessionState         `json:"state"`
	BusySource BusySource           `json:"busy_source,omitempty"`
	InputMode  InputMode            `json:"input_mode"`
	GitRepo    bool                 `json:"git_repo"`
	GitBranch  string               `json:"git_branch,omitempty"`
	ActiveTab  TabID                `json:"active_tab,omitempty"`
	Tabs       []TabSnapshot        `json:"tabs"`
	Queue      []QueuedItemSnapshot `json:"queue,omitempty"`
	Clients    int                  `json:"clients,omitempty"`
}
