package schema

// Session lifecycle.

// CreateSessionRequest describes a request to open a workspace session.
type CreateSessionRequest struct {
	WorkDir   string
	InputMode InputMode
	Overrides AgentOverrides
}

// CreateSessionResponse reports the created session.
type CreateSessionResponse struct {
	Session SessionSnapshot
}

// CloseSessionRequest describes a request to tear down a session.
type CloseSessionRequest struct {
	SessionID SessionID
}

// CloseSessionResponse reports the final session snapshot.
type CloseSessionResponse struct {
	Session SessionSnapshot
}

// ListSessionsRequest describes a request to list sessions.
type ListSessionsRequest struct{}

// ListSessionsResponse reports all sessions.
type ListSessionsResponse struct {
	Sessions []SessionSnapshot
}

// Tab lifecycle.

// CreateTabRequest describes a request to create a tab.
type CreateTabRequest struct {
	SessionID SessionID
	Name      TabName
	ReadOnly  bool
}

// CreateTabResponse reports the created tab.
type CreateTabResponse struct {
	Tab TabSnapshot
}

// CloseTabRequest describes a request to close a tab.
type CloseTabRequest struct {
	SessionID SessionID
	TabID     TabID
}

// CloseTabResponse reports the closed tab snapshot.
type CloseTabResponse struct {
	Tab TabSnapshot
}

// RenameTabRequest describes a request to rename a tab. An empty name is
// permitted and resets the tab to its default label.
type RenameTabRequest struct {
	SessionID SessionID
	TabID     TabID
	Name      TabName
}

// RenameTabResponse reports the applied name.
type RenameTabResponse struct {
	Tab TabSnapshot
}

// ActivateTabRequest describes a request to make a tab active.
type ActivateTabRequest struct {
	SessionID SessionID
	TabID     TabID
}

// ActivateTabResponse reports the activated tab snapshot.
type ActivateTabResponse struct {
	Tab TabSnapshot
}

// SetInputModeRequest selects the session's input mode.
type SetInputModeRequest struct {
	SessionID SessionID
	Mode      InputMode
}

// SetInputModeResponse reports the updated session snapshot.
type SetInputModeResponse struct {
	Session SessionSnapshot
}

// Dispatch.

// SubmitOrigin records where a submission came from.
type SubmitOrigin string

const (
	// OriginLocal marks submissions from the desktop surface.
	OriginLocal SubmitOrigin = "local"
	// OriginRemote marks submissions from a remote peer.
	OriginRemote SubmitOrigin = "remote"
)

// SubmitRequest describes one unit of work for a session. TabID defaults to
// the session's active tab; Mode defaults to the session's input mode.
type SubmitRequest struct {
	SessionID SessionID
	TabID     TabID
	Input     string
	Images    []ImageAttachment
	Mode      InputMode
	Origin    SubmitOrigin
}

// SubmitResponse reports whether the work ran immediately or was deferred.
type SubmitResponse struct {
	Tab    TabSnapshot
	Queued bool
	Item   QueuedItemSnapshot
}

// StopTabRequest asks for the tab's running process to be interrupted.
type StopTabRequest struct {
	SessionID SessionID
	TabID     TabID
}

// StopTabResponse reports the tab snapshot at stop time.
type StopTabResponse struct {
	Tab TabSnapshot
}

// Entries.

// GetEntriesRequest fetches the tail of a tab's entry log.
type GetEntriesRequest struct {
	SessionID SessionID
	TabID     TabID
	Limit     int
}

// GetEntriesResponse reports entry-log lines.
type GetEntriesResponse struct {
	Entries []Entry
	Total   int
}

// Theme and autorun.

// SetThemeRequest applies a theme and broadcasts it to remote peers.
type SetThemeRequest struct {
	Theme ThemeName
}

// SetThemeResponse reports the applied theme.
type SetThemeResponse struct {
	Theme ThemeName
}

// SetAutorunRequest updates automated-task-runner progress for a session.
// A nil State clears it.
type SetAutorunRequest struct {
	SessionID SessionID
	State     *AutorunState
}

// SetAutorunResponse reports the applied state.
type SetAutorunResponse struct {
	State *AutorunState
}
