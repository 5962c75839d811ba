package schema

// Events emitted by the core service toward broadcast sinks. Session-state,
// tab-list, theme, and autorun events are fanned out to every connected
// peer; user-input and entry events are scoped to peers subscribed to the
// originating session.

// SessionStateEvent reports a busy/idle transition.
type SessionStateEvent struct {
	SessionID SessionID
	State     SessionState
	Source    BusySource
	QueueLen  int
}

// TabsChangedEvent reports a change to a session's tab list or active tab.
type TabsChangedEvent struct {
	SessionID SessionID
	Tabs      []TabSnapshot
	ActiveTab TabID
}

// UserInputEvent echoes accepted local input to subscribed peers.
type UserInputEvent struct {
	SessionID SessionID
	Command   string
	InputMode InputMode
}

// EntryEvent carries appended entry-log lines for a tab.
type EntryEvent struct {
	SessionID SessionID
	TabID     TabID
	Entries   []Entry
}

// AutorunEvent reports automated-task-runner progress. A nil State means
// the runner finished or was cleared.
type AutorunEvent struct {
	SessionID SessionID
	State     *AutorunState
}

// ThemeEvent reports a desktop theme change.
type ThemeEvent struct {
	Theme ThemeName
}
