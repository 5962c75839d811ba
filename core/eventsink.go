package core

import "github.com/ryanhaqueIT/vibedeck/schema"

// EventSink receives state transitions from the core service. Session-state,
// tabs, theme, and autorun events are for every connected peer; user-input
// and entry events are scoped to the originating session's subscribers.
type EventSink interface {
	OnSessionState(event schema.SessionStateEvent)
	OnTabsChanged(event schema.TabsChangedEvent)
	OnUserInput(event schema.UserInputEvent)
	OnEntries(event schema.EntryEvent)
	OnAutorun(event schema.AutorunEvent)
	OnTheme(event schema.ThemeEvent)
}
