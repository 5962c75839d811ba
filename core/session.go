package core

import (
	"time"

	"github.com/ryanhaqueIT/vibedeck/schema"
)

// session tracks one workspace: its tabs, execution queue, busy state, and
// persistent shell. Mutated only under the service mutex.
type session struct {
	ID        schema.SessionID
	WorkDir   string
	InputMode schema.InputMode
	GitRepo   bool
	Overrides schema.AgentOverrides

	// DisplayDir is the working directory shown for terminal mode. It
	// follows successful cd commands and stays put for missing paths.
	DisplayDir string

	State      schema.SessionState
	BusySource schema.BusySource

	// terminalBusy is reported by the shell surface; it participates in
	// the busy state but never satisfies the bypass predicate.
	terminalBusy bool

	tabs   map[schema.TabID]*tab
	order  []schema.TabID
	active schema.TabID

	queue   []queuedItem
	autorun *schema.AutorunState

	shell ShellProcess
}

// queuedItem is a deferred unit of work. Consumed exactly once, in
// insertion order, then discarded.
type queuedItem struct {
	ID        string
	CreatedAt time.Time
	TabID     schema.TabID
	Kind      schema.ItemKind
	Text      string
	Images    []schema.ImageAttachment
	ReadOnly  bool
	Label     string
}

func (i queuedItem) snapshot() schema.QueuedItemSnapshot {
	return schema.QueuedItemSnapshot{
		ID:        i.ID,
		TabID:     i.TabID,
		Kind:      i.Kind,
		Label:     i.Label,
		ReadOnly:  i.ReadOnly,
		CreatedAt: i.CreatedAt,
	}
}

func (s *session) tabSnapshotsLocked() []schema.TabSnapshot {
	tabs := make([]schema.TabSnapshot, 0, len(s.order))
	for _, id := range s.order {
		tab := s.tabs[id]
		if tab == nil {
			continue
		}
		tabs = append(tabs, tab.Snapshot(id == s.active))
	}
	return tabs
}

func (s *session) snapshotLocked() schema.SessionSnapshot {
	queue := make([]schema.QueuedItemSnapshot, 0, len(s.queue))
	for _, item := range s.queue {
		queue = append(queue, item.snapshot())
	}
	return schema.SessionSnapshot{
		ID:         s.ID,
		WorkDir:    s.DisplayDir,
		State:      s.State,
		BusySource: s.BusySource,
		InputMode:  s.InputMode,
		GitRepo:    s.GitRepo,
		ActiveTab:  s.active,
		Tabs:       s.tabSnapshotsLocked(),
		Queue:      queue,
	}
}

// refreshStateLocked recomputes busy state from tabs and terminal activity.
// Returns true if the observable state changed.
func (s *session) refreshStateLocked() bool {
	state := schema.SessionIdle
	source := schema.BusySourceNone
	for _, tab := range s.tabs {
		if tab.Status == schema.TabBusy {
			state = schema.SessionBusy
			source = schema.BusySourceAI
			break
		}
	}
	if state == schema.SessionIdle && s.terminalBusy {
		state = schema.SessionBusy
		source = schema.BusySourceTerminal
	}
	changed := state != s.State || source != s.BusySource
	s.State = state
	s.BusySource = source
	return changed
}

// canBypassLocked reports whether a write-mode submission may run despite the
// session being busy: every currently-busy tab is read-only and every item
// already in the queue is read-only. Terminal-sourced busyness never
// satisfies the predicate.
func (s *session) canBypassLocked() bool {
	if s.State != schema.SessionBusy {
		return false
	}
	busyTabs := 0
	for _, tab := range s.tabs {
		if tab.Status != schema.TabBusy {
			continue
		}
		busyTabs++
		if !tab.ReadOnly {
			return false
		}
	}
	if busyTabs == 0 {
		return false
	}
	for _, item := range s.queue {
		if !item.ReadOnly {
			return false
		}
	}
	return true
}

// writeAdmissibleLocked decides whether a write-mode unit may run now.
func (s *session) writeAdmissibleLocked() bool {
	if s.autorun != nil {
		return false
	}
	if s.State == schema.SessionBusy && !s.canBypassLocked() {
		return false
	}
	return true
}

func (s *session) removeTabLocked(id schema.TabID) {
	delete(s.tabs, id)
	for i, current := range s.order {
		if current == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	if s.active == id {
		s.active = ""
		if len(s.order) > 0 {
			s.active = s.order[0]
		}
	}
}
