package core

import (
	"time"

	"github.com/ryanhaqueIT/vibedeck/schema"
)

// runStart is a unit of work admitted for execution. It is produced under
// the service mutex, with the tab already marked busy, and launched after
// the mutex is released.
type runStart struct {
	sessionID schema.SessionID
	tabID     schema.TabID
	prompt    string
	images    []schema.ImageAttachment
	resumeID  schema.AgentSessionID
	readOnly  bool
	workDir   string
	overrides schema.AgentOverrides
	label     string
	origin    schema.SubmitOrigin
	userEntry schema.Entry
}

// drainLocked admits queued items in insertion order. Admission marks the
// target tab busy inside the same critical section as the pop, so no second
// drain can admit conflicting work in between. An item whose tab is still
// busy blocks later items for that tab; an inadmissible write blocks later
// writes so write order is preserved. Read-only items may pass blocked
// writes.
func (s *service) drainLocked(sess *session) []runStart {
	if len(sess.queue) == 0 {
		return nil
	}
	var starts []runStart
	blockedTabs := make(map[schema.TabID]bool)
	writesBlocked := false
	dropped := 0
	kept := sess.queue[:0]
	for _, item := range sess.queue {
		tab, exists := sess.tabs[item.TabID]
		if !exists {
			// Target tab is gone; the item dies with it.
			dropped++
			if s.logger != nil {
				s.logger.Warn("service queue item dropped", "session", sess.ID, "tab", item.TabID, "label", item.Label, "reason", "tab closed")
			}
			continue
		}
		if blockedTabs[item.TabID] || tab.Status == schema.TabBusy {
			blockedTabs[item.TabID] = true
			kept = append(kept, item)
			continue
		}
		if !item.ReadOnly {
			if writesBlocked || !sess.writeAdmissibleLocked() {
				writesBlocked = true
				blockedTabs[item.TabID] = true
				kept = append(kept, item)
				continue
			}
		}
		starts = append(starts, s.admitLocked(sess, tab, item))
		blockedTabs[item.TabID] = true
	}
	sess.queue = kept
	if len(starts) > 0 || dropped > 0 {
		sess.refreshStateLocked()
	}
	return starts
}

// admitLocked marks the tab busy and builds the launch order for one item.
func (s *service) admitLocked(sess *session, tab *tab, item queuedItem) runStart {
	tab.Status = schema.TabBusy
	tab.BusySince = time.Now()
	if tab.AgentSession == "" {
		tab.AwaitingSession = true
	}
	entry := tab.entries.AppendText(schema.EntryUser, item.Text)
	sess.refreshStateLocked()
	return runStart{
		sessionID: sess.ID,
		tabID:     tab.ID,
		prompt:    item.Text,
		images:    item.Images,
		resumeID:  tab.AgentSession,
		readOnly:  tab.ReadOnly,
		workDir:   sess.WorkDir,
		overrides: sess.Overrides,
		label:     item.Label,
		userEntry: entry,
	}
}
