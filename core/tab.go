package core

import (
	"context"
	"time"

	"github.com/ryanhaqueIT/vibedeck/schema"
)

// tab tracks the state of a single agent conversation thread.
type tab struct {
	ID       schema.TabID
	Name     schema.TabName
	ReadOnly bool
	Status   schema.TabStatus

	// AgentSession is assigned asynchronously by the agent process.
	// AwaitingSession marks the tab that requested it so the id is never
	// attributed to a different tab when the user switches tabs while the
	// identifier is in flight. It is cleared exactly once.
	AgentSession    schema.AgentSessionID
	AwaitingSession bool

	BusySince time.Time
	LastUsage *schema.TurnUsage

	entries   *entryLog
	run       RunHandle
	runCancel context.CancelFunc
}

// Snapshot returns a transport-friendly view of the tab.
func (t *tab) Snapshot(active bool) schema.TabSnapshot {
	snap := schema.TabSnapshot{
		ID:           t.ID,
		Name:         t.Name,
		Status:       t.Status,
		ReadOnly:     t.ReadOnly,
		AgentSession: t.AgentSession,
		Active:       active,
	}
	if t.LastUsage != nil {
		usage := *t.LastUsage
		snap.Usage = &usage
	}
	return snap
}
