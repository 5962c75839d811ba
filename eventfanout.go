package vibedeck

import (
	"github.com/ryanhaqueIT/vibedeck/core"
	"github.com/ryanhaqueIT/vibedeck/schema"
)

type eventFanout struct {
	sinks []core.EventSink
}

func (f eventFanout) OnSessionState(event schema.SessionStateEvent) {
	for _, sink := range f.sinks {
		if sink == nil {
			continue
		}
		sink.OnSessionState(event)
	}
}

func (f eventFanout) OnTabsChanged(event schema.TabsChangedEvent) {
	for _, sink := range f.sinks {
		if sink == nil {
			continue
		}
		sink.OnTabsChanged(event)
	}
}

func (f eventFanout) OnUserInput(event schema.UserInputEvent) {
	for _, sink := range f.sinks {
		if sink == nil {
			continue
		}
		sink.OnUserInput(event)
	}
}

func (f eventFanout) OnEntries(event schema.EntryEvent) {
	for _, sink := range f.sinks {
		if sink == nil {
			continue
		}
		sink.OnEntries(event)
	}
}

func (f eventFanout) OnAutorun(event schema.AutorunEvent) {
	for _, sink := range f.sinks {
		if sink == nil {
			continue
		}
		sink.OnAutorun(event)
	}
}

func (f eventFanout) OnTheme(event schema.ThemeEvent) {
	for _, sink := range f.sinks {
		if sink == nil {
			continue
		}
		sink.OnTheme(event)
	}
}
