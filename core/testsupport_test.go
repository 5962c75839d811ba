package core

import (
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/ryanhaqueIT/vibedeck/schema"
)

type fakeSink struct {
	mu       sync.Mutex
	states   []schema.SessionStateEvent
	tabs     []schema.TabsChangedEvent
	inputs   []schema.UserInputEvent
	entries  []schema.EntryEvent
	autoruns []schema.AutorunEvent
	themes   []schema.ThemeEvent
}

func (f *fakeSink) OnSessionState(event schema.SessionStateEvent) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.states = append(f.states, event)
}

func (f *fakeSink) OnTabsChanged(event schema.TabsChangedEvent) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tabs = append(f.tabs, event)
}

func (f *fakeSink) OnUserInput(event schema.UserInputEvent) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.inputs = append(f.inputs, event)
}

func (f *fakeSink) OnEntries(event schema.EntryEvent) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries = append(f.entries, event)
}

func (f *fakeSink) OnAutorun(event schema.AutorunEvent) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.autoruns = append(f.autoruns, event)
}

func (f *fakeSink) OnTheme(event schema.ThemeEvent) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.themes = append(f.themes, event)
}

func (f *fakeSink) stateEvents() []schema.SessionStateEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]schema.SessionStateEvent(nil), f.states...)
}

func (f *fakeSink) userInputs() []schema.UserInputEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]schema.UserInputEvent(nil), f.inputs...)
}

func (f *fakeSink) entryEvents() []schema.EntryEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]schema.EntryEvent(nil), f.entries...)
}

func (f *fakeSink) themeEvents() []schema.ThemeEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]schema.ThemeEvent(nil), f.themes...)
}

type fakeRunner struct {
	caps   AgentCapabilities
	starts chan StartRequest
	runs   chan *fakeHandle
}

func newFakeRunner() *fakeRunner {
	return &fakeRunner{
		caps:   AgentCapabilities{StructuredImageInput: true},
		starts: make(chan StartRequest, 16),
		runs:   make(chan *fakeHandle, 16),
	}
}

func (f *fakeRunner) Start(_ context.Context, req StartRequest) (RunHandle, error) {
	handle := newFakeHandle()
	f.starts <- req
	f.runs <- handle
	return handle, nil
}

func (f *fakeRunner) Capabilities() AgentCapabilities {
	return f.caps
}

func (f *fakeRunner) nextStart(t *testing.T) (StartRequest, *fakeHandle) {
	t.Helper()
	select {
	case req := <-f.starts:
		return req, <-f.runs
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for runner start")
		return StartRequest{}, nil
	}
}

func (f *fakeRunner) expectNoStart(t *testing.T) {
	t.Helper()
	select {
	case req := <-f.starts:
		t.Fatalf("unexpected runner start for tab %s", req.TabID)
	case <-time.After(50 * time.Millisecond):
	}
}

type fakeHandle struct {
	mu      sync.Mutex
	events  chan schema.AgentEvent
	done    chan struct{}
	exit    int
	signals []ProcessSignal
}

func newFakeHandle() *fakeHandle {
	return &fakeHandle{
		events: make(chan schema.AgentEvent, 16),
		done:   make(chan struct{}),
	}
}

func (h *fakeHandle) Events() EventStream { return h }

func (h *fakeHandle) Next(ctx context.Context) (schema.AgentEvent, error) {
	select {
	case event, ok := <-h.events:
		if !ok {
			return schema.AgentEvent{}, io.EOF
		}
		return event, nil
	case <-ctx.Done():
		return schema.AgentEvent{}, ctx.Err()
	}
}

func (h *fakeHandle) Signal(_ context.Context, sig ProcessSignal) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.signals = append(h.signals, sig)
	return nil
}

func (h *fakeHandle) Wait(ctx context.Context) (RunResult, error) {
	select {
	case <-h.done:
		return RunResult{ExitCode: h.exit}, nil
	case <-ctx.Done():
		return RunResult{}, ctx.Err()
	}
}

func (h *fakeHandle) Close() error { return nil }

func (h *fakeHandle) emit(event schema.AgentEvent) {
	h.events <- event
}

func (h *fakeHandle) finish(exit int) {
	h.exit = exit
	close(h.events)
	close(h.done)
}

func (h *fakeHandle) signaled() []ProcessSignal {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]ProcessSignal(nil), h.signals...)
}

type fakeShell struct {
	mu     sync.Mutex
	writes []string
	closed bool
}

func (f *fakeShell) Write(_ context.Context, input string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.writes = append(f.writes, input)
	return nil
}

func (f *fakeShell) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeShell) written() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.writes...)
}

type fakeShellFactory struct {
	shell *fakeShell
}

func (f *fakeShellFactory) Open(_ context.Context, _ string) (ShellProcess, error) {
	return f.shell, nil
}

type testEnv struct {
	svc    Service
	sink   *fakeSink
	runner *fakeRunner
	shell  *fakeShell
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	sink := &fakeSink{}
	runner := newFakeRunner()
	shell := &fakeShell{}
	svc, err := NewService(schema.ServiceConfig{StateDir: t.TempDir()}, ServiceDeps{
		Agent: runner,
		Shell: &fakeShellFactory{shell: shell},
		Sink:  sink,
	})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return &testEnv{svc: svc, sink: sink, runner: runner, shell: shell}
}

func (e *testEnv) createSession(t *testing.T) schema.SessionSnapshot {
	t.Helper()
	resp, err := e.svc.CreateSession(context.Background(), schema.CreateSessionRequest{WorkDir: t.TempDir()})
	if err != nil {
		t.Fatalf("create session: %v", err)
	}
	return resp.Session
}

// runAttached reports whether the tab has a run handle attached yet.
func runAttached(env *testEnv, sessionID schema.SessionID, tabID schema.TabID) bool {
	s := env.svc.(*service)
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[sessionID]
	if !ok {
		return false
	}
	tab, ok := sess.tabs[tabID]
	return ok && tab.run != nil
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}
