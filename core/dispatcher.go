package core

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/ryanhaqueIT/vibedeck/internal/logx"
	"github.com/ryanhaqueIT/vibedeck/schema"
	"pkt.systems/pslog"
)

const stopGrace = 3 * time.Second

// Submit routes one unit of work. AI-mode submissions go through the
// run/queue decision; terminal-mode submissions are written to the session's
// persistent shell without waiting for completion.
func (s *service) Submit(ctx context.Context, req schema.SubmitRequest) (schema.SubmitResponse, error) {
	if ctx == nil {
		return schema.SubmitResponse{}, errors.New("missing context")
	}
	input := strings.TrimRight(req.Input, "\n")
	if strings.TrimSpace(input) == "" && len(req.Images) == 0 {
		return schema.SubmitResponse{}, schema.ErrEmptyInput
	}

	s.mu.Lock()
	sess, ok := s.sessions[req.SessionID]
	if !ok {
		s.mu.Unlock()
		return schema.SubmitResponse{}, schema.ErrSessionNotFound
	}
	mode := req.Mode
	if mode == "" {
		mode = sess.InputMode
	}
	if mode == schema.InputModeTerminal {
		return s.submitTerminalLocked(ctx, sess, input, req.Origin)
	}
	tabID := req.TabID
	if tabID == "" {
		tabID = sess.active
	}
	if tabID == "" {
		s.mu.Unlock()
		return schema.SubmitResponse{}, schema.ErrNoActiveTab
	}
	tab, ok := sess.tabs[tabID]
	if !ok {
		s.mu.Unlock()
		return schema.SubmitResponse{}, schema.ErrTabNotFound
	}
	cctx := schema.CommandContext{
		SessionID: sess.ID,
		TabID:     tab.ID,
		TabName:   tab.Name,
		WorkDir:   sess.WorkDir,
	}
	gitRepo := sess.GitRepo
	s.mu.Unlock()

	kind := schema.ItemMessage
	label := firstLine(input)
	prompt := input
	if strings.HasPrefix(input, "/") && s.commands != nil {
		if gitRepo && s.git != nil {
			cctx.GitBranch = s.git.Branch(ctx, cctx.WorkDir)
		}
		resolution, isCommand, err := s.commands.Resolve(ctx, input, cctx)
		if err != nil {
			return schema.SubmitResponse{}, err
		}
		if isCommand {
			if resolution.Builtin != nil {
				return s.runBuiltin(ctx, req, cctx, input, resolution)
			}
			kind = schema.ItemCommand
			prompt = resolution.Prompt
			if resolution.Label != "" {
				label = resolution.Label
			}
		}
	}

	// State may have shifted while the lock was released; decide against
	// the current state.
	s.mu.Lock()
	sess, tab, err := s.tabLocked(req.SessionID, tabID)
	if err != nil {
		s.mu.Unlock()
		return schema.SubmitResponse{}, err
	}
	if !s.cfg.DisableAuditLogging {
		logx.WithSessionTab(ctx, sess.ID, tab.ID).Debug("service submit", "kind", kind, "label", label, "origin", req.Origin, "read_only", tab.ReadOnly)
	}
	item := queuedItem{
		ID:        newID(),
		CreatedAt: time.Now(),
		TabID:     tab.ID,
		Kind:      kind,
		Text:      prompt,
		Images:    req.Images,
		ReadOnly:  tab.ReadOnly,
		Label:     label,
	}
	runNow := tab.Status != schema.TabBusy
	if runNow && !tab.ReadOnly {
		runNow = sess.writeAdmissibleLocked()
	}
	if !runNow {
		sess.queue = append(sess.queue, item)
		itemSnapshot := item.snapshot()
		tabSnapshot := tab.Snapshot(sess.active == tab.ID)
		stateEvent := s.sessionStateLocked(sess)
		s.persistLocked(sess)
		s.mu.Unlock()

		s.emitSessionState(stateEvent)
		if req.Origin == schema.OriginLocal {
			s.emitUserInput(sess.ID, input, schema.InputModeAI)
		}
		return schema.SubmitResponse{Tab: tabSnapshot, Queued: true, Item: itemSnapshot}, nil
	}

	start := s.admitLocked(sess, tab, item)
	start.origin = req.Origin
	tabSnapshot := tab.Snapshot(sess.active == tab.ID)
	stateEvent := s.sessionStateLocked(sess)
	s.persistLocked(sess)
	s.mu.Unlock()

	s.emitSessionState(stateEvent)
	s.emitEntries(start.sessionID, start.tabID, start.userEntry)
	if req.Origin == schema.OriginLocal {
		s.emitUserInput(sess.ID, input, schema.InputModeAI)
	}
	go s.launch(context.WithoutCancel(ctx), start)
	return schema.SubmitResponse{Tab: tabSnapshot, Queued: false}, nil
}

// submitTerminalLocked writes input to the session's persistent shell. The
// caller holds the mutex; it is released before any shell I/O.
func (s *service) submitTerminalLocked(ctx context.Context, sess *session, input string, origin schema.SubmitOrigin) (schema.SubmitResponse, error) {
	sessionID := sess.ID
	workDir := sess.WorkDir
	shell := sess.shell
	if target, isCD := cdTarget(input); isCD {
		if dir, ok := displayDirFor(sess.DisplayDir, target); ok {
			sess.DisplayDir = dir
		}
	}
	var tabSnapshot schema.TabSnapshot
	var activeTab *tab
	if sess.active != "" {
		activeTab = sess.tabs[sess.active]
	}
	var entry schema.Entry
	if activeTab != nil {
		entry = activeTab.entries.AppendText(schema.EntryUser, input)
		tabSnapshot = activeTab.Snapshot(true)
	}
	tabID := schema.TabID("")
	if activeTab != nil {
		tabID = activeTab.ID
	}
	s.persistLocked(sess)
	s.mu.Unlock()

	if shell == nil {
		if s.shells == nil {
			return schema.SubmitResponse{}, schema.ErrShellUnavailable
		}
		opened, err := s.shells.Open(ctx, workDir)
		if err != nil {
			return schema.SubmitResponse{}, fmt.Errorf("open shell: %w", err)
		}
		s.mu.Lock()
		current, ok := s.sessions[sessionID]
		if !ok {
			s.mu.Unlock()
			_ = opened.Close()
			return schema.SubmitResponse{}, schema.ErrSessionNotFound
		}
		if current.shell == nil {
			current.shell = opened
			shell = opened
		} else {
			shell = current.shell
		}
		s.mu.Unlock()
		if shell != opened {
			_ = opened.Close()
		}
	}
	if err := shell.Write(ctx, input+"\n"); err != nil {
		return schema.SubmitResponse{}, fmt.Errorf("shell write: %w", err)
	}
	if !s.cfg.DisableAuditLogging {
		logx.WithSession(ctx, sessionID).Debug("service submit", "input_mode", schema.InputModeTerminal, "origin", origin)
	}
	if activeTab != nil {
		s.emitEntries(sessionID, tabID, entry)
	}
	if origin == schema.OriginLocal {
		s.emitUserInput(sessionID, input, schema.InputModeTerminal)
	}
	return schema.SubmitResponse{Tab: tabSnapshot}, nil
}

// runBuiltin executes a built-in slash command without involving the agent
// process or the busy/queue decision.
func (s *service) runBuiltin(ctx context.Context, req schema.SubmitRequest, cctx schema.CommandContext, input string, resolution CommandResolution) (schema.SubmitResponse, error) {
	lines, err := resolution.Builtin(ctx, cctx)
	if err != nil {
		lines = append(lines, fmt.Sprintf("error: %v", err))
	}

	s.mu.Lock()
	sess, tab, lookupErr := s.tabLocked(cctx.SessionID, cctx.TabID)
	if lookupErr != nil {
		s.mu.Unlock()
		return schema.SubmitResponse{}, lookupErr
	}
	entries := []schema.Entry{tab.entries.AppendText(schema.EntryUser, input)}
	for _, line := range lines {
		entries = append(entries, tab.entries.AppendText(schema.EntrySystem, line))
	}
	tabSnapshot := tab.Snapshot(sess.active == tab.ID)
	s.persistLocked(sess)
	s.mu.Unlock()

	s.emitEntries(cctx.SessionID, cctx.TabID, entries...)
	if req.Origin == schema.OriginLocal {
		s.emitUserInput(cctx.SessionID, input, schema.InputModeAI)
	}
	return schema.SubmitResponse{Tab: tabSnapshot}, nil
}

func (s *service) StopTab(ctx context.Context, req schema.StopTabRequest) (schema.StopTabResponse, error) {
	s.mu.Lock()
	sess, tab, err := s.tabLocked(req.SessionID, req.TabID)
	if err != nil {
		s.mu.Unlock()
		return schema.StopTabResponse{}, err
	}
	handle := tab.run
	snapshot := tab.Snapshot(sess.active == tab.ID)
	s.mu.Unlock()

	if handle == nil {
		return schema.StopTabResponse{Tab: snapshot}, nil
	}
	log := logx.WithSessionTab(ctx, req.SessionID, req.TabID)
	log.Info("service tab stop requested")
	if err := handle.Signal(ctx, ProcessSignalTERM); err != nil {
		log.Warn("service tab stop signal failed", "err", err)
	}
	go s.escalateStop(req.SessionID, req.TabID, handle, log)
	return schema.StopTabResponse{Tab: snapshot}, nil
}

// escalateStop kills the process if it outlives the grace period after TERM.
func (s *service) escalateStop(sessionID schema.SessionID, tabID schema.TabID, handle RunHandle, log pslog.Logger) {
	stopSleep(stopGrace)
	s.mu.Lock()
	_, tab, err := s.tabLocked(sessionID, tabID)
	stillRunning := err == nil && tab.run == handle
	s.mu.Unlock()
	if !stillRunning {
		return
	}
	if err := handle.Signal(context.Background(), ProcessSignalKILL); err != nil {
		log.Warn("service tab kill failed", "err", err)
	}
}

// launchStarts dispatches admitted queue items after the lock is released.
func (s *service) launchStarts(ctx context.Context, starts []runStart) {
	for _, start := range starts {
		s.emitEntries(start.sessionID, start.tabID, start.userEntry)
		go s.launch(context.WithoutCancel(ctx), start)
	}
}

// launch spawns one agent process for an admitted unit of work.
func (s *service) launch(ctx context.Context, start runStart) {
	log := logx.WithSessionTab(ctx, start.sessionID, start.tabID)
	if s.agent == nil {
		s.failRun(ctx, start, schema.ErrRunnerUnavailable)
		return
	}
	images := start.images
	if len(images) > 0 && !s.agent.Capabilities().StructuredImageInput {
		log.Warn("service run dropping images", "count", len(images))
		images = nil
	}
	branch := ""
	if s.git != nil {
		branch = s.git.Branch(ctx, start.workDir)
	}
	runCtx, cancel := context.WithCancel(ctx)
	handle, err := s.agent.Start(runCtx, StartRequest{
		SessionID: start.sessionID,
		TabID:     start.tabID,
		WorkDir:   start.workDir,
		GitBranch: branch,
		Prompt:    start.prompt,
		Images:    images,
		ResumeID:  start.resumeID,
		ReadOnly:  start.readOnly,
		Overrides: start.overrides,
	})
	if err != nil {
		cancel()
		log.Warn("service run start failed", "err", err)
		s.failRun(ctx, start, err)
		return
	}

	s.mu.Lock()
	_, tab, lookupErr := s.tabLocked(start.sessionID, start.tabID)
	if lookupErr != nil || tab.Status != schema.TabBusy {
		s.mu.Unlock()
		cancel()
		_ = handle.Close()
		return
	}
	tab.run = handle
	tab.runCancel = cancel
	s.mu.Unlock()

	log.Info("service run started", "read_only", start.readOnly, "resumed", start.resumeID != "")
	go s.consumeRun(ctx, start, handle)
}

// failRun records a start failure as a system entry and releases the tab.
func (s *service) failRun(ctx context.Context, start runStart, cause error) {
	s.mu.Lock()
	sess, tab, err := s.tabLocked(start.sessionID, start.tabID)
	if err != nil {
		s.mu.Unlock()
		return
	}
	entry := tab.entries.AppendText(schema.EntrySystem, fmt.Sprintf("error: %v", cause))
	tab.Status = schema.TabIdle
	tab.BusySince = time.Time{}
	tab.AwaitingSession = false
	sess.refreshStateLocked()
	starts := s.drainLocked(sess)
	stateEvent := s.sessionStateLocked(sess)
	s.persistLocked(sess)
	s.mu.Unlock()

	s.emitEntries(start.sessionID, start.tabID, entry)
	s.emitSessionState(stateEvent)
	s.launchStarts(ctx, starts)
}

// consumeRun drains the run's event stream until the process exits.
func (s *service) consumeRun(ctx context.Context, start runStart, handle RunHandle) {
	log := logx.WithSessionTab(ctx, start.sessionID, start.tabID)
	stream := handle.Events()
	var usage *schema.TurnUsage
	for {
		event, err := stream.Next(ctx)
		if err != nil {
			if !errors.Is(err, io.EOF) && !errors.Is(err, context.Canceled) {
				log.Warn("service run stream error", "err", err)
			}
			break
		}
		switch event.Type {
		case schema.AgentEventInit:
			if event.AgentSession != "" {
				s.adoptAgentSession(start.sessionID, start.tabID, event.AgentSession)
			}
		case schema.AgentEventOutput:
			if event.Text != "" {
				s.appendRunEntry(start, schema.EntryAgent, event.Text)
			}
		case schema.AgentEventResult:
			if event.Usage != nil {
				usage = event.Usage
			}
			if event.Text != "" {
				s.appendRunEntry(start, schema.EntryAgent, event.Text)
			}
		case schema.AgentEventError:
			text := event.Message
			if text == "" {
				text = event.Text
			}
			if text != "" {
				s.appendRunEntry(start, schema.EntrySystem, text)
			}
		}
	}
	result, waitErr := handle.Wait(ctx)
	if waitErr != nil {
		log.Warn("service run wait failed", "err", waitErr)
	} else if result.ExitCode != 0 {
		s.appendRunEntry(start, schema.EntrySystem, fmt.Sprintf("agent exited with code %d", result.ExitCode))
	}
	log.Info("service run finished", "exit_code", result.ExitCode)
	s.finishRun(ctx, start, handle, usage)
}

// adoptAgentSession attributes the agent-reported session id to the tab that
// requested it. The id is only accepted while the tab is still awaiting one,
// so it can never land on a different tab after the user switches.
func (s *service) adoptAgentSession(sessionID schema.SessionID, tabID schema.TabID, agentSession schema.AgentSessionID) {
	s.mu.Lock()
	sess, tab, err := s.tabLocked(sessionID, tabID)
	if err != nil {
		s.mu.Unlock()
		return
	}
	if !tab.AwaitingSession {
		s.mu.Unlock()
		return
	}
	tab.AgentSession = agentSession
	tab.AwaitingSession = false
	tabsEvent := s.tabsChangedLocked(sess)
	s.persistLocked(sess)
	s.mu.Unlock()

	s.emitTabsChanged(tabsEvent)
}

func (s *service) appendRunEntry(start runStart, source schema.EntrySource, text string) {
	s.mu.Lock()
	_, tab, err := s.tabLocked(start.sessionID, start.tabID)
	if err != nil {
		s.mu.Unlock()
		return
	}
	entry := tab.entries.AppendText(source, text)
	s.mu.Unlock()

	s.emitEntries(start.sessionID, start.tabID, entry)
}

// finishRun releases the tab and drains the queue in the same critical
// section, so admission happens before any other submission can observe the
// transient idle state.
func (s *service) finishRun(ctx context.Context, start runStart, handle RunHandle, usage *schema.TurnUsage) {
	s.mu.Lock()
	sess, tab, err := s.tabLocked(start.sessionID, start.tabID)
	if err != nil {
		s.mu.Unlock()
		_ = handle.Close()
		return
	}
	if tab.run == handle {
		if tab.runCancel != nil {
			tab.runCancel()
		}
		tab.run = nil
		tab.runCancel = nil
	}
	tab.Status = schema.TabIdle
	tab.BusySince = time.Time{}
	tab.AwaitingSession = false
	if usage != nil {
		tab.LastUsage = usage
	}
	sess.refreshStateLocked()
	starts := s.drainLocked(sess)
	stateEvent := s.sessionStateLocked(sess)
	tabsEvent := s.tabsChangedLocked(sess)
	s.persistLocked(sess)
	s.mu.Unlock()

	_ = handle.Close()
	s.emitSessionState(stateEvent)
	s.emitTabsChanged(tabsEvent)
	s.launchStarts(ctx, starts)
}

func (s *service) emitUserInput(sessionID schema.SessionID, command string, mode schema.InputMode) {
	if s.sink == nil {
		return
	}
	s.sink.OnUserInput(schema.UserInputEvent{SessionID: sessionID, Command: command, InputMode: mode})
}

func firstLine(input string) string {
	if idx := strings.IndexByte(input, '\n'); idx >= 0 {
		input = input[:idx]
	}
	const max = 80
	runes := []rune(input)
	if len(runes) > max {
		return string(runes[:max])
	}
	return input
}

// cdTarget reports whether a terminal submission is a cd command and, if so,
// its target path.
func cdTarget(input string) (string, bool) {
	trimmed := strings.TrimSpace(input)
	if trimmed == "cd" {
		return "~", true
	}
	if strings.HasPrefix(trimmed, "cd ") {
		return strings.TrimSpace(strings.TrimPrefix(trimmed, "cd ")), true
	}
	return "", false
}
