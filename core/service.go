package core

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/ryanhaqueIT/vibedeck/internal/logx"
	"github.com/ryanhaqueIT/vibedeck/internal/persist"
	"github.com/ryanhaqueIT/vibedeck/schema"
	"pkt.systems/pslog"
)

// service implements the core engine behavior.
type service struct {
	cfg      schema.ServiceConfig
	agent    AgentRunner
	shells   ShellFactory
	commands CommandResolver
	git      GitInfo
	sink     EventSink
	store    *persist.Store
	logger   pslog.Logger

	mu       sync.Mutex
	sessions map[schema.SessionID]*session
	order    []schema.SessionID
	theme    schema.ThemeName
}

var stopSleep = time.Sleep

// NewService constructs the core service implementation.
func NewService(cfg schema.ServiceConfig, deps ServiceDeps) (Service, error) {
	normalized, err := schema.NormalizeServiceConfig(cfg)
	if err != nil {
		return nil, err
	}
	cfg = normalized
	logger := deps.Logger
	if logger == nil {
		logger = pslog.Ctx(context.Background())
	}
	var store *persist.Store
	if cfg.StateDir != "" {
		store, err = persist.NewStoreWithLogger(cfg.StateDir, logger)
		if err != nil {
			return nil, err
		}
	}
	svc := &service{
		cfg:      cfg,
		agent:    deps.Agent,
		shells:   deps.Shell,
		commands: deps.Commands,
		git:      deps.Git,
		sink:     deps.Sink,
		store:    store,
		logger:   logger,
		sessions: make(map[schema.SessionID]*session),
		theme:    cfg.DefaultTheme,
	}
	if store != nil {
		if err := svc.restore(); err != nil {
			return nil, err
		}
	}
	return svc, nil
}

// restore rebuilds sessions from persisted records. Every tab reloads idle;
// running work never survives a restart.
func (s *service) restore() error {
	records, err := s.store.LoadAll()
	if err != nil {
		return err
	}
	for _, record := range records {
		sess := &session{
			ID:         record.ID,
			WorkDir:    record.WorkDir,
			DisplayDir: record.DisplayDir,
			InputMode:  record.InputMode,
			GitRepo:    record.GitRepo,
			Overrides:  record.Overrides,
			State:      schema.SessionIdle,
			tabs:       make(map[schema.TabID]*tab),
		}
		if sess.DisplayDir == "" {
			sess.DisplayDir = sess.WorkDir
		}
		if sess.InputMode == "" {
			sess.InputMode = s.cfg.DefaultMode
		}
		for _, tr := range record.Tabs {
			sess.tabs[tr.ID] = &tab{
				ID:           tr.ID,
				Name:         tr.Name,
				ReadOnly:     tr.ReadOnly,
				Status:       schema.TabIdle,
				AgentSession: tr.AgentSession,
				entries:      newEntryLogFromPersisted(tr.Entries, s.cfg.EntryMaxLines),
			}
		}
		for _, id := range record.Order {
			if _, ok := sess.tabs[id]; ok {
				sess.order = append(sess.order, id)
			}
		}
		for id := range sess.tabs {
			found := false
			for _, ordered := range sess.order {
				if ordered == id {
					found = true
					break
				}
			}
			if !found {
				sess.order = append(sess.order, id)
			}
		}
		if _, ok := sess.tabs[record.ActiveTab]; ok {
			sess.active = record.ActiveTab
		} else if len(sess.order) > 0 {
			sess.active = sess.order[0]
		}
		for _, ir := range record.Queue {
			sess.queue = append(sess.queue, queuedItem{
				ID:        ir.ID,
				CreatedAt: ir.CreatedAt,
				TabID:     ir.TabID,
				Kind:      ir.Kind,
				Text:      ir.Text,
				Images:    ir.Images,
				ReadOnly:  ir.ReadOnly,
				Label:     ir.Label,
			})
		}
		s.sessions[sess.ID] = sess
		s.order = append(s.order, sess.ID)
		s.logger.Info("service session restored", "session", sess.ID, "tabs", len(sess.tabs), "queued", len(sess.queue))
	}
	return nil
}

func (s *service) CreateSession(ctx context.Context, req schema.CreateSessionRequest) (schema.CreateSessionResponse, error) {
	if ctx == nil {
		return schema.CreateSessionResponse{}, errors.New("missing context")
	}
	workDir := strings.TrimSpace(req.WorkDir)
	if workDir == "" {
		return schema.CreateSessionResponse{}, fmt.Errorf("%w: work dir is required", schema.ErrInvalidRequest)
	}
	info, err := os.Stat(workDir)
	if err != nil || !info.IsDir() {
		return schema.CreateSessionResponse{}, fmt.Errorf("%w: work dir %q is not a directory", schema.ErrInvalidRequest, workDir)
	}
	mode := req.InputMode
	if mode == "" {
		mode = s.cfg.DefaultMode
	}
	if _, ok := schema.NormalizeInputMode(string(mode)); !ok {
		return schema.CreateSessionResponse{}, fmt.Errorf("%w: input mode %q", schema.ErrInvalidRequest, mode)
	}
	gitRepo := false
	if s.git != nil {
		gitRepo = s.git.IsRepo(ctx, workDir)
	}
	sess := &session{
		ID:         schema.SessionID(newID()),
		WorkDir:    workDir,
		DisplayDir: workDir,
		InputMode:  mode,
		GitRepo:    gitRepo,
		Overrides:  req.Overrides,
		State:      schema.SessionIdle,
		tabs:       make(map[schema.TabID]*tab),
	}
	log := logx.WithSession(ctx, sess.ID)
	log.Info("service session create", "work_dir", workDir, "input_mode", mode, "git_repo", gitRepo)

	s.mu.Lock()
	first := s.newTabLocked(sess, "", false)
	sess.active = first.ID
	s.sessions[sess.ID] = sess
	s.order = append(s.order, sess.ID)
	snapshot := sess.snapshotLocked()
	tabsEvent := s.tabsChangedLocked(sess)
	s.persistLocked(sess)
	s.mu.Unlock()

	s.emitTabsChanged(tabsEvent)
	return schema.CreateSessionResponse{Session: snapshot}, nil
}

func (s *service) CloseSession(ctx context.Context, req schema.CloseSessionRequest) (schema.CloseSessionResponse, error) {
	log := logx.WithSession(ctx, req.SessionID)
	s.mu.Lock()
	sess, ok := s.sessions[req.SessionID]
	if !ok {
		s.mu.Unlock()
		return schema.CloseSessionResponse{}, schema.ErrSessionNotFound
	}
	for _, tab := range sess.tabs {
		if tab.runCancel != nil {
			tab.runCancel()
		}
		if tab.run != nil {
			_ = tab.run.Close()
			tab.run = nil
		}
		tab.Status = schema.TabIdle
	}
	shell := sess.shell
	sess.shell = nil
	sess.queue = nil
	sess.refreshStateLocked()
	snapshot := sess.snapshotLocked()
	delete(s.sessions, req.SessionID)
	for i, id := range s.order {
		if id == req.SessionID {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	s.mu.Unlock()

	if shell != nil {
		_ = shell.Close()
	}
	if s.store != nil {
		if err := s.store.Delete(req.SessionID); err != nil {
			log.Warn("service session close state delete failed", "err", err)
		}
	}
	log.Info("service session closed", "tabs", len(snapshot.Tabs))
	return schema.CloseSessionResponse{Session: snapshot}, nil
}

func (s *service) ListSessions(ctx context.Context, _ schema.ListSessionsRequest) (schema.ListSessionsResponse, error) {
	s.mu.Lock()
	snapshots := make([]schema.SessionSnapshot, 0, len(s.order))
	for _, id := range s.order {
		sess, ok := s.sessions[id]
		if !ok {
			continue
		}
		snapshots = append(snapshots, sess.snapshotLocked())
	}
	s.mu.Unlock()

	// Branch lookups shell out to git; keep them outside the lock.
	if s.git != nil {
		for i := range snapshots {
			if snapshots[i].GitRepo {
				snapshots[i].GitBranch = s.git.Branch(ctx, snapshots[i].WorkDir)
			}
		}
	}
	return schema.ListSessionsResponse{Sessions: snapshots}, nil
}

func (s *service) CreateTab(ctx context.Context, req schema.CreateTabRequest) (schema.CreateTabResponse, error) {
	s.mu.Lock()
	sess, ok := s.sessions[req.SessionID]
	if !ok {
		s.mu.Unlock()
		return schema.CreateTabResponse{}, schema.ErrSessionNotFound
	}
	tab := s.newTabLocked(sess, req.Name, req.ReadOnly)
	sess.active = tab.ID
	snapshot := tab.Snapshot(true)
	tabsEvent := s.tabsChangedLocked(sess)
	s.persistLocked(sess)
	s.mu.Unlock()

	logx.WithSessionTab(ctx, req.SessionID, snapshot.ID).Info("service tab created", "tab_name", snapshot.Name, "read_only", snapshot.ReadOnly)
	s.emitTabsChanged(tabsEvent)
	return schema.CreateTabResponse{Tab: snapshot}, nil
}

func (s *service) CloseTab(ctx context.Context, req schema.CloseTabRequest) (schema.CloseTabResponse, error) {
	log := logx.WithSessionTab(ctx, req.SessionID, req.TabID)
	s.mu.Lock()
	sess, tab, err := s.tabLocked(req.SessionID, req.TabID)
	if err != nil {
		s.mu.Unlock()
		return schema.CloseTabResponse{}, err
	}
	if tab.runCancel != nil {
		tab.runCancel()
	}
	if tab.run != nil {
		_ = tab.run.Close()
		tab.run = nil
	}
	tab.Status = schema.TabIdle
	snapshot := tab.Snapshot(false)
	// Deferred work targeting the tab dies with it.
	kept := sess.queue[:0]
	dropped := 0
	for _, item := range sess.queue {
		if item.TabID != req.TabID {
			kept = append(kept, item)
			continue
		}
		dropped++
		log.Warn("service queue item dropped", "label", item.Label, "reason", "tab closed")
	}
	sess.queue = kept
	sess.removeTabLocked(req.TabID)
	stateChanged := sess.refreshStateLocked()
	starts := s.drainLocked(sess)
	stateEvent := s.sessionStateLocked(sess)
	tabsEvent := s.tabsChangedLocked(sess)
	s.persistLocked(sess)
	s.mu.Unlock()

	log.Info("service tab closed", "tab_name", snapshot.Name)
	s.emitTabsChanged(tabsEvent)
	// Dropped queue items change the queue length even when the session
	// state string does not; clients still need the fresh snapshot.
	if stateChanged || len(starts) > 0 || dropped > 0 {
		s.emitSessionState(stateEvent)
	}
	s.launchStarts(ctx, starts)
	return schema.CloseTabResponse{Tab: snapshot}, nil
}

func (s *service) RenameTab(ctx context.Context, req schema.RenameTabRequest) (schema.RenameTabResponse, error) {
	s.mu.Lock()
	sess, tab, err := s.tabLocked(req.SessionID, req.TabID)
	if err != nil {
		s.mu.Unlock()
		return schema.RenameTabResponse{}, err
	}
	name := req.Name
	if strings.TrimSpace(string(name)) == "" {
		name = s.defaultTabNameLocked(sess, tab.ID)
	}
	tab.Name = s.clampTabName(name)
	snapshot := tab.Snapshot(sess.active == tab.ID)
	tabsEvent := s.tabsChangedLocked(sess)
	s.persistLocked(sess)
	s.mu.Unlock()

	logx.WithSessionTab(ctx, req.SessionID, req.TabID).Info("service tab renamed", "tab_name", snapshot.Name)
	s.emitTabsChanged(tabsEvent)
	return schema.RenameTabResponse{Tab: snapshot}, nil
}

func (s *service) ActivateTab(ctx context.Context, req schema.ActivateTabRequest) (schema.ActivateTabResponse, error) {
	s.mu.Lock()
	sess, tab, err := s.tabLocked(req.SessionID, req.TabID)
	if err != nil {
		s.mu.Unlock()
		return schema.ActivateTabResponse{}, err
	}
	sess.active = tab.ID
	snapshot := tab.Snapshot(true)
	tabsEvent := s.tabsChangedLocked(sess)
	s.persistLocked(sess)
	s.mu.Unlock()

	s.emitTabsChanged(tabsEvent)
	return schema.ActivateTabResponse{Tab: snapshot}, nil
}

func (s *service) SetInputMode(ctx context.Context, req schema.SetInputModeRequest) (schema.SetInputModeResponse, error) {
	mode, ok := schema.NormalizeInputMode(string(req.Mode))
	if !ok {
		return schema.SetInputModeResponse{}, fmt.Errorf("%w: input mode %q", schema.ErrInvalidRequest, req.Mode)
	}
	s.mu.Lock()
	sess, found := s.sessions[req.SessionID]
	if !found {
		s.mu.Unlock()
		return schema.SetInputModeResponse{}, schema.ErrSessionNotFound
	}
	sess.InputMode = mode
	snapshot := sess.snapshotLocked()
	s.persistLocked(sess)
	s.mu.Unlock()

	logx.WithSession(ctx, req.SessionID).Info("service input mode set", "input_mode", mode)
	return schema.SetInputModeResponse{Session: snapshot}, nil
}

func (s *service) GetEntries(_ context.Context, req schema.GetEntriesRequest) (schema.GetEntriesResponse, error) {
	s.mu.Lock()
	_, tab, err := s.tabLocked(req.SessionID, req.TabID)
	if err != nil {
		s.mu.Unlock()
		return schema.GetEntriesResponse{}, err
	}
	entries := tab.entries.Tail(req.Limit)
	total := tab.entries.Total()
	s.mu.Unlock()
	return schema.GetEntriesResponse{Entries: entries, Total: total}, nil
}

func (s *service) SetTheme(ctx context.Context, req schema.SetThemeRequest) (schema.SetThemeResponse, error) {
	theme, ok := schema.NormalizeThemeName(string(req.Theme))
	if !ok {
		return schema.SetThemeResponse{}, fmt.Errorf("%w: unknown theme %q", schema.ErrInvalidRequest, req.Theme)
	}
	s.mu.Lock()
	s.theme = theme
	s.mu.Unlock()

	logx.Ctx(ctx).Info("service theme set", "theme", theme)
	if s.sink != nil {
		s.sink.OnTheme(schema.ThemeEvent{Theme: theme})
	}
	return schema.SetThemeResponse{Theme: theme}, nil
}

func (s *service) SetAutorun(ctx context.Context, req schema.SetAutorunRequest) (schema.SetAutorunResponse, error) {
	s.mu.Lock()
	sess, ok := s.sessions[req.SessionID]
	if !ok {
		s.mu.Unlock()
		return schema.SetAutorunResponse{}, schema.ErrSessionNotFound
	}
	sess.autorun = req.State
	var starts []runStart
	stateEvent := s.sessionStateLocked(sess)
	if req.State == nil {
		// Clearing the runner may admit deferred write work.
		starts = s.drainLocked(sess)
		stateEvent = s.sessionStateLocked(sess)
		s.persistLocked(sess)
	}
	s.mu.Unlock()

	if s.sink != nil {
		s.sink.OnAutorun(schema.AutorunEvent{SessionID: req.SessionID, State: req.State})
	}
	if len(starts) > 0 {
		s.emitSessionState(stateEvent)
	}
	s.launchStarts(ctx, starts)
	return schema.SetAutorunResponse{State: req.State}, nil
}

func (s *service) ReportTerminalActivity(ctx context.Context, sessionID schema.SessionID, busy bool) error {
	s.mu.Lock()
	sess, ok := s.sessions[sessionID]
	if !ok {
		s.mu.Unlock()
		return schema.ErrSessionNotFound
	}
	sess.terminalBusy = busy
	changed := sess.refreshStateLocked()
	var starts []runStart
	if !busy {
		starts = s.drainLocked(sess)
		if len(starts) > 0 {
			s.persistLocked(sess)
		}
	}
	stateEvent := s.sessionStateLocked(sess)
	s.mu.Unlock()

	if changed || len(starts) > 0 {
		s.emitSessionState(stateEvent)
	}
	s.launchStarts(ctx, starts)
	return nil
}

func (s *service) SessionState(sessionID schema.SessionID) (schema.SessionSnapshot, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[sessionID]
	if !ok {
		return schema.SessionSnapshot{}, false
	}
	return sess.snapshotLocked(), true
}

func (s *service) Theme() schema.ThemeName {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.theme
}

// newTabLocked creates a tab with a deduplicated default name when none is
// given and appends it to the session's order.
func (s *service) newTabLocked(sess *session, name schema.TabName, readOnly bool) *tab {
	id := schema.TabID(newID())
	tab := &tab{
		ID:       id,
		Status:   schema.TabIdle,
		ReadOnly: readOnly,
		entries:  newEntryLog(s.cfg.EntryMaxLines),
	}
	sess.tabs[id] = tab
	sess.order = append(sess.order, id)
	if strings.TrimSpace(string(name)) == "" {
		name = s.defaultTabNameLocked(sess, id)
	}
	tab.Name = s.clampTabName(name)
	return tab
}

func (s *service) defaultTabNameLocked(sess *session, id schema.TabID) schema.TabName {
	position := len(sess.order)
	for i, ordered := range sess.order {
		if ordered == id {
			position = i + 1
			break
		}
	}
	return schema.TabName(fmt.Sprintf("tab %d", position))
}

// clampTabName enforces the configured display width. Truncated names carry
// a suffix so the clipping is visible.
func (s *service) clampTabName(name schema.TabName) schema.TabName {
	runes := []rune(strings.TrimSpace(string(name)))
	if len(runes) <= s.cfg.TabNameMax {
		return schema.TabName(string(runes))
	}
	suffix := []rune(s.cfg.TabNameSuffix)
	keep := s.cfg.TabNameMax - len(suffix)
	if keep < 1 {
		keep = 1
	}
	return schema.TabName(string(runes[:keep]) + string(suffix))
}

func (s *service) tabLocked(sessionID schema.SessionID, tabID schema.TabID) (*session, *tab, error) {
	sess, ok := s.sessions[sessionID]
	if !ok {
		return nil, nil, schema.ErrSessionNotFound
	}
	tab, ok := sess.tabs[tabID]
	if !ok {
		return nil, nil, schema.ErrTabNotFound
	}
	return sess, tab, nil
}

func (s *service) tabsChangedLocked(sess *session) schema.TabsChangedEvent {
	return schema.TabsChangedEvent{
		SessionID: sess.ID,
		Tabs:      sess.tabSnapshotsLocked(),
		ActiveTab: sess.active,
	}
}

func (s *service) sessionStateLocked(sess *session) schema.SessionStateEvent {
	return schema.SessionStateEvent{
		SessionID: sess.ID,
		State:     sess.State,
		Source:    sess.BusySource,
		QueueLen:  len(sess.queue),
	}
}

func (s *service) emitTabsChanged(event schema.TabsChangedEvent) {
	if s.sink == nil {
		return
	}
	s.sink.OnTabsChanged(event)
}

func (s *service) emitSessionState(event schema.SessionStateEvent) {
	if s.sink == nil {
		return
	}
	s.sink.OnSessionState(event)
}

func (s *service) emitEntries(sessionID schema.SessionID, tabID schema.TabID, entries ...schema.Entry) {
	if s.sink == nil || len(entries) == 0 {
		return
	}
	s.sink.OnEntries(schema.EntryEvent{SessionID: sessionID, TabID: tabID, Entries: entries})
}

// persistLocked writes the session's durable state. Persistence failures are
// logged, never surfaced; the in-memory state stays authoritative.
func (s *service) persistLocked(sess *session) {
	if s.store == nil {
		return
	}
	record := persist.SessionRecord{
		ID:         sess.ID,
		WorkDir:    sess.WorkDir,
		DisplayDir: sess.DisplayDir,
		InputMode:  sess.InputMode,
		GitRepo:    sess.GitRepo,
		Overrides:  sess.Overrides,
		Order:      append([]schema.TabID(nil), sess.order...),
		ActiveTab:  sess.active,
	}
	for _, id := range sess.order {
		tab := sess.tabs[id]
		if tab == nil {
			continue
		}
		record.Tabs = append(record.Tabs, persist.TabRecord{
			ID:           tab.ID,
			Name:         tab.Name,
			ReadOnly:     tab.ReadOnly,
			AgentSession: tab.AgentSession,
			Entries:      tab.entries.Export(),
		})
	}
	for _, item := range sess.queue {
		record.Queue = append(record.Queue, persist.ItemRecord{
			ID:        item.ID,
			CreatedAt: item.CreatedAt,
			TabID:     item.TabID,
			Kind:      item.Kind,
			Text:      item.Text,
			Images:    item.Images,
			ReadOnly:  item.ReadOnly,
			Label:     item.Label,
		})
	}
	if err := s.store.Save(record); err != nil {
		s.logger.Warn("service state save failed", "session", sess.ID, "err", err)
	}
}

// displayDirFor resolves a cd target against the session's display dir.
func displayDirFor(current, target string) (string, bool) {
	target = strings.TrimSpace(target)
	if target == "" {
		return current, false
	}
	resolved := target
	if strings.HasPrefix(resolved, "~") {
		home, err := os.UserHomeDir()
		if err == nil {
			resolved = filepath.Join(home, strings.TrimPrefix(resolved, "~"))
		}
	}
	if !filepath.IsAbs(resolved) {
		resolved = filepath.Join(current, resolved)
	}
	resolved = filepath.Clean(resolved)
	info, err := os.Stat(resolved)
	if err != nil || !info.IsDir() {
		return current, false
	}
	return resolved, true
}
