package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"pkt.systems/pslog"

	"github.com/ryanhaqueIT/vibedeck/internal/logx"
	"github.com/ryanhaqueIT/vibedeck/schema"
)

// Bindings are the operations a remote peer may invoke. Nil entries make
// the corresponding message fail with schema.ErrNotConfigured.
type Bindings struct {
	ExecuteCommand func(ctx context.Context, sessionID schema.SessionID, tabID schema.TabID, command string, mode schema.InputMode) error
	SwitchMode     func(ctx context.Context, sessionID schema.SessionID, mode schema.InputMode) error
	SelectSession  func(ctx context.Context, sessionID schema.SessionID, tabID schema.TabID) error
	SelectTab      func(ctx context.Context, sessionID schema.SessionID, tabID schema.TabID) error
	NewTab         func(ctx context.Context, sessionID schema.SessionID) (schema.TabSnapshot, error)
	CloseTab       func(ctx context.Context, sessionID schema.SessionID, tabID schema.TabID) error
	RenameTab      func(ctx context.Context, sessionID schema.SessionID, tabID schema.TabID, name schema.TabName) (schema.TabSnapshot, error)
	ListSessions   func(ctx context.Context) ([]schema.SessionSnapshot, error)
}

// SessionDirectory answers busy-state questions for the conflict precheck.
type SessionDirectory interface {
	SessionState(sessionID schema.SessionID) (schema.SessionSnapshot, bool)
}

// Handler dispatches inbound peer messages onto the bound operations.
type Handler struct {
	bindings  Bindings
	directory SessionDirectory
	hub       *Hub
}

// NewHandler constructs a message handler.
func NewHandler(bindings Bindings, directory SessionDirectory, hub *Hub) *Handler {
	return &Handler{bindings: bindings, directory: directory, hub: hub}
}

// Handle decodes one inbound frame and replies to the originating peer.
// Malformed frames get an error reply; unknown types get an echo.
func (h *Handler) Handle(ctx context.Context, c *client, raw []byte) {
	var msg schema.ClientMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		logx.Ctx(ctx).Warn("ws message decode failed", "client", c.id, "err", err)
		h.hub.sendTo(c, schema.ServerMessage{
			Type:      schema.MsgError,
			Timestamp: time.Now(),
			Message:   "invalid message",
		})
		return
	}
	log := logx.Ctx(ctx).With("client", c.id, "msg_type", msg.Type)

	switch msg.Type {
	case schema.MsgPing:
		h.hub.sendTo(c, schema.ServerMessage{Type: schema.MsgPong, Timestamp: time.Now()})
	case schema.MsgSubscribe:
		c.subscribe(msg.SessionID)
		log.Debug("ws subscription set", "session", msg.SessionID)
		h.hub.sendTo(c, schema.ServerMessage{
			Type:      schema.MsgSubscribed,
			Timestamp: time.Now(),
			SessionID: msg.SessionID,
		})
	case schema.MsgSendCommand:
		h.handleSendCommand(ctx, c, msg)
	case schema.MsgSwitchMode:
		err := schema.ErrNotConfigured
		if h.bindings.SwitchMode != nil {
			err = h.bindings.SwitchMode(ctx, msg.SessionID, msg.Mode)
		}
		h.reply(c, log, schema.ServerMessage{
			Type:      schema.MsgModeSwitchResult,
			SessionID: msg.SessionID,
			InputMode: msg.Mode,
		}, err)
	case schema.MsgSelectSession:
		err := schema.ErrNotConfigured
		if h.bindings.SelectSession != nil {
			err = h.bindings.SelectSession(ctx, msg.SessionID, msg.TabID)
		}
		h.reply(c, log, schema.ServerMessage{
			Type:      schema.MsgSelectSessionResult,
			SessionID: msg.SessionID,
			TabID:     msg.TabID,
		}, err)
	case schema.MsgSelectTab:
		err := schema.ErrNotConfigured
		if h.bindings.SelectTab != nil {
			err = h.bindings.SelectTab(ctx, msg.SessionID, msg.TabID)
		}
		h.reply(c, log, schema.ServerMessage{
			Type:      schema.MsgSelectTabResult,
			SessionID: msg.SessionID,
			TabID:     msg.TabID,
		}, err)
	case schema.MsgNewTab:
		var tab schema.TabSnapshot
		err := schema.ErrNotConfigured
		if h.bindings.NewTab != nil {
			tab, err = h.bindings.NewTab(ctx, msg.SessionID)
		}
		h.reply(c, log, schema.ServerMessage{
			Type:      schema.MsgNewTabResult,
			SessionID: msg.SessionID,
			TabID:     tab.ID,
		}, err)
	case schema.MsgCloseTab:
		err := schema.ErrNotConfigured
		if h.bindings.CloseTab != nil {
			err = h.bindings.CloseTab(ctx, msg.SessionID, msg.TabID)
		}
		h.reply(c, log, schema.ServerMessage{
			Type:      schema.MsgCloseTabResult,
			SessionID: msg.SessionID,
			TabID:     msg.TabID,
		}, err)
	case schema.MsgRenameTab:
		name := schema.TabName("")
		if msg.NewName != nil {
			name = schema.TabName(*msg.NewName)
		}
		var tab schema.TabSnapshot
		err := schema.ErrNotConfigured
		if h.bindings.RenameTab != nil {
			tab, err = h.bindings.RenameTab(ctx, msg.SessionID, msg.TabID, name)
		}
		// Echo the name the tab actually carries; defaulting and length
		// clamping may have rewritten the requested one.
		h.reply(c, log, schema.ServerMessage{
			Type:      schema.MsgRenameTabResult,
			SessionID: msg.SessionID,
			TabID:     msg.TabID,
			NewName:   string(tab.Name),
		}, err)
	case schema.MsgGetSessions:
		h.handleGetSessions(ctx, c, log)
	default:
		log.Debug("ws unknown message type")
		h.hub.sendTo(c, schema.ServerMessage{
			Type:         schema.MsgEcho,
			Timestamp:    time.Now(),
			OriginalType: msg.Type,
			Data:         json.RawMessage(raw),
		})
	}
}

// handleSendCommand runs the busy precheck before handing the command to
// the dispatcher. A busy session is a hard conflict for remote peers; the
// command is rejected instead of queued on their behalf.
func (h *Handler) handleSendCommand(ctx context.Context, c *client, msg schema.ClientMessage) {
	log := logx.WithSession(ctx, msg.SessionID).With("client", c.id)
	if strings.TrimSpace(msg.Command) == "" {
		h.reply(c, log, schema.ServerMessage{
			Type:      schema.MsgCommandResult,
			SessionID: msg.SessionID,
			TabID:     msg.TabID,
		}, schema.ErrEmptyInput)
		return
	}
	if h.directory != nil {
		snap, ok := h.directory.SessionState(msg.SessionID)
		if ok && snap.State == schema.SessionBusy {
			log.Info("ws command rejected", "reason", "session busy")
			h.reply(c, log, schema.ServerMessage{
				Type:      schema.MsgCommandResult,
				SessionID: msg.SessionID,
				TabID:     msg.TabID,
			}, schema.ErrSessionBusy)
			return
		}
	}
	err := schema.ErrNotConfigured
	if h.bindings.ExecuteCommand != nil {
		err = h.bindings.ExecuteCommand(ctx, msg.SessionID, msg.TabID, msg.Command, msg.Mode)
	}
	if err == nil {
		log.Info("ws command accepted", "input_len", len(msg.Command))
	}
	h.reply(c, log, schema.ServerMessage{
		Type:      schema.MsgCommandResult,
		SessionID: msg.SessionID,
		TabID:     msg.TabID,
	}, err)
}

func (h *Handler) handleGetSessions(ctx context.Context, c *client, log pslog.Logger) {
	sessions := []schema.SessionSnapshot(nil)
	err := schema.ErrNotConfigured
	if h.bindings.ListSessions != nil {
		sessions, err = h.bindings.ListSessions(ctx)
	}
	if err != nil {
		log.Warn("ws sessions list failed", "err", err)
		h.hub.sendTo(c, schema.ServerMessage{
			Type:      schema.MsgError,
			Timestamp: time.Now(),
			Message:   err.Error(),
		})
		return
	}
	for i := range sessions {
		sessions[i].Clients = h.hub.SessionClients(sessions[i].ID)
	}
	h.hub.sendTo(c, schema.ServerMessage{
		Type:      schema.MsgSessionsList,
		Timestamp: time.Now(),
		Sessions:  sessions,
	})
}

// reply sends the result envelope on success. Failures turn into an
// error message so peers handle every fault through one path instead of
// per-result success flags.
func (h *Handler) reply(c *client, log pslog.Logger, msg schema.ServerMessage, err error) {
	if err != nil {
		if !errors.Is(err, schema.ErrSessionBusy) {
			log.Warn("ws operation failed", "result_type", msg.Type, "err", err)
		}
		h.hub.sendTo(c, schema.ServerMessage{
			Type:      schema.MsgError,
			Timestamp: time.Now(),
			SessionID: msg.SessionID,
			TabID:     msg.TabID,
			Message:   err.Error(),
		})
		return
	}
	msg.Timestamp = time.Now()
	msg.Success = schema.BoolPtr(true)
	h.hub.sendTo(c, msg)
}
