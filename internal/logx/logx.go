package logx

import (
	"context"

	"github.com/ryanhaqueIT/vibedeck/schema"
	"pkt.systems/pslog"
)

type contextKey int

const (
	sessionKey contextKey = iota
	tabKey
)

// Ctx returns the logger bound to the provided context.
func Ctx(ctx context.Context) pslog.Logger {
	return pslog.Ctx(ctx)
}

// WithSession annotates the logger with the session id if present.
func WithSession(ctx context.Context, sessionID schema.SessionID) pslog.Logger {
	log := pslog.Ctx(ctx)
	if sessionID != "" {
		if current, ok := ctx.Value(sessionKey).(schema.SessionID); ok && current == sessionID {
			return log
		}
		log = log.With("session", sessionID)
	}
	return log
}

// WithSessionTab annotates the logger with session and tab identifiers.
func WithSessionTab(ctx context.Context, sessionID schema.SessionID, tabID schema.TabID) pslog.Logger {
	log := WithSession(ctx, sessionID)
	if tabID != "" {
		if current, ok := ctx.Value(tabKey).(schema.TabID); ok && current == tabID {
			return log
		}
		log = log.With("tab", tabID)
	}
	return log
}

// WithAgentSession annotates the logger with an agent session id when available.
func WithAgentSession(log pslog.Logger, agentSession schema.AgentSessionID) pslog.Logger {
	if agentSession != "" {
		log = log.With("agent_session", agentSession)
	}
	return log
}

// ContextWithSession stores the session marker on the context for log de-duplication.
func ContextWithSession(ctx context.Context, sessionID schema.SessionID) context.Context {
	if ctx == nil || sessionID == "" {
		return ctx
	}
	return context.WithValue(ctx, sessionKey, sessionID)
}

// ContextWithTab stores the tab marker on the context for log de-duplication.
func ContextWithTab(ctx context.Context, tabID schema.TabID) context.Context {
	if ctx == nil || tabID == "" {
		return ctx
	}
	return context.WithValue(ctx, tabKey, tabID)
}

// ContextWithSessionTab stores session/tab markers on the context for log de-duplication.
func ContextWithSessionTab(ctx context.Context, sessionID schema.SessionID, tabID schema.TabID) context.Context {
	return ContextWithTab(ContextWithSession(ctx, sessionID), tabID)
}

// ContextWithSessionTabLogger attaches the logger and session/tab markers to the context.
func ContextWithSessionTabLogger(ctx context.Context, log pslog.Logger, sessionID schema.SessionID, tabID schema.TabID) context.Context {
	ctx = pslog.ContextWithLogger(ctx, log)
	return ContextWithSessionTab(ctx, sessionID, tabID)
}

// CopyContextFields copies session/tab markers from src to dst.
func CopyContextFields(dst context.Context, src context.Context) context.Context {
	if src == nil {
		return dst
	}
	if session, ok := src.Value(sessionKey).(schema.SessionID); ok && session != "" {
		dst = ContextWithSession(dst, session)
	}
	if tab, ok := src.Value(tabKey).(schema.TabID); ok && tab != "" {
		dst = ContextWithTab(dst, tab)
	}
	return dst
}
