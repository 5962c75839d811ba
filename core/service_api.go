package core

import (
	"context"

	"github.com/ryanhaqueIT/vibedeck/schema"
)

// Service is the session, tab, and dispatch API of the engine.
type Service interface {
	CreateSession(ctx context.Context, req schema.CreateSessionRequest) (schema.CreateSessionResponse, error)
	CloseSession(ctx context.Context, req schema.CloseSessionRequest) (schema.CloseSessionResponse, error)
	ListSessions(ctx context.Context, req schema.ListSessionsRequest) (schema.ListSessionsResponse, error)
	CreateTab(ctx context.Context, req schema.CreateTabRequest) (schema.CreateTabResponse, error)
	CloseTab(ctx context.Context, req schema.CloseTabRequest) (schema.CloseTabResponse, error)
	RenameTab(ctx context.Context, req schema.RenameTabRequest) (schema.RenameTabResponse, error)
	ActivateTab(ctx context.Context, req schema.ActivateTabRequest) (schema.ActivateTabResponse, error)
	SetInputMode(ctx context.Context, req schema.SetInputModeRequest) (schema.SetInputModeResponse, error)
	Submit(ctx context.Context, req schema.SubmitRequest) (schema.SubmitResponse, error)
	StopTab(ctx context.Context, req schema.StopTabRequest) (schema.StopTabResponse, error)
	GetEntries(ctx context.Context, req schema.GetEntriesRequest) (schema.GetEntriesResponse, error)
	SetTheme(ctx context.Context, req schema.SetThemeRequest) (schema.SetThemeResponse, error)
	SetAutorun(ctx context.Context, req schema.SetAutorunRequest) (schema.SetAutorunResponse, error)
	ReportTerminalActivity(ctx context.Context, sessionID schema.SessionID, busy bool) error
	SessionState(sessionID schema.SessionID) (schema.SessionSnapshot, bool)
	Theme() schema.ThemeName
}
