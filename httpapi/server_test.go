package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/ryanhaqueIT/vibedeck/schema"
)

type fakeAuth struct {
	username string
	password string
}

func (a *fakeAuth) Authenticate(username, password, _ string) error {
	if username == a.username && password == a.password {
		return nil
	}
	return errors.New("invalid credentials")
}

func (a *fakeAuth) ChangePassword(username, currentPassword, _, newPassword string) error {
	if username != a.username || currentPassword != a.password {
		return errors.New("invalid credentials")
	}
	a.password = newPassword
	return nil
}

// fakeService satisfies core.Service with canned entries and state.
type fakeService struct {
	entries []schema.Entry
	states  map[schema.SessionID]schema.SessionSnapshot
}

func (f *fakeService) CreateSession(context.Context, schema.CreateSessionRequest) (schema.CreateSessionResponse, error) {
	return schema.CreateSessionResponse{}, nil
}

func (f *fakeService) CloseSession(context.Context, schema.CloseSessionRequest) (schema.CloseSessionResponse, error) {
	return schema.CloseSessionResponse{}, nil
}

func (f *fakeService) ListSessions(context.Context, schema.ListSessionsRequest) (schema.ListSessionsResponse, error) {
	return schema.ListSessionsResponse{}, nil
}

func (f *fakeService) CreateTab(context.Context, schema.CreateTabRequest) (schema.CreateTabResponse, error) {
	return schema.CreateTabResponse{}, nil
}

func (f *fakeService) CloseTab(context.Context, schema.CloseTabRequest) (schema.CloseTabResponse, error) {
	return schema.CloseTabResponse{}, nil
}

func (f *fakeService) RenameTab(context.Context, schema.RenameTabRequest) (schema.RenameTabResponse, error) {
	return schema.RenameTabResponse{}, nil
}

func (f *fakeService) ActivateTab(context.Context, schema.ActivateTabRequest) (schema.ActivateTabResponse, error) {
	return schema.ActivateTabResponse{}, nil
}

func (f *fakeService) SetInputMode(context.Context, schema.SetInputModeRequest) (schema.SetInputModeResponse, error) {
	return schema.SetInputModeResponse{}, nil
}

func (f *fakeService) Submit(context.Context, schema.SubmitRequest) (schema.SubmitResponse, error) {
	return schema.SubmitResponse{}, nil
}

func (f *fakeService) StopTab(context.Context, schema.StopTabRequest) (schema.StopTabResponse, error) {
	return schema.StopTabResponse{}, nil
}

func (f *fakeService) GetEntries(_ context.Context, req schema.GetEntriesRequest) (schema.GetEntriesResponse, error) {
	if req.SessionID == "" {
		return schema.GetEntriesResponse{}, schema.ErrSessionNotFound
	}
	return schema.GetEntriesResponse{Entries: f.entries, Total: len(f.entries)}, nil
}

func (f *fakeService) SetTheme(context.Context, schema.SetThemeRequest) (schema.SetThemeResponse, error) {
	return schema.SetThemeResponse{}, nil
}

func (f *fakeService) SetAutorun(context.Context, schema.SetAutorunRequest) (schema.SetAutorunResponse, error) {
	return schema.SetAutorunResponse{}, nil
}

func (f *fakeService) ReportTerminalActivity(context.Context, schema.SessionID, bool) error {
	return nil
}

func (f *fakeService) SessionState(sessionID schema.SessionID) (schema.SessionSnapshot, bool) {
	snap, ok := f.states[sessionID]
	return snap, ok
}

func (f *fakeService) Theme() schema.ThemeName {
	return schema.DefaultTheme
}

func newTestServer(t *testing.T) (*httptest.Server, *fakeService, *fakeAuth) {
	t.Helper()
	svc := &fakeService{
		entries: []schema.Entry{{Source: schema.EntryAgent, Text: "done"}},
		states: map[schema.SessionID]schema.SessionSnapshot{
			"busy-session": {ID: "busy-session", State: schema.SessionBusy, BusySource: schema.BusySourceAI},
			"idle-session": {ID: "idle-session", State: schema.SessionIdle},
		},
	}
	auth := &fakeAuth{username: "alice", password: "secret"}
	hub := NewHub()
	handler := NewHandler(Bindings{
		ExecuteCommand: func(context.Context, schema.SessionID, schema.TabID, string, schema.InputMode) error {
			return nil
		},
	}, svc, hub)
	server := NewServer(Config{
		SessionCookie:   "vibedeck_session",
		SessionTTLHours: 1,
		RatePerSecond:   100,
		RateBurst:       100,
	}, svc, auth, handler, hub)
	ts := httptest.NewServer(server.Handler())
	t.Cleanup(ts.Close)
	return ts, svc, auth
}

func login(t *testing.T, ts *httptest.Server, username, password string) *http.Cookie {
	t.Helper()
	body, _ := json.Marshal(map[string]string{"username": username, "password": password})
	resp, err := http.Post(ts.URL+"/api/login", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("login status %d", resp.StatusCode)
	}
	for _, cookie := range resp.Cookies() {
		if cookie.Name == "vibedeck_session" {
			return cookie
		}
	}
	t.Fatalf("expected session cookie")
	return nil
}

func TestLoginAndMe(t *testing.T) {
	ts, _, _ := newTestServer(t)
	cookie := login(t, ts, "alice", "secret")

	req, _ := http.NewRequest(http.MethodGet, ts.URL+"/api/me", nil)
	req.AddCookie(cookie)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("me: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("me status %d", resp.StatusCode)
	}
	var payload struct {
		Username string `json:"username"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		t.Fatalf("decode me: %v", err)
	}
	if payload.Username != "alice" {
		t.Fatalf("unexpected username %q", payload.Username)
	}
}

func TestLoginRejectsBadPassword(t *testing.T) {
	ts, _, _ := newTestServer(t)
	body, _ := json.Marshal(map[string]string{"username": "alice", "password": "wrong"})
	resp, err := http.Post(ts.URL+"/api/login", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.StatusCode)
	}
}

func TestLogoutInvalidatesSession(t *testing.T) {
	ts, _, _ := newTestServer(t)
	cookie := login(t, ts, "alice", "secret")

	req, _ := http.NewRequest(http.MethodPost, ts.URL+"/api/logout", nil)
	req.AddCookie(cookie)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("logout: %v", err)
	}
	resp.Body.Close()

	req, _ = http.NewRequest(http.MethodGet, ts.URL+"/api/me", nil)
	req.AddCookie(cookie)
	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("me: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 after logout, got %d", resp.StatusCode)
	}
}

func TestEntriesRequiresSession(t *testing.T) {
	ts, _, _ := newTestServer(t)
	resp, err := http.Get(ts.URL + "/api/entries?session_id=s1")
	if err != nil {
		t.Fatalf("entries: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.StatusCode)
	}
}

func TestEntriesReturnsTail(t *testing.T) {
	ts, _, _ := newTestServer(t)
	cookie := login(t, ts, "alice", "secret")

	req, _ := http.NewRequest(http.MethodGet, ts.URL+"/api/entries?session_id=s1&tab_id=t1&limit=10", nil)
	req.AddCookie(cookie)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("entries: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("entries status %d", resp.StatusCode)
	}
	var payload schema.GetEntriesResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		t.Fatalf("decode entries: %v", err)
	}
	if payload.Total != 1 || len(payload.Entries) != 1 || payload.Entries[0].Text != "done" {
		t.Fatalf("unexpected entries payload: %+v", payload)
	}
}

func TestChangePassword(t *testing.T) {
	ts, _, auth := newTestServer(t)
	cookie := login(t, ts, "alice", "secret")

	body, _ := json.Marshal(map[string]string{
		"current_password": "secret",
		"new_password":     "better secret",
		"confirm_password": "better secret",
	})
	req, _ := http.NewRequest(http.MethodPost, ts.URL+"/api/chpasswd", bytes.NewReader(body))
	req.AddCookie(cookie)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("chpasswd: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("chpasswd status %d", resp.StatusCode)
	}
	if auth.password != "better secret" {
		t.Fatalf("expected password to change")
	}
}

func dialWebSocket(t *testing.T, ts *httptest.Server, token string) *websocket.Conn {
	t.Helper()
	url := strings.Replace(ts.URL, "http", "ws", 1) + "/ws?token=" + token
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial ws: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readWSMessage(t *testing.T, conn *websocket.Conn) schema.ServerMessage {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var msg schema.ServerMessage
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("read ws message: %v", err)
	}
	return msg
}

func TestWebSocketRequiresSession(t *testing.T) {
	ts, _, _ := newTestServer(t)
	url := strings.Replace(ts.URL, "http", "ws", 1) + "/ws"
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	if err == nil {
		t.Fatalf("expected dial to fail without session")
	}
	if resp == nil || resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 handshake response, got %+v", resp)
	}
}

func TestWebSocketPingPong(t *testing.T) {
	ts, _, _ := newTestServer(t)
	cookie := login(t, ts, "alice", "secret")
	conn := dialWebSocket(t, ts, cookie.Value)

	// The server seeds the connection with the current theme.
	if msg := readWSMessage(t, conn); msg.Type != schema.MsgTheme {
		t.Fatalf("expected theme seed, got %q", msg.Type)
	}

	if err := conn.WriteJSON(schema.ClientMessage{Type: schema.MsgPing}); err != nil {
		t.Fatalf("write ping: %v", err)
	}
	if msg := readWSMessage(t, conn); msg.Type != schema.MsgPong {
		t.Fatalf("expected pong, got %q", msg.Type)
	}
}

func TestWebSocketMessageContextOutlivesHandshake(t *testing.T) {
	svc := &fakeService{states: map[schema.SessionID]schema.SessionSnapshot{
		"idle-session": {ID: "idle-session", State: schema.SessionIdle},
	}}
	auth := &fakeAuth{username: "alice", password: "secret"}
	hub := NewHub()
	ctxErr := make(chan error, 1)
	handler := NewHandler(Bindings{
		ExecuteCommand: func(ctx context.Context, _ schema.SessionID, _ schema.TabID, _ string, _ schema.InputMode) error {
			ctxErr <- ctx.Err()
			return nil
		},
	}, svc, hub)
	server := NewServer(Config{
		SessionCookie:   "vibedeck_session",
		SessionTTLHours: 1,
		RatePerSecond:   100,
		RateBurst:       100,
	}, svc, auth, handler, hub)
	ts := httptest.NewServer(server.Handler())
	t.Cleanup(ts.Close)

	cookie := login(t, ts, "alice", "secret")
	conn := dialWebSocket(t, ts, cookie.Value)
	readWSMessage(t, conn) // theme seed

	// The upgrade handler has long returned by the time this message
	// arrives; the dispatch context must still be live.
	time.Sleep(50 * time.Millisecond)
	if err := conn.WriteJSON(schema.ClientMessage{
		Type:      schema.MsgSendCommand,
		SessionID: "idle-session",
		Command:   "touch it",
	}); err != nil {
		t.Fatalf("write command: %v", err)
	}
	readWSMessage(t, conn)
	select {
	case err := <-ctxErr:
		if err != nil {
			t.Fatalf("dispatch context already dead: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("dispatcher never ran")
	}
}

func TestWebSocketBusyCommandConflict(t *testing.T) {
	ts, _, _ := newTestServer(t)
	cookie := login(t, ts, "alice", "secret")
	conn := dialWebSocket(t, ts, cookie.Value)
	readWSMessage(t, conn) // theme seed

	if err := conn.WriteJSON(schema.ClientMessage{
		Type:      schema.MsgSendCommand,
		SessionID: "busy-session",
		Command:   "touch it",
	}); err != nil {
		t.Fatalf("write command: %v", err)
	}
	msg := readWSMessage(t, conn)
	if msg.Type != schema.MsgError {
		t.Fatalf("expected error message, got %q", msg.Type)
	}
	if msg.Message != schema.ErrSessionBusy.Error() {
		t.Fatalf("unexpected conflict message: %q", msg.Message)
	}

	if err := conn.WriteJSON(schema.ClientMessage{
		Type:      schema.MsgSendCommand,
		SessionID: "idle-session",
		Command:   "touch it",
	}); err != nil {
		t.Fatalf("write command: %v", err)
	}
	msg = readWSMessage(t, conn)
	if msg.Success == nil || !*msg.Success {
		t.Fatalf("expected success on idle session, got %+v", msg)
	}
}
