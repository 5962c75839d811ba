package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"github.com/ryanhaqueIT/vibedeck/core"
	"github.com/ryanhaqueIT/vibedeck/internal/logx"
	"github.com/ryanhaqueIT/vibedeck/schema"
)

// Authenticator verifies username, password, and totp.
type Authenticator interface {
	Authenticate(username, password, totp string) error
	ChangePassword(username, currentPassword, totp, newPassword string) error
}

// Server serves the remote-access HTTP API and websocket endpoint.
type Server struct {
	cfg       Config
	service   core.Service
	authStore Authenticator
	handler   *Handler
	hub       *Hub
	sessions  *sessionStore
	upgrader  websocket.Upgrader
}

// NewServer constructs the remote-access server.
func NewServer(cfg Config, service core.Service, authStore Authenticator, handler *Handler, hub *Hub) *Server {
	ttl := time.Duration(cfg.SessionTTLHours) * time.Hour
	if ttl <= 0 {
		ttl = 720 * time.Hour
	}
	if cfg.RatePerSecond <= 0 {
		cfg.RatePerSecond = 10
	}
	if cfg.RateBurst <= 0 {
		cfg.RateBurst = 20
	}
	if cfg.EntryTailLines <= 0 {
		cfg.EntryTailLines = 200
	}
	return &Server{
		cfg:       cfg,
		service:   service,
		authStore: authStore,
		handler:   handler,
		hub:       hub,
		sessions:  newSessionStore(ttl, cfg.SessionFile),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     originChecker(cfg.AllowedOrigins),
		},
	}
}

func originChecker(allowed []string) func(*http.Request) bool {
	if len(allowed) == 0 {
		return func(*http.Request) bool { return true }
	}
	set := make(map[string]struct{}, len(allowed))
	for _, origin := range allowed {
		set[strings.TrimRight(strings.TrimSpace(origin), "/")] = struct{}{}
	}
	return func(r *http.Request) bool {
		origin := strings.TrimRight(r.Header.Get("Origin"), "/")
		if origin == "" {
			return true
		}
		_, ok := set[origin]
		return ok
	}
}

// Handler returns an http.Handler for the server.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("/api/login", s.handleLogin)
	mux.HandleFunc("/api/logout", s.handleLogout)
	mux.HandleFunc("/api/me", s.requireSession(s.handleMe))
	mux.HandleFunc("/api/chpasswd", s.requireSession(s.handleChangePassword))
	mux.HandleFunc("/api/entries", s.requireSession(s.handleEntries))
	mux.HandleFunc("/ws", s.requireSession(s.handleWebSocket))
	return withRequestLogging(mux, s.lookupSession)
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	log := logx.Ctx(r.Context()).With("remote", clientIP(r))
	var payload struct {
		Username string `json:"username"`
		Password string `json:"password"`
		TOTP     string `json:"totp"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		log.Warn("http login decode failed", "err", err)
		writeError(w, http.StatusBadRequest, err)
		return
	}
	log = log.With("user", payload.Username)
	if err := s.authStore.Authenticate(payload.Username, payload.Password, payload.TOTP); err != nil {
		log.Warn("http login failed", "err", err)
		writeError(w, http.StatusUnauthorized, err)
		return
	}
	token, sess := s.sessions.create(payload.Username)
	http.SetCookie(w, &http.Cookie{
		Name:     s.cfg.SessionCookie,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Expires:  sess.expiresAt,
	})
	writeJSON(w, http.StatusOK, map[string]any{"username": payload.Username})
	log.Info("http login ok")
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	token := s.sessionToken(r)
	log := logx.Ctx(r.Context()).With("remote", clientIP(r))
	if token != "" {
		if entry, ok := s.sessions.get(token); ok {
			log = log.With("user", entry.username, "http_session", entry.id)
		}
		s.sessions.delete(token)
	}
	http.SetCookie(w, &http.Cookie{
		Name:     s.cfg.SessionCookie,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		MaxAge:   -1,
	})
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
	log.Info("http logout")
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request, username string) {
	writeJSON(w, http.StatusOK, map[string]any{"username": username})
}

func (s *Server) handleChangePassword(w http.ResponseWriter, r *http.Request, username string) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	log := logx.Ctx(r.Context()).With("user", username, "remote", clientIP(r))
	var payload struct {
		CurrentPassword string `json:"current_password"`
		TOTP            string `json:"totp"`
		NewPassword     string `json:"new_password"`
		ConfirmPassword string `json:"confirm_password"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		log.Warn("http chpasswd decode failed", "err", err)
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if strings.TrimSpace(payload.CurrentPassword) == "" {
		writeError(w, http.StatusBadRequest, errors.New("current password is required"))
		return
	}
	if strings.TrimSpace(payload.NewPassword) == "" {
		writeError(w, http.StatusBadRequest, errors.New("new password is required"))
		return
	}
	if payload.NewPassword != payload.ConfirmPassword {
		writeError(w, http.StatusBadRequest, errors.New("passwords do not match"))
		return
	}
	if err := s.authStore.ChangePassword(username, payload.CurrentPassword, payload.TOTP, payload.NewPassword); err != nil {
		log.Warn("http chpasswd failed", "err", err)
		writeError(w, http.StatusUnauthorized, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
	log.Info("http chpasswd ok")
}

func (s *Server) handleEntries(w http.ResponseWriter, r *http.Request, username string) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	sessionID := schema.SessionID(r.URL.Query().Get("session_id"))
	tabID := schema.TabID(r.URL.Query().Get("tab_id"))
	limit := parseInt(r.URL.Query().Get("limit"), s.cfg.EntryTailLines)
	log := logx.WithSessionTab(r.Context(), sessionID, tabID).With("user", username)
	resp, err := s.service.GetEntries(r.Context(), schema.GetEntriesRequest{
		SessionID: sessionID,
		TabID:     tabID,
		Limit:     limit,
	})
	if err != nil {
		log.Warn("http entries failed", "err", err)
		writeError(w, http.StatusBadRequest, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
	log.Debug("http entries ok", "entries", len(resp.Entries), "total", resp.Total)
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request, username string) {
	log := logx.Ctx(r.Context()).With("user", username, "remote", clientIP(r))
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn("ws upgrade failed", "err", err)
		return
	}
	c := &client{
		id:       schema.ClientID(uuid.NewString()),
		username: username,
		conn:     conn,
		send:     make(chan []byte, sendBufferSize),
		done:     make(chan struct{}),
		limiter:  rate.NewLimiter(rate.Limit(s.cfg.RatePerSecond), s.cfg.RateBurst),
	}
	total := s.hub.register(c)
	log = log.With("client", c.id)
	log.Info("ws client connected", "clients", total)

	// Seed the peer with the current theme so its first paint matches the
	// desktop.
	s.hub.sendTo(c, schema.ServerMessage{
		Type:      schema.MsgTheme,
		Timestamp: time.Now(),
		Theme:     s.service.Theme(),
	})

	// The request context dies as soon as this handler returns, but the
	// pumps outlive it. Detach cancellation from the request while keeping
	// its values for logging, and cancel when the read side exits.
	ctx, cancel := context.WithCancel(context.WithoutCancel(r.Context()))
	go s.writePump(c)
	go s.readPump(ctx, cancel, c)
}

func (s *Server) readPump(ctx context.Context, cancel context.CancelFunc, c *client) {
	defer func() {
		total := s.hub.unregister(c)
		c.closeSend()
		cancel()
		logx.Ctx(ctx).Info("ws client disconnected", "client", c.id, "clients", total)
	}()

	c.conn.SetReadLimit(512 * 1024)
	_ = c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logx.Ctx(ctx).Warn("ws read failed", "client", c.id, "err", err)
			}
			return
		}
		if !c.limiter.Allow() {
			logx.Ctx(ctx).Warn("ws message rate limited", "client", c.id)
			s.hub.sendTo(c, schema.ServerMessage{
				Type:      schema.MsgError,
				Timestamp: time.Now(),
				Message:   "rate limit exceeded",
			})
			continue
		}
		s.handler.Handle(ctx, c, data)
	}
}

func (s *Server) writePump(c *client) {
	ticker := time.NewTicker(30 * time.Second)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case <-c.done:
			_ = c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		case data := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (s *Server) requireSession(next func(http.ResponseWriter, *http.Request, string)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		log := logx.Ctx(r.Context()).With("remote", clientIP(r))
		token := s.sessionToken(r)
		if token == "" {
			log.Warn("http session missing")
			writeError(w, http.StatusUnauthorized, errors.New("missing session"))
			return
		}
		entry, ok := s.sessions.get(token)
		if !ok {
			log.Warn("http session invalid")
			writeError(w, http.StatusUnauthorized, errors.New("invalid session"))
			return
		}
		next(w, r, entry.username)
	}
}

// sessionToken reads the login cookie, falling back to a token query
// parameter for websocket clients that cannot set cookies.
func (s *Server) sessionToken(r *http.Request) string {
	if cookie, err := r.Cookie(s.cfg.SessionCookie); err == nil {
		return cookie.Value
	}
	return r.URL.Query().Get("token")
}

func (s *Server) lookupSession(r *http.Request) (string, string) {
	if s == nil || r == nil {
		return "", ""
	}
	token := s.sessionToken(r)
	if token == "" {
		return "", ""
	}
	entry, ok := s.sessions.get(token)
	if !ok {
		return "", ""
	}
	return entry.username, entry.id
}

func decodeJSON(body io.Reader, target any) error {
	decoder := json.NewDecoder(body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(target)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	data, _ := json.Marshal(payload)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]any{"error": err.Error()})
}

func parseInt(value string, fallback int) int {
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}
