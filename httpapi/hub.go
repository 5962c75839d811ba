package httpapi

import (
	"context"
	"encoding/json"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"github.com/ryanhaqueIT/vibedeck/internal/logx"
	"github.com/ryanhaqueIT/vibedeck/schema"
)

// sendBufferSize bounds each client's outbound queue. A full queue drops
// the message for that client rather than blocking the broadcaster.
const sendBufferSize = 256

// client is one connected websocket peer. The write pump is the only
// goroutine touching conn for writes; everyone else goes through send.
type client struct {
	id       schema.ClientID
	username string
	conn     *websocket.Conn
	send     chan []byte
	done     chan struct{}
	once     sync.Once
	limiter  *rate.Limiter

	mu         sync.Mutex
	subscribed schema.SessionID
}

func (c *client) closeSend() {
	c.once.Do(func() {
		close(c.done)
	})
}

func (c *client) subscribe(sessionID schema.SessionID) {
	c.mu.Lock()
	c.subscribed = sessionID
	c.mu.Unlock()
}

func (c *client) subscription() schema.SessionID {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.subscribed
}

// Hub tracks connected peers and fans core events out to them. State,
// tab-list, theme, and autorun changes go to every client; input echoes
// and entry lines only reach clients subscribed to the session.
type Hub struct {
	mu      sync.Mutex
	clients map[*client]struct{}
}

// NewHub constructs an empty hub.
func NewHub() *Hub {
	return &Hub{clients: make(map[*client]struct{})}
}

func (h *Hub) register(c *client) int {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	total := len(h.clients)
	h.mu.Unlock()
	return total
}

func (h *Hub) unregister(c *client) int {
	h.mu.Lock()
	delete(h.clients, c)
	total := len(h.clients)
	h.mu.Unlock()
	return total
}

// ClientCount returns the number of connected peers.
func (h *Hub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// SessionClients returns how many peers are subscribed to a session.
func (h *Hub) SessionClients(sessionID schema.SessionID) int {
	h.mu.Lock()
	peers := make([]*client, 0, len(h.clients))
	for c := range h.clients {
		peers = append(peers, c)
	}
	h.mu.Unlock()
	count := 0
	for _, c := range peers {
		if c.subscription() == sessionID {
			count++
		}
	}
	return count
}

// OnSessionState implements core.EventSink.
func (h *Hub) OnSessionState(event schema.SessionStateEvent) {
	h.broadcastAll(schema.ServerMessage{
		Type:      schema.MsgSessionStateChange,
		Timestamp: time.Now(),
		SessionID: event.SessionID,
		State:     event.State,
		Metadata: map[string]string{
			"source":    string(event.Source),
			"queue_len": strconv.Itoa(event.QueueLen),
		},
	})
}

// OnTabsChanged implements core.EventSink.
func (h *Hub) OnTabsChanged(event schema.TabsChangedEvent) {
	h.broadcastAll(schema.ServerMessage{
		Type:        schema.MsgTabsChanged,
		Timestamp:   time.Now(),
		SessionID:   event.SessionID,
		AITabs:      event.Tabs,
		ActiveTabID: event.ActiveTab,
	})
}

// OnUserInput implements core.EventSink.
func (h *Hub) OnUserInput(event schema.UserInputEvent) {
	h.broadcastSession(event.SessionID, schema.ServerMessage{
		Type:      schema.MsgUserInput,
		Timestamp: time.Now(),
		SessionID: event.SessionID,
		Command:   event.Command,
		InputMode: event.InputMode,
	})
}

// OnEntries implements core.EventSink.
func (h *Hub) OnEntries(event schema.EntryEvent) {
	h.broadcastSession(event.SessionID, schema.ServerMessage{
		Type:      schema.MsgEntries,
		Timestamp: time.Now(),
		SessionID: event.SessionID,
		TabID:     event.TabID,
		Entries:   event.Entries,
	})
}

// OnAutorun implements core.EventSink.
func (h *Hub) OnAutorun(event schema.AutorunEvent) {
	h.broadcastAll(schema.AutorunMessage{
		Type:      schema.MsgAutorunState,
		Timestamp: time.Now(),
		SessionID: event.SessionID,
		State:     event.State,
	})
}

// OnTheme implements core.EventSink.
func (h *Hub) OnTheme(event schema.ThemeEvent) {
	h.broadcastAll(schema.ServerMessage{
		Type:      schema.MsgTheme,
		Timestamp: time.Now(),
		Theme:     event.Theme,
	})
}

func (h *Hub) broadcastAll(msg any) {
	h.fanOut(msg, nil)
}

func (h *Hub) broadcastSession(sessionID schema.SessionID, msg any) {
	h.fanOut(msg, func(c *client) bool {
		return c.subscription() == sessionID
	})
}

func (h *Hub) fanOut(msg any, keep func(*client) bool) {
	data, err := json.Marshal(msg)
	if err != nil {
		logx.Ctx(context.Background()).Warn("hub marshal failed", "err", err)
		return
	}
	h.mu.Lock()
	peers := make([]*client, 0, len(h.clients))
	for c := range h.clients {
		peers = append(peers, c)
	}
	h.mu.Unlock()

	dropped := 0
	for _, c := range peers {
		if keep != nil && !keep(c) {
			continue
		}
		select {
		case <-c.done:
		case c.send <- data:
		default:
			dropped++
		}
	}
	if dropped > 0 {
		logx.Ctx(context.Background()).Warn("hub message dropped", "dropped", dropped)
	}
}

// sendTo queues a message for a single peer.
func (h *Hub) sendTo(c *client, msg any) {
	data, err := json.Marshal(msg)
	if err != nil {
		logx.Ctx(context.Background()).Warn("hub marshal failed", "err", err)
		return
	}
	select {
	case <-c.done:
	case c.send <- data:
	default:
		logx.Ctx(context.Background()).Warn("client send buffer full", "client", c.id)
	}
}
