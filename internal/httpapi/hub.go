// Package httpapi exposes the gin + websocket surface a UI process drives
// the orchestrator through (§6 "HTTP surface"), generalizing the teacher's
// internal/websocket Hub from per-tenant session broadcast to per-topic
// EventBus fan-out, plus the inbound leg of the correlated UI round-trip
// channel that backs HostCallRouter's GetCurrentSong/GetPlayerState/etc.
package httpapi

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/moosync/moosyncd/internal/eventbus"
	"github.com/moosync/moosyncd/internal/hostcall"
	"github.com/moosync/moosyncd/internal/logger"
)

const (
	writeWait  = 10 * time.Second
	pingPeriod = 30 * time.Second
	sendBuffer = 256
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// outbound is every frame the server pushes to the UI: a fanned-out
// EventBus event, or a correlated round-trip request minted by UIBridge.
type outbound struct {
	Kind    string `json:"kind"`
	Topic   string `json:"topic,omitempty"`
	Token   string `json:"token,omitempty"`
	Payload any    `json:"payload,omitempty"`
}

// inbound is what the UI sends back: either a correlated reply to a round
// trip request, or (reserved) a client->server command in a future revision.
type inbound struct {
	Token   string `json:"token"`
	Payload any    `json:"payload"`
}

// Hub fans EventBus topics out to every connected UI client and feeds
// correlated replies back into UIBridge.
type Hub struct {
	bus    *eventbus.Bus
	bridge *hostcall.UIBridge

	mu      sync.RWMutex
	clients map[*client]bool
}

type client struct {
	conn *websocket.Conn
	send chan []byte
}

func NewHub(bus *eventbus.Bus, bridge *hostcall.UIBridge) *Hub {
	h := &Hub{bus: bus, bridge: bridge, clients: make(map[*client]bool)}
	bridge.SetSender(h.sendRoundTrip)
	h.subscribeAll()
	return h
}

func (h *Hub) subscribeAll() {
	topics := []string{
		eventbus.TopicPlayerState,
		eventbus.TopicPlayerTime,
		eventbus.TopicPlayerSong,
		eventbus.TopicQueueChanged,
		eventbus.TopicLibrarySong,
		eventbus.TopicLibraryPlaylist,
		eventbus.TopicProviderStatus,
	}
	for _, topic := range topics {
		sub := h.bus.Subscribe(topic, "ui")
		go func(topic string) {
			for ev := range sub.C() {
				h.broadcast(outbound{Kind: "event", Topic: topic, Payload: ev})
			}
		}(topic)
	}
}

// sendRoundTrip implements hostcall.Sender: it pushes a correlated request
// frame to every connected client (in practice there is exactly one UI).
func (h *Hub) sendRoundTrip(token, kind string) error {
	h.broadcast(outbound{Kind: "request", Topic: kind, Token: token})
	return nil
}

func (h *Hub) broadcast(msg outbound) {
	data, err := json.Marshal(msg)
	if err != nil {
		logger.HTTP().Error().Err(err).Msg("failed to encode ui frame")
		return
	}

	h.mu.RLock()
	stale := []*client{}
	for c := range h.clients {
		select {
		case c.send <- data:
		default:
			stale = append(stale, c)
		}
	}
	h.mu.RUnlock()

	if len(stale) > 0 {
		h.mu.Lock()
		for _, c := range stale {
			delete(h.clients, c)
			close(c.send)
		}
		h.mu.Unlock()
	}
}

// ServeWS upgrades the connection and runs its read/write pumps.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.HTTP().Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	c := &client{conn: conn, send: make(chan []byte, sendBuffer)}
	h.mu.Lock()
	h.clients[c] = true
	h.mu.Unlock()

	go h.writePump(c)
	go h.readPump(c)
}

func (h *Hub) readPump(c *client) {
	defer func() {
		h.mu.Lock()
		if _, ok := h.clients[c]; ok {
			delete(h.clients, c)
			close(c.send)
		}
		h.mu.Unlock()
		c.conn.Close()
	}()

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		var in inbound
		if err := json.Unmarshal(data, &in); err != nil {
			continue
		}
		if in.Token != "" {
			if err := h.bridge.Resolve(in.Token, in.Payload); err != nil {
				logger.HTTP().Debug().Err(err).Msg("dropped ui reply")
			}
		}
	}
}

func (h *Hub) writePump(c *client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
