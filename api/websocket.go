package api

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"cosmossdk.io/log"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/greenmesh/greenmesh/pkg/eventsink"
)

// Channel names. Per-entity channels take a suffix: "job:7",
// "node:green1...", "type:job_settled".
const (
	ChannelEvents     = "events"
	channelJobPrefix  = "job:"
	channelNodePrefix = "node:"
	channelTypePrefix = "type:"
)

// WSMessage is a message sent to websocket clients.
type WSMessage struct {
	Type    string `json:"type"`
	Channel string `json:"channel,omitempty"`
	Data    any    `json:"data,omitempty"`
}

// WSSubscribeMessage is a client subscription request.
type WSSubscribeMessage struct {
	Type    string `json:"type"`
	Channel string `json:"channel"`
}

type delivery struct {
	channels []string
	message  WSMessage
}

type directMessage struct {
	client  *WebSocketClient
	message WSMessage
}

// WebSocketHub manages WebSocket connections
type WebSocketHub struct {
	logger     log.Logger
	upgrader   websocket.Upgrader
	clients    map[*WebSocketClient]bool
	broadcast  chan delivery
	direct     chan directMessage
	register   chan *WebSocketClient
	unregister chan *WebSocketClient
	done       chan struct{}
	closeOnce  sync.Once
	mu         sync.RWMutex
}

// WebSocketClient represents a WebSocket client
type WebSocketClient struct {
	hub           *WebSocketHub
	conn          *websocket.Conn
	send          chan WSMessage
	subscriptions map[string]bool
	mu            sync.RWMutex
}

var _ eventsink.Sink = (*WebSocketHub)(nil)

// NewWebSocketHub creates a new WebSocket hub
func NewWebSocketHub(logger log.Logger) *WebSocketHub {
	return &WebSocketHub{
		logger: logger.With("component", "websocket"),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		clients:    make(map[*WebSocketClient]bool),
		broadcast:  make(chan delivery, 256),
		direct:     make(chan directMessage, 64),
		register:   make(chan *WebSocketClient),
		unregister: make(chan *WebSocketClient),
		done:       make(chan struct{}),
	}
}

// Run starts the WebSocket hub
func (h *WebSocketHub) Run() {
	for {
		select {
		case <-h.done:
			h.mu.Lock()
			for client := range h.clients {
				delete(h.clients, client)
				close(client.send)
			}
			h.mu.Unlock()
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			total := len(h.clients)
			h.mu.Unlock()
			h.logger.Debug("client connected", "total", total)

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			total := len(h.clients)
			h.mu.Unlock()
			h.logger.Debug("client disconnected", "total", total)

		case d := <-h.direct:
			h.mu.Lock()
			if h.clients[d.client] {
				select {
				case d.client.send <- d.message:
				default:
				}
			}
			h.mu.Unlock()

		case d := <-h.broadcast:
			h.mu.Lock()
			for client := range h.clients {
				if !client.subscribedToAny(d.channels) {
					continue
				}
				select {
				case client.send <- d.message:
				default:
					// Client's send channel is full, drop the client
					delete(h.clients, client)
					close(client.send)
				}
			}
			h.mu.Unlock()
		}
	}
}

// Publish fans committed records out to subscribed clients.
func (h *WebSocketHub) Publish(ctx context.Context, records []eventsink.Record) error {
	for _, r := range records {
		channels := []string{ChannelEvents, channelTypePrefix + r.Type}
		if id := r.Attr("job_id"); id != "" {
			channels = append(channels, channelJobPrefix+id)
		}
		for _, key := range []string{"node", "audit_node", "payee"} {
			if addr := r.Attr(key); addr != "" {
				channels = append(channels, channelNodePrefix+addr)
			}
		}
		d := delivery{channels: channels, message: WSMessage{Type: "event", Channel: ChannelEvents, Data: r}}
		select {
		case h.broadcast <- d:
		case <-h.done:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// Close stops the hub and disconnects every client.
func (h *WebSocketHub) Close() error {
	h.closeOnce.Do(func() { close(h.done) })
	return nil
}

// GetConnectedClients returns the number of connected clients
func (h *WebSocketHub) GetConnectedClients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// handleWebSocket handles WebSocket connections
func (s *Server) handleWebSocket(c *gin.Context) {
	conn, err := s.wsHub.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.logger.Debug("websocket upgrade failed", "error", err)
		return
	}

	client := &WebSocketClient{
		hub:           s.wsHub,
		conn:          conn,
		send:          make(chan WSMessage, 256),
		subscriptions: make(map[string]bool),
	}

	select {
	case s.wsHub.register <- client:
	case <-s.wsHub.done:
		conn.Close()
		return
	}

	go client.writePump()
	go client.readPump()
}

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period (must be less than pongWait)
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer
	maxMessageSize = 512
)

// readPump pumps messages from the WebSocket connection to the hub
func (c *WebSocketClient) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.conn.Close()
	}()

	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.logger.Debug("websocket read failed", "error", err)
			}
			return
		}

		var msg WSSubscribeMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			c.reply(WSMessage{Type: "error", Data: "malformed message"})
			continue
		}
		c.handleMessage(msg)
	}
}

// writePump pumps messages from the hub to the WebSocket connection
func (c *WebSocketClient) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The hub closed the channel
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(message); err != nil {
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

// handleMessage handles incoming WebSocket messages
func (c *WebSocketClient) handleMessage(msg WSSubscribeMessage) {
	if msg.Channel == "" {
		c.reply(WSMessage{Type: "error", Data: "channel is required"})
		return
	}

	switch msg.Type {
	case "subscribe":
		c.mu.Lock()
		c.subscriptions[msg.Channel] = true
		c.mu.Unlock()
		c.reply(WSMessage{Type: "subscribed", Channel: msg.Channel})

	case "unsubscribe":
		c.mu.Lock()
		delete(c.subscriptions, msg.Channel)
		c.mu.Unlock()
		c.reply(WSMessage{Type: "unsubscribed", Channel: msg.Channel})

	default:
		c.reply(WSMessage{Type: "error", Data: "unknown message type " + msg.Type})
	}
}

func (c *WebSocketClient) subscribedToAny(channels []string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, ch := range channels {
		if c.subscriptions[ch] {
			return true
		}
	}
	return false
}

// reply queues a message for this client only. The hub owns the send
// channel, so replies go through it.
func (c *WebSocketClient) reply(msg WSMessage) {
	select {
	case c.hub.direct <- directMessage{client: c, message: msg}:
	case <-c.hub.done:
	}
}
