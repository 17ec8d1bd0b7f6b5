package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"GEFlip/internal/usecase"
	applogger "GEFlip/pkg/logger"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
)

const (
	writeWait = 10 * time.Second

	pongWait = 60 * time.Second

	// pingPeriod must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	maxMessageSize = 4096

	sendBufferSize = 64
)

// Channels clients can subscribe to. New connections start with both.
const (
	ChannelRisk          = "risk"
	ChannelOpportunities = "opportunities"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

type client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte
	subs map[string]bool
	mu   sync.RWMutex
}

// subscribeMsg is the JSON frame a client sends to manage its channels,
// e.g. {"subscribe":["risk"],"unsubscribe":["opportunities"]}.
type subscribeMsg struct {
	Subscribe   []string `json:"subscribe"`
	Unsubscribe []string `json:"unsubscribe"`
}

type broadcastMsg struct {
	channel string
	data    []byte
}

// envelope wraps every outgoing frame so clients can switch on type.
type envelope struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
	SentAt  time.Time   `json:"sent_at"`
}

// Hub fans portfolio assessments and opportunity scans out to connected
// WebSocket clients.
type Hub struct {
	clients    map[*client]bool
	broadcast  chan broadcastMsg
	register   chan *client
	unregister chan *client

	monitor       *usecase.RiskMonitor
	opportunities *usecase.OpportunitiesUseCase
	scanInterval  time.Duration

	mu sync.RWMutex
	l  *applogger.Logger
}

func NewHub(monitor *usecase.RiskMonitor, opportunities *usecase.OpportunitiesUseCase, scanInterval time.Duration) *Hub {
	if scanInterval <= 0 {
		scanInterval = 30 * time.Second
	}
	return &Hub{
		clients:       make(map[*client]bool),
		broadcast:     make(chan broadcastMsg, 256),
		register:      make(chan *client),
		unregister:    make(chan *client),
		monitor:       monitor,
		opportunities: opportunities,
		scanInterval:  scanInterval,
	}
}

// SetLogger injects a structured logger.
func (h *Hub) SetLogger(l *applogger.Logger) { h.l = l }

func (h *Hub) RegisterRoutes(e *echo.Echo) {
	e.GET("/ws", h.Handle)
}

// Run drives registration and broadcasting until ctx is cancelled. Call it
// in a goroutine before serving connections.
func (h *Hub) Run(ctx context.Context) error {
	go h.pumpRisk(ctx)
	go h.pumpOpportunities(ctx)

	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for c := range h.clients {
				close(c.send)
				delete(h.clients, c)
			}
			h.mu.Unlock()
			return ctx.Err()

		case c := <-h.register:
			h.mu.Lock()
			h.clients[c] = true
			h.mu.Unlock()
			if h.l != nil {
				h.l.Info("ws client connected", applogger.Int("total_clients", h.clientCount()))
			}

		case c := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				close(c.send)
			}
			h.mu.Unlock()
			if h.l != nil {
				h.l.Info("ws client disconnected", applogger.Int("total_clients", h.clientCount()))
			}

		case msg := <-h.broadcast:
			h.mu.RLock()
			for c := range h.clients {
				if !c.isSubscribed(msg.channel) {
					continue
				}
				select {
				case c.send <- msg.data:
				default:
					if h.l != nil {
						h.l.Warn("ws dropping frame for slow client")
					}
				}
			}
			h.mu.RUnlock()
		}
	}
}

// pumpRisk forwards every portfolio assessment from the risk monitor.
func (h *Hub) pumpRisk(ctx context.Context) {
	if h.monitor == nil {
		return
	}
	ch, cancel := h.monitor.Subscribe()
	defer cancel()

	for {
		select {
		case <-ctx.Done():
			return
		case assessment, ok := <-ch:
			if !ok {
				return
			}
			h.publish(ChannelRisk, "portfolio_assessment", assessment)
		}
	}
}

// pumpOpportunities re-scans the market on a fixed interval. Scans only run
// while at least one client is subscribed.
func (h *Hub) pumpOpportunities(ctx context.Context) {
	if h.opportunities == nil {
		return
	}
	ticker := time.NewTicker(h.scanInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if h.clientCount() == 0 {
				continue
			}
			res, err := h.opportunities.Scan(ctx, usecase.ScanParams{})
			if err != nil {
				if h.l != nil {
					h.l.Warn("ws opportunity scan error", applogger.Error(err))
				}
				continue
			}
			h.publish(ChannelOpportunities, "opportunities", res)
		}
	}
}

func (h *Hub) publish(channel, typ string, payload interface{}) {
	b, err := json.Marshal(envelope{Type: typ, Payload: payload, SentAt: time.Now()})
	if err != nil {
		return
	}
	select {
	case h.broadcast <- broadcastMsg{channel: channel, data: b}:
	default:
		if h.l != nil {
			h.l.Warn("ws broadcast queue full", applogger.String("channel", channel))
		}
	}
}

// Handle upgrades the request and registers the connection.
// GET /ws
func (h *Hub) Handle(c echo.Context) error {
	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		if h.l != nil {
			h.l.Error("ws upgrade failed", applogger.Error(err))
		}
		return nil
	}

	cl := &client{
		hub:  h,
		conn: conn,
		send: make(chan []byte, sendBufferSize),
		subs: map[string]bool{ChannelRisk: true, ChannelOpportunities: true},
	}
	h.register <- cl

	go cl.writePump()
	go cl.readPump()
	return nil
}

func (h *Hub) clientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (c *client) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				if c.hub.l != nil {
					c.hub.l.Warn("ws unexpected close", applogger.Error(err))
				}
			}
			return
		}

		var sub subscribeMsg
		if jsonErr := json.Unmarshal(message, &sub); jsonErr == nil {
			c.handleSubscription(sub)
		}
	}
}

func (c *client) handleSubscription(msg subscribeMsg) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, ch := range msg.Subscribe {
		c.subs[ch] = true
	}
	for _, ch := range msg.Unsubscribe {
		delete(c.subs, ch)
	}
}

func (c *client) isSubscribed(channel string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.subs[channel]
}

func (c *client) writePump() {
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
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
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
