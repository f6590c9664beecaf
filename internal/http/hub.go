package http

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"retaildash/internal/log"
	"retaildash/internal/metrics"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024
	sendBuffer     = 8
)

// Websocket message types.
const (
	MsgCriteria  = "criteria"
	MsgDashboard = "dashboard"
	MsgReloaded  = "reloaded"
	MsgError     = "error"
)

// wsRequest is sent by clients to recompute the dashboard for a selection.
type wsRequest struct {
	Type     string         `json:"type"`
	Criteria CriteriaParams `json:"criteria"`
}

type wsResponse struct {
	Type      string         `json:"type"`
	Dashboard *dashboardJSON `json:"dashboard,omitempty"`
	Source    string         `json:"source,omitempty"`
	Error     string         `json:"error,omitempty"`
}

type computeFunc func(ctx context.Context, p CriteriaParams) (dashboardJSON, error)

type wsClient struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte
}

type directMessage struct {
	client *wsClient
	msg    []byte
}

// Hub tracks websocket clients. All writes to client send queues happen on
// the Run goroutine; a client whose queue is full is dropped.
type Hub struct {
	compute computeFunc
	logger  *log.Logger

	upgrader   websocket.Upgrader
	clients    map[*wsClient]struct{}
	register   chan *wsClient
	unregister chan *wsClient
	broadcast  chan []byte
	direct     chan directMessage
	done       chan struct{}
}

func NewHub(compute computeFunc, logger *log.Logger) *Hub {
	return &Hub{
		compute: compute,
		logger:  logger.WithComponent(log.ComponentWebSocket),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
		},
		clients:    make(map[*wsClient]struct{}),
		register:   make(chan *wsClient),
		unregister: make(chan *wsClient),
		broadcast:  make(chan []byte),
		direct:     make(chan directMessage),
		done:       make(chan struct{}),
	}
}

// Run serves the hub until ctx is done, then disconnects every client.
func (h *Hub) Run(ctx context.Context) {
	defer func() {
		for c := range h.clients {
			h.drop(c)
		}
		metrics.SetWebSocketClients(0)
		close(h.done)
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case c := <-h.register:
			h.clients[c] = struct{}{}
			metrics.SetWebSocketClients(len(h.clients))
		case c := <-h.unregister:
			if _, ok := h.clients[c]; ok {
				h.drop(c)
			}
		case msg := <-h.broadcast:
			for c := range h.clients {
				h.deliver(c, msg)
			}
		case d := <-h.direct:
			if _, ok := h.clients[d.client]; ok {
				h.deliver(d.client, d.msg)
			}
		}
	}
}

func (h *Hub) deliver(c *wsClient, msg []byte) {
	select {
	case c.send <- msg:
	default:
		h.logger.Warn("Dropping slow websocket client")
		h.drop(c)
	}
}

func (h *Hub) drop(c *wsClient) {
	delete(h.clients, c)
	close(c.send)
	metrics.SetWebSocketClients(len(h.clients))
}

// NotifyReloaded tells every client that the dataset behind source changed.
func (h *Hub) NotifyReloaded(source string) {
	msg, err := json.Marshal(wsResponse{Type: MsgReloaded, Source: source})
	if err != nil {
		return
	}
	select {
	case h.broadcast <- msg:
	case <-h.done:
	}
}

// ServeWS upgrades the request and starts the client pumps.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote an error response
		h.logger.WarnContext(r.Context(), "Websocket upgrade failed", log.FieldError, err)
		return
	}

	c := &wsClient{hub: h, conn: conn, send: make(chan []byte, sendBuffer)}
	select {
	case h.register <- c:
	case <-h.done:
		conn.Close()
		return
	}

	go c.writePump()
	go c.readPump()
}

func (c *wsClient) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.logger.Warn("Websocket read failed", log.FieldError, err)
			}
			return
		}

		resp := c.handle(data)
		msg, err := json.Marshal(resp)
		if err != nil {
			c.hub.logger.Error("Encode websocket response", log.FieldError, err)
			continue
		}
		select {
		case c.hub.direct <- directMessage{client: c, msg: msg}:
		case <-c.hub.done:
			return
		}
	}
}

func (c *wsClient) handle(data []byte) wsResponse {
	var req wsRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return wsResponse{Type: MsgError, Error: "malformed message"}
	}
	if req.Type != MsgCriteria {
		return wsResponse{Type: MsgError, Error: "unknown message type " + req.Type}
	}

	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()
	d, err := c.hub.compute(ctx, req.Criteria)
	if err != nil {
		return wsResponse{Type: MsgError, Error: err.Error()}
	}
	return wsResponse{Type: MsgDashboard, Dashboard: &d}
}

func (c *wsClient) writePump() {
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
