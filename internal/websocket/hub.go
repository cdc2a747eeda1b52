package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"electricity-billing/internal/model"
	"electricity-billing/internal/token"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait      = 10 * time.Second
	sendBufferSize = 256
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// origins are enforced by the CORS layer in front of the API
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Message is the frame pushed to clients.
type Message struct {
	Type       string    `json:"type"`
	ProviderID uuid.UUID `json:"provider_id"`
	Payload    any       `json:"payload"`
}

type outbound struct {
	providerID uuid.UUID
	data       []byte
}

// Client is a single connected WebSocket client. A nil providerID marks a
// platform admin, who receives events of every provider.
type Client struct {
	hub        *Hub
	conn       *websocket.Conn
	send       chan []byte
	providerID *uuid.UUID
}

func (c *Client) wants(providerID uuid.UUID) bool {
	return c.providerID == nil || *c.providerID == providerID
}

// Hub keeps the connected clients and fans events out to them. It implements
// events.Publisher.
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan outbound
	register   chan *Client
	unregister chan *Client
	done       chan struct{}
	mu         sync.Mutex
	log        *zap.Logger
}

func NewHub(log *zap.Logger) *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan outbound, sendBufferSize),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		log:        log.Named("websocket.hub"),
	}
}

// Run dispatches events until ctx is done, then disconnects every client.
// Run must be called at most once.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for client := range h.clients {
				close(client.send)
				delete(h.clients, client)
			}
			h.mu.Unlock()
			return
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()
			h.log.Debug("client connected")
		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
				h.log.Debug("client disconnected")
			}
			h.mu.Unlock()
		case msg := <-h.broadcast:
			h.mu.Lock()
			for client := range h.clients {
				if !client.wants(msg.providerID) {
					continue
				}
				select {
				case client.send <- msg.data:
				default:
					// slow consumer
					close(client.send)
					delete(h.clients, client)
				}
			}
			h.mu.Unlock()
		}
	}
}

// join hands the client to Run. It reports false once Run has returned.
func (h *Hub) join(c *Client) bool {
	select {
	case h.register <- c:
		return true
	case <-h.done:
		return false
	}
}

func (h *Hub) leave(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}

// Publish queues an event for the provider's clients. A full queue drops the
// event rather than blocking the caller.
func (h *Hub) Publish(eventType string, providerID uuid.UUID, payload any) {
	data, err := json.Marshal(Message{Type: eventType, ProviderID: providerID, Payload: payload})
	if err != nil {
		h.log.Error("failed to encode event", zap.String("type", eventType), zap.Error(err))
		return
	}
	select {
	case h.broadcast <- outbound{providerID: providerID, data: data}:
	default:
		h.log.Warn("event dropped, broadcast queue full", zap.String("type", eventType))
	}
}

func (h *Hub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

func (c *Client) writePump() {
	defer func() {
		_ = c.conn.Close()
	}()
	for message := range c.send {
		_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
			return
		}
	}
	_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
}

// readPump only drains the connection so that close frames are noticed.
func (c *Client) readPump() {
	defer func() {
		c.hub.leave(c)
		_ = c.conn.Close()
	}()
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.log.Debug("read error", zap.Error(err))
			}
			return
		}
	}
}

// ProviderResolver returns the provider a user belongs to, nil for platform
// users.
type ProviderResolver func(ctx context.Context, userID uuid.UUID) (*uuid.UUID, error)

var streamRoles = model.NewRoleSet(model.RoleAdmin, model.RoleAuditor, model.RoleInvoiceCreator, model.RoleSuperCreator)

// ServeWs authenticates the token query parameter and upgrades the request.
func ServeWs(hub *Hub, c *gin.Context, issuer *token.Issuer, resolve ProviderResolver) {
	tokenString := c.Query("token")
	if tokenString == "" {
		c.AbortWithStatus(http.StatusUnauthorized)
		return
	}
	principal, err := issuer.Parse(tokenString)
	if err != nil {
		hub.log.Debug("connection rejected: invalid token", zap.Error(err))
		c.AbortWithStatus(http.StatusUnauthorized)
		return
	}
	if !streamRoles.Has(principal.Role) {
		c.AbortWithStatus(http.StatusForbidden)
		return
	}

	providerID, err := resolve(c.Request.Context(), principal.UserID)
	if err != nil {
		hub.log.Warn("connection rejected: unknown user", zap.String("user_id", principal.UserID.String()), zap.Error(err))
		c.AbortWithStatus(http.StatusUnauthorized)
		return
	}
	if providerID == nil && principal.Role != model.RoleAdmin {
		c.AbortWithStatus(http.StatusForbidden)
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		hub.log.Warn("upgrade failed", zap.Error(err))
		return
	}
	client := &Client{hub: hub, conn: conn, send: make(chan []byte, sendBufferSize), providerID: providerID}
	if !hub.join(client) {
		_ = conn.Close()
		return
	}

	go client.writePump()
	go client.readPump()
}
