package handlers

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/monocle-dev/keywatch/internal/scheduler"
	"github.com/monocle-dev/keywatch/internal/utils"
	"github.com/rs/zerolog/log"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
)

// client serializes writes to one connection
type client struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (c *client) write(messageType int, payload interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}

	if messageType == websocket.PingMessage {
		return c.conn.WriteMessage(websocket.PingMessage, nil)
	}

	return c.conn.WriteJSON(payload)
}

// Hub fans check events out to the owning user's websocket connections
type Hub struct {
	upgrader websocket.Upgrader

	mu      sync.RWMutex
	clients map[uint]map[*client]bool
}

func NewHub(allowedOrigins []string) *Hub {
	return &Hub{
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				if origin == "" {
					return true
				}
				for _, allowed := range allowedOrigins {
					if origin == allowed {
						return true
					}
				}
				return false
			},
		},
		clients: make(map[uint]map[*client]bool),
	}
}

func (h *Hub) register(userID uint, c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.clients[userID] == nil {
		h.clients[userID] = make(map[*client]bool)
	}
	h.clients[userID][c] = true
}

func (h *Hub) unregister(userID uint, c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if clients, exists := h.clients[userID]; exists {
		delete(clients, c)

		if len(clients) == 0 {
			delete(h.clients, userID)
		}
	}
}

// Connections returns how many sockets userID has open
func (h *Hub) Connections(userID uint) int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return len(h.clients[userID])
}

// Broadcast sends event to every connection of the monitor's owner. It is registered
// as a runner observer and never blocks on a failed client.
func (h *Hub) Broadcast(event scheduler.CheckEvent) {
	h.mu.RLock()
	targets := make([]*client, 0, len(h.clients[event.UserID]))
	for c := range h.clients[event.UserID] {
		targets = append(targets, c)
	}
	h.mu.RUnlock()

	message := gin.H{"type": "check", "data": event}

	for _, c := range targets {
		if err := c.write(websocket.TextMessage, message); err != nil {
			log.Warn().Err(err).Uint("user_id", event.UserID).Msg("Failed to push check event")
			h.unregister(event.UserID, c)
			c.conn.Close()
		}
	}
}

func (h *Handler) WebSocket(ctx *gin.Context) {
	userID, err := utils.GetCurrentUserID(ctx)

	if err != nil {
		ctx.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	conn, err := h.hub.upgrader.Upgrade(ctx.Writer, ctx.Request, nil)

	if err != nil {
		log.Warn().Err(err).Uint("user_id", userID).Msg("WebSocket upgrade failed")
		return
	}

	c := &client{conn: conn}

	conn.SetReadLimit(maxMessageSize)
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	h.hub.register(userID, c)

	defer func() {
		h.hub.unregister(userID, c)
		conn.Close()
		log.Debug().Uint("user_id", userID).Msg("WebSocket connection closed")
	}()

	if err := c.write(websocket.TextMessage, gin.H{"type": "connected", "message": "WebSocket connection established"}); err != nil {
		log.Warn().Err(err).Uint("user_id", userID).Msg("Failed to send welcome message")
		return
	}

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	done := make(chan struct{})
	defer close(done)

	go func() {
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				if err := c.write(websocket.PingMessage, nil); err != nil {
					return
				}
			}
		}
	}()

	for {
		if err := conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
			break
		}

		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Warn().Err(err).Uint("user_id", userID).Msg("WebSocket read error")
			}
			break
		}
	}
}
