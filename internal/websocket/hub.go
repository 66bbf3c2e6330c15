package websocket

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/verdemarket/engage-backend/internal/app/model"
	"github.com/verdemarket/engage-backend/pkg/logger"
)

// ClientMessage is a subscription command from a feed consumer.
type ClientMessage struct {
	Type       string `json:"type"` // subscribe, unsubscribe
	EntityType string `json:"entity_type"`
}

// Client is one connected feed consumer. A client with no explicit
// subscriptions receives every event.
type Client struct {
	Hub           *Hub
	Conn          *Conn
	ID            string
	Send          chan []byte
	Subscriptions map[string]bool
	mu            sync.RWMutex
	MessageCount  int
	LastResetTime time.Time
	RateMu        sync.Mutex
}

// Hub fans data-thread events out to connected clients, filtered by the
// entity type each client subscribed to.
type Hub struct {
	clients    map[*Client]bool
	register   chan *Client
	unregister chan *Client
	broadcast  chan *model.ThreadEvent
}

func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		register:   make(chan *Client, 256),
		unregister: make(chan *Client, 256),
		broadcast:  make(chan *model.ThreadEvent, 1024),
	}
}

func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.clients[client] = true
			logger.Info("Feed client connected", map[string]interface{}{
				"client_id": client.ID,
				"total":     len(h.clients),
			})

		case client := <-h.unregister:
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.Send)
			}
			logger.Info("Feed client disconnected", map[string]interface{}{
				"client_id": client.ID,
				"total":     len(h.clients),
			})

		case event := <-h.broadcast:
			data, err := json.Marshal(event)
			if err != nil {
				logger.Error("Failed to marshal thread event", err, nil)
				continue
			}
			for client := range h.clients {
				if !client.wantsEntityType(event.EntityType) {
					continue
				}
				select {
				case client.Send <- data:
				default:
					// slow consumer, drop it rather than block the feed
					go h.Unregister(client)
					logger.Warn("Feed client send buffer full, disconnecting", map[string]interface{}{
						"client_id": client.ID,
					})
				}
			}
		}
	}
}

// Broadcast queues a thread event for delivery. The feed is best effort: a
// full queue drops the event instead of stalling the tracking path.
func (h *Hub) Broadcast(event *model.ThreadEvent) {
	select {
	case h.broadcast <- event:
	default:
		logger.Warn("Feed broadcast channel full, event dropped", map[string]interface{}{
			"entity_id": event.EntityID,
		})
	}
}

func (h *Hub) Register(client *Client) {
	h.register <- client
}

func (h *Hub) Unregister(client *Client) {
	h.unregister <- client
}

func (c *Client) wantsEntityType(entityType string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if len(c.Subscriptions) == 0 {
		return true
	}
	return c.Subscriptions[entityType]
}

// HandleClientMessage applies a subscribe/unsubscribe command, with a small
// per-second rate limit to keep a misbehaving client from spinning the hub.
func (h *Hub) HandleClientMessage(client *Client, message []byte) {
	client.RateMu.Lock()
	now := time.Now()
	if now.Sub(client.LastResetTime) >= time.Second {
		client.MessageCount = 0
		client.LastResetTime = now
	}
	client.MessageCount++
	count := client.MessageCount
	client.RateMu.Unlock()

	if count > maxMessagesPerSecond {
		logger.Warn("Feed client rate limit exceeded", map[string]interface{}{
			"client_id": client.ID,
			"count":     count,
		})
		return
	}

	var msg ClientMessage
	if err := json.Unmarshal(message, &msg); err != nil {
		logger.Warn("Failed to parse feed client message", map[string]interface{}{
			"client_id": client.ID,
			"error":     err.Error(),
		})
		return
	}

	switch msg.Type {
	case "subscribe":
		client.mu.Lock()
		client.Subscriptions[msg.EntityType] = true
		client.mu.Unlock()
	case "unsubscribe":
		client.mu.Lock()
		delete(client.Subscriptions, msg.EntityType)
		client.mu.Unlock()
	}
}
