package controller

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/verdemarket/engage-backend/internal/middleware"
	ws "github.com/verdemarket/engage-backend/internal/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// origins are enforced by the CORS layer in front of the upgrade
		return true
	},
}

type FeedController struct {
	hub *ws.Hub
}

func NewFeedController(hub *ws.Hub) *FeedController {
	return &FeedController{hub: hub}
}

// Subscribe upgrades the connection and attaches it to the event feed
// GET /ws/events
func (ctrl *FeedController) Subscribe(c *gin.Context) {
	log := middleware.GetLoggerFromContext(c)

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error("Failed to upgrade to WebSocket", err, nil)
		return
	}

	client := &ws.Client{
		Hub:           ctrl.hub,
		Conn:          &ws.Conn{Conn: conn},
		ID:            uuid.New().String(),
		Send:          make(chan []byte, 256),
		Subscriptions: make(map[string]bool),
		LastResetTime: time.Now(),
	}

	ctrl.hub.Register(client)

	go client.WritePump()
	go client.ReadPump()
}
