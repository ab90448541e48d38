package api

import (
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"liteassistant/internal/web/middleware"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(_ *http.Request) bool {
		return true
	},
}

// RegisterEventRoutes relays the live event channel to websocket clients
func RegisterEventRoutes(r *gin.Engine, middleware *middleware.MiddlewareManager, deps Dependencies) {
	r.GET("/ws/events", middleware.RequireAuth(), func(c *gin.Context) {
		if deps.Events == nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "live events unavailable"})
			return
		}

		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			log.Printf("WEB: Websocket upgrade failed: %v", err)
			return
		}
		defer conn.Close()

		clientID := uuid.NewString()
		ctx := c.Request.Context()
		sub, err := deps.Events.Subscribe(ctx)
		if err != nil {
			log.Printf("WEB: Event subscription failed for client %s: %v", clientID, err)
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseInternalServerErr, "subscription failed"),
				time.Now().Add(writeWait))
			return
		}
		defer sub.Close()
		log.Printf("WEB: Websocket client %s connected", clientID)

		// reader: only control frames are expected; a read error means the client left
		gone := make(chan struct{})
		go func() {
			defer close(gone)
			conn.SetReadLimit(512)
			_ = conn.SetReadDeadline(time.Now().Add(pongWait))
			conn.SetPongHandler(func(string) error {
				return conn.SetReadDeadline(time.Now().Add(pongWait))
			})
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					return
				}
			}
		}()

		ticker := time.NewTicker(pingPeriod)
		defer ticker.Stop()
		for {
			select {
			case <-gone:
				log.Printf("WEB: Websocket client %s disconnected", clientID)
				return
			case msg, ok := <-sub.C:
				if !ok {
					return
				}
				_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
				if err := conn.WriteMessage(websocket.TextMessage, []byte(msg.Payload)); err != nil {
					return
				}
			case <-ticker.C:
				_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
				if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
					return
				}
			}
		}
	})
}
