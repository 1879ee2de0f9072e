package handlers

import (
	"log"

	"qwikchat/internal/services"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
)

// WebSocketHandler handles the websocket connection
func WebSocketHandler(chatService *services.ChatService, manager *RoomManager) fiber.Handler {
	return websocket.New(func(c *websocket.Conn) {
		peer := &Peer{ID: uuid.New().String(), conn: c}
		manager.Register(peer)

		defer func() {
			manager.Unregister(peer.ID)
			c.Close()
		}()

		for {
			msgType, msg, err := c.ReadMessage()
			if err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
					log.Printf("error: %v", err)
				}
				break
			}

			HandleMessage(peer, msgType, msg, chatService, manager)
		}
	})
}

// WSUpgradeMiddleware upgrades the connection to WebSocket
func WSUpgradeMiddleware(c *fiber.Ctx) error {
	if websocket.IsWebSocketUpgrade(c) {
		c.Locals("allowed", true)
		return c.Next()
	}
	return fiber.ErrUpgradeRequired
}
