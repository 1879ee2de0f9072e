package handlers

import (
	"net/http"

	"qwikchat/internal/models"
	"qwikchat/internal/services"

	"github.com/gofiber/fiber/v2"
)

// ListRoomsHandler returns rooms with their participants, optionally
// filtered by the user_id query parameter.
func ListRoomsHandler(chatService *services.ChatService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		rooms, err := chatService.ListRooms(c.Context(), c.Query("user_id"))
		if err != nil {
			return errorResponse(c, err)
		}
		return c.JSON(rooms)
	}
}

// CreateRoomHandler creates a room from {name, participant_ids}.
func CreateRoomHandler(chatService *services.ChatService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req models.CreateRoomRequest
		if err := c.BodyParser(&req); err != nil {
			return c.Status(http.StatusBadRequest).JSON(fiber.Map{"error": "invalid request"})
		}
		room, err := chatService.CreateRoom(c.Context(), req)
		if err != nil {
			return errorResponse(c, err)
		}
		return c.Status(http.StatusCreated).JSON(room)
	}
}

// ConversationHandler returns the history of the :room_id room, oldest first.
func ConversationHandler(chatService *services.ChatService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		msgs, err := chatService.History(c.Context(), c.Params("room_id"))
		if err != nil {
			return errorResponse(c, err)
		}
		return c.JSON(msgs)
	}
}
