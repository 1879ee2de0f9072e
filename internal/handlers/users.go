package handlers

import (
	"errors"
	"net/http"

	"qwikchat/internal/models"
	"qwikchat/internal/services"

	"github.com/gofiber/fiber/v2"
)

// ListUsersHandler returns every registered user.
func ListUsersHandler(userService *services.UserService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		users, err := userService.ListUsers(c.Context())
		if err != nil {
			return c.Status(http.StatusInternalServerError).JSON(fiber.Map{"error": "failed to fetch users"})
		}
		return c.JSON(users)
	}
}

// GetUserByPhoneHandler looks a user up by the :phone param.
func GetUserByPhoneHandler(userService *services.UserService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		user, err := userService.GetByPhone(c.Context(), c.Params("phone"))
		if err != nil {
			return errorResponse(c, err)
		}
		return c.JSON(user)
	}
}

// CreateUserHandler registers a user from {username, phone}.
func CreateUserHandler(userService *services.UserService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req models.CreateUserRequest
		if err := c.BodyParser(&req); err != nil {
			return c.Status(http.StatusBadRequest).JSON(fiber.Map{"error": "invalid request"})
		}
		user, err := userService.Register(c.Context(), req)
		if err != nil {
			return errorResponse(c, err)
		}
		return c.Status(http.StatusCreated).JSON(user)
	}
}

func errorResponse(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, services.ErrInvalid):
		return c.Status(http.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, services.ErrNotFound):
		return c.Status(http.StatusNotFound).JSON(fiber.Map{"error": "not found"})
	case errors.Is(err, services.ErrUserExists):
		return c.Status(http.StatusConflict).JSON(fiber.Map{"error": "phone already registered"})
	default:
		return c.Status(http.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
}
