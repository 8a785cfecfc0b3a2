package flash

import (
	"github.com/gofiber/fiber/v2"

	"github.com/sincere-abayo/advocate-management-system/pkg/models"
)

const (
	TypeSuccess = "success"
	TypeError   = "error"
	TypeInfo    = "info"
)

// Success answers a completed action with where to go and a success message.
func Success(c *fiber.Ctx, status int, redirect, message, id string) error {
	return c.Status(status).JSON(models.ActionResponse{
		Redirect: redirect,
		Flash:    models.Flash{Type: TypeSuccess, Message: message},
		ID:       id,
	})
}

// Info answers an action that needs a follow-up from the user.
func Info(c *fiber.Ctx, redirect, message, id string) error {
	return c.Status(fiber.StatusOK).JSON(models.ActionResponse{
		Redirect: redirect,
		Flash:    models.Flash{Type: TypeInfo, Message: message},
		ID:       id,
	})
}

// Error sends the user back to a safe page with an error message.
func Error(c *fiber.Ctx, status int, redirect, message string) error {
	return c.Status(status).JSON(models.ActionResponse{
		Redirect: redirect,
		Flash:    models.Flash{Type: TypeError, Message: message},
	})
}
