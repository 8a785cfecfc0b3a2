package workflow

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/sincere-abayo/advocate-management-system/pkg/flash"
)

// Respond turns a failed unit into an error flash. Rejections keep their
// status and message; everything else is a 500 with "Failed to {op}".
func Respond(c *fiber.Ctx, redirect string, err error) error {
	if rej, ok := AsRejection(err); ok {
		return flash.Error(c, rej.Status, redirect, rej.Message)
	}
	msg := fiber.ErrInternalServerError.Message
	var we *Error
	if errors.As(err, &we) {
		msg = we.Error()
	}
	return flash.Error(c, fiber.StatusInternalServerError, redirect, msg)
}
