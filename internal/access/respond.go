package access

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/sincere-abayo/advocate-management-system/pkg/flash"
)

// Fail sends the actor back to listing with an error flash. Denied and
// missing records look the same from outside.
func Fail(c *fiber.Ctx, listing, label string, err error) error {
	if errors.Is(err, ErrDenied) {
		return flash.Error(c, fiber.StatusForbidden, listing, label+" not found or access denied")
	}
	return flash.Error(c, fiber.StatusInternalServerError, listing, "Failed to load "+label)
}

// ParamID reads a uuid path parameter. A malformed id is reported as
// ErrDenied so it is indistinguishable from an unknown one.
func ParamID(c *fiber.Ctx, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Params(name))
	if err != nil {
		return uuid.Nil, ErrDenied
	}
	return id, nil
}
