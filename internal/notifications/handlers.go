package notifications

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/sincere-abayo/advocate-management-system/internal/access"
	"github.com/sincere-abayo/advocate-management-system/internal/auth"
	"github.com/sincere-abayo/advocate-management-system/pkg/flash"
	"github.com/sincere-abayo/advocate-management-system/pkg/listing"
	"github.com/sincere-abayo/advocate-management-system/pkg/models"
)

const listingPath = "/notifications"

type Handler struct{ db *gorm.DB }

func NewHandler(db *gorm.DB) *Handler { return &Handler{db: db} }

// CountResponse is GET /notifications/count.
type CountResponse struct {
	Unread int64 `json:"unread"`
}

// Link is where opening a notification takes the user.
func Link(n *models.Notification) string {
	if n.RelatedID == uuid.Nil {
		return listingPath
	}
	switch n.RelatedTo {
	case models.RelatedCase:
		return "/cases/" + n.RelatedID.String()
	case models.RelatedHearing:
		return "/hearings/" + n.RelatedID.String()
	case models.RelatedBilling:
		return "/invoices/" + n.RelatedID.String()
	case models.RelatedDocument:
		return "/documents/" + n.RelatedID.String() + "/url"
	}
	return listingPath
}

func (h *Handler) mine(c *fiber.Ctx) *gorm.DB {
	return h.db.WithContext(c.UserContext()).
		Model(&models.Notification{}).
		Where("user_id = ?", auth.MustActor(c).UserID)
}

// List Notifications godoc
// @Summary      My notifications
// @Description  Unread first, newest first within each group. unread=true hides read ones.
// @Tags         notifications
// @Security     BearerAuth
// @Produce      json
// @Param        unread     query bool false "only unread"
// @Param        page       query int  false "page"
// @Param        pageSize   query int  false "page size"
// @Success      200  {object}  models.Page[models.Notification]
// @Router       /notifications [get]
func (h *Handler) List(c *fiber.Ctx) error {
	page, size := listing.ParsePage(c)
	unreadOnly := c.QueryBool("unread")

	base := func() *gorm.DB {
		q := h.mine(c)
		if unreadOnly {
			q = q.Where("is_read = ?", false)
		}
		return q
	}

	var total int64
	if err := base().Count(&total).Error; err != nil {
		return fiber.ErrInternalServerError
	}
	rows := make([]models.Notification, 0, size)
	if err := base().
		Order("is_read ASC").Order("created_at DESC").
		Scopes(listing.Paginate(page, size)).
		Find(&rows).Error; err != nil {
		return fiber.ErrInternalServerError
	}
	return c.JSON(listing.NewPage(page, size, total, rows))
}

// Unread Count godoc
// @Summary      Unread notification count
// @Tags         notifications
// @Security     BearerAuth
// @Produce      json
// @Success      200  {object}  CountResponse
// @Router       /notifications/count [get]
func (h *Handler) Count(c *fiber.Ctx) error {
	var n int64
	if err := h.mine(c).Where("is_read = ?", false).Count(&n).Error; err != nil {
		return fiber.ErrInternalServerError
	}
	return c.JSON(CountResponse{Unread: n})
}

// Mark Read godoc
// @Summary      Mark notification read
// @Description  Redirects to the record the notification is about
// @Tags         notifications
// @Security     BearerAuth
// @Produce      json
// @Param        id  path string true "notification id (uuid)"
// @Success      200  {object}  models.ActionResponse
// @Failure      403  {object}  models.ActionResponse
// @Router       /notifications/{id}/read [post]
func (h *Handler) MarkRead(c *fiber.Ctx) error {
	id, err := access.ParamID(c, "id")
	var n models.Notification
	if err == nil {
		if err = h.mine(c).Where("id = ?", id).First(&n).Error; errors.Is(err, gorm.ErrRecordNotFound) {
			err = access.ErrDenied
		}
	}
	if err != nil {
		return access.Fail(c, listingPath, "Notification", err)
	}

	if !n.IsRead {
		if err := h.mine(c).Where("id = ?", n.ID).Update("is_read", true).Error; err != nil {
			return flash.Error(c, fiber.StatusInternalServerError, listingPath, "Failed to update notification")
		}
	}
	return flash.Success(c, fiber.StatusOK, Link(&n), "Notification marked as read", n.ID.String())
}

// Mark All Read godoc
// @Summary      Mark all notifications read
// @Tags         notifications
// @Security     BearerAuth
// @Produce      json
// @Success      200  {object}  models.ActionResponse
// @Router       /notifications/read-all [post]
func (h *Handler) ReadAll(c *fiber.Ctx) error {
	if err := h.mine(c).Where("is_read = ?", false).Update("is_read", true).Error; err != nil {
		return flash.Error(c, fiber.StatusInternalServerError, listingPath, "Failed to update notifications")
	}
	return flash.Success(c, fiber.StatusOK, listingPath, "All notifications marked as read", "")
}
