package cases

import (
	"errors"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/sincere-abayo/advocate-management-system/internal/access"
	"github.com/sincere-abayo/advocate-management-system/internal/auth"
	"github.com/sincere-abayo/advocate-management-system/internal/workflow"
	"github.com/sincere-abayo/advocate-management-system/pkg/flash"
	"github.com/sincere-abayo/advocate-management-system/pkg/listing"
	"github.com/sincere-abayo/advocate-management-system/pkg/models"
	"github.com/sincere-abayo/advocate-management-system/pkg/sanitize"
	"github.com/sincere-abayo/advocate-management-system/pkg/validation"
)

// ActivityRequest is a manual entry in the case log. status_change is
// reserved for the status workflow and cannot be posted by hand.
type ActivityRequest struct {
	ActivityType string `json:"activity_type" validate:"required,oneof=update document hearing note client_communication court_filing research settlement billing other"`
	Description  string `json:"description" validate:"required,max=2000"`
	NotifyClient bool   `json:"notify_client"`
}

// AssignmentRequest adds an advocate to a case.
type AssignmentRequest struct {
	AdvocateID string `json:"advocate_id" validate:"required,uuid"`
	Role       string `json:"role" validate:"omitempty,oneof=primary secondary"`
}

// ActivityItem is one audit entry with its author's name.
type ActivityItem struct {
	ID           uuid.UUID           `json:"id"`
	ActivityType models.ActivityType `json:"activity_type"`
	Description  string              `json:"description"`
	UserID       uuid.UUID           `json:"user_id"`
	UserName     string              `json:"user_name"`
	CreatedAt    time.Time           `json:"created_at"`
}

func activities(db *gorm.DB, caseID uuid.UUID, page, size int) ([]ActivityItem, error) {
	rows := make([]ActivityItem, 0, size)
	err := db.Table("case_activities").
		Select(`case_activities.id, case_activities.activity_type, case_activities.description,
          case_activities.user_id, users.full_name AS user_name, case_activities.created_at`).
		Joins("LEFT JOIN users ON users.id = case_activities.user_id").
		Where("case_activities.case_id = ?", caseID).
		Order("case_activities.created_at DESC").
		Scopes(listing.Paginate(page, size)).
		Scan(&rows).Error
	return rows, err
}

// Add Activity godoc
// @Summary      Add case activity
// @Description  Appends a note or other entry to the case log, optionally notifying the client
// @Tags         cases
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id       path  string           true  "case id (uuid)"
// @Param        payload  body  ActivityRequest  true  "Activity payload"
// @Success      201  {object}  models.ActionResponse
// @Failure      400  {object}  models.ValidationErrorResponse
// @Failure      403  {object}  models.ActionResponse
// @Router       /cases/{id}/activities [post]
func (h *Handler) AddActivity(c *fiber.Ctx) error {
	actor := auth.MustActor(c)
	db := h.flow.DB().WithContext(c.UserContext())

	id, err := access.ParamID(c, "id")
	var cs *models.Case
	if err == nil {
		cs, err = access.Case(db, actor, id)
	}
	if err != nil {
		return access.Fail(c, listingPath, "Case", err)
	}

	var in ActivityRequest
	if err := c.BodyParser(&in); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid json")
	}
	sanitize.Struct(&in)
	if errs, _ := validation.Validate(in); errs != nil {
		return validation.Respond(c, errs)
	}

	entry := workflow.Activity(cs.ID, actor.UserID, models.ActivityType(in.ActivityType), in.Description)
	err = h.flow.Run(c.UserContext(), "add activity", func(u *workflow.Unit) error {
		if err := u.Log(entry); err != nil {
			return err
		}
		if !in.NotifyClient {
			return nil
		}
		clientUser, err := workflow.ClientUserID(u.Tx(), cs.ID)
		if err != nil {
			return err
		}
		return u.Notify(workflow.Notification(clientUser, "Case update",
			fmt.Sprintf("Case %s: %s", cs.CaseNumber, sanitize.Summary(in.Description, 200)),
			models.RelatedCase, cs.ID))
	})
	if err != nil {
		return workflow.Respond(c, casePath(cs.ID), err)
	}
	return flash.Success(c, fiber.StatusCreated, casePath(cs.ID), "Activity added successfully", entry.ID.String())
}

// List Activities godoc
// @Summary      Case activity log
// @Description  Paginated audit trail, newest first
// @Tags         cases
// @Security     BearerAuth
// @Produce      json
// @Param        id        path  string true  "case id (uuid)"
// @Param        page      query int    false "page"
// @Param        pageSize  query int    false "pageSize"
// @Success      200  {object}  models.Page[ActivityItem]
// @Failure      403  {object}  models.ActionResponse
// @Router       /cases/{id}/activities [get]
func (h *Handler) ListActivities(c *fiber.Ctx) error {
	actor := auth.MustActor(c)
	db := h.flow.DB().WithContext(c.UserContext())

	id, err := access.ParamID(c, "id")
	if err == nil {
		_, err = access.Case(db, actor, id)
	}
	if err != nil {
		return access.Fail(c, listingPath, "Case", err)
	}

	page, size := listing.ParsePage(c)
	var total int64
	if err := db.Model(&models.CaseActivity{}).Where("case_id = ?", id).Count(&total).Error; err != nil {
		return fiber.ErrInternalServerError
	}
	rows, err := activities(db, id, page, size)
	if err != nil {
		return fiber.ErrInternalServerError
	}
	return c.JSON(listing.NewPage(page, size, total, rows))
}

// Assign Advocate godoc
// @Summary      Assign advocate
// @Description  Adds another advocate to the case; the advocate is notified
// @Tags         cases
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id       path  string             true  "case id (uuid)"
// @Param        payload  body  AssignmentRequest  true  "Assignment payload"
// @Success      201  {object}  models.ActionResponse
// @Failure      400  {object}  models.ValidationErrorResponse
// @Failure      403  {object}  models.ActionResponse
// @Failure      409  {object}  models.ActionResponse  "already assigned"
// @Router       /cases/{id}/assignments [post]
func (h *Handler) Assign(c *fiber.Ctx) error {
	actor := auth.MustActor(c)
	db := h.flow.DB().WithContext(c.UserContext())

	id, err := access.ParamID(c, "id")
	var cs *models.Case
	if err == nil {
		cs, err = access.Case(db, actor, id)
	}
	if err != nil {
		return access.Fail(c, listingPath, "Case", err)
	}

	var in AssignmentRequest
	if err := c.BodyParser(&in); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid json")
	}
	sanitize.Struct(&in)
	errs, _ := validation.Validate(in)

	var adv models.AdvocateProfile
	if errs == nil {
		if err := db.Preload("User").First(&adv, "id = ?", in.AdvocateID).Error; err != nil {
			errs = validation.Add(errs, "advocate_id", "Advocate not found")
		}
	}
	if errs != nil {
		return validation.Respond(c, errs)
	}

	role := models.AssignmentRole(orDefault(in.Role, string(models.AssignmentSecondary)))
	err = h.flow.Run(c.UserContext(), "assign advocate", func(u *workflow.Unit) error {
		err := u.Tx().Omit(clause.Associations).Create(&models.CaseAssignment{
			CaseID: cs.ID, AdvocateID: adv.ID, Role: role,
		}).Error
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return workflow.Reject("Advocate is already assigned to this case")
		}
		if err != nil {
			return err
		}
		if err := u.Log(workflow.Activity(cs.ID, actor.UserID, models.ActivityUpdate,
			fmt.Sprintf("Advocate assigned: %s (%s)", adv.User.FullName, role))); err != nil {
			return err
		}
		return u.Notify(workflow.Notification(adv.UserID, "Case assigned",
			fmt.Sprintf("You have been assigned to case %s (%s).", cs.CaseNumber, cs.Title),
			models.RelatedCase, cs.ID))
	})
	if err != nil {
		return workflow.Respond(c, casePath(cs.ID), err)
	}
	return flash.Success(c, fiber.StatusCreated, casePath(cs.ID), "Advocate assigned successfully", cs.ID.String())
}
