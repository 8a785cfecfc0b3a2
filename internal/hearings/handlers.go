package hearings

import (
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/sincere-abayo/advocate-management-system/internal/access"
	"github.com/sincere-abayo/advocate-management-system/internal/auth"
	"github.com/sincere-abayo/advocate-management-system/internal/workflow"
	"github.com/sincere-abayo/advocate-management-system/pkg/flash"
	"github.com/sincere-abayo/advocate-management-system/pkg/models"
	"github.com/sincere-abayo/advocate-management-system/pkg/sanitize"
	"github.com/sincere-abayo/advocate-management-system/pkg/validation"
)

const (
	casesPath    = "/cases"
	hearingsPath = "/hearings"
)

// ===== DTOs =====

// HearingRequest is the body of POST /cases/:id/hearings and PUT /hearings/:id.
type HearingRequest struct {
	HearingDate  string `json:"hearing_date" validate:"required,date"`
	HearingTime  string `json:"hearing_time" validate:"clock"`
	HearingType  string `json:"hearing_type" validate:"required,max=100"`
	CourtRoom    string `json:"court_room" validate:"max=100"`
	Judge        string `json:"judge" validate:"max=100"`
	Description  string `json:"description" validate:"max=2000"`
	Outcome      string `json:"outcome" validate:"required_if=Status completed,max=5000"`
	NextSteps    string `json:"next_steps" validate:"max=2000"`
	Status       string `json:"status" validate:"omitempty,oneof=scheduled completed cancelled postponed"`
	NotifyClient bool   `json:"notify_client"`
}

// HearingItem is a hearing with the case it belongs to.
type HearingItem struct {
	models.CaseHearing
	CaseNumber string `json:"case_number"`
	CaseTitle  string `json:"case_title"`
}

type Handler struct {
	flow *workflow.Coordinator
	now  func() time.Time
}

func NewHandler(flow *workflow.Coordinator) *Handler {
	return &Handler{flow: flow, now: time.Now}
}

func (h *Handler) today() time.Time {
	n := h.now().UTC()
	return time.Date(n.Year(), n.Month(), n.Day(), 0, 0, 0, 0, time.UTC)
}

func hearingPath(id uuid.UUID) string { return hearingsPath + "/" + id.String() }
func casePath(id uuid.UUID) string    { return casesPath + "/" + id.String() }

func parse(c *fiber.Ctx) (*HearingRequest, map[string][]string, error) {
	var in HearingRequest
	if err := c.BodyParser(&in); err != nil {
		return nil, nil, fiber.NewError(fiber.StatusBadRequest, "invalid json")
	}
	sanitize.Struct(&in)
	if in.Status == "" {
		in.Status = string(models.HearingScheduled)
	}
	errs, _ := validation.Validate(in)
	return &in, errs, nil
}

// syncCaseHearingDate points cases.hearing_date at the earliest upcoming
// scheduled hearing. It leaves the column alone when none is upcoming.
func syncCaseHearingDate(tx *gorm.DB, caseID uuid.UUID, today time.Time) error {
	var next models.CaseHearing
	err := tx.Where("case_id = ? AND status = ? AND hearing_date >= ?", caseID, models.HearingScheduled, today).
		Order("hearing_date ASC").
		Limit(1).
		Find(&next).Error
	if err != nil || next.ID == uuid.Nil {
		return err
	}
	return tx.Model(&models.Case{}).Where("id = ?", caseID).Update("hearing_date", next.HearingDate).Error
}

// Add Hearing godoc
// @Summary      Add hearing
// @Description  Schedules a hearing on a case. Logs a hearing activity, reminds the acting advocate when the date is ahead and optionally notifies the client.
// @Tags         hearings
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id       path  string          true  "case id (uuid)"
// @Param        payload  body  HearingRequest  true  "Hearing payload"
// @Success      201  {object}  models.ActionResponse
// @Failure      400  {object}  models.ValidationErrorResponse
// @Failure      403  {object}  models.ActionResponse
// @Router       /cases/{id}/hearings [post]
func (h *Handler) Add(c *fiber.Ctx) error {
	actor := auth.MustActor(c)
	db := h.flow.DB().WithContext(c.UserContext())

	caseID, err := access.ParamID(c, "id")
	var cs *models.Case
	if err == nil {
		cs, err = access.Case(db, actor, caseID)
	}
	if err != nil {
		return access.Fail(c, casesPath, "Case", err)
	}

	in, errs, err := parse(c)
	if err != nil {
		return err
	}
	if errs != nil {
		return validation.Respond(c, errs)
	}

	date, _ := validation.ParseDate(in.HearingDate)
	hearing := models.CaseHearing{
		CaseID:      cs.ID,
		HearingDate: *date,
		HearingTime: in.HearingTime,
		HearingType: in.HearingType,
		CourtRoom:   in.CourtRoom,
		Judge:       in.Judge,
		Description: in.Description,
		Outcome:     in.Outcome,
		NextSteps:   in.NextSteps,
		Status:      models.HearingStatus(in.Status),
		CreatedBy:   actor.UserID,
	}
	when := workflow.FormatWhen(hearing.HearingDate, hearing.HearingTime)
	today := h.today()

	err = h.flow.Run(c.UserContext(), "add hearing", func(u *workflow.Unit) error {
		if err := u.Tx().Create(&hearing).Error; err != nil {
			return err
		}
		if err := syncCaseHearingDate(u.Tx(), cs.ID, today); err != nil {
			return err
		}
		if err := u.Log(workflow.Activity(cs.ID, actor.UserID, models.ActivityHearing,
			fmt.Sprintf("Hearing added: %s on %s", hearing.HearingType, when))); err != nil {
			return err
		}

		if hearing.HearingDate.After(today) {
			if err := u.Notify(workflow.Notification(actor.UserID, "Upcoming hearing",
				fmt.Sprintf("%s for case %s on %s", hearing.HearingType, cs.CaseNumber, when),
				models.RelatedHearing, hearing.ID)); err != nil {
				return err
			}
		}
		if !in.NotifyClient {
			return nil
		}
		clientUser, err := workflow.ClientUserID(u.Tx(), cs.ID)
		if err != nil {
			return err
		}
		return u.Notify(workflow.Notification(clientUser, "Hearing scheduled",
			fmt.Sprintf("A %s hearing for case %s is set for %s.", hearing.HearingType, cs.CaseNumber, when),
			models.RelatedHearing, hearing.ID))
	})
	if err != nil {
		return workflow.Respond(c, casePath(cs.ID), err)
	}
	return flash.Success(c, fiber.StatusCreated, casePath(cs.ID), "Hearing added successfully", hearing.ID.String())
}

// Edit Hearing godoc
// @Summary      Edit hearing
// @Description  Updates a hearing. Status changes follow the same rules as POST /hearings/{id}/status.
// @Tags         hearings
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id       path  string          true  "hearing id (uuid)"
// @Param        payload  body  HearingRequest  true  "Hearing payload"
// @Success      200  {object}  models.ActionResponse
// @Failure      400  {object}  models.ValidationErrorResponse
// @Failure      403  {object}  models.ActionResponse
// @Router       /hearings/{id} [put]
func (h *Handler) Edit(c *fiber.Ctx) error {
	actor := auth.MustActor(c)
	db := h.flow.DB().WithContext(c.UserContext())

	id, err := access.ParamID(c, "id")
	var hearing *models.CaseHearing
	var cs *models.Case
	if err == nil {
		hearing, cs, err = access.Hearing(db, actor, id)
	}
	if err != nil {
		return access.Fail(c, casesPath, "Hearing", err)
	}

	in, errs, err := parse(c)
	if err != nil {
		return err
	}
	next := models.HearingStatus(in.Status)
	if _, bad := errs["status"]; !bad && !CanTransition(hearing.Status, next) {
		errs = validation.Add(errs, "status", fmt.Sprintf("Cannot change status from %s to %s", hearing.Status, next))
	}
	if errs != nil {
		return validation.Respond(c, errs)
	}

	date, _ := validation.ParseDate(in.HearingDate)
	today := h.today()
	err = h.flow.Run(c.UserContext(), "update hearing", func(u *workflow.Unit) error {
		// The status may have moved since the check above.
		if _, err := lockForTransition(u, hearing.ID, next); err != nil {
			return err
		}
		if err := u.Tx().Model(&models.CaseHearing{}).Where("id = ?", hearing.ID).Updates(map[string]any{
			"hearing_date": *date,
			"hearing_time": in.HearingTime,
			"hearing_type": in.HearingType,
			"court_room":   in.CourtRoom,
			"judge":        in.Judge,
			"description":  in.Description,
			"outcome":      in.Outcome,
			"next_steps":   in.NextSteps,
			"status":       next,
		}).Error; err != nil {
			return err
		}
		if err := syncCaseHearingDate(u.Tx(), cs.ID, today); err != nil {
			return err
		}

		when := workflow.FormatWhen(*date, in.HearingTime)
		if err := u.Log(workflow.Activity(cs.ID, actor.UserID, models.ActivityHearing,
			fmt.Sprintf("Hearing updated: %s on %s", in.HearingType, when))); err != nil {
			return err
		}
		if !in.NotifyClient {
			return nil
		}
		clientUser, err := workflow.ClientUserID(u.Tx(), cs.ID)
		if err != nil {
			return err
		}
		return u.Notify(workflow.Notification(clientUser, "Hearing updated",
			fmt.Sprintf("The %s hearing for case %s is now on %s.", in.HearingType, cs.CaseNumber, when),
			models.RelatedHearing, hearing.ID))
	})
	if err != nil {
		return workflow.Respond(c, hearingPath(hearing.ID), err)
	}
	return flash.Success(c, fiber.StatusOK, hearingPath(hearing.ID), "Hearing updated successfully", hearing.ID.String())
}

// Get Hearing godoc
// @Summary      Hearing detail
// @Tags         hearings
// @Security     BearerAuth
// @Produce      json
// @Param        id   path string true "hearing id (uuid)"
// @Success      200  {object}  HearingItem
// @Failure      403  {object}  models.ActionResponse
// @Router       /hearings/{id} [get]
func (h *Handler) Get(c *fiber.Ctx) error {
	actor := auth.MustActor(c)
	db := h.flow.DB().WithContext(c.UserContext())

	id, err := access.ParamID(c, "id")
	var hearing *models.CaseHearing
	var cs *models.Case
	if err == nil {
		hearing, cs, err = access.Hearing(db, actor, id)
	}
	if err != nil {
		return access.Fail(c, casesPath, "Hearing", err)
	}
	return c.JSON(HearingItem{CaseHearing: *hearing, CaseNumber: cs.CaseNumber, CaseTitle: cs.Title})
}

// List Case Hearings godoc
// @Summary      Hearings of a case
// @Tags         hearings
// @Security     BearerAuth
// @Produce      json
// @Param        id   path string true "case id (uuid)"
// @Success      200  {array}   models.CaseHearing
// @Failure      403  {object}  models.ActionResponse
// @Router       /cases/{id}/hearings [get]
func (h *Handler) ListForCase(c *fiber.Ctx) error {
	actor := auth.MustActor(c)
	db := h.flow.DB().WithContext(c.UserContext())

	caseID, err := access.ParamID(c, "id")
	if err == nil {
		_, err = access.Case(db, actor, caseID)
	}
	if err != nil {
		return access.Fail(c, casesPath, "Case", err)
	}

	rows := []models.CaseHearing{}
	if err := db.Where("case_id = ?", caseID).
		Order("hearing_date ASC").Order("hearing_time ASC").
		Find(&rows).Error; err != nil {
		return fiber.ErrInternalServerError
	}
	return c.JSON(rows)
}

// Upcoming Hearings godoc
// @Summary      Hearing calendar
// @Description  Scheduled and postponed hearings on the actor's cases between from and to (default: the next 30 days)
// @Tags         hearings
// @Security     BearerAuth
// @Produce      json
// @Param        from  query string false "YYYY-MM-DD"
// @Param        to    query string false "YYYY-MM-DD"
// @Success      200  {array}  HearingItem
// @Router       /hearings/upcoming [get]
func (h *Handler) Upcoming(c *fiber.Ctx) error {
	actor := auth.MustActor(c)

	from := h.today()
	to := from.AddDate(0, 0, 30)
	if t, err := time.Parse(validation.DateLayout, c.Query("from")); err == nil {
		from = t
	}
	if t, err := time.Parse(validation.DateLayout, c.Query("to")); err == nil {
		to = t
	}

	rows := []HearingItem{}
	if err := h.flow.DB().WithContext(c.UserContext()).
		Model(&models.CaseHearing{}).
		Select("case_hearings.*, cases.case_number AS case_number, cases.title AS case_title").
		Joins("JOIN cases ON cases.id = case_hearings.case_id").
		Scopes(access.ScopeCases(actor)).
		Where("case_hearings.status IN ?", []models.HearingStatus{models.HearingScheduled, models.HearingPostponed}).
		Where("case_hearings.hearing_date >= ? AND case_hearings.hearing_date <= ?", from, to).
		Order("case_hearings.hearing_date ASC").Order("case_hearings.hearing_time ASC").
		Find(&rows).Error; err != nil {
		return fiber.ErrInternalServerError
	}
	return c.JSON(rows)
}
