package hearings

import (
	"fmt"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm/clause"

	"github.com/sincere-abayo/advocate-management-system/internal/access"
	"github.com/sincere-abayo/advocate-management-system/internal/auth"
	"github.com/sincere-abayo/advocate-management-system/internal/workflow"
	"github.com/sincere-abayo/advocate-management-system/pkg/flash"
	"github.com/sincere-abayo/advocate-management-system/pkg/models"
	"github.com/sincere-abayo/advocate-management-system/pkg/sanitize"
	"github.com/sincere-abayo/advocate-management-system/pkg/validation"
)

// transitions lists where each status may go. completed and cancelled are final.
var transitions = map[models.HearingStatus][]models.HearingStatus{
	models.HearingScheduled: {models.HearingCompleted, models.HearingCancelled, models.HearingPostponed},
	models.HearingPostponed: {models.HearingScheduled, models.HearingCancelled, models.HearingCompleted},
}

// CanTransition reports whether a hearing may move from one status to
// another. Staying put is always allowed.
func CanTransition(from, to models.HearingStatus) bool {
	if from == to {
		return true
	}
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// lockForTransition reloads the hearing inside the unit with a row lock and
// refuses the move when the locked status no longer allows it.
func lockForTransition(u *workflow.Unit, id uuid.UUID, next models.HearingStatus) (*models.CaseHearing, error) {
	var hearing models.CaseHearing
	if err := u.Tx().Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&hearing, "id = ?", id).Error; err != nil {
		return nil, err
	}
	if !CanTransition(hearing.Status, next) {
		return &hearing, workflow.Reject(fmt.Sprintf("Cannot change hearing status from %s to %s", hearing.Status, next))
	}
	return &hearing, nil
}

// StatusRequest is the body of POST /hearings/:id/status.
type StatusRequest struct {
	Status string `json:"status" validate:"required,oneof=scheduled completed cancelled postponed"`
}

// OutcomePrompt is where a completed hearing without an outcome is sent.
func OutcomePrompt(h *models.CaseHearing) string {
	return hearingPath(h.ID) + "/edit?prompt=outcome"
}

// Update Hearing Status godoc
// @Summary      Change hearing status
// @Description  scheduled → completed|cancelled|postponed, postponed → scheduled|cancelled|completed. Repeating the current status changes nothing. Completing a hearing without an outcome redirects to the outcome prompt.
// @Tags         hearings
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id       path  string         true  "hearing id (uuid)"
// @Param        payload  body  StatusRequest  true  "Status payload"
// @Success      200  {object}  models.ActionResponse
// @Failure      400  {object}  models.ValidationErrorResponse
// @Failure      403  {object}  models.ActionResponse
// @Failure      409  {object}  models.ActionResponse  "transition not allowed"
// @Router       /hearings/{id}/status [post]
func (h *Handler) UpdateStatus(c *fiber.Ctx) error {
	actor := auth.MustActor(c)
	db := h.flow.DB().WithContext(c.UserContext())

	id, err := access.ParamID(c, "id")
	var cs *models.Case
	if err == nil {
		_, cs, err = access.Hearing(db, actor, id)
	}
	if err != nil {
		return access.Fail(c, casesPath, "Hearing", err)
	}

	var in StatusRequest
	if err := c.BodyParser(&in); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid json")
	}
	sanitize.Struct(&in)
	in.Status = strings.ToLower(in.Status)
	if errs, _ := validation.Validate(in); errs != nil {
		return validation.Respond(c, errs)
	}
	next := models.HearingStatus(in.Status)

	var hearing models.CaseHearing
	changed := false
	today := h.today()
	err = h.flow.Run(c.UserContext(), "update hearing status", func(u *workflow.Unit) error {
		locked, err := lockForTransition(u, id, next)
		if err != nil {
			return err
		}
		hearing = *locked
		prev := hearing.Status
		if prev == next {
			return nil
		}

		if err := u.Tx().Model(&models.CaseHearing{}).Where("id = ?", hearing.ID).
			Update("status", next).Error; err != nil {
			return err
		}
		hearing.Status = next
		changed = true

		if err := syncCaseHearingDate(u.Tx(), cs.ID, today); err != nil {
			return err
		}
		if err := u.Log(workflow.Activity(cs.ID, actor.UserID, models.ActivityStatusChange,
			fmt.Sprintf("Hearing status changed from %s to %s: %s on %s",
				prev, next, hearing.HearingType, workflow.FormatWhen(hearing.HearingDate, hearing.HearingTime)))); err != nil {
			return err
		}

		if next != models.HearingCancelled && next != models.HearingPostponed {
			return nil
		}
		clientUser, err := workflow.ClientUserID(u.Tx(), cs.ID)
		if err != nil {
			return err
		}
		return u.Notify(workflow.Notification(clientUser, "Hearing "+string(next),
			fmt.Sprintf("The %s hearing for case %s on %s has been %s.",
				hearing.HearingType, cs.CaseNumber, hearing.HearingDate.Format(workflow.SentenceDate), next),
			models.RelatedHearing, hearing.ID))
	})
	if err != nil {
		return workflow.Respond(c, hearingPath(id), err)
	}

	if hearing.Status == models.HearingCompleted && strings.TrimSpace(hearing.Outcome) == "" {
		return flash.Info(c, OutcomePrompt(&hearing), "Hearing marked as completed. Please record the outcome.", hearing.ID.String())
	}
	if !changed {
		return flash.Info(c, hearingPath(hearing.ID), "Hearing is already "+string(hearing.Status), hearing.ID.String())
	}
	return flash.Success(c, fiber.StatusOK, hearingPath(hearing.ID), "Hearing status updated successfully", hearing.ID.String())
}
