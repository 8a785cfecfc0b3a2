package cases

import (
	"errors"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/sincere-abayo/advocate-management-system/internal/access"
	"github.com/sincere-abayo/advocate-management-system/internal/auth"
	"github.com/sincere-abayo/advocate-management-system/internal/storage"
	"github.com/sincere-abayo/advocate-management-system/internal/workflow"
	"github.com/sincere-abayo/advocate-management-system/pkg/flash"
	"github.com/sincere-abayo/advocate-management-system/pkg/models"
	"github.com/sincere-abayo/advocate-management-system/pkg/sanitize"
	"github.com/sincere-abayo/advocate-management-system/pkg/validation"
)

// DocumentRequest registers a file that is already in the bucket under
// cases/<case id>/.
type DocumentRequest struct {
	Title       string `json:"title" validate:"required,max=200"`
	Description string `json:"description" validate:"max=2000"`
	FileKey     string `json:"file_key" validate:"required,max=500"`
	FileName    string `json:"file_name" validate:"required,max=255"`
	FileType    string `json:"file_type" validate:"max=100"`
	FileSize    int64  `json:"file_size" validate:"gte=0"`
}

// SignedURLResponse is a short-lived download link.
type SignedURLResponse struct {
	URL       string    `json:"url"`
	ExpiresIn int       `json:"expires_in"`
	Now       time.Time `json:"now"`
}

// Register Document godoc
// @Summary      Register case document
// @Description  Records metadata for a stored file, logs a document activity and notifies the client
// @Tags         documents
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id       path  string           true  "case id (uuid)"
// @Param        payload  body  DocumentRequest  true  "Document payload"
// @Success      201  {object}  models.ActionResponse
// @Failure      400  {object}  models.ValidationErrorResponse
// @Failure      403  {object}  models.ActionResponse
// @Router       /cases/{id}/documents [post]
func (h *Handler) AddDocument(c *fiber.Ctx) error {
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

	var in DocumentRequest
	if err := c.BodyParser(&in); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid json")
	}
	sanitize.Struct(&in)
	errs, _ := validation.Validate(in)
	if _, bad := errs["file_key"]; !bad && !storage.BelongsTo(in.FileKey, cs.ID) {
		errs = validation.Add(errs, "file_key", "File is not stored under this case")
	}

	// The bucket is authoritative for size and type when it is reachable.
	if errs == nil && h.store != nil {
		obj, err := h.store.Stat(c.UserContext(), in.FileKey)
		switch {
		case err == nil:
			in.FileSize = obj.Size
			if obj.ContentType != "" {
				in.FileType = obj.ContentType
			}
		case !errors.Is(err, storage.ErrNotConfigured):
			errs = validation.Add(errs, "file_key", "File not found in storage")
		}
	}
	if errs != nil {
		return validation.Respond(c, errs)
	}

	doc := models.Document{
		CaseID:      cs.ID,
		Title:       in.Title,
		Description: in.Description,
		FileKey:     in.FileKey,
		FileName:    in.FileName,
		FileType:    in.FileType,
		FileSize:    in.FileSize,
		UploadedBy:  actor.UserID,
	}
	err = h.flow.Run(c.UserContext(), "add document", func(u *workflow.Unit) error {
		if err := u.Tx().Create(&doc).Error; err != nil {
			return err
		}
		if err := u.Log(workflow.Activity(cs.ID, actor.UserID, models.ActivityDocument, "Document uploaded: "+doc.Title)); err != nil {
			return err
		}
		msg := fmt.Sprintf("%q was added to case %s.", doc.Title, cs.CaseNumber)
		if actor.IsClient() {
			advocates, err := workflow.AdvocateUserIDs(u.Tx(), cs.ID)
			if err != nil {
				return err
			}
			for _, uid := range advocates {
				if err := u.Notify(workflow.Notification(uid, "New document", msg, models.RelatedDocument, doc.ID)); err != nil {
					return err
				}
			}
			return nil
		}
		clientUser, err := workflow.ClientUserID(u.Tx(), cs.ID)
		if err != nil {
			return err
		}
		return u.Notify(workflow.Notification(clientUser, "New document", msg, models.RelatedDocument, doc.ID))
	})
	if err != nil {
		return workflow.Respond(c, casePath(cs.ID), err)
	}
	return flash.Success(c, fiber.StatusCreated, casePath(cs.ID), "Document added successfully", doc.ID.String())
}

// Signed Download URL godoc
// @Summary      Get signed URL
// @Description  Anyone who may see the case obtains a short-lived signed URL for one of its documents
// @Tags         documents
// @Security     BearerAuth
// @Produce      json
// @Param        id  path string true "document id (uuid)"
// @Success      200  {object}  SignedURLResponse
// @Failure      403  {object}  models.ActionResponse
// @Failure      503  {object}  models.ErrorResponse
// @Router       /documents/{id}/url [get]
func (h *Handler) DocumentURL(c *fiber.Ctx) error {
	actor := auth.MustActor(c)
	db := h.flow.DB().WithContext(c.UserContext())

	id, err := access.ParamID(c, "id")
	var doc *models.Document
	if err == nil {
		doc, err = access.Document(db, actor, id)
	}
	if err != nil {
		return access.Fail(c, listingPath, "Document", err)
	}

	if h.store == nil {
		return fiber.NewError(fiber.StatusServiceUnavailable, storage.ErrNotConfigured.Error())
	}
	url, err := h.store.SignedURL(c.UserContext(), doc.FileKey, h.urlTTL)
	if errors.Is(err, storage.ErrNotConfigured) {
		return fiber.NewError(fiber.StatusServiceUnavailable, err.Error())
	}
	if err != nil {
		return fiber.ErrInternalServerError
	}
	return c.JSON(SignedURLResponse{URL: url, ExpiresIn: int(h.urlTTL.Seconds()), Now: time.Now().UTC()})
}
