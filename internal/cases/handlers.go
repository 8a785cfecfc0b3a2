package cases

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/sincere-abayo/advocate-management-system/internal/access"
	"github.com/sincere-abayo/advocate-management-system/internal/auth"
	"github.com/sincere-abayo/advocate-management-system/internal/storage"
	"github.com/sincere-abayo/advocate-management-system/internal/workflow"
	"github.com/sincere-abayo/advocate-management-system/pkg/flash"
	"github.com/sincere-abayo/advocate-management-system/pkg/listing"
	"github.com/sincere-abayo/advocate-management-system/pkg/models"
	"github.com/sincere-abayo/advocate-management-system/pkg/sanitize"
	"github.com/sincere-abayo/advocate-management-system/pkg/validation"
)

const listingPath = "/cases"

// ===== DTOs =====

// CaseRequest is the body of POST /cases and PUT /cases/:id.
type CaseRequest struct {
	ClientID     string `json:"client_id" validate:"required,uuid"`
	Title        string `json:"title" validate:"required,max=200"`
	CaseType     string `json:"case_type" validate:"required,max=60"`
	Court        string `json:"court" validate:"max=120"`
	FilingDate   string `json:"filing_date" validate:"date"`
	HearingDate  string `json:"hearing_date" validate:"date"`
	Status       string `json:"status" validate:"omitempty,oneof=pending active closed won lost settled"`
	Priority     string `json:"priority" validate:"omitempty,oneof=low medium high"`
	Description  string `json:"description" validate:"max=5000"`
	NotifyClient bool   `json:"notify_client"`
}

// CaseListItem is one row of GET /cases.
type CaseListItem struct {
	ID          uuid.UUID           `json:"id"`
	CaseNumber  string              `json:"case_number"`
	Title       string              `json:"title"`
	CaseType    string              `json:"case_type"`
	Court       string              `json:"court"`
	Status      models.CaseStatus   `json:"status"`
	Priority    models.CasePriority `json:"priority"`
	FilingDate  *time.Time          `json:"filing_date"`
	HearingDate *time.Time          `json:"hearing_date"`
	ClientName  string              `json:"client_name"`
	CreatedAt   time.Time           `json:"created_at"`
}

// InvoiceSummary totals the invoices linked to a case.
type InvoiceSummary struct {
	Count       int    `json:"count"`
	Billed      string `json:"billed"`
	Outstanding string `json:"outstanding"`
}

// CaseDetail is the body of GET /cases/:id.
type CaseDetail struct {
	models.Case
	RecentActivities []ActivityItem `json:"recent_activities"`
	Invoices         InvoiceSummary `json:"invoices"`
}

type Handler struct {
	flow    *workflow.Coordinator
	store   storage.Presigner
	urlTTL  time.Duration
	retries int

	numbers NumberFunc
	now     func() time.Time
}

func NewHandler(flow *workflow.Coordinator, store storage.Presigner, urlTTL time.Duration, retries int) *Handler {
	if retries < 1 {
		retries = 1
	}
	return &Handler{
		flow:    flow,
		store:   store,
		urlTTL:  urlTTL,
		retries: retries,
		numbers: NextCaseNumber,
		now:     time.Now,
	}
}

func casePath(id uuid.UUID) string { return listingPath + "/" + id.String() }

// validate sanitizes and checks a case form. It also confirms the client exists.
func (h *Handler) validate(c *fiber.Ctx, in *CaseRequest) map[string][]string {
	sanitize.Struct(in)
	errs, _ := validation.Validate(*in)
	errs = validation.DateOrder(errs, "filing_date", in.FilingDate, "hearing_date", in.HearingDate)
	if _, ok := errs["client_id"]; !ok {
		var n int64
		h.flow.DB().WithContext(c.UserContext()).Model(&models.ClientProfile{}).Where("id = ?", in.ClientID).Count(&n)
		if n == 0 {
			errs = validation.Add(errs, "client_id", "Client not found")
		}
	}
	return errs
}

// Create Case godoc
// @Summary      Create case
// @Description  Advocate opens a case for a client. The case number, the primary assignment, the audit entry and the client notification are written in one transaction.
// @Tags         cases
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        payload  body  CaseRequest  true  "Case payload"
// @Success      201  {object}  models.ActionResponse
// @Failure      400  {object}  models.ValidationErrorResponse
// @Failure      500  {object}  models.ActionResponse
// @Router       /cases [post]
func (h *Handler) Create(c *fiber.Ctx) error {
	actor := auth.MustActor(c)

	var in CaseRequest
	if err := c.BodyParser(&in); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid json")
	}
	if errs := h.validate(c, &in); errs != nil {
		return validation.Respond(c, errs)
	}

	filing, _ := validation.ParseDate(in.FilingDate)
	hearing, _ := validation.ParseDate(in.HearingDate)
	clientID, _ := uuid.Parse(in.ClientID)

	var cs models.Case
	var err error
	for attempt := 1; attempt <= h.retries; attempt++ {
		cs = models.Case{
			ClientID:    clientID,
			Title:       in.Title,
			Description: in.Description,
			CaseType:    in.CaseType,
			Court:       in.Court,
			FilingDate:  filing,
			HearingDate: hearing,
			Status:      models.CaseStatus(orDefault(in.Status, string(models.CasePending))),
			Priority:    models.CasePriority(orDefault(in.Priority, string(models.PriorityMedium))),
			CreatedBy:   actor.UserID,
		}
		err = h.flow.Run(c.UserContext(), "create case", func(u *workflow.Unit) error {
			return h.create(u, actor, &cs)
		})
		if err == nil || !errors.Is(err, gorm.ErrDuplicatedKey) {
			break
		}
	}
	if err != nil {
		return workflow.Respond(c, listingPath, err)
	}
	return flash.Success(c, fiber.StatusCreated, casePath(cs.ID), "Case created successfully", cs.ID.String())
}

func (h *Handler) create(u *workflow.Unit, actor *auth.Actor, cs *models.Case) error {
	number, err := h.numbers(u.Tx(), h.now())
	if err != nil {
		return fmt.Errorf("case number: %w", err)
	}
	cs.CaseNumber = number

	if err := u.Tx().Omit(clause.Associations).Create(cs).Error; err != nil {
		return err
	}
	if actor.IsAdvocate() {
		if err := u.Tx().Omit(clause.Associations).Create(&models.CaseAssignment{
			CaseID:     cs.ID,
			AdvocateID: actor.ProfileID,
			Role:       models.AssignmentPrimary,
		}).Error; err != nil {
			return err
		}
	}
	if err := u.Log(workflow.Activity(cs.ID, actor.UserID, models.ActivityUpdate, "Case created: "+cs.Title)); err != nil {
		return err
	}

	clientUser, err := workflow.ClientProfileUserID(u.Tx(), cs.ClientID)
	if err != nil {
		return err
	}
	return u.Notify(workflow.Notification(clientUser, "New case created",
		fmt.Sprintf("Case %s (%s) has been opened for you.", cs.CaseNumber, cs.Title),
		models.RelatedCase, cs.ID))
}

// sortCases are the only columns GET /cases will order by.
var sortCases = listing.Sort{
	Columns: map[string]string{
		"case_number":  "cases.case_number",
		"title":        "cases.title",
		"status":       "cases.status",
		"priority":     "cases.priority",
		"filing_date":  "cases.filing_date",
		"hearing_date": "cases.hearing_date",
		"created_at":   "cases.created_at",
		"client_name":  "users.full_name",
	},
	Default: "created_at",
	Desc:    true,
}

// List Cases godoc
// @Summary      List cases
// @Description  Advocates see assigned cases, clients their own (filters, allow-listed sort, pagination)
// @Tags         cases
// @Security     BearerAuth
// @Produce      json
// @Param        status     query string false "status"
// @Param        priority   query string false "priority"
// @Param        case_type  query string false "case type"
// @Param        client_id  query string false "client profile id"
// @Param        q          query string false "search in number, title, client name"
// @Param        sort       query string false "case_number|title|status|priority|filing_date|hearing_date|created_at|client_name"
// @Param        order      query string false "asc|desc"
// @Param        page       query int    false "page"
// @Param        pageSize   query int    false "pageSize"
// @Success      200  {object}  models.Page[CaseListItem]
// @Router       /cases [get]
func (h *Handler) List(c *fiber.Ctx) error {
	actor := auth.MustActor(c)
	page, size := listing.ParsePage(c)

	base := func() *gorm.DB {
		q := h.flow.DB().WithContext(c.UserContext()).
			Table("cases").
			Joins("JOIN client_profiles ON client_profiles.id = cases.client_id").
			Joins("JOIN users ON users.id = client_profiles.user_id").
			Scopes(access.ScopeCases(actor))

		if s := c.Query("status"); models.IsValidCaseStatus(s) {
			q = q.Where("cases.status = ?", s)
		}
		switch p := models.CasePriority(c.Query("priority")); p {
		case models.PriorityLow, models.PriorityMedium, models.PriorityHigh:
			q = q.Where("cases.priority = ?", p)
		}
		if t := strings.TrimSpace(c.Query("case_type")); t != "" {
			q = q.Where("cases.case_type = ?", t)
		}
		if id, err := uuid.Parse(c.Query("client_id")); err == nil {
			q = q.Where("cases.client_id = ?", id)
		}
		if term := strings.TrimSpace(c.Query("q")); term != "" {
			like := listing.Like(term)
			q = q.Where(`(LOWER(cases.case_number) LIKE ? ESCAPE '\' OR LOWER(cases.title) LIKE ? ESCAPE '\' OR LOWER(users.full_name) LIKE ? ESCAPE '\')`,
				like, like, like)
		}
		return q
	}

	var total int64
	if err := base().Count(&total).Error; err != nil {
		return fiber.ErrInternalServerError
	}

	rows := make([]CaseListItem, 0, size)
	if err := base().
		Select(`cases.id, cases.case_number, cases.title, cases.case_type, cases.court,
          cases.status, cases.priority, cases.filing_date, cases.hearing_date,
          cases.created_at, users.full_name AS client_name`).
		Order(sortCases.Order(c)).
		Scopes(listing.Paginate(page, size)).
		Scan(&rows).Error; err != nil {
		return fiber.ErrInternalServerError
	}

	return c.JSON(listing.NewPage(page, size, total, rows))
}

// Get case detail godoc
// @Summary      Case detail
// @Description  Case with client, advocates, hearings, documents, recent activity and an invoice summary
// @Tags         cases
// @Security     BearerAuth
// @Produce      json
// @Param        id   path string true "case id (uuid)"
// @Success      200  {object}  CaseDetail
// @Failure      403  {object}  models.ActionResponse
// @Router       /cases/{id} [get]
func (h *Handler) Detail(c *fiber.Ctx) error {
	actor := auth.MustActor(c)
	db := h.flow.DB().WithContext(c.UserContext())

	id, err := access.ParamID(c, "id")
	if err == nil {
		_, err = access.Case(db, actor, id)
	}
	if err != nil {
		return access.Fail(c, listingPath, "Case", err)
	}

	var cs models.Case
	if err := db.
		Preload("Client.User").
		Preload("Assignments.Advocate.User").
		Preload("Hearings", func(db *gorm.DB) *gorm.DB { return db.Order("hearing_date ASC") }).
		Preload("Documents", func(db *gorm.DB) *gorm.DB { return db.Order("created_at DESC") }).
		First(&cs, "id = ?", id).Error; err != nil {
		return fiber.ErrInternalServerError
	}
	if cs.Assignments == nil {
		cs.Assignments = []models.CaseAssignment{}
	}
	if cs.Hearings == nil {
		cs.Hearings = []models.CaseHearing{}
	}
	if cs.Documents == nil {
		cs.Documents = []models.Document{}
	}

	recent, err := activities(db, id, 1, 10)
	if err != nil {
		return fiber.ErrInternalServerError
	}

	summary, err := invoiceSummary(db, id)
	if err != nil {
		return fiber.ErrInternalServerError
	}
	return c.JSON(CaseDetail{Case: cs, RecentActivities: recent, Invoices: summary})
}

func invoiceSummary(db *gorm.DB, caseID uuid.UUID) (InvoiceSummary, error) {
	var bills []models.Billing
	if err := db.Preload("Payments").Where("case_id = ?", caseID).Find(&bills).Error; err != nil {
		return InvoiceSummary{}, err
	}
	var out InvoiceSummary
	billed, outstanding := decimal.Zero, decimal.Zero
	for i := range bills {
		b := &bills[i]
		if b.Status == models.BillingCancelled {
			continue
		}
		out.Count++
		billed = billed.Add(b.Amount)
		outstanding = outstanding.Add(b.BalanceDue(b.Payments))
	}
	out.Billed = billed.StringFixed(2)
	out.Outstanding = outstanding.StringFixed(2)
	return out, nil
}

// Update Case godoc
// @Summary      Update case
// @Description  Edits case fields. A status change is logged as status_change, anything else as update.
// @Tags         cases
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id       path  string       true  "case id (uuid)"
// @Param        payload  body  CaseRequest  true  "Case payload"
// @Success      200  {object}  models.ActionResponse
// @Failure      400  {object}  models.ValidationErrorResponse
// @Failure      403  {object}  models.ActionResponse
// @Router       /cases/{id} [put]
func (h *Handler) Update(c *fiber.Ctx) error {
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

	var in CaseRequest
	if err := c.BodyParser(&in); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid json")
	}
	if errs := h.validate(c, &in); errs != nil {
		return validation.Respond(c, errs)
	}

	filing, _ := validation.ParseDate(in.FilingDate)
	hearing, _ := validation.ParseDate(in.HearingDate)
	clientID, _ := uuid.Parse(in.ClientID)
	status := models.CaseStatus(orDefault(in.Status, string(cs.Status)))
	priority := models.CasePriority(orDefault(in.Priority, string(cs.Priority)))

	err = h.flow.Run(c.UserContext(), "update case", func(u *workflow.Unit) error {
		if err := u.Tx().Model(&models.Case{}).Where("id = ?", cs.ID).Updates(map[string]any{
			"client_id":    clientID,
			"title":        in.Title,
			"description":  in.Description,
			"case_type":    in.CaseType,
			"court":        in.Court,
			"filing_date":  filing,
			"hearing_date": hearing,
			"status":       status,
			"priority":     priority,
		}).Error; err != nil {
			return err
		}

		entry := workflow.Activity(cs.ID, actor.UserID, models.ActivityUpdate, "Case details updated")
		if status != cs.Status {
			entry.ActivityType = models.ActivityStatusChange
			entry.Description = fmt.Sprintf("Case status changed from %s to %s", cs.Status, status)
		}
		if err := u.Log(entry); err != nil {
			return err
		}

		if !in.NotifyClient {
			return nil
		}
		clientUser, err := workflow.ClientProfileUserID(u.Tx(), clientID)
		if err != nil {
			return err
		}
		return u.Notify(workflow.Notification(clientUser, "Case updated",
			fmt.Sprintf("Case %s: %s", cs.CaseNumber, entry.Description),
			models.RelatedCase, cs.ID))
	})
	if err != nil {
		return workflow.Respond(c, casePath(cs.ID), err)
	}
	return flash.Success(c, fiber.StatusOK, casePath(cs.ID), "Case updated successfully", cs.ID.String())
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
