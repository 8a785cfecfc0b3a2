package invoices

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
	"github.com/sincere-abayo/advocate-management-system/internal/workflow"
	"github.com/sincere-abayo/advocate-management-system/pkg/flash"
	"github.com/sincere-abayo/advocate-management-system/pkg/listing"
	"github.com/sincere-abayo/advocate-management-system/pkg/models"
	"github.com/sincere-abayo/advocate-management-system/pkg/sanitize"
	"github.com/sincere-abayo/advocate-management-system/pkg/validation"
)

const listingPath = "/invoices"

// ===== DTOs =====

// ItemRequest is one invoice line. Its amount is always computed.
type ItemRequest struct {
	Description string          `json:"description" validate:"required,max=255"`
	Quantity    decimal.Decimal `json:"quantity" validate:"gt=0,lte=100000"`
	Rate        decimal.Decimal `json:"rate" validate:"gt=0"`
}

// InvoiceRequest is the body of POST /invoices and PUT /invoices/:id.
// Amount is only read when there are no items.
type InvoiceRequest struct {
	ClientID      string          `json:"client_id" validate:"required,uuid"`
	CaseID        string          `json:"case_id" validate:"omitempty,uuid"`
	BillingDate   string          `json:"billing_date" validate:"required,date"`
	DueDate       string          `json:"due_date" validate:"required,date"`
	Status        string          `json:"status" validate:"omitempty,oneof=pending paid overdue cancelled"`
	Description   string          `json:"description" validate:"max=2000"`
	Amount        decimal.Decimal `json:"amount" validate:"gte=0"`
	PaymentMethod string          `json:"payment_method" validate:"omitempty,oneof=cash bank_transfer mobile_money cheque card other"`
	PaymentDate   string          `json:"payment_date" validate:"date"`
	Items         []ItemRequest   `json:"items" validate:"max=100,dive"`
}

// InvoiceListItem is one row of GET /invoices.
type InvoiceListItem struct {
	ID          uuid.UUID            `json:"id"`
	ClientID    uuid.UUID            `json:"client_id"`
	ClientName  string               `json:"client_name"`
	CaseID      *uuid.UUID           `json:"case_id"`
	CaseNumber  *string              `json:"case_number"`
	Amount      decimal.Decimal      `json:"amount"`
	Description string               `json:"description"`
	BillingDate time.Time            `json:"billing_date"`
	DueDate     time.Time            `json:"due_date"`
	Status      models.BillingStatus `json:"status"`
	CreatedAt   time.Time            `json:"created_at"`
	IsOverdue   bool                 `json:"is_overdue" gorm:"-"`
}

// InvoiceDetail is GET /invoices/:id.
type InvoiceDetail struct {
	models.Billing
	CaseNumber string          `json:"case_number,omitempty"`
	Paid       decimal.Decimal `json:"paid"`
	BalanceDue decimal.Decimal `json:"balance_due"`
	IsOverdue  bool            `json:"is_overdue"`
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

func invoicePath(id uuid.UUID) string { return listingPath + "/" + id.String() }

// sortInvoices are the only columns GET /invoices will order by.
var sortInvoices = listing.Sort{
	Columns: map[string]string{
		"billing_date": "billings.billing_date",
		"due_date":     "billings.due_date",
		"amount":       "billings.amount",
		"status":       "billings.status",
		"client_name":  "users.full_name",
		"created_at":   "billings.created_at",
	},
	Default: "billing_date",
	Desc:    true,
}

// draft is a validated InvoiceRequest.
type draft struct {
	clientID      uuid.UUID
	caseID        *uuid.UUID
	billingDate   time.Time
	dueDate       time.Time
	status        models.BillingStatus
	description   string
	amount        decimal.Decimal
	items         []models.BillingItem
	paymentMethod models.PaymentMethod
	paymentDate   *time.Time
}

func (h *Handler) parse(c *fiber.Ctx, actor *auth.Actor) (*draft, map[string][]string, error) {
	var in InvoiceRequest
	if err := c.BodyParser(&in); err != nil {
		return nil, nil, fiber.NewError(fiber.StatusBadRequest, "invalid json")
	}
	sanitize.Struct(&in)
	if in.Status == "" {
		in.Status = string(models.BillingPending)
	}

	errs, _ := validation.Validate(in)
	errs = validation.DateOrder(errs, "billing_date", in.BillingDate, "due_date", in.DueDate)
	if in.Status == string(models.BillingPaid) {
		if in.PaymentMethod == "" {
			errs = validation.Add(errs, "payment_method", "This field is required")
		}
		if in.PaymentDate == "" {
			errs = validation.Add(errs, "payment_date", "This field is required")
		}
	}

	d := &draft{
		status:        models.BillingStatus(in.Status),
		description:   in.Description,
		paymentMethod: models.PaymentMethod(in.PaymentMethod),
	}
	for i, it := range in.Items {
		errs = validation.Cents(errs, fmt.Sprintf("items[%d].quantity", i), it.Quantity)
		errs = validation.Cents(errs, fmt.Sprintf("items[%d].rate", i), it.Rate)
		item := models.BillingItem{Description: it.Description, Quantity: it.Quantity, Rate: it.Rate}
		item.Compute()
		d.items = append(d.items, item)
	}
	if len(d.items) > 0 {
		d.amount = models.SumItems(d.items)
	} else {
		d.amount = in.Amount
		errs = validation.Cents(errs, "amount", in.Amount)
		if _, bad := errs["amount"]; !bad && !d.amount.IsPositive() {
			errs = validation.Add(errs, "amount", "Must be greater than 0")
		}
	}

	db := h.flow.DB().WithContext(c.UserContext())
	if _, bad := errs["client_id"]; !bad {
		d.clientID, _ = uuid.Parse(in.ClientID)
		var n int64
		if err := db.Model(&models.ClientProfile{}).Where("id = ?", d.clientID).Count(&n).Error; err != nil {
			return nil, nil, fiber.ErrInternalServerError
		}
		if n == 0 {
			errs = validation.Add(errs, "client_id", "Client not found")
		}
	}
	if _, bad := errs["case_id"]; !bad && in.CaseID != "" {
		caseID, _ := uuid.Parse(in.CaseID)
		cs, err := access.Case(db, actor, caseID)
		switch {
		case errors.Is(err, access.ErrDenied):
			errs = validation.Add(errs, "case_id", "Case not found")
		case err != nil:
			return nil, nil, fiber.ErrInternalServerError
		case cs.ClientID != d.clientID:
			errs = validation.Add(errs, "case_id", "Case belongs to another client")
		default:
			d.caseID = &cs.ID
		}
	}
	if errs != nil {
		return nil, errs, nil
	}

	billing, _ := validation.ParseDate(in.BillingDate)
	due, _ := validation.ParseDate(in.DueDate)
	d.billingDate, d.dueDate = *billing, *due
	d.paymentDate, _ = validation.ParseDate(in.PaymentDate)
	if d.status != models.BillingPaid {
		d.paymentMethod, d.paymentDate = "", nil
	}
	return d, nil, nil
}

func advocateOf(actor *auth.Actor) *uuid.UUID {
	if !actor.IsAdvocate() {
		return nil
	}
	id := actor.ProfileID
	return &id
}

func insertItems(tx *gorm.DB, billingID uuid.UUID, items []models.BillingItem) error {
	if len(items) == 0 {
		return nil
	}
	for i := range items {
		items[i].ID = uuid.Nil
		items[i].BillingID = billingID
	}
	return tx.Create(&items).Error
}

// logBilling writes a billing activity when the invoice is tied to a case.
func logBilling(u *workflow.Unit, b *models.Billing, actor *auth.Actor, description string) error {
	if b.CaseID == nil {
		return nil
	}
	return u.Log(workflow.Activity(*b.CaseID, actor.UserID, models.ActivityBilling, description))
}

func notifyClient(u *workflow.Unit, b *models.Billing, title, message string) error {
	userID, err := workflow.ClientProfileUserID(u.Tx(), b.ClientID)
	if err != nil {
		return err
	}
	return u.Notify(workflow.Notification(userID, title, message, models.RelatedBilling, b.ID))
}

func money(d decimal.Decimal) string { return d.StringFixed(2) }

// lock reloads the invoice inside the unit with a row lock.
func lock(u *workflow.Unit, id uuid.UUID) (*models.Billing, error) {
	var b models.Billing
	if err := u.Tx().Clauses(clause.Locking{Strength: "UPDATE"}).First(&b, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &b, nil
}

// Create Invoice godoc
// @Summary      Create invoice
// @Description  The amount is the sum of quantity × rate over the items. Logs a billing activity on the linked case and notifies the client. An invoice created as paid records a payment for the full amount.
// @Tags         invoices
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        payload  body  InvoiceRequest  true  "Invoice payload"
// @Success      201  {object}  models.ActionResponse
// @Failure      400  {object}  models.ValidationErrorResponse
// @Failure      500  {object}  models.ActionResponse
// @Router       /invoices [post]
func (h *Handler) Create(c *fiber.Ctx) error {
	actor := auth.MustActor(c)

	d, errs, err := h.parse(c, actor)
	if err != nil {
		return err
	}
	if errs != nil {
		return validation.Respond(c, errs)
	}

	b := models.Billing{
		ClientID:      d.clientID,
		CaseID:        d.caseID,
		AdvocateID:    advocateOf(actor),
		Amount:        d.amount,
		Description:   d.description,
		BillingDate:   d.billingDate,
		DueDate:       d.dueDate,
		Status:        d.status,
		PaymentMethod: d.paymentMethod,
		PaymentDate:   d.paymentDate,
	}
	err = h.flow.Run(c.UserContext(), "create invoice", func(u *workflow.Unit) error {
		if err := u.Tx().Omit(clause.Associations).Create(&b).Error; err != nil {
			return err
		}
		if err := insertItems(u.Tx(), b.ID, d.items); err != nil {
			return err
		}
		if b.Status == models.BillingPaid {
			if err := u.Tx().Create(&models.Payment{
				BillingID:     b.ID,
				Amount:        b.Amount,
				PaymentMethod: b.PaymentMethod,
				PaymentDate:   *b.PaymentDate,
				RecordedBy:    actor.UserID,
			}).Error; err != nil {
				return err
			}
		}
		if err := logBilling(u, &b, actor, fmt.Sprintf("Invoice created: %s due %s",
			money(b.Amount), b.DueDate.Format(workflow.SentenceDate))); err != nil {
			return err
		}
		return notifyClient(u, &b, "New invoice", fmt.Sprintf("An invoice of %s is due on %s.",
			money(b.Amount), b.DueDate.Format(workflow.SentenceDate)))
	})
	if err != nil {
		return workflow.Respond(c, listingPath, err)
	}
	return flash.Success(c, fiber.StatusCreated, invoicePath(b.ID), "Invoice created successfully", b.ID.String())
}

// Edit Invoice godoc
// @Summary      Edit invoice
// @Description  Replaces every item and recomputes the amount. Paid and cancelled invoices cannot be edited.
// @Tags         invoices
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id       path  string          true  "invoice id (uuid)"
// @Param        payload  body  InvoiceRequest  true  "Invoice payload"
// @Success      200  {object}  models.ActionResponse
// @Failure      400  {object}  models.ValidationErrorResponse
// @Failure      403  {object}  models.ActionResponse
// @Failure      409  {object}  models.ActionResponse
// @Router       /invoices/{id} [put]
func (h *Handler) Edit(c *fiber.Ctx) error {
	actor := auth.MustActor(c)
	db := h.flow.DB().WithContext(c.UserContext())

	id, err := access.ParamID(c, "id")
	if err == nil {
		_, err = access.Invoice(db, actor, id)
	}
	if err != nil {
		return access.Fail(c, listingPath, "Invoice", err)
	}

	d, errs, err := h.parse(c, actor)
	if err != nil {
		return err
	}
	if errs != nil {
		return validation.Respond(c, errs)
	}

	err = h.flow.Run(c.UserContext(), "update invoice", func(u *workflow.Unit) error {
		b, err := lock(u, id)
		if err != nil {
			return err
		}
		if !b.Editable() {
			return workflow.Reject(fmt.Sprintf("A %s invoice cannot be edited", b.Status))
		}

		var payments []models.Payment
		if err := u.Tx().Where("billing_id = ?", b.ID).Find(&payments).Error; err != nil {
			return err
		}
		paid := models.SumPayments(payments)
		if d.amount.LessThan(paid) {
			return workflow.Reject(fmt.Sprintf("Amount cannot be less than the %s already paid", money(paid)))
		}

		if err := u.Tx().Where("billing_id = ?", b.ID).Delete(&models.BillingItem{}).Error; err != nil {
			return err
		}
		if err := insertItems(u.Tx(), b.ID, d.items); err != nil {
			return err
		}

		b.ClientID, b.CaseID = d.clientID, d.caseID
		b.Amount, b.Description = d.amount, d.description
		b.BillingDate, b.DueDate = d.billingDate, d.dueDate
		b.Status, b.PaymentMethod, b.PaymentDate = d.status, d.paymentMethod, d.paymentDate
		if err := u.Tx().Model(&models.Billing{}).Where("id = ?", b.ID).Updates(map[string]any{
			"client_id":      b.ClientID,
			"case_id":        b.CaseID,
			"amount":         b.Amount,
			"description":    b.Description,
			"billing_date":   b.BillingDate,
			"due_date":       b.DueDate,
			"status":         b.Status,
			"payment_method": b.PaymentMethod,
			"payment_date":   b.PaymentDate,
		}).Error; err != nil {
			return err
		}

		if balance := d.amount.Sub(paid); b.Status == models.BillingPaid && balance.IsPositive() {
			if err := u.Tx().Create(&models.Payment{
				BillingID:     b.ID,
				Amount:        balance,
				PaymentMethod: b.PaymentMethod,
				PaymentDate:   *b.PaymentDate,
				RecordedBy:    actor.UserID,
			}).Error; err != nil {
				return err
			}
		}

		if err := logBilling(u, b, actor, fmt.Sprintf("Invoice updated: %s due %s",
			money(b.Amount), b.DueDate.Format(workflow.SentenceDate))); err != nil {
			return err
		}
		return notifyClient(u, b, "Invoice updated", fmt.Sprintf("Your invoice now totals %s and is due on %s.",
			money(b.Amount), b.DueDate.Format(workflow.SentenceDate)))
	})
	if err != nil {
		return workflow.Respond(c, invoicePath(id), err)
	}
	return flash.Success(c, fiber.StatusOK, invoicePath(id), "Invoice updated successfully", id.String())
}

// Duplicate Invoice godoc
// @Summary      Duplicate invoice
// @Description  Copies the items into a new pending invoice billed today with the same number of days until due
// @Tags         invoices
// @Security     BearerAuth
// @Produce      json
// @Param        id  path string true "invoice id (uuid)"
// @Success      201  {object}  models.ActionResponse
// @Failure      403  {object}  models.ActionResponse
// @Router       /invoices/{id}/duplicate [post]
func (h *Handler) Duplicate(c *fiber.Ctx) error {
	actor := auth.MustActor(c)
	db := h.flow.DB().WithContext(c.UserContext())

	id, err := access.ParamID(c, "id")
	var src *models.Billing
	if err == nil {
		src, err = access.Invoice(db, actor, id)
	}
	if err != nil {
		return access.Fail(c, listingPath, "Invoice", err)
	}

	today := h.today()
	term := int(src.DueDate.Sub(src.BillingDate).Hours() / 24)
	cp := models.Billing{
		ClientID:    src.ClientID,
		CaseID:      src.CaseID,
		AdvocateID:  src.AdvocateID,
		Amount:      src.Amount,
		Description: src.Description,
		BillingDate: today,
		DueDate:     today.AddDate(0, 0, term),
		Status:      models.BillingPending,
	}
	if a := advocateOf(actor); a != nil {
		cp.AdvocateID = a
	}

	err = h.flow.Run(c.UserContext(), "duplicate invoice", func(u *workflow.Unit) error {
		var items []models.BillingItem
		if err := u.Tx().Where("billing_id = ?", src.ID).Find(&items).Error; err != nil {
			return err
		}
		if len(items) > 0 {
			cp.Amount = models.SumItems(items)
		}
		if err := u.Tx().Omit(clause.Associations).Create(&cp).Error; err != nil {
			return err
		}
		if err := insertItems(u.Tx(), cp.ID, items); err != nil {
			return err
		}
		if err := logBilling(u, &cp, actor, fmt.Sprintf("Invoice created: %s due %s",
			money(cp.Amount), cp.DueDate.Format(workflow.SentenceDate))); err != nil {
			return err
		}
		return notifyClient(u, &cp, "New invoice", fmt.Sprintf("An invoice of %s is due on %s.",
			money(cp.Amount), cp.DueDate.Format(workflow.SentenceDate)))
	})
	if err != nil {
		return workflow.Respond(c, invoicePath(src.ID), err)
	}
	return flash.Success(c, fiber.StatusCreated, invoicePath(cp.ID), "Invoice duplicated successfully", cp.ID.String())
}

// List Invoices godoc
// @Summary      List invoices
// @Description  Invoices the actor may see. Filters: status (overdue also matches pending past due), client_id, case_id, from/to on billing_date, q over description, client name and case number.
// @Tags         invoices
// @Security     BearerAuth
// @Produce      json
// @Param        status     query string false "pending|paid|overdue|cancelled"
// @Param        client_id  query string false "client profile id"
// @Param        case_id    query string false "case id"
// @Param        from       query string false "YYYY-MM-DD"
// @Param        to         query string false "YYYY-MM-DD"
// @Param        q          query string false "search"
// @Param        sort       query string false "billing_date|due_date|amount|status|client_name|created_at"
// @Param        order      query string false "asc|desc"
// @Param        page       query int    false "page"
// @Param        pageSize   query int    false "page size"
// @Success      200  {object}  models.Page[InvoiceListItem]
// @Router       /invoices [get]
func (h *Handler) List(c *fiber.Ctx) error {
	actor := auth.MustActor(c)
	page, size := listing.ParsePage(c)
	today := h.today()

	base := func() *gorm.DB {
		q := h.flow.DB().WithContext(c.UserContext()).
			Table("billings").
			Joins("JOIN client_profiles ON client_profiles.id = billings.client_id").
			Joins("JOIN users ON users.id = client_profiles.user_id").
			Joins("LEFT JOIN cases ON cases.id = billings.case_id").
			Scopes(access.ScopeInvoices(actor))

		switch s := models.BillingStatus(c.Query("status")); s {
		case models.BillingOverdue:
			q = q.Where("(billings.status = ? OR (billings.status = ? AND billings.due_date < ?))",
				models.BillingOverdue, models.BillingPending, today)
		case models.BillingPending, models.BillingPaid, models.BillingCancelled:
			q = q.Where("billings.status = ?", s)
		}
		if id, err := uuid.Parse(c.Query("client_id")); err == nil {
			q = q.Where("billings.client_id = ?", id)
		}
		if id, err := uuid.Parse(c.Query("case_id")); err == nil {
			q = q.Where("billings.case_id = ?", id)
		}
		from, to := listing.DateRange(c)
		if from != nil {
			q = q.Where("billings.billing_date >= ?", *from)
		}
		if to != nil {
			q = q.Where("billings.billing_date < ?", *to)
		}
		if term := strings.TrimSpace(c.Query("q")); term != "" {
			like := listing.Like(term)
			q = q.Where(`(LOWER(billings.description) LIKE ? ESCAPE '\' OR LOWER(users.full_name) LIKE ? ESCAPE '\' OR LOWER(cases.case_number) LIKE ? ESCAPE '\')`,
				like, like, like)
		}
		return q
	}

	var total int64
	if err := base().Count(&total).Error; err != nil {
		return fiber.ErrInternalServerError
	}

	rows := make([]InvoiceListItem, 0, size)
	if err := base().
		Select(`billings.id, billings.client_id, billings.case_id, billings.amount, billings.description,
          billings.billing_date, billings.due_date, billings.status, billings.created_at,
          users.full_name AS client_name, cases.case_number AS case_number`).
		Order(sortInvoices.Order(c)).
		Scopes(listing.Paginate(page, size)).
		Scan(&rows).Error; err != nil {
		return fiber.ErrInternalServerError
	}
	for i := range rows {
		b := models.Billing{Status: rows[i].Status, DueDate: rows[i].DueDate}
		rows[i].IsOverdue = b.IsOverdue(today)
	}

	return c.JSON(listing.NewPage(page, size, total, rows))
}

// Get Invoice godoc
// @Summary      Invoice detail
// @Description  Invoice with items, payments, balance due and a computed overdue flag
// @Tags         invoices
// @Security     BearerAuth
// @Produce      json
// @Param        id   path string true "invoice id (uuid)"
// @Success      200  {object}  InvoiceDetail
// @Failure      403  {object}  models.ActionResponse
// @Router       /invoices/{id} [get]
func (h *Handler) Detail(c *fiber.Ctx) error {
	actor := auth.MustActor(c)
	db := h.flow.DB().WithContext(c.UserContext())

	id, err := access.ParamID(c, "id")
	if err == nil {
		_, err = access.Invoice(db, actor, id)
	}
	if err != nil {
		return access.Fail(c, listingPath, "Invoice", err)
	}

	var b models.Billing
	if err := db.
		Preload("Client.User").
		Preload("Items").
		Preload("Payments", func(q *gorm.DB) *gorm.DB { return q.Order("payment_date ASC").Order("created_at ASC") }).
		First(&b, "id = ?", id).Error; err != nil {
		return access.Fail(c, listingPath, "Invoice", err)
	}

	out := InvoiceDetail{
		Billing:    b,
		Paid:       models.SumPayments(b.Payments),
		BalanceDue: b.BalanceDue(b.Payments),
		IsOverdue:  b.IsOverdue(h.today()),
	}
	if b.CaseID != nil {
		var number []string
		if err := db.Model(&models.Case{}).Where("id = ?", *b.CaseID).Limit(1).Pluck("case_number", &number).Error; err != nil {
			return fiber.ErrInternalServerError
		}
		if len(number) > 0 {
			out.CaseNumber = number[0]
		}
	}
	return c.JSON(out)
}
