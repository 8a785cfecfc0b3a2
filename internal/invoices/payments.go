package invoices

import (
	"fmt"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/sincere-abayo/advocate-management-system/internal/access"
	"github.com/sincere-abayo/advocate-management-system/internal/auth"
	"github.com/sincere-abayo/advocate-management-system/internal/workflow"
	"github.com/sincere-abayo/advocate-management-system/pkg/flash"
	"github.com/sincere-abayo/advocate-management-system/pkg/models"
	"github.com/sincere-abayo/advocate-management-system/pkg/sanitize"
	"github.com/sincere-abayo/advocate-management-system/pkg/validation"
)

// SettleRequest is the body of POST /invoices/:id/mark-paid.
type SettleRequest struct {
	PaymentMethod string `json:"payment_method" validate:"required,oneof=cash bank_transfer mobile_money cheque card other"`
	PaymentDate   string `json:"payment_date" validate:"required,date"`
	Reference     string `json:"reference" validate:"max=100"`
	Notes         string `json:"notes" validate:"max=1000"`
}

// PaymentRequest is the body of POST /invoices/:id/payments.
type PaymentRequest struct {
	Amount decimal.Decimal `json:"amount" validate:"gt=0"`
	SettleRequest
}

// guard resolves :id to an invoice the actor may touch.
func (h *Handler) guard(c *fiber.Ctx) (uuid.UUID, error) {
	actor := auth.MustActor(c)
	id, err := access.ParamID(c, "id")
	if err == nil {
		_, err = access.Invoice(h.flow.DB().WithContext(c.UserContext()), actor, id)
	}
	return id, err
}

func readPayment(c *fiber.Ctx, in any) (map[string][]string, error) {
	if err := c.BodyParser(in); err != nil {
		return nil, fiber.NewError(fiber.StatusBadRequest, "invalid json")
	}
	sanitize.Struct(in)
	switch v := in.(type) {
	case *SettleRequest:
		errs, _ := validation.Validate(*v)
		return errs, nil
	case *PaymentRequest:
		errs, _ := validation.Validate(*v)
		return validation.Cents(errs, "amount", v.Amount), nil
	}
	return nil, nil
}

// record inserts a payment and flips the invoice to paid once nothing is due.
func record(u *workflow.Unit, b *models.Billing, actor *auth.Actor, amount decimal.Decimal, in *SettleRequest) (decimal.Decimal, error) {
	var payments []models.Payment
	if err := u.Tx().Where("billing_id = ?", b.ID).Find(&payments).Error; err != nil {
		return decimal.Zero, err
	}
	balance := b.BalanceDue(payments)
	if amount.GreaterThan(balance) {
		return balance, workflow.Reject(fmt.Sprintf("Payment of %s exceeds the balance due of %s", money(amount), money(balance)))
	}

	date, _ := validation.ParseDate(in.PaymentDate)
	if amount.IsPositive() {
		if err := u.Tx().Create(&models.Payment{
			BillingID:     b.ID,
			Amount:        amount,
			PaymentMethod: models.PaymentMethod(in.PaymentMethod),
			PaymentDate:   *date,
			Reference:     in.Reference,
			Notes:         in.Notes,
			RecordedBy:    actor.UserID,
		}).Error; err != nil {
			return balance, err
		}
	}

	balance = balance.Sub(amount)
	if balance.IsPositive() {
		return balance, nil
	}
	b.Status = models.BillingPaid
	return balance, u.Tx().Model(&models.Billing{}).Where("id = ?", b.ID).Updates(map[string]any{
		"status":         models.BillingPaid,
		"payment_method": in.PaymentMethod,
		"payment_date":   *date,
	}).Error
}

// Mark Paid godoc
// @Summary      Mark invoice paid
// @Description  Records a payment for the outstanding balance and sets the invoice to paid. Repeating the call on a paid invoice changes nothing.
// @Tags         invoices
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id       path  string         true  "invoice id (uuid)"
// @Param        payload  body  SettleRequest  true  "Payment details"
// @Success      200  {object}  models.ActionResponse
// @Failure      400  {object}  models.ValidationErrorResponse
// @Failure      403  {object}  models.ActionResponse
// @Failure      409  {object}  models.ActionResponse
// @Router       /invoices/{id}/mark-paid [post]
func (h *Handler) MarkPaid(c *fiber.Ctx) error {
	actor := auth.MustActor(c)
	id, err := h.guard(c)
	if err != nil {
		return access.Fail(c, listingPath, "Invoice", err)
	}

	var in SettleRequest
	errs, err := readPayment(c, &in)
	if err != nil {
		return err
	}
	if errs != nil {
		return validation.Respond(c, errs)
	}

	already := false
	err = h.flow.Run(c.UserContext(), "mark invoice as paid", func(u *workflow.Unit) error {
		b, err := lock(u, id)
		if err != nil {
			return err
		}
		switch b.Status {
		case models.BillingPaid:
			already = true
			return nil
		case models.BillingCancelled:
			return workflow.Reject("A cancelled invoice cannot be paid")
		}

		var payments []models.Payment
		if err := u.Tx().Where("billing_id = ?", b.ID).Find(&payments).Error; err != nil {
			return err
		}
		due := b.BalanceDue(payments)
		if _, err := record(u, b, actor, decimal.Max(due, decimal.Zero), &in); err != nil {
			return err
		}
		if err := logBilling(u, b, actor, "Invoice marked as paid: "+money(b.Amount)); err != nil {
			return err
		}
		return notifyClient(u, b, "Payment received",
			fmt.Sprintf("Your invoice of %s has been paid in full. Thank you.", money(b.Amount)))
	})
	if err != nil {
		return workflow.Respond(c, invoicePath(id), err)
	}
	if already {
		return flash.Info(c, invoicePath(id), "Invoice is already paid", id.String())
	}
	return flash.Success(c, fiber.StatusOK, invoicePath(id), "Invoice marked as paid", id.String())
}

// Record Payment godoc
// @Summary      Record partial payment
// @Description  Adds a payment. The invoice becomes paid when the balance reaches zero. Payments above the balance are refused.
// @Tags         invoices
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id       path  string          true  "invoice id (uuid)"
// @Param        payload  body  PaymentRequest  true  "Payment"
// @Success      201  {object}  models.ActionResponse
// @Failure      400  {object}  models.ValidationErrorResponse
// @Failure      403  {object}  models.ActionResponse
// @Failure      409  {object}  models.ActionResponse
// @Router       /invoices/{id}/payments [post]
func (h *Handler) AddPayment(c *fiber.Ctx) error {
	actor := auth.MustActor(c)
	id, err := h.guard(c)
	if err != nil {
		return access.Fail(c, listingPath, "Invoice", err)
	}

	var in PaymentRequest
	errs, err := readPayment(c, &in)
	if err != nil {
		return err
	}
	if errs != nil {
		return validation.Respond(c, errs)
	}
	amount := in.Amount

	err = h.flow.Run(c.UserContext(), "record payment", func(u *workflow.Unit) error {
		b, err := lock(u, id)
		if err != nil {
			return err
		}
		if !b.Editable() {
			return workflow.Reject(fmt.Sprintf("A %s invoice does not accept payments", b.Status))
		}
		balance, err := record(u, b, actor, amount, &in.SettleRequest)
		if err != nil {
			return err
		}
		if err := logBilling(u, b, actor, fmt.Sprintf("Payment recorded: %s (balance %s)", money(amount), money(balance))); err != nil {
			return err
		}
		msg := fmt.Sprintf("We received %s. Outstanding balance: %s.", money(amount), money(balance))
		if b.Status == models.BillingPaid {
			msg = fmt.Sprintf("We received %s. Your invoice is now paid in full.", money(amount))
		}
		return notifyClient(u, b, "Payment received", msg)
	})
	if err != nil {
		return workflow.Respond(c, invoicePath(id), err)
	}
	return flash.Success(c, fiber.StatusCreated, invoicePath(id), "Payment recorded successfully", id.String())
}

// Cancel Invoice godoc
// @Summary      Cancel invoice
// @Description  Paid invoices cannot be cancelled. Cancelling twice changes nothing.
// @Tags         invoices
// @Security     BearerAuth
// @Produce      json
// @Param        id  path string true "invoice id (uuid)"
// @Success      200  {object}  models.ActionResponse
// @Failure      403  {object}  models.ActionResponse
// @Failure      409  {object}  models.ActionResponse
// @Router       /invoices/{id}/cancel [post]
func (h *Handler) Cancel(c *fiber.Ctx) error {
	actor := auth.MustActor(c)
	id, err := h.guard(c)
	if err != nil {
		return access.Fail(c, listingPath, "Invoice", err)
	}

	already := false
	err = h.flow.Run(c.UserContext(), "cancel invoice", func(u *workflow.Unit) error {
		b, err := lock(u, id)
		if err != nil {
			return err
		}
		switch b.Status {
		case models.BillingCancelled:
			already = true
			return nil
		case models.BillingPaid:
			return workflow.Reject("A paid invoice cannot be cancelled")
		}

		if err := u.Tx().Model(&models.Billing{}).Where("id = ?", b.ID).
			Update("status", models.BillingCancelled).Error; err != nil {
			return err
		}
		if err := logBilling(u, b, actor, "Invoice cancelled: "+money(b.Amount)); err != nil {
			return err
		}
		return notifyClient(u, b, "Invoice cancelled",
			fmt.Sprintf("The invoice of %s dated %s has been cancelled.", money(b.Amount), b.BillingDate.Format(workflow.SentenceDate)))
	})
	if err != nil {
		return workflow.Respond(c, invoicePath(id), err)
	}
	if already {
		return flash.Info(c, invoicePath(id), "Invoice is already cancelled", id.String())
	}
	return flash.Success(c, fiber.StatusOK, invoicePath(id), "Invoice cancelled", id.String())
}
