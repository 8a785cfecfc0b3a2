package validation

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type hearingForm struct {
	HearingDate string `json:"hearing_date" validate:"required,date"`
	HearingTime string `json:"hearing_time" validate:"omitempty,clock"`
	Status      string `json:"status" validate:"required,oneof=scheduled completed cancelled postponed"`
	Outcome     string `json:"outcome" validate:"required_if=Status completed"`
}

type itemForm struct {
	Quantity decimal.Decimal `json:"quantity" validate:"gt=0"`
	Rate     decimal.Decimal `json:"rate" validate:"gt=0"`
}

func TestValidate_Valid(t *testing.T) {
	errs, err := Validate(hearingForm{HearingDate: "2025-03-01", HearingTime: "09:30", Status: "scheduled"})
	require.NoError(t, err)
	assert.Nil(t, errs)
}

func TestValidate_OutcomeRequiredWhenCompleted(t *testing.T) {
	errs, err := Validate(hearingForm{HearingDate: "2025-03-01", Status: "completed"})
	require.NoError(t, err)
	assert.Equal(t, []string{"This field is required"}, errs["outcome"])

	errs, _ = Validate(hearingForm{HearingDate: "2025-03-01", Status: "completed", Outcome: "Adjourned"})
	assert.Nil(t, errs)
}

func TestValidate_FormatsAndEnums(t *testing.T) {
	errs, err := Validate(hearingForm{HearingDate: "01/03/2025", HearingTime: "25:00", Status: "done"})
	require.NoError(t, err)
	assert.Contains(t, errs["hearing_date"], "Invalid date (use YYYY-MM-DD)")
	assert.Contains(t, errs["hearing_time"], "Invalid time (use HH:MM)")
	assert.Contains(t, errs["status"], "Value is not allowed")
}

func TestValidate_DecimalPositivity(t *testing.T) {
	errs, err := Validate(itemForm{Quantity: decimal.NewFromInt(0), Rate: decimal.RequireFromString("-5")})
	require.NoError(t, err)
	assert.Equal(t, []string{"Must be greater than 0"}, errs["quantity"])
	assert.Equal(t, []string{"Must be greater than 0"}, errs["rate"])

	errs, _ = Validate(itemForm{Quantity: decimal.RequireFromString("1.5"), Rate: decimal.NewFromInt(100)})
	assert.Nil(t, errs)
}

func TestDateOrder(t *testing.T) {
	errs := DateOrder(nil, "billing_date", "2025-03-10", "due_date", "2025-03-01")
	assert.Equal(t, []string{"Must be on or after billing_date"}, errs["due_date"])

	assert.Nil(t, DateOrder(nil, "billing_date", "2025-03-10", "due_date", "2025-03-10"))
	assert.Nil(t, DateOrder(nil, "billing_date", "bad", "due_date", "2025-03-01"))
}

func TestCents(t *testing.T) {
	assert.Nil(t, Cents(nil, "rate", decimal.RequireFromString("0.33")))
	assert.Nil(t, Cents(nil, "rate", decimal.RequireFromString("12.500")))

	errs := Cents(nil, "items[0].rate", decimal.RequireFromString("0.333"))
	assert.Equal(t, []string{"Must have at most 2 decimal places"}, errs["items[0].rate"])
	assert.Contains(t, Cents(nil, "amount", decimal.RequireFromString("0.004")), "amount")
}
