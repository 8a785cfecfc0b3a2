package models

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

/* =============================== Enums ================================== */

// Role defines the type of user in the system.
type Role string

const (
	RoleAdvocate Role = "advocate"
	RoleClient   Role = "client"
	RoleAdmin    Role = "admin"
)

// CaseStatus defines lifecycle states for a case.
type CaseStatus string

const (
	CasePending CaseStatus = "pending"
	CaseActive  CaseStatus = "active"
	CaseClosed  CaseStatus = "closed"
	CaseWon     CaseStatus = "won"
	CaseLost    CaseStatus = "lost"
	CaseSettled CaseStatus = "settled"
)

// CasePriority ranks how urgently a case needs attention.
type CasePriority string

const (
	PriorityLow    CasePriority = "low"
	PriorityMedium CasePriority = "medium"
	PriorityHigh   CasePriority = "high"
)

// AssignmentRole is the role an advocate plays on a case.
type AssignmentRole string

const (
	AssignmentPrimary   AssignmentRole = "primary"
	AssignmentSecondary AssignmentRole = "secondary"
)

// ActivityType classifies case activity entries.
type ActivityType string

const (
	ActivityUpdate              ActivityType = "update"
	ActivityDocument            ActivityType = "document"
	ActivityHearing             ActivityType = "hearing"
	ActivityNote                ActivityType = "note"
	ActivityStatusChange        ActivityType = "status_change"
	ActivityClientCommunication ActivityType = "client_communication"
	ActivityCourtFiling         ActivityType = "court_filing"
	ActivityResearch            ActivityType = "research"
	ActivitySettlement          ActivityType = "settlement"
	ActivityBilling             ActivityType = "billing"
	ActivityOther               ActivityType = "other"
)

// HearingStatus defines lifecycle states for a court hearing.
type HearingStatus string

const (
	HearingScheduled HearingStatus = "scheduled"
	HearingCompleted HearingStatus = "completed"
	HearingCancelled HearingStatus = "cancelled"
	HearingPostponed HearingStatus = "postponed"
)

// BillingStatus defines lifecycle states for an invoice.
type BillingStatus string

const (
	BillingPending   BillingStatus = "pending"
	BillingPaid      BillingStatus = "paid"
	BillingOverdue   BillingStatus = "overdue"
	BillingCancelled BillingStatus = "cancelled"
)

// PaymentMethod is how a client settled (part of) an invoice.
type PaymentMethod string

const (
	PayCash         PaymentMethod = "cash"
	PayBankTransfer PaymentMethod = "bank_transfer"
	PayMobileMoney  PaymentMethod = "mobile_money"
	PayCheque       PaymentMethod = "cheque"
	PayCard         PaymentMethod = "card"
	PayOther        PaymentMethod = "other"
)

// RelatedTo is the kind of record a notification points at.
type RelatedTo string

const (
	RelatedCase     RelatedTo = "case"
	RelatedHearing  RelatedTo = "hearing"
	RelatedBilling  RelatedTo = "billing"
	RelatedDocument RelatedTo = "document"
)

// ErrImmutableActivity is returned by the hooks guarding case_activities.
var ErrImmutableActivity = errors.New("case activities are append-only")

/* =============================== Entities =============================== */

// User represents an advocate, a client or an administrator.
type User struct {
	ID           uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Email        string    `gorm:"uniqueIndex;not null" json:"email"`
	PasswordHash string    `gorm:"not null" json:"-"`
	Role         Role      `gorm:"type:varchar(20);not null" json:"role"`
	FullName     string    `gorm:"not null" json:"full_name"`
	Phone        string    `json:"phone"`
	Address      string    `json:"address"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// AdvocateProfile extends a user with advocate-only fields.
type AdvocateProfile struct {
	ID             uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	UserID         uuid.UUID `gorm:"type:uuid;not null;uniqueIndex" json:"user_id"`
	LicenseNumber  string    `gorm:"not null" json:"license_number"`
	Specialization string    `json:"specialization"`
	YearsOfExp     int       `json:"years_of_experience"`
	CreatedAt      time.Time `json:"created_at"`

	User User `gorm:"foreignKey:UserID" json:"user"`
}

// ClientProfile extends a user with client-only fields.
type ClientProfile struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	UserID     uuid.UUID `gorm:"type:uuid;not null;uniqueIndex" json:"user_id"`
	Occupation string    `json:"occupation"`
	CreatedAt  time.Time `json:"created_at"`

	User User `gorm:"foreignKey:UserID" json:"user"`
}

// Case is the root aggregate: hearings, activities and documents hang off it.
type Case struct {
	ID          uuid.UUID    `gorm:"type:uuid;primaryKey" json:"id"`
	CaseNumber  string       `gorm:"type:varchar(32);not null;uniqueIndex" json:"case_number"`
	ClientID    uuid.UUID    `gorm:"type:uuid;not null;index" json:"client_id"`
	Title       string       `gorm:"not null" json:"title"`
	Description string       `gorm:"type:text" json:"description"`
	CaseType    string       `gorm:"type:varchar(60);not null" json:"case_type"`
	Court       string       `json:"court"`
	FilingDate  *time.Time   `json:"filing_date"`
	HearingDate *time.Time   `json:"hearing_date"`
	Status      CaseStatus   `gorm:"type:varchar(20);not null;default:'pending'" json:"status"`
	Priority    CasePriority `gorm:"type:varchar(20);not null;default:'medium'" json:"priority"`
	CreatedBy   uuid.UUID    `gorm:"type:uuid" json:"created_by"`
	CreatedAt   time.Time    `json:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at"`

	// Relations
	Client      ClientProfile    `gorm:"foreignKey:ClientID" json:"client"`
	Assignments []CaseAssignment `json:"assignments,omitempty"`
	Hearings    []CaseHearing    `json:"hearings,omitempty"`
	Documents   []Document       `json:"documents,omitempty"`
}

// CaseAssignment binds an advocate to a case.
type CaseAssignment struct {
	ID         uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	CaseID     uuid.UUID      `gorm:"type:uuid;not null;uniqueIndex:ux_case_advocate" json:"case_id"`
	AdvocateID uuid.UUID      `gorm:"type:uuid;not null;uniqueIndex:ux_case_advocate" json:"advocate_id"`
	Role       AssignmentRole `gorm:"type:varchar(20);not null;default:'primary'" json:"role"`
	AssignedAt time.Time      `json:"assigned_at"`

	Advocate AdvocateProfile `gorm:"foreignKey:AdvocateID" json:"advocate"`
}

// CaseActivity is an append-only audit entry scoped to a case.
type CaseActivity struct {
	ID           uuid.UUID    `gorm:"type:uuid;primaryKey" json:"id"`
	CaseID       uuid.UUID    `gorm:"type:uuid;not null;index" json:"case_id"`
	UserID       uuid.UUID    `gorm:"type:uuid;not null;index" json:"user_id"`
	ActivityType ActivityType `gorm:"type:varchar(30);not null" json:"activity_type"`
	Description  string       `gorm:"type:text;not null" json:"description"`
	CreatedAt    time.Time    `gorm:"autoCreateTime" json:"created_at"`
}

// CaseHearing is a court appearance scheduled for a case.
type CaseHearing struct {
	ID          uuid.UUID     `gorm:"type:uuid;primaryKey" json:"id"`
	CaseID      uuid.UUID     `gorm:"type:uuid;not null;index" json:"case_id"`
	HearingDate time.Time     `gorm:"not null;index" json:"hearing_date"`
	HearingTime string        `gorm:"type:varchar(5)" json:"hearing_time"`
	HearingType string        `gorm:"not null" json:"hearing_type"`
	CourtRoom   string        `json:"court_room"`
	Judge       string        `json:"judge"`
	Description string        `gorm:"type:text" json:"description"`
	Outcome     string        `gorm:"type:text" json:"outcome"`
	NextSteps   string        `gorm:"type:text" json:"next_steps"`
	Status      HearingStatus `gorm:"type:varchar(20);not null;default:'scheduled'" json:"status"`
	CreatedBy   uuid.UUID     `gorm:"type:uuid" json:"created_by"`
	CreatedAt   time.Time     `json:"created_at"`
	UpdatedAt   time.Time     `json:"updated_at"`
}

// Document is file metadata attached to a case.
type Document struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	CaseID      uuid.UUID `gorm:"type:uuid;not null;index" json:"case_id"`
	Title       string    `gorm:"not null" json:"title"`
	Description string    `gorm:"type:text" json:"description"`
	FileKey     string    `gorm:"not null" json:"-"`
	FileName    string    `json:"file_name"`
	FileType    string    `json:"file_type"`
	FileSize    int64     `json:"file_size"`
	UploadedBy  uuid.UUID `gorm:"type:uuid;not null" json:"uploaded_by"`
	CreatedAt   time.Time `json:"created_at"`
}

// Billing is an invoice issued to a client.
type Billing struct {
	ID            uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	ClientID      uuid.UUID       `gorm:"type:uuid;not null;index" json:"client_id"`
	CaseID        *uuid.UUID      `gorm:"type:uuid;index" json:"case_id"`
	AdvocateID    *uuid.UUID      `gorm:"type:uuid;index" json:"advocate_id"`
	Amount        decimal.Decimal `gorm:"type:decimal(24,4);not null" json:"amount"`
	Description   string          `gorm:"type:text" json:"description"`
	BillingDate   time.Time       `gorm:"not null" json:"billing_date"`
	DueDate       time.Time       `gorm:"not null" json:"due_date"`
	Status        BillingStatus   `gorm:"type:varchar(20);not null;default:'pending'" json:"status"`
	PaymentMethod PaymentMethod   `gorm:"type:varchar(20)" json:"payment_method"`
	PaymentDate   *time.Time      `json:"payment_date"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`

	Client   ClientProfile `gorm:"foreignKey:ClientID" json:"client"`
	Items    []BillingItem `json:"items,omitempty"`
	Payments []Payment     `json:"payments,omitempty"`
}

// BillingItem is a line on an invoice.
type BillingItem struct {
	ID          uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	BillingID   uuid.UUID       `gorm:"type:uuid;not null;index" json:"billing_id"`
	Description string          `gorm:"not null" json:"description"`
	Quantity    decimal.Decimal `gorm:"type:decimal(10,2);not null" json:"quantity"`
	Rate        decimal.Decimal `gorm:"type:decimal(14,2);not null" json:"rate"`
	Amount      decimal.Decimal `gorm:"type:decimal(24,4);not null" json:"amount"`
}

// Payment records money actually received against an invoice.
type Payment struct {
	ID            uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	BillingID     uuid.UUID       `gorm:"type:uuid;not null;index" json:"billing_id"`
	Amount        decimal.Decimal `gorm:"type:decimal(24,4);not null" json:"amount"`
	PaymentMethod PaymentMethod   `gorm:"type:varchar(20);not null" json:"payment_method"`
	PaymentDate   time.Time       `gorm:"not null" json:"payment_date"`
	Reference     string          `json:"reference"`
	Notes         string          `gorm:"type:text" json:"notes"`
	RecordedBy    uuid.UUID       `gorm:"type:uuid" json:"recorded_by"`
	CreatedAt     time.Time       `json:"created_at"`
}

// Notification is addressed to one user and points at a related record.
type Notification struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	UserID    uuid.UUID `gorm:"type:uuid;not null;index" json:"user_id"`
	Title     string    `gorm:"not null" json:"title"`
	Message   string    `gorm:"type:text" json:"message"`
	RelatedTo RelatedTo `gorm:"type:varchar(20)" json:"related_to"`
	RelatedID uuid.UUID `gorm:"type:uuid" json:"related_id"`
	IsRead    bool      `gorm:"not null;default:false;index" json:"is_read"`
	CreatedAt time.Time `json:"created_at"`
}

/* ================================ Hooks ================================= */

func newIDIfNil(id *uuid.UUID) {
	if *id == uuid.Nil {
		*id = uuid.New()
	}
}

func (u *User) BeforeCreate(tx *gorm.DB) error            { newIDIfNil(&u.ID); return nil }
func (p *AdvocateProfile) BeforeCreate(tx *gorm.DB) error { newIDIfNil(&p.ID); return nil }
func (p *ClientProfile) BeforeCreate(tx *gorm.DB) error   { newIDIfNil(&p.ID); return nil }
func (c *Case) BeforeCreate(tx *gorm.DB) error            { newIDIfNil(&c.ID); return nil }
func (h *CaseHearing) BeforeCreate(tx *gorm.DB) error     { newIDIfNil(&h.ID); return nil }
func (d *Document) BeforeCreate(tx *gorm.DB) error        { newIDIfNil(&d.ID); return nil }
func (b *Billing) BeforeCreate(tx *gorm.DB) error         { newIDIfNil(&b.ID); return nil }
func (i *BillingItem) BeforeCreate(tx *gorm.DB) error     { newIDIfNil(&i.ID); return nil }
func (p *Payment) BeforeCreate(tx *gorm.DB) error         { newIDIfNil(&p.ID); return nil }
func (n *Notification) BeforeCreate(tx *gorm.DB) error    { newIDIfNil(&n.ID); return nil }

func (a *CaseAssignment) BeforeCreate(tx *gorm.DB) error {
	newIDIfNil(&a.ID)
	if a.AssignedAt.IsZero() {
		a.AssignedAt = time.Now()
	}
	return nil
}

// BeforeCreate assigns the primary key.
func (a *CaseActivity) BeforeCreate(tx *gorm.DB) error {
	newIDIfNil(&a.ID)
	return nil
}

// BeforeUpdate keeps activity rows immutable.
func (a *CaseActivity) BeforeUpdate(tx *gorm.DB) error { return ErrImmutableActivity }

// BeforeDelete keeps activity rows immutable.
func (a *CaseActivity) BeforeDelete(tx *gorm.DB) error { return ErrImmutableActivity }

/* =============================== Helpers ================================ */

// All lists every model in migration order.
func All() []any {
	return []any{
		&User{}, &AdvocateProfile{}, &ClientProfile{},
		&Case{}, &CaseAssignment{}, &CaseActivity{}, &CaseHearing{}, &Document{},
		&Billing{}, &BillingItem{}, &Payment{}, &Notification{},
	}
}

// Compute sets Amount to Quantity × Rate. Both factors carry at most two
// decimal places, so the product fits the four-place amount column exactly.
func (i *BillingItem) Compute() {
	i.Amount = i.Quantity.Mul(i.Rate)
}

// SumItems totals the item amounts.
func SumItems(items []BillingItem) decimal.Decimal {
	total := decimal.Zero
	for _, it := range items {
		total = total.Add(it.Amount)
	}
	return total
}

// SumPayments totals the payment amounts.
func SumPayments(payments []Payment) decimal.Decimal {
	total := decimal.Zero
	for _, p := range payments {
		total = total.Add(p.Amount)
	}
	return total
}

// BalanceDue is the invoice amount minus everything already paid.
func (b *Billing) BalanceDue(payments []Payment) decimal.Decimal {
	return b.Amount.Sub(SumPayments(payments))
}

// IsOverdue reports a pending invoice whose due date has passed.
func (b *Billing) IsOverdue(now time.Time) bool {
	if b.Status == BillingOverdue {
		return true
	}
	if b.Status != BillingPending {
		return false
	}
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	return b.DueDate.Before(today)
}

// Editable reports whether the invoice can still change.
func (b *Billing) Editable() bool {
	return b.Status == BillingPending || b.Status == BillingOverdue
}

// IsValidCaseStatus checks membership in the case status enum.
func IsValidCaseStatus(s string) bool {
	switch CaseStatus(s) {
	case CasePending, CaseActive, CaseClosed, CaseWon, CaseLost, CaseSettled:
		return true
	}
	return false
}
