// Package workflow runs record writes, their audit entries and their
// notifications as one all-or-nothing unit.
package workflow

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/sincere-abayo/advocate-management-system/pkg/models"
)

// State is where a Unit is in its transaction lifecycle.
type State int

const (
	Idle State = iota
	InProgress
	Committed
	RolledBack
)

func (s State) String() string {
	switch s {
	case Idle:
		return "IDLE"
	case InProgress:
		return "IN_PROGRESS"
	case Committed:
		return "COMMITTED"
	case RolledBack:
		return "ROLLED_BACK"
	}
	return "UNKNOWN"
}

// ErrRolledBack matches every *Error through errors.Is.
var ErrRolledBack = errors.New("workflow rolled back")

// Error is what a failed unit returns. Its message is safe to show to users;
// the underlying driver error is only reachable through Unwrap.
type Error struct {
	Op  string
	Err error
}

func (e *Error) Error() string        { return "Failed to " + e.Op }
func (e *Error) Unwrap() error        { return e.Err }
func (e *Error) Is(target error) bool { return target == ErrRolledBack }

// AuditLogger appends case activity rows inside the caller's transaction.
type AuditLogger interface {
	Append(tx *gorm.DB, entry *models.CaseActivity) error
}

// Notifier stores notifications inside the caller's transaction.
type Notifier interface {
	Notify(tx *gorm.DB, n *models.Notification) error
}

// Coordinator opens one transaction per unit of work.
type Coordinator struct {
	db       *gorm.DB
	log      *zap.Logger
	audit    AuditLogger
	notifier Notifier
}

// Option customises a Coordinator.
type Option func(*Coordinator)

// WithAuditLogger replaces the default activity writer.
func WithAuditLogger(a AuditLogger) Option { return func(c *Coordinator) { c.audit = a } }

// WithNotifier replaces the default notification writer.
func WithNotifier(n Notifier) Option { return func(c *Coordinator) { c.notifier = n } }

func New(db *gorm.DB, log *zap.Logger, opts ...Option) *Coordinator {
	if log == nil {
		log = zap.NewNop()
	}
	c := &Coordinator{
		db:       db,
		log:      log.Named("workflow"),
		audit:    ActivityLog{},
		notifier: StoredNotifier{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// DB is the non-transactional handle for reads outside a unit.
func (c *Coordinator) DB() *gorm.DB { return c.db }

// Unit is one in-flight workflow: the Record Writer handle plus the audit
// and notification steps bound to the same transaction.
type Unit struct {
	tx       *gorm.DB
	state    State
	audit    AuditLogger
	notifier Notifier

	activities    int
	notifications int
}

// Tx is the transaction every write of the unit must go through.
func (u *Unit) Tx() *gorm.DB { return u.tx }

// State reports the current lifecycle state.
func (u *Unit) State() State { return u.state }

// Log appends the mandatory audit entry for a state change.
func (u *Unit) Log(entry *models.CaseActivity) error {
	if entry.CaseID == uuid.Nil {
		return errors.New("activity without case")
	}
	if err := u.audit.Append(u.tx, entry); err != nil {
		return fmt.Errorf("audit log: %w", err)
	}
	u.activities++
	return nil
}

// Notify stores a notification for the counterparty. A zero user id is
// skipped so callers can pass an unresolved optional recipient.
func (u *Unit) Notify(n *models.Notification) error {
	if n.UserID == uuid.Nil {
		return nil
	}
	if err := u.notifier.Notify(u.tx, n); err != nil {
		return fmt.Errorf("notify: %w", err)
	}
	u.notifications++
	return nil
}

// Run executes fn inside a transaction: IDLE → IN_PROGRESS → COMMITTED, or
// ROLLED_BACK when fn fails, the commit fails, or fn panics (the panic is
// re-raised after rollback). Nothing is retried here.
func (c *Coordinator) Run(ctx context.Context, op string, fn func(u *Unit) error) (err error) {
	u := &Unit{state: Idle, audit: c.audit, notifier: c.notifier}

	tx := c.db.WithContext(ctx).Begin()
	if tx.Error != nil {
		c.log.Error("begin failed", zap.String("op", op), zap.Error(tx.Error))
		return &Error{Op: op, Err: tx.Error}
	}
	u.tx = tx
	u.state = InProgress

	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
			u.state = RolledBack
			c.log.Error("workflow panicked", zap.String("op", op), zap.Any("panic", r))
			panic(r)
		}
	}()

	if err := fn(u); err != nil {
		tx.Rollback()
		u.state = RolledBack
		c.logFailure(op, err)
		return &Error{Op: op, Err: err}
	}

	if err := tx.Commit().Error; err != nil {
		u.state = RolledBack
		c.logFailure(op, err)
		return &Error{Op: op, Err: err}
	}
	u.state = Committed
	c.log.Debug("workflow committed",
		zap.String("op", op),
		zap.Int("activities", u.activities),
		zap.Int("notifications", u.notifications))
	return nil
}

func (c *Coordinator) logFailure(op string, err error) {
	// Expected outcomes (conflicts, guard rejections) are not operational errors.
	var expected interface{ Expected() bool }
	if errors.As(err, &expected) && expected.Expected() {
		c.log.Info("workflow rejected", zap.String("op", op), zap.Error(err))
		return
	}
	c.log.Error("workflow rolled back", zap.String("op", op), zap.Error(err))
}
