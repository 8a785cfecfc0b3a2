// Package access decides whether an actor may touch a case, hearing or
// invoice. It only reads.
package access

import (
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/sincere-abayo/advocate-management-system/internal/auth"
	"github.com/sincere-abayo/advocate-management-system/pkg/models"
)

// ErrDenied covers both "not yours" and "does not exist" so callers cannot
// probe for other people's records.
var ErrDenied = errors.New("access denied")

// Case loads a case the actor is allowed to see.
func Case(db *gorm.DB, actor *auth.Actor, caseID uuid.UUID) (*models.Case, error) {
	var cs models.Case
	if err := db.First(&cs, "id = ?", caseID).Error; err != nil {
		return nil, deny(err)
	}
	ok, err := canSeeCase(db, actor, &cs)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrDenied
	}
	return &cs, nil
}

// Hearing loads a hearing together with its case.
func Hearing(db *gorm.DB, actor *auth.Actor, hearingID uuid.UUID) (*models.CaseHearing, *models.Case, error) {
	var h models.CaseHearing
	if err := db.First(&h, "id = ?", hearingID).Error; err != nil {
		return nil, nil, deny(err)
	}
	cs, err := Case(db, actor, h.CaseID)
	if err != nil {
		return nil, nil, err
	}
	return &h, cs, nil
}

// Invoice loads an invoice. Advocates reach it through billings.advocate_id
// or an assignment on the linked case; clients through billings.client_id.
func Invoice(db *gorm.DB, actor *auth.Actor, billingID uuid.UUID) (*models.Billing, error) {
	var b models.Billing
	if err := db.First(&b, "id = ?", billingID).Error; err != nil {
		return nil, deny(err)
	}
	switch {
	case actor.IsAdmin():
		return &b, nil
	case actor.IsClient():
		if b.ClientID == actor.ProfileID {
			return &b, nil
		}
	case actor.IsAdvocate():
		if b.AdvocateID != nil && *b.AdvocateID == actor.ProfileID {
			return &b, nil
		}
		if b.CaseID != nil {
			ok, err := Assigned(db, *b.CaseID, actor.ProfileID)
			if err != nil {
				return nil, err
			}
			if ok {
				return &b, nil
			}
		}
	}
	return nil, ErrDenied
}

// Document loads a document through its case.
func Document(db *gorm.DB, actor *auth.Actor, documentID uuid.UUID) (*models.Document, error) {
	var d models.Document
	if err := db.First(&d, "id = ?", documentID).Error; err != nil {
		return nil, deny(err)
	}
	if _, err := Case(db, actor, d.CaseID); err != nil {
		return nil, err
	}
	return &d, nil
}

// Assigned reports whether a case_assignments row exists for the pair.
func Assigned(db *gorm.DB, caseID, advocateID uuid.UUID) (bool, error) {
	var n int64
	err := db.Model(&models.CaseAssignment{}).
		Where("case_id = ? AND advocate_id = ?", caseID, advocateID).
		Count(&n).Error
	return n > 0, err
}

// ScopeCases restricts a cases query to what the actor may list.
func ScopeCases(actor *auth.Actor) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		switch {
		case actor.IsAdmin():
			return db
		case actor.IsClient():
			return db.Where("cases.client_id = ?", actor.ProfileID)
		default:
			return db.Where("cases.id IN (?)",
				db.Session(&gorm.Session{NewDB: true}).
					Model(&models.CaseAssignment{}).
					Select("case_id").
					Where("advocate_id = ?", actor.ProfileID))
		}
	}
}

// ScopeInvoices restricts a billings query to what the actor may list.
func ScopeInvoices(actor *auth.Actor) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		switch {
		case actor.IsAdmin():
			return db
		case actor.IsClient():
			return db.Where("billings.client_id = ?", actor.ProfileID)
		default:
			assigned := db.Session(&gorm.Session{NewDB: true}).
				Model(&models.CaseAssignment{}).
				Select("case_id").
				Where("advocate_id = ?", actor.ProfileID)
			return db.Where("billings.advocate_id = ? OR billings.case_id IN (?)", actor.ProfileID, assigned)
		}
	}
}

func canSeeCase(db *gorm.DB, actor *auth.Actor, cs *models.Case) (bool, error) {
	switch {
	case actor.IsAdmin():
		return true, nil
	case actor.IsClient():
		return cs.ClientID == actor.ProfileID, nil
	case actor.IsAdvocate():
		return Assigned(db, cs.ID, actor.ProfileID)
	}
	return false, nil
}

func deny(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrDenied
	}
	return err
}
