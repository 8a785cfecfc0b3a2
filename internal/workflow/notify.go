package workflow

import (
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/sincere-abayo/advocate-management-system/pkg/models"
)

// StoredNotifier persists notifications in the notifications table.
type StoredNotifier struct{}

func (StoredNotifier) Notify(tx *gorm.DB, n *models.Notification) error {
	n.IsRead = false
	return tx.Create(n).Error
}

// Notification builds a notification for one user.
func Notification(userID uuid.UUID, title, message string, related models.RelatedTo, relatedID uuid.UUID) *models.Notification {
	return &models.Notification{
		UserID:    userID,
		Title:     title,
		Message:   message,
		RelatedTo: related,
		RelatedID: relatedID,
	}
}

// ClientUserID resolves the user behind a case's client (Case → ClientProfile → User).
func ClientUserID(tx *gorm.DB, caseID uuid.UUID) (uuid.UUID, error) {
	var ids []uuid.UUID
	err := tx.Table("cases").
		Joins("JOIN client_profiles ON client_profiles.id = cases.client_id").
		Where("cases.id = ?", caseID).
		Limit(1).
		Pluck("client_profiles.user_id", &ids).Error
	if err != nil {
		return uuid.Nil, err
	}
	if len(ids) == 0 {
		return uuid.Nil, gorm.ErrRecordNotFound
	}
	return ids[0], nil
}

// ClientProfileUserID resolves the user of a client profile.
func ClientProfileUserID(tx *gorm.DB, clientID uuid.UUID) (uuid.UUID, error) {
	var p models.ClientProfile
	err := tx.Select("user_id").Take(&p, "id = ?", clientID).Error
	return p.UserID, err
}

// AdvocateUserID resolves the user of an advocate profile.
func AdvocateUserID(tx *gorm.DB, advocateID uuid.UUID) (uuid.UUID, error) {
	var p models.AdvocateProfile
	err := tx.Select("user_id").Take(&p, "id = ?", advocateID).Error
	return p.UserID, err
}

// AdvocateUserIDs lists the users of every advocate assigned to a case.
func AdvocateUserIDs(tx *gorm.DB, caseID uuid.UUID) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := tx.Table("case_assignments").
		Joins("JOIN advocate_profiles ON advocate_profiles.id = case_assignments.advocate_id").
		Where("case_assignments.case_id = ?", caseID).
		Pluck("advocate_profiles.user_id", &ids).Error
	return ids, err
}
