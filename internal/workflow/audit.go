package workflow

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/sincere-abayo/advocate-management-system/pkg/models"
)

// Human-readable layouts used in activity and notification text.
const (
	SentenceDate = "January 2, 2006"
	SentenceTime = "3:04 PM"
)

// ActivityLog writes to case_activities. Unlike best-effort logging, an
// insert failure is returned so the surrounding unit rolls back.
type ActivityLog struct{}

func (ActivityLog) Append(tx *gorm.DB, entry *models.CaseActivity) error {
	if strings.TrimSpace(entry.Description) == "" {
		return fmt.Errorf("empty activity description")
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}
	return tx.Create(entry).Error
}

// Activity builds a case activity entry.
func Activity(caseID, actorID uuid.UUID, kind models.ActivityType, description string) *models.CaseActivity {
	return &models.CaseActivity{
		CaseID:       caseID,
		UserID:       actorID,
		ActivityType: kind,
		Description:  description,
	}
}

// FormatWhen renders "March 1, 2025" or "March 1, 2025 at 9:30 AM" when a HH:MM clock is given.
func FormatWhen(date time.Time, clock string) string {
	out := date.Format(SentenceDate)
	if clock == "" {
		return out
	}
	if t, err := time.Parse("15:04", clock); err == nil {
		out += " at " + t.Format(SentenceTime)
	}
	return out
}
