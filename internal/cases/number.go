package cases

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/sincere-abayo/advocate-management-system/pkg/models"
)

// NumberFunc derives the next case number inside the creating transaction.
type NumberFunc func(tx *gorm.DB, now time.Time) (string, error)

// NumberPrefix is "CASE-{YYYY}{MM}-" for the month of t.
func NumberPrefix(t time.Time) string {
	return fmt.Sprintf("CASE-%04d%02d-", t.Year(), int(t.Month()))
}

// NextCaseNumber scans the numbers already issued this month and returns
// max+1, zero-padded to four digits. The unique index on case_number makes
// a concurrent duplicate fail on insert, which the caller retries.
func NextCaseNumber(tx *gorm.DB, now time.Time) (string, error) {
	prefix := NumberPrefix(now)

	var numbers []string
	if err := tx.Model(&models.Case{}).
		Where("case_number LIKE ?", prefix+"%").
		Pluck("case_number", &numbers).Error; err != nil {
		return "", err
	}

	// Compared numerically: past 9999 the width grows and a string max would be wrong.
	highest := 0
	for _, n := range numbers {
		seq, err := strconv.Atoi(strings.TrimPrefix(n, prefix))
		if err != nil {
			continue
		}
		if seq > highest {
			highest = seq
		}
	}
	return fmt.Sprintf("%s%04d", prefix, highest+1), nil
}
