// Package listing holds the pagination and sorting helpers shared by every
// list endpoint. Sort columns come from a fixed allow-list; user input only
// ever picks a key, never an identifier.
package listing

import (
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/sincere-abayo/advocate-management-system/pkg/models"
)

const (
	DefaultPageSize = 10
	MaxPageSize     = 50
)

// ParsePage reads ?page and ?pageSize with the usual defaults.
func ParsePage(c *fiber.Ctx) (page, size int) {
	page, _ = strconv.Atoi(c.Query("page", "1"))
	size, _ = strconv.Atoi(c.Query("pageSize", strconv.Itoa(DefaultPageSize)))
	if page < 1 {
		page = 1
	}
	if size < 1 || size > MaxPageSize {
		size = DefaultPageSize
	}
	return
}

// Paginate applies OFFSET/LIMIT.
func Paginate(page, size int) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		return db.Offset((page - 1) * size).Limit(size)
	}
}

// NewPage assembles the response envelope; items is never null.
func NewPage[T any](page, size int, total int64, items []T) models.Page[T] {
	if items == nil {
		items = []T{}
	}
	return models.Page[T]{
		Page:     page,
		PageSize: size,
		Total:    total,
		Pages:    int(math.Ceil(float64(total) / float64(size))),
		Items:    items,
	}
}

// Sort maps public sort keys to qualified column names.
type Sort struct {
	Columns map[string]string
	Default string
	Desc    bool
}

// Order resolves ?sort and ?order (asc|desc) into an ORDER BY clause.
// Unknown keys fall back to the default column.
func (s Sort) Order(c *fiber.Ctx) clause.OrderByColumn {
	col, ok := s.Columns[strings.TrimSpace(c.Query("sort"))]
	if !ok {
		col = s.Columns[s.Default]
	}
	desc := s.Desc
	switch strings.ToLower(c.Query("order")) {
	case "asc":
		desc = false
	case "desc":
		desc = true
	}
	return clause.OrderByColumn{Column: clause.Column{Name: col, Raw: true}, Desc: desc}
}

// Like escapes a search term for a LIKE pattern.
func Like(term string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + strings.ToLower(r.Replace(term)) + "%"
}

// DateRange parses ?from and ?to (YYYY-MM-DD); bad values are ignored.
// The upper bound is exclusive at the start of the following day.
func DateRange(c *fiber.Ctx) (from, to *time.Time) {
	if t, err := time.Parse("2006-01-02", c.Query("from")); err == nil {
		from = &t
	}
	if t, err := time.Parse("2006-01-02", c.Query("to")); err == nil {
		t = t.AddDate(0, 0, 1)
		to = &t
	}
	return
}
