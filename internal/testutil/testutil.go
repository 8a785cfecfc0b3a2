// Package testutil opens throwaway databases and seeds the users, profiles
// and cases that handler tests start from.
package testutil

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/sincere-abayo/advocate-management-system/internal/auth"
	"github.com/sincere-abayo/advocate-management-system/pkg/database"
	"github.com/sincere-abayo/advocate-management-system/pkg/models"
)

// OpenDB returns a migrated SQLite database private to the test.
func OpenDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "sqlite:" + filepath.Join(t.TempDir(), "test.db")
	db, err := database.Open(dsn, "test")
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))
	t.Cleanup(func() { _ = database.Close(db) })
	return db
}

// SeedAdvocate creates an advocate user and profile.
func SeedAdvocate(t *testing.T, db *gorm.DB, name string) *auth.Actor {
	t.Helper()
	u := seedUser(t, db, models.RoleAdvocate, name)
	p := models.AdvocateProfile{UserID: u.ID, LicenseNumber: "LIC-" + u.ID.String()[:8]}
	require.NoError(t, db.Omit("User").Create(&p).Error)
	return &auth.Actor{UserID: u.ID, Role: u.Role, Name: u.FullName, ProfileID: p.ID}
}

// SeedClient creates a client user and profile.
func SeedClient(t *testing.T, db *gorm.DB, name string) *auth.Actor {
	t.Helper()
	u := seedUser(t, db, models.RoleClient, name)
	p := models.ClientProfile{UserID: u.ID}
	require.NoError(t, db.Omit("User").Create(&p).Error)
	return &auth.Actor{UserID: u.ID, Role: u.Role, Name: u.FullName, ProfileID: p.ID}
}

// SeedAdmin creates an administrator.
func SeedAdmin(t *testing.T, db *gorm.DB) *auth.Actor {
	t.Helper()
	u := seedUser(t, db, models.RoleAdmin, "Admin")
	return &auth.Actor{UserID: u.ID, Role: u.Role, Name: u.FullName}
}

func seedUser(t *testing.T, db *gorm.DB, role models.Role, name string) models.User {
	t.Helper()
	u := models.User{
		Email:        string(role) + "_" + uuid.NewString()[:8] + "@example.com",
		PasswordHash: "x",
		Role:         role,
		FullName:     name,
	}
	require.NoError(t, db.Create(&u).Error)
	return u
}

// SeedCase creates a case for client, assigned to the given advocates (the
// first one as primary).
func SeedCase(t *testing.T, db *gorm.DB, client *auth.Actor, advocates ...*auth.Actor) models.Case {
	t.Helper()
	cs := models.Case{
		CaseNumber: "CASE-SEED-" + uuid.NewString()[:8],
		ClientID:   client.ProfileID,
		Title:      "Seeded case",
		CaseType:   "civil",
		Status:     models.CaseActive,
		Priority:   models.PriorityMedium,
	}
	require.NoError(t, db.Omit(clause.Associations).Create(&cs).Error)
	for i, a := range advocates {
		role := models.AssignmentSecondary
		if i == 0 {
			role = models.AssignmentPrimary
		}
		require.NoError(t, db.Omit(clause.Associations).Create(&models.CaseAssignment{
			CaseID: cs.ID, AdvocateID: a.ProfileID, Role: role,
		}).Error)
	}
	return cs
}

// SeedHearing adds a hearing to a case.
func SeedHearing(t *testing.T, db *gorm.DB, caseID uuid.UUID, status models.HearingStatus, outcome string) models.CaseHearing {
	t.Helper()
	h := models.CaseHearing{
		CaseID:      caseID,
		HearingDate: time.Now().UTC().AddDate(0, 0, 7).Truncate(24 * time.Hour),
		HearingTime: "10:00",
		HearingType: "Mention",
		Status:      status,
		Outcome:     outcome,
	}
	require.NoError(t, db.Create(&h).Error)
	return h
}

// InjectActor replaces RequireAuth in handler tests.
func InjectActor(a *auth.Actor) fiber.Handler {
	return func(c *fiber.Ctx) error {
		auth.SetActor(c, a)
		return c.Next()
	}
}

// Count returns the number of rows for model, optionally filtered.
func Count(t *testing.T, db *gorm.DB, model any, where ...any) int64 {
	t.Helper()
	q := db.Model(model)
	if len(where) > 0 {
		q = q.Where(where[0], where[1:]...)
	}
	var n int64
	require.NoError(t, q.Count(&n).Error)
	return n
}

// Do sends a JSON request and decodes the JSON response body.
func Do(t *testing.T, app *fiber.App, method, target string, body any) (*http.Response, map[string]any) {
	t.Helper()
	out := map[string]any{}
	resp := DoJSON(t, app, method, target, body, &out)
	return resp, out
}

// DoJSON sends a JSON request and decodes the response body into out.
func DoJSON(t *testing.T, app *fiber.App, method, target string, body, out any) *http.Response {
	t.Helper()
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		rd = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, target, rd)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := app.Test(req, -1)
	require.NoError(t, err)

	raw, _ := io.ReadAll(resp.Body)
	if len(raw) > 0 && out != nil {
		_ = json.Unmarshal(raw, out)
	}
	return resp
}

// FlashMessage digs flash.message out of an action response.
func FlashMessage(body map[string]any) string {
	f, _ := body["flash"].(map[string]any)
	msg, _ := f["message"].(string)
	return msg
}

// FlashType digs flash.type out of an action response.
func FlashType(body map[string]any) string {
	f, _ := body["flash"].(map[string]any)
	typ, _ := f["type"].(string)
	return typ
}
