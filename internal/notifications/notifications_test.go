package notifications

import (
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/sincere-abayo/advocate-management-system/internal/auth"
	"github.com/sincere-abayo/advocate-management-system/internal/testutil"
	"github.com/sincere-abayo/advocate-management-system/pkg/models"
)

func newTestApp(db *gorm.DB, actor *auth.Actor) *fiber.App {
	h := NewHandler(db)
	app := fiber.New(fiber.Config{ErrorHandler: auth.ErrorHandler})
	app.Use(testutil.InjectActor(actor))

	app.Get("/notifications", h.List)
	app.Get("/notifications/count", h.Count)
	app.Post("/notifications/read-all", h.ReadAll)
	app.Post("/notifications/:id/read", h.MarkRead)
	return app
}

func seed(t *testing.T, db *gorm.DB, userID uuid.UUID, title string, read bool, age time.Duration) models.Notification {
	t.Helper()
	n := models.Notification{
		UserID:    userID,
		Title:     title,
		RelatedTo: models.RelatedCase,
		RelatedID: uuid.New(),
		IsRead:    read,
		CreatedAt: time.Now().Add(-age),
	}
	require.NoError(t, db.Create(&n).Error)
	return n
}

type page struct {
	Items []models.Notification `json:"items"`
	Total int64                 `json:"total"`
}

func TestList_UnreadFirstAndScoped(t *testing.T) {
	db := testutil.OpenDB(t)
	me := testutil.SeedClient(t, db, "Carl Client")
	other := testutil.SeedClient(t, db, "Olive Other")

	seed(t, db, me.UserID, "old read", true, time.Minute)
	seed(t, db, me.UserID, "older unread", false, 2*time.Hour)
	seed(t, db, me.UserID, "new unread", false, time.Second)
	seed(t, db, other.UserID, "not mine", false, 0)
	app := newTestApp(db, me)

	var p page
	resp := testutil.DoJSON(t, app, "GET", "/notifications", nil, &p)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.EqualValues(t, 3, p.Total)
	require.Len(t, p.Items, 3)
	assert.Equal(t, "new unread", p.Items[0].Title)
	assert.Equal(t, "older unread", p.Items[1].Title)
	assert.Equal(t, "old read", p.Items[2].Title)

	p = page{}
	testutil.DoJSON(t, app, "GET", "/notifications?unread=true&pageSize=1", nil, &p)
	assert.EqualValues(t, 2, p.Total)
	assert.Len(t, p.Items, 1)

	var count CountResponse
	testutil.DoJSON(t, app, "GET", "/notifications/count", nil, &count)
	assert.EqualValues(t, 2, count.Unread)
}

func TestMarkRead(t *testing.T) {
	db := testutil.OpenDB(t)
	me := testutil.SeedClient(t, db, "Carl Client")
	other := testutil.SeedClient(t, db, "Olive Other")
	mine := seed(t, db, me.UserID, "mine", false, 0)
	theirs := seed(t, db, other.UserID, "theirs", false, 0)
	app := newTestApp(db, me)

	resp, body := testutil.Do(t, app, "POST", "/notifications/"+mine.ID.String()+"/read", nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, "/cases/"+mine.RelatedID.String(), body["redirect"])
	assert.EqualValues(t, 1, testutil.Count(t, db, &models.Notification{}, "id = ? AND is_read = ?", mine.ID, true))

	// Again is fine.
	resp, _ = testutil.Do(t, app, "POST", "/notifications/"+mine.ID.String()+"/read", nil)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	resp, body = testutil.Do(t, app, "POST", "/notifications/"+theirs.ID.String()+"/read", nil)
	assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)
	assert.Equal(t, "Notification not found or access denied", testutil.FlashMessage(body))
	assert.EqualValues(t, 1, testutil.Count(t, db, &models.Notification{}, "id = ? AND is_read = ?", theirs.ID, false))
}

func TestReadAll_OnlyMine(t *testing.T) {
	db := testutil.OpenDB(t)
	me := testutil.SeedAdvocate(t, db, "Ann Advocate")
	other := testutil.SeedAdvocate(t, db, "Olga Other")
	seed(t, db, me.UserID, "a", false, 0)
	seed(t, db, me.UserID, "b", false, 0)
	seed(t, db, other.UserID, "c", false, 0)

	resp, body := testutil.Do(t, newTestApp(db, me), "POST", "/notifications/read-all", nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, "All notifications marked as read", testutil.FlashMessage(body))

	assert.Zero(t, testutil.Count(t, db, &models.Notification{}, "user_id = ? AND is_read = ?", me.UserID, false))
	assert.EqualValues(t, 1, testutil.Count(t, db, &models.Notification{}, "user_id = ? AND is_read = ?", other.UserID, false))
}

func TestLink(t *testing.T) {
	id := uuid.New()
	assert.Equal(t, "/invoices/"+id.String(), Link(&models.Notification{RelatedTo: models.RelatedBilling, RelatedID: id}))
	assert.Equal(t, "/hearings/"+id.String(), Link(&models.Notification{RelatedTo: models.RelatedHearing, RelatedID: id}))
	assert.Equal(t, "/notifications", Link(&models.Notification{RelatedTo: models.RelatedCase}))
}
