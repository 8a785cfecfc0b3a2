package cases

import (
	"errors"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/sincere-abayo/advocate-management-system/internal/auth"
	"github.com/sincere-abayo/advocate-management-system/internal/testutil"
	"github.com/sincere-abayo/advocate-management-system/internal/workflow"
	"github.com/sincere-abayo/advocate-management-system/pkg/models"
)

/* ============================================================================
   Helpers
   ============================================================================ */

var march2025 = time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)

// newTestApp registers the case routes behind an injected actor.
func newTestApp(h *Handler, actor *auth.Actor) *fiber.App {
	app := fiber.New(fiber.Config{ErrorHandler: auth.ErrorHandler})
	app.Use(testutil.InjectActor(actor))

	app.Post("/cases", h.Create)
	app.Get("/cases", h.List)
	app.Get("/cases/:id", h.Detail)
	app.Put("/cases/:id", h.Update)
	app.Post("/cases/:id/activities", h.AddActivity)
	app.Get("/cases/:id/activities", h.ListActivities)
	app.Post("/cases/:id/assignments", h.Assign)
	app.Post("/cases/:id/documents", h.AddDocument)
	app.Get("/documents/:id/url", h.DocumentURL)
	return app
}

func newHandler(db *gorm.DB, opts ...workflow.Option) *Handler {
	h := NewHandler(workflow.New(db, nil, opts...), nil, time.Minute, 5)
	h.now = func() time.Time { return march2025 }
	return h
}

func caseBody(client *auth.Actor, title string) fiber.Map {
	return fiber.Map{
		"client_id":   client.ProfileID.String(),
		"title":       title,
		"case_type":   "civil",
		"court":       "High Court",
		"filing_date": "2025-03-01",
		"status":      "active",
		"priority":    "high",
	}
}

type failingNotifier struct{}

func (failingNotifier) Notify(*gorm.DB, *models.Notification) error {
	return errors.New("notifications table unavailable")
}

/* ============================================================================
   Create
   ============================================================================ */

func TestCreate_SequentialNumbersAndSideEffects(t *testing.T) {
	db := testutil.OpenDB(t)
	adv := testutil.SeedAdvocate(t, db, "Ann Advocate")
	cli := testutil.SeedClient(t, db, "Carl Client")
	app := newTestApp(newHandler(db), adv)

	want := []string{"CASE-202503-0001", "CASE-202503-0002", "CASE-202503-0003"}
	for i, number := range want {
		resp, body := testutil.Do(t, app, "POST", "/cases", caseBody(cli, "Land dispute"))
		require.Equal(t, fiber.StatusCreated, resp.StatusCode, "case %d", i)
		assert.Equal(t, "Case created successfully", testutil.FlashMessage(body))

		var cs models.Case
		require.NoError(t, db.First(&cs, "id = ?", body["id"]).Error)
		assert.Equal(t, number, cs.CaseNumber)
		assert.Equal(t, "/cases/"+cs.ID.String(), body["redirect"])
		assert.Equal(t, models.CaseActive, cs.Status)
		assert.Equal(t, adv.UserID, cs.CreatedBy)

		assert.EqualValues(t, 1, testutil.Count(t, db, &models.CaseAssignment{},
			"case_id = ? AND advocate_id = ? AND role = ?", cs.ID, adv.ProfileID, models.AssignmentPrimary))
		assert.EqualValues(t, 1, testutil.Count(t, db, &models.CaseActivity{},
			"case_id = ? AND description = ?", cs.ID, "Case created: Land dispute"))
		assert.EqualValues(t, 1, testutil.Count(t, db, &models.Notification{},
			"user_id = ? AND related_id = ? AND title = ?", cli.UserID, cs.ID, "New case created"))
	}
}

func TestCreate_ValidationErrorsWriteNothing(t *testing.T) {
	db := testutil.OpenDB(t)
	adv := testutil.SeedAdvocate(t, db, "Ann Advocate")
	cli := testutil.SeedClient(t, db, "Carl Client")
	app := newTestApp(newHandler(db), adv)

	body := caseBody(cli, "<b></b>")
	body["filing_date"] = "2025-03-10"
	body["hearing_date"] = "2025-03-01"
	body["priority"] = "urgent"

	resp, out := testutil.Do(t, app, "POST", "/cases", body)
	require.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

	errs, _ := out["errors"].(map[string]any)
	assert.Contains(t, errs, "title")
	assert.Contains(t, errs, "hearing_date")
	assert.Contains(t, errs, "priority")
	assert.Zero(t, testutil.Count(t, db, &models.Case{}))
}

func TestCreate_UnknownClient(t *testing.T) {
	db := testutil.OpenDB(t)
	adv := testutil.SeedAdvocate(t, db, "Ann Advocate")
	app := newTestApp(newHandler(db), adv)

	ghost := &auth.Actor{ProfileID: adv.UserID}
	resp, out := testutil.Do(t, app, "POST", "/cases", caseBody(ghost, "Ghost"))
	require.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	errs, _ := out["errors"].(map[string]any)
	assert.Contains(t, errs, "client_id")
}

func TestCreate_RetriesWhenNumberTaken(t *testing.T) {
	db := testutil.OpenDB(t)
	adv := testutil.SeedAdvocate(t, db, "Ann Advocate")
	cli := testutil.SeedClient(t, db, "Carl Client")
	seeded := testutil.SeedCase(t, db, cli, adv)
	require.NoError(t, db.Model(&models.Case{}).Where("id = ?", seeded.ID).
		Update("case_number", "CASE-202503-0001").Error)

	// First attempt reads a stale sequence, as a concurrent creator would.
	h := newHandler(db)
	calls := 0
	h.numbers = func(tx *gorm.DB, now time.Time) (string, error) {
		calls++
		if calls == 1 {
			return "CASE-202503-0001", nil
		}
		return NextCaseNumber(tx, now)
	}
	app := newTestApp(h, adv)

	resp, body := testutil.Do(t, app, "POST", "/cases", caseBody(cli, "Second"))
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)
	assert.Equal(t, 2, calls)

	var cs models.Case
	require.NoError(t, db.First(&cs, "id = ?", body["id"]).Error)
	assert.Equal(t, "CASE-202503-0002", cs.CaseNumber)
	// Only the committed attempt left an audit entry.
	assert.EqualValues(t, 1, testutil.Count(t, db, &models.CaseActivity{}))
}

func TestCreate_GivesUpAfterRetries(t *testing.T) {
	db := testutil.OpenDB(t)
	adv := testutil.SeedAdvocate(t, db, "Ann Advocate")
	cli := testutil.SeedClient(t, db, "Carl Client")
	seeded := testutil.SeedCase(t, db, cli, adv)

	h := newHandler(db)
	calls := 0
	h.numbers = func(*gorm.DB, time.Time) (string, error) {
		calls++
		return seeded.CaseNumber, nil
	}
	app := newTestApp(h, adv)

	resp, body := testutil.Do(t, app, "POST", "/cases", caseBody(cli, "Never"))
	require.Equal(t, fiber.StatusInternalServerError, resp.StatusCode)
	assert.Equal(t, "Failed to create case", testutil.FlashMessage(body))
	assert.Equal(t, 5, calls)
	assert.EqualValues(t, 1, testutil.Count(t, db, &models.Case{}))
}

func TestCreate_RollsBackWhenNotificationFails(t *testing.T) {
	db := testutil.OpenDB(t)
	adv := testutil.SeedAdvocate(t, db, "Ann Advocate")
	cli := testutil.SeedClient(t, db, "Carl Client")
	app := newTestApp(newHandler(db, workflow.WithNotifier(failingNotifier{})), adv)

	resp, body := testutil.Do(t, app, "POST", "/cases", caseBody(cli, "Doomed"))
	require.Equal(t, fiber.StatusInternalServerError, resp.StatusCode)
	assert.Equal(t, "Failed to create case", testutil.FlashMessage(body))
	assert.NotContains(t, testutil.FlashMessage(body), "unavailable")

	assert.Zero(t, testutil.Count(t, db, &models.Case{}))
	assert.Zero(t, testutil.Count(t, db, &models.CaseAssignment{}))
	assert.Zero(t, testutil.Count(t, db, &models.CaseActivity{}))
}

func TestNextCaseNumber_ComparesNumerically(t *testing.T) {
	db := testutil.OpenDB(t)
	adv := testutil.SeedAdvocate(t, db, "Ann Advocate")
	cli := testutil.SeedClient(t, db, "Carl Client")

	for _, n := range []string{"CASE-202503-0009", "CASE-202503-10000", "CASE-202503-0010", "CASE-202502-0500"} {
		cs := testutil.SeedCase(t, db, cli, adv)
		require.NoError(t, db.Model(&models.Case{}).Where("id = ?", cs.ID).Update("case_number", n).Error)
	}

	next, err := NextCaseNumber(db, march2025)
	require.NoError(t, err)
	assert.Equal(t, "CASE-202503-10001", next)

	next, err = NextCaseNumber(db, time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, "CASE-202504-0001", next)
}

/* ============================================================================
   Access control
   ============================================================================ */

func TestUnassignedAdvocateIsTurnedAway(t *testing.T) {
	db := testutil.OpenDB(t)
	owner := testutil.SeedAdvocate(t, db, "Ann Advocate")
	stranger := testutil.SeedAdvocate(t, db, "Sam Stranger")
	cli := testutil.SeedClient(t, db, "Carl Client")
	cs := testutil.SeedCase(t, db, cli, owner)
	app := newTestApp(newHandler(db), stranger)

	path := "/cases/" + cs.ID.String()
	calls := []struct {
		method, target string
		body           any
	}{
		{"GET", path, nil},
		{"PUT", path, caseBody(cli, "Hijacked")},
		{"GET", path + "/activities", nil},
		{"POST", path + "/activities", fiber.Map{"activity_type": "note", "description": "sneaky"}},
		{"POST", path + "/assignments", fiber.Map{"advocate_id": stranger.ProfileID.String()}},
		{"POST", path + "/documents", fiber.Map{"title": "x", "file_key": "cases/" + cs.ID.String() + "/x.pdf", "file_name": "x.pdf"}},
	}
	for _, call := range calls {
		resp, body := testutil.Do(t, app, call.method, call.target, call.body)
		assert.Equal(t, fiber.StatusForbidden, resp.StatusCode, "%s %s", call.method, call.target)
		assert.Equal(t, "/cases", body["redirect"])
		assert.Equal(t, "error", testutil.FlashType(body))
		assert.NotContains(t, body, "case_number")
	}

	var got models.Case
	require.NoError(t, db.First(&got, "id = ?", cs.ID).Error)
	assert.Equal(t, "Seeded case", got.Title)
	assert.Zero(t, testutil.Count(t, db, &models.CaseActivity{}))
	assert.Zero(t, testutil.Count(t, db, &models.Notification{}))
	assert.EqualValues(t, 1, testutil.Count(t, db, &models.CaseAssignment{}))
}

func TestMissingCaseLooksLikeDenied(t *testing.T) {
	db := testutil.OpenDB(t)
	adv := testutil.SeedAdvocate(t, db, "Ann Advocate")
	app := newTestApp(newHandler(db), adv)

	for _, target := range []string{"/cases/not-a-uuid", "/cases/" + adv.UserID.String()} {
		resp, body := testutil.Do(t, app, "GET", target, nil)
		assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)
		assert.Equal(t, "Case not found or access denied", testutil.FlashMessage(body))
	}
}

func TestClientSeesOwnCaseOnly(t *testing.T) {
	db := testutil.OpenDB(t)
	adv := testutil.SeedAdvocate(t, db, "Ann Advocate")
	mine := testutil.SeedClient(t, db, "Carl Client")
	other := testutil.SeedClient(t, db, "Olga Other")
	own := testutil.SeedCase(t, db, mine, adv)
	foreign := testutil.SeedCase(t, db, other, adv)
	app := newTestApp(newHandler(db), mine)

	resp, body := testutil.Do(t, app, "GET", "/cases/"+own.ID.String(), nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, own.CaseNumber, body["case_number"])

	resp, _ = testutil.Do(t, app, "GET", "/cases/"+foreign.ID.String(), nil)
	assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)

	resp, body = testutil.Do(t, app, "GET", "/cases", nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.EqualValues(t, 1, body["total"])
}

/* ============================================================================
   Update, activities, assignments
   ============================================================================ */

func TestUpdate_StatusChangeIsLogged(t *testing.T) {
	db := testutil.OpenDB(t)
	adv := testutil.SeedAdvocate(t, db, "Ann Advocate")
	cli := testutil.SeedClient(t, db, "Carl Client")
	cs := testutil.SeedCase(t, db, cli, adv)
	app := newTestApp(newHandler(db), adv)

	body := caseBody(cli, "Seeded case")
	body["status"] = "won"
	body["notify_client"] = true
	resp, out := testutil.Do(t, app, "PUT", "/cases/"+cs.ID.String(), body)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, "Case updated successfully", testutil.FlashMessage(out))

	var act models.CaseActivity
	require.NoError(t, db.First(&act, "case_id = ?", cs.ID).Error)
	assert.Equal(t, models.ActivityStatusChange, act.ActivityType)
	assert.Equal(t, "Case status changed from active to won", act.Description)
	assert.EqualValues(t, 1, testutil.Count(t, db, &models.Notification{}, "user_id = ?", cli.UserID))

	// Same status, different title: a plain update without a notification.
	body["title"] = "Renamed"
	body["notify_client"] = false
	resp, _ = testutil.Do(t, app, "PUT", "/cases/"+cs.ID.String(), body)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.EqualValues(t, 1, testutil.Count(t, db, &models.CaseActivity{},
		"activity_type = ? AND description = ?", models.ActivityUpdate, "Case details updated"))
	assert.EqualValues(t, 1, testutil.Count(t, db, &models.Notification{}))
}

func TestAddActivity_AndList(t *testing.T) {
	db := testutil.OpenDB(t)
	adv := testutil.SeedAdvocate(t, db, "Ann Advocate")
	cli := testutil.SeedClient(t, db, "Carl Client")
	cs := testutil.SeedCase(t, db, cli, adv)
	app := newTestApp(newHandler(db), adv)
	path := "/cases/" + cs.ID.String() + "/activities"

	resp, _ := testutil.Do(t, app, "POST", path, fiber.Map{"activity_type": "status_change", "description": "forged"})
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

	resp, out := testutil.Do(t, app, "POST", path, fiber.Map{
		"activity_type": "client_communication",
		"description":   "Called <script>x</script>client about the filing",
		"notify_client": true,
	})
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)
	assert.Equal(t, "Activity added successfully", testutil.FlashMessage(out))

	resp, out = testutil.Do(t, app, "GET", path, nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	items, _ := out["items"].([]any)
	require.Len(t, items, 1)
	first := items[0].(map[string]any)
	assert.Equal(t, "Called client about the filing", first["description"])
	assert.Equal(t, "Ann Advocate", first["user_name"])
	assert.EqualValues(t, 1, testutil.Count(t, db, &models.Notification{}, "user_id = ?", cli.UserID))
}

func TestAssign_NotifiesAndRejectsDuplicates(t *testing.T) {
	db := testutil.OpenDB(t)
	adv := testutil.SeedAdvocate(t, db, "Ann Advocate")
	colleague := testutil.SeedAdvocate(t, db, "Bob Colleague")
	cli := testutil.SeedClient(t, db, "Carl Client")
	cs := testutil.SeedCase(t, db, cli, adv)
	app := newTestApp(newHandler(db), adv)
	path := "/cases/" + cs.ID.String() + "/assignments"

	resp, out := testutil.Do(t, app, "POST", path, fiber.Map{"advocate_id": colleague.ProfileID.String()})
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)
	assert.Equal(t, "Advocate assigned successfully", testutil.FlashMessage(out))
	assert.EqualValues(t, 1, testutil.Count(t, db, &models.CaseAssignment{},
		"advocate_id = ? AND role = ?", colleague.ProfileID, models.AssignmentSecondary))
	assert.EqualValues(t, 1, testutil.Count(t, db, &models.Notification{}, "user_id = ?", colleague.UserID))

	resp, out = testutil.Do(t, app, "POST", path, fiber.Map{"advocate_id": colleague.ProfileID.String()})
	assert.Equal(t, fiber.StatusConflict, resp.StatusCode)
	assert.Equal(t, "Advocate is already assigned to this case", testutil.FlashMessage(out))
	assert.EqualValues(t, 1, testutil.Count(t, db, &models.CaseActivity{}))
}

/* ============================================================================
   Listing
   ============================================================================ */

func TestList_ScopeFilterSearchSort(t *testing.T) {
	db := testutil.OpenDB(t)
	adv := testutil.SeedAdvocate(t, db, "Ann Advocate")
	other := testutil.SeedAdvocate(t, db, "Olga Other")
	alice := testutil.SeedClient(t, db, "Alice Zephyr")
	bob := testutil.SeedClient(t, db, "Bob Young")

	a := testutil.SeedCase(t, db, alice, adv)
	b := testutil.SeedCase(t, db, bob, adv)
	testutil.SeedCase(t, db, bob, other)
	require.NoError(t, db.Model(&models.Case{}).Where("id = ?", a.ID).Updates(map[string]any{"title": "Beta", "status": "closed"}).Error)
	require.NoError(t, db.Model(&models.Case{}).Where("id = ?", b.ID).Update("title", "Alpha").Error)

	app := newTestApp(newHandler(db), adv)

	_, out := testutil.Do(t, app, "GET", "/cases?sort=title&order=asc", nil)
	assert.EqualValues(t, 2, out["total"])
	items := out["items"].([]any)
	require.Len(t, items, 2)
	assert.Equal(t, "Alpha", items[0].(map[string]any)["title"])
	assert.Equal(t, "Bob Young", items[0].(map[string]any)["client_name"])

	_, out = testutil.Do(t, app, "GET", "/cases?status=closed", nil)
	assert.EqualValues(t, 1, out["total"])

	_, out = testutil.Do(t, app, "GET", "/cases?q=zeph", nil)
	assert.EqualValues(t, 1, out["total"])

	// Unknown sort keys are ignored rather than interpolated.
	resp, out := testutil.Do(t, app, "GET", "/cases?sort=title%3BDROP%20TABLE%20cases&pageSize=1", nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.EqualValues(t, 2, out["pages"])
}

/* ============================================================================
   Documents
   ============================================================================ */

func TestDocuments(t *testing.T) {
	db := testutil.OpenDB(t)
	adv := testutil.SeedAdvocate(t, db, "Ann Advocate")
	cli := testutil.SeedClient(t, db, "Carl Client")
	cs := testutil.SeedCase(t, db, cli, adv)
	app := newTestApp(newHandler(db), adv)
	path := "/cases/" + cs.ID.String() + "/documents"

	resp, out := testutil.Do(t, app, "POST", path, fiber.Map{
		"title": "Brief", "file_key": "cases/elsewhere/brief.pdf", "file_name": "brief.pdf",
	})
	require.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, out["errors"], "file_key")

	resp, out = testutil.Do(t, app, "POST", path, fiber.Map{
		"title": "Brief", "file_key": "cases/" + cs.ID.String() + "/brief.pdf",
		"file_name": "brief.pdf", "file_type": "application/pdf", "file_size": 2048,
	})
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)
	docID := out["id"].(string)

	assert.EqualValues(t, 1, testutil.Count(t, db, &models.CaseActivity{},
		"activity_type = ? AND description = ?", models.ActivityDocument, "Document uploaded: Brief"))
	assert.EqualValues(t, 1, testutil.Count(t, db, &models.Notification{},
		"user_id = ? AND related_to = ?", cli.UserID, models.RelatedDocument))

	// No bucket configured.
	resp, _ = testutil.Do(t, app, "GET", "/documents/"+docID+"/url", nil)
	assert.Equal(t, fiber.StatusServiceUnavailable, resp.StatusCode)
}
