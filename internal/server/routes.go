// Package server wires handlers, middleware and roles into one Fiber app.
package server

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/sincere-abayo/advocate-management-system/internal/auth"
	"github.com/sincere-abayo/advocate-management-system/internal/cases"
	"github.com/sincere-abayo/advocate-management-system/internal/hearings"
	"github.com/sincere-abayo/advocate-management-system/internal/invoices"
	"github.com/sincere-abayo/advocate-management-system/internal/notifications"
	"github.com/sincere-abayo/advocate-management-system/internal/storage"
	"github.com/sincere-abayo/advocate-management-system/internal/workflow"
	"github.com/sincere-abayo/advocate-management-system/pkg/models"
)

// Deps is everything the routes need from main.
type Deps struct {
	DB                *gorm.DB
	Log               *zap.Logger
	Tokens            auth.Tokens
	Store             storage.Presigner // nil when object storage is not configured
	SignedURLTTL      time.Duration
	CaseNumberRetries int
}

// New builds the app with every route under /api.
func New(d Deps) *fiber.App {
	if d.Log == nil {
		d.Log = zap.NewNop()
	}
	app := fiber.New(fiber.Config{ErrorHandler: auth.ErrorHandler})
	app.Use(recover.New())
	app.Use(auth.RequestLogger(d.Log.Named("http")))

	app.Get("/health", func(c *fiber.Ctx) error { return c.JSON(fiber.Map{"status": "ok"}) })

	flow := workflow.New(d.DB, d.Log)
	api := app.Group("/api")

	staff := auth.RequireRole(models.RoleAdvocate, models.RoleAdmin)
	signedIn := auth.RequireAuth(d.DB, d.Tokens)

	// Auth
	authH := auth.NewHandler(d.DB, d.Tokens)
	api.Post("/signup", authH.Signup)
	api.Post("/login", authH.Login)
	api.Get("/me", signedIn, authH.Me)
	api.Put("/me", signedIn, authH.UpdateMe)

	// Cases
	caseH := cases.NewHandler(flow, d.Store, d.SignedURLTTL, d.CaseNumberRetries)
	api.Post("/cases", signedIn, staff, caseH.Create)
	api.Get("/cases", signedIn, caseH.List)
	api.Get("/cases/:id", signedIn, caseH.Detail)
	api.Put("/cases/:id", signedIn, staff, caseH.Update)
	api.Post("/cases/:id/activities", signedIn, staff, caseH.AddActivity)
	api.Get("/cases/:id/activities", signedIn, caseH.ListActivities)
	api.Post("/cases/:id/assignments", signedIn, staff, caseH.Assign)
	// Clients may upload to their own cases too.
	api.Post("/cases/:id/documents", signedIn, caseH.AddDocument)
	api.Get("/documents/:id/url", signedIn, caseH.DocumentURL)

	// Hearings
	hearingH := hearings.NewHandler(flow)
	api.Post("/cases/:id/hearings", signedIn, staff, hearingH.Add)
	api.Get("/cases/:id/hearings", signedIn, hearingH.ListForCase)
	api.Get("/hearings/upcoming", signedIn, hearingH.Upcoming)
	api.Get("/hearings/:id", signedIn, hearingH.Get)
	api.Put("/hearings/:id", signedIn, staff, hearingH.Edit)
	api.Post("/hearings/:id/status", signedIn, staff, hearingH.UpdateStatus)

	// Invoices
	invoiceH := invoices.NewHandler(flow)
	api.Post("/invoices", signedIn, staff, invoiceH.Create)
	api.Get("/invoices", signedIn, invoiceH.List)
	api.Get("/invoices/:id", signedIn, invoiceH.Detail)
	api.Put("/invoices/:id", signedIn, staff, invoiceH.Edit)
	api.Post("/invoices/:id/cancel", signedIn, staff, invoiceH.Cancel)
	api.Post("/invoices/:id/mark-paid", signedIn, staff, invoiceH.MarkPaid)
	api.Post("/invoices/:id/payments", signedIn, staff, invoiceH.AddPayment)
	api.Post("/invoices/:id/duplicate", signedIn, staff, invoiceH.Duplicate)

	// Notifications
	noteH := notifications.NewHandler(d.DB)
	api.Get("/notifications", signedIn, noteH.List)
	api.Get("/notifications/count", signedIn, noteH.Count)
	api.Post("/notifications/read-all", signedIn, noteH.ReadAll)
	api.Post("/notifications/:id/read", signedIn, noteH.MarkRead)

	return app
}
