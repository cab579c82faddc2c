package handler

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/swagger"

	"portalapi/docs"
	"portalapi/internal/auth"
	"portalapi/internal/http/middleware"
	"portalapi/internal/model"
	"portalapi/internal/service"
)

// Deps are the collaborators the routes are wired to.
type Deps struct {
	Records service.RecordService
	Auth    auth.Authenticator
	Files   FileServer
	Health  Pinger
	// UploadPrefix is the public path attachments are served under.
	UploadPrefix string
	// RequireAuth puts bearer verification in front of every mutating
	// collection route.
	RequireAuth bool
}

// RegisterRoutes attaches every HTTP route to app.
func RegisterRoutes(app *fiber.App, d Deps) {
	app.Get("/", Root())
	app.Get("/health", HealthCheck(d.Health))
	app.Get("/healthz", Liveness())
	app.Get("/swagger/*", swaggerUI)

	app.Post("/register", Register(d.Auth))
	app.Post("/login", Login(d.Auth))
	app.Get("/me", middleware.Auth(d.Auth), Me())

	guard := middleware.When(d.RequireAuth, middleware.Auth(d.Auth))

	app.Get("/users/:id", GetRecord(d.Records, model.Users))
	app.Put("/users/:id/profile", guard, UpdateProfile(d.Records))
	app.Post("/users/:id/photo", guard, UploadAttachment(d.Records, model.Users, "photo"))

	for _, col := range []model.Collection{
		model.Assignments, model.Schedules, model.Exams, model.Questions,
		model.Courses, model.Forum, model.Calendar,
	} {
		registerCollection(app, d.Records, col, guard)
	}

	app.Post("/assignments/:id/upload", guard, UploadAttachment(d.Records, model.Assignments, "image"))
	app.Delete("/assignments/:id/image", guard, DeleteAttachment(d.Records, model.Assignments))
	app.Get("/exams/:id/questions", ExamQuestions(d.Records))
	app.Get("/calendar/date/:date", EventsByDate(d.Records))

	prefix := "/" + strings.Trim(d.UploadPrefix, "/")
	app.Get(prefix+"/:name", ServeFile(d.Files))
	app.Get(prefix+"/:name/link", FileLink(d.Files))
}

// registerCollection wires list, get, create, update and delete for col.
func registerCollection(app *fiber.App, svc service.RecordService, col model.Collection, guard fiber.Handler) {
	base := "/" + string(col)
	fileField := model.SchemaFor(col).Attachment

	app.Get(base, ListRecords(svc, col))
	app.Get(base+"/:id", GetRecord(svc, col))
	app.Post(base, guard, CreateRecord(svc, col, fileField))
	app.Put(base+"/:id", guard, UpdateRecord(svc, col, fileField))
	app.Delete(base+"/:id", guard, DeleteRecord(svc, col))
}

// swaggerUI serves the API docs with the host and scheme the caller used.
func swaggerUI(c *fiber.Ctx) error {
	scheme := c.Protocol()
	if proto := c.Get("X-Forwarded-Proto"); proto != "" {
		scheme = strings.TrimSpace(strings.Split(proto, ",")[0])
	}
	docs.SwaggerInfo.Host = c.Get("Host")
	docs.SwaggerInfo.Schemes = []string{scheme}
	return swagger.HandlerDefault(c)
}
