package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/case-service/internal/api/http/handlers"
	"github.com/spec-kit/case-service/internal/auth"
	"github.com/spec-kit/case-service/internal/domain"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Staff          *handlers.StaffHandler
	Cases          *handlers.CasesHandler
	Mediations     *handlers.MediationsHandler
	AuthMiddleware *auth.AuthMiddleware
}

// RegisterRoutes wires HTTP routes. Case reads are open to all staff roles;
// transitions and the closure workflow need a welfare officer or an admin.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)
	app.Get("/health/metrics", cfg.Health.Metrics)

	authGroup := app.Group("/auth")
	authGroup.Post("/staff/login", cfg.Staff.Login)
	authGroup.Post("/password/reset/request", cfg.Staff.RequestPasswordReset)
	authGroup.Post("/password/reset/confirm", cfg.Staff.ConfirmPasswordReset)

	authProtected := authGroup.Group("", cfg.AuthMiddleware.Handle)
	authProtected.Post("/password/change", cfg.Staff.ChangePassword)
	authProtected.Post("/staff/register", auth.RequireStaffRole(domain.StaffRoleAdmin), cfg.Staff.Register)

	cases := app.Group("/cases", cfg.AuthMiddleware.Handle, auth.RequireStaffRole())
	cases.Post("", cfg.Cases.CreateCase)
	cases.Get("", cfg.Cases.ListCases)
	cases.Get("/:id", cfg.Cases.GetCase)
	cases.Get("/:id/transitions", cfg.Cases.ListTransitionOptions)
	cases.Get("/:id/audit", cfg.Cases.ListAudit)
	cases.Post("/:id/notes", cfg.Cases.AddNote)
	cases.Post("/:id/evidence", cfg.Cases.AddEvidence)

	officer := auth.RequireStaffRole(domain.StaffRoleWelfareOfficer, domain.StaffRoleAdmin)
	cases.Post("/:id/transitions", officer, cfg.Cases.Transition)

	mediation := cases.Group("/:id/mediation", officer)
	mediation.Post("", cfg.Mediations.Start)
	mediation.Get("", cfg.Mediations.Get)
	mediation.Post("/summary", cfg.Mediations.AcknowledgeSummary)
	mediation.Post("/outcome", cfg.Mediations.SelectOutcome)
	mediation.Post("/commitments", cfg.Mediations.SetCommitments)
	mediation.Post("/confirm", cfg.Mediations.Confirm)
}
