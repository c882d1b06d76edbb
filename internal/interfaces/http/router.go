package http

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/jhoicas/facturador-sunat/internal/application/dto"
)

// Roles con permiso de encolar envíos; cualquier rol autenticado puede consultar.
const (
	RoleAdmin    = "admin"
	RoleOperator = "operador"
)

// RouterDeps dependencias para el router.
type RouterDeps struct {
	Submissions SubmissionService
	JWTSecret   string
	// Gatherer origen de /metrics; nil desactiva la ruta.
	Gatherer prometheus.Gatherer
	// Ping verifica la base de datos para /health; nil se reporta como ok.
	Ping func(ctx context.Context) error
	// WorkerID e InFlight describen el loop local en /health.
	WorkerID string
	InFlight func() int
	Logger   zerolog.Logger
}

// Router registra las rutas de administración.
func Router(app *fiber.App, deps RouterDeps) {
	app.Get("/health", healthHandler(deps))
	if deps.Gatherer != nil {
		app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{})))
	}

	api := app.Group("/api", AuthMiddleware(deps.JWTSecret))

	documents := api.Group("/documents")
	documentHandler := NewDocumentHandler(deps.Submissions, deps.Logger)
	documents.Get("/:id", documentHandler.GetByID)
	documents.Post("/:id/submit", RequireRole(RoleAdmin, RoleOperator), documentHandler.Submit)
}

func healthHandler(deps RouterDeps) fiber.Handler {
	return func(c *fiber.Ctx) error {
		out := dto.HealthResponse{Status: "ok", WorkerID: deps.WorkerID, Database: "ok"}
		if deps.InFlight != nil {
			out.InFlight = deps.InFlight()
		}
		if deps.Ping != nil {
			ctx, cancel := context.WithTimeout(c.UserContext(), 2*time.Second)
			defer cancel()
			if err := deps.Ping(ctx); err != nil {
				out.Status = "degraded"
				out.Database = "error"
				return c.Status(fiber.StatusServiceUnavailable).JSON(out)
			}
		}
		return c.JSON(out)
	}
}
