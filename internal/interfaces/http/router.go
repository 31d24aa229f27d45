package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/facturio/facturio-api/internal/application/billing"
)

// Roles aceptados por el motor. Los emite la capa CRUD externa en el token.
const (
	RoleAdmin      = "admin"
	RoleFacturador = "facturador"
)

// RouterDeps dependencias para el router.
type RouterDeps struct {
	Submit    *billing.SubmitSaleUseCase
	JWTSecret string
}

// Router registra las rutas de la API. Todo el motor es protegido: cada
// petición viaja con el tenant emisor en el token.
func Router(app *fiber.App, deps RouterDeps) {
	api := app.Group("/api")

	protected := api.Group("/", AuthMiddleware(deps.JWTSecret))

	documents := protected.Group("/documents")
	handler := NewDocumentHandler(deps.Submit)

	// Emisión y reenvío: solo roles que facturan.
	documents.Post("/", RequireRole(RoleAdmin, RoleFacturador), handler.Submit)
	documents.Post("/:id/resend", RequireRole(RoleAdmin, RoleFacturador), handler.Resend)

	// Consulta: cualquier rol autenticado del tenant.
	documents.Get("/", handler.List)
	documents.Get("/:id", handler.GetByID)
	documents.Get("/:id/artifacts/:name", handler.GetArtifact)
}
