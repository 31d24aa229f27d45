package http

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/facturio/facturio-api/internal/application/billing"
	"github.com/facturio/facturio-api/internal/application/dto"
	"github.com/facturio/facturio-api/internal/domain"
)

// DocumentHandler maneja las peticiones HTTP del motor de autorización.
type DocumentHandler struct {
	uc *billing.SubmitSaleUseCase
}

// NewDocumentHandler construye el handler.
func NewDocumentHandler(uc *billing.SubmitSaleUseCase) *DocumentHandler {
	return &DocumentHandler{uc: uc}
}

// Submit registra una venta finalizada y dispara su autorización.
// POST /api/documents
func (h *DocumentHandler) Submit(c *fiber.Ctx) error {
	companyID := GetCompanyID(c)
	if companyID == "" {
		return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{Code: "UNAUTHORIZED", Message: "token inválido"})
	}
	var in dto.SubmitSaleRequest
	if err := c.BodyParser(&in); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "INVALID_BODY", Message: "cuerpo inválido"})
	}
	result, err := h.uc.Submit(c.Context(), companyID, &in)
	if err != nil {
		return mapDomainError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(result)
}

// Resend reintenta la autorización de un documento en ERROR, SIGNED o RECEIVED.
// POST /api/documents/:id/resend
func (h *DocumentHandler) Resend(c *fiber.Ctx) error {
	companyID := GetCompanyID(c)
	if companyID == "" {
		return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{Code: "UNAUTHORIZED", Message: "token inválido"})
	}
	id := c.Params("id")
	if id == "" {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "VALIDATION", Message: "id requerido"})
	}
	result, err := h.uc.Resend(c.Context(), companyID, id)
	if err != nil {
		return mapDomainError(c, err)
	}
	return c.JSON(result)
}

// GetByID obtiene el detalle del documento con su historial de intentos.
// GET /api/documents/:id
func (h *DocumentHandler) GetByID(c *fiber.Ctx) error {
	companyID := GetCompanyID(c)
	if companyID == "" {
		return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{Code: "UNAUTHORIZED", Message: "token inválido"})
	}
	id := c.Params("id")
	if id == "" {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "VALIDATION", Message: "id requerido"})
	}
	doc, err := h.uc.GetDocument(c.Context(), companyID, id)
	if err != nil {
		return mapDomainError(c, err)
	}
	return c.JSON(doc)
}

// List lista los documentos del emisor, opcionalmente filtrados por estado.
// GET /api/documents?status=AUTHORIZED&limit=50&offset=0
func (h *DocumentHandler) List(c *fiber.Ctx) error {
	companyID := GetCompanyID(c)
	if companyID == "" {
		return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{Code: "UNAUTHORIZED", Message: "token inválido"})
	}
	docs, err := h.uc.ListDocuments(c.Context(), companyID,
		c.Query("status"), c.QueryInt("limit", 50), c.QueryInt("offset", 0))
	if err != nil {
		return mapDomainError(c, err)
	}
	return c.JSON(docs)
}

// GetArtifact descarga un artefacto del documento por nombre lógico.
// GET /api/documents/:id/artifacts/:name  (signed|degraded|reception|authorization|printable)
func (h *DocumentHandler) GetArtifact(c *fiber.Ctx) error {
	companyID := GetCompanyID(c)
	if companyID == "" {
		return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{Code: "UNAUTHORIZED", Message: "token inválido"})
	}
	id := c.Params("id")
	name := c.Params("name")
	if id == "" || name == "" {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "VALIDATION", Message: "id y name requeridos"})
	}
	data, contentType, err := h.uc.GetArtifact(c.Context(), companyID, id, name)
	if err != nil {
		return mapDomainError(c, err)
	}
	c.Set(fiber.HeaderContentType, contentType)
	return c.Send(data)
}

// mapDomainError traduce la taxonomía de errores de dominio a HTTP.
func mapDomainError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, domain.ErrValidation), errors.Is(err, domain.ErrInvalidInput):
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "VALIDATION", Message: err.Error()})
	case errors.Is(err, domain.ErrNotFound):
		return c.Status(fiber.StatusNotFound).JSON(dto.ErrorResponse{Code: "NOT_FOUND", Message: err.Error()})
	case errors.Is(err, domain.ErrForbidden):
		return c.Status(fiber.StatusForbidden).JSON(dto.ErrorResponse{Code: "FORBIDDEN", Message: "acceso denegado al recurso"})
	case errors.Is(err, domain.ErrConflict):
		return c.Status(fiber.StatusConflict).JSON(dto.ErrorResponse{Code: "CONFLICT", Message: err.Error()})
	case errors.Is(err, domain.ErrDocumentBusy):
		return c.Status(fiber.StatusConflict).JSON(dto.ErrorResponse{Code: "DOCUMENT_BUSY", Message: "el documento ya está siendo procesado"})
	case errors.Is(err, domain.ErrDuplicate):
		return c.Status(fiber.StatusConflict).JSON(dto.ErrorResponse{Code: "DUPLICATE", Message: err.Error()})
	default:
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Code: "INTERNAL", Message: err.Error()})
	}
}
