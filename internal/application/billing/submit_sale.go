package billing

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/facturio/facturio-api/internal/application/dto"
	"github.com/facturio/facturio-api/internal/domain"
	"github.com/facturio/facturio-api/internal/domain/entity"
	"github.com/facturio/facturio-api/internal/domain/repository"
)

// SubmitSaleUseCase es el punto de entrada del motor: registra la venta como
// documento tributario y dispara su autorización. La venta se emite UNA sola
// vez; el secuencial asignado nunca se recicla aunque la autoridad rechace.
type SubmitSaleUseCase struct {
	docs      repository.DocumentRepository
	companies repository.CompanyRepository
	customers repository.CustomerRepository
	series    repository.SeriesRepository
	attempts  repository.AttemptRepository
	artifacts ArtifactStore
	builder   *DocumentBuilder
	pipeline  *AuthorizationPipeline
	logger    zerolog.Logger
}

func NewSubmitSaleUseCase(
	docs repository.DocumentRepository,
	companies repository.CompanyRepository,
	customers repository.CustomerRepository,
	series repository.SeriesRepository,
	attempts repository.AttemptRepository,
	artifacts ArtifactStore,
	builder *DocumentBuilder,
	pipeline *AuthorizationPipeline,
	logger zerolog.Logger,
) *SubmitSaleUseCase {
	return &SubmitSaleUseCase{
		docs:      docs,
		companies: companies,
		customers: customers,
		series:    series,
		attempts:  attempts,
		artifacts: artifacts,
		builder:   builder,
		pipeline:  pipeline,
		logger:    logger,
	}
}

// Submit valida y persiste la venta en DRAFT con su secuencial asignado, y
// lanza el pipeline de autorización. Con req.Wait el resultado final se
// espera en línea (flujo POS); sin él, la respuesta vuelve de inmediato y el
// pipeline corre desacoplado.
func (uc *SubmitSaleUseCase) Submit(ctx context.Context, companyID string, req *dto.SubmitSaleRequest) (*dto.SubmitResult, error) {
	company, err := uc.companies.GetByID(ctx, companyID)
	if err != nil {
		return nil, fmt.Errorf("empresa %s: %w", companyID, err)
	}
	customer, err := uc.customers.GetByID(ctx, req.CustomerID)
	if err != nil {
		return nil, fmt.Errorf("cliente %s: %w", req.CustomerID, err)
	}
	if customer.CompanyID != company.ID {
		return nil, fmt.Errorf("%w: el cliente no pertenece al emisor", domain.ErrForbidden)
	}

	doc, lines, err := uc.builder.Build(req, company, customer)
	if err != nil {
		return nil, err
	}

	seq, err := uc.series.NextSequential(ctx, entity.SequenceRef{
		CompanyID:     company.ID,
		Establishment: doc.Establishment,
		EmissionPoint: doc.EmissionPoint,
		DocType:       doc.DocType,
	})
	if err != nil {
		return nil, fmt.Errorf("asignando secuencial: %w", err)
	}
	doc.Sequential = fmt.Sprintf("%09d", seq)

	if err := uc.docs.Create(ctx, doc, lines); err != nil {
		return nil, fmt.Errorf("persistiendo documento: %w", err)
	}

	uc.logger.Info().
		Str("document_id", doc.ID).
		Str("company_id", company.ID).
		Str("sequential", doc.Sequential).
		Msg("venta registrada")

	if req.Wait {
		processed, perr := uc.pipeline.Process(ctx, doc.ID)
		if perr != nil {
			return nil, perr
		}
		doc = processed
	} else {
		uc.pipeline.ProcessAsync(doc.ID)
	}

	return &dto.SubmitResult{
		DocumentID: doc.ID,
		Status:     doc.Status,
		AccessKey:  doc.AccessKey,
		Artifacts: dto.ArtifactRefs{
			SignedXML:     doc.SignedXMLRef,
			DegradedXML:   doc.DegradedXMLRef,
			Reception:     doc.ReceptionRef,
			Authorization: doc.AuthorizationRef,
			Printable:     doc.PrintableRef,
		},
	}, nil
}

// Resend reintenta el envío de un documento con el payload firmado ya
// almacenado. Requiere que el documento pertenezca al emisor autenticado.
func (uc *SubmitSaleUseCase) Resend(ctx context.Context, companyID, documentID string) (*dto.ResendResult, error) {
	doc, err := uc.docs.GetByID(ctx, documentID)
	if err != nil {
		return nil, fmt.Errorf("documento %s: %w", documentID, err)
	}
	if doc.CompanyID != companyID {
		return nil, fmt.Errorf("%w: el documento no pertenece al emisor", domain.ErrForbidden)
	}

	processed, err := uc.pipeline.Resend(ctx, documentID)
	if err != nil {
		return nil, err
	}
	return &dto.ResendResult{
		DocumentID: processed.ID,
		Status:     processed.Status,
		AccessKey:  processed.AccessKey,
	}, nil
}

// GetDocument retorna el detalle del documento con su historial de intentos.
func (uc *SubmitSaleUseCase) GetDocument(ctx context.Context, companyID, documentID string) (*dto.DocumentResponse, error) {
	doc, err := uc.docs.GetByID(ctx, documentID)
	if err != nil {
		return nil, fmt.Errorf("documento %s: %w", documentID, err)
	}
	if doc.CompanyID != companyID {
		return nil, fmt.Errorf("%w: el documento no pertenece al emisor", domain.ErrForbidden)
	}

	attempts, err := uc.attempts.ListByDocument(ctx, documentID)
	if err != nil {
		return nil, fmt.Errorf("historial de %s: %w", documentID, err)
	}

	return dto.NewDocumentResponse(doc, attempts), nil
}

// ListDocuments lista los documentos del emisor, opcionalmente filtrados por
// estado, con paginación.
func (uc *SubmitSaleUseCase) ListDocuments(ctx context.Context, companyID, status string, limit, offset int) ([]*dto.DocumentResponse, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	docs, err := uc.docs.ListByCompanyAndStatus(ctx, companyID, status, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("listando documentos: %w", err)
	}
	out := make([]*dto.DocumentResponse, 0, len(docs))
	for _, doc := range docs {
		out = append(out, dto.NewDocumentResponse(doc, nil))
	}
	return out, nil
}

// Artefactos descargables por nombre lógico.
const (
	ArtifactSignedXML     = "signed"
	ArtifactDegradedXML   = "degraded"
	ArtifactReception     = "reception"
	ArtifactAuthorization = "authorization"
	ArtifactPrintable     = "printable"
)

// GetArtifact devuelve el contenido de un artefacto del documento y su
// content type. El nombre es lógico (signed, degraded, reception,
// authorization, printable); la referencia concreta sale del propio documento.
func (uc *SubmitSaleUseCase) GetArtifact(ctx context.Context, companyID, documentID, name string) ([]byte, string, error) {
	doc, err := uc.docs.GetByID(ctx, documentID)
	if err != nil {
		return nil, "", fmt.Errorf("documento %s: %w", documentID, err)
	}
	if doc.CompanyID != companyID {
		return nil, "", fmt.Errorf("%w: el documento no pertenece al emisor", domain.ErrForbidden)
	}

	var ref, contentType string
	switch name {
	case ArtifactSignedXML:
		ref, contentType = doc.SignedXMLRef, "application/xml"
	case ArtifactDegradedXML:
		ref, contentType = doc.DegradedXMLRef, "application/xml"
	case ArtifactReception:
		ref, contentType = doc.ReceptionRef, "application/xml"
	case ArtifactAuthorization:
		ref, contentType = doc.AuthorizationRef, "application/xml"
	case ArtifactPrintable:
		ref, contentType = doc.PrintableRef, "application/pdf"
	default:
		return nil, "", fmt.Errorf("%w: artefacto desconocido %q", domain.ErrInvalidInput, name)
	}
	if ref == "" {
		return nil, "", fmt.Errorf("%w: el documento aún no tiene artefacto %s", domain.ErrNotFound, name)
	}

	data, err := uc.artifacts.Load(ctx, ref)
	if err != nil {
		return nil, "", err
	}
	return data, contentType, nil
}
