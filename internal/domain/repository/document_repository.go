package repository

import (
	"context"

	"github.com/facturio/facturio-api/internal/domain/entity"
)

// DocumentRepository define el puerto de persistencia para TaxDocument.
// Create persiste cabecera, subtotales y líneas; UpdateStatus es la única vía
// de escritura de estado/recibos y la usa exclusivamente el LifecycleTracker.
type DocumentRepository interface {
	Create(ctx context.Context, doc *entity.TaxDocument, lines []*entity.DocumentLine) error
	GetByID(ctx context.Context, id string) (*entity.TaxDocument, error)
	GetByAccessKey(ctx context.Context, accessKey string) (*entity.TaxDocument, error)
	GetLines(ctx context.Context, documentID string) ([]*entity.DocumentLine, error)
	UpdateStatus(ctx context.Context, doc *entity.TaxDocument) error
	ListByCompanyAndStatus(ctx context.Context, companyID, status string, limit, offset int) ([]*entity.TaxDocument, error)
}
