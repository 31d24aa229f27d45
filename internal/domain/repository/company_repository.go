package repository

import (
	"context"

	"github.com/facturio/facturio-api/internal/domain/entity"
)

// CompanyRepository define el puerto de persistencia para Company (DIP).
// La implementación vive en infrastructure. El alta y la gestión de tenants
// son un sistema externo; este motor solo lee emisores ya aprovisionados.
type CompanyRepository interface {
	GetByID(ctx context.Context, id string) (*entity.Company, error)
	GetByTaxID(ctx context.Context, taxID string) (*entity.Company, error)
}
