package repository

import (
	"context"

	"github.com/facturio/facturio-api/internal/domain/entity"
)

// CustomerRepository define el puerto de persistencia para Customer.
type CustomerRepository interface {
	GetByID(ctx context.Context, id string) (*entity.Customer, error)
	GetByCompanyAndTaxID(ctx context.Context, companyID, taxID string) (*entity.Customer, error)
}
