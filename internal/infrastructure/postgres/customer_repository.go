package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/facturio/facturio-api/internal/domain"
	"github.com/facturio/facturio-api/internal/domain/entity"
	"github.com/facturio/facturio-api/internal/domain/repository"
)

var _ repository.CustomerRepository = (*CustomerRepo)(nil)

// CustomerRepo implementación de CustomerRepository (usable con pool o tx).
type CustomerRepo struct {
	q Querier
}

// NewCustomerRepository construye el adaptador. Pasar pool o tx (Querier).
func NewCustomerRepository(q Querier) *CustomerRepo {
	return &CustomerRepo{q: q}
}

const customerColumns = `
	id, company_id, name, tax_id, ident_type, COALESCE(email, ''),
	COALESCE(phone, ''), COALESCE(address, ''), created_at, updated_at`

// GetByID obtiene un cliente por ID.
func (r *CustomerRepo) GetByID(ctx context.Context, id string) (*entity.Customer, error) {
	query := `SELECT ` + customerColumns + ` FROM customers WHERE id = $1`
	return r.scanOne(r.q.QueryRow(ctx, query, id))
}

// GetByCompanyAndTaxID obtiene un cliente por empresa y RUC/cédula/NIT.
func (r *CustomerRepo) GetByCompanyAndTaxID(ctx context.Context, companyID, taxID string) (*entity.Customer, error) {
	query := `SELECT ` + customerColumns + ` FROM customers WHERE company_id = $1 AND tax_id = $2`
	return r.scanOne(r.q.QueryRow(ctx, query, companyID, taxID))
}

func (r *CustomerRepo) scanOne(row pgx.Row) (*entity.Customer, error) {
	var c entity.Customer
	err := row.Scan(
		&c.ID, &c.CompanyID, &c.Name, &c.TaxID, &c.IdentType, &c.Email,
		&c.Phone, &c.Address, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("get customer: %w", err)
	}
	return &c, nil
}
