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

var _ repository.CompanyRepository = (*CompanyRepo)(nil)

// CompanyRepo implementación de CompanyRepository (solo lectura: los emisores
// los aprovisiona un sistema externo).
type CompanyRepo struct {
	q Querier
}

// NewCompanyRepository construye el adaptador. Pasar pool o tx (Querier).
func NewCompanyRepository(q Querier) *CompanyRepo {
	return &CompanyRepo{q: q}
}

const companyColumns = `
	id, legal_name, COALESCE(trade_name, ''), tax_id, COALESCE(address, ''),
	COALESCE(phone, ''), COALESCE(email, ''), establishment, emission_point,
	jurisdiction, environment, COALESCE(credential_id, ''), status, created_at, updated_at`

// GetByID obtiene un emisor por ID.
func (r *CompanyRepo) GetByID(ctx context.Context, id string) (*entity.Company, error) {
	query := `SELECT ` + companyColumns + ` FROM companies WHERE id = $1`
	return r.scanOne(r.q.QueryRow(ctx, query, id))
}

// GetByTaxID obtiene un emisor por RUC/NIT.
func (r *CompanyRepo) GetByTaxID(ctx context.Context, taxID string) (*entity.Company, error) {
	query := `SELECT ` + companyColumns + ` FROM companies WHERE tax_id = $1`
	return r.scanOne(r.q.QueryRow(ctx, query, taxID))
}

func (r *CompanyRepo) scanOne(row pgx.Row) (*entity.Company, error) {
	var c entity.Company
	err := row.Scan(
		&c.ID, &c.LegalName, &c.TradeName, &c.TaxID, &c.Address,
		&c.Phone, &c.Email, &c.Establishment, &c.EmissionPoint,
		&c.Jurisdiction, &c.Environment, &c.CredentialID, &c.Status, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("get company: %w", err)
	}
	return &c, nil
}
