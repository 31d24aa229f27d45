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

var _ repository.CredentialRepository = (*CredentialRepo)(nil)

// CredentialRepo implementación de CredentialRepository. Solo lectura: las
// credenciales las aprovisiona el mismo sistema externo que las empresas.
type CredentialRepo struct {
	q Querier
}

// NewCredentialRepository construye el adaptador. Pasar pool o tx (Querier).
func NewCredentialRepository(q Querier) *CredentialRepo {
	return &CredentialRepo{q: q}
}

const credentialColumns = `
	id, company_id, bundle_path, COALESCE(key_path, ''), COALESCE(passphrase, ''),
	not_before, not_after, created_at, updated_at`

// GetByID obtiene una credencial por ID.
func (r *CredentialRepo) GetByID(ctx context.Context, id string) (*entity.SigningCredential, error) {
	query := `SELECT ` + credentialColumns + ` FROM signing_credentials WHERE id = $1`
	return r.scanOne(r.q.QueryRow(ctx, query, id))
}

// GetByCompany obtiene la credencial vigente más reciente de la empresa.
func (r *CredentialRepo) GetByCompany(ctx context.Context, companyID string) (*entity.SigningCredential, error) {
	query := `SELECT ` + credentialColumns + `
		FROM signing_credentials
		WHERE company_id = $1
		ORDER BY not_after DESC
		LIMIT 1`
	return r.scanOne(r.q.QueryRow(ctx, query, companyID))
}

func (r *CredentialRepo) scanOne(row pgx.Row) (*entity.SigningCredential, error) {
	var c entity.SigningCredential
	err := row.Scan(
		&c.ID, &c.CompanyID, &c.BundlePath, &c.KeyPath, &c.Passphrase,
		&c.NotBefore, &c.NotAfter, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("get signing credential: %w", err)
	}
	return &c, nil
}
