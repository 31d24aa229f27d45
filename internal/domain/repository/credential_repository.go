package repository

import (
	"context"

	"github.com/facturio/facturio-api/internal/domain/entity"
)

// CredentialRepository define el puerto de lectura de credenciales de firma.
// La credencial es propiedad exclusiva de una empresa; la capa de firma la
// carga, la usa y la descarta dentro de una sola operación.
type CredentialRepository interface {
	GetByID(ctx context.Context, id string) (*entity.SigningCredential, error)
	GetByCompany(ctx context.Context, companyID string) (*entity.SigningCredential, error)
}
