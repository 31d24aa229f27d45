package signer

import (
	"context"
	"crypto/tls"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/facturio/facturio-api/internal/domain"
	"github.com/facturio/facturio-api/internal/domain/entity"
	"github.com/facturio/facturio-api/internal/domain/repository"
)

// RepositoryCredentialResolver resuelve el certificado de firma de una empresa
// desde el repositorio de credenciales. Carga el material bajo demanda y no lo
// cachea: la credencial vive en memoria solo durante la operación de firma.
type RepositoryCredentialResolver struct {
	credentials repository.CredentialRepository
	now         func() time.Time
}

func NewRepositoryCredentialResolver(credentials repository.CredentialRepository) *RepositoryCredentialResolver {
	return &RepositoryCredentialResolver{
		credentials: credentials,
		now:         time.Now,
	}
}

// Resolve implementa billing.CredentialResolver. Una credencial ausente,
// vencida o ilegible se reporta como ErrCredentialUnavailable; nunca se firma
// con material fuera de su ventana de validez.
func (r *RepositoryCredentialResolver) Resolve(ctx context.Context, company *entity.Company) (tls.Certificate, error) {
	cred, err := r.lookup(ctx, company)
	if err != nil {
		return tls.Certificate{}, fmt.Errorf("%w: %v", domain.ErrCredentialUnavailable, err)
	}
	if !cred.ValidAt(r.now()) {
		return tls.Certificate{}, fmt.Errorf("%w: certificado fuera de su ventana de validez", domain.ErrCredentialUnavailable)
	}

	cert, err := loadBundle(cred)
	if err != nil {
		return tls.Certificate{}, fmt.Errorf("%w: %v", domain.ErrCredentialUnavailable, err)
	}
	return cert, nil
}

func (r *RepositoryCredentialResolver) lookup(ctx context.Context, company *entity.Company) (*entity.SigningCredential, error) {
	if company.CredentialID != "" {
		return r.credentials.GetByID(ctx, company.CredentialID)
	}
	return r.credentials.GetByCompany(ctx, company.ID)
}

func loadBundle(cred *entity.SigningCredential) (tls.Certificate, error) {
	ext := strings.ToLower(filepath.Ext(cred.BundlePath))
	if ext == ".p12" || ext == ".pfx" {
		return LoadFromP12(cred.BundlePath, cred.Passphrase)
	}
	return LoadFromPEM(cred.BundlePath, cred.KeyPath)
}
