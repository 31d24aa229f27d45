package repository

import (
	"context"

	"github.com/facturio/facturio-api/internal/domain/entity"
)

// AttemptRepository define el puerto para el historial de intentos de
// autorización. Append-only: no hay Update ni Delete.
type AttemptRepository interface {
	Append(ctx context.Context, attempt *entity.AuthorizationAttempt) error
	ListByDocument(ctx context.Context, documentID string) ([]*entity.AuthorizationAttempt, error)
}
