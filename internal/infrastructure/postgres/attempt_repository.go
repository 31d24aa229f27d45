package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/facturio/facturio-api/internal/domain/entity"
	"github.com/facturio/facturio-api/internal/domain/repository"
)

var _ repository.AttemptRepository = (*AttemptRepo)(nil)

// AttemptRepo bitácora de intentos de autorización. Append-only: la tabla no
// tiene UPDATE ni DELETE desde la aplicación.
type AttemptRepo struct {
	q Querier
}

// NewAttemptRepository construye el adaptador. Pasar pool o tx (Querier).
func NewAttemptRepository(q Querier) *AttemptRepo {
	return &AttemptRepo{q: q}
}

// Append registra un intento.
func (r *AttemptRepo) Append(ctx context.Context, attempt *entity.AuthorizationAttempt) error {
	if attempt.ID == "" {
		attempt.ID = uuid.New().String()
	}
	query := `
		INSERT INTO authorization_attempts (id, document_id, payload_hash, phase, raw_response, outcome, messages, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	_, err := r.q.Exec(ctx, query,
		attempt.ID, attempt.DocumentID, attempt.PayloadHash, attempt.Phase,
		attempt.RawResponse, attempt.Outcome, nullIfEmpty(attempt.Messages), attempt.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert authorization attempt: %w", err)
	}
	return nil
}

// ListByDocument lista los intentos de un documento en orden cronológico.
func (r *AttemptRepo) ListByDocument(ctx context.Context, documentID string) ([]*entity.AuthorizationAttempt, error) {
	query := `
		SELECT id, document_id, payload_hash, phase, raw_response, outcome, COALESCE(messages, ''), created_at
		FROM authorization_attempts
		WHERE document_id = $1
		ORDER BY created_at, id`
	rows, err := r.q.Query(ctx, query, documentID)
	if err != nil {
		return nil, fmt.Errorf("list authorization attempts: %w", err)
	}
	defer rows.Close()

	var attempts []*entity.AuthorizationAttempt
	for rows.Next() {
		var a entity.AuthorizationAttempt
		if err := rows.Scan(
			&a.ID, &a.DocumentID, &a.PayloadHash, &a.Phase,
			&a.RawResponse, &a.Outcome, &a.Messages, &a.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan authorization attempt: %w", err)
		}
		attempts = append(attempts, &a)
	}
	return attempts, rows.Err()
}
