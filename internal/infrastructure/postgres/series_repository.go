package postgres

import (
	"context"
	"fmt"

	"github.com/facturio/facturio-api/internal/domain/entity"
	"github.com/facturio/facturio-api/internal/domain/repository"
)

var _ repository.SeriesRepository = (*SeriesRepo)(nil)

// SeriesRepo asigna secuenciales sobre PostgreSQL. El upsert con RETURNING es
// un increment-and-read atómico a nivel de fila: dos ventas concurrentes de la
// misma serie se serializan en el lock de la fila y nunca comparten número.
type SeriesRepo struct {
	q Querier
}

// NewSeriesRepository construye el adaptador. Pasar pool o tx (Querier).
func NewSeriesRepository(q Querier) *SeriesRepo {
	return &SeriesRepo{q: q}
}

// NextSequential devuelve el siguiente número de la serie. Los números
// asignados no se reciclan aunque el envío posterior falle.
func (r *SeriesRepo) NextSequential(ctx context.Context, ref entity.SequenceRef) (int64, error) {
	query := `
		INSERT INTO numbering_series (company_id, establishment, emission_point, doc_type, last_value)
		VALUES ($1, $2, $3, $4, 1)
		ON CONFLICT (company_id, establishment, emission_point, doc_type)
		DO UPDATE SET last_value = numbering_series.last_value + 1
		RETURNING last_value`
	var seq int64
	err := r.q.QueryRow(ctx, query, ref.CompanyID, ref.Establishment, ref.EmissionPoint, ref.DocType).Scan(&seq)
	if err != nil {
		return 0, fmt.Errorf("next sequential: %w", err)
	}
	return seq, nil
}
