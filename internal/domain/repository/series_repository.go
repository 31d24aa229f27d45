package repository

import (
	"context"

	"github.com/facturio/facturio-api/internal/domain/entity"
)

// SeriesRepository asigna secuenciales por serie (emisor + establecimiento +
// punto de emisión + tipo de comprobante). NextSequential debe ser un
// increment-and-read atómico: dos ventas concurrentes jamás reciben el mismo
// número, y un número asignado nunca se recicla aunque el envío sea rechazado.
type SeriesRepository interface {
	NextSequential(ctx context.Context, ref entity.SequenceRef) (int64, error)
}
