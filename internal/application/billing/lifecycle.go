package billing

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/facturio/facturio-api/internal/domain"
	"github.com/facturio/facturio-api/internal/domain/entity"
	"github.com/facturio/facturio-api/internal/domain/repository"
)

// allowedTransitions grafo de transiciones válidas del ciclo de vida. Toda
// escritura de estado pasa por el tracker; una transición fuera del grafo es
// un bug del pipeline, no un caso de negocio.
var allowedTransitions = map[string]map[string]bool{
	entity.StatusDraft: {
		entity.StatusKeyed: true,
		entity.StatusError: true,
	},
	entity.StatusKeyed: {
		entity.StatusSigned: true,
		entity.StatusError:  true,
	},
	entity.StatusSigned: {
		entity.StatusSubmitting: true,
		entity.StatusError:      true,
	},
	entity.StatusSubmitting: {
		entity.StatusReceived: true,
		entity.StatusRejected: true,
		entity.StatusError:    true,
	},
	entity.StatusReceived: {
		entity.StatusAuthorizing: true,
	},
	entity.StatusAuthorizing: {
		entity.StatusAuthorized: true,
		entity.StatusRejected:   true,
		entity.StatusReceived:   true,
		entity.StatusError:      true,
	},
	// Desde ERROR el documento retoma en el paso que falló: clave nunca
	// calculada, firma nunca producida o envío. La inmutabilidad de clave y
	// firma existentes la garantiza el pipeline, que solo las genera cuando
	// están ausentes.
	entity.StatusError: {
		entity.StatusKeyed:      true,
		entity.StatusSigned:     true,
		entity.StatusSubmitting: true,
	},
}

// LifecycleTracker es el único punto de escritura de estado del documento.
// Registra además los intentos contra la autoridad como bitácora inmutable.
type LifecycleTracker struct {
	docs     repository.DocumentRepository
	attempts repository.AttemptRepository
	logger   zerolog.Logger
}

func NewLifecycleTracker(docs repository.DocumentRepository, attempts repository.AttemptRepository, logger zerolog.Logger) *LifecycleTracker {
	return &LifecycleTracker{docs: docs, attempts: attempts, logger: logger}
}

// Transition mueve el documento al nuevo estado y lo persiste. La transición
// al mismo estado es un no-op idempotente. Salir de un estado terminal hacia
// otro distinto retorna ErrConflict.
func (t *LifecycleTracker) Transition(ctx context.Context, doc *entity.TaxDocument, newStatus string) error {
	if doc.Status == newStatus {
		return nil
	}
	if entity.IsTerminal(doc.Status) {
		return fmt.Errorf("%w: el documento %s está en estado terminal %s", domain.ErrConflict, doc.ID, doc.Status)
	}
	if !allowedTransitions[doc.Status][newStatus] {
		return fmt.Errorf("%w: transición %s -> %s no permitida", domain.ErrConflict, doc.Status, newStatus)
	}

	now := time.Now()
	prev := doc.Status
	doc.Status = newStatus
	doc.StatusChangedAt = now
	doc.UpdatedAt = now
	if newStatus == entity.StatusAuthorized && doc.AuthorizedAt == nil {
		doc.AuthorizedAt = &now
	}

	if err := t.docs.UpdateStatus(ctx, doc); err != nil {
		// Si la persistencia falla, el documento en memoria conserva el
		// estado previo.
		doc.Status = prev
		return fmt.Errorf("persistiendo transición %s -> %s: %w", prev, newStatus, err)
	}

	t.logger.Info().
		Str("document_id", doc.ID).
		Str("from", prev).
		Str("to", newStatus).
		Msg("transición de estado")
	return nil
}

// RecordAttempt agrega un intento a la bitácora del documento. La bitácora
// nunca se edita ni se borra.
func (t *LifecycleTracker) RecordAttempt(ctx context.Context, doc *entity.TaxDocument, phase string, payload []byte, outcome string, raw []byte, messages []string) {
	sum := sha256.Sum256(payload)
	attempt := &entity.AuthorizationAttempt{
		ID:          uuid.New().String(),
		DocumentID:  doc.ID,
		PayloadHash: hex.EncodeToString(sum[:]),
		Phase:       phase,
		RawResponse: raw,
		Outcome:     outcome,
		Messages:    joinMessages(messages),
		CreatedAt:   time.Now(),
	}
	if err := t.attempts.Append(ctx, attempt); err != nil {
		// Un fallo de bitácora no cambia el destino del documento.
		t.logger.Error().Err(err).
			Str("document_id", doc.ID).
			Str("phase", phase).
			Msg("no se pudo registrar el intento")
	}
}

// ReconcileAuthorityNumber fija el identificador canónico asignado por la
// autoridad. Solo aplica a jurisdicciones donde el identificador definitivo
// llega con la autorización.
func (t *LifecycleTracker) ReconcileAuthorityNumber(doc *entity.TaxDocument, number string) {
	if number == "" || doc.AuthorityNumber == number {
		return
	}
	t.logger.Info().
		Str("document_id", doc.ID).
		Str("authority_number", number).
		Msg("identificador definitivo conciliado")
	doc.AuthorityNumber = number
}
