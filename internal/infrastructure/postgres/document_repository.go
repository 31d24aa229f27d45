package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/facturio/facturio-api/internal/domain"
	"github.com/facturio/facturio-api/internal/domain/entity"
	"github.com/facturio/facturio-api/internal/domain/repository"
)

var _ repository.DocumentRepository = (*DocumentRepo)(nil)

// DocumentRepo implementación de DocumentRepository sobre PostgreSQL.
// Create es transaccional: cabecera, subtotales y líneas se persisten juntos
// o no se persiste nada.
type DocumentRepo struct {
	pool *pgxpool.Pool
}

// NewDocumentRepository construye el adaptador con el pool.
func NewDocumentRepository(pool *pgxpool.Pool) *DocumentRepo {
	return &DocumentRepo{pool: pool}
}

const documentColumns = `
	id, company_id, customer_id, doc_type, establishment, emission_point,
	sequential, issue_date, currency, net_total, tax_total, grand_total,
	access_key, track_id, authority_number, status, authority_errors,
	signed_xml_ref, degraded_xml_ref, reception_ref, authorization_ref, printable_ref,
	status_changed_at, authorized_at, created_at, updated_at`

// Create persiste el documento completo dentro de una transacción.
func (r *DocumentRepo) Create(ctx context.Context, doc *entity.TaxDocument, lines []*entity.DocumentLine) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	insertHeader := `
		INSERT INTO tax_documents (` + documentColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12,
		        $13, $14, $15, $16, $17, $18, $19, $20, $21, $22, $23, $24, $25, $26)`
	_, err = tx.Exec(ctx, insertHeader,
		doc.ID, doc.CompanyID, doc.CustomerID, doc.DocType, doc.Establishment, doc.EmissionPoint,
		doc.Sequential, doc.IssueDate, doc.Currency, doc.NetTotal, doc.TaxTotal, doc.GrandTotal,
		nullIfEmpty(doc.AccessKey), nullIfEmpty(doc.TrackID), nullIfEmpty(doc.AuthorityNumber),
		doc.Status, nullIfEmpty(doc.AuthorityErrors),
		nullIfEmpty(doc.SignedXMLRef), nullIfEmpty(doc.DegradedXMLRef), nullIfEmpty(doc.ReceptionRef),
		nullIfEmpty(doc.AuthorizationRef), nullIfEmpty(doc.PrintableRef),
		doc.StatusChangedAt, doc.AuthorizedAt, doc.CreatedAt, doc.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: documento o secuencial ya registrado", domain.ErrDuplicate)
		}
		return fmt.Errorf("insert tax document: %w", err)
	}

	insertSubtotal := `
		INSERT INTO tax_subtotals (document_id, rate_code, rate, base, tax_amount)
		VALUES ($1, $2, $3, $4, $5)`
	for _, st := range doc.Subtotals {
		if _, err := tx.Exec(ctx, insertSubtotal, doc.ID, st.RateCode, st.Rate, st.Base, st.TaxAmount); err != nil {
			return fmt.Errorf("insert tax subtotal: %w", err)
		}
	}

	insertLine := `
		INSERT INTO document_lines (id, document_id, product_code, description, quantity,
		                            unit_price, discount, rate_code, tax_rate, tax_amount, subtotal, total)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`
	for _, l := range lines {
		if _, err := tx.Exec(ctx, insertLine,
			l.ID, doc.ID, nullIfEmpty(l.ProductCode), l.Description, l.Quantity,
			l.UnitPrice, l.Discount, l.RateCode, l.TaxRate, l.TaxAmount, l.Subtotal, l.Total,
		); err != nil {
			return fmt.Errorf("insert document line: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// GetByID obtiene el documento con sus subtotales.
func (r *DocumentRepo) GetByID(ctx context.Context, id string) (*entity.TaxDocument, error) {
	query := `SELECT ` + documentColumns + ` FROM tax_documents WHERE id = $1`
	doc, err := scanDocument(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		return nil, err
	}
	if err := r.loadSubtotals(ctx, doc); err != nil {
		return nil, err
	}
	return doc, nil
}

// GetByAccessKey obtiene el documento por su clave de acceso.
func (r *DocumentRepo) GetByAccessKey(ctx context.Context, accessKey string) (*entity.TaxDocument, error) {
	query := `SELECT ` + documentColumns + ` FROM tax_documents WHERE access_key = $1`
	doc, err := scanDocument(r.pool.QueryRow(ctx, query, accessKey))
	if err != nil {
		return nil, err
	}
	if err := r.loadSubtotals(ctx, doc); err != nil {
		return nil, err
	}
	return doc, nil
}

// GetLines obtiene las líneas de detalle en orden de inserción.
func (r *DocumentRepo) GetLines(ctx context.Context, documentID string) ([]*entity.DocumentLine, error) {
	query := `
		SELECT id, document_id, COALESCE(product_code, ''), description, quantity,
		       unit_price, discount, rate_code, tax_rate, tax_amount, subtotal, total
		FROM document_lines WHERE document_id = $1 ORDER BY id`
	rows, err := r.pool.Query(ctx, query, documentID)
	if err != nil {
		return nil, fmt.Errorf("get document lines: %w", err)
	}
	defer rows.Close()

	var lines []*entity.DocumentLine
	for rows.Next() {
		var l entity.DocumentLine
		if err := rows.Scan(
			&l.ID, &l.DocumentID, &l.ProductCode, &l.Description, &l.Quantity,
			&l.UnitPrice, &l.Discount, &l.RateCode, &l.TaxRate, &l.TaxAmount, &l.Subtotal, &l.Total,
		); err != nil {
			return nil, fmt.Errorf("scan document line: %w", err)
		}
		lines = append(lines, &l)
	}
	return lines, rows.Err()
}

// UpdateStatus escribe estado, identificadores y referencias de artefactos.
// Única vía de escritura tras el Create; la usa el LifecycleTracker.
func (r *DocumentRepo) UpdateStatus(ctx context.Context, doc *entity.TaxDocument) error {
	query := `
		UPDATE tax_documents
		SET status            = $2,
		    access_key        = COALESCE($3, access_key),
		    track_id          = COALESCE($4, track_id),
		    authority_number  = COALESCE($5, authority_number),
		    authority_errors  = $6,
		    signed_xml_ref    = COALESCE($7, signed_xml_ref),
		    degraded_xml_ref  = COALESCE($8, degraded_xml_ref),
		    reception_ref     = COALESCE($9, reception_ref),
		    authorization_ref = COALESCE($10, authorization_ref),
		    printable_ref     = COALESCE($11, printable_ref),
		    status_changed_at = $12,
		    authorized_at     = $13,
		    updated_at        = $14
		WHERE id = $1`
	tag, err := r.pool.Exec(ctx, query,
		doc.ID, doc.Status,
		nullIfEmpty(doc.AccessKey), nullIfEmpty(doc.TrackID), nullIfEmpty(doc.AuthorityNumber),
		nullIfEmpty(doc.AuthorityErrors),
		nullIfEmpty(doc.SignedXMLRef), nullIfEmpty(doc.DegradedXMLRef), nullIfEmpty(doc.ReceptionRef),
		nullIfEmpty(doc.AuthorizationRef), nullIfEmpty(doc.PrintableRef),
		doc.StatusChangedAt, doc.AuthorizedAt, doc.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update tax document: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: documento %s", domain.ErrNotFound, doc.ID)
	}
	return nil
}

// ListByCompanyAndStatus lista documentos del emisor, opcionalmente filtrados
// por estado (vacío = todos), con paginación.
func (r *DocumentRepo) ListByCompanyAndStatus(ctx context.Context, companyID, status string, limit, offset int) ([]*entity.TaxDocument, error) {
	query := `SELECT ` + documentColumns + `
		FROM tax_documents
		WHERE company_id = $1 AND ($2 = '' OR status = $2)
		ORDER BY created_at DESC
		LIMIT $3 OFFSET $4`
	rows, err := r.pool.Query(ctx, query, companyID, status, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list tax documents: %w", err)
	}
	defer rows.Close()

	var docs []*entity.TaxDocument
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

func (r *DocumentRepo) loadSubtotals(ctx context.Context, doc *entity.TaxDocument) error {
	query := `
		SELECT rate_code, rate, base, tax_amount
		FROM tax_subtotals WHERE document_id = $1 ORDER BY rate_code`
	rows, err := r.pool.Query(ctx, query, doc.ID)
	if err != nil {
		return fmt.Errorf("get tax subtotals: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var st entity.TaxSubtotal
		if err := rows.Scan(&st.RateCode, &st.Rate, &st.Base, &st.TaxAmount); err != nil {
			return fmt.Errorf("scan tax subtotal: %w", err)
		}
		doc.Subtotals = append(doc.Subtotals, st)
	}
	return rows.Err()
}

type pgxScanner interface {
	Scan(dest ...any) error
}

func scanDocument(row pgxScanner) (*entity.TaxDocument, error) {
	var doc entity.TaxDocument
	var accessKey, trackID, authorityNumber, authorityErrors *string
	var signedRef, degradedRef, receptionRef, authorizationRef, printableRef *string
	err := row.Scan(
		&doc.ID, &doc.CompanyID, &doc.CustomerID, &doc.DocType, &doc.Establishment, &doc.EmissionPoint,
		&doc.Sequential, &doc.IssueDate, &doc.Currency, &doc.NetTotal, &doc.TaxTotal, &doc.GrandTotal,
		&accessKey, &trackID, &authorityNumber, &doc.Status, &authorityErrors,
		&signedRef, &degradedRef, &receptionRef, &authorizationRef, &printableRef,
		&doc.StatusChangedAt, &doc.AuthorizedAt, &doc.CreatedAt, &doc.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("get tax document: %w", err)
	}
	doc.AccessKey = derefStr(accessKey)
	doc.TrackID = derefStr(trackID)
	doc.AuthorityNumber = derefStr(authorityNumber)
	doc.AuthorityErrors = derefStr(authorityErrors)
	doc.SignedXMLRef = derefStr(signedRef)
	doc.DegradedXMLRef = derefStr(degradedRef)
	doc.ReceptionRef = derefStr(receptionRef)
	doc.AuthorizationRef = derefStr(authorizationRef)
	doc.PrintableRef = derefStr(printableRef)
	return &doc, nil
}
