package dto

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/facturio/facturio-api/internal/domain/entity"
)

// SaleLine es una línea de la venta finalizada entrante.
type SaleLine struct {
	ProductCode string          `json:"product_code"`
	Description string          `json:"description"`
	Quantity    decimal.Decimal `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	Discount    decimal.Decimal `json:"discount"`
	RateCode    string          `json:"rate_code"` // código de tarifa del catálogo
	TaxRate     decimal.Decimal `json:"tax_rate"`  // porcentaje (ej: 15)
}

// SubmitSaleRequest es la venta finalizada que la capa CRUD externa entrega
// al motor. Los totales esperados son opcionales; si vienen, el builder los
// concilia al centavo contra lo recalculado.
type SubmitSaleRequest struct {
	CustomerID    string           `json:"customer_id"`
	DocType       string           `json:"doc_type"`
	Currency      string           `json:"currency"`
	IssueDate     *time.Time       `json:"issue_date,omitempty"`
	Lines         []SaleLine       `json:"lines"`
	ExpectedTotal *decimal.Decimal `json:"expected_total,omitempty"`
	Wait          bool             `json:"wait"` // true: esperar el ciclo de autorización en línea
}

// ArtifactRefs referencias de artefactos persistidos ({tenant}/{documentID}/...).
// DegradedXML es la copia provisional sin firma del modo degradado.
type ArtifactRefs struct {
	SignedXML     string `json:"signed_xml,omitempty"`
	DegradedXML   string `json:"degraded_xml,omitempty"`
	Reception     string `json:"reception,omitempty"`
	Authorization string `json:"authorization,omitempty"`
	Printable     string `json:"printable,omitempty"`
}

// SubmitResult resultado de submit(sale): el estado puede ser no terminal si
// la venta no esperó el ciclo completo.
type SubmitResult struct {
	DocumentID string       `json:"document_id"`
	Status     string       `json:"status"`
	AccessKey  string       `json:"access_key"`
	Artifacts  ArtifactRefs `json:"artifacts"`
}

// ResendResult resultado de resend(documentId).
type ResendResult struct {
	DocumentID string `json:"document_id"`
	Status     string `json:"status"`
	AccessKey  string `json:"access_key"`
}

// AttemptResponse un intento del historial de autorización.
type AttemptResponse struct {
	Phase     string    `json:"phase"`
	Outcome   string    `json:"outcome"`
	Messages  string    `json:"messages,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// DocumentResponse detalle de un comprobante con su historial de intentos.
type DocumentResponse struct {
	ID              string            `json:"id"`
	CustomerID      string            `json:"customer_id"`
	DocType         string            `json:"doc_type"`
	Number          string            `json:"number"` // estab-punto-secuencial
	IssueDate       time.Time         `json:"issue_date"`
	Currency        string            `json:"currency"`
	NetTotal        decimal.Decimal   `json:"net_total"`
	TaxTotal        decimal.Decimal   `json:"tax_total"`
	GrandTotal      decimal.Decimal   `json:"grand_total"`
	AccessKey       string            `json:"access_key"`
	AuthorityNumber string            `json:"authority_number,omitempty"`
	Status          string            `json:"status"`
	AuthorityErrors string            `json:"authority_errors,omitempty"`
	Artifacts       ArtifactRefs      `json:"artifacts"`
	Attempts        []AttemptResponse `json:"attempts,omitempty"`
}

// NewDocumentResponse mapea la entidad y su historial al DTO de respuesta.
func NewDocumentResponse(doc *entity.TaxDocument, attempts []*entity.AuthorizationAttempt) *DocumentResponse {
	resp := &DocumentResponse{
		ID:              doc.ID,
		CustomerID:      doc.CustomerID,
		DocType:         doc.DocType,
		Number:          doc.Establishment + "-" + doc.EmissionPoint + "-" + doc.Sequential,
		IssueDate:       doc.IssueDate,
		Currency:        doc.Currency,
		NetTotal:        doc.NetTotal,
		TaxTotal:        doc.TaxTotal,
		GrandTotal:      doc.GrandTotal,
		AccessKey:       doc.AccessKey,
		AuthorityNumber: doc.AuthorityNumber,
		Status:          doc.Status,
		AuthorityErrors: doc.AuthorityErrors,
		Artifacts: ArtifactRefs{
			SignedXML:     doc.SignedXMLRef,
			DegradedXML:   doc.DegradedXMLRef,
			Reception:     doc.ReceptionRef,
			Authorization: doc.AuthorizationRef,
			Printable:     doc.PrintableRef,
		},
	}
	for _, a := range attempts {
		resp.Attempts = append(resp.Attempts, AttemptResponse{
			Phase:     a.Phase,
			Outcome:   a.Outcome,
			Messages:  a.Messages,
			CreatedAt: a.CreatedAt,
		})
	}
	return resp
}
