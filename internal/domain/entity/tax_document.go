package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// Estados del ciclo de vida de un documento tributario electrónico.
//
//	DRAFT → KEYED → SIGNED → SUBMITTING → RECEIVED ⇄ AUTHORIZING → AUTHORIZED | REJECTED
//	SIGNED/SUBMITTING → ERROR (reintentable vía resend)
const (
	StatusDraft       = "DRAFT"       // Guardado para reservar ID y secuencial
	StatusKeyed       = "KEYED"       // Clave de acceso calculada (inmutable desde aquí)
	StatusSigned      = "SIGNED"      // XML firmado, artefactos locales persistidos
	StatusSubmitting  = "SUBMITTING"  // Enviando a la fase de recepción
	StatusReceived    = "RECEIVED"    // Recibido por la autoridad, autorización pendiente
	StatusAuthorizing = "AUTHORIZING" // Consultando la fase de autorización
	StatusAuthorized  = "AUTHORIZED"  // Autorizado (terminal)
	StatusRejected    = "REJECTED"    // Rechazado por la autoridad (terminal)
	StatusError       = "ERROR"       // Firma o autoridad no disponible; reenviable
)

// TaxDocument es la entidad central: un comprobante electrónico emitido una
// sola vez por venta. La clave de acceso, una vez calculada, forma parte de la
// identidad legal del documento y nunca se recalcula. Solo el LifecycleTracker
// muta estado y referencias de recibos.
type TaxDocument struct {
	ID         string
	CompanyID  string
	CustomerID string

	DocType       string // Código de tipo de comprobante (ej: "01" factura)
	Establishment string // 3 dígitos
	EmissionPoint string // 3 dígitos
	Sequential    string // 9 dígitos con ceros a la izquierda; estrictamente creciente
	IssueDate     time.Time
	Currency      string // ej: "USD", "COP"

	NetTotal   decimal.Decimal // Σ subtotales de línea (sin impuestos)
	TaxTotal   decimal.Decimal
	GrandTotal decimal.Decimal // siempre recalculado: NetTotal + TaxTotal

	// Subtotales por tarifa (0%, tarifa general, etc.), base de la invariante
	// grandTotal == Σ(subtotales) + impuestos.
	Subtotals []TaxSubtotal

	AccessKey       string // clave de acceso SRI o referencia provisional DIAN
	TrackID         string // identificador de recepción DIAN (ZipKey)
	AuthorityNumber string // identificador canónico asignado por la autoridad (DIAN)

	Status          string
	AuthorityErrors string // mensajes de rechazo devueltos por la autoridad

	// Referencias de artefactos persistidos ({tenant}/{documentID}/...).
	// SignedXMLRef solo se fija cuando existe una firma real; la copia
	// provisional del modo degradado vive en DegradedXMLRef y nunca se envía
	// a la autoridad.
	SignedXMLRef     string
	DegradedXMLRef   string
	ReceptionRef     string
	AuthorizationRef string
	PrintableRef     string

	StatusChangedAt time.Time
	AuthorizedAt    *time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// TaxSubtotal agrupa base e impuesto por código de tarifa.
type TaxSubtotal struct {
	RateCode  string          // código de tarifa del catálogo (ej: "0", "2", "4")
	Rate      decimal.Decimal // porcentaje (ej: 15)
	Base      decimal.Decimal
	TaxAmount decimal.Decimal
}

// IsTerminal indica si el estado no admite más transiciones automáticas.
// ERROR es "terminal por ahora": sale de él únicamente vía resend.
func IsTerminal(status string) bool {
	return status == StatusAuthorized || status == StatusRejected
}

// SequenceRef identifica la serie de numeración de un documento:
// emisor + establecimiento + punto de emisión + tipo de comprobante.
type SequenceRef struct {
	CompanyID     string
	Establishment string
	EmissionPoint string
	DocType       string
}
