// Package sri contiene catálogos y validaciones alineados a la Ficha Técnica
// de Comprobantes Electrónicos del SRI (Ecuador).
package sri

// =============================================================================
// Tabla 3 - Tipos de comprobante
// =============================================================================

const (
	DocTypeInvoice        = "01" // Factura
	DocTypeCreditNote     = "04" // Nota de crédito
	DocTypeDebitNote      = "05" // Nota de débito
	DocTypeRemissionGuide = "06" // Guía de remisión
	DocTypeWithholding    = "07" // Comprobante de retención
)

// ValidDocTypes contiene los tipos de comprobante soportados por el motor.
var ValidDocTypes = map[string]bool{
	DocTypeInvoice:    true,
	DocTypeCreditNote: true,
	DocTypeDebitNote:  true,
}

// =============================================================================
// Tabla 6 - Tipos de identificación del comprador
// =============================================================================

const (
	IdentTypeRUC           = "04" // RUC
	IdentTypeCedula        = "05" // Cédula
	IdentTypePassport      = "06" // Pasaporte
	IdentTypeFinalConsumer = "07" // Consumidor final (ventas sin identificar)
)

// FinalConsumerTaxID identificación genérica del consumidor final.
const FinalConsumerTaxID = "9999999999999"

// RequiresBuyerIdentification indica si el tipo de comprobante exige
// identificación del adquiriente. El consumidor final solo aplica a facturas.
func RequiresBuyerIdentification(docType string) bool {
	return docType != DocTypeInvoice
}

// =============================================================================
// Tabla 17 - Códigos de tarifa de IVA (codigoPorcentaje)
// =============================================================================

const (
	RateCodeZero       = "0" // 0%
	RateCodeTwelve     = "2" // 12% (tarifa histórica)
	RateCodeFifteen    = "4" // 15% (tarifa general vigente)
	RateCodeExempt     = "6" // No objeto de impuesto
	RateCodeExonerated = "7" // Exento de IVA
)

// ValidRateCodes contiene los códigos de tarifa reconocidos. El builder
// rechaza líneas cuya tarifa no resuelva a un código del catálogo.
var ValidRateCodes = map[string]bool{
	RateCodeZero:       true,
	RateCodeTwelve:     true,
	RateCodeFifteen:    true,
	RateCodeExempt:     true,
	RateCodeExonerated: true,
}

// =============================================================================
// Código de impuesto (codigo dentro de totalImpuesto/impuesto)
// =============================================================================

const (
	TaxCodeIVA  = "2" // IVA
	TaxCodeICE  = "3" // ICE
	TaxCodeIRBP = "5" // IRBPNR
)

// ObligadoContabilidad valores permitidos en infoFactura.
const (
	AccountingYes = "SI"
	AccountingNo  = "NO"
)
