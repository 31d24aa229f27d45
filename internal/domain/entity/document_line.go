package entity

import "github.com/shopspring/decimal"

// DocumentLine representa una línea de detalle de un comprobante.
// Invariantes: Subtotal = Quantity×UnitPrice − Discount; Total = Subtotal + TaxAmount.
type DocumentLine struct {
	ID          string
	DocumentID  string
	ProductCode string
	Description string
	Quantity    decimal.Decimal
	UnitPrice   decimal.Decimal
	Discount    decimal.Decimal
	RateCode    string          // código de tarifa del catálogo
	TaxRate     decimal.Decimal // porcentaje (ej: 15)
	TaxAmount   decimal.Decimal
	Subtotal    decimal.Decimal
	Total       decimal.Decimal
}
