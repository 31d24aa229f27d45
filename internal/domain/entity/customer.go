package entity

import "time"

// Customer representa el adquiriente de un comprobante.
type Customer struct {
	ID        string
	CompanyID string
	Name      string
	TaxID     string // RUC, cédula o NIT según jurisdicción
	IdentType string // código de tipo de identificación del catálogo
	Email     string
	Phone     string
	Address   string
	CreatedAt time.Time
	UpdatedAt time.Time
}
