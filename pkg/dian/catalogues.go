// Package dian contiene catálogos y validaciones del Anexo Técnico de
// Factura Electrónica de Venta DIAN (Colombia) usados por la jurisdicción
// DIAN del motor de autorización.
package dian

// Tabla 3 - Tipos de identificación.
const (
	IdentificationTypeNIT = "31" // NIT - requiere dígito de verificación
	IdentificationTypeCC  = "13" // Cédula de ciudadanía
)

// Tabla 11 - Tipos de impuesto.
const (
	TaxCodeIVA = "01" // IVA
	TaxCodeINC = "04" // Impuesto Nacional al Consumo
	TaxCodeICA = "03" // ICA
)

// Tabla 6 - Unidades de medida (códigos UNECE de uso frecuente).
const (
	UnitUnit     = "94"  // Unidad
	UnitKilogram = "KGM" // Kilogramo
	UnitLitre    = "LTR" // Litro
	UnitHour     = "HUR" // Hora
)
