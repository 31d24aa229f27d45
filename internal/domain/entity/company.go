package entity

import "time"

// Jurisdicciones soportadas por el motor de autorización.
// Determinan el algoritmo de clave y el cliente de autoridad a usar.
const (
	JurisdictionSRI  = "SRI"  // Ecuador: clave de acceso módulo 11, WS recepción/autorización
	JurisdictionDIAN = "DIAN" // Colombia: identificador asignado por la autoridad (TrackID → CUFE)
)

// Ambientes de la autoridad tributaria (convención SRI: 1 pruebas, 2 producción).
const (
	EnvironmentTest       = "1" // Pruebas / habilitación
	EnvironmentProduction = "2" // Producción
)

// Company representa un emisor/tenant del sistema. Cada empresa tiene su propio
// certificado de firma, ambiente y series de numeración; nunca se comparten.
type Company struct {
	ID            string
	LegalName     string
	TradeName     string
	TaxID         string // RUC (Ecuador) o NIT (Colombia), solo dígitos
	Address       string
	Phone         string
	Email         string
	Establishment string // Código de establecimiento (3 dígitos, ej: "001")
	EmissionPoint string // Código de punto de emisión (3 dígitos, ej: "001")
	Jurisdiction  string // ver constantes Jurisdiction*
	Environment   string // ver constantes Environment*
	CredentialID  string // referencia a SigningCredential; vacío = sin certificado
	Status        string // active, suspended, inactive
	CreatedAt     time.Time
	UpdatedAt     time.Time
}
