package entity

import "time"

// Fases del protocolo remoto de dos pasos.
const (
	PhaseReception     = "RECEPTION"
	PhaseAuthorization = "AUTHORIZATION"
)

// AuthorizationAttempt es un registro append-only por ciclo de envío.
// Un documento puede acumular muchos intentos (resend); el estado "actual"
// del documento se deriva siempre del último intento terminal.
type AuthorizationAttempt struct {
	ID          string
	DocumentID  string
	PayloadHash string // SHA-256 hex del payload firmado enviado
	Phase       string // ver constantes Phase*
	RawResponse []byte // respuesta cruda de la autoridad (XML), por fase
	Outcome     string // estado resultante (StatusReceived, StatusAuthorized, ...)
	Messages    string // mensajes normalizados de la autoridad
	CreatedAt   time.Time
}
