package domain

import "errors"

// Errores de dominio (sin dependencias externas).
var (
	ErrNotFound     = errors.New("recurso no encontrado")
	ErrInvalidInput = errors.New("entrada inválida")
	ErrDuplicate    = errors.New("recurso duplicado")
	ErrUnauthorized = errors.New("no autorizado")
	ErrForbidden    = errors.New("acceso denegado")
	ErrConflict     = errors.New("conflicto con el estado actual")
)

// Taxonomía del pipeline de autorización. Determina reintentos:
// validación nunca se reintenta; credencial/firma activan el fallback;
// transporte se reintenta con backoff. El rechazo de la autoridad no es un
// error sino un resultado terminal (StatusRejected).
var (
	ErrValidation            = errors.New("documento inválido: no supera la validación")
	ErrCredentialUnavailable = errors.New("credencial de firma no disponible")
	ErrSigningFailed         = errors.New("operación criptográfica de firma fallida")
	ErrAuthorityUnreachable  = errors.New("autoridad tributaria no disponible")
	ErrAuthorityTimeout      = errors.New("timeout consultando la autoridad tributaria")
	ErrDocumentBusy          = errors.New("el documento ya está siendo procesado")
)
