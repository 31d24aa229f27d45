package entity

import "time"

// SigningCredential es el certificado de firma de un emisor: bundle PKCS#12
// cifrado + contraseña, con ventana de validez. Propiedad exclusiva de una
// empresa; se carga bajo demanda y se descarta al terminar la operación de
// firma. Nunca se persiste descifrado ni se escribe en logs.
type SigningCredential struct {
	ID         string
	CompanyID  string
	BundlePath string // ruta al .p12/.pfx o al .pem (cert+key)
	KeyPath    string // ruta a la llave privada PEM si va separada
	Passphrase string // contraseña del bundle; nunca loguear
	NotBefore  time.Time
	NotAfter   time.Time
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// ValidAt indica si la credencial está dentro de su ventana de validez.
func (c *SigningCredential) ValidAt(t time.Time) bool {
	if !c.NotBefore.IsZero() && t.Before(c.NotBefore) {
		return false
	}
	if !c.NotAfter.IsZero() && t.After(c.NotAfter) {
		return false
	}
	return true
}
