// Package sri: cálculo de la clave de acceso del comprobante electrónico SRI
// (Ecuador, Ficha Técnica de Comprobantes Electrónicos). Función pura: mismos
// parámetros producen byte a byte la misma clave, incluido el dígito
// verificador módulo 11. La clave se calcula antes de firmar porque viaja
// dentro del payload firmado.
package sri

import (
	"fmt"
	"strings"
	"time"
)

// Tipos de emisión del SRI.
const (
	EmissionNormal      = "1" // Emisión normal
	EmissionContingency = "2" // Emisión por contingencia (indisponibilidad)
)

// KeyParams contiene los datos para construir la clave de acceso en el orden
// exigido por el SRI.
type KeyParams struct {
	IssueDate     time.Time // fecha de emisión; se serializa DDMMYYYY
	DocType       string    // tipo de comprobante (2 dígitos, ej: "01")
	TaxID         string    // RUC del emisor, solo dígitos
	Environment   string    // "1" pruebas, "2" producción
	Establishment string    // 3 dígitos
	EmissionPoint string    // 3 dígitos
	Sequential    string    // 9 dígitos con ceros a la izquierda
	NumericCode   string    // código numérico de 8 dígitos (relleno opaco)
	EmissionType  string    // ver constantes Emission*
}

// KeyGenerator calcula claves de acceso. Sin estado: reutilizable y seguro
// para uso concurrente.
type KeyGenerator struct{}

// NewKeyGenerator crea el generador.
func NewKeyGenerator() *KeyGenerator {
	return &KeyGenerator{}
}

// Generate construye la cadena base (fecha + tipo + RUC + ambiente +
// establecimiento + punto + secuencial + código numérico + tipo de emisión)
// y le añade el dígito verificador módulo 11.
func (g *KeyGenerator) Generate(p *KeyParams) (string, error) {
	if p == nil {
		return "", fmt.Errorf("sri: KeyParams es obligatorio")
	}
	if p.IssueDate.IsZero() {
		return "", fmt.Errorf("sri: fecha de emisión es obligatoria")
	}
	taxID := onlyDigits(p.TaxID)
	if taxID == "" {
		return "", fmt.Errorf("sri: RUC del emisor es obligatorio")
	}
	if len(p.DocType) != 2 || !isDigits(p.DocType) {
		return "", fmt.Errorf("sri: tipo de comprobante inválido %q (2 dígitos)", p.DocType)
	}
	if p.Environment != "1" && p.Environment != "2" {
		return "", fmt.Errorf("sri: ambiente inválido %q (usar '1' o '2')", p.Environment)
	}
	if len(p.Establishment) != 3 || !isDigits(p.Establishment) {
		return "", fmt.Errorf("sri: establecimiento inválido %q (3 dígitos)", p.Establishment)
	}
	if len(p.EmissionPoint) != 3 || !isDigits(p.EmissionPoint) {
		return "", fmt.Errorf("sri: punto de emisión inválido %q (3 dígitos)", p.EmissionPoint)
	}
	if len(p.Sequential) != 9 || !isDigits(p.Sequential) {
		return "", fmt.Errorf("sri: secuencial inválido %q (9 dígitos)", p.Sequential)
	}
	if len(p.NumericCode) != 8 || !isDigits(p.NumericCode) {
		return "", fmt.Errorf("sri: código numérico inválido %q (8 dígitos)", p.NumericCode)
	}
	emissionType := p.EmissionType
	if emissionType == "" {
		emissionType = EmissionNormal
	}
	if len(emissionType) != 1 || !isDigits(emissionType) {
		return "", fmt.Errorf("sri: tipo de emisión inválido %q", emissionType)
	}

	base := p.IssueDate.Format("02012006") +
		p.DocType +
		taxID +
		p.Environment +
		p.Establishment +
		p.EmissionPoint +
		p.Sequential +
		p.NumericCode +
		emissionType

	check, err := CheckDigit(base)
	if err != nil {
		return "", err
	}
	return base + string(rune('0'+check)), nil
}

// CheckDigit calcula el dígito verificador módulo 11 de una cadena numérica:
// recorre los dígitos de derecha a izquierda multiplicando por pesos cíclicos
// 2,3,4,5,6,7; dígito = 11 − (suma mod 11), con 11→0 y 10→1.
func CheckDigit(base string) (int, error) {
	if len(base) < 9 || !isDigits(base) {
		return 0, fmt.Errorf("sri: base inválida para dígito verificador (mínimo 9 dígitos numéricos)")
	}
	weight := 2
	sum := 0
	for i := len(base) - 1; i >= 0; i-- {
		sum += int(base[i]-'0') * weight
		weight++
		if weight > 7 {
			weight = 2
		}
	}
	check := 11 - (sum % 11)
	switch check {
	case 11:
		return 0, nil
	case 10:
		return 1, nil
	default:
		return check, nil
	}
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// onlyDigits deja solo dígitos 0-9 (para RUC).
func onlyDigits(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
