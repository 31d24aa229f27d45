package sri

import (
	"fmt"
	"unicode"
)

// Pesos módulo 11 para RUC de sociedades privadas (tercer dígito 9).
var privateWeights = [9]int{4, 3, 2, 7, 6, 5, 4, 3, 2}

// Pesos módulo 11 para RUC de entidades públicas (tercer dígito 6).
var publicWeights = [8]int{3, 2, 7, 6, 5, 4, 3, 2}

// ValidateRUC valida un RUC ecuatoriano de 13 dígitos: provincia válida,
// sufijo de establecimiento y dígito verificador según el tipo de
// contribuyente (natural: módulo 10; sociedad/pública: módulo 11).
func ValidateRUC(taxID string) error {
	digits := extractDigits(taxID)
	if len(digits) != 13 {
		return fmt.Errorf("sri: RUC debe tener 13 dígitos, se encontraron %d", len(digits))
	}
	province := int(digits[0]-'0')*10 + int(digits[1]-'0')
	if province < 1 || province > 24 {
		return fmt.Errorf("sri: código de provincia %02d fuera de rango", province)
	}
	if string(digits[10:]) == "000" {
		return fmt.Errorf("sri: sufijo de establecimiento no puede ser 000")
	}

	third := digits[2] - '0'
	switch {
	case third < 6:
		return validateNaturalPerson(digits)
	case third == 6:
		return validatePublic(digits)
	case third == 9:
		return validatePrivate(digits)
	default:
		return fmt.Errorf("sri: tercer dígito %d inválido para RUC", third)
	}
}

// validateNaturalPerson aplica módulo 10 con coeficientes 2,1,2,1,... sobre
// los 9 primeros dígitos; productos de dos cifras restan 9.
func validateNaturalPerson(digits []byte) error {
	sum := 0
	for i := 0; i < 9; i++ {
		d := int(digits[i] - '0')
		if i%2 == 0 {
			d *= 2
			if d > 9 {
				d -= 9
			}
		}
		sum += d
	}
	expected := (10 - sum%10) % 10
	if int(digits[9]-'0') != expected {
		return fmt.Errorf("sri: dígito verificador inválido: esperado %d, recibido %c", expected, digits[9])
	}
	return nil
}

func validatePublic(digits []byte) error {
	sum := 0
	for i, w := range publicWeights {
		sum += int(digits[i]-'0') * w
	}
	return checkMod11(sum, digits[8])
}

func validatePrivate(digits []byte) error {
	sum := 0
	for i, w := range privateWeights {
		sum += int(digits[i]-'0') * w
	}
	return checkMod11(sum, digits[9])
}

func checkMod11(sum int, got byte) error {
	remainder := sum % 11
	expected := 0
	if remainder != 0 {
		expected = 11 - remainder
	}
	if expected == 10 {
		return fmt.Errorf("sri: RUC con residuo inválido (dígito verificador 10)")
	}
	if int(got-'0') != expected {
		return fmt.Errorf("sri: dígito verificador inválido: esperado %d, recibido %c", expected, got)
	}
	return nil
}

func extractDigits(s string) []byte {
	var out []byte
	for _, r := range s {
		if unicode.IsDigit(r) {
			out = append(out, byte(r))
		}
	}
	return out
}
