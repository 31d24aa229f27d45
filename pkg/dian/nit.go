package dian

import (
	"fmt"
	"unicode"
)

// Pesos para el dígito de verificación del NIT (Orden Administrativa 4 de
// 1989, DIAN), aplicados a los 9 primeros dígitos de izquierda a derecha.
var nitWeights = [9]int{41, 37, 29, 23, 19, 17, 13, 7, 3}

// ComputeVerificationDigit calcula el dígito de verificación para los 9
// primeros dígitos del NIT. Acepta el NIT con o sin puntos/guiones.
func ComputeVerificationDigit(taxID string) (byte, error) {
	digits := extractDigits(taxID)
	if len(digits) < 9 {
		return 0, fmt.Errorf("dian: se requieren al menos 9 dígitos, se encontraron %d", len(digits))
	}
	var sum int
	for i, d := range digits[:9] {
		sum += int(d-'0') * nitWeights[i]
	}
	remainder := sum % 11
	if remainder == 0 || remainder == 1 {
		return byte('0' + remainder), nil
	}
	return byte('0' + (11 - remainder)), nil
}

// ValidateVerificationDigit valida que el NIT de 10 dígitos (9 base + DV)
// tenga dígito de verificación correcto según el algoritmo módulo 11 DIAN.
func ValidateVerificationDigit(taxID string) error {
	digits := extractDigits(taxID)
	if len(digits) != 10 {
		return fmt.Errorf("dian: NIT con DV debe tener 10 dígitos, se recibieron %d", len(digits))
	}
	expected, err := ComputeVerificationDigit(string(digits))
	if err != nil {
		return err
	}
	if digits[9] != expected {
		return fmt.Errorf("dian: dígito de verificación inválido: esperado %c, recibido %c", expected, digits[9])
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
