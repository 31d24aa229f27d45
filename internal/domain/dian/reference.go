// Package dian: referencia provisional del comprobante para la jurisdicción
// DIAN (Colombia). A diferencia del SRI, el identificador canónico lo asigna
// la autoridad al aceptar el documento; hasta entonces el comprobante viaja
// con esta referencia local (CUFE auto-calculado, SHA-384 según Anexo Técnico
// 1.9). El LifecycleTracker concilia ambos valores al autorizar.
package dian

import (
	"crypto/sha512"
	"encoding/hex"
	"fmt"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

// Códigos de impuesto DIAN que participan en la cadena de la referencia.
const (
	TaxIVA         = "01"
	TaxImpoconsumo = "04"
	TaxICA         = "03"
)

// ReferenceParams contiene los datos de la referencia provisional en el orden
// estricto exigido por la DIAN.
type ReferenceParams struct {
	Number       string          // número de comprobante (prefijo + secuencial, sin espacios)
	IssueDate    string          // fecha de emisión YYYY-MM-DD
	NetTotal     decimal.Decimal // valor total sin impuestos
	IVA          decimal.Decimal // total IVA (código 01)
	Impoconsumo  decimal.Decimal // total impoconsumo (código 04)
	ICA          decimal.Decimal // total ICA (código 03)
	GrandTotal   decimal.Decimal // valor total a pagar
	IssuerTaxID  string          // NIT del emisor, solo dígitos
	BuyerTaxID   string          // identificación del adquiriente, solo dígitos
	TechnicalKey string          // clave técnica de la resolución de facturación
	Environment  string          // "1" pruebas, "2" producción
}

// ReferenceCalculator calcula la referencia provisional DIAN. Función pura.
type ReferenceCalculator struct{}

// NewReferenceCalculator crea el servicio.
func NewReferenceCalculator() *ReferenceCalculator {
	return &ReferenceCalculator{}
}

var spaces = regexp.MustCompile(`\s+`)

// Calculate genera la referencia (hash hexadecimal SHA-384) a partir de los
// parámetros. Cadena sin separadores: Number + IssueDate + NetTotal + 01 +
// IVA + 04 + Impoconsumo + 03 + ICA + GrandTotal + IssuerTaxID + BuyerTaxID +
// TechnicalKey + Environment. Montos con punto decimal y dos decimales.
func (c *ReferenceCalculator) Calculate(p *ReferenceParams) (string, error) {
	if p == nil {
		return "", fmt.Errorf("dian: ReferenceParams es obligatorio")
	}
	number := spaces.ReplaceAllString(strings.TrimSpace(p.Number), "")
	if number == "" {
		return "", fmt.Errorf("dian: Number es obligatorio")
	}
	if p.IssueDate == "" {
		return "", fmt.Errorf("dian: IssueDate es obligatorio (YYYY-MM-DD)")
	}
	issuer := onlyDigits(p.IssuerTaxID)
	buyer := onlyDigits(p.BuyerTaxID)
	if issuer == "" {
		return "", fmt.Errorf("dian: IssuerTaxID es obligatorio")
	}
	if buyer == "" {
		return "", fmt.Errorf("dian: BuyerTaxID es obligatorio")
	}
	if p.TechnicalKey == "" {
		return "", fmt.Errorf("dian: TechnicalKey es obligatoria")
	}
	env := p.Environment
	if env == "" {
		env = "1"
	}

	cadena := number +
		p.IssueDate +
		formatAmount(p.NetTotal) +
		TaxIVA + formatAmount(p.IVA) +
		TaxImpoconsumo + formatAmount(p.Impoconsumo) +
		TaxICA + formatAmount(p.ICA) +
		formatAmount(p.GrandTotal) +
		issuer +
		buyer +
		p.TechnicalKey +
		env

	hash := sha512.Sum384([]byte(cadena))
	return hex.EncodeToString(hash[:]), nil
}

// formatAmount: sin separador de miles, punto decimal, 2 decimales (ej: 1500.00).
func formatAmount(d decimal.Decimal) string {
	return d.Round(2).StringFixed(2)
}

func onlyDigits(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
