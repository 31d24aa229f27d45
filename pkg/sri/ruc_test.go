package sri_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/facturio/facturio-api/pkg/sri"
)

// ──────────────────────────────────────────────────────────────────────────────
// Vectores calculados a mano contra el algoritmo oficial del Registro Único
// de Contribuyentes:
//
//	Persona natural  (tercer dígito < 6): módulo 10, coeficientes 2,1,2,1,...
//	  1710034065 → suma ajustada 25 → dígito (10 - 5) % 10 = 5
//	Sociedad privada (tercer dígito 9):  módulo 11, pesos 4,3,2,7,6,5,4,3,2
//	  179001691  → suma 101 → residuo 2 → dígito 11 - 2 = 9
//	Entidad pública  (tercer dígito 6):  módulo 11, pesos 3,2,7,6,5,4,3,2
//	  17600015   → suma 72  → residuo 6 → dígito 11 - 6 = 5
// ──────────────────────────────────────────────────────────────────────────────

func TestValidateRUC_Validos(t *testing.T) {
	casos := map[string]string{
		"persona natural":  "1710034065001",
		"sociedad privada": "1790016919001",
		"entidad pública":  "1760001550001",
	}

	for nombre, ruc := range casos {
		t.Run(nombre, func(t *testing.T) {
			assert.NoError(t, sri.ValidateRUC(ruc),
				"el RUC de referencia debe validar sin error")
		})
	}
}

func TestValidateRUC_AceptaSeparadores(t *testing.T) {
	require.NoError(t, sri.ValidateRUC("1710034065-001"),
		"los guiones no son dígitos y deben ignorarse")
}

func TestValidateRUC_Invalidos(t *testing.T) {
	casos := map[string]string{
		"longitud incorrecta":           "123",
		"provincia fuera de rango":      "2510034065001",
		"sufijo de establecimiento 000": "1710034065000",
		"tercer dígito no soportado":    "1780011670001",
		"verificador natural erróneo":   "1710034066001",
		"verificador privado erróneo":   "1790016918001",
		"verificador público erróneo":   "1760001540001",
	}

	for nombre, ruc := range casos {
		t.Run(nombre, func(t *testing.T) {
			assert.Error(t, sri.ValidateRUC(ruc),
				"un RUC malformado debe ser rechazado")
		})
	}
}
