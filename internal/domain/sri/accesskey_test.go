package sri_test

import (
	"fmt"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/facturio/facturio-api/internal/domain/sri"
)

// ──────────────────────────────────────────────────────────────────────────────
// TestGenerate_VectorExacto valida que la clave de acceso coincide byte a byte
// con el vector de referencia calculado a mano (pesos 2..7 de derecha a
// izquierda, suma 451, 451 mod 11 = 0 → dígito 11 → caso especial → 0).
//
// Este test es el "canario en la mina" de la integración SRI: si alguien
// modifica el orden de concatenación, el formato de fecha o los pesos del
// módulo 11, el test falla inmediatamente.
//
//	Base = 25012024 + 01 + 1234567890 + 1 + 001 + 001 + 000000001 + 12345678 + 1
// ──────────────────────────────────────────────────────────────────────────────

const (
	testTaxID       = "1234567890"
	testDocType     = "01"
	testEstab       = "001"
	testPoint       = "001"
	testSequential  = "000000001"
	testNumericCode = "12345678"
	testKeyExpected = "2501202401123456789010010010000000011234567810"
)

func buildTestParams() *sri.KeyParams {
	return &sri.KeyParams{
		IssueDate:     time.Date(2024, time.January, 25, 0, 0, 0, 0, time.UTC),
		DocType:       testDocType,
		TaxID:         testTaxID,
		Environment:   "1",
		Establishment: testEstab,
		EmissionPoint: testPoint,
		Sequential:    testSequential,
		NumericCode:   testNumericCode,
		EmissionType:  sri.EmissionNormal,
	}
}

func TestGenerate_VectorExacto(t *testing.T) {
	gen := sri.NewKeyGenerator()

	key, err := gen.Generate(buildTestParams())
	require.NoError(t, err, "Generate no debe retornar error con parámetros válidos")
	assert.Equal(t, testKeyExpected, key,
		"la clave de acceso debe coincidir exactamente con el vector de referencia")
	assert.Len(t, key, 46, "clave = 45 dígitos de base + 1 dígito verificador")
}

// TestGenerate_CasoEspecialDiez: cambiar el punto de emisión a 007 desplaza la
// suma ponderada a 463 (463 mod 11 = 1 → dígito 10 → caso especial → 1).
func TestGenerate_CasoEspecialDiez(t *testing.T) {
	gen := sri.NewKeyGenerator()
	p := buildTestParams()
	p.EmissionPoint = "007"

	key, err := gen.Generate(p)
	require.NoError(t, err)
	assert.Equal(t, byte('1'), key[len(key)-1],
		"suma mod 11 = 1 debe producir dígito verificador 1 (caso 10→1)")
}

// TestGenerate_DigitoNormal: secuencial 000000002 produce suma 456
// (456 mod 11 = 5 → dígito 6, sin caso especial).
func TestGenerate_DigitoNormal(t *testing.T) {
	gen := sri.NewKeyGenerator()
	p := buildTestParams()
	p.Sequential = "000000002"

	key, err := gen.Generate(p)
	require.NoError(t, err)
	assert.Equal(t, byte('6'), key[len(key)-1])
}

// TestGenerate_Determinista verifica que la generación es pura: dos llamadas
// con los mismos parámetros producen claves idénticas.
func TestGenerate_Determinista(t *testing.T) {
	gen := sri.NewKeyGenerator()

	key1, err1 := gen.Generate(buildTestParams())
	key2, err2 := gen.Generate(buildTestParams())

	require.NoError(t, err1)
	require.NoError(t, err2)
	assert.Equal(t, key1, key2, "el mismo input siempre debe producir la misma clave")
}

// TestGenerate_AmbienteAfectaClave verifica que producción y pruebas producen
// claves distintas para el mismo comprobante.
func TestGenerate_AmbienteAfectaClave(t *testing.T) {
	gen := sri.NewKeyGenerator()

	pProd := buildTestParams()
	pProd.Environment = "2"

	keyPruebas, _ := gen.Generate(buildTestParams())
	keyProd, _ := gen.Generate(pProd)

	assert.NotEqual(t, keyPruebas, keyProd)
}

// ── Errores de validación ─────────────────────────────────────────────────────

func TestGenerate_ErrorSiNilParams(t *testing.T) {
	gen := sri.NewKeyGenerator()
	_, err := gen.Generate(nil)
	assert.Error(t, err)
}

func TestGenerate_ErrorSiCamposInvalidos(t *testing.T) {
	gen := sri.NewKeyGenerator()

	casos := []struct {
		nombre string
		mutar  func(*sri.KeyParams)
	}{
		{"sin fecha", func(p *sri.KeyParams) { p.IssueDate = time.Time{} }},
		{"RUC vacío", func(p *sri.KeyParams) { p.TaxID = "" }},
		{"tipo de 1 dígito", func(p *sri.KeyParams) { p.DocType = "1" }},
		{"ambiente inválido", func(p *sri.KeyParams) { p.Environment = "3" }},
		{"establecimiento corto", func(p *sri.KeyParams) { p.Establishment = "01" }},
		{"punto no numérico", func(p *sri.KeyParams) { p.EmissionPoint = "0A1" }},
		{"secuencial corto", func(p *sri.KeyParams) { p.Sequential = "123" }},
		{"código de 7 dígitos", func(p *sri.KeyParams) { p.NumericCode = "1234567" }},
	}
	for _, c := range casos {
		t.Run(c.nombre, func(t *testing.T) {
			p := buildTestParams()
			c.mutar(p)
			_, err := gen.Generate(p)
			assert.Error(t, err, "Generate con %s debe retornar error", c.nombre)
		})
	}
}

// TestCheckDigit_RangoValido: para cualquier base numérica de 9 o más
// dígitos, el dígito verificador está siempre en [0,9].
func TestCheckDigit_RangoValido(t *testing.T) {
	rng := rand.New(rand.NewSource(42)) // semilla fija: test reproducible
	for i := 0; i < 5000; i++ {
		n := 9 + rng.Intn(40)
		base := make([]byte, n)
		for j := range base {
			base[j] = byte('0' + rng.Intn(10))
		}
		d, err := sri.CheckDigit(string(base))
		require.NoError(t, err)
		assert.GreaterOrEqual(t, d, 0)
		assert.LessOrEqual(t, d, 9, "base %s produjo dígito fuera de rango", base)
	}
}

func TestCheckDigit_BaseInvalida(t *testing.T) {
	for _, base := range []string{"", "12345678", "12345678X", "1234 6789"} {
		_, err := sri.CheckDigit(base)
		assert.Error(t, err, fmt.Sprintf("base %q debe ser rechazada", base))
	}
}
