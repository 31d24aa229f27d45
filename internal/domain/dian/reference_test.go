package dian_test

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/facturio/facturio-api/internal/domain/dian"
)

// ──────────────────────────────────────────────────────────────────────────────
// TestCalculate_VectorExacto valida el hash SHA-384 de la referencia
// provisional contra un vector calculado manualmente:
//
//	Cadena = "SETP990000000" + "2023-11-29" + "1000000.00" +
//	         "01" + "190000.00" + "04" + "0.00" + "03" + "0.00" +
//	         "1190000.00" + "900123456" + "800987654" +
//	         "fc8eac422eba16e22ffd8c6f94b3f40a6e38162c354673d3a603956897890cd" + "2"
// ──────────────────────────────────────────────────────────────────────────────

const (
	testRefExpected = "f5693bff411776a0c3536bba5df32491df2ffc101a8ff4810cdfc04368b8a9286dc0d5c578fa2344e119d118947a0c4c"

	testIssuer = "900123456"
	testBuyer  = "800987654"
	testTecKey = "fc8eac422eba16e22ffd8c6f94b3f40a6e38162c354673d3a603956897890cd"
	testDate   = "2023-11-29"
	testNumber = "SETP990000000"
	testEnv    = "2"
)

func buildRefParams() *dian.ReferenceParams {
	return &dian.ReferenceParams{
		Number:       testNumber,
		IssueDate:    testDate,
		NetTotal:     decimal.NewFromFloat(1_000_000),
		IVA:          decimal.NewFromFloat(190_000),
		Impoconsumo:  decimal.Zero,
		ICA:          decimal.Zero,
		GrandTotal:   decimal.NewFromFloat(1_190_000),
		IssuerTaxID:  testIssuer,
		BuyerTaxID:   testBuyer,
		TechnicalKey: testTecKey,
		Environment:  testEnv,
	}
}

func TestCalculate_VectorExacto(t *testing.T) {
	calc := dian.NewReferenceCalculator()

	ref, err := calc.Calculate(buildRefParams())
	require.NoError(t, err)
	assert.Equal(t, testRefExpected, ref,
		"la referencia debe coincidir exactamente con el vector SHA-384")
	assert.Len(t, ref, 96, "SHA-384 = 96 caracteres hexadecimales")
}

// TestCalculate_Determinista: dos llamadas con los mismos parámetros producen
// el mismo hash.
func TestCalculate_Determinista(t *testing.T) {
	calc := dian.NewReferenceCalculator()

	ref1, err1 := calc.Calculate(buildRefParams())
	ref2, err2 := calc.Calculate(buildRefParams())

	require.NoError(t, err1)
	require.NoError(t, err2)
	assert.Equal(t, ref1, ref2)
}

// TestCalculate_SensibleAlInput: cambiar número o ambiente cambia el hash.
func TestCalculate_SensibleAlInput(t *testing.T) {
	calc := dian.NewReferenceCalculator()
	base, _ := calc.Calculate(buildRefParams())

	pNum := buildRefParams()
	pNum.Number = "SETP990000001"
	refNum, _ := calc.Calculate(pNum)
	assert.NotEqual(t, base, refNum)

	pEnv := buildRefParams()
	pEnv.Environment = "1"
	refEnv, _ := calc.Calculate(pEnv)
	assert.NotEqual(t, base, refEnv)
}

func TestCalculate_Errores(t *testing.T) {
	calc := dian.NewReferenceCalculator()

	_, err := calc.Calculate(nil)
	assert.Error(t, err)

	p := buildRefParams()
	p.Number = "  "
	_, err = calc.Calculate(p)
	assert.Error(t, err)

	p = buildRefParams()
	p.IssuerTaxID = "sin-digitos"
	_, err = calc.Calculate(p)
	assert.Error(t, err)

	p = buildRefParams()
	p.TechnicalKey = ""
	_, err = calc.Calculate(p)
	assert.Error(t, err)
}
