package billing

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/facturio/facturio-api/internal/application/dto"
	"github.com/facturio/facturio-api/internal/domain/entity"
)

// pipelineHarness arma el pipeline completo con fakes y el guion de la
// autoridad inyectado.
type pipelineHarness struct {
	docs      *fakeDocumentRepo
	companies *fakeCompanyRepo
	customers *fakeCustomerRepo
	attempts  *fakeAttemptRepo
	series    *fakeSeriesRepo
	artifacts *memArtifactStore
	authority *scriptedAuthority
	pipeline  *AuthorizationPipeline
	submit    *SubmitSaleUseCase
}

func newHarness(t *testing.T, authority *scriptedAuthority, signer Signer, credentials CredentialResolver) *pipelineHarness {
	t.Helper()

	docs := newFakeDocumentRepo()
	companies := &fakeCompanyRepo{companies: map[string]*entity.Company{"co-1": testCompany()}}
	customers := &fakeCustomerRepo{customers: map[string]*entity.Customer{"cu-1": testCustomer()}}
	attempts := &fakeAttemptRepo{}
	series := newFakeSeriesRepo()
	artifacts := newMemArtifactStore()
	printable := fakePrintable{}
	logger := zerolog.Nop()

	lease := NewDocumentLease()
	tracker := NewLifecycleTracker(docs, attempts, logger)
	fallback := NewDegradedFallback(artifacts, printable, logger)

	pipeline := NewAuthorizationPipeline(
		docs, companies, customers,
		lease, tracker,
		map[string]Serializer{entity.JurisdictionSRI: fakeSerializer{}, entity.JurisdictionDIAN: fakeSerializer{}},
		map[string]AuthorityClient{entity.JurisdictionSRI: authority, entity.JurisdictionDIAN: authority},
		signer, credentials, artifacts, printable, fallback,
		PipelineConfig{
			RequestTimeout:   5 * time.Second,
			RetryBudget:      3,
			RetryBaseDelay:   time.Millisecond,
			DIANTechnicalKey: "fc8eac422eba16e22ffd8c6f94b3f40a6e38162c",
		},
		logger,
	)
	// Código numérico fijo para claves reproducibles.
	pipeline.numericCode = func() string { return "12345678" }

	submit := NewSubmitSaleUseCase(docs, companies, customers, series, attempts, artifacts, NewDocumentBuilder(), pipeline, logger)

	return &pipelineHarness{
		docs: docs, companies: companies, customers: customers,
		attempts: attempts, series: series, artifacts: artifacts,
		authority: authority, pipeline: pipeline, submit: submit,
	}
}

func okAuthority() *scriptedAuthority {
	return &scriptedAuthority{
		receptions: []receptionStep{{result: &ReceptionResult{Outcome: entity.StatusReceived, Raw: []byte("<recibida/>")}}},
		auths: []authorizationStep{{result: &AuthorizationResult{
			Outcome:         entity.StatusAuthorized,
			AuthorityNumber: "AUT-0001",
			AuthorizedAt:    time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC),
			Raw:             []byte("<autorizada/>"),
		}}},
	}
}

func waitRequest() *dto.SubmitSaleRequest {
	req := saleRequest()
	req.Wait = true
	return req
}

func TestSubmit_CaminoFelizAutorizado(t *testing.T) {
	h := newHarness(t, okAuthority(), fakeSigner{}, fakeCredentials{})
	ctx := context.Background()

	res, err := h.submit.Submit(ctx, "co-1", waitRequest())
	require.NoError(t, err)

	assert.Equal(t, entity.StatusAuthorized, res.Status)
	assert.Len(t, res.AccessKey, 49, "clave de acceso SRI de 49 dígitos")
	assert.NotEmpty(t, res.Artifacts.SignedXML)
	assert.NotEmpty(t, res.Artifacts.Reception)
	assert.NotEmpty(t, res.Artifacts.Authorization)
	assert.NotEmpty(t, res.Artifacts.Printable)

	// El XML firmado quedó persistido y es recuperable por referencia.
	signed, err := h.artifacts.Load(ctx, res.Artifacts.SignedXML)
	require.NoError(t, err)
	assert.Contains(t, string(signed), "signed:")
	assert.Contains(t, string(signed), res.AccessKey)

	// Historial: un intento por fase.
	list, err := h.attempts.ListByDocument(ctx, res.DocumentID)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, entity.PhaseReception, list[0].Phase)
	assert.Equal(t, entity.PhaseAuthorization, list[1].Phase)
}

func TestSubmit_AutoridadCaidaDegradaAError(t *testing.T) {
	down := &scriptedAuthority{
		receptions: []receptionStep{{err: fmt.Errorf("conexión rechazada")}},
		auths:      []authorizationStep{{err: fmt.Errorf("conexión rechazada")}},
	}
	h := newHarness(t, down, fakeSigner{}, fakeCredentials{})
	ctx := context.Background()

	res, err := h.submit.Submit(ctx, "co-1", waitRequest())
	require.NoError(t, err, "la caída de la autoridad nunca cruza la frontera del pipeline")

	assert.Equal(t, entity.StatusError, res.Status)
	assert.NotEmpty(t, res.AccessKey, "la clave se calculó antes del envío")
	assert.NotEmpty(t, res.Artifacts.SignedXML, "los artefactos locales quedan aunque la autoridad no responda")

	// El presupuesto de reintentos se respetó.
	assert.Equal(t, 3, down.recCalls)
}

func TestResend_DesdeErrorTerminaAutorizado(t *testing.T) {
	down := &scriptedAuthority{
		receptions: []receptionStep{{err: fmt.Errorf("timeout")}},
		auths:      []authorizationStep{{err: fmt.Errorf("timeout")}},
	}
	h := newHarness(t, down, fakeSigner{}, fakeCredentials{})
	ctx := context.Background()

	res, err := h.submit.Submit(ctx, "co-1", waitRequest())
	require.NoError(t, err)
	require.Equal(t, entity.StatusError, res.Status)
	keyBefore := res.AccessKey

	// La autoridad vuelve: el guion ahora acepta.
	h.authority.mu.Lock()
	h.authority.receptions = []receptionStep{{result: &ReceptionResult{Outcome: entity.StatusReceived, Raw: []byte("<recibida/>")}}}
	h.authority.auths = []authorizationStep{{result: &AuthorizationResult{
		Outcome: entity.StatusAuthorized, AuthorityNumber: "AUT-0002", Raw: []byte("<autorizada/>"),
	}}}
	h.authority.recCalls, h.authority.authCalls = 0, 0
	h.authority.mu.Unlock()

	resent, err := h.submit.Resend(ctx, "co-1", res.DocumentID)
	require.NoError(t, err)
	assert.Equal(t, entity.StatusAuthorized, resent.Status)
	assert.Equal(t, keyBefore, resent.AccessKey, "resend jamás recalcula la clave de acceso")
}

func TestResend_AutorizadoEsNoOp(t *testing.T) {
	h := newHarness(t, okAuthority(), fakeSigner{}, fakeCredentials{})
	ctx := context.Background()

	res, err := h.submit.Submit(ctx, "co-1", waitRequest())
	require.NoError(t, err)
	require.Equal(t, entity.StatusAuthorized, res.Status)

	resent, err := h.submit.Resend(ctx, "co-1", res.DocumentID)
	require.NoError(t, err)
	assert.Equal(t, entity.StatusAuthorized, resent.Status)

	// No hubo llamadas adicionales a la autoridad.
	assert.Equal(t, 1, h.authority.recCalls)
	assert.Equal(t, 1, h.authority.authCalls)
}

func TestSubmit_RechazoEnRecepcionEsTerminal(t *testing.T) {
	rejecting := &scriptedAuthority{
		receptions: []receptionStep{{result: &ReceptionResult{
			Outcome:  entity.StatusRejected,
			Raw:      []byte("<devuelta/>"),
			Messages: []string{"ERROR 45: secuencial registrado"},
		}}},
		auths: []authorizationStep{{err: fmt.Errorf("no debe llamarse")}},
	}
	h := newHarness(t, rejecting, fakeSigner{}, fakeCredentials{})
	ctx := context.Background()

	res, err := h.submit.Submit(ctx, "co-1", waitRequest())
	require.NoError(t, err)
	assert.Equal(t, entity.StatusRejected, res.Status)
	assert.Equal(t, 0, rejecting.authCalls, "rechazado en recepción: no se consulta autorización")

	// Terminal: el reenvío se rechaza con conflicto.
	_, err = h.submit.Resend(ctx, "co-1", res.DocumentID)
	assert.Error(t, err)

	doc, err := h.docs.GetByID(ctx, res.DocumentID)
	require.NoError(t, err)
	assert.Contains(t, doc.AuthorityErrors, "ERROR 45")
}

func TestSubmit_CredencialInvalidaEmiteDegradado(t *testing.T) {
	h := newHarness(t, okAuthority(), fakeSigner{}, fakeCredentials{err: errors.New("certificado vencido")})
	ctx := context.Background()

	res, err := h.submit.Submit(ctx, "co-1", waitRequest())
	require.NoError(t, err)

	assert.Equal(t, entity.StatusError, res.Status, "sin firma no hay envío")
	assert.Equal(t, 0, h.authority.recCalls, "nunca se envía un documento sin firmar")
	assert.Empty(t, res.Artifacts.SignedXML, "sin firma real no hay referencia de XML firmado")
	require.NotEmpty(t, res.Artifacts.DegradedXML, "queda la copia degradada")

	degraded, err := h.artifacts.Load(ctx, res.Artifacts.DegradedXML)
	require.NoError(t, err)
	assert.Contains(t, string(degraded), degradedNotice, "la copia degradada lleva la leyenda")
	assert.NotContains(t, string(degraded), "signed:", "la copia degradada no está firmada")
}

func TestResend_CredencialRenovadaFirmaYAutoriza(t *testing.T) {
	creds := &switchableCredentials{err: errors.New("certificado vencido")}
	h := newHarness(t, okAuthority(), fakeSigner{}, creds)
	ctx := context.Background()

	res, err := h.submit.Submit(ctx, "co-1", waitRequest())
	require.NoError(t, err)
	require.Equal(t, entity.StatusError, res.Status)
	require.Empty(t, res.Artifacts.SignedXML)
	keyBefore := res.AccessKey

	// Certificado renovado: el reenvío debe firmar de verdad y completar el
	// ciclo, no despachar la copia degradada.
	creds.set(nil)

	resent, err := h.submit.Resend(ctx, "co-1", res.DocumentID)
	require.NoError(t, err, "el reenvío no debe chocar contra su propio lease")
	assert.Equal(t, entity.StatusAuthorized, resent.Status)
	assert.Equal(t, keyBefore, resent.AccessKey, "la clave calculada en el primer ciclo se conserva")

	doc, err := h.docs.GetByID(ctx, res.DocumentID)
	require.NoError(t, err)
	require.NotEmpty(t, doc.SignedXMLRef, "tras el reenvío existe una firma real")
	signed, err := h.artifacts.Load(ctx, doc.SignedXMLRef)
	require.NoError(t, err)
	assert.Contains(t, string(signed), "signed:")
	assert.NotContains(t, string(signed), degradedNotice)

	// Lo que viajó a la autoridad fue el XML firmado, nunca la copia anotada.
	assert.Contains(t, string(h.authority.lastPayload), "signed:")
	assert.NotContains(t, string(h.authority.lastPayload), degradedNotice)
}

func TestResend_SinClaveRetomaDesdeLaClave(t *testing.T) {
	h := newHarness(t, okAuthority(), fakeSigner{}, fakeCredentials{})
	h.companies.companies["co-1"].Environment = "9"
	ctx := context.Background()

	res, err := h.submit.Submit(ctx, "co-1", waitRequest())
	require.NoError(t, err)
	require.Equal(t, entity.StatusError, res.Status)
	require.Empty(t, res.AccessKey, "el ciclo degradó antes de obtener la clave")

	// Ambiente corregido: el reenvío calcula la clave y completa el ciclo.
	h.companies.companies["co-1"].Environment = entity.EnvironmentTest

	resent, err := h.submit.Resend(ctx, "co-1", res.DocumentID)
	require.NoError(t, err)
	assert.Equal(t, entity.StatusAuthorized, resent.Status)
	assert.Len(t, resent.AccessKey, 49, "la clave se generó en el reenvío")
}

func TestSubmit_AmbientePruebasEnClave(t *testing.T) {
	h := newHarness(t, okAuthority(), fakeSigner{}, fakeCredentials{})
	ctx := context.Background()

	res, err := h.submit.Submit(ctx, "co-1", waitRequest())
	require.NoError(t, err)
	require.Len(t, res.AccessKey, 49)

	// Dígito de ambiente: posición 24 de la clave (fecha 8 + tipo 2 + RUC 13).
	assert.Equal(t, byte('1'), res.AccessKey[23],
		"una empresa en habilitación emite con ambiente 1 (pruebas SRI)")
}

func TestSubmit_SondeoAcotadoEnProceso(t *testing.T) {
	pending := &scriptedAuthority{
		receptions: []receptionStep{{result: &ReceptionResult{Outcome: entity.StatusReceived, Raw: []byte("<recibida/>")}}},
		auths: []authorizationStep{{result: &AuthorizationResult{
			Outcome: entity.StatusReceived, Raw: []byte("<en-proceso/>"),
		}}},
	}
	h := newHarness(t, pending, fakeSigner{}, fakeCredentials{})
	ctx := context.Background()

	res, err := h.submit.Submit(ctx, "co-1", waitRequest())
	require.NoError(t, err)

	assert.Equal(t, entity.StatusError, res.Status, "agotado el sondeo queda en ERROR para reenvío")
	assert.Equal(t, 3, pending.authCalls, "el sondeo respeta el presupuesto")
}

func TestSubmit_SecuencialesEstrictamenteCrecientes(t *testing.T) {
	h := newHarness(t, okAuthority(), fakeSigner{}, fakeCredentials{})
	ctx := context.Background()

	const ventas = 20
	var wg sync.WaitGroup
	var mu sync.Mutex
	var ids []string

	for i := 0; i < ventas; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := h.submit.Submit(ctx, "co-1", waitRequest())
			if err != nil {
				t.Errorf("submit concurrente: %v", err)
				return
			}
			mu.Lock()
			ids = append(ids, res.DocumentID)
			mu.Unlock()
		}()
	}
	wg.Wait()
	require.Len(t, ids, ventas)

	var seqs []string
	for _, id := range ids {
		doc, err := h.docs.GetByID(ctx, id)
		require.NoError(t, err)
		seqs = append(seqs, doc.Sequential)
	}
	sort.Strings(seqs)
	for i := 0; i < len(seqs); i++ {
		assert.Equal(t, fmt.Sprintf("%09d", i+1), seqs[i],
			"los secuenciales deben ser únicos y sin huecos bajo concurrencia")
	}
}

func TestProcess_JurisdiccionDIANUsaReferenciaProvisional(t *testing.T) {
	h := newHarness(t, okAuthority(), fakeSigner{}, fakeCredentials{})
	h.companies.companies["co-1"].Jurisdiction = entity.JurisdictionDIAN
	h.companies.companies["co-1"].TaxID = "900123456"
	ctx := context.Background()

	res, err := h.submit.Submit(ctx, "co-1", waitRequest())
	require.NoError(t, err)

	assert.Equal(t, entity.StatusAuthorized, res.Status)
	assert.Len(t, res.AccessKey, 96, "referencia provisional DIAN: SHA-384 en hexadecimal")

	doc, err := h.docs.GetByID(ctx, res.DocumentID)
	require.NoError(t, err)
	assert.Equal(t, "AUT-0001", doc.AuthorityNumber, "el identificador definitivo se concilia al autorizar")
	assert.NotEqual(t, doc.AuthorityNumber, doc.AccessKey)
}
