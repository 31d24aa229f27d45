package sri

import (
	"context"
	"encoding/base64"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/facturio/facturio-api/internal/domain"
	"github.com/facturio/facturio-api/internal/domain/entity"
)

const testAccessKey = "2501202401123456789010010010000000011234567810"

func testDoc() *entity.TaxDocument {
	return &entity.TaxDocument{ID: "doc-1", AccessKey: testAccessKey}
}

func newTestClient(receptionURL, authorizationURL string) *SOAPClient {
	return NewSOAPClient(SOAPClientConfig{
		ReceptionURL:     receptionURL,
		AuthorizationURL: authorizationURL,
		Timeout:          2 * time.Second,
	}, zerolog.Nop())
}

func soapResponse(inner string) string {
	return `<?xml version="1.0" encoding="UTF-8"?>
<soap:Envelope xmlns:soap="http://schemas.xmlsoap.org/soap/envelope/">
  <soap:Body>` + inner + `</soap:Body>
</soap:Envelope>`
}

func TestReceive_Recibida(t *testing.T) {
	signed := []byte("<factura id=\"comprobante\"/>")

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		// El comprobante viaja en Base64 dentro del envelope.
		assert.Contains(t, string(body), base64.StdEncoding.EncodeToString(signed))
		assert.Contains(t, r.Header.Get("Content-Type"), "text/xml")

		w.Write([]byte(soapResponse(`<ns2:validarComprobanteResponse xmlns:ns2="http://ec.gob.sri.ws.recepcion">
			<RespuestaRecepcionComprobante><estado>RECIBIDA</estado></RespuestaRecepcionComprobante>
		</ns2:validarComprobanteResponse>`)))
	}))
	defer srv.Close()

	client := newTestClient(srv.URL, "")
	result, err := client.Receive(context.Background(), signed, testDoc(), nil)
	require.NoError(t, err)
	assert.Equal(t, entity.StatusReceived, result.Outcome)
	assert.NotEmpty(t, result.Raw, "la respuesta cruda se conserva como recibo")
}

func TestReceive_DevueltaConMensajes(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(soapResponse(`<ns2:validarComprobanteResponse xmlns:ns2="http://ec.gob.sri.ws.recepcion">
			<RespuestaRecepcionComprobante>
				<estado>DEVUELTA</estado>
				<comprobantes><comprobante>
					<claveAcceso>` + testAccessKey + `</claveAcceso>
					<mensajes><mensaje>
						<identificador>45</identificador>
						<mensaje>ERROR SECUENCIAL REGISTRADO</mensaje>
						<tipo>ERROR</tipo>
					</mensaje></mensajes>
				</comprobante></comprobantes>
			</RespuestaRecepcionComprobante>
		</ns2:validarComprobanteResponse>`)))
	}))
	defer srv.Close()

	client := newTestClient(srv.URL, "")
	result, err := client.Receive(context.Background(), []byte("<x/>"), testDoc(), nil)
	require.NoError(t, err, "un rechazo de negocio no es un error de transporte")
	assert.Equal(t, entity.StatusRejected, result.Outcome)
	require.NotEmpty(t, result.Messages)
	assert.Contains(t, result.Messages[0], "SECUENCIAL REGISTRADO")
}

func TestReceive_ClaveYaRegistradaEsRecepcion(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(soapResponse(`<ns2:validarComprobanteResponse xmlns:ns2="http://ec.gob.sri.ws.recepcion">
			<RespuestaRecepcionComprobante>
				<estado>DEVUELTA</estado>
				<comprobantes><comprobante>
					<mensajes><mensaje>
						<identificador>CLAVE-ACCESO-REGISTRADA</identificador>
						<mensaje>Comprobante registrado previamente</mensaje>
					</mensaje></mensajes>
				</comprobante></comprobantes>
			</RespuestaRecepcionComprobante>
		</ns2:validarComprobanteResponse>`)))
	}))
	defer srv.Close()

	client := newTestClient(srv.URL, "")
	result, err := client.Receive(context.Background(), []byte("<x/>"), testDoc(), nil)
	require.NoError(t, err)
	assert.Equal(t, entity.StatusReceived, result.Outcome,
		"un reenvío con clave ya registrada debe tratarse como recepción exitosa")
}

func TestReceive_AutoridadCaida(t *testing.T) {
	client := newTestClient("http://127.0.0.1:1", "")
	_, err := client.Receive(context.Background(), []byte("<x/>"), testDoc(), nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrAuthorityUnreachable), "fallo de red: %v", err)
}

func TestAuthorize_Autorizado(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		assert.Contains(t, string(body), testAccessKey, "la consulta va por clave de acceso")

		w.Write([]byte(soapResponse(`<ns2:autorizacionComprobanteResponse xmlns:ns2="http://ec.gob.sri.ws.autorizacion">
			<RespuestaAutorizacionComprobante>
				<claveAccesoConsultada>` + testAccessKey + `</claveAccesoConsultada>
				<autorizaciones><autorizacion>
					<estado>AUTORIZADO</estado>
					<numeroAutorizacion>` + testAccessKey + `</numeroAutorizacion>
					<fechaAutorizacion>2026-03-10T12:30:45-05:00</fechaAutorizacion>
					<ambiente>PRUEBAS</ambiente>
				</autorizacion></autorizaciones>
			</RespuestaAutorizacionComprobante>
		</ns2:autorizacionComprobanteResponse>`)))
	}))
	defer srv.Close()

	client := newTestClient("", srv.URL)
	result, err := client.Authorize(context.Background(), testDoc(), nil)
	require.NoError(t, err)
	assert.Equal(t, entity.StatusAuthorized, result.Outcome)
	assert.Equal(t, testAccessKey, result.AuthorityNumber)
	assert.Equal(t, 2026, result.AuthorizedAt.Year())
}

func TestAuthorize_NoAutorizado(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(soapResponse(`<ns2:autorizacionComprobanteResponse xmlns:ns2="http://ec.gob.sri.ws.autorizacion">
			<RespuestaAutorizacionComprobante>
				<autorizaciones><autorizacion>
					<estado>NO AUTORIZADO</estado>
					<mensajes><mensaje>
						<identificador>60</identificador>
						<mensaje>CLAVE ACCESO NO CORRESPONDE</mensaje>
					</mensaje></mensajes>
				</autorizacion></autorizaciones>
			</RespuestaAutorizacionComprobante>
		</ns2:autorizacionComprobanteResponse>`)))
	}))
	defer srv.Close()

	client := newTestClient("", srv.URL)
	result, err := client.Authorize(context.Background(), testDoc(), nil)
	require.NoError(t, err)
	assert.Equal(t, entity.StatusRejected, result.Outcome)
	assert.Contains(t, strings.Join(result.Messages, " "), "CLAVE ACCESO")
}

func TestAuthorize_EnProcesoYSinRegistro(t *testing.T) {
	// EN PROCESO explícito.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(soapResponse(`<ns2:autorizacionComprobanteResponse xmlns:ns2="http://ec.gob.sri.ws.autorizacion">
			<RespuestaAutorizacionComprobante>
				<autorizaciones><autorizacion><estado>EN PROCESO</estado></autorizacion></autorizaciones>
			</RespuestaAutorizacionComprobante>
		</ns2:autorizacionComprobanteResponse>`)))
	}))
	defer srv.Close()

	client := newTestClient("", srv.URL)
	result, err := client.Authorize(context.Background(), testDoc(), nil)
	require.NoError(t, err)
	assert.Equal(t, entity.StatusReceived, result.Outcome)

	// Sin registro de autorización todavía.
	empty := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(soapResponse(`<ns2:autorizacionComprobanteResponse xmlns:ns2="http://ec.gob.sri.ws.autorizacion">
			<RespuestaAutorizacionComprobante>
				<claveAccesoConsultada>` + testAccessKey + `</claveAccesoConsultada>
				<autorizaciones/>
			</RespuestaAutorizacionComprobante>
		</ns2:autorizacionComprobanteResponse>`)))
	}))
	defer empty.Close()

	client = newTestClient("", empty.URL)
	result, err = client.Authorize(context.Background(), testDoc(), nil)
	require.NoError(t, err)
	assert.Equal(t, entity.StatusReceived, result.Outcome,
		"sin registro aún: la autoridad sigue procesando")
}

func TestCall_SOAPFault(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(soapResponse(`<soap:Fault>
			<faultcode>soap:Server</faultcode>
			<faultstring>Internal Error</faultstring>
		</soap:Fault>`)))
	}))
	defer srv.Close()

	client := newTestClient(srv.URL, srv.URL)
	_, err := client.Receive(context.Background(), []byte("<x/>"), testDoc(), nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrAuthorityUnreachable))
}
