package sri

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/facturio/facturio-api/internal/application/billing"
	"github.com/facturio/facturio-api/internal/domain"
	"github.com/facturio/facturio-api/internal/domain/entity"
)

// ── Constantes del WS SRI ─────────────────────────────────────────────────────

const (
	soapNS = "http://schemas.xmlsoap.org/soap/envelope/"
	// Namespace de los servicios offline de recepción y autorización.
	nsReception     = "http://ec.gob.sri.ws.recepcion"
	nsAuthorization = "http://ec.gob.sri.ws.autorizacion"

	// Estados devueltos por el WS.
	stateReceived     = "RECIBIDA"
	stateReturned     = "DEVUELTA"
	stateAuthorized   = "AUTORIZADO"
	stateUnauthorized = "NO AUTORIZADO"
	stateInProcess    = "EN PROCESO"

	// Un documento reenviado con clave ya registrada no es un rechazo.
	errAlreadyRegistered = "CLAVE-ACCESO-REGISTRADA"
)

// SOAPClientConfig endpoints y timeout del cliente.
type SOAPClientConfig struct {
	ReceptionURL     string
	AuthorizationURL string
	Timeout          time.Duration
}

// SOAPClient implementa billing.AuthorityClient contra los servicios SOAP de
// recepción y autorización del SRI. Usa net/http de la stdlib; el WS no
// requiere autenticación, el documento viaja firmado.
type SOAPClient struct {
	httpClient *http.Client
	cfg        SOAPClientConfig
	logger     zerolog.Logger
}

// NewSOAPClient construye el cliente. El timeout por defecto es generoso
// (60 s) porque el WS puede tardar varios segundos bajo carga.
func NewSOAPClient(cfg SOAPClientConfig, logger zerolog.Logger) *SOAPClient {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	return &SOAPClient{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		cfg:        cfg,
		logger:     logger,
	}
}

// ── Estructuras SOAP ──────────────────────────────────────────────────────────

type soapEnvelope struct {
	XMLName xml.Name   `xml:"soapenv:Envelope"`
	XmlnsS  string     `xml:"xmlns:soapenv,attr"`
	XmlnsEc string     `xml:"xmlns:ec,attr"`
	Header  soapHeader `xml:"soapenv:Header"`
	Body    soapBody   `xml:"soapenv:Body"`
}

type soapHeader struct{}

type soapBody struct {
	Content interface{}
}

func (b soapBody) MarshalXML(e *xml.Encoder, start xml.StartElement) error {
	start.Name.Local = "soapenv:Body"
	if err := e.EncodeToken(start); err != nil {
		return err
	}
	if err := e.Encode(b.Content); err != nil {
		return err
	}
	return e.EncodeToken(start.End())
}

type validarComprobanteBody struct {
	XMLName xml.Name `xml:"ec:validarComprobante"`
	XML     string   `xml:"xml"` // comprobante firmado en Base64
}

type autorizacionComprobanteBody struct {
	XMLName     xml.Name `xml:"ec:autorizacionComprobante"`
	ClaveAcceso string   `xml:"claveAccesoComprobante"`
}

// ── Estructuras de respuesta ──────────────────────────────────────────────────

type receptionResponseEnvelope struct {
	Body struct {
		Response struct {
			Respuesta receptionRespuesta `xml:"RespuestaRecepcionComprobante"`
		} `xml:"validarComprobanteResponse"`
		Fault *soapFault `xml:"Fault"`
	} `xml:"Body"`
}

type receptionRespuesta struct {
	Estado       string `xml:"estado"`
	Comprobantes struct {
		Comprobante []struct {
			ClaveAcceso string      `xml:"claveAcceso"`
			Mensajes    []wsMensaje `xml:"mensajes>mensaje"`
		} `xml:"comprobante"`
	} `xml:"comprobantes"`
}

type authorizationResponseEnvelope struct {
	Body struct {
		Response struct {
			Respuesta authorizationRespuesta `xml:"RespuestaAutorizacionComprobante"`
		} `xml:"autorizacionComprobanteResponse"`
		Fault *soapFault `xml:"Fault"`
	} `xml:"Body"`
}

type authorizationRespuesta struct {
	ClaveAccesoConsultada string `xml:"claveAccesoConsultada"`
	Autorizaciones        struct {
		Autorizacion []struct {
			Estado             string      `xml:"estado"`
			NumeroAutorizacion string      `xml:"numeroAutorizacion"`
			FechaAutorizacion  string      `xml:"fechaAutorizacion"`
			Ambiente           string      `xml:"ambiente"`
			Mensajes           []wsMensaje `xml:"mensajes>mensaje"`
		} `xml:"autorizacion"`
	} `xml:"autorizaciones"`
}

type wsMensaje struct {
	Identificador        string `xml:"identificador"`
	Mensaje              string `xml:"mensaje"`
	InformacionAdicional string `xml:"informacionAdicional"`
	Tipo                 string `xml:"tipo"`
}

type soapFault struct {
	FaultCode   string `xml:"faultcode"`
	FaultString string `xml:"faultstring"`
}

// ── billing.AuthorityClient ───────────────────────────────────────────────────

// Receive envía el XML firmado (Base64) a la fase de validación. Un rechazo
// del SRI es un resultado REJECTED; solo los fallos de red son error.
func (c *SOAPClient) Receive(ctx context.Context, signedXML []byte, doc *entity.TaxDocument, _ *entity.Company) (*billing.ReceptionResult, error) {
	body := &validarComprobanteBody{XML: base64.StdEncoding.EncodeToString(signedXML)}
	raw, err := c.call(ctx, c.cfg.ReceptionURL, nsReception, "", body)
	if err != nil {
		return nil, err
	}

	var env receptionResponseEnvelope
	if err := xml.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("sri: respuesta de recepción ilegible: %w", err)
	}
	if env.Body.Fault != nil {
		return nil, fmt.Errorf("%w: SOAP Fault [%s]: %s",
			domain.ErrAuthorityUnreachable, env.Body.Fault.FaultCode, env.Body.Fault.FaultString)
	}

	respuesta := env.Body.Response.Respuesta
	result := &billing.ReceptionResult{Raw: raw}

	switch respuesta.Estado {
	case stateReceived:
		result.Outcome = entity.StatusReceived
	case stateReturned:
		msgs := collectMessages(respuesta)
		// La clave ya registrada significa que un envío anterior sí llegó:
		// para el pipeline es una recepción válida.
		if containsIdentifier(msgs, errAlreadyRegistered) {
			result.Outcome = entity.StatusReceived
			result.Messages = msgs
			return result, nil
		}
		result.Outcome = entity.StatusRejected
		result.Messages = msgs
	default:
		return nil, fmt.Errorf("%w: estado de recepción desconocido %q",
			domain.ErrAuthorityUnreachable, respuesta.Estado)
	}
	return result, nil
}

// Authorize consulta el estado de autorización por clave de acceso.
func (c *SOAPClient) Authorize(ctx context.Context, doc *entity.TaxDocument, _ *entity.Company) (*billing.AuthorizationResult, error) {
	body := &autorizacionComprobanteBody{ClaveAcceso: doc.AccessKey}
	raw, err := c.call(ctx, c.cfg.AuthorizationURL, nsAuthorization, "", body)
	if err != nil {
		return nil, err
	}

	var env authorizationResponseEnvelope
	if err := xml.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("sri: respuesta de autorización ilegible: %w", err)
	}
	if env.Body.Fault != nil {
		return nil, fmt.Errorf("%w: SOAP Fault [%s]: %s",
			domain.ErrAuthorityUnreachable, env.Body.Fault.FaultCode, env.Body.Fault.FaultString)
	}

	result := &billing.AuthorizationResult{Raw: raw}
	auths := env.Body.Response.Respuesta.Autorizaciones.Autorizacion
	if len(auths) == 0 {
		// Sin registro todavía: el SRI sigue procesando la clave.
		result.Outcome = entity.StatusReceived
		return result, nil
	}

	auth := auths[0]
	var msgs []string
	for _, m := range auth.Mensajes {
		msgs = append(msgs, formatMessage(m))
	}
	result.Messages = msgs

	switch auth.Estado {
	case stateAuthorized:
		result.Outcome = entity.StatusAuthorized
		result.AuthorityNumber = auth.NumeroAutorizacion
		if at, perr := parseAuthorizationDate(auth.FechaAutorizacion); perr == nil {
			result.AuthorizedAt = at
		}
	case stateUnauthorized:
		result.Outcome = entity.StatusRejected
	case stateInProcess:
		result.Outcome = entity.StatusReceived
	default:
		return nil, fmt.Errorf("%w: estado de autorización desconocido %q",
			domain.ErrAuthorityUnreachable, auth.Estado)
	}
	return result, nil
}

// ── helpers privados ──────────────────────────────────────────────────────────

func (c *SOAPClient) call(ctx context.Context, url, ns, action string, content interface{}) ([]byte, error) {
	if url == "" {
		return nil, fmt.Errorf("%w: endpoint SRI no configurado", domain.ErrAuthorityUnreachable)
	}

	envelope := soapEnvelope{
		XmlnsS:  soapNS,
		XmlnsEc: ns,
		Body:    soapBody{Content: content},
	}
	payload, err := xml.MarshalIndent(envelope, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("sri: serializar envelope: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("sri: crear request: %w", err)
	}
	req.Header.Set("Content-Type", "text/xml; charset=utf-8")
	req.Header.Set("SOAPAction", action)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrAuthorityTimeout, ctx.Err())
		}
		return nil, fmt.Errorf("%w: %v", domain.ErrAuthorityUnreachable, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20)) // max 4 MB
	if err != nil {
		return nil, fmt.Errorf("%w: leer respuesta: %v", domain.ErrAuthorityUnreachable, err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: HTTP %d del WS SRI", domain.ErrAuthorityUnreachable, resp.StatusCode)
	}
	return raw, nil
}

func collectMessages(r receptionRespuesta) []string {
	var msgs []string
	for _, comp := range r.Comprobantes.Comprobante {
		for _, m := range comp.Mensajes {
			msgs = append(msgs, formatMessage(m))
		}
	}
	return msgs
}

func formatMessage(m wsMensaje) string {
	out := m.Identificador
	if m.Mensaje != "" {
		if out != "" {
			out += ": "
		}
		out += m.Mensaje
	}
	if m.InformacionAdicional != "" {
		out += " (" + m.InformacionAdicional + ")"
	}
	return out
}

func containsIdentifier(msgs []string, ident string) bool {
	for _, m := range msgs {
		if strings.Contains(m, ident) {
			return true
		}
	}
	return false
}

// parseAuthorizationDate acepta los dos formatos de fecha que devuelve el WS.
func parseAuthorizationDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05.000-07:00", "02/01/2006 15:04:05"} {
		if at, err := time.Parse(layout, s); err == nil {
			return at, nil
		}
	}
	return time.Time{}, fmt.Errorf("sri: fecha de autorización ilegible: %q", s)
}
