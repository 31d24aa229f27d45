package dian

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/facturio/facturio-api/internal/application/billing"
	"github.com/facturio/facturio-api/internal/domain"
	"github.com/facturio/facturio-api/internal/domain/entity"
)

// ── Constantes del WS DIAN ────────────────────────────────────────────────────

const (
	soapURLTest = "https://vpfe-hab.dian.gov.co/WcfDianCustomerServices.svc"
	soapURLProd = "https://vpfe.dian.gov.co/WcfDianCustomerServices.svc"

	soapNS         = "http://schemas.xmlsoap.org/soap/envelope/"
	soapNSTempuri  = "http://tempuri.org/"
	soapActionBase = "http://tempuri.org/IWcfDianCustomerServices/"

	// GetStatusZip devuelve 66 mientras el lote sigue en cola.
	statusCodeBatchInProcess = "66"
	statusCodeOK             = "00"
)

// SOAPClientConfig configuración del cliente. URL vacía: se resuelve por el
// ambiente del emisor (producción o habilitación).
type SOAPClientConfig struct {
	URL     string
	Timeout time.Duration
}

// SOAPClient implementa billing.AuthorityClient contra el WS SOAP de la DIAN.
// La recepción entrega el ZIP vía SendBillAsync (SendTestSetAsync en
// habilitación) y devuelve el ZipKey como TrackID; la autorización consulta
// GetStatusZip con ese TrackID y concilia el CUFE definitivo.
type SOAPClient struct {
	httpClient *http.Client
	cfg        SOAPClientConfig
	logger     zerolog.Logger
}

// NewSOAPClient construye el cliente con un timeout de red generoso (60 s)
// ya que el WS DIAN puede tardar varios segundos en responder.
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
	XMLName xml.Name `xml:"s:Envelope"`
	XmlnsS  string   `xml:"xmlns:s,attr"`
	Body    soapBody `xml:"s:Body"`
}

type soapBody struct {
	Content interface{}
}

func (b soapBody) MarshalXML(e *xml.Encoder, start xml.StartElement) error {
	start.Name.Local = "s:Body"
	if err := e.EncodeToken(start); err != nil {
		return err
	}
	if err := e.Encode(b.Content); err != nil {
		return err
	}
	return e.EncodeToken(start.End())
}

// sendBillAsyncBody cuerpo para la operación SendBillAsync (producción).
type sendBillAsyncBody struct {
	XMLName     xml.Name `xml:"SendBillAsync"`
	Xmlns       string   `xml:"xmlns,attr"`
	FileName    string   `xml:"fileName"`
	ContentFile string   `xml:"contentFile"` // ZIP en Base64
}

// sendTestSetAsyncBody cuerpo para la operación SendTestSetAsync (habilitación).
type sendTestSetAsyncBody struct {
	XMLName     xml.Name `xml:"SendTestSetAsync"`
	Xmlns       string   `xml:"xmlns,attr"`
	FileName    string   `xml:"fileName"`
	ContentFile string   `xml:"contentFile"` // ZIP en Base64
	TestSetID   string   `xml:"testSetId"`   // vacío: la DIAN asigna uno
}

// getStatusZipBody cuerpo para la operación GetStatusZip.
type getStatusZipBody struct {
	XMLName xml.Name `xml:"GetStatusZip"`
	Xmlns   string   `xml:"xmlns,attr"`
	TrackID string   `xml:"trackId"`
}

// ── Estructuras de respuesta SOAP ─────────────────────────────────────────────

type soapResponseEnvelope struct {
	Body struct {
		SendBillResponse    *asyncResponse     `xml:"SendBillAsyncResponse"`
		SendTestSetResponse *testSetResponse   `xml:"SendTestSetAsyncResponse"`
		StatusZipResponse   *statusZipResponse `xml:"GetStatusZipResponse"`
		Fault               *soapFault         `xml:"Fault"`
	} `xml:"Body"`
}

type asyncResponse struct {
	Result asyncResult `xml:"SendBillAsyncResult"`
}

type testSetResponse struct {
	Result asyncResult `xml:"SendTestSetAsyncResult"`
}

type asyncResult struct {
	HasErrors        bool     `xml:"HasErrors"`
	ErrorMessageList []string `xml:"ErrorMessageList>string"`
	ZipKey           string   `xml:"ZipKey"`
}

type statusZipResponse struct {
	Result statusZipResult `xml:"GetStatusZipResult"`
}

type statusZipResult struct {
	DianResponse []dianResponse `xml:"DianResponse"`
}

type dianResponse struct {
	IsValid           string   `xml:"IsValid"`
	StatusCode        string   `xml:"StatusCode"`
	StatusDescription string   `xml:"StatusDescription"`
	StatusMessage     string   `xml:"StatusMessage"`
	XmlDocumentKey    string   `xml:"XmlDocumentKey"` // CUFE definitivo
	ErrorMessage      []string `xml:"ErrorMessage>string"`
}

type soapFault struct {
	FaultCode   string `xml:"faultcode"`
	FaultString string `xml:"faultstring"`
}

// ── billing.AuthorityClient ───────────────────────────────────────────────────

// Receive empaqueta el XML firmado en ZIP y lo entrega al WS. En habilitación
// (ambiente de pruebas del emisor) usa SendTestSetAsync.
func (c *SOAPClient) Receive(ctx context.Context, signedXML []byte, doc *entity.TaxDocument, company *entity.Company) (*billing.ReceptionResult, error) {
	xmlName, zipName := Filenames(company, doc)
	zipBytes, err := CompressXMLToZip(signedXML, xmlName)
	if err != nil {
		return nil, err
	}
	b64 := base64.StdEncoding.EncodeToString(zipBytes)

	var action string
	var body interface{}
	if company.Environment == entity.EnvironmentProduction {
		action = soapActionBase + "SendBillAsync"
		body = &sendBillAsyncBody{Xmlns: soapNSTempuri, FileName: zipName, ContentFile: b64}
	} else {
		action = soapActionBase + "SendTestSetAsync"
		body = &sendTestSetAsyncBody{Xmlns: soapNSTempuri, FileName: zipName, ContentFile: b64}
	}

	raw, env, err := c.call(ctx, company, action, body)
	if err != nil {
		return nil, err
	}
	if env.Body.Fault != nil {
		return nil, fmt.Errorf("%w: SOAP Fault [%s]: %s",
			domain.ErrAuthorityUnreachable, env.Body.Fault.FaultCode, env.Body.Fault.FaultString)
	}

	var result *asyncResult
	if env.Body.SendBillResponse != nil {
		result = &env.Body.SendBillResponse.Result
	} else if env.Body.SendTestSetResponse != nil {
		result = &env.Body.SendTestSetResponse.Result
	}
	if result == nil {
		return nil, fmt.Errorf("%w: respuesta SOAP vacía o inesperada", domain.ErrAuthorityUnreachable)
	}

	rec := &billing.ReceptionResult{
		TrackID:  result.ZipKey,
		Raw:      raw,
		Messages: result.ErrorMessageList,
	}
	if result.HasErrors {
		rec.Outcome = entity.StatusRejected
	} else {
		rec.Outcome = entity.StatusReceived
	}
	return rec, nil
}

// Authorize consulta GetStatusZip con el TrackID de la recepción. El lote en
// cola (status 66) se reporta como RECEIVED para que el pipeline vuelva a
// sondear.
func (c *SOAPClient) Authorize(ctx context.Context, doc *entity.TaxDocument, company *entity.Company) (*billing.AuthorizationResult, error) {
	if doc.TrackID == "" {
		return nil, fmt.Errorf("%w: el documento no tiene TrackID de recepción", domain.ErrAuthorityUnreachable)
	}

	body := &getStatusZipBody{Xmlns: soapNSTempuri, TrackID: doc.TrackID}
	raw, env, err := c.call(ctx, company, soapActionBase+"GetStatusZip", body)
	if err != nil {
		return nil, err
	}
	if env.Body.Fault != nil {
		return nil, fmt.Errorf("%w: SOAP Fault [%s]: %s",
			domain.ErrAuthorityUnreachable, env.Body.Fault.FaultCode, env.Body.Fault.FaultString)
	}

	result := &billing.AuthorizationResult{Raw: raw}
	if env.Body.StatusZipResponse == nil || len(env.Body.StatusZipResponse.Result.DianResponse) == 0 {
		// Sin respuesta del lote todavía.
		result.Outcome = entity.StatusReceived
		return result, nil
	}

	dr := env.Body.StatusZipResponse.Result.DianResponse[0]
	msgs := dr.ErrorMessage
	if dr.StatusDescription != "" {
		msgs = append([]string{dr.StatusDescription}, msgs...)
	}
	result.Messages = msgs

	switch {
	case dr.StatusCode == statusCodeBatchInProcess:
		result.Outcome = entity.StatusReceived
	case dr.IsValid == "true" && dr.StatusCode == statusCodeOK:
		result.Outcome = entity.StatusAuthorized
		result.AuthorityNumber = dr.XmlDocumentKey
		result.AuthorizedAt = time.Now()
	default:
		result.Outcome = entity.StatusRejected
	}
	return result, nil
}

// ── helpers privados ──────────────────────────────────────────────────────────

// call serializa el envelope, ejecuta la llamada y desempaqueta la respuesta.
func (c *SOAPClient) call(ctx context.Context, company *entity.Company, action string, content interface{}) ([]byte, *soapResponseEnvelope, error) {
	url := c.cfg.URL
	if url == "" {
		if company.Environment == entity.EnvironmentProduction {
			url = soapURLProd
		} else {
			url = soapURLTest
		}
	}

	envelope := soapEnvelope{XmlnsS: soapNS, Body: soapBody{Content: content}}
	payload, err := xml.MarshalIndent(envelope, "", "  ")
	if err != nil {
		return nil, nil, fmt.Errorf("dian: serializar envelope: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, nil, fmt.Errorf("dian: crear request: %w", err)
	}
	req.Header.Set("Content-Type", "text/xml; charset=utf-8")
	req.Header.Set("SOAPAction", action)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, nil, fmt.Errorf("%w: %v", domain.ErrAuthorityTimeout, ctx.Err())
		}
		return nil, nil, fmt.Errorf("%w: %v", domain.ErrAuthorityUnreachable, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20)) // max 4 MB
	if err != nil {
		return nil, nil, fmt.Errorf("%w: leer respuesta: %v", domain.ErrAuthorityUnreachable, err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, nil, fmt.Errorf("%w: HTTP %d del WS DIAN", domain.ErrAuthorityUnreachable, resp.StatusCode)
	}

	var env soapResponseEnvelope
	if err := xml.Unmarshal(raw, &env); err != nil {
		return nil, nil, fmt.Errorf("%w: respuesta SOAP ilegible: %v", domain.ErrAuthorityUnreachable, err)
	}
	return raw, &env, nil
}
