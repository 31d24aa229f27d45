package billing

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/facturio/facturio-api/internal/domain"
	"github.com/facturio/facturio-api/internal/domain/dian"
	"github.com/facturio/facturio-api/internal/domain/entity"
	"github.com/facturio/facturio-api/internal/domain/repository"
	"github.com/facturio/facturio-api/internal/domain/sri"
)

// PipelineConfig parámetros operativos del pipeline de autorización.
type PipelineConfig struct {
	RequestTimeout   time.Duration // timeout del ciclo asíncrono completo
	RetryBudget      int           // intentos por fase contra la autoridad
	RetryBaseDelay   time.Duration // base del backoff exponencial
	DIANTechnicalKey string        // clave técnica de la resolución (solo DIAN)
}

// AuthorizationPipeline orquesta el ciclo completo de autorización de un
// comprobante:
//
//	Clave de acceso → XML → Firma → Artefactos locales → Recepción → Autorización
//
// Cada paso persiste su transición antes de avanzar; un corte en cualquier
// punto deja el documento en un estado desde el que resend puede continuar.
// Los errores de transporte con la autoridad nunca cruzan la frontera del
// pipeline: degradan el documento a ERROR con sus artefactos locales intactos.
type AuthorizationPipeline struct {
	docs        repository.DocumentRepository
	companies   repository.CompanyRepository
	customers   repository.CustomerRepository
	lease       *DocumentLease
	tracker     *LifecycleTracker
	serializers map[string]Serializer      // por jurisdicción
	clients     map[string]AuthorityClient // por jurisdicción
	signer      Signer
	credentials CredentialResolver
	artifacts   ArtifactStore
	printable   PrintableGenerator
	fallback    *DegradedFallback
	keyGen      *sri.KeyGenerator
	refCalc     *dian.ReferenceCalculator
	numericCode func() string // inyectable en tests
	cfg         PipelineConfig
	logger      zerolog.Logger
}

// NewAuthorizationPipeline construye el pipeline con todas sus dependencias.
func NewAuthorizationPipeline(
	docs repository.DocumentRepository,
	companies repository.CompanyRepository,
	customers repository.CustomerRepository,
	lease *DocumentLease,
	tracker *LifecycleTracker,
	serializers map[string]Serializer,
	clients map[string]AuthorityClient,
	signer Signer,
	credentials CredentialResolver,
	artifacts ArtifactStore,
	printable PrintableGenerator,
	fallback *DegradedFallback,
	cfg PipelineConfig,
	logger zerolog.Logger,
) *AuthorizationPipeline {
	if cfg.RetryBudget <= 0 {
		cfg.RetryBudget = 3
	}
	if cfg.RetryBaseDelay <= 0 {
		cfg.RetryBaseDelay = 500 * time.Millisecond
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 60 * time.Second
	}
	return &AuthorizationPipeline{
		docs:        docs,
		companies:   companies,
		customers:   customers,
		lease:       lease,
		tracker:     tracker,
		serializers: serializers,
		clients:     clients,
		signer:      signer,
		credentials: credentials,
		artifacts:   artifacts,
		printable:   printable,
		fallback:    fallback,
		keyGen:      sri.NewKeyGenerator(),
		refCalc:     dian.NewReferenceCalculator(),
		numericCode: defaultNumericCode,
		cfg:         cfg,
		logger:      logger,
	}
}

// ProcessAsync dispara el procesamiento en una goroutine independiente, con
// su propio context desacoplado del ciclo HTTP. Un cliente que abandona la
// request no interrumpe la autorización en curso.
func (p *AuthorizationPipeline) ProcessAsync(documentID string) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), p.cfg.RequestTimeout)
		defer cancel()
		if _, err := p.Process(ctx, documentID); err != nil {
			p.logger.Error().Err(err).Str("document_id", documentID).Msg("procesamiento asíncrono falló")
		}
	}()
}

// Process ejecuta el pipeline completo sobre un documento ya persistido en
// DRAFT. Retorna el documento con su estado final y sus referencias de
// artefactos. Solo errores de programación o de persistencia local se
// propagan; los de la autoridad quedan reflejados en el estado.
func (p *AuthorizationPipeline) Process(ctx context.Context, documentID string) (*entity.TaxDocument, error) {
	release, err := p.lease.Acquire(documentID)
	if err != nil {
		return nil, err
	}
	defer release()

	return p.process(ctx, documentID)
}

// process ejecuta las etapas asumiendo el lease ya adquirido por el caller.
// Cada etapa corre solo si su producto (clave, firma) aún no existe: un
// documento degradado retoma exactamente en el paso que falló.
func (p *AuthorizationPipeline) process(ctx context.Context, documentID string) (*entity.TaxDocument, error) {
	doc, company, customer, lines, err := p.loadAll(ctx, documentID)
	if err != nil {
		return nil, err
	}
	if entity.IsTerminal(doc.Status) {
		return doc, nil
	}

	log := p.logger.With().Str("document_id", doc.ID).Str("jurisdiction", company.Jurisdiction).Logger()

	// markError degrada el documento a ERROR conservando el detalle. El
	// documento sigue siendo reenviable.
	markError := func(step, msg string) {
		doc.AuthorityErrors = msg
		if terr := p.tracker.Transition(ctx, doc, entity.StatusError); terr != nil {
			log.Error().Err(terr).Str("step", step).Msg("no se pudo persistir ERROR")
		}
		log.Error().Str("step", step).Msg(msg)
	}

	// ═══════════════════════════════════════════════════════════════════════════
	// 1. Clave de acceso / referencia provisional (una sola vez, inmutable)
	// ═══════════════════════════════════════════════════════════════════════════
	if doc.AccessKey == "" {
		key, kerr := p.computeAccessKey(doc, company, customer)
		if kerr != nil {
			markError("access-key", kerr.Error())
			return doc, nil
		}
		doc.AccessKey = key
		if terr := p.tracker.Transition(ctx, doc, entity.StatusKeyed); terr != nil {
			return doc, terr
		}
	}

	// ═══════════════════════════════════════════════════════════════════════════
	// 2. Serializar y firmar (modo degradado si la credencial no sirve)
	// ═══════════════════════════════════════════════════════════════════════════
	if doc.SignedXMLRef == "" {
		serializer, ok := p.serializers[company.Jurisdiction]
		if !ok {
			markError("serialize", fmt.Sprintf("jurisdicción %q sin serializador", company.Jurisdiction))
			return doc, nil
		}
		xmlBytes, serr := serializer.Serialize(doc, company, customer, lines)
		if serr != nil {
			markError("serialize", serr.Error())
			return doc, nil
		}

		cert, cerr := p.credentials.Resolve(ctx, company)
		if cerr != nil {
			return p.degrade(ctx, doc, company, xmlBytes, "cert-load", cerr, log)
		}
		signedXML, xerr := p.signer.Sign(xmlBytes, cert)
		if xerr != nil {
			return p.degrade(ctx, doc, company, xmlBytes, "xml-sign", xerr, log)
		}

		ref, aerr := p.artifacts.Save(ctx, doc.CompanyID, doc.ID, "signed.xml", signedXML)
		if aerr != nil {
			return doc, fmt.Errorf("guardando XML firmado: %w", aerr)
		}
		doc.SignedXMLRef = ref
		if terr := p.tracker.Transition(ctx, doc, entity.StatusSigned); terr != nil {
			return doc, terr
		}
	}

	// ═══════════════════════════════════════════════════════════════════════════
	// 3. Envío en dos fases (recepción + autorización)
	// ═══════════════════════════════════════════════════════════════════════════
	return p.submitPhases(ctx, doc, company, customer, lines, log)
}

// Resend reintenta el ciclo desde el paso que quedó pendiente. Una clave ya
// calculada nunca se recalcula y una firma ya producida nunca se rehace: sobre
// un documento con su XML firmado solo se repite el envío. Sobre AUTHORIZED es
// un no-op; sobre REJECTED retorna ErrConflict.
func (p *AuthorizationPipeline) Resend(ctx context.Context, documentID string) (*entity.TaxDocument, error) {
	release, err := p.lease.Acquire(documentID)
	if err != nil {
		return nil, err
	}
	defer release()

	doc, company, customer, lines, err := p.loadAll(ctx, documentID)
	if err != nil {
		return nil, err
	}

	log := p.logger.With().Str("document_id", doc.ID).Str("jurisdiction", company.Jurisdiction).Logger()

	switch doc.Status {
	case entity.StatusAuthorized:
		return doc, nil
	case entity.StatusRejected:
		return doc, fmt.Errorf("%w: un documento rechazado no se reenvía", domain.ErrConflict)
	case entity.StatusSigned, entity.StatusError, entity.StatusReceived:
		if doc.AccessKey == "" || doc.SignedXMLRef == "" {
			// El ciclo anterior degradó antes de obtener clave o firma:
			// hay que retomar esas etapas, no el envío.
			return p.process(ctx, documentID)
		}
		return p.submitPhases(ctx, doc, company, customer, lines, log)
	default:
		return doc, fmt.Errorf("%w: estado %s no admite reenvío", domain.ErrConflict, doc.Status)
	}
}

// ── fases contra la autoridad ─────────────────────────────────────────────────

// submitPhases ejecuta recepción y autorización con reintentos acotados.
// Parte de SIGNED, ERROR (reenvío) o RECEIVED (solo autorización pendiente).
func (p *AuthorizationPipeline) submitPhases(ctx context.Context, doc *entity.TaxDocument, company *entity.Company, customer *entity.Customer, lines []*entity.DocumentLine, log zerolog.Logger) (*entity.TaxDocument, error) {
	client, ok := p.clients[company.Jurisdiction]
	if !ok {
		doc.AuthorityErrors = fmt.Sprintf("jurisdicción %q sin cliente de autoridad", company.Jurisdiction)
		if terr := p.tracker.Transition(ctx, doc, entity.StatusError); terr != nil {
			return doc, terr
		}
		return doc, nil
	}

	signedXML, err := p.artifacts.Load(ctx, doc.SignedXMLRef)
	if err != nil {
		return doc, fmt.Errorf("cargando XML firmado %s: %w", doc.SignedXMLRef, err)
	}

	// ── Fase 1: recepción ─────────────────────────────────────────────────
	if doc.Status != entity.StatusReceived {
		if terr := p.tracker.Transition(ctx, doc, entity.StatusSubmitting); terr != nil {
			return doc, terr
		}

		var rec *ReceptionResult
		rerr := p.withRetries(ctx, func() error {
			var callErr error
			rec, callErr = client.Receive(ctx, signedXML, doc, company)
			return callErr
		})
		if rerr != nil {
			p.tracker.RecordAttempt(ctx, doc, entity.PhaseReception, signedXML, entity.StatusError, nil, []string{rerr.Error()})
			doc.AuthorityErrors = "recepción: " + rerr.Error()
			if terr := p.tracker.Transition(ctx, doc, entity.StatusError); terr != nil {
				return doc, terr
			}
			return doc, nil
		}

		p.tracker.RecordAttempt(ctx, doc, entity.PhaseReception, signedXML, rec.Outcome, rec.Raw, rec.Messages)
		if ref, aerr := p.artifacts.Save(ctx, doc.CompanyID, doc.ID, "reception.xml", rec.Raw); aerr == nil {
			doc.ReceptionRef = ref
		} else {
			log.Error().Err(aerr).Msg("no se pudo guardar el recibo de recepción")
		}
		if rec.TrackID != "" {
			doc.TrackID = rec.TrackID
		}

		if rec.Outcome == entity.StatusRejected {
			doc.AuthorityErrors = joinMessages(rec.Messages)
			if terr := p.tracker.Transition(ctx, doc, entity.StatusRejected); terr != nil {
				return doc, terr
			}
			log.Info().Msg("rechazado en recepción")
			return doc, nil
		}
		if terr := p.tracker.Transition(ctx, doc, entity.StatusReceived); terr != nil {
			return doc, terr
		}
	}

	// ── Fase 2: autorización (con sondeo acotado para "en proceso") ──────
	for attempt := 0; attempt < p.cfg.RetryBudget; attempt++ {
		if terr := p.tracker.Transition(ctx, doc, entity.StatusAuthorizing); terr != nil {
			return doc, terr
		}

		var auth *AuthorizationResult
		aerr := p.withRetries(ctx, func() error {
			var callErr error
			auth, callErr = client.Authorize(ctx, doc, company)
			return callErr
		})
		if aerr != nil {
			p.tracker.RecordAttempt(ctx, doc, entity.PhaseAuthorization, signedXML, entity.StatusError, nil, []string{aerr.Error()})
			doc.AuthorityErrors = "autorización: " + aerr.Error()
			if terr := p.tracker.Transition(ctx, doc, entity.StatusError); terr != nil {
				return doc, terr
			}
			return doc, nil
		}

		p.tracker.RecordAttempt(ctx, doc, entity.PhaseAuthorization, signedXML, auth.Outcome, auth.Raw, auth.Messages)

		switch auth.Outcome {
		case entity.StatusAuthorized:
			p.tracker.ReconcileAuthorityNumber(doc, auth.AuthorityNumber)
			if !auth.AuthorizedAt.IsZero() {
				at := auth.AuthorizedAt
				doc.AuthorizedAt = &at
			}
			if ref, serr := p.artifacts.Save(ctx, doc.CompanyID, doc.ID, "authorization.xml", auth.Raw); serr == nil {
				doc.AuthorizationRef = ref
			} else {
				log.Error().Err(serr).Msg("no se pudo guardar el comprobante de autorización")
			}
			p.generatePrintable(ctx, doc, company, customer, lines, log)
			doc.AuthorityErrors = ""
			if terr := p.tracker.Transition(ctx, doc, entity.StatusAuthorized); terr != nil {
				return doc, terr
			}
			log.Info().Str("access_key", doc.AccessKey).Msg("documento autorizado")
			return doc, nil

		case entity.StatusRejected:
			doc.AuthorityErrors = joinMessages(auth.Messages)
			if terr := p.tracker.Transition(ctx, doc, entity.StatusRejected); terr != nil {
				return doc, terr
			}
			log.Info().Msg("rechazado en autorización")
			return doc, nil

		default:
			// La autoridad sigue procesando.
			if attempt == p.cfg.RetryBudget-1 {
				// Presupuesto de sondeo agotado sin respuesta definitiva.
				// Queda en ERROR para un reenvío manual o programado.
				doc.AuthorityErrors = "autorización pendiente tras agotar el presupuesto de sondeo"
				if terr := p.tracker.Transition(ctx, doc, entity.StatusError); terr != nil {
					return doc, terr
				}
				log.Warn().Msg("autorización sin resolver en este ciclo")
				return doc, nil
			}
			select {
			case <-ctx.Done():
				doc.AuthorityErrors = "autorización: " + ctx.Err().Error()
				if terr := p.tracker.Transition(ctx, doc, entity.StatusError); terr != nil {
					return doc, terr
				}
				return doc, nil
			case <-time.After(p.backoffDelay(attempt)):
			}
			if terr := p.tracker.Transition(ctx, doc, entity.StatusReceived); terr != nil {
				return doc, terr
			}
		}
	}
	return doc, nil
}

// ── helpers privados ──────────────────────────────────────────────────────────

func (p *AuthorizationPipeline) loadAll(ctx context.Context, documentID string) (*entity.TaxDocument, *entity.Company, *entity.Customer, []*entity.DocumentLine, error) {
	doc, err := p.docs.GetByID(ctx, documentID)
	if err != nil {
		return nil, nil, nil, nil, fmt.Errorf("documento %s: %w", documentID, err)
	}
	company, err := p.companies.GetByID(ctx, doc.CompanyID)
	if err != nil {
		return nil, nil, nil, nil, fmt.Errorf("empresa %s: %w", doc.CompanyID, err)
	}
	customer, err := p.customers.GetByID(ctx, doc.CustomerID)
	if err != nil {
		return nil, nil, nil, nil, fmt.Errorf("cliente %s: %w", doc.CustomerID, err)
	}
	lines, err := p.docs.GetLines(ctx, documentID)
	if err != nil {
		return nil, nil, nil, nil, fmt.Errorf("líneas de %s: %w", documentID, err)
	}
	return doc, company, customer, lines, nil
}

// computeAccessKey despacha por jurisdicción: clave con dígito verificador
// (SRI) o referencia provisional SHA-384 (DIAN).
func (p *AuthorizationPipeline) computeAccessKey(doc *entity.TaxDocument, company *entity.Company, customer *entity.Customer) (string, error) {
	switch company.Jurisdiction {
	case entity.JurisdictionSRI:
		return p.keyGen.Generate(&sri.KeyParams{
			IssueDate:     doc.IssueDate,
			DocType:       doc.DocType,
			TaxID:         company.TaxID,
			Environment:   company.Environment,
			Establishment: doc.Establishment,
			EmissionPoint: doc.EmissionPoint,
			Sequential:    doc.Sequential,
			NumericCode:   p.numericCode(),
			EmissionType:  sri.EmissionNormal,
		})
	case entity.JurisdictionDIAN:
		return p.refCalc.Calculate(&dian.ReferenceParams{
			Number:       doc.Establishment + doc.EmissionPoint + doc.Sequential,
			IssueDate:    doc.IssueDate.Format("2006-01-02"),
			NetTotal:     doc.NetTotal,
			IVA:          doc.TaxTotal,
			GrandTotal:   doc.GrandTotal,
			IssuerTaxID:  company.TaxID,
			BuyerTaxID:   customer.TaxID,
			TechnicalKey: p.cfg.DIANTechnicalKey,
			Environment:  company.Environment,
		})
	default:
		return "", fmt.Errorf("%w: jurisdicción %q desconocida", domain.ErrValidation, company.Jurisdiction)
	}
}

// degrade produce los artefactos provisionales y deja el documento en ERROR.
// La copia anotada jamás toca SignedXMLRef: ese campo es exclusivo de un XML
// con firma real y es lo único que submitPhases envía a la autoridad.
func (p *AuthorizationPipeline) degrade(ctx context.Context, doc *entity.TaxDocument, company *entity.Company, xmlBytes []byte, step string, cause error, log zerolog.Logger) (*entity.TaxDocument, error) {
	xmlRef, pdfRef, ferr := p.fallback.Produce(ctx, doc, company, xmlBytes)
	if ferr != nil {
		log.Error().Err(ferr).Str("step", step).Msg("modo degradado falló")
	} else {
		doc.DegradedXMLRef = xmlRef
		doc.PrintableRef = pdfRef
	}
	doc.AuthorityErrors = step + ": " + cause.Error()
	if terr := p.tracker.Transition(ctx, doc, entity.StatusError); terr != nil {
		return doc, terr
	}
	log.Warn().Str("step", step).Err(cause).Msg("emitido en modo degradado")
	return doc, nil
}

func (p *AuthorizationPipeline) generatePrintable(ctx context.Context, doc *entity.TaxDocument, company *entity.Company, customer *entity.Customer, lines []*entity.DocumentLine, log zerolog.Logger) {
	pdf, err := p.printable.Generate(ctx, doc, company, customer, lines)
	if err != nil {
		log.Error().Err(err).Msg("no se pudo generar la representación imprimible")
		return
	}
	ref, err := p.artifacts.Save(ctx, doc.CompanyID, doc.ID, "printable.pdf", pdf)
	if err != nil {
		log.Error().Err(err).Msg("no se pudo guardar la representación imprimible")
		return
	}
	doc.PrintableRef = ref
}

// withRetries reintenta la llamada ante errores de transporte con backoff
// exponencial, hasta agotar el presupuesto o cancelarse el context.
func (p *AuthorizationPipeline) withRetries(ctx context.Context, call func() error) error {
	var lastErr error
	for attempt := 0; attempt < p.cfg.RetryBudget; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(p.backoffDelay(attempt - 1)):
			}
		}
		if lastErr = call(); lastErr == nil {
			return nil
		}
		// El timeout del ciclo no se recupera reintentando.
		if errors.Is(lastErr, context.DeadlineExceeded) || errors.Is(lastErr, context.Canceled) {
			return lastErr
		}
	}
	return lastErr
}

// backoffDelay: base * 2^attempt.
func (p *AuthorizationPipeline) backoffDelay(attempt int) time.Duration {
	d := p.cfg.RetryBaseDelay
	for i := 0; i < attempt; i++ {
		d *= 2
	}
	return d
}

// defaultNumericCode genera el código numérico de 8 dígitos de la clave de
// acceso SRI.
func defaultNumericCode() string {
	var b [4]byte
	if _, err := rand.Read(b[:]); err != nil {
		return fmt.Sprintf("%08d", time.Now().UnixNano()%100000000)
	}
	return fmt.Sprintf("%08d", binary.BigEndian.Uint32(b[:])%100000000)
}

func joinMessages(msgs []string) string {
	return strings.Join(msgs, "; ")
}
