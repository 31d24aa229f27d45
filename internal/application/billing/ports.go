package billing

import (
	"context"
	"crypto/tls"
	"time"

	"github.com/facturio/facturio-api/internal/domain/entity"
)

// ── Puertos de salida del pipeline ────────────────────────────────────────────
// Las implementaciones concretas viven en infrastructure; para tests se
// inyectan fakes.

// Serializer convierte el modelo canónico al esquema de la autoridad.
// Debe ser determinista: el mismo input produce bytes idénticos, porque la
// firma cubre exactamente ese stream.
type Serializer interface {
	Serialize(doc *entity.TaxDocument, company *entity.Company, customer *entity.Customer, lines []*entity.DocumentLine) ([]byte, error)
}

// Signer envuelve el XML serializado en una firma digital con el certificado
// del emisor. Opera solo sobre la credencial descifrada en memoria.
type Signer interface {
	Sign(xmlBytes []byte, cert tls.Certificate) ([]byte, error)
}

// CredentialResolver es la estrategia única de resolución de credenciales:
// carga y descifra el bundle del emisor. El certificado resultante vive solo
// durante la operación de firma.
type CredentialResolver interface {
	Resolve(ctx context.Context, company *entity.Company) (tls.Certificate, error)
}

// ReceptionResult resultado normalizado de la fase de recepción.
type ReceptionResult struct {
	Outcome  string // entity.StatusReceived | entity.StatusRejected
	TrackID  string // identificador de recepción (DIAN); vacío para SRI
	Raw      []byte // respuesta cruda de la autoridad
	Messages []string
}

// AuthorizationResult resultado normalizado de la fase de autorización.
type AuthorizationResult struct {
	Outcome         string // entity.StatusAuthorized | StatusRejected | StatusReceived (en proceso)
	AuthorityNumber string // identificador canónico asignado por la autoridad
	AuthorizedAt    time.Time
	Raw             []byte
	Messages        []string
}

// AuthorityClient normaliza los dos backends de autoridad (SRI y DIAN) en una
// misma forma de resultado. Los errores retornados son siempre de transporte
// (la autoridad no respondió); un rechazo de negocio es un resultado, no un
// error.
type AuthorityClient interface {
	// Receive envía el documento firmado (la implementación lo codifica en
	// base64/ZIP según exija el WS) a la fase de validación.
	Receive(ctx context.Context, signedXML []byte, doc *entity.TaxDocument, company *entity.Company) (*ReceptionResult, error)
	// Authorize consulta el estado final del documento previamente recibido,
	// por clave de acceso (SRI) o TrackID (DIAN).
	Authorize(ctx context.Context, doc *entity.TaxDocument, company *entity.Company) (*AuthorizationResult, error)
}

// ArtifactStore persiste los artefactos por documento bajo la convención
// {tenant}/{documentID}/{nombre}. Save devuelve la referencia direccionable.
type ArtifactStore interface {
	Save(ctx context.Context, companyID, documentID, name string, data []byte) (string, error)
	Load(ctx context.Context, ref string) ([]byte, error)
}

// PrintableGenerator genera la representación imprimible del comprobante y,
// en modo degradado, una copia provisional claramente marcada como no válida.
type PrintableGenerator interface {
	Generate(ctx context.Context, doc *entity.TaxDocument, company *entity.Company, customer *entity.Customer, lines []*entity.DocumentLine) ([]byte, error)
	GeneratePlaceholder(ctx context.Context, doc *entity.TaxDocument, company *entity.Company) ([]byte, error)
}
