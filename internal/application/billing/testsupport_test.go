package billing

import (
	"context"
	"crypto/tls"
	"fmt"
	"sync"

	"github.com/facturio/facturio-api/internal/domain"
	"github.com/facturio/facturio-api/internal/domain/entity"
)

// Fakes en memoria para los puertos del pipeline. Mismo contrato que las
// implementaciones de infrastructure, sin red ni base de datos.

type fakeDocumentRepo struct {
	mu    sync.Mutex
	docs  map[string]*entity.TaxDocument
	lines map[string][]*entity.DocumentLine
}

func newFakeDocumentRepo() *fakeDocumentRepo {
	return &fakeDocumentRepo{
		docs:  make(map[string]*entity.TaxDocument),
		lines: make(map[string][]*entity.DocumentLine),
	}
}

func (r *fakeDocumentRepo) Create(_ context.Context, doc *entity.TaxDocument, lines []*entity.DocumentLine) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.docs[doc.ID]; exists {
		return domain.ErrDuplicate
	}
	cp := *doc
	r.docs[doc.ID] = &cp
	r.lines[doc.ID] = lines
	return nil
}

func (r *fakeDocumentRepo) GetByID(_ context.Context, id string) (*entity.TaxDocument, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	doc, ok := r.docs[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *doc
	return &cp, nil
}

func (r *fakeDocumentRepo) GetByAccessKey(_ context.Context, accessKey string) (*entity.TaxDocument, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, doc := range r.docs {
		if doc.AccessKey == accessKey {
			cp := *doc
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (r *fakeDocumentRepo) GetLines(_ context.Context, documentID string) ([]*entity.DocumentLine, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lines[documentID], nil
}

func (r *fakeDocumentRepo) UpdateStatus(_ context.Context, doc *entity.TaxDocument) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.docs[doc.ID]; !ok {
		return domain.ErrNotFound
	}
	cp := *doc
	r.docs[doc.ID] = &cp
	return nil
}

func (r *fakeDocumentRepo) ListByCompanyAndStatus(_ context.Context, companyID, status string, limit, offset int) ([]*entity.TaxDocument, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*entity.TaxDocument
	for _, doc := range r.docs {
		if doc.CompanyID == companyID && doc.Status == status {
			cp := *doc
			out = append(out, &cp)
		}
	}
	return out, nil
}

type fakeCompanyRepo struct {
	companies map[string]*entity.Company
}

func (r *fakeCompanyRepo) GetByID(_ context.Context, id string) (*entity.Company, error) {
	c, ok := r.companies[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return c, nil
}

func (r *fakeCompanyRepo) GetByTaxID(_ context.Context, taxID string) (*entity.Company, error) {
	for _, c := range r.companies {
		if c.TaxID == taxID {
			return c, nil
		}
	}
	return nil, domain.ErrNotFound
}

type fakeCustomerRepo struct {
	customers map[string]*entity.Customer
}

func (r *fakeCustomerRepo) GetByID(_ context.Context, id string) (*entity.Customer, error) {
	c, ok := r.customers[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return c, nil
}

func (r *fakeCustomerRepo) GetByCompanyAndTaxID(_ context.Context, companyID, taxID string) (*entity.Customer, error) {
	for _, c := range r.customers {
		if c.CompanyID == companyID && c.TaxID == taxID {
			return c, nil
		}
	}
	return nil, domain.ErrNotFound
}

type fakeAttemptRepo struct {
	mu       sync.Mutex
	attempts []*entity.AuthorizationAttempt
}

func (r *fakeAttemptRepo) Append(_ context.Context, attempt *entity.AuthorizationAttempt) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.attempts = append(r.attempts, attempt)
	return nil
}

func (r *fakeAttemptRepo) ListByDocument(_ context.Context, documentID string) ([]*entity.AuthorizationAttempt, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*entity.AuthorizationAttempt
	for _, a := range r.attempts {
		if a.DocumentID == documentID {
			out = append(out, a)
		}
	}
	return out, nil
}

type fakeSeriesRepo struct {
	mu   sync.Mutex
	last map[entity.SequenceRef]int64
}

func newFakeSeriesRepo() *fakeSeriesRepo {
	return &fakeSeriesRepo{last: make(map[entity.SequenceRef]int64)}
}

func (r *fakeSeriesRepo) NextSequential(_ context.Context, ref entity.SequenceRef) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.last[ref]++
	return r.last[ref], nil
}

// ── puertos del pipeline ──────────────────────────────────────────────────────

type fakeSerializer struct{}

func (fakeSerializer) Serialize(doc *entity.TaxDocument, _ *entity.Company, _ *entity.Customer, _ []*entity.DocumentLine) ([]byte, error) {
	return []byte(`<?xml version="1.0"?><factura id="comprobante"><claveAcceso>` + doc.AccessKey + `</claveAcceso></factura>`), nil
}

type fakeSigner struct {
	err error
}

func (s fakeSigner) Sign(xmlBytes []byte, _ tls.Certificate) ([]byte, error) {
	if s.err != nil {
		return nil, s.err
	}
	return append([]byte("signed:"), xmlBytes...), nil
}

type fakeCredentials struct {
	err error
}

func (c fakeCredentials) Resolve(_ context.Context, _ *entity.Company) (tls.Certificate, error) {
	if c.err != nil {
		return tls.Certificate{}, c.err
	}
	return tls.Certificate{Certificate: [][]byte{{0x01}}, PrivateKey: struct{}{}}, nil
}

// switchableCredentials simula una credencial que se repone a mitad del test
// (certificado renovado en la base).
type switchableCredentials struct {
	mu  sync.Mutex
	err error
}

func (c *switchableCredentials) Resolve(_ context.Context, _ *entity.Company) (tls.Certificate, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return tls.Certificate{}, c.err
	}
	return tls.Certificate{Certificate: [][]byte{{0x01}}, PrivateKey: struct{}{}}, nil
}

func (c *switchableCredentials) set(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.err = err
}

type memArtifactStore struct {
	mu    sync.Mutex
	blobs map[string][]byte
}

func newMemArtifactStore() *memArtifactStore {
	return &memArtifactStore{blobs: make(map[string][]byte)}
}

func (s *memArtifactStore) Save(_ context.Context, companyID, documentID, name string, data []byte) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ref := companyID + "/" + documentID + "/" + name
	s.blobs[ref] = data
	return ref, nil
}

func (s *memArtifactStore) Load(_ context.Context, ref string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.blobs[ref]
	if !ok {
		return nil, fmt.Errorf("artefacto %s: %w", ref, domain.ErrNotFound)
	}
	return data, nil
}

type fakePrintable struct{}

func (fakePrintable) Generate(_ context.Context, doc *entity.TaxDocument, _ *entity.Company, _ *entity.Customer, _ []*entity.DocumentLine) ([]byte, error) {
	return []byte("%PDF-fake " + doc.ID), nil
}

func (fakePrintable) GeneratePlaceholder(_ context.Context, doc *entity.TaxDocument, _ *entity.Company) ([]byte, error) {
	return []byte("%PDF-placeholder " + doc.ID), nil
}

// scriptedAuthority devuelve resultados predefinidos por llamada; agotado el
// guion repite el último. Los errores simulan fallas de transporte.
type scriptedAuthority struct {
	mu          sync.Mutex
	receptions  []receptionStep
	auths       []authorizationStep
	recCalls    int
	authCalls   int
	lastPayload []byte // último XML entregado a Receive
}

type receptionStep struct {
	result *ReceptionResult
	err    error
}

type authorizationStep struct {
	result *AuthorizationResult
	err    error
}

func (a *scriptedAuthority) Receive(_ context.Context, signedXML []byte, _ *entity.TaxDocument, _ *entity.Company) (*ReceptionResult, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	step := a.receptions[min(a.recCalls, len(a.receptions)-1)]
	a.recCalls++
	a.lastPayload = append([]byte(nil), signedXML...)
	return step.result, step.err
}

func (a *scriptedAuthority) Authorize(_ context.Context, _ *entity.TaxDocument, _ *entity.Company) (*AuthorizationResult, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	step := a.auths[min(a.authCalls, len(a.auths)-1)]
	a.authCalls++
	return step.result, step.err
}
