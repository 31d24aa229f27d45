package billing

import (
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/facturio/facturio-api/internal/application/dto"
	"github.com/facturio/facturio-api/internal/domain"
	"github.com/facturio/facturio-api/internal/domain/entity"
	"github.com/facturio/facturio-api/pkg/sri"
)

// centTolerance diferencia máxima aceptada entre el total declarado por el
// cliente y el total calculado. Un centavo absorbe el redondeo de la última
// milla; cualquier diferencia mayor es un error de captura.
var centTolerance = decimal.NewFromFloat(0.01)

// DocumentBuilder construye un TaxDocument en estado DRAFT desde la solicitud
// de venta. Es puro: no toca repositorios ni asigna secuenciales.
type DocumentBuilder struct{}

func NewDocumentBuilder() *DocumentBuilder {
	return &DocumentBuilder{}
}

// Build valida la solicitud, recalcula los totales línea a línea y retorna el
// documento con sus líneas. Los montos se calculan siempre del lado del
// servidor; el ExpectedTotal del cliente solo se usa para conciliar.
func (b *DocumentBuilder) Build(req *dto.SubmitSaleRequest, company *entity.Company, customer *entity.Customer) (*entity.TaxDocument, []*entity.DocumentLine, error) {
	if !sri.ValidDocTypes[req.DocType] {
		return nil, nil, fmt.Errorf("%w: tipo de documento %q no soportado", domain.ErrValidation, req.DocType)
	}
	if len(req.Lines) == 0 {
		return nil, nil, fmt.Errorf("%w: el documento requiere al menos una línea", domain.ErrValidation)
	}
	if sri.RequiresBuyerIdentification(req.DocType) && customer.TaxID == "" {
		return nil, nil, fmt.Errorf("%w: el comprador requiere identificación tributaria", domain.ErrValidation)
	}

	issueDate := time.Now()
	if req.IssueDate != nil {
		issueDate = *req.IssueDate
	}

	docID := uuid.New().String()

	netTotal := decimal.Zero
	taxTotal := decimal.Zero
	subtotals := map[string]*entity.TaxSubtotal{}
	lines := make([]*entity.DocumentLine, 0, len(req.Lines))

	for i, l := range req.Lines {
		if l.Quantity.LessThanOrEqual(decimal.Zero) {
			return nil, nil, fmt.Errorf("%w: línea %d: la cantidad debe ser positiva", domain.ErrValidation, i+1)
		}
		if l.UnitPrice.IsNegative() {
			return nil, nil, fmt.Errorf("%w: línea %d: el precio unitario no puede ser negativo", domain.ErrValidation, i+1)
		}
		if l.Discount.IsNegative() {
			return nil, nil, fmt.Errorf("%w: línea %d: el descuento no puede ser negativo", domain.ErrValidation, i+1)
		}
		if !sri.ValidRateCodes[l.RateCode] {
			return nil, nil, fmt.Errorf("%w: línea %d: código de tarifa %q desconocido", domain.ErrValidation, i+1, l.RateCode)
		}

		subtotal := l.Quantity.Mul(l.UnitPrice).Sub(l.Discount).Round(2)
		if subtotal.IsNegative() {
			return nil, nil, fmt.Errorf("%w: línea %d: el descuento excede el valor de la línea", domain.ErrValidation, i+1)
		}
		taxAmount := subtotal.Mul(l.TaxRate).Div(decimal.NewFromInt(100)).Round(2)

		lines = append(lines, &entity.DocumentLine{
			ID:          uuid.New().String(),
			DocumentID:  docID,
			ProductCode: l.ProductCode,
			Description: l.Description,
			Quantity:    l.Quantity,
			UnitPrice:   l.UnitPrice,
			Discount:    l.Discount,
			RateCode:    l.RateCode,
			TaxRate:     l.TaxRate,
			TaxAmount:   taxAmount,
			Subtotal:    subtotal,
			Total:       subtotal.Add(taxAmount),
		})

		netTotal = netTotal.Add(subtotal)
		taxTotal = taxTotal.Add(taxAmount)

		st, ok := subtotals[l.RateCode]
		if !ok {
			st = &entity.TaxSubtotal{RateCode: l.RateCode, Rate: l.TaxRate}
			subtotals[l.RateCode] = st
		}
		st.Base = st.Base.Add(subtotal)
		st.TaxAmount = st.TaxAmount.Add(taxAmount)
	}

	grandTotal := netTotal.Add(taxTotal)

	if req.ExpectedTotal != nil {
		diff := grandTotal.Sub(*req.ExpectedTotal).Abs()
		if diff.GreaterThan(centTolerance) {
			return nil, nil, fmt.Errorf("%w: total declarado %s no concilia con el calculado %s",
				domain.ErrValidation, req.ExpectedTotal.StringFixed(2), grandTotal.StringFixed(2))
		}
	}

	// Orden estable de subtotales por código de tarifa para serialización
	// determinista.
	ordered := make([]entity.TaxSubtotal, 0, len(subtotals))
	for _, code := range orderedRateCodes(subtotals) {
		ordered = append(ordered, *subtotals[code])
	}

	now := time.Now()
	doc := &entity.TaxDocument{
		ID:              docID,
		CompanyID:       company.ID,
		CustomerID:      customer.ID,
		DocType:         req.DocType,
		Establishment:   company.Establishment,
		EmissionPoint:   company.EmissionPoint,
		IssueDate:       issueDate,
		Currency:        req.Currency,
		NetTotal:        netTotal,
		TaxTotal:        taxTotal,
		GrandTotal:      grandTotal,
		Subtotals:       ordered,
		Status:          entity.StatusDraft,
		StatusChangedAt: now,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if doc.Currency == "" {
		doc.Currency = "USD"
	}

	return doc, lines, nil
}

func orderedRateCodes(m map[string]*entity.TaxSubtotal) []string {
	codes := make([]string, 0, len(m))
	for code := range m {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes
}
