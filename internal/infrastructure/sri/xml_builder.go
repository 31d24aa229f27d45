package sri

import (
	"bytes"
	"encoding/xml"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/facturio/facturio-api/internal/domain/entity"
	domsri "github.com/facturio/facturio-api/internal/domain/sri"
	pkgsri "github.com/facturio/facturio-api/pkg/sri"
)

// Versión del esquema de factura del SRI (Ficha Técnica, esquema offline).
const facturaVersion = "1.1.0"

// XMLBuilderService serializa el documento canónico al esquema XML del SRI.
// La salida es determinista: el mismo documento produce bytes idénticos, que
// es lo que la firma cubre.
type XMLBuilderService struct{}

// NewXMLBuilderService crea el servicio.
func NewXMLBuilderService() *XMLBuilderService {
	return &XMLBuilderService{}
}

// Serialize genera el comprobante XML con el atributo id="comprobante" en la
// raíz, que la firma usa como Reference URI. Solo la factura (01) tiene
// representación de envío; los demás tipos del catálogo se rechazan aquí.
func (s *XMLBuilderService) Serialize(doc *entity.TaxDocument, company *entity.Company, customer *entity.Customer, lines []*entity.DocumentLine) ([]byte, error) {
	if doc == nil || company == nil || customer == nil {
		return nil, fmt.Errorf("sri: faltan documento, empresa o cliente")
	}
	if doc.DocType != pkgsri.DocTypeInvoice {
		return nil, fmt.Errorf("sri: tipo de comprobante %q sin serializador", doc.DocType)
	}
	if doc.AccessKey == "" {
		return nil, fmt.Errorf("sri: el documento no tiene clave de acceso")
	}

	var buf bytes.Buffer
	buf.WriteString(xml.Header)
	enc := xml.NewEncoder(&buf)
	enc.Indent("", "  ")

	root := xml.StartElement{
		Name: xml.Name{Local: "factura"},
		Attr: []xml.Attr{
			{Name: xml.Name{Local: "id"}, Value: "comprobante"},
			{Name: xml.Name{Local: "version"}, Value: facturaVersion},
		},
	}
	if err := enc.EncodeToken(root); err != nil {
		return nil, err
	}

	s.writeInfoTributaria(enc, doc, company)
	s.writeInfoFactura(enc, doc, company, customer, lines)
	s.writeDetalles(enc, lines)

	if err := enc.EncodeToken(root.End()); err != nil {
		return nil, err
	}
	if err := enc.Flush(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (s *XMLBuilderService) writeInfoTributaria(enc *xml.Encoder, doc *entity.TaxDocument, company *entity.Company) {
	writeEl(enc, "infoTributaria", func() {
		writeText(enc, "ambiente", company.Environment)
		writeText(enc, "tipoEmision", domsri.EmissionNormal)
		writeText(enc, "razonSocial", company.LegalName)
		if company.TradeName != "" {
			writeText(enc, "nombreComercial", company.TradeName)
		}
		writeText(enc, "ruc", company.TaxID)
		writeText(enc, "claveAcceso", doc.AccessKey)
		writeText(enc, "codDoc", doc.DocType)
		writeText(enc, "estab", doc.Establishment)
		writeText(enc, "ptoEmi", doc.EmissionPoint)
		writeText(enc, "secuencial", doc.Sequential)
		writeText(enc, "dirMatriz", company.Address)
	})
}

func (s *XMLBuilderService) writeInfoFactura(enc *xml.Encoder, doc *entity.TaxDocument, company *entity.Company, customer *entity.Customer, lines []*entity.DocumentLine) {
	writeEl(enc, "infoFactura", func() {
		writeText(enc, "fechaEmision", doc.IssueDate.Format("02/01/2006"))
		writeText(enc, "dirEstablecimiento", company.Address)
		writeText(enc, "obligadoContabilidad", pkgsri.AccountingYes)

		identType := customer.IdentType
		if identType == "" {
			identType = pkgsri.IdentTypeFinalConsumer
		}
		writeText(enc, "tipoIdentificacionComprador", identType)
		writeText(enc, "razonSocialComprador", customer.Name)
		taxID := customer.TaxID
		if taxID == "" {
			taxID = pkgsri.FinalConsumerTaxID
		}
		writeText(enc, "identificacionComprador", taxID)

		writeText(enc, "totalSinImpuestos", fixed2(doc.NetTotal))
		writeText(enc, "totalDescuento", fixed2(totalDiscount(lines)))

		writeEl(enc, "totalConImpuestos", func() {
			for _, st := range doc.Subtotals {
				writeEl(enc, "totalImpuesto", func() {
					writeText(enc, "codigo", pkgsri.TaxCodeIVA)
					writeText(enc, "codigoPorcentaje", st.RateCode)
					writeText(enc, "baseImponible", fixed2(st.Base))
					writeText(enc, "valor", fixed2(st.TaxAmount))
				})
			}
		})

		writeText(enc, "propina", "0.00")
		writeText(enc, "importeTotal", fixed2(doc.GrandTotal))
		writeText(enc, "moneda", currencyName(doc.Currency))
	})
}

func (s *XMLBuilderService) writeDetalles(enc *xml.Encoder, lines []*entity.DocumentLine) {
	writeEl(enc, "detalles", func() {
		for _, line := range lines {
			writeEl(enc, "detalle", func() {
				writeText(enc, "codigoPrincipal", line.ProductCode)
				writeText(enc, "descripcion", line.Description)
				writeText(enc, "cantidad", line.Quantity.StringFixed(6))
				writeText(enc, "precioUnitario", line.UnitPrice.StringFixed(6))
				writeText(enc, "descuento", fixed2(line.Discount))
				writeText(enc, "precioTotalSinImpuesto", fixed2(line.Subtotal))
				writeEl(enc, "impuestos", func() {
					writeEl(enc, "impuesto", func() {
						writeText(enc, "codigo", pkgsri.TaxCodeIVA)
						writeText(enc, "codigoPorcentaje", line.RateCode)
						writeText(enc, "tarifa", line.TaxRate.StringFixed(2))
						writeText(enc, "baseImponible", fixed2(line.Subtotal))
						writeText(enc, "valor", fixed2(line.TaxAmount))
					})
				})
			})
		}
	})
}

// ── helpers ───────────────────────────────────────────────────────────────────

func writeEl(enc *xml.Encoder, local string, body func()) {
	start := xml.StartElement{Name: xml.Name{Local: local}}
	_ = enc.EncodeToken(start)
	body()
	_ = enc.EncodeToken(start.End())
}

func writeText(enc *xml.Encoder, local, value string) {
	start := xml.StartElement{Name: xml.Name{Local: local}}
	_ = enc.EncodeToken(start)
	_ = enc.EncodeToken(xml.CharData(value))
	_ = enc.EncodeToken(start.End())
}

func fixed2(d decimal.Decimal) string {
	return d.Round(2).StringFixed(2)
}

func totalDiscount(lines []*entity.DocumentLine) decimal.Decimal {
	total := decimal.Zero
	for _, l := range lines {
		total = total.Add(l.Discount)
	}
	return total.Round(2)
}

func currencyName(code string) string {
	if code == "" || code == "USD" {
		return "DOLAR"
	}
	return code
}
