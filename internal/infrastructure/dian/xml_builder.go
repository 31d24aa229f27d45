package dian

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"strconv"

	"github.com/shopspring/decimal"

	"github.com/facturio/facturio-api/internal/domain/entity"
	pkgdian "github.com/facturio/facturio-api/pkg/dian"
)

// Namespaces oficiales UBL 2.1 y DIAN (Anexo Técnico 1.9).
const (
	// Namespace por defecto (UBL Invoice)
	NsInvoice = "urn:oasis:names:specification:ubl:schema:xsd:Invoice-2"
	// Common Aggregate Components
	NsCac = "urn:oasis:names:specification:ubl:schema:xsd:CommonAggregateComponents-2"
	// Common Basic Components
	NsCbc = "urn:oasis:names:specification:ubl:schema:xsd:CommonBasicComponents-2"
	// Extension Components
	NsExt = "urn:oasis:names:specification:ubl:schema:xsd:CommonExtensionComponents-2"
	// DIAN Extensions
	NsSts = "dian:gov:co:facturaelectronica:v1"
	// XML Digital Signature
	NsDs = "http://www.w3.org/2000/09/xmldsig#"
	// XAdES (para la firma)
	NsXades = "http://uri.etsi.org/01903/v1.3.2#"
)

// XMLBuilderService construye el Invoice UBL 2.1 (sin firma) para la
// jurisdicción DIAN. Implementa billing.Serializer.
type XMLBuilderService struct{}

// NewXMLBuilderService crea el servicio.
func NewXMLBuilderService() *XMLBuilderService {
	return &XMLBuilderService{}
}

// Serialize genera el []byte del documento Invoice según UBL 2.1. El atributo
// Id de la raíz es la referencia de la firma; cbc:UUID lleva la referencia
// provisional hasta que la autoridad asigne el identificador definitivo.
func (s *XMLBuilderService) Serialize(doc *entity.TaxDocument, company *entity.Company, customer *entity.Customer, lines []*entity.DocumentLine) ([]byte, error) {
	if doc == nil || company == nil || customer == nil {
		return nil, fmt.Errorf("dian: faltan documento, empresa o cliente")
	}
	if doc.AccessKey == "" {
		return nil, fmt.Errorf("dian: el documento no tiene referencia provisional")
	}

	var buf bytes.Buffer
	buf.WriteString(xml.Header)
	enc := xml.NewEncoder(&buf)
	enc.Indent("", "  ")

	root := xml.StartElement{
		Name: xml.Name{Local: "Invoice"},
		Attr: []xml.Attr{
			{Name: xml.Name{Local: "Id"}, Value: "comprobante"},
			{Name: xml.Name{Local: "xmlns"}, Value: NsInvoice},
			{Name: xml.Name{Local: "xmlns:cac"}, Value: NsCac},
			{Name: xml.Name{Local: "xmlns:cbc"}, Value: NsCbc},
			{Name: xml.Name{Local: "xmlns:ds"}, Value: NsDs},
			{Name: xml.Name{Local: "xmlns:ext"}, Value: NsExt},
			{Name: xml.Name{Local: "xmlns:sts"}, Value: NsSts},
			{Name: xml.Name{Local: "xmlns:xades"}, Value: NsXades},
		},
	}
	if err := enc.EncodeToken(root); err != nil {
		return nil, err
	}

	// ext:UBLExtensions siempre como primer hijo: la segunda extensión es el
	// hueco donde el firmador inyecta ds:Signature.
	s.writeUBLExtensions(enc)

	number := doc.Establishment + doc.EmissionPoint + doc.Sequential
	writeCbc(enc, "UBLVersionID", "2.1")
	writeCbc(enc, "CustomizationID", "10")
	writeCbc(enc, "ProfileID", "DIAN 2.1: Factura Electrónica de Venta")
	writeCbc(enc, "ID", number)
	writeCbc(enc, "UUID", doc.AccessKey)
	writeCbc(enc, "IssueDate", doc.IssueDate.Format("2006-01-02"))
	writeCbc(enc, "IssueTime", doc.IssueDate.Format("15:04:05-07:00"))
	writeCbc(enc, "DocumentCurrencyCode", currencyCode(doc.Currency))
	writeCbc(enc, "LineCountNumeric", strconv.Itoa(len(lines)))

	s.writeSupplierParty(enc, company)
	s.writeCustomerParty(enc, customer)
	s.writeTaxTotal(enc, doc)
	s.writeLegalMonetaryTotal(enc, doc)
	for i, line := range lines {
		s.writeInvoiceLine(enc, i+1, line, doc.Currency)
	}

	if err := enc.EncodeToken(root.End()); err != nil {
		return nil, err
	}
	if err := enc.Flush(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (s *XMLBuilderService) writeUBLExtensions(enc *xml.Encoder) {
	writeLocal(enc, "ext:UBLExtensions", func() {
		// 1. Extensión DIAN (contenido de control; vacío sin resolución).
		writeLocal(enc, "ext:UBLExtension", func() {
			writeLocal(enc, "ext:ExtensionContent", func() {})
		})
		// 2. Hueco para ds:Signature.
		writeLocal(enc, "ext:UBLExtension", func() {
			writeLocal(enc, "ext:ExtensionContent", func() {})
		})
	})
}

func (s *XMLBuilderService) writeSupplierParty(enc *xml.Encoder, company *entity.Company) {
	writeLocal(enc, "cac:AccountingSupplierParty", func() {
		writeLocal(enc, "cac:Party", func() {
			writeLocal(enc, "cac:PartyIdentification", func() {
				writeCbcWithAttr(enc, "ID", onlyDigits(company.TaxID), "schemeID", pkgdian.IdentificationTypeNIT)
			})
			writeLocal(enc, "cac:PartyName", func() {
				writeCbc(enc, "Name", company.LegalName)
			})
			if company.Address != "" {
				writeLocal(enc, "cac:PostalAddress", func() {
					writeCbc(enc, "StreetName", company.Address)
				})
			}
		})
	})
}

func (s *XMLBuilderService) writeCustomerParty(enc *xml.Encoder, customer *entity.Customer) {
	writeLocal(enc, "cac:AccountingCustomerParty", func() {
		writeLocal(enc, "cac:Party", func() {
			writeLocal(enc, "cac:PartyIdentification", func() {
				writeCbcWithAttr(enc, "ID", onlyDigits(customer.TaxID), "schemeID", identScheme(customer.TaxID))
			})
			writeLocal(enc, "cac:PartyName", func() {
				writeCbc(enc, "Name", customer.Name)
			})
		})
	})
}

func (s *XMLBuilderService) writeTaxTotal(enc *xml.Encoder, doc *entity.TaxDocument) {
	currency := currencyCode(doc.Currency)
	writeLocal(enc, "cac:TaxTotal", func() {
		writeCbcAmount(enc, "TaxAmount", fixed2(doc.TaxTotal), currency)
		for _, st := range doc.Subtotals {
			writeLocal(enc, "cac:TaxSubtotal", func() {
				writeCbcAmount(enc, "TaxableAmount", fixed2(st.Base), currency)
				writeCbcAmount(enc, "TaxAmount", fixed2(st.TaxAmount), currency)
				writeLocal(enc, "cac:TaxCategory", func() {
					writeCbc(enc, "ID", pkgdian.TaxCodeIVA)
					writeCbc(enc, "Percent", st.Rate.Round(2).String())
				})
			})
		}
	})
}

func (s *XMLBuilderService) writeLegalMonetaryTotal(enc *xml.Encoder, doc *entity.TaxDocument) {
	currency := currencyCode(doc.Currency)
	writeLocal(enc, "cac:LegalMonetaryTotal", func() {
		writeCbcAmount(enc, "LineExtensionAmount", fixed2(doc.NetTotal), currency)
		writeCbcAmount(enc, "TaxExclusiveAmount", fixed2(doc.NetTotal), currency)
		writeCbcAmount(enc, "TaxInclusiveAmount", fixed2(doc.GrandTotal), currency)
		writeCbcAmount(enc, "PayableAmount", fixed2(doc.GrandTotal), currency)
	})
}

func (s *XMLBuilderService) writeInvoiceLine(enc *xml.Encoder, lineNum int, line *entity.DocumentLine, currency string) {
	currency = currencyCode(currency)
	writeLocal(enc, "cac:InvoiceLine", func() {
		writeCbc(enc, "ID", strconv.Itoa(lineNum))
		writeCbcWithAttr(enc, "InvoicedQuantity", line.Quantity.StringFixed(2), "unitCode", pkgdian.UnitUnit)
		writeCbcAmount(enc, "LineExtensionAmount", fixed2(line.Subtotal), currency)
		writeLocal(enc, "cac:Item", func() {
			writeCbc(enc, "Description", line.Description)
			if line.ProductCode != "" {
				writeLocal(enc, "cac:SellersItemIdentification", func() {
					writeCbc(enc, "ID", line.ProductCode)
				})
			}
		})
		writeLocal(enc, "cac:Price", func() {
			writeCbcAmount(enc, "PriceAmount", fixed2(line.UnitPrice), currency)
			writeCbcWithAttr(enc, "BaseQuantity", "1", "unitCode", pkgdian.UnitUnit)
		})
	})
}

// ── helpers ───────────────────────────────────────────────────────────────────

func writeLocal(enc *xml.Encoder, name string, body func()) {
	start := xml.StartElement{Name: xml.Name{Local: name}}
	_ = enc.EncodeToken(start)
	body()
	_ = enc.EncodeToken(start.End())
}

func writeCbc(enc *xml.Encoder, local, value string) {
	writeLocal(enc, "cbc:"+local, func() {
		_ = enc.EncodeToken(xml.CharData(value))
	})
}

func writeCbcAmount(enc *xml.Encoder, local, value, currency string) {
	writeCbcWithAttr(enc, local, value, "currencyID", currency)
}

func writeCbcWithAttr(enc *xml.Encoder, local, value, attrLocal, attrValue string) {
	start := xml.StartElement{
		Name: xml.Name{Local: "cbc:" + local},
		Attr: []xml.Attr{{Name: xml.Name{Local: attrLocal}, Value: attrValue}},
	}
	_ = enc.EncodeToken(start)
	_ = enc.EncodeToken(xml.CharData(value))
	_ = enc.EncodeToken(start.End())
}

func identScheme(taxID string) string {
	if len(onlyDigits(taxID)) >= 9 {
		return pkgdian.IdentificationTypeNIT
	}
	return pkgdian.IdentificationTypeCC
}

func onlyDigits(s string) string {
	var out []byte
	for _, b := range []byte(s) {
		if b >= '0' && b <= '9' {
			out = append(out, b)
		}
	}
	return string(out)
}

func fixed2(d decimal.Decimal) string {
	return d.Round(2).StringFixed(2)
}

func currencyCode(code string) string {
	if code == "" {
		return "COP"
	}
	return code
}
