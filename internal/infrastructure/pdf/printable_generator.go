// Package pdf implementa la representación imprimible del comprobante
// electrónico (RIDE en Ecuador, representación gráfica en Colombia).
//
// Layout de la página A4:
//
//	┌─────────────────────────────────────────────────────────────┐
//	│  HEADER: Razón Social + RUC/NIT  │  N° Comprobante + Fecha  │
//	│  ─────────────────────────────────────────────────────────  │
//	│  CLAVE DE ACCESO: código de barras + texto                  │
//	│  N° AUTORIZACIÓN (si el documento está autorizado)          │
//	│  ─────────────────────────────────────────────────────────  │
//	│  ADQUIRIENTE: Nombre + identificación + contacto            │
//	│  TABLA: Cant | Descripción | P.Unit | Dcto | Subtotal       │
//	│  ─────────────────────────────────────────────────────────  │
//	│  TOTALES: Subtotal neto / Impuestos / TOTAL                 │
//	└─────────────────────────────────────────────────────────────┘
//
// GeneratePlaceholder produce la variante degradada: misma cabecera con una
// leyenda que marca el documento como no válido tributariamente.
package pdf

import (
	"context"
	"fmt"

	maroto "github.com/johnfercher/maroto/v2"
	"github.com/johnfercher/maroto/v2/pkg/components/code"
	"github.com/johnfercher/maroto/v2/pkg/components/col"
	"github.com/johnfercher/maroto/v2/pkg/components/line"
	"github.com/johnfercher/maroto/v2/pkg/components/row"
	"github.com/johnfercher/maroto/v2/pkg/components/text"
	"github.com/johnfercher/maroto/v2/pkg/config"
	"github.com/johnfercher/maroto/v2/pkg/consts/align"
	"github.com/johnfercher/maroto/v2/pkg/consts/fontstyle"
	"github.com/johnfercher/maroto/v2/pkg/consts/pagesize"
	"github.com/johnfercher/maroto/v2/pkg/core"
	"github.com/johnfercher/maroto/v2/pkg/props"

	"github.com/facturio/facturio-api/internal/domain/entity"
)

// ── Paleta de colores ─────────────────────────────────────────────────────────

var (
	colorPrimary = &props.Color{Red: 0, Green: 70, Blue: 127}
	colorGray    = &props.Color{Red: 100, Green: 100, Blue: 100}
	colorDanger  = &props.Color{Red: 170, Green: 20, Blue: 20}
)

// ── Generator ─────────────────────────────────────────────────────────────────

// MarotoPrintableGenerator implementa billing.PrintableGenerator usando
// Maroto v2.
type MarotoPrintableGenerator struct{}

// NewMarotoPrintableGenerator construye el generador.
func NewMarotoPrintableGenerator() *MarotoPrintableGenerator { return &MarotoPrintableGenerator{} }

// Generate genera la representación imprimible definitiva y devuelve sus bytes.
func (g *MarotoPrintableGenerator) Generate(
	_ context.Context,
	doc *entity.TaxDocument,
	company *entity.Company,
	customer *entity.Customer,
	lines []*entity.DocumentLine,
) ([]byte, error) {
	m := newDocument(company)

	m.AddRows(headerRow(doc, company))
	m.AddRows(line.NewRow(1, props.Line{Color: colorPrimary, Thickness: 0.5}))
	for _, r := range accessKeyRows(doc) {
		m.AddRows(r)
	}
	m.AddRows(line.NewRow(1, props.Line{Color: colorPrimary, Thickness: 0.3}))
	m.AddRows(receptorRow(customer))
	m.AddRows(line.NewRow(1, props.Line{Color: colorPrimary, Thickness: 0.3}))

	m.AddRows(tableHeaderRow())
	for _, r := range tableDetailRows(lines) {
		m.AddRows(r)
	}

	m.AddRows(line.NewRow(1, props.Line{Color: colorPrimary, Thickness: 0.3}))
	m.AddRows(totalsRow(doc))
	m.AddRows(legalFooterRow(doc))

	pdfDoc, err := m.Generate()
	if err != nil {
		return nil, fmt.Errorf("pdf: generar documento: %w", err)
	}
	return pdfDoc.GetBytes(), nil
}

// GeneratePlaceholder genera la copia provisional del modo degradado.
// No lleva número de autorización ni tabla de detalles, solo la cabecera y la
// leyenda que invalida el documento como soporte fiscal.
func (g *MarotoPrintableGenerator) GeneratePlaceholder(
	_ context.Context,
	doc *entity.TaxDocument,
	company *entity.Company,
) ([]byte, error) {
	m := newDocument(company)

	m.AddRows(headerRow(doc, company))
	m.AddRows(line.NewRow(1, props.Line{Color: colorDanger, Thickness: 0.8}))

	m.AddRows(row.New(16).Add(col.New(12).Add(
		text.New("DOCUMENTO SIN AUTORIZACIÓN", props.Text{
			Style: fontstyle.Bold, Size: 16, Align: align.Center,
			Color: colorDanger, Top: 3,
		}),
		text.New("NO VÁLIDO TRIBUTARIAMENTE", props.Text{
			Style: fontstyle.Bold, Size: 12, Align: align.Center,
			Color: colorDanger, Top: 11,
		}),
	)))

	for _, r := range accessKeyRows(doc) {
		m.AddRows(r)
	}

	m.AddRows(row.New(10).Add(col.New(12).Add(
		text.New(
			"Copia provisional emitida sin firma o sin respuesta de la autoridad "+
				"tributaria. Reenvíe el documento para obtener la autorización.",
			props.Text{Size: 8, Color: colorGray, Top: 3, Align: align.Center},
		),
	)))

	pdfDoc, err := m.Generate()
	if err != nil {
		return nil, fmt.Errorf("pdf: generar copia provisional: %w", err)
	}
	return pdfDoc.GetBytes(), nil
}

func newDocument(company *entity.Company) core.Maroto {
	cfg := config.NewBuilder().
		WithPageSize(pagesize.A4).
		WithLeftMargin(10).WithRightMargin(10).
		WithTopMargin(10).WithBottomMargin(10).
		WithDefaultFont(&props.Font{Family: "helvetica", Size: 9}).
		WithTitle("Comprobante Electrónico", true).
		WithAuthor(company.LegalName, true).
		Build()
	return maroto.New(cfg)
}

// ── Secciones ─────────────────────────────────────────────────────────────────

// headerRow: razón social + RUC/NIT (izq) y número + fecha (der).
func headerRow(doc *entity.TaxDocument, company *entity.Company) core.Row {
	numero := fmt.Sprintf("%s-%s-%s", doc.Establishment, doc.EmissionPoint, doc.Sequential)
	fecha := doc.IssueDate.Format("02/01/2006")

	return row.New(18).Add(
		col.New(7).Add(
			text.New(company.LegalName, props.Text{
				Style: fontstyle.Bold, Size: 13, Color: colorPrimary, Top: 1,
			}),
			text.New(taxIDLabel(company)+": "+company.TaxID, props.Text{
				Size: 9, Top: 9, Color: colorGray,
			}),
		),
		col.New(5).Add(
			text.New(docTypeTitle(doc.DocType), props.Text{
				Style: fontstyle.Bold, Size: 8, Align: align.Right,
				Color: colorPrimary, Top: 1,
			}),
			text.New(numero, props.Text{
				Style: fontstyle.Bold, Size: 12, Align: align.Right, Top: 7,
			}),
			text.New("Fecha: "+fecha, props.Text{
				Size: 8, Align: align.Right, Top: 14, Color: colorGray,
			}),
		),
	)
}

// accessKeyRows: clave de acceso como código de barras Code128 + texto, y el
// número de autorización cuando la autoridad ya lo asignó.
func accessKeyRows(doc *entity.TaxDocument) []core.Row {
	var rows []core.Row
	if doc.AccessKey != "" {
		rows = append(rows,
			row.New(16).Add(col.New(12).Add(
				code.NewBar(doc.AccessKey, props.Barcode{
					Percent: 90,
					Center:  true,
				}),
			)),
			row.New(5).Add(col.New(12).Add(
				text.New(doc.AccessKey, props.Text{
					Size: 7, Align: align.Center, Color: colorGray, Top: 1,
				}),
			)),
		)
	}
	if doc.AuthorityNumber != "" && doc.AuthorityNumber != doc.AccessKey {
		rows = append(rows, row.New(5).Add(col.New(12).Add(
			text.New("N° Autorización: "+doc.AuthorityNumber, props.Text{
				Style: fontstyle.Bold, Size: 7, Align: align.Center, Top: 1,
			}),
		)))
	}
	return rows
}

// receptorRow: datos del adquiriente.
func receptorRow(customer *entity.Customer) core.Row {
	return row.New(14).Add(
		col.New(12).Add(
			text.New("ADQUIRIENTE", props.Text{
				Style: fontstyle.Bold, Size: 8, Color: colorPrimary, Top: 1,
			}),
			text.New(customer.Name, props.Text{
				Style: fontstyle.Bold, Size: 10, Top: 6,
			}),
			text.New(fmt.Sprintf("Identificación: %s   |   Email: %s   |   Tel: %s",
				customer.TaxID,
				nonEmpty(customer.Email, "—"),
				nonEmpty(customer.Phone, "—"),
			), props.Text{Size: 8, Top: 12, Color: colorGray}),
		),
	)
}

// tableHeaderRow: cabecera de la tabla de detalles.
func tableHeaderRow() core.Row {
	h := func(label string, size int, a align.Type) core.Col {
		return col.New(size).Add(text.New(label, props.Text{
			Style: fontstyle.Bold, Size: 8, Align: a,
			Color: colorPrimary, Top: 2, Left: 1, Right: 1,
		}))
	}
	return row.New(8).Add(
		h("Cant.", 1, align.Center),
		h("Descripción", 5, align.Left),
		h("Precio Unit.", 2, align.Right),
		h("Dcto.", 1, align.Right),
		h("Subtotal", 3, align.Right),
	)
}

// tableDetailRows: una fila por línea de detalle.
func tableDetailRows(lines []*entity.DocumentLine) []core.Row {
	result := make([]core.Row, 0, len(lines))
	for _, l := range lines {
		result = append(result, row.New(7).Add(
			col.New(1).Add(text.New(
				l.Quantity.StringFixed(2),
				props.Text{Size: 8, Align: align.Center, Top: 1},
			)),
			col.New(5).Add(text.New(
				l.Description,
				props.Text{Size: 8, Align: align.Left, Top: 1, Left: 1},
			)),
			col.New(2).Add(text.New(
				l.UnitPrice.StringFixed(2),
				props.Text{Size: 8, Align: align.Right, Top: 1, Right: 1},
			)),
			col.New(1).Add(text.New(
				l.Discount.StringFixed(2),
				props.Text{Size: 8, Align: align.Right, Top: 1, Right: 1},
			)),
			col.New(3).Add(text.New(
				l.Subtotal.StringFixed(2),
				props.Text{Size: 8, Align: align.Right, Top: 1, Right: 1},
			)),
		))
	}
	return result
}

// totalsRow: subtotales por tarifa + totales, alineados a la derecha.
func totalsRow(doc *entity.TaxDocument) core.Row {
	label := func(s string) core.Component {
		return text.New(s, props.Text{
			Style: fontstyle.Bold, Size: 9, Align: align.Right, Right: 2,
		})
	}
	value := func(s string) core.Component {
		return text.New(s, props.Text{Size: 9, Align: align.Right, Right: 1})
	}
	grandLabel := func(s string) core.Component {
		return text.New(s, props.Text{
			Style: fontstyle.Bold, Size: 10, Align: align.Right,
			Color: colorPrimary, Right: 2,
		})
	}
	grandValue := func(s string) core.Component {
		return text.New(s, props.Text{
			Style: fontstyle.Bold, Size: 10, Align: align.Right,
			Color: colorPrimary, Right: 1,
		})
	}

	return row.New(26).Add(
		col.New(3),
		col.New(4).Add(
			label("Subtotal sin impuestos:"),
			label("Total impuestos:"),
			grandLabel("TOTAL ("+doc.Currency+"):"),
		),
		col.New(4).Add(
			value(doc.NetTotal.StringFixed(2)),
			value(doc.TaxTotal.StringFixed(2)),
			grandValue(doc.GrandTotal.StringFixed(2)),
		),
		col.New(1),
	)
}

// legalFooterRow: leyenda de conservación del documento.
func legalFooterRow(doc *entity.TaxDocument) core.Row {
	leyenda := "Comprobante electrónico autorizado. Conserve este documento como soporte fiscal."
	if doc.Status != entity.StatusAuthorized {
		leyenda = "Comprobante electrónico en trámite de autorización."
	}
	return row.New(8).Add(col.New(12).Add(
		text.New(leyenda, props.Text{Size: 6.5, Color: colorGray, Top: 2}),
	))
}

// ── helpers ───────────────────────────────────────────────────────────────────

func nonEmpty(s, fallback string) string {
	if s != "" {
		return s
	}
	return fallback
}

func taxIDLabel(company *entity.Company) string {
	if company.Jurisdiction == entity.JurisdictionDIAN {
		return "NIT"
	}
	return "RUC"
}

func docTypeTitle(docType string) string {
	switch docType {
	case "04":
		return "NOTA DE CRÉDITO ELECTRÓNICA"
	case "05":
		return "NOTA DE DÉBITO ELECTRÓNICA"
	default:
		return "FACTURA ELECTRÓNICA DE VENTA"
	}
}
