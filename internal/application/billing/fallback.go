package billing

import (
	"context"
	"fmt"

	"github.com/beevik/etree"
	"github.com/rs/zerolog"

	"github.com/facturio/facturio-api/internal/domain/entity"
)

// degradedNotice leyenda insertada en la copia provisional. El documento
// degradado nunca debe confundirse con uno autorizado.
const degradedNotice = "DOCUMENTO SIN AUTORIZACION - NO VALIDO TRIBUTARIAMENTE"

// DegradedFallback produce los artefactos provisionales cuando la firma no es
// posible (credencial vencida, ausente o ilegible). El documento queda en
// ERROR y el original sin firmar se conserva para un reenvío posterior.
type DegradedFallback struct {
	artifacts ArtifactStore
	printable PrintableGenerator
	logger    zerolog.Logger
}

func NewDegradedFallback(artifacts ArtifactStore, printable PrintableGenerator, logger zerolog.Logger) *DegradedFallback {
	return &DegradedFallback{artifacts: artifacts, printable: printable, logger: logger}
}

// Produce guarda la copia XML anotada y la representación imprimible
// provisional. Retorna las referencias de ambos artefactos.
func (f *DegradedFallback) Produce(ctx context.Context, doc *entity.TaxDocument, company *entity.Company, xmlBytes []byte) (xmlRef, pdfRef string, err error) {
	annotated, err := annotateDegraded(xmlBytes)
	if err != nil {
		return "", "", fmt.Errorf("anotando copia degradada: %w", err)
	}

	xmlRef, err = f.artifacts.Save(ctx, doc.CompanyID, doc.ID, "degraded.xml", annotated)
	if err != nil {
		return "", "", fmt.Errorf("guardando copia degradada: %w", err)
	}

	pdf, err := f.printable.GeneratePlaceholder(ctx, doc, company)
	if err != nil {
		// La copia XML ya quedó guardada; el PDF provisional es
		// complementario.
		f.logger.Error().Err(err).Str("document_id", doc.ID).Msg("no se pudo generar el PDF provisional")
		return xmlRef, "", nil
	}
	pdfRef, err = f.artifacts.Save(ctx, doc.CompanyID, doc.ID, "degraded.pdf", pdf)
	if err != nil {
		f.logger.Error().Err(err).Str("document_id", doc.ID).Msg("no se pudo guardar el PDF provisional")
		return xmlRef, "", nil
	}

	return xmlRef, pdfRef, nil
}

// annotateDegraded inserta la leyenda como comentario al inicio del documento
// XML, sin alterar el contenido del comprobante.
func annotateDegraded(xmlBytes []byte) ([]byte, error) {
	docTree := etree.NewDocument()
	if err := docTree.ReadFromBytes(xmlBytes); err != nil {
		return nil, err
	}
	root := docTree.Root()
	if root == nil {
		return nil, fmt.Errorf("documento XML sin elemento raíz")
	}
	root.InsertChildAt(0, &etree.Comment{Data: " " + degradedNotice + " "})
	return docTree.WriteToBytes()
}
