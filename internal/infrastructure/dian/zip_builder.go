package dian

import (
	"archive/zip"
	"bytes"
	"fmt"

	"github.com/facturio/facturio-api/internal/domain/entity"
)

// CompressXMLToZip empaqueta el XML firmado en un archivo ZIP en memoria.
// La DIAN exige que el ZIP contenga un único archivo con el nombre:
//
//	{NIT_OFE}{NUMERO}.xml  (sin guiones ni espacios)
//
// Devuelve los bytes del ZIP listo para enviar al WS DIAN.
func CompressXMLToZip(xmlBytes []byte, xmlFilename string) ([]byte, error) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)

	fw, err := zw.Create(xmlFilename)
	if err != nil {
		return nil, fmt.Errorf("zip: crear entrada %s: %w", xmlFilename, err)
	}
	if _, err := fw.Write(xmlBytes); err != nil {
		return nil, fmt.Errorf("zip: escribir XML: %w", err)
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("zip: cerrar archivo: %w", err)
	}
	return buf.Bytes(), nil
}

// Filenames genera los nombres de archivo requeridos por la DIAN para el ZIP
// y el XML interno: {NIT sin DV}{estab}{punto}{secuencial}.
// Ejemplo: 900123456001001000000001
func Filenames(company *entity.Company, doc *entity.TaxDocument) (xmlName, zipName string) {
	base := onlyDigits(company.TaxID) + doc.Establishment + doc.EmissionPoint + doc.Sequential
	return base + ".xml", base + ".zip"
}
