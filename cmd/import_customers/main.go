// import_customers genera un script SQL para poblar la tabla customers a
// partir de un padrón de clientes exportado por sistemas de facturación
// legados (CSV separado por ';' en ISO-8859-1).
//
// Uso: go run ./cmd/import_customers <company-id> <SRI|DIAN> [ruta/clientes.csv]
// Por defecto busca clientes.csv en el directorio actual.
// Escribe: migrations/002_seed_customers.sql
//
// Columnas esperadas: identificacion;razon_social;email;telefono;direccion
package main

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/transform"

	"github.com/facturio/facturio-api/pkg/dian"
	"github.com/facturio/facturio-api/pkg/sri"
)

type cliente struct {
	taxID     string
	identType string
	name      string
	email     string
	phone     string
	address   string
}

func main() {
	if len(os.Args) < 3 {
		fmt.Fprintln(os.Stderr, "Uso: import_customers <company-id> <SRI|DIAN> [ruta/clientes.csv]")
		os.Exit(1)
	}
	companyID := os.Args[1]
	jurisdiction := strings.ToUpper(os.Args[2])
	if jurisdiction != "SRI" && jurisdiction != "DIAN" {
		fmt.Fprintf(os.Stderr, "Jurisdicción desconocida: %s\n", os.Args[2])
		os.Exit(1)
	}
	csvPath := "clientes.csv"
	if len(os.Args) > 3 {
		csvPath = os.Args[3]
	}

	f, err := os.Open(csvPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Abrir CSV: %v\n", err)
		os.Exit(1)
	}
	defer f.Close()

	// Los exportes legados vienen en ISO-8859-1, no UTF-8.
	r := csv.NewReader(transform.NewReader(f, charmap.ISO8859_1.NewDecoder()))
	r.Comma = ';'
	r.FieldsPerRecord = -1

	var clientes []cliente
	var omitidos int
	line := 0
	for {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			fmt.Fprintf(os.Stderr, "Leer CSV: %v\n", err)
			os.Exit(1)
		}
		line++
		if len(record) < 2 {
			fmt.Fprintf(os.Stderr, "Línea %d: se esperan al menos identificación y razón social\n", line)
			omitidos++
			continue
		}
		c := cliente{
			taxID: strings.TrimSpace(record[0]),
			name:  strings.TrimSpace(record[1]),
		}
		if len(record) > 2 {
			c.email = strings.TrimSpace(record[2])
		}
		if len(record) > 3 {
			c.phone = strings.TrimSpace(record[3])
		}
		if len(record) > 4 {
			c.address = strings.TrimSpace(record[4])
		}
		if c.taxID == "" || c.name == "" {
			omitidos++
			continue
		}
		c.identType, err = resolveIdentType(jurisdiction, c.taxID)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Línea %d (%s): %v\n", line, c.taxID, err)
			omitidos++
			continue
		}
		clientes = append(clientes, c)
	}

	if len(clientes) == 0 {
		fmt.Fprintln(os.Stderr, "No se encontraron clientes válidos en el padrón")
		os.Exit(1)
	}

	// Ruta del script de salida (relativa al módulo)
	moduleRoot := findModuleRoot()
	outPath := filepath.Join(moduleRoot, "migrations", "002_seed_customers.sql")
	out, err := os.Create(outPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Crear archivo: %v\n", err)
		os.Exit(1)
	}
	defer out.Close()

	fmt.Fprintf(out, "-- Padrón de clientes importado desde %s\n", filepath.Base(csvPath))
	fmt.Fprintf(out, "-- Empresa: %s (jurisdicción %s)\n\n", companyID, jurisdiction)

	for _, c := range clientes {
		fmt.Fprintf(out, "INSERT INTO customers (id, company_id, name, tax_id, ident_type, email, phone, address)\n")
		fmt.Fprintf(out, "VALUES ('%s', '%s', '%s', '%s', '%s', %s, %s, %s)\n",
			uuid.NewString(), escapeSQL(companyID), escapeSQL(c.name), escapeSQL(c.taxID),
			c.identType, sqlText(c.email), sqlText(c.phone), sqlText(c.address))
		out.WriteString("ON CONFLICT (company_id, tax_id) DO UPDATE SET name = EXCLUDED.name, email = EXCLUDED.email, phone = EXCLUDED.phone, address = EXCLUDED.address, updated_at = now();\n")
	}

	fmt.Printf("Generado %s: %d clientes, %d omitidos\n", outPath, len(clientes), omitidos)
}

// resolveIdentType infiere el tipo de identificación del catálogo de la
// jurisdicción y valida el dígito verificador cuando aplica.
func resolveIdentType(jurisdiction, taxID string) (string, error) {
	digits := countDigits(taxID)
	switch jurisdiction {
	case "SRI":
		switch digits {
		case 13:
			if err := sri.ValidateRUC(taxID); err != nil {
				return "", err
			}
			return sri.IdentTypeRUC, nil
		case 10:
			return sri.IdentTypeCedula, nil
		default:
			return sri.IdentTypePassport, nil
		}
	case "DIAN":
		if digits == 10 {
			if err := dian.ValidateVerificationDigit(taxID); err != nil {
				return "", err
			}
			return dian.IdentificationTypeNIT, nil
		}
		return dian.IdentificationTypeCC, nil
	}
	return "", fmt.Errorf("jurisdicción desconocida: %s", jurisdiction)
}

func countDigits(s string) int {
	n := 0
	for _, r := range s {
		if r >= '0' && r <= '9' {
			n++
		}
	}
	return n
}

func escapeSQL(s string) string {
	return strings.ReplaceAll(s, "'", "''")
}

func sqlText(s string) string {
	if s == "" {
		return "NULL"
	}
	return "'" + escapeSQL(s) + "'"
}

func findModuleRoot() string {
	dir, _ := os.Getwd()
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return dir
		}
		dir = parent
	}
}
