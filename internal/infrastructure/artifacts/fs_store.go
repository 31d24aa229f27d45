// Almacén de artefactos por documento sobre el sistema de archivos.
// Cada referencia tiene la forma {companyID}/{documentID}/{nombre} relativa
// a la raíz configurada, de modo que los artefactos de un tenant nunca se
// mezclan con los de otro.

package artifacts

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"

	"github.com/facturio/facturio-api/internal/domain"
)

// FileStore implementa billing.ArtifactStore sobre un directorio raíz.
type FileStore struct {
	root   string
	logger zerolog.Logger
}

func NewFileStore(root string, logger zerolog.Logger) *FileStore {
	return &FileStore{
		root:   root,
		logger: logger.With().Str("componente", "artifact_store").Logger(),
	}
}

// Save escribe el artefacto y devuelve su referencia relativa. La escritura
// pasa por un archivo temporal y rename para no dejar artefactos a medias.
func (s *FileStore) Save(ctx context.Context, companyID, documentID, name string, data []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	ref, err := buildRef(companyID, documentID, name)
	if err != nil {
		return "", err
	}

	fullPath := filepath.Join(s.root, filepath.FromSlash(ref))
	if err := os.MkdirAll(filepath.Dir(fullPath), 0o750); err != nil {
		return "", fmt.Errorf("crear directorio de artefactos: %w", err)
	}

	tmp := fullPath + ".tmp"
	if err := os.WriteFile(tmp, data, 0o640); err != nil {
		return "", fmt.Errorf("escribir artefacto %s: %w", ref, err)
	}
	if err := os.Rename(tmp, fullPath); err != nil {
		_ = os.Remove(tmp)
		return "", fmt.Errorf("publicar artefacto %s: %w", ref, err)
	}

	s.logger.Debug().Str("ref", ref).Int("bytes", len(data)).Msg("Artefacto guardado")
	return ref, nil
}

// Load lee un artefacto por su referencia relativa.
func (s *FileStore) Load(ctx context.Context, ref string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := validateRef(ref); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(filepath.Join(s.root, filepath.FromSlash(ref)))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: artefacto %s", domain.ErrNotFound, ref)
		}
		return nil, fmt.Errorf("leer artefacto %s: %w", ref, err)
	}
	return data, nil
}

func buildRef(companyID, documentID, name string) (string, error) {
	for _, part := range []string{companyID, documentID, name} {
		if part == "" || strings.ContainsAny(part, "/\\") || strings.Contains(part, "..") {
			return "", fmt.Errorf("%w: componente de referencia inválido %q", domain.ErrInvalidInput, part)
		}
	}
	return companyID + "/" + documentID + "/" + name, nil
}

func validateRef(ref string) error {
	parts := strings.Split(ref, "/")
	if len(parts) != 3 {
		return fmt.Errorf("%w: referencia de artefacto inválida %q", domain.ErrInvalidInput, ref)
	}
	_, err := buildRef(parts[0], parts[1], parts[2])
	return err
}
