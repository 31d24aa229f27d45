package artifacts

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/facturio/facturio-api/internal/domain"
)

func newTestStore(t *testing.T) (*FileStore, string) {
	t.Helper()
	dir := t.TempDir()
	return NewFileStore(dir, zerolog.Nop()), dir
}

func TestSaveLoad_IdaYVuelta(t *testing.T) {
	store, dir := newTestStore(t)
	ctx := context.Background()

	payload := []byte(`<?xml version="1.0"?><factura id="comprobante"/>`)
	ref, err := store.Save(ctx, "comp-1", "doc-1", "signed.xml", payload)
	require.NoError(t, err)
	assert.Equal(t, "comp-1/doc-1/signed.xml", ref, "la referencia debe ser tenant/documento/nombre")

	got, err := store.Load(ctx, ref)
	require.NoError(t, err)
	assert.Equal(t, payload, got)

	// El archivo queda bajo la raíz, sin residuos temporales.
	entries, err := os.ReadDir(filepath.Join(dir, "comp-1", "doc-1"))
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "signed.xml", entries[0].Name())
}

func TestSave_SobrescribeVersionAnterior(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	_, err := store.Save(ctx, "comp-1", "doc-1", "signed.xml", []byte("v1"))
	require.NoError(t, err)
	ref, err := store.Save(ctx, "comp-1", "doc-1", "signed.xml", []byte("v2"))
	require.NoError(t, err)

	got, err := store.Load(ctx, ref)
	require.NoError(t, err)
	assert.Equal(t, []byte("v2"), got, "un reenvío reemplaza el artefacto anterior")
}

func TestSave_RechazaComponentesInvalidos(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	casos := []struct {
		nombre              string
		company, doc, fname string
	}{
		{nombre: "traversal en nombre", company: "comp-1", doc: "doc-1", fname: "../otro.xml"},
		{nombre: "separador en tenant", company: "comp/1", doc: "doc-1", fname: "signed.xml"},
		{nombre: "componente vacío", company: "comp-1", doc: "", fname: "signed.xml"},
		{nombre: "backslash", company: "comp-1", doc: `doc\1`, fname: "signed.xml"},
	}
	for _, tc := range casos {
		t.Run(tc.nombre, func(t *testing.T) {
			_, err := store.Save(ctx, tc.company, tc.doc, tc.fname, []byte("x"))
			require.Error(t, err)
			assert.ErrorIs(t, err, domain.ErrInvalidInput)
		})
	}
}

func TestLoad_ReferenciaInexistente(t *testing.T) {
	store, _ := newTestStore(t)

	_, err := store.Load(context.Background(), "comp-1/doc-1/nada.xml")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestLoad_ReferenciaMalformada(t *testing.T) {
	store, _ := newTestStore(t)

	_, err := store.Load(context.Background(), "../../etc/passwd")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}
