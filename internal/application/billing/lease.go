package billing

import (
	"fmt"
	"sync"

	"github.com/facturio/facturio-api/internal/domain"
)

// DocumentLease serializa el procesamiento por documento dentro del proceso.
// Dos envíos concurrentes del mismo documento nunca avanzan el pipeline en
// paralelo: el segundo recibe ErrDocumentBusy y el cliente reintenta.
type DocumentLease struct {
	mu    sync.Mutex
	inUse map[string]struct{}
}

func NewDocumentLease() *DocumentLease {
	return &DocumentLease{inUse: make(map[string]struct{})}
}

// Acquire toma el lease del documento. Retorna la función de liberación, que
// debe diferirse inmediatamente.
func (l *DocumentLease) Acquire(documentID string) (func(), error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, busy := l.inUse[documentID]; busy {
		return nil, fmt.Errorf("%w: documento %s en procesamiento", domain.ErrDocumentBusy, documentID)
	}
	l.inUse[documentID] = struct{}{}

	var once sync.Once
	release := func() {
		once.Do(func() {
			l.mu.Lock()
			delete(l.inUse, documentID)
			l.mu.Unlock()
		})
	}
	return release, nil
}
