package index

import (
	"context"
	"sync"

	"github.com/spherical-ai/spherical/libs/retail-assistant/internal/catalog"
)

// MemoryIndex keeps products in process and ranks them with Fuse.
type MemoryIndex struct {
	mu     sync.RWMutex
	docs   []Document
	byEAN  map[string]int
	nextID int64
}

// NewMemoryIndex creates an empty in-memory index.
func NewMemoryIndex() *MemoryIndex {
	return &MemoryIndex{byEAN: make(map[string]int)}
}

// HybridSearch ranks stored products against q.
func (m *MemoryIndex) HybridSearch(ctx context.Context, q HybridQuery) ([]Row, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return Fuse(q, m.docs), nil
}

// Upsert inserts products or replaces those with a known EAN.
func (m *MemoryIndex) Upsert(ctx context.Context, products []catalog.Product) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, p := range products {
		if i, ok := m.byEAN[p.Metadata.EAN]; ok {
			doc, err := DocumentFromProduct(m.docs[i].ID, p)
			if err != nil {
				return err
			}
			m.docs[i] = doc
			continue
		}
		m.nextID++
		doc, err := DocumentFromProduct(m.nextID, p)
		if err != nil {
			return err
		}
		m.byEAN[p.Metadata.EAN] = len(m.docs)
		m.docs = append(m.docs, doc)
	}
	return nil
}

// Count returns the number of stored products.
func (m *MemoryIndex) Count(ctx context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.docs), nil
}

// Reset removes every product.
func (m *MemoryIndex) Reset(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.docs = nil
	m.byEAN = make(map[string]int)
	return nil
}

// Close is a no-op.
func (m *MemoryIndex) Close() error { return nil }

var _ Index = (*MemoryIndex)(nil)
