package cart

import (
	"context"
	"fmt"
	"sync"

	"github.com/spherical-ai/spherical/libs/retail-assistant/internal/domain"
)

// MemoryStore keeps carts in process. Used by tests and dev mode.
type MemoryStore struct {
	mu    sync.Mutex
	carts map[string][]Item
	sent  map[string]struct{}
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		carts: make(map[string][]Item),
		sent:  make(map[string]struct{}),
	}
}

// AddItem appends item to the customer's cart.
func (m *MemoryStore) AddItem(ctx context.Context, phone string, item Item) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.carts[phone] = append(m.carts[phone], item)
	return nil
}

// ListItems returns a copy of the customer's cart.
func (m *MemoryStore) ListItems(ctx context.Context, phone string) ([]Item, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Item(nil), m.carts[phone]...), nil
}

// RemoveItem deletes the item at one-based index.
func (m *MemoryStore) RemoveItem(ctx context.Context, phone string, index int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	items := m.carts[phone]
	if index < 1 || index > len(items) {
		return domain.InputError(fmt.Sprintf("remove item %d", index), domain.ErrInvalidItemIndex)
	}
	m.carts[phone] = append(items[:index-1:index-1], items[index:]...)
	return nil
}

// Clear empties the cart.
func (m *MemoryStore) Clear(ctx context.Context, phone string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.carts, phone)
	return nil
}

// MarkOrderSent records a submitted order.
func (m *MemoryStore) MarkOrderSent(ctx context.Context, phone string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent[phone] = struct{}{}
	return nil
}

// OrderSent reports whether MarkOrderSent was called for phone.
func (m *MemoryStore) OrderSent(ctx context.Context, phone string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.sent[phone]
	return ok, nil
}

var (
	_ Store       = (*MemoryStore)(nil)
	_ OrderMarker = (*MemoryStore)(nil)
)
