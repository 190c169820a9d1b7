package cartsync

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"github.com/rs/zerolog/log"

	"storefront/internal/domain"
)

// Store is the client-side cart: an in-memory item list persisted to a JSON
// file on every mutation, so a restart restores state. All operations are
// total; persistence failures are logged and do not fail the mutation.
type Store struct {
	mu       sync.Mutex
	path     string
	items    []domain.CartItem
	onChange func([]domain.CartItem)
}

// NewStore loads any previously persisted cart from path. A missing or
// unreadable file starts the store empty.
func NewStore(path string) *Store {
	s := &Store{path: path}

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			log.Warn().Err(err).Str("path", path).Msg("cart store unreadable, starting empty")
		}
		return s
	}

	if err := json.Unmarshal(data, &s.items); err != nil {
		log.Warn().Err(err).Str("path", path).Msg("cart store corrupt, starting empty")
		s.items = nil
	}
	s.items = domain.MergeItems(s.items)

	return s
}

// OnChange registers a callback invoked after every mutation with a snapshot
// of the new item list. At most one callback is supported.
func (s *Store) OnChange(fn func([]domain.CartItem)) {
	s.mu.Lock()
	s.onChange = fn
	s.mu.Unlock()
}

// AddItem appends the item, or bumps the quantity of an existing entry with
// the same product id.
func (s *Store) AddItem(item domain.CartItem) {
	if item.Quantity < 1 {
		item.Quantity = 1
	}

	s.mu.Lock()
	merged := false
	for i := range s.items {
		if s.items[i].ProductID == item.ProductID {
			s.items[i].Quantity += item.Quantity
			merged = true
			break
		}
	}
	if !merged {
		s.items = append(s.items, item)
	}
	s.persistAndNotifyLocked()
}

// RemoveItem drops every entry matching the product id.
func (s *Store) RemoveItem(productID string) {
	s.mu.Lock()
	kept := s.items[:0]
	for _, it := range s.items {
		if it.ProductID.Hex() != productID {
			kept = append(kept, it)
		}
	}
	s.items = kept
	s.persistAndNotifyLocked()
}

// UpdateQuantity sets the quantity of the matching entry. Quantities below 1
// are ignored.
func (s *Store) UpdateQuantity(productID string, quantity int) {
	if quantity < 1 {
		return
	}

	s.mu.Lock()
	for i := range s.items {
		if s.items[i].ProductID.Hex() == productID {
			s.items[i].Quantity = quantity
			break
		}
	}
	s.persistAndNotifyLocked()
}

// Clear empties the store.
func (s *Store) Clear() {
	s.mu.Lock()
	s.items = nil
	s.persistAndNotifyLocked()
}

// SetItems replaces the whole collection, deduplicating by product id. Used
// when hydrating from the server.
func (s *Store) SetItems(items []domain.CartItem) {
	s.mu.Lock()
	s.items = domain.MergeItems(items)
	s.persistAndNotifyLocked()
}

// Items returns a copy of the current item list.
func (s *Store) Items() []domain.CartItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.CartItem(nil), s.items...)
}

// Subtotal returns the sum of unitPrice x quantity over all items.
func (s *Store) Subtotal() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return domain.Subtotal(s.items)
}

// persistAndNotifyLocked writes the item list to disk and fires the change
// callback. It releases the lock; callers must hold it and must not touch
// state afterwards.
func (s *Store) persistAndNotifyLocked() {
	snapshot := append([]domain.CartItem(nil), s.items...)
	fn := s.onChange
	path := s.path
	s.mu.Unlock()

	data, err := json.Marshal(snapshot)
	if err == nil {
		err = writeFileAtomic(path, data)
	}
	if err != nil {
		log.Warn().Err(err).Str("path", path).Msg("cart store persist failed")
	}

	if fn != nil {
		fn(snapshot)
	}
}

// writeFileAtomic writes via a temp file and rename so a crash mid-write
// never leaves a truncated store behind.
func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".cart-*")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), path)
}
