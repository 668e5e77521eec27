package product

import (
	"errors"
	"sync"
)

var (
	ErrNotFound = errors.New("product not found")
)

type Repository interface {
	List() []Product
	GetByUID(uid string) (Product, error)
	GetByUIDs(uids []string) ([]Product, error)
}

// InMemoryRepository is used for tests and local runs without a database.
type InMemoryRepository struct {
	mu      sync.RWMutex
	storage map[string]Product
	order   []string
}

func NewInMemoryRepository(seed []Product) *InMemoryRepository {
	r := &InMemoryRepository{
		storage: make(map[string]Product, len(seed)),
		order:   make([]string, 0, len(seed)),
	}
	for _, p := range seed {
		if _, ok := r.storage[p.UID]; !ok {
			r.order = append(r.order, p.UID)
		}
		r.storage[p.UID] = p
	}
	return r
}

func (r *InMemoryRepository) List() []Product {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Product, 0, len(r.order))
	for _, uid := range r.order {
		out = append(out, r.storage[uid])
	}
	return out
}

func (r *InMemoryRepository) GetByUID(uid string) (Product, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.storage[uid]
	if !ok {
		return Product{}, ErrNotFound
	}
	return p, nil
}

// GetByUIDs returns the known products in request order; unknown uids are skipped.
func (r *InMemoryRepository) GetByUIDs(uids []string) ([]Product, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Product, 0, len(uids))
	for _, uid := range uids {
		if p, ok := r.storage[uid]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

// Put inserts or replaces a product.
func (r *InMemoryRepository) Put(p Product) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.storage[p.UID]; !ok {
		r.order = append(r.order, p.UID)
	}
	r.storage[p.UID] = p
}

// Delete removes a product; unknown uids are ignored.
func (r *InMemoryRepository) Delete(uid string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.storage[uid]; !ok {
		return
	}
	delete(r.storage, uid)
	for i, v := range r.order {
		if v == uid {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
}
