package cart

import (
	"context"
	"errors"
	"sync"
)

var (
	ErrProductNotFound = errors.New("product not found")
	ErrInvalidQuantity = errors.New("quantity must be between 1 and 9999")
)

// Repository stores one cart per user. A user without a stored cart has an
// empty one.
type Repository interface {
	Get(ctx context.Context, userID int) (Cart, error)
	Save(ctx context.Context, userID int, cart Cart) error
	Delete(ctx context.Context, userID int) error
}

// InMemoryRepository is used for tests and single-instance deployments.
type InMemoryRepository struct {
	mu    sync.RWMutex
	carts map[int]Cart
}

func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{carts: make(map[int]Cart)}
}

func (r *InMemoryRepository) Get(_ context.Context, userID int) (Cart, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c := r.carts[userID]
	return Cart{Lines: c.Snapshot()}, nil
}

func (r *InMemoryRepository) Save(_ context.Context, userID int, cart Cart) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.carts[userID] = Cart{Lines: cart.Snapshot()}
	return nil
}

func (r *InMemoryRepository) Delete(_ context.Context, userID int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.carts, userID)
	return nil
}
