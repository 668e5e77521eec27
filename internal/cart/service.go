package cart

import (
	"context"
	"sync"

	"github.com/pageone/kundeklubb-backend/internal/product"
)

// ProductLookup resolves a product reference to its name and price.
type ProductLookup interface {
	GetByUID(uid string) (product.Product, error)
}

// Service serializes read-modify-write cycles per user.
type Service struct {
	repo     Repository
	products ProductLookup

	mu    sync.Mutex
	locks map[int]*userLock
}

// userLock is dropped from the map once nobody holds or waits for it.
type userLock struct {
	mu   sync.Mutex
	refs int
}

func NewService(repo Repository, products ProductLookup) *Service {
	return &Service{repo: repo, products: products, locks: make(map[int]*userLock)}
}

func (s *Service) lock(userID int) func() {
	s.mu.Lock()
	l, ok := s.locks[userID]
	if !ok {
		l = &userLock{}
		s.locks[userID] = l
	}
	l.refs++
	s.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		s.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(s.locks, userID)
		}
		s.mu.Unlock()
	}
}

func (s *Service) Get(ctx context.Context, userID int) (Cart, error) {
	return s.repo.Get(ctx, userID)
}

// Add resolves productUID through the catalog and merges qty into the cart.
func (s *Service) Add(ctx context.Context, userID int, productUID string, qty int) (Cart, error) {
	if qty < 1 || qty > MaxQuantity {
		return Cart{}, ErrInvalidQuantity
	}
	p, err := s.products.GetByUID(productUID)
	if err != nil {
		if err == product.ErrNotFound {
			return Cart{}, ErrProductNotFound
		}
		return Cart{}, err
	}
	return s.mutate(ctx, userID, func(c *Cart) error {
		return c.Add(Line{ProductUID: p.UID, Name: p.Name, UnitPrice: p.Price}, qty)
	})
}

func (s *Service) UpdateQuantity(ctx context.Context, userID int, productUID string, qty int) (Cart, error) {
	if qty < 1 || qty > MaxQuantity {
		return Cart{}, ErrInvalidQuantity
	}
	return s.mutate(ctx, userID, func(c *Cart) error {
		return c.UpdateQuantity(productUID, qty)
	})
}

func (s *Service) Remove(ctx context.Context, userID int, indexes []int) (Cart, error) {
	return s.mutate(ctx, userID, func(c *Cart) error {
		c.Remove(indexes)
		return nil
	})
}

func (s *Service) Clear(ctx context.Context, userID int) error {
	unlock := s.lock(userID)
	defer unlock()
	return s.repo.Delete(ctx, userID)
}

func (s *Service) mutate(ctx context.Context, userID int, fn func(*Cart) error) (Cart, error) {
	unlock := s.lock(userID)
	defer unlock()

	c, err := s.repo.Get(ctx, userID)
	if err != nil {
		return Cart{}, err
	}
	if err := fn(&c); err != nil {
		return Cart{}, err
	}
	if err := s.repo.Save(ctx, userID, c); err != nil {
		return Cart{}, err
	}
	return c, nil
}
