package user

import (
	"errors"
	"sync"
)

var (
	ErrNotFound = errors.New("user not found")
)

type Repository interface {
	GetByID(id int) (User, error)
	Save(user User) (User, error)
	SetBackOfficeCustomerUID(id int, uid string, updatedAt string) error
}

type InMemoryRepository struct {
	mu    sync.RWMutex
	users map[int]User
}

func NewInMemoryRepository(seed []User) *InMemoryRepository {
	repo := &InMemoryRepository{
		users: make(map[int]User, len(seed)),
	}
	for _, user := range seed {
		repo.users[user.ID] = user
	}
	return repo
}

func (r *InMemoryRepository) GetByID(id int) (User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	user, ok := r.users[id]
	if !ok {
		return User{}, ErrNotFound
	}
	return user, nil
}

// Save inserts or replaces the profile. The cached back-office customer uid
// is kept when the incoming profile has none.
func (r *InMemoryRepository) Save(user User) (User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.users[user.ID]; ok {
		if user.BackOfficeCustomerUID == "" {
			user.BackOfficeCustomerUID = existing.BackOfficeCustomerUID
		}
		if user.CreatedAt == "" {
			user.CreatedAt = existing.CreatedAt
		}
	}
	r.users[user.ID] = user
	return user, nil
}

// SetBackOfficeCustomerUID creates a bare profile when none exists yet.
func (r *InMemoryRepository) SetBackOfficeCustomerUID(id int, uid string, updatedAt string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	user, ok := r.users[id]
	if !ok {
		user = User{ID: id, CreatedAt: updatedAt}
	}
	user.BackOfficeCustomerUID = uid
	if updatedAt != "" {
		user.UpdatedAt = updatedAt
	}
	r.users[id] = user
	return nil
}
