package user

import "time"

type Service struct {
	repo Repository
	now  func() time.Time
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo, now: time.Now}
}

func (s *Service) GetByID(id int) (User, error) {
	if id <= 0 {
		return User{}, ErrNotFound
	}
	return s.repo.GetByID(id)
}

// Save stores the profile, creating it on first use.
func (s *Service) Save(user User) (User, error) {
	if user.ID <= 0 {
		return User{}, ErrNotFound
	}
	now := s.timestamp()
	if user.CreatedAt == "" {
		user.CreatedAt = now
	}
	user.UpdatedAt = now
	return s.repo.Save(user)
}

// BackOfficeCustomerUID returns the cached back-office customer uid, or ""
// when the profile has none or does not exist yet.
func (s *Service) BackOfficeCustomerUID(id int) (string, error) {
	user, err := s.GetByID(id)
	if err != nil {
		if err == ErrNotFound {
			return "", nil
		}
		return "", err
	}
	return user.BackOfficeCustomerUID, nil
}

// SetBackOfficeCustomerUID caches uid on the profile. Concurrent writers
// race; the last write wins.
func (s *Service) SetBackOfficeCustomerUID(id int, uid string) error {
	if id <= 0 {
		return ErrNotFound
	}
	return s.repo.SetBackOfficeCustomerUID(id, uid, s.timestamp())
}

func (s *Service) timestamp() string {
	return s.now().UTC().Format(time.RFC3339)
}
