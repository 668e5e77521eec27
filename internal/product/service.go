package product

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (s *Service) List() []Product {
	return s.repo.List()
}

func (s *Service) GetByUID(uid string) (Product, error) {
	if uid == "" {
		return Product{}, ErrNotFound
	}
	return s.repo.GetByUID(uid)
}

func (s *Service) GetByUIDs(uids []string) ([]Product, error) {
	return s.repo.GetByUIDs(uids)
}
