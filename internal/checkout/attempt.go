package checkout

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/pageone/kundeklubb-backend/internal/order"
	"github.com/pageone/kundeklubb-backend/internal/payment"
)

var ErrAttemptNotFound = errors.New("checkout attempt not found")

// Attempt is one hosted-checkout session and, once paid, its back-office
// submission.
type Attempt struct {
	ID                  string
	UserID              int
	ExternalOrderNumber string
	Draft               order.Draft
	SessionURL          string
	CreatedAt           time.Time

	listener *payment.Listener

	mu        sync.RWMutex
	state     order.State
	result    *order.Result
	submitted chan struct{}
}

func newAttempt(id string, userID int, draft order.Draft, now time.Time) *Attempt {
	return &Attempt{
		ID:        id,
		UserID:    userID,
		Draft:     draft,
		CreatedAt: now,
		submitted: make(chan struct{}),
	}
}

func (a *Attempt) setState(s order.State) {
	a.mu.Lock()
	a.state = s
	a.mu.Unlock()
}

func (a *Attempt) finish(res order.Result) {
	a.mu.Lock()
	a.state = res.State
	a.result = &res
	a.mu.Unlock()
	close(a.submitted)
}

// Status is the read model of an attempt.
type Status struct {
	CheckoutID          string        `json:"checkoutId"`
	URL                 string        `json:"url"`
	Total               int64         `json:"total"`
	Outcome             string        `json:"outcome"`
	ExternalOrderNumber string        `json:"externalOrderNumber,omitempty"`
	Submission          string        `json:"submission"`
	Result              *order.Result `json:"result,omitempty"`
	Error               string        `json:"error,omitempty"`
}

func (a *Attempt) Status() Status {
	a.mu.RLock()
	defer a.mu.RUnlock()

	st := Status{
		CheckoutID: a.ID,
		URL:        a.SessionURL,
		Total:      a.Draft.Total,
		Outcome:    a.listener.Outcome().String(),
		Submission: a.state.String(),
	}
	if st.Outcome == payment.OutcomeSuccess.String() {
		st.ExternalOrderNumber = a.ExternalOrderNumber
	}
	if a.result != nil {
		res := *a.result
		st.Result = &res
		if res.Err != nil {
			st.Error = res.Err.Error()
		}
	}
	return st
}

type Store interface {
	Save(a *Attempt) error
	Get(id string) (*Attempt, error)
	Delete(id string) error
}

// DefaultAttemptTTL applies when NewInMemoryStore is given no ttl.
const DefaultAttemptTTL = 24 * time.Hour

// InMemoryStore forgets attempts ttl after their creation. Expired attempts
// are invisible to Get and removed by Sweep, which Save also runs.
type InMemoryStore struct {
	mu       sync.RWMutex
	attempts map[string]*Attempt
	ttl      time.Duration
	now      func() time.Time
}

func NewInMemoryStore(ttl time.Duration) *InMemoryStore {
	if ttl <= 0 {
		ttl = DefaultAttemptTTL
	}
	return &InMemoryStore{attempts: make(map[string]*Attempt), ttl: ttl, now: time.Now}
}

func (s *InMemoryStore) expired(a *Attempt, now time.Time) bool {
	return now.Sub(a.CreatedAt) >= s.ttl
}

func (s *InMemoryStore) Save(a *Attempt) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sweepLocked(s.now())
	s.attempts[a.ID] = a
	return nil
}

func (s *InMemoryStore) Get(id string) (*Attempt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.attempts[id]
	if !ok || s.expired(a, s.now()) {
		return nil, ErrAttemptNotFound
	}
	return a, nil
}

func (s *InMemoryStore) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.attempts[id]; !ok {
		return ErrAttemptNotFound
	}
	delete(s.attempts, id)
	return nil
}

// Sweep drops every expired attempt and returns how many it dropped.
func (s *InMemoryStore) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sweepLocked(s.now())
}

func (s *InMemoryStore) sweepLocked(now time.Time) int {
	n := 0
	for id, a := range s.attempts {
		if s.expired(a, now) {
			delete(s.attempts, id)
			n++
		}
	}
	return n
}

// Len is the number of attempts held, expired or not.
func (s *InMemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.attempts)
}

// RunSweeper calls Sweep every interval until ctx is done.
func (s *InMemoryStore) RunSweeper(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Sweep()
		}
	}
}
