package payment

import (
	"strings"
	"sync"
)

type Outcome int

const (
	OutcomePending Outcome = iota
	OutcomeSuccess
	OutcomeFailure
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSuccess:
		return "success"
	case OutcomeFailure:
		return "failure"
	default:
		return "pending"
	}
}

// Classify looks for the redirect markers status=success and
// status=failure anywhere in the navigation target. Success wins when both
// appear.
func Classify(rawURL string) Outcome {
	switch {
	case strings.Contains(rawURL, "status=success"):
		return OutcomeSuccess
	case strings.Contains(rawURL, "status=failure"):
		return OutcomeFailure
	default:
		return OutcomePending
	}
}

// Listener observes the navigations of one hosted-checkout session and
// emits its outcome exactly once. Navigation is never blocked.
type Listener struct {
	once    sync.Once
	mu      sync.RWMutex
	outcome Outcome
	emit    func(success bool)
}

func NewListener(emit func(success bool)) *Listener {
	return &Listener{emit: emit}
}

// Observe classifies rawURL and returns the session outcome so far. The
// first decisive navigation fixes the outcome; later ones never emit again.
func (l *Listener) Observe(rawURL string) Outcome {
	o := Classify(rawURL)
	if o != OutcomePending {
		l.once.Do(func() {
			l.mu.Lock()
			l.outcome = o
			l.mu.Unlock()
			if l.emit != nil {
				l.emit(o == OutcomeSuccess)
			}
		})
	}
	return l.Outcome()
}

func (l *Listener) Outcome() Outcome {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.outcome
}
