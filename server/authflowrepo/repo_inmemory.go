package authflowrepo

import (
	"sync"
	"time"

	"github.com/jrsteele09/go-feishu-auth/internal/errors"
)

// sweepInterval is the minimum time between two purges of abandoned states
const sweepInterval = time.Minute

// NowTimeFunc returns the current time. It can be overridden in tests.
var NowTimeFunc = time.Now

// InMemoryRepo is a thread-safe in-memory implementation of the Repo interface
type InMemoryRepo struct {
	mu        sync.Mutex
	states    map[string]AuthFlowState
	maxAge    time.Duration
	lastSweep time.Time
}

// NewInMemoryRepo creates a new in-memory auth flow state repository. States older than
// maxAge are purged as new ones arrive.
func NewInMemoryRepo(maxAge time.Duration) *InMemoryRepo {
	return &InMemoryRepo{
		states:    make(map[string]AuthFlowState),
		maxAge:    maxAge,
		lastSweep: NowTimeFunc(),
	}
}

// Upsert stores or updates an auth flow state
func (r *InMemoryRepo) Upsert(state string, authState *AuthFlowState) error {
	if state == "" {
		return errors.New("state cannot be empty")
	}
	if authState == nil {
		return errors.New("authState cannot be nil")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.sweep(NowTimeFunc())
	r.states[state] = *authState
	return nil
}

// Take retrieves a copy of the auth flow state and deletes it
func (r *InMemoryRepo) Take(state string) (*AuthFlowState, error) {
	if state == "" {
		return nil, errors.ErrInvalidState
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	authState, exists := r.states[state]
	if !exists {
		return nil, errors.ErrInvalidState
	}
	delete(r.states, state)
	return &authState, nil
}

// sweep drops expired states, at most once per sweepInterval. Callers hold r.mu.
func (r *InMemoryRepo) sweep(now time.Time) {
	if r.maxAge <= 0 || now.Sub(r.lastSweep) < sweepInterval {
		return
	}
	r.lastSweep = now
	for state, authState := range r.states {
		if authState.Expired(now, r.maxAge) {
			delete(r.states, state)
		}
	}
}
