package authflowrepo

import "time"

// AuthFlowState is what the login redirect remembers until the provider calls back.
type AuthFlowState struct {
	Provider  string
	ReturnURL string
	CreatedAt time.Time
}

// Expired reports whether the state is older than maxAge at now.
func (s *AuthFlowState) Expired(now time.Time, maxAge time.Duration) bool {
	return now.Sub(s.CreatedAt) > maxAge
}

type Repo interface {
	Upsert(state string, authState *AuthFlowState) error
	// Take returns the state and removes it in one step, so a state completes at most one login.
	Take(state string) (*AuthFlowState, error)
}
