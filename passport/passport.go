// Package passport mounts provider strategies under names and turns a provider login into
// a session User through a per-strategy verify callback.
package passport

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/jrsteele09/go-feishu-auth/internal/errors"
	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"
)

// Strategy is a provider login that yields a normalized profile of type P.
type Strategy[P any] interface {
	Name() string
	AuthCodeURL(state string, opts ...oauth2.AuthCodeOption) string
	Authenticate(ctx context.Context, code string) (*oauth2.Token, P, error)
}

// VerifyFunc reshapes a provider login into the host's User. Returning an error rejects the login.
type VerifyFunc[P any] func(ctx context.Context, token *oauth2.Token, profile P) (*User, error)

// VerifyHook runs after every strategy's verify callback and may reject or replace the user.
type VerifyHook func(ctx context.Context, user *User) (*User, error)

// Email is one of the user's addresses.
type Email struct {
	Value string `json:"value"`
}

// User is what the host keeps in its session after a successful login.
type User struct {
	Provider     string  `json:"provider"`
	ID           string  `json:"id"`
	Name         string  `json:"name,omitempty"`
	DisplayName  string  `json:"displayName"`
	Photo        string  `json:"photo,omitempty"`
	AccessToken  string  `json:"accessToken"`
	RefreshToken string  `json:"refreshToken"`
	Emails       []Email `json:"emails,omitempty"`
	Profile      any     `json:"profile"`
}

// entry erases the profile type so strategies with different profiles share a registry.
type entry struct {
	authCodeURL  func(state string) string
	authenticate func(ctx context.Context, code string) (*User, error)
}

// Passport is the named strategy registry.
type Passport struct {
	mu         sync.RWMutex
	strategies map[string]entry
	hook       VerifyHook
}

type Option func(*Passport)

// WithVerifyHook sets the hook run after each verify callback.
func WithVerifyHook(hook VerifyHook) Option {
	return func(p *Passport) {
		p.hook = hook
	}
}

func New(opts ...Option) *Passport {
	p := &Passport{
		strategies: make(map[string]entry),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Use registers strategy under name, replacing any strategy already registered there.
func Use[P any](p *Passport, name string, strategy Strategy[P], verify VerifyFunc[P]) {
	e := entry{
		authCodeURL: func(state string) string {
			return strategy.AuthCodeURL(state)
		},
		authenticate: func(ctx context.Context, code string) (*User, error) {
			token, profile, err := strategy.Authenticate(ctx, code)
			if err != nil {
				return nil, err
			}
			return verify(ctx, token, profile)
		},
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.strategies[name] = e
	log.Info().Str("strategy", name).Msg("strategy registered")
}

// Names returns the registered strategy names, sorted.
func (p *Passport) Names() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	names := make([]string, 0, len(p.strategies))
	for name := range p.strategies {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (p *Passport) get(name string) (entry, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	e, ok := p.strategies[name]
	if !ok {
		return entry{}, fmt.Errorf("%w: %s", errors.ErrUnknownStrategy, name)
	}
	return e, nil
}

// AuthCodeURL returns the provider redirect for the named strategy.
func (p *Passport) AuthCodeURL(name, state string) (string, error) {
	e, err := p.get(name)
	if err != nil {
		return "", err
	}
	return e.authCodeURL(state), nil
}

// Authenticate runs the named strategy for code, then its verify callback, then the hook.
// Any error ends the login and no user is returned.
func (p *Passport) Authenticate(ctx context.Context, name, code string) (*User, error) {
	e, err := p.get(name)
	if err != nil {
		return nil, err
	}

	user, err := e.authenticate(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("%s login: %w", name, err)
	}

	if p.hook != nil && user != nil {
		user, err = p.hook(ctx, user)
		if err != nil {
			return nil, fmt.Errorf("%s login rejected: %w", name, err)
		}
	}
	if user == nil {
		return nil, fmt.Errorf("%s login: no user produced", name)
	}
	return user, nil
}
