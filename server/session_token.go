package server

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/jrsteele09/go-feishu-auth/internal/errors"
	"github.com/jrsteele09/go-feishu-auth/passport"
)

// sessionClaims is the payload of the login cookie. The user itself stays server side.
type sessionClaims struct {
	SessionID string `json:"sid"`
	Provider  string `json:"provider"`
	jwt.RegisteredClaims
}

// sessionSigner issues and verifies HS256 session cookies
type sessionSigner struct {
	key    []byte
	issuer string
}

func newSessionSigner(key []byte, issuer string) *sessionSigner {
	return &sessionSigner{key: key, issuer: issuer}
}

func (s *sessionSigner) Sign(sessionID string, user *passport.User, expiresAt time.Time) (string, error) {
	now := time.Now()
	claims := sessionClaims{
		SessionID: sessionID,
		Provider:  user.Provider,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.issuer,
			Subject:   user.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.key)
	if err != nil {
		return "", fmt.Errorf("[sessionSigner Sign] %w", err)
	}
	return signed, nil
}

func (s *sessionSigner) Parse(raw string) (*sessionClaims, error) {
	claims := &sessionClaims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
		return s.key, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(s.issuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, errors.ErrSessionExpired
		}
		return nil, fmt.Errorf("%w: %v", errors.ErrSessionNotFound, err)
	}
	if claims.SessionID == "" {
		return nil, errors.ErrSessionNotFound
	}
	return claims, nil
}
