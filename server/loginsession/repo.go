package loginsession

import (
	"time"

	"github.com/jrsteele09/go-feishu-auth/passport"
)

type Session struct {
	// The logged in user, provider tokens included; never sent to the browser
	User passport.User

	// Session management
	ExpiresAt time.Time
	CreatedAt time.Time
}

func (s Session) Expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && now.After(s.ExpiresAt)
}

type Repo interface {
	Upsert(sessionID string, session Session) error
	Get(sessionID string) (Session, error)
	Delete(sessionID string) error
}
