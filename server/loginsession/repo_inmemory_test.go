package loginsession_test

import (
	"testing"
	"time"

	"github.com/jrsteele09/go-feishu-auth/internal/errors"
	"github.com/jrsteele09/go-feishu-auth/passport"
	"github.com/jrsteele09/go-feishu-auth/server/loginsession"
	"github.com/stretchr/testify/require"
)

func TestInMemoryLoginSessionRepo(t *testing.T) {
	repo := loginsession.NewInMemoryLoginSessionRepo()
	now := time.Now()

	session := loginsession.Session{
		User:      passport.User{Provider: "feishu", ID: "U1"},
		CreatedAt: now,
		ExpiresAt: now.Add(time.Hour),
	}
	require.Error(t, repo.Upsert("", session))
	require.NoError(t, repo.Upsert("sid-1", session))

	got, err := repo.Get("sid-1")
	require.NoError(t, err)
	require.Equal(t, "U1", got.User.ID)
	require.False(t, got.Expired(now))
	require.True(t, got.Expired(now.Add(2*time.Hour)))

	require.NoError(t, repo.Delete("sid-1"))
	require.NoError(t, repo.Delete("sid-1"))

	_, err = repo.Get("sid-1")
	require.ErrorIs(t, err, errors.ErrSessionNotFound)
}
