package server

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/jrsteele09/go-feishu-auth/internal/errors"
	"github.com/jrsteele09/go-feishu-auth/passport"
	"github.com/jrsteele09/go-feishu-auth/server/authflowrepo"
	"github.com/jrsteele09/go-feishu-auth/server/loginsession"
	"github.com/rs/zerolog/log"
)

// IndexHandler lists the login providers mounted on this host
func (s *Server) IndexHandler() http.HandlerFunc {
	type provider struct {
		Name     string `json:"name"`
		LoginURL string `json:"loginUrl"`
	}

	return func(w http.ResponseWriter, r *http.Request) {
		names := s.passport.Names()
		providers := make([]provider, 0, len(names))
		for _, name := range names {
			providers = append(providers, provider{Name: name, LoginURL: "/auth/" + name})
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"app":       s.config.GetAppName(),
			"providers": providers,
		})
	}
}

// LoginHandler starts a login: it remembers a fresh state and redirects to the provider
func (s *Server) LoginHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		provider := r.PathValue("provider")
		state := uuid.NewString()

		redirectURL, err := s.passport.AuthCodeURL(provider, state)
		if err != nil {
			http.Error(w, "Unknown login provider", http.StatusNotFound)
			return
		}

		authState := &authflowrepo.AuthFlowState{
			Provider:  provider,
			ReturnURL: safeReturnURL(r.URL.Query().Get("return_to")),
			CreatedAt: time.Now(),
		}
		if err := s.authState.Upsert(state, authState); err != nil {
			log.Err(err).Str("provider", provider).Msg("failed to store login state")
			http.Error(w, "Failed to start login", http.StatusInternalServerError)
			return
		}

		http.Redirect(w, r, redirectURL, http.StatusFound)
	}
}

// CallbackHandler finishes a login started by LoginHandler
func (s *Server) CallbackHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		provider := r.PathValue("provider")
		query := r.URL.Query()
		state := query.Get("state")
		code := query.Get("code")

		// Check for authorization errors
		if errorParam := query.Get("error"); errorParam != "" {
			if state != "" {
				_, _ = s.authState.Take(state)
			}
			log.Info().Err(errors.ErrAuthorizationDenied).Str("provider", provider).Str("error", errorParam).Msg("login failed")
			http.Error(w, "Authorization failed: "+errorParam, http.StatusUnauthorized)
			return
		}

		if code == "" || state == "" {
			http.Error(w, "Missing code or state parameter", http.StatusBadRequest)
			return
		}

		// State is one-shot
		authState, err := s.authState.Take(state)
		if err != nil || authState == nil {
			http.Error(w, "Invalid state parameter", http.StatusBadRequest)
			return
		}

		if authState.Provider != provider {
			http.Error(w, "Invalid state parameter", http.StatusBadRequest)
			return
		}
		if authState.Expired(time.Now(), s.config.GetStateTimeout()) {
			log.Info().Err(errors.ErrStateExpired).Str("provider", provider).Msg("login failed")
			http.Error(w, "Login expired, please try again", http.StatusBadRequest)
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), s.config.GetProviderTimeout())
		defer cancel()

		user, err := s.passport.Authenticate(ctx, provider, code)
		if err != nil {
			log.Err(err).Str("provider", provider).Msg("login failed")
			http.Error(w, "Login failed", http.StatusUnauthorized)
			return
		}

		now := time.Now()
		sessionID := uuid.NewString()
		session := loginsession.Session{
			User:      *user,
			CreatedAt: now,
			ExpiresAt: now.Add(s.config.GetSessionExpiry()),
		}
		if err := s.loginSessions.Upsert(sessionID, session); err != nil {
			log.Err(err).Msg("failed to create session")
			http.Error(w, "Failed to create session", http.StatusInternalServerError)
			return
		}

		token, err := s.sessionTokens.Sign(sessionID, user, session.ExpiresAt)
		if err != nil {
			log.Err(err).Msg("failed to sign session")
			_ = s.loginSessions.Delete(sessionID)
			http.Error(w, "Failed to create session", http.StatusInternalServerError)
			return
		}
		s.SetLoginSessionCookie(w, token, r, int(s.config.GetSessionExpiry().Seconds()))

		log.Info().Str("provider", user.Provider).Str("user", user.ID).Msg("login succeeded")
		http.Redirect(w, r, authState.ReturnURL, http.StatusFound)
	}
}

// ContextKey is a custom type for context keys to avoid collisions
type ContextKey string

// ContextKeySession stores the loginsession.Session of the request
const ContextKeySession ContextKey = "session"

// SessionFromContext returns the session stored by RequireSession
func SessionFromContext(ctx context.Context) (loginsession.Session, bool) {
	session, ok := ctx.Value(ContextKeySession).(loginsession.Session)
	return session, ok
}

// RequireSession verifies the session cookie and loads the session into the request context
func (s *Server) RequireSession(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		session, _, err := s.currentSession(r)
		if err != nil {
			if _, cookieErr := r.Cookie(loggedInSessionID); cookieErr == nil {
				s.ClearLoginSessionCookie(w, r)
			}
			writeJSONError(w, "unauthorized", "Not logged in", http.StatusUnauthorized)
			return
		}
		next(w, r.WithContext(context.WithValue(r.Context(), ContextKeySession, session)))
	}
}

// currentSession resolves the cookie to a live session and its id
func (s *Server) currentSession(r *http.Request) (loginsession.Session, string, error) {
	cookie, err := r.Cookie(loggedInSessionID)
	if err != nil || cookie.Value == "" {
		return loginsession.Session{}, "", errors.ErrSessionNotFound
	}

	claims, err := s.sessionTokens.Parse(cookie.Value)
	if err != nil {
		return loginsession.Session{}, "", err
	}

	session, err := s.loginSessions.Get(claims.SessionID)
	if err != nil {
		return loginsession.Session{}, claims.SessionID, err
	}
	if session.User.ID != claims.Subject || session.User.Provider != claims.Provider {
		return loginsession.Session{}, claims.SessionID, errors.ErrSessionNotFound
	}
	if session.Expired(time.Now()) {
		_ = s.loginSessions.Delete(claims.SessionID)
		return loginsession.Session{}, claims.SessionID, errors.ErrSessionExpired
	}
	return session, claims.SessionID, nil
}

// meResponse is the user as shown to the browser; provider tokens are left out
type meResponse struct {
	Provider    string           `json:"provider"`
	ID          string           `json:"id"`
	Name        string           `json:"name,omitempty"`
	DisplayName string           `json:"displayName"`
	Photo       string           `json:"photo,omitempty"`
	Emails      []passport.Email `json:"emails,omitempty"`
	Profile     any              `json:"profile"`
	ExpiresAt   time.Time        `json:"expiresAt"`
}

func (s *Server) MeHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		session, ok := SessionFromContext(r.Context())
		if !ok {
			writeJSONError(w, "unauthorized", "Not logged in", http.StatusUnauthorized)
			return
		}
		user := session.User
		writeJSON(w, http.StatusOK, meResponse{
			Provider:    user.Provider,
			ID:          user.ID,
			Name:        user.Name,
			DisplayName: user.DisplayName,
			Photo:       user.Photo,
			Emails:      user.Emails,
			Profile:     user.Profile,
			ExpiresAt:   session.ExpiresAt,
		})
	}
}

// LogoutHandler deletes the session, if any, and the cookie
func (s *Server) LogoutHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, sessionID, _ := s.currentSession(r); sessionID != "" {
			if err := s.loginSessions.Delete(sessionID); err != nil {
				log.Err(err).Msg("failed to delete session")
			}
		}
		s.ClearLoginSessionCookie(w, r)
		http.Redirect(w, r, "/", http.StatusFound)
	}
}
