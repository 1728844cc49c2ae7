// Package server is the login host: it redirects browsers to a provider, finishes the
// callback through passport and keeps the resulting user in a cookie-bound session.
package server

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/jrsteele09/go-feishu-auth/internal/config"
	"github.com/jrsteele09/go-feishu-auth/passport"
	"github.com/jrsteele09/go-feishu-auth/server/authflowrepo"
	"github.com/jrsteele09/go-feishu-auth/server/loginsession"
	"github.com/rs/zerolog/log"
)

type Server struct {
	env           string // Environment (e.g., "DEV", "PROD")
	mux           *http.ServeMux
	routes        []string
	config        config.Config
	passport      *passport.Passport
	loginSessions loginsession.Repo
	authState     authflowrepo.Repo
	sessionTokens *sessionSigner
	limiter       *ipRateLimiter
}

func New(config config.Config, pp *passport.Passport, loginSessionRepo loginsession.Repo, authStateRepo authflowrepo.Repo) (*Server, error) {
	if pp == nil {
		return nil, fmt.Errorf("[Server New] passport is required")
	}

	s := &Server{
		mux:           http.NewServeMux(),
		config:        config,
		passport:      pp,
		loginSessions: loginSessionRepo,
		authState:     authStateRepo,
	}
	s.env = config.GetEnv()

	signingKey := config.GetSessionSigningKey()
	if signingKey == "" {
		if s.env != "DEV" {
			return nil, fmt.Errorf("[Server New] SESSION_SIGNING_KEY is required outside DEV")
		}
		log.Warn().Msg("SESSION_SIGNING_KEY not set, using a random key; sessions will not survive a restart")
		signingKey = generateRandomString(32)
	}
	s.sessionTokens = newSessionSigner([]byte(signingKey), config.GetAppName())

	if config.GetEnableRateLimiting() {
		s.limiter = newIPRateLimiter(config.GetRateLimitPerMinute())
	}

	s.initRoutes()
	s.logRoutes()

	return s, nil
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) RegisterRouteFunc(pattern string, handler func(http.ResponseWriter, *http.Request)) {
	s.routes = append(s.routes, pattern)
	s.mux.HandleFunc(pattern, handler)
}

func (s *Server) logRoutes() {
	if s.env != "DEV" {
		return // Skip logging in non-development environments
	}
	for _, route := range s.routes {
		parts := strings.SplitN(route, " ", 2)

		if len(parts) > 1 {
			log.Debug().Str("method", parts[0]).Str("path", parts[1]).Msg("route")
		} else {
			log.Debug().Str("path", parts[0]).Msg("route")
		}
	}
}

// Helper function to determine the scheme (http/https)
func getScheme(r *http.Request) string {
	if r.TLS != nil {
		return "https"
	}
	if scheme := r.Header.Get("X-Forwarded-Proto"); scheme != "" {
		return scheme
	}
	return "http"
}
