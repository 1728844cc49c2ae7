// Package github logs users in with GitHub. GitHub follows RFC 6749, so only the profile
// normalization is provider specific; exchange and profile fetch come from oauthclient.
package github

import (
	"context"
	"fmt"
	"net/http"

	"github.com/jrsteele09/go-feishu-auth/internal/errors"
	"github.com/jrsteele09/go-feishu-auth/internal/utils"
	"github.com/jrsteele09/go-feishu-auth/oauthclient"
	"golang.org/x/oauth2"
	githubendpoint "golang.org/x/oauth2/github"
)

const (
	ProviderName          = "github"
	DefaultUserProfileURL = "https://api.github.com/user"
)

var defaultScopes = []string{"read:user", "user:email"}

type Config struct {
	ClientID     string
	ClientSecret string
	CallbackURL  string
	Scopes       []string

	AuthorizationURL string
	TokenURL         string
	UserProfileURL   string

	HTTPClient *http.Client
}

// Profile is the normalized GitHub user.
type Profile struct {
	Provider  string  `json:"provider"`
	ID        string  `json:"id"`
	Login     string  `json:"login"`
	Name      string  `json:"name"`
	Email     *string `json:"email,omitempty"`
	AvatarURL string  `json:"avatar_url,omitempty"`
}

type Strategy struct {
	*oauthclient.Client
}

func New(cfg Config) (*Strategy, error) {
	if cfg.ClientID == "" {
		return nil, fmt.Errorf("github: %w", errors.ErrMissingClientID)
	}
	if cfg.ClientSecret == "" {
		return nil, fmt.Errorf("github: %w", errors.ErrMissingAppSecret)
	}

	endpoint := githubendpoint.Endpoint
	if cfg.AuthorizationURL != "" {
		endpoint.AuthURL = cfg.AuthorizationURL
	}
	if cfg.TokenURL != "" {
		endpoint.TokenURL = cfg.TokenURL
	}
	scopes := cfg.Scopes
	if len(scopes) == 0 {
		scopes = defaultScopes
	}
	profileURL := cfg.UserProfileURL
	if profileURL == "" {
		profileURL = DefaultUserProfileURL
	}

	opts := []oauthclient.Option{oauthclient.WithProfileURL(profileURL)}
	if cfg.HTTPClient != nil {
		opts = append(opts, oauthclient.WithHTTPClient(cfg.HTTPClient))
	}

	return &Strategy{
		Client: oauthclient.New(ProviderName, oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.CallbackURL,
			Endpoint:     endpoint,
			Scopes:       scopes,
		}, opts...),
	}, nil
}

func (s *Strategy) UserProfile(ctx context.Context, accessToken string) (*Profile, error) {
	raw, err := s.FetchProfile(ctx, accessToken)
	if err != nil {
		return nil, err
	}
	return ParseProfile(raw)
}

func (s *Strategy) Authenticate(ctx context.Context, code string) (*oauth2.Token, *Profile, error) {
	token, err := s.Exchange(ctx, code)
	if err != nil {
		return nil, nil, err
	}
	profile, err := s.UserProfile(ctx, token.AccessToken)
	if err != nil {
		return nil, nil, err
	}
	return token, profile, nil
}

// ParseProfile normalizes the GET /user payload.
func ParseProfile(raw map[string]any) (*Profile, error) {
	if raw == nil {
		return nil, fmt.Errorf("github profile: %w", errors.ErrUnexpectedResponse)
	}
	id, err := oauthclient.FirstIdentifier(raw, "id")
	if err != nil {
		return nil, errors.Wrapf(err, "github profile")
	}

	profile := &Profile{
		Provider: ProviderName,
		ID:       id,
	}
	profile.Login, _ = raw["login"].(string)
	profile.Name, _ = raw["name"].(string)
	profile.AvatarURL, _ = raw["avatar_url"].(string)
	email, _ := raw["email"].(string)
	profile.Email = utils.NonEmpty(email)
	return profile, nil
}
