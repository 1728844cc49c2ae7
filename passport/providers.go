package passport

import (
	"context"
	"fmt"
	"net/http"

	"github.com/jrsteele09/go-feishu-auth/feishu"
	"github.com/jrsteele09/go-feishu-auth/github"
	"github.com/jrsteele09/go-feishu-auth/internal/config"
	"github.com/jrsteele09/go-feishu-auth/internal/errors"
	"github.com/jrsteele09/go-feishu-auth/internal/utils"
	"golang.org/x/oauth2"
)

// FeishuVerify maps a Feishu login onto a User. The mobile number is used as the user name
// and the avatar icon as the photo; Emails is only set when Feishu returned an email.
func FeishuVerify(_ context.Context, token *oauth2.Token, profile *feishu.Profile) (*User, error) {
	user := &User{
		Provider:     feishu.ProviderName,
		ID:           profile.ID,
		Name:         utils.Value(profile.Mobile),
		DisplayName:  profile.Name,
		Photo:        profile.Avatar.Icon,
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
		Profile:      profile,
	}
	if profile.Email != nil {
		user.Emails = []Email{{Value: *profile.Email}}
	}
	return user, nil
}

// GithubVerify maps a GitHub login onto a User.
func GithubVerify(_ context.Context, token *oauth2.Token, profile *github.Profile) (*User, error) {
	user := &User{
		Provider:     github.ProviderName,
		ID:           profile.ID,
		Name:         profile.Login,
		DisplayName:  profile.Name,
		Photo:        profile.AvatarURL,
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
		Profile:      profile,
	}
	if user.DisplayName == "" {
		user.DisplayName = profile.Login
	}
	if profile.Email != nil {
		user.Emails = []Email{{Value: *profile.Email}}
	}
	return user, nil
}

// NewFeishu asserts the required Feishu settings and builds the strategy.
func NewFeishu(cfg config.FeishuConfig, httpClient *http.Client) (*feishu.Strategy, error) {
	if cfg.Key == "" {
		return nil, fmt.Errorf("[passport feishu] config key required: %w", errors.ErrMissingAppID)
	}
	if cfg.Secret == "" {
		return nil, fmt.Errorf("[passport feishu] config secret required: %w", errors.ErrMissingAppSecret)
	}
	return feishu.New(feishu.Config{
		AppID:            cfg.Key,
		AppSecret:        cfg.Secret,
		CallbackURL:      cfg.CallbackURL,
		AppType:          feishu.AppType(cfg.AppType),
		AppTicket:        cfg.AppTicket,
		AuthorizationURL: cfg.AuthorizationURL,
		TokenURL:         cfg.TokenURL,
		AppTokenURL:      cfg.AppTokenURL,
		UserProfileURL:   cfg.UserProfileURL,
		HTTPClient:       httpClient,
	})
}

// FromConfig builds a Passport with Feishu always registered and GitHub registered when
// configured. A configuration error here is meant to stop startup.
func FromConfig(cfg config.ProviderConfig, httpClient *http.Client, opts ...Option) (*Passport, error) {
	p := New(opts...)

	feishuStrategy, err := NewFeishu(cfg.GetFeishuConfig(), httpClient)
	if err != nil {
		return nil, err
	}
	Use(p, feishu.ProviderName, feishuStrategy, FeishuVerify)

	if gh := cfg.GetGithubConfig(); gh.Enabled() {
		githubStrategy, err := github.New(github.Config{
			ClientID:     gh.ClientID,
			ClientSecret: gh.ClientSecret,
			CallbackURL:  gh.CallbackURL,
			Scopes:       gh.Scopes,
			HTTPClient:   httpClient,
		})
		if err != nil {
			return nil, fmt.Errorf("[passport github] %w", err)
		}
		Use(p, github.ProviderName, githubStrategy, GithubVerify)
	}

	return p, nil
}
