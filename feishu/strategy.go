// Package feishu implements Feishu's OAuth login.
//
// Feishu does not follow RFC 6749 at the token endpoint: the authorization code is exchanged
// with a JSON body, authenticated by an application access token sent as a Bearer
// credential. That application token is fetched first, with the app id and secret (plus the
// app ticket for public apps). The profile endpoint wraps the user in a {code, msg, data}
// envelope.
//
// References:
//
//	https://open.feishu.cn/document/ukTMukTMukTM/ukzN4UjL5cDO14SO3gTN
//	https://open.feishu.cn/document/uQTO24CN5YjL0kjN/uEzN44SM3gjLxcDO
package feishu

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/jrsteele09/go-feishu-auth/internal/errors"
	"github.com/jrsteele09/go-feishu-auth/oauthclient"
	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"
)

const ProviderName = "feishu"

// AppType is the kind of Feishu application.
type AppType string

const (
	// AppTypePublic is a multi-tenant (store) app. It needs an app ticket.
	AppTypePublic AppType = "public"
	// AppTypeInternal is a single-tenant (custom) app.
	AppTypeInternal AppType = "internal"
)

const (
	DefaultAuthorizationURL    = "https://open.feishu.cn/open-apis/authen/v1/index"
	DefaultTokenURL            = "https://open.feishu.cn/open-apis/authen/v1/access_token"
	DefaultPublicAppTokenURL   = "https://open.feishu.cn/open-apis/auth/v3/app_access_token/"
	DefaultInternalAppTokenURL = "https://open.feishu.cn/open-apis/auth/v3/app_access_token/internal"
	DefaultUserProfileURL      = "https://open.feishu.cn/open-apis/authen/v1/user_info"
)

// NowTimeFunc returns the current time. It can be overridden in tests.
var NowTimeFunc = time.Now

// Config is what callers supply to New. It is read once and never modified.
type Config struct {
	AppID       string
	AppSecret   string
	CallbackURL string
	AppType     AppType // defaults to AppTypePublic
	AppTicket   string  // required when AppType is AppTypePublic

	// Endpoint overrides; empty means the Feishu default.
	AuthorizationURL string
	TokenURL         string
	AppTokenURL      string
	UserProfileURL   string

	HTTPClient *http.Client
}

// Strategy decorates the generic OAuth2 client, replacing the token exchange and profile
// fetch with Feishu's protocol. Authorization URL building is inherited.
type Strategy struct {
	*oauthclient.Client

	appType     AppType
	appID       string
	appSecret   string
	appTicket   string
	appTokenURL string
}

var _ oauthclient.Exchanger = (*Strategy)(nil)

// New validates cfg and builds a Strategy. No network call is made.
func New(cfg Config) (*Strategy, error) {
	if cfg.AppID == "" {
		return nil, errors.Wrapf(errors.ErrMissingAppID, "feishu")
	}
	if cfg.AppSecret == "" {
		return nil, errors.Wrapf(errors.ErrMissingAppSecret, "feishu")
	}

	appType := cfg.AppType
	if appType == "" {
		appType = AppTypePublic
	}
	switch appType {
	case AppTypePublic:
		if cfg.AppTicket == "" {
			return nil, errors.Wrapf(errors.ErrMissingAppTicket, "feishu")
		}
	case AppTypeInternal:
	default:
		return nil, fmt.Errorf("feishu: %w: %q", errors.ErrInvalidAppType, appType)
	}

	s := &Strategy{
		appType:     appType,
		appID:       cfg.AppID,
		appSecret:   cfg.AppSecret,
		appTokenURL: orDefault(cfg.AppTokenURL, defaultAppTokenURL(appType)),
	}
	if appType == AppTypePublic {
		s.appTicket = cfg.AppTicket
	}

	oauthCfg := oauth2.Config{
		ClientID:     cfg.AppID,
		ClientSecret: cfg.AppSecret,
		RedirectURL:  cfg.CallbackURL,
		Endpoint: oauth2.Endpoint{
			AuthURL:  orDefault(cfg.AuthorizationURL, DefaultAuthorizationURL),
			TokenURL: orDefault(cfg.TokenURL, DefaultTokenURL),
		},
	}
	opts := []oauthclient.Option{
		oauthclient.WithProfileURL(orDefault(cfg.UserProfileURL, DefaultUserProfileURL)),
		oauthclient.WithAuthParams(s.AuthorizationParams()),
	}
	if cfg.HTTPClient != nil {
		opts = append(opts, oauthclient.WithHTTPClient(cfg.HTTPClient))
	}
	s.Client = oauthclient.New(ProviderName, oauthCfg, opts...)

	return s, nil
}

func (s *Strategy) AppType() AppType {
	return s.appType
}

// AuthorizationParams returns the extra query parameters of the authorization redirect.
// Feishu reads the application from app_id rather than client_id.
func (s *Strategy) AuthorizationParams() url.Values {
	return url.Values{"app_id": {s.appID}}
}

type appTokenRequest struct {
	AppID     string `json:"app_id"`
	AppSecret string `json:"app_secret"`
	AppTicket string `json:"app_ticket,omitempty"`
}

type appTokenResponse struct {
	Code              int    `json:"code"`
	Msg               string `json:"msg"`
	TenantAccessToken string `json:"tenant_access_token"`
	AppAccessToken    string `json:"app_access_token"`
	Expire            int    `json:"expire"`
}

// AppAccessToken obtains an application access token. It is fetched on every call.
func (s *Strategy) AppAccessToken(ctx context.Context) (string, error) {
	req := appTokenRequest{
		AppID:     s.appID,
		AppSecret: s.appSecret,
		AppTicket: s.appTicket,
	}

	var resp appTokenResponse
	if err := s.DoJSON(ctx, s.PlainClient(ctx), http.MethodPost, s.appTokenURL, req, &resp); err != nil {
		return "", errors.Wrapf(providerFailure(err), "feishu app access token")
	}
	if resp.Code != 0 {
		return "", errors.Wrapf(&errors.ProviderError{Code: resp.Code, Msg: resp.Msg}, "feishu app access token")
	}

	token := resp.TenantAccessToken
	if token == "" {
		token = resp.AppAccessToken
	}
	if token == "" {
		return "", errors.Wrapf(errors.ErrMissingAccessToken, "feishu app access token")
	}
	return token, nil
}

type userTokenRequest struct {
	GrantType string `json:"grant_type"`
	Code      string `json:"code"`
}

// envelope is the {code, msg, data} wrapper of the authen/v1 endpoints.
type envelope struct {
	Code int            `json:"code"`
	Msg  string         `json:"msg"`
	Data map[string]any `json:"data"`
}

// Exchange trades an authorization code for the user's tokens. The application access token
// is obtained first and sent as the Bearer credential. The refresh token is removed from the
// extras carried by the returned token.
func (s *Strategy) Exchange(ctx context.Context, code string) (*oauth2.Token, error) {
	s.logStep("app_token_requested")
	appToken, err := s.AppAccessToken(ctx)
	if err != nil {
		return nil, err
	}
	s.logStep("app_token_received")

	req := userTokenRequest{
		GrantType: string(oauthclient.AuthorizationCodeGrant),
		Code:      code,
	}
	tokenURL := s.Config().Endpoint.TokenURL

	s.logStep("code_exchange_requested")
	var resp envelope
	if err := s.DoJSON(ctx, s.BearerClient(ctx, appToken), http.MethodPost, tokenURL, req, &resp); err != nil {
		return nil, errors.Wrapf(providerFailure(err), "feishu code exchange")
	}
	if resp.Code != 0 {
		return nil, errors.Wrapf(&errors.ProviderError{Code: resp.Code, Msg: resp.Msg}, "feishu code exchange")
	}
	if resp.Data == nil {
		return nil, fmt.Errorf("feishu code exchange: %w: missing data", errors.ErrUnexpectedResponse)
	}

	accessToken, _ := resp.Data[oauthclient.ExtraAccessToken].(string)
	if accessToken == "" {
		return nil, errors.Wrapf(errors.ErrMissingAccessToken, "feishu code exchange")
	}
	refreshToken, _ := resp.Data[oauthclient.ExtraRefreshToken].(string)
	delete(resp.Data, oauthclient.ExtraRefreshToken)

	token := &oauth2.Token{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		TokenType:    oauthclient.TokenType,
	}
	if secs, ok := resp.Data[oauthclient.ExtraExpiresIn].(json.Number); ok {
		if n, err := secs.Int64(); err == nil && n > 0 {
			token.Expiry = NowTimeFunc().Add(time.Duration(n) * time.Second)
		}
	}
	s.logStep("user_token_received")

	return token.WithExtra(resp.Data), nil
}

// FetchProfile returns the "data" object of the user_info response.
func (s *Strategy) FetchProfile(ctx context.Context, accessToken string) (map[string]any, error) {
	s.logStep("profile_requested")
	var resp envelope
	if err := s.DoJSON(ctx, s.BearerClient(ctx, accessToken), http.MethodGet, s.ProfileURL(), nil, &resp); err != nil {
		return nil, errors.Wrapf(providerFailure(err), "feishu user profile")
	}
	if resp.Code != 0 {
		return nil, errors.Wrapf(&errors.ProviderError{Code: resp.Code, Msg: resp.Msg}, "feishu user profile")
	}
	if resp.Data == nil {
		return nil, fmt.Errorf("feishu user profile: %w: missing data", errors.ErrUnexpectedResponse)
	}
	return resp.Data, nil
}

// UserProfile fetches and normalizes the user's profile.
func (s *Strategy) UserProfile(ctx context.Context, accessToken string) (*Profile, error) {
	raw, err := s.FetchProfile(ctx, accessToken)
	if err != nil {
		return nil, err
	}
	profile, err := ParseProfile(raw)
	if err != nil {
		return nil, err
	}
	profile.Provider = ProviderName
	s.logStep("profile_normalized")
	return profile, nil
}

// Authenticate runs the whole login chain for an authorization code. The first failure ends
// the chain and nothing from earlier steps is returned.
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

// providerFailure turns a non-2xx response that still carries Feishu's {code, msg} body into
// a ProviderError.
func providerFailure(err error) error {
	var statusErr *errors.HTTPStatusError
	if !errors.As(err, &statusErr) {
		return err
	}
	var body struct {
		Code int    `json:"code"`
		Msg  string `json:"msg"`
	}
	if json.Unmarshal([]byte(statusErr.Body), &body) != nil || body.Code == 0 {
		return err
	}
	return &errors.ProviderError{Code: body.Code, Msg: body.Msg}
}

func defaultAppTokenURL(appType AppType) string {
	if appType == AppTypeInternal {
		return DefaultInternalAppTokenURL
	}
	return DefaultPublicAppTokenURL
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

func (s *Strategy) logStep(step string) {
	log.Debug().Str("provider", ProviderName).Str("app_type", string(s.AppType())).Str("step", step).Msg("feishu login")
}
