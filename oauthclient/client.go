// Package oauthclient is the generic OAuth2 exchange capability that provider strategies
// decorate. It builds authorization URLs, performs the standard RFC 6749 code exchange and
// fetches a raw JSON profile with a bearer token, all on top of golang.org/x/oauth2.
package oauthclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"

	"github.com/jrsteele09/go-feishu-auth/internal/errors"
	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"
)

// maxResponseBytes caps how much of a provider response is read.
const maxResponseBytes = 1 << 20

// Exchanger is the part of an OAuth2 flow a provider strategy may override.
type Exchanger interface {
	// Name returns the provider identifier (e.g. "feishu", "github").
	Name() string

	// AuthCodeURL returns the URL the browser is redirected to for user consent.
	AuthCodeURL(state string, opts ...oauth2.AuthCodeOption) string

	// Exchange trades an authorization code for the user's tokens.
	Exchange(ctx context.Context, code string) (*oauth2.Token, error)

	// FetchProfile returns the provider's raw profile payload for the access token.
	FetchProfile(ctx context.Context, accessToken string) (map[string]any, error)
}

// Client is the default Exchanger built on oauth2.Config.
type Client struct {
	name       string
	config     oauth2.Config
	profileURL string
	authParams url.Values
	httpClient *http.Client
}

var _ Exchanger = (*Client)(nil)

type Option func(*Client)

// WithHTTPClient sets the HTTP client used for every provider call.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithProfileURL sets the endpoint FetchProfile calls.
func WithProfileURL(profileURL string) Option {
	return func(c *Client) {
		c.profileURL = profileURL
	}
}

// WithAuthParams adds fixed query parameters to every authorization URL.
func WithAuthParams(params url.Values) Option {
	return func(c *Client) {
		c.authParams = params
	}
}

// New creates a Client. The config is copied so later changes by the caller have no effect.
func New(name string, cfg oauth2.Config, opts ...Option) *Client {
	cfg.Scopes = append([]string(nil), cfg.Scopes...)
	c := &Client{
		name:   name,
		config: cfg,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) Name() string {
	return c.name
}

// Config returns a copy of the underlying oauth2 configuration.
func (c *Client) Config() oauth2.Config {
	cfg := c.config
	cfg.Scopes = append([]string(nil), c.config.Scopes...)
	return cfg
}

func (c *Client) ProfileURL() string {
	return c.profileURL
}

func (c *Client) AuthCodeURL(state string, opts ...oauth2.AuthCodeOption) string {
	keys := make([]string, 0, len(c.authParams))
	for k := range c.authParams {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	// fresh slice so the caller's backing array is never written
	all := make([]oauth2.AuthCodeOption, 0, len(opts)+len(keys))
	all = append(all, opts...)
	for _, k := range keys {
		all = append(all, oauth2.SetAuthURLParam(k, c.authParams.Get(k)))
	}
	return c.config.AuthCodeURL(state, all...)
}

// Exchange performs the standard form-encoded code exchange.
func (c *Client) Exchange(ctx context.Context, code string) (*oauth2.Token, error) {
	token, err := c.config.Exchange(c.HTTPContext(ctx), code)
	if err != nil {
		return nil, fmt.Errorf("%s token exchange failed: %w", c.name, err)
	}
	if token.AccessToken == "" {
		return nil, fmt.Errorf("%s token exchange: %w", c.name, errors.ErrMissingAccessToken)
	}
	return token, nil
}

func (c *Client) FetchProfile(ctx context.Context, accessToken string) (map[string]any, error) {
	if c.profileURL == "" {
		return nil, fmt.Errorf("%s has no profile url configured", c.name)
	}
	var profile map[string]any
	if err := c.DoJSON(ctx, c.BearerClient(ctx, accessToken), http.MethodGet, c.profileURL, nil, &profile); err != nil {
		return nil, fmt.Errorf("%s user profile: %w", c.name, err)
	}
	if profile == nil {
		return nil, fmt.Errorf("%s user profile: %w", c.name, errors.ErrUnexpectedResponse)
	}
	return profile, nil
}

// HTTPContext returns ctx carrying the configured HTTP client under oauth2.HTTPClient, which
// is where golang.org/x/oauth2 looks for its transport.
func (c *Client) HTTPContext(ctx context.Context) context.Context {
	if c.httpClient == nil {
		return ctx
	}
	return context.WithValue(ctx, oauth2.HTTPClient, c.httpClient)
}

// PlainClient returns an HTTP client with no Authorization header.
func (c *Client) PlainClient(ctx context.Context) *http.Client {
	return oauth2.NewClient(c.HTTPContext(ctx), nil)
}

// BearerClient returns an HTTP client that sends "Authorization: Bearer <token>".
func (c *Client) BearerClient(ctx context.Context, token string) *http.Client {
	src := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token, TokenType: TokenType})
	return oauth2.NewClient(c.HTTPContext(ctx), src)
}

// DoJSON sends body (if any) as JSON and decodes the response into out. Numbers are decoded
// as json.Number when out is a map so identifiers keep their exact text.
func (c *Client) DoJSON(ctx context.Context, hc *http.Client, method, endpoint string, body any, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encoding request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json; charset=utf-8")
	}

	resp, err := hc.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, endpoint, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return fmt.Errorf("reading response from %s: %w", endpoint, err)
	}

	log.Debug().
		Str("provider", c.name).
		Str("method", method).
		Str("url", endpoint).
		Int("status", resp.StatusCode).
		Msg("provider call")

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &errors.HTTPStatusError{URL: endpoint, StatusCode: resp.StatusCode, Body: string(raw)}
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(out); err != nil {
		return fmt.Errorf("%w: decoding %s: %v", errors.ErrUnexpectedResponse, endpoint, err)
	}
	return nil
}
