package feishu_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jrsteele09/go-feishu-auth/feishu"
	"github.com/jrsteele09/go-feishu-auth/internal/errors"
	"github.com/stretchr/testify/require"
)

const (
	testAppID     = "cli_app"
	testAppSecret = "app-secret"
	testAppTicket = "app-ticket"
	testAppToken  = "T"
	testCode      = "auth-code"
)

// fakeFeishu stands in for open.feishu.cn. Each handler can be replaced per test.
type fakeFeishu struct {
	srv *httptest.Server

	appToken  http.HandlerFunc
	userToken http.HandlerFunc
	userInfo  http.HandlerFunc

	appTokenCalls  atomic.Int32
	userTokenCalls atomic.Int32
	userInfoCalls  atomic.Int32
	lastAppRequest map[string]any
}

func newFakeFeishu(t *testing.T) *fakeFeishu {
	t.Helper()

	f := &fakeFeishu{}
	f.appToken = func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"code": 0, "msg": "ok", "tenant_access_token": testAppToken, "expire": 7200})
	}
	f.userToken = func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer "+testAppToken {
			writeJSON(w, http.StatusUnauthorized, map[string]any{"code": 99991663, "msg": "invalid app token"})
			return
		}
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		require.Equal(t, "authorization_code", body["grant_type"])
		if body["code"] != testCode {
			writeJSON(w, http.StatusOK, map[string]any{"code": 20007, "msg": "code is invalid"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"data": map[string]any{
			"access_token": "A", "refresh_token": "R", "open_id": "U1", "expires_in": 6900,
		}})
	}
	f.userInfo = func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer A" {
			writeJSON(w, http.StatusUnauthorized, map[string]any{"code": 99991668, "msg": "invalid access token"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"code": 0, "data": map[string]any{
			"union_id": "U1", "name": "Alice", "avatar_url": "http://x/i.png",
		}})
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /open-apis/auth/v3/app_access_token/", func(w http.ResponseWriter, r *http.Request) {
		f.appTokenCalls.Add(1)
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		f.lastAppRequest = body
		f.appToken(w, r)
	})
	mux.HandleFunc("POST /open-apis/auth/v3/app_access_token/internal", func(w http.ResponseWriter, r *http.Request) {
		f.appTokenCalls.Add(1)
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		f.lastAppRequest = body
		f.appToken(w, r)
	})
	mux.HandleFunc("POST /open-apis/authen/v1/access_token", func(w http.ResponseWriter, r *http.Request) {
		f.userTokenCalls.Add(1)
		f.userToken(w, r)
	})
	mux.HandleFunc("GET /open-apis/authen/v1/user_info", func(w http.ResponseWriter, r *http.Request) {
		f.userInfoCalls.Add(1)
		f.userInfo(w, r)
	})

	f.srv = httptest.NewServer(mux)
	t.Cleanup(f.srv.Close)
	return f
}

func (f *fakeFeishu) config(appType feishu.AppType) feishu.Config {
	cfg := feishu.Config{
		AppID:            testAppID,
		AppSecret:        testAppSecret,
		CallbackURL:      "https://app.example.com/auth/feishu/callback",
		AppType:          appType,
		AuthorizationURL: f.srv.URL + "/open-apis/authen/v1/index",
		TokenURL:         f.srv.URL + "/open-apis/authen/v1/access_token",
		UserProfileURL:   f.srv.URL + "/open-apis/authen/v1/user_info",
		HTTPClient:       f.srv.Client(),
	}
	if appType == feishu.AppTypePublic {
		cfg.AppTicket = testAppTicket
		cfg.AppTokenURL = f.srv.URL + "/open-apis/auth/v3/app_access_token/"
	} else {
		cfg.AppTokenURL = f.srv.URL + "/open-apis/auth/v3/app_access_token/internal"
	}
	return cfg
}

func (f *fakeFeishu) strategy(t *testing.T, appType feishu.AppType) *feishu.Strategy {
	t.Helper()
	s, err := feishu.New(f.config(appType))
	require.NoError(t, err)
	return s
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// failingTransport fails the test if any request is attempted.
type failingTransport struct{ t *testing.T }

func (f failingTransport) RoundTrip(r *http.Request) (*http.Response, error) {
	f.t.Fatalf("unexpected request to %s", r.URL)
	return nil, nil
}

func TestNew_Validation(t *testing.T) {
	noNetwork := &http.Client{Transport: failingTransport{t}}

	tests := []struct {
		name    string
		cfg     feishu.Config
		wantErr error
	}{
		{
			name:    "missing app id",
			cfg:     feishu.Config{AppSecret: "s", AppType: feishu.AppTypeInternal, HTTPClient: noNetwork},
			wantErr: errors.ErrMissingAppID,
		},
		{
			name:    "missing app secret",
			cfg:     feishu.Config{AppID: "k", AppType: feishu.AppTypeInternal, HTTPClient: noNetwork},
			wantErr: errors.ErrMissingAppSecret,
		},
		{
			name:    "public app without ticket",
			cfg:     feishu.Config{AppID: "k", AppSecret: "s", AppType: feishu.AppTypePublic, HTTPClient: noNetwork},
			wantErr: errors.ErrMissingAppTicket,
		},
		{
			name:    "default app type is public",
			cfg:     feishu.Config{AppID: "k", AppSecret: "s", HTTPClient: noNetwork},
			wantErr: errors.ErrMissingAppTicket,
		},
		{
			name:    "unknown app type",
			cfg:     feishu.Config{AppID: "k", AppSecret: "s", AppType: "store", HTTPClient: noNetwork},
			wantErr: errors.ErrInvalidAppType,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := feishu.New(tt.cfg)
			require.ErrorIs(t, err, tt.wantErr)
			require.Nil(t, s)
		})
	}

	t.Run("valid public app", func(t *testing.T) {
		s, err := feishu.New(feishu.Config{AppID: "k", AppSecret: "s", AppTicket: "t", HTTPClient: noNetwork})
		require.NoError(t, err)
		require.Equal(t, feishu.AppTypePublic, s.AppType())
		require.Equal(t, feishu.ProviderName, s.Name())
		require.Equal(t, feishu.DefaultTokenURL, s.Config().Endpoint.TokenURL)
		require.Equal(t, feishu.DefaultUserProfileURL, s.ProfileURL())
	})
}

func TestNew_DoesNotModifyConfig(t *testing.T) {
	cfg := feishu.Config{AppID: "k", AppSecret: "s", AppType: feishu.AppTypeInternal}
	_, err := feishu.New(cfg)
	require.NoError(t, err)
	require.Equal(t, feishu.Config{AppID: "k", AppSecret: "s", AppType: feishu.AppTypeInternal}, cfg)
}

func TestStrategy_AuthCodeURL(t *testing.T) {
	s, err := feishu.New(feishu.Config{AppType: feishu.AppTypeInternal, AppID: "k", AppSecret: "s", CallbackURL: "https://app.example.com/cb"})
	require.NoError(t, err)

	require.Equal(t, url.Values{"app_id": {"k"}}, s.AuthorizationParams())

	u, err := url.Parse(s.AuthCodeURL("xyz"))
	require.NoError(t, err)
	require.Equal(t, "open.feishu.cn", u.Host)
	require.Equal(t, "/open-apis/authen/v1/index", u.Path)
	require.Equal(t, "k", u.Query().Get("app_id"))
	require.Equal(t, "xyz", u.Query().Get("state"))
	require.Equal(t, "https://app.example.com/cb", u.Query().Get("redirect_uri"))
}

func TestStrategy_AppAccessToken(t *testing.T) {
	ctx := context.Background()

	t.Run("public app sends ticket", func(t *testing.T) {
		f := newFakeFeishu(t)
		token, err := f.strategy(t, feishu.AppTypePublic).AppAccessToken(ctx)
		require.NoError(t, err)
		require.Equal(t, testAppToken, token)
		require.Equal(t, map[string]any{"app_id": testAppID, "app_secret": testAppSecret, "app_ticket": testAppTicket}, f.lastAppRequest)
	})

	t.Run("internal app omits ticket", func(t *testing.T) {
		f := newFakeFeishu(t)
		_, err := f.strategy(t, feishu.AppTypeInternal).AppAccessToken(ctx)
		require.NoError(t, err)
		require.Equal(t, map[string]any{"app_id": testAppID, "app_secret": testAppSecret}, f.lastAppRequest)
	})

	t.Run("falls back to app_access_token", func(t *testing.T) {
		f := newFakeFeishu(t)
		f.appToken = func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, map[string]any{"code": 0, "app_access_token": "APP"})
		}
		token, err := f.strategy(t, feishu.AppTypeInternal).AppAccessToken(ctx)
		require.NoError(t, err)
		require.Equal(t, "APP", token)
	})

	t.Run("non-zero code is a provider error", func(t *testing.T) {
		f := newFakeFeishu(t)
		f.appToken = func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, map[string]any{"code": 10003, "msg": "invalid app_id"})
		}
		_, err := f.strategy(t, feishu.AppTypeInternal).AppAccessToken(ctx)
		require.ErrorIs(t, err, errors.ErrProviderAPI)
		require.Contains(t, err.Error(), "[code: 10003] invalid app_id")

		var perr *errors.ProviderError
		require.True(t, errors.As(err, &perr))
		require.Equal(t, 10003, perr.Code)
	})

	t.Run("error status with feishu body", func(t *testing.T) {
		f := newFakeFeishu(t)
		f.appToken = func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusBadRequest, map[string]any{"code": 10014, "msg": "app secret invalid"})
		}
		_, err := f.strategy(t, feishu.AppTypeInternal).AppAccessToken(ctx)
		require.ErrorIs(t, err, errors.ErrProviderAPI)
		require.Contains(t, err.Error(), "[code: 10014] app secret invalid")
	})

	t.Run("error status without feishu body", func(t *testing.T) {
		f := newFakeFeishu(t)
		f.appToken = func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "bad gateway", http.StatusBadGateway)
		}
		_, err := f.strategy(t, feishu.AppTypeInternal).AppAccessToken(ctx)

		var statusErr *errors.HTTPStatusError
		require.True(t, errors.As(err, &statusErr))
		require.Equal(t, http.StatusBadGateway, statusErr.StatusCode)
	})

	t.Run("missing token fails closed", func(t *testing.T) {
		f := newFakeFeishu(t)
		f.appToken = func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, map[string]any{"code": 0, "msg": "ok"})
		}
		_, err := f.strategy(t, feishu.AppTypeInternal).AppAccessToken(ctx)
		require.ErrorIs(t, err, errors.ErrMissingAccessToken)
	})

	t.Run("token fetched on every call", func(t *testing.T) {
		f := newFakeFeishu(t)
		s := f.strategy(t, feishu.AppTypeInternal)
		_, err := s.AppAccessToken(ctx)
		require.NoError(t, err)
		_, err = s.AppAccessToken(ctx)
		require.NoError(t, err)
		require.EqualValues(t, 2, f.appTokenCalls.Load())
	})
}

func TestStrategy_Exchange(t *testing.T) {
	ctx := context.Background()

	t.Run("app token used as bearer", func(t *testing.T) {
		now := time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC)
		feishu.NowTimeFunc = func() time.Time { return now }
		t.Cleanup(func() { feishu.NowTimeFunc = time.Now })

		f := newFakeFeishu(t)
		token, err := f.strategy(t, feishu.AppTypePublic).Exchange(ctx, testCode)
		require.NoError(t, err)

		require.Equal(t, "A", token.AccessToken)
		require.Equal(t, "R", token.RefreshToken)
		require.Equal(t, "Bearer", token.TokenType)
		require.Equal(t, now.Add(6900*time.Second), token.Expiry)
		require.Equal(t, "U1", token.Extra("open_id"))
		require.Equal(t, "A", token.Extra("access_token"))
		require.Nil(t, token.Extra("refresh_token"))
	})

	t.Run("app token failure stops the chain", func(t *testing.T) {
		f := newFakeFeishu(t)
		f.appToken = func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, map[string]any{"code": 10003, "msg": "invalid app_id"})
		}
		token, err := f.strategy(t, feishu.AppTypePublic).Exchange(ctx, testCode)
		require.ErrorIs(t, err, errors.ErrProviderAPI)
		require.Nil(t, token)
		require.Zero(t, f.userTokenCalls.Load())
	})

	t.Run("invalid code", func(t *testing.T) {
		f := newFakeFeishu(t)
		_, err := f.strategy(t, feishu.AppTypePublic).Exchange(ctx, "wrong")
		require.ErrorIs(t, err, errors.ErrProviderAPI)
		require.Contains(t, err.Error(), "[code: 20007] code is invalid")
	})

	t.Run("missing data fails closed", func(t *testing.T) {
		f := newFakeFeishu(t)
		f.userToken = func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, map[string]any{"code": 0})
		}
		_, err := f.strategy(t, feishu.AppTypePublic).Exchange(ctx, testCode)
		require.ErrorIs(t, err, errors.ErrUnexpectedResponse)
	})

	t.Run("missing access token fails closed", func(t *testing.T) {
		f := newFakeFeishu(t)
		f.userToken = func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, map[string]any{"data": map[string]any{"refresh_token": "R"}})
		}
		_, err := f.strategy(t, feishu.AppTypePublic).Exchange(ctx, testCode)
		require.ErrorIs(t, err, errors.ErrMissingAccessToken)
	})
}

func TestStrategy_UserProfile(t *testing.T) {
	ctx := context.Background()

	t.Run("normalized and tagged", func(t *testing.T) {
		f := newFakeFeishu(t)
		profile, err := f.strategy(t, feishu.AppTypeInternal).UserProfile(ctx, "A")
		require.NoError(t, err)
		require.Equal(t, "feishu", profile.Provider)
		require.Equal(t, "U1", profile.ID)
		require.Equal(t, "Alice", profile.Name)
		require.Equal(t, "http://x/i.png", profile.Avatar.Icon)
		require.Nil(t, profile.Email)
		require.Nil(t, profile.Mobile)
	})

	t.Run("rejected token", func(t *testing.T) {
		f := newFakeFeishu(t)
		_, err := f.strategy(t, feishu.AppTypeInternal).UserProfile(ctx, "other")
		require.ErrorIs(t, err, errors.ErrProviderAPI)
		require.Contains(t, err.Error(), "[code: 99991668]")
	})

	t.Run("missing data fails closed", func(t *testing.T) {
		f := newFakeFeishu(t)
		f.userInfo = func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, map[string]any{"code": 0})
		}
		_, err := f.strategy(t, feishu.AppTypeInternal).UserProfile(ctx, "A")
		require.ErrorIs(t, err, errors.ErrUnexpectedResponse)
	})
}

func TestStrategy_Authenticate(t *testing.T) {
	ctx := context.Background()

	t.Run("full chain", func(t *testing.T) {
		f := newFakeFeishu(t)
		token, profile, err := f.strategy(t, feishu.AppTypePublic).Authenticate(ctx, testCode)
		require.NoError(t, err)
		require.Equal(t, "A", token.AccessToken)
		require.Equal(t, "U1", profile.ID)
		require.EqualValues(t, 1, f.appTokenCalls.Load())
		require.EqualValues(t, 1, f.userTokenCalls.Load())
		require.EqualValues(t, 1, f.userInfoCalls.Load())
	})

	t.Run("profile failure returns nothing", func(t *testing.T) {
		f := newFakeFeishu(t)
		f.userInfo = func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "boom", http.StatusInternalServerError)
		}
		token, profile, err := f.strategy(t, feishu.AppTypePublic).Authenticate(ctx, testCode)
		require.Error(t, err)
		require.Nil(t, token)
		require.Nil(t, profile)
	})

	t.Run("cancelled context", func(t *testing.T) {
		f := newFakeFeishu(t)
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		_, _, err := f.strategy(t, feishu.AppTypePublic).Authenticate(cctx, testCode)
		require.ErrorIs(t, err, context.Canceled)
		require.Zero(t, f.appTokenCalls.Load())
	})
}
