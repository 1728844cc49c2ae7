package config

import "strings"

// ProviderConfig exposes the settings of each identity provider.
type ProviderConfig interface {
	GetFeishuConfig() FeishuConfig
	GetGithubConfig() GithubConfig
}

// FeishuConfig mirrors the FEISHU_* environment. Key and Secret are required; the app ticket
// is required when AppType is "public" (the default).
type FeishuConfig struct {
	Key         string
	Secret      string
	CallbackURL string
	AppType     string
	AppTicket   string

	AuthorizationURL string
	TokenURL         string
	AppTokenURL      string
	UserProfileURL   string
}

// GithubConfig is optional; GitHub login is enabled when ClientID is set.
type GithubConfig struct {
	ClientID     string
	ClientSecret string
	CallbackURL  string
	Scopes       []string
}

func (g GithubConfig) Enabled() bool {
	return g.ClientID != ""
}

type Providers struct{}

var _ ProviderConfig = Providers{}

func (Providers) GetFeishuConfig() FeishuConfig {
	return FeishuConfig{
		Key:              GetEnv("FEISHU_KEY", ""),
		Secret:           GetEnv("FEISHU_SECRET", ""),
		CallbackURL:      GetEnv("FEISHU_CALLBACK_URL", EnvVars{}.GetBaseURL()+"/auth/feishu/callback"),
		AppType:          GetEnv("FEISHU_APP_TYPE", "public"),
		AppTicket:        GetEnv("FEISHU_APP_TICKET", ""),
		AuthorizationURL: GetEnv("FEISHU_AUTHORIZATION_URL", ""),
		TokenURL:         GetEnv("FEISHU_TOKEN_URL", ""),
		AppTokenURL:      GetEnv("FEISHU_APP_TOKEN_URL", ""),
		UserProfileURL:   GetEnv("FEISHU_USER_PROFILE_URL", ""),
	}
}

func (Providers) GetGithubConfig() GithubConfig {
	var scopes []string
	for _, scope := range strings.Split(GetEnv("GITHUB_SCOPES", ""), ",") {
		if scope = strings.TrimSpace(scope); scope != "" {
			scopes = append(scopes, scope)
		}
	}
	return GithubConfig{
		ClientID:     GetEnv("GITHUB_CLIENT_ID", ""),
		ClientSecret: GetEnv("GITHUB_CLIENT_SECRET", ""),
		CallbackURL:  GetEnv("GITHUB_CALLBACK_URL", EnvVars{}.GetBaseURL()+"/auth/github/callback"),
		Scopes:       scopes,
	}
}
