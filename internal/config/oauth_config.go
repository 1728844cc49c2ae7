package config

import "time"

type OAuthConfig interface {
	GetStateTimeout() time.Duration
	GetSessionExpiry() time.Duration
	GetProviderTimeout() time.Duration
}

type OAuth struct{}

var _ OAuthConfig = OAuth{}

// GetStateTimeout is how long a login redirect may take before its state is rejected.
func (OAuth) GetStateTimeout() time.Duration {
	return 10 * time.Minute
}

func (OAuth) GetSessionExpiry() time.Duration {
	return 8 * time.Hour
}

// GetProviderTimeout bounds the whole token and profile chain of one callback.
func (OAuth) GetProviderTimeout() time.Duration {
	return 15 * time.Second
}
