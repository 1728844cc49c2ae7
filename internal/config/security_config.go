package config

type SecurityConfig interface {
	GetSessionSigningKey() string
	GetEnableRateLimiting() bool
	GetRateLimitPerMinute() int
}

type Security struct{}

var _ SecurityConfig = Security{}

// GetSessionSigningKey is the HS256 secret for the session cookie.
func (Security) GetSessionSigningKey() string {
	return GetEnv("SESSION_SIGNING_KEY", "")
}

func (Security) GetEnableRateLimiting() bool {
	return GetBoolEnv("RATE_LIMIT_ENABLED", true)
}

func (Security) GetRateLimitPerMinute() int {
	return 20
}
