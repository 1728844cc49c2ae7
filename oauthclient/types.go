package oauthclient

// GrantType represents the OAuth 2.0 grant type sent to a provider's token endpoint.
type GrantType string

const (
	// AuthorizationCodeGrant exchanges an authorization code for tokens.
	// Used in: Standard Authorization Code Flow
	// Returns: access_token, refresh_token (if the provider issues one)
	AuthorizationCodeGrant GrantType = "authorization_code"
)

// TokenType is the scheme used in the Authorization header.
const TokenType = "Bearer"

// Extra token response keys that providers commonly return alongside the access token.
const (
	ExtraAccessToken  = "access_token"
	ExtraRefreshToken = "refresh_token"
	ExtraExpiresIn    = "expires_in"
)
