package socialconnect

import (
	"strings"

	"golang.org/x/oauth2"
)

// Permission classifies the scope requested from a provider.
// The zero value means no permission was set.
type Permission string

const (
	// PermissionDefault requests the provider's default scope list.
	PermissionDefault Permission = "default"
	// PermissionAuthenticateOnly requests the minimal scope needed to sign in.
	PermissionAuthenticateOnly Permission = "authenticate_only"
	// PermissionAll requests the provider's full scope list.
	PermissionAll Permission = "all"
	// PermissionCustom requests the scopes listed in OAuthConfig.CustomPermissions.
	PermissionCustom Permission = "custom"
)

// String returns the permission name, or "unset" for the zero value.
func (p Permission) String() string {
	if p == "" {
		return "unset"
	}
	return string(p)
}

// OAuthConfig holds the client identity issued by a provider.
// It is read-only once handed to a strategy.
type OAuthConfig struct {
	// ConsumerKey is the client id (OAuth2) or consumer key (OAuth1).
	ConsumerKey string `env:"CONSUMER_KEY"`
	// ConsumerSecret is the client secret (OAuth2) or consumer secret (OAuth1).
	ConsumerSecret string `env:"CONSUMER_SECRET"`
	// CustomPermissions is an optional comma-separated scope override.
	CustomPermissions string `env:"CUSTOM_PERMISSIONS"`
	// ID tags credentials minted with this configuration.
	ID string `env:"ID"`
}

// Validate reports an ErrInvalidConfig error when the client identity is incomplete.
func (c OAuthConfig) Validate() error {
	if c.ConsumerKey == "" {
		return newAuthError(ErrKindInvalidConfig, c.ID, "", "consumer key must not be empty", nil)
	}
	if c.ConsumerSecret == "" {
		return newAuthError(ErrKindInvalidConfig, c.ID, "", "consumer secret must not be empty", nil)
	}
	return nil
}

// CustomScopes splits CustomPermissions on commas, trimming blanks.
// It returns nil when no custom permissions are configured.
func (c OAuthConfig) CustomScopes() []string {
	if strings.TrimSpace(c.CustomPermissions) == "" {
		return nil
	}
	var scopes []string
	for _, s := range strings.Split(c.CustomPermissions, ",") {
		if s = strings.TrimSpace(s); s != "" {
			scopes = append(scopes, s)
		}
	}
	return scopes
}

// EndpointName is the logical name of a protocol endpoint.
type EndpointName string

const (
	// EndpointAuthorization is where the user is redirected to grant access.
	EndpointAuthorization EndpointName = "authorization_url"
	// EndpointAccessToken is where a grant is exchanged for an access token.
	EndpointAccessToken EndpointName = "access_token_url"
	// EndpointRequestToken is where an OAuth1 request token is obtained.
	EndpointRequestToken EndpointName = "request_token_url"
)

// Endpoints is the per-provider protocol endpoint map. Strategies keep their
// own copy and never modify it.
type Endpoints struct {
	RequestTokenURL  string
	AuthorizationURL string
	AccessTokenURL   string
}

// Get returns the URL registered under name, or "" for unknown names.
func (e Endpoints) Get(name EndpointName) string {
	switch name {
	case EndpointAuthorization:
		return e.AuthorizationURL
	case EndpointAccessToken:
		return e.AccessTokenURL
	case EndpointRequestToken:
		return e.RequestTokenURL
	default:
		return ""
	}
}

// EndpointsFromOAuth2 adapts an oauth2.Endpoint (for example google.Endpoint)
// to an Endpoints value for the OAuth2 strategy.
func EndpointsFromOAuth2(ep oauth2.Endpoint) Endpoints {
	return Endpoints{
		AuthorizationURL: ep.AuthURL,
		AccessTokenURL:   ep.TokenURL,
	}
}

// require returns an ErrInvalidConfig error naming the first empty endpoint.
func (e Endpoints) require(provider string, names ...EndpointName) error {
	for _, n := range names {
		if e.Get(n) == "" {
			return newAuthError(ErrKindInvalidConfig, provider, "", string(n)+" must not be empty", nil)
		}
	}
	return nil
}
