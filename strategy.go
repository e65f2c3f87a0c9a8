package socialconnect

import (
	"context"
	"fmt"
	"strings"
)

// Strategy is the contract shared by the OAuth2 and OAuth1 variants.
//
// A Strategy instance models exactly one authorization attempt and is not
// safe for concurrent use: create one per in-flight user session.
type Strategy interface {
	// LoginRedirectURL returns the provider URL the browser must visit.
	// It records successURL as the callback target and marks that a redirect
	// was issued, which VerifyResponse requires.
	LoginRedirectURL(ctx context.Context, successURL string) (string, error)

	// VerifyResponse completes the handshake with the parameters the provider
	// sent to the callback. method selects how the token endpoint is called
	// where the variant supports a choice ("" means GET).
	VerifyResponse(ctx context.Context, params map[string]string, method string) (*Credential, error)

	// SetScope sets the scope string used by the next redirect.
	SetScope(scope string)

	// SetPermission sets the permission recorded on the next minted credential.
	SetPermission(p Permission)

	// SetAccessGrant installs a previously obtained credential.
	SetAccessGrant(c *Credential)

	// AccessGrant returns the installed credential, or nil.
	AccessGrant() *Credential

	// ExecuteFeed performs an authenticated call. Without options it is a GET.
	ExecuteFeed(ctx context.Context, rawURL string, opts ...FeedOption) (*Response, error)

	// UploadImage performs an authenticated multipart call carrying file.
	UploadImage(ctx context.Context, rawURL string, file Upload, opts ...FeedOption) (*Response, error)

	// Logout clears the credential and the redirect state.
	Logout()
}

// flow holds the state both variants keep between the redirect and callback legs.
type flow struct {
	config    OAuthConfig
	endpoints Endpoints
	cfg       *strategyConfig

	providerState bool
	scope         string
	permission    Permission
	successURL    string
	grant         *Credential
}

func newFlow(config OAuthConfig, endpoints Endpoints, opts []Option) flow {
	return flow{
		config:     config,
		endpoints:  endpoints,
		cfg:        newStrategyConfig(opts...),
		permission: PermissionDefault,
	}
}

func (f *flow) SetScope(scope string) { f.scope = scope }

func (f *flow) SetPermission(p Permission) { f.permission = p }

func (f *flow) SetAccessGrant(c *Credential) { f.grant = c }

func (f *flow) AccessGrant() *Credential { return f.grant }

// mintedPermission is the permission recorded on a new credential.
func (f *flow) mintedPermission() Permission {
	if f.permission == "" {
		return PermissionAll
	}
	return f.permission
}

// checkCallback enforces the redirect-before-verify guard and turns provider
// denial parameters into ErrUserDenied. It never touches the network.
func (f *flow) checkCallback(params map[string]string, denialKeys ...string) error {
	if !f.providerState {
		return newAuthError(ErrKindProviderState, f.config.ID, "",
			"verify called without a prior login redirect on this instance", nil)
	}
	for _, k := range denialKeys {
		v := strings.TrimSpace(params[k])
		if v == "" {
			continue
		}
		msg := fmt.Sprintf("user denied access (%s=%s)", k, v)
		if desc := params["error_description"]; desc != "" {
			msg += ": " + desc
		}
		return newAuthError(ErrKindUserDenied, f.config.ID, v, msg, nil)
	}
	return nil
}

// requireGrant returns ErrNotAuthenticated when no credential is installed.
func (f *flow) requireGrant() error {
	if f.grant == nil {
		return newAuthError(ErrKindNotAuthenticated, f.config.ID, "",
			"no access grant installed; complete VerifyResponse or call SetAccessGrant first", nil)
	}
	return nil
}

// reset is the shared part of Logout.
func (f *flow) reset() {
	f.grant = nil
	f.providerState = false
}
