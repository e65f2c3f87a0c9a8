package socialconnect

import (
	"context"
	"fmt"
	"io"
)

// Gender represents the gender of a user.
type Gender int

const (
	// GenderUnknown indicates the gender is not known or not specified.
	GenderUnknown Gender = 0
	// GenderMale indicates male.
	GenderMale Gender = 1
	// GenderFemale indicates female.
	GenderFemale Gender = 2
)

// String returns the string representation of the Gender.
func (g Gender) String() string {
	switch g {
	case GenderMale:
		return "male"
	case GenderFemale:
		return "female"
	default:
		return "unknown"
	}
}

// parseGender maps a provider's free-form gender value.
func parseGender(s string) Gender {
	switch s {
	case "male", "m", "M", "Male":
		return GenderMale
	case "female", "f", "F", "Female":
		return GenderFemale
	default:
		return GenderUnknown
	}
}

// BirthDate is a possibly partial date of birth. Zero fields are unknown.
type BirthDate struct {
	Day   int
	Month int
	Year  int
}

// IsZero reports whether no part of the date is known.
func (d BirthDate) IsZero() bool {
	return d.Day == 0 && d.Month == 0 && d.Year == 0
}

// String formats the date as MM/DD/YYYY, leaving unknown parts out.
func (d BirthDate) String() string {
	switch {
	case d.IsZero():
		return ""
	case d.Year == 0:
		return fmt.Sprintf("%02d/%02d", d.Month, d.Day)
	default:
		return fmt.Sprintf("%02d/%02d/%04d", d.Month, d.Day, d.Year)
	}
}

// Profile is the user profile a provider adapter maps from its API.
type Profile struct {
	// ValidatedID is the user's identifier at the provider.
	ValidatedID string
	FirstName   string
	LastName    string
	FullName    string
	Email       string
	Gender      Gender
	Location    string
	// Language and Country come from the provider's locale, when it reports one.
	Language        string
	Country         string
	ProfileImageURL string
	DOB             BirthDate
	// ProviderID is the id of the configuration that produced the profile.
	ProviderID string
	// Raw contains the decoded profile response.
	Raw map[string]any
}

// Contact is one entry of a user's contact or connection list.
type Contact struct {
	ID         string
	FirstName  string
	LastName   string
	Email      string
	ProfileURL string
}

// Provider is a provider adapter: a Strategy plus the mapping of that
// provider's profile, contact and status APIs. Like Strategy, a Provider
// instance serves a single user session.
type Provider interface {
	// ID returns the provider id from the configuration (e.g. "google").
	ID() string

	// LoginRedirectURL returns the provider URL the browser must visit.
	LoginRedirectURL(ctx context.Context, successURL string) (string, error)

	// VerifyResponse completes the handshake and fetches the user's profile.
	VerifyResponse(ctx context.Context, params map[string]string) (*Profile, error)

	// SetPermission selects the scope requested by the next redirect.
	SetPermission(p Permission) error

	// SetAccessGrant installs a previously obtained credential.
	SetAccessGrant(c *Credential)

	// AccessGrant returns the installed credential, or nil.
	AccessGrant() *Credential

	// UserProfile fetches the profile of the authenticated user.
	UserProfile(ctx context.Context) (*Profile, error)

	// ContactList fetches the user's contacts or connections.
	ContactList(ctx context.Context) ([]Contact, error)

	// UpdateStatus posts a status message on the user's behalf.
	UpdateStatus(ctx context.Context, msg string) error

	// UploadImage posts an image with a caption on the user's behalf.
	UploadImage(ctx context.Context, message, fileName string, r io.Reader) (*Response, error)

	// API performs an arbitrary authenticated call.
	API(ctx context.Context, rawURL string, opts ...FeedOption) (*Response, error)

	// Logout clears the credential and the redirect state.
	Logout()
}

// adapter holds what Google and LinkedIn share: the strategy they drive,
// their scope policy and the options used to create them.
type adapter struct {
	config   OAuthConfig
	strategy Strategy
	scopes   ScopeSet
	cfg      *strategyConfig
}

func newAdapter(config OAuthConfig, strategy Strategy, scopes ScopeSet, opts []Option) (*adapter, error) {
	a := &adapter{
		config:   config,
		strategy: strategy,
		scopes:   scopes,
		cfg:      newStrategyConfig(opts...),
	}
	// Without custom permissions the permission stays unset: the default
	// scopes are requested and credentials are minted as PermissionAll.
	var p Permission
	if config.CustomPermissions != "" {
		p = PermissionCustom
	}
	if err := a.SetPermission(p); err != nil {
		return nil, err
	}
	return a, nil
}

func (a *adapter) ID() string { return a.config.ID }

func (a *adapter) SetPermission(p Permission) error {
	scope, err := ResolveScope(p, a.config, a.scopes)
	if err != nil {
		return err
	}
	a.strategy.SetPermission(p)
	a.strategy.SetScope(scope)
	a.cfg.logger.Debug("permission set", "provider", a.config.ID, "permission", p, "scope", scope)
	return nil
}

func (a *adapter) LoginRedirectURL(ctx context.Context, successURL string) (string, error) {
	return a.strategy.LoginRedirectURL(ctx, successURL)
}

func (a *adapter) SetAccessGrant(c *Credential) { a.strategy.SetAccessGrant(c) }

func (a *adapter) AccessGrant() *Credential { return a.strategy.AccessGrant() }

func (a *adapter) API(ctx context.Context, rawURL string, opts ...FeedOption) (*Response, error) {
	return a.strategy.ExecuteFeed(ctx, rawURL, opts...)
}

func (a *adapter) Logout() { a.strategy.Logout() }

func (a *adapter) unsupported(op string) error {
	return newAuthError(ErrKindUnsupported, a.config.ID, "", op+" is not supported by "+a.config.ID, nil)
}

// fetch runs an authenticated GET and returns the body of a 200 response.
// Any other status is reported as ErrPlatform.
func (a *adapter) fetch(ctx context.Context, what, rawURL string) ([]byte, error) {
	resp, err := a.strategy.ExecuteFeed(ctx, rawURL)
	if err != nil {
		return nil, err
	}
	defer resp.Close()

	body, err := readBody(resp.Body)
	if err != nil {
		return nil, newAuthError(ErrKindNetwork, a.config.ID, "", "read "+what+" response: "+err.Error(), err)
	}
	if resp.StatusCode != 200 {
		return nil, newAuthError(ErrKindPlatform, a.config.ID, fmt.Sprint(resp.StatusCode),
			fmt.Sprintf("failed to retrieve %s: HTTP %d, GET %s: %s", what, resp.StatusCode, maskURL(rawURL), bodyPreview(body)), nil)
	}
	return body, nil
}
