package socialconnect

import (
	"context"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/tidwall/gjson"
	"golang.org/x/oauth2/google"
)

// Google API endpoint constants.
const (
	googleID         = "google"
	googleProfileURL = "https://www.googleapis.com/oauth2/v1/userinfo"
)

// googleScopes: the full list is a single "+"-joined entry so the provider
// receives it space separated.
var googleScopes = ScopeSet{
	AuthenticateOnly: []string{"email", "user_birthday", "user_location"},
	Default:          []string{"https://www.googleapis.com/auth/userinfo.email+https://www.googleapis.com/auth/userinfo.profile"},
	Separator:        ",",
}

// googleProvider implements Provider for Google sign-in over OAuth2.
type googleProvider struct {
	*adapter
	oauth      *OAuth2
	profileURL string // overridable for testing; defaults to googleProfileURL
}

var _ Provider = (*googleProvider)(nil)

// NewGoogle creates a Google provider. config.ID defaults to "google".
func NewGoogle(config OAuthConfig, opts ...Option) (Provider, error) {
	return newGoogle(config, EndpointsFromOAuth2(google.Endpoint), googleProfileURL, opts...)
}

func newGoogle(config OAuthConfig, endpoints Endpoints, profileURL string, opts ...Option) (*googleProvider, error) {
	if config.ID == "" {
		config.ID = googleID
	}
	oauth, err := NewOAuth2(config, endpoints, opts...)
	if err != nil {
		return nil, err
	}
	a, err := newAdapter(config, oauth, googleScopes, opts)
	if err != nil {
		return nil, err
	}
	return &googleProvider{adapter: a, oauth: oauth, profileURL: profileURL}, nil
}

// VerifyResponse exchanges the code with a POST to the token endpoint and
// fetches the user's profile.
func (g *googleProvider) VerifyResponse(ctx context.Context, params map[string]string) (*Profile, error) {
	if _, err := g.oauth.VerifyResponse(ctx, params, http.MethodPost); err != nil {
		return nil, err
	}
	return g.UserProfile(ctx)
}

// UserProfile fetches the userinfo document. Claims of the id_token, when
// the token response carried one, fill the id and email if userinfo lacks them.
func (g *googleProvider) UserProfile(ctx context.Context) (*Profile, error) {
	body, err := g.fetch(ctx, "profile", g.profileURL)
	if err != nil {
		return nil, err
	}
	if !gjson.ValidBytes(body) {
		return nil, newAuthError(ErrKindPlatform, g.config.ID, "", "profile response is not JSON: "+bodyPreview(body), nil)
	}

	doc := gjson.ParseBytes(body)
	if msg := doc.Get("error.message"); msg.Exists() {
		return nil, newAuthError(ErrKindPlatform, g.config.ID, doc.Get("error.code").String(), msg.String(), nil)
	}

	p := &Profile{
		ValidatedID:     doc.Get("id").String(),
		FirstName:       doc.Get("given_name").String(),
		LastName:        doc.Get("family_name").String(),
		FullName:        doc.Get("name").String(),
		Email:           doc.Get("email").String(),
		Gender:          parseGender(doc.Get("gender").String()),
		Location:        doc.Get("location.name").String(),
		ProfileImageURL: doc.Get("picture").String(),
		DOB:             parseGoogleBirthday(doc.Get("birthday").String()),
		ProviderID:      g.config.ID,
	}
	if raw, ok := doc.Value().(map[string]any); ok {
		p.Raw = raw
	}
	if locale := doc.Get("locale").String(); locale != "" {
		lang, country, _ := strings.Cut(strings.ReplaceAll(locale, "_", "-"), "-")
		p.Language, p.Country = lang, country
	}

	g.fillFromIDToken(p)
	g.cfg.logger.Debug("profile fetched", "provider", g.config.ID, "id", p.ValidatedID)
	return p, nil
}

// fillFromIDToken reads sub and email from the id_token without verifying it;
// the token came straight from the token endpoint over TLS.
func (g *googleProvider) fillFromIDToken(p *Profile) {
	grant := g.AccessGrant()
	if grant == nil {
		return
	}
	raw, _ := grant.Attribute("id_token")
	idToken, ok := raw.(string)
	if !ok || idToken == "" {
		return
	}

	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(idToken, claims); err != nil {
		g.cfg.logger.Warn("ignoring malformed id_token", "provider", g.config.ID, "error", err)
		return
	}
	if p.ValidatedID == "" {
		if sub, err := claims.GetSubject(); err == nil {
			p.ValidatedID = sub
		}
	}
	if p.Email == "" {
		if email, ok := claims["email"].(string); ok {
			p.Email = email
		}
	}
}

// parseGoogleBirthday accepts YYYY-MM-DD (year 0000 when hidden) and MM-DD-YYYY.
func parseGoogleBirthday(s string) BirthDate {
	parts := strings.Split(s, "-")
	if len(parts) != 3 {
		return BirthDate{}
	}
	n := make([]int, 3)
	for i, part := range parts {
		v, err := strconv.Atoi(part)
		if err != nil {
			return BirthDate{}
		}
		n[i] = v
	}
	if len(parts[0]) == 4 {
		return BirthDate{Year: n[0], Month: n[1], Day: n[2]}
	}
	return BirthDate{Month: n[0], Day: n[1], Year: n[2]}
}

// ContactList is not supported by Google.
func (g *googleProvider) ContactList(context.Context) ([]Contact, error) {
	return nil, g.unsupported("contact list")
}

// UpdateStatus is not supported by Google.
func (g *googleProvider) UpdateStatus(context.Context, string) error {
	return g.unsupported("status update")
}

// UploadImage is not supported by Google.
func (g *googleProvider) UploadImage(context.Context, string, string, io.Reader) (*Response, error) {
	return nil, g.unsupported("image upload")
}
