package socialconnect

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"strings"
	"unicode/utf8"
)

// LinkedIn API endpoint constants.
const (
	linkedInID          = "linkedin"
	linkedInOAuthBase   = "https://api.linkedin.com/uas/oauth"
	linkedInDefaultBase = "https://api.linkedin.com/v1"

	linkedInProfilePath     = "/people/~:(id,email-address,first-name,last-name,languages,date-of-birth,picture-url,location:(name))"
	linkedInConnectionsPath = "/people/~/connections:(id,first-name,last-name,public-profile-url)"
	linkedInSharesPath      = "/people/~/shares"

	// linkedInStatusLimit is the longest share comment LinkedIn accepts.
	linkedInStatusLimit = 700
)

var linkedInScopes = ScopeSet{Separator: "+"}

// LinkedInEndpoints returns the OAuth1 endpoints of the LinkedIn API.
func LinkedInEndpoints() Endpoints {
	return Endpoints{
		RequestTokenURL:  linkedInOAuthBase + "/requestToken",
		AuthorizationURL: linkedInOAuthBase + "/authenticate",
		AccessTokenURL:   linkedInOAuthBase + "/accessToken",
	}
}

// linkedInProvider implements Provider for LinkedIn over signed OAuth1.
type linkedInProvider struct {
	*adapter
	oauth   *OAuth1
	apiBase string // overridable for testing; defaults to linkedInDefaultBase
}

var _ Provider = (*linkedInProvider)(nil)

// NewLinkedIn creates a LinkedIn provider. config.ID defaults to "linkedin".
func NewLinkedIn(config OAuthConfig, opts ...Option) (Provider, error) {
	return newLinkedIn(config, LinkedInEndpoints(), linkedInDefaultBase, opts...)
}

func newLinkedIn(config OAuthConfig, endpoints Endpoints, apiBase string, opts ...Option) (*linkedInProvider, error) {
	if config.ID == "" {
		config.ID = linkedInID
	}
	oauth, err := NewOAuth1(config, endpoints, opts...)
	if err != nil {
		return nil, err
	}
	a, err := newAdapter(config, oauth, linkedInScopes, opts)
	if err != nil {
		return nil, err
	}
	return &linkedInProvider{adapter: a, oauth: oauth, apiBase: strings.TrimRight(apiBase, "/")}, nil
}

// VerifyResponse exchanges the authorized request token and fetches the profile.
func (l *linkedInProvider) VerifyResponse(ctx context.Context, params map[string]string) (*Profile, error) {
	if _, err := l.oauth.VerifyResponse(ctx, params, ""); err != nil {
		return nil, err
	}
	return l.UserProfile(ctx)
}

// linkedInPerson is the XML profile document.
type linkedInPerson struct {
	XMLName    xml.Name `xml:"person"`
	ID         string   `xml:"id"`
	Email      string   `xml:"email-address"`
	FirstName  string   `xml:"first-name"`
	LastName   string   `xml:"last-name"`
	PictureURL string   `xml:"picture-url"`
	ProfileURL string   `xml:"public-profile-url"`
	Location   string   `xml:"location>name"`
	Languages  []string `xml:"languages>language>language>name"`
	DOB        struct {
		Year  int `xml:"year"`
		Month int `xml:"month"`
		Day   int `xml:"day"`
	} `xml:"date-of-birth"`
}

type linkedInConnections struct {
	XMLName xml.Name         `xml:"connections"`
	Total   int              `xml:"total,attr"`
	People  []linkedInPerson `xml:"person"`
}

type linkedInShare struct {
	XMLName    xml.Name `xml:"share"`
	Comment    string   `xml:"comment"`
	Visibility struct {
		Code string `xml:"code"`
	} `xml:"visibility"`
}

// UserProfile fetches the authenticated member's profile.
func (l *linkedInProvider) UserProfile(ctx context.Context) (*Profile, error) {
	body, err := l.fetch(ctx, "profile", l.apiBase+linkedInProfilePath)
	if err != nil {
		return nil, err
	}

	var person linkedInPerson
	if err := xml.Unmarshal(body, &person); err != nil {
		return nil, newAuthError(ErrKindPlatform, l.config.ID, "", "failed to parse profile: "+err.Error(), err)
	}

	p := &Profile{
		ValidatedID:     person.ID,
		FirstName:       person.FirstName,
		LastName:        person.LastName,
		FullName:        strings.TrimSpace(person.FirstName + " " + person.LastName),
		Email:           person.Email,
		Location:        person.Location,
		ProfileImageURL: person.PictureURL,
		DOB:             BirthDate{Year: person.DOB.Year, Month: person.DOB.Month, Day: person.DOB.Day},
		ProviderID:      l.config.ID,
		Raw: map[string]any{
			"id":            person.ID,
			"email-address": person.Email,
			"first-name":    person.FirstName,
			"last-name":     person.LastName,
			"picture-url":   person.PictureURL,
			"location":      person.Location,
			"languages":     person.Languages,
		},
	}
	if len(person.Languages) > 0 {
		p.Language = person.Languages[0]
	}

	l.cfg.logger.Debug("profile fetched", "provider", l.config.ID, "id", p.ValidatedID)
	return p, nil
}

// ContactList fetches the member's first-degree connections.
func (l *linkedInProvider) ContactList(ctx context.Context) ([]Contact, error) {
	body, err := l.fetch(ctx, "connections", l.apiBase+linkedInConnectionsPath)
	if err != nil {
		return nil, err
	}

	var conns linkedInConnections
	if err := xml.Unmarshal(body, &conns); err != nil {
		return nil, newAuthError(ErrKindPlatform, l.config.ID, "", "failed to parse connections: "+err.Error(), err)
	}

	contacts := make([]Contact, 0, len(conns.People))
	for _, p := range conns.People {
		// LinkedIn reports hidden members with the id "private".
		if p.ID == "" || p.ID == "private" {
			continue
		}
		contacts = append(contacts, Contact{
			ID:         p.ID,
			FirstName:  p.FirstName,
			LastName:   p.LastName,
			ProfileURL: p.ProfileURL,
		})
	}
	l.cfg.logger.Debug("connections fetched", "provider", l.config.ID, "count", len(contacts))
	return contacts, nil
}

// UpdateStatus shares msg with visibility "anyone". msg must be non-blank and
// at most 700 characters.
func (l *linkedInProvider) UpdateStatus(ctx context.Context, msg string) error {
	if strings.TrimSpace(msg) == "" {
		return newAuthError(ErrKindInvalidConfig, l.config.ID, "", "status message must not be empty", nil)
	}
	if n := utf8.RuneCountInString(msg); n > linkedInStatusLimit {
		return newAuthError(ErrKindInvalidConfig, l.config.ID, "",
			fmt.Sprintf("status message is %d characters; the limit is %d", n, linkedInStatusLimit), nil)
	}

	share := linkedInShare{Comment: msg}
	share.Visibility.Code = "anyone"
	out, err := xml.Marshal(share)
	if err != nil {
		return newAuthError(ErrKindPlatform, l.config.ID, "", "encode share: "+err.Error(), err)
	}

	rawURL := l.apiBase + linkedInSharesPath
	resp, err := l.API(ctx, rawURL,
		WithMethod(http.MethodPost),
		WithBody(xml.Header+string(out)),
		WithHeaders(map[string]string{"Content-Type": "text/xml;charset=UTF-8"}),
	)
	if err != nil {
		return err
	}
	defer resp.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		text, _ := resp.Text()
		return newAuthError(ErrKindPlatform, l.config.ID, fmt.Sprint(resp.StatusCode),
			fmt.Sprintf("failed to update status: HTTP %d, POST %s: %s", resp.StatusCode, maskURL(rawURL), bodyPreview([]byte(text))), nil)
	}
	l.cfg.logger.Info("status updated", "provider", l.config.ID)
	return nil
}

// UploadImage is not supported by LinkedIn.
func (l *linkedInProvider) UploadImage(context.Context, string, string, io.Reader) (*Response, error) {
	return nil, l.unsupported("image upload")
}
