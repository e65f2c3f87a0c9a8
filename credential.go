package socialconnect

import (
	"encoding/json"
	"fmt"
	"time"

	"golang.org/x/oauth2"
)

// AttrExpires is the attribute holding the token lifetime in seconds (int),
// or nil when the provider did not report one.
const AttrExpires = "expires"

// Credential is the access grant minted by a strategy at the end of a
// successful token exchange. It is immutable: accessors return copies.
type Credential struct {
	key        string
	secret     string
	attributes map[string]any
	permission Permission
	providerID string
	issuedAt   time.Time
}

// NewCredential builds a Credential. attrs is copied.
// Strategies call it at the end of a token exchange; hosts normally restore
// credentials with json.Unmarshal instead.
func NewCredential(key, secret string, attrs map[string]any, permission Permission, providerID string) *Credential {
	return &Credential{
		key:        key,
		secret:     secret,
		attributes: copyAttributes(attrs),
		permission: permission,
		providerID: providerID,
		issuedAt:   time.Now(),
	}
}

func copyAttributes(attrs map[string]any) map[string]any {
	out := make(map[string]any, len(attrs))
	for k, v := range attrs {
		out[k] = v
	}
	return out
}

// Key returns the bearer token or OAuth1 access token.
func (c *Credential) Key() string { return c.key }

// Secret returns the OAuth1 token secret; empty for bearer credentials.
func (c *Credential) Secret() string { return c.secret }

// Permission returns the permission in force when the credential was minted.
func (c *Credential) Permission() Permission { return c.permission }

// ProviderID returns the id of the configuration that produced the credential.
func (c *Credential) ProviderID() string { return c.providerID }

// IssuedAt returns when the credential was minted.
func (c *Credential) IssuedAt() time.Time { return c.issuedAt }

// Attribute returns a single protocol-specific attribute.
func (c *Credential) Attribute(name string) (any, bool) {
	v, ok := c.attributes[name]
	return v, ok
}

// Attributes returns a copy of all protocol-specific attributes.
func (c *Credential) Attributes() map[string]any {
	return copyAttributes(c.attributes)
}

// ExpiresIn returns the token lifetime in seconds when the provider reported one.
func (c *Credential) ExpiresIn() (int, bool) {
	v, ok := c.attributes[AttrExpires]
	if !ok || v == nil {
		return 0, false
	}
	n, ok := v.(int)
	return n, ok
}

// ExpiresAt returns the absolute expiry, or the zero time when unknown.
func (c *Credential) ExpiresAt() time.Time {
	n, ok := c.ExpiresIn()
	if !ok || n <= 0 || c.issuedAt.IsZero() {
		return time.Time{}
	}
	return c.issuedAt.Add(time.Duration(n) * time.Second)
}

// IsExpired reports whether a known expiry has passed. Credentials without an
// expiry never report expired.
func (c *Credential) IsExpired() bool {
	return c.isExpiredAt(time.Now())
}

func (c *Credential) isExpiredAt(now time.Time) bool {
	exp := c.ExpiresAt()
	return !exp.IsZero() && !exp.After(now)
}

// OAuth2Token converts a bearer credential to an *oauth2.Token so it can be
// used with oauth2.StaticTokenSource or an oauth2-aware client.
func (c *Credential) OAuth2Token() *oauth2.Token {
	tok := &oauth2.Token{
		AccessToken: c.key,
		TokenType:   "Bearer",
		Expiry:      c.ExpiresAt(),
	}
	if tt, ok := c.attributes["token_type"].(string); ok && tt != "" {
		tok.TokenType = tt
	}
	if rt, ok := c.attributes["refresh_token"].(string); ok {
		tok.RefreshToken = rt
	}
	return tok.WithExtra(c.Attributes())
}

// maskToken masks a token string for safe display.
// If s is empty, it returns an empty string.
// If s has 4 or more characters, it returns the first 4 followed by "****".
// If s has fewer than 4 characters, it returns "****" to avoid leaking short values.
func maskToken(s string) string {
	if s == "" {
		return ""
	}
	if len(s) >= 4 {
		return s[:4] + "****"
	}
	return "****"
}

// String returns a sanitized representation with key and secret masked.
func (c *Credential) String() string {
	expires := "unknown"
	if n, ok := c.ExpiresIn(); ok {
		expires = fmt.Sprintf("%ds", n)
	}
	return fmt.Sprintf("Credential{Key:%q, Secret:%q, Permission:%s, ProviderID:%q, Expires:%s}",
		maskToken(c.key),
		maskToken(c.secret),
		c.permission,
		c.providerID,
		expires,
	)
}

type credentialJSON struct {
	Key        string         `json:"key"`
	Secret     string         `json:"secret,omitempty"`
	Attributes map[string]any `json:"attributes,omitempty"`
	Permission Permission     `json:"permission,omitempty"`
	ProviderID string         `json:"provider_id"`
	IssuedAt   time.Time      `json:"issued_at"`
}

// MarshalJSON lets hosts persist a credential between requests.
func (c *Credential) MarshalJSON() ([]byte, error) {
	return json.Marshal(credentialJSON{
		Key:        c.key,
		Secret:     c.secret,
		Attributes: c.attributes,
		Permission: c.permission,
		ProviderID: c.providerID,
		IssuedAt:   c.issuedAt,
	})
}

// UnmarshalJSON restores a credential written by MarshalJSON.
// The expires attribute is normalized back to int.
func (c *Credential) UnmarshalJSON(data []byte) error {
	var raw credentialJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	attrs := copyAttributes(raw.Attributes)
	if v, ok := attrs[AttrExpires]; ok && v != nil {
		n, err := toInt(v)
		if err != nil {
			return fmt.Errorf("credential: invalid %s attribute: %w", AttrExpires, err)
		}
		attrs[AttrExpires] = n
	}
	*c = Credential{
		key:        raw.Key,
		secret:     raw.Secret,
		attributes: attrs,
		permission: raw.Permission,
		providerID: raw.ProviderID,
		issuedAt:   raw.IssuedAt,
	}
	return nil
}
