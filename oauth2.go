package socialconnect

import (
	"context"
	"net/http"
	"net/url"
	"strings"
)

// DefaultAccessTokenParam is the parameter OAuth2 feed calls carry the bearer token in.
const DefaultAccessTokenParam = "access_token"

// OAuth2 is the authorization-code Strategy: redirect, code exchange, and a
// bearer token attached to every later call.
type OAuth2 struct {
	flow
}

var _ Strategy = (*OAuth2)(nil)

// NewOAuth2 creates an authorization-code strategy.
// config must carry a consumer key and secret; endpoints must define the
// authorization and access-token URLs.
func NewOAuth2(config OAuthConfig, endpoints Endpoints, opts ...Option) (*OAuth2, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if err := endpoints.require(config.ID, EndpointAuthorization, EndpointAccessToken); err != nil {
		return nil, err
	}
	return &OAuth2{flow: newFlow(config, endpoints, opts)}, nil
}

// SetAccessTokenParameterName changes the parameter carrying the bearer token
// on feed calls. Empty names are ignored.
func (s *OAuth2) SetAccessTokenParameterName(name string) {
	if name != "" {
		s.cfg.accessTokenParam = name
	}
}

// LoginRedirectURL builds the authorization URL with client_id,
// response_type=code, the escaped redirect_uri and, when set, the scope.
// The scope is sent verbatim since its separator is provider specific.
func (s *OAuth2) LoginRedirectURL(_ context.Context, successURL string) (string, error) {
	s.providerState = true
	s.successURL = successURL

	var b strings.Builder
	b.WriteString("client_id=")
	b.WriteString(url.QueryEscape(s.config.ConsumerKey))
	b.WriteString("&response_type=code")
	b.WriteString("&redirect_uri=")
	b.WriteString(url.QueryEscape(successURL))
	if s.scope != "" {
		b.WriteString("&scope=")
		b.WriteString(s.scope)
	}
	u := appendQuery(s.endpoints.AuthorizationURL, b.String())

	s.cfg.logger.Info("login redirect issued", "provider", s.config.ID, "url", maskURL(u))
	return u, nil
}

// VerifyResponse exchanges the callback's code for a bearer credential.
// With method POST the exchange parameters travel as a form body to the bare
// token endpoint; otherwise the full URL is fetched with GET.
func (s *OAuth2) VerifyResponse(ctx context.Context, params map[string]string, method string) (*Credential, error) {
	s.cfg.logger.Debug("verifying authorization response", "provider", s.config.ID)
	if err := s.checkCallback(params, "error_reason", "error"); err != nil {
		return nil, err
	}

	code := params["code"]
	if code == "" {
		return nil, newAuthError(ErrKindInvalidCode, s.config.ID, "", "verification code is missing from the callback", nil)
	}

	var q strings.Builder
	q.WriteString("client_id=")
	q.WriteString(url.QueryEscape(s.config.ConsumerKey))
	q.WriteString("&redirect_uri=")
	q.WriteString(url.QueryEscape(s.successURL))
	q.WriteString("&client_secret=")
	q.WriteString(url.QueryEscape(s.config.ConsumerSecret))
	q.WriteString("&code=")
	q.WriteString(url.QueryEscape(code))
	q.WriteString("&grant_type=authorization_code")
	tokenURL := appendQuery(s.endpoints.AccessTokenURL, q.String())

	o := outgoing{method: http.MethodGet, url: tokenURL}
	if strings.EqualFold(method, http.MethodPost) {
		o.method = http.MethodPost
		if base, query, found := strings.Cut(tokenURL, "?"); found {
			o.url = base
			o.body = strings.NewReader(query)
			o.contentType = "application/x-www-form-urlencoded"
		}
	}

	body, err := sendForBody(ctx, s.cfg.httpClient, s.cfg.logger, o)
	if err != nil {
		return nil, withProvider(err, s.config.ID)
	}

	tr, err := parseTokenResponse(s.config.ID, maskURL(tokenURL), body)
	if err != nil {
		s.cfg.logger.Warn("token exchange failed", "provider", s.config.ID, "error", err)
		return nil, err
	}

	attrs := tr.attributes
	attrs[AttrExpires] = tr.expires
	s.grant = NewCredential(tr.accessToken, "", attrs, s.mintedPermission(), s.config.ID)

	s.cfg.logger.Info("access token obtained",
		"provider", s.config.ID,
		"permission", s.grant.Permission(),
		"expires", tr.expires,
	)
	return s.grant, nil
}

// ExecuteFeed calls rawURL with the bearer token attached. GET (and any
// method other than POST/PUT) carries the token and params in the query
// string; POST and PUT append them to the body after any caller body.
func (s *OAuth2) ExecuteFeed(ctx context.Context, rawURL string, opts ...FeedOption) (*Response, error) {
	if err := s.requireGrant(); err != nil {
		return nil, err
	}
	fc := newFeedConfig(http.MethodGet, opts...)

	attach := s.cfg.accessTokenParam + "=" + url.QueryEscape(s.grant.Key())
	if extra := encodeParams(fc.params); extra != "" {
		attach += "&" + extra
	}

	o := outgoing{method: fc.method, url: rawURL, headers: fc.headers}
	switch fc.method {
	case http.MethodPost, http.MethodPut:
		body := attach
		if fc.body != "" {
			body = fc.body + "&" + attach
		}
		o.body = strings.NewReader(body)
		o.contentType = "application/x-www-form-urlencoded"
	default:
		o.url = appendQuery(rawURL, attach)
	}

	resp, err := send(ctx, s.cfg.httpClient, s.cfg.logger, o)
	if err != nil {
		return nil, withProvider(err, s.config.ID)
	}
	return resp, nil
}

// UploadImage sends a multipart request whose fields are the params plus the
// bearer token, with the file under file.FieldName. The default method is POST.
func (s *OAuth2) UploadImage(ctx context.Context, rawURL string, file Upload, opts ...FeedOption) (*Response, error) {
	if err := s.requireGrant(); err != nil {
		return nil, err
	}
	fc := newFeedConfig(http.MethodPost, opts...)

	fields := make(map[string]string, len(fc.params)+1)
	for k, v := range fc.params {
		fields[k] = v
	}
	fields[s.cfg.accessTokenParam] = s.grant.Key()

	body, contentType, err := buildMultipart(fields, file)
	if err != nil {
		return nil, newAuthError(ErrKindNetwork, s.config.ID, "", "build multipart body: "+err.Error(), err)
	}

	resp, err := send(ctx, s.cfg.httpClient, s.cfg.logger, outgoing{
		method:      fc.method,
		url:         rawURL,
		body:        body,
		contentType: contentType,
		headers:     fc.headers,
	})
	if err != nil {
		return nil, withProvider(err, s.config.ID)
	}
	return resp, nil
}

// Logout clears the credential and requires a fresh redirect before the next verify.
func (s *OAuth2) Logout() {
	s.reset()
	s.cfg.logger.Debug("logged out", "provider", s.config.ID)
}
