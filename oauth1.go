package socialconnect

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
)

// OAuth1 is the three-legged Strategy: request token, user authorization,
// access-token exchange, with every request signed.
type OAuth1 struct {
	flow
	signer signer

	requestToken  string
	requestSecret string
}

var _ Strategy = (*OAuth1)(nil)

// NewOAuth1 creates a three-legged strategy. endpoints must define the
// request-token, authorization and access-token URLs. Requests are signed
// with HMAC-SHA1 unless WithSignatureMethod or WithRSAPrivateKey says otherwise.
func NewOAuth1(config OAuthConfig, endpoints Endpoints, opts ...Option) (*OAuth1, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if err := endpoints.require(config.ID, EndpointRequestToken, EndpointAuthorization, EndpointAccessToken); err != nil {
		return nil, err
	}
	f := newFlow(config, endpoints, opts)
	sg, err := newSigner(config.ID, f.cfg, config.ConsumerSecret)
	if err != nil {
		return nil, err
	}
	return &OAuth1{flow: f, signer: sg}, nil
}

// LoginRedirectURL obtains an unauthorized request token and returns the
// authorization URL carrying it. The scope, when set, is sent verbatim as a
// query parameter of the request-token call.
func (s *OAuth1) LoginRedirectURL(ctx context.Context, successURL string) (string, error) {
	s.providerState = true
	s.successURL = successURL
	s.requestToken, s.requestSecret = "", ""

	reqURL := s.endpoints.RequestTokenURL
	if s.scope != "" {
		reqURL = appendQuery(reqURL, "scope="+s.scope)
	}

	vals, err := s.exchange(ctx, reqURL, "", "", map[string]string{"oauth_callback": successURL})
	if err != nil {
		return "", err
	}
	token, secret := vals.Get("oauth_token"), vals.Get("oauth_token_secret")
	if token == "" || secret == "" {
		return "", newAuthError(ErrKindProtocol, s.config.ID, "", "request token not found in response from "+maskURL(reqURL), nil)
	}
	if vals.Get("oauth_callback_confirmed") == "false" {
		s.cfg.logger.Warn("provider did not confirm the callback", "provider", s.config.ID)
	}

	s.requestToken, s.requestSecret = token, secret

	u := appendQuery(s.endpoints.AuthorizationURL,
		"oauth_token="+url.QueryEscape(token)+"&oauth_callback="+url.QueryEscape(successURL))
	s.cfg.logger.Info("login redirect issued", "provider", s.config.ID, "url", maskURL(u))
	return u, nil
}

// VerifyResponse exchanges the authorized request token (and oauth_verifier,
// when present) for an access token and token secret. The exchange is always
// a signed POST; method is ignored.
func (s *OAuth1) VerifyResponse(ctx context.Context, params map[string]string, _ string) (*Credential, error) {
	s.cfg.logger.Debug("verifying authorization response", "provider", s.config.ID)
	if err := s.checkCallback(params, "oauth_problem", "denied", "error_reason", "error"); err != nil {
		return nil, err
	}
	if err := ValidateState(s.requestToken, params["oauth_token"]); err != nil {
		return nil, newAuthError(ErrKindInvalidCode, s.config.ID, "", "oauth_token does not match the issued request token", err)
	}

	extra := map[string]string{}
	if v := params["oauth_verifier"]; v != "" {
		extra["oauth_verifier"] = v
	}
	vals, err := s.exchange(ctx, s.endpoints.AccessTokenURL, s.requestToken, s.requestSecret, extra)
	if err != nil {
		return nil, err
	}

	key, secret := vals.Get("oauth_token"), vals.Get("oauth_token_secret")
	if key == "" {
		return nil, newAuthError(ErrKindProtocol, s.config.ID, "", "access token not found in response from "+maskURL(s.endpoints.AccessTokenURL), nil)
	}

	attrs := make(map[string]any, len(vals))
	for k := range vals {
		if k == "oauth_token" || k == "oauth_token_secret" {
			continue
		}
		attrs[k] = vals.Get(k)
	}
	if v := vals.Get("oauth_expires_in"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			attrs[AttrExpires] = n
		}
	}

	s.grant = NewCredential(key, secret, attrs, s.mintedPermission(), s.config.ID)
	s.requestToken, s.requestSecret = "", ""

	s.cfg.logger.Info("access token obtained", "provider", s.config.ID, "permission", s.grant.Permission())
	return s.grant, nil
}

// exchange performs a signed POST to a token endpoint and parses the
// url-encoded reply.
func (s *OAuth1) exchange(ctx context.Context, endpoint, token, tokenSecret string, extra map[string]string) (url.Values, error) {
	auth, err := s.authorization(http.MethodPost, endpoint, nil, token, tokenSecret, extra)
	if err != nil {
		return nil, err
	}
	body, err := sendForBody(ctx, s.cfg.httpClient, s.cfg.logger, outgoing{
		method:      http.MethodPost,
		url:         endpoint,
		contentType: "application/x-www-form-urlencoded",
		headers:     map[string]string{"Authorization": auth},
	})
	if err != nil {
		return nil, withProvider(err, s.config.ID)
	}

	text := strings.TrimSpace(string(body))
	if text == "" {
		return nil, newAuthError(ErrKindProtocol, s.config.ID, "", "empty token response from "+maskURL(endpoint), nil)
	}
	vals, err := url.ParseQuery(text)
	if err != nil {
		return nil, newAuthError(ErrKindProtocol, s.config.ID, "",
			fmt.Sprintf("unexpected auth response from %s: %s", maskURL(endpoint), bodyPreview(body)), err)
	}
	return vals, nil
}

// ExecuteFeed signs and sends an authenticated call. GET carries params in
// the query string. POST and PUT without a body send params as a signed form
// body; with a body (XML, JSON) the body goes verbatim and params move to the
// query string.
func (s *OAuth1) ExecuteFeed(ctx context.Context, rawURL string, opts ...FeedOption) (*Response, error) {
	if err := s.requireGrant(); err != nil {
		return nil, err
	}
	fc := newFeedConfig(http.MethodGet, opts...)

	o := outgoing{method: fc.method, url: rawURL}
	var form url.Values
	switch {
	case (fc.method == http.MethodPost || fc.method == http.MethodPut) && fc.body == "":
		form = make(url.Values, len(fc.params))
		for k, v := range fc.params {
			form.Set(k, v)
		}
		o.body = strings.NewReader(form.Encode())
		o.contentType = "application/x-www-form-urlencoded"
	case fc.method == http.MethodPost || fc.method == http.MethodPut:
		o.url = appendQuery(rawURL, encodeParams(fc.params))
		o.body = strings.NewReader(fc.body)
	default:
		o.url = appendQuery(rawURL, encodeParams(fc.params))
	}

	return s.sendSigned(ctx, o, form, fc.headers)
}

// UploadImage signs and sends a multipart call. Multipart fields are not part
// of the signature; only the URL's query parameters are.
func (s *OAuth1) UploadImage(ctx context.Context, rawURL string, file Upload, opts ...FeedOption) (*Response, error) {
	if err := s.requireGrant(); err != nil {
		return nil, err
	}
	fc := newFeedConfig(http.MethodPost, opts...)

	body, contentType, err := buildMultipart(fc.params, file)
	if err != nil {
		return nil, newAuthError(ErrKindNetwork, s.config.ID, "", "build multipart body: "+err.Error(), err)
	}
	return s.sendSigned(ctx, outgoing{
		method:      fc.method,
		url:         rawURL,
		body:        io.Reader(body),
		contentType: contentType,
	}, nil, fc.headers)
}

func (s *OAuth1) sendSigned(ctx context.Context, o outgoing, form url.Values, headers map[string]string) (*Response, error) {
	auth, err := s.authorization(o.method, o.url, form, s.grant.Key(), s.grant.Secret(), nil)
	if err != nil {
		return nil, err
	}
	o.headers = make(map[string]string, len(headers)+1)
	for k, v := range headers {
		o.headers[k] = v
	}
	o.headers["Authorization"] = auth

	resp, err := send(ctx, s.cfg.httpClient, s.cfg.logger, o)
	if err != nil {
		return nil, withProvider(err, s.config.ID)
	}
	return resp, nil
}

// Logout clears the credential, any pending request token and the redirect state.
func (s *OAuth1) Logout() {
	s.reset()
	s.requestToken, s.requestSecret = "", ""
	s.cfg.logger.Debug("logged out", "provider", s.config.ID)
}
