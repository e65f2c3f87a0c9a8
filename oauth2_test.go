package socialconnect

import (
	"context"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
)

const testSuccessURL = "https://app.example/callback?next=/home&x=1"

func testOAuthConfig() OAuthConfig {
	return OAuthConfig{ConsumerKey: "client-id", ConsumerSecret: "client-secret", ID: "test"}
}

// newTestOAuth2 returns a strategy whose endpoints point at srv.
func newTestOAuth2(t *testing.T, srv *httptest.Server, opts ...Option) *OAuth2 {
	t.Helper()
	opts = append([]Option{WithHTTPClient(srv.Client())}, opts...)
	s, err := NewOAuth2(testOAuthConfig(), Endpoints{
		AuthorizationURL: srv.URL + "/authorize",
		AccessTokenURL:   srv.URL + "/token",
	}, opts...)
	require.NoError(t, err)
	return s
}

// tokenServer answers /token with body and counts the calls.
func tokenServer(t *testing.T, body string, calls *int32) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(calls, 1)
		_, _ = fmt.Fprint(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

// --- constructor ---

func TestNewOAuth2_InvalidConfig(t *testing.T) {
	good := Endpoints{AuthorizationURL: "https://a.example/auth", AccessTokenURL: "https://a.example/token"}

	_, err := NewOAuth2(OAuthConfig{ConsumerSecret: "s"}, good)
	require.ErrorIs(t, err, ErrInvalidConfig)

	_, err = NewOAuth2(testOAuthConfig(), Endpoints{AuthorizationURL: "https://a.example/auth"})
	require.ErrorIs(t, err, ErrInvalidConfig)

	_, err = NewOAuth2(testOAuthConfig(), Endpoints{AccessTokenURL: "https://a.example/token"})
	require.ErrorIs(t, err, ErrInvalidConfig)
}

// --- LoginRedirectURL ---

func TestOAuth2LoginRedirectURL(t *testing.T) {
	tests := []struct {
		name  string
		base  string
		scope string
	}{
		{"no scope", "https://p.example/authorize", ""},
		{"with scope", "https://p.example/authorize", "email,profile"},
		{"base already has query", "https://p.example/authorize?display=popup", "email"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := NewOAuth2(testOAuthConfig(), Endpoints{AuthorizationURL: tt.base, AccessTokenURL: "https://p.example/token"})
			require.NoError(t, err)
			s.SetScope(tt.scope)

			got, err := s.LoginRedirectURL(context.Background(), testSuccessURL)
			require.NoError(t, err)
			require.True(t, strings.HasPrefix(got, tt.base))

			u, err := url.Parse(got)
			require.NoError(t, err)
			q := u.Query()
			require.Equal(t, []string{"client-id"}, q["client_id"])
			require.Equal(t, []string{"code"}, q["response_type"])
			require.Equal(t, []string{testSuccessURL}, q["redirect_uri"], "redirect_uri must decode back to the success URL")
			if tt.scope == "" {
				require.NotContains(t, q, "scope")
			} else {
				require.Equal(t, []string{tt.scope}, q["scope"])
			}
		})
	}
}

func TestOAuth2LoginRedirectURL_ScopeVerbatim(t *testing.T) {
	s, err := NewOAuth2(testOAuthConfig(), Endpoints{AuthorizationURL: "https://p.example/auth", AccessTokenURL: "https://p.example/token"})
	require.NoError(t, err)
	s.SetScope("a+b")

	got, err := s.LoginRedirectURL(context.Background(), "https://app.example/cb")
	require.NoError(t, err)
	require.True(t, strings.HasSuffix(got, "&scope=a+b"))
}

// --- VerifyResponse ---

func TestOAuth2VerifyResponse_WithoutRedirect(t *testing.T) {
	var calls int32
	srv := tokenServer(t, "access_token=T1", &calls)

	callbacks := []map[string]string{
		nil,
		{},
		{"code": "abc"},
		{"error_reason": "user_denied"},
	}
	for _, cb := range callbacks {
		s := newTestOAuth2(t, srv)
		_, err := s.VerifyResponse(context.Background(), cb, "")
		require.ErrorIs(t, err, ErrProviderState)
	}
	require.Zero(t, atomic.LoadInt32(&calls))
}

func TestOAuth2VerifyResponse_FormEncoded(t *testing.T) {
	var calls int32
	srv := tokenServer(t, "access_token=T1&expires=3600", &calls)
	s := newTestOAuth2(t, srv)

	_, err := s.LoginRedirectURL(context.Background(), testSuccessURL)
	require.NoError(t, err)

	cred, err := s.VerifyResponse(context.Background(), map[string]string{"code": "abc"}, "")
	require.NoError(t, err)
	require.Equal(t, "T1", cred.Key())
	n, ok := cred.ExpiresIn()
	require.True(t, ok)
	require.Equal(t, 3600, n)
	require.Equal(t, "test", cred.ProviderID())
	require.Same(t, cred, s.AccessGrant())
	require.EqualValues(t, 1, atomic.LoadInt32(&calls))
}

func TestOAuth2VerifyResponse_JSON(t *testing.T) {
	var calls int32
	srv := tokenServer(t, `{"access_token":"T2","expires_in":"7200","token_type":"bearer"}`, &calls)
	s := newTestOAuth2(t, srv)

	_, err := s.LoginRedirectURL(context.Background(), testSuccessURL)
	require.NoError(t, err)

	cred, err := s.VerifyResponse(context.Background(), map[string]string{"code": "abc"}, "")
	require.NoError(t, err)
	require.Equal(t, "T2", cred.Key())
	v, _ := cred.Attribute(AttrExpires)
	require.Equal(t, 7200, v)
	v, _ = cred.Attribute("token_type")
	require.Equal(t, "bearer", v)
}

func TestOAuth2VerifyResponse_NumericTokenKeepsText(t *testing.T) {
	var calls int32
	srv := tokenServer(t, `{"access_token":12345678,"expires_in":3600}`, &calls)
	s := newTestOAuth2(t, srv)

	_, err := s.LoginRedirectURL(context.Background(), testSuccessURL)
	require.NoError(t, err)

	cred, err := s.VerifyResponse(context.Background(), map[string]string{"code": "abc"}, "")
	require.NoError(t, err)
	require.Equal(t, "12345678", cred.Key())
	n, ok := cred.ExpiresIn()
	require.True(t, ok)
	require.Equal(t, 3600, n)
}

func TestOAuth2VerifyResponse_NoExpires(t *testing.T) {
	var calls int32
	srv := tokenServer(t, "access_token=T1", &calls)
	s := newTestOAuth2(t, srv)

	_, err := s.LoginRedirectURL(context.Background(), testSuccessURL)
	require.NoError(t, err)

	cred, err := s.VerifyResponse(context.Background(), map[string]string{"code": "abc"}, "")
	require.NoError(t, err)
	v, ok := cred.Attribute(AttrExpires)
	require.True(t, ok)
	require.Nil(t, v)
}

func TestOAuth2VerifyResponse_TokenNotFound(t *testing.T) {
	var calls int32
	srv := tokenServer(t, "foo=bar", &calls)
	s := newTestOAuth2(t, srv)

	_, err := s.LoginRedirectURL(context.Background(), testSuccessURL)
	require.NoError(t, err)

	_, err = s.VerifyResponse(context.Background(), map[string]string{"code": "abc"}, "")
	require.ErrorIs(t, err, ErrProtocol)
	require.Contains(t, err.Error(), "token not found")
	require.Nil(t, s.AccessGrant())
}

func TestOAuth2VerifyResponse_EmptyBody(t *testing.T) {
	var calls int32
	srv := tokenServer(t, "   ", &calls)
	s := newTestOAuth2(t, srv)

	_, err := s.LoginRedirectURL(context.Background(), testSuccessURL)
	require.NoError(t, err)

	_, err = s.VerifyResponse(context.Background(), map[string]string{"code": "abc"}, "")
	require.ErrorIs(t, err, ErrProtocol)
}

func TestOAuth2VerifyResponse_UserDenied(t *testing.T) {
	for _, params := range []map[string]string{
		{"error_reason": "user_denied", "code": "abc"},
		{"error": "access_denied", "error_description": "The user denied the request"},
	} {
		var calls int32
		srv := tokenServer(t, "access_token=T1", &calls)
		s := newTestOAuth2(t, srv)

		_, err := s.LoginRedirectURL(context.Background(), testSuccessURL)
		require.NoError(t, err)

		_, err = s.VerifyResponse(context.Background(), params, "")
		require.ErrorIs(t, err, ErrUserDenied)
		require.Zero(t, atomic.LoadInt32(&calls), "no network call on denial")
	}
}

func TestOAuth2VerifyResponse_MissingCode(t *testing.T) {
	var calls int32
	srv := tokenServer(t, "access_token=T1", &calls)
	s := newTestOAuth2(t, srv)

	_, err := s.LoginRedirectURL(context.Background(), testSuccessURL)
	require.NoError(t, err)

	_, err = s.VerifyResponse(context.Background(), map[string]string{"code": ""}, "")
	require.ErrorIs(t, err, ErrInvalidCode)
	require.Zero(t, atomic.LoadInt32(&calls))
}

func TestOAuth2VerifyResponse_Non2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = fmt.Fprint(w, `{"error":"invalid_grant"}`)
	}))
	defer srv.Close()
	s := newTestOAuth2(t, srv)

	_, err := s.LoginRedirectURL(context.Background(), testSuccessURL)
	require.NoError(t, err)

	_, err = s.VerifyResponse(context.Background(), map[string]string{"code": "abc"}, "")
	require.ErrorIs(t, err, ErrNetwork)
	require.Contains(t, err.Error(), "invalid_grant")
	require.Contains(t, err.Error(), "[test]")
	require.NotContains(t, err.Error(), "client-secret")
}

func TestOAuth2VerifyResponse_ExchangeRequest(t *testing.T) {
	tests := []struct {
		name       string
		method     string
		wantMethod string
	}{
		{"default is GET", "", http.MethodGet},
		{"explicit GET", http.MethodGet, http.MethodGet},
		{"POST sends a form body", http.MethodPost, http.MethodPost},
		{"lowercase post", "post", http.MethodPost},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got url.Values
			var gotMethod, gotQuery string
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				gotMethod = r.Method
				gotQuery = r.URL.RawQuery
				require.Equal(t, "/token", r.URL.Path)
				require.NoError(t, r.ParseForm())
				got = r.Form
				_, _ = fmt.Fprint(w, "access_token=T1")
			}))
			defer srv.Close()
			s := newTestOAuth2(t, srv)

			_, err := s.LoginRedirectURL(context.Background(), testSuccessURL)
			require.NoError(t, err)
			_, err = s.VerifyResponse(context.Background(), map[string]string{"code": "a/b c"}, tt.method)
			require.NoError(t, err)

			require.Equal(t, tt.wantMethod, gotMethod)
			if tt.wantMethod == http.MethodPost {
				require.Empty(t, gotQuery, "POST exchange goes to the bare path")
			}
			require.Equal(t, "client-id", got.Get("client_id"))
			require.Equal(t, "client-secret", got.Get("client_secret"))
			require.Equal(t, testSuccessURL, got.Get("redirect_uri"))
			require.Equal(t, "a/b c", got.Get("code"))
			require.Equal(t, "authorization_code", got.Get("grant_type"))
		})
	}
}

func TestOAuth2VerifyResponse_LatestRedirectWins(t *testing.T) {
	var redirectURI string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		redirectURI = r.URL.Query().Get("redirect_uri")
		_, _ = fmt.Fprint(w, "access_token=T1")
	}))
	defer srv.Close()
	s := newTestOAuth2(t, srv)

	_, err := s.LoginRedirectURL(context.Background(), "https://app.example/first")
	require.NoError(t, err)
	_, err = s.LoginRedirectURL(context.Background(), "https://app.example/second")
	require.NoError(t, err)

	_, err = s.VerifyResponse(context.Background(), map[string]string{"code": "abc"}, "")
	require.NoError(t, err)
	require.Equal(t, "https://app.example/second", redirectURI)
}

func TestOAuth2VerifyResponse_Permission(t *testing.T) {
	tests := []struct {
		name string
		set  *Permission
		want Permission
	}{
		{"default after construction", nil, PermissionDefault},
		{"custom", ptr(PermissionCustom), PermissionCustom},
		{"unset mints all", ptr(Permission("")), PermissionAll},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls int32
			srv := tokenServer(t, "access_token=T1", &calls)
			s := newTestOAuth2(t, srv)
			if tt.set != nil {
				s.SetPermission(*tt.set)
			}

			_, err := s.LoginRedirectURL(context.Background(), testSuccessURL)
			require.NoError(t, err)
			cred, err := s.VerifyResponse(context.Background(), map[string]string{"code": "abc"}, "")
			require.NoError(t, err)
			require.Equal(t, tt.want, cred.Permission())
		})
	}
}

func ptr[T any](v T) *T { return &v }

// --- Logout ---

func TestOAuth2Logout_ResetsRedirectState(t *testing.T) {
	var calls int32
	srv := tokenServer(t, "access_token=T1", &calls)
	s := newTestOAuth2(t, srv)

	_, err := s.LoginRedirectURL(context.Background(), testSuccessURL)
	require.NoError(t, err)
	_, err = s.VerifyResponse(context.Background(), map[string]string{"code": "abc"}, "")
	require.NoError(t, err)

	s.Logout()
	require.Nil(t, s.AccessGrant())

	_, err = s.VerifyResponse(context.Background(), map[string]string{"code": "abc"}, "")
	require.ErrorIs(t, err, ErrProviderState)
	require.EqualValues(t, 1, atomic.LoadInt32(&calls))

	_, err = s.ExecuteFeed(context.Background(), srv.URL+"/me")
	require.ErrorIs(t, err, ErrNotAuthenticated)
}

// --- ExecuteFeed ---

func TestOAuth2ExecuteFeed_NotAuthenticated(t *testing.T) {
	s, err := NewOAuth2(testOAuthConfig(), Endpoints{AuthorizationURL: "https://p.example/a", AccessTokenURL: "https://p.example/t"})
	require.NoError(t, err)

	_, err = s.ExecuteFeed(context.Background(), "https://p.example/me")
	require.ErrorIs(t, err, ErrNotAuthenticated)

	_, err = s.UploadImage(context.Background(), "https://p.example/photos", Upload{FileName: "a.png", File: strings.NewReader("x")})
	require.ErrorIs(t, err, ErrNotAuthenticated)
}

func TestOAuth2ExecuteFeed(t *testing.T) {
	tests := []struct {
		name      string
		opts      []FeedOption
		wantQuery url.Values
		wantBody  string
		method    string
	}{
		{
			name:      "GET carries token in query",
			opts:      nil,
			method:    http.MethodGet,
			wantQuery: url.Values{"access_token": {"T1"}},
		},
		{
			name:      "GET with params",
			opts:      []FeedOption{WithParams(map[string]string{"fields": "id,name"})},
			method:    http.MethodGet,
			wantQuery: url.Values{"access_token": {"T1"}, "fields": {"id,name"}},
		},
		{
			name:     "POST puts token in body",
			opts:     []FeedOption{WithMethod(http.MethodPost), WithParams(map[string]string{"message": "hi there"})},
			method:   http.MethodPost,
			wantBody: "access_token=T1&message=hi+there",
		},
		{
			name:     "PUT appends after caller body",
			opts:     []FeedOption{WithMethod(http.MethodPut), WithBody("a=1")},
			method:   http.MethodPut,
			wantBody: "a=1&access_token=T1",
		},
		{
			name:      "DELETE uses query",
			opts:      []FeedOption{WithMethod(http.MethodDelete)},
			method:    http.MethodDelete,
			wantQuery: url.Values{"access_token": {"T1"}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				require.Equal(t, tt.method, r.Method)
				require.Equal(t, "/me", r.URL.Path)
				require.Equal(t, "v1", r.Header.Get("X-Api"))
				if tt.wantQuery != nil {
					require.Equal(t, tt.wantQuery, r.URL.Query())
				}
				b, _ := io.ReadAll(r.Body)
				require.Equal(t, tt.wantBody, string(b))
				_, _ = fmt.Fprint(w, "feed")
			}))
			defer srv.Close()

			s := newTestOAuth2(t, srv)
			s.SetAccessGrant(NewCredential("T1", "", nil, PermissionAll, "test"))

			opts := append([]FeedOption{WithHeaders(map[string]string{"X-Api": "v1"})}, tt.opts...)
			resp, err := s.ExecuteFeed(context.Background(), srv.URL+"/me", opts...)
			require.NoError(t, err)
			text, err := resp.Text()
			require.NoError(t, err)
			require.Equal(t, "feed", text)
		})
	}
}

func TestOAuth2ExecuteFeed_CustomTokenParam(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "T1", r.URL.Query().Get("oauth_token"))
		require.Empty(t, r.URL.Query().Get("access_token"))
	}))
	defer srv.Close()

	s := newTestOAuth2(t, srv)
	s.SetAccessTokenParameterName("oauth_token")
	s.SetAccessGrant(NewCredential("T1", "", nil, PermissionAll, "test"))

	resp, err := s.ExecuteFeed(context.Background(), srv.URL+"/me")
	require.NoError(t, err)
	require.NoError(t, resp.Close())
}

func TestOAuth2ExecuteFeed_TransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	s := newTestOAuth2(t, srv)
	srv.Close()
	s.SetAccessGrant(NewCredential("T1", "", nil, PermissionAll, "test"))

	_, err := s.ExecuteFeed(context.Background(), srv.URL+"/me")
	require.ErrorIs(t, err, ErrNetwork)
	require.Contains(t, err.Error(), "[test]")
}

// --- UploadImage ---

func TestOAuth2UploadImage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		mediaType, params, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
		require.NoError(t, err)
		require.Equal(t, "multipart/form-data", mediaType)

		form, err := multipart.NewReader(r.Body, params["boundary"]).ReadForm(1 << 20)
		require.NoError(t, err)
		require.Equal(t, []string{"T1"}, form.Value["access_token"])
		require.Equal(t, []string{"caption"}, form.Value["message"])
		require.Len(t, form.File["source"], 1)
		require.Equal(t, "cat.png", form.File["source"][0].Filename)
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	s := newTestOAuth2(t, srv)
	s.SetAccessGrant(NewCredential("T1", "", nil, PermissionAll, "test"))

	resp, err := s.UploadImage(context.Background(), srv.URL+"/photos",
		Upload{FileName: "cat.png", File: strings.NewReader("PNG"), FieldName: "source"},
		WithParams(map[string]string{"message": "caption"}),
	)
	require.NoError(t, err)
	defer resp.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)
}

// --- logging ---

func TestOAuth2_LogsMaskSecrets(t *testing.T) {
	var calls int32
	srv := tokenServer(t, "access_token=supersecrettoken", &calls)
	logger := &recordingLogger{}
	s := newTestOAuth2(t, srv, WithLogger(logger))

	_, err := s.LoginRedirectURL(context.Background(), testSuccessURL)
	require.NoError(t, err)
	_, err = s.VerifyResponse(context.Background(), map[string]string{"code": "thecode123"}, "")
	require.NoError(t, err)

	require.False(t, logger.contains("client-secret"))
	require.False(t, logger.contains("thecode123"))
	require.False(t, logger.contains("supersecrettoken"))
}
