// Package socialconnect obtains delegated-access credentials from third-party
// identity providers and uses them for authenticated API calls.
//
// Two wire protocols sit behind the single [Strategy] interface:
//
//   - [OAuth2]: authorization code exchanged for a bearer token, which is
//     attached to every later call.
//   - [OAuth1]: three-legged request token / authorize / access token, with
//     every request signed (HMAC-SHA1 by default, RSA-SHA1 or PLAINTEXT on request).
//
// A Strategy instance models one authorization attempt. VerifyResponse is only
// accepted after LoginRedirectURL was called on the same instance, so a forged
// callback cannot mint a credential.
//
// # Quick Start
//
//	s, err := socialconnect.NewOAuth2(socialconnect.OAuthConfig{
//	    ConsumerKey:    clientID,
//	    ConsumerSecret: clientSecret,
//	    ID:             "example",
//	}, socialconnect.Endpoints{
//	    AuthorizationURL: "https://provider.example/oauth/authorize",
//	    AccessTokenURL:   "https://provider.example/oauth/token",
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	// 1. Redirect the browser.
//	redirect, err := s.LoginRedirectURL(ctx, "https://app.example/callback")
//
//	// 2. In the callback handler, exchange the grant.
//	params, err := socialconnect.CallbackParams(r)
//	cred, err := s.VerifyResponse(ctx, params, http.MethodPost)
//
//	// 3. Call the provider's API.
//	resp, err := s.ExecuteFeed(ctx, "https://provider.example/api/me")
//
// The strategy never persists anything; hosts keep the [Credential] between
// requests (it implements json.Marshaler) and reinstall it with SetAccessGrant.
//
// # Providers
//
// [NewGoogle] and [NewLinkedIn] wrap a strategy into a [Provider] that also maps
// the user's profile, contacts and status updates.
//
// # Error Handling
//
// All errors are of type [*AuthError]. Sentinels such as [ErrProviderState],
// [ErrUserDenied], [ErrProtocol] and [ErrNotAuthenticated] work with [errors.Is].
package socialconnect
