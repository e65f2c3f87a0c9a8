package socialconnect

import "fmt"

// ErrorKind categorizes the type of error that occurred during an authorization flow.
type ErrorKind string

const (
	// ErrKindNetwork indicates the HTTP call itself failed (connection refused,
	// canceled context, non-2xx status on a token endpoint).
	ErrKindNetwork ErrorKind = "network"
	// ErrKindInvalidCode indicates the callback did not carry a usable grant
	// (missing code, missing or mismatched oauth_token).
	ErrKindInvalidCode ErrorKind = "invalid_code"
	// ErrKindProviderState indicates VerifyResponse was called without a prior
	// redirect on the same strategy instance.
	ErrKindProviderState ErrorKind = "provider_state"
	// ErrKindUserDenied indicates the end user declined consent at the provider.
	ErrKindUserDenied ErrorKind = "user_denied"
	// ErrKindProtocol indicates a token endpoint answered with a body that could
	// not be parsed or that carried no token.
	ErrKindProtocol ErrorKind = "protocol"
	// ErrKindNotAuthenticated indicates an authenticated call was attempted
	// before a credential was installed.
	ErrKindNotAuthenticated ErrorKind = "not_authenticated"
	// ErrKindSignature indicates a request could not be signed.
	ErrKindSignature ErrorKind = "signature"
	// ErrKindPlatform indicates a platform-specific error returned by the provider.
	ErrKindPlatform ErrorKind = "platform"
	// ErrKindUnsupported indicates the requested operation is not supported by the provider.
	ErrKindUnsupported ErrorKind = "unsupported"
	// ErrKindInvalidConfig indicates the client identity, scope or endpoints are invalid.
	ErrKindInvalidConfig ErrorKind = "invalid_config"
)

// AuthError represents a structured error from an authorization flow.
// It carries the error kind, provider id, optional platform error code,
// a human-readable message, and an optional wrapped error.
type AuthError struct {
	// Kind categorizes the error.
	Kind ErrorKind
	// Provider is the id of the provider configuration (e.g. "google", "linkedin").
	Provider string
	// Code is an optional platform-specific error code.
	Code string
	// Message is a human-readable description of the error.
	// When a request URL or response body is available it is included
	// in sanitized form (e.g. "HTTP 400, POST https://oauth2.googleapis.com/token: ...").
	Message string
	// Err is the underlying error, if any.
	Err error
}

// Error returns the string representation of the error in the format:
//
//	"socialconnect [provider] kind: message"
func (e *AuthError) Error() string {
	return fmt.Sprintf("socialconnect [%s] %s: %s", e.Provider, e.Kind, e.Message)
}

// Unwrap returns the underlying error, allowing errors.Unwrap to traverse
// the error chain.
func (e *AuthError) Unwrap() error {
	return e.Err
}

// Is reports whether the target error matches this AuthError by Kind.
// This enables errors.Is to match AuthError values against sentinel errors.
func (e *AuthError) Is(target error) bool {
	if t, ok := target.(*AuthError); ok {
		return e.Kind == t.Kind
	}
	return false
}

// Sentinel errors for use with errors.Is. Each sentinel corresponds to an ErrorKind.
var (
	// ErrNetwork is a sentinel error for transport failures.
	ErrNetwork = &AuthError{Kind: ErrKindNetwork}
	// ErrInvalidCode is a sentinel error for unusable callback grants.
	ErrInvalidCode = &AuthError{Kind: ErrKindInvalidCode}
	// ErrProviderState is a sentinel error for a verify call without a prior redirect.
	ErrProviderState = &AuthError{Kind: ErrKindProviderState}
	// ErrUserDenied is a sentinel error for declined consent.
	ErrUserDenied = &AuthError{Kind: ErrKindUserDenied}
	// ErrProtocol is a sentinel error for unparseable or token-less token responses.
	ErrProtocol = &AuthError{Kind: ErrKindProtocol}
	// ErrNotAuthenticated is a sentinel error for calls made without a credential.
	ErrNotAuthenticated = &AuthError{Kind: ErrKindNotAuthenticated}
	// ErrSignature is a sentinel error for signing failures.
	ErrSignature = &AuthError{Kind: ErrKindSignature}
	// ErrPlatform is a sentinel error for platform-specific errors.
	ErrPlatform = &AuthError{Kind: ErrKindPlatform}
	// ErrUnsupported is a sentinel error for unsupported operations.
	ErrUnsupported = &AuthError{Kind: ErrKindUnsupported}
	// ErrInvalidConfig is a sentinel error for invalid configurations.
	ErrInvalidConfig = &AuthError{Kind: ErrKindInvalidConfig}
)

// newAuthError creates a new AuthError with the given parameters.
func newAuthError(kind ErrorKind, provider, code, message string, err error) *AuthError {
	return &AuthError{
		Kind:     kind,
		Provider: provider,
		Code:     code,
		Message:  message,
		Err:      err,
	}
}

// withProvider fills in the provider id on an *AuthError produced by the
// HTTP helpers, which do not know which configuration they serve.
func withProvider(err error, provider string) error {
	if ae, ok := err.(*AuthError); ok && ae.Provider == "" {
		ae.Provider = provider
	}
	return err
}
