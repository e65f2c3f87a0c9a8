package socialconnect

import (
	"net/http"
	"strings"
	"time"
)

// Logger defines the interface for structured logging used by strategies and providers.
// Implementations should treat args as key-value pairs (e.g. "key1", val1, "key2", val2).
// A *slog.Logger satisfies it.
type Logger interface {
	// Debug logs a message at debug level.
	Debug(msg string, args ...any)
	// Info logs a message at info level.
	Info(msg string, args ...any)
	// Warn logs a message at warn level.
	Warn(msg string, args ...any)
	// Error logs a message at error level.
	Error(msg string, args ...any)
}

// noopLogger is a Logger that discards all log messages.
type noopLogger struct{}

func (n *noopLogger) Debug(msg string, args ...any) {}
func (n *noopLogger) Info(msg string, args ...any)  {}
func (n *noopLogger) Warn(msg string, args ...any)  {}
func (n *noopLogger) Error(msg string, args ...any) {}

// Option is a functional option for configuring a strategy or provider.
type Option func(*strategyConfig)

// strategyConfig holds common configuration for both strategy variants.
type strategyConfig struct {
	httpClient *http.Client
	logger     Logger

	accessTokenParam string // OAuth2: query/body parameter carrying the bearer token

	signatureMethod SignatureMethod // OAuth1
	rsaPrivateKey   string          // OAuth1 RSA-SHA1 key, PEM or raw base64
	realm           string          // OAuth1 Authorization header realm

	now   func() time.Time      // internal: overridden by signing tests
	nonce func() (string, error) // internal: overridden by signing tests
}

// newStrategyConfig creates a new strategyConfig with defaults and applies the given options.
func newStrategyConfig(opts ...Option) *strategyConfig {
	cfg := &strategyConfig{
		httpClient:       newDefaultHTTPClient(),
		logger:           &noopLogger{},
		accessTokenParam: DefaultAccessTokenParam,
		signatureMethod:  SignatureHMACSHA1,
		now:              time.Now,
		nonce:            generateNonce,
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(cfg)
	}
	return cfg
}

// WithHTTPClient returns an Option that sets the HTTP client used for every
// provider call. If client is nil, the library default client is kept.
func WithHTTPClient(client *http.Client) Option {
	return func(cfg *strategyConfig) {
		if client != nil {
			cfg.httpClient = client
		}
	}
}

// WithLogger returns an Option that sets the logger.
// If l is nil, a no-op logger is used.
func WithLogger(l Logger) Option {
	return func(cfg *strategyConfig) {
		if l != nil {
			cfg.logger = l
		}
	}
}

// WithAccessTokenParam sets the name of the parameter the OAuth2 strategy uses
// to attach the bearer token to feed calls. Empty names are ignored.
func WithAccessTokenParam(name string) Option {
	return func(cfg *strategyConfig) {
		if name != "" {
			cfg.accessTokenParam = name
		}
	}
}

// WithSignatureMethod selects the OAuth1 signature method.
func WithSignatureMethod(m SignatureMethod) Option {
	return func(cfg *strategyConfig) {
		cfg.signatureMethod = m
	}
}

// WithRSAPrivateKey switches the OAuth1 strategy to RSA-SHA1 and sets the
// PEM-encoded (PKCS1 or PKCS8) private key used to sign requests.
func WithRSAPrivateKey(pemData string) Option {
	return func(cfg *strategyConfig) {
		cfg.rsaPrivateKey = pemData
		cfg.signatureMethod = SignatureRSASHA1
	}
}

// WithRealm sets the realm reported in the OAuth1 Authorization header.
func WithRealm(realm string) Option {
	return func(cfg *strategyConfig) {
		cfg.realm = realm
	}
}

// FeedOption configures a single authenticated call made through ExecuteFeed,
// UploadImage or a provider's API method.
type FeedOption func(*feedConfig)

// feedConfig holds the optional parts of a feed request.
type feedConfig struct {
	method  string
	params  map[string]string
	headers map[string]string
	body    string
}

// newFeedConfig creates a feedConfig using defaultMethod and applies the given options.
func newFeedConfig(defaultMethod string, opts ...FeedOption) *feedConfig {
	cfg := &feedConfig{method: defaultMethod}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(cfg)
	}
	cfg.method = strings.ToUpper(cfg.method)
	if cfg.method == "" {
		cfg.method = defaultMethod
	}
	return cfg
}

// WithMethod sets the HTTP method (GET, POST or PUT). Feeds default to GET,
// uploads to POST.
func WithMethod(method string) FeedOption {
	return func(cfg *feedConfig) {
		cfg.method = method
	}
}

// WithParams sets extra request parameters. Where they travel depends on the
// method and the strategy variant.
func WithParams(params map[string]string) FeedOption {
	return func(cfg *feedConfig) {
		cfg.params = params
	}
}

// WithHeaders sets extra request headers.
func WithHeaders(headers map[string]string) FeedOption {
	return func(cfg *feedConfig) {
		cfg.headers = headers
	}
}

// WithBody sets a raw request body for POST and PUT calls.
func WithBody(body string) FeedOption {
	return func(cfg *feedConfig) {
		cfg.body = body
	}
}

// sensitiveKeys lists substrings that indicate a field value should be masked.
var sensitiveKeys = []string{"token", "secret", "key", "password", "code", "signature", "verifier"}

// maskSensitive masks the value if the key contains a sensitive substring
// (case-insensitive). Sensitive values are returned as the first 4 characters
// followed by "****". If the value has fewer than 4 characters, "****" is returned.
// Non-sensitive values are returned unchanged.
func maskSensitive(key, value string) string {
	lower := strings.ToLower(key)
	for _, s := range sensitiveKeys {
		if strings.Contains(lower, s) {
			if len(value) >= 4 {
				return value[:4] + "****"
			}
			return "****"
		}
	}
	return value
}
