package socialconnect

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"sort"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/mselvan/social-connect"

// newDefaultHTTPClient returns the client used when WithHTTPClient is not given.
// It has no timeout of its own; calls are bounded by the caller's context.
func newDefaultHTTPClient() *http.Client {
	return &http.Client{}
}

// maskURL masks sensitive query parameter values in a URL for safe logging.
// Parameter values whose keys match sensitive substrings (token, secret, key, etc.)
// are masked using the same rules as maskSensitive.
// If the URL cannot be parsed, it is returned unchanged.
func maskURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	q := u.Query()
	if len(q) == 0 {
		return rawURL
	}
	// Build the query string manually to avoid percent-encoding the masked
	// asterisks. Keys are sorted for deterministic output.
	keys := make([]string, 0, len(q))
	for k := range q {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var parts []string
	for _, key := range keys {
		for _, v := range q[key] {
			maskedValue := maskSensitive(key, v)
			escapedValue := url.QueryEscape(maskedValue)
			escapedValue = strings.ReplaceAll(escapedValue, "%2A", "*")
			parts = append(parts, url.QueryEscape(key)+"="+escapedValue)
		}
	}
	u.RawQuery = strings.Join(parts, "&")
	return u.String()
}

// maxResponseSize is the upper limit on response bodies read into memory.
// Token and profile responses are typically <10KB; 1MB is generous.
const maxResponseSize = 1 << 20 // 1 MB

// readBody reads the response body (up to maxResponseSize bytes) and closes it.
func readBody(body io.ReadCloser) ([]byte, error) {
	defer func() { _ = body.Close() }()
	return io.ReadAll(io.LimitReader(body, maxResponseSize))
}

// bodyPreview shortens a response body for inclusion in error messages.
func bodyPreview(body []byte) string {
	preview := string(body)
	if len(preview) > 200 {
		preview = preview[:200] + "..."
	}
	return preview
}

// Response is the result of an authenticated provider call.
// The caller owns Body and must close it, directly or through Text or Close.
type Response struct {
	// StatusCode is the HTTP status returned by the provider.
	StatusCode int
	// Header holds the response headers.
	Header http.Header
	// Body is the raw response stream.
	Body io.ReadCloser
}

// Text reads the body as UTF-8 text (up to 1MB) and closes it.
func (r *Response) Text() (string, error) {
	if r == nil || r.Body == nil {
		return "", nil
	}
	b, err := readBody(r.Body)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// Close releases the response body.
func (r *Response) Close() error {
	if r == nil || r.Body == nil {
		return nil
	}
	return r.Body.Close()
}

// outgoing describes one request issued by a strategy.
type outgoing struct {
	method      string
	url         string
	body        io.Reader
	contentType string
	headers     map[string]string
}

// send issues the request and returns the provider response without judging
// its status. Transport failures are returned as *AuthError with Kind ErrKindNetwork;
// the Provider field is left empty for callers to fill in.
func send(ctx context.Context, client *http.Client, logger Logger, o outgoing) (*Response, error) {
	masked := maskURL(o.url)
	ctx, span := otel.Tracer(tracerName).Start(ctx, "socialconnect "+o.method,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("http.request.method", o.method),
			attribute.String("url.full", masked),
		),
	)
	defer span.End()

	logger.Debug("HTTP request", "method", o.method, "url", masked)

	req, err := http.NewRequestWithContext(ctx, o.method, o.url, o.body)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, newAuthError(ErrKindNetwork, "", "", fmt.Sprintf("%s %s: %v", o.method, masked, err), err)
	}
	if o.contentType != "" {
		req.Header.Set("Content-Type", o.contentType)
	}
	for k, v := range o.headers {
		req.Header.Set(k, v)
	}

	resp, err := client.Do(req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, newAuthError(ErrKindNetwork, "", "", fmt.Sprintf("%s %s: %v", o.method, masked, err), err)
	}

	span.SetAttributes(attribute.Int("http.response.status_code", resp.StatusCode))
	if resp.StatusCode >= 400 {
		span.SetStatus(codes.Error, http.StatusText(resp.StatusCode))
	}
	logger.Debug("HTTP response", "method", o.method, "url", masked, "status", resp.StatusCode)

	return &Response{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       resp.Body,
	}, nil
}

// sendForBody issues the request and returns the body of a 2xx response.
// Non-2xx responses become *AuthError with Kind ErrKindNetwork carrying the
// status, the masked URL and a preview of the body.
func sendForBody(ctx context.Context, client *http.Client, logger Logger, o outgoing) ([]byte, error) {
	resp, err := send(ctx, client, logger, o)
	if err != nil {
		return nil, err
	}
	masked := maskURL(o.url)

	body, err := readBody(resp.Body)
	if err != nil {
		return nil, newAuthError(ErrKindNetwork, "", "", fmt.Sprintf("HTTP %d, %s %s: read body: %v", resp.StatusCode, o.method, masked, err), err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, newAuthError(ErrKindNetwork, "", "", fmt.Sprintf("HTTP %d, %s %s: %s", resp.StatusCode, o.method, masked, bodyPreview(body)), nil)
	}

	return body, nil
}

// encodeParams encodes params as key=value pairs joined by "&", sorted by key.
func encodeParams(params map[string]string) string {
	if len(params) == 0 {
		return ""
	}
	values := make(url.Values, len(params))
	for k, v := range params {
		values.Set(k, v)
	}
	return values.Encode()
}

// appendQuery appends an encoded query to rawURL using "?" or "&" as needed.
func appendQuery(rawURL, query string) string {
	if query == "" {
		return rawURL
	}
	if strings.Contains(rawURL, "?") {
		if strings.HasSuffix(rawURL, "?") || strings.HasSuffix(rawURL, "&") {
			return rawURL + query
		}
		return rawURL + "&" + query
	}
	return rawURL + "?" + query
}

// Upload describes the binary payload of an UploadImage call.
type Upload struct {
	// FileName is reported to the provider as the part's file name.
	FileName string
	// File is the payload stream.
	File io.Reader
	// FieldName is the multipart field carrying the file. Defaults to "file".
	FieldName string
}

// buildMultipart writes fields (sorted by name) and the upload into a
// multipart/form-data body and returns it with its content type.
func buildMultipart(fields map[string]string, up Upload) (*bytes.Buffer, string, error) {
	buf := &bytes.Buffer{}
	w := multipart.NewWriter(buf)

	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if err := w.WriteField(k, fields[k]); err != nil {
			return nil, "", err
		}
	}

	fieldName := up.FieldName
	if fieldName == "" {
		fieldName = "file"
	}
	part, err := w.CreateFormFile(fieldName, up.FileName)
	if err != nil {
		return nil, "", err
	}
	if up.File != nil {
		if _, err := io.Copy(part, up.File); err != nil {
			return nil, "", err
		}
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return buf, w.FormDataContentType(), nil
}

// CallbackParams flattens the query (and, for POST callbacks, the form) of the
// provider's redirect into the map VerifyResponse expects. When a key repeats,
// the first value wins. A malformed query or body is reported as an error
// together with the pairs that could be parsed.
func CallbackParams(r *http.Request) (map[string]string, error) {
	err := r.ParseForm()
	params := make(map[string]string, len(r.Form))
	for k, v := range r.Form {
		if len(v) > 0 {
			params[k] = v[0]
		}
	}
	if err != nil {
		return params, fmt.Errorf("parse callback parameters: %w", err)
	}
	return params, nil
}
