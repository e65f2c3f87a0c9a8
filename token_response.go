package socialconnect

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// tokenResponse is the normalized content of an OAuth2 token endpoint reply.
type tokenResponse struct {
	accessToken string
	expires     any // int, or nil when absent
	attributes  map[string]any
}

// parseTokenResponse normalizes a token endpoint body. Providers answer either
// with "&"-joined key=value pairs or with JSON; a body containing "{" is JSON.
// endpoint is only used in error messages and must already be masked.
func parseTokenResponse(provider, endpoint string, body []byte) (*tokenResponse, error) {
	text := strings.TrimSpace(string(body))
	if text == "" {
		return nil, newAuthError(ErrKindProtocol, provider, "", "empty token response from "+endpoint, nil)
	}

	var (
		tr  *tokenResponse
		err error
	)
	if !strings.Contains(text, "{") {
		tr, err = parseFormToken(provider, endpoint, text)
	} else {
		tr, err = parseJSONToken(provider, endpoint, text)
	}
	if err != nil {
		return nil, err
	}

	if tr.accessToken == "" {
		return nil, newAuthError(ErrKindProtocol, provider, "",
			fmt.Sprintf("access token not found in response from %s: %s", endpoint, bodyPreview(body)), nil)
	}
	return tr, nil
}

// parseFormToken handles access_token=...&expires=... bodies.
// Every pair must contain exactly one "=". Trailing "&" separators are ignored.
func parseFormToken(provider, endpoint, text string) (*tokenResponse, error) {
	tr := &tokenResponse{attributes: map[string]any{}}
	for _, pair := range strings.Split(strings.TrimRight(text, "&"), "&") {
		if strings.Count(pair, "=") != 1 {
			return nil, newAuthError(ErrKindProtocol, provider, "",
				fmt.Sprintf("unexpected auth response from %s: %s", endpoint, bodyPreview([]byte(text))), nil)
		}
		k, v, _ := strings.Cut(pair, "=")
		switch k {
		case "access_token":
			tr.accessToken = v
		case AttrExpires:
			n, err := strconv.Atoi(v)
			if err != nil {
				return nil, newAuthError(ErrKindProtocol, provider, "",
					fmt.Sprintf("unexpected expires value %q from %s", v, endpoint), err)
			}
			tr.expires = n
		default:
			tr.attributes[k] = v
		}
	}
	return tr, nil
}

// parseJSONToken handles JSON bodies. Numbers keep their literal text, so a
// numeric access_token is used as sent and a fractional expires_in is rejected.
// Extra keys are only harvested when an access_token is present.
func parseJSONToken(provider, endpoint, text string) (*tokenResponse, error) {
	obj, err := decodeJSONObject(text)
	if err != nil {
		return nil, newAuthError(ErrKindProtocol, provider, "",
			fmt.Sprintf("unexpected auth response from %s: %v", endpoint, err), err)
	}

	tr := &tokenResponse{attributes: map[string]any{}}
	if v, ok := obj["access_token"]; ok && v != nil {
		tr.accessToken = fmt.Sprint(v)
	}
	if v, ok := obj["expires_in"]; ok && v != nil {
		if s, isStr := v.(string); !isStr || strings.TrimSpace(s) != "" {
			n, err := toInt(v)
			if err != nil {
				return nil, newAuthError(ErrKindProtocol, provider, "",
					fmt.Sprintf("unexpected expires_in value %v from %s", v, endpoint), err)
			}
			tr.expires = n
		}
	}
	if tr.accessToken != "" {
		for k, v := range obj {
			if k == "access_token" || k == "expires_in" {
				continue
			}
			tr.attributes[k] = v
		}
	}
	return tr, nil
}

// decodeJSONObject decodes a single JSON object, keeping numbers as json.Number.
func decodeJSONObject(text string) (map[string]any, error) {
	dec := json.NewDecoder(strings.NewReader(text))
	dec.UseNumber()
	var obj map[string]any
	if err := dec.Decode(&obj); err != nil {
		return nil, err
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return nil, errors.New("unexpected data after JSON object")
	}
	return obj, nil
}

// toInt converts a decoded JSON value (number or numeric string) to int.
func toInt(v any) (int, error) {
	switch n := v.(type) {
	case int:
		return n, nil
	case int64:
		return int(n), nil
	case float64:
		return int(n), nil
	case json.Number:
		i, err := n.Int64()
		return int(i), err
	case string:
		return strconv.Atoi(strings.TrimSpace(n))
	default:
		return 0, fmt.Errorf("not a number: %T", v)
	}
}
