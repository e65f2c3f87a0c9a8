package socialconnect

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseTokenResponse(t *testing.T) {
	tests := []struct {
		name        string
		body        string
		wantToken   string
		wantExpires any
		wantAttrs   map[string]any
	}{
		{
			name:        "form encoded",
			body:        "access_token=T1&expires=3600",
			wantToken:   "T1",
			wantExpires: 3600,
			wantAttrs:   map[string]any{},
		},
		{
			name:        "form encoded extra keys",
			body:        "access_token=T1&scope=email&token_type=bearer",
			wantToken:   "T1",
			wantExpires: nil,
			wantAttrs:   map[string]any{"scope": "email", "token_type": "bearer"},
		},
		{
			name:        "form encoded empty value accepted",
			body:        "access_token=T1&note=",
			wantToken:   "T1",
			wantExpires: nil,
			wantAttrs:   map[string]any{"note": ""},
		},
		{
			name:        "json quoted expires_in",
			body:        `{"access_token":"T2","expires_in":"7200","token_type":"bearer"}`,
			wantToken:   "T2",
			wantExpires: 7200,
			wantAttrs:   map[string]any{"token_type": "bearer"},
		},
		{
			name:        "json numeric expires_in",
			body:        `{"access_token":"T2","expires_in":3599,"refresh_token":"R"}`,
			wantToken:   "T2",
			wantExpires: 3599,
			wantAttrs:   map[string]any{"refresh_token": "R"},
		},
		{
			name:        "json empty expires_in is absent",
			body:        `{"access_token":"T2","expires_in":""}`,
			wantToken:   "T2",
			wantExpires: nil,
			wantAttrs:   map[string]any{},
		},
		{
			name:        "form encoded trailing separator",
			body:        "access_token=T1&expires=3600&",
			wantToken:   "T1",
			wantExpires: 3600,
			wantAttrs:   map[string]any{},
		},
		{
			name:        "json numeric access_token keeps its text",
			body:        `{"access_token":12345678,"expires_in":60}`,
			wantToken:   "12345678",
			wantExpires: 60,
			wantAttrs:   map[string]any{},
		},
		{
			name:        "json numeric extra keys stay exact",
			body:        `{"access_token":"T4","user_id":9007199254740993}`,
			wantToken:   "T4",
			wantExpires: nil,
			wantAttrs:   map[string]any{"user_id": json.Number("9007199254740993")},
		},
		{
			name:        "json without expires_in",
			body:        "  {\"access_token\":\"T3\"}\n",
			wantToken:   "T3",
			wantExpires: nil,
			wantAttrs:   map[string]any{},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr, err := parseTokenResponse("test", "https://x.example/token", []byte(tt.body))
			require.NoError(t, err)
			require.Equal(t, tt.wantToken, tr.accessToken)
			require.Equal(t, tt.wantExpires, tr.expires)
			require.Equal(t, tt.wantAttrs, tr.attributes)
		})
	}
}

func TestParseTokenResponse_Errors(t *testing.T) {
	tests := []struct {
		name        string
		body        string
		wantMessage string
	}{
		{"empty body", "", "empty token response"},
		{"whitespace body", " \n\t", "empty token response"},
		{"form without token", "foo=bar", "access token not found"},
		{"pair without equals", "access_token", "unexpected auth response"},
		{"pair with two equals", "access_token=a=b", "unexpected auth response"},
		{"non-numeric expires", "access_token=T&expires=soon", "unexpected expires value"},
		{"invalid json", `{"access_token":`, "unexpected auth response"},
		{"json without token", `{"error":"invalid_grant"}`, "access token not found"},
		{"json bad expires_in", `{"access_token":"T","expires_in":"later"}`, "unexpected expires_in value"},
		{"json fractional expires_in", `{"access_token":"T3","expires_in":3599.7}`, "unexpected expires_in value"},
		{"json trailing data", `{"access_token":"T"} {"x":1}`, "unexpected auth response"},
		{"leading separator", "&access_token=T1", "unexpected auth response"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parseTokenResponse("test", "https://x.example/token", []byte(tt.body))
			require.ErrorIs(t, err, ErrProtocol)
			require.Contains(t, err.Error(), tt.wantMessage)
		})
	}
}

func TestParseJSONToken_NoAttributesWithoutToken(t *testing.T) {
	tr, err := parseJSONToken("test", "e", `{"error":"x","expires_in":5}`)
	require.NoError(t, err)
	require.Empty(t, tr.accessToken)
	require.Empty(t, tr.attributes)
}

func TestToInt(t *testing.T) {
	tests := []struct {
		name    string
		in      any
		want    int
		wantErr bool
	}{
		{"int", 5, 5, false},
		{"int64", int64(6), 6, false},
		{"float64", float64(7), 7, false},
		{"json number", json.Number("8"), 8, false},
		{"string", " 9 ", 9, false},
		{"bad string", "x", 0, true},
		{"bool", true, 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := toInt(tt.in)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.want, got)
		})
	}
}
