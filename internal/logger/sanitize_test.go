package logger

import (
	"strings"
	"testing"
)

func TestIsSecretKey(t *testing.T) {
	testCases := []struct {
		key  string
		want bool
	}{
		{key: "APIKey", want: true},
		{key: "Authorization", want: true},
		{key: "user_token", want: true},
		{key: "password_hash", want: true},
		{key: "client_secret", want: true},
		{key: "owner_id", want: false},
		{key: "business_description", want: false},
	}

	for _, tc := range testCases {
		t.Run(tc.key, func(t *testing.T) {
			if got := IsSecretKey(tc.key); got != tc.want {
				t.Errorf("IsSecretKey(%q) = %v, want %v", tc.key, got, tc.want)
			}
		})
	}
}

func TestSanitize(t *testing.T) {
	long := strings.Repeat("x", 600)
	params := map[string]interface{}{
		"api_key":     "sk-live-123",
		"owner_id":    "owner-1",
		"top_n":       100,
		"description": long,
		"nested": map[string]interface{}{
			"password": "hunter2",
			"count":    3,
		},
		"items": []interface{}{
			map[string]interface{}{"token": "abc"},
			"plain",
		},
	}

	out := Sanitize(params)

	if out["api_key"] != "[REDACTED]" {
		t.Errorf("api_key = %v, want redacted", out["api_key"])
	}
	if out["owner_id"] != "owner-1" {
		t.Errorf("owner_id = %v, want passed through", out["owner_id"])
	}
	if out["top_n"] != 100 {
		t.Errorf("top_n = %v, want the untouched int", out["top_n"])
	}

	desc, ok := out["description"].(string)
	if !ok || !strings.HasSuffix(desc, "...(truncated)") {
		t.Errorf("description = %.30q..., want a truncated string", out["description"])
	}
	if ok && len(desc) >= len(long) {
		t.Errorf("description length = %d, want shorter than the original %d", len(desc), len(long))
	}

	nested, ok := out["nested"].(map[string]interface{})
	if !ok {
		t.Fatalf("nested = %T, want a map", out["nested"])
	}
	if nested["password"] != "[REDACTED]" {
		t.Errorf("nested password = %v, want redacted", nested["password"])
	}
	if nested["count"] != 3 {
		t.Errorf("nested count = %v, want 3", nested["count"])
	}

	items, ok := out["items"].([]interface{})
	if !ok || len(items) != 2 {
		t.Fatalf("items = %v, want a 2-element list", out["items"])
	}
	itemMap, ok := items[0].(map[string]interface{})
	if !ok || itemMap["token"] != "[REDACTED]" {
		t.Errorf("list token = %v, want redacted", items[0])
	}
	if items[1] != "plain" {
		t.Errorf("list string = %v, want passed through", items[1])
	}

	// Sanitize copies; the caller's map keeps its secrets.
	if params["api_key"] != "sk-live-123" {
		t.Errorf("original api_key = %v, want untouched", params["api_key"])
	}

	if got := Sanitize(nil); got != nil {
		t.Errorf("Sanitize(nil) = %v, want nil", got)
	}
}

func TestTruncate(t *testing.T) {
	testCases := []struct {
		name string
		s    string
		max  int
		want string
	}{
		{name: "short string unchanged", s: "hello", max: 10, want: "hello"},
		{name: "exact length unchanged", s: "hello", max: 5, want: "hello"},
		{name: "zero max disables", s: "hello world", max: 0, want: "hello world"},
		{name: "long string cut and marked", s: "abcdefgh", max: 5, want: "abcde...(truncated)"},
		{name: "multibyte counts runes not bytes", s: strings.Repeat("é", 6), max: 8, want: strings.Repeat("é", 6)},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Truncate(tc.s, tc.max); got != tc.want {
				t.Errorf("Truncate(%q, %d) = %q, want %q", tc.s, tc.max, got, tc.want)
			}
		})
	}
}
