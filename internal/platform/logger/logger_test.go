package logger

import (
	"strings"
	"testing"
)

func TestSanitizeValue(t *testing.T) {
	redactOnce.Do(func() { redactionEnabled = true })

	cases := []struct {
		name string
		key  string
		val  interface{}
		want func(interface{}) bool
	}{
		{"token redacted", "access_token", "abc", eq("[REDACTED]")},
		{"authorization redacted", "authorization", "Bearer x", eq("[REDACTED]")},
		{"chat image redacted", "chat_image", "data:image/png;base64,AAA", eq("[REDACTED]")},
		{"email masked", "email", "jane@example.com", eq("j***@example.com")},
		{"recipients masked", "to", []string{"bob@example.com"}, func(v interface{}) bool {
			s, ok := v.([]string)
			return ok && len(s) == 1 && s[0] == "b***@example.com"
		}},
		{"username hashed", "username", "jane", func(v interface{}) bool {
			s, ok := v.(string)
			return ok && strings.HasPrefix(s, "hash:") && len(s) == len("hash:")+12
		}},
		{"data url value redacted", "image", "data:image/png;base64,AAA", eq("[REDACTED]")},
		{"plain value kept", "asset_id", "intro.pdf", eq("intro.pdf")},
		{"unit index kept", "unit_index", 3, eq(3)},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			got := sanitizeValue(tc.key, tc.val)
			if !tc.want(got) {
				t.Fatalf("sanitizeValue(%q, %v) = %v", tc.key, tc.val, got)
			}
		})
	}
}

func TestSanitizeKVsOddLength(t *testing.T) {
	redactOnce.Do(func() { redactionEnabled = true })
	out := sanitizeKVs([]interface{}{"asset_id", "a1", "dangling"})
	if len(out) != 3 || out[2] != "dangling" {
		t.Fatalf("unexpected kvs: %v", out)
	}
}

func eq(want interface{}) func(interface{}) bool {
	return func(got interface{}) bool { return got == want }
}
