package logger

import "testing"

func TestSanitizedEmail(t *testing.T) {
	tests := []struct {
		name  string
		email string
		want  string
	}{
		{"typical address", "user@example.com", "u***@*******.com"},
		{"single char user", "u@example.com", "u@*******.com"},
		{"subdomain", "user@mail.example.com", "u***@****.*******.com"},
		{"no at sign", "not-an-email", "[invalid-email]"},
		{"two at signs", "a@b@c.com", "[invalid-email]"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SanitizedEmail(tt.email); got != tt.want {
				t.Errorf("SanitizedEmail(%q) = %q, want %q", tt.email, got, tt.want)
			}
		})
	}
}

func TestSanitizeQueryString(t *testing.T) {
	tests := []struct {
		name     string
		rawQuery string
		want     bool
	}{
		{"empty", "", false},
		{"benign params", "limit=10&offset=20", false},
		{"password param", "password=hunter2", true},
		{"token param", "token=abc", true},
		{"code param", "code=123456", true},
		{"mixed case", "Token=abc", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SanitizeQueryString(tt.rawQuery); got != tt.want {
				t.Errorf("SanitizeQueryString(%q) = %v, want %v", tt.rawQuery, got, tt.want)
			}
		})
	}
}

func TestRedactedAttr(t *testing.T) {
	attr := RedactedAttr("email", "user@example.com", "production")
	if attr.Value.String() != "[REDACTED]" {
		t.Errorf("production value = %q, want [REDACTED]", attr.Value.String())
	}

	attr = RedactedAttr("email", "user@example.com", "development")
	if attr.Value.String() != "user@example.com" {
		t.Errorf("development value = %q, want the original", attr.Value.String())
	}
}
