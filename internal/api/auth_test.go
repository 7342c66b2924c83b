package api

import (
	"encoding/base64"
	"log/slog"
	"net/http"
	"testing"
)

func TestBasicAuthCheck(t *testing.T) {
	a := basicAuth{user: "admin", pass: "secret"}
	enc := func(s string) string { return base64.StdEncoding.EncodeToString([]byte(s)) }

	tests := []struct {
		name   string
		header string
		query  string
		want   string
	}{
		{"header", "Basic " + enc("admin:secret"), "", ""},
		{"query fallback", "", enc("admin:secret"), ""},
		{"header wins over query", "Basic " + enc("admin:wrong"), enc("admin:secret"), "Invalid credentials"},
		{"missing", "", "", "Authentication required"},
		{"bearer", "Bearer abc", "", "Invalid authentication type"},
		{"not base64", "Basic ***", "", "Invalid credentials format"},
		{"no colon", "Basic " + enc("adminsecret"), "", "Invalid credentials"},
		{"password with colon", "Basic " + enc("admin:secret:x"), "", "Invalid credentials"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := a.check(tt.header, tt.query); got != tt.want {
				t.Errorf("check() = %q, want %q", got, tt.want)
			}
		})
	}

	if (basicAuth{user: "admin"}).enabled() {
		t.Error("auth without a password should be disabled")
	}
}

func TestRequestLevel(t *testing.T) {
	tests := []struct {
		method, path string
		status       int
		want         slog.Level
	}{
		{http.MethodGet, "/api/devices", 200, slog.LevelInfo},
		{http.MethodGet, "/api/health", 200, slog.LevelDebug},
		{http.MethodOptions, "/api/devices", 204, slog.LevelDebug},
		{http.MethodGet, "/api/session", 404, slog.LevelWarn},
		{http.MethodPost, "/api/session/open", 503, slog.LevelError},
	}
	for _, tt := range tests {
		if got := requestLevel(tt.method, tt.path, tt.status); got != tt.want {
			t.Errorf("requestLevel(%s %s %d) = %s, want %s", tt.method, tt.path, tt.status, got, tt.want)
		}
	}
}
