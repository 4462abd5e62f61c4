package ratelimit

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/golang-jwt/jwt/v5"
)

func signedToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-key"))
	if err != nil {
		t.Fatalf("SignedString() error = %v", err)
	}
	return token
}

func TestClientKey(t *testing.T) {
	tests := []struct {
		name  string
		setup func(t *testing.T, r *http.Request)
		want  string
	}{
		{
			name: "bearer token subject",
			setup: func(t *testing.T, r *http.Request) {
				r.Header.Set("Authorization", "Bearer "+signedToken(t, jwt.MapClaims{"sub": "user-42"}))
			},
			want: "sub:user-42",
		},
		{
			name: "token without subject falls back to address",
			setup: func(t *testing.T, r *http.Request) {
				r.Header.Set("Authorization", "Bearer "+signedToken(t, jwt.MapClaims{"aud": "keel"}))
			},
			want: "ip:192.0.2.1",
		},
		{
			name: "malformed token falls back to address",
			setup: func(t *testing.T, r *http.Request) {
				r.Header.Set("Authorization", "Bearer not.a.jwt")
			},
			want: "ip:192.0.2.1",
		},
		{
			name: "forwarded-for first hop",
			setup: func(t *testing.T, r *http.Request) {
				r.Header.Set("X-Forwarded-For", "203.0.113.7, 10.0.0.1")
			},
			want: "ip:203.0.113.7",
		},
		{
			name:  "remote address host",
			setup: func(t *testing.T, r *http.Request) {},
			want:  "ip:192.0.2.1",
		},
		{
			name: "remote address without port",
			setup: func(t *testing.T, r *http.Request) {
				r.RemoteAddr = "192.0.2.9"
			},
			want: "ip:192.0.2.9",
		},
		{
			name: "subject wins over forwarded-for",
			setup: func(t *testing.T, r *http.Request) {
				r.Header.Set("Authorization", "Bearer "+signedToken(t, jwt.MapClaims{"sub": "user-7"}))
				r.Header.Set("X-Forwarded-For", "203.0.113.7")
			},
			want: "sub:user-7",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			tt.setup(t, req)
			if got := ClientKey(req); got != tt.want {
				t.Errorf("ClientKey() = %q, want %q", got, tt.want)
			}
		})
	}
}
