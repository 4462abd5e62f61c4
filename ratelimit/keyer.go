package ratelimit

import (
	"net"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// ClientKey derives the quota key for a request. Preference order:
//
//  1. the subject claim of a bearer token, so quota follows the session
//     rather than the network path (the token is decoded without signature
//     verification - quota keying must not depend on key material, and a
//     forged subject only changes whose bucket the request drains);
//  2. the first hop of X-Forwarded-For when the request came through a
//     proxy;
//  3. the host portion of the remote address.
func ClientKey(r *http.Request) string {
	if auth := r.Header.Get("Authorization"); strings.HasPrefix(auth, "Bearer ") {
		raw := strings.TrimPrefix(auth, "Bearer ")
		if token, _, err := jwt.NewParser().ParseUnverified(raw, jwt.MapClaims{}); err == nil {
			if sub, err := token.Claims.GetSubject(); err == nil && sub != "" {
				return "sub:" + sub
			}
		}
	}

	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if first = strings.TrimSpace(first); first != "" {
			return "ip:" + first
		}
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return "ip:" + r.RemoteAddr
	}
	return "ip:" + host
}
