package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClientIP_IgnoresForwardedForByDefault(t *testing.T) {
	t.Setenv("TRUST_PROXY", "")

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "203.0.113.7:51234"
	req.Header.Set("X-Forwarded-For", "10.0.0.1")

	assert.Equal(t, "203.0.113.7", clientIP(req))
}

func TestClientIP_HonorsForwardedForBehindProxy(t *testing.T) {
	t.Setenv("TRUST_PROXY", "true")

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "127.0.0.1:8080"
	req.Header.Set("X-Forwarded-For", "198.51.100.4, 10.0.0.1")

	assert.Equal(t, "198.51.100.4", clientIP(req))
}

func TestClientIP_FallsBackToRemoteAddr(t *testing.T) {
	t.Setenv("TRUST_PROXY", "true")

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "203.0.113.7:51234"

	assert.Equal(t, "203.0.113.7", clientIP(req))
}
