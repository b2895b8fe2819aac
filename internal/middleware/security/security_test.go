package security

import (
	"bytes"
	"crypto/tls"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHeadersMiddleware(t *testing.T) {
	h := NewHeadersMiddleware(DefaultHeadersConfig()).Middleware(
		http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))
	assert.Contains(t, rec.Header().Get("Content-Security-Policy"), "script-src 'self';")
	assert.Empty(t, rec.Header().Get("Strict-Transport-Security"))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.TLS = &tls.ConnectionState{}
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, "max-age=31536000; includeSubDomains; preload", rec.Header().Get("Strict-Transport-Security"))
}

func TestInspect(t *testing.T) {
	d := NewDetector()
	tests := []struct {
		name   string
		method string
		target string
		ua     string
		want   bool
	}{
		{"plain api call", http.MethodGet, "/api/budgets", "curl/8.5.0", false},
		{"path traversal", http.MethodGet, "/static/../.env", "", true},
		{"wordpress admin path", http.MethodGet, "/wp-admin/", "", true},
		{"file path in query", http.MethodGet, "/api/expenses?category=../../etc/passwd", "", true},
		{"scanner agent", http.MethodGet, "/", "sqlmap/1.7", true},
		{"trace method", "TRACE", "/", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.target, nil)
			req.Header.Set("User-Agent", tt.ua)
			assert.Equal(t, tt.want, d.Inspect(req) != "")
		})
	}
	assert.Equal(t, int64(5), d.Stats().Suspicious)
}

func TestExtractClientIP(t *testing.T) {
	d := NewDetector()

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.0.0.5:1234"
	req.Header.Set("X-Forwarded-For", "203.0.113.9, 10.0.0.5")
	assert.Equal(t, "203.0.113.9", d.ExtractClientIP(req))

	// Forwarded headers from untrusted peers are ignored.
	req.RemoteAddr = "198.51.100.7:1234"
	assert.Equal(t, "198.51.100.7", d.ExtractClientIP(req))

	require.NoError(t, d.AddTrustedProxy("198.51.100.0/24"))
	assert.Equal(t, "203.0.113.9", d.ExtractClientIP(req))
	assert.Error(t, d.AddTrustedProxy("nope"))
}

func TestInspectReasons(t *testing.T) {
	d := NewDetector()

	req := httptest.NewRequest(http.MethodGet, "/api/expenses?category=1%20UNION%20SELECT%20password", nil)
	assert.Equal(t, ReasonQueryScan, d.Inspect(req))

	req = httptest.NewRequest(http.MethodGet, "/api/budgets", nil)
	req.Header.Set("X-Forwarded-For", "1.1.1.1, 2.2.2.2, 3.3.3.3, 4.4.4.4, 5.5.5.5, 6.6.6.6")
	assert.Equal(t, ReasonProxyChain, d.Inspect(req))

	req = httptest.NewRequest(http.MethodGet, "/api/budgets?q="+strings.Repeat("a", 2100), nil)
	assert.Equal(t, ReasonOversizedURL, d.Inspect(req))

	req = httptest.NewRequest(http.MethodGet, "/index.php", nil)
	assert.Equal(t, ReasonPathScan, d.Inspect(req))

	assert.Equal(t, int64(4), d.Stats().Suspicious)
}

func TestExtractClientIPSkipsTrustedHops(t *testing.T) {
	d := NewDetector()

	// A spoofed left-most entry is ignored in favour of the address the
	// trusted proxy actually saw.
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.0.0.5:1234"
	req.Header.Set("X-Forwarded-For", "6.6.6.6, 203.0.113.9, 192.168.1.1")
	assert.Equal(t, "203.0.113.9", d.ExtractClientIP(req))

	req.Header.Del("X-Forwarded-For")
	req.Header.Set("X-Real-IP", "203.0.113.10")
	assert.Equal(t, "203.0.113.10", d.ExtractClientIP(req))

	req.RemoteAddr = "[::1]:8080"
	req.Header.Del("X-Real-IP")
	assert.Equal(t, "::1", d.ExtractClientIP(req))

	req.RemoteAddr = "not-an-address"
	assert.Equal(t, "not-an-address", d.ExtractClientIP(req))
	assert.Equal(t, int64(1), d.Stats().InvalidRemoteAddr)
}

func TestDetectorMiddlewareLogs(t *testing.T) {
	var buf bytes.Buffer
	d := NewDetector()
	called := false
	h := d.Middleware(slog.New(slog.NewTextHandler(&buf, nil)))(
		http.HandlerFunc(func(http.ResponseWriter, *http.Request) { called = true }))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/.git/config", nil))
	assert.True(t, called)
	assert.Contains(t, buf.String(), "Suspicious request detected")
	assert.Contains(t, buf.String(), "reason=path_scan")
}
