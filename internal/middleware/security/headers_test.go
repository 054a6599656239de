package security

import (
	"crypto/tls"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestHeadersMiddleware(t *testing.T) {
	h := NewHeadersMiddleware(DefaultHeadersConfig()).Middleware(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/categories", nil))

	for key, want := range map[string]string{
		"X-Content-Type-Options":  "nosniff",
		"X-Frame-Options":         "DENY",
		"Content-Security-Policy": "default-src 'none'; frame-ancestors 'none'",
		"Cache-Control":           "no-store",
	} {
		if got := rr.Header().Get(key); got != want {
			t.Errorf("%s = %q, want %q", key, got, want)
		}
	}
	if rr.Header().Get("Strict-Transport-Security") != "" {
		t.Error("HSTS must not be sent over plain HTTP")
	}

	rr = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/categories", nil)
	req.TLS = &tls.ConnectionState{}
	h.ServeHTTP(rr, req)
	if got := rr.Header().Get("Strict-Transport-Security"); got != "max-age=31536000; includeSubDomains" {
		t.Errorf("HSTS = %q", got)
	}
}

func TestClientIPExtract(t *testing.T) {
	c := NewClientIP()
	if err := c.AddTrustedProxy("203.0.113.0/24"); err != nil {
		t.Fatal(err)
	}
	if err := c.AddTrustedProxy("nonsense"); err == nil {
		t.Fatal("AddTrustedProxy accepted an invalid CIDR")
	}

	tests := []struct {
		name   string
		remote string
		xff    string
		xri    string
		want   string
	}{
		{"direct public peer", "198.51.100.7:5000", "1.2.3.4", "", "198.51.100.7"},
		{"trusted proxy forwards", "127.0.0.1:5000", "1.2.3.4, 10.0.0.2", "", "1.2.3.4"},
		{"trusted proxy real ip", "10.0.0.5:5000", "", "5.6.7.8", "5.6.7.8"},
		{"custom proxy range", "203.0.113.9:5000", "9.9.9.9", "", "9.9.9.9"},
		{"garbage header", "127.0.0.1:5000", "not-an-ip", "", "127.0.0.1"},
		{"no port", "192.168.1.2", "", "", "192.168.1.2"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			r.RemoteAddr = tt.remote
			if tt.xff != "" {
				r.Header.Set("X-Forwarded-For", tt.xff)
			}
			if tt.xri != "" {
				r.Header.Set("X-Real-IP", tt.xri)
			}
			if got := c.Extract(r); got != tt.want {
				t.Errorf("Extract() = %q, want %q", got, tt.want)
			}
		})
	}
}
