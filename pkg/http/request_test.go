package http_test

import (
	"net/http/httptest"
	"testing"

	pkghttp "github.com/BradenHooton/medalroll/pkg/http"
	"github.com/stretchr/testify/assert"
)

func TestExtractClientIP(t *testing.T) {
	trusted := &pkghttp.IPConfig{
		TrustedProxies: []string{"10.0.0.0/8", "::1/128", "not-a-cidr"},
		EdgeHeader:     "CF-Connecting-IP",
	}

	tests := []struct {
		name       string
		remoteAddr string
		headers    map[string]string
		config     *pkghttp.IPConfig
		expected   string
	}{
		{
			name:       "direct client cannot spoof forwarding headers",
			remoteAddr: "203.0.113.10:54321",
			headers:    map[string]string{"X-Forwarded-For": "127.0.0.1", "X-Real-IP": "192.168.1.1", "CF-Connecting-IP": "1.1.1.1"},
			config:     trusted,
			expected:   "203.0.113.10",
		},
		{
			name:       "nil config only trusts RemoteAddr",
			remoteAddr: "203.0.113.10:54321",
			headers:    map[string]string{"X-Forwarded-For": "1.2.3.4"},
			expected:   "203.0.113.10",
		},
		{
			name:       "trusted proxy uses first valid forwarded address",
			remoteAddr: "10.0.0.5:443",
			headers:    map[string]string{"X-Forwarded-For": "garbage, 203.0.113.42, 10.0.0.5"},
			config:     trusted,
			expected:   "203.0.113.42",
		},
		{
			name:       "trusted proxy falls back to X-Real-IP",
			remoteAddr: "10.0.0.5:443",
			headers:    map[string]string{"X-Real-IP": "203.0.113.43"},
			config:     trusted,
			expected:   "203.0.113.43",
		},
		{
			name:       "trusted proxy falls back to edge header",
			remoteAddr: "10.0.0.5:443",
			headers:    map[string]string{"CF-Connecting-IP": "2001:db8::7"},
			config:     trusted,
			expected:   "2001:db8::7",
		},
		{
			name:       "trusted IPv6 proxy",
			remoteAddr: "[::1]:54321",
			headers:    map[string]string{"X-Forwarded-For": "2001:db8::1"},
			config:     trusted,
			expected:   "2001:db8::1",
		},
		{
			name:       "trusted proxy without headers uses RemoteAddr",
			remoteAddr: "10.0.0.5:443",
			config:     trusted,
			expected:   "10.0.0.5",
		},
		{
			name:       "RemoteAddr without port",
			remoteAddr: "198.51.100.2",
			config:     trusted,
			expected:   "198.51.100.2",
		},
		{
			name:     "nothing known",
			config:   trusted,
			expected: "unknown",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/", nil)
			req.RemoteAddr = tt.remoteAddr
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}

			assert.Equal(t, tt.expected, pkghttp.ExtractClientIP(req, tt.config))
		})
	}
}
