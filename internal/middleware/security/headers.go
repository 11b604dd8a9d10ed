package security

import (
	"fmt"
	"net/http"
	"strings"
)

// HeadersConfig selects the response headers. The dashboard client and the
// JSON API get different policies: API responses never render and carry
// account data, so they are locked down and never cached.
type HeadersConfig struct {
	ClientCSP string
	APICSP    string
	// APICacheControl is set on /api responses unless the handler sets its own.
	APICacheControl string

	HSTSMaxAge            int
	HSTSIncludeSubdomains bool

	Static map[string]string
}

func DefaultHeadersConfig() HeadersConfig {
	return HeadersConfig{
		ClientCSP: strings.Join([]string{
			"default-src 'self'",
			"script-src 'self'",
			"style-src 'self' 'unsafe-inline'",
			"img-src 'self' data:",
			"connect-src 'self'",
			"font-src 'self'",
			"object-src 'none'",
			"frame-ancestors 'none'",
			"base-uri 'self'",
		}, "; "),
		APICSP:          "default-src 'none'; frame-ancestors 'none'",
		APICacheControl: "no-store",

		HSTSMaxAge:            365 * 24 * 60 * 60,
		HSTSIncludeSubdomains: true,

		Static: map[string]string{
			"X-Content-Type-Options":       "nosniff",
			"X-Frame-Options":              "DENY",
			"Referrer-Policy":              "strict-origin-when-cross-origin",
			"Permissions-Policy":           "geolocation=(), microphone=(), camera=(), payment=()",
			"Cross-Origin-Opener-Policy":   "same-origin",
			"Cross-Origin-Resource-Policy": "same-origin",
		},
	}
}

type HeadersMiddleware struct {
	config HeadersConfig
	hsts   string
}

func NewHeadersMiddleware(config HeadersConfig) *HeadersMiddleware {
	h := &HeadersMiddleware{config: config}
	if config.HSTSMaxAge > 0 {
		h.hsts = fmt.Sprintf("max-age=%d", config.HSTSMaxAge)
		if config.HSTSIncludeSubdomains {
			h.hsts += "; includeSubDomains"
		}
	}
	return h
}

func (h *HeadersMiddleware) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		headers := w.Header()
		for k, v := range h.config.Static {
			headers.Set(k, v)
		}

		if isAPI(r.URL.Path) {
			setIfNotEmpty(headers, "Content-Security-Policy", h.config.APICSP)
			setIfNotEmpty(headers, "Cache-Control", h.config.APICacheControl)
		} else {
			setIfNotEmpty(headers, "Content-Security-Policy", h.config.ClientCSP)
		}

		// HSTS only means something over TLS.
		if r.TLS != nil && h.hsts != "" {
			headers.Set("Strict-Transport-Security", h.hsts)
		}
		next.ServeHTTP(w, r)
	})
}

func isAPI(path string) bool {
	return path == "/api" || strings.HasPrefix(path, "/api/")
}

func setIfNotEmpty(h http.Header, key, value string) {
	if value != "" {
		h.Set(key, value)
	}
}

// StaticAssetMiddleware adds caching headers for the client build. HTML is
// never cached so a new build is picked up on the next load; hashed assets
// are cached for maxAge seconds.
func StaticAssetMiddleware(maxAge int) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch {
			case r.URL.Path == "/" || strings.HasSuffix(r.URL.Path, ".html"):
				w.Header().Set("Cache-Control", "no-cache")
			case maxAge > 0:
				w.Header().Set("Cache-Control", fmt.Sprintf("public, max-age=%d, immutable", maxAge))
			}
			next.ServeHTTP(w, r)
		})
	}
}
