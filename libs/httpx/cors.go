package httpx

import (
	"net/http"
	"strconv"
	"strings"
	"time"
)

// CORSPolicy defines the CORS headers to emit for matching origins.
type CORSPolicy struct {
	AllowedOrigins   []string
	AllowedMethods   []string
	AllowedHeaders   []string
	ExposedHeaders   []string
	AllowCredentials bool
	MaxAge           time.Duration
}

type corsHeaders struct {
	anyOrigin   bool
	origins     map[string]struct{}
	methods     string
	headers     string
	exposed     string
	maxAge      string
	credentials bool
}

// WithCORS answers preflights and decorates responses for allowed origins.
// An empty AllowedOrigins list disables it.
func WithCORS(cfg CORSPolicy) Middleware {
	if len(cfg.AllowedOrigins) == 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	h := compileCORS(cfg)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			if origin == "" {
				next.ServeHTTP(w, r)
				return
			}
			allowOrigin, ok := h.match(origin)
			if !ok {
				next.ServeHTTP(w, r)
				return
			}

			headers := w.Header()
			headers.Set("Access-Control-Allow-Origin", allowOrigin)
			if h.credentials {
				headers.Set("Access-Control-Allow-Credentials", "true")
			}
			if h.exposed != "" {
				headers.Set("Access-Control-Expose-Headers", h.exposed)
			}
			headers.Add("Vary", "Origin")

			if r.Method != http.MethodOptions || r.Header.Get("Access-Control-Request-Method") == "" {
				next.ServeHTTP(w, r)
				return
			}

			headers.Add("Vary", "Access-Control-Request-Method")
			headers.Add("Vary", "Access-Control-Request-Headers")
			if h.methods != "" {
				headers.Set("Access-Control-Allow-Methods", h.methods)
			}
			if h.headers != "" {
				headers.Set("Access-Control-Allow-Headers", h.headers)
			}
			if h.maxAge != "" {
				headers.Set("Access-Control-Max-Age", h.maxAge)
			}
			w.WriteHeader(http.StatusNoContent)
		})
	}
}

func compileCORS(cfg CORSPolicy) corsHeaders {
	h := corsHeaders{
		origins:     map[string]struct{}{},
		methods:     strings.Join(normalizeList(cfg.AllowedMethods), ", "),
		headers:     strings.Join(normalizeList(cfg.AllowedHeaders), ", "),
		exposed:     strings.Join(normalizeList(cfg.ExposedHeaders), ", "),
		credentials: cfg.AllowCredentials,
	}
	if secs := int(cfg.MaxAge.Seconds()); secs > 0 {
		h.maxAge = strconv.Itoa(secs)
	}
	for _, o := range normalizeList(cfg.AllowedOrigins) {
		if o == "*" {
			h.anyOrigin = true
			continue
		}
		h.origins[strings.ToLower(o)] = struct{}{}
	}
	return h
}

func (h corsHeaders) match(origin string) (string, bool) {
	if _, ok := h.origins[strings.ToLower(origin)]; ok {
		return origin, true
	}
	if h.anyOrigin {
		// a credentialed response may not use the wildcard
		if h.credentials {
			return origin, true
		}
		return "*", true
	}
	return "", false
}

func normalizeList(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if trimmed := strings.TrimSpace(v); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
