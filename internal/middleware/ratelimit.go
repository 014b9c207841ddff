package middleware

import (
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const (
	DefaultRateLimitRPM           = 100
	DefaultAuthRateLimitRPM       = 10
	DefaultGenerationRateLimitRPM = 10
)

// generationPaths are the routes that call the text-generation service.
var generationPaths = []string{"/specs/generate", "/specs/refine", "/code-stubs"}

type clientLimiter struct {
	general    *rate.Limiter
	auth       *rate.Limiter
	generation *rate.Limiter
	lastSeen   time.Time
}

// RateLimitMiddleware keeps three per-client token buckets: auth routes,
// generation routes and everything else. A negative RPM disables a bucket;
// zero selects its default.
type RateLimitMiddleware struct {
	generalRPM    int
	authRPM       int
	generationRPM int
	apiPrefix     string
	mu            sync.Mutex
	clients       map[string]*clientLimiter
}

func NewRateLimitMiddleware(generalRPM int, authRPM int, generationRPM int, apiPrefix string) *RateLimitMiddleware {
	if generalRPM == 0 {
		generalRPM = DefaultRateLimitRPM
	}
	if authRPM == 0 {
		authRPM = DefaultAuthRateLimitRPM
	}
	if generationRPM == 0 {
		generationRPM = DefaultGenerationRateLimitRPM
	}

	return &RateLimitMiddleware{
		generalRPM:    generalRPM,
		authRPM:       authRPM,
		generationRPM: generationRPM,
		apiPrefix:     strings.ToLower(strings.TrimRight(apiPrefix, "/")),
		clients:       map[string]*clientLimiter{},
	}
}

func (m *RateLimitMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := m.routePath(r.URL.Path)
		if path == "/health" {
			next.ServeHTTP(w, r)
			return
		}

		limiter := m.getLimiter(extractClientIP(r))

		target := limiter.general
		switch {
		case strings.HasPrefix(path, "/auth"):
			target = limiter.auth
		case isGenerationPath(path):
			target = limiter.generation
		}

		if target != nil && !target.Allow() {
			w.Header().Set("Retry-After", "60")
			writeErrorJSON(w, http.StatusTooManyRequests, "RATE_LIMITED", "Too many requests")
			return
		}

		next.ServeHTTP(w, r)
	})
}

// routePath lowercases the path and strips the API prefix so prefixed and
// root-mounted routes share buckets.
func (m *RateLimitMiddleware) routePath(raw string) string {
	path := strings.ToLower(raw)
	if m.apiPrefix != "" && (path == m.apiPrefix || strings.HasPrefix(path, m.apiPrefix+"/")) {
		path = strings.TrimPrefix(path, m.apiPrefix)
	}
	if path == "" {
		path = "/"
	}
	return path
}

func isGenerationPath(path string) bool {
	for _, prefix := range generationPaths {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}

func (m *RateLimitMiddleware) getLimiter(clientIP string) *clientLimiter {
	m.mu.Lock()
	defer m.mu.Unlock()

	if limiter, exists := m.clients[clientIP]; exists {
		limiter.lastSeen = time.Now()
		m.gcLocked()
		return limiter
	}

	created := &clientLimiter{
		general:    newLimiter(m.generalRPM),
		auth:       newLimiter(m.authRPM),
		generation: newLimiter(m.generationRPM),
		lastSeen:   time.Now(),
	}
	m.clients[clientIP] = created
	m.gcLocked()

	return created
}

func newLimiter(rpm int) *rate.Limiter {
	if rpm < 0 {
		return nil
	}
	return rate.NewLimiter(rate.Every(time.Minute/time.Duration(rpm)), rpm)
}

func (m *RateLimitMiddleware) gcLocked() {
	if len(m.clients) < 1000 {
		return
	}

	cutoff := time.Now().Add(-10 * time.Minute)
	for ip, limiter := range m.clients {
		if limiter.lastSeen.Before(cutoff) {
			delete(m.clients, ip)
		}
	}
}

// extractClientIP returns the peer host. Forwarding headers are applied by
// RealIP, and only for trusted proxies.
func extractClientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(strings.TrimSpace(r.RemoteAddr))
	if err == nil && host != "" {
		return host
	}

	if strings.TrimSpace(r.RemoteAddr) == "" {
		return "unknown"
	}

	return r.RemoteAddr
}
