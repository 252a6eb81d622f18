package server

import (
	"net/http"
	"sync"

	"golang.org/x/time/rate"

	"github.com/ticobot/ticobot/config"
)

const versionHeader = "X-TicoBot-Version"

// SendVersion is a middleware that adds the current version to the response
func SendVersion(next http.Handler) http.Handler {
	fn := func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if w.Header().Get(versionHeader) == "" {
			w.Header().Add(
				versionHeader,
				config.VersionString,
			)
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	}
	return http.HandlerFunc(fn)
}

// LimitContentLength rejects request bodies larger than maxBytes.
func LimitContentLength(maxBytes int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.ContentLength > maxBytes {
				http.Error(
					w,
					http.StatusText(http.StatusRequestEntityTooLarge),
					http.StatusRequestEntityTooLarge,
				)
				return
			}
			r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
			next.ServeHTTP(w, r)
		})
	}
}

// clientRateLimiter keeps one token bucket per client address. Entries are
// never evicted; the client keyspace is bounded by RealIP.
type clientRateLimiter struct {
	rate  rate.Limit
	burst int

	mu      sync.Mutex
	clients map[string]*rate.Limiter
}

func newClientRateLimiter(requestsPerSecond float64, burst int) *clientRateLimiter {
	return &clientRateLimiter{
		rate:    rate.Limit(requestsPerSecond),
		burst:   burst,
		clients: make(map[string]*rate.Limiter),
	}
}

func (l *clientRateLimiter) Allow(clientAddr string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	limiter, ok := l.clients[clientAddr]
	if !ok {
		limiter = rate.NewLimiter(l.rate, l.burst)
		l.clients[clientAddr] = limiter
	}

	return limiter.Allow()
}

// RateLimit applies a per-client token bucket, keyed by the RealIP-resolved
// remote address.
func RateLimit(cfg *config.Config) func(http.Handler) http.Handler {
	limiter := newClientRateLimiter(cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !limiter.Allow(r.RemoteAddr) {
				http.Error(
					w,
					http.StatusText(http.StatusTooManyRequests),
					http.StatusTooManyRequests,
				)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
