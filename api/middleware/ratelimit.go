package middleware

import (
	"net"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// clientLimiter tracks one client's limiter and its last use, so idle
// entries can be evicted.
type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimit returns a middleware that limits requests per client IP
func RateLimit(perSecond float64, burst int, logger *zap.Logger) func(next http.Handler) http.Handler {
	var (
		mu      sync.Mutex
		clients = make(map[string]*clientLimiter)
	)

	// Evict clients idle for more than three minutes
	go func() {
		for range time.Tick(time.Minute) {
			mu.Lock()
			for ip, c := range clients {
				if time.Since(c.lastSeen) > 3*time.Minute {
					delete(clients, ip)
				}
			}
			mu.Unlock()
		}
	}()

	return func(next http.Handler) http.Handler {
		fn := func(w http.ResponseWriter, r *http.Request) {
			ip, _, err := net.SplitHostPort(r.RemoteAddr)
			if err != nil {
				ip = r.RemoteAddr
			}

			mu.Lock()
			c, ok := clients[ip]
			if !ok {
				c = &clientLimiter{limiter: rate.NewLimiter(rate.Limit(perSecond), burst)}
				clients[ip] = c
			}
			c.lastSeen = time.Now()
			allowed := c.limiter.Allow()
			mu.Unlock()

			if !allowed {
				logger.Warn("rate limit exceeded",
					zap.String("ip", ip),
					zap.String("path", r.URL.Path),
				)
				http.Error(w, http.StatusText(http.StatusTooManyRequests), http.StatusTooManyRequests)
				return
			}

			next.ServeHTTP(w, r)
		}

		return http.HandlerFunc(fn)
	}
}
