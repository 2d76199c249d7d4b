package httpapi

import (
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"
)

type RateLimitConfig struct {
	IPPerMinute     int
	IPBurst         int
	PublicPerMinute int
	PublicBurst     int
}

// RateLimiter applies a token bucket per client IP, and a stricter one on
// the public voucher routes.
type RateLimiter struct {
	ipLimiter     *tokenLimiter
	publicLimiter *tokenLimiter
}

func NewRateLimiter(cfg RateLimitConfig) *RateLimiter {
	return &RateLimiter{
		ipLimiter:     newTokenLimiter(cfg.IPPerMinute, cfg.IPBurst),
		publicLimiter: newTokenLimiter(cfg.PublicPerMinute, cfg.PublicBurst),
	}
}

func (l *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := clientIP(r)
		if ip == "" {
			next.ServeHTTP(w, r)
			return
		}
		limiter := l.ipLimiter
		ok, wait := limiter.take(ip)
		if ok && isPublicVoucherPath(r) {
			limiter = l.publicLimiter
			ok, wait = limiter.take(ip)
		}
		if !ok {
			w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(wait.Seconds()))))
			writeError(w, requestIDFromRequest(r), http.StatusTooManyRequests, "rate_limited", "too many requests")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// pruneEvery is the number of takes between sweeps of idle buckets.
const pruneEvery = 1024

type tokenLimiter struct {
	mu      sync.Mutex
	rate    float64
	burst   float64
	buckets map[string]*bucket
	takes   int
	now     func() time.Time
}

type bucket struct {
	tokens float64
	last   time.Time
}

// refill credits the tokens earned since the last access, capped at burst.
func (b *bucket) refill(now time.Time, rate, burst float64) {
	b.tokens += now.Sub(b.last).Seconds() * rate
	if b.tokens > burst {
		b.tokens = burst
	}
	b.last = now
}

func newTokenLimiter(perMinute, burst int) *tokenLimiter {
	if perMinute <= 0 {
		perMinute = 60
	}
	if burst <= 0 {
		burst = 20
	}
	return &tokenLimiter{
		rate:    float64(perMinute) / 60.0,
		burst:   float64(burst),
		buckets: make(map[string]*bucket),
		now:     time.Now,
	}
}

func (l *tokenLimiter) allow(key string) bool {
	ok, _ := l.take(key)
	return ok
}

// take consumes one token for key. When none is left it returns how long
// until the next one is earned.
func (l *tokenLimiter) take(key string) (bool, time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	l.takes++
	if l.takes%pruneEvery == 0 {
		l.prune(now)
	}

	b, ok := l.buckets[key]
	if !ok {
		b = &bucket{tokens: l.burst, last: now}
		l.buckets[key] = b
	} else {
		b.refill(now, l.rate, l.burst)
	}
	if b.tokens < 1 {
		missing := 1 - b.tokens
		return false, time.Duration(missing / l.rate * float64(time.Second))
	}
	b.tokens--
	return true, 0
}

// prune drops buckets that have refilled completely, which behave exactly
// like a fresh bucket.
func (l *tokenLimiter) prune(now time.Time) {
	full := time.Duration(l.burst / l.rate * float64(time.Second))
	for key, b := range l.buckets {
		if now.Sub(b.last) >= full {
			delete(l.buckets, key)
		}
	}
}

func clientIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		first, _, _ := strings.Cut(forwarded, ",")
		return strings.TrimSpace(first)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
