// internal/handlers/ratelimit.go
package handlers

import (
	"net"
	"net/http"
	"sync"
	"time"
)

// Admission decides whether an inbound request may proceed. A nil Admission
// on the Server admits everything.
type Admission interface {
	Allow(r *http.Request) bool
}

// TokenBucketAdmission is a per-client-IP token bucket: Burst tokens,
// refilled at Rate tokens per second. Stale buckets are pruned lazily.
type TokenBucketAdmission struct {
	Rate  float64
	Burst float64

	mu      sync.Mutex
	buckets map[string]*bucket
}

type bucket struct {
	tokens   float64
	lastSeen time.Time
}

// NewTokenBucketAdmission builds an admission gate allowing burst requests
// immediately and rate requests per second sustained.
func NewTokenBucketAdmission(rate, burst float64) *TokenBucketAdmission {
	return &TokenBucketAdmission{
		Rate:    rate,
		Burst:   burst,
		buckets: make(map[string]*bucket),
	}
}

// Allow takes one token from the caller's bucket, refilling by elapsed time
// first. Returns false when the bucket is empty.
func (a *TokenBucketAdmission) Allow(r *http.Request) bool {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	now := time.Now()
	b, ok := a.buckets[host]
	if !ok {
		b = &bucket{tokens: a.Burst, lastSeen: now}
		a.buckets[host] = b
	} else {
		elapsed := now.Sub(b.lastSeen).Seconds()
		b.tokens += elapsed * a.Rate
		if b.tokens > a.Burst {
			b.tokens = a.Burst
		}
		b.lastSeen = now
	}

	if len(a.buckets) > 10000 {
		a.pruneLocked(now)
	}

	if b.tokens < 1 {
		return false
	}
	b.tokens--
	return true
}

// pruneLocked drops buckets idle long enough to be full again.
func (a *TokenBucketAdmission) pruneLocked(now time.Time) {
	idle := time.Duration(a.Burst/a.Rate) * time.Second
	for host, b := range a.buckets {
		if now.Sub(b.lastSeen) > idle {
			delete(a.buckets, host)
		}
	}
}
