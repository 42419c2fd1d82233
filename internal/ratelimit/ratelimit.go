// Package ratelimit provides a keyed token-bucket rate limiter. The
// server uses it to slow down credential guessing on the auth
// endpoints, keyed by client IP.
package ratelimit

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// sweepInterval is how often idle buckets are removed.
const sweepInterval = 5 * time.Minute

// maxIdle is how long a key may go unused before its bucket is
// forgotten. A forgotten key starts over with a full bucket, which is
// the right behavior for a client that has been quiet that long.
const maxIdle = 10 * time.Minute

// entry pairs a limiter with its last use so idle keys can be swept.
type entry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// KeyedLimiter manages per-key rate limiting.
// Each unique key gets its own independent token bucket.
type KeyedLimiter struct {
	mu      sync.Mutex
	entries map[string]*entry
	limit   rate.Limit
	burst   int

	done     chan struct{}
	stopOnce sync.Once
}

// New creates a keyed limiter allowing rps requests per second with the
// given burst per key. Stop it when done to end the sweeper goroutine.
func New(rps float64, burst int) *KeyedLimiter {
	kl := &KeyedLimiter{
		entries: make(map[string]*entry),
		limit:   rate.Limit(rps),
		burst:   burst,
		done:    make(chan struct{}),
	}

	go kl.sweep()

	return kl
}

// Allow reports whether a request for the given key should be allowed.
// Returns immediately without blocking; denied requests get a 429 from
// the caller rather than queueing up here.
func (kl *KeyedLimiter) Allow(key string) bool {
	kl.mu.Lock()
	defer kl.mu.Unlock()

	e, ok := kl.entries[key]
	if !ok {
		e = &entry{limiter: rate.NewLimiter(kl.limit, kl.burst)}
		kl.entries[key] = e
	}
	e.lastSeen = time.Now()

	return e.limiter.Allow()
}

// Stop shuts down the sweeper goroutine.
// Safe to call multiple times.
func (kl *KeyedLimiter) Stop() {
	kl.stopOnce.Do(func() {
		close(kl.done)
	})
}

// sweep periodically drops buckets that haven't been touched in a
// while. Without this, one bucket per client IP accumulates forever.
func (kl *KeyedLimiter) sweep() {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-kl.done:
			return
		case <-ticker.C:
			kl.sweepOnce(time.Now())
		}
	}
}

// sweepOnce removes entries idle since before now - maxIdle.
func (kl *KeyedLimiter) sweepOnce(now time.Time) {
	kl.mu.Lock()
	defer kl.mu.Unlock()

	for key, e := range kl.entries {
		if now.Sub(e.lastSeen) > maxIdle {
			delete(kl.entries, key)
		}
	}
}

// size returns the number of live buckets.
func (kl *KeyedLimiter) size() int {
	kl.mu.Lock()
	defer kl.mu.Unlock()
	return len(kl.entries)
}
