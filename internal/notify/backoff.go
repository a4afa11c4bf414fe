package notify

import (
	"math/rand/v2"
	"sync"
	"time"
)

// BackoffConfig bounds the retry delay after a failed webhook post.
type BackoffConfig struct {
	Initial time.Duration
	Max     time.Duration
	Jitter  float64 // fraction of the delay, 0 to 1
}

// DefaultBackoffConfig suits the Discord webhook rate limits.
var DefaultBackoffConfig = BackoffConfig{
	Initial: time.Second,
	Max:     5 * time.Minute,
	Jitter:  0.2,
}

// Backoff doubles the delay on every failure until Reset.
type Backoff struct {
	cfg BackoffConfig

	mu       sync.Mutex
	attempts int
	rng      *rand.Rand
}

// NewBackoff returns a Backoff with a random jitter source.
func NewBackoff(cfg BackoffConfig) *Backoff {
	return NewBackoffWithSeed(cfg, rand.Uint64())
}

// NewBackoffWithSeed returns a Backoff whose jitter is reproducible.
func NewBackoffWithSeed(cfg BackoffConfig, seed uint64) *Backoff {
	if cfg.Initial <= 0 {
		cfg.Initial = DefaultBackoffConfig.Initial
	}
	if cfg.Max < cfg.Initial {
		cfg.Max = cfg.Initial
	}
	return &Backoff{cfg: cfg, rng: rand.New(rand.NewPCG(seed, seed>>1))}
}

// Next records a failure and returns how long to hold the queue.
// A positive retryAfter from the server wins over the computed delay.
func (b *Backoff) Next(retryAfter time.Duration) time.Duration {
	b.mu.Lock()
	defer b.mu.Unlock()

	attempt := b.attempts
	b.attempts++
	if retryAfter > 0 {
		return retryAfter
	}

	delay := b.cfg.Initial
	for i := 0; i < attempt && delay < b.cfg.Max; i++ {
		delay *= 2
	}
	delay = min(delay, b.cfg.Max)

	if b.cfg.Jitter > 0 {
		delay += time.Duration(float64(delay) * b.cfg.Jitter * (b.rng.Float64()*2 - 1))
	}
	return max(delay, 0)
}

// Attempts returns the failures since the last Reset.
func (b *Backoff) Attempts() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.attempts
}

// Reset clears the failure count after a successful post.
func (b *Backoff) Reset() {
	b.mu.Lock()
	b.attempts = 0
	b.mu.Unlock()
}
