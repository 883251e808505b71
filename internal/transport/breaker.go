package transport

import (
	"errors"
	"sync"
	"time"
)

// ErrUploadUnavailable means the upload endpoint tripped the breaker and the
// cooldown has not elapsed.
var ErrUploadUnavailable = errors.New("transport: upload endpoint unavailable")

// Breaker guards the upload fallback against a dead endpoint: after enough
// consecutive failures it rejects attempts outright until a cooldown passes,
// then lets a single probe through.
type Breaker struct {
	mu        sync.Mutex
	failures  int
	threshold int
	cooldown  time.Duration
	openedAt  time.Time
	probing   bool
	now       func() time.Time
}

// NewBreaker creates a breaker tripping after threshold consecutive failures.
func NewBreaker(threshold int, cooldown time.Duration) *Breaker {
	if threshold <= 0 {
		threshold = 3
	}
	if cooldown <= 0 {
		cooldown = 30 * time.Second
	}
	return &Breaker{threshold: threshold, cooldown: cooldown, now: time.Now}
}

// Allow reports whether an attempt may proceed.
func (b *Breaker) Allow() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.failures < b.threshold {
		return nil
	}
	if b.now().Sub(b.openedAt) < b.cooldown {
		return ErrUploadUnavailable
	}
	// Cooldown elapsed: admit one probe at a time.
	if b.probing {
		return ErrUploadUnavailable
	}
	b.probing = true
	return nil
}

// Record feeds the attempt outcome back.
func (b *Breaker) Record(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.probing = false
	if err == nil {
		b.failures = 0
		return
	}
	b.failures++
	if b.failures >= b.threshold {
		b.openedAt = b.now()
	}
}

// Open reports whether the breaker is currently rejecting attempts.
func (b *Breaker) Open() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.failures >= b.threshold && b.now().Sub(b.openedAt) < b.cooldown
}
