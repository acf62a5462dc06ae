// Package ratelimit throttles MCP tool calls with one token bucket per tool.
package ratelimit

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

// ErrLimited is returned when a tool has no tokens left.
var ErrLimited = errors.New("rate limit exceeded")

// Bucket is a token bucket. It starts full and refills at Rate tokens per
// second up to Burst. It is safe for concurrent use.
type Bucket struct {
	mu     sync.Mutex
	rate   float64
	burst  float64
	tokens float64
	last   time.Time
	now    func() time.Time
}

// NewBucket returns a full bucket.
func NewBucket(rate float64, burst int) *Bucket {
	b := &Bucket{rate: rate, burst: float64(burst), now: time.Now}
	b.tokens = b.burst
	b.last = b.now()
	return b
}

// Take consumes one token and reports whether one was available.
func (b *Bucket) Take() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := b.now()
	if dt := now.Sub(b.last).Seconds(); dt > 0 {
		b.tokens = min(b.burst, b.tokens+dt*b.rate)
		b.last = now
	}
	if b.tokens < 1 {
		return false
	}
	b.tokens--
	return true
}

// Tools maps a tool name to its bucket. Tools without a bucket are unlimited.
type Tools map[string]*Bucket

// DefaultTools returns the limits of the echonull MCP tools. A sweep writes a
// full output tree, so it is limited far tighter than the read-only tools.
func DefaultTools() Tools {
	return Tools{
		"echonull_sweep":   NewBucket(6.0/60.0, 2), // 6/minute
		"echonull_verify":  NewBucket(1.0, 10),     // 60/minute
		"echonull_history": NewBucket(1.0, 10),     // 60/minute
	}
}

// Check consumes a token for tool and wraps ErrLimited when none is left.
func (t Tools) Check(tool string) error {
	b, ok := t[tool]
	if !ok {
		return nil
	}
	if !b.Take() {
		return fmt.Errorf("%w for %s, try again shortly", ErrLimited, tool)
	}
	return nil
}
