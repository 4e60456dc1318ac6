package session

import (
	"sync"
	"time"
)

type BreakerState int

const (
	BreakerClosed BreakerState = iota
	BreakerOpen
	BreakerHalfOpen
)

func (s BreakerState) String() string {
	switch s {
	case BreakerOpen:
		return "open"
	case BreakerHalfOpen:
		return "half-open"
	default:
		return "closed"
	}
}

type BreakerConfig struct {
	MaxFailures       int           `json:"max_failures"`
	Timeout           time.Duration `json:"timeout"`
	HalfOpenSuccesses int           `json:"half_open_successes"`
}

func DefaultBreakerConfig() *BreakerConfig {
	return &BreakerConfig{
		MaxFailures:       5,
		Timeout:           30 * time.Second,
		HalfOpenSuccesses: 2,
	}
}

// Breaker stops calling a failing store for Timeout after MaxFailures
// consecutive failures. While open, calls fail with ErrStoreUnavailable.
type Breaker struct {
	mu        sync.Mutex
	state     BreakerState
	failures  int
	successes int
	openedAt  time.Time

	maxFailures       int
	timeout           time.Duration
	halfOpenSuccesses int
	now               func() time.Time
}

func NewBreaker(config *BreakerConfig) *Breaker {
	if config == nil {
		config = DefaultBreakerConfig()
	}
	return &Breaker{
		state:             BreakerClosed,
		maxFailures:       max(config.MaxFailures, 1),
		timeout:           config.Timeout,
		halfOpenSuccesses: max(config.HalfOpenSuccesses, 1),
		now:               time.Now,
	}
}

func (b *Breaker) Execute(fn func() error) error {
	if !b.allow() {
		return ErrStoreUnavailable
	}
	err := fn()
	b.record(err)
	return err
}

func (b *Breaker) allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case BreakerOpen:
		if b.now().Sub(b.openedAt) < b.timeout {
			return false
		}
		b.state = BreakerHalfOpen
		b.successes = 0
		return true
	default:
		return true
	}
}

func (b *Breaker) record(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err != nil {
		b.failures++
		if b.state == BreakerHalfOpen || b.failures >= b.maxFailures {
			b.state = BreakerOpen
			b.openedAt = b.now()
			b.successes = 0
		}
		return
	}

	switch b.state {
	case BreakerClosed:
		b.failures = 0
	case BreakerHalfOpen:
		b.successes++
		if b.successes >= b.halfOpenSuccesses {
			b.state = BreakerClosed
			b.failures = 0
			b.successes = 0
		}
	}
}

func (b *Breaker) State() BreakerState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

func (b *Breaker) Stats() map[string]interface{} {
	b.mu.Lock()
	defer b.mu.Unlock()

	return map[string]interface{}{
		"state":           b.state.String(),
		"failure_count":   b.failures,
		"success_count":   b.successes,
		"max_failures":    b.maxFailures,
		"timeout_seconds": b.timeout.Seconds(),
	}
}
