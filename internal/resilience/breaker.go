// Package resilience keeps the game playable when an LLM backend misbehaves:
// a three-state circuit breaker per backend, and a failover chain that walks
// healthy backends in preference order.
//
// All types are safe for concurrent use.
package resilience

import (
	"errors"
	"log/slog"
	"sync"
	"time"
)

// ErrBreakerOpen is returned when a breaker is open and its reset timeout has
// not yet elapsed.
var ErrBreakerOpen = errors.New("resilience: breaker open")

// breaker states.
type state int

const (
	stateClosed state = iota
	stateOpen
	stateHalfOpen
)

func (s state) String() string {
	switch s {
	case stateClosed:
		return "closed"
	case stateOpen:
		return "open"
	case stateHalfOpen:
		return "half-open"
	}
	return "unknown"
}

// BreakerConfig tunes a Breaker. Zero fields take defaults.
type BreakerConfig struct {
	// MaxFailures is how many consecutive failures trip the breaker. Default 5.
	MaxFailures int

	// ResetTimeout is how long a tripped breaker rejects calls before probing
	// again. Default 30s.
	ResetTimeout time.Duration

	// ProbeSuccesses is how many consecutive half-open successes close the
	// breaker. Default 3.
	ProbeSuccesses int
}

func (c BreakerConfig) withDefaults() BreakerConfig {
	if c.MaxFailures <= 0 {
		c.MaxFailures = 5
	}
	if c.ResetTimeout <= 0 {
		c.ResetTimeout = 30 * time.Second
	}
	if c.ProbeSuccesses <= 0 {
		c.ProbeSuccesses = 3
	}
	return c
}

// Breaker is a three-state circuit breaker (closed, open, half-open). A run
// of failures trips it open; after ResetTimeout it lets probe calls through,
// and enough consecutive probe successes close it again.
type Breaker struct {
	name string
	cfg  BreakerConfig

	mu          sync.Mutex
	state       state
	failures    int
	successes   int
	lastFailure time.Time
}

// NewBreaker returns a closed Breaker named for log messages.
func NewBreaker(name string, cfg BreakerConfig) *Breaker {
	return &Breaker{name: name, cfg: cfg.withDefaults()}
}

// Do runs fn if the breaker allows it, and folds the result into the
// breaker's state. Returns ErrBreakerOpen without calling fn when tripped.
func (b *Breaker) Do(fn func() error) error {
	if err := b.allow(); err != nil {
		return err
	}
	err := fn()
	b.observe(err)
	return err
}

func (b *Breaker) allow() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == stateOpen {
		if time.Since(b.lastFailure) < b.cfg.ResetTimeout {
			return ErrBreakerOpen
		}
		b.state = stateHalfOpen
		b.successes = 0
		slog.Info("breaker probing", "name", b.name)
	}
	return nil
}

func (b *Breaker) observe(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err != nil {
		b.lastFailure = time.Now()
		switch b.state {
		case stateHalfOpen:
			// A failed probe re-opens immediately.
			b.state = stateOpen
			slog.Warn("breaker re-opened", "name", b.name)
		case stateClosed:
			b.failures++
			if b.failures >= b.cfg.MaxFailures {
				b.state = stateOpen
				slog.Warn("breaker opened", "name", b.name, "consecutive_failures", b.failures)
			}
		}
		return
	}

	switch b.state {
	case stateHalfOpen:
		b.successes++
		if b.successes >= b.cfg.ProbeSuccesses {
			b.state = stateClosed
			b.failures = 0
			slog.Info("breaker closed", "name", b.name)
		}
	case stateClosed:
		b.failures = 0
	}
}

// Open reports whether the breaker currently rejects calls.
func (b *Breaker) Open() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state == stateOpen && time.Since(b.lastFailure) < b.cfg.ResetTimeout
}

// Reset forces the breaker back to closed.
func (b *Breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.state = stateClosed
	b.failures = 0
	b.successes = 0
}
