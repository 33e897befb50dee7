package resilience

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/emberwick/everloom/internal/observe"
	"github.com/emberwick/everloom/pkg/provider/llm"
)

// ErrAllBackendsFailed is returned when every backend in a Chain failed or
// had an open breaker.
var ErrAllBackendsFailed = errors.New("resilience: all backends failed")

// entry pairs a named backend with its dedicated breaker.
type entry struct {
	name     string
	provider llm.Provider
	breaker  *Breaker
}

// Chain implements llm.Provider with automatic failover: backends are tried
// in registration order, each guarded by its own circuit breaker, and every
// attempt is recorded in the provider metrics.
type Chain struct {
	entries []entry
	cfg     BreakerConfig
	metrics *observe.Metrics
}

var _ llm.Provider = (*Chain)(nil)

// NewChain returns a Chain with primary as the preferred backend. Metrics may
// be nil; observe.DefaultMetrics is used then.
func NewChain(primaryName string, primary llm.Provider, cfg BreakerConfig, metrics *observe.Metrics) *Chain {
	if metrics == nil {
		metrics = observe.DefaultMetrics()
	}
	c := &Chain{cfg: cfg, metrics: metrics}
	c.Add(primaryName, primary)
	return c
}

// Add appends a fallback backend. Fallbacks are tried in the order added.
func (c *Chain) Add(name string, provider llm.Provider) {
	c.entries = append(c.entries, entry{
		name:     name,
		provider: provider,
		breaker:  NewBreaker(name, c.cfg),
	})
}

// do walks the chain until fn succeeds against a backend.
func (c *Chain) do(ctx context.Context, fn func(llm.Provider) error) error {
	var lastErr error
	for i := range c.entries {
		e := &c.entries[i]
		err := e.breaker.Do(func() error {
			return fn(e.provider)
		})
		if err == nil {
			c.metrics.RecordProviderRequest(ctx, e.name, nil)
			return nil
		}
		lastErr = err
		if errors.Is(err, ErrBreakerOpen) {
			slog.Debug("skipping backend, breaker open", "backend", e.name)
			continue
		}
		c.metrics.RecordProviderRequest(ctx, e.name, err)
		if ctx.Err() != nil {
			// The caller is gone; later backends would fail the same way.
			return err
		}
		slog.Warn("backend failed, trying next", "backend", e.name, "error", err)
	}
	return fmt.Errorf("%w: %v", ErrAllBackendsFailed, lastErr)
}

// Complete sends the request to the first healthy backend.
func (c *Chain) Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	var resp *llm.CompletionResponse
	err := c.do(ctx, func(p llm.Provider) error {
		var innerErr error
		resp, innerErr = p.Complete(ctx, req)
		return innerErr
	})
	if err != nil {
		return nil, err
	}
	return resp, nil
}

// CountTokens delegates to the first healthy backend's token counter.
func (c *Chain) CountTokens(messages []llm.Message) (int, error) {
	var n int
	err := c.do(context.Background(), func(p llm.Provider) error {
		var innerErr error
		n, innerErr = p.CountTokens(messages)
		return innerErr
	})
	if err != nil {
		return 0, err
	}
	return n, nil
}

// Check reports whether at least one backend would currently accept a
// request, i.e. not every breaker is open. It probes no backend; readiness
// endpoints call this on every scrape.
func (c *Chain) Check(_ context.Context) error {
	for i := range c.entries {
		if !c.entries[i].breaker.Open() {
			return nil
		}
	}
	return fmt.Errorf("%w: every breaker is open", ErrAllBackendsFailed)
}

// Capabilities returns the primary's capabilities. Static metadata does not
// participate in failover.
func (c *Chain) Capabilities() llm.ModelCapabilities {
	if len(c.entries) > 0 {
		return c.entries[0].provider.Capabilities()
	}
	return llm.ModelCapabilities{}
}
