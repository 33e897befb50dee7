package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/emberwick/everloom/pkg/provider/llm"
	"github.com/emberwick/everloom/pkg/provider/llm/mock"
)

func TestChainFailover(t *testing.T) {
	t.Parallel()

	primary := &mock.Provider{CompleteErr: errBoom}
	backup := &mock.Provider{CompleteResponse: &llm.CompletionResponse{Content: "from backup"}}

	c := NewChain("primary", primary, BreakerConfig{ResetTimeout: time.Hour}, nil)
	c.Add("backup", backup)

	resp, err := c.Complete(context.Background(), llm.CompletionRequest{})
	if err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	if resp.Content != "from backup" {
		t.Errorf("Content = %q", resp.Content)
	}
	if len(primary.CompleteCalls) != 1 || len(backup.CompleteCalls) != 1 {
		t.Errorf("calls = %d/%d, want 1/1", len(primary.CompleteCalls), len(backup.CompleteCalls))
	}
}

func TestChainSkipsOpenBreaker(t *testing.T) {
	t.Parallel()

	primary := &mock.Provider{CompleteErr: errBoom}
	backup := &mock.Provider{CompleteResponse: &llm.CompletionResponse{Content: "ok"}}

	c := NewChain("primary", primary, BreakerConfig{MaxFailures: 2, ResetTimeout: time.Hour}, nil)
	c.Add("backup", backup)

	// Trip the primary's breaker.
	for i := 0; i < 2; i++ {
		if _, err := c.Complete(context.Background(), llm.CompletionRequest{}); err != nil {
			t.Fatal(err)
		}
	}
	primary.Reset()

	if _, err := c.Complete(context.Background(), llm.CompletionRequest{}); err != nil {
		t.Fatal(err)
	}
	if len(primary.CompleteCalls) != 0 {
		t.Errorf("primary called %d times through an open breaker", len(primary.CompleteCalls))
	}
}

func TestChainAllFailed(t *testing.T) {
	t.Parallel()

	c := NewChain("primary", &mock.Provider{CompleteErr: errBoom}, BreakerConfig{}, nil)
	c.Add("backup", &mock.Provider{CompleteErr: errBoom})

	_, err := c.Complete(context.Background(), llm.CompletionRequest{})
	if !errors.Is(err, ErrAllBackendsFailed) {
		t.Errorf("Complete() error = %v, want ErrAllBackendsFailed", err)
	}
}

func TestChainStopsOnCancelledContext(t *testing.T) {
	t.Parallel()

	primary := &mock.Provider{CompleteErr: context.Canceled}
	backup := &mock.Provider{CompleteResponse: &llm.CompletionResponse{Content: "ok"}}

	c := NewChain("primary", primary, BreakerConfig{}, nil)
	c.Add("backup", backup)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := c.Complete(ctx, llm.CompletionRequest{}); err == nil {
		t.Fatal("Complete() error = nil, want context error")
	}
	if len(backup.CompleteCalls) != 0 {
		t.Error("backup tried after context cancellation")
	}
}

func TestChainCapabilitiesFromPrimary(t *testing.T) {
	t.Parallel()

	primary := &mock.Provider{ModelCapabilities: llm.ModelCapabilities{ContextWindow: 128000, SupportsToolCalling: true}}
	c := NewChain("primary", primary, BreakerConfig{}, nil)
	c.Add("backup", &mock.Provider{})

	caps := c.Capabilities()
	if caps.ContextWindow != 128000 || !caps.SupportsToolCalling {
		t.Errorf("Capabilities() = %+v", caps)
	}
}
