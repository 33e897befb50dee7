package resilience

import (
	"errors"
	"testing"
	"time"
)

var errBoom = errors.New("boom")

func fail() error    { return errBoom }
func succeed() error { return nil }

func TestBreakerTripsAfterMaxFailures(t *testing.T) {
	t.Parallel()
	b := NewBreaker("test", BreakerConfig{MaxFailures: 3, ResetTimeout: time.Hour})

	for i := 0; i < 3; i++ {
		if err := b.Do(fail); !errors.Is(err, errBoom) {
			t.Fatalf("Do() error = %v, want errBoom", err)
		}
	}
	if !b.Open() {
		t.Fatal("breaker still closed after max failures")
	}
	if err := b.Do(succeed); !errors.Is(err, ErrBreakerOpen) {
		t.Errorf("Do() error = %v, want ErrBreakerOpen", err)
	}
}

func TestBreakerSuccessResetsFailureCount(t *testing.T) {
	t.Parallel()
	b := NewBreaker("test", BreakerConfig{MaxFailures: 3, ResetTimeout: time.Hour})

	_ = b.Do(fail)
	_ = b.Do(fail)
	_ = b.Do(succeed)
	_ = b.Do(fail)
	_ = b.Do(fail)

	if b.Open() {
		t.Error("breaker opened despite interleaved success")
	}
}

func TestBreakerProbesAfterResetTimeout(t *testing.T) {
	t.Parallel()
	b := NewBreaker("test", BreakerConfig{
		MaxFailures:    1,
		ResetTimeout:   10 * time.Millisecond,
		ProbeSuccesses: 2,
	})

	_ = b.Do(fail)
	if !b.Open() {
		t.Fatal("breaker not open")
	}

	time.Sleep(20 * time.Millisecond)

	// Two successful probes close the breaker.
	for i := 0; i < 2; i++ {
		if err := b.Do(succeed); err != nil {
			t.Fatalf("probe %d error = %v", i, err)
		}
	}
	if b.Open() {
		t.Error("breaker still open after successful probes")
	}
}

func TestBreakerReopensOnFailedProbe(t *testing.T) {
	t.Parallel()
	b := NewBreaker("test", BreakerConfig{MaxFailures: 1, ResetTimeout: 10 * time.Millisecond})

	_ = b.Do(fail)
	time.Sleep(20 * time.Millisecond)

	if err := b.Do(fail); !errors.Is(err, errBoom) {
		t.Fatalf("probe error = %v", err)
	}
	if err := b.Do(succeed); !errors.Is(err, ErrBreakerOpen) {
		t.Errorf("Do() error = %v, want ErrBreakerOpen after failed probe", err)
	}
}

func TestBreakerReset(t *testing.T) {
	t.Parallel()
	b := NewBreaker("test", BreakerConfig{MaxFailures: 1, ResetTimeout: time.Hour})

	_ = b.Do(fail)
	b.Reset()
	if b.Open() {
		t.Error("breaker open after Reset")
	}
	if err := b.Do(succeed); err != nil {
		t.Errorf("Do() error = %v after Reset", err)
	}
}
