package resilience

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestRetryPolicy_StopsOnNonRetryable(t *testing.T) {
	policy := RetryPolicy{MaxAttempts: 3, BaseDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond}

	fatal := errors.New("rejected")
	calls := 0
	err := policy.Do(context.Background(), func() error {
		calls++
		return fatal
	}, func(err error) bool { return false })

	if !errors.Is(err, fatal) {
		t.Fatalf("expected fatal error, got %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected a single attempt, got %d", calls)
	}
}

func TestRetryPolicy_ExhaustsAttempts(t *testing.T) {
	policy := RetryPolicy{MaxAttempts: 3, BaseDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond}

	transient := errors.New("timeout")
	calls := 0
	err := policy.Do(context.Background(), func() error {
		calls++
		return transient
	}, func(err error) bool { return true })

	if !errors.Is(err, transient) {
		t.Fatalf("expected transient error after exhaustion, got %v", err)
	}
	if calls != 3 {
		t.Fatalf("expected 3 attempts, got %d", calls)
	}
}

func TestRetryPolicy_SucceedsMidway(t *testing.T) {
	policy := RetryPolicy{MaxAttempts: 3, BaseDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond}

	calls := 0
	err := policy.Do(context.Background(), func() error {
		calls++
		if calls < 2 {
			return errors.New("flaky")
		}
		return nil
	}, nil)

	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if calls != 2 {
		t.Fatalf("expected 2 attempts, got %d", calls)
	}
}

func TestRetryPolicy_ContextCancelled(t *testing.T) {
	policy := RetryPolicy{MaxAttempts: 5, BaseDelay: 50 * time.Millisecond, MaxDelay: time.Second}

	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	err := policy.Do(ctx, func() error {
		calls++
		return errors.New("timeout")
	}, nil)

	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected backoff wait to be interrupted after first attempt, got %d attempts", calls)
	}
}
