package retry

import (
	"context"
	"errors"
	"testing"
)

func TestDoReturnsFirstSuccess(t *testing.T) {
	calls := 0
	v, err := Do(context.Background(), Options{MaxAttempts: 3}, func(ctx context.Context) (string, error) {
		calls++
		if calls < 2 {
			return "", errors.New("transient")
		}
		return "ok", nil
	})
	if err != nil {
		t.Fatalf("Do returned error: %v", err)
	}
	if v != "ok" || calls != 2 {
		t.Fatalf("v=%q calls=%d, want ok/2", v, calls)
	}
}

func TestDoBoundsAttempts(t *testing.T) {
	calls := 0
	_, err := Do(context.Background(), Options{MaxAttempts: 2}, func(ctx context.Context) (int, error) {
		calls++
		return 0, errors.New("always fails")
	})
	if calls != 2 {
		t.Fatalf("expected exactly 2 attempts, got %d", calls)
	}
	if !errors.Is(err, ErrAttemptsExhausted) {
		t.Fatalf("expected ErrAttemptsExhausted, got %v", err)
	}
}

func TestDoStopsOnNonRetryable(t *testing.T) {
	permanent := errors.New("permanent")
	calls := 0
	_, err := Do(context.Background(), Options{
		MaxAttempts: 5,
		Retryable:   func(err error) bool { return !errors.Is(err, permanent) },
	}, func(ctx context.Context) (int, error) {
		calls++
		return 0, permanent
	})
	if calls != 1 {
		t.Fatalf("non-retryable error must not be retried, got %d calls", calls)
	}
	if !errors.Is(err, permanent) {
		t.Fatalf("expected the permanent error back, got %v", err)
	}
}

func TestDoZeroAttemptsStillRunsOnce(t *testing.T) {
	calls := 0
	if _, err := Do(context.Background(), Options{}, func(ctx context.Context) (int, error) {
		calls++
		return 7, nil
	}); err != nil {
		t.Fatalf("Do returned error: %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected one call, got %d", calls)
	}
}
