package errors

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"
)

func TestIsTransientClassification(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"explicit transient", NewTransientError(errors.New("boom"), ""), true},
		{"explicit permanent", NewPermanentError(errors.New("boom"), ""), false},
		{"wrapped transient", fmt.Errorf("call failed: %w", NewTransientError(errors.New("boom"), "")), true},
		{"http 429", errors.New("request failed with status 429"), true},
		{"http 503", errors.New("HTTP 503 from upstream"), true},
		{"http 404", errors.New("request failed with status 404"), false},
		{"connection refused", errors.New("dial tcp 127.0.0.1:9: connection refused"), true},
		{"plain", errors.New("something else"), false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := IsTransient(tc.err); got != tc.want {
				t.Fatalf("IsTransient(%v) = %v, want %v", tc.err, got, tc.want)
			}
		})
	}
}

func TestGetErrorTypeDefaultsToPermanent(t *testing.T) {
	if got := GetErrorType(errors.New("mystery")); got != ErrorTypePermanent {
		t.Fatalf("GetErrorType = %v, want permanent", got)
	}
	if got := GetErrorType(NewDegradedError(errors.New("x"), "", "fallback")); got != ErrorTypeDegraded {
		t.Fatalf("GetErrorType = %v, want degraded", got)
	}
}

func TestRetryStopsOnPermanentError(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), RetryConfig{MaxAttempts: 3, BaseDelay: time.Millisecond}, func(ctx context.Context) error {
		calls++
		return NewPermanentError(errors.New("no"), "")
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if calls != 1 {
		t.Fatalf("calls = %d, want 1", calls)
	}
}

func TestRetryRecoversFromTransientError(t *testing.T) {
	calls := 0
	result, err := RetryWithResult(context.Background(), RetryConfig{MaxAttempts: 3, BaseDelay: time.Millisecond}, func(ctx context.Context) (int, error) {
		calls++
		if calls < 3 {
			return 0, NewTransientError(errors.New("flaky"), "")
		}
		return 42, nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result != 42 || calls != 3 {
		t.Fatalf("result=%d calls=%d, want 42/3", result, calls)
	}
}

func TestRetryHonorsContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := Retry(ctx, DefaultRetryConfig(), func(ctx context.Context) error {
		return NewTransientError(errors.New("flaky"), "")
	})
	if err == nil {
		t.Fatal("expected cancellation error")
	}
}

func TestCircuitBreakerOpensAndRecovers(t *testing.T) {
	cb := NewCircuitBreaker("test", CircuitBreakerConfig{
		FailureThreshold: 2,
		SuccessThreshold: 1,
		Timeout:          time.Millisecond,
	})

	boom := errors.New("boom")
	for i := 0; i < 2; i++ {
		if err := cb.Allow(); err != nil {
			t.Fatalf("Allow before open: %v", err)
		}
		cb.Mark(boom)
	}
	if cb.State() != StateOpen {
		t.Fatalf("state = %v, want open", cb.State())
	}
	if err := cb.Allow(); !IsDegraded(err) {
		t.Fatalf("Allow while open = %v, want degraded error", err)
	}

	time.Sleep(2 * time.Millisecond)
	if err := cb.Allow(); err != nil {
		t.Fatalf("Allow in half-open: %v", err)
	}
	cb.Mark(nil)
	if cb.State() != StateClosed {
		t.Fatalf("state = %v, want closed", cb.State())
	}
}
