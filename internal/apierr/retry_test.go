package apierr_test

// Notes:
// - Exact backoff timing is not tested, only attempt counts, OnRetry reports
//   and context handling.

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/Heracs/MeetingSonar-sub001/internal/apierr"
)

// ---------------------------------------------------------------------------
// TestRetryWithBackoff - Attempt accounting
// ---------------------------------------------------------------------------

func TestRetryWithBackoff(t *testing.T) {
	t.Parallel()

	transient := errors.New("transient")
	tests := []struct {
		name       string
		maxRetries int
		succeedOn  int // attempt that succeeds; 0 never
		retry      bool
		wantCalls  int
		wantErr    bool
	}{
		{name: "success on first try", maxRetries: 5, succeedOn: 1, retry: true, wantCalls: 1},
		{name: "retries then succeeds", maxRetries: 3, succeedOn: 3, retry: true, wantCalls: 3},
		{name: "non-retryable stops immediately", maxRetries: 5, retry: false, wantCalls: 1, wantErr: true},
		{name: "zero retries is a single attempt", maxRetries: 0, retry: true, wantCalls: 1, wantErr: true},
		{name: "negative retries normalized to zero", maxRetries: -3, retry: true, wantCalls: 1, wantErr: true},
		{name: "exhausted retries", maxRetries: 2, retry: true, wantCalls: 3, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			calls := 0
			got, err := apierr.RetryWithBackoff(
				context.Background(),
				apierr.RetryConfig{MaxRetries: tt.maxRetries, BaseDelay: time.Millisecond},
				func() (string, error) {
					calls++
					if calls == tt.succeedOn {
						return "ok", nil
					}
					return "", transient
				},
				func(error) bool { return tt.retry },
			)
			if calls != tt.wantCalls {
				t.Errorf("calls = %d, want %d", calls, tt.wantCalls)
			}
			if tt.wantErr {
				if !errors.Is(err, transient) {
					t.Errorf("error = %v, want wrapped transient", err)
				}
				return
			}
			if err != nil || got != "ok" {
				t.Errorf("RetryWithBackoff() = %q, %v; want ok", got, err)
			}
		})
	}
}

func TestRetryWithBackoff_OnRetry(t *testing.T) {
	t.Parallel()

	var (
		mu       sync.Mutex
		attempts []int
		delays   []time.Duration
	)
	_, _ = apierr.RetryWithBackoff(
		context.Background(),
		apierr.RetryConfig{
			MaxRetries: 3,
			BaseDelay:  time.Millisecond,
			MaxDelay:   2 * time.Millisecond,
			OnRetry: func(attempt int, delay time.Duration, err error) {
				mu.Lock()
				defer mu.Unlock()
				attempts = append(attempts, attempt)
				delays = append(delays, delay)
				if !errors.Is(err, apierr.ErrServer) {
					t.Errorf("OnRetry err = %v, want ErrServer", err)
				}
			},
		},
		func() (int, error) { return 0, apierr.ErrServer },
		apierr.IsRetryable,
	)

	mu.Lock()
	defer mu.Unlock()
	if len(attempts) != 3 || attempts[0] != 1 || attempts[2] != 3 {
		t.Errorf("OnRetry attempts = %v, want [1 2 3]", attempts)
	}
	want := []time.Duration{time.Millisecond, 2 * time.Millisecond, 2 * time.Millisecond}
	for i, d := range want {
		if i < len(delays) && delays[i] != d {
			t.Errorf("delay[%d] = %v, want %v (capped)", i, delays[i], d)
		}
	}
}

func TestRetryWithBackoff_Cancellation(t *testing.T) {
	t.Parallel()

	t.Run("cancelled before first wait", func(t *testing.T) {
		t.Parallel()

		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		calls := 0
		_, err := apierr.RetryWithBackoff(ctx,
			apierr.RetryConfig{MaxRetries: 5, BaseDelay: time.Second},
			func() (string, error) { calls++; return "", apierr.ErrRateLimit },
			apierr.IsRetryable,
		)
		if !errors.Is(err, context.Canceled) || calls != 1 {
			t.Errorf("err = %v, calls = %d; want Canceled after 1 call", err, calls)
		}
	})

	t.Run("cancelled during backoff", func(t *testing.T) {
		t.Parallel()

		ctx, cancel := context.WithCancel(context.Background())
		calls := 0
		_, err := apierr.RetryWithBackoff(ctx,
			apierr.RetryConfig{MaxRetries: 10, BaseDelay: 50 * time.Millisecond},
			func() (string, error) {
				calls++
				if calls == 1 {
					time.AfterFunc(5*time.Millisecond, cancel)
				}
				return "", apierr.ErrTimeout
			},
			apierr.IsRetryable,
		)
		if !errors.Is(err, context.Canceled) {
			t.Errorf("err = %v, want Canceled", err)
		}
		if calls >= 5 {
			t.Errorf("calls = %d, want early stop", calls)
		}
	})
}
