package util

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/minitru/bunnyAI/pkg/common"
)

func TestRetryWithBackoff_Attempts(t *testing.T) {
	transient := errors.New("upstream 502")
	tests := []struct {
		name      string
		maxTries  int
		failFirst int
		err       error
		wantCalls int
		wantErr   error
	}{
		{name: "success after retries", maxTries: 3, failFirst: 2, err: transient, wantCalls: 3},
		{name: "persistent failure returns last error", maxTries: 4, failFirst: 10, err: transient, wantCalls: 4, wantErr: transient},
		{name: "zero tries runs once", maxTries: 0, failFirst: 10, err: transient, wantCalls: 1, wantErr: transient},
		{name: "context error is not retried", maxTries: 3, failFirst: 10, err: context.DeadlineExceeded, wantCalls: 1, wantErr: context.DeadlineExceeded},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calls := 0
			got, err := RetryWithBackoff(context.Background(), tt.maxTries, 0, func(context.Context) (string, error) {
				calls++
				if calls <= tt.failFirst {
					return "", tt.err
				}
				return "answer", nil
			})
			if calls != tt.wantCalls {
				t.Fatalf("calls = %d, want %d", calls, tt.wantCalls)
			}
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("err = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil || got != "answer" {
				t.Fatalf("got %q, %v", got, err)
			}
		})
	}
}

func TestRetryWithBackoff_BadRequestNotRetried(t *testing.T) {
	calls := 0
	_, err := RetryWithBackoff(context.Background(), 5, 0, func(context.Context) (int, error) {
		calls++
		return 0, &common.BadRequestError{Reason: "prompt too long"}
	})
	var bad *common.BadRequestError
	if !errors.As(err, &bad) || calls != 1 {
		t.Fatalf("err = %v after %d calls", err, calls)
	}
}

func TestRetryWithBackoff_CancelledBeforeStart(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	_, err := RetryWithBackoff(ctx, 3, 0, func(context.Context) (int, error) {
		calls++
		return 0, nil
	})
	if !errors.Is(err, context.Canceled) || calls != 0 {
		t.Fatalf("err = %v after %d calls", err, calls)
	}
}

func TestRetryWithBackoff_WaitsBetweenAttempts(t *testing.T) {
	start := time.Now()
	calls := 0
	_, err := RetryWithBackoff(context.Background(), 3, 5*time.Millisecond, func(context.Context) (int, error) {
		calls++
		return 0, errors.New("transient")
	})
	if err == nil || calls != 3 {
		t.Fatalf("err = %v after %d calls", err, calls)
	}
	// 5ms + 10ms between the three attempts
	if elapsed := time.Since(start); elapsed < 15*time.Millisecond {
		t.Fatalf("expected at least 15ms of backoff, got %s", elapsed)
	}
}

func TestRetryWithBackoff_StopsOnCancelDuringWait(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	calls := 0
	_, err := RetryWithBackoff(ctx, 5, time.Second, func(context.Context) (int, error) {
		calls++
		return 0, errors.New("transient")
	})
	if !errors.Is(err, context.DeadlineExceeded) || calls != 1 {
		t.Fatalf("err = %v after %d calls", err, calls)
	}
}
