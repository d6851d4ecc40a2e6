package util

import (
	"context"
	"errors"
	"testing"
	"time"

	"golang.org/x/sync/singleflight"
)

func TestShared_FirstCallerLeaving(t *testing.T) {
	var g singleflight.Group
	started := make(chan struct{})
	release := make(chan struct{})

	firstCtx, cancelFirst := context.WithCancel(context.Background())
	firstErr := make(chan error, 1)
	go func() {
		_, err := Shared(firstCtx, &g, "kg/b1", func(ctx context.Context) (string, error) {
			close(started)
			select {
			case <-release:
				return "graph", nil
			case <-ctx.Done():
				return "", ctx.Err()
			}
		})
		firstErr <- err
	}()
	<-started

	secondDone := make(chan string, 1)
	go func() {
		v, err := Shared(context.Background(), &g, "kg/b1", func(context.Context) (string, error) {
			return "second run", nil
		})
		if err != nil {
			v = "error: " + err.Error()
		}
		secondDone <- v
	}()

	// give the second caller time to join the running call
	time.Sleep(20 * time.Millisecond)
	cancelFirst()
	if err := <-firstErr; !errors.Is(err, context.Canceled) {
		t.Fatalf("first caller error = %v, want context.Canceled", err)
	}

	close(release)
	if got := <-secondDone; got != "graph" {
		t.Fatalf("second caller got %q, want the shared graph", got)
	}
}

func TestShared_KeepsDeadline(t *testing.T) {
	var g singleflight.Group
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	_, err := Shared(ctx, &g, "analysis/b1", func(ctx context.Context) (int, error) {
		if _, ok := ctx.Deadline(); !ok {
			return 0, errors.New("deadline dropped")
		}
		return 1, nil
	})
	if err != nil {
		t.Fatal(err)
	}
}
