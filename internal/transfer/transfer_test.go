package transfer

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestRetrySucceedsBeforeExhaustion(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), RetryPolicy{MaxAttempts: 3}, "upload", "out/file.txt", nil, func() error {
		calls++
		if calls < 2 {
			return errors.New("connection reset")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if calls != 2 {
		t.Fatalf("expected 2 attempts, got %d", calls)
	}
}

func TestRetryExhaustionCarriesLastCause(t *testing.T) {
	first := errors.New("timeout")
	last := errors.New("permission denied")
	calls := 0
	retries := 0
	err := Retry(context.Background(), RetryPolicy{MaxAttempts: 3}, "download", "in/file.txt", func() { retries++ }, func() error {
		calls++
		if calls == 1 {
			return first
		}
		return last
	})
	if err == nil {
		t.Fatal("expected error after exhaustion")
	}
	var terr *Error
	if !errors.As(err, &terr) {
		t.Fatalf("expected *transfer.Error, got %T", err)
	}
	if terr.Attempts != 3 {
		t.Fatalf("expected 3 attempts, got %d", terr.Attempts)
	}
	if terr.Op != "download" || terr.Path != "in/file.txt" {
		t.Fatalf("unexpected op/path: %s %s", terr.Op, terr.Path)
	}
	if !errors.Is(err, last) {
		t.Fatalf("expected last cause %v, got %v", last, terr.Err)
	}
	if errors.Is(err, first) {
		t.Fatal("error must carry the last cause, not the first")
	}
	if retries != 2 {
		t.Fatalf("expected 2 retry callbacks, got %d", retries)
	}
}

func TestRetryStopsOnCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	err := Retry(ctx, RetryPolicy{MaxAttempts: 3, Wait: time.Hour}, "list", "in", nil, func() error {
		calls++
		return errors.New("unreachable host")
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if calls != 1 {
		t.Fatalf("expected a single attempt before the cancelled wait, got %d", calls)
	}
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled cause, got %v", err)
	}
}

func TestNewFTPClientValidation(t *testing.T) {
	if _, err := NewFTPClient("", "user", "pass", RetryPolicy{MaxAttempts: 3}, nil); err == nil {
		t.Fatal("expected error for empty address")
	}
	if _, err := NewFTPClient("partner:21", "user", "pass", RetryPolicy{}, nil); err == nil {
		t.Fatal("expected error for zero attempts")
	}
	if _, err := NewFTPClient("partner:21", "", "", RetryPolicy{MaxAttempts: 1}, nil); err != nil {
		t.Fatalf("anonymous client should construct: %v", err)
	}
}
