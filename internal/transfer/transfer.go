package transfer

import (
	"context"
	"fmt"
	"time"
)

// Client abstracts the remote file-transfer endpoint.
type Client interface {
	Upload(ctx context.Context, localPath, remotePath string) error
	Download(ctx context.Context, remotePath, localPath string) error
	List(ctx context.Context, remoteDir string) ([]string, error)
	Move(ctx context.Context, remoteSrc, remoteDst string) error
	EnsureDir(ctx context.Context, remoteDir string) error
}

// RetryPolicy defines the fixed-wait retry contract for remote operations.
type RetryPolicy struct {
	MaxAttempts int
	Wait        time.Duration
}

// Error reports an operation that exhausted its retries. Err holds the
// last underlying cause.
type Error struct {
	Op       string
	Path     string
	Attempts int
	Err      error
}

func (e *Error) Error() string {
	return fmt.Sprintf("transfer: %s %s failed after %d attempts: %v", e.Op, e.Path, e.Attempts, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Retry runs fn up to policy.MaxAttempts times with a fixed wait between
// attempts. onRetry, if set, is called before each re-attempt. The wait
// honors ctx cancellation; a running attempt is never interrupted.
func Retry(ctx context.Context, policy RetryPolicy, op, path string, onRetry func(), fn func() error) error {
	attempts := policy.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	var last error
	for attempt := 1; attempt <= attempts; attempt++ {
		if attempt > 1 {
			if onRetry != nil {
				onRetry()
			}
			select {
			case <-ctx.Done():
				return &Error{Op: op, Path: path, Attempts: attempt - 1, Err: ctx.Err()}
			case <-time.After(policy.Wait):
			}
		}
		last = fn()
		if last == nil {
			return nil
		}
	}
	return &Error{Op: op, Path: path, Attempts: attempts, Err: last}
}
