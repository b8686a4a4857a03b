package flock

import (
	"context"
	"fmt"
	"os"
	"time"

	foremanerrors "github.com/mrz1836/foreman/internal/errors"
)

// filePerm is the permission for created lock files.
const filePerm = 0o600

// Acquire opens (creating if needed) the lock file at path and acquires an
// exclusive lock on it, retrying every retry interval until timeout.
// It respects context cancellation during the retry loop.
//
// On success the returned file holds the lock; release it with Release.
// On timeout the error wraps errors.ErrLockTimeout.
func Acquire(ctx context.Context, path string, timeout, retry time.Duration) (*os.File, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, filePerm) //#nosec G304 -- lock paths are constructed internally
	if err != nil {
		return nil, fmt.Errorf("failed to open lock file: %w", err)
	}

	deadline := time.Now().Add(timeout)
	for {
		select {
		case <-ctx.Done():
			_ = f.Close()
			return nil, ctx.Err()
		default:
		}

		if err := Exclusive(f.Fd()); err == nil {
			return f, nil
		}

		if time.Now().After(deadline) {
			_ = f.Close()
			return nil, fmt.Errorf("failed to acquire lock on %s: %w", path, foremanerrors.ErrLockTimeout)
		}

		time.Sleep(retry)
	}
}

// TryAcquire attempts a single non-blocking lock acquisition.
// It is used for pidfile already-running detection where waiting would be wrong.
func TryAcquire(path string) (*os.File, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, filePerm) //#nosec G304 -- lock paths are constructed internally
	if err != nil {
		return nil, fmt.Errorf("failed to open lock file: %w", err)
	}
	if err := Exclusive(f.Fd()); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("lock held on %s: %w", path, foremanerrors.ErrAlreadyRunning)
	}
	return f, nil
}

// Release unlocks and closes a file returned by Acquire or TryAcquire.
// It is safe to call with nil.
func Release(f *os.File) error {
	if f == nil {
		return nil
	}
	if err := Unlock(f.Fd()); err != nil {
		_ = f.Close()
		return fmt.Errorf("failed to release lock: %w", err)
	}
	return f.Close()
}
