// Package ctxutil provides context utility functions.
package ctxutil

import "context"

// Canceled checks if the context has been canceled or exceeded its deadline.
// Returns the context error if done (Canceled or DeadlineExceeded), nil
// otherwise. Used at the entry of lock-acquiring operations so a cancelled
// caller never queues for the file lock.
func Canceled(ctx context.Context) error {
	return ctx.Err()
}
