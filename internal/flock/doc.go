// Package flock provides cross-platform advisory file locking for the
// task store, the agent registry, and the daemon pidfile.
//
// The task store and registry are the only shared mutable resources in
// foreman; every mutator serializes its read-modify-write cycle behind an
// exclusive lock acquired here. Acquire wraps the platform primitives with
// the retry-until-deadline loop both stores need, so the locking policy
// lives in one place.
//
// Usage:
//
//	f, err := flock.Acquire(ctx, path, timeout, retry)
//	if err != nil {
//	    // Lock not acquired within timeout.
//	}
//	defer flock.Release(f)
package flock
