package signal

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandler_ContextCancelledOnSignal(t *testing.T) {
	h := NewHandler(context.Background())
	defer h.Stop()

	// Deliver the signal directly instead of killing the test process.
	h.sigChan <- nil
	select {
	case <-h.Context().Done():
	case <-time.After(time.Second):
		t.Fatal("context was not cancelled after signal")
	}

	select {
	case <-h.Interrupted():
	default:
		t.Fatal("interrupted channel was not closed")
	}
}

func TestHandler_StopCancelsContext(t *testing.T) {
	h := NewHandler(context.Background())
	h.Stop()

	select {
	case <-h.Context().Done():
	case <-time.After(time.Second):
		t.Fatal("context was not cancelled after Stop")
	}

	// Stop is idempotent.
	h.Stop()
}

func TestHandler_ParentCancellationPropagates(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	h := NewHandler(ctx)
	defer h.Stop()

	cancel()
	select {
	case <-h.Context().Done():
	case <-time.After(time.Second):
		t.Fatal("parent cancellation did not propagate")
	}
	require.Error(t, h.Context().Err())
	assert.ErrorIs(t, h.Context().Err(), context.Canceled)
}
