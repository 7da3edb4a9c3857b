package settlement

import (
	"context"
	"time"
)

// pingInterval is the keep-alive cadence of spec.md §4.6. A var, not a
// const, so tests can shrink it to keep round-trip coverage fast.
var pingInterval = 1000 * time.Millisecond

// startPingLoop sends a keep-alive for the engine's requestId every
// pingInterval until ctx is cancelled. The returned channel closes once
// the loop has fully stopped, so callers can block on deterministic
// teardown before returning.
func (e *Engine) startPingLoop(ctx context.Context) <-chan struct{} {
	done := make(chan struct{})

	go func() {
		defer close(done)

		ticker := time.NewTicker(pingInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := e.client.Ping(ctx, e.requestID); err != nil {
					e.log.Warn("ping failed", "requestId", e.requestID, "error", err)
				}
			}
		}
	}()

	return done
}
