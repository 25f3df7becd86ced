package main

import (
	"context"
	"time"

	"radiohub/internal/logging"
)

const drainTimeout = 5 * time.Second

type pendingWork interface {
	Wait()
}

// drainConsole gives in-flight ACL updates up to timeout to finish, then
// cancels the root context and waits for the event loop to stop.
func drainConsole(pending pendingWork, cancel context.CancelFunc, loopDone <-chan struct{}, timeout time.Duration, logger *logging.Logger) {
	if pending != nil {
		finished := make(chan struct{})
		go func() {
			pending.Wait()
			close(finished)
		}()
		select {
		case <-finished:
		case <-time.After(timeout):
			if logger != nil {
				logger.Warn("acl updates still pending at shutdown", map[string]string{
					"timeout": timeout.String(),
				})
			}
		}
	}
	cancel()
	if loopDone != nil {
		<-loopDone
	}
}
