package main

import (
	"context"
	"os"
	"sync"

	"radiohub/internal/logging"
)

// watchShutdownSignals cancels on the first signal. The second is logged as
// ignored and later ones are dropped silently. The returned stop function may
// be called more than once.
func watchShutdownSignals(logger *logging.Logger, cancel context.CancelFunc, signals <-chan os.Signal) func() {
	if signals == nil {
		return func() {}
	}

	done := make(chan struct{})
	go func() {
		received := 0
		for {
			var sig os.Signal
			select {
			case <-done:
				return
			case next, ok := <-signals:
				if !ok {
					return
				}
				sig = next
			}

			received++
			switch received {
			case 1:
				logSignal(logger, "shutdown signal received", sig)
				if cancel != nil {
					cancel()
				}
			case 2:
				logSignal(logger, "shutdown already in progress; ignoring signal", sig)
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() { close(done) })
	}
}

func logSignal(logger *logging.Logger, message string, sig os.Signal) {
	if logger == nil {
		return
	}
	var fields map[string]string
	if sig != nil {
		fields = map[string]string{"signal": sig.String()}
	}
	logger.Info(message, fields)
}
