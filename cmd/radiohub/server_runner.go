package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"radiohub/internal/logging"
)

const httpServerShutdownTimeout = 5 * time.Second

// ManagedServer is a listener the runner starts and stops as a unit.
type ManagedServer struct {
	Name     string
	Serve    func() error
	Shutdown func(context.Context) error
}

type ServerRunner struct {
	Logger          *logging.Logger
	ShutdownTimeout time.Duration
}

type serverError struct {
	name string
	err  error
}

func (e *serverError) Error() string {
	return fmt.Sprintf("%s: %v", e.name, e.err)
}

// failed reports whether the server stopped for a reason other than Shutdown.
func (e *serverError) failed() bool {
	return e != nil && e.err != nil && !errors.Is(e.err, http.ErrServerClosed)
}

// Run serves until a server returns or stop is cancelled, then shuts every
// server down and waits for the rest to return. The first failure is
// returned; a clean stop yields nil.
func (runner *ServerRunner) Run(stop context.Context, servers ...ManagedServer) *serverError {
	results := make(chan *serverError, len(servers))
	running := 0
	for _, server := range servers {
		if server.Serve == nil {
			continue
		}
		running++
		go func(server ManagedServer) {
			results <- &serverError{name: server.Name, err: server.Serve()}
		}(server)
	}
	if running == 0 {
		return nil
	}

	var first *serverError
	select {
	case first = <-results:
		running--
		runner.report(first)
	case <-stop.Done():
	}

	timeout := runner.shutdownTimeout()
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	for _, server := range servers {
		if server.Shutdown == nil {
			continue
		}
		if err := server.Shutdown(ctx); err != nil {
			runner.warn(server.Name, err)
		}
	}

	for ; running > 0; running-- {
		select {
		case result := <-results:
			runner.report(result)
		case <-ctx.Done():
			return runner.outcome(first)
		}
	}
	return runner.outcome(first)
}

func (runner *ServerRunner) outcome(first *serverError) *serverError {
	if first.failed() {
		return first
	}
	return nil
}

func (runner *ServerRunner) shutdownTimeout() time.Duration {
	if runner.ShutdownTimeout > 0 {
		return runner.ShutdownTimeout
	}
	return httpServerShutdownTimeout
}

func (runner *ServerRunner) report(result *serverError) {
	if runner.Logger == nil || !result.failed() {
		return
	}
	runner.Logger.Error("http server stopped", map[string]string{
		"server": result.name,
		"error":  result.err.Error(),
	})
}

func (runner *ServerRunner) warn(name string, err error) {
	if runner.Logger == nil {
		return
	}
	runner.Logger.Warn("http server shutdown failed", map[string]string{
		"server": name,
		"error":  err.Error(),
	})
}
