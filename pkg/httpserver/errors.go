package httpserver

import "errors"

var (
	// ErrStart is returned when the listener could not be started.
	ErrStart = errors.New("failed to start HTTP server")
	// ErrShutdown is returned when in-flight requests did not drain in time.
	ErrShutdown = errors.New("failed to shutdown HTTP server gracefully")
)
