package httpserver

import (
	"log/slog"
	"time"
)

// Option configures the HTTP server.
type Option func(*config)

// WithAddr sets the listen address.
func WithAddr(addr string) Option {
	if addr == "" {
		panic("httpserver: empty addr")
	}
	return func(c *config) { c.addr = addr }
}

func WithReadTimeout(d time.Duration) Option {
	positive(d, "read timeout")
	return func(c *config) { c.readTimeout = d }
}

func WithReadHeaderTimeout(d time.Duration) Option {
	positive(d, "read header timeout")
	return func(c *config) { c.readHeaderTimeout = d }
}

func WithWriteTimeout(d time.Duration) Option {
	positive(d, "write timeout")
	return func(c *config) { c.writeTimeout = d }
}

func WithIdleTimeout(d time.Duration) Option {
	positive(d, "idle timeout")
	return func(c *config) { c.idleTimeout = d }
}

// WithShutdownTimeout bounds the graceful drain of in-flight requests.
func WithShutdownTimeout(d time.Duration) Option {
	positive(d, "shutdown timeout")
	return func(c *config) { c.shutdownTimeout = d }
}

// WithLogger sets the logger used for lifecycle messages.
func WithLogger(l *slog.Logger) Option {
	return func(c *config) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithStopHook registers fn to run after the server has drained.
// Hooks run in registration order.
func WithStopHook(fn func()) Option {
	if fn == nil {
		panic("httpserver: nil stop hook")
	}
	return func(c *config) { c.stopHooks = append(c.stopHooks, fn) }
}

func positive(d time.Duration, name string) {
	if d <= 0 {
		panic("httpserver: " + name + " must be positive")
	}
}
