//go:build linux
// +build linux

package reactor

import (
	"time"

	"netreactor/logging"
)

const (
	// DefaultPollTimeout bounds every readiness wait so pending tasks still run on an idle loop.
	DefaultPollTimeout = 10 * time.Second
	// DefaultHighWaterMark is the queued output size that triggers the high-water-mark callback.
	DefaultHighWaterMark = 64 * 1024 * 1024
	// DefaultRetryDelay is the first backoff delay of a connector.
	DefaultRetryDelay = 500 * time.Millisecond
	// DefaultMaxRetryDelay is the backoff ceiling of a connector.
	DefaultMaxRetryDelay = 30 * time.Second
)

// Option is a function that will set up option.
type Option func(opts *Options)

func loadOptions(options ...Option) *Options {
	opts := new(Options)
	for _, option := range options {
		option(opts)
	}
	return opts
}

// Options are set when the server, client or event loop is built.
type Options struct {
	// Logger overrides the default logger of a server.
	Logger logging.Logger

	// ReusePort sets SO_REUSEPORT on the listening socket.
	ReusePort bool

	// Multicore starts one I/O loop per CPU when NumEventLoop is not set.
	Multicore bool

	// NumEventLoop is the number of I/O loops, zero runs everything on the base loop.
	NumEventLoop int

	// LB is the loop selection strategy for accepted connections.
	LB LoadBalancing

	// TCPKeepAlive sets the keep-alive period of accepted connections.
	TCPKeepAlive time.Duration

	// TCPNoDelay disables Nagle's algorithm on new connections.
	TCPNoDelay bool

	// HighWaterMark overrides DefaultHighWaterMark.
	HighWaterMark int

	// Retry makes a client reconnect after an established connection is lost.
	Retry bool

	// RetryDelay and MaxRetryDelay override the connector backoff bounds.
	RetryDelay    time.Duration
	MaxRetryDelay time.Duration

	// PollTimeout overrides DefaultPollTimeout.
	PollTimeout time.Duration
}

func (opts *Options) pollTimeout() time.Duration {
	if opts.PollTimeout > 0 {
		return opts.PollTimeout
	}
	return DefaultPollTimeout
}

func (opts *Options) highWaterMark() int {
	if opts.HighWaterMark > 0 {
		return opts.HighWaterMark
	}
	return DefaultHighWaterMark
}

// WithOptions sets up all options.
func WithOptions(options Options) Option {
	return func(opts *Options) {
		*opts = options
	}
}

// WithLogger sets up a customized logger.
func WithLogger(logger logging.Logger) Option {
	return func(opts *Options) {
		opts.Logger = logger
	}
}

// WithReusePort sets up SO_REUSEPORT socket option.
func WithReusePort(reusePort bool) Option {
	return func(opts *Options) {
		opts.ReusePort = reusePort
	}
}

// WithMulticore sets up multi-cores in server.
func WithMulticore(multicore bool) Option {
	return func(opts *Options) {
		opts.Multicore = multicore
	}
}

// WithNumEventLoop sets the number of I/O loops.
func WithNumEventLoop(numEventLoop int) Option {
	return func(opts *Options) {
		opts.NumEventLoop = numEventLoop
	}
}

// WithLoadBalancing sets up the load-balancing algorithm in server.
func WithLoadBalancing(lb LoadBalancing) Option {
	return func(opts *Options) {
		opts.LB = lb
	}
}

// WithTCPKeepAlive sets up the SO_KEEPALIVE socket option with duration.
func WithTCPKeepAlive(tcpKeepAlive time.Duration) Option {
	return func(opts *Options) {
		opts.TCPKeepAlive = tcpKeepAlive
	}
}

func WithTCPNoDelay(noDelay bool) Option {
	return func(opts *Options) {
		opts.TCPNoDelay = noDelay
	}
}

func WithHighWaterMark(mark int) Option {
	return func(opts *Options) {
		opts.HighWaterMark = mark
	}
}

// WithRetry makes a client reconnect when its connection goes down.
func WithRetry(retry bool) Option {
	return func(opts *Options) {
		opts.Retry = retry
	}
}

// WithRetryDelay sets the first and the maximum connector backoff delay.
func WithRetryDelay(initial, max time.Duration) Option {
	return func(opts *Options) {
		opts.RetryDelay = initial
		opts.MaxRetryDelay = max
	}
}

func WithPollTimeout(timeout time.Duration) Option {
	return func(opts *Options) {
		opts.PollTimeout = timeout
	}
}
