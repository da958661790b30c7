package worker

import (
	"time"

	"netreactor/logging"
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

// Options contains all options which will be applied when instantiating a pool.
type Options struct {
	// ExpiryDuration is the period of the purge goroutine, idle workers older
	// than it are stopped.
	ExpiryDuration time.Duration

	// PreAlloc allocates the worker queue up front.
	PreAlloc bool

	// MaxBlockingTasks is the max number of goroutines blocked on Submit, 0 means no limit.
	MaxBlockingTasks int

	// Nonblocking makes Submit fail with ErrPoolOverload instead of blocking.
	Nonblocking bool

	// PanicHandler handles panics of tasks, the panic is logged when it is nil.
	PanicHandler func(interface{})

	// Logger is used for panic logs.
	Logger logging.Logger
}

// WithOptions accepts the whole options config.
func WithOptions(options Options) Option {
	return func(opts *Options) {
		*opts = options
	}
}

func WithExpiryDuration(expiryDuration time.Duration) Option {
	return func(opts *Options) {
		opts.ExpiryDuration = expiryDuration
	}
}

func WithPreAlloc(preAlloc bool) Option {
	return func(opts *Options) {
		opts.PreAlloc = preAlloc
	}
}

func WithMaxBlockingTasks(maxBlockingTasks int) Option {
	return func(opts *Options) {
		opts.MaxBlockingTasks = maxBlockingTasks
	}
}

func WithNonblocking(nonblocking bool) Option {
	return func(opts *Options) {
		opts.Nonblocking = nonblocking
	}
}

func WithPanicHandler(panicHandler func(interface{})) Option {
	return func(opts *Options) {
		opts.PanicHandler = panicHandler
	}
}

func WithLogger(logger logging.Logger) Option {
	return func(opts *Options) {
		opts.Logger = logger
	}
}
