package reactor

import "errors"

var (
	// ErrNotInLoopThread occurs when loop-owned state is touched from another thread.
	ErrNotInLoopThread = errors.New("not in the event loop thread")
	// ErrLoopExists occurs when a second event loop is created on a thread that already runs one.
	ErrLoopExists = errors.New("another event loop exists in this thread")
	// ErrLoopClosed occurs when using an event loop after Close.
	ErrLoopClosed = errors.New("event loop is closed")
	// ErrConnNotConnected occurs when sending on a connection that is not connected.
	ErrConnNotConnected = errors.New("connection is not connected")
	// ErrServerStarted occurs when starting a server twice.
	ErrServerStarted = errors.New("server has already been started")
	// ErrUnsupportedProtocol occurs when trying to use protocol that is not supported.
	ErrUnsupportedProtocol = errors.New("only tcp, tcp4 and tcp6 are supported")
	// ErrInvalidAddr occurs when an address can not be resolved to a TCP address.
	ErrInvalidAddr = errors.New("invalid tcp address")
)
