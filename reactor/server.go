//go:build linux
// +build linux

package reactor

import (
	"fmt"
	"net"
	"runtime"
	"sync/atomic"

	"netreactor/internal/netpoll"
	"netreactor/logging"
)

// Server accepts connections on a base loop and spreads them over a pool of I/O loops.
type Server struct {
	loop       *EventLoop
	ipPort     string
	name       string
	opts       *Options
	logger     logging.Logger
	acceptor   *Acceptor
	threadPool *EventLoopThreadPool

	connectionCallback    ConnectionCallback
	messageCallback       MessageCallback
	writeCompleteCallback WriteCompleteCallback
	highWaterMarkCallback HighWaterMarkCallback
	threadInitCallback    ThreadInitCallback

	started atomic.Bool
	stopped atomic.Bool

	// only touched on the base loop
	nextConnID  int
	connections map[string]*Conn
}

// NewServer listens on addr, e.g. "tcp://127.0.0.1:9000" or ":9000". The
// I/O loops are created by Start.
func NewServer(loop *EventLoop, addr, name string, opts ...Option) (*Server, error) {
	options := loadOptions(opts...)
	network, address := parseAddr(addr)
	acceptor, err := NewAcceptor(loop, network, address, options.ReusePort)
	if err != nil {
		return nil, err
	}

	numEventLoop := options.NumEventLoop
	if numEventLoop <= 0 && options.Multicore {
		numEventLoop = runtime.NumCPU()
	}

	s := &Server{
		loop:               loop,
		ipPort:             acceptor.Addr().String(),
		name:               name,
		opts:               options,
		acceptor:           acceptor,
		threadPool:         NewEventLoopThreadPool(loop, name, options.LB, WithPollTimeout(options.PollTimeout)),
		connectionCallback: DefaultConnectionCallback,
		messageCallback:    DefaultMessageCallback,
		connections:        make(map[string]*Conn),
	}
	s.threadPool.SetThreadNum(numEventLoop)
	s.logger = func() logging.Logger {
		if options.Logger == nil {
			return logging.GetDefaultLogger()
		}
		return options.Logger
	}()
	acceptor.SetNewConnectionCallback(s.newConnection)
	return s, nil
}

func (s *Server) Name() string {
	return s.name
}

func (s *Server) IPPort() string {
	return s.ipPort
}

// Addr is the address the server is listening on.
func (s *Server) Addr() net.Addr {
	return s.acceptor.Addr()
}

func (s *Server) Loop() *EventLoop {
	return s.loop
}

// ThreadPool is only valid after Start.
func (s *Server) ThreadPool() *EventLoopThreadPool {
	return s.threadPool
}

// Callbacks must be set before Start, they are not thread safe.
func (s *Server) SetConnectionCallback(cb ConnectionCallback)       { s.connectionCallback = cb }
func (s *Server) SetMessageCallback(cb MessageCallback)             { s.messageCallback = cb }
func (s *Server) SetWriteCompleteCallback(cb WriteCompleteCallback) { s.writeCompleteCallback = cb }
func (s *Server) SetHighWaterMarkCallback(cb HighWaterMarkCallback) { s.highWaterMarkCallback = cb }
func (s *Server) SetThreadInitCallback(cb ThreadInitCallback)       { s.threadInitCallback = cb }

// Start starts the I/O loops and begins accepting. Calling it again has no
// effect and returns ErrServerStarted.
func (s *Server) Start() error {
	if !s.started.CompareAndSwap(false, true) {
		return ErrServerStarted
	}
	if err := s.threadPool.Start(s.threadInitCallback); err != nil {
		return fmt.Errorf("server %s start thread pool: %w", s.name, err)
	}
	s.loop.RunInLoop(s.acceptor.Listen)
	s.logger.Infof("server %s listening on %s with %d I/O loops", s.name, s.ipPort, s.threadPool.numThreads)
	return nil
}

// Stop closes the listening socket, destroys every live connection and joins
// the I/O loops. It must be called on the base loop or while the base loop is running.
func (s *Server) Stop() {
	if !s.stopped.CompareAndSwap(false, true) {
		return
	}
	done := make(chan struct{})
	s.loop.RunInLoop(func() {
		defer close(done)
		s.acceptor.Close()
		for name, conn := range s.connections {
			delete(s.connections, name)
			s.threadPool.calibrate(conn.Loop(), -1)
			conn.Loop().QueueInLoop(conn.connectDestroyed)
		}
	})
	<-done
	s.threadPool.Stop()
	s.logger.Infof("server %s stopped", s.name)
}

// CountConnections returns the number of live connections.
func (s *Server) CountConnections() int {
	return s.threadPool.CountConnections()
}

func (s *Server) newConnection(fd int, peer net.Addr) {
	s.loop.assertInLoopThread()
	ioLoop := s.threadPool.nextLoop(peer)
	s.nextConnID++
	connName := fmt.Sprintf("%s-%s#%d", s.name, s.ipPort, s.nextConnID)
	s.logger.Debugf("server %s new connection %s from %v", s.name, connName, peer)

	conn := NewConn(ioLoop, connName, fd, netpoll.LocalAddr(fd), peer)
	if s.opts.TCPNoDelay {
		sniffErrorAndLog(conn.SetTCPNoDelay(true))
	}
	if s.opts.TCPKeepAlive > 0 {
		sniffErrorAndLog(conn.SetKeepAlive(s.opts.TCPKeepAlive))
	}
	conn.SetConnectionCallback(s.connectionCallback)
	conn.SetMessageCallback(s.messageCallback)
	conn.SetWriteCompleteCallback(s.writeCompleteCallback)
	conn.SetHighWaterMarkCallback(s.highWaterMarkCallback, s.opts.highWaterMark())
	conn.SetCloseCallback(s.removeConnection)

	s.connections[connName] = conn
	s.threadPool.calibrate(ioLoop, 1)
	ioLoop.RunInLoop(conn.connectEstablished)
}

// removeConnection may be called on any I/O loop.
func (s *Server) removeConnection(conn *Conn) {
	s.loop.RunInLoop(func() {
		s.removeConnectionInLoop(conn)
	})
}

func (s *Server) removeConnectionInLoop(conn *Conn) {
	s.loop.assertInLoopThread()
	if _, ok := s.connections[conn.Name()]; !ok {
		return
	}
	s.logger.Debugf("server %s remove connection %s", s.name, conn.Name())
	delete(s.connections, conn.Name())
	s.threadPool.calibrate(conn.Loop(), -1)
	conn.Loop().QueueInLoop(conn.connectDestroyed)
}
