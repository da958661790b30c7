//go:build linux
// +build linux

package reactor

import (
	"fmt"
	"net"
	"sync"
	"sync/atomic"

	"netreactor/internal/netpoll"
	"netreactor/logging"
)

// Client keeps at most one connection to a server, optionally reconnecting when it is lost.
type Client struct {
	loop      *EventLoop
	connector *Connector
	name      string
	opts      *Options

	connectionCallback    ConnectionCallback
	messageCallback       MessageCallback
	writeCompleteCallback WriteCompleteCallback

	retry   atomic.Bool
	connect atomic.Bool
	// only touched on the loop
	nextConnID int

	mu         sync.Mutex
	connection *Conn
}

// NewClient creates a client for addr, e.g. "127.0.0.1:9000". Nothing happens until Connect.
func NewClient(loop *EventLoop, addr, name string, opts ...Option) (*Client, error) {
	options := loadOptions(opts...)
	network, address := parseAddr(addr)
	switch network {
	case "tcp", "tcp4", "tcp6":
	default:
		return nil, ErrUnsupportedProtocol
	}
	serverAddr, err := net.ResolveTCPAddr(network, address)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %v: %w", addr, err, ErrInvalidAddr)
	}
	c := &Client{
		loop:               loop,
		connector:          NewConnector(loop, serverAddr, opts...),
		name:               name,
		opts:               options,
		connectionCallback: DefaultConnectionCallback,
		messageCallback:    DefaultMessageCallback,
	}
	c.retry.Store(options.Retry)
	c.connector.SetNewConnectionCallback(c.newConnection)
	logging.Debugf("client %s created with connector to %s", name, serverAddr)
	return c, nil
}

func (c *Client) Name() string {
	return c.name
}

func (c *Client) Loop() *EventLoop {
	return c.loop
}

func (c *Client) Retry() bool {
	return c.retry.Load()
}

// EnableRetry makes the client reconnect when an established connection goes down.
func (c *Client) EnableRetry() {
	c.retry.Store(true)
}

// Connection returns the current connection, nil if there is none.
func (c *Client) Connection() *Conn {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connection
}

// Callbacks must be set before Connect, they are not thread safe.
func (c *Client) SetConnectionCallback(cb ConnectionCallback)       { c.connectionCallback = cb }
func (c *Client) SetMessageCallback(cb MessageCallback)             { c.messageCallback = cb }
func (c *Client) SetWriteCompleteCallback(cb WriteCompleteCallback) { c.writeCompleteCallback = cb }

func (c *Client) Connect() {
	logging.Infof("client %s connecting to %s", c.name, c.connector.ServerAddr())
	c.connect.Store(true)
	c.connector.Start()
}

// Disconnect gracefully shuts the current connection down.
func (c *Client) Disconnect() {
	c.connect.Store(false)
	c.mu.Lock()
	conn := c.connection
	c.mu.Unlock()
	if conn != nil {
		conn.Shutdown()
	}
}

// Stop stops connecting, an established connection is left alone.
func (c *Client) Stop() {
	c.connect.Store(false)
	c.connector.Stop()
}

// Close stops connecting and force-closes the current connection. The
// connection is destroyed on the loop without reaching the retry logic.
func (c *Client) Close() {
	c.connect.Store(false)
	c.mu.Lock()
	conn := c.connection
	c.mu.Unlock()
	if conn == nil {
		c.connector.Stop()
		return
	}
	c.loop.RunInLoop(func() {
		conn.SetCloseCallback(func(cc *Conn) {
			c.mu.Lock()
			if c.connection == cc {
				c.connection = nil
			}
			c.mu.Unlock()
			cc.Loop().QueueInLoop(cc.connectDestroyed)
		})
	})
	conn.ForceClose()
	c.connector.Stop()
}

func (c *Client) newConnection(fd int, peer net.Addr) {
	c.loop.assertInLoopThread()
	c.nextConnID++
	connName := fmt.Sprintf("%s-%s#%d", c.name, peer, c.nextConnID)

	conn := NewConn(c.loop, connName, fd, netpoll.LocalAddr(fd), peer)
	if c.opts.TCPNoDelay {
		sniffErrorAndLog(conn.SetTCPNoDelay(true))
	}
	conn.SetConnectionCallback(c.connectionCallback)
	conn.SetMessageCallback(c.messageCallback)
	conn.SetWriteCompleteCallback(c.writeCompleteCallback)
	conn.SetHighWaterMarkCallback(nil, c.opts.highWaterMark())
	conn.SetCloseCallback(c.removeConnection)

	c.mu.Lock()
	c.connection = conn
	c.mu.Unlock()
	conn.connectEstablished()
}

func (c *Client) removeConnection(conn *Conn) {
	c.loop.assertInLoopThread()
	c.mu.Lock()
	if c.connection == conn {
		c.connection = nil
	}
	c.mu.Unlock()

	c.loop.QueueInLoop(conn.connectDestroyed)
	if c.retry.Load() && c.connect.Load() {
		logging.Infof("client %s reconnecting to %s", c.name, c.connector.ServerAddr())
		c.connector.Restart()
	}
}
