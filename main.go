//go:build linux
// +build linux

package main

import (
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"netreactor/config"
	"netreactor/logging"
	"netreactor/pool/goroutine"
	"netreactor/reactor"
)

func main() {
	var (
		cfgPath string
		addr    string
		loops   int
		offload bool
	)
	flag.StringVar(&cfgPath, "c", "", "path of the YAML config file")
	flag.StringVar(&addr, "addr", "", "listen address, overrides the config")
	flag.IntVar(&loops, "loops", -1, "number of I/O loops, overrides the config")
	flag.BoolVar(&offload, "offload", false, "echo from the worker pool instead of the I/O loop")
	flag.Parse()

	props := config.Default()
	if cfgPath != "" {
		var err error
		if props, err = config.LoadConfigs(cfgPath); err != nil {
			logging.Fatalf("load config %s: %v", cfgPath, err)
		}
	}
	if addr != "" {
		props.Address = addr
	}
	if loops >= 0 {
		props.NumEventLoop = loops
	}
	props.Offload = props.Offload || offload
	logging.SetLevel(props.Level())
	defer func() { _ = logging.Flush() }()

	loop, err := reactor.NewEventLoop(reactor.WithPollTimeout(time.Second))
	if err != nil {
		logging.Fatalf("create event loop: %v", err)
	}

	server, err := reactor.NewServer(loop, props.Address, props.Name, props.Options()...)
	if err != nil {
		logging.Fatalf("create server: %v", err)
	}

	var pool *goroutine.Pool
	if props.Offload {
		pool = goroutine.Default()
		defer pool.Release()
	}

	server.SetConnectionCallback(func(c *reactor.Conn) {
		if c.Connected() {
			c.SetContext(new(echoQueue))
			logging.Infof("%s -> %s is up", c.RemoteAddr(), c.LocalAddr())
		} else {
			logging.Infof("%s -> %s is down", c.RemoteAddr(), c.LocalAddr())
		}
	})
	server.SetMessageCallback(func(c *reactor.Conn, buf *reactor.Buffer, _ time.Time) {
		if pool == nil {
			_ = c.SendBuffer(buf)
			return
		}
		q := c.Context().(*echoQueue)
		q.push(buf.RetrieveAllAsString())
		if err := pool.Submit(func() { _ = q.flush(c.SendString) }); err != nil {
			logging.Warnf("offload echo of %s: %v", c.Name(), err)
			_ = q.flush(c.SendString)
		}
	})

	if err = server.Start(); err != nil {
		logging.Fatalf("start server: %v", err)
	}

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		s := <-sig
		logging.Infof("received %v, shutting down", s)
		loop.Quit()
	}()

	loop.Loop()

	server.Stop()
	if err = loop.Close(); err != nil {
		logging.Errorf("close event loop: %v", err)
	}
}
