// Package config loads the YAML configuration of a reactor server.
package config

import (
	"errors"
	"fmt"
	"io/ioutil"
	"strings"
	"time"

	"github.com/ghodss/yaml"

	"netreactor/logging"
)

// ServerProperties is the server section of a config file.
type ServerProperties struct {
	Name          string `json:"name"`
	Address       string `json:"address"`
	NumEventLoop  int    `json:"numEventLoop"`
	Multicore     bool   `json:"multicore"`
	ReusePort     bool   `json:"reusePort"`
	LoadBalancing string `json:"loadBalancing"`
	TCPKeepAlive  string `json:"tcpKeepAlive"`
	TCPNoDelay    bool   `json:"tcpNoDelay"`
	HighWaterMark int    `json:"highWaterMark"`
	PollTimeout   string `json:"pollTimeout"`
	LogLevel      string `json:"logLevel"`
	Offload       bool   `json:"offload"`
}

const (
	RoundRobin       = "round-robin"
	LeastConnections = "least-connections"
	SourceAddrHash   = "source-addr-hash"
)

var (
	ErrInvalidLoadBalancing = errors.New("invalid load balancing")
	ErrInvalidDuration      = errors.New("invalid duration")
)

// Default returns the properties used when no file is given.
func Default() *ServerProperties {
	return &ServerProperties{
		Name:          "netreactor",
		Address:       "tcp://:9000",
		NumEventLoop:  0,
		LoadBalancing: RoundRobin,
		TCPKeepAlive:  "0s",
		TCPNoDelay:    true,
		PollTimeout:   "10s",
		LogLevel:      "info",
	}
}

// Parse decodes YAML on top of the defaults and validates the result.
func Parse(data []byte) (*ServerProperties, error) {
	props := Default()
	if err := yaml.Unmarshal(data, props); err != nil {
		return nil, err
	}
	if err := props.Validate(); err != nil {
		return nil, err
	}
	return props, nil
}

// LoadConfigs reads and parses the file at path.
func LoadConfigs(path string) (*ServerProperties, error) {
	data, err := ioutil.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

// Validate checks the fields that are kept as strings.
func (p *ServerProperties) Validate() error {
	switch strings.ToLower(p.LoadBalancing) {
	case "", RoundRobin, LeastConnections, SourceAddrHash:
	default:
		return fmt.Errorf("%w: %q", ErrInvalidLoadBalancing, p.LoadBalancing)
	}
	if _, err := p.keepAlive(); err != nil {
		return err
	}
	if _, err := p.pollTimeout(); err != nil {
		return err
	}
	if p.LogLevel != "" {
		if _, err := logging.ParseLevel(p.LogLevel); err != nil {
			return fmt.Errorf("%w: %q", err, p.LogLevel)
		}
	}
	return nil
}

// Level returns the configured logging level, info when unset.
func (p *ServerProperties) Level() logging.Level {
	if l, err := logging.ParseLevel(p.LogLevel); err == nil {
		return l
	}
	return logging.InfoLevel
}

func (p *ServerProperties) keepAlive() (time.Duration, error) {
	return parseDuration(p.TCPKeepAlive)
}

func (p *ServerProperties) pollTimeout() (time.Duration, error) {
	return parseDuration(p.PollTimeout)
}

func parseDuration(s string) (time.Duration, error) {
	if s == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil || d < 0 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidDuration, s)
	}
	return d, nil
}
