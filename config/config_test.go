package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"netreactor/logging"
)

const sample = `
name: echo
address: tcp://127.0.0.1:7000
numEventLoop: 4
reusePort: true
loadBalancing: least-connections
tcpKeepAlive: 30s
tcpNoDelay: false
highWaterMark: 1048576
logLevel: debug
offload: true
`

func TestParse(t *testing.T) {
	p, err := Parse([]byte(sample))
	require.NoError(t, err)

	assert.Equal(t, "echo", p.Name)
	assert.Equal(t, "tcp://127.0.0.1:7000", p.Address)
	assert.Equal(t, 4, p.NumEventLoop)
	assert.True(t, p.ReusePort)
	assert.Equal(t, LeastConnections, p.LoadBalancing)
	assert.False(t, p.TCPNoDelay)
	assert.Equal(t, 1<<20, p.HighWaterMark)
	assert.True(t, p.Offload)
	assert.Equal(t, logging.DebugLevel, p.Level())

	keepAlive, err := p.keepAlive()
	require.NoError(t, err)
	assert.Equal(t, 30*time.Second, keepAlive)

	// unset keys keep their defaults
	timeout, err := p.pollTimeout()
	require.NoError(t, err)
	assert.Equal(t, 10*time.Second, timeout)
}

func TestParseInvalid(t *testing.T) {
	_, err := Parse([]byte("loadBalancing: random\n"))
	assert.ErrorIs(t, err, ErrInvalidLoadBalancing)

	_, err = Parse([]byte("tcpKeepAlive: soon\n"))
	assert.ErrorIs(t, err, ErrInvalidDuration)

	_, err = Parse([]byte("pollTimeout: -1s\n"))
	assert.ErrorIs(t, err, ErrInvalidDuration)

	_, err = Parse([]byte("logLevel: loud\n"))
	assert.ErrorIs(t, err, logging.ErrInvalidLevel)

	_, err = Parse([]byte("numEventLoop: [1, 2]\n"))
	assert.Error(t, err)
}

func TestLoadConfigs(t *testing.T) {
	path := filepath.Join(t.TempDir(), "netreactor.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sample), 0o644))

	p, err := LoadConfigs(path)
	require.NoError(t, err)
	assert.Equal(t, "echo", p.Name)

	_, err = LoadConfigs(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestDefault(t *testing.T) {
	p := Default()
	require.NoError(t, p.Validate())
	assert.Equal(t, RoundRobin, p.LoadBalancing)
	assert.Equal(t, logging.InfoLevel, p.Level())
}
