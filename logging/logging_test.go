package logging

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordLogger struct {
	sync.Mutex
	lines []string
}

func (r *recordLogger) record(level, format string, args ...interface{}) {
	r.Lock()
	r.lines = append(r.lines, level+" "+fmt.Sprintf(format, args...))
	r.Unlock()
}

func (r *recordLogger) Debugf(format string, args ...interface{}) { r.record("DEBUG", format, args...) }
func (r *recordLogger) Infof(format string, args ...interface{})  { r.record("INFO", format, args...) }
func (r *recordLogger) Warnf(format string, args ...interface{})  { r.record("WARN", format, args...) }
func (r *recordLogger) Errorf(format string, args ...interface{}) { r.record("ERROR", format, args...) }
func (r *recordLogger) Fatalf(format string, args ...interface{}) { r.record("FATAL", format, args...) }

func TestParseLevel(t *testing.T) {
	l, err := ParseLevel("DEBUG")
	require.NoError(t, err)
	assert.Equal(t, DebugLevel, l)

	l, err = ParseLevel(" warn ")
	require.NoError(t, err)
	assert.Equal(t, WarnLevel, l)

	_, err = ParseLevel("loud")
	assert.ErrorIs(t, err, ErrInvalidLevel)
}

func TestSetDefaultLogger(t *testing.T) {
	old := GetDefaultLogger()
	defer SetDefaultLogger(old, nil)

	rec := &recordLogger{}
	flushed := false
	SetDefaultLogger(rec, func() error { flushed = true; return nil })

	Infof("fd=%d up", 7)
	Errorf("accept: %v", "EMFILE")
	require.NoError(t, Flush())

	assert.Equal(t, []string{"INFO fd=7 up", "ERROR accept: EMFILE"}, rec.lines)
	assert.True(t, flushed)

	// nil loggers are ignored.
	SetDefaultLogger(nil, nil)
	assert.Same(t, rec, GetDefaultLogger())
}

func TestSetLevel(t *testing.T) {
	old := GetLevel()
	defer SetLevel(old)

	SetLevel(ErrorLevel)
	assert.Equal(t, ErrorLevel, GetLevel())
}
