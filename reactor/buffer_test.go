//go:build linux
// +build linux

package reactor

import (
	"bytes"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

func checkBufferInvariant(t *testing.T, b *Buffer) {
	t.Helper()
	require.True(t, CheapPrepend <= b.readerIndex)
	require.True(t, b.readerIndex <= b.writerIndex)
	require.True(t, b.writerIndex <= b.Size())
	require.Equal(t, b.Size(), b.ReadableBytes()+b.WritableBytes()+b.PrependableBytes())
}

func TestBufferAppendRetrieve(t *testing.T) {
	b := NewBuffer()
	assert.Equal(t, 0, b.ReadableBytes())
	assert.Equal(t, InitialSize, b.WritableBytes())
	assert.Equal(t, CheapPrepend, b.PrependableBytes())

	str := string(bytes.Repeat([]byte{'x'}, 200))
	b.AppendString(str)
	assert.Equal(t, 200, b.ReadableBytes())
	assert.Equal(t, InitialSize-200, b.WritableBytes())

	s := b.RetrieveAsString(50)
	assert.Len(t, s, 50)
	assert.Equal(t, 150, b.ReadableBytes())
	assert.Equal(t, CheapPrepend+50, b.PrependableBytes())

	b.AppendString(str)
	assert.Equal(t, 350, b.ReadableBytes())

	assert.Len(t, b.RetrieveAllAsString(), 350)
	assert.Equal(t, 0, b.ReadableBytes())
	assert.Equal(t, CheapPrepend, b.PrependableBytes())
	checkBufferInvariant(t, b)
}

func TestBufferGrow(t *testing.T) {
	b := NewBuffer()
	b.AppendString(string(bytes.Repeat([]byte{'y'}, 400)))
	b.Retrieve(50)

	b.AppendString(string(bytes.Repeat([]byte{'z'}, 1000)))
	assert.Equal(t, 1350, b.ReadableBytes())
	assert.Equal(t, 0, b.WritableBytes())
	assert.Equal(t, CheapPrepend+50, b.PrependableBytes())
	checkBufferInvariant(t, b)

	b.RetrieveAll()
	assert.Equal(t, CheapPrepend, b.PrependableBytes())
	assert.Equal(t, 1400, b.WritableBytes())
}

func TestBufferInsideGrow(t *testing.T) {
	b := NewBuffer()
	b.AppendString(string(bytes.Repeat([]byte{'y'}, 800)))
	b.Retrieve(500)
	assert.Equal(t, 300, b.ReadableBytes())
	assert.Equal(t, InitialSize-800, b.WritableBytes())

	b.AppendString(string(bytes.Repeat([]byte{'z'}, 300)))
	assert.Equal(t, 600, b.ReadableBytes())
	assert.Equal(t, InitialSize-600, b.WritableBytes())
	assert.Equal(t, CheapPrepend, b.PrependableBytes())
	assert.Equal(t, CheapPrepend+InitialSize, b.Size())
	checkBufferInvariant(t, b)
}

func TestBufferPrepend(t *testing.T) {
	b := NewBuffer()
	b.AppendString("payload")
	b.Prepend([]byte{0, 0, 0, 7})
	assert.Equal(t, CheapPrepend-4, b.PrependableBytes())
	assert.Equal(t, append([]byte{0, 0, 0, 7}, "payload"...), b.Peek())
	assert.Panics(t, func() { b.Prepend(make([]byte, CheapPrepend)) })
}

func TestBufferRandomRoundTrip(t *testing.T) {
	r := rand.New(rand.NewSource(1))
	for round := 0; round < 50; round++ {
		b := NewBuffer()
		var in, out bytes.Buffer
		for step := 0; step < 200; step++ {
			if r.Intn(3) > 0 {
				p := make([]byte, r.Intn(3000))
				r.Read(p)
				in.Write(p)
				_, _ = b.Write(p)
			} else {
				n := r.Intn(b.ReadableBytes() + 1)
				out.WriteString(b.RetrieveAsString(n))
			}
			checkBufferInvariant(t, b)
		}
		out.WriteString(b.RetrieveAllAsString())
		checkBufferInvariant(t, b)
		require.Equal(t, in.Bytes(), out.Bytes())
	}
}

func TestBufferReadWriteFD(t *testing.T) {
	var fds [2]int
	require.NoError(t, unix.Pipe2(fds[:], unix.O_NONBLOCK|unix.O_CLOEXEC))
	defer unix.Close(fds[0])
	defer unix.Close(fds[1])

	// more than the writable tail, so part of the read lands in scratch.
	payload := make([]byte, 3000)
	rand.New(rand.NewSource(2)).Read(payload)
	src := NewBuffer()
	src.Append(payload)
	n, err := src.WriteFD(fds[1])
	require.NoError(t, err)
	require.Equal(t, len(payload), n)
	assert.Equal(t, len(payload), src.ReadableBytes(), "WriteFD must not retrieve")

	dst := NewBuffer()
	n, err = dst.ReadFD(fds[0], make([]byte, scratchSize))
	require.NoError(t, err)
	assert.Equal(t, len(payload), n)
	assert.Equal(t, payload, dst.Peek())
	checkBufferInvariant(t, dst)

	_, err = dst.ReadFD(fds[0], nil)
	assert.Equal(t, unix.EAGAIN, err)
}
