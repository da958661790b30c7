//go:build linux
// +build linux

package reactor

import (
	"golang.org/x/sys/unix"
)

const (
	// CheapPrepend is the margin kept in front of the readable bytes for header insertion.
	CheapPrepend = 8
	// InitialSize is the initial writable capacity of a Buffer.
	InitialSize = 1024

	scratchSize = 0x10000
)

// Buffer is a growable byte stream with a read cursor and a write cursor.
//
//	+-------------------+------------------+------------------+
//	| prependable bytes |  readable bytes  |  writable bytes  |
//	|                   |     (CONTENT)    |                  |
//	+-------------------+------------------+------------------+
//	|                   |                  |                  |
//	0      <=      readerIndex   <=   writerIndex    <=     size
type Buffer struct {
	buf         []byte
	readerIndex int
	writerIndex int
}

// NewBuffer returns a Buffer with InitialSize writable bytes.
func NewBuffer() *Buffer {
	return NewBufferSize(InitialSize)
}

func NewBufferSize(initialSize int) *Buffer {
	return &Buffer{
		buf:         make([]byte, CheapPrepend+initialSize),
		readerIndex: CheapPrepend,
		writerIndex: CheapPrepend,
	}
}

func (b *Buffer) ReadableBytes() int {
	return b.writerIndex - b.readerIndex
}

func (b *Buffer) WritableBytes() int {
	return len(b.buf) - b.writerIndex
}

func (b *Buffer) PrependableBytes() int {
	return b.readerIndex
}

// Size is the length of the underlying array.
func (b *Buffer) Size() int {
	return len(b.buf)
}

// Peek returns the readable bytes without consuming them, the slice is only
// valid until the next mutation of b.
func (b *Buffer) Peek() []byte {
	return b.buf[b.readerIndex:b.writerIndex]
}

// Retrieve consumes n readable bytes.
func (b *Buffer) Retrieve(n int) {
	if n < b.ReadableBytes() {
		b.readerIndex += n
	} else {
		b.RetrieveAll()
	}
}

// RetrieveAll consumes everything and moves both cursors back to the margin.
func (b *Buffer) RetrieveAll() {
	b.readerIndex = CheapPrepend
	b.writerIndex = CheapPrepend
}

func (b *Buffer) RetrieveAsString(n int) string {
	if n > b.ReadableBytes() {
		n = b.ReadableBytes()
	}
	s := string(b.buf[b.readerIndex : b.readerIndex+n])
	b.Retrieve(n)
	return s
}

func (b *Buffer) RetrieveAllAsString() string {
	return b.RetrieveAsString(b.ReadableBytes())
}

// Append copies p after the readable bytes, growing the buffer if needed.
func (b *Buffer) Append(p []byte) {
	b.EnsureWritableBytes(len(p))
	b.writerIndex += copy(b.buf[b.writerIndex:], p)
}

func (b *Buffer) AppendString(s string) {
	b.EnsureWritableBytes(len(s))
	b.writerIndex += copy(b.buf[b.writerIndex:], s)
}

// Write implements io.Writer.
func (b *Buffer) Write(p []byte) (int, error) {
	b.Append(p)
	return len(p), nil
}

// Prepend inserts p right in front of the readable bytes, it panics if p
// does not fit in the prependable region.
func (b *Buffer) Prepend(p []byte) {
	if len(p) > b.PrependableBytes() {
		panic("reactor: prepend overflows the buffer margin")
	}
	b.readerIndex -= len(p)
	copy(b.buf[b.readerIndex:], p)
}

// EnsureWritableBytes makes room for at least n more bytes.
func (b *Buffer) EnsureWritableBytes(n int) {
	if b.WritableBytes() < n {
		b.makeSpace(n)
	}
}

func (b *Buffer) makeSpace(n int) {
	if b.WritableBytes()+b.PrependableBytes() < n+CheapPrepend {
		// 空间不够，按需扩容
		buf := make([]byte, b.writerIndex+n)
		copy(buf, b.buf[:b.writerIndex])
		b.buf = buf
		return
	}
	// 把可读数据挪到头部
	readable := b.ReadableBytes()
	copy(b.buf[CheapPrepend:], b.buf[b.readerIndex:b.writerIndex])
	b.readerIndex = CheapPrepend
	b.writerIndex = b.readerIndex + readable
}

// ReadFD reads from fd with a single readv into the writable tail and scratch.
// Bytes that overflow into scratch are appended afterwards. A nil scratch is
// replaced by a fresh 64 KiB slice.
func (b *Buffer) ReadFD(fd int, scratch []byte) (int, error) {
	if len(scratch) == 0 {
		scratch = make([]byte, scratchSize)
	}
	writable := b.WritableBytes()
	iovs := [][]byte{b.buf[b.writerIndex:], scratch}
	if writable >= len(scratch) {
		iovs = iovs[:1]
	}
	n, err := unix.Readv(fd, iovs)
	if err != nil {
		return 0, err
	}
	if n <= writable {
		b.writerIndex += n
	} else {
		b.writerIndex = len(b.buf)
		b.Append(scratch[:n-writable])
	}
	return n, nil
}

// WriteFD writes the readable bytes to fd once. It does not consume them,
// the caller retrieves what was actually written.
func (b *Buffer) WriteFD(fd int) (int, error) {
	n, err := unix.Write(fd, b.Peek())
	if err != nil {
		return 0, err
	}
	return n, nil
}
