// Package ring implements a fixed-capacity single-producer/single-consumer
// byte ring buffer. One goroutine writes, one goroutine reads; no locks are
// taken on the hot path, only atomic index updates.
package ring

import "sync/atomic"

// Buffer is a lock-free SPSC byte ring. The zero value is not usable; build
// one with New.
type Buffer struct {
	buf      []byte
	capacity uint64
	head     atomic.Uint64 // producer write position, mod capacity
	tail     atomic.Uint64 // consumer read position, mod capacity
}

// New allocates a ring of the given byte capacity. Capacity need not be a
// power of two, though callers are encouraged to pick one.
func New(capacity int) *Buffer {
	if capacity <= 1 {
		panic("ring: capacity must be greater than 1")
	}
	return &Buffer{
		buf:      make([]byte, capacity),
		capacity: uint64(capacity),
	}
}

// Capacity returns the ring's total byte capacity.
func (b *Buffer) Capacity() int {
	return int(b.capacity)
}

// Write copies as much of data into the ring as there is space for and
// returns the number of bytes accepted. A short write means the ring is
// full; the caller is responsible for backpressure (retry/sleep).
func (b *Buffer) Write(data []byte) int {
	head := b.head.Load()
	tail := b.tail.Load()

	used := (head - tail + b.capacity) % b.capacity
	space := b.capacity - 1 - used
	toWrite := uint64(len(data))
	if toWrite > space {
		toWrite = space
	}
	if toWrite == 0 {
		return 0
	}

	pos := head % b.capacity
	firstChunk := b.capacity - pos
	if firstChunk > toWrite {
		firstChunk = toWrite
	}
	copy(b.buf[pos:pos+firstChunk], data[:firstChunk])

	secondChunk := toWrite - firstChunk
	if secondChunk > 0 {
		copy(b.buf[:secondChunk], data[firstChunk:toWrite])
	}

	b.head.Store((head + toWrite) % b.capacity)
	return int(toWrite)
}

// Read copies as many bytes as are available (up to len(out)) out of the
// ring and returns the count. A short read means the ring had less data
// buffered than requested.
func (b *Buffer) Read(out []byte) int {
	head := b.head.Load()
	tail := b.tail.Load()

	available := (head - tail + b.capacity) % b.capacity
	toRead := uint64(len(out))
	if toRead > available {
		toRead = available
	}
	if toRead == 0 {
		return 0
	}

	pos := tail % b.capacity
	firstChunk := b.capacity - pos
	if firstChunk > toRead {
		firstChunk = toRead
	}
	copy(out[:firstChunk], b.buf[pos:pos+firstChunk])

	secondChunk := toRead - firstChunk
	if secondChunk > 0 {
		copy(out[firstChunk:toRead], b.buf[:secondChunk])
	}

	b.tail.Store((tail + toRead) % b.capacity)
	return int(toRead)
}

// Len returns the number of bytes currently buffered, for observability.
func (b *Buffer) Len() int {
	head := b.head.Load()
	tail := b.tail.Load()
	return int((head - tail + b.capacity) % b.capacity)
}
