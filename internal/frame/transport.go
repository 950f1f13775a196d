package frame

import (
	"context"
	"fmt"
	"time"

	"depthpipe/internal/ring"
)

// Writer pushes complete frames onto a ring.Buffer, backing off when the
// ring is full rather than splitting a frame across two writes — spec.md
// §4.1 notes the ring gives no atomicity guarantee across a write, so the
// producer is responsible for keeping a frame's bytes contiguous.
type Writer struct {
	rb      *ring.Buffer
	backoff time.Duration
}

// NewWriter wraps rb. backoff is the sleep between retries when the ring
// has no room for a full frame; spec.md §5 calls a short sleep acceptable.
func NewWriter(rb *ring.Buffer, backoff time.Duration) *Writer {
	if backoff <= 0 {
		backoff = time.Millisecond
	}
	return &Writer{rb: rb, backoff: backoff}
}

// WriteFrame blocks until the ring has room for the whole frame and writes
// it in one go, or until ctx is done. A frame larger than the ring's usable
// capacity is rejected with an error.
func (w *Writer) WriteFrame(ctx context.Context, frameBytes []byte) error {
	usable := w.rb.Capacity() - 1
	if len(frameBytes) > usable {
		return fmt.Errorf("frame: %d-byte frame exceeds ring capacity %d", len(frameBytes), usable)
	}
	for usable-w.rb.Len() < len(frameBytes) {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(w.backoff):
		}
	}
	w.rb.Write(frameBytes)
	return nil
}

// Reader pulls frames off a ring.Buffer, implementing spec.md §4.1's
// resynchronization rule: read the 5-byte header first, and only attempt
// the body read if the header read was complete; a short body read means
// the frame is incomplete and bytes are discarded until the next valid tag.
type Reader struct {
	rb      *ring.Buffer
	scratch []byte
}

// NewReader wraps rb. maxFrame bounds the largest single frame body the
// reader will allocate for; a header announcing a longer body is treated as
// corruption and resynchronized past.
func NewReader(rb *ring.Buffer, maxFrame int) *Reader {
	return &Reader{rb: rb, scratch: make([]byte, maxFrame)}
}

// Decoded is one fully-read frame.
type Decoded struct {
	Type    byte
	Payload []byte
}

// ErrNoFrame means the ring currently holds fewer than HeaderSize bytes;
// the caller should retry later rather than treat this as corruption.
var ErrNoFrame = errNoFrame{}

type errNoFrame struct{}

func (errNoFrame) Error() string { return "frame: no complete header available" }

// ReadFrame attempts to read exactly one frame. On a short body read it
// resynchronizes by scanning forward byte-by-byte for the next recognized
// type tag before returning, so the caller's next call starts clean.
func (r *Reader) ReadFrame() (Decoded, error) {
	var hdr [HeaderSize]byte
	n := r.rb.Read(hdr[:])
	if n == 0 {
		return Decoded{}, ErrNoFrame
	}
	if n < HeaderSize {
		// Partial header: the bytes we did get are already consumed from
		// the ring and unrecoverable; resync from here.
		return r.resync()
	}

	if hdr[0] != TypeTrade && hdr[0] != TypeOrderBook {
		// The header read may have swallowed the start of the next real
		// frame; restart the header at the first valid tag among the bytes
		// already read before falling back to scanning the ring.
		i := 1
		for i < HeaderSize && hdr[i] != TypeTrade && hdr[i] != TypeOrderBook {
			i++
		}
		if i == HeaderSize {
			return r.resync()
		}
		copy(hdr[:], hdr[i:])
		if r.rb.Read(hdr[HeaderSize-i:]) < i {
			return Decoded{}, ErrNoFrame
		}
	}
	h, err := DecodeHeader(hdr[:])
	if err != nil {
		return Decoded{}, err
	}
	if int(h.Length) > len(r.scratch) {
		return r.resync()
	}
	body := r.scratch[:h.Length]
	got := r.rb.Read(body)
	if got < len(body) {
		return r.resync()
	}
	return Decoded{Type: h.Type, Payload: body}, nil
}

// resync discards bytes one at a time until it finds one that looks like a
// valid type tag and a full frame follows it, or the ring runs dry.
func (r *Reader) resync() (Decoded, error) {
	var b [1]byte
	for {
		n := r.rb.Read(b[:])
		if n == 0 {
			return Decoded{}, ErrNoFrame
		}
		if b[0] != TypeTrade && b[0] != TypeOrderBook {
			continue
		}
		var rest [HeaderSize - 1]byte
		got := r.rb.Read(rest[:])
		if got < len(rest) {
			return Decoded{}, ErrNoFrame
		}
		var hdr [HeaderSize]byte
		hdr[0] = b[0]
		copy(hdr[1:], rest[:])
		h, err := DecodeHeader(hdr[:])
		if err != nil {
			continue
		}
		if int(h.Length) > len(r.scratch) {
			continue
		}
		body := r.scratch[:h.Length]
		got = r.rb.Read(body)
		if got < len(body) {
			return Decoded{}, ErrNoFrame
		}
		return Decoded{Type: h.Type, Payload: body}, nil
	}
}
