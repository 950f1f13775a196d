package feed

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"depthpipe/internal/frame"
	"depthpipe/internal/ring"
)

func nopLogger(string, ...any) {}

func TestHandleMessageTradeWritesFrame(t *testing.T) {
	rb := ring.New(4096)
	w := frame.NewWriter(rb, time.Millisecond)
	c := New("BTCUSDT", "wss://example.invalid", w, nopLogger)

	raw := []byte(`{"e":"trade","E":1,"t":1,"p":"1.0","q":"1.0","T":1,"m":false}`)
	require.NoError(t, c.handleMessage(context.Background(), raw))

	r := frame.NewReader(rb, 4096)
	decoded, err := r.ReadFrame()
	require.NoError(t, err)
	require.Equal(t, frame.TypeTrade, decoded.Type)
}

func TestHandleMessageUnknownEventTypeIgnored(t *testing.T) {
	rb := ring.New(1024)
	w := frame.NewWriter(rb, time.Millisecond)
	c := New("BTCUSDT", "wss://example.invalid", w, nopLogger)

	require.NoError(t, c.handleMessage(context.Background(), []byte(`{"e":"bookTicker"}`)))
	require.Equal(t, 0, rb.Len())
}

func TestHandleMessageMalformedJSONErrors(t *testing.T) {
	rb := ring.New(1024)
	w := frame.NewWriter(rb, time.Millisecond)
	c := New("BTCUSDT", "wss://example.invalid", w, nopLogger)

	err := c.handleMessage(context.Background(), []byte(`not json`))
	require.Error(t, err)
}
