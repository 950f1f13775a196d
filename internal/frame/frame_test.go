package frame

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"depthpipe/internal/model"
	"depthpipe/internal/ring"
)

func TestTradeRoundTrip(t *testing.T) {
	trade := model.Trade{
		TradeID:      42,
		Price:        30123.45,
		Quantity:     0.125,
		TimestampNS:  1700000000000000000,
		IsBuyerMaker: true,
		IsBuy:        false,
	}
	buf := EncodeTrade(trade)
	hdr, err := DecodeHeader(buf[:HeaderSize])
	require.NoError(t, err)
	require.Equal(t, TypeTrade, hdr.Type)

	got, err := DecodeTrade(buf[HeaderSize:])
	require.NoError(t, err)
	require.Equal(t, trade, got)
}

func TestOrderBookRoundTrip(t *testing.T) {
	diff := model.DepthDiff{
		FirstUpdateID: 101,
		LastUpdateID:  105,
		Bids:          []model.PriceLevel{{Price: 10.0, Quantity: 1}, {Price: 9.99, Quantity: 2}},
		Asks:          []model.PriceLevel{{Price: 10.01, Quantity: 1.5}},
		EventTimeNS:   123456789,
	}
	buf := EncodeOrderBook(diff)
	hdr, err := DecodeHeader(buf[:HeaderSize])
	require.NoError(t, err)
	require.Equal(t, TypeOrderBook, hdr.Type)

	got, err := DecodeOrderBook(buf[HeaderSize:])
	require.NoError(t, err)
	require.Equal(t, diff, got)
}

func TestWriterReaderRoundTrip(t *testing.T) {
	rb := ring.New(256)
	w := NewWriter(rb, time.Millisecond)
	r := NewReader(rb, 4096)

	trade := model.Trade{TradeID: 7, Price: 1, Quantity: 2, TimestampNS: 3}
	require.NoError(t, w.WriteFrame(context.Background(), EncodeTrade(trade)))

	decoded, err := r.ReadFrame()
	require.NoError(t, err)
	require.Equal(t, TypeTrade, decoded.Type)
	got, err := DecodeTrade(decoded.Payload)
	require.NoError(t, err)
	require.Equal(t, trade, got)
}

func TestReaderResynchronizesAfterCorruption(t *testing.T) {
	rb := ring.New(512)
	w := NewWriter(rb, time.Millisecond)
	r := NewReader(rb, 4096)

	// Write garbage bytes that don't start with a valid tag, then a real
	// frame; the reader must recover the real frame.
	rb.Write([]byte{0xFF, 0xEE, 0xDD})
	trade := model.Trade{TradeID: 99, Price: 5, Quantity: 6, TimestampNS: 7}
	require.NoError(t, w.WriteFrame(context.Background(), EncodeTrade(trade)))

	decoded, err := r.ReadFrame()
	require.NoError(t, err)
	require.Equal(t, TypeTrade, decoded.Type)
	got, err := DecodeTrade(decoded.Payload)
	require.NoError(t, err)
	require.Equal(t, trade, got)
}

func TestReaderReturnsErrNoFrameWhenEmpty(t *testing.T) {
	rb := ring.New(64)
	r := NewReader(rb, 4096)
	_, err := r.ReadFrame()
	require.ErrorIs(t, err, ErrNoFrame)
}
