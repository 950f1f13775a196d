package dispatcher

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"depthpipe/internal/frame"
	"depthpipe/internal/model"
	"depthpipe/internal/orderbook"
	"depthpipe/internal/queue"
	"depthpipe/internal/ring"
)

type fakeResyncer struct{ calls atomic.Int32 }

func (f *fakeResyncer) RequestResync() { f.calls.Add(1) }

func nopLogger(string, ...any) {}

func TestDispatchTradePushesToTradeQueue(t *testing.T) {
	rb := ring.New(4096)
	keeper := orderbook.New()
	tradeQ := queue.New[model.Trade](4, queue.PolicyBlock)
	liqQ := queue.New[model.DepthDiff](4, queue.PolicyBlock)
	icebergQ := queue.New[model.DepthDiff](4, queue.PolicyBlock)
	resync := &fakeResyncer{}

	d := New(rb, 4096, keeper, tradeQ, liqQ, icebergQ, resync, nopLogger)

	w := frame.NewWriter(rb, time.Millisecond)
	trade := model.Trade{TradeID: 1, Price: 1, Quantity: 1}
	require.NoError(t, w.WriteFrame(context.Background(), frame.EncodeTrade(trade)))

	decoded, err := d.reader.ReadFrame()
	require.NoError(t, err)
	d.dispatch(context.Background(), decoded)

	got, ok := tradeQ.TryPop()
	require.True(t, ok)
	require.Equal(t, trade, got)
}

func TestDispatchOrderBookAppliesAndFansOut(t *testing.T) {
	rb := ring.New(4096)
	keeper := orderbook.New()
	keeper.ApplySnapshot(model.Snapshot{LastUpdateID: 100})
	tradeQ := queue.New[model.Trade](4, queue.PolicyBlock)
	liqQ := queue.New[model.DepthDiff](4, queue.PolicyBlock)
	icebergQ := queue.New[model.DepthDiff](4, queue.PolicyBlock)
	resync := &fakeResyncer{}

	d := New(rb, 4096, keeper, tradeQ, liqQ, icebergQ, resync, nopLogger)

	w := frame.NewWriter(rb, time.Millisecond)
	diff := model.DepthDiff{FirstUpdateID: 101, LastUpdateID: 102, Bids: []model.PriceLevel{{Price: 10, Quantity: 1}}}
	require.NoError(t, w.WriteFrame(context.Background(), frame.EncodeOrderBook(diff)))

	decoded, err := d.reader.ReadFrame()
	require.NoError(t, err)
	d.dispatch(context.Background(), decoded)

	require.Equal(t, uint64(102), keeper.LastUpdateID())
	_, ok := liqQ.TryPop()
	require.True(t, ok)
	_, ok = icebergQ.TryPop()
	require.True(t, ok)
	require.Equal(t, int32(0), resync.calls.Load())
}

func TestDispatchSequenceGapTriggersResync(t *testing.T) {
	rb := ring.New(4096)
	keeper := orderbook.New()
	keeper.ApplySnapshot(model.Snapshot{LastUpdateID: 100})
	tradeQ := queue.New[model.Trade](4, queue.PolicyBlock)
	liqQ := queue.New[model.DepthDiff](4, queue.PolicyBlock)
	icebergQ := queue.New[model.DepthDiff](4, queue.PolicyBlock)
	resync := &fakeResyncer{}

	d := New(rb, 4096, keeper, tradeQ, liqQ, icebergQ, resync, nopLogger)

	w := frame.NewWriter(rb, time.Millisecond)
	diff := model.DepthDiff{FirstUpdateID: 200, LastUpdateID: 202}
	require.NoError(t, w.WriteFrame(context.Background(), frame.EncodeOrderBook(diff)))

	decoded, err := d.reader.ReadFrame()
	require.NoError(t, err)
	d.dispatch(context.Background(), decoded)

	require.Equal(t, int32(1), resync.calls.Load())
	_, ok := liqQ.TryPop()
	require.False(t, ok)
}
