package liquidity

import (
	"testing"

	"github.com/stretchr/testify/require"

	"depthpipe/internal/model"
)

func drainEvents(t *Tracker) []any {
	var out []any
	for {
		select {
		case v := <-t.events:
			out = append(out, v)
		default:
			return out
		}
	}
}

func TestTradeBucketClosesAtThreshold(t *testing.T) {
	cfg := DefaultConfig()
	cfg.BuyBucketUSD = 100
	tr := New(cfg, 16)

	tr.OnTrade(model.Trade{Price: 10, Quantity: 5, TimestampNS: 1, IsBuy: true}) // 50 usd
	require.Empty(t, drainEvents(tr))

	tr.OnTrade(model.Trade{Price: 10, Quantity: 6, TimestampNS: 2, IsBuy: true}) // +60 usd -> 110 >= 100
	events := drainEvents(tr)
	require.Len(t, events, 1)
	bc, ok := events[0].(model.BucketClose)
	require.True(t, ok)
	require.True(t, bc.IsBuy)
	require.Equal(t, model.BucketTrade, bc.Kind)
}

func TestOppositeFlowCreditsRatio(t *testing.T) {
	cfg := DefaultConfig()
	cfg.BuyBucketUSD = 100
	tr := New(cfg, 16)

	tr.OnTrade(model.Trade{Price: 10, Quantity: 5, TimestampNS: 1, IsBuy: false}) // sell 50, credits buy's opposite flow
	tr.OnTrade(model.Trade{Price: 10, Quantity: 11, TimestampNS: 2, IsBuy: true}) // buy 110 -> closes buy bucket

	events := drainEvents(tr)
	require.NotEmpty(t, events)
	var bc model.BucketClose
	for _, e := range events {
		if b, ok := e.(model.BucketClose); ok && b.IsBuy {
			bc = b
		}
	}
	// flow_same=110, flow_opposite=50 -> ratio = 110/160
	require.InDelta(t, 110.0/160.0, bc.FlowRatio, 1e-9)
}

func TestOrderFlowBucketEmitsRatioOne(t *testing.T) {
	cfg := DefaultConfig()
	cfg.BuyBucketUSD = 50
	cfg.TickSize = 0.01
	tr := New(cfg, 16)

	tr.OnOrderBookUpdate(1, []model.PriceLevel{{Price: 100, Quantity: 1}}, nil)
	events := drainEvents(tr)
	// first update: one addition worth 100usd > 50 threshold -> should close
	require.NotEmpty(t, events)
	found := false
	for _, e := range events {
		if bc, ok := e.(model.BucketClose); ok {
			require.Equal(t, model.BucketOrderFlow, bc.Kind)
			require.Equal(t, 1.0, bc.FlowRatio)
			found = true
		}
	}
	require.True(t, found)
}

func TestCancelDetectionAboveThreshold(t *testing.T) {
	cfg := DefaultConfig()
	cfg.CancelBucketUSD = 100
	cfg.CancelRatio = 0.3
	tr := New(cfg, 16)

	tr.OnOrderBookUpdate(1, []model.PriceLevel{{Price: 10, Quantity: 100}}, nil)
	drainEvents(tr)

	// Drop from 100 to 50: delta=-50 >= 0.3*100=30 -> cancel, value = 50*10=500usd
	tr.OnOrderBookUpdate(2, []model.PriceLevel{{Price: 10, Quantity: 50}}, nil)
	events := drainEvents(tr)

	foundCancel := false
	for _, e := range events {
		if cc, ok := e.(model.CancelClose); ok {
			require.True(t, cc.IsBuy)
			foundCancel = true
		}
	}
	require.True(t, foundCancel)
}

func TestSmallDecreaseNotTreatedAsCancel(t *testing.T) {
	cfg := DefaultConfig()
	cfg.CancelBucketUSD = 100000
	cfg.CancelRatio = 0.3
	tr := New(cfg, 16)

	tr.OnOrderBookUpdate(1, []model.PriceLevel{{Price: 10, Quantity: 100}}, nil)
	drainEvents(tr)

	// Drop from 100 to 95: delta=-5 < 0.3*100=30 -> not a cancel
	tr.OnOrderBookUpdate(2, []model.PriceLevel{{Price: 10, Quantity: 95}}, nil)
	events := drainEvents(tr)
	for _, e := range events {
		_, isCancel := e.(model.CancelClose)
		require.False(t, isCancel)
	}
}

func TestLiquidityChangeEmittedOnAnyDelta(t *testing.T) {
	tr := New(DefaultConfig(), 16)
	tr.OnOrderBookUpdate(1, []model.PriceLevel{{Price: 10, Quantity: 1}}, nil)
	events := drainEvents(tr)
	var sawChange bool
	for _, e := range events {
		if lc, ok := e.(model.LiquidityChange); ok {
			require.True(t, lc.IsBid)
			sawChange = true
		}
	}
	require.True(t, sawChange)
}
