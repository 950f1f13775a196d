// Package liquidity tracks two orthogonal views of order book flow: trades
// actually executed (Mode A) and raw additions/removals visible in book
// diffs (Mode B), plus cancellation detection and a liquidity-change event
// stream. It mirrors the dual-mode liquidity tracker from the original
// connector, translated from its callback style into Go channels.
package liquidity

import (
	"math"
	"sync"

	"depthpipe/internal/model"
)

// DefaultBuyBucketUSD, DefaultSellBucketUSD and DefaultCancelBucketUSD are
// the original connector's default thresholds.
const (
	DefaultBuyBucketUSD    = 1_000_000.0
	DefaultSellBucketUSD   = 1_000_000.0
	DefaultCancelBucketUSD = 500_000.0
	// DefaultCancelRatio is the fraction of a level's prior quantity that
	// must disappear in one diff for the removal to count as a cancel
	// rather than passive execution (spec.md §4.4).
	DefaultCancelRatio = 0.3
)

// Config parameterizes a Tracker's bucket sizes and cancel threshold.
type Config struct {
	BuyBucketUSD    float64
	SellBucketUSD   float64
	CancelBucketUSD float64
	CancelRatio     float64
	TickSize        float64
	DepthLevels     int
}

// DefaultConfig returns the original connector's tuning.
func DefaultConfig() Config {
	return Config{
		BuyBucketUSD:    DefaultBuyBucketUSD,
		SellBucketUSD:   DefaultSellBucketUSD,
		CancelBucketUSD: DefaultCancelBucketUSD,
		CancelRatio:     DefaultCancelRatio,
		TickSize:        0.01,
		DepthLevels:     30,
	}
}

// Tracker holds all bucket state for one symbol. Events are delivered on
// Events(), a single channel carrying BucketClose, CancelClose, and
// LiquidityChange values — spec.md §9 recommends a tagged-union event
// stream for exactly this reason.
type Tracker struct {
	cfg Config

	mu         sync.Mutex
	lastBids   map[float64]float64
	lastAsks   map[float64]float64

	buyAccumUSD, sellAccumUSD             float64
	buyFlowBuy, buyFlowSell                float64
	sellFlowSell, sellFlowBuy              float64
	buyStartNS, sellStartNS                uint64

	orderBuyAccumUSD, orderSellAccumUSD   float64
	orderBuyStartNS, orderSellStartNS     uint64

	cancelBuyAccumUSD, cancelSellAccumUSD float64
	cancelBuyTotal, cancelSellTotal       float64
	cancelBuyStartNS, cancelSellStartNS   uint64

	events chan any
}

// New builds a Tracker. events is buffered to cap; a full channel drops the
// oldest pending event rather than blocking the caller, since liquidity
// events are diagnostic and callers should not stall book processing.
func New(cfg Config, eventsCap int) *Tracker {
	if cfg.CancelRatio <= 0 {
		cfg.CancelRatio = DefaultCancelRatio
	}
	if eventsCap <= 0 {
		eventsCap = 256
	}
	return &Tracker{
		cfg:      cfg,
		lastBids: make(map[float64]float64),
		lastAsks: make(map[float64]float64),
		events:   make(chan any, eventsCap),
	}
}

// Events returns the channel on which BucketClose, CancelClose, and
// model.LiquidityChange values are delivered.
func (t *Tracker) Events() <-chan any {
	return t.events
}

func (t *Tracker) emit(v any) {
	select {
	case t.events <- v:
	default:
		// Drop oldest to make room, matching the fan-out queues' policy.
		select {
		case <-t.events:
		default:
		}
		select {
		case t.events <- v:
		default:
		}
	}
}

func (t *Tracker) roundPrice(price float64) float64 {
	if t.cfg.TickSize <= 0 {
		return price
	}
	return math.Round(price/t.cfg.TickSize) * t.cfg.TickSize
}

// OnTrade feeds one executed trade into Mode A (trade-driven buckets).
func (t *Tracker) OnTrade(trade model.Trade) {
	t.mu.Lock()
	defer t.mu.Unlock()

	notional := trade.Notional()
	if trade.IsBuy {
		if t.buyStartNS == 0 {
			t.buyStartNS = trade.TimestampNS
		}
		t.buyAccumUSD += notional
		t.buyFlowBuy += notional
		t.sellFlowBuy += notional // credit the opposite-side bucket's ratio input

		if t.buyAccumUSD >= t.cfg.BuyBucketUSD {
			duration := trade.TimestampNS - t.buyStartNS
			ratio := t.buyFlowBuy / (t.buyFlowBuy + t.buyFlowSell)
			t.emit(model.BucketClose{IsBuy: true, DurationNS: duration, BucketSize: t.cfg.BuyBucketUSD, FlowRatio: ratio, Kind: model.BucketTrade})
			t.buyAccumUSD, t.buyFlowBuy, t.buyFlowSell, t.buyStartNS = 0, 0, 0, 0
		}
	} else {
		if t.sellStartNS == 0 {
			t.sellStartNS = trade.TimestampNS
		}
		t.sellAccumUSD += notional
		t.sellFlowSell += notional
		t.buyFlowSell += notional

		if t.sellAccumUSD >= t.cfg.SellBucketUSD {
			duration := trade.TimestampNS - t.sellStartNS
			ratio := t.sellFlowSell / (t.sellFlowSell + t.sellFlowBuy)
			t.emit(model.BucketClose{IsBuy: false, DurationNS: duration, BucketSize: t.cfg.SellBucketUSD, FlowRatio: ratio, Kind: model.BucketTrade})
			t.sellAccumUSD, t.sellFlowSell, t.sellFlowBuy, t.sellStartNS = 0, 0, 0, 0
		}
	}
}

// OnOrderBookUpdate feeds one depth diff into Mode B (order-flow buckets)
// and the cancellation detector, comparing against the last observed
// quantity at each tracked price.
func (t *Tracker) OnOrderBookUpdate(timestampNS uint64, bids, asks []model.PriceLevel) {
	t.mu.Lock()
	defer t.mu.Unlock()

	curBids := t.snapshotSideLocked(bids)
	curAsks := t.snapshotSideLocked(asks)

	bidAdditions := t.detectSideLocked(timestampNS, curBids, t.lastBids, true)
	askAdditions := t.detectSideLocked(timestampNS, curAsks, t.lastAsks, false)

	for _, upd := range [2][2]map[float64]float64{{t.lastBids, curBids}, {t.lastAsks, curAsks}} {
		for price, qty := range upd[1] {
			if qty > 0 {
				upd[0][price] = qty
			} else {
				delete(upd[0], price)
			}
		}
	}

	t.closeOrderFlowBucketLocked(timestampNS, true, bidAdditions)
	t.closeOrderFlowBucketLocked(timestampNS, false, askAdditions)
}

func (t *Tracker) snapshotSideLocked(levels []model.PriceLevel) map[float64]float64 {
	out := make(map[float64]float64, len(levels))
	n := len(levels)
	if t.cfg.DepthLevels > 0 && n > t.cfg.DepthLevels {
		n = t.cfg.DepthLevels
	}
	for i := 0; i < n; i++ {
		out[t.roundPrice(levels[i].Price)] = levels[i].Quantity
	}
	return out
}

// detectSideLocked compares cur against prev, emitting LiquidityChange and
// cancel-bucket credits, and returns the total USD value added this update
// (for the order-flow bucket).
func (t *Tracker) detectSideLocked(timestampNS uint64, cur, prev map[float64]float64, isBid bool) float64 {
	var totalAdditions float64
	for price, volume := range cur {
		prevVolume := prev[price]
		delta := volume - prevVolume
		if math.Abs(delta) <= 1e-8 {
			continue
		}
		valueDelta := delta * price

		if delta > 0 {
			totalAdditions += valueDelta
		} else if delta < -prevVolume*t.cfg.CancelRatio && prevVolume > 0 {
			t.processCancelLocked(isBid, -valueDelta, timestampNS)
		}

		t.emit(model.LiquidityChange{Price: price, VolumeDelta: delta, TimestampNS: timestampNS, IsBid: isBid})
	}
	return totalAdditions
}

func (t *Tracker) closeOrderFlowBucketLocked(timestampNS uint64, isBid bool, additions float64) {
	if additions <= 0 {
		return
	}
	if isBid {
		if t.orderBuyStartNS == 0 {
			t.orderBuyStartNS = timestampNS
		}
		t.orderBuyAccumUSD += additions
		if t.orderBuyAccumUSD >= t.cfg.BuyBucketUSD {
			duration := timestampNS - t.orderBuyStartNS
			t.emit(model.BucketClose{IsBuy: true, DurationNS: duration, BucketSize: t.cfg.BuyBucketUSD, FlowRatio: 1.0, Kind: model.BucketOrderFlow})
			t.orderBuyAccumUSD, t.orderBuyStartNS = 0, 0
		}
		return
	}
	if t.orderSellStartNS == 0 {
		t.orderSellStartNS = timestampNS
	}
	t.orderSellAccumUSD += additions
	if t.orderSellAccumUSD >= t.cfg.SellBucketUSD {
		duration := timestampNS - t.orderSellStartNS
		t.emit(model.BucketClose{IsBuy: false, DurationNS: duration, BucketSize: t.cfg.SellBucketUSD, FlowRatio: 1.0, Kind: model.BucketOrderFlow})
		t.orderSellAccumUSD, t.orderSellStartNS = 0, 0
	}
}

func (t *Tracker) processCancelLocked(isBuy bool, cancelValue float64, timestampNS uint64) {
	if isBuy {
		if t.cancelBuyStartNS == 0 {
			t.cancelBuyStartNS = timestampNS
		}
		t.cancelBuyAccumUSD += cancelValue
		t.cancelBuyTotal += cancelValue
		if t.cancelBuyAccumUSD >= t.cfg.CancelBucketUSD {
			duration := timestampNS - t.cancelBuyStartNS
			ratio := t.cancelBuyTotal / t.cfg.CancelBucketUSD
			t.emit(model.CancelClose{IsBuy: true, DurationNS: duration, BucketSize: t.cfg.CancelBucketUSD, CancelRatio: ratio})
			t.cancelBuyAccumUSD, t.cancelBuyTotal, t.cancelBuyStartNS = 0, 0, 0
		}
		return
	}
	if t.cancelSellStartNS == 0 {
		t.cancelSellStartNS = timestampNS
	}
	t.cancelSellAccumUSD += cancelValue
	t.cancelSellTotal += cancelValue
	if t.cancelSellAccumUSD >= t.cfg.CancelBucketUSD {
		duration := timestampNS - t.cancelSellStartNS
		ratio := t.cancelSellTotal / t.cfg.CancelBucketUSD
		t.emit(model.CancelClose{IsBuy: false, DurationNS: duration, BucketSize: t.cfg.CancelBucketUSD, CancelRatio: ratio})
		t.cancelSellAccumUSD, t.cancelSellTotal, t.cancelSellStartNS = 0, 0, 0
	}
}

// ProcessCancelVolume directly credits the cancel bucket for one side,
// bypassing diff-based detection, for any caller that already knows a
// cancellation occurred. cancelVolume is credited as a USD value.
func (t *Tracker) ProcessCancelVolume(isBuy bool, cancelVolume float64, timestampNS uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.processCancelLocked(isBuy, cancelVolume, timestampNS)
}

// Reset zeroes every bucket and clears tracked level state.
func (t *Tracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	*t = Tracker{cfg: t.cfg, lastBids: make(map[float64]float64), lastAsks: make(map[float64]float64), events: t.events}
}
