// Package iceberg detects concealed-size orders: price levels that absorb
// repeated partial fills without fully depleting, the signature the
// original IcebergDetector watched for per (symbol, price, side).
package iceberg

import (
	"sync"

	"depthpipe/internal/model"
)

// refillThreshold is the number of consecutive partial refills required
// before a detection fires (spec.md §4.5).
const refillThreshold = 3

type levelState struct {
	lastQuantity       float64
	consecutiveRefills int
}

type key struct {
	price float64
	isBid bool
}

// Detector holds per-symbol iceberg state. One Detector instance is meant
// to track a single symbol; the symbol is carried on emitted detections
// for callers that fan multiple detectors into one stream.
type Detector struct {
	symbol string

	mu     sync.Mutex
	states map[key]*levelState
	out    chan model.IcebergDetection
}

// New builds a Detector for symbol, emitting detections on a channel
// buffered to eventsCap (default 64).
func New(symbol string, eventsCap int) *Detector {
	if eventsCap <= 0 {
		eventsCap = 64
	}
	return &Detector{
		symbol: symbol,
		states: make(map[key]*levelState),
		out:    make(chan model.IcebergDetection, eventsCap),
	}
}

// Detections returns the channel detections are delivered on.
func (d *Detector) Detections() <-chan model.IcebergDetection {
	return d.out
}

// emit drops the oldest pending detection to make room when out is full,
// matching liquidity.Tracker.emit's policy. Every send and receive here is
// non-blocking: emit runs with d.mu held, so a blocking channel op could
// deadlock against a consumer that never drains without this goroutine's
// help.
func (d *Detector) emit(v model.IcebergDetection) {
	select {
	case d.out <- v:
	default:
		select {
		case <-d.out:
		default:
		}
		select {
		case d.out <- v:
		default:
		}
	}
}

// OnOrderBookUpdate feeds one depth diff's levels through the refill
// counter. Levels carrying a zero quantity (deletions) reset the counter
// for that price rather than counting as a refill.
func (d *Detector) OnOrderBookUpdate(bids, asks []model.PriceLevel) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, lvl := range bids {
		d.observeLocked(lvl.Price, lvl.Quantity, true)
	}
	for _, lvl := range asks {
		d.observeLocked(lvl.Price, lvl.Quantity, false)
	}
}

func (d *Detector) observeLocked(price, qty float64, isBid bool) {
	k := key{price: price, isBid: isBid}
	st, ok := d.states[k]
	if !ok {
		st = &levelState{}
		d.states[k] = st
	}

	if qty > 0 && qty < st.lastQuantity {
		st.consecutiveRefills++
	} else {
		st.consecutiveRefills = 0
	}

	if st.consecutiveRefills >= refillThreshold {
		d.emit(model.IcebergDetection{Symbol: d.symbol, Price: price, IsBid: isBid})
		st.consecutiveRefills = 0
	}

	st.lastQuantity = qty
}
