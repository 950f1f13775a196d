// Package orderbook reconstructs a live order book from a snapshot plus a
// stream of incremental diffs, the way the original binance_orderbook_w1
// connector did: apply snapshot, then only accept diffs whose
// first_update_id is contiguous with the last applied update id, else
// signal the caller to resynchronize.
package orderbook

import (
	"errors"
	"fmt"
	"math"
	"sync"

	"depthpipe/internal/model"
)

// ErrSequenceGap is returned by ApplyDiff when the diff's first_update_id
// is greater than lastUpdateID+1, leaving a gap after the last applied
// update. A diff whose last_update_id is <= lastUpdateID is stale and is
// ignored without an error instead.
var ErrSequenceGap = errors.New("orderbook: sequence gap, resync required")

// ErrNotInitialized is returned by ApplyDiff when no snapshot has been
// applied yet.
var ErrNotInitialized = errors.New("orderbook: no snapshot applied yet")

// allowedTickSizes is the fixed re-aggregation grid spec.md §4.4 names.
var allowedTickSizes = map[float64]bool{
	0.001: true, 0.01: true, 0.1: true, 1: true, 10: true, 100: true,
}

// staleBidFactor: bids priced below best_bid * staleBidFactor are swept on
// every applied update, per spec.md §4.5.
const staleBidFactor = 0.95

// Keeper holds one symbol's reconstructed book plus its cached metrics.
// All book mutation goes through ApplySnapshot/ApplyDiff under mu; Metrics
// readers take a separate, much-shorter-held metricsMu so HTTP/CLI reads
// never block the writer goroutine (spec.md §4.3). Every applied snapshot
// and diff also sweeps bids priced below best_bid * staleBidFactor; that
// sweep is a defensive heuristic, not a correctness guarantee.
type Keeper struct {
	mu            sync.Mutex
	initialized   bool
	lastUpdateID  uint64
	bids          *side
	asks          *side
	tickSize      float64

	metricsMu sync.Mutex
	metrics   model.BookMetrics
}

// New builds an empty Keeper. tickSize of 0 disables re-aggregation.
func New() *Keeper {
	return &Keeper{
		bids:     newSide(true),
		asks:     newSide(false),
		tickSize: 0,
	}
}

// SetTickSize validates tick against the fixed grid and re-aggregates any
// already-stored levels onto it. A tick of 0 stops rounding of later
// updates; levels already aggregated stay as they are, since the raw
// levels are not kept.
func (k *Keeper) SetTickSize(tick float64) error {
	if tick != 0 && !allowedTickSizes[tick] {
		return fmt.Errorf("orderbook: tick size %v not in allowed grid", tick)
	}
	k.mu.Lock()
	defer k.mu.Unlock()
	k.tickSize = tick
	k.bids = reaggregate(k.bids, tick)
	k.asks = reaggregate(k.asks, tick)
	k.recomputeMetricsLocked()
	return nil
}

// reaggregate rebuilds a side onto the given tick grid, summing quantities
// that land on the same rounded price. Passing tick==0 returns s unchanged.
// Total quantity is preserved exactly (spec.md §8 invariant 7).
func reaggregate(s *side, tick float64) *side {
	if tick == 0 {
		return s
	}
	out := newSide(s.isBid)
	for price, l := range s.levels {
		rounded := roundToTick(price, tick)
		existing, ok := out.levels[rounded]
		if ok {
			existing.quantity += l.quantity
			out.levels[rounded] = existing
		} else {
			out.levels[rounded] = l
		}
	}
	return out
}

func roundToTick(price, tick float64) float64 {
	return math.Round(price/tick) * tick
}

// ApplySnapshot replaces the book wholesale. Called directly by the
// snapshot fetcher, never via the ring bus (spec.md §2's control-flow
// diagram shows SnapshotFetcher -> OBK with no ring hop).
func (k *Keeper) ApplySnapshot(snap model.Snapshot) {
	k.mu.Lock()
	defer k.mu.Unlock()

	k.bids.clear()
	k.asks.clear()
	for _, lvl := range snap.Bids {
		k.bids.set(lvl.Price, lvl.Quantity, model.SourceSnapshot)
	}
	for _, lvl := range snap.Asks {
		k.asks.set(lvl.Price, lvl.Quantity, model.SourceSnapshot)
	}
	if k.tickSize != 0 {
		k.bids = reaggregate(k.bids, k.tickSize)
		k.asks = reaggregate(k.asks, k.tickSize)
	}
	k.lastUpdateID = snap.LastUpdateID
	k.initialized = true
	k.sweepStaleBidsLocked()
	k.recomputeMetricsLocked()
}

// ApplyDiff applies one incremental update. It returns ErrNotInitialized
// before the first snapshot, and ErrSequenceGap if diff does not
// contiguously extend the book — the dispatcher must then trigger a fresh
// snapshot fetch rather than keep applying diffs (spec.md §4.2). A stale
// diff (last_update_id <= the current id) is ignored and returns nil.
func (k *Keeper) ApplyDiff(diff model.DepthDiff) error {
	k.mu.Lock()
	defer k.mu.Unlock()

	if !k.initialized {
		return ErrNotInitialized
	}
	if diff.LastUpdateID <= k.lastUpdateID {
		// Entirely stale, already-applied update; ignore rather than error.
		return nil
	}
	if diff.FirstUpdateID > k.lastUpdateID+1 {
		return ErrSequenceGap
	}

	for _, lvl := range diff.Bids {
		k.applyLevel(k.bids, lvl)
	}
	for _, lvl := range diff.Asks {
		k.applyLevel(k.asks, lvl)
	}
	k.lastUpdateID = diff.LastUpdateID
	k.sweepStaleBidsLocked()
	k.recomputeMetricsLocked()
	return nil
}

func (k *Keeper) applyLevel(s *side, lvl model.PriceLevel) {
	price := lvl.Price
	if k.tickSize != 0 {
		price = roundToTick(price, k.tickSize)
	}
	// Diffs carry the new absolute quantity at a price, never a delta, so
	// this always replaces rather than accumulates — summing only happens
	// in reaggregate, when re-gridding onto a coarser tick size.
	s.set(price, lvl.Quantity, model.SourceDiff)
}

// sweepStaleBidsLocked drops bids priced below best_bid * staleBidFactor,
// per spec.md §4.5; the original connector reasoned these reflect a
// venue-side best bid that moved without the corresponding delete arriving.
func (k *Keeper) sweepStaleBidsLocked() {
	best := k.bids.best()
	if best == 0 {
		return
	}
	floor := best * staleBidFactor
	for price := range k.bids.levels {
		if price < floor {
			k.bids.remove(price)
		}
	}
}

// LastUpdateID reports the most recently applied update id.
func (k *Keeper) LastUpdateID() uint64 {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.lastUpdateID
}

// Initialized reports whether a snapshot has been applied.
func (k *Keeper) Initialized() bool {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.initialized
}

// Metrics returns the most recently computed cached metrics. Safe to call
// from any goroutine without contending with the writer.
func (k *Keeper) Metrics() model.BookMetrics {
	k.metricsMu.Lock()
	defer k.metricsMu.Unlock()
	return k.metrics
}

// Depth returns up to n price levels per side, best-first, for the CLI
// display or the /depth HTTP endpoint.
func (k *Keeper) Depth(n int) (bids, asks []model.PriceLevel) {
	k.mu.Lock()
	defer k.mu.Unlock()
	bids = topLevels(k.bids, n)
	asks = topLevels(k.asks, n)
	return bids, asks
}

func topLevels(s *side, n int) []model.PriceLevel {
	prices := s.sortedPrices()
	if n > 0 && len(prices) > n {
		prices = prices[:n]
	}
	out := make([]model.PriceLevel, 0, len(prices))
	for _, p := range prices {
		l := s.levels[p]
		out = append(out, model.PriceLevel{Price: p, Quantity: l.quantity})
	}
	return out
}
