package orderbook

import (
	"sort"

	"depthpipe/internal/model"
)

// level is a stored price level: a strictly positive quantity plus a
// diagnostic provenance tag. Zero-quantity levels are never stored — they
// are the wire sentinel for "delete this price" (spec.md §3).
type level struct {
	quantity float64
	source   model.SourceTag
}

// side is a price -> level map for one side of the book.
type side struct {
	levels map[float64]level
	isBid  bool
}

func newSide(isBid bool) *side {
	return &side{levels: make(map[float64]level), isBid: isBid}
}

func (s *side) set(price, qty float64, src model.SourceTag) {
	if qty <= 0 {
		delete(s.levels, price)
		return
	}
	s.levels[price] = level{quantity: qty, source: src}
}

func (s *side) remove(price float64) {
	delete(s.levels, price)
}

func (s *side) clear() {
	s.levels = make(map[float64]level)
}

func (s *side) qtyAt(price float64) (float64, bool) {
	l, ok := s.levels[price]
	return l.quantity, ok
}

// sortedPrices returns stored prices ordered best-first: descending for
// bids, ascending for asks (spec.md §3).
func (s *side) sortedPrices() []float64 {
	prices := make([]float64, 0, len(s.levels))
	for p := range s.levels {
		prices = append(prices, p)
	}
	if s.isBid {
		sort.Sort(sort.Reverse(sort.Float64Slice(prices)))
	} else {
		sort.Float64s(prices)
	}
	return prices
}

// best returns the best (highest for bids, lowest for asks) price, or 0 if
// the side is empty.
func (s *side) best() float64 {
	best := 0.0
	first := true
	for p := range s.levels {
		if first {
			best = p
			first = false
			continue
		}
		if s.isBid {
			if p > best {
				best = p
			}
		} else {
			if p < best {
				best = p
			}
		}
	}
	return best
}

// totalQuantity sums every stored quantity, used to verify tick
// re-aggregation preserves total size (spec.md §8 invariant 7).
func (s *side) totalQuantity() float64 {
	total := 0.0
	for _, l := range s.levels {
		total += l.quantity
	}
	return total
}
