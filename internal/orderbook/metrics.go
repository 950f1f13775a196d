package orderbook

import "depthpipe/internal/model"

// recomputeMetricsLocked rebuilds the cached metrics snapshot. The caller
// must already hold k.mu; this copies the price vectors it needs and does
// its arithmetic before taking metricsMu only long enough to publish the
// result, so Metrics() readers never wait on the book's write lock.
func (k *Keeper) recomputeMetricsLocked() {
	bidPrices := k.bids.sortedPrices()
	askPrices := k.asks.sortedPrices()

	m := model.BookMetrics{}
	if len(bidPrices) > 0 {
		m.BestBid = bidPrices[0]
	}
	if len(askPrices) > 0 {
		m.BestAsk = askPrices[0]
	}
	if m.BestBid > 0 && m.BestAsk > 0 {
		m.Spread = m.BestAsk - m.BestBid
	}

	m.Imbalance2 = k.imbalanceAtLocked(bidPrices, askPrices, 2)
	m.Imbalance10 = k.imbalanceAtLocked(bidPrices, askPrices, 10)
	m.Imbalance20 = k.imbalanceAtLocked(bidPrices, askPrices, 20)
	m.ImbalanceAll = k.imbalanceAtLocked(bidPrices, askPrices, 0)

	for _, p := range bidPrices {
		l := k.bids.levels[p]
		m.TotalBidUSD += p * l.quantity
	}
	for _, p := range askPrices {
		l := k.asks.levels[p]
		m.TotalAskUSD += p * l.quantity
	}

	k.metricsMu.Lock()
	k.metrics = m
	k.metricsMu.Unlock()
}

// imbalanceAtLocked computes (B-A)/(A+B) over the top n levels per side
// (n==0 means every level), where A and B are USD notional (price*qty)
// summed over the top asks and bids respectively — spec.md §4.3. Returns 0
// when the denominator is non-positive.
func (k *Keeper) imbalanceAtLocked(bidPrices, askPrices []float64, n int) float64 {
	bidNotional := sumNotional(k.bids, bidPrices, n)
	askNotional := sumNotional(k.asks, askPrices, n)
	total := bidNotional + askNotional
	if total <= 0 {
		return 0
	}
	return (bidNotional - askNotional) / total
}

func sumNotional(s *side, prices []float64, n int) float64 {
	if n > 0 && len(prices) > n {
		prices = prices[:n]
	}
	total := 0.0
	for _, p := range prices {
		total += p * s.levels[p].quantity
	}
	return total
}
