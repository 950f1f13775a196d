// Package pipeline drains the dispatcher's two analytic queues into the
// liquidity tracker and iceberg detector, the "liquidity consumer" and
// "iceberg consumer" threads spec.md §5 names. Each loop blocks on
// queue.Pop and exits once its queue is closed and drained, matching
// spec.md §5's shutdown rule that no operation waits on a queue
// indefinitely after close.
package pipeline

import (
	"context"

	"depthpipe/internal/iceberg"
	"depthpipe/internal/liquidity"
	"depthpipe/internal/model"
	"depthpipe/internal/queue"
)

// RunLiquidityConsumer pops trades and book diffs off tradeQ/bookQ and
// feeds them into lt until both queues are closed and drained or ctx is
// done. It runs both pops in their own goroutine so a quiet trade stream
// never delays book-diff processing or vice versa.
func RunLiquidityConsumer(ctx context.Context, tradeQ *queue.Queue[model.Trade], bookQ *queue.Queue[model.DepthDiff], lt *liquidity.Tracker) {
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			trade, ok := tradeQ.Pop(ctx)
			if !ok {
				return
			}
			lt.OnTrade(trade)
		}
	}()

	for {
		diff, ok := bookQ.Pop(ctx)
		if !ok {
			break
		}
		bids, asks := diffToLevels(diff)
		lt.OnOrderBookUpdate(diff.EventTimeNS, bids, asks)
	}
	<-done
}

// RunIcebergConsumer pops book diffs off bookQ and feeds them into id until
// the queue is closed and drained or ctx is done.
func RunIcebergConsumer(ctx context.Context, bookQ *queue.Queue[model.DepthDiff], id *iceberg.Detector) {
	for {
		diff, ok := bookQ.Pop(ctx)
		if !ok {
			return
		}
		id.OnOrderBookUpdate(diff.Bids, diff.Asks)
	}
}

// diffToLevels is liquidity.Tracker.OnOrderBookUpdate's level-slice shape;
// named out for clarity since the diff carries bids/asks directly.
func diffToLevels(diff model.DepthDiff) (bids, asks []model.PriceLevel) {
	return diff.Bids, diff.Asks
}
