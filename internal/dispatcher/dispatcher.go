// Package dispatcher drains the ring bus, applies order book diffs to the
// keeper, and fans decoded records out to the trade and analytic queues.
// It is the one component that touches both the ring bus and the order
// book keeper, matching spec.md §2's control-flow diagram: diffs reach the
// keeper only through this path, never directly from the feed client.
package dispatcher

import (
	"context"
	"errors"
	"time"

	"depthpipe/internal/frame"
	"depthpipe/internal/model"
	"depthpipe/internal/orderbook"
	"depthpipe/internal/queue"
	"depthpipe/internal/ring"
)

// Logger matches fmt.Printf's signature; pass fmt.Printf itself or a
// wrapper that also writes to a file, per the teacher's own logging idiom.
type Logger func(format string, args ...any)

// Resyncer is asked to refetch a fresh snapshot whenever the keeper reports
// a sequence gap; the snapshot fetcher implements this.
type Resyncer interface {
	RequestResync()
}

// Dispatcher wires one ring bus to one keeper and two analytic queues.
type Dispatcher struct {
	reader    *frame.Reader
	keeper    *orderbook.Keeper
	tradeQ    *queue.Queue[model.Trade]
	liqQ      *queue.Queue[model.DepthDiff]
	icebergQ  *queue.Queue[model.DepthDiff]
	resync    Resyncer
	log       Logger
	idleSleep time.Duration
}

// New builds a Dispatcher reading from rb (via a frame.Reader sized to
// maxFrame) and applying/fanning out to the given components.
func New(
	rb *ring.Buffer,
	maxFrame int,
	keeper *orderbook.Keeper,
	tradeQ *queue.Queue[model.Trade],
	liqQ, icebergQ *queue.Queue[model.DepthDiff],
	resync Resyncer,
	log Logger,
) *Dispatcher {
	return &Dispatcher{
		reader:    frame.NewReader(rb, maxFrame),
		keeper:    keeper,
		tradeQ:    tradeQ,
		liqQ:      liqQ,
		icebergQ:  icebergQ,
		resync:    resync,
		log:       log,
		idleSleep: time.Millisecond,
	}
}

// Run drains the ring bus until ctx is done, sleeping briefly whenever it
// finds nothing to read rather than busy-spinning.
func (d *Dispatcher) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		decoded, err := d.reader.ReadFrame()
		if err != nil {
			if errors.Is(err, frame.ErrNoFrame) {
				select {
				case <-ctx.Done():
					return
				case <-time.After(d.idleSleep):
				}
				continue
			}
			d.log("dispatcher: frame read error: %v\n", err)
			continue
		}

		d.dispatch(ctx, decoded)
	}
}

func (d *Dispatcher) dispatch(ctx context.Context, decoded frame.Decoded) {
	switch decoded.Type {
	case frame.TypeTrade:
		trade, err := frame.DecodeTrade(decoded.Payload)
		if err != nil {
			d.log("dispatcher: decode trade: %v\n", err)
			return
		}
		_ = d.tradeQ.Push(ctx, trade)

	case frame.TypeOrderBook:
		diff, err := frame.DecodeOrderBook(decoded.Payload)
		if err != nil {
			d.log("dispatcher: decode orderbook: %v\n", err)
			return
		}
		if err := d.keeper.ApplyDiff(diff); err != nil {
			if errors.Is(err, orderbook.ErrSequenceGap) {
				d.log("dispatcher: sequence gap at [%d,%d], requesting resync\n",
					diff.FirstUpdateID, diff.LastUpdateID)
				d.resync.RequestResync()
			}
			return
		}
		_ = d.liqQ.Push(ctx, diff)
		_ = d.icebergQ.Push(ctx, diff)
	}
}
