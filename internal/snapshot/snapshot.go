// Package snapshot fetches full order book snapshots over HTTP and applies
// them to the keeper, both on startup/resync and on a periodic unconditional
// schedule to bound drift — spec.md §4.2's Snapshot Fetcher.
package snapshot

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"depthpipe/internal/model"
	"depthpipe/internal/orderbook"
	"depthpipe/internal/wire"
)

// DefaultRefetchInterval matches the original connector's periodic
// unconditional re-fetch cadence.
const DefaultRefetchInterval = 30 * time.Second

const (
	maxRetries     = 3
	initialBackoff = time.Second
)

// Logger matches fmt.Printf's signature, the teacher's own logging idiom.
type Logger func(format string, args ...any)

// Fetcher issues snapshot requests against url and installs the result
// into a keeper, on demand (RequestResync, called by the dispatcher on a
// sequence gap) and on a fixed periodic schedule.
type Fetcher struct {
	url             string
	client          *http.Client
	keeper          *orderbook.Keeper
	log             Logger
	refetchInterval time.Duration

	resyncCh chan struct{}
}

// New builds a Fetcher. url is the full snapshot endpoint URL including
// symbol and depth query parameters.
func New(url string, client *http.Client, keeper *orderbook.Keeper, log Logger, refetchInterval time.Duration) *Fetcher {
	if client == nil {
		client = http.DefaultClient
	}
	if refetchInterval <= 0 {
		refetchInterval = DefaultRefetchInterval
	}
	return &Fetcher{
		url:             url,
		client:          client,
		keeper:          keeper,
		log:             log,
		refetchInterval: refetchInterval,
		resyncCh:        make(chan struct{}, 1),
	}
}

// RequestResync schedules an out-of-band fetch, satisfying the
// dispatcher.Resyncer interface. Non-blocking: a resync already pending
// coalesces with this one.
func (f *Fetcher) RequestResync() {
	select {
	case f.resyncCh <- struct{}{}:
	default:
	}
}

// Run fetches one snapshot immediately, then continues fetching on every
// RequestResync signal and on the periodic schedule, until ctx is done.
func (f *Fetcher) Run(ctx context.Context) {
	f.fetchAndApply(ctx)

	ticker := time.NewTicker(f.refetchInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			f.fetchAndApply(ctx)
		case <-f.resyncCh:
			f.fetchAndApply(ctx)
		}
	}
}

func (f *Fetcher) fetchAndApply(ctx context.Context) {
	snap, err := f.fetchOnce(ctx)
	if err != nil {
		f.log("snapshot: fetch failed: %v\n", err)
		return
	}
	f.keeper.ApplySnapshot(snap)
	f.log("snapshot: applied, last_update_id=%d\n", snap.LastUpdateID)
}

func (f *Fetcher) fetchOnce(ctx context.Context) (model.Snapshot, error) {
	var lastErr error
	for attempt := 0; attempt < maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return model.Snapshot{}, ctx.Err()
			case <-time.After(time.Duration(attempt) * initialBackoff):
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.url, nil)
		if err != nil {
			return model.Snapshot{}, err
		}
		req.Header.Set("Accept", "application/json")

		resp, err := f.client.Do(req)
		if err != nil {
			lastErr = fmt.Errorf("request attempt %d/%d: %w", attempt+1, maxRetries, err)
			continue
		}
		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			lastErr = fmt.Errorf("read body attempt %d/%d: %w", attempt+1, maxRetries, err)
			continue
		}
		if resp.StatusCode != http.StatusOK {
			lastErr = fmt.Errorf("status %s attempt %d/%d: %s", resp.Status, attempt+1, maxRetries, string(body))
			continue
		}

		snap, err := wire.ParseSnapshot(body)
		if err != nil {
			lastErr = fmt.Errorf("parse attempt %d/%d: %w", attempt+1, maxRetries, err)
			continue
		}
		return snap, nil
	}
	return model.Snapshot{}, fmt.Errorf("snapshot: all %d attempts failed: %w", maxRetries, lastErr)
}
