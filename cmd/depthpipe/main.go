package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"depthpipe/internal/cli"
	"depthpipe/internal/config"
	"depthpipe/internal/dispatcher"
	"depthpipe/internal/feed"
	"depthpipe/internal/frame"
	"depthpipe/internal/httpapi"
	"depthpipe/internal/iceberg"
	"depthpipe/internal/liquidity"
	"depthpipe/internal/model"
	"depthpipe/internal/orderbook"
	"depthpipe/internal/pipeline"
	"depthpipe/internal/queue"
	"depthpipe/internal/ring"
	"depthpipe/internal/snapshot"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	logf := func(format string, args ...any) { log.Printf(trimTrailingNewline(format), args...) }

	keeper := orderbook.New()
	if err := keeper.SetTickSize(cfg.TickSize); err != nil {
		return fmt.Errorf("set initial tick size: %w", err)
	}

	lt := liquidity.New(liquidity.Config{
		BuyBucketUSD:    cfg.Liquidity.BuyBucketUSD,
		SellBucketUSD:   cfg.Liquidity.SellBucketUSD,
		CancelBucketUSD: cfg.Liquidity.CancelBucketUSD,
		CancelRatio:     cfg.Liquidity.CancelRatio,
		TickSize:        cfg.Liquidity.TickSize,
		DepthLevels:     cfg.Liquidity.DepthLevels,
	}, cfg.Queue.LiquidCapacity)
	id := iceberg.New(cfg.Symbol, cfg.Queue.IcebergCapacity)

	rb := ring.New(cfg.Ring.CapacityBytes)
	writer := frame.NewWriter(rb, time.Millisecond)

	tradeQ := queue.New[model.Trade](cfg.Queue.TradeCapacity, queue.PolicyBlock)
	liqQ := queue.New[model.DepthDiff](cfg.Queue.LiquidCapacity, queue.PolicyDropOldest)
	icebergQ := queue.New[model.DepthDiff](cfg.Queue.IcebergCapacity, queue.PolicyDropOldest)

	httpClient := &http.Client{Timeout: 10 * time.Second}
	sf := snapshot.New(cfg.SnapshotURL, httpClient, keeper, logf, time.Duration(cfg.RefetchInterval)*time.Second)

	disp := dispatcher.New(rb, cfg.Ring.MaxFrameBytes, keeper, tradeQ, liqQ, icebergQ, sf, logf)
	fc := feed.New(cfg.Symbol, cfg.StreamURL, writer, logf)

	srv := httpapi.New(keeper, lt, id)

	var wg sync.WaitGroup
	wg.Add(5)
	go func() { defer wg.Done(); sf.Run(ctx) }()
	go func() { defer wg.Done(); fc.Run(ctx) }()
	go func() { defer wg.Done(); disp.Run(ctx) }()
	go func() { defer wg.Done(); pipeline.RunLiquidityConsumer(ctx, tradeQ, liqQ, lt) }()
	go func() { defer wg.Done(); pipeline.RunIcebergConsumer(ctx, icebergQ, id) }()

	go func() {
		if err := srv.Run(cfg.HTTP.ListenAddr); err != nil {
			logf("httpapi: server stopped: %v", err)
		}
	}()

	console := cli.New(keeper, os.Stdin, os.Stdout)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	consoleDone := make(chan int, 1)
	go func() { consoleDone <- console.Run() }()

	var exitCode int
	select {
	case sig := <-sigCh:
		log.Printf("received signal: %v; shutting down", sig)
	case exitCode = <-consoleDone:
		log.Printf("console exited with code %d; shutting down", exitCode)
	}

	cancel()
	tradeQ.Close()
	liqQ.Close()
	icebergQ.Close()

	waitCh := make(chan struct{})
	go func() { wg.Wait(); close(waitCh) }()
	select {
	case <-waitCh:
	case <-time.After(5 * time.Second):
		log.Println("timed out waiting for workers to exit")
	}

	if exitCode != 0 {
		os.Exit(exitCode)
	}
	return nil
}

// trimTrailingNewline strips a single trailing newline so log.Printf (which
// already appends one) doesn't double them up; the component packages'
// Logger type matches fmt.Printf's signature and some callers pass format
// strings ending in \n.
func trimTrailingNewline(format string) string {
	if n := len(format); n > 0 && format[n-1] == '\n' {
		return format[:n-1]
	}
	return format
}
