// Package httpapi exposes the pipeline's observability surface: a health
// check, the order book keeper's cached metrics, and a server-sent-events
// stream of liquidity/iceberg events — the gin-based counterpart to the
// plain net/http SSE handler the turnover-rate server used.
package httpapi

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"depthpipe/internal/iceberg"
	"depthpipe/internal/liquidity"
	"depthpipe/internal/model"
	"depthpipe/internal/orderbook"
)

// Server owns the gin engine and the components it reports on.
type Server struct {
	engine *gin.Engine
	keeper *orderbook.Keeper
	lt     *liquidity.Tracker
	id     *iceberg.Detector
}

// New builds the HTTP surface. keeper, lt, and id may be used from any
// goroutine since their own concurrency primitives guard reads.
func New(keeper *orderbook.Keeper, lt *liquidity.Tracker, id *iceberg.Detector) *Server {
	s := &Server{engine: gin.Default(), keeper: keeper, lt: lt, id: id}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.engine.GET("/healthz", s.handleHealth)
	s.engine.GET("/metrics", s.handleMetrics)
	s.engine.GET("/depth", s.handleDepth)
	s.engine.GET("/events", s.handleEvents)
}

// Run starts the server on addr, blocking until it errors or the listener
// closes.
func (s *Server) Run(addr string) error {
	return s.engine.Run(addr)
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":      "ok",
		"initialized": s.keeper.Initialized(),
		"time":        time.Now().UTC(),
	})
}

func (s *Server) handleMetrics(c *gin.Context) {
	m := s.keeper.Metrics()
	c.JSON(http.StatusOK, gin.H{
		"best_bid":              m.BestBid,
		"best_ask":              m.BestAsk,
		"spread":                m.Spread,
		"imbalance_2":           m.Imbalance2,
		"imbalance_10":          m.Imbalance10,
		"imbalance_20":          m.Imbalance20,
		"imbalance_all":         m.ImbalanceAll,
		"imbalance_interpretation": model.ImbalanceInterpretation(m.ImbalanceAll),
		"total_bid_usd":         m.TotalBidUSD,
		"total_ask_usd":         m.TotalAskUSD,
	})
}

func (s *Server) handleDepth(c *gin.Context) {
	n := 20
	bids, asks := s.keeper.Depth(n)
	c.JSON(http.StatusOK, gin.H{"bids": bids, "asks": asks})
}

// handleEvents streams liquidity and iceberg events as they occur, tagging
// each with an "event:" line so clients can dispatch on kind.
func (s *Server) handleEvents(c *gin.Context) {
	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")

	flusher, ok := c.Writer.(http.Flusher)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "streaming unsupported"})
		return
	}

	ctx := c.Request.Context()
	liqEvents := s.lt.Events()
	icebergEvents := s.id.Detections()

	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-liqEvents:
			writeEvent(c.Writer, eventName(ev), ev)
			flusher.Flush()
		case det := <-icebergEvents:
			writeEvent(c.Writer, "iceberg", det)
			flusher.Flush()
		}
	}
}

func eventName(v any) string {
	switch v.(type) {
	case model.BucketClose:
		return "bucket_close"
	case model.CancelClose:
		return "cancel_close"
	case model.LiquidityChange:
		return "liquidity_change"
	default:
		return "unknown"
	}
}

func writeEvent(w http.ResponseWriter, name string, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		return
	}
	fmt.Fprintf(w, "event: %s\n", name)
	w.Write([]byte("data: "))
	w.Write(data)
	w.Write([]byte("\n\n"))
}
