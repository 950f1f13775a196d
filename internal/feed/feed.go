// Package feed runs the exchange websocket connection: it dials the
// combined trade/depthUpdate stream, decodes each message, and writes it
// onto the ring bus as a framed record. Reconnection uses exponential
// backoff with jitter and retries without limit until the context is done.
package feed

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"nhooyr.io/websocket"

	"depthpipe/internal/frame"
	"depthpipe/internal/wire"
)

const (
	minBackoff = 500 * time.Millisecond
	maxBackoff = 5 * time.Second
	readLimit  = 1 << 20
)

// Logger matches fmt.Printf's signature, the teacher's own logging idiom
// (plain formatted lines, no structured fields). Pass fmt.Printf itself, or
// a wrapper that also writes to a file.
type Logger func(format string, args ...any)

// Client streams a symbol's combined trade+depth feed and writes decoded
// frames onto a ring bus writer.
type Client struct {
	symbol    string
	streamURL string
	writer    *frame.Writer
	log       Logger

	mu           sync.Mutex
	connectionID string
}

// New builds a feed Client for symbol, dialing streamURL (the combined
// stream endpoint), writing decoded frames through w.
func New(symbol, streamURL string, w *frame.Writer, log Logger) *Client {
	return &Client{symbol: strings.ToUpper(symbol), streamURL: streamURL, writer: w, log: log}
}

// Run dials and redials the stream until ctx is done, reconnecting with
// exponential backoff and jitter on every failure.
func (c *Client) Run(ctx context.Context) {
	backoff := minBackoff
	for {
		err := c.runOnce(ctx)
		if ctx.Err() != nil {
			return
		}
		if err != nil {
			c.log("feed(%s): %v, reconnecting\n", c.symbol, err)
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(addJitter(backoff)):
		}
		backoff *= 2
		if backoff > maxBackoff {
			backoff = maxBackoff
		}
	}
}

// ConnectionID returns the correlation id of the current (or most recent)
// connection, used to tag log lines across a reconnect.
func (c *Client) ConnectionID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connectionID
}

func (c *Client) runOnce(ctx context.Context) error {
	connCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	ws, _, err := websocket.Dial(connCtx, c.streamURL, nil)
	if err != nil {
		return fmt.Errorf("feed: dial %s: %w", c.symbol, err)
	}
	ws.SetReadLimit(readLimit)
	defer ws.Close(websocket.StatusNormalClosure, "shutdown")

	c.mu.Lock()
	c.connectionID = uuid.NewString()
	connID := c.connectionID
	c.mu.Unlock()
	c.log("feed(%s) connected, connection_id=%s\n", c.symbol, connID)

	for {
		msgType, data, err := ws.Read(connCtx)
		if err != nil {
			if websocket.CloseStatus(err) == websocket.StatusNormalClosure {
				return nil
			}
			return fmt.Errorf("feed: read: %w", err)
		}
		if msgType != websocket.MessageText {
			continue
		}
		if err := c.handleMessage(connCtx, data); err != nil {
			c.log("feed(%s): dropping unparseable message: %v\n", c.symbol, err)
		}
	}
}

func (c *Client) handleMessage(ctx context.Context, data []byte) error {
	eventType, err := wire.EventType(data)
	if err != nil {
		return err
	}

	switch eventType {
	case "trade":
		trade, err := wire.ParseTrade(data)
		if err != nil {
			return err
		}
		return c.writer.WriteFrame(ctx, frame.EncodeTrade(trade))
	case "depthUpdate":
		diff, err := wire.ParseDepthUpdate(data)
		if err != nil {
			return err
		}
		return c.writer.WriteFrame(ctx, frame.EncodeOrderBook(diff))
	default:
		return nil
	}
}

func addJitter(d time.Duration) time.Duration {
	jitter := time.Duration((rand.Float64() - 0.5) * float64(200*time.Millisecond))
	return d + jitter
}
