// Package wire decodes the upstream venue's JSON messages (trade prints,
// depth diffs, and REST snapshots) into the pipeline's internal model
// types. Prices and quantities arrive as decimal strings on the wire;
// decimal.Decimal is used for the parse step itself so a malformed numeric
// string surfaces as a real error rather than silently parsing to 0 the way
// strconv.ParseFloat's error path is easy to swallow.
package wire

import (
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"

	"depthpipe/internal/model"
)

// envelope peeks at the "e" event-type field shared by every streamed
// message so the caller can dispatch before doing the full decode.
type envelope struct {
	EventType string `json:"e"`
	EventTime int64  `json:"E"`
}

// EventType extracts the "e" field from a raw streamed message.
func EventType(raw []byte) (string, error) {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return "", fmt.Errorf("wire: decode envelope: %w", err)
	}
	return env.EventType, nil
}

// tradeMessage mirrors Binance's aggTrade/trade stream schema.
type tradeMessage struct {
	EventType    string `json:"e"`
	EventTime    int64  `json:"E"`
	TradeID      uint64 `json:"t"`
	Price        string `json:"p"`
	Quantity     string `json:"q"`
	TradeTime    int64  `json:"T"`
	IsBuyerMaker bool   `json:"m"`
}

// ParseTrade decodes a raw trade message into model.Trade.
func ParseTrade(raw []byte) (model.Trade, error) {
	var msg tradeMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		return model.Trade{}, fmt.Errorf("wire: decode trade: %w", err)
	}

	price, err := parseDecimal(msg.Price, "p")
	if err != nil {
		return model.Trade{}, err
	}
	qty, err := parseDecimal(msg.Quantity, "q")
	if err != nil {
		return model.Trade{}, err
	}

	ts := uint64(msg.TradeTime) * 1_000_000
	if ts == 0 {
		ts = uint64(msg.EventTime) * 1_000_000
	}

	return model.Trade{
		TradeID:      msg.TradeID,
		Price:        price,
		Quantity:     qty,
		TimestampNS:  ts,
		IsBuyerMaker: msg.IsBuyerMaker,
		IsBuy:        !msg.IsBuyerMaker,
	}, nil
}

// depthUpdateMessage mirrors Binance's depthUpdate stream schema. Levels
// arrive as ["price", "quantity"] string pairs.
type depthUpdateMessage struct {
	EventType     string     `json:"e"`
	EventTime     int64      `json:"E"`
	FirstUpdateID uint64     `json:"U"`
	LastUpdateID  uint64     `json:"u"`
	Bids          [][]string `json:"b"`
	Asks          [][]string `json:"a"`
}

// ParseDepthUpdate decodes a raw depthUpdate message into model.DepthDiff.
// A zero quantity level is kept in the result (as the wire sentinel for
// "delete this price") rather than filtered here — the order book keeper
// owns that decision.
func ParseDepthUpdate(raw []byte) (model.DepthDiff, error) {
	var msg depthUpdateMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		return model.DepthDiff{}, fmt.Errorf("wire: decode depthUpdate: %w", err)
	}

	bids, err := parseLevels(msg.Bids)
	if err != nil {
		return model.DepthDiff{}, fmt.Errorf("wire: depthUpdate bids: %w", err)
	}
	asks, err := parseLevels(msg.Asks)
	if err != nil {
		return model.DepthDiff{}, fmt.Errorf("wire: depthUpdate asks: %w", err)
	}

	return model.DepthDiff{
		FirstUpdateID: msg.FirstUpdateID,
		LastUpdateID:  msg.LastUpdateID,
		Bids:          bids,
		Asks:          asks,
		EventTimeNS:   uint64(msg.EventTime) * 1_000_000,
	}, nil
}

// snapshotMessage mirrors the REST depth-snapshot endpoint's response body.
type snapshotMessage struct {
	LastUpdateID uint64     `json:"lastUpdateId"`
	Bids         [][]string `json:"bids"`
	Asks         [][]string `json:"asks"`
}

// ParseSnapshot decodes a REST snapshot response body into model.Snapshot.
func ParseSnapshot(raw []byte) (model.Snapshot, error) {
	var msg snapshotMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		return model.Snapshot{}, fmt.Errorf("wire: decode snapshot: %w", err)
	}

	bids, err := parseLevels(msg.Bids)
	if err != nil {
		return model.Snapshot{}, fmt.Errorf("wire: snapshot bids: %w", err)
	}
	asks, err := parseLevels(msg.Asks)
	if err != nil {
		return model.Snapshot{}, fmt.Errorf("wire: snapshot asks: %w", err)
	}

	return model.Snapshot{
		LastUpdateID: msg.LastUpdateID,
		Bids:         bids,
		Asks:         asks,
	}, nil
}

func parseLevels(raw [][]string) ([]model.PriceLevel, error) {
	out := make([]model.PriceLevel, 0, len(raw))
	for _, pair := range raw {
		if len(pair) < 2 {
			return nil, fmt.Errorf("wire: level pair has %d elements, want 2", len(pair))
		}
		price, err := parseDecimal(pair[0], "price")
		if err != nil {
			return nil, err
		}
		qty, err := parseDecimal(pair[1], "quantity")
		if err != nil {
			return nil, err
		}
		out = append(out, model.PriceLevel{Price: price, Quantity: qty})
	}
	return out, nil
}

func parseDecimal(s, field string) (float64, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("wire: field %q: %w", field, err)
	}
	f, _ := d.Float64()
	return f, nil
}
