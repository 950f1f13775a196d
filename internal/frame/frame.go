// Package frame implements the typed length-prefixed record protocol
// carried over the ring bus: a 5-byte header (type tag + little-endian
// length) followed by a fixed or packed payload.
package frame

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"depthpipe/internal/model"
)

// Type tags, matching spec.md §6's binary frame layout.
const (
	TypeTrade     byte = 0x01
	TypeOrderBook byte = 0x02
)

// HeaderSize is the fixed byte length of a frame header: 1-byte type tag
// plus a 4-byte little-endian payload length.
const HeaderSize = 5

const tradePayloadSize = 8 + 8 + 8 + 8 + 1 // trade_id, price, quantity, timestamp_ns, flags
const bookHeaderSize = 8 + 8 + 8 + 4 + 4   // timestamp_ns, first_update_id, last_update_id, bid_count, ask_count
const levelSize = 8 + 8                    // price, quantity

const (
	flagIsBuyerMaker byte = 1 << 0
	flagIsBuy        byte = 1 << 1
)

// Header is a decoded frame header.
type Header struct {
	Type   byte
	Length uint32
}

// DecodeHeader parses the 5-byte frame header. buf must hold at least
// HeaderSize bytes; only the first HeaderSize are read.
func DecodeHeader(buf []byte) (Header, error) {
	if len(buf) < HeaderSize {
		return Header{}, fmt.Errorf("frame: short header: %d bytes", len(buf))
	}
	return Header{
		Type:   buf[0],
		Length: binary.LittleEndian.Uint32(buf[1:5]),
	}, nil
}

// EncodeTrade builds a complete TRADE frame (header + payload) for t.
func EncodeTrade(t model.Trade) []byte {
	out := make([]byte, HeaderSize+tradePayloadSize)
	out[0] = TypeTrade
	binary.LittleEndian.PutUint32(out[1:5], uint32(tradePayloadSize))

	body := out[HeaderSize:]
	binary.LittleEndian.PutUint64(body[0:8], t.TradeID)
	binary.LittleEndian.PutUint64(body[8:16], float64bits(t.Price))
	binary.LittleEndian.PutUint64(body[16:24], float64bits(t.Quantity))
	binary.LittleEndian.PutUint64(body[24:32], t.TimestampNS)

	var flags byte
	if t.IsBuyerMaker {
		flags |= flagIsBuyerMaker
	}
	if t.IsBuy {
		flags |= flagIsBuy
	}
	body[32] = flags

	return out
}

// DecodeTrade parses a TRADE payload (without the header).
func DecodeTrade(payload []byte) (model.Trade, error) {
	if len(payload) < tradePayloadSize {
		return model.Trade{}, fmt.Errorf("frame: short trade payload: %d bytes", len(payload))
	}
	flags := payload[32]
	return model.Trade{
		TradeID:      binary.LittleEndian.Uint64(payload[0:8]),
		Price:        float64frombits(binary.LittleEndian.Uint64(payload[8:16])),
		Quantity:     float64frombits(binary.LittleEndian.Uint64(payload[16:24])),
		TimestampNS:  binary.LittleEndian.Uint64(payload[24:32]),
		IsBuyerMaker: flags&flagIsBuyerMaker != 0,
		IsBuy:        flags&flagIsBuy != 0,
	}, nil
}

// EncodeOrderBook builds a complete ORDERBOOK frame for a depth diff. The
// header carries first_update_id in addition to spec.md §6's documented
// fields; see SPEC_FULL.md's "Resolved wire-layout gap" note.
func EncodeOrderBook(diff model.DepthDiff) []byte {
	bidCount := len(diff.Bids)
	askCount := len(diff.Asks)
	bodyLen := bookHeaderSize + (bidCount+askCount)*levelSize

	out := make([]byte, HeaderSize+bodyLen)
	out[0] = TypeOrderBook
	binary.LittleEndian.PutUint32(out[1:5], uint32(bodyLen))

	body := out[HeaderSize:]
	binary.LittleEndian.PutUint64(body[0:8], diff.EventTimeNS)
	binary.LittleEndian.PutUint64(body[8:16], diff.FirstUpdateID)
	binary.LittleEndian.PutUint64(body[16:24], diff.LastUpdateID)
	binary.LittleEndian.PutUint32(body[24:28], uint32(bidCount))
	binary.LittleEndian.PutUint32(body[28:32], uint32(askCount))

	off := bookHeaderSize
	for _, lvl := range diff.Bids {
		binary.LittleEndian.PutUint64(body[off:off+8], float64bits(lvl.Price))
		binary.LittleEndian.PutUint64(body[off+8:off+16], float64bits(lvl.Quantity))
		off += levelSize
	}
	for _, lvl := range diff.Asks {
		binary.LittleEndian.PutUint64(body[off:off+8], float64bits(lvl.Price))
		binary.LittleEndian.PutUint64(body[off+8:off+16], float64bits(lvl.Quantity))
		off += levelSize
	}

	return out
}

// DecodeOrderBook parses an ORDERBOOK payload (without the header).
func DecodeOrderBook(payload []byte) (model.DepthDiff, error) {
	if len(payload) < bookHeaderSize {
		return model.DepthDiff{}, fmt.Errorf("frame: short orderbook header: %d bytes", len(payload))
	}
	eventTime := binary.LittleEndian.Uint64(payload[0:8])
	firstID := binary.LittleEndian.Uint64(payload[8:16])
	lastID := binary.LittleEndian.Uint64(payload[16:24])
	bidCount := binary.LittleEndian.Uint32(payload[24:28])
	askCount := binary.LittleEndian.Uint32(payload[28:32])

	expected := bookHeaderSize + int(bidCount+askCount)*levelSize
	if len(payload) < expected {
		return model.DepthDiff{}, fmt.Errorf("frame: short orderbook body: want %d got %d", expected, len(payload))
	}

	off := bookHeaderSize
	bids := make([]model.PriceLevel, bidCount)
	for i := range bids {
		bids[i] = model.PriceLevel{
			Price:    float64frombits(binary.LittleEndian.Uint64(payload[off : off+8])),
			Quantity: float64frombits(binary.LittleEndian.Uint64(payload[off+8 : off+16])),
		}
		off += levelSize
	}
	asks := make([]model.PriceLevel, askCount)
	for i := range asks {
		asks[i] = model.PriceLevel{
			Price:    float64frombits(binary.LittleEndian.Uint64(payload[off : off+8])),
			Quantity: float64frombits(binary.LittleEndian.Uint64(payload[off+8 : off+16])),
		}
		off += levelSize
	}

	return model.DepthDiff{
		FirstUpdateID: firstID,
		LastUpdateID:  lastID,
		Bids:          bids,
		Asks:          asks,
		EventTimeNS:   eventTime,
	}, nil
}

// ErrUnknownType describes a header whose type tag is not recognized.
// Reader does not return it: ReadFrame resynchronizes past such a header by
// scanning for the next valid tag.
var ErrUnknownType = errors.New("frame: unknown type tag")

func float64bits(f float64) uint64 {
	return math.Float64bits(f)
}

func float64frombits(b uint64) float64 {
	return math.Float64frombits(b)
}
