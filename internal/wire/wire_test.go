package wire

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEventType(t *testing.T) {
	et, err := EventType([]byte(`{"e":"trade","E":1}`))
	require.NoError(t, err)
	require.Equal(t, "trade", et)
}

func TestParseTrade(t *testing.T) {
	raw := []byte(`{"e":"trade","E":1700000000000,"t":42,"p":"30123.45","q":"0.125","T":1700000000123,"m":true}`)
	trade, err := ParseTrade(raw)
	require.NoError(t, err)
	require.Equal(t, uint64(42), trade.TradeID)
	require.InDelta(t, 30123.45, trade.Price, 1e-9)
	require.InDelta(t, 0.125, trade.Quantity, 1e-9)
	require.True(t, trade.IsBuyerMaker)
	require.False(t, trade.IsBuy)
	require.Equal(t, uint64(1700000000123)*1_000_000, trade.TimestampNS)
}

func TestParseTradeRejectsMalformedDecimal(t *testing.T) {
	raw := []byte(`{"e":"trade","p":"not-a-number","q":"1"}`)
	_, err := ParseTrade(raw)
	require.Error(t, err)
}

func TestParseDepthUpdate(t *testing.T) {
	raw := []byte(`{"e":"depthUpdate","E":1700000000000,"U":101,"u":105,"b":[["100.00","1.5"],["99.00","0"]],"a":[["101.00","2.0"]]}`)
	diff, err := ParseDepthUpdate(raw)
	require.NoError(t, err)
	require.Equal(t, uint64(101), diff.FirstUpdateID)
	require.Equal(t, uint64(105), diff.LastUpdateID)
	require.Len(t, diff.Bids, 2)
	require.Equal(t, 0.0, diff.Bids[1].Quantity)
	require.Len(t, diff.Asks, 1)
}

func TestParseSnapshot(t *testing.T) {
	raw := []byte(`{"lastUpdateId":100,"bids":[["100.00","1.0"]],"asks":[["101.00","2.0"]]}`)
	snap, err := ParseSnapshot(raw)
	require.NoError(t, err)
	require.Equal(t, uint64(100), snap.LastUpdateID)
	require.Len(t, snap.Bids, 1)
	require.Len(t, snap.Asks, 1)
}

func TestParseLevelsRejectsShortPair(t *testing.T) {
	raw := []byte(`{"e":"depthUpdate","U":1,"u":2,"b":[["100.00"]],"a":[]}`)
	_, err := ParseDepthUpdate(raw)
	require.Error(t, err)
}
