package iceberg

import (
	"testing"

	"github.com/stretchr/testify/require"

	"depthpipe/internal/model"
)

func TestIncreaseBetweenDecreasesNotDetected(t *testing.T) {
	d := New("BTCUSDT", 8)

	d.OnOrderBookUpdate([]model.PriceLevel{{Price: 100, Quantity: 10}}, nil)
	d.OnOrderBookUpdate([]model.PriceLevel{{Price: 100, Quantity: 6}}, nil)  // refill 1
	d.OnOrderBookUpdate([]model.PriceLevel{{Price: 100, Quantity: 8}}, nil)  // 8 > 6 -> refills reset to 0
	require.Empty(t, drainDetections(d))
}

func TestDetectionFiresAfterThreeStrictDecreases(t *testing.T) {
	d := New("BTCUSDT", 8)

	d.OnOrderBookUpdate([]model.PriceLevel{{Price: 100, Quantity: 10}}, nil) // baseline, last=10, refills=0
	d.OnOrderBookUpdate([]model.PriceLevel{{Price: 100, Quantity: 7}}, nil)  // 7<10 -> refills=1
	d.OnOrderBookUpdate([]model.PriceLevel{{Price: 100, Quantity: 9}}, nil)  // 9<7? no -> refills=0, last=9
	d.OnOrderBookUpdate([]model.PriceLevel{{Price: 100, Quantity: 4}}, nil)  // 4<9 -> refills=1
	d.OnOrderBookUpdate([]model.PriceLevel{{Price: 100, Quantity: 2}}, nil)  // 2<4 -> refills=2
	require.Empty(t, drainDetections(d))
	d.OnOrderBookUpdate([]model.PriceLevel{{Price: 100, Quantity: 1}}, nil)  // 1<2 -> refills=3 -> detect

	dets := drainDetections(d)
	require.Len(t, dets, 1)
	require.Equal(t, "BTCUSDT", dets[0].Symbol)
	require.Equal(t, 100.0, dets[0].Price)
	require.True(t, dets[0].IsBid)
}

func TestZeroQuantityResetsCounter(t *testing.T) {
	d := New("BTCUSDT", 8)
	d.OnOrderBookUpdate([]model.PriceLevel{{Price: 100, Quantity: 10}}, nil)
	d.OnOrderBookUpdate([]model.PriceLevel{{Price: 100, Quantity: 8}}, nil) // refills=1
	d.OnOrderBookUpdate([]model.PriceLevel{{Price: 100, Quantity: 0}}, nil) // delete -> refills=0
	d.OnOrderBookUpdate([]model.PriceLevel{{Price: 100, Quantity: 5}}, nil) // last was 0, 5<0 false -> refills=0
	d.OnOrderBookUpdate([]model.PriceLevel{{Price: 100, Quantity: 3}}, nil) // refills=1
	d.OnOrderBookUpdate([]model.PriceLevel{{Price: 100, Quantity: 1}}, nil) // refills=2
	require.Empty(t, drainDetections(d))
}

func drainDetections(d *Detector) []model.IcebergDetection {
	var out []model.IcebergDetection
	for {
		select {
		case v := <-d.out:
			out = append(out, v)
		default:
			return out
		}
	}
}
