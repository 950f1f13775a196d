// Package config loads runtime configuration from environment variables
// prefixed with PIPELINE_, following the same viper pattern used elsewhere
// in the pack: defaults set up-front, then read back through viper's typed
// getters into a plain struct.
package config

import (
	"strings"

	"github.com/spf13/viper"
)

// Config holds every tunable named in SPEC_FULL.md §4.7.
type Config struct {
	Symbol string `mapstructure:"symbol"`

	StreamURL   string `mapstructure:"stream_url"`
	SnapshotURL string `mapstructure:"snapshot_url"`

	Ring  RingConfig
	Queue QueueConfig

	TickSize        float64 `mapstructure:"tick_size"`
	RefetchInterval int     `mapstructure:"refetch_interval_sec"`

	Liquidity LiquidityConfig

	HTTP HTTPConfig
}

// RingConfig sizes the ring bus.
type RingConfig struct {
	CapacityBytes int `mapstructure:"capacity_bytes"`
	MaxFrameBytes int `mapstructure:"max_frame_bytes"`
}

// QueueConfig sizes the three dispatcher fan-out queues.
type QueueConfig struct {
	TradeCapacity   int `mapstructure:"trade_capacity"`
	LiquidCapacity  int `mapstructure:"liquidity_capacity"`
	IcebergCapacity int `mapstructure:"iceberg_capacity"`
}

// LiquidityConfig mirrors liquidity.Config's fields for env-driven tuning.
type LiquidityConfig struct {
	BuyBucketUSD    float64 `mapstructure:"buy_bucket_usd"`
	SellBucketUSD   float64 `mapstructure:"sell_bucket_usd"`
	CancelBucketUSD float64 `mapstructure:"cancel_bucket_usd"`
	CancelRatio     float64 `mapstructure:"cancel_ratio"`
	TickSize        float64 `mapstructure:"tick_size"`
	DepthLevels     int     `mapstructure:"depth_levels"`
}

// HTTPConfig configures the observability surface.
type HTTPConfig struct {
	ListenAddr string `mapstructure:"listen_addr"`
}

// Load reads configuration from PIPELINE_-prefixed environment variables,
// falling back to the defaults below when unset.
func Load() (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("PIPELINE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("symbol", "BTCUSDT")
	v.SetDefault("stream_url", "wss://stream.binance.com:9443/ws/btcusdt@trade/btcusdt@depth")
	v.SetDefault("snapshot_url", "https://api.binance.com/api/v3/depth?symbol=BTCUSDT&limit=1000")

	v.SetDefault("ring.capacity_bytes", 1<<20)
	v.SetDefault("ring.max_frame_bytes", 1<<16)

	v.SetDefault("queue.trade_capacity", 4096)
	v.SetDefault("queue.liquidity_capacity", 4096)
	v.SetDefault("queue.iceberg_capacity", 4096)

	v.SetDefault("tick_size", 0.01)
	v.SetDefault("refetch_interval_sec", 30)

	v.SetDefault("liquidity.buy_bucket_usd", 1_000_000.0)
	v.SetDefault("liquidity.sell_bucket_usd", 1_000_000.0)
	v.SetDefault("liquidity.cancel_bucket_usd", 500_000.0)
	v.SetDefault("liquidity.cancel_ratio", 0.3)
	v.SetDefault("liquidity.tick_size", 0.01)
	v.SetDefault("liquidity.depth_levels", 30)

	v.SetDefault("http.listen_addr", ":8080")

	cfg := &Config{
		Symbol:      v.GetString("symbol"),
		StreamURL:   v.GetString("stream_url"),
		SnapshotURL: v.GetString("snapshot_url"),

		Ring: RingConfig{
			CapacityBytes: v.GetInt("ring.capacity_bytes"),
			MaxFrameBytes: v.GetInt("ring.max_frame_bytes"),
		},
		Queue: QueueConfig{
			TradeCapacity:   v.GetInt("queue.trade_capacity"),
			LiquidCapacity:  v.GetInt("queue.liquidity_capacity"),
			IcebergCapacity: v.GetInt("queue.iceberg_capacity"),
		},

		TickSize:        v.GetFloat64("tick_size"),
		RefetchInterval: v.GetInt("refetch_interval_sec"),

		Liquidity: LiquidityConfig{
			BuyBucketUSD:    v.GetFloat64("liquidity.buy_bucket_usd"),
			SellBucketUSD:   v.GetFloat64("liquidity.sell_bucket_usd"),
			CancelBucketUSD: v.GetFloat64("liquidity.cancel_bucket_usd"),
			CancelRatio:     v.GetFloat64("liquidity.cancel_ratio"),
			TickSize:        v.GetFloat64("liquidity.tick_size"),
			DepthLevels:     v.GetInt("liquidity.depth_levels"),
		},

		HTTP: HTTPConfig{
			ListenAddr: v.GetString("http.listen_addr"),
		},
	}

	return cfg, nil
}
