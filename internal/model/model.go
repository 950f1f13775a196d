// Package model holds the data types shared across the ingestion pipeline:
// order book keeper, ring bus framing, liquidity tracker, and iceberg
// detector all operate on these shapes rather than on raw wire JSON.
package model

// Side identifies one side of the book.
type Side int

const (
	SideBid Side = iota
	SideAsk
)

func (s Side) String() string {
	if s == SideBid {
		return "bid"
	}
	return "ask"
}

// SourceTag records where a stored level's quantity last came from. It is
// diagnostic only and never affects book semantics.
type SourceTag int

const (
	SourceSnapshot SourceTag = iota
	SourceDiff
)

// PriceLevel is a single (price, quantity) pair. A quantity of zero is the
// wire-level sentinel meaning "delete this price" and is never stored.
type PriceLevel struct {
	Price    float64
	Quantity float64
}

// DepthDiff is an incremental order book patch.
type DepthDiff struct {
	FirstUpdateID uint64
	LastUpdateID  uint64
	Bids          []PriceLevel
	Asks          []PriceLevel
	EventTimeNS   uint64
}

// Snapshot is a full order book image with a monotonic update id.
type Snapshot struct {
	LastUpdateID uint64
	Bids         []PriceLevel
	Asks         []PriceLevel
}

// Trade is a single executed print.
type Trade struct {
	TradeID     uint64
	Price       float64
	Quantity    float64
	TimestampNS uint64
	// IsBuyerMaker is the wire flag; IsBuy is its logical negation, cached
	// here since callers consult it far more often than the raw flag.
	IsBuyerMaker bool
	IsBuy        bool
}

// Notional returns price * quantity.
func (t Trade) Notional() float64 {
	return t.Price * t.Quantity
}

// LiquidityChange is emitted by the liquidity tracker for every book level
// whose quantity moved, regardless of whether it crossed the cancel
// threshold.
type LiquidityChange struct {
	Price       float64
	VolumeDelta float64
	TimestampNS uint64
	IsBid       bool
}

// BucketClose is emitted when a trade-driven or order-flow bucket crosses
// its USD-notional threshold.
type BucketClose struct {
	IsBuy      bool
	DurationNS uint64
	BucketSize float64
	FlowRatio  float64
	// Kind distinguishes trade-driven buckets from order-flow buckets; both
	// use the same event shape per spec.md §9's tagged-union recommendation.
	Kind BucketKind
}

// BucketKind tags the variety of a BucketClose event. CancelClose carries
// no Kind field.
type BucketKind int

const (
	BucketTrade BucketKind = iota
	BucketOrderFlow
	BucketCancel
)

// CancelClose is emitted when a cancel bucket crosses its threshold.
type CancelClose struct {
	IsBuy       bool
	DurationNS  uint64
	BucketSize  float64
	CancelRatio float64
}

// IcebergDetection is emitted when a price level shows three consecutive
// partial-refill events without fully vanishing.
type IcebergDetection struct {
	Symbol string
	Price  float64
	IsBid  bool
}

// BookMetrics is the cached snapshot the order book keeper publishes after
// every applied update.
type BookMetrics struct {
	BestBid  float64
	BestAsk  float64
	Spread   float64
	Imbalance2, Imbalance10, Imbalance20, ImbalanceAll float64
	TotalAskUSD, TotalBidUSD float64
}

// ImbalanceInterpretation buckets an imbalance value into the bands spec.md
// §4.3 defines.
func ImbalanceInterpretation(imbalance float64) string {
	switch {
	case imbalance > 0.20:
		return "strong buy"
	case imbalance > 0.05:
		return "moderate buy"
	case imbalance < -0.20:
		return "strong sell"
	case imbalance < -0.05:
		return "moderate sell"
	default:
		return "neutral"
	}
}
