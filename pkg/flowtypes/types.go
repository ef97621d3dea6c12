// Package flowtypes provides shared type definitions for the order-flow
// analytics engine: instrument context, MBO order/level state, indicator
// snapshots, detection events, signals and trade plans.
package flowtypes

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderSide represents the resting side of the book.
type OrderSide string

const (
	SideBid OrderSide = "bid"
	SideAsk OrderSide = "ask"
)

// Opposite returns the other side.
func (s OrderSide) Opposite() OrderSide {
	if s == SideBid {
		return SideAsk
	}
	return SideBid
}

// Direction is the inferred trade direction of a scored signal.
type Direction string

const (
	DirectionLong  Direction = "long"
	DirectionShort Direction = "short"
)

// Sign returns +1 for long, -1 for short.
func (d Direction) Sign() int {
	if d == DirectionLong {
		return 1
	}
	return -1
}

// DirectionFromSide infers a trade direction from the resting side an
// iceberg/absorption pattern was observed on: bid-side passive size
// defends higher prices (long), ask-side defends lower prices (short).
func DirectionFromSide(side OrderSide) Direction {
	if side == SideBid {
		return DirectionLong
	}
	return DirectionShort
}

// Trend classifies CVD slope over a short trailing window.
type Trend string

const (
	TrendBullish Trend = "bullish"
	TrendNeutral Trend = "neutral"
	TrendBearish Trend = "bearish"
)

// VWAPClassification locates price relative to session VWAP.
type VWAPClassification string

const (
	VWAPAbove VWAPClassification = "above"
	VWAPNear  VWAPClassification = "near"
	VWAPBelow VWAPClassification = "below"
)

// Instrument is the immutable tick-scale context for a traded symbol.
// All price fields elsewhere in the engine are integer tick counts
// relative to TickSize.
type Instrument struct {
	Symbol     string
	TickSize   decimal.Decimal // minimum price increment, e.g. 0.25
	Multiplier decimal.Decimal // contract multiplier
}

// NewInstrument validates and constructs an Instrument.
func NewInstrument(symbol string, tickSize, multiplier decimal.Decimal) (Instrument, error) {
	if symbol == "" {
		return Instrument{}, ErrInvalidConfig("symbol must not be empty")
	}
	if tickSize.Sign() <= 0 {
		return Instrument{}, ErrInvalidConfig("tick size must be positive")
	}
	if multiplier.Sign() <= 0 {
		return Instrument{}, ErrInvalidConfig("multiplier must be positive")
	}
	return Instrument{Symbol: symbol, TickSize: tickSize, Multiplier: multiplier}, nil
}

// PriceOf converts an integer tick count to an absolute decimal price.
func (i Instrument) PriceOf(ticks int64) decimal.Decimal {
	return i.TickSize.Mul(decimal.NewFromInt(ticks))
}

// ErrInvalidConfig is a sentinel-ish error type for startup configuration
// failures; it is the only error class allowed to be fatal (§7).
type ErrInvalidConfig string

func (e ErrInvalidConfig) Error() string { return string(e) }

// OrderID identifies a resting order on the book. Opaque to the engine.
type OrderID string

// RestingOrder is a single MBO entry: created by an insert, mutated only
// by size-reducing/size-changing replaces, destroyed by a cancel or by
// consumption to zero.
type RestingOrder struct {
	ID           OrderID
	Side         OrderSide
	Price        int64 // ticks
	Size         int64
	Seq          uint64 // monotonically increasing insertion sequence
	InsertedAt   time.Time
	LastModified time.Time
	Consumed     bool // true once a shrinking replace matched an opposing trade cue
}

// LevelKey identifies a (side, price) aggregate.
type LevelKey struct {
	Side  OrderSide
	Price int64
}

// PriceLevel aggregates all live resting orders at one (side, price).
type PriceLevel struct {
	Key          LevelKey
	Count        int
	TotalSize    int64
	FirstInsert  time.Time
	LastChange   time.Time
	Inserts      int // inserts observed since first insertion
	Cancels      int // cancels observed since first insertion
}

// TradeEvent is an executed trade. Consumed but never stored by the
// registry; it feeds CVD, VWAP, the volume profile, ATR and absorption
// detection only.
type TradeEvent struct {
	Price     int64
	Size      int64
	Aggressor OrderSide // side of the aggressing order
	Timestamp time.Time
}

// DepthEvent is an aggregated depth update (as opposed to MBO).
type DepthEvent struct {
	Side      OrderSide
	Price     int64
	Size      int64
	Timestamp time.Time
}

// BboEvent is a best-bid/best-offer update.
type BboEvent struct {
	BestBid   int64
	BestAsk   int64
	Timestamp time.Time
}

// DetectionKind names the tagged variant carried by a DetectionEvent.
type DetectionKind string

const (
	DetectionIceberg    DetectionKind = "iceberg"
	DetectionSpoof      DetectionKind = "spoof"
	DetectionAbsorption DetectionKind = "absorption"
)

// DetectionEvent is a tagged-variant sum over {Iceberg, Spoof, Absorption}.
// Exactly one payload struct is populated, matching Kind.
type DetectionEvent struct {
	Kind      DetectionKind
	Side      OrderSide
	Price     int64
	Timestamp time.Time

	Iceberg    *IcebergPayload
	Spoof      *SpoofPayload
	Absorption *AbsorptionPayload
}

// IcebergPayload carries the scorer inputs implied by an iceberg detection.
type IcebergPayload struct {
	Count int
	Size  int64
}

// SpoofPayload carries the scorer inputs implied by a spoof detection.
type SpoofPayload struct {
	Size     int64
	Lifetime time.Duration
}

// AbsorptionPayload carries the scorer inputs implied by an absorption
// detection.
type AbsorptionPayload struct {
	TradedSize  int64
	PassiveSize int64
}

// NewIcebergEvent constructs an Iceberg DetectionEvent.
func NewIcebergEvent(side OrderSide, price int64, count int, size int64, ts time.Time) DetectionEvent {
	return DetectionEvent{
		Kind: DetectionIceberg, Side: side, Price: price, Timestamp: ts,
		Iceberg: &IcebergPayload{Count: count, Size: size},
	}
}

// NewSpoofEvent constructs a Spoof DetectionEvent.
func NewSpoofEvent(side OrderSide, price int64, size int64, lifetime time.Duration, ts time.Time) DetectionEvent {
	return DetectionEvent{
		Kind: DetectionSpoof, Side: side, Price: price, Timestamp: ts,
		Spoof: &SpoofPayload{Size: size, Lifetime: lifetime},
	}
}

// NewAbsorptionEvent constructs an Absorption DetectionEvent.
func NewAbsorptionEvent(side OrderSide, price int64, tradedSize, passiveSize int64, ts time.Time) DetectionEvent {
	return DetectionEvent{
		Kind: DetectionAbsorption, Side: side, Price: price, Timestamp: ts,
		Absorption: &AbsorptionPayload{TradedSize: tradedSize, PassiveSize: passiveSize},
	}
}

// Phase is a wall-clock segment of the trading day.
type Phase string

const (
	PhasePreMarket    Phase = "pre_market"
	PhaseOpeningRange Phase = "opening_range"
	PhaseMorning      Phase = "morning"
	PhaseLunch        Phase = "lunch"
	PhaseAfternoon    Phase = "afternoon"
	PhaseClose        Phase = "close"
	PhasePostMarket   Phase = "post_market"
)

// CVDSnapshot is a read-only view of the CVD indicator.
type CVDSnapshot struct {
	Value     int64
	Trend     Trend
	Available bool
}

// VWAPSnapshot is a read-only view of the VWAP indicator.
type VWAPSnapshot struct {
	Value          decimal.Decimal
	Classification VWAPClassification
	DistanceTicks  int64
	Available      bool
}

// EMASnapshot is a read-only view of one EMA(period).
type EMASnapshot struct {
	Period    int
	Value     decimal.Decimal
	Available bool
}

// VolumeProfileSnapshot is a read-only view of the session volume profile.
type VolumeProfileSnapshot struct {
	POC       int64
	ValueLow  int64
	ValueHigh int64
	Available bool
}

// DOMSnapshot is a read-only view of depth-derived support/resistance.
type DOMSnapshot struct {
	Support    int64
	Resistance int64
	Imbalance  decimal.Decimal // sum(bidSize)/sum(askSize) in the configured band
	Available  bool
}

// IndicatorSnapshot bundles every indicator's current read-only state,
// captured after the triggering event has been fully absorbed.
type IndicatorSnapshot struct {
	CVD    CVDSnapshot
	VWAP   VWAPSnapshot
	EMAs   []EMASnapshot
	ATR    decimal.Decimal
	ATRAvailable bool
	Profile VolumeProfileSnapshot
	DOM    DOMSnapshot
	Phase  Phase
}

// ScoreFactor names one additive/subtractive term in the confluence
// score breakdown (§4.5).
type ScoreFactor string

const (
	FactorIcebergBase       ScoreFactor = "iceberg_base"
	FactorIcebergSize       ScoreFactor = "iceberg_size"
	FactorCVDAlignment      ScoreFactor = "cvd_alignment"
	FactorCVDDivergence     ScoreFactor = "cvd_divergence"
	FactorVolumeProfile     ScoreFactor = "volume_profile"
	FactorVolumeImbalance   ScoreFactor = "volume_imbalance"
	FactorEMAAlignment      ScoreFactor = "ema_alignment"
	FactorEMADivergence     ScoreFactor = "ema_divergence"
	FactorVWAP              ScoreFactor = "vwap"
	FactorTimeOfDay         ScoreFactor = "time_of_day"
	FactorDOM               ScoreFactor = "dom"
	FactorSpoofPenalty      ScoreFactor = "spoof_penalty"
)

// ScoreBreakdown is the per-factor contribution to a confluence score.
// Values sum (after clamping the total) to Score.
type ScoreBreakdown map[ScoreFactor]int

// Signal is an immutable, gate-admitted trading signal.
type Signal struct {
	ID         string
	Direction  Direction
	Price      int64
	Detection  DetectionEvent
	Score      int
	Breakdown  ScoreBreakdown
	Context    IndicatorSnapshot
	Threshold  int
	AdmittedAt time.Time
}

// ExecutionType names how a TradePlan should be worked.
type ExecutionType string

const (
	ExecMarket     ExecutionType = "market"
	ExecStopMarket ExecutionType = "stop_market"
	ExecLimit      ExecutionType = "limit"
)

// TradePlan is a trade plan emitted from an advisor "take" decision.
// Created by the advisor adapter; tracked by the plan tracker until
// resolved by an external collaborator.
type TradePlan struct {
	ID            string
	Direction     Direction
	Entry         int64
	StopLoss      int64
	TakeProfit    int64
	Quantity      int64
	Execution     ExecutionType
	Trigger       *int64
	SignalID      string
	Reasoning     string
	CreatedAt     time.Time
}

// PlanOutcome names how a tracked plan was ultimately resolved.
type PlanOutcome string

const (
	OutcomeFilled    PlanOutcome = "filled"
	OutcomeCancelled PlanOutcome = "cancelled"
	OutcomeHitSL     PlanOutcome = "hit_sl"
	OutcomeHitTP     PlanOutcome = "hit_tp"
)

// PlanResolution is an inbound event from the plan-consumer collaborator.
type PlanResolution struct {
	PlanID            string
	Outcome           PlanOutcome
	RealizedPnL       decimal.Decimal
	MaxAdverseExcursion decimal.Decimal
	ResolvedAt        time.Time
}

// AdvisorDecision is the structured reply from the advisor collaborator.
type AdvisorDecision struct {
	Take                 bool
	Confidence            decimal.Decimal
	Reasoning             string
	Plan                  *TradePlan
	ThresholdAdjustments  map[string]decimal.Decimal
}

// MemorySearchResult is one hit from the memory collaborator's search.
type MemorySearchResult struct {
	Path      string
	LineRange string
	Score     float64
	Snippet   string
	Source    string
}

// MemoryRecordKind names the kind of text appended to the memory log.
type MemoryRecordKind string

const (
	MemorySignalDecision MemoryRecordKind = "signal-decision"
	MemoryOutcome        MemoryRecordKind = "outcome"
	MemoryPhaseNote      MemoryRecordKind = "phase-note"
)
