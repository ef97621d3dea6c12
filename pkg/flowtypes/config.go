package flowtypes

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Weights holds the confluence scorer's per-factor point values (§4.5).
// All fields are configuration; the values below are the spec defaults.
type Weights struct {
	IcebergBase         int `json:"icebergBase"`
	IcebergSizeMax       int `json:"icebergSizeMax"`
	CVDAlignment        int `json:"cvdAlignment"`
	CVDDivergence       int `json:"cvdDivergence"`
	VolumeProfile       int `json:"volumeProfile"`
	VolumeImbalance     int `json:"volumeImbalance"`
	EMAAlignment3       int `json:"emaAlignment3"`
	EMAAlignment2       int `json:"emaAlignment2"`
	EMAAlignment1       int `json:"emaAlignment1"`
	EMADivergence0      int `json:"emaDivergence0"`
	EMADivergence1      int `json:"emaDivergence1"`
	VWAPAligned         int `json:"vwapAligned"`
	VWAPWrongSide       int `json:"vwapWrongSide"`
	TimeOfDayPrimary    int `json:"timeOfDayPrimary"`  // Morning/Afternoon
	TimeOfDaySecondary  int `json:"timeOfDaySecondary"` // OpeningRange/Close
	DOMSupportResist    int `json:"domSupportResist"`
	SpoofOpposing       int `json:"spoofOpposing"`
}

// DefaultWeights returns the §4.5 defaults.
func DefaultWeights() Weights {
	return Weights{
		IcebergBase:        40,
		IcebergSizeMax:     8,
		CVDAlignment:       25,
		CVDDivergence:      -30,
		VolumeProfile:      20,
		VolumeImbalance:    10,
		EMAAlignment3:      15,
		EMAAlignment2:      10,
		EMAAlignment1:      5,
		EMADivergence0:     -15,
		EMADivergence1:     -5,
		VWAPAligned:        10,
		VWAPWrongSide:      -10,
		TimeOfDayPrimary:   10,
		TimeOfDaySecondary: 5,
		DOMSupportResist:   10,
		SpoofOpposing:      5,
	}
}

// PhaseSchedule is the pluggable wall-clock schedule driving §4.7. All
// times are wall-clock-of-day in Location.
type PhaseSchedule struct {
	Location             *time.Location
	MarketOpen            time.Duration // start of OpeningRange
	OpeningRangeDuration  time.Duration // default 30m
	LunchStart            time.Duration // default 12:00
	LunchEnd              time.Duration // default 13:00
	MarketClose           time.Duration // start of PostMarket
	CloseWindowDuration   time.Duration // default 60m, ends at MarketClose
}

// DefaultPhaseSchedule returns an equities-style 09:30-16:00 schedule in
// the given location, pluggable per §9 ("treat the six-phase schedule as
// pluggable configuration rather than hard-coded").
func DefaultPhaseSchedule(loc *time.Location) PhaseSchedule {
	if loc == nil {
		loc = time.UTC
	}
	return PhaseSchedule{
		Location:             loc,
		MarketOpen:           9*time.Hour + 30*time.Minute,
		OpeningRangeDuration: 30 * time.Minute,
		LunchStart:           12 * time.Hour,
		LunchEnd:             13 * time.Hour,
		MarketClose:          16 * time.Hour,
		CloseWindowDuration:  60 * time.Minute,
	}
}

// Config is the complete set of recognized options (§6).
type Config struct {
	Instrument Instrument

	// MBO registry / detectors
	IcebergMinOrders    int           `json:"icebergMinOrders"`
	IcebergSizeBase     int64         `json:"icebergSizeBase"`
	SpoofMaxAge         time.Duration `json:"spoofMaxAgeMs"`
	SpoofMinSize        int64         `json:"spoofMinSize"`
	AbsorptionMinSize   int64         `json:"absorptionMinSize"`
	AdaptiveWindow      int           `json:"adaptiveWindow"`
	ThresholdMultiplier decimal.Decimal `json:"thresholdMultiplier"`
	ConsumptionWindow   time.Duration `json:"consumptionWindowMs"`
	IcebergCooldown     time.Duration `json:"icebergCooldownMs"`
	AbsorptionWindow    time.Duration `json:"absorptionWindowMs"`

	// Scorer
	Weights Weights `json:"weights"`

	// Gate
	MinConfluenceScore int           `json:"minConfluenceScore"`
	ConfluenceThreshold int          `json:"confluenceThreshold"`
	PerPriceCooldown   time.Duration `json:"perPriceCooldownMs"`
	GlobalSpacing      time.Duration `json:"globalSpacingMs"`

	// Indicators
	EMAPeriods []int `json:"emaPeriods"`
	ATRPeriod  int   `json:"atrPeriod"`
	ValueAreaFraction decimal.Decimal `json:"valueAreaFraction"`
	DOMBandTicks      int64           `json:"domBandTicks"`
	CVDTrendWindow    int             `json:"cvdTrendWindow"`

	// Session
	PhaseSchedule PhaseSchedule `json:"-"`

	// Advisor
	AdvisorTimeout      time.Duration   `json:"advisorTimeoutMs"`
	AdvisorRetryBackoff []time.Duration `json:"-"`
	AdvisorBacklogSkip  int             `json:"advisorBacklogSkip"`
	AdvisorLatencySamples int           `json:"advisorLatencySamples"`

	// Plans
	DefaultContractQty int64 `json:"defaultContractQty"`
	PlanLogPath         string `json:"planLogPath"`
}

// Default returns the spec's §6 defaults.
func Default() Config {
	tick, _ := decimal.NewFromString("0.25")
	mult := decimal.NewFromInt(1)
	instrument, _ := NewInstrument("ES", tick, mult)

	return Config{
		Instrument: instrument,

		IcebergMinOrders:    15,
		IcebergSizeBase:     20,
		SpoofMaxAge:         500 * time.Millisecond,
		SpoofMinSize:        5,
		AbsorptionMinSize:   20,
		AdaptiveWindow:      100,
		ThresholdMultiplier: decimal.NewFromFloat(3.0),
		ConsumptionWindow:   50 * time.Millisecond,
		IcebergCooldown:     2 * time.Second,
		AbsorptionWindow:    2 * time.Second,

		Weights: DefaultWeights(),

		MinConfluenceScore:  50,
		ConfluenceThreshold: 40,
		PerPriceCooldown:    2 * time.Second,
		GlobalSpacing:       200 * time.Millisecond,

		EMAPeriods:        []int{9, 21, 50},
		ATRPeriod:         14,
		ValueAreaFraction: decimal.NewFromFloat(0.70),
		DOMBandTicks:      5,
		CVDTrendWindow:    20,

		PhaseSchedule: DefaultPhaseSchedule(time.UTC),

		AdvisorTimeout:        60 * time.Second,
		AdvisorRetryBackoff:   []time.Duration{1 * time.Second, 2 * time.Second, 4 * time.Second},
		AdvisorBacklogSkip:    2,
		AdvisorLatencySamples: 20,

		DefaultContractQty: 1,
		PlanLogPath:        "./data/plans.jsonl",
	}
}

// Validate enforces the configuration invariants of §7 ("Configuration
// invariant violation | startup | refuse to start, surface which
// option"). Construction failures here are the only fatal error class.
func (c Config) Validate() error {
	if c.Instrument.Symbol == "" {
		return ErrInvalidConfig("instrument.symbol is required")
	}
	if c.Instrument.TickSize.Sign() <= 0 {
		return ErrInvalidConfig("instrument.tickSize must be positive")
	}
	if c.IcebergMinOrders <= 0 {
		return ErrInvalidConfig("icebergMinOrders must be positive")
	}
	if c.IcebergSizeBase <= 0 {
		return ErrInvalidConfig("icebergSizeBase must be positive")
	}
	if c.SpoofMaxAge <= 0 {
		return ErrInvalidConfig("spoofMaxAgeMs must be positive")
	}
	if c.SpoofMinSize <= 0 {
		return ErrInvalidConfig("spoofMinSize must be positive")
	}
	if c.AbsorptionMinSize <= 0 {
		return ErrInvalidConfig("absorptionMinSize must be positive")
	}
	if c.AdaptiveWindow <= 0 {
		return ErrInvalidConfig("adaptiveWindow must be positive")
	}
	if c.ThresholdMultiplier.Sign() <= 0 {
		return ErrInvalidConfig("thresholdMultiplier must be positive")
	}
	if c.MinConfluenceScore < 0 || c.MinConfluenceScore > 135 {
		return ErrInvalidConfig("minConfluenceScore must be in [0,135]")
	}
	if c.ConfluenceThreshold < 0 || c.ConfluenceThreshold > 135 {
		return ErrInvalidConfig("confluenceThreshold must be in [0,135]")
	}
	if c.PerPriceCooldown <= 0 {
		return ErrInvalidConfig("perPriceCooldownMs must be positive")
	}
	if c.GlobalSpacing < 0 {
		return ErrInvalidConfig("globalSpacingMs must be non-negative")
	}
	if len(c.EMAPeriods) == 0 {
		return ErrInvalidConfig("emaPeriods must not be empty")
	}
	for _, p := range c.EMAPeriods {
		if p <= 0 {
			return ErrInvalidConfig(fmt.Sprintf("ema period %d must be positive", p))
		}
	}
	if c.ATRPeriod <= 0 {
		return ErrInvalidConfig("atrPeriod must be positive")
	}
	if c.ValueAreaFraction.Sign() <= 0 || c.ValueAreaFraction.Cmp(decimal.NewFromInt(1)) > 0 {
		return ErrInvalidConfig("valueAreaFraction must be in (0,1]")
	}
	if c.DOMBandTicks <= 0 {
		return ErrInvalidConfig("domBandTicks must be positive")
	}
	if c.CVDTrendWindow <= 0 {
		return ErrInvalidConfig("cvdTrendWindow must be positive")
	}
	if c.AdvisorTimeout <= 0 {
		return ErrInvalidConfig("advisorTimeoutMs must be positive")
	}
	if c.DefaultContractQty <= 0 {
		return ErrInvalidConfig("defaultContractQty must be positive")
	}
	if c.PhaseSchedule.Location == nil {
		return ErrInvalidConfig("phaseSchedule.location is required")
	}
	return nil
}

// EMAAlpha returns the smoothing factor α=2/(period+1).
func EMAAlpha(period int) decimal.Decimal {
	return decimal.NewFromInt(2).Div(decimal.NewFromInt(int64(period + 1)))
}
