// Package config loads the engine's recognized options (spec §6) from
// a YAML file with ORDERFLOW_-prefixed environment variable overrides,
// the same viper-based pattern the chosen teacher's stack carries
// (declared in its go.mod but unused there; wired here for real).
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/atlas-desktop/trading-backend/pkg/flowtypes"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

// fileConfig mirrors flowtypes.Config with primitive, viper/mapstructure
// friendly field types; durations are in the unit their field name
// carries (milliseconds or minutes), clock times are strings, decimals are
// strings or floats as written in the file.
type fileConfig struct {
	Instrument struct {
		Symbol     string  `mapstructure:"symbol"`
		TickSize   string  `mapstructure:"tick_size"`
		Multiplier float64 `mapstructure:"multiplier"`
	} `mapstructure:"instrument"`

	IcebergMinOrders    int     `mapstructure:"iceberg_min_orders"`
	IcebergSizeBase     int64   `mapstructure:"iceberg_size_base"`
	SpoofMaxAgeMs       int     `mapstructure:"spoof_max_age_ms"`
	SpoofMinSize        int64   `mapstructure:"spoof_min_size"`
	AbsorptionMinSize   int64   `mapstructure:"absorption_min_size"`
	AdaptiveWindow      int     `mapstructure:"adaptive_window"`
	ThresholdMultiplier float64 `mapstructure:"threshold_multiplier"`
	ConsumptionWindowMs int     `mapstructure:"consumption_window_ms"`
	IcebergCooldownMs   int     `mapstructure:"iceberg_cooldown_ms"`
	AbsorptionWindowMs  int     `mapstructure:"absorption_window_ms"`

	Weights struct {
		IcebergBase        int `mapstructure:"iceberg_base"`
		IcebergSizeMax     int `mapstructure:"iceberg_size_max"`
		CVDAlignment       int `mapstructure:"cvd_alignment"`
		CVDDivergence      int `mapstructure:"cvd_divergence"`
		VolumeProfile      int `mapstructure:"volume_profile"`
		VolumeImbalance    int `mapstructure:"volume_imbalance"`
		EMAAlignment3      int `mapstructure:"ema_alignment_3"`
		EMAAlignment2      int `mapstructure:"ema_alignment_2"`
		EMAAlignment1      int `mapstructure:"ema_alignment_1"`
		EMADivergence0     int `mapstructure:"ema_divergence_0"`
		EMADivergence1     int `mapstructure:"ema_divergence_1"`
		VWAPAligned        int `mapstructure:"vwap_aligned"`
		VWAPWrongSide      int `mapstructure:"vwap_wrong_side"`
		TimeOfDayPrimary   int `mapstructure:"time_of_day_primary"`
		TimeOfDaySecondary int `mapstructure:"time_of_day_secondary"`
		DOMSupportResist   int `mapstructure:"dom_support_resist"`
		SpoofOpposing      int `mapstructure:"spoof_opposing"`
	} `mapstructure:"weights"`

	MinConfluenceScore  int `mapstructure:"min_confluence_score"`
	ConfluenceThreshold int `mapstructure:"confluence_threshold"`
	PerPriceCooldownMs  int `mapstructure:"per_price_cooldown_ms"`
	GlobalSpacingMs     int `mapstructure:"global_spacing_ms"`

	EMAPeriods        []int   `mapstructure:"ema_periods"`
	ATRPeriod         int     `mapstructure:"atr_period"`
	ValueAreaFraction float64 `mapstructure:"value_area_fraction"`
	DOMBandTicks      int64   `mapstructure:"dom_band_ticks"`
	CVDTrendWindow    int     `mapstructure:"cvd_trend_window"`

	PhaseSchedule struct {
		Timezone             string `mapstructure:"timezone"`
		MarketOpen           string `mapstructure:"market_open"`
		OpeningRangeMinutes  int    `mapstructure:"opening_range_minutes"`
		LunchStart           string `mapstructure:"lunch_start"`
		LunchEnd             string `mapstructure:"lunch_end"`
		MarketClose          string `mapstructure:"market_close"`
		CloseWindowMinutes   int    `mapstructure:"close_window_minutes"`
	} `mapstructure:"phase_schedule"`

	AdvisorTimeoutMs      int   `mapstructure:"advisor_timeout_ms"`
	AdvisorBacklogSkip    int   `mapstructure:"advisor_backlog_skip"`
	AdvisorLatencySamples int   `mapstructure:"advisor_latency_samples"`
	AdvisorRetryBackoffMs []int `mapstructure:"advisor_retry_backoff_ms"`

	DefaultContractQty int64  `mapstructure:"default_contract_qty"`
	PlanLogPath        string `mapstructure:"plan_log_path"`
}

// Load reads a YAML config file at path, applying ORDERFLOW_-prefixed
// environment overrides on top, and returns a validated
// flowtypes.Config. Unset fields fall back to flowtypes.Default().
func Load(path string) (flowtypes.Config, error) {
	def := flowtypes.Default()

	v := viper.New()
	v.SetConfigFile(path)
	v.SetEnvPrefix("ORDERFLOW")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	applyDefaults(v, def)

	if err := v.ReadInConfig(); err != nil {
		return flowtypes.Config{}, fmt.Errorf("config: read %s: %w", path, err)
	}

	var fc fileConfig
	if err := v.Unmarshal(&fc); err != nil {
		return flowtypes.Config{}, fmt.Errorf("config: unmarshal: %w", err)
	}

	cfg, err := fc.toFlowConfig(def)
	if err != nil {
		return flowtypes.Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return flowtypes.Config{}, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

func applyDefaults(v *viper.Viper, def flowtypes.Config) {
	v.SetDefault("instrument.symbol", def.Instrument.Symbol)
	v.SetDefault("instrument.tick_size", def.Instrument.TickSize.String())
	v.SetDefault("instrument.multiplier", def.Instrument.Multiplier.InexactFloat64())

	v.SetDefault("iceberg_min_orders", def.IcebergMinOrders)
	v.SetDefault("iceberg_size_base", def.IcebergSizeBase)
	v.SetDefault("spoof_max_age_ms", int(def.SpoofMaxAge/time.Millisecond))
	v.SetDefault("spoof_min_size", def.SpoofMinSize)
	v.SetDefault("absorption_min_size", def.AbsorptionMinSize)
	v.SetDefault("adaptive_window", def.AdaptiveWindow)
	v.SetDefault("threshold_multiplier", def.ThresholdMultiplier.InexactFloat64())
	v.SetDefault("consumption_window_ms", int(def.ConsumptionWindow/time.Millisecond))
	v.SetDefault("iceberg_cooldown_ms", int(def.IcebergCooldown/time.Millisecond))
	v.SetDefault("absorption_window_ms", int(def.AbsorptionWindow/time.Millisecond))

	v.SetDefault("weights.iceberg_base", def.Weights.IcebergBase)
	v.SetDefault("weights.iceberg_size_max", def.Weights.IcebergSizeMax)
	v.SetDefault("weights.cvd_alignment", def.Weights.CVDAlignment)
	v.SetDefault("weights.cvd_divergence", def.Weights.CVDDivergence)
	v.SetDefault("weights.volume_profile", def.Weights.VolumeProfile)
	v.SetDefault("weights.volume_imbalance", def.Weights.VolumeImbalance)
	v.SetDefault("weights.ema_alignment_3", def.Weights.EMAAlignment3)
	v.SetDefault("weights.ema_alignment_2", def.Weights.EMAAlignment2)
	v.SetDefault("weights.ema_alignment_1", def.Weights.EMAAlignment1)
	v.SetDefault("weights.ema_divergence_0", def.Weights.EMADivergence0)
	v.SetDefault("weights.ema_divergence_1", def.Weights.EMADivergence1)
	v.SetDefault("weights.vwap_aligned", def.Weights.VWAPAligned)
	v.SetDefault("weights.vwap_wrong_side", def.Weights.VWAPWrongSide)
	v.SetDefault("weights.time_of_day_primary", def.Weights.TimeOfDayPrimary)
	v.SetDefault("weights.time_of_day_secondary", def.Weights.TimeOfDaySecondary)
	v.SetDefault("weights.dom_support_resist", def.Weights.DOMSupportResist)
	v.SetDefault("weights.spoof_opposing", def.Weights.SpoofOpposing)

	v.SetDefault("min_confluence_score", def.MinConfluenceScore)
	v.SetDefault("confluence_threshold", def.ConfluenceThreshold)
	v.SetDefault("per_price_cooldown_ms", int(def.PerPriceCooldown/time.Millisecond))
	v.SetDefault("global_spacing_ms", int(def.GlobalSpacing/time.Millisecond))

	v.SetDefault("ema_periods", def.EMAPeriods)
	v.SetDefault("atr_period", def.ATRPeriod)
	v.SetDefault("value_area_fraction", def.ValueAreaFraction.InexactFloat64())
	v.SetDefault("dom_band_ticks", def.DOMBandTicks)
	v.SetDefault("cvd_trend_window", def.CVDTrendWindow)

	loc := def.PhaseSchedule.Location
	if loc == nil {
		loc = time.UTC
	}
	v.SetDefault("phase_schedule.timezone", loc.String())
	v.SetDefault("phase_schedule.market_open", def.PhaseSchedule.MarketOpen.String())
	v.SetDefault("phase_schedule.opening_range_minutes", int(def.PhaseSchedule.OpeningRangeDuration/time.Minute))
	v.SetDefault("phase_schedule.lunch_start", def.PhaseSchedule.LunchStart.String())
	v.SetDefault("phase_schedule.lunch_end", def.PhaseSchedule.LunchEnd.String())
	v.SetDefault("phase_schedule.market_close", def.PhaseSchedule.MarketClose.String())
	v.SetDefault("phase_schedule.close_window_minutes", int(def.PhaseSchedule.CloseWindowDuration/time.Minute))

	v.SetDefault("advisor_timeout_ms", int(def.AdvisorTimeout/time.Millisecond))
	v.SetDefault("advisor_backlog_skip", def.AdvisorBacklogSkip)
	v.SetDefault("advisor_latency_samples", def.AdvisorLatencySamples)
	backoffMs := make([]int, len(def.AdvisorRetryBackoff))
	for i, d := range def.AdvisorRetryBackoff {
		backoffMs[i] = int(d / time.Millisecond)
	}
	v.SetDefault("advisor_retry_backoff_ms", backoffMs)

	v.SetDefault("default_contract_qty", def.DefaultContractQty)
	v.SetDefault("plan_log_path", def.PlanLogPath)
}

func (fc fileConfig) toFlowConfig(def flowtypes.Config) (flowtypes.Config, error) {
	tickSize, err := decimal.NewFromString(fc.Instrument.TickSize)
	if err != nil {
		return flowtypes.Config{}, fmt.Errorf("config: instrument.tick_size: %w", err)
	}
	instrument, err := flowtypes.NewInstrument(fc.Instrument.Symbol, tickSize, decimal.NewFromFloat(fc.Instrument.Multiplier))
	if err != nil {
		return flowtypes.Config{}, fmt.Errorf("config: instrument: %w", err)
	}

	loc, err := time.LoadLocation(fc.PhaseSchedule.Timezone)
	if err != nil {
		loc = time.UTC
	}
	marketOpen, _ := time.ParseDuration(fc.PhaseSchedule.MarketOpen)
	lunchStart, _ := time.ParseDuration(fc.PhaseSchedule.LunchStart)
	lunchEnd, _ := time.ParseDuration(fc.PhaseSchedule.LunchEnd)
	marketClose, _ := time.ParseDuration(fc.PhaseSchedule.MarketClose)

	backoff := make([]time.Duration, len(fc.AdvisorRetryBackoffMs))
	for i, ms := range fc.AdvisorRetryBackoffMs {
		backoff[i] = time.Duration(ms) * time.Millisecond
	}
	if len(backoff) == 0 {
		backoff = def.AdvisorRetryBackoff
	}

	return flowtypes.Config{
		Instrument: instrument,

		IcebergMinOrders:    fc.IcebergMinOrders,
		IcebergSizeBase:     fc.IcebergSizeBase,
		SpoofMaxAge:         time.Duration(fc.SpoofMaxAgeMs) * time.Millisecond,
		SpoofMinSize:        fc.SpoofMinSize,
		AbsorptionMinSize:   fc.AbsorptionMinSize,
		AdaptiveWindow:      fc.AdaptiveWindow,
		ThresholdMultiplier: decimal.NewFromFloat(fc.ThresholdMultiplier),
		ConsumptionWindow:   time.Duration(fc.ConsumptionWindowMs) * time.Millisecond,
		IcebergCooldown:     time.Duration(fc.IcebergCooldownMs) * time.Millisecond,
		AbsorptionWindow:    time.Duration(fc.AbsorptionWindowMs) * time.Millisecond,

		Weights: flowtypes.Weights{
			IcebergBase:        fc.Weights.IcebergBase,
			IcebergSizeMax:     fc.Weights.IcebergSizeMax,
			CVDAlignment:       fc.Weights.CVDAlignment,
			CVDDivergence:      fc.Weights.CVDDivergence,
			VolumeProfile:      fc.Weights.VolumeProfile,
			VolumeImbalance:    fc.Weights.VolumeImbalance,
			EMAAlignment3:      fc.Weights.EMAAlignment3,
			EMAAlignment2:      fc.Weights.EMAAlignment2,
			EMAAlignment1:      fc.Weights.EMAAlignment1,
			EMADivergence0:     fc.Weights.EMADivergence0,
			EMADivergence1:     fc.Weights.EMADivergence1,
			VWAPAligned:        fc.Weights.VWAPAligned,
			VWAPWrongSide:      fc.Weights.VWAPWrongSide,
			TimeOfDayPrimary:   fc.Weights.TimeOfDayPrimary,
			TimeOfDaySecondary: fc.Weights.TimeOfDaySecondary,
			DOMSupportResist:   fc.Weights.DOMSupportResist,
			SpoofOpposing:      fc.Weights.SpoofOpposing,
		},

		MinConfluenceScore:  fc.MinConfluenceScore,
		ConfluenceThreshold: fc.ConfluenceThreshold,
		PerPriceCooldown:    time.Duration(fc.PerPriceCooldownMs) * time.Millisecond,
		GlobalSpacing:       time.Duration(fc.GlobalSpacingMs) * time.Millisecond,

		EMAPeriods:        fc.EMAPeriods,
		ATRPeriod:         fc.ATRPeriod,
		ValueAreaFraction: decimal.NewFromFloat(fc.ValueAreaFraction),
		DOMBandTicks:      fc.DOMBandTicks,
		CVDTrendWindow:    fc.CVDTrendWindow,

		PhaseSchedule: flowtypes.PhaseSchedule{
			Location:             loc,
			MarketOpen:           marketOpen,
			OpeningRangeDuration: time.Duration(fc.PhaseSchedule.OpeningRangeMinutes) * time.Minute,
			LunchStart:           lunchStart,
			LunchEnd:             lunchEnd,
			MarketClose:          marketClose,
			CloseWindowDuration:  time.Duration(fc.PhaseSchedule.CloseWindowMinutes) * time.Minute,
		},

		AdvisorTimeout:        time.Duration(fc.AdvisorTimeoutMs) * time.Millisecond,
		AdvisorRetryBackoff:   backoff,
		AdvisorBacklogSkip:    fc.AdvisorBacklogSkip,
		AdvisorLatencySamples: fc.AdvisorLatencySamples,

		DefaultContractQty: fc.DefaultContractQty,
		PlanLogPath:        fc.PlanLogPath,
	}, nil
}
