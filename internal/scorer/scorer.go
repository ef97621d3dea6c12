// Package scorer implements the confluence scorer: a pure function of a
// detection event, the current indicator snapshot, and the session
// phase, producing a clamped integer score and its per-factor
// breakdown (spec §4.5).
package scorer

import (
	"math"

	"github.com/atlas-desktop/trading-backend/pkg/flowtypes"
	"github.com/atlas-desktop/trading-backend/pkg/utils"
	"github.com/shopspring/decimal"
)

var twoDecimal = decimal.NewFromInt(2)

// Scorer holds the configured weights and instrument tick scale; it
// carries no other mutable state.
type Scorer struct {
	weights    flowtypes.Weights
	instrument flowtypes.Instrument
}

// New constructs a Scorer from configured weights and the traded
// instrument (needed to convert tick prices into the same decimal
// price scale as the EMAs for the alignment chain).
func New(weights flowtypes.Weights, instrument flowtypes.Instrument) *Scorer {
	return &Scorer{weights: weights, instrument: instrument}
}

// Score computes the confluence score for a detection, given the
// indicator snapshot at the moment of detection and whether an opposing
// spoof fired within the last second.
func (s *Scorer) Score(det flowtypes.DetectionEvent, snap flowtypes.IndicatorSnapshot, spoofOpposingRecently bool) (int, flowtypes.ScoreBreakdown) {
	direction := flowtypes.DirectionFromSide(det.Side)
	sign := direction.Sign()
	breakdown := flowtypes.ScoreBreakdown{}

	switch det.Kind {
	case flowtypes.DetectionIceberg:
		breakdown[flowtypes.FactorIcebergBase] = s.weights.IcebergBase
		breakdown[flowtypes.FactorIcebergSize] = s.icebergSizeBucket(det.Iceberg.Size)
	case flowtypes.DetectionAbsorption:
		// "included in iceberg bucket" per §4.5: absorption reuses the
		// iceberg base weight as its own confluence contribution.
		breakdown[flowtypes.FactorIcebergBase] = s.weights.IcebergBase
	case flowtypes.DetectionSpoof:
		// Spoof is scored only as a penalty input elsewhere; scoring a
		// bare spoof event directly contributes nothing of its own.
	}

	if snap.CVD.Available {
		cvdSign := 0
		switch snap.CVD.Trend {
		case flowtypes.TrendBullish:
			cvdSign = 1
		case flowtypes.TrendBearish:
			cvdSign = -1
		}
		switch {
		case cvdSign == sign && cvdSign != 0:
			breakdown[flowtypes.FactorCVDAlignment] = s.weights.CVDAlignment
		case cvdSign == -sign && cvdSign != 0:
			breakdown[flowtypes.FactorCVDDivergence] = s.weights.CVDDivergence
		}
	}

	if snap.Profile.Available {
		inValueArea := det.Price >= snap.Profile.ValueLow && det.Price <= snap.Profile.ValueHigh
		favoring := (sign > 0 && det.Price <= snap.Profile.POC) || (sign < 0 && det.Price >= snap.Profile.POC)
		if inValueArea && favoring {
			breakdown[flowtypes.FactorVolumeProfile] = s.weights.VolumeProfile
		}
	}

	if snap.DOM.Available {
		imbalanceFavorsLong := snap.DOM.Imbalance.GreaterThanOrEqual(twoDecimal)
		imbalanceFavorsShort := snap.DOM.Imbalance.Sign() > 0 && decimal.NewFromInt(1).Div(snap.DOM.Imbalance).GreaterThanOrEqual(twoDecimal)
		if (sign > 0 && imbalanceFavorsLong) || (sign < 0 && imbalanceFavorsShort) {
			breakdown[flowtypes.FactorVolumeImbalance] = s.weights.VolumeImbalance
		}
	}

	s.scoreEMAs(det.Price, snap, sign, breakdown)

	if snap.VWAP.Available {
		switch {
		case sign > 0 && snap.VWAP.Classification == flowtypes.VWAPAbove:
			breakdown[flowtypes.FactorVWAP] = s.weights.VWAPAligned
		case sign < 0 && snap.VWAP.Classification == flowtypes.VWAPBelow:
			breakdown[flowtypes.FactorVWAP] = s.weights.VWAPAligned
		case sign > 0 && snap.VWAP.Classification == flowtypes.VWAPBelow:
			breakdown[flowtypes.FactorVWAP] = s.weights.VWAPWrongSide
		case sign < 0 && snap.VWAP.Classification == flowtypes.VWAPAbove:
			breakdown[flowtypes.FactorVWAP] = s.weights.VWAPWrongSide
		}
	}

	switch snap.Phase {
	case flowtypes.PhaseMorning, flowtypes.PhaseAfternoon:
		breakdown[flowtypes.FactorTimeOfDay] = s.weights.TimeOfDayPrimary
	case flowtypes.PhaseOpeningRange, flowtypes.PhaseClose:
		breakdown[flowtypes.FactorTimeOfDay] = s.weights.TimeOfDaySecondary
	}

	if snap.DOM.Available {
		strongSupport := sign > 0 && snap.DOM.Support != 0 && utils.AbsInt64(det.Price-snap.DOM.Support) <= 5
		strongResist := sign < 0 && snap.DOM.Resistance != 0 && utils.AbsInt64(det.Price-snap.DOM.Resistance) <= 5
		if strongSupport || strongResist {
			breakdown[flowtypes.FactorDOM] = s.weights.DOMSupportResist
		}
	}

	if spoofOpposingRecently {
		breakdown[flowtypes.FactorSpoofPenalty] = s.weights.SpoofOpposing
	}

	total := 0
	for _, v := range breakdown {
		total += v
	}
	if total < 0 {
		total = 0
	}
	if total > 135 {
		total = 135
	}
	return total, breakdown
}

// icebergSizeBucket maps total resting size onto the 0..8 log-bucket
// from §4.5 ("Iceberg size multiplier | +0..8 | log-bucket of total
// size"). Every doubling past the base size adds one point, capped.
func (s *Scorer) icebergSizeBucket(size int64) int {
	if size <= 0 {
		return 0
	}
	bucket := int(math.Log2(float64(size)))
	if bucket < 0 {
		bucket = 0
	}
	if bucket > s.weights.IcebergSizeMax {
		bucket = s.weights.IcebergSizeMax
	}
	return bucket
}

func (s *Scorer) scoreEMAs(priceTicks int64, snap flowtypes.IndicatorSnapshot, sign int, breakdown flowtypes.ScoreBreakdown) {
	if len(snap.EMAs) == 0 {
		return
	}
	price := s.instrument.PriceOf(priceTicks)

	// Alignment is the count of consecutive pairs in the chain
	// {price, ema9, ema21, ema50} (shortest to longest) ordered
	// consistently with direction — a long is aligned when price sits
	// above ema9 above ema21 above ema50, and so on (§4.5).
	chain := make([]decimal.Decimal, 0, len(snap.EMAs)+1)
	chain = append(chain, price)
	for _, ema := range snap.EMAs {
		if ema.Available {
			chain = append(chain, ema.Value)
		}
	}

	aligned := 0
	for i := 0; i+1 < len(chain); i++ {
		if sign > 0 && chain[i].GreaterThanOrEqual(chain[i+1]) {
			aligned++
		} else if sign < 0 && chain[i].LessThanOrEqual(chain[i+1]) {
			aligned++
		}
	}

	// §4.5's divergence row ("0 or 1 of the above monotonic") overlaps
	// the alignment row at count 1: a lone aligned pair still leaves two
	// others diverging, so both factors apply there.
	switch aligned {
	case 3:
		breakdown[flowtypes.FactorEMAAlignment] = s.weights.EMAAlignment3
	case 2:
		breakdown[flowtypes.FactorEMAAlignment] = s.weights.EMAAlignment2
	case 1:
		breakdown[flowtypes.FactorEMAAlignment] = s.weights.EMAAlignment1
		breakdown[flowtypes.FactorEMADivergence] = s.weights.EMADivergence1
	case 0:
		breakdown[flowtypes.FactorEMADivergence] = s.weights.EMADivergence0
	}
}
