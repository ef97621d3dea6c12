package indicators

import (
	"github.com/atlas-desktop/trading-backend/pkg/flowtypes"
	"github.com/shopspring/decimal"
)

// nearThreshold is the VWAP-proximity band (spec §4.4: "NEAR (<= 0.1%)").
var nearThreshold = decimal.NewFromFloat(0.001)

// VWAP accumulates the session volume-weighted average price from
// (sum(price*size), sum(size)), reset at session boundaries.
type VWAP struct {
	tickSize decimal.Decimal
	sumPV    decimal.Decimal
	sumV     decimal.Decimal
}

// NewVWAP constructs a VWAP tracker for an instrument's tick size (used
// to express distance-from-vwap in ticks).
func NewVWAP(tickSize decimal.Decimal) *VWAP {
	return &VWAP{tickSize: tickSize, sumPV: decimal.Zero, sumV: decimal.Zero}
}

// OnTrade folds one trade's price*size into the running sums.
func (v *VWAP) OnTrade(price decimal.Decimal, size int64) {
	sz := decimal.NewFromInt(size)
	v.sumPV = v.sumPV.Add(price.Mul(sz))
	v.sumV = v.sumV.Add(sz)
}

// Reset zeroes VWAP at a session boundary.
func (v *VWAP) Reset() {
	v.sumPV = decimal.Zero
	v.sumV = decimal.Zero
}

// Snapshot classifies refPrice (typically the current bid) against VWAP.
func (v *VWAP) Snapshot(refPrice decimal.Decimal) flowtypes.VWAPSnapshot {
	if v.sumV.IsZero() {
		return flowtypes.VWAPSnapshot{Available: false}
	}
	vwap := v.sumPV.Div(v.sumV)

	var distanceTicks int64
	if v.tickSize.Sign() > 0 {
		distanceTicks = refPrice.Sub(vwap).Div(v.tickSize).Round(0).IntPart()
	}

	rel := decimal.Zero
	if !vwap.IsZero() {
		rel = refPrice.Sub(vwap).Abs().Div(vwap)
	}

	class := flowtypes.VWAPNear
	switch {
	case rel.GreaterThan(nearThreshold) && refPrice.GreaterThan(vwap):
		class = flowtypes.VWAPAbove
	case rel.GreaterThan(nearThreshold) && refPrice.LessThan(vwap):
		class = flowtypes.VWAPBelow
	}

	return flowtypes.VWAPSnapshot{
		Value:          vwap,
		Classification: class,
		DistanceTicks:  distanceTicks,
		Available:      true,
	}
}
