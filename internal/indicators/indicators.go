// Package indicators implements the incremental indicator battery: CVD,
// VWAP, a group of EMAs, a volume-at-price profile, ATR and a DOM
// analyzer. Each indicator exposes a read-only snapshot and never reads
// another indicator's private state (spec §4.4).
package indicators

import (
	"github.com/atlas-desktop/trading-backend/pkg/flowtypes"
	"github.com/shopspring/decimal"
)

// Battery bundles every indicator behind the fixed leaf order the router
// invokes on each event: CVD, VWAP, EMAs, VolumeProfile, ATR, DOM.
type Battery struct {
	CVD     *CVD
	VWAP    *VWAP
	EMAs    *EMAGroup
	Profile *VolumeProfile
	ATR     *ATR
	DOM     *DOM
}

// New constructs a full indicator battery from configuration.
func New(tickSize decimal.Decimal, emaPeriods []int, atrPeriod int, valueAreaFraction decimal.Decimal, domBandTicks int64, cvdTrendWindow int) *Battery {
	return &Battery{
		CVD:     NewCVD(cvdTrendWindow),
		VWAP:    NewVWAP(tickSize),
		EMAs:    NewEMAGroup(emaPeriods),
		Profile: NewVolumeProfile(valueAreaFraction),
		ATR:     NewATR(atrPeriod),
		DOM:     NewDOM(domBandTicks, tickSize),
	}
}

// OnTrade feeds a trade to every session-scoped indicator, in the fixed
// leaf order.
func (b *Battery) OnTrade(trade flowtypes.TradeEvent, priceDecimal decimal.Decimal) {
	b.CVD.OnTrade(trade)
	b.VWAP.OnTrade(priceDecimal, trade.Size)
	b.EMAs.OnTrade(priceDecimal)
	b.Profile.OnTrade(trade)
	b.ATR.OnTrade(priceDecimal)
}

// OnDepth feeds a depth update to the DOM analyzer only.
func (b *Battery) OnDepth(ev flowtypes.DepthEvent) { b.DOM.OnDepth(ev) }

// OnBbo feeds a best-bid/ask update to the DOM analyzer only.
func (b *Battery) OnBbo(ev flowtypes.BboEvent) { b.DOM.OnBbo(ev) }

// ResetSession clears every session-scoped indicator; the router calls
// it on entry into PreMarket (spec §4.7). EMAs and the DOM
// analyzer are intentionally excluded: EMAs never reset, and DOM
// reflects the live book rather than session-accumulated flow.
func (b *Battery) ResetSession() {
	b.CVD.Reset()
	b.VWAP.Reset()
	b.Profile.Reset()
	b.ATR.Reset()
}

// Snapshot assembles a full IndicatorSnapshot for the scorer and the
// context bundler. refPrice anchors the VWAP classification (typically
// the current best bid); phase is supplied by the session machine.
func (b *Battery) Snapshot(refPrice decimal.Decimal, phase flowtypes.Phase) flowtypes.IndicatorSnapshot {
	atrValue, atrAvailable := b.ATR.Value()
	return flowtypes.IndicatorSnapshot{
		CVD:          b.CVD.Snapshot(),
		VWAP:         b.VWAP.Snapshot(refPrice),
		EMAs:         b.EMAs.Snapshots(),
		ATR:          atrValue,
		ATRAvailable: atrAvailable,
		Profile:      b.Profile.Snapshot(),
		DOM:          b.DOM.Snapshot(),
		Phase:        phase,
	}
}
