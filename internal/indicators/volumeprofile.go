package indicators

import (
	"sort"

	"github.com/atlas-desktop/trading-backend/pkg/flowtypes"
	"github.com/shopspring/decimal"
)

type priceVolume struct {
	total int64
	buy   int64
	sell  int64
}

// VolumeProfile builds the session volume-at-price map and derives the
// point of control and value area from it (spec §4.4).
type VolumeProfile struct {
	valueAreaFraction decimal.Decimal
	byPrice           map[int64]*priceVolume
}

// NewVolumeProfile constructs an empty profile.
func NewVolumeProfile(valueAreaFraction decimal.Decimal) *VolumeProfile {
	return &VolumeProfile{
		valueAreaFraction: valueAreaFraction,
		byPrice:           make(map[int64]*priceVolume),
	}
}

// OnTrade folds one trade into the price→volume map.
func (p *VolumeProfile) OnTrade(trade flowtypes.TradeEvent) {
	pv, ok := p.byPrice[trade.Price]
	if !ok {
		pv = &priceVolume{}
		p.byPrice[trade.Price] = pv
	}
	pv.total += trade.Size
	if trade.Aggressor == flowtypes.SideBid {
		pv.buy += trade.Size
	} else {
		pv.sell += trade.Size
	}
}

// Reset clears the profile at a session boundary.
func (p *VolumeProfile) Reset() {
	p.byPrice = make(map[int64]*priceVolume)
}

// Snapshot computes POC and the value area. Ties in volume resolve to
// the lower price, both for POC and for value-area growth direction,
// keeping the result deterministic for replay.
func (p *VolumeProfile) Snapshot() flowtypes.VolumeProfileSnapshot {
	if len(p.byPrice) == 0 {
		return flowtypes.VolumeProfileSnapshot{}
	}

	prices := make([]int64, 0, len(p.byPrice))
	var grandTotal int64
	for price, pv := range p.byPrice {
		prices = append(prices, price)
		grandTotal += pv.total
	}
	sort.Slice(prices, func(i, j int) bool { return prices[i] < prices[j] })

	poc := prices[0]
	pocVolume := p.byPrice[poc].total
	for _, price := range prices[1:] {
		if v := p.byPrice[price].total; v > pocVolume {
			poc, pocVolume = price, v
		}
	}

	target := decimal.NewFromInt(grandTotal).Mul(p.valueAreaFraction)
	lowIdx, highIdx := indexOf(prices, poc), indexOf(prices, poc)
	included := decimal.NewFromInt(pocVolume)

	for included.LessThan(target) && (lowIdx > 0 || highIdx < len(prices)-1) {
		var lowVol, highVol int64
		canLow, canHigh := lowIdx > 0, highIdx < len(prices)-1
		if canLow {
			lowVol = p.byPrice[prices[lowIdx-1]].total
		}
		if canHigh {
			highVol = p.byPrice[prices[highIdx+1]].total
		}

		switch {
		case canLow && (!canHigh || lowVol >= highVol):
			lowIdx--
			included = included.Add(decimal.NewFromInt(lowVol))
		case canHigh:
			highIdx++
			included = included.Add(decimal.NewFromInt(highVol))
		default:
			// Neither side can grow; stop.
			lowIdx, highIdx = 0, len(prices)-1
		}
	}

	return flowtypes.VolumeProfileSnapshot{
		POC:       poc,
		ValueLow:  prices[lowIdx],
		ValueHigh: prices[highIdx],
		Available: true,
	}
}

func indexOf(sorted []int64, v int64) int {
	for i, p := range sorted {
		if p == v {
			return i
		}
	}
	return 0
}
