package indicators

import (
	"github.com/atlas-desktop/trading-backend/pkg/flowtypes"
	"github.com/shopspring/decimal"
)

// DOM analyzes depth snapshots to surface support/resistance and
// bid/ask imbalance within a band of the best bid/ask. Reset is
// continuous (spec §4.4): it is never cleared at session boundaries,
// since it reflects the live book rather than session-accumulated flow.
type DOM struct {
	bandTicks int64
	tickSize  decimal.Decimal

	bidSizes map[int64]int64
	askSizes map[int64]int64

	bestBid, bestAsk int64
	haveBbo          bool
}

// NewDOM constructs a DOM analyzer with a band width of bandTicks.
func NewDOM(bandTicks int64, tickSize decimal.Decimal) *DOM {
	return &DOM{
		bandTicks: bandTicks,
		tickSize:  tickSize,
		bidSizes:  make(map[int64]int64),
		askSizes:  make(map[int64]int64),
	}
}

// OnDepth updates the resting size at one price on one side.
func (d *DOM) OnDepth(ev flowtypes.DepthEvent) {
	book := d.bookFor(ev.Side)
	if ev.Size <= 0 {
		delete(book, ev.Price)
		return
	}
	book[ev.Price] = ev.Size
}

func (d *DOM) bookFor(side flowtypes.OrderSide) map[int64]int64 {
	if side == flowtypes.SideBid {
		return d.bidSizes
	}
	return d.askSizes
}

// OnBbo records the current best bid/ask, anchoring the analysis band.
func (d *DOM) OnBbo(ev flowtypes.BboEvent) {
	d.bestBid, d.bestAsk = ev.BestBid, ev.BestAsk
	d.haveBbo = true
}

// Snapshot returns the largest bid level within the band as support, the
// largest ask level as resistance, and the bid/ask size ratio across
// the band.
func (d *DOM) Snapshot() flowtypes.DOMSnapshot {
	if !d.haveBbo {
		return flowtypes.DOMSnapshot{}
	}

	support, bidBandTotal := largestInBand(d.bidSizes, d.bestBid, d.bandTicks)
	resistance, askBandTotal := largestInBand(d.askSizes, d.bestAsk, d.bandTicks)

	imbalance := decimal.Zero
	if askBandTotal > 0 {
		imbalance = decimal.NewFromInt(bidBandTotal).Div(decimal.NewFromInt(askBandTotal))
	} else if bidBandTotal > 0 {
		imbalance = decimal.NewFromInt(bidBandTotal)
	}

	return flowtypes.DOMSnapshot{
		Support:    support,
		Resistance: resistance,
		Imbalance:  imbalance,
		Available:  true,
	}
}

// largestInBand returns the price with the largest resting size within
// bandTicks of anchor, and the total size across the band. Ties resolve
// to the price closest to anchor.
func largestInBand(book map[int64]int64, anchor int64, bandTicks int64) (int64, int64) {
	var (
		bestPrice int64
		bestSize  int64
		total     int64
		found     bool
	)
	for price, size := range book {
		dist := price - anchor
		if dist < 0 {
			dist = -dist
		}
		if dist > bandTicks {
			continue
		}
		total += size
		if !found {
			bestPrice, bestSize, found = price, size, true
			continue
		}
		curDist := bestPrice - anchor
		if curDist < 0 {
			curDist = -curDist
		}
		if size > bestSize || (size == bestSize && dist < curDist) {
			bestPrice, bestSize = price, size
		}
	}
	return bestPrice, total
}
