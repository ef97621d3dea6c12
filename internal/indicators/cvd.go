package indicators

import "github.com/atlas-desktop/trading-backend/pkg/flowtypes"

// CVD tracks cumulative volume delta: a signed running sum of trade size,
// positive when the aggressor bought (bid-side aggressor) and negative
// when the aggressor sold. Trend is classified from the slope of a short
// trailing sample window rather than the running sum itself, so a large
// CVD that has gone flat reads as NEUTRAL rather than stale BULLISH.
type CVD struct {
	running int64
	history []int64 // CVD value before each trailing trade, oldest first
	window  int
}

// NewCVD constructs a CVD tracker with the given trend sample window.
func NewCVD(window int) *CVD {
	if window <= 0 {
		window = 20
	}
	return &CVD{window: window, history: make([]int64, 0, window)}
}

// OnTrade folds one trade into the running sum.
func (c *CVD) OnTrade(trade flowtypes.TradeEvent) {
	if len(c.history) == c.window {
		c.history = c.history[1:]
	}
	c.history = append(c.history, c.running)
	if trade.Aggressor == flowtypes.SideBid {
		c.running += trade.Size
	} else {
		c.running -= trade.Size
	}
}

// Reset zeroes CVD at a session boundary.
func (c *CVD) Reset() {
	c.running = 0
	c.history = c.history[:0]
}

// Snapshot returns the current value and trend classification.
func (c *CVD) Snapshot() flowtypes.CVDSnapshot {
	if len(c.history) == 0 {
		return flowtypes.CVDSnapshot{Value: c.running, Trend: flowtypes.TrendNeutral, Available: false}
	}
	slope := c.running - c.history[0]
	trend := flowtypes.TrendNeutral
	switch {
	case slope > 0:
		trend = flowtypes.TrendBullish
	case slope < 0:
		trend = flowtypes.TrendBearish
	}
	return flowtypes.CVDSnapshot{Value: c.running, Trend: trend, Available: true}
}
