package indicators

import (
	"github.com/atlas-desktop/trading-backend/pkg/flowtypes"
	"github.com/shopspring/decimal"
)

// EMA is a single exponential moving average, never reset at session
// boundaries (spec §4.4: "Reset: never, warm-up uses first price").
type EMA struct {
	period      int
	alpha       decimal.Decimal
	value       decimal.Decimal
	initialized bool
}

// NewEMA constructs an EMA for period with alpha = 2/(period+1).
func NewEMA(period int, alpha decimal.Decimal) *EMA {
	return &EMA{period: period, alpha: alpha}
}

// OnTrade folds the latest trade price into the average. The first
// observed price seeds the EMA directly.
func (e *EMA) OnTrade(price decimal.Decimal) {
	if !e.initialized {
		e.value = price
		e.initialized = true
		return
	}
	one := decimal.NewFromInt(1)
	e.value = price.Mul(e.alpha).Add(e.value.Mul(one.Sub(e.alpha)))
}

// Snapshot returns the current value, or Available=false before warm-up.
func (e *EMA) Snapshot() flowtypes.EMASnapshot {
	return flowtypes.EMASnapshot{Period: e.period, Value: e.value, Available: e.initialized}
}

// EMAGroup bundles the three configured EMA periods used by the scorer's
// alignment/divergence factors.
type EMAGroup struct {
	emas []*EMA
}

// NewEMAGroup constructs one EMA per configured period.
func NewEMAGroup(periods []int) *EMAGroup {
	g := &EMAGroup{emas: make([]*EMA, 0, len(periods))}
	for _, p := range periods {
		alpha := decimal.NewFromInt(2).Div(decimal.NewFromInt(int64(p + 1)))
		g.emas = append(g.emas, NewEMA(p, alpha))
	}
	return g
}

// OnTrade feeds the trade price to every EMA in the group.
func (g *EMAGroup) OnTrade(price decimal.Decimal) {
	for _, e := range g.emas {
		e.OnTrade(price)
	}
}

// Snapshots returns one snapshot per configured period, in period order.
func (g *EMAGroup) Snapshots() []flowtypes.EMASnapshot {
	out := make([]flowtypes.EMASnapshot, len(g.emas))
	for i, e := range g.emas {
		out[i] = e.Snapshot()
	}
	return out
}
