package detectors

import (
	"time"

	"github.com/atlas-desktop/trading-backend/internal/registry"
	"github.com/atlas-desktop/trading-backend/pkg/flowtypes"
	"github.com/shopspring/decimal"
)

// Iceberg fires when a level's cumulative insertion count and current
// total size both clear adaptive thresholds, with a per-level cooldown
// to prevent re-emission while the pattern persists (spec §4.3.1).
type Iceberg struct {
	orderBase  decimal.Decimal
	sizeBase   decimal.Decimal
	multiplier decimal.Decimal
	cooldown   time.Duration

	lastFired map[flowtypes.LevelKey]time.Time
}

// NewIceberg constructs the iceberg detector from configuration.
func NewIceberg(orderBase, sizeBase, multiplier decimal.Decimal, cooldown time.Duration) *Iceberg {
	return &Iceberg{
		orderBase: orderBase, sizeBase: sizeBase, multiplier: multiplier, cooldown: cooldown,
		lastFired: make(map[flowtypes.LevelKey]time.Time),
	}
}

// OnLevelGrowth evaluates a level that just grew via insert or replace.
// win is the adaptive window shared with the registry that owns lvl.
func (d *Iceberg) OnLevelGrowth(lvl flowtypes.PriceLevel, win *registry.AdaptiveWindow, ts time.Time) (flowtypes.DetectionEvent, bool) {
	orderThreshold := registry.AdaptiveThreshold(d.orderBase, win.MeanCount(), d.multiplier)
	sizeThreshold := registry.AdaptiveThreshold(d.sizeBase, win.MeanSize(), d.multiplier)

	if decimal.NewFromInt(int64(lvl.Inserts)).LessThan(orderThreshold) {
		return flowtypes.DetectionEvent{}, false
	}
	if decimal.NewFromInt(lvl.TotalSize).LessThan(sizeThreshold) {
		return flowtypes.DetectionEvent{}, false
	}

	if last, ok := d.lastFired[lvl.Key]; ok && ts.Sub(last) < d.cooldown {
		return flowtypes.DetectionEvent{}, false
	}
	d.lastFired[lvl.Key] = ts

	return flowtypes.NewIcebergEvent(lvl.Key.Side, lvl.Key.Price, lvl.Inserts, lvl.TotalSize, ts), true
}
