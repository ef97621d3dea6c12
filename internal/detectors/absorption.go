package detectors

import (
	"time"

	"github.com/atlas-desktop/trading-backend/pkg/flowtypes"
	"github.com/shopspring/decimal"
)

type tradeSample struct {
	size int64
	ts   time.Time
}

type absorptionWindow struct {
	trades         []tradeSample
	levelSizeBefore int64
	lastFired      time.Time
}

// Absorption fires when aggressive prints are hitting a level faster
// than the passive side is being consumed: traded size within a rolling
// window clears an adaptive threshold while the opposing level has not
// collapsed (spec §4.3.3). Trigger is on trade; the collapse condition
// is re-checked on each subsequent book update at the same (side,price)
// since the post-trade level size is only known once the MBO stream
// catches up.
type Absorption struct {
	minSize decimal.Decimal
	window  time.Duration

	byKey map[flowtypes.LevelKey]*absorptionWindow
}

// NewAbsorption constructs the absorption detector from configuration.
func NewAbsorption(minSize decimal.Decimal, window time.Duration) *Absorption {
	return &Absorption{minSize: minSize, window: window, byKey: make(map[flowtypes.LevelKey]*absorptionWindow)}
}

// OnTrade records a trade's contribution to the rolling traded-size at
// the passive (opposing) side and price. passiveLevelSizeBefore is the
// resting size at that level immediately before this trade.
func (d *Absorption) OnTrade(trade flowtypes.TradeEvent, passiveLevelSizeBefore int64) {
	key := flowtypes.LevelKey{Side: trade.Aggressor.Opposite(), Price: trade.Price}
	w, ok := d.byKey[key]
	if !ok {
		w = &absorptionWindow{levelSizeBefore: passiveLevelSizeBefore}
		d.byKey[key] = w
	}
	w.trades = append(w.trades, tradeSample{size: trade.Size, ts: trade.Timestamp})
	d.trim(w, trade.Timestamp)
	if len(w.trades) == 1 {
		w.levelSizeBefore = passiveLevelSizeBefore
	}
}

func (d *Absorption) trim(w *absorptionWindow, now time.Time) {
	cutoff := now.Add(-d.window)
	i := 0
	for ; i < len(w.trades); i++ {
		if w.trades[i].ts.After(cutoff) {
			break
		}
	}
	if i > 0 {
		w.trades = w.trades[i:]
	}
}

func (d *Absorption) tradedSize(w *absorptionWindow) int64 {
	var total int64
	for _, t := range w.trades {
		total += t.size
	}
	return total
}

// CheckCollapse re-evaluates the collapse condition for (side,price)
// after a book-state update. currentLevelSize is the opposing level's
// present total size.
func (d *Absorption) CheckCollapse(key flowtypes.LevelKey, currentLevelSize int64, ts time.Time) (flowtypes.DetectionEvent, bool) {
	w, ok := d.byKey[key]
	if !ok || len(w.trades) == 0 {
		return flowtypes.DetectionEvent{}, false
	}
	d.trim(w, ts)
	if len(w.trades) == 0 {
		return flowtypes.DetectionEvent{}, false
	}

	traded := d.tradedSize(w)
	if decimal.NewFromInt(traded).LessThan(d.minSize) {
		return flowtypes.DetectionEvent{}, false
	}
	if w.levelSizeBefore <= 0 {
		return flowtypes.DetectionEvent{}, false
	}
	ratio := decimal.NewFromInt(currentLevelSize).Div(decimal.NewFromInt(w.levelSizeBefore))
	if ratio.LessThan(decimal.NewFromFloat(0.5)) {
		return flowtypes.DetectionEvent{}, false
	}
	if !w.lastFired.IsZero() && ts.Sub(w.lastFired) < d.window {
		return flowtypes.DetectionEvent{}, false
	}
	w.lastFired = ts

	return flowtypes.NewAbsorptionEvent(key.Side, key.Price, traded, currentLevelSize, ts), true
}
