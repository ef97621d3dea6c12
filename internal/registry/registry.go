// Package registry maintains the MBO order registry and price-level
// aggregates described in spec §3 and §4.2: (identity -> resting-order)
// and ((side,price) -> level-aggregate), modeled with two maps keyed by
// the opaque order identity, never with bidirectional pointers (spec §9). All
// mutation is funnelled through the methods below so the registry's
// invariants hold after every event.
package registry

import (
	"time"

	"github.com/atlas-desktop/trading-backend/pkg/flowtypes"
	"go.uber.org/zap"
)

// Registry owns all resting-order and price-level state for one
// instrument. It is not safe for concurrent use; the router guarantees
// single-threaded access per instrument (spec §5).
type Registry struct {
	logger *zap.Logger

	orders map[flowtypes.OrderID]*flowtypes.RestingOrder
	levels map[flowtypes.LevelKey]*flowtypes.PriceLevel
	window *AdaptiveWindow

	seq uint64

	consumptionWindow time.Duration
	recentTrades      []tradeRecord
}

type tradeRecord struct {
	price     int64
	size      int64
	aggressor flowtypes.OrderSide
	ts        time.Time
}

// New constructs an empty registry.
func New(logger *zap.Logger, adaptiveWindow int, consumptionWindow time.Duration) *Registry {
	return &Registry{
		logger:            logger.Named("registry"),
		orders:            make(map[flowtypes.OrderID]*flowtypes.RestingOrder),
		levels:            make(map[flowtypes.LevelKey]*flowtypes.PriceLevel),
		window:            NewAdaptiveWindow(adaptiveWindow),
		consumptionWindow: consumptionWindow,
		recentTrades:      make([]tradeRecord, 0, 64),
	}
}

// Window exposes the adaptive-threshold window for detectors.
func (r *Registry) Window() *AdaptiveWindow { return r.window }

// Level returns a copy of the current aggregate at key, if any.
func (r *Registry) Level(key flowtypes.LevelKey) (flowtypes.PriceLevel, bool) {
	lvl, ok := r.levels[key]
	if !ok {
		return flowtypes.PriceLevel{}, false
	}
	return *lvl, true
}

// OrderCount returns the number of live resting orders (diagnostic use).
func (r *Registry) OrderCount() int { return len(r.orders) }

// LevelCount returns the number of live price levels (diagnostic use).
func (r *Registry) LevelCount() int { return len(r.levels) }

// InsertResult describes the post-state of an insert or insert-as-replace.
type InsertResult struct {
	Level        flowtypes.PriceLevel
	IsNewLevel   bool
	TreatedAsReplace bool
	Replace      ReplaceResult
}

// Insert handles on_mbo_insert. If the identity already exists, per
// spec §4.2 it is treated as a replace.
func (r *Registry) Insert(id flowtypes.OrderID, side flowtypes.OrderSide, price int64, size int64, ts time.Time) InsertResult {
	if _, ok := r.orders[id]; ok {
		rr := r.Replace(id, size, ts)
		return InsertResult{TreatedAsReplace: true, Replace: rr, Level: rr.Level}
	}

	key := flowtypes.LevelKey{Side: side, Price: price}
	r.seq++
	order := &flowtypes.RestingOrder{
		ID: id, Side: side, Price: price, Size: size,
		Seq: r.seq, InsertedAt: ts, LastModified: ts,
	}
	r.orders[id] = order

	lvl, ok := r.levels[key]
	isNewLevel := !ok
	if !ok {
		lvl = &flowtypes.PriceLevel{Key: key, FirstInsert: ts}
		r.levels[key] = lvl
	}

	lvl.Count++
	lvl.TotalSize += size
	lvl.Inserts++
	lvl.LastChange = ts

	r.window.Push(LevelSnapshot{Count: lvl.Count, TotalSize: lvl.TotalSize})

	return InsertResult{Level: *lvl, IsNewLevel: isNewLevel}
}

// ReplaceResult describes the effect of a size-changing replace.
type ReplaceResult struct {
	Found       bool
	Level       flowtypes.PriceLevel
	LevelFound  bool
	Delta       int64
	WentToZero  bool
	ConsumedCue bool
	Removed     bool
	Cancel      CancelResult
}

// Replace handles on_mbo_replace. A replace to zero follows the cancel
// path (spec §4.2).
func (r *Registry) Replace(id flowtypes.OrderID, newSize int64, ts time.Time) ReplaceResult {
	order, ok := r.orders[id]
	if !ok {
		return ReplaceResult{Found: false}
	}

	oldSize := order.Size
	delta := newSize - oldSize

	if newSize == 0 {
		consumed := delta < 0 && r.hasOpposingTradeCue(order.Side, order.Price, -delta, ts)
		cr := r.removeOrder(order, ts, consumed)
		return ReplaceResult{Found: true, WentToZero: true, Delta: delta, ConsumedCue: consumed, Removed: true, Cancel: cr}
	}

	consumedCue := false
	if delta < 0 {
		consumedCue = r.hasOpposingTradeCue(order.Side, order.Price, -delta, ts)
		if consumedCue {
			order.Consumed = true
		}
	}

	order.Size = newSize
	order.LastModified = ts

	key := flowtypes.LevelKey{Side: order.Side, Price: order.Price}
	lvl, found := r.levels[key]
	if !found {
		return ReplaceResult{Found: true, Delta: delta, ConsumedCue: consumedCue}
	}

	lvl.TotalSize += delta
	lvl.LastChange = ts
	if !consumedCue && delta < 0 {
		lvl.Cancels++
	}

	r.window.Push(LevelSnapshot{Count: lvl.Count, TotalSize: lvl.TotalSize})

	return ReplaceResult{Found: true, Level: *lvl, LevelFound: true, Delta: delta, ConsumedCue: consumedCue}
}

// CancelResult describes the effect of removing an order, whether via an
// explicit cancel or a replace-to-zero.
type CancelResult struct {
	Found       bool
	Lifetime    time.Duration
	Size        int64
	WasConsumed bool
	Level       flowtypes.PriceLevel
	LevelFound  bool
	LevelRemoved bool
}

// Cancel handles on_mbo_cancel.
func (r *Registry) Cancel(id flowtypes.OrderID, ts time.Time) CancelResult {
	order, ok := r.orders[id]
	if !ok {
		return CancelResult{Found: false}
	}
	return r.removeOrder(order, ts, false)
}

// removeOrder deletes the identity and updates the level aggregate. If
// finalShrinkConsumed is true the removal arrived via a replace whose
// final shrink matched a trade cue, so it never counts as a spoof
// candidate (it was filled, not cancelled clean).
func (r *Registry) removeOrder(order *flowtypes.RestingOrder, ts time.Time, finalShrinkConsumed bool) CancelResult {
	lifetime := ts.Sub(order.InsertedAt)
	size := order.Size
	wasConsumed := order.Consumed || finalShrinkConsumed

	delete(r.orders, order.ID)

	key := flowtypes.LevelKey{Side: order.Side, Price: order.Price}
	lvl, found := r.levels[key]
	res := CancelResult{Found: true, Lifetime: lifetime, Size: size, WasConsumed: wasConsumed}
	if !found {
		return res
	}

	lvl.Count--
	lvl.TotalSize -= size
	lvl.Cancels++
	lvl.LastChange = ts

	res.LevelFound = true
	if lvl.Count <= 0 {
		delete(r.levels, key)
		res.LevelRemoved = true
		r.window.Push(LevelSnapshot{Count: 0, TotalSize: 0})
		res.Level = flowtypes.PriceLevel{Key: key}
	} else {
		r.window.Push(LevelSnapshot{Count: lvl.Count, TotalSize: lvl.TotalSize})
		res.Level = *lvl
	}
	return res
}

// OnTrade records a trade for the consumption-vs-cancellation cue (spec
// §4.2: "distinguished by whether an opposite-side trade of matching
// size occurred within a 50 ms window"). It never mutates level state;
// only MBO events do that.
func (r *Registry) OnTrade(trade flowtypes.TradeEvent) {
	r.recentTrades = append(r.recentTrades, tradeRecord{
		price: trade.Price, size: trade.Size, aggressor: trade.Aggressor, ts: trade.Timestamp,
	})
	r.trimTrades(trade.Timestamp)
}

func (r *Registry) trimTrades(now time.Time) {
	cutoff := now.Add(-r.consumptionWindow * 4) // generous retention, exact match still window-gated below
	i := 0
	for ; i < len(r.recentTrades); i++ {
		if r.recentTrades[i].ts.After(cutoff) {
			break
		}
	}
	if i > 0 {
		r.recentTrades = r.recentTrades[i:]
	}
}

// hasOpposingTradeCue reports whether a trade aggressing against side
// (i.e. on side.Opposite()) at price, of size >= matchSize, occurred
// within consumptionWindow before ts.
func (r *Registry) hasOpposingTradeCue(side flowtypes.OrderSide, price int64, matchSize int64, ts time.Time) bool {
	opposite := side.Opposite()
	earliest := ts.Add(-r.consumptionWindow)
	for i := len(r.recentTrades) - 1; i >= 0; i-- {
		t := r.recentTrades[i]
		if t.ts.Before(earliest) {
			break
		}
		if t.ts.After(ts) {
			continue
		}
		if t.price == price && t.aggressor == opposite && t.size >= matchSize {
			return true
		}
	}
	return false
}

// Reset clears all order and level state (used on session boundaries if
// the host chooses to flatten the book; indicators reset separately).
func (r *Registry) Reset() {
	r.orders = make(map[flowtypes.OrderID]*flowtypes.RestingOrder)
	r.levels = make(map[flowtypes.LevelKey]*flowtypes.PriceLevel)
}
