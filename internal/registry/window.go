package registry

import "github.com/shopspring/decimal"

// LevelSnapshot is one (order-count, total-size) sample pushed to the
// adaptive-threshold window on every level state change (spec §3).
type LevelSnapshot struct {
	Count     int
	TotalSize int64
}

// AdaptiveWindow is a bounded FIFO of recent level snapshots capped at
// N events (default 100). Means are maintained incrementally on
// push/evict so detectors can read them in O(1).
type AdaptiveWindow struct {
	cap       int
	buf       []LevelSnapshot
	head      int
	size      int
	sumCount  int64
	sumSize   int64
}

// NewAdaptiveWindow constructs a window bounded at capacity N.
func NewAdaptiveWindow(capacity int) *AdaptiveWindow {
	if capacity <= 0 {
		capacity = 100
	}
	return &AdaptiveWindow{cap: capacity, buf: make([]LevelSnapshot, capacity)}
}

// Push appends a snapshot, evicting the oldest if the window is full.
func (w *AdaptiveWindow) Push(snap LevelSnapshot) {
	if w.size < w.cap {
		idx := (w.head + w.size) % w.cap
		w.buf[idx] = snap
		w.size++
		w.sumCount += int64(snap.Count)
		w.sumSize += snap.TotalSize
		return
	}

	// Full: evict oldest (at head), then append at the freed slot.
	old := w.buf[w.head]
	w.sumCount -= int64(old.Count)
	w.sumSize -= old.TotalSize

	w.buf[w.head] = snap
	w.head = (w.head + 1) % w.cap
	w.sumCount += int64(snap.Count)
	w.sumSize += snap.TotalSize
}

// Len returns the number of samples currently held (never exceeds cap).
func (w *AdaptiveWindow) Len() int { return w.size }

// MeanCount returns the running mean of order-count.
func (w *AdaptiveWindow) MeanCount() decimal.Decimal {
	if w.size == 0 {
		return decimal.Zero
	}
	return decimal.NewFromInt(w.sumCount).Div(decimal.NewFromInt(int64(w.size)))
}

// MeanSize returns the running mean of total-size.
func (w *AdaptiveWindow) MeanSize() decimal.Decimal {
	if w.size == 0 {
		return decimal.Zero
	}
	return decimal.NewFromInt(w.sumSize).Div(decimal.NewFromInt(int64(w.size)))
}

// AdaptiveThreshold computes max(base, windowMean*multiplier), used by
// the iceberg detector for both the order-count and size thresholds
// (spec §4.3.1).
func AdaptiveThreshold(base decimal.Decimal, windowMean decimal.Decimal, multiplier decimal.Decimal) decimal.Decimal {
	scaled := windowMean.Mul(multiplier)
	if scaled.GreaterThan(base) {
		return scaled
	}
	return base
}
