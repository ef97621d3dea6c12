package indicators

import "github.com/shopspring/decimal"

// ATR maintains a fixed-length ring of recent true ranges (here, simple
// absolute price changes between consecutive trades, per spec §4.4) and
// reports their mean.
type ATR struct {
	period   int
	buf      []decimal.Decimal
	head     int
	size     int
	sum      decimal.Decimal
	hasPrev  bool
	prevPrice decimal.Decimal
}

// NewATR constructs an ATR ring of the given period (default 14).
func NewATR(period int) *ATR {
	if period <= 0 {
		period = 14
	}
	return &ATR{period: period, buf: make([]decimal.Decimal, period), sum: decimal.Zero}
}

// OnTrade folds one trade price into the ring, computing |price-prev|.
func (a *ATR) OnTrade(price decimal.Decimal) {
	if !a.hasPrev {
		a.prevPrice = price
		a.hasPrev = true
		return
	}
	tr := price.Sub(a.prevPrice).Abs()
	a.prevPrice = price

	if a.size < a.period {
		a.buf[(a.head+a.size)%a.period] = tr
		a.size++
		a.sum = a.sum.Add(tr)
		return
	}
	old := a.buf[a.head]
	a.sum = a.sum.Sub(old)
	a.buf[a.head] = tr
	a.head = (a.head + 1) % a.period
	a.sum = a.sum.Add(tr)
}

// Reset clears the ring at a session boundary.
func (a *ATR) Reset() {
	a.size, a.head = 0, 0
	a.sum = decimal.Zero
	a.hasPrev = false
}

// Value returns the mean true range and whether the ring has any samples.
func (a *ATR) Value() (decimal.Decimal, bool) {
	if a.size == 0 {
		return decimal.Zero, false
	}
	return a.sum.Div(decimal.NewFromInt(int64(a.size))), true
}
