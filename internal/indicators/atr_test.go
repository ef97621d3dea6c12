package indicators_test

import (
	"testing"

	"github.com/atlas-desktop/trading-backend/internal/indicators"
	"github.com/shopspring/decimal"
)

func TestATRMeansAbsoluteChangesOverWindow(t *testing.T) {
	a := indicators.NewATR(3)
	for _, p := range []int64{100, 102, 99, 101} {
		a.OnTrade(decimal.NewFromInt(p))
	}

	val, ok := a.Value()
	if !ok {
		t.Fatal("expected ATR available after several trades")
	}
	// true ranges: |102-100|=2, |99-102|=3, |101-99|=2 -> mean (period 3) = 7/3
	want := decimal.NewFromInt(7).Div(decimal.NewFromInt(3))
	if !val.Equal(want) {
		t.Fatalf("expected ATR %s, got %s", want, val)
	}
}

func TestATRUnavailableBeforeSecondTrade(t *testing.T) {
	a := indicators.NewATR(14)
	a.OnTrade(decimal.NewFromInt(100))
	if _, ok := a.Value(); ok {
		t.Fatal("expected ATR unavailable with only one price observed")
	}
}
