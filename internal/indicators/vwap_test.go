package indicators_test

import (
	"testing"

	"github.com/atlas-desktop/trading-backend/internal/indicators"
	"github.com/shopspring/decimal"
)

func TestVWAPComputesSumPVOverSumV(t *testing.T) {
	v := indicators.NewVWAP(decimal.NewFromFloat(0.25))
	v.OnTrade(decimal.NewFromInt(100), 10)
	v.OnTrade(decimal.NewFromInt(110), 10)

	snap := v.Snapshot(decimal.NewFromInt(105))
	if !snap.Available {
		t.Fatal("expected VWAP to be available after trades")
	}
	want := decimal.NewFromInt(105)
	if !snap.Value.Equal(want) {
		t.Fatalf("expected vwap %s, got %s", want, snap.Value)
	}
}

func TestVWAPUnavailableBeforeAnyTrade(t *testing.T) {
	v := indicators.NewVWAP(decimal.NewFromFloat(0.25))
	snap := v.Snapshot(decimal.NewFromInt(100))
	if snap.Available {
		t.Fatal("expected VWAP unavailable with zero volume")
	}
}
