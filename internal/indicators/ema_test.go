package indicators_test

import (
	"testing"

	"github.com/atlas-desktop/trading-backend/internal/indicators"
	"github.com/shopspring/decimal"
)

func TestEMAWarmupSeedsFromFirstPrice(t *testing.T) {
	alpha := decimal.NewFromInt(2).Div(decimal.NewFromInt(10)) // period 9
	e := indicators.NewEMA(9, alpha)

	snap := e.Snapshot()
	if snap.Available {
		t.Fatal("expected EMA unavailable before the first trade")
	}

	e.OnTrade(decimal.NewFromInt(100))
	snap = e.Snapshot()
	if !snap.Available || !snap.Value.Equal(decimal.NewFromInt(100)) {
		t.Fatalf("expected EMA seeded at 100, got %+v", snap)
	}
}

func TestEMAGroupNeverResets(t *testing.T) {
	g := indicators.NewEMAGroup([]int{9, 21, 50})
	g.OnTrade(decimal.NewFromInt(100))
	g.OnTrade(decimal.NewFromInt(110))

	for _, snap := range g.Snapshots() {
		if !snap.Available {
			t.Fatalf("expected all EMAs warm after two trades, got %+v", snap)
		}
	}
}
