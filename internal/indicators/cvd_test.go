package indicators_test

import (
	"testing"
	"time"

	"github.com/atlas-desktop/trading-backend/internal/indicators"
	"github.com/atlas-desktop/trading-backend/pkg/flowtypes"
)

func trade(size int64, aggressor flowtypes.OrderSide) flowtypes.TradeEvent {
	return flowtypes.TradeEvent{Price: 100, Size: size, Aggressor: aggressor, Timestamp: time.Now()}
}

func TestCVDSignsByAggressor(t *testing.T) {
	c := indicators.NewCVD(20)
	c.OnTrade(trade(10, flowtypes.SideBid))
	c.OnTrade(trade(4, flowtypes.SideAsk))

	snap := c.Snapshot()
	if snap.Value != 6 {
		t.Fatalf("expected CVD 6, got %d", snap.Value)
	}
	if snap.Trend != flowtypes.TrendBullish {
		t.Fatalf("expected bullish trend on a rising CVD, got %s", snap.Trend)
	}
}

func TestCVDResetZeroesValue(t *testing.T) {
	c := indicators.NewCVD(20)
	c.OnTrade(trade(10, flowtypes.SideBid))
	c.Reset()

	snap := c.Snapshot()
	if snap.Value != 0 {
		t.Fatalf("expected CVD 0 after reset, got %d", snap.Value)
	}
	if snap.Available {
		t.Fatal("expected Available=false with no trend history after reset")
	}
}
