package indicators_test

import (
	"testing"
	"time"

	"github.com/atlas-desktop/trading-backend/internal/indicators"
	"github.com/atlas-desktop/trading-backend/pkg/flowtypes"
	"github.com/shopspring/decimal"
)

func TestDOMSupportResistanceWithinBand(t *testing.T) {
	d := indicators.NewDOM(5, decimal.NewFromFloat(0.25))
	now := time.Now()
	d.OnBbo(flowtypes.BboEvent{BestBid: 100, BestAsk: 101, Timestamp: now})
	d.OnDepth(flowtypes.DepthEvent{Side: flowtypes.SideBid, Price: 98, Size: 50, Timestamp: now})
	d.OnDepth(flowtypes.DepthEvent{Side: flowtypes.SideBid, Price: 100, Size: 10, Timestamp: now})
	d.OnDepth(flowtypes.DepthEvent{Side: flowtypes.SideAsk, Price: 103, Size: 20, Timestamp: now})

	snap := d.Snapshot()
	if snap.Support != 98 {
		t.Fatalf("expected support at 98 (largest bid size in band), got %d", snap.Support)
	}
	if snap.Resistance != 103 {
		t.Fatalf("expected resistance at 103, got %d", snap.Resistance)
	}
}

func TestDOMUnavailableWithoutBbo(t *testing.T) {
	d := indicators.NewDOM(5, decimal.NewFromFloat(0.25))
	if d.Snapshot().Available {
		t.Fatal("expected DOM unavailable before any BBO observed")
	}
}
