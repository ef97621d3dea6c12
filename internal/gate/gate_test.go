package gate_test

import (
	"testing"
	"time"

	"github.com/atlas-desktop/trading-backend/internal/diagnostics"
	"github.com/atlas-desktop/trading-backend/internal/gate"
	"github.com/atlas-desktop/trading-backend/pkg/flowtypes"
)

func TestGateAdmitsAboveThreshold(t *testing.T) {
	g := gate.New(50, 2*time.Second, 200*time.Millisecond, diagnostics.New(), nil)
	det := flowtypes.NewIcebergEvent(flowtypes.SideBid, 100, 20, 60, time.Now())

	sig, ok := g.Evaluate(det, 80, flowtypes.ScoreBreakdown{}, flowtypes.IndicatorSnapshot{}, time.Now())
	if !ok {
		t.Fatal("expected admission above threshold")
	}
	if sig.Score != 80 || sig.Threshold != 50 {
		t.Fatalf("unexpected signal: %+v", sig)
	}
}

func TestGateRejectsBelowThreshold(t *testing.T) {
	counters := diagnostics.New()
	g := gate.New(50, 2*time.Second, 200*time.Millisecond, counters, nil)
	det := flowtypes.NewIcebergEvent(flowtypes.SideBid, 100, 20, 60, time.Now())

	if _, ok := g.Evaluate(det, 10, flowtypes.ScoreBreakdown{}, flowtypes.IndicatorSnapshot{}, time.Now()); ok {
		t.Fatal("expected rejection below threshold")
	}
	if counters.GateRejectedBelowThreshold.Load() != 1 {
		t.Fatalf("expected below-threshold counter to increment, got %d", counters.GateRejectedBelowThreshold.Load())
	}
}

func TestGateEnforcesPerPriceCooldown(t *testing.T) {
	counters := diagnostics.New()
	g := gate.New(50, 2*time.Second, 0, counters, nil)
	det := flowtypes.NewIcebergEvent(flowtypes.SideBid, 100, 20, 60, time.Now())
	now := time.Now()

	if _, ok := g.Evaluate(det, 80, flowtypes.ScoreBreakdown{}, flowtypes.IndicatorSnapshot{}, now); !ok {
		t.Fatal("expected first admission to succeed")
	}
	if _, ok := g.Evaluate(det, 80, flowtypes.ScoreBreakdown{}, flowtypes.IndicatorSnapshot{}, now.Add(time.Second)); ok {
		t.Fatal("expected second admission at the same price to be rejected by cooldown")
	}
	if counters.GateRejectedCooldown.Load() != 1 {
		t.Fatalf("expected cooldown counter to increment, got %d", counters.GateRejectedCooldown.Load())
	}
}

func TestGateEnforcesGlobalSpacing(t *testing.T) {
	counters := diagnostics.New()
	g := gate.New(50, 0, 200*time.Millisecond, counters, nil)
	now := time.Now()

	det1 := flowtypes.NewIcebergEvent(flowtypes.SideBid, 100, 20, 60, now)
	det2 := flowtypes.NewIcebergEvent(flowtypes.SideBid, 200, 20, 60, now)

	if _, ok := g.Evaluate(det1, 80, flowtypes.ScoreBreakdown{}, flowtypes.IndicatorSnapshot{}, now); !ok {
		t.Fatal("expected first admission to succeed")
	}
	if _, ok := g.Evaluate(det2, 80, flowtypes.ScoreBreakdown{}, flowtypes.IndicatorSnapshot{}, now.Add(50*time.Millisecond)); ok {
		t.Fatal("expected a second signal at a different price within the global spacing window to be rejected")
	}
	if counters.GateRejectedGlobalSpacing.Load() != 1 {
		t.Fatalf("expected global-spacing counter to increment, got %d", counters.GateRejectedGlobalSpacing.Load())
	}
}
