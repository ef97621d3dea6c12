package advisor_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/atlas-desktop/trading-backend/internal/advisor"
	"github.com/atlas-desktop/trading-backend/internal/diagnostics"
	"github.com/atlas-desktop/trading-backend/pkg/flowtypes"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

func testInstrument(t *testing.T) flowtypes.Instrument {
	t.Helper()
	inst, err := flowtypes.NewInstrument("ES", decimal.NewFromFloat(0.25), decimal.NewFromInt(50))
	if err != nil {
		t.Fatalf("NewInstrument: %v", err)
	}
	return inst
}

func testSignal() flowtypes.Signal {
	det := flowtypes.NewIcebergEvent(flowtypes.SideBid, 100, 20, 60, time.Now())
	return flowtypes.Signal{
		ID:        "sig-1",
		Direction: flowtypes.DirectionLong,
		Price:     100,
		Detection: det,
		Score:     80,
		Breakdown: flowtypes.ScoreBreakdown{flowtypes.FactorIcebergBase: 40},
		Context:   flowtypes.IndicatorSnapshot{Phase: flowtypes.PhaseMorning},
		Threshold: 50,
	}
}

func waitForResult(t *testing.T, a *advisor.Adapter) advisor.Result {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		results := a.Drain()
		if len(results) > 0 {
			return results[0]
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("timed out waiting for advisor result")
	return advisor.Result{}
}

func TestSubmitDecodesTakeDecisionWithPlan(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"action":     "TAKE",
			"confidence": 0.82,
			"reasoning":  "clean iceberg with CVD confirmation",
			"plan": map[string]any{
				"orderType":          "BUY",
				"executionType":      "LIMIT",
				"entryPrice":         4320.00,
				"stopLossPrice":      4318.00,
				"takeProfitPrice":    4325.00,
				"executionReasoning": "enter at resting level",
			},
			"unexpectedField": "should be ignored",
		})
	}))
	defer srv.Close()

	cfg := flowtypes.Default()
	a := advisor.New(srv.URL, testInstrument(t), cfg, zap.NewNop(), diagnostics.New(), nil)

	if ok := a.Submit(testSignal()); !ok {
		t.Fatal("expected submit to be accepted under empty backlog")
	}
	res := waitForResult(t, a)
	if res.Err != nil {
		t.Fatalf("unexpected error: %v", res.Err)
	}
	if !res.Decision.Take {
		t.Fatal("expected a TAKE decision")
	}
	if res.Decision.Plan == nil {
		t.Fatal("expected a trade plan to be decoded")
	}
	if res.Decision.Plan.Entry != 4320*4 {
		t.Fatalf("expected entry price converted to ticks (0.25 tick size), got %d", res.Decision.Plan.Entry)
	}
}

func TestSubmitMalformedReplyIsSkipWithZeroConfidence(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("not json"))
	}))
	defer srv.Close()

	counters := diagnostics.New()
	cfg := flowtypes.Default()
	a := advisor.New(srv.URL, testInstrument(t), cfg, zap.NewNop(), counters, nil)

	a.Submit(testSignal())
	res := waitForResult(t, a)
	if res.Err != nil {
		t.Fatalf("a parse failure must not surface as a transport error: %v", res.Err)
	}
	if res.Decision.Take {
		t.Fatal("expected a SKIP decision on parse failure")
	}
	if !res.Decision.Confidence.IsZero() {
		t.Fatalf("expected zero confidence on parse failure, got %s", res.Decision.Confidence)
	}
	if counters.AdvisorReplyParseFailed.Load() != 1 {
		t.Fatalf("expected parse-failure counter to increment, got %d", counters.AdvisorReplyParseFailed.Load())
	}
}

func TestSubmitSkippedWhenBacklogExceeded(t *testing.T) {
	block := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-block
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"action": "SKIP", "confidence": 0, "reasoning": "n/a"})
	}))
	defer func() {
		close(block)
		srv.Close()
	}()

	cfg := flowtypes.Default()
	cfg.AdvisorBacklogSkip = 1
	a := advisor.New(srv.URL, testInstrument(t), cfg, zap.NewNop(), diagnostics.New(), nil)

	if !a.Submit(testSignal()) {
		t.Fatal("expected first call to be accepted")
	}
	if !a.Submit(testSignal()) {
		t.Fatal("expected second call to be accepted (at the backlog bound)")
	}
	if a.Submit(testSignal()) {
		t.Fatal("expected third call to be skipped once backlog exceeds the configured bound")
	}
}

func TestLatencyStatsAccumulateAcrossCalls(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"action": "SKIP", "confidence": 0, "reasoning": "n/a"})
	}))
	defer srv.Close()

	cfg := flowtypes.Default()
	a := advisor.New(srv.URL, testInstrument(t), cfg, zap.NewNop(), diagnostics.New(), nil)

	a.Submit(testSignal())
	waitForResult(t, a)

	stats := a.LatencyStats()
	if stats.Count != 1 {
		t.Fatalf("expected one latency sample recorded, got %d", stats.Count)
	}
}
