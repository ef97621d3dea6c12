package router_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/atlas-desktop/trading-backend/internal/advisor"
	"github.com/atlas-desktop/trading-backend/internal/diagnostics"
	"github.com/atlas-desktop/trading-backend/internal/plans"
	"github.com/atlas-desktop/trading-backend/internal/router"
	"github.com/atlas-desktop/trading-backend/pkg/flowtypes"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type recordingSinks struct {
	signals    []flowtypes.Signal
	detections []flowtypes.DetectionEvent
}

func (r *recordingSinks) OnSignal(s flowtypes.Signal) { r.signals = append(r.signals, s) }
func (r *recordingSinks) OnDetection(d flowtypes.DetectionEvent, score int, breakdown flowtypes.ScoreBreakdown) {
	r.detections = append(r.detections, d)
}

func newTestRouter(t *testing.T, sinks *recordingSinks) *router.Router {
	t.Helper()
	cfg := flowtypes.Default()
	return router.New(cfg, zap.NewNop(), diagnostics.New(), nil, sinks, sinks)
}

func TestCleanIcebergFiresIcebergDetection(t *testing.T) {
	sinks := &recordingSinks{}
	r := newTestRouter(t, sinks)
	now := time.Now()
	price := decimal.NewFromFloat(43200.00)

	for i := 0; i < 20; i++ {
		id := flowtypes.OrderID(decimal.NewFromInt(int64(i)).String())
		r.OnMBOInsert(id, flowtypes.SideBid, price, 3, now.Add(time.Duration(i)*50*time.Millisecond))
	}
	for i := 0; i < 10; i++ {
		r.OnTrade(price, 1, flowtypes.SideAsk, now.Add(2*time.Second))
	}

	if len(sinks.detections) == 0 {
		t.Fatal("expected at least one detection to fire from a clean iceberg pattern")
	}
	foundIceberg := false
	for _, d := range sinks.detections {
		if d.Kind == flowtypes.DetectionIceberg {
			foundIceberg = true
		}
	}
	if !foundIceberg {
		t.Fatal("expected an iceberg detection among fired events")
	}
}

func TestMalformedNegativeSizeIsDroppedAndCounted(t *testing.T) {
	counters := diagnostics.New()
	cfg := flowtypes.Default()
	r := router.New(cfg, zap.NewNop(), counters, nil, nil, nil)

	r.OnTrade(decimal.NewFromFloat(43200.00), -5, flowtypes.SideBid, time.Now())
	if counters.MalformedNegativeSize.Load() != 1 {
		t.Fatalf("expected negative size to be counted and dropped, got %d", counters.MalformedNegativeSize.Load())
	}
}

func TestMalformedOffTickGridIsDroppedAndCounted(t *testing.T) {
	counters := diagnostics.New()
	cfg := flowtypes.Default()
	r := router.New(cfg, zap.NewNop(), counters, nil, nil, nil)

	r.OnTrade(decimal.NewFromFloat(43200.10), 5, flowtypes.SideBid, time.Now())
	if counters.MalformedOffTickGrid.Load() != 1 {
		t.Fatalf("expected an off-tick-grid price to be counted and dropped, got %d", counters.MalformedOffTickGrid.Load())
	}
}

func TestUnknownOrderIDOnCancelIsDroppedAndCounted(t *testing.T) {
	counters := diagnostics.New()
	cfg := flowtypes.Default()
	r := router.New(cfg, zap.NewNop(), counters, nil, nil, nil)

	r.OnMBOCancel("ghost-order", time.Now())
	if counters.MalformedUnknownOrderID.Load() != 1 {
		t.Fatalf("expected unknown order id to be counted and dropped, got %d", counters.MalformedUnknownOrderID.Load())
	}
}

func TestAdmittedSignalIsSubmittedToAdvisorAndRecorded(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"action":     "TAKE",
			"confidence": 0.9,
			"reasoning":  "confirmed",
			"plan": map[string]any{
				"orderType":          "BUY",
				"executionType":      "LIMIT",
				"entryPrice":         43200.00,
				"stopLossPrice":      43100.00,
				"takeProfitPrice":    43400.00,
				"executionReasoning": "enter here",
			},
		})
	}))
	defer srv.Close()

	sinks := &recordingSinks{}
	cfg := flowtypes.Default()
	counters := diagnostics.New()
	logger := zap.NewNop()

	a := advisor.New(srv.URL, cfg.Instrument, cfg, logger, counters, nil)
	tracker, err := plans.New(logger, t.TempDir()+"/plans.jsonl")
	if err != nil {
		t.Fatalf("plans.New: %v", err)
	}
	defer tracker.Close()

	r := router.New(cfg, logger, counters, nil, sinks, sinks).WithAdvisor(a, tracker)

	now := time.Now()
	price := decimal.NewFromFloat(43200.00)
	for i := 0; i < 20; i++ {
		id := flowtypes.OrderID(decimal.NewFromInt(int64(i)).String())
		r.OnMBOInsert(id, flowtypes.SideBid, price, 3, now.Add(time.Duration(i)*50*time.Millisecond))
	}
	for i := 0; i < 10; i++ {
		r.OnTrade(price, 1, flowtypes.SideAsk, now.Add(2*time.Second))
	}
	if len(sinks.signals) == 0 {
		t.Fatal("expected at least one admitted signal before exercising the advisor wiring")
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		r.OnTick(now.Add(3 * time.Second))
		if len(tracker.Recent(0)) > 0 {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}

	recent := tracker.Recent(0)
	if len(recent) == 0 {
		t.Fatal("expected the advisor's TAKE decision to produce a tracked plan")
	}
	if recent[0].Entry != 43200*4 {
		t.Fatalf("expected entry converted to ticks, got %d", recent[0].Entry)
	}
}

func TestWallClockRegressionResetsSession(t *testing.T) {
	counters := diagnostics.New()
	cfg := flowtypes.Default()
	r := router.New(cfg, zap.NewNop(), counters, nil, nil, nil)

	now := time.Now()
	r.OnTick(now)
	r.OnTick(now.Add(-2 * time.Second))

	if counters.WallClockRegression.Load() != 1 {
		t.Fatalf("expected a >1s regression to be counted, got %d", counters.WallClockRegression.Load())
	}
}
