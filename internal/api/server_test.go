package api_test

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/atlas-desktop/trading-backend/internal/api"
	"github.com/atlas-desktop/trading-backend/internal/diagnostics"
	"github.com/atlas-desktop/trading-backend/internal/feed"
	"github.com/atlas-desktop/trading-backend/internal/plans"
	"github.com/atlas-desktop/trading-backend/pkg/flowtypes"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

func TestHealthEndpoint(t *testing.T) {
	logger := zap.NewNop()
	counters := diagnostics.New()
	metrics := diagnostics.NewMetrics()
	bus := feed.New(logger)
	tracker, err := plans.New(logger, t.TempDir()+"/plans.jsonl")
	if err != nil {
		t.Fatalf("plans.New: %v", err)
	}
	defer tracker.Close()

	srv := api.NewServer(logger, api.DefaultConfig(), counters, metrics, bus, tracker, func() flowtypes.Phase { return flowtypes.PhaseLunch })
	go srv.Start()
	defer srv.Stop(context.Background())
	time.Sleep(10 * time.Millisecond)

	resp, err := http.Get("http://localhost:8090/healthz")
	if err != nil {
		t.Fatalf("GET /healthz: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var body map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["status"] != "ok" {
		t.Fatalf("expected status ok, got %+v", body)
	}
}

func TestSessionEndpointReportsCurrentPhase(t *testing.T) {
	logger := zap.NewNop()
	counters := diagnostics.New()
	metrics := diagnostics.NewMetrics()
	bus := feed.New(logger)
	tracker, err := plans.New(logger, t.TempDir()+"/plans.jsonl")
	if err != nil {
		t.Fatalf("plans.New: %v", err)
	}
	defer tracker.Close()

	cfg := api.DefaultConfig()
	cfg.Addr = ":8091"
	srv := api.NewServer(logger, cfg, counters, metrics, bus, tracker, func() flowtypes.Phase { return flowtypes.PhaseAfternoon })
	go srv.Start()
	defer srv.Stop(context.Background())
	time.Sleep(10 * time.Millisecond)

	resp, err := http.Get("http://localhost:8091/session")
	if err != nil {
		t.Fatalf("GET /session: %v", err)
	}
	defer resp.Body.Close()

	var body map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["phase"] != string(flowtypes.PhaseAfternoon) {
		t.Fatalf("expected afternoon phase, got %+v", body)
	}
}

func TestWebSocketReceivesBroadcastSignal(t *testing.T) {
	logger := zap.NewNop()
	counters := diagnostics.New()
	metrics := diagnostics.NewMetrics()
	bus := feed.New(logger)
	tracker, err := plans.New(logger, t.TempDir()+"/plans.jsonl")
	if err != nil {
		t.Fatalf("plans.New: %v", err)
	}
	defer tracker.Close()

	cfg := api.DefaultConfig()
	cfg.Addr = ":8092"
	srv := api.NewServer(logger, cfg, counters, metrics, bus, tracker, func() flowtypes.Phase { return flowtypes.PhaseMorning })
	go srv.Start()
	defer srv.Stop(context.Background())
	time.Sleep(10 * time.Millisecond)

	wsURL := "ws://localhost:8092" + cfg.WebSocketPath
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	time.Sleep(10 * time.Millisecond)

	sig := flowtypes.Signal{ID: "sig-ws-1", Direction: flowtypes.DirectionLong, Price: 100}
	bus.OnSignal(sig)

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, raw, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !strings.Contains(string(raw), "sig-ws-1") {
		t.Fatalf("expected broadcast to contain the signal id, got %s", raw)
	}
}

func TestPlansEndpointReturnsTrackedPlans(t *testing.T) {
	logger := zap.NewNop()
	counters := diagnostics.New()
	metrics := diagnostics.NewMetrics()
	bus := feed.New(logger)
	tracker, err := plans.New(logger, t.TempDir()+"/plans.jsonl")
	if err != nil {
		t.Fatalf("plans.New: %v", err)
	}
	defer tracker.Close()

	sig := flowtypes.Signal{ID: "sig-2", Direction: flowtypes.DirectionLong, Price: 100}
	tracker.RecordDecision(sig, flowtypes.AdvisorDecision{
		Take:       true,
		Plan:       &flowtypes.TradePlan{Direction: flowtypes.DirectionLong, Entry: 100, StopLoss: 90, TakeProfit: 120},
	}, time.Now())

	cfg := api.DefaultConfig()
	cfg.Addr = ":8093"
	srv := api.NewServer(logger, cfg, counters, metrics, bus, tracker, func() flowtypes.Phase { return flowtypes.PhaseMorning })
	go srv.Start()
	defer srv.Stop(context.Background())
	time.Sleep(10 * time.Millisecond)

	resp, err := http.Get("http://localhost:8093/plans")
	if err != nil {
		t.Fatalf("GET /plans: %v", err)
	}
	defer resp.Body.Close()

	var body []flowtypes.TradePlan
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(body) != 1 || body[0].SignalID != "sig-2" {
		t.Fatalf("expected the tracked plan, got %+v", body)
	}
}
