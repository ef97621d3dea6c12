package advisor_test

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/atlas-desktop/trading-backend/internal/advisor"
	"github.com/atlas-desktop/trading-backend/pkg/flowtypes"
)

func TestBuildCarriesBreakdownAndAvailableContext(t *testing.T) {
	det := flowtypes.NewIcebergEvent(flowtypes.SideBid, 100, 20, 60, time.Now())
	sig := flowtypes.Signal{
		Direction: flowtypes.DirectionLong,
		Price:     100,
		Detection: det,
		Score:     80,
		Threshold: 50,
		Breakdown: flowtypes.ScoreBreakdown{flowtypes.FactorIcebergBase: 40, flowtypes.FactorCVDAlignment: 8},
		Context: flowtypes.IndicatorSnapshot{
			Phase: flowtypes.PhaseMorning,
			Profile: flowtypes.VolumeProfileSnapshot{Available: true, POC: 100, ValueLow: 95, ValueHigh: 105},
			DOM:     flowtypes.DOMSnapshot{Available: true, Support: 98, Resistance: 102},
		},
	}

	b := advisor.Build(sig)
	if b.Direction != "long" || b.Detection != "iceberg" || b.Price != 100 || b.Score != 80 {
		t.Fatalf("unexpected bundle header fields: %+v", b)
	}
	if b.Breakdown["iceberg_base"] != 40 {
		t.Fatalf("expected iceberg_base breakdown entry, got %+v", b.Breakdown)
	}
	if b.Context.POC != 100 || b.Context.Support != 98 {
		t.Fatalf("expected available profile/DOM context to be carried, got %+v", b.Context)
	}
}

func TestEncodeStaysWithinWireBudget(t *testing.T) {
	det := flowtypes.NewIcebergEvent(flowtypes.SideBid, 100, 20, 60, time.Now())
	sig := flowtypes.Signal{
		Direction: flowtypes.DirectionLong,
		Price:     100,
		Detection: det,
		Score:     80,
		Threshold: 50,
		Breakdown: flowtypes.ScoreBreakdown{},
		Context:   flowtypes.IndicatorSnapshot{Phase: flowtypes.PhaseMorning},
	}
	b := advisor.Build(sig)
	b.Query = strings.Repeat("x", 16*1024)

	data, err := advisor.Encode(b)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if len(data) > 8*1024 {
		t.Fatalf("expected encoded bundle to stay within the 8 KiB budget, got %d bytes", len(data))
	}
	var roundTrip map[string]any
	if err := json.Unmarshal(data, &roundTrip); err != nil {
		t.Fatalf("expected valid JSON even after truncation: %v", err)
	}
}
