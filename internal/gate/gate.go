// Package gate implements the signal gate: the admission rule that
// throttles and deduplicates scored detections into immutable Signals
// (spec §4.6).
package gate

import (
	"time"

	"github.com/atlas-desktop/trading-backend/internal/diagnostics"
	"github.com/atlas-desktop/trading-backend/pkg/flowtypes"
	"github.com/atlas-desktop/trading-backend/pkg/utils"
)

// RejectionReason buckets a gate rejection for diagnostics.
type RejectionReason string

const (
	RejectedBelowThreshold RejectionReason = "below_threshold"
	RejectedCooldown       RejectionReason = "cooldown"
	RejectedGlobalSpacing  RejectionReason = "global_spacing"
)

// Gate admits or rejects scored detections.
type Gate struct {
	threshold      int
	perPriceCooldown time.Duration
	globalSpacing  time.Duration

	counters *diagnostics.Counters
	metrics  *diagnostics.Metrics

	lastEmitByPrice map[int64]time.Time
	lastGlobalEmit  time.Time
}

// New constructs a Gate from configuration. counters and metrics may be
// nil in tests that don't care about diagnostics.
func New(threshold int, perPriceCooldown, globalSpacing time.Duration, counters *diagnostics.Counters, metrics *diagnostics.Metrics) *Gate {
	return &Gate{
		threshold: threshold, perPriceCooldown: perPriceCooldown, globalSpacing: globalSpacing,
		counters: counters, metrics: metrics,
		lastEmitByPrice: make(map[int64]time.Time),
	}
}

// Evaluate applies the admission rule and, on success, constructs an
// immutable Signal.
func (g *Gate) Evaluate(det flowtypes.DetectionEvent, score int, breakdown flowtypes.ScoreBreakdown, ctx flowtypes.IndicatorSnapshot, now time.Time) (flowtypes.Signal, bool) {
	if score < g.threshold {
		g.reject(RejectedBelowThreshold)
		return flowtypes.Signal{}, false
	}

	if last, ok := g.lastEmitByPrice[det.Price]; ok && now.Sub(last) < g.perPriceCooldown {
		g.reject(RejectedCooldown)
		return flowtypes.Signal{}, false
	}

	if !g.lastGlobalEmit.IsZero() && now.Sub(g.lastGlobalEmit) < g.globalSpacing {
		g.reject(RejectedGlobalSpacing)
		return flowtypes.Signal{}, false
	}

	g.lastEmitByPrice[det.Price] = now
	g.lastGlobalEmit = now
	if g.counters != nil {
		g.counters.GateAdmitted.Add(1)
	}
	if g.metrics != nil {
		g.metrics.GateAdmitted()
	}

	return flowtypes.Signal{
		ID:         utils.GenerateSignalID(),
		Direction:  flowtypes.DirectionFromSide(det.Side),
		Price:      det.Price,
		Detection:  det,
		Score:      score,
		Breakdown:  breakdown,
		Context:    ctx,
		Threshold:  g.threshold,
		AdmittedAt: now,
	}, true
}

func (g *Gate) reject(reason RejectionReason) {
	if g.counters != nil {
		switch reason {
		case RejectedBelowThreshold:
			g.counters.GateRejectedBelowThreshold.Add(1)
		case RejectedCooldown:
			g.counters.GateRejectedCooldown.Add(1)
		case RejectedGlobalSpacing:
			g.counters.GateRejectedGlobalSpacing.Add(1)
		}
	}
	if g.metrics != nil {
		g.metrics.GateRejected(string(reason))
	}
}
