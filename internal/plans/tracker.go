// Package plans implements the position-plan tracker (spec §4.9): it
// turns advisor "take" decisions into TradePlan values, records an
// append-only decision log, consumes plan-resolution events from the
// plan-consumer collaborator, and rolls up per-pattern performance.
package plans

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/atlas-desktop/trading-backend/pkg/flowtypes"
	"github.com/atlas-desktop/trading-backend/pkg/utils"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// record is one line of the append-only JSONL decision/outcome log
// (§6 "persisted state layout").
type record struct {
	Timestamp  time.Time               `json:"ts"`
	Kind       flowtypes.MemoryRecordKind `json:"kind"`
	ID         string                  `json:"id,omitempty"`
	Direction  flowtypes.Direction     `json:"direction,omitempty"`
	Price      int64                   `json:"price,omitempty"`
	Score      int                     `json:"score,omitempty"`
	Decision   string                  `json:"decision,omitempty"`
	Confidence string                  `json:"confidence,omitempty"`
	Reasoning  string                  `json:"reasoning,omitempty"`
	Outcome    string                  `json:"outcome,omitempty"`
}

// PatternStats rolls up realized performance for one detection kind,
// updated on each resolution: WinRate as an exponential moving average,
// AvgPnL as a running arithmetic mean.
type PatternStats struct {
	Pattern     flowtypes.DetectionKind
	TotalPlans  int
	WinRate     decimal.Decimal
	AvgPnL      decimal.Decimal
	LastUpdated time.Time
}

const winRateAlpha = 0.1

// Tracker is the only core component that persists anything across
// signals (§4.9). It is not safe for concurrent use from multiple
// goroutines beyond the mutex-guarded accessors below, matching the
// single-threaded event-loop model it's embedded in; the mutex exists
// only to let the diagnostics API read a consistent snapshot.
type Tracker struct {
	logger *zap.Logger
	mu     sync.RWMutex

	plans    map[string]*flowtypes.TradePlan
	patterns map[flowtypes.DetectionKind]*PatternStats

	logPath string
	logFile *os.File
}

// New opens (creating if necessary) the append-only log at logPath and
// returns a ready Tracker.
func New(logger *zap.Logger, logPath string) (*Tracker, error) {
	if err := os.MkdirAll(filepath.Dir(logPath), 0o755); err != nil {
		return nil, fmt.Errorf("plans: create log dir: %w", err)
	}
	f, err := os.OpenFile(logPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("plans: open log: %w", err)
	}
	return &Tracker{
		logger:   logger.Named("plans"),
		plans:    make(map[string]*flowtypes.TradePlan),
		patterns: make(map[flowtypes.DetectionKind]*PatternStats),
		logPath:  logPath,
		logFile:  f,
	}, nil
}

// Close flushes and closes the underlying log file.
func (t *Tracker) Close() error {
	return t.logFile.Close()
}

// RecordDecision appends a signal-decision record for every advisor
// reply (take or skip) and, on a take with a plan attached, creates
// and tracks a TradePlan.
func (t *Tracker) RecordDecision(sig flowtypes.Signal, decision flowtypes.AdvisorDecision, now time.Time) *flowtypes.TradePlan {
	decisionLabel := "SKIP"
	if decision.Take {
		decisionLabel = "TAKE"
	}
	t.append(record{
		Timestamp:  now,
		Kind:       flowtypes.MemorySignalDecision,
		ID:         sig.ID,
		Direction:  sig.Direction,
		Price:      sig.Price,
		Score:      sig.Score,
		Decision:   decisionLabel,
		Confidence: decision.Confidence.String(),
		Reasoning:  decision.Reasoning,
	})

	if !decision.Take || decision.Plan == nil {
		return nil
	}

	plan := *decision.Plan
	plan.ID = utils.GeneratePlanID()
	plan.SignalID = sig.ID
	plan.CreatedAt = now

	t.mu.Lock()
	t.plans[plan.ID] = &plan
	t.mu.Unlock()

	return &plan
}

// Resolve applies an inbound PlanResolution from the plan-consumer
// collaborator, appends the outcome record, and rolls the pattern
// stats for the plan's originating detection kind forward.
func (t *Tracker) Resolve(res flowtypes.PlanResolution, kind flowtypes.DetectionKind) {
	t.append(record{
		Timestamp: res.ResolvedAt,
		Kind:      flowtypes.MemoryOutcome,
		ID:        res.PlanID,
		Outcome:   string(res.Outcome),
	})

	t.mu.Lock()
	defer t.mu.Unlock()

	stats, ok := t.patterns[kind]
	if !ok {
		stats = &PatternStats{Pattern: kind}
		t.patterns[kind] = stats
	}
	stats.TotalPlans++

	won := res.Outcome == flowtypes.OutcomeHitTP || (res.Outcome == flowtypes.OutcomeFilled && res.RealizedPnL.GreaterThan(decimal.Zero))
	alpha := decimal.NewFromFloat(winRateAlpha)
	target := decimal.Zero
	if won {
		target = decimal.NewFromInt(1)
	}
	stats.WinRate = stats.WinRate.Mul(decimal.NewFromFloat(1 - winRateAlpha)).Add(target.Mul(alpha))

	n := decimal.NewFromInt(int64(stats.TotalPlans))
	oldWeight := decimal.NewFromInt(int64(stats.TotalPlans - 1))
	stats.AvgPnL = stats.AvgPnL.Mul(oldWeight).Add(res.RealizedPnL).Div(n)
	stats.LastUpdated = res.ResolvedAt
}

// Plan returns a tracked plan by identity.
func (t *Tracker) Plan(id string) (flowtypes.TradePlan, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	p, ok := t.plans[id]
	if !ok {
		return flowtypes.TradePlan{}, false
	}
	return *p, true
}

// Recent returns up to limit tracked plans; order is unspecified.
func (t *Tracker) Recent(limit int) []flowtypes.TradePlan {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]flowtypes.TradePlan, 0, len(t.plans))
	for _, p := range t.plans {
		out = append(out, *p)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out
}

// PatternPerformance returns the rolled-up stats for a detection kind.
func (t *Tracker) PatternPerformance(kind flowtypes.DetectionKind) (PatternStats, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	s, ok := t.patterns[kind]
	if !ok {
		return PatternStats{}, false
	}
	return *s, true
}

func (t *Tracker) append(r record) {
	data, err := json.Marshal(r)
	if err != nil {
		t.logger.Error("failed to marshal plan log record", zap.Error(err))
		return
	}
	data = append(data, '\n')
	if _, err := t.logFile.Write(data); err != nil {
		t.logger.Error("failed to append plan log record", zap.Error(err))
	}
}
