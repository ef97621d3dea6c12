// Package router wires the MBO registry, indicator battery, pattern
// detectors, confluence scorer, signal gate and session machine behind
// the seven entry points a host feeds market data through (spec §4.1).
// The router guarantees one event is fully absorbed before the next
// arrives; it is not safe for concurrent use from multiple goroutines.
package router

import (
	"time"

	"github.com/atlas-desktop/trading-backend/internal/advisor"
	"github.com/atlas-desktop/trading-backend/internal/detectors"
	"github.com/atlas-desktop/trading-backend/internal/diagnostics"
	"github.com/atlas-desktop/trading-backend/internal/gate"
	"github.com/atlas-desktop/trading-backend/internal/indicators"
	"github.com/atlas-desktop/trading-backend/internal/plans"
	"github.com/atlas-desktop/trading-backend/internal/registry"
	"github.com/atlas-desktop/trading-backend/internal/scorer"
	"github.com/atlas-desktop/trading-backend/internal/session"
	"github.com/atlas-desktop/trading-backend/pkg/flowtypes"
	"github.com/atlas-desktop/trading-backend/pkg/utils"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// wallClockRegressionTolerance is the spec §7 threshold past which a
// clock regression resets the session rather than being ignored as
// ordinary jitter between out-of-order feeds.
const wallClockRegressionTolerance = 1 * time.Second

// SignalSink receives every gate-admitted signal.
type SignalSink interface {
	OnSignal(flowtypes.Signal)
}

// DetectionSink receives every fired detection, admitted or not, for
// diagnostics/feed fan-out.
type DetectionSink interface {
	OnDetection(flowtypes.DetectionEvent, int, flowtypes.ScoreBreakdown)
}

// Router is one event loop for one instrument.
type Router struct {
	cfg        flowtypes.Config
	instrument flowtypes.Instrument
	logger     *zap.Logger
	counters   *diagnostics.Counters
	metrics    *diagnostics.Metrics

	registry   *registry.Registry
	indicators *indicators.Battery
	detectors  *detectors.Battery
	scorer     *scorer.Scorer
	gate       *gate.Gate
	session    *session.Machine

	lastBid       int64
	lastTimestamp time.Time
	haveTimestamp bool

	lastSpoofAt map[flowtypes.LevelKey]time.Time

	signalSink    SignalSink
	detectionSink DetectionSink

	advisor        *advisor.Adapter
	tracker        *plans.Tracker
	pendingSignals map[string]flowtypes.Signal
}

// New constructs a fully wired Router from configuration.
func New(cfg flowtypes.Config, logger *zap.Logger, counters *diagnostics.Counters, metrics *diagnostics.Metrics, signalSink SignalSink, detectionSink DetectionSink) *Router {
	reg := registry.New(logger, cfg.AdaptiveWindow, cfg.ConsumptionWindow)
	ind := indicators.New(cfg.Instrument.TickSize, cfg.EMAPeriods, cfg.ATRPeriod, cfg.ValueAreaFraction, cfg.DOMBandTicks, cfg.CVDTrendWindow)
	det := detectors.New(
		detectors.NewIceberg(decimal.NewFromInt(int64(cfg.IcebergMinOrders)), decimal.NewFromInt(cfg.IcebergSizeBase), cfg.ThresholdMultiplier, cfg.IcebergCooldown),
		detectors.NewSpoof(cfg.SpoofMaxAge, cfg.SpoofMinSize),
		detectors.NewAbsorption(decimal.NewFromInt(cfg.AbsorptionMinSize), cfg.AbsorptionWindow),
	)
	sc := scorer.New(cfg.Weights, cfg.Instrument)
	gt := gate.New(cfg.ConfluenceThreshold, cfg.PerPriceCooldown, cfg.GlobalSpacing, counters, metrics)
	sess := session.New(cfg.PhaseSchedule)

	return &Router{
		cfg: cfg, instrument: cfg.Instrument, logger: logger.Named("router"),
		counters: counters, metrics: metrics,
		registry: reg, indicators: ind, detectors: det, scorer: sc, gate: gt, session: sess,
		lastSpoofAt:    make(map[flowtypes.LevelKey]time.Time),
		signalSink:     signalSink,
		detectionSink:  detectionSink,
		pendingSignals: make(map[string]flowtypes.Signal),
	}
}

// WithAdvisor attaches the advisor collaborator and the position-plan
// tracker that records its decisions. Without it, admitted signals are
// still published to the signal sink but never sent for advice.
func (r *Router) WithAdvisor(a *advisor.Adapter, tracker *plans.Tracker) *Router {
	r.advisor = a
	r.tracker = tracker
	return r
}

// CurrentPhase reports the session phase the router is currently in,
// as last advanced by the wall clock or an inbound event timestamp.
func (r *Router) CurrentPhase() flowtypes.Phase {
	return r.session.Current()
}

// drainAdvisor pulls every advisor reply that has landed since the last
// call and records it against the originating signal (spec §5: drained
// non-blockingly at the top of each event entry). A signal submitted to
// the advisor but dropped for a backlog or transport failure before a
// reply ever lands is simply never recorded; its pending entry is
// evicted only once a reply (or an error) actually arrives.
func (r *Router) drainAdvisor() {
	if r.advisor == nil {
		return
	}
	for _, res := range r.advisor.Drain() {
		sig, ok := r.pendingSignals[res.SignalID]
		if !ok {
			continue
		}
		delete(r.pendingSignals, res.SignalID)
		if res.Err != nil {
			continue
		}
		if r.tracker != nil {
			r.tracker.RecordDecision(sig, res.Decision, time.Now())
		}
	}
}

// checkWallClock advances the shared clock cursor, resetting the
// session on a regression past tolerance (spec §7), then advances the
// phase machine itself so every timestamped entry point — not just
// OnTick — keeps the session current (spec §4.7: transitions are
// driven by wall-clock comparisons on each tick/trade/BBO event).
func (r *Router) checkWallClock(ts time.Time) {
	if r.haveTimestamp && r.lastTimestamp.Sub(ts) > wallClockRegressionTolerance {
		r.counters.WallClockRegression.Add(1)
		r.dropEvent("wall_clock_regression")
		r.resetSession()
	}
	if !r.haveTimestamp || ts.After(r.lastTimestamp) {
		r.lastTimestamp = ts
		r.haveTimestamp = true
	}
	if _, enteredPreMarket := r.session.Advance(ts); enteredPreMarket {
		r.indicators.ResetSession()
	}
}

// dropEvent records a hot-path drop on the scraped Prometheus surface,
// if attached (spec §7); callers increment the matching in-process
// counter themselves.
func (r *Router) dropEvent(reason string) {
	if r.metrics != nil {
		r.metrics.DropEvent(reason)
	}
}

func (r *Router) resetSession() {
	r.indicators.ResetSession()
	r.session = session.New(r.cfg.PhaseSchedule)
}

// priceToTicks validates and converts a raw decimal price onto the
// instrument's tick grid (spec §7: "tick-grid violation" is a malformed
// event, counted and dropped).
func (r *Router) priceToTicks(raw decimal.Decimal) (int64, bool) {
	if !utils.TicksOnGrid(raw, r.instrument.TickSize) {
		r.counters.MalformedOffTickGrid.Add(1)
		r.dropEvent("malformed_off_tick_grid")
		return 0, false
	}
	return raw.Div(r.instrument.TickSize).Round(0).IntPart(), true
}

// OnTrade is the trade entry point.
func (r *Router) OnTrade(rawPrice decimal.Decimal, size int64, aggressor flowtypes.OrderSide, ts time.Time) {
	r.drainAdvisor()
	r.checkWallClock(ts)
	if size < 0 {
		r.counters.MalformedNegativeSize.Add(1)
		r.dropEvent("malformed_negative_size")
		return
	}
	ticks, ok := r.priceToTicks(rawPrice)
	if !ok {
		return
	}

	trade := flowtypes.TradeEvent{Price: ticks, Size: size, Aggressor: aggressor, Timestamp: ts}
	r.registry.OnTrade(trade)
	r.indicators.OnTrade(trade, rawPrice)

	// Trades never mutate the MBO registry by themselves; the opposing
	// level's size is re-checked here and again on each subsequent MBO
	// update at the same key via checkAbsorption, which is where a real
	// collapse (or its absence) becomes visible.
	passiveKey := flowtypes.LevelKey{Side: aggressor.Opposite(), Price: ticks}
	passiveLevel, _ := r.registry.Level(passiveKey)
	r.detectors.Absorption.OnTrade(trade, passiveLevel.TotalSize)

	r.checkAbsorption(passiveKey, passiveLevel.TotalSize, ts)
}

// OnDepth is the aggregated depth entry point, feeding the DOM analyzer.
func (r *Router) OnDepth(side flowtypes.OrderSide, rawPrice decimal.Decimal, size int64, ts time.Time) {
	r.drainAdvisor()
	r.checkWallClock(ts)
	if size < 0 {
		r.counters.MalformedNegativeSize.Add(1)
		r.dropEvent("malformed_negative_size")
		return
	}
	ticks, ok := r.priceToTicks(rawPrice)
	if !ok {
		return
	}
	r.indicators.OnDepth(flowtypes.DepthEvent{Side: side, Price: ticks, Size: size, Timestamp: ts})
}

// OnBbo is the best-bid/ask entry point.
func (r *Router) OnBbo(rawBestBid, rawBestAsk decimal.Decimal, ts time.Time) {
	r.drainAdvisor()
	r.checkWallClock(ts)
	bidTicks, ok := r.priceToTicks(rawBestBid)
	if !ok {
		return
	}
	askTicks, ok := r.priceToTicks(rawBestAsk)
	if !ok {
		return
	}
	r.lastBid = bidTicks
	r.indicators.OnBbo(flowtypes.BboEvent{BestBid: bidTicks, BestAsk: askTicks, Timestamp: ts})
}

// OnTick drives the session/phase machine on an idle wall-clock tick
// that carries no market data of its own.
func (r *Router) OnTick(ts time.Time) {
	r.drainAdvisor()
	r.checkWallClock(ts)
}

// OnMBOInsert is the MBO insert entry point.
func (r *Router) OnMBOInsert(id flowtypes.OrderID, side flowtypes.OrderSide, rawPrice decimal.Decimal, size int64, ts time.Time) {
	r.drainAdvisor()
	r.checkWallClock(ts)
	if size < 0 {
		r.counters.MalformedNegativeSize.Add(1)
		r.dropEvent("malformed_negative_size")
		return
	}
	ticks, ok := r.priceToTicks(rawPrice)
	if !ok {
		return
	}

	res := r.registry.Insert(id, side, ticks, size, ts)
	r.runIcebergIfGrew(res.Level, ts)
	r.checkAbsorption(res.Level.Key, res.Level.TotalSize, ts)
}

// OnMBOReplace is the MBO replace entry point.
func (r *Router) OnMBOReplace(id flowtypes.OrderID, newSize int64, ts time.Time) {
	r.drainAdvisor()
	r.checkWallClock(ts)
	if newSize < 0 {
		r.counters.MalformedNegativeSize.Add(1)
		r.dropEvent("malformed_negative_size")
		return
	}

	res := r.registry.Replace(id, newSize, ts)
	if !res.Found {
		r.counters.MalformedUnknownOrderID.Add(1)
		r.dropEvent("malformed_unknown_order_id")
		return
	}
	if res.Removed {
		r.handleRemoval(res.Cancel, ts)
		return
	}
	if res.Delta > 0 {
		r.runIcebergIfGrew(res.Level, ts)
	}
	if res.LevelFound {
		r.checkAbsorption(res.Level.Key, res.Level.TotalSize, ts)
	}
}

// OnMBOCancel is the MBO cancel entry point.
func (r *Router) OnMBOCancel(id flowtypes.OrderID, ts time.Time) {
	r.drainAdvisor()
	r.checkWallClock(ts)
	cr := r.registry.Cancel(id, ts)
	if !cr.Found {
		r.counters.MalformedUnknownOrderID.Add(1)
		r.dropEvent("malformed_unknown_order_id")
		return
	}
	r.handleRemoval(cr, ts)
}

func (r *Router) runIcebergIfGrew(lvl flowtypes.PriceLevel, ts time.Time) {
	if ev, fired := r.detectors.Iceberg.OnLevelGrowth(lvl, r.registry.Window(), ts); fired {
		r.counters.IcebergFired.Add(1)
		if r.metrics != nil {
			r.metrics.Detection(string(flowtypes.DetectionIceberg))
		}
		r.scoreAndGate(ev, ts)
	}
}

func (r *Router) handleRemoval(cr registry.CancelResult, ts time.Time) {
	if !cr.LevelFound {
		return
	}
	key := cr.Level.Key
	if ev, fired := r.detectors.Spoof.OnRemoval(key, cr, ts); fired {
		r.counters.SpoofFired.Add(1)
		if r.metrics != nil {
			r.metrics.Detection(string(flowtypes.DetectionSpoof))
		}
		r.lastSpoofAt[key] = ts
		r.scoreAndGate(ev, ts)
	}
	r.checkAbsorption(key, cr.Level.TotalSize, ts)
}

func (r *Router) checkAbsorption(key flowtypes.LevelKey, currentSize int64, ts time.Time) {
	if ev, fired := r.detectors.Absorption.CheckCollapse(key, currentSize, ts); fired {
		r.counters.AbsorptionFired.Add(1)
		if r.metrics != nil {
			r.metrics.Detection(string(flowtypes.DetectionAbsorption))
		}
		r.scoreAndGate(ev, ts)
	}
}

// scoreAndGate runs the scorer and gate for a fired detection, notifying
// the detection sink regardless of admission and the signal sink only
// on admission.
func (r *Router) scoreAndGate(det flowtypes.DetectionEvent, ts time.Time) {
	refPrice := r.instrument.PriceOf(r.lastBid)
	snap := r.indicators.Snapshot(refPrice, r.session.Current())

	spoofOpposing := false
	opposingKey := flowtypes.LevelKey{Side: det.Side.Opposite(), Price: det.Price}
	if last, ok := r.lastSpoofAt[opposingKey]; ok && ts.Sub(last) <= time.Second {
		spoofOpposing = true
	}

	score, breakdown := r.scorer.Score(det, snap, spoofOpposing)
	if r.detectionSink != nil {
		r.detectionSink.OnDetection(det, score, breakdown)
	}

	sig, admitted := r.gate.Evaluate(det, score, breakdown, snap, ts)
	if !admitted {
		return
	}
	if r.signalSink != nil {
		r.signalSink.OnSignal(sig)
	}
	if r.advisor != nil && r.advisor.Submit(sig) {
		r.pendingSignals[sig.ID] = sig
	}
}
