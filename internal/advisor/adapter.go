package advisor

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/atlas-desktop/trading-backend/internal/diagnostics"
	"github.com/atlas-desktop/trading-backend/pkg/flowtypes"
	"github.com/go-resty/resty/v2"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Result is an advisor decision coalesced back to its originating
// signal identity (spec §5: "advisor responses never reorder with
// market events — they are merged at the next event boundary").
type Result struct {
	SignalID string
	Decision flowtypes.AdvisorDecision
	Err      error // non-nil only once retries are exhausted; the signal is dropped
}

// LatencyStats is the rolling advisor round-trip statistic from §4.8.
type LatencyStats struct {
	Count      int
	Mean, Min, Max time.Duration
}

// Adapter encodes bundles, posts them to the advisor collaborator with
// a bounded retry budget, and decodes the structured reply. Calls run
// on background goroutines; results are coalesced onto an inbox the
// event loop drains at the top of every entry point (§5).
type Adapter struct {
	http       *resty.Client
	endpoint   string
	instrument flowtypes.Instrument

	timeout      time.Duration
	retryBackoff []time.Duration
	backlogSkip  int

	logger   *zap.Logger
	counters *diagnostics.Counters
	metrics  *diagnostics.Metrics

	inbox       chan Result
	outstanding atomic.Int64

	mu                sync.Mutex
	latencies         []time.Duration
	maxLatencySamples int
}

// New constructs an Adapter posting bundles to endpoint.
func New(endpoint string, instrument flowtypes.Instrument, cfg flowtypes.Config, logger *zap.Logger, counters *diagnostics.Counters, metrics *diagnostics.Metrics) *Adapter {
	backoff := cfg.AdvisorRetryBackoff
	if len(backoff) == 0 {
		backoff = []time.Duration{1 * time.Second, 2 * time.Second, 4 * time.Second}
	}
	samples := cfg.AdvisorLatencySamples
	if samples <= 0 {
		samples = 20
	}
	return &Adapter{
		http:              resty.New().SetTimeout(cfg.AdvisorTimeout),
		endpoint:          endpoint,
		instrument:        instrument,
		timeout:           cfg.AdvisorTimeout,
		retryBackoff:      backoff,
		backlogSkip:       cfg.AdvisorBacklogSkip,
		logger:            logger.Named("advisor"),
		counters:          counters,
		metrics:           metrics,
		inbox:             make(chan Result, 64),
		maxLatencySamples: samples,
	}
}

// Backlog reports the number of advisor calls currently outstanding.
func (a *Adapter) Backlog() int { return int(a.outstanding.Load()) }

// Submit issues an async advisor call for an admitted signal, unless
// the outstanding backlog already exceeds the configured skip bound,
// in which case it returns false and issues no call.
func (a *Adapter) Submit(sig flowtypes.Signal) bool {
	if a.Backlog() > a.backlogSkip {
		return false
	}
	a.outstanding.Add(1)
	go a.run(sig)
	return true
}

// Drain non-blockingly collects every advisor result that has arrived
// since the last drain, for merging at the next event boundary.
func (a *Adapter) Drain() []Result {
	var out []Result
	for {
		select {
		case r := <-a.inbox:
			out = append(out, r)
		default:
			return out
		}
	}
}

// LatencyStats returns mean/min/max over the last N call durations.
func (a *Adapter) LatencyStats() LatencyStats {
	a.mu.Lock()
	defer a.mu.Unlock()
	if len(a.latencies) == 0 {
		return LatencyStats{}
	}
	var sum time.Duration
	min, max := a.latencies[0], a.latencies[0]
	for _, d := range a.latencies {
		sum += d
		if d < min {
			min = d
		}
		if d > max {
			max = d
		}
	}
	return LatencyStats{Count: len(a.latencies), Mean: sum / time.Duration(len(a.latencies)), Min: min, Max: max}
}

func (a *Adapter) recordLatency(d time.Duration) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.latencies = append(a.latencies, d)
	if len(a.latencies) > a.maxLatencySamples {
		a.latencies = a.latencies[len(a.latencies)-a.maxLatencySamples:]
	}
}

func (a *Adapter) run(sig flowtypes.Signal) {
	defer a.outstanding.Add(-1)

	start := time.Now()
	ctx, cancel := context.WithTimeout(context.Background(), a.timeout)
	defer cancel()

	dec, err := a.call(ctx, sig)
	elapsed := time.Since(start)
	a.recordLatency(elapsed)
	if a.metrics != nil {
		a.metrics.AdvisorLatency(elapsed)
	}

	res := Result{SignalID: sig.ID, Decision: dec}
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			if a.counters != nil {
				a.counters.AdvisorTimeout.Add(1)
			}
			if a.metrics != nil {
				a.metrics.AdvisorFailure("timeout")
			}
		} else {
			if a.counters != nil {
				a.counters.AdvisorTransportFailure.Add(1)
			}
			if a.metrics != nil {
				a.metrics.AdvisorFailure("transport")
			}
		}
		res.Err = err
	}
	a.inbox <- res
}

// call posts the encoded bundle, retrying on transport error or 5xx once
// per entry of the configured backoff schedule, and giving up early if
// the context budget expires while waiting. A
// malformed reply is not a transport failure: it is decoded as a SKIP
// with zero confidence per §7.
func (a *Adapter) call(ctx context.Context, sig flowtypes.Signal) (flowtypes.AdvisorDecision, error) {
	body, err := Encode(Build(sig))
	if err != nil {
		return flowtypes.AdvisorDecision{}, err
	}

	var lastErr error
	for attempt := 0; ; attempt++ {
		resp, reqErr := a.http.R().
			SetContext(ctx).
			SetHeader("Content-Type", "application/json").
			SetBody(body).
			Post(a.endpoint)

		if reqErr == nil && resp.StatusCode() < 500 {
			dec, decErr := a.decode(resp.Body())
			if decErr != nil {
				if a.counters != nil {
					a.counters.AdvisorReplyParseFailed.Add(1)
				}
				if a.metrics != nil {
					a.metrics.AdvisorFailure("parse")
				}
				return flowtypes.AdvisorDecision{
					Take:       false,
					Confidence: decimal.Zero,
					Reasoning:  "advisor reply parse failure: " + decErr.Error(),
				}, nil
			}
			return dec, nil
		}

		if reqErr != nil {
			lastErr = reqErr
		} else {
			lastErr = fmt.Errorf("advisor: status %d", resp.StatusCode())
		}
		if attempt >= len(a.retryBackoff) {
			return flowtypes.AdvisorDecision{}, lastErr
		}
		select {
		case <-time.After(a.retryBackoff[attempt]):
		case <-ctx.Done():
			return flowtypes.AdvisorDecision{}, ctx.Err()
		}
	}
}

// wireDecision mirrors the §6 byte-level reply contract. Unknown
// fields are ignored by json.Unmarshal; missing optionals stay zero.
type wireDecision struct {
	Action              string             `json:"action"`
	Confidence          float64            `json:"confidence"`
	Reasoning           string             `json:"reasoning"`
	Plan                *wirePlan          `json:"plan,omitempty"`
	ThresholdAdjustment map[string]float64 `json:"thresholdAdjustment,omitempty"`
}

type wirePlan struct {
	OrderType          string   `json:"orderType"`
	ExecutionType      string   `json:"executionType"`
	EntryPrice         float64  `json:"entryPrice"`
	TriggerPrice       *float64 `json:"triggerPrice,omitempty"`
	StopLossPrice      float64  `json:"stopLossPrice"`
	TakeProfitPrice    float64  `json:"takeProfitPrice"`
	ExecutionReasoning string   `json:"executionReasoning"`
}

func (a *Adapter) decode(raw []byte) (flowtypes.AdvisorDecision, error) {
	var wire wireDecision
	if err := json.Unmarshal(raw, &wire); err != nil {
		return flowtypes.AdvisorDecision{}, err
	}

	dec := flowtypes.AdvisorDecision{
		Take:       strings.EqualFold(wire.Action, "TAKE"),
		Confidence: decimal.NewFromFloat(wire.Confidence),
		Reasoning:  wire.Reasoning,
	}
	if len(wire.ThresholdAdjustment) > 0 {
		dec.ThresholdAdjustments = make(map[string]decimal.Decimal, len(wire.ThresholdAdjustment))
		for k, v := range wire.ThresholdAdjustment {
			dec.ThresholdAdjustments[k] = decimal.NewFromFloat(v)
		}
	}
	if wire.Plan != nil {
		plan := &flowtypes.TradePlan{
			Direction:  directionFromOrderType(wire.Plan.OrderType),
			Entry:      a.priceToTicks(wire.Plan.EntryPrice),
			StopLoss:   a.priceToTicks(wire.Plan.StopLossPrice),
			TakeProfit: a.priceToTicks(wire.Plan.TakeProfitPrice),
			Execution:  executionFromWire(wire.Plan.ExecutionType),
			Reasoning:  wire.Plan.ExecutionReasoning,
		}
		if wire.Plan.TriggerPrice != nil {
			trigger := a.priceToTicks(*wire.Plan.TriggerPrice)
			plan.Trigger = &trigger
		}
		dec.Plan = plan
	}
	return dec, nil
}

func (a *Adapter) priceToTicks(price float64) int64 {
	return decimal.NewFromFloat(price).Div(a.instrument.TickSize).Round(0).IntPart()
}

func directionFromOrderType(orderType string) flowtypes.Direction {
	if strings.EqualFold(orderType, "SELL") {
		return flowtypes.DirectionShort
	}
	return flowtypes.DirectionLong
}

func executionFromWire(executionType string) flowtypes.ExecutionType {
	switch strings.ToUpper(executionType) {
	case "STOP_MARKET":
		return flowtypes.ExecStopMarket
	case "LIMIT":
		return flowtypes.ExecLimit
	default:
		return flowtypes.ExecMarket
	}
}
