// Package diagnostics provides the hot-path failure counters and
// Prometheus metrics described in spec §7: every failure in the event
// loop reduces to drop + counter + continue. Nothing here returns an
// error; Counters is read by the diagnostics HTTP surface.
package diagnostics

import "sync/atomic"

// Counters tracks every error-taxonomy reason from spec §7, plus the
// gate's rejection-reason buckets from §4.6.
type Counters struct {
	MalformedNegativeSize   atomic.Int64
	MalformedOffTickGrid    atomic.Int64
	MalformedUnknownOrderID atomic.Int64
	IndicatorWarmup         atomic.Int64
	ScorerClamped           atomic.Int64
	AdvisorTransportFailure atomic.Int64
	AdvisorTimeout          atomic.Int64
	AdvisorReplyParseFailed atomic.Int64
	MemoryCollaboratorFailed atomic.Int64
	WallClockRegression     atomic.Int64

	GateRejectedBelowThreshold atomic.Int64
	GateRejectedCooldown       atomic.Int64
	GateRejectedGlobalSpacing  atomic.Int64
	GateAdmitted               atomic.Int64

	IcebergFired    atomic.Int64
	SpoofFired      atomic.Int64
	AbsorptionFired atomic.Int64
}

// Snapshot is a point-in-time, JSON-friendly copy of Counters.
type Snapshot struct {
	MalformedNegativeSize   int64 `json:"malformedNegativeSize"`
	MalformedOffTickGrid    int64 `json:"malformedOffTickGrid"`
	MalformedUnknownOrderID int64 `json:"malformedUnknownOrderId"`
	IndicatorWarmup         int64 `json:"indicatorWarmup"`
	ScorerClamped           int64 `json:"scorerClamped"`
	AdvisorTransportFailure int64 `json:"advisorTransportFailure"`
	AdvisorTimeout          int64 `json:"advisorTimeout"`
	AdvisorReplyParseFailed int64 `json:"advisorReplyParseFailed"`
	MemoryCollaboratorFailed int64 `json:"memoryCollaboratorFailed"`
	WallClockRegression     int64 `json:"wallClockRegression"`

	GateRejectedBelowThreshold int64 `json:"gateRejectedBelowThreshold"`
	GateRejectedCooldown       int64 `json:"gateRejectedCooldown"`
	GateRejectedGlobalSpacing  int64 `json:"gateRejectedGlobalSpacing"`
	GateAdmitted               int64 `json:"gateAdmitted"`

	IcebergFired    int64 `json:"icebergFired"`
	SpoofFired      int64 `json:"spoofFired"`
	AbsorptionFired int64 `json:"absorptionFired"`
}

// Snapshot returns a consistent-enough copy for the /counters endpoint.
func (c *Counters) Snapshot() Snapshot {
	return Snapshot{
		MalformedNegativeSize:    c.MalformedNegativeSize.Load(),
		MalformedOffTickGrid:     c.MalformedOffTickGrid.Load(),
		MalformedUnknownOrderID:  c.MalformedUnknownOrderID.Load(),
		IndicatorWarmup:          c.IndicatorWarmup.Load(),
		ScorerClamped:            c.ScorerClamped.Load(),
		AdvisorTransportFailure:  c.AdvisorTransportFailure.Load(),
		AdvisorTimeout:           c.AdvisorTimeout.Load(),
		AdvisorReplyParseFailed:  c.AdvisorReplyParseFailed.Load(),
		MemoryCollaboratorFailed: c.MemoryCollaboratorFailed.Load(),
		WallClockRegression:      c.WallClockRegression.Load(),

		GateRejectedBelowThreshold: c.GateRejectedBelowThreshold.Load(),
		GateRejectedCooldown:       c.GateRejectedCooldown.Load(),
		GateRejectedGlobalSpacing:  c.GateRejectedGlobalSpacing.Load(),
		GateAdmitted:               c.GateAdmitted.Load(),

		IcebergFired:    c.IcebergFired.Load(),
		SpoofFired:      c.SpoofFired.Load(),
		AbsorptionFired: c.AbsorptionFired.Load(),
	}
}

// New returns a zeroed Counters.
func New() *Counters { return &Counters{} }
