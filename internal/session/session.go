// Package session implements the wall-clock phase state machine (spec
// §4.7): PreMarket, OpeningRange, Morning, Lunch, Afternoon, Close,
// PostMarket, driven purely by comparisons against a pluggable schedule.
package session

import (
	"time"

	"github.com/atlas-desktop/trading-backend/pkg/flowtypes"
)

// Machine tracks the current phase and detects transitions on each
// tick/trade/BBO event.
type Machine struct {
	schedule flowtypes.PhaseSchedule
	current  flowtypes.Phase
	haveAny  bool
}

// New constructs a phase machine from a schedule.
func New(schedule flowtypes.PhaseSchedule) *Machine {
	return &Machine{schedule: schedule, current: flowtypes.PhasePreMarket}
}

// Current returns the active phase.
func (m *Machine) Current() flowtypes.Phase { return m.current }

// Advance evaluates the wall clock at ts and returns the resulting
// phase along with whether a transition into PreMarket just occurred
// (the only transition that resets session-scoped indicators, per
// §4.7).
func (m *Machine) Advance(ts time.Time) (flowtypes.Phase, bool) {
	next := m.classify(ts)
	enteredPreMarket := next == flowtypes.PhasePreMarket && (!m.haveAny || m.current != flowtypes.PhasePreMarket)
	m.current = next
	m.haveAny = true
	return next, enteredPreMarket
}

func (m *Machine) classify(ts time.Time) flowtypes.Phase {
	loc := m.schedule.Location
	if loc == nil {
		loc = time.UTC
	}
	local := ts.In(loc)
	tod := time.Duration(local.Hour())*time.Hour +
		time.Duration(local.Minute())*time.Minute +
		time.Duration(local.Second())*time.Second

	openingRangeEnd := m.schedule.MarketOpen + m.schedule.OpeningRangeDuration
	closeWindowStart := m.schedule.MarketClose - m.schedule.CloseWindowDuration

	switch {
	case tod < m.schedule.MarketOpen:
		return flowtypes.PhasePreMarket
	case tod < openingRangeEnd:
		return flowtypes.PhaseOpeningRange
	case tod >= m.schedule.LunchStart && tod < m.schedule.LunchEnd:
		return flowtypes.PhaseLunch
	case tod >= closeWindowStart && tod < m.schedule.MarketClose:
		return flowtypes.PhaseClose
	case tod >= m.schedule.MarketClose:
		return flowtypes.PhasePostMarket
	case tod < m.schedule.LunchStart:
		return flowtypes.PhaseMorning
	default:
		return flowtypes.PhaseAfternoon
	}
}
