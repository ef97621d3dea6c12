package detectors

import (
	"time"

	"github.com/atlas-desktop/trading-backend/internal/registry"
	"github.com/atlas-desktop/trading-backend/pkg/flowtypes"
)

// Spoof classifies a just-removed order as spoofing if it lived less
// than spoofMaxAge, was at least spoofMinSize, and was never partially
// consumed by an opposing trade (spec §4.3.2). All the needed facts are
// already computed by the registry's Cancel/Replace-to-zero path; this
// detector only applies the eligibility rule and constructs the event.
type Spoof struct {
	maxAge  time.Duration
	minSize int64
}

// NewSpoof constructs the spoof detector from configuration.
func NewSpoof(maxAge time.Duration, minSize int64) *Spoof {
	return &Spoof{maxAge: maxAge, minSize: minSize}
}

// OnRemoval evaluates a registry.CancelResult produced by a cancel or a
// replace-to-zero.
func (d *Spoof) OnRemoval(key flowtypes.LevelKey, cr registry.CancelResult, ts time.Time) (flowtypes.DetectionEvent, bool) {
	if !cr.Found || cr.WasConsumed {
		return flowtypes.DetectionEvent{}, false
	}
	if cr.Lifetime >= d.maxAge {
		return flowtypes.DetectionEvent{}, false
	}
	if cr.Size < d.minSize {
		return flowtypes.DetectionEvent{}, false
	}
	return flowtypes.NewSpoofEvent(key.Side, key.Price, cr.Size, cr.Lifetime, ts), true
}
