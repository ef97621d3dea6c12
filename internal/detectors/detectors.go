// Package detectors implements the three pattern detectors — Iceberg,
// Spoof, Absorption — that the router consults after every MBO or
// trade event, in that fixed order (spec §4.1, §4.3).
package detectors

// Battery bundles all three detectors for the router.
type Battery struct {
	Iceberg    *Iceberg
	Spoof      *Spoof
	Absorption *Absorption
}

// New constructs the detector battery. Callers assemble each detector
// individually from flowtypes.Config and hand them here.
func New(iceberg *Iceberg, spoof *Spoof, absorption *Absorption) *Battery {
	return &Battery{Iceberg: iceberg, Spoof: spoof, Absorption: absorption}
}
