package journey

import (
	"math"
	"time"

	"github.com/Kilat-Mobility/service-journey/internal/domain/geo"
)

// LegPlan is a leg that has been routed but not yet started.
type LegPlan struct {
	Start            geo.Point `json:"start"`
	End              geo.Point `json:"end"`
	Route            Route     `json:"-"`
	TotalDurationSec int       `json:"total_duration_sec"`
}

// Leg is one continuous simulated movement along a fixed route.
type Leg struct {
	Kind             LegKind
	Start            geo.Point
	End              geo.Point
	Route            Route
	TotalDurationSec int
	Checkpoint       Checkpoint
	StartedAt        time.Time
}

// StartLeg turns a plan into a running leg with a fresh clock.
func StartLeg(kind LegKind, plan LegPlan, now time.Time, multiplier float64) Leg {
	return Leg{
		Kind:             kind,
		Start:            plan.Start,
		End:              plan.End,
		Route:            plan.Route,
		TotalDurationSec: plan.TotalDurationSec,
		Checkpoint:       NewCheckpoint(now, multiplier),
		StartedAt:        now,
	}
}

// SimulatedSeconds is the simulated time elapsed on the leg at now.
func (l Leg) SimulatedSeconds(now time.Time) float64 {
	return l.Checkpoint.SimulatedSeconds(now)
}

// Progress is the uncapped fraction of the leg's duration consumed at now.
// Zero-length legs are treated as one second long.
func (l Leg) Progress(now time.Time) float64 {
	return l.SimulatedSeconds(now) / math.Max(1, float64(l.TotalDurationSec))
}

// ProgressPercent is Progress scaled to [0, 100].
func (l Leg) ProgressPercent(now time.Time) float64 {
	return math.Min(100, l.Progress(now)*100)
}

// ETASeconds is the remaining wall-clock time at the current effective speed.
func (l Leg) ETASeconds(now time.Time) float64 {
	remaining := math.Max(0, float64(l.TotalDurationSec)-l.SimulatedSeconds(now))
	return remaining / l.Checkpoint.EffectiveSpeed()
}

// Position interpolates the leg's route at now.
func (l Leg) Position(now time.Time) geo.Point {
	return Interpolate(l.Route, l.Progress(now), l.Start, l.End)
}

// OvertimeSeconds is the simulated time spent past the end of the leg.
func (l Leg) OvertimeSeconds(now time.Time) float64 {
	return l.SimulatedSeconds(now) - float64(l.TotalDurationSec)
}

func straightLineKm(l Leg) float64 {
	return geo.HaversineKm(l.Start, l.End)
}
