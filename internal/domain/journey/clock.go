package journey

import (
	"math"
	"time"
)

const (
	// BaseSpeedFactor is the real-time to simulated-time ratio at multiplier 1.
	BaseSpeedFactor = 1.0

	// MinSpeedMultiplier and MaxSpeedMultiplier bound every stored multiplier.
	MinSpeedMultiplier = 1.0
	MaxSpeedMultiplier = 50.0
)

// Checkpoint is the minimal persisted clock state of a journey leg. Simulated elapsed
// time at any later instant is reconstructed from it without a background ticker.
type Checkpoint struct {
	AccumulatedSeconds float64   `json:"accumulated_seconds"`
	ReferenceTime      time.Time `json:"reference_time"`
	SpeedMultiplier    float64   `json:"speed_multiplier"`
}

// NewCheckpoint starts a clock at zero simulated seconds.
func NewCheckpoint(now time.Time, multiplier float64) Checkpoint {
	return Checkpoint{
		AccumulatedSeconds: 0,
		ReferenceTime:      now,
		SpeedMultiplier:    ClampSpeed(multiplier),
	}
}

// ClampSpeed bounds a multiplier to [MinSpeedMultiplier, MaxSpeedMultiplier].
// Out-of-range values are clamped silently, NaN becomes the minimum.
func ClampSpeed(m float64) float64 {
	switch {
	case math.IsNaN(m), m < MinSpeedMultiplier:
		return MinSpeedMultiplier
	case m > MaxSpeedMultiplier:
		return MaxSpeedMultiplier
	default:
		return m
	}
}

// EffectiveSpeed is BaseSpeedFactor × multiplier.
func (c Checkpoint) EffectiveSpeed() float64 {
	return BaseSpeedFactor * ClampSpeed(c.SpeedMultiplier)
}

// SimulatedSeconds returns the simulated time elapsed on the leg at now.
// Wall time before ReferenceTime (clock skew) contributes nothing.
func (c Checkpoint) SimulatedSeconds(now time.Time) float64 {
	elapsed := now.Sub(c.ReferenceTime).Seconds()
	if elapsed < 0 {
		elapsed = 0
	}
	return c.AccumulatedSeconds + elapsed*c.EffectiveSpeed()
}

// Rebase folds the time elapsed under the current multiplier into AccumulatedSeconds,
// moves ReferenceTime to now and only then installs the new multiplier. Any change of
// multiplier must go through Rebase or elapsed time is lost or double counted.
func (c Checkpoint) Rebase(now time.Time, newMultiplier float64) Checkpoint {
	accumulated := c.SimulatedSeconds(now)
	if accumulated < c.AccumulatedSeconds {
		accumulated = c.AccumulatedSeconds
	}
	ref := now
	if now.Before(c.ReferenceTime) {
		ref = c.ReferenceTime
	}
	return Checkpoint{
		AccumulatedSeconds: accumulated,
		ReferenceTime:      ref,
		SpeedMultiplier:    ClampSpeed(newMultiplier),
	}
}
