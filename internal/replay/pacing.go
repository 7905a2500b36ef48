package replay

import (
	"fmt"
	"time"
)

// PacingMode selects how dispatches are spaced
type PacingMode string

const (
	// PacingFast dispatches as soon as a slot is free
	PacingFast PacingMode = "fast"
	// PacingTimed reproduces the captured gaps, scaled by the multiplier
	PacingTimed PacingMode = "timed"
)

// DefaultMaxDelay caps a single timed gap when no ceiling is configured
const DefaultMaxDelay = 10 * time.Second

// Pacing is the dispatch timing policy
type Pacing struct {
	Mode       PacingMode
	Multiplier float64
	MaxDelay   time.Duration
}

// Validate checks the pacing settings
func (p Pacing) Validate() error {
	switch p.Mode {
	case PacingFast, "":
	case PacingTimed:
		if p.Multiplier <= 0 {
			return fmt.Errorf("speed multiplier must be positive, got %v", p.Multiplier)
		}
	default:
		return fmt.Errorf("unknown pacing mode %q", p.Mode)
	}
	if p.MaxDelay < 0 {
		return fmt.Errorf("max delay must not be negative")
	}
	return nil
}

// Gap returns the scaled delay between two capture timestamps, clamped
// to [0, MaxDelay]
func (p Pacing) Gap(prev, cur time.Time) time.Duration {
	if p.Mode != PacingTimed {
		return 0
	}
	gap := time.Duration(float64(cur.Sub(prev)) / p.Multiplier)
	if gap < 0 {
		gap = 0
	}
	ceiling := p.MaxDelay
	if ceiling == 0 {
		ceiling = DefaultMaxDelay
	}
	if gap > ceiling {
		gap = ceiling
	}
	return gap
}
