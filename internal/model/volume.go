package model

import (
	"github.com/pwelter/hindcast/internal/core"
	"github.com/pwelter/hindcast/internal/indicator"
)

const (
	volumeLookback = 20

	// ConfirmMultiplier boosts ensemble confidence when volume backs the
	// predicted direction; ContradictMultiplier dampens it otherwise.
	ConfirmMultiplier    = 1.1
	ContradictMultiplier = 0.9
)

// Volume is not a directional voter. It scales ensemble confidence by
// whether recent volume confirms the predicted move.
type Volume struct {
	Lookback int
}

func NewVolume() *Volume {
	return &Volume{Lookback: volumeLookback}
}

func (v *Volume) Name() string { return "volume" }

// Multiplier returns the confidence multiplier for a predicted direction.
// Above-average volume on the decision bar confirms an up or down call;
// below-average contradicts it. A flat call or insufficient history is
// neutral.
func (v *Volume) Multiplier(history []core.PriceBar, dir core.Direction) float64 {
	lookback := v.Lookback
	if lookback <= 0 {
		lookback = volumeLookback
	}
	if dir == core.DirectionFlat || len(history) < lookback {
		return 1.0
	}

	volumes := core.Volumes(history[len(history)-lookback:])
	avg := indicator.SMA(volumes, lookback)
	if len(avg) == 0 || avg[0] <= 0 {
		return 1.0
	}

	last := volumes[len(volumes)-1]
	if last > avg[0] {
		return ConfirmMultiplier
	}
	if last < avg[0] {
		return ContradictMultiplier
	}
	return 1.0
}
