package scheduler

import (
	"math"

	"github.com/specialistvlad/sweptgrid/internal/runerr"
)

// Mode selects the decomposition.
type Mode string

const (
	Swept    Mode = "swept"
	Standard Mode = "standard"
)

// Config holds the solver settings shared by every node.
type Config struct {
	Mode      Mode
	BlockSize int
	Ops       int
	TSO       int
	T0        float64
	Tf        float64
	Dt        float64
	Cols      int
	Vars      int
	Periodic  bool
}

// stepsEpsilon absorbs rounding in (tf-t0)/dt so that exact multiples do not
// gain an extra step.
const stepsEpsilon = 1e-9

// Steps returns the number of full time steps needed to reach Tf.
func (c Config) Steps() (int, error) {
	if !(c.Dt > 0) || math.IsInf(c.Dt, 0) {
		return 0, runerr.New(runerr.Configuration, "scheduler", "dt must be positive, got %v", c.Dt)
	}
	if !(c.Tf > c.T0) {
		return 0, runerr.New(runerr.Configuration, "scheduler", "tf %v must be after t0 %v", c.Tf, c.T0)
	}
	return int(math.Ceil((c.Tf-c.T0)/c.Dt - stepsEpsilon)), nil
}

// Plan is how many levels a run computes.
type Plan struct {
	// Steps is the number of full steps requested.
	Steps int
	// Levels is Steps*TSO, the number of levels requested.
	Levels int
	// MPSS is the sub-steps per phase; zero in standard mode.
	MPSS int
	// MGST is the number of swept loop iterations.
	MGST int
	// Produced is the number of levels actually computed.
	Produced int
}

// SweptPlan rounds the requested levels up to whole phases.
func SweptPlan(steps, tso, mpss int) Plan {
	levels := steps * tso
	mgst := max(0, (levels+mpss-1)/mpss-1)
	return Plan{Steps: steps, Levels: levels, MPSS: mpss, MGST: mgst, Produced: (mgst + 1) * mpss}
}

// StandardPlan computes exactly the requested levels.
func StandardPlan(steps, tso int) Plan {
	return Plan{Steps: steps, Levels: steps * tso, Produced: steps * tso}
}

func (c Config) validate() error {
	const op = "scheduler"
	switch c.Mode {
	case Swept:
		if !c.Periodic {
			return runerr.New(runerr.Configuration, op, "the swept decomposition needs a periodic domain; use the standard mode for open boundaries")
		}
	case Standard:
	default:
		return runerr.New(runerr.Configuration, op, "unknown mode %q", c.Mode)
	}
	if c.BlockSize <= 0 {
		return runerr.New(runerr.Configuration, op, "block size must be positive, got %d", c.BlockSize)
	}
	if c.Ops < 1 {
		return runerr.New(runerr.Configuration, op, "ops must be at least 1, got %d", c.Ops)
	}
	if c.TSO < 1 {
		return runerr.New(runerr.Configuration, op, "tso must be at least 1, got %d", c.TSO)
	}
	if c.Vars < 1 {
		return runerr.New(runerr.Configuration, op, "at least one variable is required, got %d", c.Vars)
	}
	if c.Cols <= 0 || c.Cols%c.BlockSize != 0 {
		return runerr.New(runerr.Configuration, op, "cols %d are not divisible by block size %d", c.Cols, c.BlockSize)
	}
	return nil
}
