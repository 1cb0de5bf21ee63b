// Package system runs the per-step pipeline of a phys.Context: time factor
// refresh, request draining and the solver step.
package system

import (
	"github.com/milk9111/rigidphys/phys"
	"github.com/rotisserie/eris"
)

type System interface {
	Update(ctx *phys.Context, dt float32) error
}

// Scheduler runs its systems in the order they were added. An error stops
// the remaining systems of that update.
type Scheduler struct {
	systems []System
}

func NewScheduler(systems ...System) *Scheduler {
	copied := append([]System(nil), systems...)
	return &Scheduler{systems: copied}
}

// NewDefaultScheduler returns the standard pipeline.
func NewDefaultScheduler() *Scheduler {
	return NewScheduler(&TimeFactorSystem{}, &RequestSystem{}, &StepSystem{})
}

func (s *Scheduler) Add(system System) {
	if system == nil {
		return
	}
	s.systems = append(s.systems, system)
}

func (s *Scheduler) Update(ctx *phys.Context, dt float32) error {
	if ctx == nil {
		return phys.ErrNilContext
	}
	for i, system := range s.systems {
		if err := system.Update(ctx, dt); err != nil {
			return eris.Wrapf(err, "system: %T (%d)", system, i)
		}
	}
	return nil
}

func (s *Scheduler) Systems() []System {
	systems := make([]System, 0, len(s.systems))
	return append(systems, s.systems...)
}
