package system

import (
	"github.com/milk9111/rigidphys/phys"
	"github.com/milk9111/rigidphys/phys/filter"
	"golang.org/x/sync/errgroup"
)

var layerTypes = [...]filter.LayerType{filter.LayerTypeEntity, filter.LayerTypeSensor}

// TimeFactorSystem asks every body for a step update with the current
// system time factor.
type TimeFactorSystem struct{}

func (s *TimeFactorSystem) Update(ctx *phys.Context, _ float32) error {
	for _, body := range ctx.Bodies() {
		body.RequestStepUpdate()
	}
	return nil
}

// RequestSystem drains the entity and sensor request queues concurrently.
type RequestSystem struct {
	// Processed holds the number of bodies drained per layer type by the
	// last update.
	Processed [2]int
}

func (s *RequestSystem) Update(ctx *phys.Context, _ float32) error {
	g := new(errgroup.Group)
	for i, lt := range layerTypes {
		g.Go(func() error {
			s.Processed[i] = ctx.ProcessRequests(lt)
			return nil
		})
	}
	return g.Wait()
}

// StepSystem advances every world by dt, or by the configured step delta
// when dt is not positive, and refreshes the bodies afterwards. Nothing
// happens while the context is paused.
type StepSystem struct {
	Steps int
}

func (s *StepSystem) Update(ctx *phys.Context, dt float32) error {
	if ctx.IsPaused() {
		return nil
	}
	if dt <= 0 {
		dt = ctx.StepDelta()
	}
	stepped := false
	for _, lt := range layerTypes {
		w := ctx.World(lt)
		if w == nil {
			continue
		}
		ctx.LockWorld(lt)
		w.Step(dt)
		ctx.UnlockWorld(lt)
		stepped = true
	}
	if !stepped {
		return phys.ErrNoWorld
	}
	for _, body := range ctx.Bodies() {
		if body.IsAddedToWorld() {
			body.SyncFromSolver()
		}
	}
	s.Steps++
	return nil
}
