// Package cpsolver runs the solver port on a Chipmunk2D space. Bodies are
// simulated in the XY plane; the Z components of positions, velocities and
// rotations are carried along untouched so callers see a consistent 3D
// state.
package cpsolver

import (
	"sync"

	"github.com/jakecoffman/cp"
	"github.com/milk9111/rigidphys/common"
	"github.com/milk9111/rigidphys/solver"
	"github.com/rotisserie/eris"
)

// World owns one Chipmunk space.
type World struct {
	mu     sync.Mutex
	space  *cp.Space
	time   float64
	info   solver.SolverInfo
	bodies map[*Body]struct{}
	joints map[*cp.Constraint]any
}

// NewWorld creates an empty world with downward gravity along Y.
func NewWorld() *World {
	space := cp.NewSpace()
	space.Iterations = 20
	space.SetGravity(cp.Vector{X: 0, Y: float64(common.Gravity)})

	return &World{
		space:  space,
		bodies: make(map[*Body]struct{}),
		joints: make(map[*cp.Constraint]any),
	}
}

// Space returns the underlying Chipmunk space.
func (w *World) Space() *cp.Space {
	if w == nil {
		return nil
	}
	return w.space
}

func (w *World) CurrentTime() float32 {
	return float32(w.time)
}

func (w *World) SolverInfo() solver.SolverInfo {
	return w.info
}

func (w *World) Lock() {
	w.mu.Lock()
}

func (w *World) Unlock() {
	w.mu.Unlock()
}

// Step advances the space. The caller holds the world lock.
func (w *World) Step(dt float32) {
	if w == nil || w.space == nil || dt <= 0 {
		return
	}
	for b := range w.bodies {
		if !b.deactivation && b.body.GetType() != cp.BODY_STATIC {
			b.body.Activate()
		}
	}
	w.space.Step(float64(dt))
	w.time += float64(dt)

	w.info.DeactivationIntegrateCounter++
	if w.info.DeactivationIntegrateCounter%4 == 0 {
		w.info.DeactivationSelectFlags[0] ^= 1
	}
	if w.info.DeactivationIntegrateCounter%16 == 0 {
		w.info.DeactivationSelectFlags[1] ^= 1
	}

	for b := range w.bodies {
		b.pull(w.time, float64(dt))
	}
}

// AddBody inserts b and its shapes into the space. The caller holds the
// world lock.
func (w *World) AddBody(sb solver.Body) error {
	b, ok := sb.(*Body)
	if !ok || b == nil {
		return solver.ErrNilBody
	}
	if b.world != nil {
		return eris.Wrapf(solver.ErrAlreadyInWorld, "cpsolver: add %q", b.name)
	}
	w.space.AddBody(b.body)
	for _, shape := range b.shapes {
		w.space.AddShape(shape)
	}
	b.world = w
	w.bodies[b] = struct{}{}
	b.push()
	return nil
}

// RemoveBody takes b out of the space. The caller holds the world lock.
func (w *World) RemoveBody(sb solver.Body) error {
	b, ok := sb.(*Body)
	if !ok || b == nil {
		return solver.ErrNilBody
	}
	if b.world != w {
		return eris.Wrapf(solver.ErrDetachedBody, "cpsolver: remove %q", b.name)
	}
	b.pull(w.time, 0)
	var joints []*cp.Constraint
	b.body.EachConstraint(func(c *cp.Constraint) {
		joints = append(joints, c)
	})
	for _, c := range joints {
		w.space.RemoveConstraint(c)
		delete(w.joints, c)
	}
	for _, shape := range b.shapes {
		w.space.RemoveShape(shape)
	}
	w.space.RemoveBody(b.body)
	delete(w.bodies, b)
	b.world = nil
	return nil
}

// AddPinJoint connects a and b with a pin joint tagged with userData. The
// caller holds the world lock.
func (w *World) AddPinJoint(a, b *Body, userData any) *cp.Constraint {
	joint := cp.NewPinJoint(a.body, b.body, cp.Vector{}, cp.Vector{})
	w.space.AddConstraint(joint)
	w.joints[joint] = userData
	return joint
}
