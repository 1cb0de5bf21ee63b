package phys

import (
	"sync"

	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/milk9111/rigidphys/common"
	"github.com/milk9111/rigidphys/solver"
)

// EntityFlag is an auxiliary per-entity bit.
type EntityFlag uint32

const (
	EntityFlag1 EntityFlag = 1 << iota
	// HasLinkedAccessors is reported while sensors are linked to the entity.
	HasLinkedAccessors
	EntityFlag4
	EntityFlag8
	EntityFlag10
	EntityFlag20
	EntityFlag40
	EntityFlag80
	EntityFlag100
	EntityFlag200
)

// EntityAccessor is the motion accessor of dynamics-capable bodies.
type EntityAccessor struct {
	motionCore

	flags EntityFlag

	waterBuoyancyScale     float32
	waterFlowEffectiveRate float32
	magneMassScalingFactor float32
	frictionScale          float32
	restitutionScale       float32
	maxImpulse             float32
	colImpulseScale        float32

	shapeUpdates      int
	shapeReplacements int

	// linkMu guards linked. Sensors register here while holding only their
	// own body lock.
	linkMu sync.Mutex
	linked []*RigidBody
}

func newEntityAccessor(body *RigidBody) *EntityAccessor {
	a := &EntityAccessor{}
	a.bind(body)
	a.applyScales(DefaultInstanceParam())
	a.flags = EntityFlag4 | EntityFlag10 | EntityFlag20
	return a
}

func (a *EntityAccessor) Kind() AccessorKind { return AccessorEntity }

func (a *EntityAccessor) applyScales(p InstanceParam) {
	a.waterBuoyancyScale = p.WaterBuoyancyScale
	a.waterFlowEffectiveRate = p.WaterFlowEffectiveRate
	a.magneMassScalingFactor = p.MagneMassScalingFactor
	a.frictionScale = p.FrictionScale
	a.restitutionScale = common.Clamp(p.RestitutionScale, 0, 1)
	a.maxImpulse = p.MaxImpulse
	a.colImpulseScale = math32.Max(p.ColImpulseScale, 0)
}

func (a *EntityAccessor) init(p InstanceParam) {
	a.applyScales(p)
	a.write(DirtyMass|DirtyInertiaLocal|DirtyCenterOfMassLocal|DirtyDampingOrGravityFactor|DirtyMaxVelOrTimeFactor,
		func(m *solver.Motion) {
			m.Mass = p.clampedMass()
			m.InertiaLocal = p.clampedInertia()
			m.CenterOfMassLocal = p.CenterOfMass
			m.LinearDamping = p.LinearDamping
			m.AngularDamping = p.AngularDamping
			m.GravityFactor = p.GravityFactor
			m.State.TimeFactor = p.TimeFactor
			m.State.MaxLinearVelocity = p.MaxLinearVelocity
			m.State.MaxAngularVelocity = p.MaxAngularVelocity
		})
}

// SetPosition moves the entity; with propagate, linked sensors follow.
func (a *EntityAccessor) SetPosition(pos mgl32.Vec3, propagate bool) {
	delta := pos.Sub(a.state.Position)
	a.setPosition(pos)
	if propagate {
		a.propagate(func(s *SensorAccessor) {
			s.setPosition(s.state.Position.Add(delta))
		})
	}
}

func (a *EntityAccessor) SetTransform(mtx mgl32.Mat4, propagate bool) {
	a.setTransform(mtx)
	if propagate {
		a.propagate(func(s *SensorAccessor) { s.setTransform(mtx) })
	}
}

// propagate applies fn to the accessors of linked sensors. Linked bodies are
// only touched while their own lock can be taken without blocking.
func (a *EntityAccessor) propagate(fn func(s *SensorAccessor)) {
	for _, other := range a.LinkedSensors() {
		if other == nil || other.sensor == nil || !other.mu.TryLock() {
			continue
		}
		fn(other.sensor)
		other.mu.Unlock()
	}
}

func (a *EntityAccessor) Freeze(freeze, preserveVelocities, preserveMaxImpulse bool) {
	a.freeze(freeze, preserveVelocities, &a.maxImpulse, preserveMaxImpulse)
}

func (a *EntityAccessor) onMotionTypeSettled() {
	a.body.setMotionFlagLocked(DirtyMiscState)
}

func (a *EntityAccessor) Mass() float32 { return a.state.Mass }

func (a *EntityAccessor) MassInv() float32 {
	if a.state.Type != solver.MotionDynamic || a.state.Mass <= 0 {
		return 0
	}
	return 1 / a.state.Mass
}

func (a *EntityAccessor) SetMass(mass float32) {
	a.write(DirtyMass, func(m *solver.Motion) { m.Mass = math32.Max(mass, MinInertia) })
}

func (a *EntityAccessor) InertiaLocal() mgl32.Vec3 { return a.state.InertiaLocal }

func (a *EntityAccessor) SetInertiaLocal(inertia mgl32.Vec3) {
	a.write(DirtyInertiaLocal, func(m *solver.Motion) { m.InertiaLocal = common.MaxVec(inertia, MinInertia) })
}

func (a *EntityAccessor) LinearDamping() float32  { return a.state.LinearDamping }
func (a *EntityAccessor) AngularDamping() float32 { return a.state.AngularDamping }
func (a *EntityAccessor) GravityFactor() float32  { return a.state.GravityFactor }

func (a *EntityAccessor) SetLinearDamping(v float32) {
	a.write(DirtyDampingOrGravityFactor, func(m *solver.Motion) { m.LinearDamping = v })
}

func (a *EntityAccessor) SetAngularDamping(v float32) {
	a.write(DirtyDampingOrGravityFactor, func(m *solver.Motion) { m.AngularDamping = v })
}

func (a *EntityAccessor) SetGravityFactor(v float32) {
	a.write(DirtyDampingOrGravityFactor, func(m *solver.Motion) { m.GravityFactor = v })
}

// Impulses go straight to the solver body when it is not locked for the
// step. Otherwise they change the logical velocities and mark them dirty.
func (a *EntityAccessor) ApplyLinearImpulse(impulse mgl32.Vec3) {
	inv := a.MassInv()
	if inv == 0 {
		return
	}
	if !a.body.isLockedForStep() {
		a.body.solverBody.ApplyLinearImpulse(impulse)
		a.pull()
		return
	}
	v := a.state.LinearVelocity.Add(impulse.Mul(inv))
	a.write(DirtyLinearVelocity, func(m *solver.Motion) { m.LinearVelocity = v })
}

func (a *EntityAccessor) ApplyAngularImpulse(impulse mgl32.Vec3) {
	if a.MassInv() == 0 {
		return
	}
	if !a.body.isLockedForStep() {
		a.body.solverBody.ApplyAngularImpulse(impulse)
		a.pull()
		return
	}
	inertia := common.MaxVec(a.state.InertiaLocal, MinInertia)
	rot := a.state.Rotation
	local := rot.Inverse().Rotate(impulse)
	delta := rot.Rotate(mgl32.Vec3{local[0] / inertia[0], local[1] / inertia[1], local[2] / inertia[2]})
	w := a.state.AngularVelocity.Add(delta)
	a.write(DirtyAngularVelocity, func(m *solver.Motion) { m.AngularVelocity = w })
}

func (a *EntityAccessor) ApplyPointImpulse(impulse, point mgl32.Vec3) {
	if a.MassInv() == 0 {
		return
	}
	if !a.body.isLockedForStep() {
		a.body.solverBody.ApplyPointImpulse(impulse, point)
		a.pull()
		return
	}
	arm := point.Sub(a.CenterOfMassInWorld())
	a.ApplyLinearImpulse(impulse)
	a.ApplyAngularImpulse(arm.Cross(impulse))
}

func (a *EntityAccessor) WaterBuoyancyScale() float32     { return a.waterBuoyancyScale }
func (a *EntityAccessor) WaterFlowEffectiveRate() float32 { return a.waterFlowEffectiveRate }
func (a *EntityAccessor) MagneMassScalingFactor() float32 { return a.magneMassScalingFactor }
func (a *EntityAccessor) FrictionScale() float32          { return a.frictionScale }
func (a *EntityAccessor) RestitutionScale() float32       { return a.restitutionScale }
func (a *EntityAccessor) MaxImpulse() float32             { return a.maxImpulse }
func (a *EntityAccessor) ColImpulseScale() float32        { return a.colImpulseScale }

func (a *EntityAccessor) SetWaterBuoyancyScale(v float32)     { a.waterBuoyancyScale = v }
func (a *EntityAccessor) SetWaterFlowEffectiveRate(v float32) { a.waterFlowEffectiveRate = v }
func (a *EntityAccessor) SetMagneMassScalingFactor(v float32) { a.magneMassScalingFactor = v }
func (a *EntityAccessor) SetFrictionScale(v float32)          { a.frictionScale = v }
func (a *EntityAccessor) SetRestitutionScale(v float32)       { a.restitutionScale = v }
func (a *EntityAccessor) SetMaxImpulse(v float32)             { a.maxImpulse = v }
func (a *EntityAccessor) SetColImpulseScale(v float32)        { a.colImpulseScale = v }

// HasFlag reports an auxiliary flag. HasLinkedAccessors is derived from the
// linked sensor registry.
func (a *EntityAccessor) HasFlag(f EntityFlag) bool {
	if f == HasLinkedAccessors {
		a.linkMu.Lock()
		defer a.linkMu.Unlock()
		return len(a.linked) > 0
	}
	return a.flags&f != 0
}

func (a *EntityAccessor) ChangeFlag(f EntityFlag, on bool) {
	if on {
		a.flags |= f
	} else {
		a.flags &^= f
	}
}

// ShapeUpdates counts in-place shape refreshes.
func (a *EntityAccessor) ShapeUpdates() int { return a.shapeUpdates }

// ShapeReplacements counts shape swaps.
func (a *EntityAccessor) ShapeReplacements() int { return a.shapeReplacements }

func (a *EntityAccessor) registerLinked(sensor *RigidBody) {
	a.linkMu.Lock()
	defer a.linkMu.Unlock()
	for _, b := range a.linked {
		if b == sensor {
			return
		}
	}
	a.linked = append(a.linked, sensor)
}

func (a *EntityAccessor) deregisterLinked(sensor *RigidBody) {
	a.linkMu.Lock()
	defer a.linkMu.Unlock()
	for i, b := range a.linked {
		if b == sensor {
			a.linked = append(a.linked[:i], a.linked[i+1:]...)
			return
		}
	}
}

// deregisterAll forgets every linked sensor and returns them.
func (a *EntityAccessor) deregisterAll() []*RigidBody {
	a.linkMu.Lock()
	defer a.linkMu.Unlock()
	out := a.linked
	a.linked = nil
	return out
}

// LinkedSensors returns the sensors linked to this entity.
func (a *EntityAccessor) LinkedSensors() []*RigidBody {
	a.linkMu.Lock()
	defer a.linkMu.Unlock()
	return append([]*RigidBody(nil), a.linked...)
}
