package phys

import (
	"github.com/go-gl/mathgl/mgl32"
	"github.com/milk9111/rigidphys/common"
	"github.com/milk9111/rigidphys/solver"
)

// AccessorKind tags which variant a MotionAccessor is.
type AccessorKind int

const (
	AccessorEntity AccessorKind = iota
	AccessorSensor
)

func (k AccessorKind) String() string {
	if k == AccessorSensor {
		return "sensor"
	}
	return "entity"
}

// MotionAccessor maps the logical motion state of a body onto its solver
// motion. While the body is locked for the step, writes only update the
// logical state and mark dirty bits; they reach the solver when the body's
// pending updates are applied.
//
// All methods expect the body lock to be held.
type MotionAccessor interface {
	Kind() AccessorKind

	Position() mgl32.Vec3
	Rotation() mgl32.Quat
	Transform() mgl32.Mat4
	SetPosition(pos mgl32.Vec3, propagate bool)
	SetTransform(m mgl32.Mat4, propagate bool)

	LinearVelocity() mgl32.Vec3
	AngularVelocity() mgl32.Vec3
	SetLinearVelocity(v mgl32.Vec3, eps float32) bool
	SetAngularVelocity(v mgl32.Vec3, eps float32) bool

	Freeze(freeze, preserveVelocities, preserveMaxImpulse bool)
	ResetFrozenState()

	CenterOfMassInLocal() mgl32.Vec3
	CenterOfMassInWorld() mgl32.Vec3
	SetCenterOfMassInLocal(c mgl32.Vec3)

	MaxLinearVelocity() float32
	MaxAngularVelocity() float32
	SetMaxLinearVelocity(v float32)
	SetMaxAngularVelocity(v float32)

	TimeFactor() float32
	SetTimeFactor(f float32)

	init(p InstanceParam)
	motionType() solver.MotionType
	snapshot() solver.Motion
	flush(dirty MotionFlag)
	pull()
	onMotionTypeSettled()
}

// frozenState is what a freeze saved so that unfreezing can restore it.
type frozenState struct {
	active          bool
	linearVelocity  mgl32.Vec3
	angularVelocity mgl32.Vec3
	timeFactor      float32
	maxImpulse      float32
	keepVelocities  bool
	keepMaxImpulse  bool
}

// motionCore is the state shared by both accessor variants.
type motionCore struct {
	body   *RigidBody
	state  solver.Motion
	frozen frozenState
}

func (c *motionCore) bind(body *RigidBody) {
	c.body = body
	c.state = body.solverBody.Motion()
}

// write applies fn to the logical state. Locked bodies record flag and wait
// for the drain; others write through to the solver at once.
func (c *motionCore) write(flag MotionFlag, fn func(m *solver.Motion)) {
	fn(&c.state)
	b := c.body
	if b.isLockedForStep() {
		b.setMotionFlagLocked(flag)
		return
	}
	m := b.solverBody.Motion()
	fn(&m)
	b.solverBody.SetMotion(m)
}

// flush pushes the fields selected by dirty into the solver. Other fields
// that are still dirty keep their logical values.
func (c *motionCore) flush(dirty MotionFlag) {
	m := c.body.solverBody.Motion()
	overlay(&m, c.state, dirty)
	c.body.solverBody.SetMotion(m)
	c.pull()
}

// pull refreshes the logical state from the solver, keeping dirty fields.
func (c *motionCore) pull() {
	m := c.body.solverBody.Motion()
	overlay(&m, c.state, MotionFlag(c.body.motionFlags.Raw())&dirtyFlags)
	c.state = m
}

// overlay copies the fields of src selected by dirty into dst.
func overlay(dst *solver.Motion, src solver.Motion, dirty MotionFlag) {
	if dirty&DirtyTransform != 0 {
		dst.Position = src.Position
		dst.Rotation = src.Rotation
	}
	if dirty&DirtyLinearVelocity != 0 {
		dst.LinearVelocity = src.LinearVelocity
	}
	if dirty&DirtyAngularVelocity != 0 {
		dst.AngularVelocity = src.AngularVelocity
	}
	if dirty&DirtyMaxVelOrTimeFactor != 0 {
		dst.State.MaxLinearVelocity = src.State.MaxLinearVelocity
		dst.State.MaxAngularVelocity = src.State.MaxAngularVelocity
		dst.State.TimeFactor = src.State.TimeFactor
	}
	if dirty&DirtyMass != 0 {
		dst.Mass = src.Mass
	}
	if dirty&DirtyCenterOfMassLocal != 0 {
		dst.CenterOfMassLocal = src.CenterOfMassLocal
	}
	if dirty&DirtyInertiaLocal != 0 {
		dst.InertiaLocal = src.InertiaLocal
	}
	if dirty&DirtyDampingOrGravityFactor != 0 {
		dst.LinearDamping = src.LinearDamping
		dst.AngularDamping = src.AngularDamping
		dst.GravityFactor = src.GravityFactor
	}
}

func (c *motionCore) motionType() solver.MotionType { return c.state.Type }
func (c *motionCore) snapshot() solver.Motion       { return c.state }

func (c *motionCore) Position() mgl32.Vec3 { return c.state.Position }
func (c *motionCore) Rotation() mgl32.Quat { return c.state.Rotation }

func (c *motionCore) Transform() mgl32.Mat4 {
	return common.TransformFrom(c.state.Position, c.state.Rotation)
}

func (c *motionCore) setPosition(pos mgl32.Vec3) {
	c.write(DirtyTransform, func(m *solver.Motion) { m.Position = pos })
}

func (c *motionCore) setTransform(mtx mgl32.Mat4) {
	pos, rot := common.Decompose(mtx)
	c.write(DirtyTransform, func(m *solver.Motion) {
		m.Position = pos
		m.Rotation = rot
	})
}

func (c *motionCore) LinearVelocity() mgl32.Vec3  { return c.state.LinearVelocity }
func (c *motionCore) AngularVelocity() mgl32.Vec3 { return c.state.AngularVelocity }

// SetLinearVelocity returns false when v is within eps of the current value.
func (c *motionCore) SetLinearVelocity(v mgl32.Vec3, eps float32) bool {
	if common.VecEqualsEpsilon(c.state.LinearVelocity, v, eps) {
		return false
	}
	c.write(DirtyLinearVelocity, func(m *solver.Motion) { m.LinearVelocity = v })
	return true
}

func (c *motionCore) SetAngularVelocity(v mgl32.Vec3, eps float32) bool {
	if common.VecEqualsEpsilon(c.state.AngularVelocity, v, eps) {
		return false
	}
	c.write(DirtyAngularVelocity, func(m *solver.Motion) { m.AngularVelocity = v })
	return true
}

func (c *motionCore) CenterOfMassInLocal() mgl32.Vec3 { return c.state.CenterOfMassLocal }

func (c *motionCore) CenterOfMassInWorld() mgl32.Vec3 {
	return c.state.CenterOfMassInWorld()
}

func (c *motionCore) SetCenterOfMassInLocal(center mgl32.Vec3) {
	c.write(DirtyCenterOfMassLocal, func(m *solver.Motion) { m.CenterOfMassLocal = center })
}

func (c *motionCore) MaxLinearVelocity() float32  { return c.state.State.MaxLinearVelocity }
func (c *motionCore) MaxAngularVelocity() float32 { return c.state.State.MaxAngularVelocity }

func (c *motionCore) SetMaxLinearVelocity(v float32) {
	c.write(DirtyMaxVelOrTimeFactor, func(m *solver.Motion) { m.State.MaxLinearVelocity = v })
}

func (c *motionCore) SetMaxAngularVelocity(v float32) {
	c.write(DirtyMaxVelOrTimeFactor, func(m *solver.Motion) { m.State.MaxAngularVelocity = v })
}

func (c *motionCore) TimeFactor() float32 { return c.state.State.TimeFactor }

func (c *motionCore) SetTimeFactor(f float32) {
	c.write(DirtyMaxVelOrTimeFactor, func(m *solver.Motion) { m.State.TimeFactor = f })
}

// freeze stops the motion by zeroing its time factor and velocities; unfreeze
// restores the time factor and, if asked, the saved velocities.
func (c *motionCore) freeze(freeze, preserveVelocities bool, maxImpulse *float32, preserveMaxImpulse bool) {
	if freeze {
		if c.frozen.active {
			return
		}
		c.frozen = frozenState{
			active:          true,
			linearVelocity:  c.state.LinearVelocity,
			angularVelocity: c.state.AngularVelocity,
			timeFactor:      c.state.State.TimeFactor,
			keepVelocities:  preserveVelocities,
			keepMaxImpulse:  preserveMaxImpulse,
		}
		if maxImpulse != nil {
			c.frozen.maxImpulse = *maxImpulse
			if !preserveMaxImpulse {
				*maxImpulse = 0
			}
		}
		c.write(DirtyLinearVelocity|DirtyAngularVelocity|DirtyMaxVelOrTimeFactor, func(m *solver.Motion) {
			m.LinearVelocity = mgl32.Vec3{}
			m.AngularVelocity = mgl32.Vec3{}
			m.State.TimeFactor = 0
		})
		return
	}

	if !c.frozen.active {
		return
	}
	saved := c.frozen
	c.frozen = frozenState{}
	if maxImpulse != nil && !saved.keepMaxImpulse {
		*maxImpulse = saved.maxImpulse
	}
	c.write(DirtyLinearVelocity|DirtyAngularVelocity|DirtyMaxVelOrTimeFactor, func(m *solver.Motion) {
		m.State.TimeFactor = saved.timeFactor
		if preserveVelocities || saved.keepVelocities {
			m.LinearVelocity = saved.linearVelocity
			m.AngularVelocity = saved.angularVelocity
		}
	})
}

// ResetFrozenState drops the velocities a freeze saved, so unfreezing
// restarts the body at rest.
func (c *motionCore) ResetFrozenState() {
	c.frozen.linearVelocity = mgl32.Vec3{}
	c.frozen.angularVelocity = mgl32.Vec3{}
}
