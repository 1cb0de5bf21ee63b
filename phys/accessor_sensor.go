package phys

import (
	"github.com/go-gl/mathgl/mgl32"
	"github.com/milk9111/rigidphys/solver"
)

// SensorFlag is a per-sensor accessor bit.
type SensorFlag uint32

const (
	// SensorReceiverOnly sensors never ask for step updates.
	SensorReceiverOnly SensorFlag = 1 << iota
	SensorFlag40000
)

// SensorAccessor is the motion accessor of sensor bodies. Sensors carry no
// dynamics: mass, damping and impulses are not part of it.
type SensorAccessor struct {
	motionCore

	flags  SensorFlag
	linked *RigidBody
}

func newSensorAccessor(body *RigidBody) *SensorAccessor {
	a := &SensorAccessor{}
	a.bind(body)
	return a
}

func (a *SensorAccessor) Kind() AccessorKind { return AccessorSensor }

func (a *SensorAccessor) init(p InstanceParam) {
	a.write(DirtyCenterOfMassLocal|DirtyMaxVelOrTimeFactor, func(m *solver.Motion) {
		m.CenterOfMassLocal = p.CenterOfMass
		m.State.TimeFactor = p.TimeFactor
		m.State.MaxLinearVelocity = p.MaxLinearVelocity
		m.State.MaxAngularVelocity = p.MaxAngularVelocity
	})
}

func (a *SensorAccessor) SetPosition(pos mgl32.Vec3, _ bool) { a.setPosition(pos) }

func (a *SensorAccessor) SetTransform(mtx mgl32.Mat4, _ bool) { a.setTransform(mtx) }

func (a *SensorAccessor) Freeze(freeze, preserveVelocities, preserveMaxImpulse bool) {
	a.freeze(freeze, preserveVelocities, nil, preserveMaxImpulse)
}

// onMotionTypeSettled stops a sensor after a type change. Receiver-only
// sensors are left alone.
func (a *SensorAccessor) onMotionTypeSettled() {
	if a.HasFlag(SensorReceiverOnly) {
		return
	}
	a.write(DirtyLinearVelocity|DirtyAngularVelocity, func(m *solver.Motion) {
		m.LinearVelocity = mgl32.Vec3{}
		m.AngularVelocity = mgl32.Vec3{}
	})
	a.body.setMotionFlagLocked(DirtyMiscState)
}

func (a *SensorAccessor) HasFlag(f SensorFlag) bool { return a.flags&f != 0 }

func (a *SensorAccessor) ChangeFlag(f SensorFlag, on bool) {
	if on {
		a.flags |= f
	} else {
		a.flags &^= f
	}
}

// LinkedRigidBody is the body this sensor follows, or nil.
func (a *SensorAccessor) LinkedRigidBody() *RigidBody { return a.linked }

func (a *SensorAccessor) setLinked(body *RigidBody) { a.linked = body }
