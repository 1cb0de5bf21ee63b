package phys

import (
	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/milk9111/rigidphys/common"
	"github.com/milk9111/rigidphys/solver"
)

// MinInertia is the smallest inertia component a motion is created with.
const MinInertia float32 = 0.001

// InstanceParam is the parameter block a motion accessor is initialized
// from.
type InstanceParam struct {
	MotionType         solver.MotionType
	Mass               float32
	Inertia            mgl32.Vec3
	CenterOfMass       mgl32.Vec3
	LinearDamping      float32
	AngularDamping     float32
	GravityFactor      float32
	TimeFactor         float32
	MaxLinearVelocity  float32
	MaxAngularVelocity float32

	WaterBuoyancyScale     float32
	WaterFlowEffectiveRate float32
	MagneMassScalingFactor float32
	FrictionScale          float32
	RestitutionScale       float32
	MaxImpulse             float32
	ColImpulseScale        float32
}

func DefaultInstanceParam() InstanceParam {
	return InstanceParam{
		MotionType:             solver.MotionDynamic,
		Mass:                   1,
		Inertia:                mgl32.Vec3{1, 1, 1},
		GravityFactor:          1,
		TimeFactor:             1,
		MaxLinearVelocity:      solver.DefaultMaxLinearVelocity,
		MaxAngularVelocity:     solver.DefaultMaxAngularVelocity,
		WaterBuoyancyScale:     1,
		WaterFlowEffectiveRate: 1,
		MagneMassScalingFactor: 1,
		FrictionScale:          1,
		RestitutionScale:       1,
		MaxImpulse:             -1,
		ColImpulseScale:        1,
	}
}

// clampedInertia raises every component of the inertia diagonal to at least
// MinInertia.
func (p InstanceParam) clampedInertia() mgl32.Vec3 {
	return common.MaxVec(p.Inertia, MinInertia)
}

func (p InstanceParam) clampedMass() float32 {
	return math32.Max(p.Mass, MinInertia)
}

// buildMotion creates a solver motion of motionType at pos/rot from p.
// Unknown and Invalid types yield a motion of that type with no dynamics.
func buildMotion(motionType solver.MotionType, p InstanceParam, pos mgl32.Vec3, rot mgl32.Quat) solver.Motion {
	m := solver.NewMotion(motionType, pos, rot)
	switch motionType {
	case solver.MotionDynamic:
		m.Mass = p.clampedMass()
		m.InertiaLocal = p.clampedInertia()
		m.CenterOfMassLocal = p.CenterOfMass
		m.State.MaxLinearVelocity = p.MaxLinearVelocity
		m.State.MaxAngularVelocity = p.MaxAngularVelocity
		m.LinearDamping = p.LinearDamping
		m.AngularDamping = p.AngularDamping
		m.State.TimeFactor = p.TimeFactor
		m.GravityFactor = p.GravityFactor
	case solver.MotionKeyframed:
		m.CenterOfMassLocal = p.CenterOfMass
		m.State.MaxLinearVelocity = p.MaxLinearVelocity
		m.State.MaxAngularVelocity = p.MaxAngularVelocity
		m.State.TimeFactor = p.TimeFactor
	}
	return m
}
