package solver

import "github.com/go-gl/mathgl/mgl32"

// SweptTransform interpolates a body between two solver time steps.
type SweptTransform struct {
	BaseTime     float32
	InvDeltaTime float32
	Position0    mgl32.Vec3
	Position1    mgl32.Vec3
	Rotation0    mgl32.Quat
	Rotation1    mgl32.Quat
}

// MotionState is the integration bookkeeping that survives a motion
// replacement.
type MotionState struct {
	Swept              SweptTransform
	TimeFactor         float32
	MaxLinearVelocity  float32
	MaxAngularVelocity float32
	DeltaAngle         mgl32.Vec3
}

// Motion is the solver motion object of a body. Bodies hand out copies;
// changes only take effect through Body.SetMotion.
type Motion struct {
	Type     MotionType
	Position mgl32.Vec3
	Rotation mgl32.Quat
	State    MotionState

	LinearVelocity  mgl32.Vec3
	AngularVelocity mgl32.Vec3

	CenterOfMassLocal mgl32.Vec3
	Mass              float32
	InertiaLocal      mgl32.Vec3
	LinearDamping     float32
	AngularDamping    float32
	GravityFactor     float32

	DeactivationIntegrateCounter uint8
	DeactivationInactiveFrames   [2]uint16
	DeactivationSelectFlags      [2]uint8
}

const (
	DefaultMaxLinearVelocity  float32 = 200
	DefaultMaxAngularVelocity float32 = 200
)

// NewMotion constructs a motion of type t at rest at pos/rot with the
// defaults of that type.
func NewMotion(t MotionType, pos mgl32.Vec3, rot mgl32.Quat) Motion {
	m := Motion{
		Type:     t,
		Position: pos,
		Rotation: rot,
		State: MotionState{
			TimeFactor:         1,
			MaxLinearVelocity:  DefaultMaxLinearVelocity,
			MaxAngularVelocity: DefaultMaxAngularVelocity,
		},
	}
	m.State.Swept = SweptTransform{
		Position0: pos,
		Position1: pos,
		Rotation0: rot,
		Rotation1: rot,
	}
	if t == MotionDynamic {
		m.Mass = 1
		m.InertiaLocal = mgl32.Vec3{1, 1, 1}
		m.GravityFactor = 1
	}
	return m
}

// MassInv returns the inverse mass, zero for infinite mass.
func (m Motion) MassInv() float32 {
	if m.Type != MotionDynamic || m.Mass <= 0 {
		return 0
	}
	return 1 / m.Mass
}

// CenterOfMassInWorld transforms the local center of mass by the motion's
// current transform.
func (m Motion) CenterOfMassInWorld() mgl32.Vec3 {
	return m.Position.Add(m.Rotation.Rotate(m.CenterOfMassLocal))
}

// Freeze pins the swept transform at time so that interpolation stops at the
// current transform.
func (m *Motion) Freeze(time float32) {
	m.State.Swept = SweptTransform{
		BaseTime:  time,
		Position0: m.Position,
		Position1: m.Position,
		Rotation0: m.Rotation,
		Rotation1: m.Rotation,
	}
}

// SetWorldSelectFlagsNeg copies the world deactivation selectors, inverted,
// so the next deactivation pass re-evaluates this motion.
func (m *Motion) SetWorldSelectFlagsNeg(info SolverInfo) {
	m.DeactivationSelectFlags[0] = ^info.DeactivationSelectFlags[0]
	m.DeactivationSelectFlags[1] = ^info.DeactivationSelectFlags[1]
	m.DeactivationIntegrateCounter = info.DeactivationIntegrateCounter
}
