// Package solver describes the physics engine the coordinator drives. The
// coordinator never integrates or collides anything itself; it only reads and
// replaces the state a Body exposes here.
package solver

import (
	"github.com/go-gl/mathgl/mgl32"
	"github.com/rotisserie/eris"
)

var (
	ErrNilBody        = eris.New("solver: body is nil")
	ErrUnknownShape   = eris.New("solver: unknown shape kind")
	ErrDetachedBody   = eris.New("solver: body is not in a world")
	ErrAlreadyInWorld = eris.New("solver: body already belongs to a world")
)

type MotionType int

const (
	MotionDynamic MotionType = iota
	MotionFixed
	MotionKeyframed
	MotionUnknown
	MotionInvalid
)

func (t MotionType) String() string {
	switch t {
	case MotionDynamic:
		return "Dynamic"
	case MotionFixed:
		return "Fixed"
	case MotionKeyframed:
		return "Keyframed"
	case MotionUnknown:
		return "Unknown"
	default:
		return "Invalid"
	}
}

// QualityType is the collidable quality classification used by the solver
// to pick continuous collision handling.
type QualityType int

const (
	QualityInvalid QualityType = iota
	QualityFixed
	QualityMoving
	QualityDebris
	QualityDebrisSimpleTOI
	QualityKeyframedReporting
	QualityBullet
	QualityCharacter
)

func (q QualityType) String() string {
	switch q {
	case QualityFixed:
		return "FIXED"
	case QualityMoving:
		return "MOVING"
	case QualityDebris:
		return "DEBRIS"
	case QualityDebrisSimpleTOI:
		return "DEBRIS_SIMPLE_TOI"
	case QualityKeyframedReporting:
		return "KEYFRAMED_REPORTING"
	case QualityBullet:
		return "BULLET"
	case QualityCharacter:
		return "CHARACTER"
	default:
		return "INVALID"
	}
}

// MassProperties are the shape-derived mass values for a given mass.
type MassProperties struct {
	Volume          float32
	CenterOfMass    mgl32.Vec3
	InertiaDiagonal mgl32.Vec3
}

// SolverInfo carries world-wide deactivation bookkeeping copied into a
// motion after it has been replaced.
type SolverInfo struct {
	DeactivationSelectFlags      [2]uint8
	DeactivationIntegrateCounter uint8
}

// Constraint is a joint attached to a body.
type Constraint interface {
	IsContact() bool
	UserData() any
}

// Body is the solver-side rigid body.
type Body interface {
	Name() string
	SetName(name string)
	UserData() any
	SetUserData(data any)

	// Motion returns a snapshot of the motion object.
	Motion() Motion
	// SetMotion replaces the motion object.
	SetMotion(m Motion)

	CollisionFilterInfo() uint32
	SetCollisionFilterInfo(info uint32)

	Shape() Shape
	SetShape(s Shape)
	// UpdateShape refreshes cached data after the current shape was mutated.
	UpdateShape()

	QualityType() QualityType
	SetQualityType(q QualityType)
	SetAllowedPenetrationDepth(depth float32)

	EnableDeactivation(enabled bool)
	IsDeactivationEnabled() bool
	IsActive() bool

	// World returns nil when the body is detached.
	World() World
	Constraints() []Constraint

	ApplyLinearImpulse(impulse mgl32.Vec3)
	ApplyAngularImpulse(impulse mgl32.Vec3)
	ApplyPointImpulse(impulse, point mgl32.Vec3)

	// Release frees storage owned by the body. The body must not be used
	// afterwards.
	Release()
}

// World is a solver simulation island.
type World interface {
	CurrentTime() float32
	SolverInfo() SolverInfo
	Lock()
	Unlock()
	Step(dt float32)
	AddBody(b Body) error
	RemoveBody(b Body) error
}
