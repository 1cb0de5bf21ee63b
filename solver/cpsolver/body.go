package cpsolver

import (
	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/jakecoffman/cp"
	"github.com/milk9111/rigidphys/common"
	"github.com/milk9111/rigidphys/phys/filter"
	"github.com/milk9111/rigidphys/solver"
)

// Frames below the rest velocity after which a body reports inactive.
const (
	deactivationFrames   = 60
	restLinearVelocitySq = 1e-4
)

var zAxis = mgl32.Vec3{0, 0, 1}

// BodyDef describes a body to create.
type BodyDef struct {
	Name       string
	Shape      solver.Shape
	Motion     solver.Motion
	Sensor     bool
	FilterInfo uint32
}

// Body is a solver body backed by a cp.Body. The motion value is the
// authoritative 3D state; the planar part is mirrored into cp before a step
// and read back after it. The cp body sits at the center of mass with the
// shapes offset from it, so motion positions name the body origin.
type Body struct {
	name     string
	userData any

	body      *cp.Body
	shape     solver.Shape
	shapes    []*cp.Shape
	overrides []uint32
	filters   []cp.ShapeFilter

	motion      solver.Motion
	pushedAngle float64
	com         cp.Vector

	filterInfo   uint32
	sensor       bool
	quality      solver.QualityType
	penetration  float32
	deactivation bool

	world *World
}

// NewBody creates a detached body.
func NewBody(def BodyDef) *Body {
	b := &Body{
		name:         def.Name,
		body:         cp.NewBody(1, 1),
		motion:       def.Motion,
		filterInfo:   def.FilterInfo,
		sensor:       def.Sensor,
		quality:      solver.QualityInvalid,
		deactivation: true,
	}
	b.body.UserData = b
	b.body.SetVelocityUpdateFunc(b.updateVelocity)
	b.setShape(def.Shape)
	b.push()
	return b
}

// CP returns the underlying cp body.
func (b *Body) CP() *cp.Body {
	return b.body
}

func (b *Body) Name() string         { return b.name }
func (b *Body) SetName(name string)  { b.name = name }
func (b *Body) UserData() any        { return b.userData }
func (b *Body) SetUserData(data any) { b.userData = data }

func (b *Body) Motion() solver.Motion {
	return b.motion
}

func (b *Body) SetMotion(m solver.Motion) {
	b.motion = m
	b.push()
}

func (b *Body) CollisionFilterInfo() uint32 {
	return b.filterInfo
}

func (b *Body) SetCollisionFilterInfo(info uint32) {
	b.filterInfo = info
	b.applyFilter()
}

func (b *Body) Shape() solver.Shape {
	return b.shape
}

func (b *Body) SetShape(s solver.Shape) {
	b.setShape(s)
}

// UpdateShape rebuilds the cp shapes from the current shape, picking up
// changed dimensions and child filter overrides.
func (b *Body) UpdateShape() {
	b.setShape(b.shape)
}

func (b *Body) setShape(s solver.Shape) {
	if b.world != nil {
		for _, shape := range b.shapes {
			b.world.space.RemoveShape(shape)
		}
	}
	b.shape = s
	b.shapes, b.overrides = buildShapes(b.body, s, b.com)
	for _, shape := range b.shapes {
		shape.SetSensor(b.sensor)
		shape.UserData = b
		if b.world != nil {
			b.world.space.AddShape(shape)
		}
	}
	b.applyFilter()
}

func (b *Body) applyFilter() {
	b.filters = b.filters[:0]
	for i, shape := range b.shapes {
		word := b.filterInfo
		if i < len(b.overrides) && b.overrides[i] != filter.AllCollide {
			word = b.overrides[i]
		}
		f := shapeFilter(word, b.layerType())
		shape.SetFilter(f)
		b.filters = append(b.filters, f)
	}
}

func (b *Body) layerType() filter.LayerType {
	if b.sensor {
		return filter.LayerTypeSensor
	}
	return filter.LayerTypeEntity
}

// shapeFilter maps a filter word onto a cp filter: one category bit per
// contact layer and the group handler as the cp group.
func shapeFilter(word uint32, layerType filter.LayerType) cp.ShapeFilter {
	info := filter.Decode(word, layerType)
	layer := info.Layer
	if layer < 0 || layer > filter.SensorEnd {
		layer = filter.EntityObject
	}
	return cp.ShapeFilter{
		Group:      uint(info.GroupHandler),
		Categories: uint(1) << uint(layer),
		Mask:       cp.ALL_CATEGORIES,
	}
}

func (b *Body) QualityType() solver.QualityType      { return b.quality }
func (b *Body) SetQualityType(q solver.QualityType)  { b.quality = q }
func (b *Body) SetAllowedPenetrationDepth(d float32) { b.penetration = d }

// AllowedPenetrationDepth returns the depth last set on the body.
func (b *Body) AllowedPenetrationDepth() float32 {
	return b.penetration
}

func (b *Body) EnableDeactivation(enabled bool) {
	b.deactivation = enabled
	if !enabled {
		b.motion.DeactivationInactiveFrames = [2]uint16{}
		b.body.Activate()
	}
}

func (b *Body) IsDeactivationEnabled() bool {
	return b.deactivation
}

func (b *Body) IsActive() bool {
	if b.motion.Type == solver.MotionFixed {
		return false
	}
	if !b.deactivation {
		return true
	}
	return b.motion.DeactivationInactiveFrames[0] < deactivationFrames
}

func (b *Body) World() solver.World {
	if b.world == nil {
		return nil
	}
	return b.world
}

func (b *Body) Constraints() []solver.Constraint {
	var out []solver.Constraint
	b.body.EachConstraint(func(c *cp.Constraint) {
		var data any
		if b.world != nil {
			data = b.world.joints[c]
		}
		out = append(out, constraint{c: c, data: data})
	})
	return out
}

func (b *Body) ApplyLinearImpulse(impulse mgl32.Vec3) {
	inv := b.motion.MassInv()
	if inv == 0 {
		return
	}
	b.motion.LinearVelocity = b.motion.LinearVelocity.Add(impulse.Mul(inv))
	b.motion.DeactivationInactiveFrames = [2]uint16{}
	b.push()
}

func (b *Body) ApplyAngularImpulse(impulse mgl32.Vec3) {
	if b.motion.MassInv() == 0 {
		return
	}
	inertia := common.MaxVec(b.motion.InertiaLocal, common.Epsilon)
	local := b.motion.Rotation.Inverse().Rotate(impulse)
	delta := mgl32.Vec3{local[0] / inertia[0], local[1] / inertia[1], local[2] / inertia[2]}
	b.motion.AngularVelocity = b.motion.AngularVelocity.Add(b.motion.Rotation.Rotate(delta))
	b.motion.DeactivationInactiveFrames = [2]uint16{}
	b.push()
}

func (b *Body) ApplyPointImpulse(impulse, point mgl32.Vec3) {
	if b.motion.MassInv() == 0 {
		return
	}
	arm := point.Sub(b.motion.CenterOfMassInWorld())
	b.ApplyLinearImpulse(impulse)
	b.ApplyAngularImpulse(arm.Cross(impulse))
}

// Release detaches the body from its world and drops its shapes and user
// data.
func (b *Body) Release() {
	if b.world != nil {
		_ = b.world.RemoveBody(b)
	}
	for _, shape := range b.shapes {
		b.body.RemoveShape(shape)
	}
	b.shape = nil
	b.shapes, b.overrides, b.filters = nil, nil, nil
	b.userData = nil
	b.body.UserData = nil
}

// push mirrors the motion value into the cp body.
func (b *Body) push() {
	m := b.motion
	switch m.Type {
	case solver.MotionDynamic:
		b.body.SetType(cp.BODY_DYNAMIC)
		b.body.SetMass(float64(math32.Max(m.Mass, common.Epsilon)))
		b.body.SetMoment(float64(math32.Max(m.InertiaLocal[2], common.Epsilon)))
	case solver.MotionKeyframed:
		b.body.SetType(cp.BODY_KINEMATIC)
	default:
		b.body.SetType(cp.BODY_STATIC)
	}
	if com := (cp.Vector{X: float64(m.CenterOfMassLocal[0]), Y: float64(m.CenterOfMassLocal[1])}); !com.Equal(b.com) {
		b.com = com
		b.setShape(b.shape)
	}
	b.pushedAngle = float64(twistAngle(m.Rotation))
	b.body.SetAngle(b.pushedAngle)
	origin := cp.Vector{X: float64(m.Position[0]), Y: float64(m.Position[1])}
	b.body.SetPosition(origin.Add(cp.ForAngle(b.pushedAngle).Rotate(b.com)))
	if m.Type != solver.MotionFixed {
		b.body.SetVelocityVector(cp.Vector{X: float64(m.LinearVelocity[0]), Y: float64(m.LinearVelocity[1])})
		b.body.SetAngularVelocity(float64(m.AngularVelocity[2]))
	}
}

// pull reads the planar state back after a step at time with step dt.
func (b *Body) pull(time, dt float64) {
	m := &b.motion
	prevPos, prevRot := m.Position, m.Rotation

	angle := b.body.Angle()
	p := b.body.Position().Sub(cp.ForAngle(angle).Rotate(b.com))
	m.Position[0], m.Position[1] = float32(p.X), float32(p.Y)
	if delta := angle - b.pushedAngle; delta != 0 {
		m.Rotation = mgl32.QuatRotate(float32(delta), zAxis).Mul(m.Rotation).Normalize()
		b.pushedAngle = angle
	}
	if m.Type != solver.MotionFixed {
		v := b.body.Velocity()
		m.LinearVelocity[0], m.LinearVelocity[1] = float32(v.X), float32(v.Y)
		m.AngularVelocity[2] = float32(b.body.AngularVelocity())
	}

	if dt > 0 {
		m.State.Swept = solver.SweptTransform{
			BaseTime:     float32(time - dt),
			InvDeltaTime: float32(1 / dt),
			Position0:    prevPos,
			Position1:    m.Position,
			Rotation0:    prevRot,
			Rotation1:    m.Rotation,
		}
		m.State.DeltaAngle = mgl32.Vec3{0, 0, float32(angle) - float32(twistAngle(prevRot))}
	}

	if b.deactivation && m.LinearVelocity.Dot(m.LinearVelocity) < restLinearVelocitySq {
		if m.DeactivationInactiveFrames[0] < ^uint16(0) {
			m.DeactivationInactiveFrames[0]++
		}
	} else {
		m.DeactivationInactiveFrames[0] = 0
	}
}

// updateVelocity integrates velocity with the per-body gravity factor,
// damping, time factor and velocity clamp.
func (b *Body) updateVelocity(body *cp.Body, gravity cp.Vector, damping, dt float64) {
	m := &b.motion
	scaled := dt * float64(m.State.TimeFactor)
	cp.BodyUpdateVelocity(body, gravity.Mult(float64(m.GravityFactor)), damping, scaled)

	v := body.Velocity()
	if m.LinearDamping > 0 {
		v = v.Mult(1 / (1 + scaled*float64(m.LinearDamping)))
	}
	if limit := float64(m.State.MaxLinearVelocity); limit > 0 && v.Length() > limit {
		v = v.Normalize().Mult(limit)
	}
	body.SetVelocityVector(v)

	w := body.AngularVelocity()
	if m.AngularDamping > 0 {
		w /= 1 + scaled*float64(m.AngularDamping)
	}
	if limit := float64(m.State.MaxAngularVelocity); limit > 0 {
		w = float64(common.Clamp(float32(w), -float32(limit), float32(limit)))
	}
	body.SetAngularVelocity(w)
}

// twistAngle returns the rotation of q about the Z axis.
func twistAngle(q mgl32.Quat) float32 {
	return 2 * math32.Atan2(q.V[2], q.W)
}

type constraint struct {
	c    *cp.Constraint
	data any
}

func (c constraint) IsContact() bool { return false }
func (c constraint) UserData() any   { return c.data }
