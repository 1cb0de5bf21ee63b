package phys

import (
	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/milk9111/rigidphys/common"
	"github.com/milk9111/rigidphys/solver"
)

const timeFactorEpsilon float32 = 0.001

// motionLocked returns the logical motion of the body.
func (b *RigidBody) motionLocked() solver.Motion {
	if b.accessor != nil {
		return b.accessor.snapshot()
	}
	return b.solverBody.Motion()
}

func (b *RigidBody) Position() mgl32.Vec3 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.motionLocked().Position
}

func (b *RigidBody) Rotation() mgl32.Quat {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.motionLocked().Rotation
}

func (b *RigidBody) PositionAndRotation() (mgl32.Vec3, mgl32.Quat) {
	b.mu.Lock()
	defer b.mu.Unlock()
	m := b.motionLocked()
	return m.Position, m.Rotation
}

func (b *RigidBody) Transform() mgl32.Mat4 {
	b.mu.Lock()
	defer b.mu.Unlock()
	m := b.motionLocked()
	return common.TransformFrom(m.Position, m.Rotation)
}

// IsTransformDirty reports a position or transform write not yet flushed.
func (b *RigidBody) IsTransformDirty() bool {
	return b.motionFlags.Peek(DirtyTransform)
}

// SetPosition moves the body. NaN components are reported to the user tag
// and nothing changes.
func (b *RigidBody) SetPosition(pos mgl32.Vec3, propagateToLinked bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if common.IsVecInvalid(pos) {
		b.onInvalidParameter(InvalidCodeNaN)
		return
	}
	if b.accessor != nil {
		b.accessor.SetPosition(pos, propagateToLinked)
	}
}

func (b *RigidBody) SetTransform(mtx mgl32.Mat4, propagateToLinked bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if common.IsMatInvalid(mtx) {
		b.onInvalidParameter(InvalidCodeNaN)
		return
	}
	if b.accessor != nil {
		b.accessor.SetTransform(mtx, propagateToLinked)
	}
}

// SetPositionAndRotation writes both parts of the transform at once.
func (b *RigidBody) SetPositionAndRotation(pos mgl32.Vec3, rot mgl32.Quat, propagateToLinked bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if common.IsVecInvalid(pos) || common.IsQuatInvalid(rot) {
		b.onInvalidParameter(InvalidCodeNaN)
		return
	}
	if b.accessor != nil {
		b.accessor.SetTransform(common.TransformFrom(pos, rot), propagateToLinked)
	}
}

func (b *RigidBody) ResetPosition() {
	b.SetPosition(mgl32.Vec3{}, true)
}

// LogPosition writes the position at debug level.
func (b *RigidBody) LogPosition() {
	pos := b.Position()
	b.ctx.Logger.Debug().
		Str("component", "rigidbody").
		Str("body", b.name).
		Floats32("position", pos[:]).
		Msg("position")
}

func (b *RigidBody) LinearVelocity() mgl32.Vec3 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.motionLocked().LinearVelocity
}

func (b *RigidBody) AngularVelocity() mgl32.Vec3 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.motionLocked().AngularVelocity
}

// SetLinearVelocity sets the velocity unless it is within eps of the current
// one. It returns whether the velocity was written.
func (b *RigidBody) SetLinearVelocity(v mgl32.Vec3, eps float32) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if common.IsVecInvalid(v) {
		b.onInvalidParameter(InvalidCodeNaN)
		return false
	}
	if b.IsEntity() && b.ctx.Config.IsLinearVelocityTooHigh(v) {
		b.onInvalidParameter(InvalidCodeVelocityTooHigh)
		return false
	}
	if b.accessor == nil {
		return false
	}
	return b.accessor.SetLinearVelocity(v, eps)
}

func (b *RigidBody) SetAngularVelocity(v mgl32.Vec3, eps float32) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if common.IsVecInvalid(v) {
		b.onInvalidParameter(InvalidCodeNaN)
		return false
	}
	if b.accessor == nil {
		return false
	}
	return b.accessor.SetAngularVelocity(v, eps)
}

// PointVelocity is the velocity of the body at the world point p.
func (b *RigidBody) PointVelocity(p mgl32.Vec3) mgl32.Vec3 {
	b.mu.Lock()
	defer b.mu.Unlock()
	m := b.motionLocked()
	rel := p.Sub(b.centerOfMassInWorldLocked())
	return m.AngularVelocity.Cross(rel).Add(m.LinearVelocity)
}

// velocityComputeTimeFactor is the number of scaled steps per second.
func (b *RigidBody) velocityComputeTimeFactor() float32 {
	tf := b.timeFactorLocked()
	if tf == 0 {
		return 0
	}
	return 1 / (tf * b.ctx.StepDelta())
}

// ComputeVelocityForWarping returns the linear velocity that moves the body
// to target in one step. With takeAngularVelocity, bodies whose center of
// mass is at their origin account for the rotation about it.
func (b *RigidBody) ComputeVelocityForWarping(target mgl32.Vec3, takeAngularVelocity bool) mgl32.Vec3 {
	b.mu.Lock()
	defer b.mu.Unlock()
	factor := b.velocityComputeTimeFactor()
	m := b.motionLocked()
	current := m.Position
	if takeAngularVelocity && factor != 0 && m.CenterOfMassLocal == (mgl32.Vec3{}) {
		rel := current.Sub(b.centerOfMassInWorldLocked())
		current = current.Add(m.AngularVelocity.Cross(rel).Mul(1 / factor))
	}
	return target.Sub(current).Mul(factor)
}

func (b *RigidBody) CenterOfMassInLocal() mgl32.Vec3 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.motionLocked().CenterOfMassLocal
}

func (b *RigidBody) CenterOfMassInWorld() mgl32.Vec3 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.centerOfMassInWorldLocked()
}

func (b *RigidBody) centerOfMassInWorldLocked() mgl32.Vec3 {
	m := b.motionLocked()
	if b.motionFlags.Any(DirtyCenterOfMassLocal | DirtyTransform) {
		mtx := common.TransformFrom(m.Position, m.Rotation)
		return mtx.Mul4x1(m.CenterOfMassLocal.Vec4(1)).Vec3()
	}
	return m.CenterOfMassInWorld()
}

// SetCenterOfMassInLocal only writes a changed center.
func (b *RigidBody) SetCenterOfMassInLocal(center mgl32.Vec3) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if common.IsVecInvalid(center) {
		b.onInvalidParameter(InvalidCodeNaN)
		return
	}
	if b.accessor == nil || b.accessor.CenterOfMassInLocal() == center {
		return
	}
	b.accessor.SetCenterOfMassInLocal(center)
}

func (b *RigidBody) MaxLinearVelocity() float32 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.motionLocked().State.MaxLinearVelocity
}

func (b *RigidBody) SetMaxLinearVelocity(v float32) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.accessor == nil || common.EqualsEpsilon(b.accessor.MaxLinearVelocity(), v, common.Epsilon) {
		return
	}
	b.accessor.SetMaxLinearVelocity(v)
}

func (b *RigidBody) MaxAngularVelocity() float32 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.motionLocked().State.MaxAngularVelocity
}

func (b *RigidBody) SetMaxAngularVelocity(v float32) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.accessor == nil || common.EqualsEpsilon(b.accessor.MaxAngularVelocity(), v, common.Epsilon) {
		return
	}
	b.accessor.SetMaxAngularVelocity(v)
}

// impulseAllowed reports whether impulses reach the body at all.
func (b *RigidBody) impulseAllowed() bool {
	return !b.ctx.IsPaused() && !b.attributes.Any(ImpulseBlocked|ImpulseBlockedAlt)
}

func (b *RigidBody) ApplyLinearImpulse(impulse mgl32.Vec3) {
	if !b.impulseAllowed() {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if common.IsVecInvalid(impulse) {
		b.onInvalidParameter(InvalidCodeNaN)
		return
	}
	if b.entity != nil {
		b.entity.ApplyLinearImpulse(impulse)
	}
}

func (b *RigidBody) ApplyAngularImpulse(impulse mgl32.Vec3) {
	if !b.impulseAllowed() {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if common.IsVecInvalid(impulse) {
		b.onInvalidParameter(InvalidCodeNaN)
		return
	}
	if b.entity != nil {
		b.entity.ApplyAngularImpulse(impulse)
	}
}

func (b *RigidBody) ApplyPointImpulse(impulse, point mgl32.Vec3) {
	if !b.impulseAllowed() {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if common.IsVecInvalid(impulse) || common.IsVecInvalid(point) {
		b.onInvalidParameter(InvalidCodeNaN)
		return
	}
	if b.entity != nil {
		b.entity.ApplyPointImpulse(impulse, point)
	}
}

// Mass is zero for sensors.
func (b *RigidBody) Mass() float32 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.massLocked()
}

func (b *RigidBody) massLocked() float32 {
	if b.entity == nil {
		return 0
	}
	return b.entity.Mass()
}

func (b *RigidBody) MassInv() float32 {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.entity == nil {
		return 0
	}
	return b.entity.MassInv()
}

func (b *RigidBody) SetMass(mass float32) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if common.IsFloatInvalid(mass) {
		b.onInvalidParameter(InvalidCodeNaN)
		return
	}
	if b.entity != nil {
		b.entity.SetMass(mass)
	}
}

func (b *RigidBody) InertiaLocal() mgl32.Vec3 {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.entity == nil {
		return mgl32.Vec3{}
	}
	return b.entity.InertiaLocal()
}

func (b *RigidBody) SetInertiaLocal(inertia mgl32.Vec3) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if common.IsVecInvalid(inertia) {
		b.onInvalidParameter(InvalidCodeNaN)
		return
	}
	if b.entity != nil {
		b.entity.SetInertiaLocal(inertia)
	}
}

func (b *RigidBody) LinearDamping() float32 {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.entity == nil {
		return 0
	}
	return b.entity.LinearDamping()
}

func (b *RigidBody) SetLinearDamping(v float32) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.entity != nil {
		b.entity.SetLinearDamping(v)
	}
}

func (b *RigidBody) AngularDamping() float32 {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.entity == nil {
		return 0
	}
	return b.entity.AngularDamping()
}

func (b *RigidBody) SetAngularDamping(v float32) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.entity != nil {
		b.entity.SetAngularDamping(v)
	}
}

// GravityFactor is 1 for sensors.
func (b *RigidBody) GravityFactor() float32 {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.entity == nil {
		return 1
	}
	return b.entity.GravityFactor()
}

func (b *RigidBody) SetGravityFactor(v float32) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.entity != nil {
		b.entity.SetGravityFactor(v)
	}
}

func (b *RigidBody) TimeFactor() float32 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.timeFactorLocked()
}

func (b *RigidBody) timeFactorLocked() float32 {
	if b.accessor == nil {
		return 1
	}
	return b.accessor.TimeFactor()
}

// SetTimeFactor changes the body's simulation speed. It returns false when
// the value is unchanged or the body is frozen.
func (b *RigidBody) SetTimeFactor(f float32) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.accessor == nil {
		return false
	}
	current := b.accessor.TimeFactor()
	if common.EqualsEpsilon(current, f, timeFactorEpsilon) {
		return false
	}
	if b.attributes.Peek(Frozen) {
		return false
	}
	b.accessor.SetTimeFactor(f)
	if f != 0 && current != 0 && b.entity != nil {
		b.entity.SetLinearDamping(b.entity.LinearDamping())
		b.entity.SetAngularDamping(b.entity.AngularDamping())
	}
	return true
}

// entityScale reads an entity-only scale, falling back to def.
func (b *RigidBody) entityScale(def float32, get func(a *EntityAccessor) float32) float32 {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.entity == nil {
		return def
	}
	return get(b.entity)
}

func (b *RigidBody) setEntityScale(set func(a *EntityAccessor)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.entity != nil {
		set(b.entity)
	}
}

func (b *RigidBody) WaterBuoyancyScale() float32 {
	return b.entityScale(0, (*EntityAccessor).WaterBuoyancyScale)
}

func (b *RigidBody) SetWaterBuoyancyScale(v float32) {
	b.setEntityScale(func(a *EntityAccessor) { a.SetWaterBuoyancyScale(v) })
}

func (b *RigidBody) WaterFlowEffectiveRate() float32 {
	return b.entityScale(0, (*EntityAccessor).WaterFlowEffectiveRate)
}

func (b *RigidBody) SetWaterFlowEffectiveRate(v float32) {
	b.setEntityScale(func(a *EntityAccessor) { a.SetWaterFlowEffectiveRate(v) })
}

func (b *RigidBody) MagneMassScalingFactor() float32 {
	return b.entityScale(-1, (*EntityAccessor).MagneMassScalingFactor)
}

func (b *RigidBody) SetMagneMassScalingFactor(v float32) {
	b.setEntityScale(func(a *EntityAccessor) { a.SetMagneMassScalingFactor(v) })
}

func (b *RigidBody) FrictionScale() float32 {
	return b.entityScale(1, (*EntityAccessor).FrictionScale)
}

func (b *RigidBody) SetFrictionScale(v float32) {
	b.setEntityScale(func(a *EntityAccessor) { a.SetFrictionScale(v) })
}

func (b *RigidBody) RestitutionScale() float32 {
	return b.entityScale(1, (*EntityAccessor).RestitutionScale)
}

// SetRestitutionScale clamps v to [0, 1].
func (b *RigidBody) SetRestitutionScale(v float32) {
	v = common.Clamp(v, 0, 1)
	b.setEntityScale(func(a *EntityAccessor) { a.SetRestitutionScale(v) })
}

// EffectiveRestitutionScale halves the restitution while any of the
// restitution-halving attributes is set.
func (b *RigidBody) EffectiveRestitutionScale() float32 {
	scale := b.RestitutionScale()
	if b.attributes.Any(restitutionHalvingFlags) {
		return scale * 0.5
	}
	return scale
}

func (b *RigidBody) MaxImpulse() float32 {
	return b.entityScale(1, (*EntityAccessor).MaxImpulse)
}

func (b *RigidBody) SetMaxImpulse(v float32) {
	b.setEntityScale(func(a *EntityAccessor) { a.SetMaxImpulse(v) })
}

func (b *RigidBody) ColImpulseScale() float32 {
	return b.entityScale(1, (*EntityAccessor).ColImpulseScale)
}

// SetColImpulseScale clamps v to be non-negative.
func (b *RigidBody) SetColImpulseScale(v float32) {
	v = math32.Max(v, 0)
	b.setEntityScale(func(a *EntityAccessor) { a.SetColImpulseScale(v) })
}

// entityFlag reads an auxiliary entity flag. ok is false for sensors.
func (b *RigidBody) entityFlag(f EntityFlag) (on, ok bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.entity == nil {
		return false, false
	}
	return b.entity.HasFlag(f), true
}

func (b *RigidBody) changeEntityFlag(f EntityFlag, on bool) {
	b.setEntityScale(func(a *EntityAccessor) { a.ChangeFlag(f, on) })
}

// The entity flags 4, 10 and 20 start set and are cleared by callers; the
// others start clear.

func (b *RigidBody) ClearEntityMotionFlag4(clear bool)  { b.changeEntityFlag(EntityFlag4, !clear) }
func (b *RigidBody) ClearEntityMotionFlag10(clear bool) { b.changeEntityFlag(EntityFlag10, !clear) }
func (b *RigidBody) ClearEntityMotionFlag20(clear bool) { b.changeEntityFlag(EntityFlag20, !clear) }
func (b *RigidBody) SetEntityMotionFlag1(on bool)       { b.changeEntityFlag(EntityFlag1, on) }
func (b *RigidBody) SetEntityMotionFlag8(on bool)       { b.changeEntityFlag(EntityFlag8, on) }
func (b *RigidBody) SetEntityMotionFlag40(on bool)      { b.changeEntityFlag(EntityFlag40, on) }
func (b *RigidBody) SetEntityMotionFlag80(on bool)      { b.changeEntityFlag(EntityFlag80, on) }
func (b *RigidBody) SetEntityMotionFlag100(on bool)     { b.changeEntityFlag(EntityFlag100, on) }
func (b *RigidBody) SetEntityMotionFlag200(on bool)     { b.changeEntityFlag(EntityFlag200, on) }

func (b *RigidBody) IsEntityMotionFlagOff(f EntityFlag) bool {
	on, ok := b.entityFlag(f)
	return ok && !on
}

func (b *RigidBody) IsEntityMotionFlagOn(f EntityFlag) bool {
	on, ok := b.entityFlag(f)
	return ok && on
}

// ComputeShapeVolumeMassProperties derives mass properties of the current
// shape for the body's mass.
func (b *RigidBody) ComputeShapeVolumeMassProperties() solver.MassProperties {
	b.mu.Lock()
	defer b.mu.Unlock()
	shape := b.solverBody.Shape()
	if shape == nil {
		return solver.MassProperties{}
	}
	return shape.MassProperties(b.massLocked())
}

// ResetInertiaAndCenterOfMass recomputes inertia and center of mass from
// the shape.
func (b *RigidBody) ResetInertiaAndCenterOfMass() {
	props := b.ComputeShapeVolumeMassProperties()
	b.SetInertiaLocal(props.InertiaDiagonal)
	b.SetCenterOfMassInLocal(props.CenterOfMass)
}

// AabbInLocal bounds the shape in body space.
func (b *RigidBody) AabbInLocal() (min, max mgl32.Vec3) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if shape := b.solverBody.Shape(); shape != nil {
		return shape.Aabb(mgl32.Ident4())
	}
	return
}

// AabbInWorld bounds the shape at the body's transform.
func (b *RigidBody) AabbInWorld() (min, max mgl32.Vec3) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if shape := b.solverBody.Shape(); shape != nil {
		m := b.motionLocked()
		return shape.Aabb(common.TransformFrom(m.Position, m.Rotation))
	}
	return
}

// UpdateShape refreshes the solver shape, or swaps in a shape given to
// ReplaceShape. Bodies in a world defer it to the next drain.
func (b *RigidBody) UpdateShape() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.updateShapeLocked()
}

// ReplaceShape schedules s as the body's new shape and updates it.
func (b *RigidBody) ReplaceShape(s solver.Shape) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.newShape = s
	b.updateShapeLocked()
}

func (b *RigidBody) updateShapeLocked() {
	if b.isLockedForStep() {
		b.setMotionFlagLocked(DirtyShape)
		return
	}
	b.updateShapeNow()
}

// updateShapeNow touches the solver shape. The caller holds the body lock
// and, for bodies in a world, the world lock.
func (b *RigidBody) updateShapeNow() {
	if b.newShape != nil {
		b.solverBody.SetShape(b.newShape)
		b.newShape = nil
		if b.entity != nil {
			b.entity.shapeReplacements++
		}
	} else {
		b.solverBody.UpdateShape()
		if b.entity != nil {
			b.entity.shapeUpdates++
		}
	}
	if b.userTag != nil {
		b.userTag.OnBodyShapeChanged(b)
	}
}

// UpdateShapeIfNeeded updates scalable shapes when scale changed. A
// non-positive scale counts as 1.
func (b *RigidBody) UpdateShapeIfNeeded(scale float32) {
	if !b.attributes.Peek(ShapeScalable) {
		return
	}
	if scale <= 0 {
		scale = 1
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if common.EqualsEpsilon(b.shapeScale, scale, common.Epsilon) {
		return
	}
	b.shapeScale = scale
	b.updateShapeLocked()
}

// ShapeScale is the scale last passed to UpdateShapeIfNeeded.
func (b *RigidBody) ShapeScale() float32 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.shapeScale
}

// LinkedRigidBody returns the body a sensor is linked to.
func (b *RigidBody) LinkedRigidBody() *RigidBody {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.sensor == nil {
		return nil
	}
	return b.sensor.LinkedRigidBody()
}

// SetLinkedRigidBody links a sensor to body, which then moves it along.
// Linking fails for entities and for sensors whose requests are suppressed.
func (b *RigidBody) SetLinkedRigidBody(body *RigidBody) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.sensor == nil {
		return false
	}
	if body != nil && b.attributes.Peek(RequestsSuppressed) {
		return false
	}
	if e := b.sensor.LinkedRigidBody().linkedEntity(); e != nil {
		e.deregisterLinked(b)
	}
	b.sensor.setLinked(body)
	if e := body.linkedEntity(); e != nil {
		e.registerLinked(b)
	}
	return true
}

func (b *RigidBody) ResetLinkedRigidBody() {
	b.SetLinkedRigidBody(nil)
}
