package phys

import (
	"github.com/go-gl/mathgl/mgl32"
	"github.com/milk9111/rigidphys/solver"
)

const scheduledMotionTypes = ScheduledKeyframed | ScheduledFixed | ScheduledDynamic

func pendingBit(t solver.MotionType) MotionFlag {
	switch t {
	case solver.MotionDynamic:
		return PendingDynamic
	case solver.MotionKeyframed:
		return PendingKeyframed
	case solver.MotionFixed:
		return PendingFixed
	default:
		return 0
	}
}

// MotionType returns the pending motion type if a change is scheduled and
// the effective one otherwise. Pending bits are read without the lock.
func (b *RigidBody) MotionType() solver.MotionType {
	if t, ok := b.pendingMotionType(); ok {
		return t
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.effectiveMotionTypeLocked()
}

// EffectiveMotionType is the type of the current solver motion.
func (b *RigidBody) EffectiveMotionType() solver.MotionType {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.effectiveMotionTypeLocked()
}

// pendingMotionType checks the pending bits in drain order.
func (b *RigidBody) pendingMotionType() (solver.MotionType, bool) {
	switch {
	case b.motionFlags.Peek(PendingKeyframed):
		return solver.MotionKeyframed, true
	case b.motionFlags.Peek(PendingFixed):
		return solver.MotionFixed, true
	case b.motionFlags.Peek(PendingDynamic):
		return solver.MotionDynamic, true
	}
	return solver.MotionInvalid, false
}

func (b *RigidBody) motionTypeLocked() solver.MotionType {
	if t, ok := b.pendingMotionType(); ok {
		return t
	}
	return b.effectiveMotionTypeLocked()
}

func (b *RigidBody) effectiveMotionTypeLocked() solver.MotionType {
	if b.accessor != nil {
		return b.accessor.motionType()
	}
	return b.solverBody.Motion().Type
}

// ChangeMotionType moves the body to target. Bodies in a world only record
// the change; it is applied by the next request drain.
func (b *RigidBody) ChangeMotionType(target solver.MotionType) {
	b.mu.Lock()
	defer b.mu.Unlock()

	bit := pendingBit(target)
	if bit == 0 {
		b.ctx.assert(false, "change to motion type "+target.String(), b)
		return
	}
	if target == b.motionTypeLocked() {
		return
	}
	if target == solver.MotionDynamic && !b.IsEntity() {
		b.ctx.assert(false, "sensor bodies cannot become dynamic", b)
		return
	}
	if !b.isLockedForStep() {
		b.motionFlags.clearUnderLock(pendingMotionTypes)
		b.applyMotionType(target)
		return
	}
	b.motionFlags.clearUnderLock(pendingMotionTypes &^ bit)
	b.setMotionFlagLocked(bit)
}

// TriggerScheduledMotionTypeChange applies the pending motion type, if any.
// The resynchronization bits it raises stay set until the next drain.
func (b *RigidBody) TriggerScheduledMotionTypeChange() bool {
	b.Lock(true)
	defer b.Unlock(true)
	return b.triggerLocked()
}

func (b *RigidBody) triggerLocked() bool {
	target, ok := b.pendingMotionType()
	if !ok {
		return false
	}
	b.motionFlags.clearUnderLock(pendingMotionTypes)
	b.applyMotionType(target)
	return true
}

// applyMotionType replaces the solver motion right away. The caller holds
// the body lock and, for bodies in a world, the world lock.
func (b *RigidBody) applyMotionType(target solver.MotionType) {
	from := b.effectiveMotionTypeLocked()
	if from == target {
		return
	}
	b.replaceMotionObject(target)
	b.setMotionFlagLocked(resyncFlags)
	if b.accessor != nil {
		b.accessor.pull()
		b.accessor.flush(resyncFlags)
		b.accessor.onMotionTypeSettled()
	}
	b.ctx.Logger.Debug().
		Str("component", "rigidbody").
		Str("body", b.name).
		Stringer("from", from).
		Stringer("to", target).
		Msg("motion type changed")
}

// replaceMotionObject swaps the solver motion for a fresh one of target,
// carrying over the integration state, the velocities (unless target is
// Fixed) and the deactivation counters.
func (b *RigidBody) replaceMotionObject(target solver.MotionType) {
	old := b.solverBody.Motion()
	m := solver.NewMotion(target, old.Position, old.Rotation)
	m.State = old.State
	if target != solver.MotionFixed {
		m.LinearVelocity = old.LinearVelocity
		m.AngularVelocity = old.AngularVelocity
	}
	m.DeactivationIntegrateCounter = old.DeactivationIntegrateCounter
	m.DeactivationInactiveFrames = old.DeactivationInactiveFrames
	m.DeactivationSelectFlags = old.DeactivationSelectFlags

	world := b.solverBody.World()
	if target == solver.MotionFixed {
		swept := old.State.Swept
		t := swept.BaseTime
		switch {
		case world != nil:
			t = world.CurrentTime()
		case swept.InvDeltaTime != 0:
			t = 1/swept.InvDeltaTime + swept.BaseTime
		}
		m.Freeze(t)
	}
	b.solverBody.SetQualityType(b.qualityFor(target))
	if world != nil {
		m.SetWorldSelectFlagsNeg(world.SolverInfo())
	}
	b.solverBody.SetMotion(m)
}

// qualityFor derives the collidable quality of a body moving as t.
func (b *RigidBody) qualityFor(t solver.MotionType) solver.QualityType {
	if b.typ == TypeCharacterController {
		return solver.QualityCharacter
	}
	high := b.attributes.Peek(HighQualityCollidable)
	switch t {
	case solver.MotionFixed:
		return solver.QualityFixed
	case solver.MotionKeyframed:
		if high && b.IsEntity() {
			return solver.QualityMoving
		}
		return solver.QualityKeyframedReporting
	case solver.MotionDynamic:
		if high {
			return solver.QualityBullet
		}
		return solver.QualityDebrisSimpleTOI
	default:
		return solver.QualityInvalid
	}
}

// UpdateCollidableQualityType sets the high quality flag and re-derives the
// collidable quality. Character controllers are always high quality.
func (b *RigidBody) UpdateCollidableQualityType(highQuality bool) {
	b.Lock(true)
	defer b.Unlock(true)
	if b.typ == TypeCharacterController {
		b.attributes.setUnderLock(HighQualityCollidable)
		b.solverBody.SetQualityType(solver.QualityCharacter)
		return
	}
	b.attributes.changeUnderLock(HighQualityCollidable, highQuality)
	b.solverBody.SetQualityType(b.qualityFor(b.effectiveMotionTypeLocked()))
}

// QualityType returns the solver collidable quality.
func (b *RigidBody) QualityType() solver.QualityType {
	b.Lock(true)
	defer b.Unlock(true)
	return b.solverBody.QualityType()
}

// UpdateMotionTypeRelatedFlags snapshots the motion type into the scheduled
// attribute bits unless a snapshot is already present.
func (b *RigidBody) UpdateMotionTypeRelatedFlags() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.attributes.Any(scheduledMotionTypes) {
		return
	}
	var bit AttributeFlag
	switch b.motionTypeLocked() {
	case solver.MotionDynamic:
		bit = ScheduledDynamic
	case solver.MotionFixed:
		bit = ScheduledFixed
	case solver.MotionKeyframed:
		bit = ScheduledKeyframed
	default:
		return
	}
	b.attributes.clearUnderLock(scheduledMotionTypes &^ bit)
	b.attributes.setUnderLock(bit)
}

// ClearMotionTypeRelatedFlags drops the scheduled snapshot.
func (b *RigidBody) ClearMotionTypeRelatedFlags() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.attributes.clearUnderLock(scheduledMotionTypes)
}

// Freeze stops or restarts the body's motion.
func (b *RigidBody) Freeze(freeze, preserveVelocities, preserveMaxImpulse bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.freezeLocked(freeze, preserveVelocities, preserveMaxImpulse)
}

func (b *RigidBody) freezeLocked(freeze, preserveVelocities, preserveMaxImpulse bool) {
	if b.attributes.Peek(Frozen) == freeze {
		if freeze && b.accessor != nil {
			b.accessor.SetLinearVelocity(mgl32.Vec3{}, 0)
			b.accessor.SetAngularVelocity(mgl32.Vec3{}, 0)
		}
		return
	}
	if b.accessor != nil {
		b.accessor.Freeze(freeze, preserveVelocities, preserveMaxImpulse)
	}
	b.attributes.changeUnderLock(Frozen, freeze)
}

func (b *RigidBody) IsFrozen() bool { return b.attributes.Peek(Frozen) }

// SetFixed pins the body in place. Unfixing marks the linear velocity for
// restoration on the next drain.
func (b *RigidBody) SetFixed(fixed, preserveVelocities bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.attributes.Peek(Fixed) == fixed {
		return
	}
	b.attributes.changeUnderLock(Fixed, fixed)
	if !fixed {
		b.setMotionFlagLocked(DirtyLinearVelocity | Unfix)
	}
	b.freezeLocked(b.attributes.Any(FixedWithImpulsePreserved|Fixed), preserveVelocities, false)
}

// SetFixedAndPreserveImpulse is SetFixed for callers that keep the body's
// velocities and max impulse across the fixed period.
func (b *RigidBody) SetFixedAndPreserveImpulse(fixed, markLinearVelocityDirty bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.attributes.Peek(FixedWithImpulsePreserved) == fixed {
		return
	}
	b.attributes.changeUnderLock(FixedWithImpulsePreserved, fixed)
	if !fixed && markLinearVelocityDirty {
		b.setMotionFlagLocked(DirtyLinearVelocity)
	}
	b.freezeLocked(b.attributes.Any(FixedWithImpulsePreserved|Fixed), true, true)
}

// ResetFrozenState makes the next unfreeze restart the body at rest.
func (b *RigidBody) ResetFrozenState() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.accessor != nil {
		b.accessor.ResetFrozenState()
	}
}
