package phys

import "sync/atomic"

// bitset is a set of independent boolean bits backed by an atomic word.
// Reads never lock. Writes are only made while the owning body is locked;
// the atomic word keeps concurrent Peek calls well defined.
type bitset[T ~uint32] struct {
	v atomic.Uint32
}

// Peek reports whether bit is set, without taking any lock.
func (b *bitset[T]) Peek(bit T) bool {
	return b.v.Load()&uint32(bit) != 0
}

// Any reports whether at least one of bits is set.
func (b *bitset[T]) Any(bits T) bool {
	return b.v.Load()&uint32(bits) != 0
}

// Raw returns the whole word.
func (b *bitset[T]) Raw() uint32 {
	return b.v.Load()
}

func (b *bitset[T]) setUnderLock(bit T) {
	b.v.Or(uint32(bit))
}

func (b *bitset[T]) clearUnderLock(bit T) {
	b.v.And(^uint32(bit))
}

func (b *bitset[T]) changeUnderLock(bit T, on bool) {
	if on {
		b.setUnderLock(bit)
	} else {
		b.clearUnderLock(bit)
	}
}

// AttributeFlag is one of the 32 attribute bits of a RigidBody.
type AttributeFlag uint32

const (
	IsSensor AttributeFlag = 1 << iota
	UpdateRequested
	// RemovedFromWorld is set once the body has been taken out of its world.
	RemovedFromWorld
	// AddedToWorld is set while the body is in a world. Solver state is not
	// touched directly while it is set.
	AddedToWorld
	// ShapeScalable allows UpdateShapeIfNeeded to rebuild the shape.
	ShapeScalable
	// RequestsSuppressed stops SetMotionFlag from enqueuing the body.
	RequestsSuppressed
	ImpulseBlocked
	HighQualityCollidable
	UseSystemTimeFactor
	Flag200
	ImpulseBlockedAlt
	Flag800
	Flag1000
	Flag2000
	Flag4000
	Flag8000
	Flag10000
	FixedWithImpulsePreserved
	Fixed
	Frozen
	Flag100000
	Flag200000
	Flag400000
	Flag800000
	Flag1000000
	DeactivationSuppressed
	// InContact is set while the body has at least one contact.
	InContact
	DeactivationSuppressedAlt
	Flag10000000
	ScheduledKeyframed
	ScheduledFixed
	ScheduledDynamic
)

const restitutionHalvingFlags = Flag2000 | Flag4000 | Flag8000 | Flag10000

const deactivationSuppressingFlags = DeactivationSuppressed | InContact | DeactivationSuppressedAlt

// managedAttributes are only written by the body's own operations.
const managedAttributes = IsSensor | UpdateRequested | RemovedFromWorld | AddedToWorld |
	HighQualityCollidable | FixedWithImpulsePreserved | Fixed | Frozen |
	deactivationSuppressingFlags | scheduledMotionTypes

// MotionFlag is one of the 20 motion bits of a RigidBody: step hand-off
// bits, pending motion types and dirty markers.
type MotionFlag uint32

const (
	MotionFlag1 MotionFlag = 1 << iota
	MotionFlag2
	PendingDynamic
	PendingKeyframed
	PendingFixed
	DirtyTransform
	DirtyLinearVelocity
	DirtyAngularVelocity
	DirtyMaxVelOrTimeFactor
	DirtyMiscState
	DirtyMass
	DirtyCenterOfMassLocal
	DirtyInertiaLocal
	DirtyDampingOrGravityFactor
	DirtyShape
	DirtyFilter
	DirtyDeactivation
	MotionFlag20000
	// Unfix marks a body that left the fixed state and needs its velocity
	// restored on the next drain.
	Unfix
	MotionFlag80000
)

const pendingMotionTypes = PendingDynamic | PendingKeyframed | PendingFixed

// resyncFlags are raised after every motion type change since a fresh
// solver motion starts from defaults.
const resyncFlags = DirtyMass | DirtyInertiaLocal | DirtyMaxVelOrTimeFactor |
	DirtyDampingOrGravityFactor | DirtyCenterOfMassLocal | DirtyShape

const dirtyFlags = DirtyTransform | DirtyLinearVelocity | DirtyAngularVelocity |
	DirtyMaxVelOrTimeFactor | DirtyMiscState | DirtyMass | DirtyCenterOfMassLocal |
	DirtyInertiaLocal | DirtyDampingOrGravityFactor | DirtyShape | DirtyFilter |
	DirtyDeactivation | Unfix
