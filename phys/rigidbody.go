package phys

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/milk9111/rigidphys/common"
	"github.com/milk9111/rigidphys/phys/filter"
	"github.com/milk9111/rigidphys/solver"
	"github.com/rotisserie/eris"
)

var (
	ErrNilContext        = eris.New("phys: context is nil")
	ErrNilBody           = eris.New("phys: solver body is nil")
	ErrNoWorld           = eris.New("phys: no world for layer type")
	ErrLayerTypeMismatch = eris.New("phys: layer type mismatch")
	ErrUnknownMotionType = eris.New("phys: unknown motion type")
)

// Type is the kind of object a body was created for.
type Type int

const (
	TypeGeneric Type = iota
	Type1
	Type2
	TypeTerrainHeightField
	Type4
	TypeCharacterController
	TypeTeraMesh
)

func (t Type) String() string {
	switch t {
	case TypeGeneric:
		return "Generic"
	case TypeTerrainHeightField:
		return "TerrainHeightField"
	case TypeCharacterController:
		return "CharacterController"
	case TypeTeraMesh:
		return "TeraMesh"
	case Type1, Type2, Type4:
		return fmt.Sprintf("Type%d", int(t))
	default:
		return "Invalid"
	}
}

// RigidBody owns the administrative state of one solver body and mediates
// every read and write of it. While the body is in a world its solver state
// is only changed by ApplyPendingUpdates; mutators record dirty bits and
// enqueue the body instead.
type RigidBody struct {
	mu sync.Mutex

	ctx        *Context
	id         uuid.UUID
	name       string
	typ        Type
	layerType  filter.LayerType
	solverBody solver.Body

	attributes  bitset[AttributeFlag]
	motionFlags bitset[MotionFlag]

	accessor MotionAccessor
	entity   *EntityAccessor
	sensor   *SensorAccessor

	// linkTarget publishes entity to linked sensors, which read it without
	// holding this body's lock.
	linkTarget atomic.Pointer[EntityAccessor]

	userTag      UserTag
	groupHandler GroupHandler

	contactMask    uint32
	collisionCount int
	shapeScale     float32
	newShape       solver.Shape
}

// NewRigidBody wraps solverBody. An empty name is replaced by the body ID.
func NewRigidBody(ctx *Context, typ Type, layerType filter.LayerType, solverBody solver.Body, name string, shapeScalable bool) (*RigidBody, error) {
	if ctx == nil {
		return nil, ErrNilContext
	}
	if solverBody == nil {
		return nil, eris.Wrapf(ErrNilBody, "phys: new rigid body %q", name)
	}
	if layerType != filter.LayerTypeEntity && layerType != filter.LayerTypeSensor {
		return nil, eris.Wrapf(ErrLayerTypeMismatch, "phys: new rigid body %q with layer type %s", name, layerType)
	}

	b := &RigidBody{
		ctx:        ctx,
		id:         uuid.New(),
		typ:        typ,
		layerType:  layerType,
		solverBody: solverBody,
		shapeScale: 1,
	}
	if name == "" {
		name = b.id.String()
	}
	b.name = name

	solverBody.SetName(name)
	solverBody.SetUserData(b)
	solverBody.EnableDeactivation(true)
	solverBody.SetAllowedPenetrationDepth(ctx.Config.AllowedPenetrationDepth)

	b.attributes.changeUnderLock(HighQualityCollidable, typ == TypeCharacterController)
	b.attributes.changeUnderLock(IsSensor, layerType == filter.LayerTypeSensor)
	b.attributes.changeUnderLock(ShapeScalable, shapeScalable)
	b.attributes.setUnderLock(UseSystemTimeFactor)
	solverBody.SetQualityType(b.qualityFor(solverBody.Motion().Type))

	ctx.track(b)
	ctx.Logger.Debug().
		Str("component", "rigidbody").
		Str("body", name).
		Stringer("type", typ).
		Stringer("layer_type", layerType).
		Msg("created")
	return b, nil
}

func (b *RigidBody) ID() uuid.UUID                     { return b.id }
func (b *RigidBody) Name() string                      { return b.name }
func (b *RigidBody) Type() Type                        { return b.typ }
func (b *RigidBody) LayerType() filter.LayerType       { return b.layerType }
func (b *RigidBody) SolverBody() solver.Body           { return b.solverBody }
func (b *RigidBody) Context() *Context                 { return b.ctx }
func (b *RigidBody) IsEntity() bool                    { return b.layerType == filter.LayerTypeEntity }
func (b *RigidBody) IsSensor() bool                    { return b.layerType == filter.LayerTypeSensor }
func (b *RigidBody) HasAttribute(f AttributeFlag) bool { return b.attributes.Peek(f) }
func (b *RigidBody) Attributes() AttributeFlag         { return AttributeFlag(b.attributes.Raw()) }
func (b *RigidBody) HasMotionFlag(f MotionFlag) bool   { return b.motionFlags.Peek(f) }
func (b *RigidBody) MotionFlags() MotionFlag           { return MotionFlag(b.motionFlags.Raw()) }

// ChangeAttribute sets or clears caller-owned attribute bits under the body
// lock. Bits kept by the body itself, such as IsSensor, AddedToWorld or the
// fixed and scheduled bits, are refused; use their dedicated setters.
func (b *RigidBody) ChangeAttribute(f AttributeFlag, on bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if f&managedAttributes != 0 {
		b.ctx.assert(false, "attribute is managed by the body", b)
		return
	}
	b.attributes.changeUnderLock(f, on)
}

// linkedEntity returns the entity accessor of b without taking its lock, or
// nil for sensors, uninitialized bodies and a nil b.
func (b *RigidBody) linkedEntity() *EntityAccessor {
	if b == nil {
		return nil
	}
	return b.linkTarget.Load()
}

// Accessor returns the motion accessor, or nil before InitMotionAccessor.
func (b *RigidBody) Accessor() MotionAccessor {
	return b.accessor
}

// Entity returns the entity accessor, or nil for sensors.
func (b *RigidBody) Entity() *EntityAccessor { return b.entity }

// Sensor returns the sensor accessor, or nil for entities.
func (b *RigidBody) Sensor() *SensorAccessor { return b.sensor }

func (b *RigidBody) SetUserTag(tag UserTag) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.userTag = tag
}

func (b *RigidBody) UserTag() UserTag {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.userTag
}

// Lock takes the body lock and, with alsoWorld, the world lock of the body's
// layer type after it.
func (b *RigidBody) Lock(alsoWorld bool) {
	b.mu.Lock()
	if alsoWorld {
		b.ctx.LockWorld(b.layerType)
	}
}

// Unlock releases what Lock(alsoWorld) took, in reverse order.
func (b *RigidBody) Unlock(alsoWorld bool) {
	if alsoWorld {
		b.ctx.UnlockWorld(b.layerType)
	}
	b.mu.Unlock()
}

// ScopedLock locks the body and returns the matching unlock.
//
//	defer b.ScopedLock(true)()
func (b *RigidBody) ScopedLock(alsoWorld bool) func() {
	b.Lock(alsoWorld)
	return func() { b.Unlock(alsoWorld) }
}

// isLockedForStep reports whether the solver body belongs to a running
// simulation, in which case it may only be changed from the request drain.
func (b *RigidBody) isLockedForStep() bool {
	return b.attributes.Peek(AddedToWorld)
}

// SetMotionFlag sets flag and enqueues the body once per request window.
func (b *RigidBody) SetMotionFlag(flag MotionFlag) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.setMotionFlagLocked(flag)
}

func (b *RigidBody) setMotionFlagLocked(flag MotionFlag) {
	b.motionFlags.setUnderLock(flag)
	if b.attributes.Any(RequestsSuppressed | UpdateRequested) {
		return
	}
	b.attributes.setUnderLock(UpdateRequested)
	b.ctx.Queue.Push(b.layerType, b)
}

// AddToWorld inserts the solver body into the context world of the body's
// layer type.
func (b *RigidBody) AddToWorld() error {
	w := b.ctx.World(b.layerType)
	if w == nil {
		return eris.Wrapf(ErrNoWorld, "phys: add %q to %s world", b.name, b.layerType)
	}

	b.Lock(true)
	defer b.Unlock(true)
	if b.attributes.Peek(AddedToWorld) {
		return nil
	}
	if err := w.AddBody(b.solverBody); err != nil {
		return eris.Wrapf(err, "phys: add %q to %s world", b.name, b.layerType)
	}
	b.attributes.setUnderLock(AddedToWorld)
	b.attributes.clearUnderLock(RemovedFromWorld)
	if b.accessor != nil {
		b.accessor.pull()
	}
	if b.ctx.Contacts != nil {
		b.ctx.Contacts.RegisterRigidBody(b)
	}
	return nil
}

// RemoveFromWorld flushes pending changes and takes the solver body out of
// its world.
func (b *RigidBody) RemoveFromWorld() error {
	w := b.ctx.World(b.layerType)
	if w == nil {
		return eris.Wrapf(ErrNoWorld, "phys: remove %q from %s world", b.name, b.layerType)
	}

	b.Lock(true)
	defer b.Unlock(true)
	if !b.attributes.Peek(AddedToWorld) {
		return nil
	}
	b.flushLocked()
	if err := w.RemoveBody(b.solverBody); err != nil {
		return eris.Wrapf(err, "phys: remove %q from %s world", b.name, b.layerType)
	}
	b.attributes.clearUnderLock(AddedToWorld)
	b.attributes.setUnderLock(RemovedFromWorld)
	if b.accessor != nil {
		b.accessor.pull()
	}
	return nil
}

// IsAddedToWorld reports whether the body is in a world.
func (b *RigidBody) IsAddedToWorld() bool {
	return b.attributes.Peek(AddedToWorld)
}

// RequestStepUpdate refreshes the body's time factor from the context and
// asks for a step update. Receiver-only sensors are skipped.
func (b *RigidBody) RequestStepUpdate() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.accessor != nil && !b.attributes.Peek(Frozen) {
		factor := float32(1)
		if b.attributes.Peek(UseSystemTimeFactor) {
			factor = b.ctx.TimeFactor()
		}
		if !common.EqualsEpsilon(b.accessor.TimeFactor(), factor, common.Epsilon) {
			b.accessor.SetTimeFactor(factor)
		}
	}
	if b.sensor != nil && b.sensor.HasFlag(SensorReceiverOnly) {
		return
	}

	switch {
	case b.motionFlags.Peek(MotionFlag2):
		b.motionFlags.clearUnderLock(MotionFlag2)
		b.setMotionFlagLocked(MotionFlag1)
	case !b.motionFlags.Peek(MotionFlag1):
		b.setMotionFlagLocked(MotionFlag1)
	}
}

// ApplyPendingUpdates applies a scheduled motion type change, pushes every
// dirty field into the solver and closes the request window. The caller
// holds Lock(true).
func (b *RigidBody) ApplyPendingUpdates() {
	b.triggerLocked()
	b.flushLocked()
	b.motionFlags.clearUnderLock(MotionFlag1)
	b.attributes.clearUnderLock(UpdateRequested)
}

// flushLocked writes the dirty fields into the solver and clears them.
func (b *RigidBody) flushLocked() {
	dirty := MotionFlag(b.motionFlags.Raw()) & dirtyFlags
	if dirty == 0 {
		return
	}
	if b.accessor != nil {
		b.accessor.flush(dirty)
	}
	if dirty&DirtyShape != 0 {
		b.updateShapeNow()
	}
	if dirty&DirtyDeactivation != 0 {
		b.updateDeactivation()
	}
	b.motionFlags.clearUnderLock(dirty)
}

// SyncFromSolver refreshes the logical motion state after a step. Fields
// still waiting to be flushed keep their logical values.
func (b *RigidBody) SyncFromSolver() {
	b.Lock(true)
	defer b.Unlock(true)
	if b.accessor != nil {
		b.accessor.pull()
	}
}

func (b *RigidBody) onInvalidParameter(code int) {
	b.ctx.Logger.Debug().
		Str("component", "rigidbody").
		Str("body", b.name).
		Int("code", code).
		Msg("invalid parameter")
	if b.userTag != nil {
		b.userTag.OnInvalidParameter(b, code)
	}
}

// InitMotionAccessor creates the accessor of the body's layer type and
// initializes it from param. With initMotion the solver motion is first
// rebuilt from param.
func (b *RigidBody) InitMotionAccessor(param InstanceParam, initMotion bool) {
	b.Lock(true)
	defer b.Unlock(true)
	if initMotion {
		b.createMotionLocked(param.MotionType, param)
	}
	b.initAccessorLocked(param)
}

// InitMotionAccessorForDynamicMotion initializes the accessor from the
// solver motion the body already has.
func (b *RigidBody) InitMotionAccessorForDynamicMotion() {
	b.Lock(true)
	defer b.Unlock(true)
	m := b.solverBody.Motion()
	param := DefaultInstanceParam()
	param.MotionType = m.Type
	param.Mass = m.Mass
	param.Inertia = m.InertiaLocal
	param.Inertia = param.clampedInertia()
	param.CenterOfMass = m.CenterOfMassLocal
	param.LinearDamping = m.LinearDamping
	param.AngularDamping = m.AngularDamping
	param.GravityFactor = m.GravityFactor
	param.TimeFactor = m.State.TimeFactor
	param.MaxLinearVelocity = m.State.MaxLinearVelocity
	param.MaxAngularVelocity = m.State.MaxAngularVelocity
	b.initAccessorLocked(param)
}

func (b *RigidBody) initAccessorLocked(param InstanceParam) {
	if b.accessor == nil {
		if b.layerType == filter.LayerTypeSensor {
			b.sensor = newSensorAccessor(b)
			b.accessor = b.sensor
		} else {
			b.entity = newEntityAccessor(b)
			b.accessor = b.entity
			b.linkTarget.Store(b.entity)
		}
	}
	b.accessor.init(param)
	b.solverBody.SetQualityType(b.qualityFor(b.solverBody.Motion().Type))
}

// CreateMotion replaces the solver motion with a fresh motion of motionType
// built from param, keeping the current position and rotation.
func (b *RigidBody) CreateMotion(motionType solver.MotionType, param InstanceParam) {
	b.Lock(true)
	defer b.Unlock(true)
	b.createMotionLocked(motionType, param)
}

func (b *RigidBody) createMotionLocked(motionType solver.MotionType, param InstanceParam) {
	cur := b.solverBody.Motion()
	b.solverBody.SetMotion(buildMotion(motionType, param, cur.Position, cur.Rotation))
	if b.accessor != nil {
		b.accessor.pull()
	}
}

// Release detaches the body from its world and, except for bodies whose
// solver object outlives them, from the solver body's name and user data.
func (b *RigidBody) Release() {
	if b.IsAddedToWorld() {
		if err := b.RemoveFromWorld(); err != nil {
			b.ctx.Logger.Warn().Err(err).Str("component", "rigidbody").Str("body", b.name).Msg("release")
		}
	}

	b.mu.Lock()
	if b.entity != nil {
		for _, s := range b.entity.deregisterAll() {
			if s.sensor != nil && s.mu.TryLock() {
				if s.sensor.LinkedRigidBody() == b {
					s.sensor.setLinked(nil)
				}
				s.mu.Unlock()
			}
		}
	}
	if b.sensor != nil {
		if e := b.sensor.LinkedRigidBody().linkedEntity(); e != nil {
			e.deregisterLinked(b)
		}
		b.sensor.setLinked(nil)
	}
	switch b.typ {
	case TypeGeneric, TypeTerrainHeightField, TypeCharacterController:
	default:
		b.solverBody.SetName("")
		b.solverBody.SetUserData(nil)
		b.solverBody.Release()
	}
	b.mu.Unlock()

	b.ctx.untrack(b)
}
