package phys

import (
	"sync"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/milk9111/rigidphys/phys/filter"
	"github.com/milk9111/rigidphys/solver"
	"github.com/milk9111/rigidphys/solver/cpsolver"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRigidBodyErrors(t *testing.T) {
	ctx := newTestContext(t)
	sb := cpsolver.NewBody(cpsolver.BodyDef{Shape: unitBox()})

	_, err := NewRigidBody(nil, TypeGeneric, filter.LayerTypeEntity, sb, "a", false)
	assert.ErrorIs(t, err, ErrNilContext)

	_, err = NewRigidBody(ctx, TypeGeneric, filter.LayerTypeEntity, nil, "a", false)
	assert.ErrorIs(t, err, ErrNilBody)

	_, err = NewRigidBody(ctx, TypeGeneric, filter.LayerTypeInvalid, sb, "a", false)
	assert.ErrorIs(t, err, ErrLayerTypeMismatch)
	assert.Empty(t, ctx.Bodies())
}

func TestNewRigidBody(t *testing.T) {
	ctx := newTestContext(t)
	b := newEntity(t, ctx, solver.MotionDynamic)
	sb := b.SolverBody().(*cpsolver.Body)

	assert.Equal(t, b.ID().String(), b.Name())
	assert.Equal(t, b.Name(), sb.Name())
	assert.Same(t, b, sb.UserData())
	assert.True(t, sb.IsDeactivationEnabled())
	assert.Equal(t, ctx.Config.AllowedPenetrationDepth, sb.AllowedPenetrationDepth())
	assert.True(t, b.HasAttribute(UseSystemTimeFactor))
	assert.False(t, b.HasAttribute(IsSensor))
	assert.False(t, b.HasAttribute(HighQualityCollidable))
	assert.Equal(t, AccessorEntity, b.Accessor().Kind())
	assert.NotNil(t, b.Entity())
	assert.Nil(t, b.Sensor())
	assert.Contains(t, ctx.Bodies(), b)

	s := newSensor(t, ctx)
	assert.True(t, s.HasAttribute(IsSensor))
	assert.True(t, s.IsSensor())
	assert.Equal(t, AccessorSensor, s.Accessor().Kind())
	assert.Nil(t, s.Entity())

	cc := newTestBody(t, ctx, bodyOpts{typ: TypeCharacterController, layerType: filter.LayerTypeEntity, motion: solver.MotionDynamic})
	assert.True(t, cc.HasAttribute(HighQualityCollidable))
	assert.Equal(t, "CharacterController", cc.Type().String())
}

func TestSetMotionFlagEnqueuesOnce(t *testing.T) {
	ctx := newTestContext(t)
	b := newEntity(t, ctx, solver.MotionDynamic)

	b.SetMotionFlag(DirtyMass)
	b.SetMotionFlag(DirtyInertiaLocal)
	assert.True(t, b.HasMotionFlag(DirtyMass|DirtyInertiaLocal))
	assert.True(t, b.HasAttribute(UpdateRequested))
	assert.Equal(t, 1, ctx.Queue.Len(filter.LayerTypeEntity))

	s := newSensor(t, ctx)
	s.ChangeAttribute(RequestsSuppressed, true)
	s.SetMotionFlag(DirtyTransform)
	assert.True(t, s.HasMotionFlag(DirtyTransform))
	assert.Zero(t, ctx.Queue.Len(filter.LayerTypeSensor))
}

func TestChangeAttributeRefusesManagedBits(t *testing.T) {
	ctx := newTestContext(t)
	b := newEntity(t, ctx, solver.MotionDynamic)

	for _, f := range []AttributeFlag{IsSensor, AddedToWorld, UpdateRequested, InContact, Fixed, ScheduledDynamic} {
		b.ChangeAttribute(f, true)
		assert.False(t, b.HasAttribute(f), "%#x", uint32(f))
	}
	assert.True(t, b.IsEntity())

	b.ChangeMotionType(solver.MotionFixed)
	assert.Equal(t, solver.MotionFixed, b.MotionType())
	assert.Zero(t, pendingCount(b))

	b.ChangeAttribute(ImpulseBlocked, true)
	assert.True(t, b.HasAttribute(ImpulseBlocked))

	strict := DefaultConfig()
	strict.StrictAssertions = true
	sb := newEntity(t, NewContext(strict, zerolog.Nop()), solver.MotionDynamic)
	assert.Panics(t, func() { sb.ChangeAttribute(AddedToWorld, true) })
}

func TestSetMotionFlagEnqueuesOnceConcurrently(t *testing.T) {
	ctx := newTestContext(t)
	b := newEntity(t, ctx, solver.MotionDynamic)
	flags := []MotionFlag{DirtyMass, DirtyTransform, DirtyShape, DirtyFilter}

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			b.SetMotionFlag(flags[i%len(flags)])
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1, ctx.Queue.Len(filter.LayerTypeEntity))
	for _, f := range flags {
		assert.True(t, b.HasMotionFlag(f))
	}
}

func TestAddAndRemoveFromWorld(t *testing.T) {
	ctx := newTestContext(t)
	b := newEntity(t, ctx, solver.MotionKeyframed)

	require.NoError(t, b.AddToWorld())
	require.NoError(t, b.AddToWorld())
	assert.True(t, b.IsAddedToWorld())
	assert.NotNil(t, b.SolverBody().World())

	pos := mgl32.Vec3{0, 4, 0}
	b.SetPosition(pos, false)
	require.NoError(t, b.RemoveFromWorld())

	assert.False(t, b.IsAddedToWorld())
	assert.True(t, b.HasAttribute(RemovedFromWorld))
	assert.Nil(t, b.SolverBody().World())
	assert.False(t, b.IsTransformDirty())
	assert.Equal(t, pos, b.SolverBody().Motion().Position)
	require.NoError(t, b.RemoveFromWorld())

	b.SetPosition(mgl32.Vec3{1, 1, 0}, false)
	assert.False(t, b.IsTransformDirty(), "detached bodies write through")
	assert.Equal(t, mgl32.Vec3{1, 1, 0}, b.SolverBody().Motion().Position)
}

func TestAddToWorldWithoutWorld(t *testing.T) {
	ctx := NewContext(DefaultConfig(), zerolog.Nop())
	b := newEntity(t, ctx, solver.MotionDynamic)

	assert.ErrorIs(t, b.AddToWorld(), ErrNoWorld)
	assert.ErrorIs(t, b.RemoveFromWorld(), ErrNoWorld)
}

func TestRequestStepUpdate(t *testing.T) {
	ctx := newTestContext(t)
	b := addToWorld(t, newEntity(t, ctx, solver.MotionDynamic))
	ctx.SetTimeFactor(0.5)

	b.RequestStepUpdate()
	assert.Equal(t, float32(0.5), b.TimeFactor())
	assert.True(t, b.HasMotionFlag(MotionFlag1))
	assert.Equal(t, 1, ctx.Queue.Len(filter.LayerTypeEntity))

	ctx.ProcessRequests(filter.LayerTypeEntity)
	assert.Equal(t, float32(0.5), b.SolverBody().Motion().State.TimeFactor)
	assert.False(t, b.HasMotionFlag(MotionFlag1))

	b.SetMotionFlag(MotionFlag2)
	b.RequestStepUpdate()
	assert.False(t, b.HasMotionFlag(MotionFlag2))
	assert.True(t, b.HasMotionFlag(MotionFlag1))

	ctx.ProcessRequests(filter.LayerTypeEntity)
	b.ChangeAttribute(UseSystemTimeFactor, false)
	b.RequestStepUpdate()
	assert.Equal(t, float32(1), b.TimeFactor())
}

func TestRequestStepUpdateKeepsFrozenTimeFactor(t *testing.T) {
	ctx := newTestContext(t)
	b := newEntity(t, ctx, solver.MotionDynamic)
	b.Freeze(true, false, false)
	ctx.SetTimeFactor(0.5)

	b.RequestStepUpdate()
	assert.Zero(t, b.TimeFactor())
}

func TestRequestStepUpdateSkipsReceiverOnlySensors(t *testing.T) {
	ctx := newTestContext(t)
	s := addToWorld(t, newSensor(t, ctx))
	s.Sensor().ChangeFlag(SensorReceiverOnly, true)

	s.RequestStepUpdate()
	assert.False(t, s.HasMotionFlag(MotionFlag1))
	assert.Zero(t, ctx.Queue.Len(filter.LayerTypeSensor))

	s.Sensor().ChangeFlag(SensorReceiverOnly, false)
	s.RequestStepUpdate()
	assert.True(t, s.HasMotionFlag(MotionFlag1))
	assert.Equal(t, 1, ctx.Queue.Len(filter.LayerTypeSensor))
}

func TestApplyPendingUpdatesFlushesEverything(t *testing.T) {
	ctx := newTestContext(t)
	b := addToWorld(t, newEntity(t, ctx, solver.MotionDynamic))

	b.SetMass(4)
	b.SetLinearDamping(0.5)
	b.SetAngularVelocity(mgl32.Vec3{0, 0, 1}, 0)
	b.ChangeMotionType(solver.MotionKeyframed)
	require.Equal(t, solver.MotionDynamic, b.SolverBody().Motion().Type)

	require.Equal(t, 1, ctx.ProcessRequests(filter.LayerTypeEntity))

	m := b.SolverBody().Motion()
	assert.Equal(t, solver.MotionKeyframed, m.Type)
	assert.Equal(t, float32(4), m.Mass)
	assert.Equal(t, float32(0.5), m.LinearDamping)
	assert.Equal(t, mgl32.Vec3{0, 0, 1}, m.AngularVelocity)
	assert.Zero(t, b.MotionFlags()&dirtyFlags)
	assert.Zero(t, b.MotionFlags()&pendingMotionTypes)
	assert.False(t, b.HasAttribute(UpdateRequested))
}

func TestStepKeepsPendingWrites(t *testing.T) {
	ctx := newTestContext(t)
	b := addToWorld(t, newEntity(t, ctx, solver.MotionDynamic))
	w := ctx.World(filter.LayerTypeEntity)
	target := mgl32.Vec3{10, 10, 0}

	b.SetPosition(target, false)
	ctx.LockWorld(filter.LayerTypeEntity)
	w.Step(ctx.StepDelta())
	ctx.UnlockWorld(filter.LayerTypeEntity)
	b.SyncFromSolver()

	assert.Equal(t, target, b.Position())
	ctx.ProcessRequests(filter.LayerTypeEntity)
	assert.Equal(t, target, b.SolverBody().Motion().Position)
}

func TestSyncFromSolverAfterStep(t *testing.T) {
	ctx := newTestContext(t)
	b := addToWorld(t, newEntity(t, ctx, solver.MotionDynamic))
	w := ctx.World(filter.LayerTypeEntity)

	ctx.LockWorld(filter.LayerTypeEntity)
	for i := 0; i < 10; i++ {
		w.Step(ctx.StepDelta())
	}
	ctx.UnlockWorld(filter.LayerTypeEntity)
	b.SyncFromSolver()

	assert.Less(t, b.Position().Y(), float32(0))
	assert.Less(t, b.LinearVelocity().Y(), float32(0))
	assert.Equal(t, b.SolverBody().Motion().Position, b.Position())
}

func TestScopedLock(t *testing.T) {
	ctx := newTestContext(t)
	b := newEntity(t, ctx, solver.MotionDynamic)

	unlock := b.ScopedLock(false)
	assert.False(t, b.mu.TryLock())
	unlock()
	require.True(t, b.mu.TryLock())
	b.mu.Unlock()
}

func TestCreateMotionKeepsPosition(t *testing.T) {
	ctx := newTestContext(t)
	b := newEntity(t, ctx, solver.MotionDynamic)
	b.SetPosition(mgl32.Vec3{2, 3, 0}, false)

	p := DefaultInstanceParam()
	p.Mass = 6
	b.CreateMotion(solver.MotionDynamic, p)

	assert.Equal(t, mgl32.Vec3{2, 3, 0}, b.Position())
	assert.Equal(t, float32(6), b.Mass())
}

func TestRelease(t *testing.T) {
	ctx := newTestContext(t)

	generic := addToWorld(t, newEntity(t, ctx, solver.MotionDynamic))
	generic.Release()
	assert.False(t, generic.IsAddedToWorld())
	assert.Equal(t, generic.Name(), generic.SolverBody().Name())
	assert.NotContains(t, ctx.Bodies(), generic)

	other := newTestBody(t, ctx, bodyOpts{typ: Type1, layerType: filter.LayerTypeEntity, motion: solver.MotionDynamic})
	other.Release()
	assert.Empty(t, other.SolverBody().Name())
	assert.Nil(t, other.SolverBody().(*cpsolver.Body).UserData())
	assert.Nil(t, other.SolverBody().Shape())
	assert.NotNil(t, generic.SolverBody().Shape())
}

func TestTypeString(t *testing.T) {
	assert.Equal(t, "Generic", TypeGeneric.String())
	assert.Equal(t, "Type2", Type2.String())
	assert.Equal(t, "TeraMesh", TypeTeraMesh.String())
	assert.Equal(t, "Invalid", Type(42).String())
}
