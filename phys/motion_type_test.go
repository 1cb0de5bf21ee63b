package phys

import (
	"math/bits"
	"sync"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/milk9111/rigidphys/phys/filter"
	"github.com/milk9111/rigidphys/solver"
	"github.com/milk9111/rigidphys/solver/cpsolver"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pendingCount(b *RigidBody) int {
	return bits.OnesCount32(uint32(b.MotionFlags() & pendingMotionTypes))
}

func TestChangeMotionTypeDetachedAppliesImmediately(t *testing.T) {
	ctx := newTestContext(t)
	b := newEntity(t, ctx, solver.MotionDynamic)

	b.ChangeMotionType(solver.MotionFixed)

	assert.Equal(t, solver.MotionFixed, b.EffectiveMotionType())
	assert.Equal(t, solver.MotionFixed, b.SolverBody().Motion().Type)
	assert.Equal(t, 0, pendingCount(b))
	assert.Equal(t, resyncFlags, b.MotionFlags()&resyncFlags)
	assert.True(t, b.HasMotionFlag(DirtyMiscState))
	assert.Equal(t, solver.QualityFixed, b.QualityType())
}

func TestChangeMotionTypeDeferredInWorld(t *testing.T) {
	ctx := newTestContext(t)
	b := addToWorld(t, newEntity(t, ctx, solver.MotionDynamic))

	b.ChangeMotionType(solver.MotionFixed)

	assert.True(t, b.HasMotionFlag(PendingFixed))
	assert.Equal(t, solver.MotionDynamic, b.SolverBody().Motion().Type)
	assert.Equal(t, solver.MotionDynamic, b.EffectiveMotionType())
	assert.Equal(t, solver.MotionFixed, b.MotionType())
	assert.Equal(t, 1, ctx.Queue.Len(filter.LayerTypeEntity))

	require.True(t, b.TriggerScheduledMotionTypeChange())

	assert.Equal(t, solver.MotionFixed, b.SolverBody().Motion().Type)
	assert.Equal(t, solver.MotionFixed, b.EffectiveMotionType())
	assert.Equal(t, 0, pendingCount(b))
	assert.Equal(t, resyncFlags, b.MotionFlags()&resyncFlags)
	assert.False(t, b.TriggerScheduledMotionTypeChange())
}

func TestChangeMotionTypeIsIdempotent(t *testing.T) {
	ctx := newTestContext(t)

	t.Run("in world", func(t *testing.T) {
		b := addToWorld(t, newEntity(t, ctx, solver.MotionDynamic))
		b.ChangeMotionType(solver.MotionKeyframed)
		flags := b.MotionFlags()
		b.ChangeMotionType(solver.MotionKeyframed)
		assert.Equal(t, flags, b.MotionFlags())
		assert.True(t, b.HasMotionFlag(PendingKeyframed))
	})

	t.Run("detached", func(t *testing.T) {
		b := newEntity(t, ctx, solver.MotionDynamic)
		b.ChangeMotionType(solver.MotionKeyframed)
		motion := b.SolverBody().Motion()
		flags := b.MotionFlags()
		b.ChangeMotionType(solver.MotionKeyframed)
		assert.Equal(t, motion, b.SolverBody().Motion())
		assert.Equal(t, flags, b.MotionFlags())
	})

	t.Run("back to effective type", func(t *testing.T) {
		b := addToWorld(t, newEntity(t, ctx, solver.MotionDynamic))
		b.ChangeMotionType(solver.MotionFixed)
		b.ChangeMotionType(solver.MotionDynamic)
		assert.True(t, b.HasMotionFlag(PendingDynamic))
		assert.Equal(t, 1, pendingCount(b))

		b.TriggerScheduledMotionTypeChange()
		assert.Equal(t, solver.MotionDynamic, b.EffectiveMotionType())
		assert.False(t, b.HasMotionFlag(DirtyShape))
	})
}

func TestChangeMotionTypeRejectsInvalidTargets(t *testing.T) {
	ctx := newTestContext(t)
	b := addToWorld(t, newEntity(t, ctx, solver.MotionDynamic))

	b.ChangeMotionType(solver.MotionUnknown)
	b.ChangeMotionType(solver.MotionInvalid)
	assert.Equal(t, 0, pendingCount(b))

	ctx.Config.StrictAssertions = true
	assert.Panics(t, func() { b.ChangeMotionType(solver.MotionInvalid) })
}

func TestAtMostOnePendingMotionType(t *testing.T) {
	ctx := newTestContext(t)
	b := addToWorld(t, newEntity(t, ctx, solver.MotionDynamic))

	for _, mt := range []solver.MotionType{
		solver.MotionFixed, solver.MotionKeyframed, solver.MotionDynamic,
		solver.MotionKeyframed, solver.MotionFixed, solver.MotionFixed,
	} {
		b.ChangeMotionType(mt)
		assert.LessOrEqual(t, pendingCount(b), 1)
		assert.Equal(t, mt, b.MotionType())
	}
}

func TestAtMostOnePendingMotionTypeConcurrently(t *testing.T) {
	ctx := newTestContext(t)
	b := addToWorld(t, newEntity(t, ctx, solver.MotionDynamic))
	types := []solver.MotionType{solver.MotionFixed, solver.MotionKeyframed, solver.MotionDynamic}

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				b.ChangeMotionType(types[(g+i)%len(types)])
			}
		}(g)
	}

	done := make(chan struct{})
	violations := 0
	go func() {
		defer close(done)
		for i := 0; i < 500; i++ {
			b.mu.Lock()
			if pendingCount(b) > 1 {
				violations++
			}
			b.mu.Unlock()
		}
	}()

	wg.Wait()
	<-done
	assert.Zero(t, violations)
	assert.LessOrEqual(t, pendingCount(b), 1)
	assert.Equal(t, 1, ctx.Queue.Len(filter.LayerTypeEntity))
}

func TestTriggerDrainsInPriorityOrder(t *testing.T) {
	ctx := newTestContext(t)
	b := addToWorld(t, newEntity(t, ctx, solver.MotionDynamic))

	b.SetMotionFlag(PendingDynamic | PendingFixed | PendingKeyframed)
	assert.Equal(t, solver.MotionKeyframed, b.MotionType())

	require.True(t, b.TriggerScheduledMotionTypeChange())
	assert.Equal(t, solver.MotionKeyframed, b.EffectiveMotionType())
	assert.Equal(t, 0, pendingCount(b))
}

func TestSensorCannotScheduleDynamic(t *testing.T) {
	ctx := newTestContext(t)
	s := addToWorld(t, newSensor(t, ctx))

	s.ChangeMotionType(solver.MotionDynamic)
	assert.Equal(t, 0, pendingCount(s))
	assert.Equal(t, solver.MotionKeyframed, s.MotionType())

	s.ChangeMotionType(solver.MotionFixed)
	assert.True(t, s.HasMotionFlag(PendingFixed))
}

func TestDetachedSensorCannotBecomeDynamic(t *testing.T) {
	ctx := newTestContext(t)
	s := newSensor(t, ctx)

	s.ChangeMotionType(solver.MotionDynamic)
	assert.Equal(t, solver.MotionKeyframed, s.MotionType())
	assert.Equal(t, solver.MotionKeyframed, s.SolverBody().Motion().Type)
	assert.Equal(t, 0, pendingCount(s))
}

func TestSensorSettlesAtRestAfterTypeChange(t *testing.T) {
	ctx := newTestContext(t)

	s := newSensor(t, ctx)
	s.SetLinearVelocity(mgl32.Vec3{1, 0, 0}, 0)
	s.ChangeMotionType(solver.MotionFixed)
	assert.Equal(t, mgl32.Vec3{}, s.LinearVelocity())
	assert.True(t, s.HasMotionFlag(DirtyMiscState))

	r := newSensor(t, ctx)
	r.Sensor().ChangeFlag(SensorReceiverOnly, true)
	r.ChangeMotionType(solver.MotionFixed)
	assert.False(t, r.HasMotionFlag(DirtyMiscState))
}

func TestQualityType(t *testing.T) {
	tests := []struct {
		name      string
		typ       Type
		layerType filter.LayerType
		motion    solver.MotionType
		high      bool
		want      solver.QualityType
	}{
		{"dynamic", TypeGeneric, filter.LayerTypeEntity, solver.MotionDynamic, false, solver.QualityDebrisSimpleTOI},
		{"dynamic high", TypeGeneric, filter.LayerTypeEntity, solver.MotionDynamic, true, solver.QualityBullet},
		{"keyframed", TypeGeneric, filter.LayerTypeEntity, solver.MotionKeyframed, false, solver.QualityKeyframedReporting},
		{"keyframed high", TypeGeneric, filter.LayerTypeEntity, solver.MotionKeyframed, true, solver.QualityMoving},
		{"sensor keyframed high", TypeGeneric, filter.LayerTypeSensor, solver.MotionKeyframed, true, solver.QualityKeyframedReporting},
		{"fixed high", TypeGeneric, filter.LayerTypeEntity, solver.MotionFixed, true, solver.QualityFixed},
		{"character controller", TypeCharacterController, filter.LayerTypeEntity, solver.MotionDynamic, false, solver.QualityCharacter},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := newTestContext(t)
			b := newTestBody(t, ctx, bodyOpts{typ: tt.typ, layerType: tt.layerType, motion: tt.motion})
			b.UpdateCollidableQualityType(tt.high)
			assert.Equal(t, tt.want, b.QualityType())
		})
	}
}

func TestQualityFollowsMotionType(t *testing.T) {
	ctx := newTestContext(t)
	b := newEntity(t, ctx, solver.MotionDynamic)
	b.UpdateCollidableQualityType(true)

	b.ChangeMotionType(solver.MotionKeyframed)
	assert.Equal(t, solver.QualityMoving, b.QualityType())
	b.ChangeMotionType(solver.MotionFixed)
	assert.Equal(t, solver.QualityFixed, b.QualityType())
	b.ChangeMotionType(solver.MotionDynamic)
	assert.Equal(t, solver.QualityBullet, b.QualityType())
}

func TestReplaceMotionObjectCarriesVelocity(t *testing.T) {
	ctx := newTestContext(t)
	b := newEntity(t, ctx, solver.MotionDynamic)
	v := mgl32.Vec3{1, 2, 0}
	require.True(t, b.SetLinearVelocity(v, 0))

	b.ChangeMotionType(solver.MotionKeyframed)
	assert.Equal(t, v, b.LinearVelocity())
	assert.Equal(t, v, b.SolverBody().Motion().LinearVelocity)

	b.ChangeMotionType(solver.MotionFixed)
	assert.Equal(t, mgl32.Vec3{}, b.SolverBody().Motion().LinearVelocity)
	assert.Equal(t, mgl32.Vec3{}, b.LinearVelocity())
}

func TestReplaceMotionObjectKeepsMassProperties(t *testing.T) {
	ctx := newTestContext(t)
	b := newEntity(t, ctx, solver.MotionDynamic)
	b.SetMass(3)
	b.SetGravityFactor(0.5)

	b.ChangeMotionType(solver.MotionKeyframed)
	b.ChangeMotionType(solver.MotionDynamic)

	m := b.SolverBody().Motion()
	assert.Equal(t, float32(3), m.Mass)
	assert.Equal(t, float32(0.5), m.GravityFactor)
	assert.Equal(t, float32(3), b.Mass())
}

func TestFixedTargetFreezesSweptTransform(t *testing.T) {
	t.Run("in world", func(t *testing.T) {
		ctx := newTestContext(t)
		b := addToWorld(t, newEntity(t, ctx, solver.MotionDynamic))
		w := ctx.World(filter.LayerTypeEntity)

		ctx.LockWorld(filter.LayerTypeEntity)
		for i := 0; i < 3; i++ {
			w.Step(ctx.StepDelta())
		}
		ctx.UnlockWorld(filter.LayerTypeEntity)
		b.SyncFromSolver()

		b.ChangeMotionType(solver.MotionFixed)
		require.True(t, b.TriggerScheduledMotionTypeChange())

		swept := b.SolverBody().Motion().State.Swept
		assert.InDelta(t, w.CurrentTime(), swept.BaseTime, 1e-6)
		assert.Equal(t, swept.Position0, swept.Position1)
		assert.Zero(t, swept.InvDeltaTime)
	})

	t.Run("detached", func(t *testing.T) {
		ctx := newTestContext(t)
		m := solver.NewMotion(solver.MotionDynamic, mgl32.Vec3{}, mgl32.QuatIdent())
		m.State.Swept.BaseTime = 1
		m.State.Swept.InvDeltaTime = 30
		sb := cpsolver.NewBody(cpsolver.BodyDef{
			Shape:      unitBox(),
			Motion:     m,
			FilterInfo: filter.MakeEntity(filter.EntityObject, filter.HitAll),
		})
		b, err := NewRigidBody(ctx, TypeGeneric, filter.LayerTypeEntity, sb, "swept", false)
		require.NoError(t, err)
		b.InitMotionAccessorForDynamicMotion()

		b.ChangeMotionType(solver.MotionFixed)
		assert.InDelta(t, 1+1.0/30, b.SolverBody().Motion().State.Swept.BaseTime, 1e-5)
	})
}

func TestFreezeSavesAndRestoresVelocities(t *testing.T) {
	ctx := newTestContext(t)
	b := newEntity(t, ctx, solver.MotionDynamic)
	v := mgl32.Vec3{3, 0, 0}
	require.True(t, b.SetLinearVelocity(v, 0))

	b.Freeze(true, true, false)
	assert.True(t, b.IsFrozen())
	assert.Equal(t, mgl32.Vec3{}, b.LinearVelocity())
	assert.Zero(t, b.TimeFactor())
	assert.False(t, b.SetTimeFactor(2))

	b.Freeze(false, false, false)
	assert.False(t, b.IsFrozen())
	assert.Equal(t, v, b.LinearVelocity())
	assert.Equal(t, float32(1), b.TimeFactor())
}

func TestFreezeWithoutPreservingVelocities(t *testing.T) {
	ctx := newTestContext(t)
	b := newEntity(t, ctx, solver.MotionDynamic)
	b.SetLinearVelocity(mgl32.Vec3{3, 0, 0}, 0)

	b.Freeze(true, false, false)
	b.Freeze(false, false, false)
	assert.Equal(t, mgl32.Vec3{}, b.LinearVelocity())
}

func TestFreezeAgainZeroesVelocities(t *testing.T) {
	ctx := newTestContext(t)
	b := newEntity(t, ctx, solver.MotionDynamic)
	b.Freeze(true, true, false)
	b.SetLinearVelocity(mgl32.Vec3{0, 5, 0}, 0)

	b.Freeze(true, true, false)
	assert.Equal(t, mgl32.Vec3{}, b.LinearVelocity())
}

func TestResetFrozenState(t *testing.T) {
	ctx := newTestContext(t)
	b := newEntity(t, ctx, solver.MotionDynamic)
	b.SetLinearVelocity(mgl32.Vec3{3, 0, 0}, 0)

	b.Freeze(true, true, false)
	b.ResetFrozenState()
	b.Freeze(false, true, false)
	assert.Equal(t, mgl32.Vec3{}, b.LinearVelocity())
	assert.Equal(t, float32(1), b.TimeFactor())
}

func TestFreezeMaxImpulse(t *testing.T) {
	ctx := newTestContext(t)
	b := newEntity(t, ctx, solver.MotionDynamic)
	b.SetMaxImpulse(5)

	b.Freeze(true, false, false)
	assert.Zero(t, b.MaxImpulse())
	b.Freeze(false, false, false)
	assert.Equal(t, float32(5), b.MaxImpulse())

	b.Freeze(true, false, true)
	assert.Equal(t, float32(5), b.MaxImpulse())
	b.Freeze(false, false, false)
	assert.Equal(t, float32(5), b.MaxImpulse())
}

func TestSetFixed(t *testing.T) {
	ctx := newTestContext(t)
	b := newEntity(t, ctx, solver.MotionDynamic)

	b.SetFixed(true, false)
	assert.True(t, b.HasAttribute(Fixed))
	assert.True(t, b.IsFrozen())

	b.SetFixed(false, false)
	assert.False(t, b.HasAttribute(Fixed))
	assert.False(t, b.IsFrozen())
	assert.True(t, b.HasMotionFlag(Unfix))
	assert.True(t, b.HasMotionFlag(DirtyLinearVelocity))
}

func TestSetFixedUnchangedIsNoOp(t *testing.T) {
	ctx := newTestContext(t)
	b := addToWorld(t, newEntity(t, ctx, solver.MotionDynamic))
	queued := ctx.Queue.Len(filter.LayerTypeEntity)
	flags := b.MotionFlags()

	b.SetFixed(false, false)
	b.SetFixedAndPreserveImpulse(false, true)
	assert.False(t, b.HasMotionFlag(Unfix))
	assert.Equal(t, flags, b.MotionFlags())
	assert.Equal(t, queued, ctx.Queue.Len(filter.LayerTypeEntity))
}

func TestSetFixedAndPreserveImpulse(t *testing.T) {
	ctx := newTestContext(t)
	b := newEntity(t, ctx, solver.MotionDynamic)
	b.SetMaxImpulse(4)

	b.SetFixedAndPreserveImpulse(true, false)
	assert.True(t, b.IsFrozen())
	assert.Equal(t, float32(4), b.MaxImpulse())

	b.SetFixed(true, false)
	b.SetFixed(false, false)
	assert.True(t, b.IsFrozen(), "still fixed with impulse preserved")

	b.SetFixedAndPreserveImpulse(false, true)
	assert.False(t, b.IsFrozen())
	assert.True(t, b.HasMotionFlag(DirtyLinearVelocity))
}

func TestMotionTypeRelatedFlags(t *testing.T) {
	ctx := newTestContext(t)
	b := newEntity(t, ctx, solver.MotionKeyframed)

	b.UpdateMotionTypeRelatedFlags()
	assert.True(t, b.HasAttribute(ScheduledKeyframed))

	b.ChangeMotionType(solver.MotionFixed)
	b.UpdateMotionTypeRelatedFlags()
	assert.True(t, b.HasAttribute(ScheduledKeyframed))
	assert.False(t, b.HasAttribute(ScheduledFixed))

	b.ClearMotionTypeRelatedFlags()
	b.UpdateMotionTypeRelatedFlags()
	assert.False(t, b.HasAttribute(ScheduledKeyframed))
	assert.True(t, b.HasAttribute(ScheduledFixed))
}
