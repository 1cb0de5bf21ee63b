package phys

import (
	"sync"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/milk9111/rigidphys/phys/filter"
	"github.com/milk9111/rigidphys/solver"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		cfg, err := LoadConfig()
		require.NoError(t, err)
		assert.Equal(t, DefaultConfig(), cfg)
	})

	t.Run("env overrides", func(t *testing.T) {
		t.Setenv("RIGIDPHYS_STEP_RATE", "60")
		t.Setenv("RIGIDPHYS_STRICT_ASSERTIONS", "true")
		t.Setenv("RIGIDPHYS_LOG_LEVEL", "debug")

		cfg, err := LoadConfig()
		require.NoError(t, err)
		assert.Equal(t, float32(60), cfg.StepRate)
		assert.True(t, cfg.StrictAssertions)
		assert.Equal(t, "debug", cfg.LogLevel)
		assert.Equal(t, DefaultConfig().MaxLinearVelocity, cfg.MaxLinearVelocity)
	})

	t.Run("invalid step rate", func(t *testing.T) {
		t.Setenv("RIGIDPHYS_STEP_RATE", "0")
		_, err := LoadConfig()
		assert.Error(t, err)
	})
}

func TestIsLinearVelocityTooHigh(t *testing.T) {
	cfg := DefaultConfig()
	assert.False(t, cfg.IsLinearVelocityTooHigh(mgl32.Vec3{2000, -2000, 0}))
	assert.True(t, cfg.IsLinearVelocityTooHigh(mgl32.Vec3{0, -2001, 0}))

	cfg.MaxLinearVelocity = 0
	assert.False(t, cfg.IsLinearVelocityTooHigh(mgl32.Vec3{1e9, 0, 0}))
}

func TestContextState(t *testing.T) {
	ctx := NewContext(DefaultConfig(), zerolog.Nop())

	assert.Equal(t, float32(1), ctx.TimeFactor())
	ctx.SetTimeFactor(0.25)
	assert.Equal(t, float32(0.25), ctx.TimeFactor())

	assert.False(t, ctx.IsPaused())
	ctx.SetPaused(true)
	assert.True(t, ctx.IsPaused())

	assert.InDelta(t, 1.0/30, ctx.StepDelta(), 1e-7)
	ctx.Config.StepRate = 0
	assert.Zero(t, ctx.StepDelta())

	assert.Nil(t, ctx.World(filter.LayerTypeEntity))
	assert.Nil(t, ctx.World(filter.LayerTypeInvalid))
	ctx.LockWorld(filter.LayerTypeEntity)
	ctx.UnlockWorld(filter.LayerTypeEntity)
}

func TestRequestQueue(t *testing.T) {
	ctx := newTestContext(t)
	a := newEntity(t, ctx, solver.MotionDynamic)
	b := newEntity(t, ctx, solver.MotionDynamic)
	q := &RequestQueue{}

	q.Push(filter.LayerTypeEntity, a)
	q.Push(filter.LayerTypeEntity, b)
	q.Push(filter.LayerTypeInvalid, a)
	q.Push(filter.LayerTypeSensor, nil)
	assert.Equal(t, 2, q.Len(filter.LayerTypeEntity))
	assert.Zero(t, q.Len(filter.LayerTypeSensor))

	assert.Equal(t, []*RigidBody{a, b}, q.Drain(filter.LayerTypeEntity))
	assert.Empty(t, q.Drain(filter.LayerTypeEntity))

	var nilQueue *RequestQueue
	nilQueue.Push(filter.LayerTypeEntity, a)
	assert.Nil(t, nilQueue.Drain(filter.LayerTypeEntity))
	assert.Zero(t, nilQueue.Len(filter.LayerTypeEntity))
}

func TestProcessRequestsPerLayerType(t *testing.T) {
	ctx := newTestContext(t)
	e := addToWorld(t, newEntity(t, ctx, solver.MotionKeyframed))
	s := addToWorld(t, newSensor(t, ctx))

	e.SetPosition(mgl32.Vec3{1, 0, 0}, false)
	s.SetPosition(mgl32.Vec3{2, 0, 0}, false)

	assert.Equal(t, 1, ctx.ProcessRequests(filter.LayerTypeSensor))
	assert.Equal(t, mgl32.Vec3{2, 0, 0}, s.SolverBody().Motion().Position)
	assert.True(t, e.IsTransformDirty())

	assert.Equal(t, 1, ctx.ProcessRequests(filter.LayerTypeEntity))
	assert.False(t, e.IsTransformDirty())
}

func TestProcessRequestsConcurrentWriters(t *testing.T) {
	ctx := newTestContext(t)
	bodies := make([]*RigidBody, 8)
	for i := range bodies {
		bodies[i] = addToWorld(t, newEntity(t, ctx, solver.MotionKeyframed))
	}

	var wg sync.WaitGroup
	for i, b := range bodies {
		wg.Add(1)
		go func(i int, b *RigidBody) {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				b.SetPosition(mgl32.Vec3{float32(i), float32(j), 0}, false)
				b.SetLinearVelocity(mgl32.Vec3{float32(j), 0, 0}, 0)
			}
		}(i, b)
	}
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 20; i++ {
			ctx.ProcessRequests(filter.LayerTypeEntity)
		}
	}()
	wg.Wait()
	<-done
	ctx.ProcessRequests(filter.LayerTypeEntity)

	for i, b := range bodies {
		assert.Equal(t, mgl32.Vec3{float32(i), 49, 0}, b.SolverBody().Motion().Position)
		assert.Equal(t, mgl32.Vec3{49, 0, 0}, b.SolverBody().Motion().LinearVelocity)
		assert.Zero(t, b.MotionFlags()&dirtyFlags)
	}
}

func TestBodiesTracking(t *testing.T) {
	ctx := newTestContext(t)
	a := newEntity(t, ctx, solver.MotionDynamic)
	b := newSensor(t, ctx)
	require.Len(t, ctx.Bodies(), 2)

	a.Release()
	assert.Equal(t, []*RigidBody{b}, ctx.Bodies())
}
