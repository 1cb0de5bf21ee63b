package phys

import (
	"sync"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/milk9111/rigidphys/phys/filter"
	"github.com/milk9111/rigidphys/solver"
	"github.com/milk9111/rigidphys/solver/cpsolver"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func newTestContext(t *testing.T) *Context {
	t.Helper()
	ctx := NewContext(DefaultConfig(), zerolog.Nop())
	ctx.SetWorld(filter.LayerTypeEntity, cpsolver.NewWorld())
	ctx.SetWorld(filter.LayerTypeSensor, cpsolver.NewWorld())
	return ctx
}

func unitBox() solver.Shape {
	return &cpsolver.Box{Width: 1, Height: 1, Depth: 1}
}

type bodyOpts struct {
	typ       Type
	layerType filter.LayerType
	motion    solver.MotionType
	shape     solver.Shape
	scalable  bool
}

func newTestBody(t *testing.T, ctx *Context, o bodyOpts) *RigidBody {
	t.Helper()
	if o.shape == nil {
		o.shape = unitBox()
	}
	info := filter.MakeEntity(filter.EntityObject, filter.HitAll)
	sensor := o.layerType == filter.LayerTypeSensor
	if sensor {
		info = filter.MakeReceiver(filter.SensorObject)
	}
	sb := cpsolver.NewBody(cpsolver.BodyDef{
		Shape:      o.shape,
		Motion:     solver.NewMotion(o.motion, mgl32.Vec3{}, mgl32.QuatIdent()),
		Sensor:     sensor,
		FilterInfo: info,
	})
	b, err := NewRigidBody(ctx, o.typ, o.layerType, sb, "", o.scalable)
	require.NoError(t, err)

	p := DefaultInstanceParam()
	p.MotionType = o.motion
	b.InitMotionAccessor(p, true)
	return b
}

func newEntity(t *testing.T, ctx *Context, mt solver.MotionType) *RigidBody {
	t.Helper()
	return newTestBody(t, ctx, bodyOpts{layerType: filter.LayerTypeEntity, motion: mt})
}

func newSensor(t *testing.T, ctx *Context) *RigidBody {
	t.Helper()
	return newTestBody(t, ctx, bodyOpts{layerType: filter.LayerTypeSensor, motion: solver.MotionKeyframed})
}

func addToWorld(t *testing.T, b *RigidBody) *RigidBody {
	t.Helper()
	require.NoError(t, b.AddToWorld())
	return b
}

type recordingTag struct {
	mu           sync.Mutex
	invalid      []int
	shapeChanges int
}

func (r *recordingTag) Name() string { return "recorder" }

func (r *recordingTag) OnBodyShapeChanged(*RigidBody) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.shapeChanges++
}

func (r *recordingTag) OnInvalidParameter(_ *RigidBody, code int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.invalid = append(r.invalid, code)
}

func (r *recordingTag) codes() []int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]int(nil), r.invalid...)
}

func (r *recordingTag) changes() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.shapeChanges
}

// recordingRegistrar keeps the filter word each body had when it registered.
// It runs under the body lock, so it reads the solver body directly.
type recordingRegistrar struct {
	mu    sync.Mutex
	words []uint32
}

func (r *recordingRegistrar) RegisterRigidBody(body *RigidBody) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.words = append(r.words, body.SolverBody().CollisionFilterInfo())
}

func (r *recordingRegistrar) seen() []uint32 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]uint32(nil), r.words...)
}

type testHandler struct {
	layerType filter.LayerType
	index     uint32
}

func (h testHandler) LayerType() filter.LayerType { return h.layerType }
func (h testHandler) Index() uint32               { return h.index }

func (h testHandler) MakeCollisionFilterInfo(info uint32, _ filter.ContactLayer, _ filter.GroundHit) uint32 {
	return filter.SetGroupHandler(info, h.layerType, h.index)
}
