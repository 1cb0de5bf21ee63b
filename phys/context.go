package phys

import (
	"math"
	"sync"
	"sync/atomic"

	"github.com/milk9111/rigidphys/phys/filter"
	"github.com/milk9111/rigidphys/solver"
	"github.com/rs/zerolog"
)

// Invalid parameter codes passed to UserTag.OnInvalidParameter.
const (
	InvalidCodeNaN             = 0
	InvalidCodeVelocityTooHigh = 1
)

// UserTag observes a body on behalf of its owner. Callbacks run with the
// body lock held.
type UserTag interface {
	Name() string
	OnBodyShapeChanged(body *RigidBody)
	OnInvalidParameter(body *RigidBody, code int)
}

// GroupHandler assigns group indices to filter words of one layer type.
type GroupHandler interface {
	LayerType() filter.LayerType
	Index() uint32
	MakeCollisionFilterInfo(info uint32, layer filter.ContactLayer, hit filter.GroundHit) uint32
}

// ContactRegistrar is the contact system bodies register with when they
// enter a world or change contact layer inside one. RegisterRigidBody is
// called with the body and world locks held, before the new filter word is
// written.
type ContactRegistrar interface {
	RegisterRigidBody(body *RigidBody)
}

// RequestQueue collects bodies with pending motion changes per layer type.
type RequestQueue struct {
	mu      sync.Mutex
	pending [filter.LayerTypeInvalid][]*RigidBody
}

// Push appends body to the batch of layerType.
func (q *RequestQueue) Push(layerType filter.LayerType, body *RigidBody) {
	if q == nil || body == nil || layerType < 0 || layerType >= filter.LayerTypeInvalid {
		return
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	q.pending[layerType] = append(q.pending[layerType], body)
}

// Drain returns the batch of layerType and starts a new one.
func (q *RequestQueue) Drain(layerType filter.LayerType) []*RigidBody {
	if q == nil || layerType < 0 || layerType >= filter.LayerTypeInvalid {
		return nil
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	out := q.pending[layerType]
	q.pending[layerType] = nil
	return out
}

// Len returns the number of queued bodies of layerType.
func (q *RequestQueue) Len(layerType filter.LayerType) int {
	if q == nil || layerType < 0 || layerType >= filter.LayerTypeInvalid {
		return 0
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending[layerType])
}

// Context is the physics system handle every body is created against: the
// solver worlds, the request queue and the global simulation state.
type Context struct {
	Config Config
	Queue  *RequestQueue
	Logger zerolog.Logger

	// Contacts is notified when a body in a world changes contact layer.
	Contacts ContactRegistrar

	worlds     [filter.LayerTypeInvalid]solver.World
	timeFactor atomic.Uint32
	paused     atomic.Bool

	mu     sync.Mutex
	bodies []*RigidBody
}

// NewContext creates a context with no worlds. Use SetWorld to attach them.
func NewContext(cfg Config, logger zerolog.Logger) *Context {
	ctx := &Context{
		Config: cfg,
		Queue:  &RequestQueue{},
		Logger: logger,
	}
	ctx.SetTimeFactor(1)
	return ctx
}

func (c *Context) SetWorld(layerType filter.LayerType, w solver.World) {
	if layerType < 0 || layerType >= filter.LayerTypeInvalid {
		return
	}
	c.worlds[layerType] = w
}

func (c *Context) World(layerType filter.LayerType) solver.World {
	if layerType < 0 || layerType >= filter.LayerTypeInvalid {
		return nil
	}
	return c.worlds[layerType]
}

func (c *Context) LockWorld(layerType filter.LayerType) {
	if w := c.World(layerType); w != nil {
		w.Lock()
	}
}

func (c *Context) UnlockWorld(layerType filter.LayerType) {
	if w := c.World(layerType); w != nil {
		w.Unlock()
	}
}

// TimeFactor is the global simulation speed applied to bodies that use the
// system time factor.
func (c *Context) TimeFactor() float32 {
	return math.Float32frombits(c.timeFactor.Load())
}

func (c *Context) SetTimeFactor(f float32) {
	c.timeFactor.Store(math.Float32bits(f))
}

func (c *Context) IsPaused() bool {
	return c.paused.Load()
}

func (c *Context) SetPaused(paused bool) {
	c.paused.Store(paused)
}

// StepDelta is the duration of one simulation step.
func (c *Context) StepDelta() float32 {
	if c.Config.StepRate <= 0 {
		return 0
	}
	return 1 / c.Config.StepRate
}

// Bodies returns the bodies created against this context that have not been
// released.
func (c *Context) Bodies() []*RigidBody {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]*RigidBody(nil), c.bodies...)
}

func (c *Context) track(body *RigidBody) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.bodies = append(c.bodies, body)
}

func (c *Context) untrack(body *RigidBody) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, b := range c.bodies {
		if b == body {
			c.bodies = append(c.bodies[:i], c.bodies[i+1:]...)
			return
		}
	}
}

// ProcessRequests drains the queue of layerType and applies every pending
// update with the body lock and then the world lock held. It returns the
// number of bodies processed.
func (c *Context) ProcessRequests(layerType filter.LayerType) int {
	batch := c.Queue.Drain(layerType)
	for _, body := range batch {
		body.Lock(true)
		body.ApplyPendingUpdates()
		body.Unlock(true)
	}
	if len(batch) > 0 {
		c.Logger.Debug().
			Str("component", "requests").
			Stringer("layer_type", layerType).
			Int("bodies", len(batch)).
			Msg("applied pending updates")
	}
	return len(batch)
}

// assert reports a programmer error: a panic with StrictAssertions, a
// warning otherwise.
func (c *Context) assert(ok bool, msg string, body *RigidBody) {
	if ok {
		return
	}
	if c.Config.StrictAssertions {
		panic("phys: " + msg)
	}
	ev := c.Logger.Warn().Str("component", "rigidbody")
	if body != nil {
		ev = ev.Str("body", body.Name()).Str("id", body.ID().String())
	}
	ev.Msg(msg)
}
