package phys

import (
	"github.com/milk9111/rigidphys/phys/filter"
	"github.com/milk9111/rigidphys/solver"
)

// ContactMask is the set of layer indices the body reports contacts with.
func (b *RigidBody) ContactMask() uint32 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.contactMask
}

func (b *RigidBody) SetContactMask(mask uint32) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.contactMask = mask
}

func (b *RigidBody) SetContactAll()  { b.SetContactMask(0xffffffff) }
func (b *RigidBody) SetContactNone() { b.SetContactMask(0) }

// AddContactLayer adds layer to the contact mask. The layer must match the
// body's layer type.
func (b *RigidBody) AddContactLayer(layer filter.ContactLayer) {
	if !b.checkLayerType(layer) {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.contactMask |= 1 << layer.Index()
}

func (b *RigidBody) RemoveContactLayer(layer filter.ContactLayer) {
	if !b.checkLayerType(layer) {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.contactMask &^= 1 << layer.Index()
}

func (b *RigidBody) checkLayerType(layer filter.ContactLayer) bool {
	ok := filter.LayerTypeOf(layer) == b.layerType
	b.ctx.assert(ok, "contact layer "+layer.String()+" does not match layer type "+b.layerType.String(), b)
	return ok
}

// CollisionFilterInfo returns the filter word of the solver body.
func (b *RigidBody) CollisionFilterInfo() uint32 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.solverBody.CollisionFilterInfo()
}

// FilterInfo returns the decoded filter word.
func (b *RigidBody) FilterInfo() filter.Info {
	return filter.Decode(b.CollisionFilterInfo(), b.layerType)
}

func (b *RigidBody) ContactLayer() filter.ContactLayer {
	return filter.LayerOf(b.CollisionFilterInfo(), b.layerType)
}

// SetCollisionFilterInfo writes info to the solver body if it differs from
// the current word.
func (b *RigidBody) SetCollisionFilterInfo(info uint32) {
	b.updateFilter(func(uint32) uint32 { return info })
}

// updateFilter replaces the filter word with fn(current) under the body
// lock, plus the world lock while the body is in a world.
func (b *RigidBody) updateFilter(fn func(w uint32) uint32) {
	alsoWorld := b.IsAddedToWorld()
	b.Lock(alsoWorld)
	defer b.Unlock(alsoWorld)
	b.setCollisionFilterInfoLocked(fn(b.solverBody.CollisionFilterInfo()))
}

// setCollisionFilterInfoLocked re-registers the body with the contact system
// before a layer change becomes visible, then writes the word through.
func (b *RigidBody) setCollisionFilterInfoLocked(info uint32) {
	old := b.solverBody.CollisionFilterInfo()
	if old == info {
		return
	}
	added := b.attributes.Peek(AddedToWorld)
	if added && b.ctx.Contacts != nil && filter.LayerOf(old, b.layerType) != filter.LayerOf(info, b.layerType) {
		b.ctx.Contacts.RegisterRigidBody(b)
	}
	b.solverBody.SetCollisionFilterInfo(info)
	if shape := b.solverBody.Shape(); shape != nil && resetChildFilters(shape) {
		b.solverBody.UpdateShape()
	}
	if added {
		b.setMotionFlagLocked(DirtyFilter)
	}
}

// resetChildFilters makes the parent word authoritative for list shapes,
// looking through wrappers. It reports whether a list was found.
func resetChildFilters(s solver.Shape) bool {
	switch s.Kind() {
	case solver.ShapeList:
		for i := range s.Children() {
			s.SetChildFilterInfo(i, filter.AllCollide)
		}
		return true
	case solver.ShapeWrapper:
		if children := s.Children(); len(children) == 1 && children[0] != nil {
			return resetChildFilters(children[0])
		}
	}
	return false
}

// SetContactLayer moves the body to layer. Layers of the other layer type
// are ignored.
func (b *RigidBody) SetContactLayer(layer filter.ContactLayer) {
	if !b.checkLayerType(layer) {
		return
	}
	b.updateFilter(func(w uint32) uint32 { return filter.SetLayer(w, layer) })
}

// EnableGroundCollision toggles ground collision of an entity. Ragdolls keep
// whatever they have.
func (b *RigidBody) EnableGroundCollision(enabled bool) {
	if !b.IsEntity() {
		return
	}
	b.updateFilter(func(w uint32) uint32 {
		info := filter.Decode(w, filter.LayerTypeEntity)
		if groundCollisionEnabled(info) == enabled || info.Layer == filter.EntityRagdoll {
			return w
		}
		return filter.SetNoGroundCollision(w, !enabled)
	})
}

func (b *RigidBody) IsGroundCollisionEnabled() bool {
	if !b.IsEntity() {
		return false
	}
	return groundCollisionEnabled(b.FilterInfo())
}

func groundCollisionEnabled(info filter.Info) bool {
	return info.GroundCollisionForced || info.CollideAll || !info.NoGroundCollision
}

// EnableWaterCollision toggles water collision of an entity. Ragdolls keep
// whatever they have.
func (b *RigidBody) EnableWaterCollision(enabled bool) {
	if !b.IsEntity() {
		return
	}
	b.updateFilter(func(w uint32) uint32 {
		info := filter.Decode(w, filter.LayerTypeEntity)
		if waterCollisionEnabled(info) == enabled || info.Layer == filter.EntityRagdoll {
			return w
		}
		return filter.SetNoWaterCollision(w, !enabled)
	})
}

func (b *RigidBody) IsWaterCollisionEnabled() bool {
	if !b.IsEntity() {
		return false
	}
	return waterCollisionEnabled(b.FilterInfo())
}

func waterCollisionEnabled(info filter.Info) bool {
	return info.CollideAll || !info.NoWaterCollision
}

// SetSensorReceiverLayer2 gives a sensor a secondary receiver layer. Custom
// receivers have no room for one.
func (b *RigidBody) SetSensorReceiverLayer2(layer filter.ContactLayer) {
	if !b.IsSensor() || !b.checkLayerType(layer) {
		return
	}
	b.updateFilter(func(w uint32) uint32 { return filter.SetReceiverLayer2(true, layer, w) })
}

func (b *RigidBody) ClearSensorReceiverLayer2() {
	if !b.IsSensor() {
		return
	}
	b.updateFilter(func(w uint32) uint32 { return filter.SetReceiverLayer2(false, 0, w) })
}

// handlerMatches warns about handlers built for the other layer type.
func (b *RigidBody) handlerMatches(h GroupHandler) bool {
	if h == nil || h.LayerType() == b.layerType {
		return true
	}
	b.ctx.Logger.Warn().
		Str("component", "rigidbody").
		Str("body", b.name).
		Stringer("handler_layer_type", h.LayerType()).
		Stringer("layer_type", b.layerType).
		Msg("group handler layer type mismatch")
	return false
}

// SetContactLayerAndHandler rebuilds the filter word for layer, keeping the
// ground hit, and lets h assign the group.
func (b *RigidBody) SetContactLayerAndHandler(layer filter.ContactLayer, h GroupHandler) {
	if !b.checkLayerType(layer) || !b.handlerMatches(h) {
		return
	}
	b.updateFilter(func(w uint32) uint32 {
		hit := filter.HitAll
		var next uint32
		if b.IsEntity() {
			hit = filter.Decode(w, filter.LayerTypeEntity).GroundHit
			next = filter.MakeEntity(layer, hit)
		} else {
			next = filter.MakeReceiver(layer)
		}
		if h != nil {
			next = h.MakeCollisionFilterInfo(next, layer, hit)
		}
		return next
	})
	b.setGroupHandler(h)
}

// SetContactLayerAndGroundHit sets the layer and ground hit of an entity.
func (b *RigidBody) SetContactLayerAndGroundHit(layer filter.ContactLayer, hit filter.GroundHit) {
	if !b.IsEntity() || !b.checkLayerType(layer) {
		return
	}
	b.updateFilter(func(w uint32) uint32 {
		return filter.SetLayer(filter.SetGroundHit(w, hit), layer)
	})
}

func (b *RigidBody) SetContactLayerAndGroundHitAndHandler(layer filter.ContactLayer, hit filter.GroundHit, h GroupHandler) {
	if !b.IsEntity() || !b.checkLayerType(layer) || !b.handlerMatches(h) {
		return
	}
	b.updateFilter(func(uint32) uint32 {
		next := filter.MakeEntity(layer, hit)
		if h != nil {
			next = h.MakeCollisionFilterInfo(next, layer, hit)
		}
		return next
	})
	b.setGroupHandler(h)
}

// SetSystemGroupHandler lets h assign the group of the current layer. A nil
// handler resets the word to the plain layout of the current layer.
func (b *RigidBody) SetSystemGroupHandler(h GroupHandler) {
	if !b.handlerMatches(h) {
		return
	}
	b.updateFilter(func(w uint32) uint32 {
		info := filter.Decode(w, b.layerType)
		switch {
		case h != nil:
			return h.MakeCollisionFilterInfo(w, info.Layer, info.GroundHit)
		case b.IsEntity():
			return filter.MakeEntity(info.Layer, info.GroundHit)
		default:
			return filter.MakeReceiver(info.Layer)
		}
	})
	b.setGroupHandler(h)
}

func (b *RigidBody) setGroupHandler(h GroupHandler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.groupHandler = h
}

// GroupHandler returns the handler last assigned to the body.
func (b *RigidBody) GroupHandler() GroupHandler {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.groupHandler
}

// SetSensorCustomReceiver turns a sensor into a custom receiver for the
// sensor layers in mask.
func (b *RigidBody) SetSensorCustomReceiver(mask uint32, h GroupHandler) {
	if !b.IsSensor() || !b.handlerMatches(h) {
		return
	}
	var index uint32
	if h != nil {
		index = h.Index()
	}
	b.updateFilter(func(uint32) uint32 { return filter.MakeCustomReceiver(mask, index) })
	b.setGroupHandler(h)
}

// SetGroundHitMask switches an entity to ground hit mask mode on layer.
func (b *RigidBody) SetGroundHitMask(layer filter.ContactLayer, mask uint32) {
	if !b.IsEntity() || filter.LayerTypeOf(layer) != filter.LayerTypeEntity {
		return
	}
	b.updateFilter(func(uint32) uint32 { return filter.MakeGroundHitMask(layer, mask) })
}

// AddGroundTypeToGroundHitMask only affects entities in mask mode.
func (b *RigidBody) AddGroundTypeToGroundHitMask(hit filter.GroundHit) {
	if !b.IsEntity() {
		return
	}
	b.updateFilter(func(w uint32) uint32 {
		if !filter.IsGroundHitMaskMode(w) {
			return w
		}
		return filter.AddGroundHitToMask(w, hit)
	})
}

// GroundHitType is HitAll for sensors.
func (b *RigidBody) GroundHitType() filter.GroundHit {
	if !b.IsEntity() {
		return filter.HitAll
	}
	return b.FilterInfo().GroundHit
}

func (b *RigidBody) SetGroundHitType(hit filter.GroundHit) {
	if !b.IsEntity() {
		return
	}
	b.updateFilter(func(w uint32) uint32 { return filter.SetGroundHit(w, hit) })
}

// OnCollisionAdded counts a new contact. The first one suppresses
// deactivation.
func (b *RigidBody) OnCollisionAdded() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.collisionCount++
	if b.collisionCount == 1 {
		b.setDeactivationFlagLocked(InContact, true)
	}
}

// OnCollisionRemoved undoes OnCollisionAdded.
func (b *RigidBody) OnCollisionRemoved() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.collisionCount == 0 {
		return
	}
	b.collisionCount--
	if b.collisionCount == 0 {
		b.setDeactivationFlagLocked(InContact, false)
	}
}

func (b *RigidBody) CollisionCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.collisionCount
}

func (b *RigidBody) SetDeactivationSuppressed(on bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.setDeactivationFlagLocked(DeactivationSuppressed, on)
}

func (b *RigidBody) SetDeactivationSuppressedAlt(on bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.setDeactivationFlagLocked(DeactivationSuppressedAlt, on)
}

func (b *RigidBody) setDeactivationFlagLocked(f AttributeFlag, on bool) {
	if b.attributes.Peek(f) == on {
		return
	}
	b.attributes.changeUnderLock(f, on)
	if b.attributes.Peek(AddedToWorld) {
		b.setMotionFlagLocked(DirtyDeactivation)
		return
	}
	b.updateDeactivation()
}

// updateDeactivation lets the solver deactivate the body unless one of the
// suppressing attributes is set.
func (b *RigidBody) updateDeactivation() {
	b.solverBody.EnableDeactivation(!b.attributes.Any(deactivationSuppressingFlags))
}

func (b *RigidBody) IsDeactivationEnabled() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.solverBody.IsDeactivationEnabled()
}

func (b *RigidBody) IsActive() bool {
	b.Lock(true)
	defer b.Unlock(true)
	return b.solverBody.IsActive()
}

// HasConstraintWithUserData reports whether a non-contact constraint with
// user data is attached to the body.
func (b *RigidBody) HasConstraintWithUserData() bool {
	b.Lock(true)
	defer b.Unlock(true)
	for _, c := range b.solverBody.Constraints() {
		if !c.IsContact() && c.UserData() != nil {
			return true
		}
	}
	return false
}
