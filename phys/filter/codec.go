// Package filter packs and unpacks the 32-bit collision filter word shared
// with the solver. Entity and sensor bodies use different layouts:
//
//	entity, normal mode          entity, ground hit mask mode
//	 0-4   layer                  0-4   layer
//	 5     ground collision forced 5-7  same as normal mode
//	 6     no ground collision    8-23  ground hit mask
//	 7     no water collision     30    collide all
//	 8-12  ground hit             31    1
//	 16-25 group handler index
//	 30    collide all
//	 31    0
//
//	sensor, normal mode          sensor, custom receiver
//	 0-4   sensor layer index     0-20  receiver layer mask
//	 5     has layer2             21-30 group handler index
//	 6-10  layer2 index           31    1
//	 21-30 group handler index
//	 31    0
//
// The bit positions are persisted in parameter data and must not move.
package filter

type field struct {
	shift uint32
	width uint32
}

func (f field) mask() uint32 {
	return ((1 << f.width) - 1) << f.shift
}

func (f field) get(w uint32) uint32 {
	return (w & f.mask()) >> f.shift
}

func (f field) set(w, v uint32) uint32 {
	return (w &^ f.mask()) | ((v << f.shift) & f.mask())
}

func bit(w uint32, n uint32) bool {
	return w&(1<<n) != 0
}

func setBit(w uint32, n uint32, on bool) uint32 {
	if on {
		return w | 1<<n
	}
	return w &^ (1 << n)
}

var (
	layerField        = field{0, 5}
	groundHitField    = field{8, 5}
	entityGroupField  = field{16, 10}
	groundHitMaskBits = field{8, 16}

	layer2Field       = field{6, 5}
	receiverMaskField = field{0, 21}
	sensorGroupField  = field{21, 10}
)

const (
	bitGroundCollisionForced = 5
	bitNoGroundCollision     = 6
	bitNoWaterCollision      = 7
	bitCollideAll            = 30
	bitGroundHitMaskMode     = 31

	bitHasLayer2      = 5
	bitCustomReceiver = 31
)

// AllCollide is the filter value that disables per-child overrides in
// compound shapes.
const AllCollide uint32 = 0xffffffff

// Info is the unpacked form of a filter word.
type Info struct {
	LayerType LayerType
	Layer     ContactLayer

	GroundHit             GroundHit
	GroundHitMaskMode     bool
	GroundHitMask         uint32
	GroundCollisionForced bool
	NoGroundCollision     bool
	NoWaterCollision      bool
	CollideAll            bool

	CustomReceiver bool
	ReceiverMask   uint32
	HasLayer2      bool
	Layer2         ContactLayer

	GroupHandler uint32
}

// Decode unpacks w according to the layout of layerType.
func Decode(w uint32, layerType LayerType) Info {
	if layerType == LayerTypeSensor {
		return decodeReceiver(w)
	}
	return decodeEntity(w)
}

func decodeEntity(w uint32) Info {
	info := Info{
		LayerType:             LayerTypeEntity,
		Layer:                 ContactLayer(layerField.get(w)),
		GroundCollisionForced: bit(w, bitGroundCollisionForced),
		NoGroundCollision:     bit(w, bitNoGroundCollision),
		NoWaterCollision:      bit(w, bitNoWaterCollision),
		CollideAll:            bit(w, bitCollideAll),
		GroundHitMaskMode:     bit(w, bitGroundHitMaskMode),
	}
	if info.GroundHitMaskMode {
		info.GroundHit = HitAll
		info.GroundHitMask = groundHitMaskBits.get(w)
	} else {
		info.GroundHit = GroundHit(groundHitField.get(w))
		info.GroupHandler = entityGroupField.get(w)
	}
	return info
}

func decodeReceiver(w uint32) Info {
	info := Info{
		LayerType:      LayerTypeSensor,
		CustomReceiver: bit(w, bitCustomReceiver),
		GroupHandler:   sensorGroupField.get(w),
	}
	if info.CustomReceiver {
		info.Layer = SensorCustomReceiver
		info.ReceiverMask = receiverMaskField.get(w)
		return info
	}
	info.Layer = FirstSensor + ContactLayer(layerField.get(w))
	info.HasLayer2 = bit(w, bitHasLayer2)
	if info.HasLayer2 {
		info.Layer2 = FirstSensor + ContactLayer(layer2Field.get(w))
	}
	return info
}

// Encode packs info. Fields that do not belong to the selected layout are
// dropped, so Encode(Decode(w)) is a fixed point even when w is not.
func Encode(info Info) uint32 {
	if info.LayerType == LayerTypeSensor {
		return encodeReceiver(info)
	}
	return encodeEntity(info)
}

func encodeEntity(info Info) uint32 {
	var w uint32
	w = layerField.set(w, info.Layer.Index())
	w = setBit(w, bitGroundCollisionForced, info.GroundCollisionForced)
	w = setBit(w, bitNoGroundCollision, info.NoGroundCollision)
	w = setBit(w, bitNoWaterCollision, info.NoWaterCollision)
	w = setBit(w, bitCollideAll, info.CollideAll)
	if info.GroundHitMaskMode {
		w = setBit(w, bitGroundHitMaskMode, true)
		w = groundHitMaskBits.set(w, info.GroundHitMask)
		return w
	}
	w = groundHitField.set(w, uint32(info.GroundHit))
	w = entityGroupField.set(w, info.GroupHandler)
	return w
}

func encodeReceiver(info Info) uint32 {
	var w uint32
	w = sensorGroupField.set(w, info.GroupHandler)
	if info.CustomReceiver || info.Layer == SensorCustomReceiver {
		w = setBit(w, bitCustomReceiver, true)
		w = receiverMaskField.set(w, info.ReceiverMask)
		return w
	}
	w = layerField.set(w, info.Layer.Index())
	if info.HasLayer2 {
		w = setBit(w, bitHasLayer2, true)
		w = layer2Field.set(w, info.Layer2.Index())
	}
	return w
}

// LayerOf returns the contact layer stored in w.
func LayerOf(w uint32, layerType LayerType) ContactLayer {
	return Decode(w, layerType).Layer
}

// SetLayer replaces the layer of w, keeping the rest of the word. The layout
// is chosen from the layer itself.
func SetLayer(w uint32, layer ContactLayer) uint32 {
	if LayerTypeOf(layer) == LayerTypeSensor {
		return setReceiverLayer(w, layer)
	}
	return layerField.set(w, layer.Index())
}

func setReceiverLayer(w uint32, layer ContactLayer) uint32 {
	if layer == SensorCustomReceiver {
		return setBit(w, bitCustomReceiver, true)
	}
	if bit(w, bitCustomReceiver) {
		// Leaving custom mode: the receiver mask shares bits with the layer
		// fields, so only the handler index survives.
		w &= sensorGroupField.mask()
	}
	return layerField.set(w, layer.Index())
}

// SetGroundHit switches an entity word to normal mode with the given ground
// hit, dropping any ground hit mask.
func SetGroundHit(w uint32, hit GroundHit) uint32 {
	if bit(w, bitGroundHitMaskMode) {
		w = groundHitMaskBits.set(w, 0)
		w = setBit(w, bitGroundHitMaskMode, false)
	}
	return groundHitField.set(w, uint32(hit))
}

// AddGroundHitToMask adds hit to the mask of a word in ground hit mask mode.
// Words in normal mode are returned unchanged.
func AddGroundHitToMask(w uint32, hit GroundHit) uint32 {
	if !bit(w, bitGroundHitMaskMode) || hit < 0 || uint32(hit) >= groundHitMaskBits.width {
		return w
	}
	return groundHitMaskBits.set(w, groundHitMaskBits.get(w)|1<<uint32(hit))
}

// IsGroundHitMaskMode reports whether an entity word carries a ground hit mask.
func IsGroundHitMaskMode(w uint32) bool {
	return bit(w, bitGroundHitMaskMode)
}

// MakeEntity builds a normal-mode entity word.
func MakeEntity(layer ContactLayer, hit GroundHit) uint32 {
	return Encode(Info{LayerType: LayerTypeEntity, Layer: layer, GroundHit: hit})
}

// MakeGroundHitMask builds a mask-mode entity word.
func MakeGroundHitMask(layer ContactLayer, mask uint32) uint32 {
	return Encode(Info{LayerType: LayerTypeEntity, Layer: layer, GroundHitMaskMode: true, GroundHitMask: mask})
}

// MakeReceiver builds a sensor word for layer.
func MakeReceiver(layer ContactLayer) uint32 {
	return Encode(Info{LayerType: LayerTypeSensor, Layer: layer})
}

// MakeCustomReceiver builds a custom receiver word.
func MakeCustomReceiver(mask uint32, handler uint32) uint32 {
	return Encode(Info{LayerType: LayerTypeSensor, CustomReceiver: true, ReceiverMask: mask, GroupHandler: handler})
}

// SetReceiverLayer2 sets or clears the secondary layer of a sensor word.
// Custom receiver words have no room for it and are returned unchanged.
func SetReceiverLayer2(enable bool, layer ContactLayer, w uint32) uint32 {
	if bit(w, bitCustomReceiver) {
		return w
	}
	w = setBit(w, bitHasLayer2, enable)
	if enable {
		return layer2Field.set(w, layer.Index())
	}
	return layer2Field.set(w, 0)
}

// SetGroupHandler stores a group handler index in w.
func SetGroupHandler(w uint32, layerType LayerType, index uint32) uint32 {
	if layerType == LayerTypeSensor {
		return sensorGroupField.set(w, index)
	}
	if bit(w, bitGroundHitMaskMode) {
		return w
	}
	return entityGroupField.set(w, index)
}

// SetNoGroundCollision updates the ground collision bits of an entity word.
// The forced bit is always cleared so the explicit setting takes effect.
func SetNoGroundCollision(w uint32, off bool) uint32 {
	w = setBit(w, bitGroundCollisionForced, false)
	return setBit(w, bitNoGroundCollision, off)
}

// SetNoWaterCollision updates the water collision bit of an entity word.
func SetNoWaterCollision(w uint32, off bool) uint32 {
	return setBit(w, bitNoWaterCollision, off)
}
