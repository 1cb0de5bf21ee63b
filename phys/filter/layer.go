package filter

import "fmt"

// LayerType selects which bit layout a filter word uses.
type LayerType int

const (
	LayerTypeEntity LayerType = iota
	LayerTypeSensor
	LayerTypeInvalid
)

func (t LayerType) String() string {
	switch t {
	case LayerTypeEntity:
		return "Entity"
	case LayerTypeSensor:
		return "Sensor"
	default:
		return "Invalid"
	}
}

// ContactLayer is a global layer index. Entity layers occupy [0, 32) and
// sensor layers occupy [FirstSensor, 64).
type ContactLayer int

const FirstSensor ContactLayer = 32

const (
	EntityObject ContactLayer = iota
	EntitySmallObject
	EntityGroundObject
	EntityPlayer
	EntityNPC
	EntityRagdoll
	EntityWater
	EntityAirWall
	EntityGround
	EntityGroundSmooth
	EntityGroundRough
	EntityRope
	EntityTree
	EntityNPCNoHitPlayer
	EntityHitOnlyWater
	EntityWallForClimb
	EntityHitOnlyGround
	EntityQueryCustomReceiver
	EntityForbidden18
	EntityNoHit
	EntityMeshVisualizer
	EntityEnd = FirstSensor - 1
)

const (
	SensorObject ContactLayer = FirstSensor + iota
	SensorSmallObject
	SensorPlayer
	SensorEnemy
	SensorNPC
	SensorHorse
	SensorRope
	SensorAttackPlayer
	SensorAttackEnemy
	SensorChemical
	SensorTerror
	SensorHitOnlyInDoor
	SensorInDoor
	SensorReserve13
	SensorReserve14
	SensorChemicalElement
	SensorAttackCommon
	SensorQueryOnly
	SensorTree
	SensorCamera
	SensorMeshVisualizer
	SensorNoHit
	SensorReserve22
	SensorCustomReceiver
	SensorEnd = FirstSensor + 31
)

// LayerTypeOf returns the layer type a contact layer belongs to.
func LayerTypeOf(layer ContactLayer) LayerType {
	switch {
	case layer >= 0 && layer < FirstSensor:
		return LayerTypeEntity
	case layer >= FirstSensor && layer <= SensorEnd:
		return LayerTypeSensor
	default:
		return LayerTypeInvalid
	}
}

// Index returns the layer position inside its own layer type, which is also
// the bit used for it in a contact mask.
func (l ContactLayer) Index() uint32 {
	if l >= FirstSensor {
		return uint32(l - FirstSensor)
	}
	return uint32(l)
}

func (l ContactLayer) String() string {
	return fmt.Sprintf("%s(%d)", LayerTypeOf(l), l.Index())
}

// GroundHit classifies what a body counts as when touching ground.
type GroundHit int

const (
	HitAll GroundHit = iota
	GroundHitPlayer
	GroundHitAnimal
	GroundHitNPC
	GroundHitCamera
	GroundHitAttackHitPlayer
	GroundHitAttackHitEnemy
	GroundHitArrow
	GroundHitBomb
	GroundHitMagnet
	GroundHitCameraBody
	GroundHitIK
	GroundHitGrab
	GroundHitPulley
	GroundHitRagdoll
	GroundHitWater
	GroundHitHorse
	GroundHitEnd GroundHit = 31
)
