package prefabs

import (
	"strings"

	"github.com/milk9111/rigidphys/phys/filter"
	"github.com/rotisserie/eris"
)

var contactLayers = map[string]filter.ContactLayer{
	"entity_object":                filter.EntityObject,
	"entity_small_object":          filter.EntitySmallObject,
	"entity_ground_object":         filter.EntityGroundObject,
	"entity_player":                filter.EntityPlayer,
	"entity_npc":                   filter.EntityNPC,
	"entity_ragdoll":               filter.EntityRagdoll,
	"entity_water":                 filter.EntityWater,
	"entity_air_wall":              filter.EntityAirWall,
	"entity_ground":                filter.EntityGround,
	"entity_ground_smooth":         filter.EntityGroundSmooth,
	"entity_ground_rough":          filter.EntityGroundRough,
	"entity_rope":                  filter.EntityRope,
	"entity_tree":                  filter.EntityTree,
	"entity_npc_no_hit_player":     filter.EntityNPCNoHitPlayer,
	"entity_hit_only_water":        filter.EntityHitOnlyWater,
	"entity_wall_for_climb":        filter.EntityWallForClimb,
	"entity_hit_only_ground":       filter.EntityHitOnlyGround,
	"entity_query_custom_receiver": filter.EntityQueryCustomReceiver,
	"entity_no_hit":                filter.EntityNoHit,
	"entity_mesh_visualizer":       filter.EntityMeshVisualizer,

	"sensor_object":           filter.SensorObject,
	"sensor_small_object":     filter.SensorSmallObject,
	"sensor_player":           filter.SensorPlayer,
	"sensor_enemy":            filter.SensorEnemy,
	"sensor_npc":              filter.SensorNPC,
	"sensor_horse":            filter.SensorHorse,
	"sensor_rope":             filter.SensorRope,
	"sensor_attack_player":    filter.SensorAttackPlayer,
	"sensor_attack_enemy":     filter.SensorAttackEnemy,
	"sensor_chemical":         filter.SensorChemical,
	"sensor_terror":           filter.SensorTerror,
	"sensor_hit_only_in_door": filter.SensorHitOnlyInDoor,
	"sensor_in_door":          filter.SensorInDoor,
	"sensor_chemical_element": filter.SensorChemicalElement,
	"sensor_attack_common":    filter.SensorAttackCommon,
	"sensor_query_only":       filter.SensorQueryOnly,
	"sensor_tree":             filter.SensorTree,
	"sensor_camera":           filter.SensorCamera,
	"sensor_mesh_visualizer":  filter.SensorMeshVisualizer,
	"sensor_no_hit":           filter.SensorNoHit,
	"sensor_custom_receiver":  filter.SensorCustomReceiver,
}

var groundHits = map[string]filter.GroundHit{
	"all":               filter.HitAll,
	"player":            filter.GroundHitPlayer,
	"animal":            filter.GroundHitAnimal,
	"npc":               filter.GroundHitNPC,
	"camera":            filter.GroundHitCamera,
	"attack_hit_player": filter.GroundHitAttackHitPlayer,
	"attack_hit_enemy":  filter.GroundHitAttackHitEnemy,
	"arrow":             filter.GroundHitArrow,
	"bomb":              filter.GroundHitBomb,
	"magnet":            filter.GroundHitMagnet,
	"camera_body":       filter.GroundHitCameraBody,
	"ik":                filter.GroundHitIK,
	"grab":              filter.GroundHitGrab,
	"pulley":            filter.GroundHitPulley,
	"ragdoll":           filter.GroundHitRagdoll,
	"water":             filter.GroundHitWater,
	"horse":             filter.GroundHitHorse,
}

func normalizeName(s string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), "-", "_")
}

// ParseContactLayer maps a snake_case layer name such as "entity_player" to
// its contact layer.
func ParseContactLayer(name string) (filter.ContactLayer, error) {
	if layer, ok := contactLayers[normalizeName(name)]; ok {
		return layer, nil
	}
	return 0, eris.Wrapf(ErrUnknownName, "prefabs: contact layer %q", name)
}

// ParseGroundHit maps a ground hit name such as "ragdoll" to its type.
func ParseGroundHit(name string) (filter.GroundHit, error) {
	if hit, ok := groundHits[normalizeName(name)]; ok {
		return hit, nil
	}
	return 0, eris.Wrapf(ErrUnknownName, "prefabs: ground hit %q", name)
}
