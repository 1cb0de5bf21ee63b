package prefabs

import (
	"strings"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/milk9111/rigidphys/phys"
	"github.com/milk9111/rigidphys/phys/filter"
	"github.com/milk9111/rigidphys/solver"
	"github.com/milk9111/rigidphys/solver/cpsolver"
	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

var (
	ErrUnknownName = eris.New("prefabs: unknown name")
	ErrBadVector   = eris.New("prefabs: vector needs three components")
)

func LoadSpec[T any](filename string) (T, error) {
	var zero T
	data, err := Load(filename)
	if err != nil {
		return zero, eris.Wrapf(err, "prefabs: load %s", filename)
	}

	var spec T
	if err := yaml.Unmarshal(data, &spec); err != nil {
		return zero, eris.Wrapf(err, "prefabs: unmarshal %s", filename)
	}

	return spec, nil
}

func LoadBodySpec(filename string) (BodySpec, error) {
	return LoadSpec[BodySpec](filename)
}

func LoadSceneSpec(filename string) (SceneSpec, error) {
	return LoadSpec[SceneSpec](filename)
}

// BodySpec describes one rigid body. Unset optional fields keep the values
// of phys.DefaultInstanceParam.
type BodySpec struct {
	Name       string    `yaml:"name"`
	Type       string    `yaml:"type"`
	LayerType  string    `yaml:"layer_type"`
	MotionType string    `yaml:"motion_type"`
	Layer      string    `yaml:"layer"`
	GroundHit  string    `yaml:"ground_hit"`
	Shape      ShapeSpec `yaml:"shape"`
	Scalable   bool      `yaml:"scalable"`

	Mass               *float32 `yaml:"mass"`
	Inertia            *Vec3    `yaml:"inertia"`
	CenterOfMass       *Vec3    `yaml:"center_of_mass"`
	LinearDamping      *float32 `yaml:"linear_damping"`
	AngularDamping     *float32 `yaml:"angular_damping"`
	GravityFactor      *float32 `yaml:"gravity_factor"`
	TimeFactor         *float32 `yaml:"time_factor"`
	MaxLinearVelocity  *float32 `yaml:"max_linear_velocity"`
	MaxAngularVelocity *float32 `yaml:"max_angular_velocity"`
	FrictionScale      *float32 `yaml:"friction_scale"`
	RestitutionScale   *float32 `yaml:"restitution_scale"`
	MaxImpulse         *float32 `yaml:"max_impulse"`

	HighQuality bool   `yaml:"high_quality"`
	Position    Vec3   `yaml:"position"`
	LinkedTo    string `yaml:"linked_to"`
	UserTag     string `yaml:"user_tag"`
}

// ShapeSpec is a box, circle, list or wrapper shape.
type ShapeSpec struct {
	Kind     string      `yaml:"kind"`
	Width    float32     `yaml:"width"`
	Height   float32     `yaml:"height"`
	Depth    float32     `yaml:"depth"`
	Radius   float32     `yaml:"radius"`
	Children []ShapeSpec `yaml:"children"`
}

// SceneSpec is a set of bodies stepped together by the demo.
type SceneSpec struct {
	Name   string          `yaml:"name"`
	Steps  int             `yaml:"steps"`
	DT     float32         `yaml:"dt"`
	Bodies []SceneBodySpec `yaml:"bodies"`
}

// SceneBodySpec places a body in a scene, either inline or by referencing a
// body prefab. Name, position and link override the prefab's values when
// set.
type SceneBodySpec struct {
	Prefab   string    `yaml:"prefab"`
	Name     string    `yaml:"name"`
	Position *Vec3     `yaml:"position"`
	LinkedTo string    `yaml:"linked_to"`
	Body     *BodySpec `yaml:"body"`
}

// Resolve returns the body this entry places, loading its prefab if needed.
func (s SceneBodySpec) Resolve() (BodySpec, error) {
	var spec BodySpec
	switch {
	case s.Prefab != "":
		loaded, err := LoadBodySpec(s.Prefab)
		if err != nil {
			return spec, err
		}
		spec = loaded
	case s.Body != nil:
		spec = *s.Body
	default:
		return spec, eris.New("prefabs: scene body needs a prefab or an inline body")
	}
	if s.Name != "" {
		spec.Name = s.Name
	}
	if s.Position != nil {
		spec.Position = *s.Position
	}
	if s.LinkedTo != "" {
		spec.LinkedTo = s.LinkedTo
	}
	return spec, nil
}

// InstanceParam converts the spec into the parameters a motion accessor is
// initialized from.
func (s BodySpec) InstanceParam() (phys.InstanceParam, error) {
	p := phys.DefaultInstanceParam()
	mt, err := s.motionType()
	if err != nil {
		return p, err
	}
	p.MotionType = mt

	setFloat(&p.Mass, s.Mass)
	setFloat(&p.LinearDamping, s.LinearDamping)
	setFloat(&p.AngularDamping, s.AngularDamping)
	setFloat(&p.GravityFactor, s.GravityFactor)
	setFloat(&p.TimeFactor, s.TimeFactor)
	setFloat(&p.MaxLinearVelocity, s.MaxLinearVelocity)
	setFloat(&p.MaxAngularVelocity, s.MaxAngularVelocity)
	setFloat(&p.FrictionScale, s.FrictionScale)
	setFloat(&p.RestitutionScale, s.RestitutionScale)
	setFloat(&p.MaxImpulse, s.MaxImpulse)
	if s.Inertia != nil {
		p.Inertia = s.Inertia.Vec()
	}
	if s.CenterOfMass != nil {
		p.CenterOfMass = s.CenterOfMass.Vec()
	}
	return p, nil
}

func setFloat(dst *float32, v *float32) {
	if v != nil {
		*dst = *v
	}
}

func (s BodySpec) motionType() (solver.MotionType, error) {
	if s.MotionType == "" {
		return solver.MotionDynamic, nil
	}
	for _, t := range []solver.MotionType{solver.MotionDynamic, solver.MotionFixed, solver.MotionKeyframed} {
		if strings.EqualFold(s.MotionType, t.String()) {
			return t, nil
		}
	}
	return solver.MotionInvalid, eris.Wrapf(phys.ErrUnknownMotionType, "prefabs: motion type %q", s.MotionType)
}

// BodyType parses the body type. An empty value is TypeGeneric.
func (s BodySpec) BodyType() (phys.Type, error) {
	if s.Type == "" {
		return phys.TypeGeneric, nil
	}
	for t := phys.TypeGeneric; t <= phys.TypeTeraMesh; t++ {
		if strings.EqualFold(s.Type, t.String()) {
			return t, nil
		}
	}
	return phys.TypeGeneric, eris.Wrapf(ErrUnknownName, "prefabs: body type %q", s.Type)
}

// BodyLayerType parses the layer type. An empty value is taken from the
// contact layer, or Entity when that is empty too.
func (s BodySpec) BodyLayerType() (filter.LayerType, error) {
	if s.LayerType == "" {
		if s.Layer == "" {
			return filter.LayerTypeEntity, nil
		}
		layer, err := ParseContactLayer(s.Layer)
		if err != nil {
			return filter.LayerTypeInvalid, err
		}
		return filter.LayerTypeOf(layer), nil
	}
	for _, t := range []filter.LayerType{filter.LayerTypeEntity, filter.LayerTypeSensor} {
		if strings.EqualFold(s.LayerType, t.String()) {
			return t, nil
		}
	}
	return filter.LayerTypeInvalid, eris.Wrapf(ErrUnknownName, "prefabs: layer type %q", s.LayerType)
}

// FilterInfo builds the initial collision filter word. Entities default to
// EntityObject hitting everything; sensors default to a SensorObject
// receiver.
func (s BodySpec) FilterInfo(layerType filter.LayerType) (uint32, error) {
	if layerType == filter.LayerTypeSensor {
		layer := filter.SensorObject
		if s.Layer != "" {
			parsed, err := ParseContactLayer(s.Layer)
			if err != nil {
				return 0, err
			}
			layer = parsed
		}
		if filter.LayerTypeOf(layer) != filter.LayerTypeSensor {
			return 0, eris.Wrapf(phys.ErrLayerTypeMismatch, "prefabs: layer %s on a sensor", layer)
		}
		return filter.MakeReceiver(layer), nil
	}

	layer := filter.EntityObject
	if s.Layer != "" {
		parsed, err := ParseContactLayer(s.Layer)
		if err != nil {
			return 0, err
		}
		layer = parsed
	}
	if filter.LayerTypeOf(layer) != filter.LayerTypeEntity {
		return 0, eris.Wrapf(phys.ErrLayerTypeMismatch, "prefabs: layer %s on an entity", layer)
	}
	hit := filter.HitAll
	if s.GroundHit != "" {
		parsed, err := ParseGroundHit(s.GroundHit)
		if err != nil {
			return 0, err
		}
		hit = parsed
	}
	return filter.MakeEntity(layer, hit), nil
}

// Build creates the solver shape the spec describes.
func (s ShapeSpec) Build() (solver.Shape, error) {
	switch strings.ToLower(s.Kind) {
	case "", "box":
		return &cpsolver.Box{Width: s.Width, Height: s.Height, Depth: s.Depth}, nil
	case "circle":
		return &cpsolver.Circle{Radius: s.Radius}, nil
	case "list":
		items := make([]solver.Shape, 0, len(s.Children))
		for _, child := range s.Children {
			shape, err := child.Build()
			if err != nil {
				return nil, err
			}
			items = append(items, shape)
		}
		return cpsolver.NewList(items...), nil
	case "wrapper":
		if len(s.Children) != 1 {
			return nil, eris.Errorf("prefabs: wrapper shape needs one child, got %d", len(s.Children))
		}
		child, err := s.Children[0].Build()
		if err != nil {
			return nil, err
		}
		return &cpsolver.Wrapper{Child: child}, nil
	default:
		return nil, eris.Wrapf(solver.ErrUnknownShape, "prefabs: shape %q", s.Kind)
	}
}

// Vec3 accepts either a three element sequence or an x/y/z mapping.
type Vec3 [3]float32

func (v Vec3) Vec() mgl32.Vec3 { return mgl32.Vec3(v) }

func (v *Vec3) UnmarshalYAML(value *yaml.Node) error {
	switch value.Kind {
	case yaml.SequenceNode:
		var xs []float32
		if err := value.Decode(&xs); err != nil {
			return err
		}
		if len(xs) != 3 {
			return eris.Wrapf(ErrBadVector, "line %d: got %d", value.Line, len(xs))
		}
		copy(v[:], xs)
		return nil
	case yaml.MappingNode:
		var m struct {
			X float32 `yaml:"x"`
			Y float32 `yaml:"y"`
			Z float32 `yaml:"z"`
		}
		if err := value.Decode(&m); err != nil {
			return err
		}
		*v = Vec3{m.X, m.Y, m.Z}
		return nil
	default:
		return eris.Wrapf(ErrBadVector, "line %d", value.Line)
	}
}
