package prefabs

import (
	"github.com/go-gl/mathgl/mgl32"
	"github.com/milk9111/rigidphys/phys"
	"github.com/milk9111/rigidphys/phys/filter"
	"github.com/milk9111/rigidphys/solver"
	"github.com/milk9111/rigidphys/solver/cpsolver"
	"github.com/rotisserie/eris"
)

// TagFactory returns the user tag for a body, or nil for none.
type TagFactory func(spec BodySpec) (phys.UserTag, error)

// BuildBody creates a detached rigid body backed by a cp solver body.
func BuildBody(ctx *phys.Context, spec BodySpec) (*phys.RigidBody, error) {
	layerType, err := spec.BodyLayerType()
	if err != nil {
		return nil, err
	}
	typ, err := spec.BodyType()
	if err != nil {
		return nil, err
	}
	info, err := spec.FilterInfo(layerType)
	if err != nil {
		return nil, err
	}
	param, err := spec.InstanceParam()
	if err != nil {
		return nil, err
	}
	shape, err := spec.Shape.Build()
	if err != nil {
		return nil, eris.Wrapf(err, "prefabs: body %q", spec.Name)
	}

	sb := cpsolver.NewBody(cpsolver.BodyDef{
		Name:       spec.Name,
		Shape:      shape,
		Motion:     solver.NewMotion(param.MotionType, spec.Position.Vec(), mgl32.QuatIdent()),
		Sensor:     layerType == filter.LayerTypeSensor,
		FilterInfo: info,
	})
	body, err := phys.NewRigidBody(ctx, typ, layerType, sb, spec.Name, spec.Scalable)
	if err != nil {
		return nil, err
	}
	body.InitMotionAccessor(param, true)
	if spec.HighQuality {
		body.UpdateCollidableQualityType(true)
	}
	return body, nil
}

// Scene is the set of bodies built from a SceneSpec.
type Scene struct {
	Spec   SceneSpec
	Bodies []*phys.RigidBody
	byName map[string]*phys.RigidBody
}

// BuildScene builds every body of spec, attaches user tags from tags when it
// is non-nil and links sensors to the bodies they name. Nothing is added to
// a world yet.
func BuildScene(ctx *phys.Context, spec SceneSpec, tags TagFactory) (*Scene, error) {
	scene := &Scene{Spec: spec, byName: make(map[string]*phys.RigidBody, len(spec.Bodies))}
	links := make(map[*phys.RigidBody]string)

	for i, entry := range spec.Bodies {
		bodySpec, err := entry.Resolve()
		if err != nil {
			scene.Release()
			return nil, eris.Wrapf(err, "prefabs: scene %q body %d", spec.Name, i)
		}
		body, err := BuildBody(ctx, bodySpec)
		if err != nil {
			scene.Release()
			return nil, eris.Wrapf(err, "prefabs: scene %q body %d", spec.Name, i)
		}
		scene.Bodies = append(scene.Bodies, body)
		if _, dup := scene.byName[body.Name()]; dup {
			scene.Release()
			return nil, eris.Errorf("prefabs: scene %q has two bodies named %q", spec.Name, body.Name())
		}
		scene.byName[body.Name()] = body

		if tags != nil {
			tag, err := tags(bodySpec)
			if err != nil {
				scene.Release()
				return nil, eris.Wrapf(err, "prefabs: user tag for %q", body.Name())
			}
			if tag != nil {
				body.SetUserTag(tag)
			}
		}
		if bodySpec.LinkedTo != "" {
			links[body] = bodySpec.LinkedTo
		}
	}

	for body, target := range links {
		to, ok := scene.byName[target]
		if !ok {
			scene.Release()
			return nil, eris.Wrapf(ErrUnknownName, "prefabs: %q links to %q", body.Name(), target)
		}
		if !body.SetLinkedRigidBody(to) {
			scene.Release()
			return nil, eris.Errorf("prefabs: %q cannot be linked to %q", body.Name(), target)
		}
	}
	return scene, nil
}

func (s *Scene) Body(name string) *phys.RigidBody {
	return s.byName[name]
}

// AddToWorld adds every body to the world of its layer type.
func (s *Scene) AddToWorld() error {
	for _, b := range s.Bodies {
		if err := b.AddToWorld(); err != nil {
			return eris.Wrapf(err, "prefabs: add %q", b.Name())
		}
	}
	return nil
}

// Release removes every body from its world and drops it.
func (s *Scene) Release() {
	for _, b := range s.Bodies {
		b.Release()
	}
	s.Bodies = nil
	s.byName = map[string]*phys.RigidBody{}
}
