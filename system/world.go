package system

import (
	"github.com/milk9111/rigidphys/phys"
	"github.com/milk9111/rigidphys/prefabs"
	"github.com/rotisserie/eris"
)

// World owns scene loading, reloads and the step pipeline for one context.
type World struct {
	Ctx       *phys.Context
	Scene     *prefabs.Scene
	Scheduler *Scheduler
	Tags      prefabs.TagFactory

	scenePath string
}

// NewWorld creates a world and loads the requested scene into it.
func NewWorld(ctx *phys.Context, scenePath string, tags prefabs.TagFactory) (*World, error) {
	if ctx == nil {
		return nil, phys.ErrNilContext
	}
	w := &World{Ctx: ctx, Scheduler: NewDefaultScheduler(), Tags: tags}
	if err := w.Load(scenePath); err != nil {
		return nil, err
	}
	return w, nil
}

// Load replaces the current scene with the one at scenePath. The old scene
// is kept when the new one fails to build.
func (w *World) Load(scenePath string) error {
	spec, err := prefabs.LoadSceneSpec(scenePath)
	if err != nil {
		return err
	}
	scene, err := prefabs.BuildScene(w.Ctx, spec, w.Tags)
	if err != nil {
		return err
	}

	if err := scene.AddToWorld(); err != nil {
		scene.Release()
		return eris.Wrapf(err, "system: load %s", scenePath)
	}

	if w.Scene != nil {
		w.Scene.Release()
	}
	w.Scene = scene
	w.scenePath = scenePath
	w.Ctx.Logger.Info().
		Str("component", "world").
		Str("scene", spec.Name).
		Int("bodies", len(scene.Bodies)).
		Msg("scene loaded")
	return nil
}

// Reload loads the current scene file again.
func (w *World) Reload() error {
	return w.Load(w.scenePath)
}

func (w *World) ScenePath() string { return w.scenePath }

// Step runs the scheduler once.
func (w *World) Step(dt float32) error {
	return w.Scheduler.Update(w.Ctx, dt)
}

// Run steps the scene as many times as it asks for, using its dt.
func (w *World) Run() error {
	if w.Scene == nil {
		return nil
	}
	for i := 0; i < w.Scene.Spec.Steps; i++ {
		if err := w.Step(w.Scene.Spec.DT); err != nil {
			return eris.Wrapf(err, "system: step %d", i)
		}
	}
	return nil
}

// Close releases the current scene.
func (w *World) Close() {
	if w.Scene != nil {
		w.Scene.Release()
		w.Scene = nil
	}
}
