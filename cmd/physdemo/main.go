package main

import (
	"flag"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"time"

	"github.com/milk9111/rigidphys/phys"
	"github.com/milk9111/rigidphys/phys/filter"
	"github.com/milk9111/rigidphys/prefabs"
	"github.com/milk9111/rigidphys/solver/cpsolver"
	"github.com/milk9111/rigidphys/system"
	"github.com/milk9111/rigidphys/usertag"
	"github.com/rs/zerolog"
)

func main() {
	sceneName := flag.String("scene", "scene.yaml", "scene file in prefabs/ (embedded copy used when missing on disk)")
	steps := flag.Int("steps", 0, "number of steps to run, overriding the scene")
	watch := flag.Bool("watch", false, "keep stepping and reload the scene when prefabs/ changes")
	every := flag.Int("log-every", 30, "log body state every n steps")
	flag.Parse()

	cfg, err := phys.LoadConfig()
	logger := newLogger(cfg.LogLevel)
	if err != nil {
		logger.Fatal().Err(err).Msg("config")
	}

	ctx := phys.NewContext(cfg, logger)
	ctx.SetWorld(filter.LayerTypeEntity, cpsolver.NewWorld())
	ctx.SetWorld(filter.LayerTypeSensor, cpsolver.NewWorld())

	world, err := system.NewWorld(ctx, *sceneName, tagFactory(logger))
	if err != nil {
		logger.Fatal().Err(err).Str("scene", *sceneName).Msg("load scene")
	}
	defer world.Close()

	if *steps > 0 {
		world.Scene.Spec.Steps = *steps
	}

	if !*watch {
		for i := 0; i < world.Scene.Spec.Steps; i++ {
			if err := world.Step(world.Scene.Spec.DT); err != nil {
				logger.Fatal().Err(err).Int("step", i).Msg("step")
			}
			if *every > 0 && (i+1)%*every == 0 {
				logBodies(logger, world, i+1)
			}
		}
		logBodies(logger, world, world.Scene.Spec.Steps)
		return
	}

	if err := runWatching(logger, world, *every); err != nil {
		logger.Fatal().Err(err).Msg("watch")
	}
}

func newLogger(level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}).
		Level(lvl).
		With().
		Timestamp().
		Logger()
}

// tagFactory gives bodies with a .tengo user_tag a script tag and every
// other tagged body a log tag.
func tagFactory(logger zerolog.Logger) prefabs.TagFactory {
	return func(spec prefabs.BodySpec) (phys.UserTag, error) {
		switch {
		case spec.UserTag == "":
			return nil, nil
		case strings.HasSuffix(strings.ToLower(spec.UserTag), ".tengo"):
			return usertag.LoadScriptTag(spec.UserTag, logger)
		default:
			return usertag.NewLogTag(spec.UserTag, logger), nil
		}
	}
}

func logBodies(logger zerolog.Logger, world *system.World, step int) {
	for _, b := range world.Scene.Bodies {
		pos := b.Position()
		vel := b.LinearVelocity()
		logger.Info().
			Int("step", step).
			Str("body", b.Name()).
			Stringer("motion", b.MotionType()).
			Floats32("position", pos[:]).
			Floats32("velocity", vel[:]).
			Bool("active", b.IsActive()).
			Msg("state")
	}
}

func runWatching(logger zerolog.Logger, world *system.World, every int) error {
	dirs := []string{prefabs.DiskRoot}
	if info, err := os.Stat(filepath.Join(prefabs.DiskRoot, "scripts")); err == nil && info.IsDir() {
		dirs = append(dirs, filepath.Join(prefabs.DiskRoot, "scripts"))
	}
	watcher, err := prefabs.NewWatcher(dirs...)
	if err != nil {
		return err
	}
	defer watcher.Close()

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt)

	dt := world.Scene.Spec.DT
	if dt <= 0 {
		dt = world.Ctx.StepDelta()
	}
	ticker := time.NewTicker(time.Duration(float64(dt) * float64(time.Second)))
	defer ticker.Stop()

	errs := watcher.Errors()
	step := 0
	for {
		select {
		case <-ticker.C:
			if err := world.Step(dt); err != nil {
				return err
			}
			step++
			if every > 0 && step%every == 0 {
				logBodies(logger, world, step)
			}
		case batch, ok := <-watcher.Changes():
			if !ok {
				return nil
			}
			files := make([]string, len(batch))
			for i, c := range batch {
				files[i] = c.Path
			}
			if err := world.Reload(); err != nil {
				logger.Error().Err(err).Strs("files", files).Msg("reload")
				continue
			}
			step = 0
			logger.Info().Strs("files", files).Msg("reloaded")
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			logger.Warn().Err(err).Msg("watcher")
		case <-interrupt:
			return nil
		}
	}
}
