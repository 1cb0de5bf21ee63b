package usertag

import (
	"strings"
	"sync"
	"sync/atomic"

	"github.com/d5/tengo/v2"
	"github.com/d5/tengo/v2/stdlib"
	"github.com/milk9111/rigidphys/phys"
	"github.com/milk9111/rigidphys/prefabs"
	"github.com/rotisserie/eris"
	"github.com/rs/zerolog"
)

const (
	invalidParameterFunc = "on_invalid_parameter"
	shapeChangedFunc     = "on_shape_changed"
)

// ScriptTag forwards notifications to the on_invalid_parameter(name, code)
// and on_shape_changed(name) functions of a tengo script. Either function
// may be left out. A non-empty string returned by a handler is logged.
type ScriptTag struct {
	name   string
	logger zerolog.Logger

	mu       sync.Mutex
	compiled *tengo.Compiled

	hasInvalid bool
	hasShape   bool

	invalidCalls atomic.Int64
	shapeCalls   atomic.Int64
	failures     atomic.Int64
}

// LoadScriptTag compiles the script at path, read through prefabs.LoadScript.
func LoadScriptTag(path string, logger zerolog.Logger) (*ScriptTag, error) {
	src, err := prefabs.LoadScript(path)
	if err != nil {
		return nil, eris.Wrapf(err, "usertag: load %s", path)
	}
	return NewScriptTag(path, src, logger)
}

func NewScriptTag(name string, src []byte, logger zerolog.Logger) (*ScriptTag, error) {
	probe, err := compile(src, "")
	if err != nil {
		return nil, eris.Wrapf(err, "usertag: compile %s", name)
	}
	// Globals only hold values once the script has run.
	if err := probe.Run(); err != nil {
		return nil, eris.Wrapf(err, "usertag: run %s", name)
	}
	t := &ScriptTag{
		name:       name,
		logger:     logger.With().Str("component", "usertag").Str("tag", name).Logger(),
		hasInvalid: probe.IsDefined(invalidParameterFunc),
		hasShape:   probe.IsDefined(shapeChangedFunc),
	}

	t.compiled, err = compile(src, t.dispatch())
	if err != nil {
		return nil, eris.Wrapf(err, "usertag: compile %s", name)
	}
	return t, nil
}

func compile(src []byte, dispatch string) (*tengo.Compiled, error) {
	script := tengo.NewScript([]byte(string(src) + "\n" + dispatch))
	_ = script.Add("__event", "")
	_ = script.Add("__name", "")
	_ = script.Add("__code", 0)
	_ = script.Add("__result", "")
	script.SetImports(stdlib.GetModuleMap(stdlib.AllModuleNames()...))
	return script.Compile()
}

// dispatch calls the handler selected by __event. Handlers the script does
// not define are never referenced.
func (t *ScriptTag) dispatch() string {
	var b strings.Builder
	if t.hasInvalid {
		b.WriteString("if __event == \"invalid_parameter\" {\n\t__result = " + invalidParameterFunc + "(__name, __code)\n}\n")
	}
	if t.hasShape {
		b.WriteString("if __event == \"shape_changed\" {\n\t__result = " + shapeChangedFunc + "(__name)\n}\n")
	}
	return b.String()
}

func (t *ScriptTag) Name() string { return t.name }

func (t *ScriptTag) OnInvalidParameter(body *phys.RigidBody, code int) {
	if !t.hasInvalid {
		return
	}
	t.invalidCalls.Add(1)
	t.run("invalid_parameter", body.Name(), code)
}

func (t *ScriptTag) OnBodyShapeChanged(body *phys.RigidBody) {
	if !t.hasShape {
		return
	}
	t.shapeCalls.Add(1)
	t.run("shape_changed", body.Name(), 0)
}

func (t *ScriptTag) InvalidParameterCalls() int64 { return t.invalidCalls.Load() }
func (t *ScriptTag) ShapeChangedCalls() int64     { return t.shapeCalls.Load() }
func (t *ScriptTag) Failures() int64              { return t.failures.Load() }

func (t *ScriptTag) run(event, body string, code int) {
	t.mu.Lock()
	defer t.mu.Unlock()

	err := t.compiled.Set("__event", event)
	if err == nil {
		err = t.compiled.Set("__name", body)
	}
	if err == nil {
		err = t.compiled.Set("__code", code)
	}
	if err == nil {
		err = t.compiled.Set("__result", "")
	}
	if err == nil {
		err = t.compiled.Run()
	}
	if err != nil {
		t.failures.Add(1)
		t.logger.Error().Err(err).Str("body", body).Str("event", event).Msg("script handler")
		return
	}

	if out := t.compiled.Get("__result"); out.ValueType() == "string" {
		if msg := out.String(); msg != "" {
			t.logger.Info().Str("body", body).Str("event", event).Msg(msg)
		}
	}
}
