package usertag

import (
	"bytes"
	"testing"

	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/milk9111/rigidphys/phys"
	"github.com/milk9111/rigidphys/prefabs"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newBody(t *testing.T, name string) *phys.RigidBody {
	t.Helper()
	ctx := phys.NewContext(phys.DefaultConfig(), zerolog.Nop())
	body, err := prefabs.BuildBody(ctx, prefabs.BodySpec{
		Name:  name,
		Shape: prefabs.ShapeSpec{Kind: "box", Width: 1, Height: 1, Depth: 1},
	})
	require.NoError(t, err)
	return body
}

func bufferLogger() (*bytes.Buffer, zerolog.Logger) {
	var buf bytes.Buffer
	return &buf, zerolog.New(&buf).Level(zerolog.DebugLevel)
}

func TestLogTag(t *testing.T) {
	buf, logger := bufferLogger()
	tag := NewLogTag("logger", logger)
	body := newBody(t, "crate")
	body.SetUserTag(tag)

	assert.Equal(t, "logger", tag.Name())

	body.SetPosition(mgl32.Vec3{math32.NaN(), 0, 0}, false)
	assert.Contains(t, buf.String(), `"reason":"nan"`)
	assert.Contains(t, buf.String(), `"body":"crate"`)
	assert.Contains(t, buf.String(), `"level":"warn"`)

	buf.Reset()
	body.UpdateShape()
	assert.Contains(t, buf.String(), "shape changed")
}

func TestCodeName(t *testing.T) {
	assert.Equal(t, "nan", CodeName(phys.InvalidCodeNaN))
	assert.Equal(t, "velocity_too_high", CodeName(phys.InvalidCodeVelocityTooHigh))
	assert.Equal(t, "unknown", CodeName(7))
}

func TestScriptTagDefaultScript(t *testing.T) {
	buf, logger := bufferLogger()
	tag, err := LoadScriptTag("usertag.tengo", logger)
	require.NoError(t, err)
	body := newBody(t, "ball")
	body.SetUserTag(tag)

	body.SetPosition(mgl32.Vec3{0, math32.NaN(), 0}, false)
	assert.Contains(t, buf.String(), "ball: invalid parameter 0")

	assert.False(t, body.SetLinearVelocity(mgl32.Vec3{0, -5000, 0}, 0))
	assert.Contains(t, buf.String(), "ball: velocity too high")

	body.UpdateShape()
	assert.Contains(t, buf.String(), "ball: shape changed")

	assert.Equal(t, int64(2), tag.InvalidParameterCalls())
	assert.Equal(t, int64(1), tag.ShapeChangedCalls())
	assert.Zero(t, tag.Failures())
}

func TestScriptTagOptionalHandlers(t *testing.T) {
	buf, logger := bufferLogger()
	tag, err := LoadScriptTag("scripts/quiet.tengo", logger)
	require.NoError(t, err)
	body := newBody(t, "quiet")
	body.SetUserTag(tag)

	body.UpdateShape()
	body.SetPosition(mgl32.Vec3{math32.NaN(), 0, 0}, false)

	assert.Zero(t, tag.ShapeChangedCalls())
	assert.Equal(t, int64(1), tag.InvalidParameterCalls())
	assert.Empty(t, buf.String())
}

func TestScriptTagRuntimeError(t *testing.T) {
	buf, logger := bufferLogger()
	src := []byte("on_shape_changed := func(name) {\n\tz := 0\n\treturn 1 / z\n}\n")
	tag, err := NewScriptTag("broken", src, logger)
	require.NoError(t, err)
	body := newBody(t, "crate")
	body.SetUserTag(tag)

	body.UpdateShape()
	body.UpdateShape()
	assert.Equal(t, int64(2), tag.ShapeChangedCalls())
	assert.Equal(t, int64(2), tag.Failures())
	assert.Contains(t, buf.String(), `"level":"error"`)
}

func TestScriptTagLoadErrors(t *testing.T) {
	_, err := NewScriptTag("bad", []byte("on_shape_changed := func(name) {"), zerolog.Nop())
	assert.Error(t, err)

	_, err = LoadScriptTag("missing.tengo", zerolog.Nop())
	assert.Error(t, err)
}
