// Package usertag provides phys.UserTag implementations: one that logs
// notifications and one that forwards them to a tengo script.
package usertag

import (
	"github.com/milk9111/rigidphys/phys"
	"github.com/rs/zerolog"
)

// LogTag logs every notification it receives.
type LogTag struct {
	name   string
	logger zerolog.Logger
}

func NewLogTag(name string, logger zerolog.Logger) *LogTag {
	return &LogTag{
		name:   name,
		logger: logger.With().Str("component", "usertag").Str("tag", name).Logger(),
	}
}

func (t *LogTag) Name() string { return t.name }

func (t *LogTag) OnBodyShapeChanged(body *phys.RigidBody) {
	t.logger.Debug().Str("body", body.Name()).Msg("shape changed")
}

func (t *LogTag) OnInvalidParameter(body *phys.RigidBody, code int) {
	t.logger.Warn().
		Str("body", body.Name()).
		Int("code", code).
		Str("reason", CodeName(code)).
		Msg("invalid parameter")
}

// CodeName describes an invalid-parameter code.
func CodeName(code int) string {
	switch code {
	case phys.InvalidCodeNaN:
		return "nan"
	case phys.InvalidCodeVelocityTooHigh:
		return "velocity_too_high"
	default:
		return "unknown"
	}
}
