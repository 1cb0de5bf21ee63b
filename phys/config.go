package phys

import (
	"github.com/JeremyLoy/config"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/rotisserie/eris"
)

// Config holds the tunables shared by every body of a Context. Fields map to
// environment variables, e.g. RIGIDPHYS_STEP_RATE.
type Config struct {
	// StepRate is the number of simulation steps per second.
	StepRate float32 `config:"RIGIDPHYS_STEP_RATE"`
	// MaxLinearVelocity is the sanity bound for entity velocity writes.
	MaxLinearVelocity float32 `config:"RIGIDPHYS_MAX_LINEAR_VELOCITY"`
	// AllowedPenetrationDepth is applied to every new solver body.
	AllowedPenetrationDepth float32 `config:"RIGIDPHYS_ALLOWED_PENETRATION_DEPTH"`
	// StrictAssertions turns programmer-error warnings into panics.
	StrictAssertions bool   `config:"RIGIDPHYS_STRICT_ASSERTIONS"`
	LogLevel         string `config:"RIGIDPHYS_LOG_LEVEL"`
}

func DefaultConfig() Config {
	return Config{
		StepRate:                30,
		MaxLinearVelocity:       2000,
		AllowedPenetrationDepth: 0.1,
		LogLevel:                "info",
	}
}

// LoadConfig returns DefaultConfig overridden by any matching environment
// variables.
func LoadConfig() (Config, error) {
	cfg := DefaultConfig()
	if err := config.FromEnv().To(&cfg); err != nil {
		return cfg, eris.Wrap(err, "phys: load config from env")
	}
	if cfg.StepRate <= 0 {
		return cfg, eris.Errorf("phys: invalid step rate %v", cfg.StepRate)
	}
	return cfg, nil
}

// IsLinearVelocityTooHigh reports whether v exceeds the configured bound in
// any component.
func (c Config) IsLinearVelocityTooHigh(v mgl32.Vec3) bool {
	limit := c.MaxLinearVelocity
	if limit <= 0 {
		return false
	}
	for _, x := range v {
		if x > limit || x < -limit {
			return true
		}
	}
	return false
}
