// Package config loads simulator settings from the environment and an
// optional .env file.
package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	"github.com/signalsfoundry/impact-simulator/core"
	"github.com/signalsfoundry/impact-simulator/internal/logging"
	"github.com/signalsfoundry/impact-simulator/internal/observability"
	"github.com/signalsfoundry/impact-simulator/internal/sim/animation"
)

// ErrInvalidConfig is returned when a parsed value is out of range.
var ErrInvalidConfig = errors.New("invalid config")

// Config is the process configuration shared by both binaries.
type Config struct {
	Environment string `env:"IMPACT_ENV" envDefault:"development"`

	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"text"`
	LogSource bool   `env:"LOG_SOURCE" envDefault:"false"`

	HTTPAddr    string `env:"IMPACT_HTTP_ADDR" envDefault:":8080"`
	MetricsAddr string `env:"IMPACT_METRICS_ADDR"` // empty serves /metrics on HTTPAddr

	FrameInterval         time.Duration `env:"IMPACT_FRAME_INTERVAL" envDefault:"16ms"`
	ApproachDuration      time.Duration `env:"IMPACT_APPROACH_DURATION" envDefault:"3s"`
	CraterGrowDuration    time.Duration `env:"IMPACT_CRATER_GROW_DURATION" envDefault:"1500ms"`
	ShockwaveDuration     time.Duration `env:"IMPACT_SHOCKWAVE_DURATION" envDefault:"3s"`
	ShockwaveRadiusFactor float64       `env:"IMPACT_SHOCKWAVE_RADIUS_FACTOR" envDefault:"5"`

	PopDensityPerKm2  float64 `env:"IMPACT_POP_DENSITY" envDefault:"60"`
	TsunamiDistanceKm float64 `env:"IMPACT_TSUNAMI_DISTANCE_KM" envDefault:"300"`

	Sound bool `env:"IMPACT_SOUND" envDefault:"false"`

	Tracing observability.TracingConfig `envPrefix:"IMPACT_TRACING_"`
}

// ParseEnv loads configuration into target from vars, or from the process
// environment when vars is nil.
func ParseEnv(target any, vars map[string]string) error {
	if err := env.ParseWithOptions(target, env.Options{Environment: vars}); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// Load reads the given .env files (".env" when none are named), then the
// process environment, which wins over file values. Missing files are
// skipped. The process environment itself is never modified.
func Load(files ...string) (Config, error) {
	if len(files) == 0 {
		files = []string{".env"}
	}

	vars := map[string]string{}
	for _, f := range files {
		fileVars, err := godotenv.Read(f)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return Config{}, fmt.Errorf("read %s: %w", f, err)
		}
		for k, v := range fileVars {
			vars[k] = v
		}
	}
	for _, kv := range os.Environ() {
		if k, v, ok := strings.Cut(kv, "="); ok {
			vars[k] = v
		}
	}

	var cfg Config
	if err := ParseEnv(&cfg, vars); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the numeric settings.
func (c Config) Validate() error {
	switch {
	case c.FrameInterval <= 0:
		return fmt.Errorf("%w: IMPACT_FRAME_INTERVAL must be positive, got %s", ErrInvalidConfig, c.FrameInterval)
	case c.ApproachDuration <= 0:
		return fmt.Errorf("%w: IMPACT_APPROACH_DURATION must be positive, got %s", ErrInvalidConfig, c.ApproachDuration)
	case c.CraterGrowDuration < 0 || c.ShockwaveDuration < 0:
		return fmt.Errorf("%w: effect durations must not be negative", ErrInvalidConfig)
	case c.ShockwaveRadiusFactor <= 0:
		return fmt.Errorf("%w: IMPACT_SHOCKWAVE_RADIUS_FACTOR must be positive, got %v", ErrInvalidConfig, c.ShockwaveRadiusFactor)
	case c.PopDensityPerKm2 < 0:
		return fmt.Errorf("%w: IMPACT_POP_DENSITY must not be negative, got %v", ErrInvalidConfig, c.PopDensityPerKm2)
	case c.TsunamiDistanceKm < 0:
		return fmt.Errorf("%w: IMPACT_TSUNAMI_DISTANCE_KM must not be negative, got %v", ErrInvalidConfig, c.TsunamiDistanceKm)
	}
	return nil
}

// Logging returns the logger settings, writing to out.
func (c Config) Logging(out io.Writer) logging.Config {
	return logging.Config{
		Level:     c.LogLevel,
		Format:    c.LogFormat,
		AddSource: c.LogSource,
		Output:    out,
	}
}

// Estimator returns the physics estimator settings.
func (c Config) Estimator() core.EstimatorConfig {
	return core.EstimatorConfig{
		PopDensityPerKm2:  c.PopDensityPerKm2,
		TsunamiDistanceKm: c.TsunamiDistanceKm,
	}
}

// Animation returns the coordinator timings.
func (c Config) Animation() animation.Config {
	return animation.Config{
		ApproachDuration:      c.ApproachDuration,
		CraterGrowDuration:    c.CraterGrowDuration,
		ShockwaveDuration:     c.ShockwaveDuration,
		ShockwaveRadiusFactor: c.ShockwaveRadiusFactor,
		Estimator:             c.Estimator(),
	}
}
