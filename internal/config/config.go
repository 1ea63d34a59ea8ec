package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	envprovider "github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/faultlinehq/faultline/pkg/types"
)

const envPrefix = "FAULTLINE_"

// Config is the full experiment configuration, merged from defaults, an
// optional YAML file, and FAULTLINE_-prefixed environment variables in
// ascending priority.
type Config struct {
	Target   TargetConfig   `koanf:"target"`
	Run      RunConfig      `koanf:"run"`
	Timeouts TimeoutsConfig `koanf:"timeouts"`
	Server   ServerConfig   `koanf:"server"`
	Log      LogConfig      `koanf:"log"`
	Results  ResultsConfig  `koanf:"results"`
}

type TargetConfig struct {
	URL         string        `koanf:"url" validate:"required,url"`
	WaitTimeout time.Duration `koanf:"wait_timeout"`
}

type RunConfig struct {
	Calls         int              `koanf:"calls" validate:"min=0"`
	MaxRetries    int              `koanf:"max_retries" validate:"min=1"`
	Workers       int              `koanf:"workers" validate:"min=1"`
	RatePerSecond float64          `koanf:"rate_per_second" validate:"min=0"`
	Strategies    []types.Strategy `koanf:"strategies"`
}

type TimeoutsConfig struct {
	Aggressive time.Duration `koanf:"aggressive"`
	Patient    time.Duration `koanf:"patient"`
}

type ServerConfig struct {
	Addr                    string        `koanf:"addr" validate:"required"`
	IntermittentProbability float64       `koanf:"intermittent_probability" validate:"gte=0,lte=1"`
	DelayProbability        float64       `koanf:"delay_probability" validate:"gte=0,lte=1"`
	ErrorProbability        float64       `koanf:"error_probability" validate:"gte=0,lte=1"`
	Delay                   time.Duration `koanf:"delay"`
	NormalMean              time.Duration `koanf:"normal_mean"`
}

type LogConfig struct {
	Level  string `koanf:"level" validate:"oneof=trace debug info warn error"`
	Pretty bool   `koanf:"pretty"`
}

type ResultsConfig struct {
	Dir string `koanf:"dir" validate:"required"`
}

func defaults() map[string]any {
	return map[string]any{
		"target.url":          "http://localhost:8000",
		"target.wait_timeout": "10s",

		"run.calls":           50,
		"run.max_retries":     3,
		"run.workers":         1,
		"run.rate_per_second": 0.0,
		"run.strategies":      []string{"aggressive", "patient"},

		"timeouts.aggressive": "300ms",
		"timeouts.patient":    "35s",

		"server.addr":                     "127.0.0.1:8000",
		"server.intermittent_probability": 0.10,
		"server.delay_probability":        0.05,
		"server.error_probability":        0.05,
		"server.delay":                    "10s",
		"server.normal_mean":              "120ms",

		"log.level":  "info",
		"log.pretty": false,

		"results.dir": "results",
	}
}

// Load merges defaults, the YAML file at path (optional when missing), and
// environment variables. Env keys use double underscores as section
// separators: FAULTLINE_RUN__MAX_RETRIES sets run.max_retries.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(defaults(), "."), nil); err != nil {
		return nil, fmt.Errorf("load defaults: %w", err)
	}

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			if !errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("load config file %q: %w", path, err)
			}
		}
	}

	if err := k.Load(envprovider.Provider(envPrefix, ".", func(s string) string {
		key := strings.ToLower(strings.TrimPrefix(s, envPrefix))
		return strings.ReplaceAll(key, "__", ".")
	}), nil); err != nil {
		return nil, fmt.Errorf("load environment: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

// Validate checks field constraints plus the cross-field rules the tag
// language cannot express.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return err
	}

	if c.Timeouts.Aggressive <= 0 {
		return fmt.Errorf("timeouts.aggressive must be positive, got %s", c.Timeouts.Aggressive)
	}
	if c.Timeouts.Patient <= 0 {
		return fmt.Errorf("timeouts.patient must be positive, got %s", c.Timeouts.Patient)
	}
	if c.Timeouts.Aggressive >= c.Timeouts.Patient {
		return fmt.Errorf("timeouts.aggressive (%s) must be shorter than timeouts.patient (%s)",
			c.Timeouts.Aggressive, c.Timeouts.Patient)
	}

	if c.Target.WaitTimeout <= 0 {
		return fmt.Errorf("target.wait_timeout must be positive, got %s", c.Target.WaitTimeout)
	}

	if sum := c.Server.IntermittentProbability + c.Server.DelayProbability + c.Server.ErrorProbability; sum > 1 {
		return fmt.Errorf("server fault probabilities sum to %v, must not exceed 1", sum)
	}
	if c.Server.Delay < 0 {
		return fmt.Errorf("server.delay must not be negative, got %s", c.Server.Delay)
	}
	if c.Server.NormalMean <= 0 {
		return fmt.Errorf("server.normal_mean must be positive, got %s", c.Server.NormalMean)
	}

	if len(c.Run.Strategies) == 0 {
		return fmt.Errorf("run.strategies must name at least one strategy")
	}
	seen := map[types.Strategy]bool{}
	for _, s := range c.Run.Strategies {
		if !s.Valid() {
			return fmt.Errorf("unknown strategy in run.strategies: %q", s)
		}
		if seen[s] {
			return fmt.Errorf("duplicate strategy in run.strategies: %q", s)
		}
		seen[s] = true
	}
	return nil
}
