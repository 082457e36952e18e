package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	PolicyRandom = "random"
	PolicyGreedy = "greedy"
	PolicyLLM    = "llm"
)

// EnvPrefix namespaces the environment variables read by ApplyEnv
const EnvPrefix = "GRIDHUNT_"

type ExperimentConfig struct {
	Name        string       `yaml:"name"`
	Seed        int64        `yaml:"seed"`
	Episodes    int          `yaml:"episodes"`
	MaxSteps    int          `yaml:"max_steps"`
	StatsPath   string       `yaml:"stats_path"`
	Environment EnvConfig    `yaml:"environment"`
	Policy      PolicyConfig `yaml:"policy"`
	Logging     LogConfig    `yaml:"logging"`
	Viewer      ViewerConfig `yaml:"viewer"`
}

type EnvConfig struct {
	GridSize         int `yaml:"grid_size"`
	MaxSpawnAttempts int `yaml:"max_spawn_attempts"`
}

type PolicyConfig struct {
	Kind     string  `yaml:"kind"`
	Provider string  `yaml:"provider"`
	Model    string  `yaml:"model"`
	Epsilon  float64 `yaml:"epsilon"`
	Memory   int     `yaml:"memory"`
}

type LogConfig struct {
	// Level is "info" or "quiet"; quiet drops the per-episode lines
	Level string `yaml:"level"`
	Path  string `yaml:"path"`
}

type ViewerConfig struct {
	Addr string `yaml:"addr"`
}

// Default returns the configuration used when no file is given.
// A zero seed means "seed from the clock".
func Default() *ExperimentConfig {
	return &ExperimentConfig{
		Name:     "gridhunt",
		Episodes: 100,
		MaxSteps: 500,
		Environment: EnvConfig{
			GridSize:         10,
			MaxSpawnAttempts: 10000,
		},
		Policy: PolicyConfig{
			Kind:    PolicyGreedy,
			Epsilon: 0.1,
			Memory:  8,
		},
		Logging: LogConfig{Level: "info"},
		Viewer:  ViewerConfig{Addr: ":8080"},
	}
}

// LoadConfig reads a YAML file over the defaults and validates the result
func LoadConfig(path string) (*ExperimentConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

func (c *ExperimentConfig) Validate() error {
	var errs []error
	if c.Episodes < 1 {
		errs = append(errs, fmt.Errorf("episodes must be positive, got %d", c.Episodes))
	}
	if c.MaxSteps < 1 {
		errs = append(errs, fmt.Errorf("max_steps must be positive, got %d", c.MaxSteps))
	}
	if c.Environment.GridSize < 1 {
		errs = append(errs, fmt.Errorf("environment.grid_size must be positive, got %d", c.Environment.GridSize))
	}
	if c.Environment.MaxSpawnAttempts < 1 {
		errs = append(errs, fmt.Errorf("environment.max_spawn_attempts must be positive, got %d", c.Environment.MaxSpawnAttempts))
	}
	switch c.Policy.Kind {
	case PolicyRandom, PolicyGreedy, PolicyLLM:
	default:
		errs = append(errs, fmt.Errorf("unknown policy kind %q", c.Policy.Kind))
	}
	if c.Policy.Epsilon < 0 || c.Policy.Epsilon > 1 {
		errs = append(errs, fmt.Errorf("policy.epsilon must be in [0,1], got %v", c.Policy.Epsilon))
	}
	switch c.Logging.Level {
	case "", "info", "quiet":
	default:
		errs = append(errs, fmt.Errorf("unknown logging level %q", c.Logging.Level))
	}
	return errors.Join(errs...)
}

// ApplyEnv overrides fields from GRIDHUNT_* variables, e.g. GRIDHUNT_SEED
// or GRIDHUNT_POLICY_KIND. Unset or empty variables are ignored.
func (c *ExperimentConfig) ApplyEnv() error {
	var errs []error
	str := func(key string, dst *string) {
		if v := os.Getenv(EnvPrefix + key); v != "" {
			*dst = v
		}
	}
	num := func(key string, dst *int) {
		if v := os.Getenv(EnvPrefix + key); v != "" {
			n, err := strconv.Atoi(strings.TrimSpace(v))
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", EnvPrefix, key, err))
				return
			}
			*dst = n
		}
	}

	if v := os.Getenv(EnvPrefix + "SEED"); v != "" {
		seed, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
		if err != nil {
			errs = append(errs, fmt.Errorf("%sSEED: %w", EnvPrefix, err))
		} else {
			c.Seed = seed
		}
	}
	if v := os.Getenv(EnvPrefix + "POLICY_EPSILON"); v != "" {
		eps, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			errs = append(errs, fmt.Errorf("%sPOLICY_EPSILON: %w", EnvPrefix, err))
		} else {
			c.Policy.Epsilon = eps
		}
	}
	num("EPISODES", &c.Episodes)
	num("MAX_STEPS", &c.MaxSteps)
	num("GRID_SIZE", &c.Environment.GridSize)
	num("POLICY_MEMORY", &c.Policy.Memory)
	str("STATS_PATH", &c.StatsPath)
	str("POLICY_KIND", &c.Policy.Kind)
	str("POLICY_PROVIDER", &c.Policy.Provider)
	str("POLICY_MODEL", &c.Policy.Model)
	str("LOG_LEVEL", &c.Logging.Level)
	str("LOG_PATH", &c.Logging.Path)
	str("VIEWER_ADDR", &c.Viewer.Addr)
	return errors.Join(errs...)
}
