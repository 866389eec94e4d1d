package qfragile

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

const (
	DefaultTickDuration      = time.Second
	DefaultMaxImageBytes     = 10 << 20
	DefaultMaxImageDimension = 4096
	DefaultFidelityWindow    = 10
)

/*
Config holds the parameters of a simulation run. The probabilistic fields are all
fractions in [0,1]; AnimationSpeed only paces the automatic run loop and never
changes what a step computes.
*/
type Config struct {
	QubitCount           int           `mapstructure:"qubit_count" msgpack:"qubit_count" validate:"gte=3,lte=8"`
	NoiseLevel           float64       `mapstructure:"noise_level" msgpack:"noise_level" validate:"gte=0,lte=1"`
	DecoherenceRate      float64       `mapstructure:"decoherence_rate" msgpack:"decoherence_rate" validate:"gte=0,lte=1"`
	GateErrorProbability float64       `mapstructure:"gate_error_probability" msgpack:"gate_error_probability" validate:"gte=0,lte=1"`
	AnimationSpeed       float64       `mapstructure:"animation_speed" msgpack:"animation_speed" validate:"gt=0,lte=10"`
	Seed                 uint64        `mapstructure:"seed" msgpack:"seed"`
	TickDuration         time.Duration `mapstructure:"tick_duration" msgpack:"tick_duration" validate:"gt=0"`
	MaxImageBytes        int           `mapstructure:"max_image_bytes" msgpack:"max_image_bytes" validate:"gt=0"`
	MaxImageDimension    int           `mapstructure:"max_image_dimension" msgpack:"max_image_dimension" validate:"gt=0"`
	FidelityWindow       int           `mapstructure:"fidelity_window" msgpack:"fidelity_window" validate:"gte=1"`
}

// NewConfig returns a Config with classroom-friendly defaults.
func NewConfig() *Config {
	return &Config{
		QubitCount:           3,
		NoiseLevel:           0.2,
		DecoherenceRate:      0.1,
		GateErrorProbability: 0.1,
		AnimationSpeed:       1,
		TickDuration:         DefaultTickDuration,
		MaxImageBytes:        DefaultMaxImageBytes,
		MaxImageDimension:    DefaultMaxImageDimension,
		FidelityWindow:       DefaultFidelityWindow,
	}
}

var configValidate = validator.New()

// withDefaults fills the optional fields a caller is allowed to leave zero.
func (c Config) withDefaults() Config {
	if c.TickDuration == 0 {
		c.TickDuration = DefaultTickDuration
	}
	if c.MaxImageBytes == 0 {
		c.MaxImageBytes = DefaultMaxImageBytes
	}
	if c.MaxImageDimension == 0 {
		c.MaxImageDimension = DefaultMaxImageDimension
	}
	if c.FidelityWindow == 0 {
		c.FidelityWindow = DefaultFidelityWindow
	}
	return c
}

// Validate checks every range and reports all violations at once.
func (c Config) Validate() error {
	err := configValidate.Struct(c)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("%w: %v", ErrInvalidConfiguration, err)
	}

	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fmt.Sprintf("%s must satisfy %s=%s, got %v", fe.Field(), fe.Tag(), fe.Param(), fe.Value()))
	}
	return fmt.Errorf("%w: %s", ErrInvalidConfiguration, strings.Join(msgs, "; "))
}

// simulationFile is the on-disk layout read by LoadConfig.
type simulationFile struct {
	Simulation Config           `mapstructure:"simulation"`
	Circuit    []GateDefinition `mapstructure:"circuit"`
}

/*
LoadConfig reads a simulation file (YAML, JSON or TOML) with a `simulation`
section and an optional `circuit` list. Values not present in the file keep the
NewConfig defaults, and QFRAGILE_* environment variables override both, e.g.
QFRAGILE_SIMULATION_NOISE_LEVEL=0.5.
*/
func LoadConfig(path string) (Config, []GateDefinition, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetEnvPrefix("QFRAGILE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	defaults := NewConfig()
	v.SetDefault("simulation.qubit_count", defaults.QubitCount)
	v.SetDefault("simulation.noise_level", defaults.NoiseLevel)
	v.SetDefault("simulation.decoherence_rate", defaults.DecoherenceRate)
	v.SetDefault("simulation.gate_error_probability", defaults.GateErrorProbability)
	v.SetDefault("simulation.animation_speed", defaults.AnimationSpeed)
	v.SetDefault("simulation.seed", defaults.Seed)
	v.SetDefault("simulation.tick_duration", defaults.TickDuration)
	v.SetDefault("simulation.max_image_bytes", defaults.MaxImageBytes)
	v.SetDefault("simulation.max_image_dimension", defaults.MaxImageDimension)
	v.SetDefault("simulation.fidelity_window", defaults.FidelityWindow)

	if err := v.ReadInConfig(); err != nil {
		return Config{}, nil, fmt.Errorf("%w: reading %s: %v", ErrInvalidConfiguration, path, err)
	}

	var file simulationFile
	if err := v.Unmarshal(&file); err != nil {
		return Config{}, nil, fmt.Errorf("%w: decoding %s: %v", ErrInvalidConfiguration, path, err)
	}

	cfg := file.Simulation
	if err := cfg.Validate(); err != nil {
		return Config{}, nil, err
	}
	return cfg, file.Circuit, nil
}
