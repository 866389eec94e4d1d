package qfragile

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"
)

func TestConfigValidate(t *testing.T) {
	Convey("Given the default configuration", t, func() {
		cfg := *NewConfig()

		Convey("It should be valid", func() {
			So(cfg.Validate(), ShouldBeNil)
		})

		Convey("It should reject registers outside 3 to 8 qubits", func() {
			cfg.QubitCount = 2
			So(errors.Is(cfg.Validate(), ErrInvalidConfiguration), ShouldBeTrue)
			cfg.QubitCount = 9
			So(errors.Is(cfg.Validate(), ErrInvalidConfiguration), ShouldBeTrue)
		})

		Convey("It should reject fractions outside [0,1]", func() {
			cfg.NoiseLevel = 1.5
			cfg.DecoherenceRate = -0.1
			err := cfg.Validate()
			So(errors.Is(err, ErrInvalidConfiguration), ShouldBeTrue)
			So(err.Error(), ShouldContainSubstring, "NoiseLevel")
			So(err.Error(), ShouldContainSubstring, "DecoherenceRate")
		})

		Convey("It should reject a non-positive animation speed", func() {
			cfg.AnimationSpeed = 0
			So(errors.Is(cfg.Validate(), ErrInvalidConfiguration), ShouldBeTrue)
		})
	})

	Convey("Given a config with the optional fields left zero", t, func() {
		cfg := Config{QubitCount: 4, AnimationSpeed: 1}.withDefaults()

		Convey("It should fill them from the defaults", func() {
			So(cfg.TickDuration, ShouldEqual, DefaultTickDuration)
			So(cfg.MaxImageBytes, ShouldEqual, DefaultMaxImageBytes)
			So(cfg.MaxImageDimension, ShouldEqual, DefaultMaxImageDimension)
			So(cfg.FidelityWindow, ShouldEqual, DefaultFidelityWindow)
			So(cfg.Validate(), ShouldBeNil)
		})
	})
}

func TestLoadConfig(t *testing.T) {
	Convey("Given a simulation file", t, func() {
		path := filepath.Join(t.TempDir(), "sim.yaml")
		So(os.WriteFile(path, []byte(`
simulation:
  qubit_count: 5
  noise_level: 0.4
  tick_duration: 500ms
circuit:
  - type: hadamard
    target_qubits: [0]
  - type: cnot
    control_qubits: [0]
    target_qubits: [1]
    error_probability: 0.3
`), 0o644), ShouldBeNil)

		Convey("It should merge the file over the defaults", func() {
			cfg, circuit, err := LoadConfig(path)
			So(err, ShouldBeNil)
			So(cfg.QubitCount, ShouldEqual, 5)
			So(cfg.NoiseLevel, ShouldEqual, 0.4)
			So(cfg.TickDuration, ShouldEqual, 500*time.Millisecond)
			So(cfg.DecoherenceRate, ShouldEqual, NewConfig().DecoherenceRate)

			So(circuit, ShouldHaveLength, 2)
			So(circuit[0].Type, ShouldEqual, GateHadamard)
			So(circuit[1].ControlQubits, ShouldResemble, []int{0})
			So(*circuit[1].ErrorProbability, ShouldEqual, 0.3)
		})

		Convey("It should let the environment override the file", func() {
			t.Setenv("QFRAGILE_SIMULATION_NOISE_LEVEL", "0.7")
			cfg, _, err := LoadConfig(path)
			So(err, ShouldBeNil)
			So(cfg.NoiseLevel, ShouldEqual, 0.7)
		})
	})

	Convey("Given a file with out-of-range values", t, func() {
		path := filepath.Join(t.TempDir(), "bad.yaml")
		So(os.WriteFile(path, []byte("simulation:\n  qubit_count: 12\n"), 0o644), ShouldBeNil)

		Convey("It should fail validation", func() {
			_, _, err := LoadConfig(path)
			So(errors.Is(err, ErrInvalidConfiguration), ShouldBeTrue)
		})
	})

	Convey("Given a missing file", t, func() {
		_, _, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))

		Convey("It should report an invalid configuration", func() {
			So(errors.Is(err, ErrInvalidConfiguration), ShouldBeTrue)
		})
	})
}
