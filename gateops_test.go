package qfragile

import (
	"errors"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func mustGate(t *testing.T, def GateDefinition, errorProbability float64) Gate {
	t.Helper()
	gates, err := buildCircuit([]GateDefinition{def}, 3, errorProbability)
	if err != nil {
		t.Fatalf("build gate: %v", err)
	}
	return gates[0]
}

func gateInput(t *testing.T, def GateDefinition, errorProbability float64, qubits []Qubit, rng Random) GateInput {
	return GateInput{
		Gate:   mustGate(t, def, errorProbability),
		Packet: testPacket(t),
		Qubits: qubits,
		Random: rng,
		Images: NewImageProcessor(0, 0),
	}
}

func TestGateErrorCeilings(t *testing.T) {
	Convey("Given the gate types", t, func() {
		Convey("Error ceilings should grow with gate complexity", func() {
			So(GateIdentity.ErrorCeiling(), ShouldBeLessThan, GatePhase.ErrorCeiling())
			So(GatePhase.ErrorCeiling(), ShouldBeLessThan, GateHadamard.ErrorCeiling())
			So(GateHadamard.ErrorCeiling(), ShouldBeLessThan, GateCNOT.ErrorCeiling())
		})

		Convey("Actual errors should stay under the ceiling", func() {
			rng := NewRandom(7)
			defs := []GateDefinition{Identity(0), Phase(0), Hadamard(0), CNOT(0, 1)}

			for _, def := range defs {
				in := gateInput(t, def, 1, NewQubits(3), rng)
				for range 25 {
					res, err := ApplyGate(in)
					So(err, ShouldBeNil)
					So(res.ActualError, ShouldBeBetweenOrEqual, 0, def.Type.ErrorCeiling())
					So(res.Fidelity, ShouldBeBetweenOrEqual, 0, 1)
					So(res.Fidelity, ShouldAlmostEqual, 1-res.ActualError)
				}
			}
		})
	})
}

func TestApplyHadamard(t *testing.T) {
	Convey("Given a qubit in a definite state", t, func() {
		in := gateInput(t, Hadamard(0), 0, NewQubits(3), fixedRandom(0.5))

		Convey("Hadamard should raise superposition and report entering it", func() {
			res, err := ApplyGate(in)
			So(err, ShouldBeNil)
			So(res.Qubits[0].SuperpositionLevel, ShouldEqual, HadamardSuperpositionStep)
			So(res.Fidelity, ShouldEqual, 1)
			So(res.Packet, ShouldEqual, in.Packet)
			So(res.Events[0].Type, ShouldEqual, EventSuperpositionEntered)
			So(res.Events[len(res.Events)-1].Type, ShouldEqual, EventGateApplied)

			Convey("A second Hadamard should saturate without re-entering", func() {
				in.Qubits = res.Qubits
				again, err := ApplyGate(in)
				So(err, ShouldBeNil)
				So(again.Qubits[0].SuperpositionLevel, ShouldEqual, 1)
				So(again.Events[0].Type, ShouldEqual, EventGateApplied)
			})
		})
	})
}

func TestApplyCNOT(t *testing.T) {
	Convey("Given two unlinked qubits", t, func() {
		in := gateInput(t, CNOT(0, 2), 0, NewQubits(3), fixedRandom(0.5))

		Convey("CNOT should link them symmetrically", func() {
			res, err := ApplyGate(in)
			So(err, ShouldBeNil)

			ab, ok := res.Qubits[0].EntangledWith("q2")
			So(ok, ShouldBeTrue)
			ba, ok := res.Qubits[2].EntangledWith("q0")
			So(ok, ShouldBeTrue)
			So(ab.Strength, ShouldEqual, CNOTEntanglementStrength)
			So(ba.Strength, ShouldEqual, ab.Strength)
			So(res.Qubits[1].Entanglements, ShouldBeEmpty)
			So(res.Events[0].Type, ShouldEqual, EventEntanglementFormed)
			So(res.Events[0].QubitIDs, ShouldResemble, []string{"q0", "q2"})

			Convey("Repeating it should refresh the link without forming a new one", func() {
				in.Qubits = res.Qubits
				again, err := ApplyGate(in)
				So(err, ShouldBeNil)
				So(again.Events[0].Type, ShouldEqual, EventGateApplied)
				So(again.Qubits[0].Entanglements, ShouldHaveLength, 1)
			})
		})

		Convey("It should leave the inputs untouched", func() {
			in = gateInput(t, CNOT(0, 2), 1, NewQubits(3), fixedRandom(0.01))
			pix := append([]uint8(nil), in.Packet.Image.Pix...)

			res, err := ApplyGate(in)
			So(err, ShouldBeNil)
			So(res.ActualError, ShouldBeGreaterThan, 0)
			So(res.Packet.DegradationLevel, ShouldBeGreaterThan, 0)

			So(in.Qubits[0].Entanglements, ShouldBeEmpty)
			So(in.Packet.DegradationLevel, ShouldEqual, 0)
			So(in.Packet.History, ShouldBeEmpty)
			So(in.Packet.Image.Pix, ShouldResemble, pix)
		})
	})
}

func TestApplyMeasure(t *testing.T) {
	Convey("Given an entangled qubit in superposition", t, func() {
		qubits := NewQubits(3)
		qubits[0].SuperpositionLevel = 0.5
		entangle(qubits, 0, 1, CNOTEntanglementStrength)
		in := gateInput(t, Measure(0), 1, qubits, fixedRandom(0))

		Convey("Measure should collapse it and break its links", func() {
			res, err := ApplyGate(in)
			So(err, ShouldBeNil)
			So(res.Qubits[0].IsCollapsed(), ShouldBeTrue)
			So(res.Qubits[1].Entanglements, ShouldBeEmpty)
			So(res.Fidelity, ShouldEqual, 1)

			types := make([]EventType, len(res.Events))
			for i, ev := range res.Events {
				types[i] = ev.Type
			}
			So(types[0], ShouldEqual, EventMeasurementPerformed)
			So(types, ShouldContain, EventEntanglementBroken)
			So(types, ShouldContain, EventSuperpositionCollapsed)
		})

		Convey("Measure should pixelate without adding degradation", func() {
			res, err := ApplyGate(in)
			So(err, ShouldBeNil)
			So(res.Packet.DegradationLevel, ShouldEqual, 0)
			So(res.Packet.History, ShouldHaveLength, 1)
			So(res.Packet.History[0].Type, ShouldEqual, CorruptionPixelate)
			So(res.Packet.History[0].Intensity, ShouldEqual, MeasureCorruptionIntensity)
		})

		Convey("Measuring twice should leave the same register", func() {
			once, err := ApplyGate(in)
			So(err, ShouldBeNil)
			in.Qubits = once.Qubits
			in.Packet = once.Packet
			twice, err := ApplyGate(in)
			So(err, ShouldBeNil)
			So(twice.Qubits, ShouldResemble, once.Qubits)
			So(twice.Packet.DegradationLevel, ShouldEqual, once.Packet.DegradationLevel)
		})
	})
}

func TestGateDegradation(t *testing.T) {
	Convey("Given always-failing gates", t, func() {
		rng := NewRandom(99)
		small, err := NewImageProcessor(0, 0).NewPacketFromImage(gradientImage(12, 12))
		So(err, ShouldBeNil)

		mean := func(def GateDefinition) float64 {
			gate := mustGate(t, def, 1)
			total := 0.0
			for range 300 {
				res, err := ApplyGate(GateInput{
					Gate:   gate,
					Packet: small,
					Qubits: NewQubits(3),
					Random: rng,
					Images: NewImageProcessor(0, 0),
				})
				So(err, ShouldBeNil)
				total += res.Packet.DegradationLevel
			}
			return total / 300
		}

		Convey("CNOT should degrade more than Hadamard on average", func() {
			So(mean(CNOT(0, 1)), ShouldBeGreaterThanOrEqualTo, mean(Hadamard(0)))
		})
	})
}

func TestApplyGateFaults(t *testing.T) {
	Convey("Given a gate that references a qubit the register lacks", t, func() {
		in := gateInput(t, Hadamard(2), 0, NewQubits(2), fixedRandom(0.5))

		Convey("It should report an engine fault", func() {
			_, err := ApplyGate(in)
			So(errors.Is(err, ErrEngineFault), ShouldBeTrue)
		})
	})

	Convey("Given no packet", t, func() {
		in := gateInput(t, Hadamard(0), 0, NewQubits(3), fixedRandom(0.5))
		in.Packet = nil

		Convey("It should report an engine fault", func() {
			_, err := ApplyGate(in)
			So(errors.Is(err, ErrEngineFault), ShouldBeTrue)
		})
	})
}

func TestBuildCircuit(t *testing.T) {
	Convey("Given a 3-qubit register", t, func() {
		Convey("It should position gates and assign IDs", func() {
			gates, err := buildCircuit([]GateDefinition{Hadamard(0), CNOT(0, 1), Measure(0, 1).WithErrorProbability(0.4)}, 3, 0.1)
			So(err, ShouldBeNil)
			So(gates, ShouldHaveLength, 3)
			So(gates[1].Position, ShouldEqual, 1)
			So(gates[0].ID, ShouldNotBeEmpty)
			So(gates[0].ErrorProbability, ShouldEqual, 0.1)
			So(gates[2].ErrorProbability, ShouldEqual, 0.4)
		})

		Convey("It should accept a CNOT given as two targets", func() {
			_, err := buildCircuit([]GateDefinition{{Type: GateCNOT, TargetQubits: []int{0, 1}}}, 3, 0.1)
			So(err, ShouldBeNil)
		})

		Convey("It should reject out-of-range qubits", func() {
			_, err := buildCircuit([]GateDefinition{{Type: GateCNOT, TargetQubits: []int{0, 5}}}, 3, 0.1)
			So(errors.Is(err, ErrInvalidCircuit), ShouldBeTrue)
		})

		Convey("It should reject a CNOT on one qubit", func() {
			_, err := buildCircuit([]GateDefinition{CNOT(1, 1)}, 3, 0.1)
			So(errors.Is(err, ErrInvalidCircuit), ShouldBeTrue)
		})

		Convey("It should reject unknown gate types", func() {
			_, err := buildCircuit([]GateDefinition{{Type: "toffoli", TargetQubits: []int{0}}}, 3, 0.1)
			So(errors.Is(err, ErrInvalidCircuit), ShouldBeTrue)
		})

		Convey("It should reject error probabilities outside [0,1]", func() {
			_, err := buildCircuit([]GateDefinition{Phase(0).WithErrorProbability(1.5)}, 3, 0.1)
			So(errors.Is(err, ErrInvalidCircuit), ShouldBeTrue)
		})
	})
}
