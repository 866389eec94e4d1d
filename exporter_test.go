package qfragile

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	. "github.com/smartystreets/goconvey/convey"
)

func TestExporter(t *testing.T) {
	Convey("Given an exporter on a private registry", t, func() {
		reg := prometheus.NewRegistry()
		ex := NewExporter(reg)

		Convey("When it observes a complete run", func() {
			engine := readyEngine(t, testConfig(), scenarioCircuit())
			results, err := engine.ExecuteAll(context.Background())
			So(err, ShouldBeNil)
			for _, res := range results {
				ex.Observe(res)
			}
			terminal, err := engine.Step()
			So(err, ShouldBeNil)
			ex.Observe(terminal)

			last := results[len(results)-1]

			Convey("Then the gauges should hold the final metrics", func() {
				So(testutil.ToFloat64(ex.coherence), ShouldAlmostEqual, last.Metrics.Coherence)
				So(testutil.ToFloat64(ex.fidelity), ShouldAlmostEqual, last.Metrics.GateFidelity)
				So(testutil.ToFloat64(ex.degradation), ShouldAlmostEqual, last.State.Packet.DegradationLevel)
				So(testutil.ToFloat64(ex.gateIndex), ShouldEqual, 3)
			})

			Convey("Then steps should be counted by headline event, terminal excluded", func() {
				So(testutil.CollectAndCount(ex.steps), ShouldEqual, 3)
				So(testutil.ToFloat64(ex.steps.WithLabelValues(string(EventMeasurementPerformed))), ShouldEqual, 1)
				So(testutil.ToFloat64(ex.events.WithLabelValues(string(EventDecoherenceTick))), ShouldEqual, 3)
			})
		})

		Convey("Registering a second exporter on the same registry should panic", func() {
			So(func() { NewExporter(reg) }, ShouldPanic)
		})
	})
}
