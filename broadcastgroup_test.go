package qfragile

import (
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func stepWith(t EventType) *StepResult {
	return &StepResult{Event: &Event{Type: t}}
}

func TestBroadcastGroup(t *testing.T) {
	Convey("Given a broadcast group with two subscribers", t, func() {
		bg := NewBroadcastGroup("test", 2)
		everything := bg.Subscribe("everything")
		measured := bg.Subscribe("measured", OnEvents(EventMeasurementPerformed))

		Convey("Results should reach only the subscribers whose filters match", func() {
			bg.Send(stepWith(EventGateApplied))
			bg.Send(stepWith(EventMeasurementPerformed))

			So(len(everything), ShouldEqual, 2)
			So(len(measured), ShouldEqual, 1)
			So((<-measured).Event.Type, ShouldEqual, EventMeasurementPerformed)
			So(bg.GetMetrics().MessagesSent, ShouldEqual, 3)
		})

		Convey("A full subscriber should lose results instead of blocking", func() {
			for range 3 {
				bg.Send(stepWith(EventGateApplied))
			}
			So(len(everything), ShouldEqual, 2)
			So(bg.GetMetrics().MessagesDropped, ShouldEqual, 1)
		})

		Convey("Terminal results should only pass unfiltered subscribers", func() {
			bg.Send(&StepResult{})
			So(len(everything), ShouldEqual, 1)
			So(len(measured), ShouldEqual, 0)
		})

		Convey("Unsubscribe should close the channel", func() {
			bg.Unsubscribe("measured")
			_, open := <-measured
			So(open, ShouldBeFalse)
			So(bg.GetMetrics().ActiveSubscribers, ShouldEqual, 1)
		})

		Convey("Resubscribing an ID should replace the old channel", func() {
			again := bg.Subscribe("everything")
			_, open := <-everything
			So(open, ShouldBeFalse)

			bg.Send(stepWith(EventGateApplied))
			So(len(again), ShouldEqual, 1)
			So(bg.GetMetrics().ActiveSubscribers, ShouldEqual, 2)
		})

		Convey("Close should close every channel and ignore later sends", func() {
			bg.Close()
			_, open := <-everything
			So(open, ShouldBeFalse)
			_, open = <-measured
			So(open, ShouldBeFalse)

			So(func() { bg.Send(stepWith(EventGateApplied)) }, ShouldNotPanic)
			_, open = <-bg.Subscribe("late")
			So(open, ShouldBeFalse)
		})
	})
}
