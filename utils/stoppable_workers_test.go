package utils

import (
	"context"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/atomic"
	"go.viam.com/test"
	"go.viam.com/utils/testutils"

	"github.com/Vuzi/raspi-sensors/logging"
)

func TestStoppableWorkers(t *testing.T) {
	var ran atomic.Int32
	sw := NewStoppableWorkers(func(ctx context.Context) {
		ran.Inc()
		<-ctx.Done()
	})

	// a worker can start another worker
	test.That(t, sw.AddWorkers(func(ctx context.Context) {
		ran.Inc()
		sw.AddWorkers(func(ctx context.Context) {
			ran.Inc()
			<-ctx.Done()
		})
		<-ctx.Done()
	}), test.ShouldBeTrue)

	testutils.WaitForAssertion(t, func(tb testing.TB) {
		tb.Helper()
		test.That(tb, ran.Load(), test.ShouldEqual, int32(3))
	})

	sw.Stop()
	test.That(t, sw.Context().Err(), test.ShouldNotBeNil)
	test.That(t, sw.AddWorkers(func(ctx context.Context) { ran.Inc() }), test.ShouldBeFalse)
	test.That(t, ran.Load(), test.ShouldEqual, int32(3))
}

func TestStoppableWorkersStopWhileAdding(t *testing.T) {
	sw := NewStoppableWorkers()
	sw.AddWorkers(func(ctx context.Context) {
		<-ctx.Done()
		// adding after cancellation must not deadlock Stop
		sw.AddWorkers(func(context.Context) {})
	})
	done := make(chan struct{})
	go func() {
		sw.Stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Stop did not return")
	}
}

func TestSlowLogger(t *testing.T) {
	logger, logs := logging.NewObservedTestLogger(t)
	clk := clock.NewMock()

	stop := SlowLogger(context.Background(), clk, "still reading", "sensor", "dht22", logger)
	clk.Add(2 * time.Second)
	testutils.WaitForAssertion(t, func(tb testing.TB) {
		tb.Helper()
		test.That(tb, logs.FilterMessage("still reading").Len(), test.ShouldEqual, 1)
	})
	clk.Add(3 * time.Second)
	testutils.WaitForAssertion(t, func(tb testing.TB) {
		tb.Helper()
		test.That(tb, logs.FilterMessage("still reading").Len(), test.ShouldEqual, 2)
	})
	entry := logs.FilterMessage("still reading").All()[0]
	test.That(t, entry.ContextMap()["sensor"], test.ShouldEqual, "dht22")
	test.That(t, entry.ContextMap()["time_elapsed"], test.ShouldEqual, "2s")

	stop()
	clk.Add(10 * time.Second)
	time.Sleep(10 * time.Millisecond)
	test.That(t, logs.FilterMessage("still reading").Len(), test.ShouldEqual, 2)
}
