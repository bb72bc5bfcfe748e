package board_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"go.viam.com/test"
	"go.viam.com/utils/testutils"

	"github.com/Vuzi/raspi-sensors/components/board"
)

func TestResourceLocksExclusive(t *testing.T) {
	rl := board.NewResourceLocks(clock.New())
	ctx := context.Background()

	release, err := rl.Acquire(ctx, board.I2CBus(1), 0)
	test.That(t, err, test.ShouldBeNil)

	// a different resource is independent
	other, err := rl.Acquire(ctx, board.GPIOLine(7), 0)
	test.That(t, err, test.ShouldBeNil)
	other()

	cancelCtx, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancel()
	_, err = rl.Acquire(cancelCtx, board.I2CBus(1), 0)
	test.That(t, err, test.ShouldNotBeNil)

	release()
	release()
	again, err := rl.Acquire(ctx, board.I2CBus(1), 0)
	test.That(t, err, test.ShouldBeNil)
	again()

	test.That(t, rl.Resources(), test.ShouldHaveLength, 2)
}

func TestResourceLocksFIFO(t *testing.T) {
	rl := board.NewResourceLocks(clock.New())
	ctx := context.Background()
	res := board.GPIOLine(4)

	release, err := rl.Acquire(ctx, res, 0)
	test.That(t, err, test.ShouldBeNil)

	var (
		mu    sync.Mutex
		order []int
		wg    sync.WaitGroup
	)
	for i := 0; i < 3; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			r, err := rl.Acquire(ctx, res, 0)
			if err != nil {
				return
			}
			mu.Lock()
			order = append(order, i)
			mu.Unlock()
			r()
		}(i)
		// let each waiter queue up before the next one
		time.Sleep(10 * time.Millisecond)
	}
	release()
	wg.Wait()
	test.That(t, order, test.ShouldResemble, []int{0, 1, 2})
}

func TestResourceLocksSpacing(t *testing.T) {
	rl := board.NewResourceLocks(clock.New())
	ctx := context.Background()
	res := board.GPIOLine(17)
	spacing := 50 * time.Millisecond

	start := time.Now()
	for i := 0; i < 3; i++ {
		release, err := rl.Acquire(ctx, res, spacing)
		test.That(t, err, test.ShouldBeNil)
		release()
	}
	test.That(t, time.Since(start), test.ShouldBeGreaterThanOrEqualTo, 2*spacing-5*time.Millisecond)
}

func TestResourceLocksSpacingMockClock(t *testing.T) {
	clk := clock.NewMock()
	rl := board.NewResourceLocks(clk)
	ctx := context.Background()
	res := board.GPIOLine(4)

	release, err := rl.Acquire(ctx, res, 2*time.Second)
	test.That(t, err, test.ShouldBeNil)
	release()

	acquired := make(chan struct{})
	go func() {
		r, err := rl.Acquire(ctx, res, 2*time.Second)
		if err == nil {
			r()
		}
		close(acquired)
	}()
	time.Sleep(10 * time.Millisecond)
	select {
	case <-acquired:
		t.Fatal("acquired before spacing elapsed")
	default:
	}
	testutils.WaitForAssertion(t, func(tb testing.TB) {
		tb.Helper()
		clk.Add(500 * time.Millisecond)
		select {
		case <-acquired:
		default:
			tb.Fatal("still waiting")
		}
	})
}

func TestResourceString(t *testing.T) {
	test.That(t, board.GPIOLine(7).String(), test.ShouldEqual, "gpio7")
	test.That(t, board.I2CBus(1).String(), test.ShouldEqual, "i2c1")
}

func TestConfigValidate(t *testing.T) {
	conf := board.Config{}
	test.That(t, conf.Validate("board"), test.ShouldNotBeNil)

	conf = board.Config{Kind: board.KindFake}
	test.That(t, conf.Validate("board"), test.ShouldBeNil)
	n, err := conf.I2CBusNumber()
	test.That(t, err, test.ShouldBeNil)
	test.That(t, n, test.ShouldEqual, 1)

	conf = board.Config{Kind: board.KindLinux, I2CBus: "zero"}
	test.That(t, conf.Validate("board"), test.ShouldNotBeNil)

	conf = board.Config{Kind: "arduino"}
	test.That(t, conf.Validate("board"), test.ShouldNotBeNil)
}
