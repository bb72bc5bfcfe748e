package board

import (
	"context"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"
	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"
)

// ResourceLocks serializes access to physical resources. Waiters on the same resource are served
// in arrival order, so a one-shot read queues behind an in-flight poll read instead of racing it on
// the wire. Boards embed one of these to implement Board.Acquire.
type ResourceLocks struct {
	clk   clock.Clock
	mu    sync.Mutex
	locks map[Resource]*resourceLock
}

type resourceLock struct {
	sem     *semaphore.Weighted
	limiter *rate.Limiter
	spacing time.Duration
}

// NewResourceLocks returns an empty lock table measuring read spacing on clk.
func NewResourceLocks(clk clock.Clock) *ResourceLocks {
	return &ResourceLocks{clk: clk, locks: map[Resource]*resourceLock{}}
}

func (rl *ResourceLocks) lockFor(res Resource, spacing time.Duration) *resourceLock {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	lock, ok := rl.locks[res]
	if !ok {
		lock = &resourceLock{
			sem:     semaphore.NewWeighted(1),
			limiter: rate.NewLimiter(rate.Inf, 1),
		}
		rl.locks[res] = lock
	}
	// The slowest device on a resource dictates its spacing.
	if spacing > lock.spacing {
		lock.spacing = spacing
		lock.limiter.SetLimitAt(rl.clk.Now(), rate.Every(spacing))
	}
	return lock
}

// Acquire waits for exclusive use of res. See Board.Acquire.
func (rl *ResourceLocks) Acquire(ctx context.Context, res Resource, spacing time.Duration) (func(), error) {
	lock := rl.lockFor(res, spacing)
	if err := lock.sem.Acquire(ctx, 1); err != nil {
		return nil, errors.Wrapf(err, "waiting for %s", res)
	}
	if err := rl.settle(ctx, lock); err != nil {
		lock.sem.Release(1)
		return nil, errors.Wrapf(err, "waiting for %s to settle", res)
	}

	var once sync.Once
	return func() {
		once.Do(func() { lock.sem.Release(1) })
	}, nil
}

// settle sleeps until the resource's spacing since the previous acquisition has elapsed.
func (rl *ResourceLocks) settle(ctx context.Context, lock *resourceLock) error {
	now := rl.clk.Now()
	reservation := lock.limiter.ReserveN(now, 1)
	delay := reservation.DelayFrom(now)
	if delay <= 0 {
		return nil
	}
	timer := rl.clk.Timer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		reservation.CancelAt(rl.clk.Now())
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Resources returns the resources that have been acquired at least once.
func (rl *ResourceLocks) Resources() []Resource {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	resources := make([]Resource, 0, len(rl.locks))
	for res := range rl.locks {
		resources = append(resources, res)
	}
	return resources
}
