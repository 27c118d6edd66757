package throttle

import (
	"context"
	"testing"
	"time"

	"github.com/coder/quartz"
)

func TestBurstWithinCapacityIsImmediate(t *testing.T) {
	mock := quartz.NewMock(t)
	bucket := NewLeakyBucketWithClock(3, 60, mock)

	// The mock clock never moves on its own, so a waiting admission
	// would block forever.
	done := make(chan error, 1)
	go func() {
		for i := 0; i < 3; i++ {
			if err := bucket.Throttle(context.Background()); err != nil {
				done <- err
				return
			}
		}
		done <- nil
	}()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("burst failed: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("burst of 3 blocked, want immediate admission")
	}
}

func TestThrottledWaiterAdmitsAfterDrip(t *testing.T) {
	mock := quartz.NewMock(t)
	bucket := NewLeakyBucketWithClock(1, 60, mock) // one drip per second

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := bucket.Throttle(ctx); err != nil {
		t.Fatalf("first admission failed: %v", err)
	}

	trap := mock.Trap().NewTimer()
	defer trap.Close()

	done := make(chan error, 1)
	go func() {
		done <- bucket.Throttle(ctx)
	}()

	// The waiter arms a timer for the remainder of the drip interval.
	call := trap.MustWait(ctx)
	call.MustRelease(ctx)
	if call.Duration != time.Second {
		t.Errorf("waiter armed a %v timer, want %v", call.Duration, time.Second)
	}

	select {
	case <-done:
		t.Fatal("admitted before the drip elapsed")
	case <-time.After(50 * time.Millisecond):
	}

	mock.Advance(time.Second).MustWait(ctx)

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("throttled admission failed: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("waiter never admitted after the drip elapsed")
	}
}

func TestAdmissionsRespectRateBound(t *testing.T) {
	// Burst 1 at 60 rpm: N admissions take at least (N-1) seconds.
	mock := quartz.NewMock(t)
	bucket := NewLeakyBucketWithClock(1, 60, mock)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	trap := mock.Trap().NewTimer()
	defer trap.Close()

	start := mock.Now()
	const admissions = 4

	done := make(chan error, 1)
	go func() {
		for i := 0; i < admissions; i++ {
			if err := bucket.Throttle(ctx); err != nil {
				done <- err
				return
			}
		}
		done <- nil
	}()

	// Each throttled admission parks on one drip timer; fire them as
	// they appear.
	for i := 0; i < admissions-1; i++ {
		call := trap.MustWait(ctx)
		call.MustRelease(ctx)
		mock.Advance(call.Duration).MustWait(ctx)
	}

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("admissions failed: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("admissions never completed")
	}

	if elapsed := mock.Now().Sub(start); elapsed < (admissions-1)*time.Second {
		t.Errorf("%d admissions elapsed %v, want >= %v", admissions, elapsed, (admissions-1)*time.Second)
	}
}

func TestCancelledWaiterIsReleased(t *testing.T) {
	mock := quartz.NewMock(t)
	bucket := NewLeakyBucketWithClock(1, 1, mock) // one per minute

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := bucket.Throttle(ctx); err != nil {
		t.Fatalf("first admission failed: %v", err)
	}

	trap := mock.Trap().NewTimer()
	defer trap.Close()

	waitCtx, cancelWait := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- bucket.Throttle(waitCtx)
	}()

	call := trap.MustWait(ctx)
	call.MustRelease(ctx)
	cancelWait()

	select {
	case err := <-done:
		if err != context.Canceled {
			t.Errorf("err = %v, want context.Canceled", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("cancelled waiter never returned")
	}
}

func TestZeroedConfigIsClamped(t *testing.T) {
	bucket := NewLeakyBucketWithClock(0, 0, quartz.NewMock(t))

	if bucket.size != 1 {
		t.Errorf("size = %d, want 1", bucket.size)
	}
	if bucket.drip != time.Minute {
		t.Errorf("drip = %v, want %v", bucket.drip, time.Minute)
	}

	if err := bucket.Throttle(context.Background()); err != nil {
		t.Fatalf("first admission failed: %v", err)
	}
}
