package worker

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

type fakeHousekeeping struct {
	purgedAt   time.Time
	keep       int
	cutoff     time.Time
	refreshed  atomic.Int32
	purgeErr   error
	sweepCount atomic.Int32
}

func (f *fakeHousekeeping) DeleteExpiredCache(_ context.Context, now time.Time) (int64, error) {
	f.sweepCount.Add(1)
	f.purgedAt = now
	return 3, f.purgeErr
}

func (f *fakeHousekeeping) TrimMessages(_ context.Context, keep int) (int64, error) {
	f.keep = keep
	return 0, nil
}

func (f *fakeHousekeeping) EvictStale(cutoff time.Time) int {
	f.cutoff = cutoff
	return 1
}

func (f *fakeHousekeeping) Refresh(bool) { f.refreshed.Add(1) }

func TestJanitor_Sweep(t *testing.T) {
	t.Parallel()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	f := &fakeHousekeeping{}
	j := NewJanitor(JanitorDeps{
		Cache:      f,
		Messages:   f,
		KeepLast:   20,
		Limiters:   f,
		LimiterTTL: 5 * time.Minute,
		DNS:        f,
		Now:        func() time.Time { return now },
	})

	j.Sweep(context.Background())

	if !f.purgedAt.Equal(now) {
		t.Errorf("purged at %v, want %v", f.purgedAt, now)
	}
	if f.keep != 20 {
		t.Errorf("keep = %d, want 20", f.keep)
	}
	if want := now.Add(-5 * time.Minute); !f.cutoff.Equal(want) {
		t.Errorf("cutoff = %v, want %v", f.cutoff, want)
	}
	if f.refreshed.Load() != 1 {
		t.Error("dns cache not refreshed")
	}
}

func TestJanitor_SweepSurvivesErrors(t *testing.T) {
	t.Parallel()
	f := &fakeHousekeeping{purgeErr: errors.New("disk full")}
	j := NewJanitor(JanitorDeps{Cache: f, DNS: f})

	j.Sweep(context.Background())

	if f.refreshed.Load() != 1 {
		t.Error("later tasks should run after an earlier failure")
	}
}

func TestJanitor_NilDeps(t *testing.T) {
	t.Parallel()
	NewJanitor(JanitorDeps{}).Sweep(context.Background())
}

func TestJanitor_RunTicks(t *testing.T) {
	t.Parallel()
	f := &fakeHousekeeping{}
	j := NewJanitor(JanitorDeps{Cache: f, Interval: 10 * time.Millisecond})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- j.Run(ctx) }()

	waitFor(t, func() bool { return f.sweepCount.Load() >= 2 })
	cancel()
	if err := <-done; err != nil {
		t.Errorf("Run = %v", err)
	}
}
