package expiry

import (
	"context"
	"errors"
	"testing"
	"time"
)

type fakeSpotlightStore struct {
	cutoff  time.Time
	cleared int64
	err     error
}

func (f *fakeSpotlightStore) ClearExpiredSpotlights(_ context.Context, now time.Time) (int64, error) {
	f.cutoff = now
	return f.cleared, f.err
}

type fakePremiumStore struct {
	cutoff     time.Time
	downgraded int64
	calls      int
}

func (f *fakePremiumStore) DowngradeLapsedPremium(_ context.Context, now time.Time) (int64, error) {
	f.cutoff = now
	f.calls++
	return f.downgraded, nil
}

func TestRunSweepsBothStores(t *testing.T) {
	now := time.Date(2026, time.March, 1, 6, 0, 0, 0, time.UTC)
	listings := &fakeSpotlightStore{cleared: 3}
	users := &fakePremiumStore{downgraded: 1}

	job := New(listings, users, nil)
	job.now = func() time.Time { return now }

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("run expiry job: %v", err)
	}

	if !listings.cutoff.Equal(now) {
		t.Fatalf("spotlight sweep cutoff = %v, want %v", listings.cutoff, now)
	}
	if !users.cutoff.Equal(now) {
		t.Fatalf("premium sweep cutoff = %v, want %v", users.cutoff, now)
	}
}

func TestRunStopsOnSpotlightError(t *testing.T) {
	boom := errors.New("db down")
	listings := &fakeSpotlightStore{err: boom}
	users := &fakePremiumStore{}

	job := New(listings, users, nil)

	if err := job.Run(context.Background()); !errors.Is(err, boom) {
		t.Fatalf("expected wrapped store error, got %v", err)
	}
	if users.calls != 0 {
		t.Fatalf("premium sweep must not run after a spotlight failure")
	}
}

func TestRunToleratesMissingStores(t *testing.T) {
	job := New(nil, nil, nil)
	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("run with no stores: %v", err)
	}
}
