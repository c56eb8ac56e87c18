package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

var errDown = errors.New("quote service down")

func TestBreakerTripsAfterStreak(t *testing.T) {
	b := NewBreaker(Quotes, Settings{TripAfter: 2, Trials: 1, Cooldown: time.Minute}, zerolog.Nop())
	ctx := context.Background()
	fail := func(context.Context) error { return errDown }

	for i := 0; i < 2; i++ {
		if err := b.Do(ctx, fail); !errors.Is(err, errDown) {
			t.Fatalf("call %d: err = %v", i, err)
		}
	}
	if b.State() != StateOpen {
		t.Fatalf("state = %s, want OPEN", b.State())
	}

	called := false
	err := b.Do(ctx, func(context.Context) error { called = true; return nil })
	if !errors.Is(err, ErrOpen) || called {
		t.Errorf("open breaker should reject without calling: err=%v called=%v", err, called)
	}
	snap := b.Snapshot()
	if snap.Rejected != 1 || snap.Calls != 3 || snap.Failures != 2 {
		t.Errorf("snapshot = %+v", snap)
	}
}

func TestBreakerSuccessResetsStreak(t *testing.T) {
	b := NewBreaker(Orders, Settings{TripAfter: 2, Trials: 1, Cooldown: time.Minute}, zerolog.Nop())
	ctx := context.Background()
	_ = b.Do(ctx, func(context.Context) error { return errDown })
	_ = b.Do(ctx, func(context.Context) error { return nil })
	_ = b.Do(ctx, func(context.Context) error { return errDown })
	if b.State() != StateClosed {
		t.Errorf("state = %s, want CLOSED after a success between failures", b.State())
	}
}

func TestBreakerHalfOpenTrial(t *testing.T) {
	b := NewBreaker(Historical, Settings{TripAfter: 1, Trials: 1, Cooldown: time.Second}, zerolog.Nop())
	now := time.Date(2025, 1, 6, 4, 0, 0, 0, time.UTC)
	b.now = func() time.Time { return now }
	ctx := context.Background()

	_ = b.Do(ctx, func(context.Context) error { return errDown })
	if b.State() != StateOpen {
		t.Fatalf("state = %s", b.State())
	}

	now = now.Add(2 * time.Second)
	v, err := Call(ctx, b, func(context.Context) (int, error) { return 7, nil })
	if err != nil || v != 7 {
		t.Fatalf("half-open trial = %d, %v", v, err)
	}
	if b.State() != StateClosed {
		t.Errorf("state = %s, want CLOSED", b.State())
	}

	// a failed trial call reopens immediately
	_ = b.Do(ctx, func(context.Context) error { return errDown })
	now = now.Add(2 * time.Second)
	_ = b.Do(ctx, func(context.Context) error { return errDown })
	if b.State() != StateOpen {
		t.Errorf("state = %s, want OPEN after failed trial call", b.State())
	}
}

func TestCancellationIsNotAFailure(t *testing.T) {
	b := NewBreaker(Quotes, Settings{TripAfter: 1, Trials: 1, Cooldown: time.Minute}, zerolog.Nop())
	err := b.Do(context.Background(), func(context.Context) error { return context.Canceled })
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v", err)
	}
	if b.State() != StateClosed || b.Snapshot().Failures != 0 {
		t.Errorf("snapshot = %+v, want closed with no failures", b.Snapshot())
	}
}

func TestRegistry(t *testing.T) {
	r := NewRegistry(Settings{TripAfter: 1, Trials: 1, Cooldown: time.Hour}, zerolog.Nop())
	if r.For(Orders) != r.For(Orders) {
		t.Error("expected the same breaker for one name")
	}
	_ = r.For(Historical).Do(context.Background(), func(context.Context) error { return errDown })

	snaps := r.Snapshots()
	if len(snaps) != 2 || snaps[0].Name != Historical || snaps[0].State != StateOpen {
		t.Fatalf("snapshots = %+v", snaps)
	}
	if snaps[0].FailureRate() != 100 {
		t.Errorf("failure rate = %v", snaps[0].FailureRate())
	}

	r.ResetAll()
	if r.For(Historical).State() != StateClosed {
		t.Error("ResetAll should close every breaker")
	}
}
