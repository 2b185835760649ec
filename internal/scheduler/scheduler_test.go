package scheduler

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"gdqnow/internal/refresh"
	"gdqnow/internal/render"
)

type countingRefresher struct {
	calls    int32
	interval time.Duration
}

func (c *countingRefresher) Refresh(_ context.Context, now time.Time) (refresh.Result, time.Duration) {
	atomic.AddInt32(&c.calls, 1)
	return refresh.Result{
		At:    now,
		Label: render.Label{Text: "pass", State: render.StateOK},
	}, c.interval
}

type recordingSink struct {
	mu      sync.Mutex
	results []refresh.Result
}

func (r *recordingSink) Show(res refresh.Result) error {
	r.mu.Lock()
	r.results = append(r.results, res)
	r.mu.Unlock()
	return nil
}

func (r *recordingSink) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.results)
}

func TestNewRejectsBadCron(t *testing.T) {
	if _, err := New(&countingRefresher{}, nil, Options{CronSpec: "every now and then"}); err == nil {
		t.Error("New() expected error for invalid cron expression")
	}
	if _, err := New(&countingRefresher{}, nil, Options{CronSpec: "*/5 * * * *"}); err != nil {
		t.Errorf("New() error = %v", err)
	}
}

func TestRunOnceUsesClockAndSink(t *testing.T) {
	fixed := time.Date(2024, 1, 14, 17, 0, 0, 0, time.UTC)
	sink := &recordingSink{}
	s, err := New(&countingRefresher{interval: time.Minute}, sink, Options{Now: func() time.Time { return fixed }})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	res, interval := s.RunOnce(context.Background())
	if !res.At.Equal(fixed) {
		t.Errorf("At = %v, want %v", res.At, fixed)
	}
	if interval != time.Minute {
		t.Errorf("interval = %v, want 1m", interval)
	}
	if sink.count() != 1 {
		t.Errorf("sink saw %d results, want 1", sink.count())
	}
}

func TestRunRepeatsUntilCanceled(t *testing.T) {
	r := &countingRefresher{interval: time.Second}
	sink := &recordingSink{}
	s, err := New(r, sink, Options{})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	deadline := time.After(5 * time.Second)
	for sink.count() < 2 {
		select {
		case <-deadline:
			cancel()
			t.Fatalf("only %d passes before deadline", sink.count())
		case <-time.After(50 * time.Millisecond):
		}
	}
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run() error = %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run() did not return after cancel")
	}
}

func TestRunReturnsWhenAlreadyCanceled(t *testing.T) {
	r := &countingRefresher{interval: time.Hour}
	s, err := New(r, nil, Options{})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := s.Run(ctx); err != nil {
		t.Errorf("Run() error = %v", err)
	}
	if got := atomic.LoadInt32(&r.calls); got != 1 {
		t.Errorf("calls = %d, want 1", got)
	}
}
