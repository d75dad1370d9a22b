package poll

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/me/cyclelaunch/internal/logging"
	"github.com/me/cyclelaunch/internal/probe"
	"github.com/me/cyclelaunch/pkg/model"
)

var cycle = time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)

// scripted returns a probe that replays answers in order and repeats the last one.
func scripted(calls *atomic.Int32, answers ...func() (model.ReadinessStatus, error)) probe.Probe {
	return probe.Func(func(context.Context, time.Time) (model.ReadinessStatus, error) {
		n := int(calls.Add(1)) - 1
		if n >= len(answers) {
			n = len(answers) - 1
		}
		return answers[n]()
	})
}

func ready() (model.ReadinessStatus, error) { return model.ReadinessStatus{}, nil }

func notReady() (model.ReadinessStatus, error) {
	return model.ReadinessStatus{AnalysisMissing: true, CompletionMissing: true}, nil
}

func broken() (model.ReadinessStatus, error) {
	return model.ReadinessStatus{}, model.NewRunError(model.KindProbeInvocation, "probe", "timed out after 5m0s")
}

func TestWaitUntilReady_ImmediateReady(t *testing.T) {
	var calls atomic.Int32
	w := NewWaiter(scripted(&calls, ready), Config{Interval: time.Second, MaxWait: time.Minute}, logging.Discard())

	res, err := w.WaitUntilReady(context.Background(), cycle)
	if err != nil {
		t.Fatalf("WaitUntilReady: %v", err)
	}
	if !res.Ready || res.Attempts != 1 || calls.Load() != 1 {
		t.Errorf("res = %+v, calls = %d", res, calls.Load())
	}
}

func TestWaitUntilReady_ReadyAfterFailures(t *testing.T) {
	var calls atomic.Int32
	w := NewWaiter(
		scripted(&calls, notReady, broken, notReady, broken, ready),
		Config{Interval: 5 * time.Millisecond, MaxWait: 5 * time.Second},
		logging.Discard(),
	)

	res, err := w.WaitUntilReady(context.Background(), cycle)
	if err != nil {
		t.Fatalf("WaitUntilReady: %v", err)
	}
	if !res.Ready {
		t.Fatalf("expected ready, got %+v", res)
	}
	if res.Attempts != 5 {
		t.Errorf("Attempts = %d, want 5 (returns on first ready)", res.Attempts)
	}
	if calls.Load() != 5 {
		t.Errorf("probe called %d times after ready", calls.Load())
	}
	if res.LastErr != nil {
		t.Errorf("LastErr = %v, want nil after ready", res.LastErr)
	}
}

func TestWaitUntilReady_TimeoutBound(t *testing.T) {
	var calls atomic.Int32
	cfg := Config{Interval: 20 * time.Millisecond, MaxWait: 100 * time.Millisecond}
	w := NewWaiter(scripted(&calls, notReady), cfg, logging.Discard())

	start := time.Now()
	res, err := w.WaitUntilReady(context.Background(), cycle)
	elapsed := time.Since(start)

	if err != nil {
		t.Fatalf("WaitUntilReady: %v", err)
	}
	if res.Ready {
		t.Fatal("expected timeout")
	}
	if elapsed < cfg.MaxWait {
		t.Errorf("gave up after %s, before the %s budget", elapsed, cfg.MaxWait)
	}
	// Generous slack for slow CI schedulers on top of max_wait + interval.
	if limit := cfg.MaxWait + cfg.Interval + 200*time.Millisecond; elapsed > limit {
		t.Errorf("took %s, want <= %s", elapsed, limit)
	}
	if res.Attempts < 2 {
		t.Errorf("Attempts = %d, want several", res.Attempts)
	}
	if res.Last.Code() != 110 {
		t.Errorf("Last = %s, want code 110", res.Last)
	}
}

func TestWaitUntilReady_ProbeErrorsDoNotEndWaitEarly(t *testing.T) {
	var calls atomic.Int32
	cfg := Config{Interval: 10 * time.Millisecond, MaxWait: 60 * time.Millisecond}
	w := NewWaiter(scripted(&calls, broken), cfg, logging.Discard())

	start := time.Now()
	res, err := w.WaitUntilReady(context.Background(), cycle)
	if err != nil {
		t.Fatalf("probe errors must not surface as errors, got %v", err)
	}
	if res.Ready {
		t.Fatal("expected not ready")
	}
	if time.Since(start) < cfg.MaxWait {
		t.Error("wait ended before the budget on probe errors")
	}
	if res.LastErr == nil {
		t.Error("LastErr should record the invocation error")
	}
}

func TestWaitUntilReady_CancelInterruptsSleep(t *testing.T) {
	var calls atomic.Int32
	w := NewWaiter(scripted(&calls, notReady), Config{Interval: time.Hour, MaxWait: 2 * time.Hour}, logging.Discard())

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(30*time.Millisecond, cancel)

	start := time.Now()
	_, err := w.WaitUntilReady(ctx, cycle)
	if model.KindOf(err) != model.KindAborted {
		t.Fatalf("expected aborted error, got %v", err)
	}
	if !errors.Is(err, context.Canceled) {
		t.Errorf("error should wrap context.Canceled, got %v", err)
	}
	if time.Since(start) > 2*time.Second {
		t.Error("cancellation did not interrupt the sleep promptly")
	}
}

func TestSleep(t *testing.T) {
	if err := Sleep(context.Background(), time.Millisecond); err != nil {
		t.Errorf("Sleep = %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := Sleep(ctx, time.Hour); !errors.Is(err, context.Canceled) {
		t.Errorf("Sleep on cancelled ctx = %v", err)
	}
}
