package coordinator

import (
	"context"
	"sync/atomic"
	"testing"
	"time"
)

func TestRun_ConcurrencyBound(t *testing.T) {
	pairs := make([]FilePair, 20)
	for i := range pairs {
		pairs[i] = FilePair{SourcePath: "file"}
	}
	c := New(4, nil)

	var active int64
	var maxSeen int64
	worker := func(ctx context.Context, pair FilePair, report FileReporter) (Result, error) {
		n := atomic.AddInt64(&active, 1)
		for {
			old := atomic.LoadInt64(&maxSeen)
			if n <= old || atomic.CompareAndSwapInt64(&maxSeen, old, n) {
				break
			}
		}
		time.Sleep(2 * time.Millisecond)
		atomic.AddInt64(&active, -1)
		return Result{SourcePath: pair.SourcePath}, nil
	}

	results, err := c.Run(context.Background(), pairs, OpMosaic, worker, nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(results) != 20 {
		t.Errorf("expected 20 results, got %d", len(results))
	}
	if maxSeen > 4 {
		t.Errorf("exceeded concurrency bound: saw %d concurrent workers", maxSeen)
	}
}

func TestRun_Classification(t *testing.T) {
	pairs := []FilePair{
		{SourcePath: "ok"}, {SourcePath: "existing"}, {SourcePath: "short"}, {SourcePath: "broken"},
	}
	c := New(2, nil)
	worker := func(ctx context.Context, pair FilePair, report FileReporter) (Result, error) {
		switch pair.SourcePath {
		case "ok":
			return Result{SourcePath: pair.SourcePath}, nil
		case "existing":
			return Result{}, ErrExistingVid
		case "short":
			return Result{}, ErrTooShort
		default:
			return Result{}, ErrUnableToGenerateMosaic
		}
	}

	var lastEvent ProgressEvent
	results, err := c.Run(context.Background(), pairs, OpMosaic, worker, func(e ProgressEvent) {
		if e.Kind == "global" {
			lastEvent = e
		}
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("expected 1 success, got %d", len(results))
	}
	if lastEvent.Processed != 4 || lastEvent.Skipped != 2 || lastEvent.Errored != 1 {
		t.Errorf("unexpected final counters: %+v", lastEvent)
	}
}

func TestRun_GlobalCancelStopsNewWork(t *testing.T) {
	pairs := make([]FilePair, 10)
	for i := range pairs {
		pairs[i] = FilePair{SourcePath: "file"}
	}
	ledger := NewLedger()
	c := New(1, ledger)

	var started int64
	worker := func(ctx context.Context, pair FilePair, report FileReporter) (Result, error) {
		n := atomic.AddInt64(&started, 1)
		if n == 2 {
			ledger.CancelGlobal()
		}
		return Result{SourcePath: pair.SourcePath}, nil
	}

	_, err := c.Run(context.Background(), pairs, OpMosaic, worker, nil)
	if err != ErrCancelled {
		t.Fatalf("expected ErrCancelled, got %v", err)
	}
	if started >= 10 {
		t.Errorf("expected early termination, but %d workers started", started)
	}
}

func TestRun_PerFileCancelSkipsWithoutStarting(t *testing.T) {
	pairs := []FilePair{{SourcePath: "a"}, {SourcePath: "b"}}
	ledger := NewLedger()
	ledger.CancelFile("b")
	c := New(2, ledger)

	var ran []string
	worker := func(ctx context.Context, pair FilePair, report FileReporter) (Result, error) {
		ran = append(ran, pair.SourcePath)
		return Result{SourcePath: pair.SourcePath}, nil
	}

	results, err := c.Run(context.Background(), pairs, OpMosaic, worker, nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}
	if len(ran) != 1 || ran[0] != "a" {
		t.Errorf("expected only 'a' to run, got %v", ran)
	}
}
