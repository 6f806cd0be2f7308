// Package coordinator implements the Coordinator: driving a FilePair batch
// to terminal state under a bounded worker budget, with cooperative
// cancellation, throttled progress, and error-to-counter classification.
package coordinator

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
)

// Error taxonomy signalled by workers; the coordinator classifies each into
// a terminal counter. TooShort and ExistingVid are expected steady-state
// outcomes, not failures, and are counted as skipped.
var (
	ErrInputNotFound                  = errors.New("input not found")
	ErrNoVideoOrAudioTrack             = errors.New("no video or audio track")
	ErrTooShort                        = errors.New("source shorter than minimum duration")
	ErrExistingVid                     = errors.New("output already exists")
	ErrUnableToCreateContext           = errors.New("unable to create decode context")
	ErrUnableToGenerateMosaic          = errors.New("unable to generate mosaic")
	ErrUnableToSaveMosaic              = errors.New("unable to save mosaic")
	ErrExportTimeout                   = errors.New("preview export timed out")
	ErrUnableToCreateExportSession     = errors.New("unable to create export session")
	ErrUnableToCreateCompositionTracks = errors.New("unable to create composition tracks")
	ErrCancelled                       = errors.New("cancelled")
)

// CancellationLedger is the process-wide cancellation record: a global flag
// plus a monotonically growing set of per-file cancellations. It outlives
// individual runs; Reset clears it at job boundaries.
type CancellationLedger struct {
	mu     sync.Mutex
	global bool
	files  map[string]bool
}

// NewLedger returns an empty CancellationLedger.
func NewLedger() *CancellationLedger {
	return &CancellationLedger{files: make(map[string]bool)}
}

func (l *CancellationLedger) CancelGlobal() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.global = true
}

func (l *CancellationLedger) CancelFile(path string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.files[path] = true
}

func (l *CancellationLedger) IsGlobalCancelled() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.global
}

func (l *CancellationLedger) IsFileCancelled(path string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.files[path]
}

// Reset clears both the global flag and the per-file set.
func (l *CancellationLedger) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.global = false
	l.files = make(map[string]bool)
}

// OperationKind identifies which pipeline a Run drives files through.
type OperationKind string

const (
	OpMosaic  OperationKind = "mosaic"
	OpPreview OperationKind = "preview"
)

// FilePair is a (source, output directory) pair to process.
type FilePair struct {
	SourcePath string
	OutputDir  string
}

// Result is a successful (source, produced artifact) pair.
type Result struct {
	SourcePath string
	OutputPath string
}

// ProgressEvent reports either global batch progress or a single file's
// stage progress.
type ProgressEvent struct {
	Kind             string // "global" | "file"
	Fraction         float64
	CurrentFile      string
	Processed        int
	Total            int
	Skipped          int
	Errored          int
	Stage            string
	ElapsedSeconds   float64
	ETASeconds       float64
	Running          bool
	PerFileFraction  *float64
}

// FileReporter forwards unthrottled per-file stage progress during a
// worker's run.
type FileReporter func(stage string, fraction float64)

// WorkerFunc performs the full per-file pipeline for one FilePair. It must
// check ctx/ledger at the cooperative cancellation points named in the
// scheduling contract and return a classifiable error on any failure path.
type WorkerFunc func(ctx context.Context, pair FilePair, report FileReporter) (Result, error)

// Coordinator runs a WorkerFunc over a FilePair batch under a bounded
// concurrency budget.
type Coordinator struct {
	Ledger *CancellationLedger

	mu       sync.Mutex
	maxTasks int
}

// New returns a Coordinator with the given worker slot budget and ledger. If
// ledger is nil a fresh one is allocated.
func New(maxTasks int, ledger *CancellationLedger) *Coordinator {
	if maxTasks < 1 {
		maxTasks = 1
	}
	if ledger == nil {
		ledger = NewLedger()
	}
	return &Coordinator{Ledger: ledger, maxTasks: maxTasks}
}

// SetMaxTasks changes the worker slot budget; it takes effect from the next
// slot acquisition, per the concurrency model's configuration-mutation rule.
func (c *Coordinator) SetMaxTasks(n int) {
	if n < 1 {
		n = 1
	}
	c.mu.Lock()
	c.maxTasks = n
	c.mu.Unlock()
}

func (c *Coordinator) currentMaxTasks() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.maxTasks
}

// Run drives every pair in order to terminal state. Never more than the
// current max-tasks budget of workers are in flight at once; per-file
// failures are classified into counters and never bubble past Run unless
// the job itself is globally cancelled, in which case Run returns
// ErrCancelled.
func (c *Coordinator) Run(ctx context.Context, pairs []FilePair, op OperationKind, worker WorkerFunc, onProgress func(ProgressEvent)) ([]Result, error) {
	start := time.Now()
	total := len(pairs)

	var (
		processed, skipped, errored, active int64
		mu                                  sync.Mutex
		results                             []Result
		lastEmit                            time.Time
		emitMu                              sync.Mutex
	)

	emitGlobal := func(stage string, force bool) {
		emitMu.Lock()
		now := time.Now()
		if !force && now.Sub(lastEmit) < 250*time.Millisecond {
			emitMu.Unlock()
			return
		}
		lastEmit = now
		emitMu.Unlock()

		if onProgress == nil {
			return
		}
		mu.Lock()
		p, s, e := processed, skipped, errored
		mu.Unlock()

		fraction := 0.0
		if total > 0 {
			fraction = float64(p) / float64(total)
		}
		elapsed := time.Since(start).Seconds()
		eta := 0.0
		if fraction > 0 {
			eta = elapsed/fraction - elapsed
		}
		onProgress(ProgressEvent{
			Kind:           "global",
			Fraction:       fraction,
			Processed:      int(p),
			Total:          total,
			Skipped:        int(s),
			Errored:        int(e),
			Stage:          stage,
			ElapsedSeconds: elapsed,
			ETASeconds:     eta,
			Running:        true,
		})
	}

	var wg sync.WaitGroup
	var cancelled bool

	for _, pair := range pairs {
		if c.Ledger.IsGlobalCancelled() {
			cancelled = true
			break
		}
		if c.Ledger.IsFileCancelled(pair.SourcePath) {
			mu.Lock()
			processed++
			skipped++
			mu.Unlock()
			emitGlobal("cancelled", false)
			continue
		}

		if err := c.acquireSlot(ctx, &active); err != nil {
			cancelled = true
			break
		}

		wg.Add(1)
		go func(pair FilePair) {
			defer wg.Done()
			defer c.releaseSlot(&active)

			report := func(stage string, fraction float64) {
				if onProgress != nil {
					f := fraction
					onProgress(ProgressEvent{
						Kind:            "file",
						Fraction:        fraction,
						CurrentFile:     pair.SourcePath,
						Stage:           stage,
						Running:         true,
						PerFileFraction: &f,
					})
				}
			}

			res, err := worker(ctx, pair, report)
			bucket := classify(err)
			mu.Lock()
			switch bucket {
			case bucketSuccess:
				processed++
				results = append(results, res)
			case bucketSkipped:
				processed++
				skipped++
			case bucketErrored:
				processed++
				errored++
				log.Warn("worker failed", "file", pair.SourcePath, "err", err)
			}
			mu.Unlock()
			emitGlobal(string(op), false)
		}(pair)
	}

	wg.Wait()
	emitGlobal("done", true)

	if cancelled || c.Ledger.IsGlobalCancelled() {
		return results, ErrCancelled
	}
	return results, nil
}

type bucket int

const (
	bucketSuccess bucket = iota
	bucketSkipped
	bucketErrored
)

// classify maps a worker's returned error onto a terminal counter bucket.
// ExistingVid, TooShort, and Cancelled are non-error outcomes counted as
// skipped; everything else (including nil, meaning success) is classified
// accordingly.
func classify(err error) bucket {
	if err == nil {
		return bucketSuccess
	}
	switch {
	case errors.Is(err, ErrExistingVid), errors.Is(err, ErrTooShort), errors.Is(err, ErrCancelled):
		return bucketSkipped
	default:
		return bucketErrored
	}
}

// acquireSlot blocks until a worker slot is available or ctx is done.
func (c *Coordinator) acquireSlot(ctx context.Context, active *int64) error {
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if c.Ledger.IsGlobalCancelled() {
			return ErrCancelled
		}
		if int(atomic.LoadInt64(active)) < c.currentMaxTasks() {
			atomic.AddInt64(active, 1)
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func (c *Coordinator) releaseSlot(active *int64) {
	atomic.AddInt64(active, -1)
}

// FormatETA renders a best-effort human string for an ETA in seconds,
// tolerating the flat-or-decreasing ETAs the progress model allows.
func FormatETA(seconds float64) string {
	if math.IsNaN(seconds) || math.IsInf(seconds, 0) || seconds < 0 {
		return "--:--"
	}
	m := int(seconds) / 60
	s := int(seconds) % 60
	return fmt.Sprintf("%02d:%02d", m, s)
}
