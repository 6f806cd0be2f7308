// Package pipeline provides the Pipeline façade: the stable outward API
// wrapping discovery, coordination, and artifact generation. It holds no
// decision logic of its own — every choice is delegated to the component
// packages it wires together.
package pipeline

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"mosaicgen/pkg/compositor"
	"mosaicgen/pkg/config"
	"mosaicgen/pkg/coordinator"
	"mosaicgen/pkg/density"
	"mosaicgen/pkg/discovery"
	"mosaicgen/pkg/imageencoder"
	"mosaicgen/pkg/layout"
	"mosaicgen/pkg/mediaprobe"
	"mosaicgen/pkg/playlist"
	"mosaicgen/pkg/preview"
	"mosaicgen/pkg/sampler"
	"mosaicgen/pkg/storage"
)

// Pipeline is the façade. It is safe for concurrent use; configuration
// updates are guarded and take effect on the next job.
type Pipeline struct {
	cfgMu sync.Mutex
	cfg   *config.Config

	ledger   *coordinator.CancellationLedger
	coord    *coordinator.Coordinator
	prober   *mediaprobe.Prober
	samp     *sampler.Sampler
	encoder  *imageencoder.Encoder
	exporter *preview.Assembler
	disco    *discovery.Discovery

	syncer storage.Syncer
}

// EnableSync activates output mirroring to S3 using the configured bucket.
// It is a no-op if SyncBucket is unset. Call once after New.
func (p *Pipeline) EnableSync(ctx context.Context) error {
	cfg := p.snapshot()
	if cfg.SyncBucket == "" {
		return nil
	}
	syncer, err := storage.NewS3Syncer(ctx, storage.S3Options{Region: cfg.SyncRegion})
	if err != nil {
		return fmt.Errorf("enable output sync: %w", err)
	}
	p.syncer = syncer
	return nil
}

// SyncOutput mirrors localDir to the configured sync bucket, a no-op when
// sync was never enabled.
func (p *Pipeline) SyncOutput(ctx context.Context, localDir string) error {
	if p.syncer == nil {
		return nil
	}
	cfg := p.snapshot()
	return p.syncer.SyncDirectory(ctx, localDir, cfg.SyncBucket, cfg.SyncPrefix)
}

// New builds a Pipeline from cfg.
func New(cfg *config.Config) *Pipeline {
	ledger := coordinator.NewLedger()
	prober := mediaprobe.New(cfg.FFprobeBin)
	return &Pipeline{
		cfg:      cfg,
		ledger:   ledger,
		coord:    coordinator.New(cfg.MaxConcurrentOperations, ledger),
		prober:   prober,
		samp:     sampler.New(cfg.FFmpegBin, cfg.MaxConcurrentOperations),
		encoder:  imageencoder.New(cfg.FFmpegBin, cfg.AddFullPath),
		exporter: preview.New(cfg.FFmpegBin),
		disco:    discovery.New(prober, nil),
	}
}

func (p *Pipeline) snapshot() config.Config {
	p.cfgMu.Lock()
	defer p.cfgMu.Unlock()
	return *p.cfg
}

// UpdateConfig replaces the active configuration wholesale.
func (p *Pipeline) UpdateConfig(cfg *config.Config) {
	p.cfgMu.Lock()
	p.cfg = cfg
	p.cfgMu.Unlock()
	p.coord.SetMaxTasks(cfg.MaxConcurrentOperations)
}

// UpdateMaxConcurrency changes the worker slot budget for subsequent slot
// acquisitions.
func (p *Pipeline) UpdateMaxConcurrency(n int) {
	p.cfgMu.Lock()
	p.cfg.MaxConcurrentOperations = n
	p.cfgMu.Unlock()
	p.coord.SetMaxTasks(n)
}

// UpdateMosaicAspect changes the target mosaic aspect ratio for subsequent
// layout planning.
func (p *Pipeline) UpdateMosaicAspect(ratio float64) {
	p.cfgMu.Lock()
	p.cfg.MosaicAspectRatio = ratio
	p.cfgMu.Unlock()
}

// Cancel flips the global cancellation bit.
func (p *Pipeline) Cancel() {
	p.ledger.CancelGlobal()
}

// CancelFile marks a single source file cancelled.
func (p *Pipeline) CancelFile(path string) {
	p.ledger.CancelFile(path)
}

// Reset clears the cancellation ledger at a job boundary.
func (p *Pipeline) Reset() {
	p.ledger.Reset()
}

func outputConfig(cfg config.Config, aspectTag string) discovery.OutputConfig {
	return discovery.OutputConfig{
		ThDir:           cfg.ThDir,
		Width:           cfg.Width,
		AspectTag:       aspectTag,
		SaveAtRoot:      cfg.SaveAtRoot,
		SeparateFolders: cfg.SeparateFolders,
	}
}

// Discover walks root and returns the FilePair batch for a mosaic/preview
// job, using the timed indexed fast path with a directory-walk fallback.
func (p *Pipeline) Discover(ctx context.Context, root string, onProgress discovery.ProgressFunc) ([]discovery.FilePair, error) {
	cfg := p.snapshot()
	oc := outputConfig(cfg, layout.AspectTag(cfg.MosaicAspectRatio))
	return p.disco.Walk(ctx, root, oc, onProgress)
}

// DiscoverPlaylist expands an M3U-like file into a FilePair batch.
func (p *Pipeline) DiscoverPlaylist(playlistPath, discoveryRoot string) ([]discovery.FilePair, error) {
	cfg := p.snapshot()
	oc := outputConfig(cfg, layout.AspectTag(cfg.MosaicAspectRatio))
	return discovery.ExpandPlaylist(playlistPath, discoveryRoot, oc)
}

// DiscoverDateRange returns the FilePair batch for videos created in
// [start,end).
func (p *Pipeline) DiscoverDateRange(ctx context.Context, root string, start, end time.Time, onProgress discovery.ProgressFunc) ([]discovery.FilePair, error) {
	cfg := p.snapshot()
	oc := outputConfig(cfg, layout.AspectTag(cfg.MosaicAspectRatio))
	return p.disco.DateRange(ctx, root, start, end, oc, onProgress)
}

// DiscoverToday returns the FilePair batch for videos created today.
func (p *Pipeline) DiscoverToday(ctx context.Context, root string, today time.Time, onProgress discovery.ProgressFunc) ([]discovery.FilePair, error) {
	start := time.Date(today.Year(), today.Month(), today.Day(), 0, 0, 0, 0, today.Location())
	end := start.AddDate(0, 0, 1)
	return p.DiscoverDateRange(ctx, root, start, end, onProgress)
}

func toCoordPairs(pairs []discovery.FilePair) []coordinator.FilePair {
	out := make([]coordinator.FilePair, len(pairs))
	for i, p := range pairs {
		out[i] = coordinator.FilePair{SourcePath: p.SourcePath, OutputDir: p.OutputDir}
	}
	return out
}

// GenerateMosaics runs the mosaic pipeline (probe, layout, sample, compose,
// encode) over pairs under the coordinator's bounded worker budget.
func (p *Pipeline) GenerateMosaics(ctx context.Context, pairs []discovery.FilePair, onProgress func(coordinator.ProgressEvent)) ([]coordinator.Result, error) {
	cfg := p.snapshot()
	worker := p.mosaicWorker(cfg)
	return p.coord.Run(ctx, toCoordPairs(pairs), coordinator.OpMosaic, worker, onProgress)
}

// GeneratePreviews runs the preview assembler over pairs.
func (p *Pipeline) GeneratePreviews(ctx context.Context, pairs []discovery.FilePair, onProgress func(coordinator.ProgressEvent)) ([]coordinator.Result, error) {
	cfg := p.snapshot()
	worker := p.previewWorker(cfg)
	return p.coord.Run(ctx, toCoordPairs(pairs), coordinator.OpPreview, worker, onProgress)
}

// mosaicWorker closes over the pinned config snapshot for one Run and
// implements the strict per-file ordering: probe -> layout -> extract ->
// composite -> encode.
func (p *Pipeline) mosaicWorker(cfg config.Config) coordinator.WorkerFunc {
	d, err := density.From(cfg.Density)
	if err != nil {
		d = density.M
	}
	format := imageencoder.Format(cfg.Format)

	return func(ctx context.Context, pair coordinator.FilePair, report coordinator.FileReporter) (coordinator.Result, error) {
		if p.ledger.IsFileCancelled(pair.SourcePath) || p.ledger.IsGlobalCancelled() {
			return coordinator.Result{}, coordinator.ErrCancelled
		}

		meta, err := p.prober.Probe(ctx, pair.SourcePath)
		if err != nil {
			return coordinator.Result{}, fmt.Errorf("%w: %v", coordinator.ErrUnableToCreateContext, err)
		}
		report("probe", 0.2)

		if p.ledger.IsFileCancelled(pair.SourcePath) || p.ledger.IsGlobalCancelled() {
			return coordinator.Result{}, coordinator.ErrCancelled
		}
		if cfg.MinDuration > 0 && meta.Duration < cfg.MinDuration {
			report("File too short", 1.0)
			return coordinator.Result{}, coordinator.ErrTooShort
		}

		filename := imageencoder.BuildFilename(pair.SourcePath, d, meta.DurationClass(), extForFormat(format), cfg.AddFullPath)
		outPath := filepath.Join(pair.OutputDir, filename)
		if !cfg.Overwrite && fileExists(outPath) {
			return coordinator.Result{}, coordinator.ErrExistingVid
		}

		l := layout.Plan(meta.Aspect(), meta.Duration, cfg.Width, d, cfg.MosaicAspectRatio, cfg.CustomLayout)
		report("layout", 0.4)

		if p.ledger.IsFileCancelled(pair.SourcePath) || p.ledger.IsGlobalCancelled() {
			return coordinator.Result{}, coordinator.ErrCancelled
		}

		tol := sampler.Loose
		if cfg.AccurateTimestamps {
			tol = sampler.Accurate
		}
		timestamps := sampler.Timestamps(meta.Duration, l.Count)
		maxSize := l.BaseThumbW * 2
		frames, err := p.samp.Sample(ctx, pair.SourcePath, timestamps, maxSize, tol)
		if err != nil {
			return coordinator.Result{}, fmt.Errorf("%w: %v", coordinator.ErrUnableToGenerateMosaic, err)
		}
		report("extract", 0.55)

		img, err := compositor.Compose(l, frames, meta, compositor.Metadata{
			Path:       pair.SourcePath,
			Codec:      meta.Codec,
			Resolution: fmt.Sprintf("%dx%d", meta.Width, meta.Height),
			Duration:   sampler.FormatHHMMSS(meta.Duration),
		})
		if err != nil {
			return coordinator.Result{}, fmt.Errorf("%w: %v", coordinator.ErrUnableToGenerateMosaic, err)
		}
		report("composite", 0.6)

		if p.ledger.IsFileCancelled(pair.SourcePath) || p.ledger.IsGlobalCancelled() {
			return coordinator.Result{}, coordinator.ErrCancelled
		}

		savedPath, err := p.encoder.Encode(ctx, img, pair.OutputDir, filename, format, cfg.CompressionQuality)
		if err != nil {
			return coordinator.Result{}, fmt.Errorf("%w: %v", coordinator.ErrUnableToSaveMosaic, err)
		}
		report("save", 0.8)
		report("done", 1.0)

		return coordinator.Result{SourcePath: pair.SourcePath, OutputPath: savedPath}, nil
	}
}

// previewWorker derives each file's extract plan from its probed duration
// and exports the spliced preview, polling cancellation inside the export
// loop via ctx.
func (p *Pipeline) previewWorker(cfg config.Config) coordinator.WorkerFunc {
	d, err := density.From(cfg.Density)
	if err != nil {
		d = density.M
	}

	return func(ctx context.Context, pair coordinator.FilePair, report coordinator.FileReporter) (coordinator.Result, error) {
		if p.ledger.IsFileCancelled(pair.SourcePath) || p.ledger.IsGlobalCancelled() {
			return coordinator.Result{}, coordinator.ErrCancelled
		}

		meta, err := p.prober.Probe(ctx, pair.SourcePath)
		if err != nil {
			return coordinator.Result{}, fmt.Errorf("%w: %v", coordinator.ErrUnableToCreateContext, err)
		}
		report("probe", 0.2)

		if cfg.MinDuration > 0 && meta.Duration < cfg.MinDuration {
			report("File too short", 1.0)
			return coordinator.Result{}, coordinator.ErrTooShort
		}

		plan := preview.DerivePlan(meta.Duration, cfg.PreviewDuration, 1.0, d)
		stem := filepath.Base(pair.SourcePath)
		if ext := filepath.Ext(stem); ext != "" {
			stem = stem[:len(stem)-len(ext)]
		}
		filename := preview.OutputFilename(stem, d, plan.Count)
		previewDir := filepath.Join(pair.OutputDir, "amprv")
		outPath := filepath.Join(previewDir, filename)

		if !cfg.Overwrite && fileExists(outPath) {
			return coordinator.Result{}, coordinator.ErrExistingVid
		}

		if err := ensureDir(previewDir); err != nil {
			return coordinator.Result{}, fmt.Errorf("%w: %v", coordinator.ErrUnableToCreateExportSession, err)
		}

		ctx, cancel := context.WithCancel(ctx)
		defer cancel()
		go pollCancellation(ctx, cancel, p.ledger, pair.SourcePath)

		onProgress := func(percent float64, position, speed string) {
			report("export", percent/100.0)
		}
		if err := p.exporter.Export(ctx, pair.SourcePath, outPath, meta.Duration, plan, 1.0, cfg.VideoExportPreset, onProgress); err != nil {
			if p.ledger.IsFileCancelled(pair.SourcePath) || p.ledger.IsGlobalCancelled() {
				return coordinator.Result{}, coordinator.ErrCancelled
			}
			return coordinator.Result{}, fmt.Errorf("%w: %v", coordinator.ErrExportTimeout, err)
		}
		report("done", 1.0)

		return coordinator.Result{SourcePath: pair.SourcePath, OutputPath: outPath}, nil
	}
}

// pollCancellation checks the ledger every 100ms (per the concurrency
// model's preview cancellation polling interval) and cancels ctx on a hit.
func pollCancellation(ctx context.Context, cancel context.CancelFunc, ledger *coordinator.CancellationLedger, path string) {
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if ledger.IsGlobalCancelled() || ledger.IsFileCancelled(path) {
				cancel()
				return
			}
		}
	}
}

// CreatePlaylist writes the standard and, if cfg.Summary is set, the
// duration-bucketed manifests for one discovered batch.
func (p *Pipeline) CreatePlaylist(dir, dirName string, pairs []discovery.FilePair) (string, error) {
	cfg := p.snapshot()
	entries := make([]playlist.Entry, len(pairs))
	byClass := make(map[density.Class][]playlist.Entry)
	for i, fp := range pairs {
		e := playlist.Entry{Path: fp.SourcePath}
		entries[i] = e
		if cfg.Summary {
			meta, err := p.prober.Probe(context.Background(), fp.SourcePath)
			class := density.ClassUnknown
			if err == nil {
				class = meta.DurationClass()
			}
			byClass[class] = append(byClass[class], e)
		}
	}
	path, err := playlist.WriteStandard(dir, dirName, entries)
	if err != nil {
		return "", err
	}
	if cfg.Summary {
		if _, err := playlist.WriteDurationBucketed(dir, dirName, byClass); err != nil {
			return path, err
		}
	}
	return path, nil
}

// CreateDateRangePlaylist writes a dated manifest for a discovered batch.
func (p *Pipeline) CreateDateRangePlaylist(dir string, start, end time.Time, pairs []discovery.FilePair) (string, error) {
	entries := toEntries(pairs)
	return playlist.WriteDateRange(dir, start, end, entries)
}

// CreateTodayPlaylist writes today's dated manifest for a discovered batch.
func (p *Pipeline) CreateTodayPlaylist(dir string, today time.Time, pairs []discovery.FilePair) (string, error) {
	entries := toEntries(pairs)
	return playlist.WriteToday(dir, today, entries)
}

func toEntries(pairs []discovery.FilePair) []playlist.Entry {
	entries := make([]playlist.Entry, len(pairs))
	for i, fp := range pairs {
		entries[i] = playlist.Entry{Path: fp.SourcePath}
	}
	return entries
}

func extForFormat(f imageencoder.Format) string {
	return string(f)
}
