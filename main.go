package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"syscall"
	"time"

	"mosaicgen/pkg/config"
	"mosaicgen/pkg/coordinator"
	"mosaicgen/pkg/db"
	"mosaicgen/pkg/discovery"
	"mosaicgen/pkg/pipeline"
	"mosaicgen/pkg/queue"

	"github.com/charmbracelet/log"
	"golang.org/x/sys/unix"
)

// checkDiskSpace verifies there's enough free space in the directory
func checkDiskSpace(path string, minGB int) error {
	var stat unix.Statfs_t
	if err := unix.Statfs(path, &stat); err != nil {
		return fmt.Errorf("failed to check disk space: %w", err)
	}

	availableGB := float64(stat.Bavail*uint64(stat.Bsize)) / (1024 * 1024 * 1024)
	if availableGB < float64(minGB) {
		return fmt.Errorf("insufficient disk space: %.2f GB available, %d GB required", availableGB, minGB)
	}
	return nil
}

// logMemoryStats logs current memory usage
func logMemoryStats() {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	log.Info("memory stats",
		"alloc_mb", m.Alloc/1024/1024,
		"total_alloc_mb", m.TotalAlloc/1024/1024,
		"sys_mb", m.Sys/1024/1024,
		"num_gc", m.NumGC,
	)
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle graceful shutdown with forced exit on second signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		log.Info("signal received, cancelling in-flight batch... (press Ctrl+C again to force exit)", "signal", sig)
		cancel()

		sig = <-sigCh
		log.Error("second signal received, forcing immediate exit", "signal", sig)
		os.Exit(1)
	}()

	p := pipeline.New(cfg)

	var sqlDB *sql.DB
	if cfg.QueueDatabaseURL != "" {
		sqlDB, err = db.Open(ctx, cfg.QueueDatabaseURL)
		if err != nil {
			log.Fatal("failed to open queue database", "error", err)
		}
		defer sqlDB.Close()
		log.Info("distributed queue enabled", "max_conns", sqlDB.Stats().MaxOpenConnections)
	}

	if cfg.SyncBucket != "" {
		if err := p.EnableSync(ctx); err != nil {
			log.Fatal("failed to enable output sync", "error", err)
		}
		log.Info("output sync enabled", "bucket", cfg.SyncBucket, "region", cfg.SyncRegion)
	}

	log.Info("mosaicgen starting",
		"root", cfg.WatchRoot,
		"operation", cfg.Operation,
		"density", cfg.Density,
		"width", cfg.Width,
		"format", cfg.Format,
		"max_concurrent", cfg.MaxConcurrentOperations,
		"ffmpeg", cfg.FFmpegBin,
		"ffprobe", cfg.FFprobeBin,
	)

	go func() {
		ticker := time.NewTicker(60 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				logMemoryStats()
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			log.Info("shutdown requested, exiting")
			return
		default:
		}

		if err := checkDiskSpace(os.TempDir(), cfg.TempDirMinFreeGB); err != nil {
			log.Warn("insufficient disk space, waiting before retry", "error", err, "min_required_gb", cfg.TempDirMinFreeGB)
			if !sleepOrDone(ctx, 30*time.Second) {
				return
			}
			continue
		}

		if err := runBatch(ctx, p, cfg, sqlDB); err != nil {
			log.Error("batch error", "error", err)
		}

		if cfg.ScanIntervalSeconds <= 0 {
			return
		}
		p.Reset()
		if !sleepOrDone(ctx, time.Duration(cfg.ScanIntervalSeconds)*time.Second) {
			return
		}
	}
}

func sleepOrDone(ctx context.Context, d time.Duration) bool {
	select {
	case <-ctx.Done():
		return false
	case <-time.After(d):
		return true
	}
}

// runBatch discovers one FilePair batch under cfg.WatchRoot and drives the
// configured operation(s) to completion, logging throttled global progress.
// When sqlDB is non-nil the batch is handed to the distributed queue instead
// of processed directly, so multiple coordinator processes sharing
// QueueDatabaseURL can cooperatively drain it.
func runBatch(ctx context.Context, p *pipeline.Pipeline, cfg *config.Config, sqlDB *sql.DB) error {
	start := time.Now()

	pairs, err := p.Discover(ctx, cfg.WatchRoot, func(done, total int) {
		log.Debug("discovery progress", "done", done, "total", total)
	})
	if err != nil {
		return fmt.Errorf("discover: %w", err)
	}
	log.Info("discovery complete", "root", cfg.WatchRoot, "files", len(pairs))
	if len(pairs) == 0 {
		return nil
	}

	if sqlDB != nil {
		if err := runQueueBatch(ctx, p, cfg, sqlDB, pairs); err != nil {
			return err
		}
		return writePlaylistAndSync(ctx, p, cfg, pairs)
	}

	onProgress := func(ev coordinator.ProgressEvent) {
		if ev.Kind != "global" {
			return
		}
		log.Info("batch progress",
			"processed", ev.Processed,
			"total", ev.Total,
			"skipped", ev.Skipped,
			"errored", ev.Errored,
			"eta", coordinator.FormatETA(ev.ETASeconds),
			"stage", ev.Stage,
		)
	}

	var results []coordinator.Result
	switch cfg.Operation {
	case "preview":
		results, err = p.GeneratePreviews(ctx, pairs, onProgress)
	case "both":
		results, err = p.GenerateMosaics(ctx, pairs, onProgress)
		if err == nil {
			var previewResults []coordinator.Result
			previewResults, err = p.GeneratePreviews(ctx, pairs, onProgress)
			results = append(results, previewResults...)
		}
	default:
		results, err = p.GenerateMosaics(ctx, pairs, onProgress)
	}
	if err != nil {
		return fmt.Errorf("generate: %w", err)
	}
	log.Info("batch complete", "produced", len(results), "elapsed", time.Since(start).Truncate(time.Second))

	return writePlaylistAndSync(ctx, p, cfg, pairs)
}

func writePlaylistAndSync(ctx context.Context, p *pipeline.Pipeline, cfg *config.Config, pairs []discovery.FilePair) error {
	if cfg.PlaylistName != "" {
		dir := playlistDir(cfg, pairs)
		path, err := p.CreatePlaylist(dir, cfg.PlaylistName, pairs)
		if err != nil {
			log.Warn("playlist write failed", "error", err)
		} else {
			log.Info("playlist written", "path", path)
		}
	}

	if cfg.SyncBucket != "" {
		for _, dir := range outputDirs(pairs) {
			if err := p.SyncOutput(ctx, dir); err != nil {
				log.Warn("sync failed", "dir", dir, "error", err)
			}
		}
	}

	return nil
}

func noopProgress(coordinator.ProgressEvent) {}

// runQueueBatch enqueues every discovered pair into the Postgres-backed
// FilePair queue, then drains it via SKIP LOCKED claims until empty,
// recording each produced artifact's path for cross-process lookup.
func runQueueBatch(ctx context.Context, p *pipeline.Pipeline, cfg *config.Config, sqlDB *sql.DB, pairs []discovery.FilePair) error {
	ops := []string{cfg.Operation}
	if cfg.Operation == "both" {
		ops = []string{"mosaic", "preview"}
	}
	for i, fp := range pairs {
		for _, op := range ops {
			id := fmt.Sprintf("%d-%s-%s", i, op, filepath.Base(fp.SourcePath))
			if err := queue.Enqueue(ctx, sqlDB, id, fp.SourcePath, fp.OutputDir, op); err != nil {
				log.Warn("enqueue failed", "path", fp.SourcePath, "error", err)
			}
		}
	}
	log.Info("enqueued batch", "count", len(pairs))

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		job, err := queue.ClaimNext(ctx, sqlDB)
		if err != nil {
			if err == sql.ErrNoRows {
				return nil
			}
			log.Warn("claim next error", "error", err)
			if !sleepOrDone(ctx, 2*time.Second) {
				return nil
			}
			continue
		}

		if !cfg.Overwrite {
			existing, pathErr := db.ArtifactPath(ctx, sqlDB, job.SourcePath, job.Operation)
			if pathErr != nil {
				log.Warn("artifact lookup error", "source", job.SourcePath, "error", pathErr)
			} else if existing != "" {
				if _, statErr := os.Stat(existing); statErr == nil {
					log.Info("skipping already-produced artifact", "id", job.ID, "source", job.SourcePath, "path", existing)
					if err := queue.Complete(ctx, sqlDB, job.ID); err != nil {
						log.Warn("mark job complete error", "error", err)
					}
					continue
				}
			}
		}

		pair := []discovery.FilePair{{SourcePath: job.SourcePath, OutputDir: job.OutputDir}}
		var results []coordinator.Result
		switch job.Operation {
		case "preview":
			results, err = p.GeneratePreviews(ctx, pair, noopProgress)
		default:
			results, err = p.GenerateMosaics(ctx, pair, noopProgress)
		}
		if err != nil {
			log.Error("queue job failed", "id", job.ID, "source", job.SourcePath, "error", err)
			if failErr := queue.Fail(ctx, sqlDB, job.ID, err.Error()); failErr != nil {
				log.Warn("mark job failed error", "error", failErr)
			}
			continue
		}
		if err := queue.Complete(ctx, sqlDB, job.ID); err != nil {
			log.Warn("mark job complete error", "error", err)
		}
		for _, r := range results {
			if recErr := db.RecordArtifact(ctx, sqlDB, r.SourcePath, r.OutputPath, job.Operation, 0); recErr != nil {
				log.Warn("record artifact failed", "error", recErr)
			}
		}
		log.Info("queue job done", "id", job.ID, "source", job.SourcePath)
	}
}

func playlistDir(cfg *config.Config, pairs []discovery.FilePair) string {
	if len(pairs) > 0 && pairs[0].OutputDir != "" {
		return pairs[0].OutputDir
	}
	return filepath.Join(cfg.WatchRoot, cfg.ThDir)
}

func outputDirs(pairs []discovery.FilePair) []string {
	seen := make(map[string]bool)
	var dirs []string
	for _, fp := range pairs {
		if fp.OutputDir == "" || seen[fp.OutputDir] {
			continue
		}
		seen[fp.OutputDir] = true
		dirs = append(dirs, fp.OutputDir)
	}
	return dirs
}
