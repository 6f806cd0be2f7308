package config

import (
	"context"
	"fmt"

	"mosaicgen/pkg/imageencoder"

	"github.com/sethvargo/go-envconfig"
)

// Config is the full set of options recognised by the core, loaded from the
// environment.
type Config struct {
	Width                   int     `env:"MOSAIC_WIDTH,default=1200"`
	Density                 string  `env:"MOSAIC_DENSITY,default=M"`
	Format                  string  `env:"MOSAIC_FORMAT,default=jpeg"`
	CompressionQuality      float64 `env:"MOSAIC_QUALITY,default=0.85"`
	MinDuration             float64 `env:"MOSAIC_MIN_DURATION,default=0"`
	PreviewDuration         float64 `env:"MOSAIC_PREVIEW_DURATION,default=30"`
	Overwrite               bool    `env:"MOSAIC_OVERWRITE,default=false"`
	CustomLayout            bool    `env:"MOSAIC_CUSTOM_LAYOUT,default=false"`
	AddFullPath             bool    `env:"MOSAIC_ADD_FULL_PATH,default=false"`
	Summary                 bool    `env:"MOSAIC_SUMMARY,default=false"`
	SeparateFolders         bool    `env:"MOSAIC_SEPARATE_FOLDERS,default=false"`
	SaveAtRoot              bool    `env:"MOSAIC_SAVE_AT_ROOT,default=false"`
	AccurateTimestamps      bool    `env:"MOSAIC_ACCURATE_TIMESTAMPS,default=false"`
	MaxConcurrentOperations int     `env:"MOSAIC_MAX_CONCURRENT_OPERATIONS,default=4"`
	MosaicAspectRatio       float64 `env:"MOSAIC_ASPECT_RATIO,default=1.7777777777777777"`
	VideoExportPreset       string  `env:"MOSAIC_EXPORT_PRESET,default=medium"`
	ThDir                   string  `env:"MOSAIC_THUMB_DIR,default=.mosaics"`
	FFmpegBin               string  `env:"MOSAIC_FFMPEG_BIN,default=ffmpeg"`
	FFprobeBin              string  `env:"MOSAIC_FFPROBE_BIN,default=ffprobe"`

	// WatchRoot is the directory scanned for source video files.
	WatchRoot string `env:"MOSAIC_ROOT,default=."`
	// Operation selects what the scan batch produces: "mosaic", "preview" or "both".
	Operation string `env:"MOSAIC_OPERATION,default=mosaic"`
	// PlaylistName, when set, also writes an M3U playlist of the batch next
	// to its outputs.
	PlaylistName string `env:"MOSAIC_PLAYLIST_NAME"`
	// ScanIntervalSeconds, when >0, re-scans WatchRoot on a timer instead of
	// exiting after a single pass.
	ScanIntervalSeconds int `env:"MOSAIC_SCAN_INTERVAL_SECONDS,default=0"`
	// TempDirMinFreeGB gates each scan pass on available space in os.TempDir.
	TempDirMinFreeGB int `env:"MOSAIC_TEMP_MIN_FREE_GB,default=2"`

	// QueueDatabaseURL, when set, enables the optional Postgres-backed
	// distributed FilePair queue so multiple coordinator processes can
	// cooperatively drain one discovery batch.
	QueueDatabaseURL string `env:"MOSAIC_QUEUE_DATABASE_URL"`

	// SyncBucket, when set, enables mirroring generated output trees to S3
	// after a batch completes.
	SyncBucket string `env:"MOSAIC_SYNC_BUCKET"`
	SyncRegion string `env:"MOSAIC_SYNC_REGION,default=us-east-1"`
	SyncPrefix string `env:"MOSAIC_SYNC_PREFIX"`
}

// Load reads Config from the environment. It fails closed on a bad
// MOSAIC_FORMAT: an unsupported output format is a configuration mistake,
// fatal for the whole job, not a per-file fault the coordinator should
// classify and keep running past.
func Load() (*Config, error) {
	ctx := context.Background()
	var cfg Config
	if err := envconfig.Process(ctx, &cfg); err != nil {
		return nil, err
	}
	if !imageencoder.ValidFormat(imageencoder.Format(cfg.Format)) {
		return nil, fmt.Errorf("%w: %s", imageencoder.ErrUnsupportedOutputFormat, cfg.Format)
	}
	return &cfg, nil
}
