// Package discovery implements FileDiscovery: enumerating video files via
// directory walk, playlist expansion, or date-range query, and deriving
// their (source, output) pairs.
package discovery

import (
	"bufio"
	"context"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"mosaicgen/pkg/mediaprobe"
)

// videoExtensions is the discovery filter's set of recognised container
// types, per the core's external interface (MPEG-4, QuickTime MOV, MPEG,
// AVI, MKV).
var videoExtensions = map[string]bool{
	".mp4":  true,
	".m4v":  true,
	".mov":  true,
	".mpg":  true,
	".mpeg": true,
	".avi":  true,
	".mkv":  true,
}

const previewTag = "amprv"

// IsVideoFile reports whether name has a recognised video extension.
func IsVideoFile(name string) bool {
	return videoExtensions[strings.ToLower(filepath.Ext(name))]
}

// isPreviewOutput reports whether name carries the preview-tag exclusion.
func isPreviewOutput(name string) bool {
	return strings.Contains(strings.ToLower(name), previewTag)
}

// FilePair is a (source video, output directory) pair.
type FilePair struct {
	SourcePath string
	OutputDir  string
}

// OutputConfig controls output-directory derivation.
type OutputConfig struct {
	ThDir          string
	Width          int
	AspectTag      string
	SaveAtRoot     bool
	SeparateFolders bool
	PlaylistStem   string // set when deriving pairs from a playlist
}

// OutputDir is the pure function deriving a source file's mosaic output
// directory: {root}/{thDir}/{W}_{aspectTag}[/{durationClass}], nested under
// the playlist stem for playlist-sourced inputs, and rooted either at the
// discovery root (saveAtRoot) or alongside the source file.
func OutputDir(sourcePath, discoveryRoot string, cfg OutputConfig, durationClass string) string {
	var base string
	if cfg.SaveAtRoot {
		base = discoveryRoot
	} else {
		base = filepath.Dir(sourcePath)
	}

	parts := []string{base, cfg.ThDir, widthAspectSegment(cfg.Width, cfg.AspectTag)}
	if cfg.PlaylistStem != "" {
		parts = []string{base, cfg.ThDir, cfg.PlaylistStem, widthAspectSegment(cfg.Width, cfg.AspectTag)}
	}
	if cfg.SeparateFolders && durationClass != "" {
		parts = append(parts, durationClass)
	}
	return filepath.Join(parts...)
}

func widthAspectSegment(width int, aspectTag string) string {
	return strconv.Itoa(width) + "_" + aspectTag
}

// ProgressFunc reports running discovery counts.
type ProgressFunc func(found, scanned int)

// IndexLookup is the capability interface for OS-indexed metadata discovery:
// implementations backed by a real index return (paths, true, nil); when no
// index is available they return (nil, false, nil) so the caller falls back
// to a directory walk.
type IndexLookup interface {
	Lookup(ctx context.Context, root string) ([]string, bool, error)
}

// noIndex is the default IndexLookup: platforms without an OS index ship
// only the walk path, per the design notes.
type noIndex struct{}

func (noIndex) Lookup(ctx context.Context, root string) ([]string, bool, error) {
	return nil, false, nil
}

// Discovery enumerates videos and computes their FilePair outputs.
type Discovery struct {
	Prober *mediaprobe.Prober
	Index  IndexLookup
}

// New returns a Discovery using prober for date-range queries and, if index
// is nil, the no-op IndexLookup.
func New(prober *mediaprobe.Prober, index IndexLookup) *Discovery {
	if index == nil {
		index = noIndex{}
	}
	return &Discovery{Prober: prober, Index: index}
}

// Walk enumerates regular video files under root, excluding preview outputs,
// deriving each file's output directory via cfg. It first attempts the
// indexed fast path with a 5s bounded timeout, falling back to a
// deterministic directory walk.
func (d *Discovery) Walk(ctx context.Context, root string, cfg OutputConfig, onProgress ProgressFunc) ([]FilePair, error) {
	if paths, ok := d.fastPath(ctx, root); ok {
		return d.pairsFromPaths(paths, root, cfg, onProgress), nil
	}
	paths, err := d.walkPaths(root, onProgress)
	if err != nil {
		return nil, err
	}
	return d.pairsFromPaths(paths, root, cfg, onProgress), nil
}

func (d *Discovery) fastPath(ctx context.Context, root string) ([]string, bool) {
	timeoutCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	paths, ok, err := d.Index.Lookup(timeoutCtx, root)
	if err != nil || !ok {
		if err != nil {
			log.Warn("indexed discovery unavailable, falling back to walk", "root", root, "err", err)
		}
		return nil, false
	}
	var filtered []string
	for _, p := range paths {
		if IsVideoFile(p) && !isPreviewOutput(filepath.Base(p)) {
			filtered = append(filtered, p)
		}
	}
	return filtered, true
}

func (d *Discovery) walkPaths(root string, onProgress ProgressFunc) ([]string, error) {
	var paths []string
	scanned := 0
	err := filepath.WalkDir(root, func(path string, entry os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if entry.IsDir() {
			return nil
		}
		scanned++
		if IsVideoFile(path) && !isPreviewOutput(entry.Name()) {
			paths = append(paths, path)
			if onProgress != nil {
				onProgress(len(paths), scanned)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return paths, nil
}

func (d *Discovery) pairsFromPaths(paths []string, root string, cfg OutputConfig, onProgress ProgressFunc) []FilePair {
	pairs := make([]FilePair, 0, len(paths))
	for i, p := range paths {
		durationClass := ""
		if cfg.SeparateFolders && d.Prober != nil {
			if meta, err := d.Prober.Probe(context.Background(), p); err == nil {
				durationClass = string(meta.DurationClass())
			}
		}
		pairs = append(pairs, FilePair{
			SourcePath: p,
			OutputDir:  OutputDir(p, root, cfg, durationClass),
		})
		if onProgress != nil {
			onProgress(i+1, len(paths))
		}
	}
	return pairs
}

// ExpandPlaylist parses an M3U-like file, dropping #-prefixed and empty
// lines; each remaining line is a local path.
func ExpandPlaylist(playlistPath string, root string, cfg OutputConfig) ([]FilePair, error) {
	f, err := os.Open(playlistPath)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	stem := strings.TrimSuffix(filepath.Base(playlistPath), filepath.Ext(playlistPath))
	playlistCfg := cfg
	playlistCfg.PlaylistStem = stem

	var pairs []FilePair
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		pairs = append(pairs, FilePair{
			SourcePath: line,
			OutputDir:  OutputDir(line, root, playlistCfg, ""),
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return pairs, nil
}

// DateRange returns FilePairs for videos under root whose probed creation
// date falls in [start, end). Pass end == start.AddDate(0,0,1) for a
// "today" query.
func (d *Discovery) DateRange(ctx context.Context, root string, start, end time.Time, cfg OutputConfig, onProgress ProgressFunc) ([]FilePair, error) {
	paths, err := d.walkPaths(root, nil)
	if err != nil {
		return nil, err
	}

	var pairs []FilePair
	scanned := 0
	for _, p := range paths {
		scanned++
		meta, err := d.Prober.Probe(ctx, p)
		if err != nil || meta.Created == nil {
			continue
		}
		if meta.Created.Before(start) || !meta.Created.Before(end) {
			continue
		}
		pairs = append(pairs, FilePair{
			SourcePath: p,
			OutputDir:  OutputDir(p, root, cfg, string(meta.DurationClass())),
		})
		if onProgress != nil {
			onProgress(len(pairs), scanned)
		}
	}
	return pairs, nil
}
