// Package playlist implements PlaylistWriter: emitting M3U-style manifests
// over a discovered video corpus, including duration-bucketed and dated
// variants.
package playlist

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"mosaicgen/pkg/density"
)

// Entry is one playlist line pair: the absolute path to a video plus the
// display name used in its #EXTINF line.
type Entry struct {
	Path        string
	DisplayName string
}

// Builder accumulates entries for a single manifest, mirroring the fluent
// construction style used elsewhere in this module.
type Builder struct {
	entries []Entry
}

// New returns an empty Builder.
func New() *Builder {
	return &Builder{}
}

// AddEntry appends one video to the manifest. If displayName is empty, the
// path's base name is used.
func (b *Builder) AddEntry(path, displayName string) *Builder {
	if displayName == "" {
		displayName = filepath.Base(path)
	}
	b.entries = append(b.entries, Entry{Path: path, DisplayName: displayName})
	return b
}

// String renders the manifest: "#EXTM3U\n" then, per entry,
// "#EXTINF:-1,{name}\n{path}\n".
func (b *Builder) String() string {
	var sb strings.Builder
	sb.WriteString("#EXTM3U\n")
	for _, e := range b.entries {
		fmt.Fprintf(&sb, "#EXTINF:-1,%s\n%s\n", e.DisplayName, e.Path)
	}
	return sb.String()
}

// WriteFile atomically writes the manifest to path: it writes to a temp file
// in the same directory then renames over any existing file.
func (b *Builder) WriteFile(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create playlist dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".playlist-*.tmp")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	if _, err := tmp.WriteString(b.String()); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return err
	}
	return os.Rename(tmpPath, path)
}

// Read parses a manifest back into the ordered list of path lines,
// satisfying the write/read round trip (invariant 9).
func Read(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var paths []string
	lines := strings.Split(string(data), "\n")
	for i := 0; i < len(lines); i++ {
		line := lines[i]
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		paths = append(paths, line)
	}
	return paths, nil
}

// WriteStandard writes one manifest per source directory, named
// "{dirName}.m3u8".
func WriteStandard(dir, dirName string, entries []Entry) (string, error) {
	b := New()
	for _, e := range entries {
		b.AddEntry(e.Path, e.DisplayName)
	}
	path := filepath.Join(dir, dirName+".m3u8")
	return path, b.WriteFile(path)
}

// WriteDurationBucketed writes one manifest per duration class present in
// byClass, named "{class}-{dirName}.m3u8".
func WriteDurationBucketed(dir, dirName string, byClass map[density.Class][]Entry) (map[density.Class]string, error) {
	written := make(map[density.Class]string)
	for _, class := range density.AllBuckets {
		entries, ok := byClass[class]
		if !ok || len(entries) == 0 {
			continue
		}
		b := New()
		for _, e := range entries {
			b.AddEntry(e.Path, e.DisplayName)
		}
		path := filepath.Join(dir, string(class)+"-"+dirName+".m3u8")
		if err := b.WriteFile(path); err != nil {
			return written, err
		}
		written[class] = path
	}
	return written, nil
}

// WriteToday writes a dated manifest named "{YYYYMMDD}.m3u8".
func WriteToday(dir string, date time.Time, entries []Entry) (string, error) {
	b := New()
	for _, e := range entries {
		b.AddEntry(e.Path, e.DisplayName)
	}
	path := filepath.Join(dir, date.Format("20060102")+".m3u8")
	return path, b.WriteFile(path)
}

// WriteDateRange writes a dated manifest named
// "{YYYYMMDD-start}-{YYYYMMDD-end}.m3u8".
func WriteDateRange(dir string, start, end time.Time, entries []Entry) (string, error) {
	b := New()
	for _, e := range entries {
		b.AddEntry(e.Path, e.DisplayName)
	}
	stem := start.Format("20060102") + "-" + end.Format("20060102")
	path := filepath.Join(dir, stem+".m3u8")
	return path, b.WriteFile(path)
}
