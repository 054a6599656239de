// Package backup writes scheduled snapshot files and prunes old ones.
package backup

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"symptomlog/internal/services"
)

const (
	filePrefix = "symptomlog-"
	fileSuffix = ".json"
	fileStamp  = "20060102-150405"
)

// Exporter produces the snapshot to back up.
type Exporter interface {
	ExportAll(ctx context.Context) (*services.Snapshot, error)
}

// Writer stores snapshots as JSON files in Dir, keeping the newest Keep.
type Writer struct {
	exporter Exporter
	dir      string
	keep     int
	now      func() time.Time
}

func NewWriter(exporter Exporter, dir string, keep int) *Writer {
	return &Writer{exporter: exporter, dir: dir, keep: keep, now: time.Now}
}

// Run writes one snapshot file and prunes old ones. It returns the new path.
func (w *Writer) Run(ctx context.Context) (string, error) {
	snap, err := w.exporter.ExportAll(ctx)
	if err != nil {
		return "", fmt.Errorf("export snapshot: %w", err)
	}

	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode snapshot: %w", err)
	}

	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return "", fmt.Errorf("create backup dir: %w", err)
	}

	name := filePrefix + w.now().UTC().Format(fileStamp) + fileSuffix
	path := filepath.Join(w.dir, name)

	// Write then rename so a crash never leaves a truncated backup behind.
	tmp, err := os.CreateTemp(w.dir, ".tmp-"+name)
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", fmt.Errorf("write backup: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("close backup: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("rename backup: %w", err)
	}

	slog.InfoContext(ctx, "Backup written",
		"path", path,
		"categories", len(snap.Categories),
		"entries", len(snap.Entries))

	if err := w.prune(); err != nil {
		slog.WarnContext(ctx, "Failed to prune old backups", "dir", w.dir, "error", err)
	}
	return path, nil
}

// Job adapts Run to a cron callback.
func (w *Writer) Job() func() {
	return func() {
		if _, err := w.Run(context.Background()); err != nil {
			slog.Error("Scheduled backup failed", "dir", w.dir, "error", err)
		}
	}
}

// List returns backup file names in the directory, oldest first.
func (w *Writer) List() ([]string, error) {
	items, err := os.ReadDir(w.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return []string{}, nil
		}
		return nil, err
	}
	names := make([]string, 0, len(items))
	for _, it := range items {
		n := it.Name()
		if it.IsDir() || !strings.HasPrefix(n, filePrefix) || !strings.HasSuffix(n, fileSuffix) {
			continue
		}
		names = append(names, n)
	}
	// Timestamps in the name sort chronologically.
	sort.Strings(names)
	return names, nil
}

func (w *Writer) prune() error {
	if w.keep <= 0 {
		return nil
	}
	names, err := w.List()
	if err != nil {
		return err
	}
	if len(names) <= w.keep {
		return nil
	}
	for _, n := range names[:len(names)-w.keep] {
		if err := os.Remove(filepath.Join(w.dir, n)); err != nil {
			return err
		}
		slog.Debug("Old backup removed", "file", n)
	}
	return nil
}
