package fitmetrics

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// SyncedFile is one data file brought down by a sync.
type SyncedFile struct {
	// Key is the object's key in the store
	Key string

	// Name is the local file name (the key's base name)
	Name string

	// Size is the object size in bytes
	Size int64
}

// SyncResult summarizes a completed sync.
type SyncResult struct {
	Files      []SyncedFile
	TotalBytes int64
	Duration   time.Duration
}

// Syncer refreshes the local data directory from the object store. Object
// keys are flattened to their base names locally. Syncs are serialized;
// a failed sync leaves the previous data directory untouched, and readers
// never observe a half-written directory.
type Syncer struct {
	store   ObjectStore
	dataDir string
	workers int

	mu sync.Mutex
}

// NewSyncer returns a syncer that downloads with at most workers
// concurrent transfers.
func NewSyncer(store ObjectStore, dataDir string, workers int) *Syncer {
	if workers < 1 {
		workers = 1
	}
	return &Syncer{
		store:   store,
		dataDir: dataDir,
		workers: workers,
	}
}

// Sync lists the store and downloads every object into a staging directory,
// then swaps staging into place as the data directory.
func (s *Syncer) Sync(ctx context.Context) (*SyncResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	start := time.Now()

	objects, err := s.store.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list object store: %w", err)
	}

	// Keys flatten to base names locally; when two keys share one, the
	// later object wins
	byName := make(map[string]Object, len(objects))
	for _, object := range objects {
		name := filepath.Base(object.Key)
		if previous, ok := byName[name]; ok {
			zlog.Warn("duplicate file name in object store, keeping the later object",
				zap.String("name", name),
				zap.String("dropped_key", previous.Key),
				zap.String("kept_key", object.Key))
		}
		byName[name] = object
	}

	parent := filepath.Dir(s.dataDir)
	if err := os.MkdirAll(parent, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory parent: %w", err)
	}

	staging, err := os.MkdirTemp(parent, ".fitmetrics-staging-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create staging directory: %w", err)
	}
	defer os.RemoveAll(staging)

	if err := os.Chmod(staging, 0755); err != nil {
		return nil, fmt.Errorf("failed to chmod staging directory: %w", err)
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)

	for name, object := range byName {
		g.Go(func() error {
			localPath := filepath.Join(staging, name)
			if err := s.store.Download(ctx, object.Key, localPath); err != nil {
				return err
			}
			zlog.Debug("downloaded data file",
				zap.String("key", object.Key),
				zap.String("local_path", localPath),
				zap.Int64("size", object.Size))
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("failed to download data files: %w", err)
	}

	if err := s.swapIntoPlace(staging); err != nil {
		return nil, err
	}

	result := &SyncResult{Duration: time.Since(start)}
	for name, object := range byName {
		result.Files = append(result.Files, SyncedFile{
			Key:  object.Key,
			Name: name,
			Size: object.Size,
		})
		result.TotalBytes += object.Size
	}
	sort.Slice(result.Files, func(i, j int) bool { return result.Files[i].Name < result.Files[j].Name })

	zlog.Info("refreshed data files",
		zap.String("data_dir", s.dataDir),
		zap.Int("files", len(result.Files)),
		zap.Int64("total_bytes", result.TotalBytes),
		zap.Duration("duration", result.Duration))

	return result, nil
}

// swapIntoPlace replaces the data directory with the staging directory.
// The previous directory is moved aside first so the swap is two renames,
// not a delete-then-download window.
func (s *Syncer) swapIntoPlace(staging string) error {
	backup := s.dataDir + ".old"

	// A leftover backup from an interrupted swap
	if err := os.RemoveAll(backup); err != nil {
		return fmt.Errorf("failed to remove stale backup directory: %w", err)
	}

	hadPrevious := false
	if _, err := os.Stat(s.dataDir); err == nil {
		hadPrevious = true
		if err := os.Rename(s.dataDir, backup); err != nil {
			return fmt.Errorf("failed to move previous data directory aside: %w", err)
		}
	}

	if err := os.Rename(staging, s.dataDir); err != nil {
		if hadPrevious {
			if restoreErr := os.Rename(backup, s.dataDir); restoreErr != nil {
				zlog.Error("failed to restore previous data directory",
					zap.String("backup", backup),
					zap.Error(restoreErr))
			}
		}
		return fmt.Errorf("failed to move staging directory into place: %w", err)
	}

	if hadPrevious {
		if err := os.RemoveAll(backup); err != nil {
			zlog.Warn("failed to remove backup data directory", zap.String("backup", backup), zap.Error(err))
		}
	}

	return nil
}
