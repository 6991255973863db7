package artifacts

import (
	"context"
	"path/filepath"

	"github.com/fsnotify/fsnotify"

	"github.com/Papyszoo/ImmichVR-sub001/internal/logger"
	"github.com/Papyszoo/ImmichVR-sub001/pkg/store/models"
)

// Watcher observes the artifact root for out-of-band file deletions and
// drops the matching database rows, so a user removing files by hand does
// not leave the catalog claiming artifacts that no longer exist.
type Watcher struct {
	store   *Store
	watcher *fsnotify.Watcher
	done    chan struct{}
}

// NewWatcher starts watching the store's artifact root. Close stops it.
func NewWatcher(s *Store) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fw.Add(s.Root()); err != nil {
		fw.Close()
		return nil, err
	}

	w := &Watcher{store: s, watcher: fw, done: make(chan struct{})}
	go w.run()
	return w, nil
}

func (w *Watcher) run() {
	defer close(w.done)
	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Remove|fsnotify.Rename) != 0 {
				w.handleRemoved(event.Name)
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			logger.Warn("Artifact watcher error", "error", err)
		}
	}
}

// handleRemoved drops any artifact row pointing at the removed path. Temp
// files from in-flight Puts are renamed away and produce no matching row.
func (w *Watcher) handleRemoved(path string) {
	if filepath.Dir(path) != w.store.Root() {
		return
	}
	ctx := context.Background()
	var stale []*models.Artifact
	if err := w.store.db.DB().WithContext(ctx).
		Where("file_path = ?", path).Find(&stale).Error; err != nil {
		logger.Warn("Failed to look up artifact rows for removed file", "path", path, "error", err)
		return
	}
	for _, artifact := range stale {
		logger.Info("Artifact file removed out-of-band, dropping row",
			"artifact_id", artifact.ID,
			"path", path,
		)
		if err := w.store.db.DeleteArtifact(ctx, artifact.ID); err != nil {
			logger.Error("Failed to delete artifact row", "artifact_id", artifact.ID, "error", err)
		}
	}
}

// Close stops the watcher and waits for the event loop to drain.
func (w *Watcher) Close() error {
	err := w.watcher.Close()
	<-w.done
	return err
}
