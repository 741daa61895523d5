package mountvfs

import (
	"context"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// WatchHandle identifies one watch registration.
type WatchHandle uint64

// Watcher registers real directories for change notification.
type Watcher interface {
	Register(realPath string) (WatchHandle, error)
	Unregister(h WatchHandle) error
}

// RecursiveWatcher is implemented by watchers whose registrations cover
// whole subtrees. Subdirectories of a registered path are then not
// registered again.
type RecursiveWatcher interface {
	Watcher
	Recursive() bool
}

// registerWatch registers realPath with the configured watcher once.
// Failures are logged and otherwise ignored.
func (v *VFS) registerWatch(realPath string) {
	if v.watcher == nil {
		return
	}
	v.watchMu.Lock()
	defer v.watchMu.Unlock()

	if _, ok := v.watches[realPath]; ok {
		return
	}
	if rw, ok := v.watcher.(RecursiveWatcher); ok && rw.Recursive() {
		for watched := range v.watches {
			if _, inside := v.backend.Rel(watched, realPath); inside {
				return
			}
		}
	}
	h, err := v.watcher.Register(realPath)
	if err != nil {
		v.log.WithField("real_path", realPath).WithError(err).Warn("cannot watch directory")
		return
	}
	v.watches[realPath] = h
	v.log.WithField("real_path", realPath).Debug("watching directory")
}

func (v *VFS) unregisterAllWatches() {
	if v.watcher == nil {
		return
	}
	v.watchMu.Lock()
	defer v.watchMu.Unlock()

	for realPath, h := range v.watches {
		if err := v.watcher.Unregister(h); err != nil {
			v.log.WithField("real_path", realPath).WithError(err).Warn("cannot unwatch directory")
		}
	}
	v.watches = make(map[string]WatchHandle)
}

// NotifyWatcher watches host directories through fsnotify. Registrations
// are not recursive; the VFS registers every watched subdirectory as it
// is populated.
type NotifyWatcher struct {
	w   *fsnotify.Watcher
	log logrus.FieldLogger

	mu    sync.Mutex
	next  WatchHandle
	paths map[WatchHandle]string
}

var _ Watcher = (*NotifyWatcher)(nil)

// NewNotifyWatcher starts an fsnotify watcher. Close releases it.
func NewNotifyWatcher(log logrus.FieldLogger) (*NotifyWatcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, errors.Wrap(err, "start fsnotify watcher")
	}
	if log == nil {
		log = defaultLogger()
	}
	return &NotifyWatcher{w: w, log: log, paths: make(map[WatchHandle]string)}, nil
}

func (n *NotifyWatcher) Register(realPath string) (WatchHandle, error) {
	if err := n.w.Add(realPath); err != nil {
		return 0, classifyIOError(err, "watch %s", realPath)
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	n.next++
	n.paths[n.next] = realPath
	return n.next, nil
}

func (n *NotifyWatcher) Unregister(h WatchHandle) error {
	n.mu.Lock()
	realPath, ok := n.paths[h]
	delete(n.paths, h)
	n.mu.Unlock()
	if !ok {
		return errors.Errorf("unknown watch handle %d", h)
	}
	if err := n.w.Remove(realPath); err != nil {
		return classifyIOError(err, "unwatch %s", realPath)
	}
	return nil
}

// Run delivers the paths of created, written, removed and renamed entries
// to fn until ctx is done or the watcher is closed. VFS.HandleChange is
// the usual fn.
func (n *NotifyWatcher) Run(ctx context.Context, fn func(realPath string)) error {
	const changes = fsnotify.Create | fsnotify.Write | fsnotify.Remove | fsnotify.Rename
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-n.w.Events:
			if !ok {
				return nil
			}
			if ev.Op&changes == 0 {
				continue
			}
			n.log.WithFields(logrus.Fields{
				"real_path": ev.Name,
				"op":        ev.Op.String(),
			}).Debug("change event")
			fn(ev.Name)
		case err, ok := <-n.w.Errors:
			if !ok {
				return nil
			}
			n.log.WithError(err).Warn("watcher error")
		}
	}
}

// Close stops the watcher. A running Run returns.
func (n *NotifyWatcher) Close() error {
	return n.w.Close()
}
