package secretstore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// File reads the credential from a file and keeps it cached until the file
// changes on disk. Rotating the file therefore takes effect without a restart.
type File struct {
	path  string
	field string

	watcher *fsnotify.Watcher
	done    chan struct{}
	wg      sync.WaitGroup

	readFile func(string) ([]byte, error)

	mu     sync.RWMutex
	cached string
	// generation advances on every invalidation so a read racing a change
	// does not repopulate the cache with the old value.
	generation uint64
}

// NewFile watches path's directory so atomic renames are observed too.
func NewFile(path, field string) (*File, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve secret path: %w", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create secret file watcher: %w", err)
	}
	if err := watcher.Add(filepath.Dir(absPath)); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("watch secret directory: %w", err)
	}

	f := &File{
		path:     absPath,
		field:    field,
		readFile: os.ReadFile,
		watcher:  watcher,
		done:     make(chan struct{}),
	}
	f.wg.Add(1)
	go f.watch()
	return f, nil
}

func (f *File) OperatorCredential(ctx context.Context) (string, error) {
	f.mu.RLock()
	cached, gen := f.cached, f.generation
	f.mu.RUnlock()
	if cached != "" {
		return cached, nil
	}

	data, err := f.readFile(f.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", fmt.Errorf("%w: %s does not exist", ErrSecretNotFound, f.path)
		}
		return "", fmt.Errorf("read secret file: %w", err)
	}

	value, err := parseSecret(string(data), f.field)
	if err != nil {
		return "", err
	}

	f.mu.Lock()
	if f.generation == gen {
		f.cached = value
	}
	f.mu.Unlock()
	return value, nil
}

// Close stops the watcher.
func (f *File) Close() error {
	select {
	case <-f.done:
		return nil
	default:
	}
	close(f.done)
	err := f.watcher.Close()
	f.wg.Wait()
	return err
}

func (f *File) watch() {
	defer f.wg.Done()
	for {
		select {
		case <-f.done:
			return
		case event, ok := <-f.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != f.path {
				continue
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) ||
				event.Has(fsnotify.Rename) || event.Has(fsnotify.Remove) {
				f.invalidate()
				slog.Info("operator secret file changed", "path", f.path, "op", event.Op.String())
			}
		case err, ok := <-f.watcher.Errors:
			if !ok {
				return
			}
			// Cache may be stale if events were dropped.
			f.invalidate()
			slog.Warn("operator secret watcher error", "error", err)
		}
	}
}

func (f *File) invalidate() {
	f.mu.Lock()
	f.cached = ""
	f.generation++
	f.mu.Unlock()
}
