package file

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"

	"github.com/omalloc/courier/contrib/config"
)

var _ config.Source = (*source)(nil)
var _ config.Watchable = (*source)(nil)

type source struct {
	path    string
	watcher *fsnotify.Watcher
}

// NewSource reads one config file; the format is taken from the extension.
func NewSource(path string) config.Source {
	return &source{path: path}
}

func (s *source) Load() ([]*config.KeyValue, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, err
	}

	return []*config.KeyValue{{
		Key:    s.path,
		Value:  data,
		Format: format(s.path),
	}}, nil
}

// Watch signals when the file is written or replaced. Editors and config
// management tools tend to rename over the file, so the parent directory
// is watched and events are filtered by name.
func (s *source) Watch() (<-chan struct{}, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := watcher.Add(filepath.Dir(s.path)); err != nil {
		_ = watcher.Close()
		return nil, err
	}
	s.watcher = watcher

	ch := make(chan struct{}, 1)
	go func() {
		defer close(ch)
		for {
			select {
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != filepath.Clean(s.path) {
					continue
				}
				if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
					continue
				}
				select {
				case ch <- struct{}{}:
				default:
				}
			case _, ok := <-watcher.Errors:
				if !ok {
					return
				}
			}
		}
	}()
	return ch, nil
}

func (s *source) Stop() {
	if s.watcher != nil {
		_ = s.watcher.Close()
	}
}

func format(path string) string {
	ext := strings.TrimPrefix(filepath.Ext(path), ".")
	if ext == "" {
		return "yaml"
	}
	return ext
}
