// Package blocks reads facet widget block instances from a file and
// extracts the meta fields they facet on.
package blocks

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// FacetBlockName marks block content that renders a meta facet.
const FacetBlockName = "elasticpress/facet-meta"

var facetAttr = regexp.MustCompile(`"facet":"(.*?)"`)

// Source serves the meta fields of the facet blocks stored in a YAML or
// JSON file. The file maps instance ids to objects with a content string;
// other entries are ignored. Safe for concurrent use; the field list is
// swapped atomically on reload.
type Source struct {
	path   string
	logger *zap.Logger

	fields atomic.Pointer[[]string]
	loaded atomic.Bool

	mu        sync.Mutex
	watcher   *fsnotify.Watcher
	watchDone chan struct{}
}

// New creates a source for path. Nothing is read until the first call.
func New(path string, logger *zap.Logger) *Source {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Source{path: path, logger: logger}
}

// MetaFields returns the meta keys of all facet blocks in instance order.
// A missing file yields no fields.
func (s *Source) MetaFields(_ context.Context) ([]string, error) {
	if !s.loaded.Load() {
		if err := s.Load(); err != nil {
			return nil, err
		}
	}
	p := s.fields.Load()
	if p == nil {
		return []string{}, nil
	}
	return append([]string{}, (*p)...), nil
}

// Load reads and parses the file, replacing the current field list.
func (s *Source) Load() error {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		empty := []string{}
		s.fields.Store(&empty)
		s.loaded.Store(true)
		return nil
	}
	if err != nil {
		return fmt.Errorf("read blocks file: %w", err)
	}

	var instances yaml.Node
	if err := yaml.Unmarshal(data, &instances); err != nil {
		return fmt.Errorf("parse blocks file %q: %w", s.path, err)
	}
	fields := extract(&instances)
	s.fields.Store(&fields)
	s.loaded.Store(true)
	return nil
}

// extract walks the top-level mapping in document order so fields keep
// the order of their instances.
func extract(doc *yaml.Node) []string {
	fields := []string{}
	root := doc
	if root.Kind == yaml.DocumentNode && len(root.Content) > 0 {
		root = root.Content[0]
	}
	if root.Kind != yaml.MappingNode {
		return fields
	}
	for i := 1; i < len(root.Content); i += 2 {
		var instance struct {
			Content string `yaml:"content"`
		}
		if err := root.Content[i].Decode(&instance); err != nil {
			continue
		}
		fields = append(fields, FieldsIn(instance.Content)...)
	}
	return fields
}

// FieldsIn returns the facet attributes of content when it holds a meta
// facet block.
func FieldsIn(content string) []string {
	if !strings.Contains(content, FacetBlockName) {
		return nil
	}
	var out []string
	for _, m := range facetAttr.FindAllStringSubmatch(content, -1) {
		out = append(out, m[1])
	}
	return out
}

// Watch reloads the file whenever it changes. The parent directory is
// watched so atomic replace-by-rename is seen. Calling Watch again
// replaces the previous watch.
func (s *Source) Watch() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.stopWatchLocked()

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	if err := w.Add(filepath.Dir(s.path)); err != nil {
		_ = w.Close()
		return fmt.Errorf("watch %q: %w", s.path, err)
	}

	s.watcher = w
	s.watchDone = make(chan struct{})
	go s.watchLoop(w, s.watchDone)
	return nil
}

func (s *Source) watchLoop(w *fsnotify.Watcher, done chan struct{}) {
	defer close(done)
	target := filepath.Clean(s.path)
	for {
		select {
		case ev, ok := <-w.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != target {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			if err := s.Load(); err != nil {
				s.logger.Warn("Failed to reload facet blocks", zap.String("path", s.path), zap.Error(err))
				continue
			}
			s.logger.Debug("Reloaded facet blocks", zap.String("path", s.path))
		case err, ok := <-w.Errors:
			if !ok {
				return
			}
			s.logger.Warn("Facet blocks watcher error", zap.Error(err))
		}
	}
}

func (s *Source) stopWatchLocked() {
	if s.watcher != nil {
		_ = s.watcher.Close()
		<-s.watchDone
		s.watcher = nil
		s.watchDone = nil
	}
}

// Close stops watching.
func (s *Source) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopWatchLocked()
}
