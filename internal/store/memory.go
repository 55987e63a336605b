// Package store provides template store implementations behind the
// selector.TemplateStore interface: an in-memory snapshot store loaded from
// XML template files, and a SQLite-backed store with an LRU cache. Both are
// read-only from the pipeline's perspective; updates happen out-of-band as
// atomic snapshot swaps so a request never observes a half-updated template.
package store

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"golang.org/x/sync/errgroup"

	"promptforge/internal/instruction"
	"promptforge/internal/logging"
)

// snapshot is an immutable template set. Lookups read whichever snapshot is
// current; reloads build a fresh snapshot and swap the pointer.
type snapshot struct {
	templates map[string]instruction.Template
}

// MemoryStore serves template lookups from an atomic in-memory snapshot.
// The zero value is not usable; construct with NewMemoryStore.
type MemoryStore struct {
	current atomic.Pointer[snapshot]

	watchMu sync.Mutex
	watcher *fsnotify.Watcher
	done    chan struct{}
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	s := &MemoryStore{}
	s.current.Store(&snapshot{templates: map[string]instruction.Template{}})
	return s
}

// Lookup returns the template for an identifier. Misses are normal: the
// selector silently skips unresolvable identifiers.
func (s *MemoryStore) Lookup(id string) (instruction.Template, bool) {
	t, ok := s.current.Load().templates[id]
	return t, ok
}

// IDs returns the sorted identifiers of the current snapshot.
func (s *MemoryStore) IDs() []string {
	snap := s.current.Load()
	ids := make([]string, 0, len(snap.templates))
	for id := range snap.templates {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Replace atomically swaps in a new template set.
func (s *MemoryStore) Replace(templates []instruction.Template) {
	m := make(map[string]instruction.Template, len(templates))
	for _, t := range templates {
		m[t.ID] = t
	}
	s.current.Store(&snapshot{templates: m})
}

// LoadDirectory parses every .xml file under dir (recursively, in parallel)
// and atomically replaces the snapshot with the result. A file that fails
// to parse fails the whole load: a template set is valid as a whole or not
// at all.
func (s *MemoryStore) LoadDirectory(dir string) (int, error) {
	timer := logging.StartTimer(logging.CategoryStore, "LoadDirectory")
	defer timer.Stop()

	var paths []string
	err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if ext := strings.ToLower(filepath.Ext(path)); ext == ".xml" {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("walk template directory %s: %w", dir, err)
	}

	parsed := make([]instruction.Template, len(paths))
	var g errgroup.Group
	g.SetLimit(8)
	for i, path := range paths {
		i, path := i, path
		g.Go(func() error {
			data, err := os.ReadFile(path)
			if err != nil {
				return fmt.Errorf("read template %s: %w", path, err)
			}
			t, err := instruction.UnmarshalTemplate(data)
			if err != nil {
				return fmt.Errorf("template %s: %w", path, err)
			}
			if t.ID == "" {
				// Fall back to the path relative to the root, without extension.
				rel, relErr := filepath.Rel(dir, path)
				if relErr != nil {
					rel = filepath.Base(path)
				}
				t.ID = strings.TrimSuffix(filepath.ToSlash(rel), filepath.Ext(rel))
			}
			parsed[i] = t
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return 0, err
	}

	s.Replace(parsed)
	logging.Get(logging.CategoryStore).Infof("loaded %d templates from %s", len(parsed), dir)
	return len(parsed), nil
}

// Watch reloads the directory whenever its contents change, swapping the
// snapshot atomically. A reload that fails keeps the previous snapshot.
// Stop the watcher with Close.
func (s *MemoryStore) Watch(dir string) error {
	s.watchMu.Lock()
	defer s.watchMu.Unlock()

	if s.watcher != nil {
		return fmt.Errorf("store is already watching")
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return fmt.Errorf("watch %s: %w", dir, err)
	}

	s.watcher = watcher
	s.done = make(chan struct{})
	log := logging.Get(logging.CategoryStore)

	go func() {
		for {
			select {
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
					continue
				}
				if _, err := s.LoadDirectory(dir); err != nil {
					log.Warnf("template reload failed, keeping previous snapshot: %v", err)
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				log.Warnf("template watcher error: %v", err)
			case <-s.done:
				return
			}
		}
	}()

	return nil
}

// Close stops the watcher if one is running.
func (s *MemoryStore) Close() error {
	s.watchMu.Lock()
	defer s.watchMu.Unlock()

	if s.watcher == nil {
		return nil
	}
	close(s.done)
	err := s.watcher.Close()
	s.watcher = nil
	return err
}
