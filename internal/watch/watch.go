// Package watch implements the Watcher Set (spec §2 item 3): the
// collection of filesystem watches the projects on one host hold, grouped by what
// each watch exists to detect (a failed lookup location reappearing,
// a missing root appearing, a config file changing, wildcard directory
// contents changing, a type root changing). Grounded on the teacher's
// internal/build.FileWatcher debounce loop, generalised from a single
// project-rooted watcher with a fixed extension allowlist to a set of
// independently-closeable watch entries tagged by kind and carrying a
// typed close reason.
package watch

import (
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/sourcegraph/conc"
	"go.uber.org/multierr"

	"github.com/langservice/projectcore/internal/core"
)

// Kind tags why a particular path is being watched (§6's watcher-type
// vocabulary: FailedLookupLocation, MissingFilePath, ConfigFilePath,
// WildcardDirectories, TypeRoot).
type Kind int

const (
	KindFailedLookupLocation Kind = iota
	KindMissingFilePath
	KindConfigFilePath
	KindWildcardDirectories
	KindTypeRoot
)

func (k Kind) String() string {
	switch k {
	case KindFailedLookupLocation:
		return "failedLookupLocation"
	case KindMissingFilePath:
		return "missingFilePath"
	case KindConfigFilePath:
		return "configFilePath"
	case KindWildcardDirectories:
		return "wildcardDirectories"
	case KindTypeRoot:
		return "typeRoot"
	default:
		return "unknown"
	}
}

// Reason is why a watch entry is being closed (§5: watcher callbacks
// always carry a typed reason rather than a free-form string).
type Reason int

const (
	ReasonProjectClose Reason = iota
	ReasonNotNeeded
	ReasonFileCreated
	ReasonRecursiveChanged
)

func (r Reason) String() string {
	switch r {
	case ReasonProjectClose:
		return "projectClose"
	case ReasonNotNeeded:
		return "notNeeded"
	case ReasonFileCreated:
		return "fileCreated"
	case ReasonRecursiveChanged:
		return "recursiveChanged"
	default:
		return "unknown"
	}
}

// ChangeHandler is invoked when a watched path changes, once per
// debounced burst of events for that path. It runs on the goroutine of
// that path's debounce timer, not on the event-processing goroutine:
// handlers are not serialised with one another, and handlers for
// different paths can run concurrently.
type ChangeHandler func(path string)

// CloseHandler is invoked when a watch entry is torn down, carrying
// the typed reason it was closed for.
type CloseHandler func(path string, reason Reason)

type entry struct {
	kind     Kind
	dir      bool
	onChange ChangeHandler
}

// Set is the Watcher Set shared by the projects on one host: every
// fsnotify watch they currently hold, keyed by path, with debounced
// delivery so a burst of filesystem events collapses into one
// callback per path (§5: "coalesced, debounced refresh").
type Set struct {
	logger        core.Logger
	fsWatcher     *fsnotify.Watcher
	debounceDelay time.Duration

	mu      sync.Mutex
	entries map[string]*entry

	debounceMu  sync.Mutex
	debounceMap map[string]*time.Timer

	onClose CloseHandler

	wg       conc.WaitGroup
	stopOnce sync.Once
	stopCh   chan struct{}
}

// NewSet creates an empty Watcher Set and starts its event-processing
// goroutine. The goroutine runs inside a sourcegraph/conc WaitGroup, so
// a panic in the event loop itself is re-raised from Stop's Wait rather
// than crashing the process from a stray goroutine. A panic raised
// inside a ChangeHandler is recovered and logged by fire.
func NewSet(logger core.Logger, debounceDelay time.Duration, onClose CloseHandler) (*Set, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("watch: create fsnotify watcher: %w", err)
	}

	s := &Set{
		logger:        logger,
		fsWatcher:     fw,
		debounceDelay: debounceDelay,
		entries:       make(map[string]*entry),
		debounceMap:   make(map[string]*time.Timer),
		onClose:       onClose,
		stopCh:        make(chan struct{}),
	}

	s.wg.Go(s.processEvents)
	return s, nil
}

// WatchFile adds a single-file watch of the given kind.
func (s *Set) WatchFile(path string, kind Kind, onChange ChangeHandler) error {
	return s.add(path, kind, false, onChange)
}

// WatchDirectory adds a (non-recursive, per fsnotify's OS-level
// semantics) directory watch of the given kind — used for
// WildcardDirectories and for the containing directory of a
// MissingFilePath entry so its creation is observable.
func (s *Set) WatchDirectory(path string, kind Kind, onChange ChangeHandler) error {
	return s.add(path, kind, true, onChange)
}

func (s *Set) add(path string, kind Kind, dir bool, onChange ChangeHandler) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.entries[path]; exists {
		s.entries[path] = &entry{kind: kind, dir: dir, onChange: onChange}
		return nil
	}

	if err := s.fsWatcher.Add(path); err != nil {
		return fmt.Errorf("watch: add %s: %w", path, err)
	}
	s.entries[path] = &entry{kind: kind, dir: dir, onChange: onChange}
	return nil
}

// Close tears down a single watch entry for the given reason, returning
// any error fsnotify raised removing the underlying watch (the entry
// and its debounce timer are still torn down regardless).
func (s *Set) Close(path string, reason Reason) error {
	s.mu.Lock()
	_, ok := s.entries[path]
	if ok {
		delete(s.entries, path)
	}
	s.mu.Unlock()
	if !ok {
		return nil
	}

	err := s.fsWatcher.Remove(path)
	if err != nil && s.logger != nil {
		s.logger.Debug("watch: remove failed", core.StringField("path", path), core.ErrorField(err))
	}

	s.debounceMu.Lock()
	if t, exists := s.debounceMap[path]; exists {
		t.Stop()
		delete(s.debounceMap, path)
	}
	s.debounceMu.Unlock()

	if s.onClose != nil {
		s.onClose(path, reason)
	}
	return err
}

// CloseAll tears down every watch entry in the set, reporting reason
// for each to the CloseHandler. The errors
// fsnotify raised removing each individual watch are combined into one
// via multierr rather than dropping all but the last.
func (s *Set) CloseAll(reason Reason) error {
	s.mu.Lock()
	paths := make([]string, 0, len(s.entries))
	for p := range s.entries {
		paths = append(paths, p)
	}
	s.mu.Unlock()

	var err error
	for _, p := range paths {
		err = multierr.Append(err, s.Close(p, reason))
	}
	return err
}

// Stop shuts down the Watcher Set's event loop entirely, combining any
// error from the underlying fsnotify watcher's own Close.
func (s *Set) Stop() error {
	var err error
	s.stopOnce.Do(func() {
		close(s.stopCh)
		err = s.fsWatcher.Close()
	})
	s.wg.Wait()
	return err
}

func (s *Set) processEvents() {
	for {
		select {
		case ev, ok := <-s.fsWatcher.Events:
			if !ok {
				return
			}
			s.debounce(ev.Name)
		case err, ok := <-s.fsWatcher.Errors:
			if !ok {
				return
			}
			if s.logger != nil {
				s.logger.Warn("watch: fsnotify error", core.ErrorField(err))
			}
		case <-s.stopCh:
			return
		}
	}
}

func (s *Set) debounce(path string) {
	s.debounceMu.Lock()
	defer s.debounceMu.Unlock()

	if t, exists := s.debounceMap[path]; exists {
		t.Stop()
	}
	s.debounceMap[path] = time.AfterFunc(s.debounceDelay, func() {
		s.fire(path)
		s.debounceMu.Lock()
		delete(s.debounceMap, path)
		s.debounceMu.Unlock()
	})
}

// resolveEntryLocked finds the entry a raw fsnotify event path belongs
// to: an exact match for a file watch, or — since fsnotify reports a
// directory watch's events under the changed child's own path, never
// the directory's — the entry for the event's parent directory when
// that parent is itself watched as a directory. Caller must hold s.mu.
func (s *Set) resolveEntryLocked(path string) (*entry, bool) {
	if e, ok := s.entries[path]; ok {
		return e, true
	}
	if e, ok := s.entries[filepath.Dir(path)]; ok && e.dir {
		return e, true
	}
	return nil, false
}

func (s *Set) fire(path string) {
	s.mu.Lock()
	e, ok := s.resolveEntryLocked(path)
	s.mu.Unlock()
	if !ok || e.onChange == nil {
		return
	}

	defer func() {
		if r := recover(); r != nil && s.logger != nil {
			s.logger.Error("watch: change handler panicked",
				core.StringField("path", path), core.StringField("recovered", fmt.Sprint(r)))
		}
	}()
	e.onChange(path)
}

// Paths returns every currently-watched path, for diagnostics and tests.
func (s *Set) Paths() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.entries))
	for p := range s.entries {
		out = append(out, p)
	}
	return out
}

// KindOf returns the Kind a path is watched as, and whether it's watched at all.
func (s *Set) KindOf(path string) (Kind, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[path]
	if !ok {
		return 0, false
	}
	return e.kind, true
}
