// Package projectsvc simulates the Project Service external
// collaborator (spec §6's "Consumed from the Project Service" list):
// the multi-project registry's host surface a Project calls out to —
// watcher primitives, path canonicalisation, script-info lookup, the
// typings-acquisition helper, debounced refresh scheduling and config
// reload, plus the policy flags that steer Inferred/Configured
// behaviour. Grounded on the teacher's cmd root command wiring
// (services constructed once, handed down by reference) and on
// internal/build's watcher+debounce idiom, now generalised to operate
// over many independently-scheduled projects instead of one.
package projectsvc

import (
	"context"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/langservice/projectcore/internal/core"
	"github.com/langservice/projectcore/internal/scriptstore"
	"github.com/langservice/projectcore/internal/watch"
)

// WatcherType re-exports watch.Kind under the name §6 uses for the
// host-surface watcher-type tag parameter.
type WatcherType = watch.Kind

// CloseReason re-exports watch.Reason under the name §6 uses for the
// host-surface watcher close-reason parameter.
type CloseReason = watch.Reason

const (
	WatcherFailedLookupLocation = watch.KindFailedLookupLocation
	WatcherMissingFilePath      = watch.KindMissingFilePath
	WatcherConfigFilePath       = watch.KindConfigFilePath
	WatcherWildcardDirectories  = watch.KindWildcardDirectories
	WatcherTypeRoot             = watch.KindTypeRoot
)

// TypingsCache is the typings-acquisition helper's consumed surface
// (§6: "typingsCache.getTypingsForProject"). A real implementation
// talks to a typings installer process; this one only needs to answer
// the query Project.updateGraph issues.
type TypingsCache interface {
	GetTypingsForProject(projectName string, unresolvedImports []string, hasChanges bool) []string
}

// NullTypingsCache never suggests any typing roots — the default for
// hosts that haven't wired a real typings installer.
type NullTypingsCache struct{}

func (NullTypingsCache) GetTypingsForProject(string, []string, bool) []string { return nil }

// DirectoryTypingsCache looks for "<cacheLocation>/<pkg>/index.d.ts"
// for each unresolved bare specifier's package name, via the same
// Store the Script Store exposes to projects, so tests can use an
// in-memory filesystem.
type DirectoryTypingsCache struct {
	store         *scriptstore.Store
	cacheLocation string
}

func NewDirectoryTypingsCache(store *scriptstore.Store, cacheLocation string) *DirectoryTypingsCache {
	return &DirectoryTypingsCache{store: store, cacheLocation: cacheLocation}
}

func (c *DirectoryTypingsCache) GetTypingsForProject(_ string, unresolvedImports []string, _ bool) []string {
	if c.cacheLocation == "" {
		return nil
	}
	var out []string
	for _, specifier := range unresolvedImports {
		candidate := c.cacheLocation + "/" + specifier + "/index.d.ts"
		if c.store.Exists(candidate) {
			out = append(out, candidate)
		}
	}
	sort.Strings(out)
	return out
}

// Refreshable is what delayUpdateProjectGraphAndInferredProjectsRefresh
// and reloadConfiguredProject operate on — kept minimal so this
// package can drive a project without importing the project package.
type Refreshable interface {
	Name() string
	UpdateGraph() bool
}

type Reloadable interface {
	Name() string
	Reload(ctx context.Context) error
}

// Scheduler implements delayUpdateProjectGraphAndInferredProjectsRefresh
// (§6, §5's "coalesces multiple dirty signals into one updateGraph
// call"): per-project debounce so a burst of watcher callbacks for the
// same project collapses into one pending refresh, plus a pump that
// drains whatever is ready. Distinct projects are independent single-
// threaded tasks (§5 binds ordering within one project, not across
// projects), so the pump runs ready refreshes concurrently through an
// errgroup, bounded, rather than serialising unrelated projects behind
// each other.
type Scheduler struct {
	mu      sync.Mutex
	timers  map[string]*time.Timer
	ready   map[string]Refreshable
	delay   time.Duration
	logger  core.Logger
	onAfter func(name string, structureChanged bool)
}

// NewScheduler creates a refresh scheduler with the given debounce delay.
func NewScheduler(delay time.Duration, logger core.Logger) *Scheduler {
	return &Scheduler{
		timers: make(map[string]*time.Timer),
		ready:  make(map[string]Refreshable),
		delay:  delay,
		logger: logger,
	}
}

// OnAfterRefresh registers a callback invoked after each project's
// UpdateGraph runs, reporting whether its structure changed — used by
// callers such as the CLI driver to print delta reports.
func (s *Scheduler) OnAfterRefresh(fn func(name string, structureChanged bool)) {
	s.onAfter = fn
}

// DelayUpdateProjectGraphAndInferredProjectsRefresh schedules p to be
// refreshed after the debounce delay, cancelling any refresh already
// pending for the same project name.
func (s *Scheduler) DelayUpdateProjectGraphAndInferredProjectsRefresh(p Refreshable) {
	s.mu.Lock()
	defer s.mu.Unlock()

	name := p.Name()
	if t, ok := s.timers[name]; ok {
		t.Stop()
	}
	s.timers[name] = time.AfterFunc(s.delay, func() {
		s.mu.Lock()
		s.ready[name] = p
		delete(s.timers, name)
		s.mu.Unlock()
	})
}

// RunPending drains every project whose debounce has elapsed, running
// their UpdateGraph calls concurrently (each project's own graph
// update remains internally synchronous) and returning the first
// error, if any goroutine's refresh func returns one.
func (s *Scheduler) RunPending(ctx context.Context) error {
	s.mu.Lock()
	batch := s.ready
	s.ready = make(map[string]Refreshable)
	s.mu.Unlock()

	if len(batch) == 0 {
		return nil
	}

	g, _ := errgroup.WithContext(ctx)
	g.SetLimit(8)
	for name, p := range batch {
		name, p := name, p
		g.Go(func() error {
			unchanged := p.UpdateGraph()
			if s.onAfter != nil {
				s.onAfter(name, !unchanged)
			}
			return nil
		})
	}
	return g.Wait()
}

// Pending reports the project names currently debouncing or ready,
// for tests and diagnostics.
func (s *Scheduler) Pending() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.timers)+len(s.ready))
	for n := range s.timers {
		out = append(out, n)
	}
	for n := range s.ready {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// ReloadConfiguredProject runs reloadConfiguredProject (§6, §4.5's
// pendingReload latch target) synchronously, as the spec requires:
// the reload path, not this call, is what later republishes changes.
func ReloadConfiguredProject(ctx context.Context, p Reloadable) error {
	return p.Reload(ctx)
}

// Host bundles the path-canonicalisation and script-info lookup
// surface (§6) a Project needs from the Project Service, backed by a
// single Script Store and Watcher Set pair per host process.
type Host struct {
	Store   *scriptstore.Store
	Watcher *watch.Set
	Policy  *core.PolicyConfig
	Typings TypingsCache

	GlobalTypingsCacheLocation string
}

// NewHost wires a Project Service simulation over an already-
// constructed Script Store and Watcher Set.
func NewHost(store *scriptstore.Store, watcher *watch.Set, policy *core.PolicyConfig, typings TypingsCache) *Host {
	if typings == nil {
		typings = NullTypingsCache{}
	}
	return &Host{Store: store, Watcher: watcher, Policy: policy, Typings: typings}
}

func (h *Host) ToPath(fileName string) core.Path { return h.Store.ToPath(fileName) }

func (h *Host) GetScriptInfo(fileName string) *scriptstore.ScriptInfo {
	return h.Store.GetScriptInfo(fileName)
}

func (h *Host) GetScriptInfoForPath(path core.Path) *scriptstore.ScriptInfo {
	return h.Store.GetScriptInfoForPath(path)
}

func (h *Host) GetOrCreateScriptInfo(fileName string, openedByClient bool) (*scriptstore.ScriptInfo, error) {
	return h.Store.GetOrCreateScriptInfo(fileName, openedByClient)
}

// AddFileWatcher implements §6's addFileWatcher for a single file.
func (h *Host) AddFileWatcher(kind WatcherType, path string, onChange watch.ChangeHandler) error {
	return h.Watcher.WatchFile(path, kind, onChange)
}

// AddDirectoryWatcher implements §6's directory-watcher variant.
func (h *Host) AddDirectoryWatcher(kind WatcherType, path string, onChange watch.ChangeHandler) error {
	return h.Watcher.WatchDirectory(path, kind, onChange)
}

// CloseFileWatcher implements §6's closeFileWatcher (and its
// directory-watcher variant; both paths share one Watcher Set keyed
// by path so there is nothing kind-specific to dispatch on here).
func (h *Host) CloseFileWatcher(path string, reason CloseReason) {
	h.Watcher.Close(path, reason)
}

func (h *Host) GetTypingsForProject(projectName string, unresolvedImports []string, hasChanges bool) []string {
	return h.Typings.GetTypingsForProject(projectName, unresolvedImports, hasChanges)
}
