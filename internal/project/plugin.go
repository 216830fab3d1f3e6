package project

import (
	"fmt"
	"sync"

	"github.com/langservice/projectcore/internal/core"
)

// LanguageService is the opaque value plugins wrap (§6's compiler
// front-end is a black box from this package's point of view; all it
// knows is that a plugin's create() takes one value and returns one
// of the same shape).
type LanguageService interface{}

// originalLanguageService marks the unwrapped baseline every Configured
// project starts from before any plugin runs (§4.5, §8 scenario 6).
type originalLanguageService struct{}

// PluginCreateInfo is the "handle to the surrounding namespace" §4.5
// hands each plugin factory.
type PluginCreateInfo struct {
	LanguageService LanguageService
	Project         *Project
}

// PluginModule is what a resolved plugin factory returns: something
// able to wrap a language service.
type PluginModule interface {
	Create(info PluginCreateInfo) LanguageService
}

// ExternalFilesProvider is the optional capability a PluginModule may
// additionally implement, unioned by getExternalFiles (§4.5).
type ExternalFilesProvider interface {
	GetExternalFiles(projectName string) []string
}

// PluginFactory constructs a fresh PluginModule instance; registered
// under a name so Configured projects can resolve the plugin lists
// their config files name without this package depending on any
// particular dynamic-loading mechanism (real plugin code is trusted
// in-process, per §1's Non-goals).
type PluginFactory func() PluginModule

// PluginRegistry is the process-wide table of known plugin factories,
// standing in for §4.5's module resolution over package root / probe
// locations / config directory: those paths are recorded for logging
// context, but resolution itself is a name lookup since plugins here
// are trusted in-process code, not files loaded off disk.
type PluginRegistry struct {
	mu        sync.Mutex
	factories map[string]PluginFactory
}

func NewPluginRegistry() *PluginRegistry {
	return &PluginRegistry{factories: make(map[string]PluginFactory)}
}

func (r *PluginRegistry) Register(name string, factory PluginFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[name] = factory
}

// Resolve looks up name, reporting PluginResolutionFailure (§7) as a
// plain error for the caller to log and skip. searchPath is accepted
// for parity with §4.5's search-path contract and included in the
// error for diagnostics.
func (r *PluginRegistry) Resolve(name string, searchPath []string) (PluginModule, error) {
	r.mu.Lock()
	factory, ok := r.factories[name]
	r.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("plugin %q not found in search path %v", name, searchPath)
	}
	return factory(), nil
}

// BuildPluginSearchPath assembles §4.5's search-path list: the config
// file's own directory prepended only when the Project Service allows
// local plugin loads, then the project's own root directory, then the
// Project Service's global probe locations.
func BuildPluginSearchPath(projectRootDir, configDir string, policy *core.PolicyConfig) []string {
	var path []string
	if policy != nil && policy.AllowLocalPluginLoads && configDir != "" {
		path = append(path, configDir)
	}
	path = append(path, projectRootDir)
	if policy != nil {
		path = append(path, policy.PluginProbeLocations...)
	}
	return path
}

// loadPlugins runs each named plugin's factory in load order, wrapping
// the language service one plugin at a time (§4.5). A plugin whose
// Create panics is caught and skipped: the next plugin still wraps
// whatever the last successfully-loaded plugin produced (or the
// original service, if none has succeeded yet) — §8 scenario 6.
func (p *Project) loadPlugins(names []string, registry *PluginRegistry, searchPath []string) {
	current := p.languageService
	var loaded []PluginModule

	for _, name := range names {
		mod, err := registry.Resolve(name, searchPath)
		if err != nil {
			if p.logger != nil {
				p.logger.Warn("plugin resolution failed", core.StringField("plugin", name), core.ErrorField(err))
			}
			continue
		}

		wrapped, ok := activatePlugin(mod, PluginCreateInfo{LanguageService: current, Project: p}, p.logger, name)
		if !ok {
			continue
		}
		current = wrapped
		loaded = append(loaded, mod)
	}

	p.languageService = current
	if p.kind == KindConfigured {
		p.configured.plugins = loaded
	}
}

func activatePlugin(mod PluginModule, info PluginCreateInfo, logger core.Logger, name string) (ls LanguageService, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			if logger != nil {
				logger.Error("plugin activation panicked", core.StringField("plugin", name), core.StringField("recovered", fmt.Sprint(r)))
			}
			ok = false
		}
	}()
	return mod.Create(info), true
}
