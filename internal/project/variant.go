package project

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/langservice/projectcore/internal/builder"
	"github.com/langservice/projectcore/internal/compilation"
	"github.com/langservice/projectcore/internal/core"
	"github.com/langservice/projectcore/internal/projectsvc"
	"github.com/langservice/projectcore/internal/scriptstore"
)

// TypeAcquisition mirrors the {enable, include, exclude} shape §4.4
// and §4.6 both return from getTypeAcquisition / setTypeAcquisition.
type TypeAcquisition struct {
	Enable  bool
	Include []string
	Exclude []string
}

// --- Inferred -------------------------------------------------------

// inferredState holds the fields unique to an Inferred project (§4.4).
type inferredState struct {
	configuredRootPath  string
	isJsInferredProject bool
}

var inferredNameCounter int

// NewInferredProject creates an Inferred project. configuredRootPath,
// if non-empty, is what getProjectRootPath prefers over deriving a
// directory from the first root.
func NewInferredProject(host *projectsvc.Host, engine compilation.Engine, b builder.Builder, scheduler *projectsvc.Scheduler, logger core.Logger, configuredRootPath string) *Project {
	inferredNameCounter++
	name := "/dev/null/inferredProject" + itoa(inferredNameCounter) + "*"
	p := newBase(KindInferred, name, host, engine, b, scheduler, logger)
	p.inferred = &inferredState{configuredRootPath: configuredRootPath}
	return p
}

// GetProjectRootPath implements §4.4: the configured root if one was
// supplied, else (when the service isn't pooling inferred projects)
// the directory of the first root file, else "".
func (p *Project) GetProjectRootPath() string {
	p.mu.Lock()
	defer p.mu.Unlock()

	switch p.kind {
	case KindInferred:
		if p.inferred.configuredRootPath != "" {
			return p.inferred.configuredRootPath
		}
		if p.host.Policy != nil && p.host.Policy.UseSingleInferredProject {
			return ""
		}
		if len(p.rootFiles) > 0 {
			return filepath.ToSlash(filepath.Dir(p.rootFiles[0].fileName))
		}
		return ""
	case KindExternal:
		if p.external.projectFilePath != "" {
			return filepath.ToSlash(filepath.Dir(p.external.projectFilePath))
		}
		return filepath.ToSlash(filepath.Dir(p.name))
	default:
		return filepath.ToSlash(filepath.Dir(p.configured.configFileName))
	}
}

// GetTypeAcquisition returns the Inferred/External defaulting rules of
// §4.4/§4.6.
func (p *Project) GetTypeAcquisition() TypeAcquisition {
	switch p.kind {
	case KindInferred:
		return TypeAcquisition{Enable: p.AllRootFilesAreJsOrDts(), Include: []string{}, Exclude: []string{}}
	case KindExternal:
		p.mu.Lock()
		defer p.mu.Unlock()
		return p.external.typeAcquisition
	default:
		return TypeAcquisition{}
	}
}

func (p *Project) onRootAdded(info *scriptstore.ScriptInfo) {
	switch p.kind {
	case KindInferred:
		if !p.inferred.isJsInferredProject && info.Kind().IsDynamicDialectOrDts() {
			p.inferred.isJsInferredProject = true
		}
		p.requestConfigFileWatch()
	case KindConfigured:
		// roots are driven by config reload for Configured projects;
		// nothing additional to toggle here.
	}
}

func (p *Project) onRootRemoved(info *scriptstore.ScriptInfo) {
	if p.kind != KindInferred {
		return
	}
	if !p.inferred.isJsInferredProject {
		return
	}
	for _, e := range p.rootFiles {
		if e.info != nil && e.info.Kind().IsDynamicDialectOrDts() {
			return
		}
	}
	p.inferred.isJsInferredProject = false
	p.requestConfigFileWatch()
}

// requestConfigFileWatch asks the Project Service to (re)arm a
// config-file watch over the root's containing directories, so a
// config file created later can promote this file into a configured
// project (§4.4's last bullet). The watch itself belongs to the
// Project Service, not this project, so failures are swallowed here.
func (p *Project) requestConfigFileWatch() {
	if p.host == nil || len(p.rootFiles) == 0 {
		return
	}
	dir := filepath.ToSlash(filepath.Dir(p.rootFiles[len(p.rootFiles)-1].fileName))
	_ = p.host.AddDirectoryWatcher(projectsvc.WatcherConfigFilePath, dir, func(string) {})
}

// applyFlavorCompilerOptionOverrides implements the per-flavor part of
// setCompilerOptions (§4.1, §4.4): Inferred forces allowJs and derives
// maxNodeModuleJsDepth from isJsInferredProject; the other flavors
// have no forced overrides beyond the base's allowNonTsExtensions.
func (p *Project) applyFlavorCompilerOptionOverrides(opts *core.CompilerOptions) {
	if p.kind != KindInferred {
		return
	}
	opts.AllowJs = true
	if p.inferred.isJsInferredProject {
		depth := 2
		opts.MaxNodeModuleJsDepth = &depth
	} else {
		opts.MaxNodeModuleJsDepth = nil
	}
}

// --- Configured -------------------------------------------------------

type configuredState struct {
	configFileName      string
	openRefCount        int
	pendingReload       bool
	extendedConfigFiles []string
	plugins             []PluginModule
	registry            *PluginRegistry
	pluginNames         []string
	reload              func(ctx context.Context, p *Project) error
}

// NewConfiguredProject creates a Configured project rooted at
// configFileName (§4.5). pluginNames is resolved against registry
// using the search path policy/projectRootDir imply; reload (the
// Project Service's reloadConfiguredProject, §6) is what UpdateGraph
// invokes when the latch armed by SetPendingReload is set.
func NewConfiguredProject(
	host *projectsvc.Host,
	engine compilation.Engine,
	b builder.Builder,
	scheduler *projectsvc.Scheduler,
	logger core.Logger,
	configFileName string,
	extendedConfigFiles []string,
	pluginNames []string,
	registry *PluginRegistry,
	reload func(ctx context.Context, p *Project) error,
) *Project {
	p := newBase(KindConfigured, configFileName, host, engine, b, scheduler, logger)
	p.configured = &configuredState{
		configFileName:      configFileName,
		extendedConfigFiles: extendedConfigFiles,
		pluginNames:         pluginNames,
		registry:            registry,
		reload:              reload,
	}

	if registry != nil && len(pluginNames) > 0 {
		projectRootDir := filepath.ToSlash(filepath.Dir(configFileName))
		searchPath := BuildPluginSearchPath(projectRootDir, projectRootDir, host.Policy)
		names := pluginNames
		if host.Policy != nil {
			names = append(append([]string{}, pluginNames...), host.Policy.GlobalPlugins...)
		}
		p.loadPlugins(names, registry, searchPath)
	}

	_ = p.host.AddFileWatcher(projectsvc.WatcherConfigFilePath, configFileName, func(string) {
		p.SetPendingReload()
	})
	p.watches.configFile = configFileName

	return p
}

// OpenRefCount returns how many open scripts currently reference this
// configured project (§4.5).
func (p *Project) OpenRefCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.configured.openRefCount
}

// IncrementOpenRefCount and DecrementOpenRefCount track open-script
// references; the Project Service deletes the project once the count
// reaches zero (§4.5) — that deletion is the Project Service's job,
// this method only maintains the counter.
func (p *Project) IncrementOpenRefCount() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.configured.openRefCount++
}

func (p *Project) DecrementOpenRefCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.configured.openRefCount--
	return p.configured.openRefCount
}

// SetPendingReload arms the latch UpdateGraph observes on its next
// call (§4.5), typically from the config-file watcher's callback.
func (p *Project) SetPendingReload() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.kind != KindConfigured {
		return
	}
	p.configured.pendingReload = true
	p.markDirtyLocked()
}

// AddWildcardDirectoryWatch and AddTypeRootWatch register the two
// remaining Configured-only watcher collections (§4.5), recording the
// watched path so Close tears it down in the right order.
func (p *Project) AddWildcardDirectoryWatch(dir string, onChange func(path string)) error {
	if err := p.host.AddDirectoryWatcher(projectsvc.WatcherWildcardDirectories, dir, onChange); err != nil {
		return err
	}
	p.mu.Lock()
	p.watches.wildcardDir = append(p.watches.wildcardDir, dir)
	p.mu.Unlock()
	return nil
}

func (p *Project) AddTypeRootWatch(dir string, onChange func(path string)) error {
	if err := p.host.AddDirectoryWatcher(projectsvc.WatcherTypeRoot, dir, onChange); err != nil {
		return err
	}
	p.mu.Lock()
	p.watches.typeRoot = append(p.watches.typeRoot, dir)
	p.mu.Unlock()
	return nil
}

// GetExternalFiles unions every loaded plugin's GetExternalFiles
// output (§4.5); a plugin lacking the capability is silently skipped,
// and one whose call panics is logged and skipped.
func (p *Project) GetExternalFiles() []string {
	p.mu.Lock()
	plugins := p.configured.plugins
	name := p.name
	p.mu.Unlock()
	return collectExternalFiles(plugins, name, p.logger)
}

// getExternalFilesLocked is GetExternalFiles's body for callers that
// already hold p.mu (updateGraphLocked's external-files reconciliation
// step) — it never re-acquires the lock.
func (p *Project) getExternalFilesLocked() []string {
	return collectExternalFiles(p.configured.plugins, p.name, p.logger)
}

func collectExternalFiles(plugins []PluginModule, name string, logger core.Logger) []string {
	seen := make(map[string]struct{})
	for _, mod := range plugins {
		provider, ok := mod.(ExternalFilesProvider)
		if !ok {
			continue
		}
		func() {
			defer func() {
				if r := recover(); r != nil && logger != nil {
					logger.Error("plugin getExternalFiles panicked", core.StringField("recovered", fmt.Sprint(r)))
				}
			}()
			for _, f := range provider.GetExternalFiles(name) {
				seen[f] = struct{}{}
			}
		}()
	}

	out := make([]string, 0, len(seen))
	for f := range seen {
		out = append(out, f)
	}
	return out
}

// UpdateErrorOnNoInputFiles maintains the NoInputFiles diagnostic
// (§4.5, §7): present when the project has no files and its config
// did not specify explicit `files`, absent otherwise.
func (p *Project) UpdateErrorOnNoInputFiles(hasFileNames bool, configSpecifiesFiles bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	const noInputFilesMessage = "no inputs were found in config file"
	idx := -1
	for i, e := range p.projectErrors {
		if e.Message == noInputFilesMessage {
			idx = i
			break
		}
	}

	shouldHave := !hasFileNames && !configSpecifiesFiles
	switch {
	case shouldHave && idx == -1:
		p.projectErrors = append(p.projectErrors, ProjectError{Message: noInputFilesMessage})
	case !shouldHave && idx != -1:
		p.projectErrors = append(p.projectErrors[:idx], p.projectErrors[idx+1:]...)
	}
}

// --- External -------------------------------------------------------

type externalState struct {
	projectFilePath string
	typeAcquisition TypeAcquisition
}

// NewExternalProject creates an External project (§4.6): no plugin
// loading, no wildcard or type-root watches — an external build
// system is assumed to own those.
func NewExternalProject(host *projectsvc.Host, engine compilation.Engine, b builder.Builder, scheduler *projectsvc.Scheduler, logger core.Logger, name, projectFilePath string) *Project {
	p := newBase(KindExternal, name, host, engine, b, scheduler, logger)
	p.external = &externalState{projectFilePath: projectFilePath}
	return p
}

// SetTypeAcquisition implements §4.6's defaulting: a nil acquisition
// defaults enable to allRootsAreJsOrDts, and include/exclude always
// normalise to non-nil empty slices. The caller's struct is never
// mutated — the §9 open question about cloning vs. aliasing is
// resolved in favour of cloning (see the design ledger).
func (p *Project) SetTypeAcquisition(ta *TypeAcquisition) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.kind != KindExternal {
		return
	}

	var out TypeAcquisition
	if ta == nil {
		out.Enable = p.allRootFilesAreJsOrDtsLocked()
	} else {
		out = *ta
	}
	if out.Include == nil {
		out.Include = []string{}
	}
	if out.Exclude == nil {
		out.Exclude = []string{}
	}
	p.external.typeAcquisition = out
}

func (p *Project) allRootFilesAreJsOrDtsLocked() bool {
	if len(p.rootFiles) == 0 {
		return false
	}
	for _, e := range p.rootFiles {
		if e.info == nil || !e.info.Kind().IsDynamicDialectOrDts() {
			return false
		}
	}
	return true
}
