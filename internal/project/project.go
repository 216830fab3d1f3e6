// Package project implements the Project abstraction (spec §4.1,
// §4.4-§4.6, §9): the state machine that ties the Unresolved-Imports
// Index, Resolution Cache Adapter, Watcher Set, Incremental Builder
// Adapter and Project Service host together, specialised into
// Inferred, Configured and External flavors via a kind tag rather than
// a class hierarchy (§9's "tagged variant + shared behavior").
//
// Grounded on the teacher's internal/project.Project as the thing a
// build pipeline revolves around structurally (one state machine with
// a root file set and a dirty/rebuild cycle), generalised from "one
// JML page tree" to "one compilation's root/program/version state",
// and on internal/build's dep_graph.go for the general shape of a
// mutable, path-keyed graph with forward/reverse indices.
package project

import (
	"path/filepath"
	"sync"

	"github.com/langservice/projectcore/internal/builder"
	"github.com/langservice/projectcore/internal/compilation"
	"github.com/langservice/projectcore/internal/core"
	"github.com/langservice/projectcore/internal/projectsvc"
	"github.com/langservice/projectcore/internal/resolution"
	"github.com/langservice/projectcore/internal/scriptstore"
	"github.com/langservice/projectcore/internal/unresolvedimports"
	"github.com/langservice/projectcore/internal/watch"
)

// Kind tags which of the three flavors (§9) a Project is.
type Kind int

const (
	KindInferred Kind = iota
	KindConfigured
	KindExternal
)

func (k Kind) String() string {
	switch k {
	case KindInferred:
		return "inferred"
	case KindConfigured:
		return "configured"
	case KindExternal:
		return "external"
	default:
		return "unknown"
	}
}

// rootEntry is one row of the root table (spec §3). missing is true
// for a placeholder inserted by AddMissingFileRoot: the file does not
// yet exist on disk, so info is nil until it is created and promoted.
type rootEntry struct {
	info     *scriptstore.ScriptInfo
	fileName string
	missing  bool
}

// ProjectError is one entry of the project-wide diagnostics list
// (§7's NoInputFiles, surfaced through getGlobalProjectErrors).
type ProjectError struct {
	Message  string
	FileName string // empty for a project-wide (no single-file) diagnostic
}

// watchedPaths groups a project's own watch-set keys by the category
// §5's close ordering names, so Close can tear them down in that
// order without touching another project's watches on the same
// shared Watcher Set.
type watchedPaths struct {
	missingFile  []string
	typeRoot     []string
	wildcardDir  []string
	configFile   string
}

// Project is the shared state machine (§4.1) every flavor specialises.
type Project struct {
	mu sync.Mutex

	kind   Kind
	name   string
	logger core.Logger

	host      *projectsvc.Host
	engine    compilation.Engine
	resCache  *resolution.Cache
	build     builder.Builder
	scheduler *projectsvc.Scheduler

	compilerOptions        *core.CompilerOptions
	languageServiceEnabled bool
	compileOnSaveEnabled   bool

	projectStateVersion     int
	projectStructureVersion int

	rootFiles    []*rootEntry
	rootFilesMap map[core.Path]*rootEntry

	unresolvedImports *unresolvedimports.Index
	cachedPerFile     map[core.Path][]string
	lastUnresolved    []string

	missingFilesMap map[core.Path]string // path -> watched directory
	watches         watchedPaths

	externalFiles []string
	typingFiles   []string

	program *compilation.Program
	dirty   bool

	lastReportedFileNames []string
	lastReportedVersion   int
	updatedFileNames      map[string]struct{}

	projectErrors []ProjectError

	languageService LanguageService

	closed bool

	inferred   *inferredState
	configured *configuredState
	external   *externalState
}

// newBase wires the collaborators shared by every flavor. Flavor
// constructors (NewInferredProject etc.) fill in the variant payload.
func newBase(kind Kind, name string, host *projectsvc.Host, engine compilation.Engine, b builder.Builder, scheduler *projectsvc.Scheduler, logger core.Logger) *Project {
	p := &Project{
		kind:                   kind,
		name:                   name,
		logger:                 logger,
		host:                   host,
		engine:                 engine,
		resCache:               resolution.NewCache(),
		build:                  b,
		scheduler:              scheduler,
		languageServiceEnabled: true,
		rootFilesMap:           make(map[core.Path]*rootEntry),
		unresolvedImports:      unresolvedimports.NewIndex(),
		cachedPerFile:          make(map[core.Path][]string),
		missingFilesMap:        make(map[core.Path]string),
		updatedFileNames:       make(map[string]struct{}),
		languageService:        &originalLanguageService{},
	}
	return p
}

func (p *Project) Name() string { return p.name }
func (p *Project) Kind() Kind   { return p.kind }

func (p *Project) IsClosed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

func (p *Project) markDirtyLocked() {
	p.projectStateVersion++
	p.dirty = true
}

// AddRoot appends info to the root table (§4.1). Adding a root already
// present trips the assertion §7 names for this precondition.
func (p *Project) AddRoot(info *scriptstore.ScriptInfo) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return core.ErrProjectClosed
	}

	path := info.Path()
	if _, exists := p.rootFilesMap[path]; exists {
		panic("project: addRoot called for a file that is already a root: " + string(path))
	}

	entry := &rootEntry{info: info, fileName: info.FileName()}
	p.rootFiles = append(p.rootFiles, entry)
	p.rootFilesMap[path] = entry
	p.host.Store.Attach(info, p.name)

	p.onRootAdded(info)
	p.markDirtyLocked()
	return nil
}

// AddMissingFileRoot inserts a placeholder root for a configured
// project's listed-but-absent file (§4.1).
func (p *Project) AddMissingFileRoot(fileName string) (core.Path, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return "", core.ErrProjectClosed
	}

	path := p.host.ToPath(fileName)
	if _, exists := p.rootFilesMap[path]; exists {
		panic("project: addMissingFileRoot called for a file that is already a root: " + string(path))
	}

	entry := &rootEntry{fileName: fileName, missing: true}
	p.rootFiles = append(p.rootFiles, entry)
	p.rootFilesMap[path] = entry
	p.markDirtyLocked()
	return path, nil
}

// RemoveFile drops info from the root table if it is one, invalidates
// its resolution and unresolved-imports cache entries, and optionally
// detaches it from the Script Store (§4.1).
func (p *Project) RemoveFile(info *scriptstore.ScriptInfo, detach bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return core.ErrProjectClosed
	}

	path := info.Path()
	if entry, ok := p.rootFilesMap[path]; ok {
		delete(p.rootFilesMap, path)
		for i, e := range p.rootFiles {
			if e == entry {
				p.rootFiles = append(p.rootFiles[:i], p.rootFiles[i+1:]...)
				break
			}
		}
		p.onRootRemoved(info)
	}

	p.resCache.Invalidate(path)
	p.unresolvedImports.Delete(path)
	delete(p.cachedPerFile, path)

	if detach {
		p.host.Store.Detach(info, p.name)
	}

	p.markDirtyLocked()
	return nil
}

// SetCompilerOptions clones and installs new options, clearing the
// unresolved-imports index and resolution cache when the change
// affects module resolution, then always forcing allowNonTsExtensions
// and applying flavor-specific overrides (§4.1).
func (p *Project) SetCompilerOptions(options *core.CompilerOptions) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return core.ErrProjectClosed
	}

	newOpts := options.Clone()
	if p.compilerOptions != nil && p.compilerOptions.AffectsModuleResolution(newOpts) {
		p.unresolvedImports.Clear()
		p.cachedPerFile = make(map[core.Path][]string)
		p.resCache.Clear()
	}
	newOpts.AllowNonTsExtensions = true

	p.applyFlavorCompilerOptionOverrides(newOpts)

	p.compilerOptions = newOpts
	p.markDirtyLocked()
	return nil
}

func (p *Project) CompilerOptions() *core.CompilerOptions {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.compilerOptions
}

// GetCompileOnSaveAffectedFileList delegates to the builder, returning
// nil when the language service is disabled (§4.1).
func (p *Project) GetCompileOnSaveAffectedFileList(path core.Path) []string {
	p.mu.Lock()
	enabled := p.languageServiceEnabled
	b := p.build
	p.mu.Unlock()
	if !enabled || b == nil {
		return nil
	}
	return b.GetCompileOnSaveAffectedFileList(path)
}

// EmitFile delegates to the builder, returning false when emit was
// skipped (§4.1).
func (p *Project) EmitFile(path core.Path, write func(fileName, data string) error) bool {
	p.mu.Lock()
	enabled := p.languageServiceEnabled
	b := p.build
	p.mu.Unlock()
	if !enabled || b == nil {
		return false
	}
	return b.EmitFile(path, write)
}

// EnableLanguageService is idempotent (§4.1, §8).
func (p *Project) EnableLanguageService() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.languageServiceEnabled = true
}

// DisableLanguageService clears the builder (keeping it allocated) and
// the compilation engine's semantic cache; idempotent (§4.1, §8).
func (p *Project) DisableLanguageService() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.languageServiceEnabled {
		return
	}
	p.languageServiceEnabled = false
	if p.build != nil {
		p.build.Clear()
	}
	if p.engine != nil {
		p.engine.OnDisableLanguageService()
	}
}

func (p *Project) LanguageServiceEnabled() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.languageServiceEnabled
}

// GetLanguageService returns the effective (possibly plugin-wrapped)
// language service, refreshing the graph first when ensureSynchronized
// is set and the project is dirty (§6).
func (p *Project) GetLanguageService(ensureSynchronized bool) LanguageService {
	if ensureSynchronized {
		p.mu.Lock()
		dirty := p.dirty
		p.mu.Unlock()
		if dirty {
			p.UpdateGraph()
		}
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.languageService
}

// GetProjectVersion returns a string form of the state version, for
// clients that only need version identity, not structure (§6).
func (p *Project) GetProjectVersion() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return core.ToCanonicalFileName(p.name, true) + "/" + itoa(p.projectStateVersion)
}

// Close releases every resource the project owns (§4.1, §5, I8). It is
// safe to call more than once; later calls are no-ops.
func (p *Project) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}

	for _, w := range p.watches.missingFile {
		p.host.CloseFileWatcher(w, watch.ReasonProjectClose)
	}
	for _, w := range p.watches.typeRoot {
		p.host.CloseFileWatcher(w, watch.ReasonProjectClose)
	}
	for _, w := range p.watches.wildcardDir {
		p.host.CloseFileWatcher(w, watch.ReasonProjectClose)
	}
	if p.watches.configFile != "" {
		p.host.CloseFileWatcher(p.watches.configFile, watch.ReasonProjectClose)
	}
	p.watches = watchedPaths{}
	p.missingFilesMap = make(map[core.Path]string)

	for _, entry := range p.rootFiles {
		if entry.info != nil {
			p.host.Store.Detach(entry.info, p.name)
		}
	}
	p.rootFiles = nil
	p.rootFilesMap = make(map[core.Path]*rootEntry)

	p.program = nil
	p.resCache = nil

	p.closed = true
}

// AllRootFilesAreJsOrDts reports whether every root is a dynamic-
// dialect or declaration file (§4.1's type-predicate helper family).
func (p *Project) AllRootFilesAreJsOrDts() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
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

// AllFilesAreJsOrDts and HasOneOrMoreJsAndNoTsFiles compute over the
// full program rather than just the roots (§4.1).
func (p *Project) AllFilesAreJsOrDts() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.program == nil || len(p.program.SourceFiles) == 0 {
		return false
	}
	for _, f := range p.program.SourceFiles {
		info := p.host.GetScriptInfoForPath(f.Path)
		if info == nil || !info.Kind().IsDynamicDialectOrDts() {
			return false
		}
	}
	return true
}

func (p *Project) HasOneOrMoreJsAndNoTsFiles() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.program == nil {
		return false
	}
	hasJs := false
	for _, f := range p.program.SourceFiles {
		info := p.host.GetScriptInfoForPath(f.Path)
		if info == nil {
			continue
		}
		switch info.Kind() {
		case scriptstore.KindTS, scriptstore.KindTSX:
			return false
		case scriptstore.KindJS, scriptstore.KindJSX:
			hasJs = true
		}
	}
	return hasJs
}

// GetFileNames returns the root table's file names in root order, for
// the empty-project boundary behaviour in §8.
func (p *Project) GetFileNames() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.rootFiles))
	for _, e := range p.rootFiles {
		if !e.missing {
			out = append(out, e.fileName)
		}
	}
	return out
}

// GetGlobalProjectErrors returns the project-wide diagnostics whose
// FileName is empty (§7, §9 open question: diagnostics that carry a
// synthetic file reference are treated as file-scoped, not global,
// here — see the design ledger for the reasoning).
func (p *Project) GetGlobalProjectErrors() []ProjectError {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []ProjectError
	for _, e := range p.projectErrors {
		if e.FileName == "" {
			out = append(out, e)
		}
	}
	return out
}

// GetScriptInfoForNormalizedPath implements §7's one propagated
// failure: DocumentDoesNotBelongToProject. A path with no script info
// at all simply isn't found (nil, nil) — that's a different, unrelated
// condition — but a path that resolves to a script info not attached
// to this project raises core.ErrDocumentNotInProject.
func (p *Project) GetScriptInfoForNormalizedPath(fileName string) (*scriptstore.ScriptInfo, error) {
	p.mu.Lock()
	closed := p.closed
	name := p.name
	p.mu.Unlock()
	if closed {
		return nil, core.ErrProjectClosed
	}

	info := p.host.GetScriptInfo(fileName)
	if info == nil {
		return nil, nil
	}
	if !p.host.Store.IsAttached(info, name) {
		return nil, core.NewDocumentNotInProjectError(fileName)
	}
	return info, nil
}

func watchDir(fileName string) string {
	return filepath.ToSlash(filepath.Dir(fileName))
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}
