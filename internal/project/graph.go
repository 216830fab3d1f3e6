package project

import (
	"context"
	"sort"

	"github.com/langservice/projectcore/internal/compilation"
	"github.com/langservice/projectcore/internal/core"
	"github.com/langservice/projectcore/internal/projectsvc"
	"github.com/langservice/projectcore/internal/unresolvedimports"
	"github.com/langservice/projectcore/internal/watch"
)

// maxTypingsReentry bounds the recursive re-entry §4.2 step 5 allows:
// exactly one extra pass, never more, even if the typings helper were
// non-monotonic (§9's open question — the bound is preserved as the
// source does it, not relaxed).
const maxTypingsReentry = 1

// UpdateGraph runs the graph-update protocol (§4.2) and returns true
// iff the file set is unchanged.
func (p *Project) UpdateGraph() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return true
	}
	return p.updateGraphLocked(0)
}

func (p *Project) updateGraphLocked(reentry int) bool {
	if p.kind == KindConfigured && p.configured.pendingReload {
		p.configured.pendingReload = false
		if p.configured.reload != nil {
			if err := p.configured.reload(context.Background(), p); err != nil && p.logger != nil {
				p.logger.Warn("configured project reload failed", core.ErrorField(err))
			}
		}
		p.dirty = false
		return true
	}

	p.resCache.StartRecording()

	hasChanges := p.graphWorkerPassA()

	changedResolutions := p.resCache.FinishRecording()
	for _, path := range changedResolutions {
		p.unresolvedImports.Delete(path)
		delete(p.cachedPerFile, path)
	}

	if hasChanges || len(changedResolutions) > 0 {
		p.recomputeUnresolvedImportsLocked()
	}

	typingFiles := p.host.GetTypingsForProject(p.name, p.lastUnresolved, hasChanges)
	sort.Strings(typingFiles)
	if !equalStringSlices(typingFiles, p.typingFiles) {
		p.typingFiles = typingFiles
		p.dirty = true
		if reentry < maxTypingsReentry {
			return p.updateGraphLocked(reentry + 1)
		}
	}

	if p.build != nil && p.languageServiceEnabled {
		p.build.OnProgramUpdate(p.program, p.resCache.HasInvalidatedResolution)
	} else if p.build != nil {
		p.build.Clear()
	}

	if hasChanges {
		p.projectStructureVersion++
	}
	p.dirty = false
	return !hasChanges
}

// graphWorkerPassA is §4.2 step 2: ask the engine for a program,
// detach script-infos that fell out of it, reconcile the missing-
// files map, and diff the external-files set.
func (p *Project) graphWorkerPassA() bool {
	oldProgram := p.program
	rootNames := append(p.rootFileNamesLocked(), p.typingFiles...)

	newProgram, reuse := p.engine.GetProgram(p.compilerOptions, rootNames, p.resCache.HasInvalidatedResolution)

	hasChanges := oldProgram == nil || (!sameProgram(oldProgram, newProgram) && reuse < compilation.ReuseCompletely)

	if hasChanges && oldProgram != nil {
		newSet := newProgram.SourceFileSet()
		for _, f := range oldProgram.SourceFiles {
			if _, stillPresent := newSet[f.Path]; !stillPresent {
				if info := p.host.GetScriptInfoForPath(f.Path); info != nil {
					p.host.Store.Detach(info, p.name)
				}
			}
		}
	}
	// Resolution-cache records happen every pass, not only when the
	// file set itself changed — a resolution can flip without adding
	// or removing a file.
	for _, f := range newProgram.SourceFiles {
		p.resCache.Record(f.Path, f.ResolvedModules)
	}
	p.program = newProgram

	p.reconcileMissingFilesLocked(newProgram)
	p.reconcileExternalFilesLocked()

	return hasChanges
}

func (p *Project) rootFileNamesLocked() []string {
	out := make([]string, 0, len(p.rootFiles))
	for _, e := range p.rootFiles {
		if !e.missing {
			out = append(out, e.fileName)
		}
	}
	return out
}

// reconcileMissingFilesLocked implements §4.2 step 2d: watch newly-
// missing files, close watchers for files no longer missing.
func (p *Project) reconcileMissingFilesLocked(program *compilation.Program) {
	newMissing := make(map[core.Path]string, len(program.MissingFiles))
	for _, fn := range program.MissingFiles {
		newMissing[p.host.ToPath(fn)] = fn
	}

	for path, dir := range p.missingFilesMap {
		if _, stillMissing := newMissing[path]; !stillMissing {
			p.host.CloseFileWatcher(dir, watch.ReasonNotNeeded)
			delete(p.missingFilesMap, path)
			p.removeWatchedDirLocked(&p.watches.missingFile, dir)
		}
	}

	for path, fn := range newMissing {
		if _, alreadyWatched := p.missingFilesMap[path]; alreadyWatched {
			continue
		}
		dir := watchDir(fn)
		err := p.host.AddDirectoryWatcher(projectsvc.WatcherMissingFilePath, dir, func(changed string) {
			p.onMissingFileCreated(path, dir, fn, changed)
		})
		if err != nil {
			if p.logger != nil {
				p.logger.Debug("missing-file watch failed", core.StringField("file", fn), core.ErrorField(err))
			}
			continue
		}
		p.missingFilesMap[path] = dir
		p.watches.missingFile = append(p.watches.missingFile, dir)
	}
}

// onMissingFileCreated is the *FileCreated watcher reason path (§4.2
// step 2d, §8 scenario 4): the file's directory reported a change; if
// it matches the file we were actually waiting for, retire the
// missing-file entry and schedule a refresh.
func (p *Project) onMissingFileCreated(path core.Path, dir, fileName, changed string) {
	if p.host.ToPath(changed) != path {
		return
	}

	p.mu.Lock()
	if _, stillMissing := p.missingFilesMap[path]; !stillMissing {
		p.mu.Unlock()
		return
	}
	delete(p.missingFilesMap, path)
	p.removeWatchedDirLocked(&p.watches.missingFile, dir)
	p.markDirtyLocked()
	p.mu.Unlock()

	p.host.CloseFileWatcher(dir, watch.ReasonFileCreated)
	if p.scheduler != nil {
		p.scheduler.DelayUpdateProjectGraphAndInferredProjectsRefresh(p)
	}
}

func (p *Project) removeWatchedDirLocked(list *[]string, dir string) {
	for i, d := range *list {
		if d == dir {
			*list = append((*list)[:i], (*list)[i+1:]...)
			return
		}
	}
}

// reconcileExternalFilesLocked implements §4.2 step 2e: recompute
// externalFiles (Configured only has a source for these) and diff
// against the previous set, attaching insertions and detaching
// removals.
func (p *Project) reconcileExternalFilesLocked() {
	var newExternal []string
	if p.kind == KindConfigured {
		newExternal = p.getExternalFilesLocked()
	}
	sort.Strings(newExternal)

	inserted, removed := diffSorted(p.externalFiles, newExternal)

	for _, fn := range inserted {
		info, err := p.host.GetOrCreateScriptInfo(fn, false)
		if err != nil {
			continue
		}
		p.host.Store.Attach(info, p.name)
	}
	for _, fn := range removed {
		if info := p.host.GetScriptInfo(fn); info != nil {
			p.host.Store.Detach(info, p.name)
		}
	}

	p.externalFiles = newExternal
}

// recomputeUnresolvedImportsLocked implements §4.2 step 4 and §4.3:
// re-populate every current source file's unresolved-imports entry
// (cache hits short-circuit unchanged files) and fold the per-file
// lists into the project-wide sorted, deduplicated list.
func (p *Project) recomputeUnresolvedImportsLocked() {
	if p.program == nil {
		p.lastUnresolved = nil
		return
	}
	for _, f := range p.program.SourceFiles {
		list := unresolvedimports.ExtractFile(p.unresolvedImports, f.Path, f.ResolvedModules)
		p.cachedPerFile[f.Path] = list
	}
	p.lastUnresolved = unresolvedimports.Aggregate(p.cachedPerFile)
}
