package project

import (
	"sort"

	"github.com/langservice/projectcore/internal/core"
)

// ProjectInfo is the header every getChangesSinceVersion response
// carries (§4.7).
type ProjectInfo struct {
	Name                    string
	StructureVersion        int
	IsInferred              bool
	CompilerOptions         *core.CompilerOptions
	LanguageServiceDisabled bool
}

// FileListChanges is the diff shape (§4.7).
type FileListChanges struct {
	Added   []string
	Removed []string
	Updated []string
}

// ChangesSinceVersion is getChangesSinceVersion's three-way response:
// exactly one of Files or Changes is populated; both nil means the
// "nothing changed" shape.
type ChangesSinceVersion struct {
	Info          ProjectInfo
	Files         []string
	Changes       *FileListChanges
	ProjectErrors []ProjectError
}

// RegisterFileUpdate accumulates fileName into the updated-files set
// between getChangesSinceVersion calls (§4.7) — the hook the Script
// Store calls on edits.
func (p *Project) RegisterFileUpdate(fileName string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.updatedFileNames == nil {
		p.updatedFileNames = make(map[string]struct{})
	}
	p.updatedFileNames[fileName] = struct{}{}
}

// GetChangesSinceVersion implements §4.7's contract table.
func (p *Project) GetChangesSinceVersion(knownVersion *int, excludeExternalLibraryFiles, excludeConfigFiles bool) ChangesSinceVersion {
	p.mu.Lock()
	defer p.mu.Unlock()

	info := p.infoLocked()
	current := p.currentFileListLocked(excludeExternalLibraryFiles, excludeConfigFiles)

	var result ChangesSinceVersion
	switch {
	case knownVersion == nil || *knownVersion != p.lastReportedVersion:
		result = ChangesSinceVersion{Info: info, Files: current, ProjectErrors: p.projectErrors}

	case p.projectStructureVersion == p.lastReportedVersion && len(p.updatedFileNames) == 0:
		result = ChangesSinceVersion{Info: info, ProjectErrors: p.projectErrors}

	default:
		added, removed := diffSorted(p.lastReportedFileNames, current)
		updated := make([]string, 0, len(p.updatedFileNames))
		for f := range p.updatedFileNames {
			updated = append(updated, f)
		}
		sort.Strings(updated)
		result = ChangesSinceVersion{
			Info:          info,
			Changes:       &FileListChanges{Added: added, Removed: removed, Updated: updated},
			ProjectErrors: p.projectErrors,
		}
	}

	p.lastReportedFileNames = current
	p.lastReportedVersion = p.projectStructureVersion
	p.updatedFileNames = make(map[string]struct{})

	return result
}

func (p *Project) infoLocked() ProjectInfo {
	return ProjectInfo{
		Name:                    p.name,
		StructureVersion:        p.projectStructureVersion,
		IsInferred:              p.kind == KindInferred,
		CompilerOptions:         p.compilerOptions,
		LanguageServiceDisabled: !p.languageServiceEnabled,
	}
}

// currentFileListLocked composes the file list getChangesSinceVersion
// and getFileNames-style consumers read (§4.7's "file-list
// composition" bullet): the program's files when one exists (falling
// back to the root table before the first updateGraph), plus the
// config file and its extends chain for Configured projects unless
// the caller suppresses config files, minus declaration files from
// outside the root set when the caller excludes external library
// files.
func (p *Project) currentFileListLocked(excludeExternalLibraryFiles, excludeConfigFiles bool) []string {
	var names []string

	if p.program != nil {
		for _, f := range p.program.SourceFiles {
			if excludeExternalLibraryFiles && f.IsDeclaration {
				if _, isRoot := p.rootFilesMap[f.Path]; !isRoot {
					continue
				}
			}
			names = append(names, f.FileName)
		}
	} else {
		names = append(names, p.rootFileNamesLocked()...)
	}

	if p.kind == KindConfigured && !excludeConfigFiles {
		names = append(names, p.configured.configFileName)
		names = append(names, p.configured.extendedConfigFiles...)
	}

	sort.Strings(names)
	return dedupSorted(names)
}

func dedupSorted(in []string) []string {
	if len(in) == 0 {
		return in
	}
	out := in[:1]
	for _, s := range in[1:] {
		if s != out[len(out)-1] {
			out = append(out, s)
		}
	}
	return out
}
