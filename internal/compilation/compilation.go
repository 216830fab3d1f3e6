// Package compilation wraps the Compilation Engine external
// collaborator (spec §1/§6): the compiler front-end is consumed as a
// black box that turns a root-file set and compiler options into a
// Program snapshot. This package defines the Program shape the
// Project core reads and the Engine interface it drives; it never
// parses or type-checks anything itself.
package compilation

import (
	"github.com/langservice/projectcore/internal/core"
	"github.com/langservice/projectcore/internal/resolution"
)

// StructureReuse is the engine-supplied enum describing how much of
// the previous Program the new one inherits (GLOSSARY: "Structure
// reuse flag"). Only Completely signals the file set is unchanged.
type StructureReuse int

const (
	ReuseNone StructureReuse = iota
	ReuseSafeModules
	ReuseCompletely
)

// SourceFile is one file enumerated by a Program snapshot.
type SourceFile struct {
	Path            core.Path
	FileName        string
	ResolvedModules map[string]resolution.Resolution
	IsDeclaration   bool
}

// Program is the immutable snapshot a Compilation Engine pass yields
// (GLOSSARY: "Program").
type Program struct {
	SourceFiles  []*SourceFile
	MissingFiles []string // referenced but absent from disk
}

// FileNames returns the program's file names in enumeration order.
func (p *Program) FileNames() []string {
	names := make([]string, len(p.SourceFiles))
	for i, f := range p.SourceFiles {
		names[i] = f.FileName
	}
	return names
}

// SourceFileSet returns the program's files indexed by canonical path,
// for the old/new diffing updateGraph performs in step 2c.
func (p *Program) SourceFileSet() map[core.Path]*SourceFile {
	m := make(map[core.Path]*SourceFile, len(p.SourceFiles))
	for _, f := range p.SourceFiles {
		m[f.Path] = f
	}
	return m
}

// Engine is the black-box Compilation Engine surface the core drives.
// A real implementation parses, binds and type-checks; this interface
// only needs to produce Program snapshots and report reuse.
type Engine interface {
	// GetProgram recomputes (or reuses) the Program for the given root
	// files and options. hasInvalidatedResolution lets the engine
	// decide, file by file, which cached results it may keep — the
	// predicate updateGraph step 1 publishes from the Resolution Cache
	// Adapter.
	GetProgram(
		options *core.CompilerOptions,
		rootFileNames []string,
		hasInvalidatedResolution func(core.Path) bool,
	) (*Program, StructureReuse)

	// OnDisableLanguageService clears any semantic cache the engine
	// holds for the project being disabled (§4.1 enableLanguageService
	// / disableLanguageService).
	OnDisableLanguageService()
}
